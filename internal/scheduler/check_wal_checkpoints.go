package scheduler

import (
	"context"
	"fmt"

	"github.com/aristath/foresight/internal/database"
	"github.com/rs/zerolog"
)

// walWarnFrames is the WAL size above which a checkpoint is logged as lagging
const walWarnFrames = 1000

// CheckWALCheckpointsJob runs a passive checkpoint on every database and
// reports WAL files that keep growing.
type CheckWALCheckpointsJob struct {
	databases []*database.DB
	log       zerolog.Logger
}

// NewCheckWALCheckpointsJob creates a new CheckWALCheckpointsJob. Nil
// databases are ignored.
func NewCheckWALCheckpointsJob(databases []*database.DB, log zerolog.Logger) *CheckWALCheckpointsJob {
	return &CheckWALCheckpointsJob{
		databases: databases,
		log:       log.With().Str("job", "check_wal_checkpoints").Logger(),
	}
}

// Name returns the job name
func (j *CheckWALCheckpointsJob) Name() string {
	return "check_wal_checkpoints"
}

// Run executes the checkpoint pass
func (j *CheckWALCheckpointsJob) Run(ctx context.Context) error {
	checked, failed := 0, 0
	for _, db := range j.databases {
		if db == nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		// busy, WAL frames, checkpointed frames
		var busy, frames, checkpointed int
		err := db.Conn().QueryRowContext(ctx, "PRAGMA wal_checkpoint(PASSIVE)").Scan(&busy, &frames, &checkpointed)
		if err != nil {
			j.log.Warn().Err(err).Str("database", db.Name()).Msg("Failed to checkpoint WAL")
			failed++
			continue
		}
		if frames > walWarnFrames {
			j.log.Warn().
				Str("database", db.Name()).
				Int("wal_frames", frames).
				Int("checkpointed", checkpointed).
				Bool("busy", busy != 0).
				Msg("WAL file is large, checkpoint lagging")
		}
		checked++
	}

	j.log.Debug().Int("checked", checked).Msg("WAL checkpoint check completed")
	if failed > 0 {
		return fmt.Errorf("%d of %d databases failed to checkpoint", failed, checked+failed)
	}
	return nil
}
