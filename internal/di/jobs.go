package di

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/foresight/internal/config"
	"github.com/aristath/foresight/internal/scheduler"
	"github.com/rs/zerolog"
)

// jobTimeout bounds one run of any background job
const jobTimeout = 30 * time.Minute

type scheduledJob struct {
	schedule string
	job      scheduler.Job
}

// RegisterJobs creates the scheduler and registers every background job on
// its configured schedule. The scheduler is not started.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) error {
	s := scheduler.New(jobTimeout, log)

	symbols := func(ctx context.Context) ([]string, error) {
		return container.HistoryStore.Symbols(ctx)
	}

	vacuum := []scheduler.Vacuumer{container.BacktestDB, container.HistoryDB}

	jobs := []scheduledJob{
		{cfg.Schedules.MonitorSweep, scheduler.NewMonitorSweepJob(container.Monitor, log)},
		{cfg.Schedules.Retention, scheduler.NewRetentionJob(
			container.BacktestRepo, cfg.ResultsRetentionDays,
			container.HistoryStore, cfg.BarRetentionDays,
			vacuum, log,
		)},
		{cfg.Schedules.MarkToMarket, scheduler.NewMarkToMarketJob(container.PortfolioService, log)},
		{cfg.Schedules.Train, scheduler.NewTrainJob(container.PlanningService, symbols, log)},
		{"0 */15 * * * *", scheduler.NewCheckWALCheckpointsJob(container.Databases(), log)},
	}
	if container.Syncer != nil {
		jobs = append(jobs, scheduledJob{cfg.Schedules.Sync, scheduler.NewSyncJob(container.Syncer, symbols, log)})
	}

	for _, j := range jobs {
		if err := s.AddJob(j.schedule, j.job); err != nil {
			return fmt.Errorf("failed to register %s job: %w", j.job.Name(), err)
		}
	}

	container.Scheduler = s
	log.Info().Int("jobs", len(jobs)).Msg("Jobs registered")
	return nil
}
