package scheduler

import (
	"context"
	"testing"

	"github.com/aristath/foresight/internal/database"
	testutil "github.com/aristath/foresight/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestCheckWALCheckpointsJob_Name(t *testing.T) {
	job := NewCheckWALCheckpointsJob(nil, zerolog.Nop())
	assert.Equal(t, "check_wal_checkpoints", job.Name())
}

func TestCheckWALCheckpointsJob_Run_NoDatabases(t *testing.T) {
	job := NewCheckWALCheckpointsJob([]*database.DB{nil}, zerolog.Nop())
	assert.NoError(t, job.Run(context.Background()))
}

func TestCheckWALCheckpointsJob_Run(t *testing.T) {
	dbs := []*database.DB{
		testutil.NewTestDB(t, database.NameHistory),
		testutil.NewTestDB(t, database.NameBacktest),
	}
	job := NewCheckWALCheckpointsJob(dbs, zerolog.Nop())
	assert.NoError(t, job.Run(context.Background()))
}
