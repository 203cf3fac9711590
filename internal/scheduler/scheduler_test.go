package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	name string
	runs int32
	err  error
}

func (j *countingJob) Name() string { return j.name }

func (j *countingJob) Run(ctx context.Context) error {
	atomic.AddInt32(&j.runs, 1)
	return j.err
}

type blockingJob struct{}

func (blockingJob) Name() string { return "blocking" }

func (blockingJob) Run(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestScheduler_AddJob(t *testing.T) {
	s := New(0, zerolog.Nop())

	job := &countingJob{name: "count"}
	require.NoError(t, s.AddJob("0 */5 * * * *", job))
	require.NoError(t, s.AddJob("", &countingJob{name: "disabled"}))
	assert.Error(t, s.AddJob("not a schedule", &countingJob{name: "bad"}))

	s.Start()
	defer s.Stop()
	next, ok := s.Next("count")
	assert.True(t, ok)
	assert.False(t, next.IsZero())
	_, ok = s.Next("disabled")
	assert.False(t, ok)

	assert.Equal(t, []string{"count", "disabled"}, s.Jobs())
}

func TestScheduler_Trigger(t *testing.T) {
	s := New(0, zerolog.Nop())
	ok := &countingJob{name: "ok"}
	failing := &countingJob{name: "failing", err: errors.New("boom")}
	require.NoError(t, s.AddJob("", ok))
	require.NoError(t, s.AddJob("", failing))

	assert.NoError(t, s.Trigger("ok"))
	assert.EqualError(t, s.Trigger("failing"), "boom")
	assert.ErrorIs(t, s.Trigger("missing"), ErrNoJob)
	assert.Equal(t, int32(1), atomic.LoadInt32(&ok.runs))
}

func TestScheduler_Timeout(t *testing.T) {
	s := New(20*time.Millisecond, zerolog.Nop())
	err := s.RunNow(blockingJob{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestScheduler_StopCancelsRuns(t *testing.T) {
	s := New(0, zerolog.Nop())
	s.Start()

	done := make(chan error, 1)
	go func() { done <- s.RunNow(blockingJob{}) }()
	time.Sleep(10 * time.Millisecond)
	s.Stop()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("job was not cancelled by Stop")
	}
}
