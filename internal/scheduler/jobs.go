package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/foresight/internal/modules/history"
	"github.com/rs/zerolog"
)

// MonitorSweeper trims stale model history
type MonitorSweeper interface {
	Sweep(now time.Time) int
}

// ResultPruner removes stored backtest runs older than a cutoff
type ResultPruner interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// BarPruner removes stored bars older than a cutoff
type BarPruner interface {
	DeleteBarsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Vacuumer returns free pages to the filesystem
type Vacuumer interface {
	Name() string
	IncrementalVacuum(ctx context.Context) error
}

// PortfolioMarker revalues every stored portfolio
type PortfolioMarker interface {
	MarkAll(ctx context.Context, date time.Time) (int, error)
}

// BarSyncer pulls missing bars and indicators
type BarSyncer interface {
	SyncBars(ctx context.Context, symbols []string, end time.Time) (history.SyncResult, error)
	SyncIndicators(ctx context.Context, date time.Time) (int, error)
}

// ModelTrainer retrains the learned models on stored history
type ModelTrainer interface {
	Train(ctx context.Context, symbols []string, date time.Time) (int, error)
}

// SymbolSource lists the symbols a job should cover
type SymbolSource func(ctx context.Context) ([]string, error)

func today(now func() time.Time) time.Time {
	y, m, d := now().UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// MonitorSweepJob drops model history that fell out of the monitor window
type MonitorSweepJob struct {
	monitor MonitorSweeper
	now     func() time.Time
	log     zerolog.Logger
}

// NewMonitorSweepJob creates a MonitorSweepJob
func NewMonitorSweepJob(monitor MonitorSweeper, log zerolog.Logger) *MonitorSweepJob {
	return &MonitorSweepJob{monitor: monitor, now: time.Now, log: log.With().Str("job", "monitor_sweep").Logger()}
}

// Name returns the job name
func (j *MonitorSweepJob) Name() string { return "monitor_sweep" }

// Run executes the sweep
func (j *MonitorSweepJob) Run(_ context.Context) error {
	removed := j.monitor.Sweep(j.now())
	j.log.Debug().Int("removed", removed).Msg("Monitor history swept")
	return nil
}

// RetentionJob prunes old backtest results and bars, then vacuums
type RetentionJob struct {
	results     ResultPruner
	resultsDays int
	bars        BarPruner
	barDays     int
	databases   []Vacuumer
	now         func() time.Time
	log         zerolog.Logger
}

// NewRetentionJob creates a RetentionJob. A zero day count disables that
// pruning step; bars may be nil.
func NewRetentionJob(results ResultPruner, resultsDays int, bars BarPruner, barDays int, databases []Vacuumer, log zerolog.Logger) *RetentionJob {
	return &RetentionJob{
		results:     results,
		resultsDays: resultsDays,
		bars:        bars,
		barDays:     barDays,
		databases:   databases,
		now:         time.Now,
		log:         log.With().Str("job", "retention").Logger(),
	}
}

// Name returns the job name
func (j *RetentionJob) Name() string { return "retention" }

// Run executes the retention pass. Vacuum failures are logged only.
func (j *RetentionJob) Run(ctx context.Context) error {
	now := j.now()
	var removedRuns, removedBars int64
	var err error
	if j.results != nil && j.resultsDays > 0 {
		if removedRuns, err = j.results.DeleteOlderThan(ctx, now.AddDate(0, 0, -j.resultsDays)); err != nil {
			return fmt.Errorf("failed to prune backtest results: %w", err)
		}
	}
	if j.bars != nil && j.barDays > 0 {
		if removedBars, err = j.bars.DeleteBarsBefore(ctx, now.AddDate(0, 0, -j.barDays)); err != nil {
			return fmt.Errorf("failed to prune bars: %w", err)
		}
	}

	if removedRuns+removedBars > 0 {
		for _, db := range j.databases {
			if err := db.IncrementalVacuum(ctx); err != nil {
				j.log.Warn().Err(err).Str("database", db.Name()).Msg("Vacuum failed")
			}
		}
	}

	j.log.Info().
		Int64("runs_removed", removedRuns).
		Int64("bars_removed", removedBars).
		Msg("Retention completed")
	return nil
}

// MarkToMarketJob revalues every portfolio at the close
type MarkToMarketJob struct {
	portfolios PortfolioMarker
	now        func() time.Time
	log        zerolog.Logger
}

// NewMarkToMarketJob creates a MarkToMarketJob
func NewMarkToMarketJob(portfolios PortfolioMarker, log zerolog.Logger) *MarkToMarketJob {
	return &MarkToMarketJob{portfolios: portfolios, now: time.Now, log: log.With().Str("job", "mark_to_market").Logger()}
}

// Name returns the job name
func (j *MarkToMarketJob) Name() string { return "mark_to_market" }

// Run executes the revaluation
func (j *MarkToMarketJob) Run(ctx context.Context) error {
	n, err := j.portfolios.MarkAll(ctx, today(j.now))
	if err != nil {
		return fmt.Errorf("failed to mark portfolios: %w", err)
	}
	j.log.Info().Int("portfolios", n).Msg("Portfolios marked to market")
	return nil
}

// SyncJob refreshes stored bars and indicators from the remote provider
type SyncJob struct {
	syncer  BarSyncer
	symbols SymbolSource
	now     func() time.Time
	log     zerolog.Logger
}

// NewSyncJob creates a SyncJob
func NewSyncJob(syncer BarSyncer, symbols SymbolSource, log zerolog.Logger) *SyncJob {
	return &SyncJob{syncer: syncer, symbols: symbols, now: time.Now, log: log.With().Str("job", "sync").Logger()}
}

// Name returns the job name
func (j *SyncJob) Name() string { return "sync" }

// Run executes the sync. Per-symbol failures are reported by the syncer and
// do not fail the job.
func (j *SyncJob) Run(ctx context.Context) error {
	symbols, err := j.symbols(ctx)
	if err != nil {
		return fmt.Errorf("failed to list symbols: %w", err)
	}
	date := today(j.now)
	res, err := j.syncer.SyncBars(ctx, symbols, date)
	if err != nil {
		return err
	}
	n, err := j.syncer.SyncIndicators(ctx, date)
	if err != nil {
		return err
	}
	j.log.Info().
		Int("bars", res.Inserted).
		Int("failed_symbols", len(res.Failed)).
		Int("indicators", n).
		Msg("Sync completed")
	return nil
}

// TrainJob retrains the learned models on every stored symbol
type TrainJob struct {
	trainer ModelTrainer
	symbols SymbolSource
	now     func() time.Time
	log     zerolog.Logger
}

// NewTrainJob creates a TrainJob
func NewTrainJob(trainer ModelTrainer, symbols SymbolSource, log zerolog.Logger) *TrainJob {
	return &TrainJob{trainer: trainer, symbols: symbols, now: time.Now, log: log.With().Str("job", "train").Logger()}
}

// Name returns the job name
func (j *TrainJob) Name() string { return "train" }

// Run executes the training pass
func (j *TrainJob) Run(ctx context.Context) error {
	symbols, err := j.symbols(ctx)
	if err != nil {
		return fmt.Errorf("failed to list symbols: %w", err)
	}
	if len(symbols) == 0 {
		return nil
	}
	n, err := j.trainer.Train(ctx, symbols, today(j.now))
	if err != nil {
		return fmt.Errorf("training failed: %w", err)
	}
	j.log.Info().Int("samples", n).Int("symbols", len(symbols)).Msg("Models retrained")
	return nil
}
