package backtesting

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aristath/foresight/internal/domain"
	"github.com/aristath/foresight/internal/modules/allocation"
	"github.com/aristath/foresight/internal/modules/prediction"
	"github.com/aristath/foresight/internal/utils"
	"github.com/rs/zerolog"
)

// defaultWorkers bounds scenario parallelism when none is configured
const defaultWorkers = 4

// Dependencies are the collaborators shared read-only by every scenario
type Dependencies struct {
	Market     domain.MarketDataProvider
	Economic   domain.EconomicContextProvider
	Snapshots  domain.HistoricalPortfolioProvider
	Prediction prediction.Config
	Allocation allocation.Config
	// MonitorWindow is the history window of each scenario's model monitor
	MonitorWindow time.Duration
}

// withDefaults fills model and allocation tunables left at their zero value
func (d Dependencies) withDefaults() Dependencies {
	if d.Prediction.ReturnLags == 0 {
		d.Prediction = prediction.DefaultConfig()
	}
	if d.Allocation.MaxIterations == 0 {
		d.Allocation = allocation.DefaultConfig()
	}
	return d
}

// Store persists finished runs
type Store interface {
	Save(ctx context.Context, result *Result) error
}

// Observer is notified as scenarios and runs finish
type Observer interface {
	ScenarioFinished(result ScenarioResult, elapsed time.Duration)
	RunFinished(result *Result, elapsed time.Duration)
}

// Framework runs scenarios on a bounded worker pool. Each scenario gets its
// own simulation; only the data providers are shared.
type Framework struct {
	deps      Dependencies
	workers   int
	store     Store
	observers []Observer
	log       zerolog.Logger
}

// NewFramework creates a backtesting framework
func NewFramework(deps Dependencies, workers int, log zerolog.Logger) *Framework {
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Framework{
		deps:    deps.withDefaults(),
		workers: workers,
		log:     log.With().Str("component", "backtesting").Logger(),
	}
}

// SetStore makes RunBacktest persist every finished run
func (f *Framework) SetStore(store Store) {
	f.store = store
}

// AddObserver registers o for scenario and run notifications
func (f *Framework) AddObserver(o Observer) {
	f.observers = append(f.observers, o)
}

// RunBacktest simulates every scenario over [start, end]. Results keep the
// order of scenarios. A scenario that fails records its stop reason and error
// without affecting the others.
func (f *Framework) RunBacktest(ctx context.Context, scenarios []Scenario, start, end time.Time) (*Result, error) {
	if end.Before(start) {
		return nil, domain.NewValidationError(domain.ErrInvalidDateRange, "end",
			"%s is before %s", end.Format("2006-01-02"), start.Format("2006-01-02"))
	}
	if len(scenarios) == 0 {
		return nil, domain.NewValidationError(domain.ErrInvalidConfig, "scenarios", "at least one scenario is required")
	}
	names := make(map[string]bool, len(scenarios))
	for _, sc := range scenarios {
		if err := sc.withDefaults().Validate(); err != nil {
			return nil, err
		}
		if names[sc.Name] {
			return nil, domain.NewValidationError(domain.ErrInvalidConfig, "scenarios", "duplicate scenario name %s", sc.Name)
		}
		names[sc.Name] = true
	}

	began := time.Now()
	f.log.Info().
		Int("scenarios", len(scenarios)).
		Time("start", start).
		Time("end", end).
		Msg("Starting backtest")

	result := &Result{
		Start:     truncateDay(start),
		End:       truncateDay(end),
		Scenarios: f.runPool(ctx, scenarios, start, end),
	}
	result.Summary = Summarize(result.Scenarios)

	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("backtest interrupted: %w", err)
	}
	if f.store != nil {
		if err := f.store.Save(ctx, result); err != nil {
			return result, fmt.Errorf("failed to save backtest result: %w", err)
		}
	}

	elapsed := time.Since(began)
	for _, o := range f.observers {
		o.RunFinished(result, elapsed)
	}
	f.log.Info().
		Str("id", result.ID).
		Int("completed", result.Summary.Completed).
		Int("failed", result.Summary.Failed).
		Float64("average_return", result.Summary.AverageReturn).
		Dur("elapsed", elapsed).
		Msg("Backtest complete")
	return result, nil
}

type scenarioJob struct {
	index    int
	scenario Scenario
}

type scenarioOutcome struct {
	index  int
	result ScenarioResult
}

func (f *Framework) runPool(ctx context.Context, scenarios []Scenario, start, end time.Time) []ScenarioResult {
	jobs := make(chan scenarioJob, len(scenarios))
	results := make(chan scenarioOutcome, len(scenarios))

	var wg sync.WaitGroup
	for i := 0; i < min(f.workers, len(scenarios)); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				results <- scenarioOutcome{index: job.index, result: f.runScenario(ctx, job.scenario, start, end)}
			}
		}()
	}

	for idx, sc := range scenarios {
		jobs <- scenarioJob{index: idx, scenario: sc}
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	out := make([]ScenarioResult, len(scenarios))
	for r := range results {
		out[r.index] = r.result
	}
	return out
}

func (f *Framework) runScenario(ctx context.Context, sc Scenario, start, end time.Time) ScenarioResult {
	stopTimer := utils.OperationTimer("scenario_"+sc.Name, f.log)
	sim, err := NewSimulation(sc, start, end, f.deps, f.log)
	if err != nil {
		return ScenarioResult{Name: sc.Name, StopReason: StopFailed, Error: err.Error(), Start: truncateDay(start), End: truncateDay(end)}
	}
	sim.Run(ctx)
	res := Collect(sim)

	elapsed := stopTimer()
	for _, o := range f.observers {
		o.ScenarioFinished(res, elapsed)
	}
	return res
}
