package backtesting

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aristath/foresight/internal/domain"
	"github.com/aristath/foresight/internal/modules/ensemble"
	"github.com/aristath/foresight/internal/modules/monitoring"
	"github.com/aristath/foresight/internal/modules/optimization"
	"github.com/aristath/foresight/internal/modules/prediction"
	"github.com/aristath/foresight/internal/modules/rebalancing"
	"github.com/aristath/foresight/pkg/formulas"
	"github.com/rs/zerolog"
)

// StopReason tells why a simulation ended
type StopReason string

const (
	StopCompleted           StopReason = "completed"
	StopLookaheadExhausted  StopReason = "lookahead_exhausted"
	StopInsufficientHistory StopReason = "insufficient_history"
	StopCancelled           StopReason = "cancelled"
	StopFailed              StopReason = "failed"
)

// pendingSecurity is a symbol forecast waiting for its horizon to pass
type pendingSecurity struct {
	start  float64
	inputs []domain.WeightedInput
}

// pendingForecast is everything forecast on one day, validated once the
// cursor reaches maturesOn.
type pendingForecast struct {
	madeOn      time.Time
	maturesOn   time.Time
	marketStart float64
	market      []domain.WeightedInput
	securities  map[string]pendingSecurity
	portfolio   []domain.WeightedInput
	holdings    map[string]float64
	cash        float64
	value       float64
	exposure    float64
}

// State is the mutable state of one simulation. It is owned by a single
// goroutine.
type State struct {
	Cursor        time.Time
	Portfolio     *domain.Portfolio
	History       map[string][]domain.Bar
	Equity        []domain.PerformanceMetric
	Trades        []Trade
	Benchmark     []float64
	Stop          StopReason
	Err           error
	LastRebalance time.Time
	LastRetrain   time.Time
	DaysSimulated int
	DaysSkipped   int

	// RetrainFailures counts fits that failed and left the previous model in use
	RetrainFailures int

	pending         []pendingForecast
	combinerSamples []ensemble.CombinerSample
	lastBenchmark   float64
}

// Simulation replays one scenario over [start, end] one calendar day at a
// time. Providers are never asked for data after the cursor.
type Simulation struct {
	scenario   Scenario
	start      time.Time
	end        time.Time
	market     domain.MarketDataProvider
	economic   domain.EconomicContextProvider
	snapshots  domain.HistoricalPortfolioProvider
	forecaster *ensemble.Service
	optimizer  *optimization.Optimizer
	triggers   *rebalancing.TriggerChecker
	executor   *Executor
	features   prediction.FeatureBuilder
	tracked    []string
	state      State
	warmed     bool
	log        zerolog.Logger
}

// NewSimulation builds an isolated simulation: its own models, monitor and
// portfolio.
func NewSimulation(sc Scenario, start, end time.Time, deps Dependencies, log zerolog.Logger) (*Simulation, error) {
	sc = sc.withDefaults()
	deps = deps.withDefaults()
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	if deps.Market == nil {
		return nil, fmt.Errorf("scenario %s has no market data provider: %w", sc.Name, domain.ErrInvalidConfig)
	}
	if end.Before(start) {
		return nil, domain.NewValidationError(domain.ErrInvalidDateRange, "end", "%s is before %s", end.Format("2006-01-02"), start.Format("2006-01-02"))
	}

	cfg := deps.Prediction
	if sc.AssumedMarketReturn != 0 {
		cfg.AssumedMarketReturn = sc.AssumedMarketReturn
	}
	simLog := log.With().Str("component", "simulation").Str("scenario", sc.Name).Logger()
	monitor := monitoring.NewMonitor(deps.MonitorWindow, log)

	triggerCfg := rebalancing.DefaultTriggerConfig()
	triggerCfg.DriftThreshold = sc.Profiles.Rebalancing.Threshold
	if triggerCfg.DriftThreshold <= 0 {
		triggerCfg.DriftThreshold = rebalancing.DefaultThreshold
	}
	if sc.Profiles.Rebalancing.Strategy == domain.RebalanceTimeBased && sc.RebalanceIntervalDays > 0 {
		triggerCfg.Interval = time.Duration(sc.RebalanceIntervalDays) * 24 * time.Hour
	}

	s := &Simulation{
		scenario:   sc,
		start:      truncateDay(start),
		end:        truncateDay(end),
		market:     deps.Market,
		economic:   deps.Economic,
		snapshots:  deps.Snapshots,
		forecaster: ensemble.NewDefaultService(cfg, sc.Weighting, monitor, log),
		optimizer:  optimization.NewOptimizer(deps.Allocation, log),
		triggers:   rebalancing.NewTriggerChecker(triggerCfg, log),
		executor:   NewExecutor(sc.Name, sc.Profiles.Cost, sc.MinTradeAmount, log),
		features:   prediction.FeatureBuilder{ReturnLags: cfg.ReturnLags},
		log:        simLog,
	}
	s.state.Cursor = s.start
	s.state.History = map[string][]domain.Bar{}
	return s, nil
}

// State returns the current simulation state
func (s *Simulation) State() *State {
	return &s.state
}

// Scenario returns the scenario with defaults applied
func (s *Simulation) Scenario() Scenario {
	return s.scenario
}

// Forecaster returns the scenario's private forecasting service
func (s *Simulation) Forecaster() *ensemble.Service {
	return s.forecaster
}

// Run steps until the simulation stops
func (s *Simulation) Run(ctx context.Context) *State {
	for s.Step(ctx) {
	}
	return &s.state
}

// Step advances exactly one calendar day and reports whether the simulation
// is still running.
func (s *Simulation) Step(ctx context.Context) bool {
	if s.state.Stop != "" {
		return false
	}
	if !s.warmed {
		if err := s.warmUp(ctx); err != nil {
			switch {
			case errors.Is(err, domain.ErrInsufficientHistory):
				s.stop(StopInsufficientHistory, err)
			case ctx.Err() != nil:
				s.stop(StopCancelled, ctx.Err())
			default:
				s.stop(StopFailed, err)
			}
			return false
		}
		s.warmed = true
	}

	if err := ctx.Err(); err != nil {
		s.stop(StopCancelled, err)
		return false
	}
	cursor := s.state.Cursor
	if cursor.After(s.end) {
		s.stop(StopCompleted, nil)
		return false
	}
	if cursor.AddDate(0, 0, s.scenario.LookaheadDays).After(s.end) {
		s.stop(StopLookaheadExhausted, nil)
		return false
	}

	if err := s.simulateDay(ctx, cursor); err != nil {
		if ctx.Err() != nil {
			s.stop(StopCancelled, ctx.Err())
		} else {
			s.stop(StopFailed, err)
		}
		return false
	}
	s.state.Cursor = cursor.AddDate(0, 0, 1)
	return true
}

func (s *Simulation) stop(reason StopReason, err error) {
	s.state.Stop = reason
	s.state.Err = err
	ev := s.log.Info()
	if reason == StopFailed {
		ev = s.log.Error().Err(err)
	}
	ev.Str("reason", string(reason)).
		Time("cursor", s.state.Cursor).
		Int("days", s.state.DaysSimulated).
		Int("trades", len(s.state.Trades)).
		Msg("Simulation stopped")
}

// warmUp loads the look-back window before start and seeds the portfolio
func (s *Simulation) warmUp(ctx context.Context) error {
	from := s.start.AddDate(0, 0, -s.scenario.LookbackDays)
	to := s.start.AddDate(0, 0, -1)

	p, err := s.seedPortfolio(ctx, from, to)
	if err != nil {
		return err
	}
	s.state.Portfolio = p
	s.tracked = trackedSymbols(s.scenario, p)

	for _, sym := range s.tracked {
		bars, err := s.history(ctx, sym, from, to)
		if err != nil && !errors.Is(err, domain.ErrDataUnavailable) {
			return fmt.Errorf("failed to load look-back for %s: %w", sym, err)
		}
		s.state.History[sym] = bars
	}
	if have := len(s.state.History[s.scenario.MarketSymbol]); have < s.scenario.MinHistoryBars {
		return domain.InsufficientHistory(s.scenario.MarketSymbol, have, s.scenario.MinHistoryBars)
	}
	if bars := s.state.History[s.scenario.MarketSymbol]; len(bars) > 0 {
		s.state.lastBenchmark = bars[len(bars)-1].Close
	}
	s.syncPositions()
	s.log.Debug().Int("symbols", len(s.tracked)).Float64("value", p.TotalValue).Msg("Warm-up complete")
	return nil
}

// seedPortfolio starts from the last snapshot before start when the scenario
// names a portfolio, otherwise from cash.
func (s *Simulation) seedPortfolio(ctx context.Context, from, to time.Time) (*domain.Portfolio, error) {
	sc := s.scenario
	if sc.PortfolioID == "" || s.snapshots == nil {
		p := domain.NewPortfolio(sc.Name, sc.InitialCash)
		p.Catalog = sc.catalog()
		return p, nil
	}
	snaps, err := s.snapshots.GetHistoricalPortfolioData(ctx, sc.PortfolioID, from, to)
	if err != nil && !errors.Is(err, domain.ErrDataUnavailable) {
		return nil, fmt.Errorf("failed to load snapshots for %s: %w", sc.PortfolioID, err)
	}
	var last *domain.PortfolioSnapshot
	for i := range snaps {
		if snaps[i].Date.After(to) {
			continue
		}
		if last == nil || snaps[i].Date.After(last.Date) {
			last = &snaps[i]
		}
	}
	if last == nil {
		if sc.InitialCash <= 0 {
			return nil, fmt.Errorf("no snapshot of %s before %s: %w", sc.PortfolioID, s.start.Format("2006-01-02"), domain.ErrDataUnavailable)
		}
		p := domain.NewPortfolio(sc.PortfolioID, sc.InitialCash)
		p.Catalog = sc.catalog()
		return p, nil
	}

	p := domain.NewPortfolio(sc.PortfolioID, last.Cash)
	p.Catalog = sc.catalog()
	for _, pos := range last.Positions {
		if pos.Quantity <= 0 {
			continue
		}
		if info, ok := p.Catalog[pos.Symbol]; ok && pos.AssetClass == "" {
			pos.SecurityInfo = info
		}
		pos.PriceHistory = nil
		p.Positions = append(p.Positions, pos)
	}
	p.Revalue()
	return p, nil
}

func trackedSymbols(sc Scenario, p *domain.Portfolio) []string {
	set := map[string]struct{}{sc.MarketSymbol: {}}
	for _, sym := range sc.Symbols {
		set[sym] = struct{}{}
	}
	for _, sym := range p.Symbols() {
		set[sym] = struct{}{}
	}
	return formulas.SortedKeys(set)
}

func (s *Simulation) simulateDay(ctx context.Context, d time.Time) error {
	closes := map[string]float64{}
	for _, sym := range s.tracked {
		bar, err := s.bar(ctx, sym, d)
		if errors.Is(err, domain.ErrDataUnavailable) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to load %s bar for %s: %w", sym, d.Format("2006-01-02"), err)
		}
		s.appendBar(sym, bar)
		closes[sym] = bar.Close
	}
	if len(closes) == 0 {
		s.state.DaysSkipped++
		return nil
	}
	s.state.DaysSimulated++

	econ := s.economicContext(ctx, d)
	s.syncPositions()

	if err := s.matureForecasts(d, closes); err != nil {
		return err
	}
	if err := s.retrain(ctx, d, econ); err != nil {
		return err
	}
	if err := s.forecastAndTrade(d, econ, closes); err != nil {
		return err
	}
	s.recordPerformance(d, closes)
	return nil
}

// bar reads one observation, refusing dates beyond the cursor
func (s *Simulation) bar(ctx context.Context, symbol string, d time.Time) (domain.Bar, error) {
	if d.After(s.state.Cursor) {
		return domain.Bar{}, domain.NewValidationError(domain.ErrInvalidDateRange, "date", "read of %s beyond cursor %s", d.Format("2006-01-02"), s.state.Cursor.Format("2006-01-02"))
	}
	return s.market.Bar(ctx, symbol, d)
}

// history reads a range clipped to the cursor
func (s *Simulation) history(ctx context.Context, symbol string, from, to time.Time) ([]domain.Bar, error) {
	if to.After(s.state.Cursor) {
		to = s.state.Cursor
	}
	bars, err := s.market.History(ctx, symbol, from, to)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Bar, 0, len(bars))
	for _, b := range bars {
		if !b.Date.After(to) && !b.Date.Before(from) {
			out = append(out, b)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *Simulation) appendBar(symbol string, bar domain.Bar) {
	h := append(s.state.History[symbol], bar)
	if limit := s.scenario.LookbackDays; len(h) > limit {
		h = append([]domain.Bar(nil), h[len(h)-limit:]...)
	}
	s.state.History[symbol] = h
}

// economicContext never fails the day; missing indicators read as zero
func (s *Simulation) economicContext(ctx context.Context, d time.Time) domain.EconomicContext {
	if s.economic == nil {
		return domain.EconomicContext{Date: d}
	}
	econ, err := s.economic.Context(ctx, d)
	if err != nil {
		if !errors.Is(err, domain.ErrDataUnavailable) {
			s.log.Warn().Err(err).Time("date", d).Msg("Economic context unavailable")
		}
		return domain.EconomicContext{Date: d}
	}
	return econ
}

// syncPositions rebuilds each position's price history from the rolling bar
// window and marks it to the latest close.
func (s *Simulation) syncPositions() {
	p := s.state.Portfolio
	for i := range p.Positions {
		bars := s.state.History[p.Positions[i].Symbol]
		if len(bars) == 0 {
			continue
		}
		hist := make([]domain.PricePoint, len(bars))
		for j, b := range bars {
			hist[j] = domain.PricePoint{Date: b.Date, Price: b.Close}
		}
		p.Positions[i].PriceHistory = hist
		p.Positions[i].CurrentPrice = bars[len(bars)-1].Close
	}
	p.Revalue()
}

// matureForecasts validates every pending forecast whose horizon has passed
// and turns matured portfolio forecasts into combiner samples.
func (s *Simulation) matureForecasts(d time.Time, closes map[string]float64) error {
	sets := map[domain.ModelType]map[domain.PredictionClass]*prediction.ValidationSet{}
	add := func(inputs []domain.WeightedInput, class domain.PredictionClass, actual float64) {
		for _, in := range inputs {
			byClass, ok := sets[in.Model]
			if !ok {
				byClass = map[domain.PredictionClass]*prediction.ValidationSet{}
				sets[in.Model] = byClass
			}
			set, ok := byClass[class]
			if !ok {
				set = &prediction.ValidationSet{AsOf: d, Class: class}
				byClass[class] = set
			}
			set.Predicted = append(set.Predicted, in.ExpectedReturn)
			set.Actual = append(set.Actual, actual)
			set.Confidences = append(set.Confidences, in.Confidence)
		}
	}

	kept := s.state.pending[:0]
	matured := 0
	for _, pf := range s.state.pending {
		if d.Before(pf.maturesOn) {
			kept = append(kept, pf)
			continue
		}
		matured++
		if now, ok := closes[s.scenario.MarketSymbol]; ok && pf.marketStart > 0 {
			add(pf.market, domain.ClassMarket, formulas.SimpleReturn(pf.marketStart, now))
		}
		for _, sym := range formulas.SortedKeys(pf.securities) {
			sec := pf.securities[sym]
			if now, ok := closes[sym]; ok && sec.start > 0 {
				add(sec.inputs, domain.ClassSecurity, formulas.SimpleReturn(sec.start, now))
			}
		}
		if actual, ok := heldReturn(pf, s.state.History); ok && len(pf.portfolio) > 0 {
			add(pf.portfolio, domain.ClassPortfolio, actual)
			modelReturns := make(map[domain.ModelType]float64, len(pf.portfolio))
			for _, in := range pf.portfolio {
				modelReturns[in.Model] = in.ExpectedReturn
			}
			s.state.combinerSamples = append(s.state.combinerSamples, ensemble.CombinerSample{
				Date:           pf.madeOn,
				ModelReturns:   modelReturns,
				PortfolioValue: pf.value,
				Exposure:       pf.exposure,
				Actual:         actual,
			})
		}
	}
	s.state.pending = kept
	if matured == 0 {
		return nil
	}

	bySet := make(map[domain.ModelType][]prediction.ValidationSet, len(sets))
	for _, m := range domain.AllModelTypes {
		byClass, ok := sets[m]
		if !ok {
			continue
		}
		for _, class := range []domain.PredictionClass{domain.ClassMarket, domain.ClassSecurity, domain.ClassPortfolio} {
			if set, ok := byClass[class]; ok {
				bySet[m] = append(bySet[m], *set)
			}
		}
	}
	if _, err := s.forecaster.Validate(bySet); err != nil {
		return fmt.Errorf("failed to validate matured forecasts: %w", err)
	}
	return nil
}

// heldReturn is the buy-and-hold return of the holdings frozen at forecast
// time, valued at the latest close of each symbol.
func heldReturn(pf pendingForecast, history map[string][]domain.Bar) (float64, bool) {
	if pf.value <= 0 {
		return 0, false
	}
	value := pf.cash
	for _, sym := range formulas.SortedKeys(pf.holdings) {
		bars := history[sym]
		if len(bars) == 0 {
			return 0, false
		}
		value += pf.holdings[sym] * bars[len(bars)-1].Close
	}
	return formulas.SimpleReturn(pf.value, value), true
}

// retrain refits the models every RetrainEveryDays on labelled samples built
// from the visible history. Too little history is not an error.
func (s *Simulation) retrain(ctx context.Context, d time.Time, econ domain.EconomicContext) error {
	every := s.scenario.RetrainEveryDays
	if every <= 0 {
		return nil
	}
	if !s.state.LastRetrain.IsZero() && d.Sub(s.state.LastRetrain) < time.Duration(every)*24*time.Hour {
		return nil
	}

	var samples []prediction.TrainingSample
	minHistory := s.features.RequiredHistory()
	for _, sym := range s.scenario.Symbols {
		bars := s.state.History[sym]
		dates := make([]time.Time, len(bars))
		for i, b := range bars {
			dates[i] = b.Date
		}
		samples = append(samples, prediction.BuildSamples(sym, dates, domain.Closes(bars), econ.Indicators,
			s.scenario.HorizonDays, minHistory, 1)...)
	}
	if len(samples) == 0 {
		return nil
	}

	err := s.forecaster.Train(ctx, prediction.TrainingData{Samples: samples})
	switch {
	case err == nil:
		s.state.LastRetrain = d
	case errors.Is(err, domain.ErrInsufficientHistory):
		s.log.Debug().Int("samples", len(samples)).Msg("Not enough samples to train yet")
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		// The previous fit stays in use; the next attempt waits a full cadence
		s.log.Warn().Err(err).Int("samples", len(samples)).Msg("Model retraining failed")
		s.state.LastRetrain = d
		s.state.RetrainFailures++
	}

	if len(s.state.combinerSamples) >= 5 {
		if _, err := s.forecaster.TrainCombiner(ctx, s.state.combinerSamples); err != nil && !errors.Is(err, domain.ErrInsufficientHistory) {
			s.log.Warn().Err(err).Msg("Combiner training failed")
		}
	}
	return nil
}

func skippable(err error) bool {
	return errors.Is(err, domain.ErrInsufficientHistory) || errors.Is(err, domain.ErrModelNotTrained)
}

// forecastAndTrade predicts, optimises and executes. A day on which no model
// can forecast the market trades nothing.
func (s *Simulation) forecastAndTrade(d time.Time, econ domain.EconomicContext, closes map[string]float64) error {
	sc := s.scenario
	p := s.state.Portfolio

	mres, err := s.forecaster.PredictMarket(s.state.History[sc.MarketSymbol], econ, sc.HorizonDays)
	if err != nil {
		if skippable(err) {
			return nil
		}
		return fmt.Errorf("failed to forecast market: %w", err)
	}
	market := mres.Prediction

	factors := make(map[string]float64, len(econ.Indicators)+1)
	for k, v := range econ.Indicators {
		factors[k] = v
	}
	factors[domain.FactorMarketReturn] = prediction.PerPeriodReturn(market.ExpectedReturn, market.HorizonDays)

	securities := map[string]domain.SecurityPrediction{}
	pending := pendingForecast{
		madeOn:      d,
		maturesOn:   d.AddDate(0, 0, sc.HorizonDays),
		marketStart: closes[sc.MarketSymbol],
		market:      market.Inputs,
		securities:  map[string]pendingSecurity{},
	}
	for _, sym := range sc.Symbols {
		price, ok := closes[sym]
		if !ok {
			continue
		}
		res, err := s.forecaster.PredictSecurity(sym, domain.Closes(s.state.History[sym]), factors, sc.HorizonDays)
		if err != nil {
			if skippable(err) {
				continue
			}
			return fmt.Errorf("failed to forecast %s: %w", sym, err)
		}
		securities[sym] = res.Prediction
		pending.securities[sym] = pendingSecurity{start: price, inputs: res.Prediction.Inputs}
	}

	if len(p.Positions) > 0 {
		pres, err := s.forecaster.PredictPortfolio(p, market, sc.HorizonDays)
		switch {
		case err == nil:
			pending.portfolio = pres.Prediction.Inputs
		case !skippable(err):
			return fmt.Errorf("failed to forecast portfolio: %w", err)
		}
	}
	pending.holdings = make(map[string]float64, len(p.Positions))
	for _, pos := range p.Positions {
		pending.holdings[pos.Symbol] = pos.Quantity
	}
	pending.cash = p.Cash
	pending.value = p.TotalValue
	if p.TotalValue > 0 {
		pending.exposure = p.InvestedValue() / p.TotalValue
	}
	s.state.pending = append(s.state.pending, pending)

	if len(securities) == 0 {
		return nil
	}

	plan, err := s.optimizer.Optimize(optimization.Input{
		Portfolio:  p,
		Market:     market,
		Securities: securities,
		AsOf:       d,
	}, sc.Profiles)
	if err != nil {
		return fmt.Errorf("failed to optimise: %w", err)
	}

	trigger := s.triggers.ShouldRebalance(p, plan.TargetWeights, d, s.state.LastRebalance)
	if !trigger.ShouldRebalance || len(plan.Rebalancing.Actions) == 0 {
		return nil
	}

	trades, err := s.executor.Execute(p, plan.Rebalancing.Actions, closes, d)
	if err != nil {
		return err
	}
	if len(trades) > 0 {
		s.state.Trades = append(s.state.Trades, trades...)
		s.state.LastRebalance = d
		s.syncPositions()
		s.log.Debug().Time("date", d).Int("trades", len(trades)).Str("reason", trigger.Reason).Msg("Rebalanced")
	}
	return nil
}

// recordPerformance appends today's equity sample and benchmark return
func (s *Simulation) recordPerformance(d time.Time, closes map[string]float64) {
	p := s.state.Portfolio
	sample := domain.PerformanceMetric{Date: d, Value: p.TotalValue}

	n := len(s.state.Equity)
	if n > 0 {
		sample.Return = formulas.SimpleReturn(s.state.Equity[n-1].Value, p.TotalValue)
	}
	s.state.Equity = append(s.state.Equity, sample)

	benchmark := 0.0
	if now, ok := closes[s.scenario.MarketSymbol]; ok {
		if s.state.lastBenchmark > 0 {
			benchmark = formulas.SimpleReturn(s.state.lastBenchmark, now)
		}
		s.state.lastBenchmark = now
	}
	if n > 0 {
		s.state.Benchmark = append(s.state.Benchmark, benchmark)
	}

	returns := equityReturns(s.state.Equity)
	last := &s.state.Equity[len(s.state.Equity)-1]
	if len(returns) > 1 {
		last.Volatility = formulas.AnnualizedVolatility(returns)
		last.Sharpe = formulas.DerefOr(formulas.CalculateSharpeRatio(returns, s.scenario.RiskFreeRate, formulas.TradingDaysPerYear), 0)
		last.Sortino = formulas.DerefOr(formulas.CalculateSortinoRatio(returns, s.scenario.RiskFreeRate, 0, formulas.TradingDaysPerYear), 0)
	}
}

// equityReturns skips the first sample, which has no prior value
func equityReturns(equity []domain.PerformanceMetric) []float64 {
	if len(equity) < 2 {
		return nil
	}
	out := make([]float64, 0, len(equity)-1)
	for _, m := range equity[1:] {
		out = append(out, m.Return)
	}
	return out
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
