// Package planning assembles live forecasting and optimisation inputs from
// the data providers and runs them for a given date.
package planning

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/foresight/internal/domain"
	"github.com/aristath/foresight/internal/modules/ensemble"
	"github.com/aristath/foresight/internal/modules/optimization"
	"github.com/aristath/foresight/internal/modules/prediction"
	"github.com/aristath/foresight/pkg/formulas"
	"github.com/rs/zerolog"
)

// Config holds the defaults applied to every request
type Config struct {
	MarketSymbol string
	LookbackDays int
	HorizonDays  int
	Profiles     optimization.Profiles
}

// DefaultConfig uses a one-year lookback and a five-day horizon
func DefaultConfig(marketSymbol string) Config {
	return Config{
		MarketSymbol: marketSymbol,
		LookbackDays: 365,
		HorizonDays:  5,
		Profiles:     optimization.DefaultProfiles(),
	}
}

// PortfolioForecast bundles the forecasts a plan is built from
type PortfolioForecast struct {
	Market     domain.MarketPrediction              `json:"market"`
	Securities map[string]domain.SecurityPrediction `json:"securities"`
	Portfolio  domain.PortfolioPredictionResult     `json:"portfolio"`
}

// PlanResult is an optimisation plan with the forecasts behind it
type PlanResult struct {
	PortfolioID string             `json:"portfolio_id"`
	AsOf        time.Time          `json:"as_of"`
	Forecast    *PortfolioForecast `json:"forecast"`
	Plan        *optimization.Plan `json:"plan"`
}

// Service runs predictMarket, predictSecurity, predictPortfolio and optimize
// against live provider data.
type Service struct {
	market     domain.MarketDataProvider
	economic   domain.EconomicContextProvider
	portfolios domain.PortfolioRepository
	forecaster *ensemble.Service
	optimizer  *optimization.Optimizer
	features   prediction.FeatureBuilder
	cfg        Config
	log        zerolog.Logger
}

// NewService creates a planning service. economic may be nil.
func NewService(
	market domain.MarketDataProvider,
	economic domain.EconomicContextProvider,
	portfolios domain.PortfolioRepository,
	forecaster *ensemble.Service,
	optimizer *optimization.Optimizer,
	features prediction.FeatureBuilder,
	cfg Config,
	log zerolog.Logger,
) *Service {
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = 365
	}
	if cfg.HorizonDays <= 0 {
		cfg.HorizonDays = 5
	}
	return &Service{
		market:     market,
		economic:   economic,
		portfolios: portfolios,
		forecaster: forecaster,
		optimizer:  optimizer,
		features:   features,
		cfg:        cfg,
		log:        log.With().Str("service", "planning").Logger(),
	}
}

// Config returns the service defaults
func (s *Service) Config() Config {
	return s.cfg
}

func (s *Service) horizon(h int) int {
	if h <= 0 {
		return s.cfg.HorizonDays
	}
	return h
}

func (s *Service) history(ctx context.Context, symbol string, date time.Time) ([]domain.Bar, error) {
	bars, err := s.market.History(ctx, symbol, date.AddDate(0, 0, -s.cfg.LookbackDays), date)
	if err != nil {
		return nil, fmt.Errorf("failed to load history of %s: %w", symbol, err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("no bars for %s up to %s: %w", symbol, date.Format("2006-01-02"), domain.ErrDataUnavailable)
	}
	return bars, nil
}

// economicContext returns an empty context when no indicators are published
func (s *Service) economicContext(ctx context.Context, date time.Time) (domain.EconomicContext, error) {
	if s.economic == nil {
		return domain.EconomicContext{Date: date}, nil
	}
	econ, err := s.economic.Context(ctx, date)
	if errors.Is(err, domain.ErrDataUnavailable) {
		return domain.EconomicContext{Date: date}, nil
	}
	if err != nil {
		return domain.EconomicContext{}, fmt.Errorf("failed to load economic context: %w", err)
	}
	return econ, nil
}

// factors merges the economic indicators with the market forecast's
// per-period return.
func factors(econ domain.EconomicContext, market domain.MarketPrediction) map[string]float64 {
	out := make(map[string]float64, len(econ.Indicators)+1)
	for k, v := range econ.Indicators {
		out[k] = v
	}
	out[domain.FactorMarketReturn] = prediction.PerPeriodReturn(market.ExpectedReturn, market.HorizonDays)
	return out
}

// PredictMarket forecasts the market symbol as of date
func (s *Service) PredictMarket(ctx context.Context, date time.Time, horizon int) (domain.MarketPredictionResult, error) {
	bars, err := s.history(ctx, s.cfg.MarketSymbol, date)
	if err != nil {
		return domain.MarketPredictionResult{}, err
	}
	econ, err := s.economicContext(ctx, date)
	if err != nil {
		return domain.MarketPredictionResult{}, err
	}
	return s.forecaster.PredictMarket(bars, econ, s.horizon(horizon))
}

// PredictSecurity forecasts symbol as of date, conditioning on the market
// forecast when one is available.
func (s *Service) PredictSecurity(ctx context.Context, symbol string, date time.Time, horizon int) (domain.SecurityPredictionResult, error) {
	if symbol == "" {
		return domain.SecurityPredictionResult{}, domain.NewValidationError(domain.ErrEmptySymbol, "symbol", "symbol is required")
	}
	h := s.horizon(horizon)
	bars, err := s.history(ctx, symbol, date)
	if err != nil {
		return domain.SecurityPredictionResult{}, err
	}
	econ, err := s.economicContext(ctx, date)
	if err != nil {
		return domain.SecurityPredictionResult{}, err
	}
	f := econ.Indicators
	if market, err := s.PredictMarket(ctx, date, h); err == nil {
		f = factors(econ, market.Prediction)
	} else {
		s.log.Debug().Err(err).Msg("Market forecast unavailable, using economic factors only")
	}
	return s.forecaster.PredictSecurity(symbol, domain.Closes(bars), f, h)
}

// loadPortfolio reads the stored portfolio and attaches price history up to
// date. Positions without bars keep their stored history.
func (s *Service) loadPortfolio(ctx context.Context, id string, date time.Time) (*domain.Portfolio, error) {
	p, err := s.portfolios.GetPortfolio(ctx, id)
	if err != nil {
		return nil, err
	}
	for i := range p.Positions {
		pos := &p.Positions[i]
		bars, err := s.history(ctx, pos.Symbol, date)
		if errors.Is(err, domain.ErrDataUnavailable) {
			continue
		}
		if err != nil {
			return nil, err
		}
		pos.PriceHistory = pos.PriceHistory[:0]
		for _, b := range bars {
			pos.PriceHistory = append(pos.PriceHistory, domain.PricePoint{Date: b.Date, Price: b.Close})
		}
		pos.CurrentPrice = bars[len(bars)-1].Close
	}
	p.Revalue()
	return p, nil
}

// ForecastPortfolio forecasts the market, every held or catalogued symbol
// and the portfolio itself. Symbols no model can forecast are left out.
func (s *Service) ForecastPortfolio(ctx context.Context, id string, date time.Time, horizon int) (*PortfolioForecast, *domain.Portfolio, error) {
	h := s.horizon(horizon)
	p, err := s.loadPortfolio(ctx, id, date)
	if err != nil {
		return nil, nil, err
	}
	mres, err := s.PredictMarket(ctx, date, h)
	if err != nil {
		return nil, nil, err
	}
	econ, err := s.economicContext(ctx, date)
	if err != nil {
		return nil, nil, err
	}
	f := factors(econ, mres.Prediction)

	symbols := map[string]struct{}{}
	for _, sym := range p.Symbols() {
		symbols[sym] = struct{}{}
	}
	for sym := range p.Catalog {
		symbols[sym] = struct{}{}
	}

	out := &PortfolioForecast{Market: mres.Prediction, Securities: map[string]domain.SecurityPrediction{}}
	for _, sym := range formulas.SortedKeys(symbols) {
		bars, err := s.history(ctx, sym, date)
		if errors.Is(err, domain.ErrDataUnavailable) {
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		res, err := s.forecaster.PredictSecurity(sym, domain.Closes(bars), f, h)
		if err != nil {
			if skippable(err) {
				continue
			}
			return nil, nil, err
		}
		out.Securities[sym] = res.Prediction
	}

	if out.Portfolio, err = s.forecaster.PredictPortfolio(p, mres.Prediction, h); err != nil && !skippable(err) {
		return nil, nil, err
	}
	return out, p, nil
}

// Optimize builds a rebalancing plan for the stored portfolio. profiles
// falls back to the configured defaults when nil.
func (s *Service) Optimize(ctx context.Context, id string, date time.Time, horizon int, profiles *optimization.Profiles) (*PlanResult, error) {
	forecast, p, err := s.ForecastPortfolio(ctx, id, date, horizon)
	if err != nil {
		return nil, err
	}
	prof := s.cfg.Profiles
	if profiles != nil {
		prof = *profiles
	}
	plan, err := s.optimizer.Optimize(optimization.Input{
		Portfolio:  p,
		Market:     forecast.Market,
		Securities: forecast.Securities,
		AsOf:       date,
	}, prof)
	if err != nil {
		return nil, err
	}
	s.log.Info().
		Str("portfolio", id).
		Int("actions", len(plan.Rebalancing.Actions)).
		Msg("Plan created")
	return &PlanResult{PortfolioID: id, AsOf: date, Forecast: forecast, Plan: plan}, nil
}

// Train fits the learned models on labelled windows of every symbol's
// history up to date. Labels never extend past date.
func (s *Service) Train(ctx context.Context, symbols []string, date time.Time) (int, error) {
	econ, err := s.economicContext(ctx, date)
	if err != nil {
		return 0, err
	}
	var samples []prediction.TrainingSample
	for _, sym := range symbols {
		bars, err := s.history(ctx, sym, date)
		if errors.Is(err, domain.ErrDataUnavailable) {
			continue
		}
		if err != nil {
			return 0, err
		}
		dates := make([]time.Time, len(bars))
		for i, b := range bars {
			dates[i] = b.Date
		}
		samples = append(samples, prediction.BuildSamples(sym, dates, domain.Closes(bars), econ.Indicators,
			s.cfg.HorizonDays, s.features.RequiredHistory(), 1)...)
	}
	if err := s.forecaster.Train(ctx, prediction.TrainingData{Samples: samples}); err != nil {
		return 0, err
	}
	s.log.Info().Int("samples", len(samples)).Int("symbols", len(symbols)).Msg("Models trained")
	return len(samples), nil
}

func skippable(err error) bool {
	return errors.Is(err, domain.ErrInsufficientHistory) || errors.Is(err, domain.ErrModelNotTrained)
}
