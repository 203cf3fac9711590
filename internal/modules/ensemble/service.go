package ensemble

import (
	"context"
	"fmt"

	"github.com/aristath/foresight/internal/domain"
	"github.com/aristath/foresight/internal/modules/monitoring"
	"github.com/aristath/foresight/internal/modules/prediction"
	"github.com/rs/zerolog"
)

// Service exposes the forecasting operations and keeps the monitor in sync
// with every validation and training round.
type Service struct {
	predictor *Predictor
	monitor   *monitoring.Monitor
	log       zerolog.Logger
}

// NewService creates the forecasting service
func NewService(predictor *Predictor, monitor *monitoring.Monitor, log zerolog.Logger) *Service {
	return &Service{
		predictor: predictor,
		monitor:   monitor,
		log:       log.With().Str("service", "ensemble").Logger(),
	}
}

// NewDefaultService wires the three model variants, a ridge combiner and the
// given weighting strategy.
func NewDefaultService(cfg prediction.Config, strategy domain.ModelWeightingStrategy, monitor *monitoring.Monitor, log zerolog.Logger) *Service {
	predictor := NewPredictor(
		prediction.NewModels(cfg, log),
		NewWeightCalculator(strategy, log),
		NewCombiner(prediction.NewRidgeEstimator(cfg.RidgeLambda)),
		log,
	)
	return NewService(predictor, monitor, log)
}

// Predictor returns the underlying ensemble predictor
func (s *Service) Predictor() *Predictor {
	return s.predictor
}

// Monitor returns the model performance monitor
func (s *Service) Monitor() *monitoring.Monitor {
	return s.monitor
}

// PredictMarket forecasts the market from its bar history
func (s *Service) PredictMarket(history []domain.Bar, econ domain.EconomicContext, horizon int) (domain.MarketPredictionResult, error) {
	if len(history) == 0 {
		return domain.MarketPredictionResult{}, domain.InsufficientHistory("history", 0, 2)
	}
	return s.predictor.PredictMarket(history, econ, horizon)
}

// PredictSecurity forecasts one symbol
func (s *Service) PredictSecurity(symbol string, prices []float64, factors map[string]float64, horizon int) (domain.SecurityPredictionResult, error) {
	if symbol == "" {
		return domain.SecurityPredictionResult{}, domain.NewValidationError(domain.ErrEmptySymbol, "symbol", "symbol is required")
	}
	return s.predictor.PredictSecurity(symbol, prices, factors, horizon)
}

// PredictPortfolio forecasts a whole portfolio given a market forecast
func (s *Service) PredictPortfolio(p *domain.Portfolio, market domain.MarketPrediction, horizon int) (domain.PortfolioPredictionResult, error) {
	return s.predictor.PredictPortfolio(p, market, horizon)
}

// Validate scores matured predictions per model and pushes each model's
// refreshed metrics into the monitor. Models without sets are left alone.
func (s *Service) Validate(sets map[domain.ModelType][]prediction.ValidationSet) (map[domain.ModelType]domain.HealthStatus, error) {
	out := make(map[domain.ModelType]domain.HealthStatus, len(sets))
	for _, m := range s.predictor.Models() {
		modelSets := sets[m.Type()]
		if len(modelSets) == 0 {
			continue
		}
		if _, err := m.Validate(modelSets); err != nil {
			return out, fmt.Errorf("failed to validate %s: %w", m.Type(), err)
		}
		if s.monitor != nil {
			out[m.Type()] = s.monitor.UpdateMetrics(m.Metrics())
		}
	}
	return out, nil
}

// Train updates every model. A failure aborts this round only; callers own
// any retry policy.
func (s *Service) Train(ctx context.Context, data prediction.TrainingData) error {
	if err := s.predictor.Update(ctx, data); err != nil {
		return err
	}
	s.log.Debug().Int("samples", len(data.Samples)).Msg("Models trained")
	return nil
}

// TrainCombiner fits the regression combiner on matured portfolio forecasts
func (s *Service) TrainCombiner(ctx context.Context, samples []CombinerSample) (prediction.RegressionQuality, error) {
	if s.predictor.Combiner() == nil {
		return prediction.RegressionQuality{}, fmt.Errorf("ensemble has no combiner: %w", domain.ErrInvalidConfig)
	}
	return s.predictor.Combiner().Train(ctx, samples)
}
