// Package prediction implements the forecasting models. Every variant
// satisfies Model so the ensemble and the monitor stay variant-agnostic.
package prediction

import (
	"context"
	"sync"
	"time"

	"github.com/aristath/foresight/internal/domain"
	"github.com/rs/zerolog"
)

// Model is the contract shared by the Statistical, TrendFollowing and
// LearnedRegression variants.
type Model interface {
	Type() domain.ModelType
	PredictMarket(history []domain.Bar, econ domain.EconomicContext, horizon int) (domain.MarketPredictionResult, error)
	PredictSecurity(symbol string, prices []float64, factors map[string]float64, horizon int) (domain.SecurityPredictionResult, error)
	PredictPortfolio(portfolio *domain.Portfolio, market domain.MarketPrediction, horizon int) (domain.PortfolioPredictionResult, error)
	// Update trains or refreshes the model. Failures are returned, never retried.
	Update(ctx context.Context, data TrainingData) error
	// Validate scores past predictions against realised returns and returns
	// directional accuracy per prediction class.
	Validate(sets []ValidationSet) (map[domain.PredictionClass]float64, error)
	Metrics() domain.ModelPerformanceMetrics
}

// Config holds the tunables of all model variants
type Config struct {
	// AssumedMarketReturn is the per-period market return used by the
	// statistical beta/alpha estimate when no market factor is supplied.
	AssumedMarketReturn float64
	// TrendWindows are the short moving-average windows; each is compared
	// against a window of double length.
	TrendWindows []int
	// ReturnLags is the number of trailing returns fed to the learned model
	ReturnLags int

	RidgeLambda        float64
	MinTrainingSamples int
}

// DefaultConfig returns the production defaults
func DefaultConfig() Config {
	return Config{
		AssumedMarketReturn: 0.01,
		TrendWindows:        []int{10, 20, 50, 100},
		ReturnLags:          10,
		RidgeLambda:         1e-3,
		MinTrainingSamples:  20,
	}
}

// NewModels builds one instance of every variant in combination order
func NewModels(cfg Config, log zerolog.Logger) []Model {
	return []Model{
		NewStatisticalModel(cfg, log),
		NewTrendFollowingModel(cfg, log),
		NewLearnedRegressionModel(cfg, NewRidgeEstimator(cfg.RidgeLambda), log),
	}
}

// TrainingSample is one labelled observation: the price history visible at
// Date and the realised return over HorizonDays afterwards.
type TrainingSample struct {
	Date        time.Time
	Factors     map[string]float64
	Symbol      string
	Prices      []float64
	Target      float64
	HorizonDays int
}

// TrainingData is the input of Model.Update
type TrainingData struct {
	Samples []TrainingSample
}

// ValidationSet pairs predictions with realised returns for one class
type ValidationSet struct {
	AsOf        time.Time
	Class       domain.PredictionClass
	Predicted   []float64
	Actual      []float64
	Confidences []float64
}

// metricsState guards a model's current metrics
type metricsState struct {
	mu sync.RWMutex
	m  domain.ModelPerformanceMetrics
}

func newMetricsState(t domain.ModelType) *metricsState {
	return &metricsState{m: domain.ModelPerformanceMetrics{ModelType: t, Status: domain.HealthUnknown}}
}

func (s *metricsState) snapshot() domain.ModelPerformanceMetrics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.m
	if s.m.ValidationAccuracy != nil {
		out.ValidationAccuracy = make(map[domain.PredictionClass]float64, len(s.m.ValidationAccuracy))
		for k, v := range s.m.ValidationAccuracy {
			out.ValidationAccuracy[k] = v
		}
	}
	return out
}

func (s *metricsState) update(fn func(m *domain.ModelPerformanceMetrics)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.m)
}

func horizonOrDefault(h int) int {
	if h < 1 {
		return 1
	}
	return h
}

func closesOf(history []domain.Bar) []float64 {
	return domain.Closes(history)
}

// mergeFactors overlays economic indicators and extra factors into one map
func mergeFactors(econ domain.EconomicContext, extra map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(econ.Indicators)+len(extra))
	for k, v := range econ.Indicators {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
