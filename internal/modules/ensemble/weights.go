// Package ensemble blends the prediction models into one forecast.
package ensemble

import (
	"math"
	"sort"

	"github.com/aristath/foresight/internal/domain"
	"github.com/rs/zerolog"
)

// Weights maps each model to its share of the ensemble; values sum to 1
type Weights map[domain.ModelType]float64

var marketConditionBase = Weights{
	domain.ModelStatistical:       0.4,
	domain.ModelTrendFollowing:    0.3,
	domain.ModelLearnedRegression: 0.3,
}

const (
	lowVolatility  = 0.15
	highVolatility = 0.30
)

// WeightCalculator derives ensemble weights under one strategy
type WeightCalculator struct {
	strategy domain.ModelWeightingStrategy
	log      zerolog.Logger
}

// NewWeightCalculator creates a calculator for strategy
func NewWeightCalculator(strategy domain.ModelWeightingStrategy, log zerolog.Logger) *WeightCalculator {
	if strategy == "" {
		strategy = domain.WeightingEqual
	}
	return &WeightCalculator{
		strategy: strategy,
		log:      log.With().Str("component", "ensemble_weights").Logger(),
	}
}

// Strategy returns the configured strategy
func (c *WeightCalculator) Strategy() domain.ModelWeightingStrategy {
	return c.strategy
}

// Calculate returns a weight per model present in metrics. The result always
// sums to 1; a zero total score falls back to equal weighting.
func (c *WeightCalculator) Calculate(metrics map[domain.ModelType]domain.ModelPerformanceMetrics, econ domain.EconomicContext) Weights {
	models := orderedModels(metrics)
	if len(models) == 0 {
		return Weights{}
	}

	raw := Weights{}
	switch c.strategy {
	case domain.WeightingPerformance:
		for _, m := range models {
			raw[m] = math.Max(0, metrics[m].F1)
		}
	case domain.WeightingConfidence:
		for _, m := range models {
			raw[m] = math.Max(0, metrics[m].Confidence)
		}
	case domain.WeightingMarketCondition:
		vol := econ.Value(domain.IndicatorVolatility)
		trend := math.Abs(econ.Value(domain.IndicatorTrendStrength))
		for _, m := range models {
			w := baseWeight(m, len(models))
			switch m {
			case domain.ModelStatistical:
				w *= 1 + vol
			case domain.ModelLearnedRegression:
				w *= math.Max(0.1, 1-vol)
			case domain.ModelTrendFollowing:
				w *= 1 + trend
			}
			raw[m] = w
		}
	case domain.WeightingVolatility:
		vol := econ.Value(domain.IndicatorVolatility)
		for _, m := range models {
			raw[m] = volatilityWeight(m, vol, len(models))
		}
	default:
		for _, m := range models {
			raw[m] = 1
		}
	}

	w := normalizeWeights(models, raw)
	c.log.Debug().
		Str("strategy", string(c.strategy)).
		Interface("weights", w).
		Msg("Ensemble weights calculated")
	return w
}

func baseWeight(m domain.ModelType, n int) float64 {
	if w, ok := marketConditionBase[m]; ok {
		return w
	}
	return 1 / float64(n)
}

func volatilityWeight(m domain.ModelType, vol float64, n int) float64 {
	switch {
	case vol < lowVolatility:
		switch m {
		case domain.ModelTrendFollowing:
			return 0.5
		case domain.ModelStatistical, domain.ModelLearnedRegression:
			return 0.25
		}
	case vol > highVolatility:
		switch m {
		case domain.ModelStatistical:
			return 0.5
		case domain.ModelTrendFollowing:
			return 0.2
		case domain.ModelLearnedRegression:
			return 0.3
		}
	}
	return 1 / float64(n)
}

func normalizeWeights(models []domain.ModelType, raw Weights) Weights {
	total := 0.0
	for _, m := range models {
		total += raw[m]
	}
	out := make(Weights, len(models))
	if total <= 0 || math.IsNaN(total) || math.IsInf(total, 0) {
		for _, m := range models {
			out[m] = 1 / float64(len(models))
		}
		return out
	}
	for _, m := range models {
		out[m] = raw[m] / total
	}
	return out
}

// orderedModels lists the keys of metrics in the fixed combination order,
// followed by any other model types.
func orderedModels[V any](metrics map[domain.ModelType]V) []domain.ModelType {
	out := make([]domain.ModelType, 0, len(metrics))
	seen := map[domain.ModelType]bool{}
	for _, m := range domain.AllModelTypes {
		if _, ok := metrics[m]; ok {
			out = append(out, m)
			seen[m] = true
		}
	}
	var rest []domain.ModelType
	for m := range metrics {
		if !seen[m] {
			rest = append(rest, m)
		}
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i] < rest[j] })
	return append(out, rest...)
}
