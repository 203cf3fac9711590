package ensemble

import (
	"testing"

	"github.com/aristath/foresight/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func allMetrics(f1, conf [3]float64) map[domain.ModelType]domain.ModelPerformanceMetrics {
	out := map[domain.ModelType]domain.ModelPerformanceMetrics{}
	for i, m := range domain.AllModelTypes {
		out[m] = domain.ModelPerformanceMetrics{ModelType: m, F1: f1[i], Confidence: conf[i]}
	}
	return out
}

func sum(w Weights) float64 {
	s := 0.0
	for _, v := range w {
		s += v
	}
	return s
}

func TestWeightCalculator_EveryStrategySumsToOne(t *testing.T) {
	strategies := []domain.ModelWeightingStrategy{
		domain.WeightingEqual,
		domain.WeightingPerformance,
		domain.WeightingConfidence,
		domain.WeightingMarketCondition,
		domain.WeightingVolatility,
	}
	contexts := []map[string]float64{
		nil,
		{domain.IndicatorVolatility: 0.05, domain.IndicatorTrendStrength: 0.4},
		{domain.IndicatorVolatility: 0.2},
		{domain.IndicatorVolatility: 0.9, domain.IndicatorTrendStrength: -2},
	}
	inputs := []map[domain.ModelType]domain.ModelPerformanceMetrics{
		allMetrics([3]float64{0.7, 0.5, 0.2}, [3]float64{0.9, 0.6, 0.3}),
		allMetrics([3]float64{0, 0, 0}, [3]float64{0, 0, 0}),
		{domain.ModelStatistical: {F1: 0.4, Confidence: 0.4}},
		{domain.ModelTrendFollowing: {F1: 0.4}, domain.ModelLearnedRegression: {Confidence: 0.8}},
	}
	for _, s := range strategies {
		calc := NewWeightCalculator(s, zerolog.Nop())
		for _, ctx := range contexts {
			for _, in := range inputs {
				w := calc.Calculate(in, domain.EconomicContext{Indicators: ctx})
				assert.InDelta(t, 1.0, sum(w), 1e-9, "strategy %s", s)
				assert.Len(t, w, len(in))
				for _, v := range w {
					assert.GreaterOrEqual(t, v, 0.0)
				}
			}
		}
	}
}

func TestWeightCalculator_ZeroTotalFallsBackToEqual(t *testing.T) {
	calc := NewWeightCalculator(domain.WeightingPerformance, zerolog.Nop())
	w := calc.Calculate(allMetrics([3]float64{}, [3]float64{}), domain.EconomicContext{})
	for _, m := range domain.AllModelTypes {
		assert.InDelta(t, 1.0/3.0, w[m], 1e-12)
	}
}

func TestWeightCalculator_PerformanceProportionalToF1(t *testing.T) {
	calc := NewWeightCalculator(domain.WeightingPerformance, zerolog.Nop())
	w := calc.Calculate(allMetrics([3]float64{0.6, 0.3, 0.1}, [3]float64{}), domain.EconomicContext{})
	assert.InDelta(t, 0.6, w[domain.ModelStatistical], 1e-12)
	assert.InDelta(t, 0.3, w[domain.ModelTrendFollowing], 1e-12)
	assert.InDelta(t, 0.1, w[domain.ModelLearnedRegression], 1e-12)
}

func TestWeightCalculator_MarketCondition(t *testing.T) {
	calc := NewWeightCalculator(domain.WeightingMarketCondition, zerolog.Nop())
	in := allMetrics([3]float64{}, [3]float64{})

	calm := calc.Calculate(in, domain.EconomicContext{})
	assert.InDelta(t, 0.4, calm[domain.ModelStatistical], 1e-12)
	assert.InDelta(t, 0.3, calm[domain.ModelTrendFollowing], 1e-12)

	stormy := calc.Calculate(in, domain.EconomicContext{Indicators: map[string]float64{domain.IndicatorVolatility: 0.5}})
	assert.Greater(t, stormy[domain.ModelStatistical], calm[domain.ModelStatistical])
	assert.Less(t, stormy[domain.ModelLearnedRegression], calm[domain.ModelLearnedRegression])

	trending := calc.Calculate(in, domain.EconomicContext{Indicators: map[string]float64{domain.IndicatorTrendStrength: 0.8}})
	assert.Greater(t, trending[domain.ModelTrendFollowing], calm[domain.ModelTrendFollowing])
}

func TestWeightCalculator_Volatility(t *testing.T) {
	calc := NewWeightCalculator(domain.WeightingVolatility, zerolog.Nop())
	in := allMetrics([3]float64{}, [3]float64{})

	low := calc.Calculate(in, domain.EconomicContext{Indicators: map[string]float64{domain.IndicatorVolatility: 0.1}})
	assert.InDelta(t, 0.5, low[domain.ModelTrendFollowing], 1e-12)

	high := calc.Calculate(in, domain.EconomicContext{Indicators: map[string]float64{domain.IndicatorVolatility: 0.4}})
	assert.InDelta(t, 0.5, high[domain.ModelStatistical], 1e-12)
	assert.InDelta(t, 0.2, high[domain.ModelTrendFollowing], 1e-12)

	mid := calc.Calculate(in, domain.EconomicContext{Indicators: map[string]float64{domain.IndicatorVolatility: 0.2}})
	assert.InDelta(t, 1.0/3.0, mid[domain.ModelLearnedRegression], 1e-12)
}
