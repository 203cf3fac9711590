package prediction

import (
	"testing"

	"github.com/aristath/foresight/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrendFollowingModel_RequiresDoubleLongestWindow(t *testing.T) {
	m := NewTrendFollowingModel(Config{TrendWindows: []int{5, 10}}, nopLogger())
	assert.Equal(t, 20, m.RequiredHistory())

	_, err := m.PredictSecurity("X", trendingPrices(19, 100, 0.01), nil, 5)
	assert.ErrorIs(t, err, domain.ErrInsufficientHistory)

	_, err = m.PredictSecurity("X", trendingPrices(20, 100, 0.01), nil, 5)
	assert.NoError(t, err)
}

func TestTrendFollowingModel_Direction(t *testing.T) {
	m := NewTrendFollowingModel(DefaultConfig(), nopLogger())

	tests := []struct {
		name  string
		drift float64
		trend domain.TrendDirection
	}{
		{"uptrend", 0.003, domain.TrendUp},
		{"downtrend", -0.003, domain.TrendDown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := m.PredictMarket(barsFrom(trendingPrices(220, 100, tt.drift)), domain.EconomicContext{}, 10)
			require.NoError(t, err)
			p := res.Prediction
			assert.Equal(t, tt.trend, p.Trend)
			if tt.drift > 0 {
				assert.Greater(t, p.ExpectedReturn, 0.0)
				assert.Greater(t, p.TrendStrength, 0.0)
				assert.Greater(t, p.TechnicalScore, 0.5)
			} else {
				assert.Less(t, p.ExpectedReturn, 0.0)
				assert.Less(t, p.TechnicalScore, 0.5)
			}
			assert.InDelta(t, 1.0, res.Confidence/(1-minF(0.5, p.Volatility)), 1e-9, "all windows agree")
		})
	}
}

func TestTrendFollowingModel_Deterministic(t *testing.T) {
	m := NewTrendFollowingModel(DefaultConfig(), nopLogger())
	bars := barsFrom(trendingPrices(250, 100, 0.002))
	a, err := m.PredictMarket(bars, domain.EconomicContext{}, 5)
	require.NoError(t, err)
	b, err := m.PredictMarket(bars, domain.EconomicContext{}, 5)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
