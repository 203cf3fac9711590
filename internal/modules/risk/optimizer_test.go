package risk

import (
	"math"
	"testing"
	"time"

	"github.com/aristath/foresight/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildPortfolio(t *testing.T) *domain.Portfolio {
	t.Helper()
	p := domain.NewPortfolio("p", 10_000)
	require.NoError(t, p.ApplyTransaction(domain.Transaction{Type: domain.TransactionBuy, Symbol: "A", Quantity: 60, Price: 100}))
	require.NoError(t, p.ApplyTransaction(domain.Transaction{Type: domain.TransactionBuy, Symbol: "B", Quantity: 40, Price: 100}))
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 60; i++ {
		d := start.AddDate(0, 0, i)
		p.UpdatePrice("A", d, 100*(1+0.03*math.Sin(float64(i))))
		p.UpdatePrice("B", d, 100*(1+0.02*math.Sin(float64(i)+0.5)))
	}
	p.Revalue()
	return p
}

func TestOptimizer_TargetBelowCurrent(t *testing.T) {
	o := NewOptimizer(zerolog.Nop())
	p := buildPortfolio(t)
	market := domain.MarketPrediction{Prediction: domain.Prediction{Volatility: 0.01, RiskLevel: domain.RiskMedium}}

	for _, tol := range []float64{0, 10, 30, 50, 100} {
		res, err := o.Optimize(p, market, nil, domain.RiskProfile{RiskTolerance: tol})
		require.NoError(t, err)
		require.Greater(t, res.Current.TotalRisk, 0.0)
		assert.Less(t, res.Target.TotalRisk, res.Current.TotalRisk, "tolerance %.0f", tol)
		assert.Less(t, res.Target.PortfolioRisk, res.Current.PortfolioRisk)
	}
}

func TestOptimizer_RecommendationsInPriorityOrder(t *testing.T) {
	o := NewOptimizer(zerolog.Nop())
	res, err := o.Optimize(buildPortfolio(t), domain.MarketPrediction{}, nil, domain.RiskProfile{RiskTolerance: 20})
	require.NoError(t, err)
	require.NotEmpty(t, res.Recommendations)
	assert.Equal(t, "total", res.Recommendations[0].Component)
	for i := 1; i < len(res.Recommendations); i++ {
		assert.Greater(t, res.Recommendations[i].Priority, res.Recommendations[i-1].Priority)
	}
}

func TestOptimizer_Components(t *testing.T) {
	o := NewOptimizer(zerolog.Nop())
	p := buildPortfolio(t)
	a, err := o.Assess(p, domain.MarketPrediction{}, map[string]domain.SecurityPrediction{
		"A": {Prediction: domain.Prediction{Volatility: 0.02, RiskLevel: domain.RiskHigh}},
	})
	require.NoError(t, err)

	assert.InDelta(t, 0.02*math.Sqrt(252)*3*100, a.SecurityRisk["A"], 1e-9)
	assert.Greater(t, a.CorrelationRisk, 0.0, "both series share a sine driver")
	assert.LessOrEqual(t, a.PortfolioRisk, 100.0)
	expected := 0.4*a.PortfolioRisk + 0.2*a.MarketRisk + 0.2*a.CorrelationRisk + 0.2*a.ConcentrationRisk
	assert.InDelta(t, expected, a.TotalRisk, 1e-9)
}

func TestOptimizer_Validation(t *testing.T) {
	o := NewOptimizer(zerolog.Nop())
	_, err := o.Optimize(nil, domain.MarketPrediction{}, nil, domain.DefaultRiskProfile())
	assert.ErrorIs(t, err, domain.ErrNilPortfolio)
	_, err = o.Optimize(domain.NewPortfolio("p", 1), domain.MarketPrediction{}, nil, domain.RiskProfile{RiskTolerance: 120})
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestTargetScale(t *testing.T) {
	assert.Equal(t, 0.01, TargetScale(0))
	assert.Equal(t, 0.2, TargetScale(20))
	assert.Equal(t, 0.30, TargetScale(90))
}
