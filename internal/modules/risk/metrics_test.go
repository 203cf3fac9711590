package risk

import (
	"testing"

	"github.com/aristath/foresight/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMeasure(t *testing.T) {
	returns := []float64{0.01, -0.02, 0.015, -0.005, 0.02, -0.03, 0.01, 0.005, -0.01, 0.012}
	benchmark := make([]float64, len(returns))
	for i, r := range returns {
		benchmark[i] = r / 2
	}

	m := Measure(returns, benchmark, 0.02)
	assert.Equal(t, 10, m.Observations)
	assert.Equal(t, -0.03, m.VaR95)
	assert.Equal(t, -0.03, m.CVaR95)
	assert.Greater(t, m.Volatility, 0.0)
	assert.Greater(t, m.MaxDrawdown, 0.0)
	require.NotNil(t, m.Sharpe)
	require.NotNil(t, m.Beta)
	assert.InDelta(t, 2.0, *m.Beta, 1e-9)
}

func TestMeasure_Degenerate(t *testing.T) {
	tests := []struct {
		name       string
		returns    []float64
		benchmark  []float64
		wantSharpe bool
	}{
		{"empty", nil, nil, false},
		{"single return", []float64{0.01}, []float64{0.01}, false},
		{"flat benchmark", []float64{0.01, 0.02, 0.03}, []float64{0, 0, 0}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Measure(tt.returns, tt.benchmark, 0)
			assert.Nil(t, m.Beta)
			assert.Equal(t, tt.wantSharpe, m.Sharpe != nil)
		})
	}
}

func TestPortfolioReturns(t *testing.T) {
	p := domain.NewPortfolio("p", 0)
	p.Positions = []domain.Position{
		{SecurityInfo: domain.SecurityInfo{Symbol: "A"}, Quantity: 1, CurrentPrice: 110,
			PriceHistory: []domain.PricePoint{{Price: 100}, {Price: 110}}},
		{SecurityInfo: domain.SecurityInfo{Symbol: "B"}, Quantity: 1, CurrentPrice: 110,
			PriceHistory: []domain.PricePoint{{Price: 90}, {Price: 100}, {Price: 110}}},
	}
	p.Revalue()

	got := PortfolioReturns(p)
	assert.Nil(t, got, "one common return is not a series")

	p.Positions[0].PriceHistory = []domain.PricePoint{{Price: 100}, {Price: 100}, {Price: 110}}
	got = PortfolioReturns(p)
	require.Len(t, got, 2)
	assert.InDelta(t, 0.5*0+0.5*(100.0/90-1), got[0], 1e-12)
	assert.InDelta(t, 0.5*0.1+0.5*0.1, got[1], 1e-12)

	assert.Nil(t, PortfolioReturns(domain.NewPortfolio("empty", 100)))
}
