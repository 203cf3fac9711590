package rebalancing

import (
	"testing"
	"time"

	"github.com/aristath/foresight/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func portfolioWith(t *testing.T, cash float64, buys map[string]float64) *domain.Portfolio {
	t.Helper()
	p := domain.NewPortfolio("p", cash)
	for _, sym := range []string{"A", "B"} {
		if qty, ok := buys[sym]; ok {
			require.NoError(t, p.ApplyTransaction(domain.Transaction{Type: domain.TransactionBuy, Symbol: sym, Quantity: qty, Price: 10}))
		}
	}
	return p
}

func TestTriggerChecker(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	last := now.AddDate(0, 0, -3)

	tests := []struct {
		name     string
		cfg      TriggerConfig
		cash     float64
		target   map[string]float64
		last     time.Time
		expected bool
	}{
		{"initial", DefaultTriggerConfig(), 1000, map[string]float64{"A": 0.5, "B": 0.5}, time.Time{}, true},
		{"drift", DefaultTriggerConfig(), 1000, map[string]float64{"A": 0.2, "B": 0.8}, last, true},
		{"no drift", DefaultTriggerConfig(), 1000, map[string]float64{"A": 0.5, "B": 0.5}, last, false},
		{"interval elapsed", TriggerConfig{Interval: 48 * time.Hour}, 1000, nil, last, true},
		{"interval pending", TriggerConfig{Interval: 7 * 24 * time.Hour}, 1000, map[string]float64{"A": 1}, last, false},
		{"cash accumulation", TriggerConfig{DriftThreshold: 0.5, CashThresholdMultiplier: 2, MinTradeSize: 100}, 1200, map[string]float64{"A": 0.4, "B": 0.4}, last, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := portfolioWith(t, tt.cash, map[string]float64{"A": 50, "B": 50})
			tc := NewTriggerChecker(tt.cfg, zerolog.Nop())
			res := tc.ShouldRebalance(p, tt.target, now, tt.last)
			assert.Equal(t, tt.expected, res.ShouldRebalance, res.Reason)
			assert.NotEmpty(t, res.Reason)
		})
	}
}
