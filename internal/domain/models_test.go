package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day0 = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

func TestPortfolio_ApplyTransaction(t *testing.T) {
	p := NewPortfolio("p1", 10_000)
	p.Catalog["AAPL"] = SecurityInfo{Symbol: "AAPL", AssetClass: "equities", Sector: "tech"}

	require.NoError(t, p.ApplyTransaction(Transaction{Type: TransactionBuy, Symbol: "AAPL", Quantity: 10, Price: 100, Fee: 1, Timestamp: day0}))
	pos := p.Position("AAPL")
	require.NotNil(t, pos)
	assert.Equal(t, "tech", pos.Sector)
	assert.InDelta(t, 8_999, p.Cash, 1e-9)
	assert.InDelta(t, 9_999, p.TotalValue, 1e-9)

	require.NoError(t, p.ApplyTransaction(Transaction{Type: TransactionBuy, Symbol: "AAPL", Quantity: 10, Price: 120, Timestamp: day0}))
	assert.InDelta(t, 110, p.Position("AAPL").AverageCost, 1e-9)

	require.NoError(t, p.ApplyTransaction(Transaction{Type: TransactionSplit, Symbol: "AAPL", Quantity: 2, Timestamp: day0}))
	assert.InDelta(t, 40, p.Position("AAPL").Quantity, 1e-9)
	assert.InDelta(t, 55, p.Position("AAPL").AverageCost, 1e-9)

	require.NoError(t, p.ApplyTransaction(Transaction{Type: TransactionDividend, Symbol: "AAPL", Quantity: 1, Price: 50, Timestamp: day0}))
	require.NoError(t, p.ApplyTransaction(Transaction{Type: TransactionFee, Fee: 5, Timestamp: day0}))

	require.NoError(t, p.ApplyTransaction(Transaction{Type: TransactionSell, Symbol: "AAPL", Quantity: 40, Price: 60, Timestamp: day0}))
	assert.Nil(t, p.Position("AAPL"), "position removed when quantity reaches zero")
	assert.Len(t, p.Transactions, 6)
	assert.InDelta(t, p.Cash, p.TotalValue, 1e-9)
}

func TestPortfolio_ApplyTransaction_Rejects(t *testing.T) {
	tests := []struct {
		name string
		tx   Transaction
		kind error
	}{
		{"empty symbol", Transaction{Type: TransactionBuy, Quantity: 1, Price: 1}, ErrEmptySymbol},
		{"oversell", Transaction{Type: TransactionSell, Symbol: "X", Quantity: 5, Price: 1}, ErrInvalidTransaction},
		{"negative quantity", Transaction{Type: TransactionBuy, Symbol: "X", Quantity: -1, Price: 1}, ErrInvalidTransaction},
		{"unknown type", Transaction{Type: "SWAP", Symbol: "X"}, ErrInvalidTransaction},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPortfolio("p", 100)
			require.NoError(t, p.ApplyTransaction(Transaction{Type: TransactionBuy, Symbol: "X", Quantity: 1, Price: 10}))
			err := p.ApplyTransaction(tt.tx)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.kind))
			assert.True(t, IsValidation(err))
			assert.Len(t, p.Transactions, 1, "rejected transaction is not recorded")
		})
	}
}

func TestPortfolio_WeightsAndClone(t *testing.T) {
	p := NewPortfolio("p", 0)
	p.Catalog["EQ"] = SecurityInfo{AssetClass: "equities"}
	p.Catalog["BD"] = SecurityInfo{AssetClass: "bonds"}
	p.Cash = 1000
	require.NoError(t, p.ApplyTransaction(Transaction{Type: TransactionBuy, Symbol: "EQ", Quantity: 6, Price: 100}))
	require.NoError(t, p.ApplyTransaction(Transaction{Type: TransactionBuy, Symbol: "BD", Quantity: 4, Price: 100}))

	classes := p.AssetClassWeights()
	assert.InDelta(t, 0.6, classes["equities"], 1e-9)
	assert.InDelta(t, 0.4, classes["bonds"], 1e-9)

	c := p.Clone()
	c.UpdatePrice("EQ", day0, 200)
	c.Revalue()
	assert.InDelta(t, 100, p.Position("EQ").CurrentPrice, 1e-9, "clone must not share state")
	assert.Empty(t, p.Position("EQ").PriceHistory)
	assert.Equal(t, []string{"BD", "EQ"}, p.Symbols())
}

func TestPortfolio_Validate(t *testing.T) {
	var p *Portfolio
	assert.ErrorIs(t, p.Validate(), ErrNilPortfolio)
	assert.NoError(t, NewPortfolio("ok", 1).Validate())
}

func TestTransactionCostProfile_ImpactMultiplier(t *testing.T) {
	c := DefaultTransactionCostProfile()
	assert.Equal(t, 1.0, c.ImpactMultiplier(5_000))
	assert.Equal(t, 1.5, c.ImpactMultiplier(50_000))
	assert.Equal(t, 2.0, c.ImpactMultiplier(1_000_000))
	assert.Equal(t, 3.0, c.ImpactMultiplier(5_000_000))
	assert.InDelta(t, 0.0010+0.0005+0.0002, c.CostRate(InstrumentEquity, 1_000), 1e-12)
	assert.Equal(t, c.Schedule(InstrumentEquity), c.Schedule("crypto"))
}

func TestRiskLevelFromVolatility(t *testing.T) {
	assert.Equal(t, RiskLow, RiskLevelFromVolatility(0.01))
	assert.Equal(t, RiskMedium, RiskLevelFromVolatility(0.05))
	assert.Equal(t, RiskHigh, RiskLevelFromVolatility(0.10))
}

func TestParseStrategies(t *testing.T) {
	s, err := ParseWeightingStrategy("volatility_based")
	require.NoError(t, err)
	assert.Equal(t, WeightingVolatility, s)
	_, err = ParseWeightingStrategy("nope")
	assert.ErrorIs(t, err, ErrInvalidConfig)

	r, err := ParseRebalancingStrategy("")
	require.NoError(t, err)
	assert.Equal(t, RebalanceThresholdBased, r)
}

func TestPortfolio_FillsKeepMark(t *testing.T) {
	tests := []struct {
		name     string
		tx       Transaction
		wantCash float64
		wantQty  float64
	}{
		{"partial sell below mark", Transaction{Type: TransactionSell, Symbol: "EQ", Quantity: 4, Price: 99.5}, 9_000 + 4*99.5, 6},
		{"top-up buy above mark", Transaction{Type: TransactionBuy, Symbol: "EQ", Quantity: 2, Price: 100.5}, 9_000 - 2*100.5, 12},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPortfolio("p", 10_000)
			require.NoError(t, p.ApplyTransaction(Transaction{Type: TransactionBuy, Symbol: "EQ", Quantity: 10, Price: 100}))
			p.UpdatePrice("EQ", day0, 100)
			p.Revalue()

			require.NoError(t, p.ApplyTransaction(tt.tx))
			pos := p.Position("EQ")
			require.NotNil(t, pos)
			assert.InDelta(t, 100, pos.CurrentPrice, 1e-9, "mark stays at the last close")
			assert.InDelta(t, tt.wantQty, pos.Quantity, 1e-9)
			assert.InDelta(t, tt.wantCash, p.Cash, 1e-9)
			assert.InDelta(t, tt.wantCash+tt.wantQty*100, p.TotalValue, 1e-9)
		})
	}

	fresh := NewPortfolio("p", 1_000)
	require.NoError(t, fresh.ApplyTransaction(Transaction{Type: TransactionBuy, Symbol: "NEW", Quantity: 1, Price: 42}))
	assert.InDelta(t, 42, fresh.Position("NEW").CurrentPrice, 1e-9, "a new position is marked at its fill")
}
