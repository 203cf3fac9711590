package backtesting

import (
	"testing"

	"github.com/aristath/foresight/internal/domain"
	testutil "github.com/aristath/foresight/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExecutor(minTrade float64) *Executor {
	return NewExecutor("exec", domain.DefaultTransactionCostProfile(), minTrade, zerolog.Nop())
}

func TestExecutor_BuyAppliesSlippageFeeAndRounding(t *testing.T) {
	p := domain.NewPortfolio("p", 10_000)
	actions := []domain.Action{{Key: "AAA", Side: domain.SideBuy, EstimatedAmount: 1_000}}

	trades, err := newTestExecutor(100).Execute(p, actions, map[string]float64{"AAA": 100}, testutil.Day0)
	require.NoError(t, err)
	require.Len(t, trades, 1)

	tr := trades[0]
	assert.Equal(t, 100.05, tr.Price)
	assert.Equal(t, 9.995002, tr.Quantity)
	assert.Equal(t, 1000.0, tr.Notional)
	// 0.10% fee + 0.02% impact on the first bucket + 1.00 commission
	assert.Equal(t, 2.2, tr.Fee)
	assert.InDelta(t, 10_000-9.995002*100.05-2.2, p.Cash, 1e-9)
	require.NotNil(t, p.Position("AAA"))
	assert.Equal(t, 9.995002, p.Position("AAA").Quantity)
}

func TestExecutor_DropsTradesBelowMinimum(t *testing.T) {
	p := domain.NewPortfolio("p", 10_000)
	actions := []domain.Action{{Key: "AAA", Side: domain.SideBuy, EstimatedAmount: 50}}

	trades, err := newTestExecutor(100).Execute(p, actions, map[string]float64{"AAA": 100}, testutil.Day0)
	require.NoError(t, err)
	assert.Empty(t, trades)
	assert.Equal(t, 10_000.0, p.Cash)
	assert.Empty(t, p.Transactions)
}

func TestExecutor_BuyIsCappedByCash(t *testing.T) {
	p := domain.NewPortfolio("p", 500)
	actions := []domain.Action{{Key: "AAA", Side: domain.SideBuy, EstimatedAmount: 5_000}}

	trades, err := newTestExecutor(100).Execute(p, actions, map[string]float64{"AAA": 10}, testutil.Day0)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.GreaterOrEqual(t, p.Cash, 0.0)
	assert.Less(t, trades[0].Notional, 500.0)
}

func TestExecutor_SellsBeforeBuysAndRealisesPnL(t *testing.T) {
	p := testutil.PortfolioWith("p", 0, map[string]float64{"AAA": 10}, map[string]float64{"AAA": 100}, 5)
	actions := []domain.Action{
		{Key: "BBB", Side: domain.SideBuy, EstimatedAmount: 500},
		{Key: "AAA", Side: domain.SideSell, EstimatedAmount: 5_000},
	}
	closes := map[string]float64{"AAA": 120, "BBB": 50}

	trades, err := newTestExecutor(100).Execute(p, actions, closes, testutil.Day0)
	require.NoError(t, err)
	require.Len(t, trades, 2)

	sell := trades[0]
	assert.Equal(t, domain.SideSell, sell.Side)
	assert.Equal(t, 10.0, sell.Quantity, "sell is capped by holdings")
	assert.Equal(t, 119.94, sell.Price)
	assert.InDelta(t, (119.94-100)*10-sell.Fee, sell.RealizedPnL, 0.006)
	assert.Nil(t, p.Position("AAA"))

	assert.Equal(t, domain.SideBuy, trades[1].Side)
	assert.NotNil(t, p.Position("BBB"))
}

func TestExecutor_SkipsSymbolsWithoutClose(t *testing.T) {
	p := domain.NewPortfolio("p", 10_000)
	actions := []domain.Action{{Key: "AAA", Side: domain.SideBuy, EstimatedAmount: 1_000}}

	trades, err := newTestExecutor(100).Execute(p, actions, map[string]float64{}, testutil.Day0)
	require.NoError(t, err)
	assert.Empty(t, trades)
}

func TestTradeID_IsStable(t *testing.T) {
	a := tradeID("s", testutil.Day0, "AAA", domain.SideBuy, 0)
	assert.Equal(t, a, tradeID("s", testutil.Day0, "AAA", domain.SideBuy, 0))
	assert.NotEqual(t, a, tradeID("s", testutil.Day0, "AAA", domain.SideBuy, 1))
	assert.NotEqual(t, a, tradeID("other", testutil.Day0, "AAA", domain.SideBuy, 0))
}
