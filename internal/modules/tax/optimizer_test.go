package tax

import (
	"testing"
	"time"

	"github.com/aristath/foresight/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var asOf = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

// fixture: OLD held two years with a gain, NEW bought last month with a gain
func fixture(t *testing.T) *domain.Portfolio {
	t.Helper()
	p := domain.NewPortfolio("p", 10_000)
	require.NoError(t, p.ApplyTransaction(domain.Transaction{
		Timestamp: asOf.AddDate(-2, 0, 0), Type: domain.TransactionBuy, Symbol: "OLD", Quantity: 10, Price: 100,
	}))
	require.NoError(t, p.ApplyTransaction(domain.Transaction{
		Timestamp: asOf.AddDate(0, -1, 0), Type: domain.TransactionBuy, Symbol: "NEW", Quantity: 10, Price: 100,
	}))
	require.NoError(t, p.ApplyTransaction(domain.Transaction{
		Timestamp: asOf.AddDate(0, -2, 0), Type: domain.TransactionDividend, Symbol: "OLD", Quantity: 1, Price: 50,
	}))
	p.UpdatePrice("OLD", asOf, 150)
	p.UpdatePrice("NEW", asOf, 120)
	p.Revalue()
	return p
}

func TestIncome(t *testing.T) {
	o := NewOptimizer(domain.DefaultTaxProfile(), zerolog.Nop())
	inc, err := o.Income(fixture(t), asOf)
	require.NoError(t, err)

	assert.InDelta(t, 500.0, inc.LongTermGains, 1e-9)
	assert.InDelta(t, 200.0, inc.ShortTermGains, 1e-9)
	assert.InDelta(t, 50.0, inc.Dividends, 1e-9)
	assert.InDelta(t, 8050*0.02, inc.Interest, 1e-9)
}

func TestEffectiveRate(t *testing.T) {
	o := NewOptimizer(domain.DefaultTaxProfile(), zerolog.Nop())
	assert.Equal(t, 0.0, o.EffectiveRate(IncomeComponents{}))
	assert.InDelta(t, 0.37, o.EffectiveRate(IncomeComponents{ShortTermGains: 100}), 1e-12)
	assert.InDelta(t, (100*0.37+100*0.20)/200, o.EffectiveRate(IncomeComponents{ShortTermGains: 100, LongTermGains: 100}), 1e-12)
	assert.Equal(t, 0.0, o.EffectiveRate(IncomeComponents{ShortTermGains: -100}), "losses are not income")
}

func TestAdjustWeights(t *testing.T) {
	o := NewOptimizer(domain.DefaultTaxProfile(), zerolog.Nop())
	p := fixture(t)

	got, err := o.AdjustWeights(p, map[string]float64{"OLD": 0.5, "NEW": 0.5}, asOf)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, got["OLD"]+got["NEW"], 1e-9)
	assert.Greater(t, got["OLD"], got["NEW"], "long-term holding taxed less")

	// NEW sold last week: wash-sale penalty applies
	require.NoError(t, p.ApplyTransaction(domain.Transaction{
		Timestamp: asOf.AddDate(0, 0, -7), Type: domain.TransactionSell, Symbol: "NEW", Quantity: 1, Price: 120,
	}))
	penalised, err := o.AdjustWeights(p, map[string]float64{"OLD": 0.5, "NEW": 0.5}, asOf)
	require.NoError(t, err)
	assert.Less(t, penalised["NEW"], got["NEW"])
}

func TestAdjustWeights_ClampsBeforeNormalising(t *testing.T) {
	profile := domain.DefaultTaxProfile()
	profile.ShortTermRate = 1.5
	o := NewOptimizer(profile, zerolog.Nop())

	got, err := o.AdjustWeights(domain.NewPortfolio("p", 100), map[string]float64{"A": 0.7, "B": 0.3}, asOf)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, got["A"], 1e-12, "negative weights clamp to zero and fall back to equal")
	assert.InDelta(t, 0.5, got["B"], 1e-12)
}

func TestAnnotatePlan(t *testing.T) {
	o := NewOptimizer(domain.DefaultTaxProfile(), zerolog.Nop())
	p := fixture(t)
	plan := &domain.RebalancingPlan{Actions: []domain.Action{
		{Key: "OLD", Side: domain.SideSell, EstimatedAmount: 300},
		{Key: "NEW", Side: domain.SideSell, EstimatedAmount: 240},
		{Key: "CASHLIKE", Side: domain.SideBuy, EstimatedAmount: 100},
	}}

	s, err := o.AnnotatePlan(plan, p, asOf)
	require.NoError(t, err)

	oldImpact := 300 * (50.0 / 150.0) * 0.20
	newImpact := 240 * (20.0 / 120.0) * 0.37
	assert.InDelta(t, oldImpact, plan.Actions[0].TaxImpact, 1e-9)
	assert.InDelta(t, newImpact, plan.Actions[1].TaxImpact, 1e-9)
	assert.Zero(t, plan.Actions[2].TaxImpact)
	assert.InDelta(t, oldImpact+newImpact, s.TotalTaxImpact, 1e-9)
	assert.InDelta(t, 1-(oldImpact+newImpact)/p.TotalValue, s.Efficiency, 1e-12)
}

func TestValidation(t *testing.T) {
	o := NewOptimizer(domain.DefaultTaxProfile(), zerolog.Nop())
	_, err := o.Income(nil, asOf)
	assert.ErrorIs(t, err, domain.ErrNilPortfolio)
	assert.Equal(t, 1.0, Efficiency(10, 0))
}
