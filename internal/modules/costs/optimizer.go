// Package costs prices trades against a TransactionCostProfile and tilts
// target weights away from expensive rebalancing.
package costs

import (
	"math"

	"github.com/aristath/foresight/internal/domain"
	"github.com/aristath/foresight/pkg/formulas"
	"github.com/rs/zerolog"
)

// Breakdown splits the cost of one trade
type Breakdown struct {
	Fee        float64 `json:"fee"`
	Slippage   float64 `json:"slippage"`
	Impact     float64 `json:"impact"`
	Commission float64 `json:"commission"`
	Total      float64 `json:"total"`
}

// Summary reports the cost of a plan
type Summary struct {
	TotalCost  float64 `json:"total_cost"`
	CostRatio  float64 `json:"cost_ratio"`
	Efficiency float64 `json:"efficiency"`
}

// Optimizer applies a TransactionCostProfile
type Optimizer struct {
	profile domain.TransactionCostProfile
	log     zerolog.Logger
}

// NewOptimizer creates a transaction cost optimizer
func NewOptimizer(profile domain.TransactionCostProfile, log zerolog.Logger) *Optimizer {
	return &Optimizer{profile: profile, log: log.With().Str("component", "cost_optimizer").Logger()}
}

// Profile returns the cost profile in use
func (o *Optimizer) Profile() domain.TransactionCostProfile {
	return o.profile
}

// TradeCost prices a trade of notional in category. A zero notional costs nothing.
func (o *Optimizer) TradeCost(cat domain.InstrumentCategory, notional float64) Breakdown {
	notional = math.Abs(notional)
	if notional == 0 {
		return Breakdown{}
	}
	s := o.profile.Schedule(cat)
	b := Breakdown{
		Fee:        notional * s.FeeRate,
		Slippage:   notional * s.SlippageRate,
		Impact:     notional * s.MarketImpactRate * o.profile.ImpactMultiplier(notional),
		Commission: o.profile.CommissionPerTrade,
	}
	b.Total = b.Fee + b.Slippage + b.Impact + b.Commission
	return b
}

// Category resolves the instrument category of symbol from the position or
// the portfolio catalog, defaulting to equity.
func Category(p *domain.Portfolio, symbol string) domain.InstrumentCategory {
	if pos := p.Position(symbol); pos != nil && pos.Instrument != "" {
		return pos.Instrument
	}
	if info, ok := p.Catalog[symbol]; ok && info.Instrument != "" {
		return info.Instrument
	}
	return domain.InstrumentEquity
}

// maxTilt caps the cost rate applied to any one target weight
const maxTilt = 0.5

// AdjustWeights scales each target weight by (1 − cost rate), where the rate
// is the cost of the trade implied by moving from the current weight relative
// to the target position value. The rate is capped at maxTilt; results are
// clamped to [0,1] and normalised.
func (o *Optimizer) AdjustWeights(p *domain.Portfolio, target map[string]float64) (map[string]float64, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	current := p.Weights()
	adjusted := make(map[string]float64, len(target))
	for _, symbol := range formulas.SortedKeys(target) {
		w := target[symbol]
		notional := math.Abs(w-current[symbol]) * p.TotalValue
		position := w * p.TotalValue
		rate := 0.0
		if notional > 0 && position > 0 {
			rate = math.Min(maxTilt, o.TradeCost(Category(p, symbol), notional).Total/position)
		}
		adjusted[symbol] = formulas.Clamp01(w * (1 - rate))
	}
	return formulas.Normalize(adjusted), nil
}

// AnnotatePlan fills Cost on every action keyed by symbol and returns the summary
func (o *Optimizer) AnnotatePlan(plan *domain.RebalancingPlan, p *domain.Portfolio) (Summary, error) {
	if err := p.Validate(); err != nil {
		return Summary{}, err
	}
	var s Summary
	for i := range plan.Actions {
		a := &plan.Actions[i]
		a.Cost = o.TradeCost(Category(p, a.Key), a.EstimatedAmount).Total
		s.TotalCost += a.Cost
	}
	if p.TotalValue > 0 {
		s.CostRatio = s.TotalCost / p.TotalValue
	}
	s.Efficiency = o.Efficiency(s.TotalCost, p.TotalValue)

	o.log.Debug().
		Float64("total_cost", s.TotalCost).
		Float64("efficiency", s.Efficiency).
		Msg("Transaction costs estimated")
	return s, nil
}

// Efficiency is clamp(1 − (cost/value)/MaxCostRate, 0, 1)
func (o *Optimizer) Efficiency(totalCost, portfolioValue float64) float64 {
	if portfolioValue <= 0 || o.profile.MaxCostRate <= 0 {
		return 1
	}
	return formulas.Clamp01(1 - (totalCost/portfolioValue)/o.profile.MaxCostRate)
}
