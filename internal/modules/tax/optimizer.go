// Package tax scores the tax drag of a portfolio and tilts target weights
// toward tax-efficient holdings.
package tax

import (
	"math"
	"time"

	"github.com/aristath/foresight/internal/domain"
	"github.com/aristath/foresight/pkg/formulas"
	"github.com/rs/zerolog"
)

const (
	longTermBonus    = 1.05
	washSalePenalty  = 0.9
	dividendLookback = 365 * 24 * time.Hour
)

// IncomeComponents are the taxable income buckets of a portfolio
type IncomeComponents struct {
	ShortTermGains float64 `json:"short_term_gains"`
	LongTermGains  float64 `json:"long_term_gains"`
	Dividends      float64 `json:"dividends"`
	Interest       float64 `json:"interest"`
}

// Total sums the positive components
func (c IncomeComponents) Total() float64 {
	return math.Max(0, c.ShortTermGains) + math.Max(0, c.LongTermGains) +
		math.Max(0, c.Dividends) + math.Max(0, c.Interest)
}

// Summary reports the tax position after a plan is annotated
type Summary struct {
	Income         IncomeComponents `json:"income"`
	EffectiveRate  float64          `json:"effective_rate"`
	TotalTaxImpact float64          `json:"total_tax_impact"`
	Efficiency     float64          `json:"efficiency"`
}

// Optimizer applies a TaxProfile
type Optimizer struct {
	profile domain.TaxProfile
	log     zerolog.Logger
}

// NewOptimizer creates a tax optimizer
func NewOptimizer(profile domain.TaxProfile, log zerolog.Logger) *Optimizer {
	return &Optimizer{profile: profile, log: log.With().Str("component", "tax_optimizer").Logger()}
}

// Profile returns the tax profile in use
func (o *Optimizer) Profile() domain.TaxProfile {
	return o.profile
}

// IsLongTerm reports whether a position acquired at acquired is past the
// long-term threshold at asOf. An unknown acquisition date counts as short term.
func (o *Optimizer) IsLongTerm(acquired, asOf time.Time) bool {
	if acquired.IsZero() {
		return false
	}
	return asOf.Sub(acquired) >= time.Duration(o.profile.LongTermThresholdDays)*24*time.Hour
}

// Income splits unrealised gains by holding period, sums dividends received
// in the trailing year and estimates interest on idle cash.
func (o *Optimizer) Income(p *domain.Portfolio, asOf time.Time) (IncomeComponents, error) {
	if err := p.Validate(); err != nil {
		return IncomeComponents{}, err
	}
	var inc IncomeComponents
	for _, pos := range p.Positions {
		if o.IsLongTerm(pos.AcquiredAt, asOf) {
			inc.LongTermGains += pos.UnrealizedGain()
		} else {
			inc.ShortTermGains += pos.UnrealizedGain()
		}
	}
	for _, tx := range p.Transactions {
		if tx.Type != domain.TransactionDividend || tx.Timestamp.After(asOf) {
			continue
		}
		if asOf.Sub(tx.Timestamp) <= dividendLookback {
			inc.Dividends += tx.Notional()
		}
	}
	inc.Interest = math.Max(0, p.Cash) * o.profile.CashYield
	return inc, nil
}

// EffectiveRate is the income-weighted blend of category rates, 0 without income
func (o *Optimizer) EffectiveRate(inc IncomeComponents) float64 {
	total := inc.Total()
	if total <= 0 {
		return 0
	}
	taxed := math.Max(0, inc.ShortTermGains)*o.profile.ShortTermRate +
		math.Max(0, inc.LongTermGains)*o.profile.LongTermRate +
		math.Max(0, inc.Dividends)*o.profile.DividendRate +
		math.Max(0, inc.Interest)*o.profile.InterestRate
	return taxed / total
}

// rateFor is the rate a sale of symbol would pay at asOf. Symbols not held
// would be new purchases and therefore short term.
func (o *Optimizer) rateFor(p *domain.Portfolio, symbol string, asOf time.Time) float64 {
	if pos := p.Position(symbol); pos != nil && o.IsLongTerm(pos.AcquiredAt, asOf) {
		return o.profile.LongTermRate
	}
	return o.profile.ShortTermRate
}

// soldRecently reports a SELL of symbol inside the wash-sale window
func (o *Optimizer) soldRecently(p *domain.Portfolio, symbol string, asOf time.Time) bool {
	window := time.Duration(o.profile.WashSaleDays) * 24 * time.Hour
	for i := len(p.Transactions) - 1; i >= 0; i-- {
		tx := p.Transactions[i]
		if tx.Type != domain.TransactionSell || tx.Symbol != symbol || tx.Timestamp.After(asOf) {
			continue
		}
		if asOf.Sub(tx.Timestamp) <= window {
			return true
		}
	}
	return false
}

// AdjustWeights scales each base weight by (1 − rate), the long-term holding
// bonus and the wash-sale penalty, clamps to [0,1] and normalises.
func (o *Optimizer) AdjustWeights(p *domain.Portfolio, base map[string]float64, asOf time.Time) (map[string]float64, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	adjusted := make(map[string]float64, len(base))
	for _, symbol := range formulas.SortedKeys(base) {
		w := base[symbol] * (1 - o.rateFor(p, symbol, asOf))
		if pos := p.Position(symbol); pos != nil && o.IsLongTerm(pos.AcquiredAt, asOf) {
			w *= longTermBonus
		}
		if o.soldRecently(p, symbol, asOf) {
			w *= washSalePenalty
		}
		adjusted[symbol] = formulas.Clamp01(w)
	}
	return formulas.Normalize(adjusted), nil
}

// AnnotatePlan fills TaxImpact on every sell action keyed by symbol and
// returns the summary. Tax impact is amount × max(0, gain ratio) × rate.
func (o *Optimizer) AnnotatePlan(plan *domain.RebalancingPlan, p *domain.Portfolio, asOf time.Time) (Summary, error) {
	inc, err := o.Income(p, asOf)
	if err != nil {
		return Summary{}, err
	}
	s := Summary{Income: inc, EffectiveRate: o.EffectiveRate(inc)}

	for i := range plan.Actions {
		a := &plan.Actions[i]
		if a.Side != domain.SideSell {
			continue
		}
		pos := p.Position(a.Key)
		if pos == nil || pos.CurrentPrice <= 0 {
			continue
		}
		gainRatio := (pos.CurrentPrice - pos.AverageCost) / pos.CurrentPrice
		a.TaxImpact = a.EstimatedAmount * math.Max(0, gainRatio) * o.rateFor(p, a.Key, asOf)
		s.TotalTaxImpact += a.TaxImpact
	}
	s.Efficiency = Efficiency(s.TotalTaxImpact, p.TotalValue)

	o.log.Debug().
		Float64("effective_rate", s.EffectiveRate).
		Float64("tax_impact", s.TotalTaxImpact).
		Msg("Tax impact estimated")
	return s, nil
}

// Efficiency is 1 − taxImpact/portfolioValue, 1 for an empty portfolio
func Efficiency(taxImpact, portfolioValue float64) float64 {
	if portfolioValue <= 0 {
		return 1
	}
	return 1 - taxImpact/portfolioValue
}
