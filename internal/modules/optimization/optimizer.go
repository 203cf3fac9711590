// Package optimization chains the risk, allocation, tax, cost,
// diversification and rebalancing modules into a single plan.
package optimization

import (
	"math"
	"time"

	"github.com/aristath/foresight/internal/domain"
	"github.com/aristath/foresight/internal/modules/allocation"
	"github.com/aristath/foresight/internal/modules/costs"
	"github.com/aristath/foresight/internal/modules/diversification"
	"github.com/aristath/foresight/internal/modules/rebalancing"
	"github.com/aristath/foresight/internal/modules/risk"
	"github.com/aristath/foresight/internal/modules/tax"
	"github.com/aristath/foresight/pkg/formulas"
	"github.com/rs/zerolog"
)

// minSymbolScore keeps every class member in the split
const minSymbolScore = 0.01

// Profiles is the configuration surface of one optimisation
type Profiles struct {
	Risk        domain.RiskProfile            `json:"risk" yaml:"risk"`
	Tax         domain.TaxProfile             `json:"tax" yaml:"tax"`
	Cost        domain.TransactionCostProfile `json:"cost" yaml:"cost"`
	Rebalancing rebalancing.Config            `json:"rebalancing" yaml:"rebalancing"`
	// BaseAllocation is the strategic class mix; current class weights are
	// used when empty.
	BaseAllocation map[string]float64 `json:"base_allocation,omitempty" yaml:"base_allocation"`
	// CashReserve is the share of value kept out of the market
	CashReserve float64 `json:"cash_reserve" yaml:"cash_reserve"`
}

// DefaultProfiles returns moderate risk with default tax and cost schedules
func DefaultProfiles() Profiles {
	return Profiles{
		Risk:        domain.DefaultRiskProfile(),
		Tax:         domain.DefaultTaxProfile(),
		Cost:        domain.DefaultTransactionCostProfile(),
		Rebalancing: rebalancing.DefaultConfig(),
		CashReserve: 0.02,
	}
}

// Input is the forecast state the plan is derived from
type Input struct {
	Portfolio  *domain.Portfolio
	Market     domain.MarketPrediction
	Securities map[string]domain.SecurityPrediction
	AsOf       time.Time
}

// Plan is the result of Optimize
type Plan struct {
	Rebalancing         domain.RebalancingPlan       `json:"rebalancing"`
	Risk                risk.Result                  `json:"risk"`
	Allocation          allocation.Result            `json:"allocation"`
	Classes             []allocation.ClassAllocation `json:"classes"`
	TargetWeights       map[string]float64           `json:"target_weights"`
	Tax                 tax.Summary                  `json:"tax"`
	Costs               costs.Summary                `json:"costs"`
	Diversification     diversification.Analysis     `json:"diversification"`
	PortfolioVolatility float64                      `json:"portfolio_volatility"`
	PortfolioRiskLevel  float64                      `json:"portfolio_risk_level"`
}

// Optimizer runs the optimisation chain
type Optimizer struct {
	risk        *risk.Optimizer
	allocation  *allocation.Optimizer
	diversifier *diversification.Analyzer
	log         zerolog.Logger
}

// NewOptimizer creates the chain with the given allocation repair bounds
func NewOptimizer(allocCfg allocation.Config, log zerolog.Logger) *Optimizer {
	return &Optimizer{
		risk:        risk.NewOptimizer(log),
		allocation:  allocation.NewOptimizer(allocCfg, log),
		diversifier: diversification.NewAnalyzer(log),
		log:         log.With().Str("component", "optimizer").Logger(),
	}
}

// Optimize runs risk assessment, class allocation, symbol targeting, tax and
// cost adjustment, diversification analysis and finally rebalancing.
func (o *Optimizer) Optimize(in Input, profiles Profiles) (*Plan, error) {
	p := in.Portfolio
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := profiles.Risk.Validate(); err != nil {
		return nil, err
	}
	if profiles.CashReserve < 0 || profiles.CashReserve >= 1 {
		return nil, domain.NewValidationError(domain.ErrInvalidConfig, "cash_reserve", "must be within [0,1), got %.2f", profiles.CashReserve)
	}

	plan := &Plan{}
	var err error
	if plan.Risk, err = o.risk.Optimize(p, in.Market, in.Securities, profiles.Risk); err != nil {
		return nil, err
	}

	members := classMembers(p, in.Securities)
	classes := classInputs(p, members, in.Market, in.Securities, profiles.BaseAllocation)
	if plan.Allocation, err = o.allocation.Optimize(classes, profiles.Risk); err != nil {
		return nil, err
	}
	plan.Classes = allocation.Compare(p.AssetClassWeights(), plan.Allocation.Weights, p.InvestedValue())

	targets := splitClasses(plan.Allocation.Weights, members, in.Securities)
	taxOpt := tax.NewOptimizer(profiles.Tax, o.log)
	if targets, err = taxOpt.AdjustWeights(p, targets, in.AsOf); err != nil {
		return nil, err
	}
	investable := 1 - profiles.CashReserve
	costOpt := costs.NewOptimizer(profiles.Cost, o.log)
	if targets, err = costOpt.AdjustWeights(p, scale(targets, investable)); err != nil {
		return nil, err
	}
	plan.TargetWeights = scale(targets, investable)

	if plan.Diversification, err = o.diversifier.Analyze(p); err != nil {
		return nil, err
	}

	returns := make(map[string][]float64, len(p.Positions))
	for _, pos := range p.Positions {
		returns[pos.Symbol] = formulas.CalculateReturns(pos.Prices())
	}
	current := p.Weights()
	daily := PortfolioVolatility(current, returns)
	plan.PortfolioVolatility = daily * math.Sqrt(formulas.TradingDaysPerYear)
	if len(p.Positions) > 0 {
		plan.PortfolioRiskLevel = float64(domain.RiskLevelFromVolatility(daily))
	}

	engine := rebalancing.NewEngine(profiles.Rebalancing, o.log)
	plan.Rebalancing = engine.Plan(current, plan.TargetWeights, p.TotalValue, rebalancing.MarketState{
		PortfolioVolatility: plan.PortfolioVolatility,
		PortfolioRiskLevel:  plan.PortfolioRiskLevel,
	})
	if plan.Tax, err = taxOpt.AnnotatePlan(&plan.Rebalancing, p, in.AsOf); err != nil {
		return nil, err
	}
	if plan.Costs, err = costOpt.AnnotatePlan(&plan.Rebalancing, p); err != nil {
		return nil, err
	}

	o.log.Debug().
		Str("portfolio", p.ID).
		Int("actions", len(plan.Rebalancing.Actions)).
		Float64("total_risk", plan.Risk.Current.TotalRisk).
		Float64("diversification", plan.Diversification.Score).
		Msg("Optimization complete")
	return plan, nil
}

// classMembers groups the held and forecast symbols by asset class
func classMembers(p *domain.Portfolio, securities map[string]domain.SecurityPrediction) map[string][]string {
	members := map[string][]string{}
	seen := map[string]bool{}
	add := func(symbol string, info domain.SecurityInfo) {
		if seen[symbol] {
			return
		}
		seen[symbol] = true
		info.Symbol = symbol
		class := info.AssetClassOrDefault()
		members[class] = append(members[class], symbol)
	}
	for _, pos := range p.Positions {
		add(pos.Symbol, pos.SecurityInfo)
	}
	for _, symbol := range formulas.SortedKeys(securities) {
		add(symbol, p.Catalog[symbol])
	}
	for class := range members {
		members[class] = formulas.SortedKeys(toSet(members[class]))
	}
	return members
}

// classInputs derives each class's expected return and risk factor from the
// member forecasts, falling back to the market forecast.
func classInputs(p *domain.Portfolio, members map[string][]string, market domain.MarketPrediction,
	securities map[string]domain.SecurityPrediction, base map[string]float64) []allocation.ClassInput {
	current := p.AssetClassWeights()
	if len(base) == 0 {
		base = current
	}
	out := make([]allocation.ClassInput, 0, len(members))
	for _, class := range formulas.SortedKeys(members) {
		var expected, riskFactor float64
		n := 0
		for _, symbol := range members[class] {
			sp, ok := securities[symbol]
			if !ok {
				continue
			}
			expected += sp.ExpectedReturn
			riskFactor += risk.RiskFactor(sp.Prediction)
			n++
		}
		if n > 0 {
			expected /= float64(n)
			riskFactor /= float64(n)
		} else {
			expected = market.ExpectedReturn
			riskFactor = risk.RiskFactor(market.Prediction)
		}
		out = append(out, allocation.ClassInput{
			Name:           class,
			BaseWeight:     base[class],
			ExpectedReturn: expected,
			RiskFactor:     riskFactor,
		})
	}
	return out
}

// splitClasses divides each class weight across its members in proportion
// to max(0.01, (1 + expected return) × confidence).
func splitClasses(classWeights map[string]float64, members map[string][]string, securities map[string]domain.SecurityPrediction) map[string]float64 {
	out := map[string]float64{}
	for _, class := range formulas.SortedKeys(classWeights) {
		symbols := members[class]
		if len(symbols) == 0 {
			continue
		}
		scores := make(map[string]float64, len(symbols))
		total := 0.0
		for _, symbol := range symbols {
			score := minSymbolScore
			if sp, ok := securities[symbol]; ok {
				score = math.Max(minSymbolScore, (1+sp.ExpectedReturn)*sp.Confidence)
			}
			scores[symbol] = score
			total += score
		}
		for symbol, score := range scores {
			out[symbol] += classWeights[class] * score / total
		}
	}
	return out
}

func scale(weights map[string]float64, factor float64) map[string]float64 {
	out := make(map[string]float64, len(weights))
	for k, w := range weights {
		out[k] = w * factor
	}
	return out
}

func toSet(items []string) map[string]struct{} {
	out := make(map[string]struct{}, len(items))
	for _, it := range items {
		out[it] = struct{}{}
	}
	return out
}
