// Package risk measures current portfolio risk on a 0-100 scale and derives
// target risk levels from the investor's risk tolerance.
package risk

import (
	"fmt"
	"math"

	"github.com/aristath/foresight/internal/domain"
	"github.com/aristath/foresight/pkg/formulas"
	"github.com/rs/zerolog"
)

// Component weights of the total risk score
const (
	portfolioWeight     = 0.4
	marketWeight        = 0.2
	correlationWeight   = 0.2
	concentrationWeight = 0.2

	minTargetScale = 0.01
	maxTargetScale = 0.30
)

// Components names the risk components in recommendation priority order
var Components = []string{"total", "portfolio", "correlation", "concentration"}

// Assessment holds every risk component on a 0-100 scale
type Assessment struct {
	SecurityRisk      map[string]float64 `json:"security_risk"`
	PortfolioRisk     float64            `json:"portfolio_risk"`
	MarketRisk        float64            `json:"market_risk"`
	CorrelationRisk   float64            `json:"correlation_risk"`
	ConcentrationRisk float64            `json:"concentration_risk"`
	TotalRisk         float64            `json:"total_risk"`
}

func (a Assessment) component(name string) float64 {
	switch name {
	case "total":
		return a.TotalRisk
	case "portfolio":
		return a.PortfolioRisk
	case "correlation":
		return a.CorrelationRisk
	case "concentration":
		return a.ConcentrationRisk
	case "market":
		return a.MarketRisk
	}
	return 0
}

// Recommendation flags a component above its target
type Recommendation struct {
	Component string  `json:"component"`
	Message   string  `json:"message"`
	Current   float64 `json:"current"`
	Target    float64 `json:"target"`
	Priority  int     `json:"priority"`
}

// Result is the output of Optimize
type Result struct {
	Current         Assessment       `json:"current"`
	Target          Assessment       `json:"target"`
	Recommendations []Recommendation `json:"recommendations"`
	TargetScale     float64          `json:"target_scale"`
}

// Optimizer computes current vs target risk
type Optimizer struct {
	log zerolog.Logger
}

// NewOptimizer creates a risk optimizer
func NewOptimizer(log zerolog.Logger) *Optimizer {
	return &Optimizer{log: log.With().Str("component", "risk_optimizer").Logger()}
}

// Assess computes the current risk components of a portfolio
func (o *Optimizer) Assess(p *domain.Portfolio, market domain.MarketPrediction, securities map[string]domain.SecurityPrediction) (Assessment, error) {
	if err := p.Validate(); err != nil {
		return Assessment{}, err
	}

	weights := make(map[string]float64, len(p.Positions))
	series := make(map[string][]float64, len(p.Positions))
	weightList := make([]float64, 0, len(p.Positions))
	for _, pos := range p.Positions {
		weights[pos.Symbol] = pos.Weight
		series[pos.Symbol] = formulas.CalculateReturns(pos.Prices())
		weightList = append(weightList, pos.Weight)
	}

	a := Assessment{SecurityRisk: map[string]float64{}}
	a.PortfolioRisk = formulas.Clamp(formulas.AnnualizedVolatility(weightedReturns(weights, series))*100, 0, 100)
	a.MarketRisk = predictionRisk(market.Prediction)
	for _, sym := range formulas.SortedKeys(securities) {
		a.SecurityRisk[sym] = predictionRisk(securities[sym].Prediction)
	}
	a.CorrelationRisk = math.Max(0, formulas.AveragePairwiseCorrelation(series)) * 100
	a.ConcentrationRisk = formulas.Gini(weightList) * a.PortfolioRisk
	a.TotalRisk = portfolioWeight*a.PortfolioRisk +
		marketWeight*a.MarketRisk +
		correlationWeight*a.CorrelationRisk +
		concentrationWeight*a.ConcentrationRisk
	return a, nil
}

// Optimize assesses current risk, scales it by the clamped tolerance to get
// the target and emits prioritised recommendations for every component above
// target.
func (o *Optimizer) Optimize(p *domain.Portfolio, market domain.MarketPrediction, securities map[string]domain.SecurityPrediction, profile domain.RiskProfile) (Result, error) {
	if err := profile.Validate(); err != nil {
		return Result{}, err
	}
	current, err := o.Assess(p, market, securities)
	if err != nil {
		return Result{}, err
	}

	scale := TargetScale(profile.RiskTolerance)
	target := Assessment{
		SecurityRisk:      map[string]float64{},
		PortfolioRisk:     current.PortfolioRisk * scale,
		MarketRisk:        current.MarketRisk * scale,
		CorrelationRisk:   current.CorrelationRisk * scale,
		ConcentrationRisk: current.ConcentrationRisk * scale,
		TotalRisk:         current.TotalRisk * scale,
	}
	for sym, v := range current.SecurityRisk {
		target.SecurityRisk[sym] = v * scale
	}

	res := Result{Current: current, Target: target, TargetScale: scale}
	for i, name := range Components {
		cur, tgt := current.component(name), target.component(name)
		if cur > tgt {
			res.Recommendations = append(res.Recommendations, Recommendation{
				Component: name,
				Current:   cur,
				Target:    tgt,
				Priority:  i + 1,
				Message:   fmt.Sprintf("reduce %s risk from %.1f to %.1f", name, cur, tgt),
			})
		}
	}

	o.log.Debug().
		Float64("total_risk", current.TotalRisk).
		Float64("target_risk", target.TotalRisk).
		Int("recommendations", len(res.Recommendations)).
		Msg("Risk optimized")
	return res, nil
}

// TargetScale converts a 0-100 tolerance into the factor applied to current
// risk, bounded to [1%, 30%].
func TargetScale(tolerance float64) float64 {
	return formulas.Clamp(tolerance/100, minTargetScale, maxTargetScale)
}

// predictionRisk is annualised volatility × risk level on the 0-100 scale
func predictionRisk(p domain.Prediction) float64 {
	annual := p.Volatility * math.Sqrt(formulas.TradingDaysPerYear)
	return formulas.Clamp(annual*float64(p.RiskLevel)*100, 0, 100)
}

// weightedReturns combines return series over their common tail
func weightedReturns(weights map[string]float64, series map[string][]float64) []float64 {
	n := -1
	for sym := range weights {
		if l := len(series[sym]); n < 0 || l < n {
			n = l
		}
	}
	if n < 2 {
		return nil
	}
	out := make([]float64, n)
	for _, sym := range formulas.SortedKeys(weights) {
		s := series[sym][len(series[sym])-n:]
		for i := range out {
			out[i] += weights[sym] * s[i]
		}
	}
	return out
}

// RiskFactor maps a forecast onto a 0-1 risk factor used by the allocation
// optimizer: annualised volatility scaled by risk level, capped at 1.
func RiskFactor(p domain.Prediction) float64 {
	return predictionRisk(p) / 100
}
