package risk

import (
	"github.com/aristath/foresight/internal/domain"
	"github.com/aristath/foresight/pkg/formulas"
)

// Metrics are historical risk figures of a daily return series. VaR and
// CVaR are returns, so losses are negative.
type Metrics struct {
	Observations int      `json:"observations"`
	Volatility   float64  `json:"volatility"`
	VaR95        float64  `json:"var_95"`
	VaR99        float64  `json:"var_99"`
	CVaR95       float64  `json:"cvar_95"`
	CVaR99       float64  `json:"cvar_99"`
	MaxDrawdown  float64  `json:"max_drawdown"`
	Sharpe       *float64 `json:"sharpe"`
	Sortino      *float64 `json:"sortino"`
	Beta         *float64 `json:"beta,omitempty"`
}

// Measure computes Metrics from daily returns. benchmark may be nil; when
// given, beta is estimated over the common tail.
func Measure(returns, benchmark []float64, riskFreeRate float64) Metrics {
	m := Metrics{Observations: len(returns)}
	if len(returns) == 0 {
		return m
	}
	m.Volatility = formulas.AnnualizedVolatility(returns)
	m.VaR95 = formulas.CalculateVaR(returns, 0.95)
	m.VaR99 = formulas.CalculateVaR(returns, 0.99)
	m.CVaR95 = formulas.CalculateCVaR(returns, 0.95)
	m.CVaR99 = formulas.CalculateCVaR(returns, 0.99)
	m.Sharpe = formulas.CalculateSharpeRatio(returns, riskFreeRate, formulas.TradingDaysPerYear)
	m.Sortino = formulas.CalculateSortinoRatio(returns, riskFreeRate, 0, formulas.TradingDaysPerYear)

	values := make([]float64, len(returns)+1)
	values[0] = 1
	for i, r := range returns {
		values[i+1] = values[i] * (1 + r)
	}
	m.MaxDrawdown = formulas.DerefOr(formulas.CalculateMaxDrawdown(values), 0)

	if n := min(len(returns), len(benchmark)); n >= 2 {
		x := benchmark[len(benchmark)-n:]
		y := returns[len(returns)-n:]
		if v := formulas.Variance(x); v > 0 {
			beta := formulas.Covariance(x, y) / v
			m.Beta = &beta
		}
	}
	return m
}

// PortfolioReturns combines the daily returns of every position, weighted
// by its share of invested value, over the common tail of their histories.
func PortfolioReturns(p *domain.Portfolio) []float64 {
	invested := 0.0
	for _, pos := range p.Positions {
		invested += pos.Weight
	}
	if invested == 0 {
		return nil
	}
	weights := make(map[string]float64, len(p.Positions))
	series := make(map[string][]float64, len(p.Positions))
	for _, pos := range p.Positions {
		weights[pos.Symbol] = pos.Weight / invested
		series[pos.Symbol] = formulas.CalculateReturns(pos.Prices())
	}
	return weightedReturns(weights, series)
}
