package formulas

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// CalculateVaR returns the historical Value at Risk at the given confidence
// level: the empirical (1-confidence) quantile of the distribution, i.e. the
// smallest return whose cumulative share reaches 1-confidence.
func CalculateVaR(returns []float64, confidence float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	sorted := make([]float64, len(returns))
	copy(sorted, returns)
	sort.Float64s(sorted)

	p := math.Round((1-confidence)*1e9) / 1e9
	return stat.Quantile(Clamp01(p), stat.Empirical, sorted, nil)
}

// CalculateCVaR calculates Conditional Value at Risk (CVaR) at the specified confidence level.
// CVaR is the average of the returns in the worst (1-confidence) tail.
func CalculateCVaR(returns []float64, confidence float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	if len(returns) == 1 {
		return returns[0]
	}

	sorted := make([]float64, len(returns))
	copy(sorted, returns)
	sort.Float64s(sorted)

	tailCount := int(math.Ceil(float64(len(sorted))*(1-confidence) - 1e-9))
	if tailCount == 0 {
		tailCount = 1
	}
	if tailCount > len(sorted) {
		tailCount = len(sorted)
	}
	return Mean(sorted[:tailCount])
}

// CalculateSharpeRatio calculates the annualized Sharpe ratio
//
//	Sharpe = (mean return - periodic risk-free) / stddev × sqrt(periodsPerYear)
//
// Returns nil when there are fewer than two returns or no variance.
func CalculateSharpeRatio(returns []float64, riskFreeRate float64, periodsPerYear int) *float64 {
	if len(returns) < 2 {
		return nil
	}
	stdDev := StdDev(returns)
	if stdDev == 0 {
		return nil
	}
	periodicRiskFree := riskFreeRate / float64(periodsPerYear)
	sharpe := (Mean(returns) - periodicRiskFree) / stdDev * math.Sqrt(float64(periodsPerYear))
	return &sharpe
}

// CalculateSortinoRatio is the Sharpe ratio with downside deviation below the
// target return in the denominator. Returns nil when nothing falls below target.
func CalculateSortinoRatio(returns []float64, riskFreeRate, targetReturn float64, periodsPerYear int) *float64 {
	if len(returns) < 2 {
		return nil
	}
	periodicMAR := targetReturn / float64(periodsPerYear)

	var downsideSquaredSum float64
	downsideCount := 0
	for _, ret := range returns {
		if ret < periodicMAR {
			d := ret - periodicMAR
			downsideSquaredSum += d * d
			downsideCount++
		}
	}
	if downsideCount == 0 {
		return nil
	}
	downside := math.Sqrt(downsideSquaredSum / float64(downsideCount))
	if downside == 0 {
		return nil
	}
	periodicRiskFree := riskFreeRate / float64(periodsPerYear)
	sortino := (Mean(returns) - periodicRiskFree) / downside * math.Sqrt(float64(periodsPerYear))
	return &sortino
}

// CalculateInformationRatio measures active return against a benchmark per unit
// of tracking error, annualized. Returns nil when the series differ in length
// or tracking error is zero.
func CalculateInformationRatio(returns, benchmark []float64, periodsPerYear int) *float64 {
	if len(returns) < 2 || len(returns) != len(benchmark) {
		return nil
	}
	active := make([]float64, len(returns))
	for i := range returns {
		active[i] = returns[i] - benchmark[i]
	}
	te := StdDev(active)
	if te == 0 {
		return nil
	}
	ir := Mean(active) / te * math.Sqrt(float64(periodsPerYear))
	return &ir
}

// CalculateMaxDrawdown returns the largest peak-to-trough decline of a value
// series as a positive fraction, or nil with fewer than two values.
func CalculateMaxDrawdown(values []float64) *float64 {
	if len(values) < 2 {
		return nil
	}
	maxDD := 0.0
	for _, dd := range DrawdownSeries(values) {
		if dd > maxDD {
			maxDD = dd
		}
	}
	return &maxDD
}

// DrawdownSeries returns the drawdown from the running peak at each point
func DrawdownSeries(values []float64) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	peak := values[0]
	for i, v := range values {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			out[i] = (peak - v) / peak
		}
	}
	return out
}

// DerefOr returns *p, or fallback when p is nil
func DerefOr(p *float64, fallback float64) float64 {
	if p == nil {
		return fallback
	}
	return *p
}
