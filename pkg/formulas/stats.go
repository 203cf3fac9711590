// Package formulas holds the numeric primitives shared by the prediction,
// optimisation and backtesting modules.
package formulas

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"
)

// TradingDaysPerYear is the annualisation factor for daily series
const TradingDaysPerYear = 252

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// StdDev calculates the sample standard deviation. Fewer than two values yield 0.
func StdDev(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.StdDev(data, nil)
}

// Variance calculates the sample variance. Fewer than two values yield 0.
func Variance(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.Variance(data, nil)
}

// AnnualizedVolatility calculates annualized volatility from daily returns
// Formula: Std Dev of Daily Returns × sqrt(252 trading days)
func AnnualizedVolatility(dailyReturns []float64) float64 {
	return StdDev(dailyReturns) * math.Sqrt(TradingDaysPerYear)
}

// CalculateReturns converts prices to percentage returns
// Returns[i] = (Price[i+1] - Price[i]) / Price[i]
func CalculateReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return []float64{}
	}

	returns := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		returns[i-1] = SimpleReturn(prices[i-1], prices[i])
	}
	return returns
}

// SimpleReturn is (end - start) / start, 0 when start is 0
func SimpleReturn(start, end float64) float64 {
	if start == 0 {
		return 0
	}
	return (end - start) / start
}

// AnnualizedReturn compounds the simple return between two dated values to a
// 365-day year. Periods shorter than one day return the simple return.
func AnnualizedReturn(startValue, endValue float64, startDate, endDate time.Time) float64 {
	if startValue <= 0 || endValue <= 0 {
		return SimpleReturn(startValue, endValue)
	}
	days := endDate.Sub(startDate).Hours() / 24
	if days < 1 {
		return SimpleReturn(startValue, endValue)
	}
	return math.Pow(endValue/startValue, 365/days) - 1
}

// CompoundReturn converts a per-period return into a return over n periods
func CompoundReturn(perPeriod float64, periods int) float64 {
	if periods <= 0 {
		return 0
	}
	return math.Pow(1+perPeriod, float64(periods)) - 1
}

// Correlation calculates the Pearson correlation coefficient between two
// datasets. Zero-variance inputs yield 0 instead of NaN.
func Correlation(x, y []float64) float64 {
	if len(x) < 2 || len(x) != len(y) {
		return 0
	}
	c := stat.Correlation(x, y, nil)
	if math.IsNaN(c) || math.IsInf(c, 0) {
		return 0
	}
	return c
}

// Covariance calculates the covariance between two datasets
func Covariance(x, y []float64) float64 {
	if len(x) < 2 || len(x) != len(y) {
		return 0
	}
	return stat.Covariance(x, y, nil)
}

// LinearSlope returns the least-squares slope of data against its index
func LinearSlope(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	xs := make([]float64, len(data))
	for i := range xs {
		xs[i] = float64(i)
	}
	_, beta := stat.LinearRegression(xs, data, nil, false)
	if math.IsNaN(beta) {
		return 0
	}
	return beta
}

// Clamp bounds v to [lo, hi]
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Clamp01 bounds v to [0, 1]
func Clamp01(v float64) float64 {
	return Clamp(v, 0, 1)
}
