package formulas

import (
	"math"

	"github.com/markcheno/go-talib"
)

// CalculateSMA returns the latest simple moving average over length values, or
// nil if there is not enough data.
func CalculateSMA(values []float64, length int) *float64 {
	if length < 1 || len(values) < length {
		return nil
	}
	if length == 1 {
		v := values[len(values)-1]
		return &v
	}
	sma := talib.Sma(values, length)
	if len(sma) > 0 && !math.IsNaN(sma[len(sma)-1]) {
		result := sma[len(sma)-1]
		return &result
	}
	return nil
}

// CalculateRSI returns the latest Relative Strength Index (0-100)
//
//	RSI = 100 - (100 / (1 + RS)), RS = average gain / average loss
func CalculateRSI(closes []float64, length int) *float64 {
	if length < 2 || len(closes) < length+1 {
		return nil
	}
	rsi := talib.Rsi(closes, length)
	if len(rsi) > 0 && !math.IsNaN(rsi[len(rsi)-1]) {
		result := rsi[len(rsi)-1]
		return &result
	}
	return nil
}

// CalculateMomentum is the percentage change over the last days periods
func CalculateMomentum(prices []float64, days int) *float64 {
	if days < 1 || len(prices) < days+1 {
		return nil
	}
	start := prices[len(prices)-days-1]
	if start == 0 {
		return nil
	}
	m := (prices[len(prices)-1] - start) / start
	return &m
}

// CalculateDistanceFromSMA is (price - SMA) / SMA for the latest price
func CalculateDistanceFromSMA(prices []float64, length int) *float64 {
	sma := CalculateSMA(prices, length)
	if sma == nil || *sma == 0 {
		return nil
	}
	d := (prices[len(prices)-1] - *sma) / *sma
	return &d
}
