package prediction

import (
	"math"
	"time"

	"github.com/aristath/foresight/internal/domain"
	"github.com/aristath/foresight/pkg/formulas"
)

const (
	rsiPeriod    = 14
	smaPeriod    = 20
	momentumDays = 10
)

// FeatureBuilder turns a price history and factor map into the learned
// model's feature vector: trailing returns, economic indicators in fixed key
// order, then RSI, distance from SMA and momentum.
type FeatureBuilder struct {
	ReturnLags int
}

// RequiredHistory is the minimum number of prices for one feature vector
func (b FeatureBuilder) RequiredHistory() int {
	need := b.ReturnLags + 1
	for _, n := range []int{smaPeriod, rsiPeriod + 1, momentumDays + 1} {
		if n > need {
			need = n
		}
	}
	return need
}

// Width is the length of every feature vector
func (b FeatureBuilder) Width() int {
	return b.ReturnLags + len(domain.EconomicIndicatorKeys) + 3
}

// Build returns the feature vector for the latest point of prices
func (b FeatureBuilder) Build(prices []float64, factors map[string]float64) ([]float64, error) {
	if need := b.RequiredHistory(); len(prices) < need {
		return nil, domain.InsufficientHistory("prices", len(prices), need)
	}
	x := make([]float64, 0, b.Width())

	returns := formulas.CalculateReturns(prices[len(prices)-b.ReturnLags-1:])
	x = append(x, returns...)

	for _, k := range domain.EconomicIndicatorKeys {
		x = append(x, factors[k])
	}

	rsi := formulas.DerefOr(formulas.CalculateRSI(prices, rsiPeriod), 50)
	x = append(x, rsi/100)
	x = append(x, formulas.DerefOr(formulas.CalculateDistanceFromSMA(prices, smaPeriod), 0))
	x = append(x, formulas.DerefOr(formulas.CalculateMomentum(prices, momentumDays), 0))
	return x, nil
}

// Scaler z-scores each feature column with statistics from the training rows
type Scaler struct {
	Means []float64
	Stds  []float64
}

// FitScaler computes per-column mean and std; constant columns get std 1
func FitScaler(X [][]float64) *Scaler {
	if len(X) == 0 {
		return &Scaler{}
	}
	p := len(X[0])
	s := &Scaler{Means: make([]float64, p), Stds: make([]float64, p)}
	col := make([]float64, len(X))
	for j := 0; j < p; j++ {
		for i := range X {
			col[i] = X[i][j]
		}
		s.Means[j] = formulas.Mean(col)
		sd := formulas.StdDev(col)
		if sd == 0 || math.IsNaN(sd) {
			sd = 1
		}
		s.Stds[j] = sd
	}
	return s
}

// Transform scales one row
func (s *Scaler) Transform(x []float64) []float64 {
	out := make([]float64, len(x))
	for j, v := range x {
		if j < len(s.Means) {
			out[j] = (v - s.Means[j]) / s.Stds[j]
		} else {
			out[j] = v
		}
	}
	return out
}

// TransformAll scales every row
func (s *Scaler) TransformAll(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	for i, row := range X {
		out[i] = s.Transform(row)
	}
	return out
}

// BuildSamples slides over a price series and emits one labelled sample per
// step, with the label being the realised return HorizonDays ahead.
func BuildSamples(symbol string, dates []time.Time, prices []float64, factors map[string]float64, horizon, minHistory, step int) []TrainingSample {
	if step < 1 {
		step = 1
	}
	horizon = horizonOrDefault(horizon)
	var out []TrainingSample
	for t := minHistory - 1; t+horizon < len(prices); t += step {
		out = append(out, TrainingSample{
			Date:        dates[t],
			Symbol:      symbol,
			Prices:      prices[:t+1],
			Factors:     factors,
			Target:      formulas.SimpleReturn(prices[t], prices[t+horizon]),
			HorizonDays: horizon,
		})
	}
	return out
}
