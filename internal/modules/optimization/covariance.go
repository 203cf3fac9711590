package optimization

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/aristath/foresight/pkg/formulas"
)

// maxShrinkage caps the shrinkage intensity toward the constant-correlation target
const maxShrinkage = 0.5

// alignTail cuts every series to the shortest common tail, in sorted symbol order
func alignTail(returns map[string][]float64) ([]string, [][]float64) {
	symbols := formulas.SortedKeys(returns)
	n := -1
	for _, s := range symbols {
		if l := len(returns[s]); n < 0 || l < n {
			n = l
		}
	}
	cols := make([][]float64, len(symbols))
	for i, s := range symbols {
		r := returns[s]
		cols[i] = r[len(r)-n:]
	}
	return symbols, cols
}

// sampleCovariance builds the sample covariance (N-1 denominator)
func sampleCovariance(cols [][]float64) (*mat.SymDense, error) {
	n := len(cols)
	if n == 0 {
		return nil, fmt.Errorf("no return series provided")
	}
	if len(cols[0]) < 2 {
		return nil, fmt.Errorf("insufficient data: need at least 2 observations, got %d", len(cols[0]))
	}
	cov := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			cov.SetSym(i, j, stat.Covariance(cols[i], cols[j], nil))
		}
	}
	return cov, nil
}

// shrink pulls the sample covariance toward a constant-covariance target.
// The intensity is estimated from the dispersion of the sample entries and
// capped at maxShrinkage; two-asset matrices use a fixed 0.2.
func shrink(sample *mat.SymDense) *mat.SymDense {
	n := sample.SymmetricDim()
	if n < 2 {
		return sample
	}

	var avgVar, avgCov float64
	for i := 0; i < n; i++ {
		avgVar += sample.At(i, i)
		for j := 0; j < n; j++ {
			if i != j {
				avgCov += sample.At(i, j)
			}
		}
	}
	avgVar /= float64(n)
	avgCov /= float64(n * (n - 1))
	if avgVar <= 0 {
		avgCov = 0
	}
	target := func(i, j int) float64 {
		if i == j {
			return avgVar
		}
		return avgCov
	}

	intensity := 0.2
	if n > 2 && avgVar > 0 {
		var sumSqDiff, sum, sumSq float64
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				v := sample.At(i, j)
				d := v - target(i, j)
				sumSqDiff += d * d
				sum += v
				sumSq += v * v
			}
		}
		cells := float64(n * n)
		meanSqDiff := sumSqDiff / cells
		mean := sum / cells
		variance := sumSq/cells - mean*mean
		if variance > 0 && meanSqDiff > 0 {
			intensity = math.Min(maxShrinkage, math.Max(0, variance/(variance+meanSqDiff)))
		}
	}

	out := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			out.SetSym(i, j, (1-intensity)*sample.At(i, j)+intensity*target(i, j))
		}
	}
	return out
}

// ShrunkCovariance returns the shrunk covariance of tail-aligned return
// series together with the symbol order of its rows.
func ShrunkCovariance(returns map[string][]float64) ([]string, *mat.SymDense, error) {
	symbols, cols := alignTail(returns)
	sample, err := sampleCovariance(cols)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to calculate sample covariance: %w", err)
	}
	return symbols, shrink(sample), nil
}

// PortfolioVolatility is the per-period volatility sqrt(wᵀΣw) of the
// weighted position series. Symbols without enough history are ignored; the
// result is 0 when nothing usable remains.
func PortfolioVolatility(weights map[string]float64, returns map[string][]float64) float64 {
	usable := make(map[string][]float64, len(returns))
	for s, r := range returns {
		if weights[s] != 0 && len(r) >= 2 {
			usable[s] = r
		}
	}
	if len(usable) == 0 {
		return 0
	}
	symbols, cov, err := ShrunkCovariance(usable)
	if err != nil {
		return 0
	}
	w := mat.NewVecDense(len(symbols), nil)
	for i, s := range symbols {
		w.SetVec(i, weights[s])
	}
	variance := mat.Inner(w, cov, w)
	if variance <= 0 {
		return 0
	}
	return math.Sqrt(variance)
}
