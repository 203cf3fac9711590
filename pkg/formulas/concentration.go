package formulas

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Gini computes the Gini coefficient of a set of non-negative weights.
// Equal weights give 0; a single dominant weight among n gives (n-1)/n.
func Gini(weights []float64) float64 {
	n := len(weights)
	if n < 2 {
		return 0
	}

	sorted := make([]float64, n)
	copy(sorted, weights)
	sort.Float64s(sorted)

	var total, weighted float64
	for i, w := range sorted {
		if w < 0 {
			w = 0
		}
		total += w
		weighted += float64(2*(i+1)-n-1) * w
	}
	if total == 0 {
		return 0
	}
	return weighted / (float64(n) * total)
}

// Herfindahl is the sum of squared weights
func Herfindahl(weights []float64) float64 {
	h := 0.0
	for _, w := range weights {
		h += w * w
	}
	return h
}

// NormalizedEntropy is the Shannon entropy of a distribution divided by the
// log of its number of populated categories. A single category scores 0 and a
// uniform spread scores 1.
func NormalizedEntropy(distribution map[string]float64) float64 {
	total := 0.0
	populated := 0
	for _, v := range distribution {
		if v > 0 {
			total += v
			populated++
		}
	}
	if populated < 2 || total == 0 {
		return 0
	}

	probs := make([]float64, 0, populated)
	for _, k := range SortedKeys(distribution) {
		if v := distribution[k]; v > 0 {
			probs = append(probs, v/total)
		}
	}
	return Clamp01(stat.Entropy(probs) / math.Log(float64(populated)))
}

// AveragePairwiseCorrelation averages Pearson correlation across every pair of
// series, visiting keys in sorted order.
func AveragePairwiseCorrelation(series map[string][]float64) float64 {
	keys := SortedKeys(series)
	sum := 0.0
	pairs := 0
	for i := 0; i < len(keys); i++ {
		for j := i + 1; j < len(keys); j++ {
			a, b := series[keys[i]], series[keys[j]]
			n := len(a)
			if len(b) < n {
				n = len(b)
			}
			if n < 2 {
				continue
			}
			sum += Correlation(a[len(a)-n:], b[len(b)-n:])
			pairs++
		}
	}
	if pairs == 0 {
		return 0
	}
	return sum / float64(pairs)
}

// Normalize scales weights to sum to 1. Negative entries are treated as 0 and
// an all-zero input becomes an equal split.
func Normalize(weights map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(weights))
	if len(weights) == 0 {
		return out
	}
	total := 0.0
	for _, k := range SortedKeys(weights) {
		if w := weights[k]; w > 0 {
			total += w
		}
	}
	if total == 0 {
		eq := 1.0 / float64(len(weights))
		for k := range weights {
			out[k] = eq
		}
		return out
	}
	for k, w := range weights {
		if w < 0 {
			w = 0
		}
		out[k] = w / total
	}
	return out
}

// SortedKeys returns the keys of m in ascending order
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
