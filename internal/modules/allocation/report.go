package allocation

import (
	"math"
	"sort"
)

// ClassAllocation compares the current and target share of one class
type ClassAllocation struct {
	Name         string  `json:"name"`
	TargetPct    float64 `json:"target_pct"`
	CurrentPct   float64 `json:"current_pct"`
	CurrentValue float64 `json:"current_value"`
	Deviation    float64 `json:"deviation"`
}

// Compare builds the sorted deviation report over the union of current and
// target keys. Keys missing on one side count as 0.
func Compare(current, target map[string]float64, totalValue float64) []ClassAllocation {
	names := make(map[string]bool, len(current)+len(target))
	for name := range current {
		names[name] = true
	}
	for name := range target {
		names[name] = true
	}

	out := make([]ClassAllocation, 0, len(names))
	for name := range names {
		cur := current[name]
		out = append(out, ClassAllocation{
			Name:         name,
			TargetPct:    round(target[name], 4),
			CurrentPct:   round(cur, 4),
			CurrentValue: round(cur*totalValue, 2),
			Deviation:    round(cur-target[name], 4),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})
	return out
}

// round rounds a float64 to n decimal places
func round(val float64, decimals int) float64 {
	multiplier := math.Pow(10, float64(decimals))
	return math.Round(val*multiplier) / multiplier
}
