// Package allocation turns per-class forecasts and a risk profile into a
// risk-adjusted target allocation.
//
// The constraint step is a bounded greedy repair, not an efficient-frontier
// solve: when the allocation's total risk exceeds the profile's MaxRisk the
// riskiest class with positive weight is cut by a fixed fraction and the
// allocation renormalised, for at most MaxIterations rounds.
package allocation

import (
	"fmt"

	"github.com/aristath/foresight/internal/domain"
	"github.com/aristath/foresight/pkg/formulas"
	"github.com/rs/zerolog"
)

// ClassInput describes one asset class entering the optimizer
type ClassInput struct {
	Name           string  `json:"name"`
	BaseWeight     float64 `json:"base_weight"`
	ExpectedReturn float64 `json:"expected_return"`
	RiskFactor     float64 `json:"risk_factor"`
}

// Config bounds the repair loop
type Config struct {
	MaxIterations int
	ReductionStep float64
}

// DefaultConfig returns 100 iterations with 10% cuts
func DefaultConfig() Config {
	return Config{MaxIterations: 100, ReductionStep: 0.10}
}

// Result is a target allocation plus repair diagnostics
type Result struct {
	Weights       map[string]float64 `json:"weights"`
	AggregateRisk float64            `json:"aggregate_risk"`
	TotalRisk     float64            `json:"total_risk"`
	Iterations    int                `json:"iterations"`
	Converged     bool               `json:"converged"`
}

// Optimizer computes risk-adjusted class weights
type Optimizer struct {
	cfg Config
	log zerolog.Logger
}

// NewOptimizer creates an allocation optimizer
func NewOptimizer(cfg Config, log zerolog.Logger) *Optimizer {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultConfig().MaxIterations
	}
	if cfg.ReductionStep <= 0 || cfg.ReductionStep >= 1 {
		cfg.ReductionStep = DefaultConfig().ReductionStep
	}
	return &Optimizer{cfg: cfg, log: log.With().Str("component", "allocation_optimizer").Logger()}
}

// Optimize computes w_i = base_i × (1 + tolerance/100 − risk_i) × (1 +
// expected_i − aggregateRisk), clamps to [0,1], normalises, then repairs the
// MaxRisk constraint.
func (o *Optimizer) Optimize(classes []ClassInput, profile domain.RiskProfile) (Result, error) {
	if err := profile.Validate(); err != nil {
		return Result{}, err
	}
	if len(classes) == 0 {
		return Result{Weights: map[string]float64{}, Converged: true}, nil
	}

	risk := make(map[string]float64, len(classes))
	base := make(map[string]float64, len(classes))
	for _, c := range classes {
		if c.Name == "" {
			return Result{}, domain.NewValidationError(domain.ErrEmptySymbol, "classes.name", "asset class without name")
		}
		if _, dup := risk[c.Name]; dup {
			return Result{}, fmt.Errorf("duplicate asset class %q: %w", c.Name, domain.ErrInvalidConfig)
		}
		risk[c.Name] = formulas.Clamp01(c.RiskFactor)
		base[c.Name] = c.BaseWeight
	}
	base = formulas.Normalize(base)

	aggregate := totalRisk(base, risk)

	tolerance := profile.RiskTolerance / 100
	raw := make(map[string]float64, len(classes))
	for _, c := range classes {
		w := base[c.Name] * (1 + tolerance - risk[c.Name]) * (1 + c.ExpectedReturn - aggregate)
		raw[c.Name] = formulas.Clamp01(w)
	}
	weights := formulas.Normalize(raw)

	res := Result{AggregateRisk: aggregate}
	res.Weights, res.Iterations, res.Converged = o.repair(weights, risk, profile.MaxRisk)
	res.TotalRisk = totalRisk(res.Weights, risk)

	if !res.Converged {
		o.log.Warn().
			Float64("total_risk", res.TotalRisk).
			Float64("max_risk", profile.MaxRisk).
			Int("iterations", res.Iterations).
			Msg("Allocation risk constraint not met")
	}
	return res, nil
}

// repair cuts the riskiest funded class until total risk fits under maxRisk
func (o *Optimizer) repair(weights, risk map[string]float64, maxRisk float64) (map[string]float64, int, bool) {
	if maxRisk <= 0 {
		return weights, 0, totalRisk(weights, risk) <= 0
	}
	iterations := 0
	for totalRisk(weights, risk) > maxRisk && iterations < o.cfg.MaxIterations {
		riskiest := ""
		for _, name := range formulas.SortedKeys(weights) {
			if weights[name] <= 0 {
				continue
			}
			if riskiest == "" || risk[name] > risk[riskiest] {
				riskiest = name
			}
		}
		if riskiest == "" {
			break
		}
		weights[riskiest] *= 1 - o.cfg.ReductionStep
		weights = formulas.Normalize(weights)
		iterations++
	}
	return weights, iterations, totalRisk(weights, risk) <= maxRisk
}

func totalRisk(weights, risk map[string]float64) float64 {
	total := 0.0
	for _, name := range formulas.SortedKeys(weights) {
		total += weights[name] * risk[name]
	}
	return total
}
