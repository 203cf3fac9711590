package rebalancing

import (
	"fmt"
	"math"
	"time"

	"github.com/aristath/foresight/internal/domain"
	"github.com/aristath/foresight/pkg/formulas"
	"github.com/rs/zerolog"
)

// TriggerResult is the outcome of a trigger check
type TriggerResult struct {
	ShouldRebalance bool   `json:"should_rebalance"`
	Reason          string `json:"reason"`
}

// TriggerConfig holds the trigger thresholds
type TriggerConfig struct {
	// Interval is the cadence of the time-based policy; 0 disables it
	Interval                time.Duration
	DriftThreshold          float64
	CashThresholdMultiplier float64
	MinTradeSize            float64
}

// DefaultTriggerConfig uses 5% drift and 2× the minimum trade for cash
func DefaultTriggerConfig() TriggerConfig {
	return TriggerConfig{
		DriftThreshold:          DefaultThreshold,
		CashThresholdMultiplier: 2.0,
		MinTradeSize:            CalculateMinTradeAmount(1.0, 0.002, 0.01),
	}
}

// TriggerChecker decides whether a rebalance should run at all
type TriggerChecker struct {
	cfg TriggerConfig
	log zerolog.Logger
}

// NewTriggerChecker creates a trigger checker
func NewTriggerChecker(cfg TriggerConfig, log zerolog.Logger) *TriggerChecker {
	return &TriggerChecker{cfg: cfg, log: log.With().Str("component", "rebalancing_triggers").Logger()}
}

// ShouldRebalance fires when the interval elapsed since lastRebalance, when
// any held symbol drifted at least DriftThreshold from its target, or when
// idle cash reached the multiplier of the minimum trade size. A zero
// lastRebalance always fires.
func (tc *TriggerChecker) ShouldRebalance(p *domain.Portfolio, target map[string]float64, now, lastRebalance time.Time) TriggerResult {
	if p == nil || p.TotalValue <= 0 {
		return TriggerResult{Reason: "no portfolio value"}
	}
	if lastRebalance.IsZero() {
		return TriggerResult{ShouldRebalance: true, Reason: "initial rebalance"}
	}

	if tc.cfg.Interval > 0 {
		if now.Sub(lastRebalance) >= tc.cfg.Interval {
			return TriggerResult{ShouldRebalance: true, Reason: fmt.Sprintf("interval of %s elapsed", tc.cfg.Interval)}
		}
		return TriggerResult{Reason: "interval not elapsed"}
	}

	if r := tc.checkDrift(p, target); r.ShouldRebalance {
		return r
	}
	if r := tc.checkCash(p.Cash); r.ShouldRebalance {
		return r
	}
	return TriggerResult{Reason: "no triggers met"}
}

func (tc *TriggerChecker) checkDrift(p *domain.Portfolio, target map[string]float64) TriggerResult {
	if len(target) == 0 {
		return TriggerResult{Reason: "no target allocations provided"}
	}
	current := p.Weights()
	keys := make(map[string]float64, len(current)+len(target))
	for k := range current {
		keys[k] = 0
	}
	for k := range target {
		keys[k] = 0
	}
	for _, symbol := range formulas.SortedKeys(keys) {
		drift := math.Abs(current[symbol] - target[symbol])
		if drift >= tc.cfg.DriftThreshold {
			tc.log.Debug().
				Str("symbol", symbol).
				Float64("drift", drift).
				Float64("threshold", tc.cfg.DriftThreshold).
				Msg("Position drift detected")
			return TriggerResult{
				ShouldRebalance: true,
				Reason: fmt.Sprintf("position drift: %s drifted %.1f%% from target (threshold: %.1f%%)",
					symbol, drift*100, tc.cfg.DriftThreshold*100),
			}
		}
	}
	return TriggerResult{Reason: "no position drift detected"}
}

func (tc *TriggerChecker) checkCash(cash float64) TriggerResult {
	if cash <= 0 || tc.cfg.CashThresholdMultiplier <= 0 {
		return TriggerResult{Reason: "no cash available"}
	}
	threshold := tc.cfg.CashThresholdMultiplier * tc.cfg.MinTradeSize
	if cash >= threshold {
		return TriggerResult{
			ShouldRebalance: true,
			Reason:          fmt.Sprintf("cash accumulation: %.2f >= %.2f", cash, threshold),
		}
	}
	return TriggerResult{Reason: "cash below threshold"}
}
