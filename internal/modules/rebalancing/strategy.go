// Package rebalancing turns current vs target weights into trade actions
// under one of the rebalancing policies.
package rebalancing

import (
	"math"

	"github.com/aristath/foresight/internal/domain"
	"github.com/aristath/foresight/pkg/formulas"
	"github.com/rs/zerolog"
)

// DefaultThreshold is the base deviation allowed before trading
const DefaultThreshold = 0.05

// Fixed fractions of traded notional used for the impact estimate
const (
	TransactionCostRate  = 0.001
	MarketImpactRate     = 0.0005
	VolatilityImpactRate = 0.0002
)

// Config selects the policy and bounds trade amounts
type Config struct {
	Strategy             domain.RebalancingStrategyType `json:"strategy" yaml:"strategy"`
	Threshold            float64                        `json:"threshold" yaml:"threshold"`
	MinTransactionAmount float64                        `json:"min_transaction_amount" yaml:"min_transaction_amount"`
	// MaxTransactionAmount 0 means unbounded
	MaxTransactionAmount float64 `json:"max_transaction_amount" yaml:"max_transaction_amount"`
}

// DefaultConfig returns a threshold-based policy at 5%
func DefaultConfig() Config {
	return Config{Strategy: domain.RebalanceThresholdBased, Threshold: DefaultThreshold}
}

// MarketState carries the inputs that inflate the threshold
type MarketState struct {
	PortfolioVolatility float64
	PortfolioRiskLevel  float64
}

// Engine generates rebalancing plans
type Engine struct {
	cfg Config
	log zerolog.Logger
}

// NewEngine creates a rebalancing engine
func NewEngine(cfg Config, log zerolog.Logger) *Engine {
	if cfg.Strategy == "" {
		cfg.Strategy = domain.RebalanceThresholdBased
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	return &Engine{cfg: cfg, log: log.With().Str("component", "rebalancing_engine").Logger()}
}

// Config returns the engine configuration
func (e *Engine) Config() Config {
	return e.cfg
}

// EffectiveThreshold returns the policy threshold for the given state.
// TimeBased and ThresholdBased use the base threshold unchanged.
func (e *Engine) EffectiveThreshold(state MarketState) float64 {
	switch e.cfg.Strategy {
	case domain.RebalanceMarketCondition, domain.RebalanceVolatilityBased:
		return e.cfg.Threshold * (1 + state.PortfolioVolatility*0.1)
	case domain.RebalanceRiskBased:
		return e.cfg.Threshold * (1 + state.PortfolioRiskLevel*0.1)
	default:
		return e.cfg.Threshold
	}
}

// Plan compares current and target weights over the sorted union of keys and
// emits an action for every |delta| strictly above the effective threshold.
func (e *Engine) Plan(current, target map[string]float64, portfolioValue float64, state MarketState) domain.RebalancingPlan {
	threshold := e.EffectiveThreshold(state)
	plan := domain.RebalancingPlan{Strategy: e.cfg.Strategy, Threshold: threshold}

	keys := make(map[string]struct{}, len(current)+len(target))
	for k := range current {
		keys[k] = struct{}{}
	}
	for k := range target {
		keys[k] = struct{}{}
	}

	for _, key := range formulas.SortedKeys(keys) {
		cur, tgt := current[key], target[key]
		delta := tgt - cur
		if math.Abs(delta) <= threshold {
			continue
		}
		side := domain.SideBuy
		if delta < 0 {
			side = domain.SideSell
		}
		amount := e.boundAmount(math.Abs(delta) * portfolioValue)
		plan.Actions = append(plan.Actions, domain.Action{
			Key:             key,
			Side:            side,
			CurrentWeight:   cur,
			TargetWeight:    tgt,
			Delta:           delta,
			EstimatedAmount: amount,
			EstimatedImpact: amount * (TransactionCostRate + MarketImpactRate + VolatilityImpactRate),
		})
	}

	plan.Impact = EstimateImpact(plan.TradedNotional())

	e.log.Debug().
		Str("strategy", string(e.cfg.Strategy)).
		Float64("threshold", threshold).
		Int("actions", len(plan.Actions)).
		Msg("Rebalancing plan generated")
	return plan
}

func (e *Engine) boundAmount(amount float64) float64 {
	if amount < e.cfg.MinTransactionAmount {
		amount = e.cfg.MinTransactionAmount
	}
	if e.cfg.MaxTransactionAmount > 0 && amount > e.cfg.MaxTransactionAmount {
		amount = e.cfg.MaxTransactionAmount
	}
	return amount
}

// EstimateImpact applies the fixed impact fractions to a traded notional
func EstimateImpact(notional float64) domain.PerformanceImpact {
	impact := domain.PerformanceImpact{
		TransactionCost:  notional * TransactionCostRate,
		MarketImpact:     notional * MarketImpactRate,
		VolatilityImpact: notional * VolatilityImpactRate,
	}
	impact.Total = impact.TransactionCost + impact.MarketImpact + impact.VolatilityImpact
	return impact
}

// CalculateMinTradeAmount returns the trade size at which fixed plus
// proportional costs equal maxCostRatio of the trade.
//
// trade = fixed / (maxCostRatio - percent)
//
// When the proportional cost alone exceeds the ratio it returns 1000.
func CalculateMinTradeAmount(fixed, percent, maxCostRatio float64) float64 {
	denominator := maxCostRatio - percent
	if denominator <= 0 {
		return 1000.0
	}
	return fixed / denominator
}
