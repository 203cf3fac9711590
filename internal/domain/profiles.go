package domain

import (
	"fmt"
	"sort"
)

// RiskProfile configures risk appetite. RiskTolerance is 0-100.
type RiskProfile struct {
	RiskTolerance float64 `json:"risk_tolerance" yaml:"risk_tolerance"`
	MaxRisk       float64 `json:"max_risk" yaml:"max_risk"`
}

// DefaultRiskProfile returns a moderate profile
func DefaultRiskProfile() RiskProfile {
	return RiskProfile{RiskTolerance: 50, MaxRisk: 0.6}
}

// Validate checks the profile bounds
func (r RiskProfile) Validate() error {
	if r.RiskTolerance < 0 || r.RiskTolerance > 100 {
		return NewValidationError(ErrInvalidConfig, "risk_tolerance", "must be within [0,100], got %.2f", r.RiskTolerance)
	}
	if r.MaxRisk < 0 {
		return NewValidationError(ErrInvalidConfig, "max_risk", "must not be negative")
	}
	return nil
}

// TaxProfile holds per-category tax rates
type TaxProfile struct {
	ShortTermRate         float64 `json:"short_term_rate" yaml:"short_term_rate"`
	LongTermRate          float64 `json:"long_term_rate" yaml:"long_term_rate"`
	DividendRate          float64 `json:"dividend_rate" yaml:"dividend_rate"`
	InterestRate          float64 `json:"interest_rate" yaml:"interest_rate"`
	CashYield             float64 `json:"cash_yield" yaml:"cash_yield"`
	LongTermThresholdDays int     `json:"long_term_threshold_days" yaml:"long_term_threshold_days"`
	WashSaleDays          int     `json:"wash_sale_days" yaml:"wash_sale_days"`
}

// DefaultTaxProfile returns common US-style rates
func DefaultTaxProfile() TaxProfile {
	return TaxProfile{
		ShortTermRate:         0.37,
		LongTermRate:          0.20,
		DividendRate:          0.15,
		InterestRate:          0.37,
		CashYield:             0.02,
		LongTermThresholdDays: 365,
		WashSaleDays:          30,
	}
}

// FeeSchedule holds the cost rates of one instrument category
type FeeSchedule struct {
	FeeRate          float64 `json:"fee_rate" yaml:"fee_rate"`
	SlippageRate     float64 `json:"slippage_rate" yaml:"slippage_rate"`
	MarketImpactRate float64 `json:"market_impact_rate" yaml:"market_impact_rate"`
}

// VolumeBucket scales market impact for trades up to MaxNotional.
// MaxNotional 0 means unbounded.
type VolumeBucket struct {
	MaxNotional      float64 `json:"max_notional" yaml:"max_notional"`
	ImpactMultiplier float64 `json:"impact_multiplier" yaml:"impact_multiplier"`
}

// TransactionCostProfile is the fee schedule used by the cost optimizer and
// the backtest executor.
type TransactionCostProfile struct {
	Schedules          map[InstrumentCategory]FeeSchedule `json:"schedules" yaml:"schedules"`
	Buckets            []VolumeBucket                     `json:"buckets" yaml:"buckets"`
	CommissionPerTrade float64                            `json:"commission_per_trade" yaml:"commission_per_trade"`
	MaxCostRate        float64                            `json:"max_cost_rate" yaml:"max_cost_rate"`
}

// DefaultTransactionCostProfile returns a retail-broker fee schedule
func DefaultTransactionCostProfile() TransactionCostProfile {
	return TransactionCostProfile{
		Schedules: map[InstrumentCategory]FeeSchedule{
			InstrumentEquity: {FeeRate: 0.0010, SlippageRate: 0.0005, MarketImpactRate: 0.0002},
			InstrumentBond:   {FeeRate: 0.0005, SlippageRate: 0.0003, MarketImpactRate: 0.0001},
			InstrumentETF:    {FeeRate: 0.0008, SlippageRate: 0.0003, MarketImpactRate: 0.0001},
			InstrumentOption: {FeeRate: 0.0020, SlippageRate: 0.0010, MarketImpactRate: 0.0005},
		},
		Buckets: []VolumeBucket{
			{MaxNotional: 10_000, ImpactMultiplier: 1.0},
			{MaxNotional: 100_000, ImpactMultiplier: 1.5},
			{MaxNotional: 1_000_000, ImpactMultiplier: 2.0},
			{MaxNotional: 0, ImpactMultiplier: 3.0},
		},
		CommissionPerTrade: 1.0,
		MaxCostRate:        0.01,
	}
}

// Schedule returns the fee schedule for a category, falling back to equity
func (c TransactionCostProfile) Schedule(cat InstrumentCategory) FeeSchedule {
	if s, ok := c.Schedules[cat]; ok {
		return s
	}
	return c.Schedules[InstrumentEquity]
}

// ImpactMultiplier returns the bucket multiplier for a trade notional
func (c TransactionCostProfile) ImpactMultiplier(notional float64) float64 {
	buckets := append([]VolumeBucket(nil), c.Buckets...)
	sort.SliceStable(buckets, func(i, j int) bool {
		// unbounded bucket sorts last
		if buckets[i].MaxNotional == 0 {
			return false
		}
		if buckets[j].MaxNotional == 0 {
			return true
		}
		return buckets[i].MaxNotional < buckets[j].MaxNotional
	})
	for _, b := range buckets {
		if b.MaxNotional == 0 || notional <= b.MaxNotional {
			return b.ImpactMultiplier
		}
	}
	return 1.0
}

// CostRate returns the proportional cost rate of a trade
func (c TransactionCostProfile) CostRate(cat InstrumentCategory, notional float64) float64 {
	s := c.Schedule(cat)
	return s.FeeRate + s.SlippageRate + s.MarketImpactRate*c.ImpactMultiplier(notional)
}

// ModelWeightingStrategy selects how ensemble weights are derived
type ModelWeightingStrategy string

const (
	WeightingEqual           ModelWeightingStrategy = "equal"
	WeightingPerformance     ModelWeightingStrategy = "performance_based"
	WeightingMarketCondition ModelWeightingStrategy = "market_condition_based"
	WeightingVolatility      ModelWeightingStrategy = "volatility_based"
	WeightingConfidence      ModelWeightingStrategy = "confidence_based"
)

// ParseWeightingStrategy validates a strategy name
func ParseWeightingStrategy(s string) (ModelWeightingStrategy, error) {
	switch st := ModelWeightingStrategy(s); st {
	case WeightingEqual, WeightingPerformance, WeightingMarketCondition, WeightingVolatility, WeightingConfidence:
		return st, nil
	case "":
		return WeightingEqual, nil
	default:
		return "", fmt.Errorf("unknown weighting strategy %q: %w", s, ErrInvalidConfig)
	}
}

// RebalancingStrategyType selects the rebalancing trigger policy
type RebalancingStrategyType string

const (
	RebalanceTimeBased       RebalancingStrategyType = "time_based"
	RebalanceThresholdBased  RebalancingStrategyType = "threshold_based"
	RebalanceMarketCondition RebalancingStrategyType = "market_condition_based"
	RebalanceVolatilityBased RebalancingStrategyType = "volatility_based"
	RebalanceRiskBased       RebalancingStrategyType = "risk_based"
)

// ParseRebalancingStrategy validates a strategy name
func ParseRebalancingStrategy(s string) (RebalancingStrategyType, error) {
	switch st := RebalancingStrategyType(s); st {
	case RebalanceTimeBased, RebalanceThresholdBased, RebalanceMarketCondition, RebalanceVolatilityBased, RebalanceRiskBased:
		return st, nil
	case "":
		return RebalanceThresholdBased, nil
	default:
		return "", fmt.Errorf("unknown rebalancing strategy %q: %w", s, ErrInvalidConfig)
	}
}
