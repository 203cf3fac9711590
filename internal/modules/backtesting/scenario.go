// Package backtesting replays the forecasting and optimisation pipeline day
// by day over history.
package backtesting

import (
	"fmt"

	"github.com/aristath/foresight/internal/domain"
	"github.com/aristath/foresight/internal/modules/optimization"
)

// Scenario defaults
const (
	DefaultHorizonDays      = 5
	DefaultLookbackDays     = 365
	DefaultMinHistoryBars   = 30
	DefaultRetrainEveryDays = 20
	DefaultMinTradeAmount   = 100.0
)

// Scenario is one independent simulation. Scenarios never share state.
type Scenario struct {
	Name string `json:"name" yaml:"name"`
	// PortfolioID seeds the starting portfolio from the historical snapshot
	// provider; when empty the scenario starts from InitialCash.
	PortfolioID  string                `json:"portfolio_id,omitempty" yaml:"portfolio_id"`
	InitialCash  float64               `json:"initial_cash" yaml:"initial_cash"`
	Symbols      []string              `json:"symbols" yaml:"symbols"`
	MarketSymbol string                `json:"market_symbol" yaml:"market_symbol"`
	Securities   []domain.SecurityInfo `json:"securities,omitempty" yaml:"securities"`

	Profiles  optimization.Profiles         `json:"profiles" yaml:"profiles"`
	Weighting domain.ModelWeightingStrategy `json:"weighting" yaml:"weighting"`

	HorizonDays           int     `json:"horizon_days" yaml:"horizon_days"`
	LookbackDays          int     `json:"lookback_days" yaml:"lookback_days"`
	LookaheadDays         int     `json:"lookahead_days" yaml:"lookahead_days"`
	MinHistoryBars        int     `json:"min_history_bars" yaml:"min_history_bars"`
	RetrainEveryDays      int     `json:"retrain_every_days" yaml:"retrain_every_days"`
	RebalanceIntervalDays int     `json:"rebalance_interval_days" yaml:"rebalance_interval_days"`
	MinTradeAmount        float64 `json:"min_trade_amount" yaml:"min_trade_amount"`
	RiskFreeRate          float64 `json:"risk_free_rate" yaml:"risk_free_rate"`
	AssumedMarketReturn   float64 `json:"assumed_market_return" yaml:"assumed_market_return"`
}

// DefaultScenario returns a scenario with every tunable at its default.
// Scenario files are decoded on top of it.
func DefaultScenario() Scenario {
	return Scenario{
		Profiles:         optimization.DefaultProfiles(),
		Weighting:        domain.WeightingEqual,
		HorizonDays:      DefaultHorizonDays,
		LookbackDays:     DefaultLookbackDays,
		MinHistoryBars:   DefaultMinHistoryBars,
		RetrainEveryDays: DefaultRetrainEveryDays,
		MinTradeAmount:   DefaultMinTradeAmount,
	}
}

// withDefaults fills zero values left by partially specified scenarios
func (s Scenario) withDefaults() Scenario {
	d := DefaultScenario()
	if s.HorizonDays <= 0 {
		s.HorizonDays = d.HorizonDays
	}
	if s.LookbackDays <= 0 {
		s.LookbackDays = d.LookbackDays
	}
	if s.MinHistoryBars <= 0 {
		s.MinHistoryBars = d.MinHistoryBars
	}
	if s.RetrainEveryDays < 0 {
		s.RetrainEveryDays = 0
	}
	if s.Weighting == "" {
		s.Weighting = d.Weighting
	}
	if s.MarketSymbol == "" && len(s.Symbols) > 0 {
		s.MarketSymbol = s.Symbols[0]
	}
	if s.Profiles.Cost.Schedules == nil {
		s.Profiles.Cost = d.Profiles.Cost
	}
	if s.Profiles.Tax.LongTermThresholdDays == 0 {
		s.Profiles.Tax = d.Profiles.Tax
	}
	if s.Profiles.Risk == (domain.RiskProfile{}) {
		s.Profiles.Risk = d.Profiles.Risk
	}
	return s
}

// Validate checks the scenario before any data is fetched
func (s Scenario) Validate() error {
	if s.Name == "" {
		return domain.NewValidationError(domain.ErrInvalidConfig, "name", "scenario name is required")
	}
	if len(s.Symbols) == 0 {
		return domain.NewValidationError(domain.ErrEmptySymbol, "symbols", "scenario %s has no symbols", s.Name)
	}
	seen := make(map[string]bool, len(s.Symbols))
	for _, sym := range s.Symbols {
		if sym == "" {
			return domain.NewValidationError(domain.ErrEmptySymbol, "symbols", "scenario %s lists an empty symbol", s.Name)
		}
		if seen[sym] {
			return domain.NewValidationError(domain.ErrInvalidConfig, "symbols", "scenario %s lists %s twice", s.Name, sym)
		}
		seen[sym] = true
	}
	if s.InitialCash < 0 {
		return domain.NewValidationError(domain.ErrInvalidConfig, "initial_cash", "must not be negative")
	}
	if s.PortfolioID == "" && s.InitialCash == 0 {
		return domain.NewValidationError(domain.ErrInvalidConfig, "initial_cash", "scenario %s needs initial cash or a portfolio id", s.Name)
	}
	if s.LookaheadDays < 0 {
		return domain.NewValidationError(domain.ErrInvalidConfig, "lookahead_days", "must not be negative")
	}
	if _, err := domain.ParseWeightingStrategy(string(s.Weighting)); err != nil {
		return fmt.Errorf("scenario %s: %w", s.Name, err)
	}
	if _, err := domain.ParseRebalancingStrategy(string(s.Profiles.Rebalancing.Strategy)); err != nil {
		return fmt.Errorf("scenario %s: %w", s.Name, err)
	}
	return s.Profiles.Risk.Validate()
}

// catalog indexes the scenario's security tags by symbol
func (s Scenario) catalog() map[string]domain.SecurityInfo {
	out := make(map[string]domain.SecurityInfo, len(s.Securities))
	for _, info := range s.Securities {
		out[info.Symbol] = info
	}
	return out
}
