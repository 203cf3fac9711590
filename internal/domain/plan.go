package domain

// TradeSide is the direction of an action
type TradeSide string

const (
	SideBuy  TradeSide = "BUY"
	SideSell TradeSide = "SELL"
)

// Action is one proposed trade. It exists only when |Delta| exceeds the
// threshold of the policy that produced it.
type Action struct {
	Key             string    `json:"key"`
	Side            TradeSide `json:"side"`
	CurrentWeight   float64   `json:"current_weight"`
	TargetWeight    float64   `json:"target_weight"`
	Delta           float64   `json:"delta"`
	EstimatedAmount float64   `json:"estimated_amount"`
	EstimatedImpact float64   `json:"estimated_impact"`
	TaxImpact       float64   `json:"tax_impact,omitempty"`
	Cost            float64   `json:"cost,omitempty"`
}

// PerformanceImpact estimates the drag of executing a plan
type PerformanceImpact struct {
	TransactionCost  float64 `json:"transaction_cost"`
	MarketImpact     float64 `json:"market_impact"`
	VolatilityImpact float64 `json:"volatility_impact"`
	Total            float64 `json:"total"`
}

// RebalancingPlan is the ordered action list of one rebalancing decision
type RebalancingPlan struct {
	Strategy  RebalancingStrategyType `json:"strategy"`
	Actions   []Action                `json:"actions"`
	Impact    PerformanceImpact       `json:"impact"`
	Threshold float64                 `json:"threshold"`
}

// TradedNotional sums the estimated amounts of all actions
func (p RebalancingPlan) TradedNotional() float64 {
	total := 0.0
	for _, a := range p.Actions {
		total += a.EstimatedAmount
	}
	return total
}
