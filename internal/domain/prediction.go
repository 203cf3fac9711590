package domain

import "time"

// ModelType identifies a prediction model variant
type ModelType string

const (
	ModelStatistical       ModelType = "statistical"
	ModelTrendFollowing    ModelType = "trend_following"
	ModelLearnedRegression ModelType = "learned_regression"
	ModelEnsemble          ModelType = "ensemble"
)

// AllModelTypes lists the sub-model variants in their fixed combination order
var AllModelTypes = []ModelType{ModelStatistical, ModelTrendFollowing, ModelLearnedRegression}

// RiskLevel is a discrete risk bucket
type RiskLevel int

const (
	RiskLow    RiskLevel = 1
	RiskMedium RiskLevel = 2
	RiskHigh   RiskLevel = 3
)

func (r RiskLevel) String() string {
	switch r {
	case RiskLow:
		return "low"
	case RiskMedium:
		return "medium"
	case RiskHigh:
		return "high"
	default:
		return "unknown"
	}
}

// RiskLevelFromVolatility buckets a per-period volatility: below 5% low,
// below 10% medium, otherwise high.
func RiskLevelFromVolatility(vol float64) RiskLevel {
	switch {
	case vol < 0.05:
		return RiskLow
	case vol < 0.10:
		return RiskMedium
	default:
		return RiskHigh
	}
}

// RiskLevelFromScore rounds a blended risk score back to a bucket
func RiskLevelFromScore(score float64) RiskLevel {
	switch {
	case score < 1.5:
		return RiskLow
	case score < 2.5:
		return RiskMedium
	default:
		return RiskHigh
	}
}

// TrendDirection is the sign of a forecast trend
type TrendDirection string

const (
	TrendUp   TrendDirection = "up"
	TrendDown TrendDirection = "down"
	TrendFlat TrendDirection = "flat"
)

// TrendFromValue maps a signed value to a direction
func TrendFromValue(v float64) TrendDirection {
	switch {
	case v > 0:
		return TrendUp
	case v < 0:
		return TrendDown
	default:
		return TrendFlat
	}
}

// WeightedInput records one sub-model's contribution to an ensemble forecast
type WeightedInput struct {
	Model          ModelType `json:"model"`
	Weight         float64   `json:"weight"`
	ExpectedReturn float64   `json:"expected_return"`
	Confidence     float64   `json:"confidence"`
}

// Prediction holds the fields common to every forecast
type Prediction struct {
	Inputs         []WeightedInput `json:"inputs,omitempty"`
	Trend          TrendDirection  `json:"trend"`
	ExpectedReturn float64         `json:"expected_return"`
	Volatility     float64         `json:"volatility"`
	Confidence     float64         `json:"confidence"`
	TechnicalScore float64         `json:"technical_score"`
	HorizonDays    int             `json:"horizon_days"`
	RiskLevel      RiskLevel       `json:"risk_level"`
}

// MarketPrediction is a forecast for the market as a whole
type MarketPrediction struct {
	Prediction
	Date          time.Time `json:"date"`
	TrendStrength float64   `json:"trend_strength"`
}

// SecurityPrediction is a forecast for one symbol
type SecurityPrediction struct {
	Prediction
	Symbol string  `json:"symbol"`
	Beta   float64 `json:"beta"`
	Alpha  float64 `json:"alpha"`
}

// PortfolioPrediction is a forecast for a whole portfolio
type PortfolioPrediction struct {
	Prediction
	Securities           map[string]SecurityPrediction `json:"securities,omitempty"`
	DiversificationScore float64                       `json:"diversification_score"`
	ExpectedValue        float64                       `json:"expected_value"`
	CombinerScore        *float64                      `json:"combiner_score,omitempty"`
}

// MarketPredictionResult is returned by predictMarket
type MarketPredictionResult struct {
	Prediction MarketPrediction        `json:"prediction"`
	Metrics    ModelPerformanceMetrics `json:"metrics"`
	Confidence float64                 `json:"confidence"`
}

// SecurityPredictionResult is returned by predictSecurity
type SecurityPredictionResult struct {
	Prediction SecurityPrediction      `json:"prediction"`
	Metrics    ModelPerformanceMetrics `json:"metrics"`
	Confidence float64                 `json:"confidence"`
}

// PortfolioPredictionResult is returned by predictPortfolio
type PortfolioPredictionResult struct {
	Prediction PortfolioPrediction     `json:"prediction"`
	Metrics    ModelPerformanceMetrics `json:"metrics"`
	Confidence float64                 `json:"confidence"`
}

// Well-known economic indicator keys
const (
	IndicatorGDPGrowth     = "gdp_growth"
	IndicatorInflation     = "inflation"
	IndicatorInterestRate  = "interest_rate"
	IndicatorVolatility    = "volatility"
	IndicatorTrendStrength = "trend_strength"
	FactorMarketReturn     = "market_return"
)

// EconomicIndicatorKeys is the fixed feature order for economic inputs
var EconomicIndicatorKeys = []string{
	IndicatorGDPGrowth,
	IndicatorInflation,
	IndicatorInterestRate,
	IndicatorVolatility,
	IndicatorTrendStrength,
}

// EconomicContext maps indicator name to value for a date
type EconomicContext struct {
	Date       time.Time          `json:"date"`
	Indicators map[string]float64 `json:"indicators"`
}

// Value returns the indicator value, 0 when absent
func (c EconomicContext) Value(key string) float64 {
	if c.Indicators == nil {
		return 0
	}
	return c.Indicators[key]
}
