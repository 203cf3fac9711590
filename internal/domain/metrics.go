package domain

import "time"

// HealthStatus is the monitor's classification of a model
type HealthStatus string

const (
	HealthUnknown  HealthStatus = "unknown"
	HealthHealthy  HealthStatus = "healthy"
	HealthWarning  HealthStatus = "warning"
	HealthCritical HealthStatus = "critical"
)

// PredictionClass names a validation bucket
type PredictionClass string

const (
	ClassMarket    PredictionClass = "market"
	ClassSecurity  PredictionClass = "security"
	ClassPortfolio PredictionClass = "portfolio"
)

// ModelPerformanceMetrics is one snapshot of a model's quality
type ModelPerformanceMetrics struct {
	Timestamp          time.Time                   `json:"timestamp"`
	ValidationAccuracy map[PredictionClass]float64 `json:"validation_accuracy,omitempty"`
	ModelType          ModelType                   `json:"model_type"`
	Status             HealthStatus                `json:"status"`
	Accuracy           float64                     `json:"accuracy"`
	Precision          float64                     `json:"precision"`
	Recall             float64                     `json:"recall"`
	F1                 float64                     `json:"f1"`
	Confidence         float64                     `json:"confidence"`
	R2                 float64                     `json:"r2"`
	MAE                float64                     `json:"mae"`
	RMSE               float64                     `json:"rmse"`
	Samples            int                         `json:"samples"`
}

// PerformanceMetric is one daily sample of a backtest
type PerformanceMetric struct {
	Date       time.Time `json:"date"`
	Value      float64   `json:"value"`
	Return     float64   `json:"return"`
	Volatility float64   `json:"volatility"`
	Sharpe     float64   `json:"sharpe"`
	Sortino    float64   `json:"sortino"`
}
