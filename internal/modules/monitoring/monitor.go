// Package monitoring tracks model performance over a rolling window and
// classifies model health.
package monitoring

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aristath/foresight/internal/domain"
	"github.com/rs/zerolog"
)

// Health thresholds
const (
	criticalAccuracy   = 0.6
	criticalConfidence = 0.7
	criticalValidation = 0.6
	warningAccuracy    = 0.7
	warningConfidence  = 0.8
	warningValidation  = 0.7

	trendThreshold = 0.10
)

// DefaultWindow is the retention window for metric history
const DefaultWindow = 24 * time.Hour

// TrendDirection describes how a metric family moved between the two most
// recent snapshots.
type TrendDirection string

const (
	TrendImproving     TrendDirection = "improving"
	TrendStable        TrendDirection = "stable"
	TrendDeteriorating TrendDirection = "deteriorating"
)

// Metric families tracked for trends
const (
	FamilyAccuracy   = "accuracy"
	FamilyConfidence = "confidence"
	FamilyValidation = "validation"
)

// Observer is notified after every metrics update
type Observer interface {
	OnModelMetrics(m domain.ModelPerformanceMetrics)
}

// ModelHealth is the monitor's view of one model
type ModelHealth struct {
	Current         domain.ModelPerformanceMetrics `json:"current"`
	Trends          map[string]TrendDirection      `json:"trends"`
	Recommendations []string                       `json:"recommendations"`
	Status          domain.HealthStatus            `json:"status"`
	HistorySize     int                            `json:"history_size"`
}

// Monitor owns per-model current and historical metrics. All state sits
// behind one RWMutex, so updates may arrive from any goroutine.
type Monitor struct {
	mu        sync.RWMutex
	window    time.Duration
	current   map[domain.ModelType]domain.ModelPerformanceMetrics
	history   map[domain.ModelType][]domain.ModelPerformanceMetrics
	observers []Observer
	log       zerolog.Logger
}

// NewMonitor creates a monitor retaining history for window
func NewMonitor(window time.Duration, log zerolog.Logger) *Monitor {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Monitor{
		window:  window,
		current: map[domain.ModelType]domain.ModelPerformanceMetrics{},
		history: map[domain.ModelType][]domain.ModelPerformanceMetrics{},
		log:     log.With().Str("component", "model_monitor").Logger(),
	}
}

// AddObserver registers o for future updates
func (m *Monitor) AddObserver(o Observer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, o)
}

// Classify derives a health status from one metrics snapshot
func Classify(metrics domain.ModelPerformanceMetrics) domain.HealthStatus {
	if metrics.Accuracy < criticalAccuracy || metrics.Confidence < criticalConfidence || anyBelow(metrics.ValidationAccuracy, criticalValidation) {
		return domain.HealthCritical
	}
	if metrics.Accuracy < warningAccuracy || metrics.Confidence < warningConfidence || anyBelow(metrics.ValidationAccuracy, warningValidation) {
		return domain.HealthWarning
	}
	return domain.HealthHealthy
}

func anyBelow(values map[domain.PredictionClass]float64, threshold float64) bool {
	for _, v := range values {
		if v < threshold {
			return true
		}
	}
	return false
}

// UpdateMetrics classifies metrics, stores them as current and appends them
// to the history, trimming entries older than the window measured from the
// newest timestamp.
func (m *Monitor) UpdateMetrics(metrics domain.ModelPerformanceMetrics) domain.HealthStatus {
	metrics.Status = Classify(metrics)

	m.mu.Lock()
	prev := m.current[metrics.ModelType].Status
	m.current[metrics.ModelType] = metrics
	hist := append(m.history[metrics.ModelType], metrics)
	m.history[metrics.ModelType] = trimWindow(hist, m.window)
	observers := append([]Observer(nil), m.observers...)
	m.mu.Unlock()

	if prev != metrics.Status {
		m.log.Info().
			Str("model", string(metrics.ModelType)).
			Str("from", string(prev)).
			Str("to", string(metrics.Status)).
			Float64("accuracy", metrics.Accuracy).
			Float64("confidence", metrics.Confidence).
			Msg("Model health changed")
	}
	for _, o := range observers {
		o.OnModelMetrics(metrics)
	}
	return metrics.Status
}

func trimWindow(hist []domain.ModelPerformanceMetrics, window time.Duration) []domain.ModelPerformanceMetrics {
	if len(hist) == 0 {
		return hist
	}
	latest := hist[0].Timestamp
	for _, h := range hist {
		if h.Timestamp.After(latest) {
			latest = h.Timestamp
		}
	}
	cutoff := latest.Add(-window)
	kept := hist[:0]
	for _, h := range hist {
		if !h.Timestamp.Before(cutoff) {
			kept = append(kept, h)
		}
	}
	return kept
}

// Status returns the current health of a model, Unknown if never updated
func (m *Monitor) Status(model domain.ModelType) domain.HealthStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cur, ok := m.current[model]
	if !ok {
		return domain.HealthUnknown
	}
	return cur.Status
}

// History returns a copy of a model's retained history
func (m *Monitor) History(model domain.ModelType) []domain.ModelPerformanceMetrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.ModelPerformanceMetrics(nil), m.history[model]...)
}

// Trends compares the two most recent snapshots per metric family
func (m *Monitor) Trends(model domain.ModelType) map[string]TrendDirection {
	m.mu.RLock()
	hist := m.history[model]
	var prev, last domain.ModelPerformanceMetrics
	n := len(hist)
	if n >= 2 {
		prev, last = hist[n-2], hist[n-1]
	}
	m.mu.RUnlock()

	out := map[string]TrendDirection{
		FamilyAccuracy:   TrendStable,
		FamilyConfidence: TrendStable,
		FamilyValidation: TrendStable,
	}
	if n < 2 {
		return out
	}
	out[FamilyAccuracy] = trendOf(prev.Accuracy, last.Accuracy)
	out[FamilyConfidence] = trendOf(prev.Confidence, last.Confidence)
	out[FamilyValidation] = trendOf(meanValidation(prev), meanValidation(last))
	return out
}

func meanValidation(m domain.ModelPerformanceMetrics) float64 {
	if len(m.ValidationAccuracy) == 0 {
		return 0
	}
	classes := make([]string, 0, len(m.ValidationAccuracy))
	for c := range m.ValidationAccuracy {
		classes = append(classes, string(c))
	}
	sort.Strings(classes)
	s := 0.0
	for _, c := range classes {
		s += m.ValidationAccuracy[domain.PredictionClass(c)]
	}
	return s / float64(len(classes))
}

func trendOf(prev, last float64) TrendDirection {
	if prev == 0 {
		switch {
		case last > 0:
			return TrendImproving
		case last < 0:
			return TrendDeteriorating
		default:
			return TrendStable
		}
	}
	change := (last - prev) / prev
	switch {
	case change > trendThreshold:
		return TrendImproving
	case change < -trendThreshold:
		return TrendDeteriorating
	default:
		return TrendStable
	}
}

// Recommendations derives advice text from status and trends
func (m *Monitor) Recommendations(model domain.ModelType) []string {
	status := m.Status(model)
	trends := m.Trends(model)

	var out []string
	switch status {
	case domain.HealthCritical:
		out = append(out, fmt.Sprintf("%s is critical: retrain on recent data or reduce its ensemble weight", model))
	case domain.HealthWarning:
		out = append(out, fmt.Sprintf("%s needs attention: review features and validation results", model))
	case domain.HealthUnknown:
		out = append(out, fmt.Sprintf("%s has no metrics yet: run validation before relying on it", model))
	}

	families := []string{FamilyAccuracy, FamilyConfidence, FamilyValidation}
	for _, f := range families {
		switch trends[f] {
		case TrendDeteriorating:
			out = append(out, fmt.Sprintf("%s %s is deteriorating: check for regime change or data drift", model, f))
		case TrendImproving:
			if status != domain.HealthHealthy {
				out = append(out, fmt.Sprintf("%s %s is improving: keep monitoring before raising its weight", model, f))
			}
		}
	}
	return out
}

// Health returns the full view of one model
func (m *Monitor) Health(model domain.ModelType) ModelHealth {
	m.mu.RLock()
	cur := m.current[model]
	size := len(m.history[model])
	m.mu.RUnlock()

	return ModelHealth{
		Current:         cur,
		Status:          m.Status(model),
		Trends:          m.Trends(model),
		Recommendations: m.Recommendations(model),
		HistorySize:     size,
	}
}

// Models lists every model with metrics, sorted by name
func (m *Monitor) Models() []domain.ModelType {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.ModelType, 0, len(m.current))
	for k := range m.current {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Overview returns the health of every known model
func (m *Monitor) Overview() map[domain.ModelType]ModelHealth {
	out := map[domain.ModelType]ModelHealth{}
	for _, model := range m.Models() {
		out[model] = m.Health(model)
	}
	return out
}

// Sweep re-trims every history against now. Used by the scheduler so idle
// models do not hold stale history forever.
func (m *Monitor) Sweep(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	cutoff := now.Add(-m.window)
	for model, hist := range m.history {
		kept := hist[:0]
		for _, h := range hist {
			if !h.Timestamp.Before(cutoff) {
				kept = append(kept, h)
			}
		}
		removed += len(hist) - len(kept)
		m.history[model] = kept
	}
	return removed
}
