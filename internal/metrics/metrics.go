// Package metrics exposes Prometheus collectors for model health, backtest
// runs and the HTTP API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/aristath/foresight/internal/domain"
	"github.com/aristath/foresight/internal/modules/backtesting"
	"github.com/aristath/foresight/internal/modules/monitoring"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "foresight"

var healthStatuses = []domain.HealthStatus{
	domain.HealthUnknown,
	domain.HealthHealthy,
	domain.HealthWarning,
	domain.HealthCritical,
}

// Registry holds every collector on a private Prometheus registry
type Registry struct {
	registry *prometheus.Registry

	ModelAccuracy *prometheus.GaugeVec
	ModelF1       *prometheus.GaugeVec
	ModelHealth   *prometheus.GaugeVec
	ModelUpdates  *prometheus.CounterVec

	ScenariosFinished *prometheus.CounterVec
	ScenarioDuration  prometheus.Histogram
	ScenarioReturn    *prometheus.GaugeVec
	RunsFinished      prometheus.Counter
	RunDuration       prometheus.Histogram

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

var (
	_ monitoring.Observer  = (*Registry)(nil)
	_ backtesting.Observer = (*Registry)(nil)
)

// NewRegistry creates and registers all collectors, including the Go
// runtime and process collectors.
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),

		ModelAccuracy: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "model_accuracy",
				Help:      "Latest directional accuracy per model (0.0 to 1.0)",
			},
			[]string{"model"},
		),
		ModelF1: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "model_f1",
				Help:      "Latest F1 score per model",
			},
			[]string{"model"},
		),
		ModelHealth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "model_health",
				Help:      "1 for the current health status of each model, 0 otherwise",
			},
			[]string{"model", "status"},
		),
		ModelUpdates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "model_metric_updates_total",
				Help:      "Total number of metric updates recorded per model",
			},
			[]string{"model"},
		),

		ScenariosFinished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "backtest_scenarios_total",
				Help:      "Total number of finished backtest scenarios by stop reason",
			},
			[]string{"stop_reason"},
		),
		ScenarioDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "backtest_scenario_duration_seconds",
				Help:      "Wall time of one backtest scenario",
				Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
		),
		ScenarioReturn: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "backtest_scenario_total_return",
				Help:      "Total return of the most recent run of each scenario",
			},
			[]string{"scenario"},
		),
		RunsFinished: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "backtest_runs_total",
				Help:      "Total number of finished backtest runs",
			},
		),
		RunDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "backtest_run_duration_seconds",
				Help:      "Wall time of one backtest run",
				Buckets:   []float64{0.5, 1, 5, 10, 30, 60, 120, 300, 600},
			},
		),

		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests by route and status",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency by route",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.ModelAccuracy, r.ModelF1, r.ModelHealth, r.ModelUpdates,
		r.ScenariosFinished, r.ScenarioDuration, r.ScenarioReturn, r.RunsFinished, r.RunDuration,
		r.HTTPRequests, r.HTTPDuration,
	)
	return r
}

// Handler serves the registry in the Prometheus exposition format
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Gatherer exposes the underlying registry
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// OnModelMetrics implements monitoring.Observer
func (r *Registry) OnModelMetrics(m domain.ModelPerformanceMetrics) {
	model := string(m.ModelType)
	r.ModelAccuracy.WithLabelValues(model).Set(m.Accuracy)
	r.ModelF1.WithLabelValues(model).Set(m.F1)
	r.ModelUpdates.WithLabelValues(model).Inc()
	for _, status := range healthStatuses {
		v := 0.0
		if status == m.Status {
			v = 1
		}
		r.ModelHealth.WithLabelValues(model, string(status)).Set(v)
	}
}

// ScenarioFinished implements backtesting.Observer
func (r *Registry) ScenarioFinished(result backtesting.ScenarioResult, elapsed time.Duration) {
	r.ScenariosFinished.WithLabelValues(string(result.StopReason)).Inc()
	r.ScenarioDuration.Observe(elapsed.Seconds())
	r.ScenarioReturn.WithLabelValues(result.Name).Set(result.Performance.TotalReturn)
}

// RunFinished implements backtesting.Observer
func (r *Registry) RunFinished(_ *backtesting.Result, elapsed time.Duration) {
	r.RunsFinished.Inc()
	r.RunDuration.Observe(elapsed.Seconds())
}

// ObserveHTTP records one served request
func (r *Registry) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	r.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	r.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
