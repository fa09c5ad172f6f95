// Package middleware provides cross-cutting concerns for the discovery
// pipeline: stage instrumentation and panic containment around units, and
// the Prometheus collector behind ports.MetricsCollector.
package middleware

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ahrav/go-reelscout/infrastructure/llm"
	"github.com/ahrav/go-reelscout/internal/ports"
)

const namespace = "reelscout"

// Metric names routed to dedicated collectors. Anything else lands in the
// generic event counter, value histogram or gauge.
const (
	MetricStageLatency = "pipeline_stage"
	MetricStageTotal   = "pipeline_stage_total"
	MetricSearches     = "searches_total"
	MetricResults      = "search_results"
)

// PrometheusMetrics implements ports.MetricsCollector and
// llm.CircuitBreakerMetrics on a caller-supplied registry.
type PrometheusMetrics struct {
	stageLatency *prometheus.HistogramVec
	stageTotal   *prometheus.CounterVec
	searches     *prometheus.CounterVec
	results      prometheus.Histogram

	llmLatency  *prometheus.HistogramVec
	llmRequests *prometheus.CounterVec
	llmTokens   *prometheus.CounterVec

	breakerState    prometheus.Gauge
	breakerTrips    prometheus.Counter
	breakerOutcomes *prometheus.CounterVec

	events *prometheus.CounterVec
	values *prometheus.HistogramVec
	gauges *prometheus.GaugeVec
}

var (
	_ ports.MetricsCollector    = (*PrometheusMetrics)(nil)
	_ llm.CircuitBreakerMetrics = (*PrometheusMetrics)(nil)
)

// NewPrometheusMetrics registers every collector on reg. Pass
// prometheus.DefaultRegisterer to expose them on the default /metrics
// handler, or a fresh registry in tests.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	f := promauto.With(reg)
	return &PrometheusMetrics{
		stageLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time of each pipeline stage.",
			Buckets:   []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"stage", "status"}),
		stageTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_runs_total",
			Help:      "Pipeline stage executions by outcome.",
		}, []string{"stage", "status"}),
		searches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Search requests by how they were answered.",
		}, []string{"source"}),
		results: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_results",
			Help:      "Number of results returned per search.",
			Buckets:   prometheus.LinearBuckets(0, 2, 7),
		}),

		llmLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      llm.MetricLLMLatency,
			Help:      "LLM request latency.",
			Buckets:   []float64{.25, .5, 1, 2, 5, 10, 20, 30, 60},
		}, []string{"provider", "model", "status"}),
		llmRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      llm.MetricLLMRequests,
			Help:      "LLM requests by outcome.",
		}, []string{"provider", "model", "status"}),
		llmTokens: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      llm.MetricLLMTokens,
			Help:      "LLM tokens consumed.",
		}, []string{"provider", "model", "token_type"}),

		breakerState: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "llm_circuit_breaker_state",
			Help:      "0 closed, 1 open, 2 half-open.",
		}),
		breakerTrips: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_circuit_breaker_trips_total",
			Help:      "Times the LLM circuit breaker opened.",
		}),
		breakerOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_circuit_breaker_calls_total",
			Help:      "Calls that passed through the breaker by outcome.",
		}, []string{"outcome"}),

		events: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Miscellaneous counted events.",
		}, []string{"event", "stage"}),
		values: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "observed_values",
			Help:      "Miscellaneous observed values.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"metric"}),
		gauges: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "state",
			Help:      "Miscellaneous point-in-time values.",
		}, []string{"metric"}),
	}
}

// RecordLatency records operation durations. Pipeline stages carry "stage"
// and "status" labels.
func (pm *PrometheusMetrics) RecordLatency(operation string, duration time.Duration, labels map[string]string) {
	if operation == MetricStageLatency {
		pm.stageLatency.WithLabelValues(label(labels, "stage"), label(labels, "status")).Observe(duration.Seconds())
		return
	}
	pm.values.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordCounter increments the counter named by metric.
func (pm *PrometheusMetrics) RecordCounter(metric string, value float64, labels map[string]string) {
	switch metric {
	case MetricStageTotal:
		pm.stageTotal.WithLabelValues(label(labels, "stage"), label(labels, "status")).Add(value)
	case MetricSearches:
		pm.searches.WithLabelValues(label(labels, "source")).Add(value)
	case llm.MetricLLMRequests:
		pm.llmRequests.WithLabelValues(label(labels, "provider"), label(labels, "model"), label(labels, "status")).Add(value)
	case llm.MetricLLMTokens:
		pm.llmTokens.WithLabelValues(label(labels, "provider"), label(labels, "model"), label(labels, "token_type")).Add(value)
	default:
		pm.events.WithLabelValues(metric, label(labels, "stage")).Add(value)
	}
}

// RecordGauge sets a point-in-time value.
func (pm *PrometheusMetrics) RecordGauge(metric string, value float64, _ map[string]string) {
	pm.gauges.WithLabelValues(metric).Set(value)
}

// RecordHistogram observes value in the histogram named by metric.
func (pm *PrometheusMetrics) RecordHistogram(metric string, value float64, labels map[string]string) {
	switch metric {
	case llm.MetricLLMLatency:
		pm.llmLatency.WithLabelValues(label(labels, "provider"), label(labels, "model"), label(labels, "status")).Observe(value)
	case MetricResults:
		pm.results.Observe(value)
	default:
		pm.values.WithLabelValues(metric).Observe(value)
	}
}

// RecordState implements llm.CircuitBreakerMetrics.
func (pm *PrometheusMetrics) RecordState(state llm.CircuitBreakerState) {
	pm.breakerState.Set(float64(state))
}

// RecordTrip implements llm.CircuitBreakerMetrics.
func (pm *PrometheusMetrics) RecordTrip() { pm.breakerTrips.Inc() }

// RecordSuccess implements llm.CircuitBreakerMetrics.
func (pm *PrometheusMetrics) RecordSuccess() { pm.breakerOutcomes.WithLabelValues("success").Inc() }

// RecordFailure implements llm.CircuitBreakerMetrics.
func (pm *PrometheusMetrics) RecordFailure() { pm.breakerOutcomes.WithLabelValues("failure").Inc() }

func label(labels map[string]string, key string) string {
	if v, ok := labels[key]; ok && v != "" {
		return v
	}
	return "unknown"
}
