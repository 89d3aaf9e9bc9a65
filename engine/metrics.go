package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides Prometheus-compatible metrics for case execution,
// mirroring the teacher's PrometheusMetrics (graph/metrics.go): gauges for
// current load, histograms for latency, counters for events that should
// alert on rate.
//
// Metrics exposed (namespaced "caseengine_"):
//
//   - cases_active (gauge): cases currently being driven.
//   - paths_pended_total (counter, labeled by basket): pend events.
//   - paths_ticketed_total (counter): non-local jumps raised.
//   - step_dispatch_latency_ms (histogram, labeled by step_kind).
//   - sanitize_repairs_total (counter, labeled by rule: S2, S3, S4).
//   - persist_failures_total (counter, labeled by op; the engine records put).
type Metrics struct {
	casesActive      prometheus.Gauge
	pathsPended      *prometheus.CounterVec
	pathsTicketed    prometheus.Counter
	dispatchLatency  *prometheus.HistogramVec
	sanitizeRepairs  *prometheus.CounterVec
	persistFailures  *prometheus.CounterVec
}

// NewMetrics registers the case engine's metric family against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		casesActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "caseengine",
			Name:      "cases_active",
			Help:      "Number of cases currently being driven.",
		}),
		pathsPended: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "caseengine",
			Name:      "paths_pended_total",
			Help:      "Total pend transitions, labeled by basket.",
		}, []string{"basket"}),
		pathsTicketed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "caseengine",
			Name:      "paths_ticketed_total",
			Help:      "Total non-local jumps (tickets) raised.",
		}),
		dispatchLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "caseengine",
			Name:      "step_dispatch_latency_ms",
			Help:      "Dispatch call duration in milliseconds, labeled by step kind.",
			Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000},
		}, []string{"step_kind"}),
		sanitizeRepairs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "caseengine",
			Name:      "sanitize_repairs_total",
			Help:      "Sanitizer repairs applied, labeled by rule (S2, S3, S4).",
		}, []string{"rule"}),
		persistFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "caseengine",
			Name:      "persist_failures_total",
			Help:      "Durable store operation failures, labeled by op.",
		}, []string{"op"}),
	}
}

func (m *Metrics) caseStarted() {
	if m != nil {
		m.casesActive.Inc()
	}
}

func (m *Metrics) caseFinished() {
	if m != nil {
		m.casesActive.Dec()
	}
}

func (m *Metrics) observePend(basket string) {
	if m != nil {
		m.pathsPended.WithLabelValues(basket).Inc()
	}
}

func (m *Metrics) observeTicket() {
	if m != nil {
		m.pathsTicketed.Inc()
	}
}

func (m *Metrics) observeDispatch(stepKind string, ms float64) {
	if m != nil {
		m.dispatchLatency.WithLabelValues(stepKind).Observe(ms)
	}
}

func (m *Metrics) observeRepair(rule string) {
	if m != nil {
		m.sanitizeRepairs.WithLabelValues(rule).Inc()
	}
}

func (m *Metrics) observePersistFailure(op string) {
	if m != nil {
		m.persistFailures.WithLabelValues(op).Inc()
	}
}
