package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "vlm_gateway"

// Metrics holds the gateway's Prometheus collectors.
//
//   - vlm_gateway_backend_latency_seconds: one observation per routed backend call
//   - vlm_gateway_backend_errors_total: routed calls that produced an error result, by kind
//   - vlm_gateway_feedback_records_total: feedback submissions by dataset and outcome
type Metrics struct {
	latency  *prometheus.HistogramVec
	errors   *prometheus.CounterVec
	feedback *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "backend_latency_seconds",
				Help:      "Wall-clock latency of routed backend calls, including normalization",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"route", "backend", "outcome"},
		),
		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "backend_errors_total",
				Help:      "Routed backend calls that ended in an error result",
			},
			[]string{"backend", "kind"},
		),
		feedback: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "feedback_records_total",
				Help:      "Feedback submissions by dataset and outcome",
			},
			[]string{"dataset", "status"},
		),
	}

	reg.MustRegister(m.latency, m.errors, m.feedback)
	return m
}

// ObserveBackendCall records one routed call. kind is empty for successful calls.
func (m *Metrics) ObserveBackendCall(route, backend string, elapsed time.Duration, kind string) {
	if m == nil {
		return
	}
	outcome := "success"
	if kind != "" {
		outcome = "error"
		m.errors.WithLabelValues(backend, kind).Inc()
	}
	m.latency.WithLabelValues(route, backend, outcome).Observe(elapsed.Seconds())
}

func (m *Metrics) RecordFeedback(dataset string, ok bool) {
	if m == nil {
		return
	}
	status := "ok"
	if !ok {
		status = "error"
	}
	m.feedback.WithLabelValues(dataset, status).Inc()
}
