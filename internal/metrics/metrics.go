package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics represents the collection of bot Prometheus metrics
type Metrics struct {
	InputEvents        *prometheus.CounterVec
	InputFailures      *prometheus.CounterVec
	BehaviourOutcomes  *prometheus.CounterVec
	ActionErrors       *prometheus.CounterVec
	OutputEvents       *prometheus.CounterVec
	OutputDeliveries   *prometheus.CounterVec
	QueueDepth         *prometheus.GaugeVec
	BehavioursInFlight prometheus.Gauge

	gatherer prometheus.Gatherer
}

// NewMetrics creates all bot metrics and registers them on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	return NewMetricsWith(reg, reg)
}

// NewMetricsWith registers the metrics on reg and serves them from gatherer.
// Pass prometheus.DefaultRegisterer / DefaultGatherer to expose them next to
// the Go runtime collectors.
func NewMetricsWith(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	m := &Metrics{gatherer: gatherer}

	m.InputEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mewbot_input_events_total",
			Help: "Total number of events taken off the input queue",
		},
		[]string{"type"},
	)

	m.InputFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mewbot_input_failures_total",
			Help: "Total number of inputs that stopped with an error",
		},
		[]string{"input"},
	)

	m.BehaviourOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mewbot_behaviour_outcomes_total",
			Help: "Behaviour invocations by terminal state",
		},
		[]string{"behaviour", "outcome"},
	)

	m.ActionErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mewbot_action_errors_total",
			Help: "Behaviour invocations in which at least one action failed",
		},
		[]string{"behaviour"},
	)

	m.OutputEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mewbot_output_events_total",
			Help: "Total number of events taken off the output queue",
		},
		[]string{"type"},
	)

	m.OutputDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mewbot_output_deliveries_total",
			Help: "Output calls by result",
		},
		[]string{"output", "status"},
	)

	m.QueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mewbot_queue_depth",
			Help: "Events waiting in each queue",
		},
		[]string{"queue"},
	)

	m.BehavioursInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mewbot_behaviours_in_flight",
			Help: "Behaviour invocations currently running",
		},
	)

	reg.MustRegister(
		m.InputEvents,
		m.InputFailures,
		m.BehaviourOutcomes,
		m.ActionErrors,
		m.OutputEvents,
		m.OutputDeliveries,
		m.QueueDepth,
		m.BehavioursInFlight,
	)

	return m
}

// ObserveOutcome records one behaviour invocation.
func (m *Metrics) ObserveOutcome(behaviour, outcome string, failed bool) {
	m.BehaviourOutcomes.WithLabelValues(behaviour, outcome).Inc()
	if failed {
		m.ActionErrors.WithLabelValues(behaviour).Inc()
	}
}

// ObserveDelivery records one Output call.
func (m *Metrics) ObserveDelivery(output string, delivered bool) {
	status := "delivered"
	if !delivered {
		status = "failed"
	}
	m.OutputDeliveries.WithLabelValues(output, status).Inc()
}

// Handler returns the Prometheus HTTP handler for these metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
