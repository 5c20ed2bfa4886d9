// Package metrics exposes prometheus counters for lifecycle and notification activity.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Drop reasons for undelivered events
const (
	DropReasonQueueFull    = "queue_full"
	DropReasonSlowConsumer = "slow_consumer"
	DropReasonStopped      = "stopped"
)

// Metrics groups the service counters. A nil *Metrics is a valid no-op.
type Metrics struct {
	transitions    *prometheus.CounterVec
	rejections     *prometheus.CounterVec
	codeCollisions *prometheus.CounterVec
	eventsSent     *prometheus.CounterVec
	eventsDropped  *prometheus.CounterVec
	sinkErrors     *prometheus.CounterVec
	sweepExpired   *prometheus.CounterVec
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// Default returns the process-wide metrics registered on the default registerer.
func Default() *Metrics {
	defaultOnce.Do(func() {
		defaultMetrics = New(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

// New creates and registers the counters on registerer.
func New(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "keygate_lifecycle_transitions_total",
			Help: "Committed key and invite transitions.",
		}, []string{"entity", "to"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "keygate_lifecycle_rejections_total",
			Help: "Lifecycle operations rejected by the state machine or quota.",
		}, []string{"entity", "reason"}),
		codeCollisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "keygate_code_collisions_total",
			Help: "Generated codes that collided with an existing code.",
		}, []string{"entity"}),
		eventsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "keygate_events_delivered_total",
			Help: "Status events handed to a sink.",
		}, []string{"topic", "sink"}),
		eventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "keygate_events_dropped_total",
			Help: "Status events dropped before delivery.",
		}, []string{"topic", "reason"}),
		sinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "keygate_event_sink_errors_total",
			Help: "Sink delivery failures.",
		}, []string{"sink"}),
		sweepExpired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "keygate_sweep_expired_total",
			Help: "Entities expired by the background sweep.",
		}, []string{"entity"}),
	}

	registerer.MustRegister(
		m.transitions,
		m.rejections,
		m.codeCollisions,
		m.eventsSent,
		m.eventsDropped,
		m.sinkErrors,
		m.sweepExpired,
	)
	return m
}

func (m *Metrics) Transition(entity, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(entity, to).Inc()
}

func (m *Metrics) Rejection(entity, reason string) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(entity, reason).Inc()
}

func (m *Metrics) CodeCollision(entity string) {
	if m == nil {
		return
	}
	m.codeCollisions.WithLabelValues(entity).Inc()
}

func (m *Metrics) EventDelivered(topic, sink string) {
	if m == nil {
		return
	}
	m.eventsSent.WithLabelValues(topic, sink).Inc()
}

func (m *Metrics) EventDropped(topic, reason string) {
	if m == nil {
		return
	}
	m.eventsDropped.WithLabelValues(topic, reason).Inc()
}

func (m *Metrics) SinkError(sink string) {
	if m == nil {
		return
	}
	m.sinkErrors.WithLabelValues(sink).Inc()
}

func (m *Metrics) SweepExpired(entity string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.sweepExpired.WithLabelValues(entity).Add(float64(n))
}
