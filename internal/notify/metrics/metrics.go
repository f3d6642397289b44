package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the notification pipeline.
type Metrics struct {
	// Events accepted onto the dispatch queue, by event type
	EventsEmitted *prometheus.CounterVec

	// Events dropped before dispatch (full queue or unmarshalable payload)
	EventsDropped prometheus.Counter

	// Publish attempts that failed at the sink
	PublishFailures prometheus.Counter

	// Publisher circuit transitions, by state entered
	BreakerTransitions *prometheus.CounterVec
}

// New creates a new Metrics instance with all notification metrics registered.
func New() *Metrics {
	return &Metrics{
		EventsEmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "goldleaves_notify_events_emitted_total",
			Help: "Total events accepted onto the dispatch queue by event type",
		}, []string{"event_type"}),

		EventsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "goldleaves_notify_events_dropped_total",
			Help: "Total events dropped before dispatch",
		}),

		PublishFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "goldleaves_notify_publish_failures_total",
			Help: "Total publish attempts that failed at the sink",
		}),

		BreakerTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "goldleaves_notify_breaker_transitions_total",
			Help: "Total publisher circuit transitions by state entered",
		}, []string{"state"}),
	}
}

// IncrementEmitted records one event accepted onto the queue.
func (m *Metrics) IncrementEmitted(eventType string) {
	if m != nil {
		m.EventsEmitted.WithLabelValues(eventType).Inc()
	}
}

// IncrementDropped records one event dropped before dispatch.
func (m *Metrics) IncrementDropped() {
	if m != nil {
		m.EventsDropped.Inc()
	}
}

// IncrementPublishFailure records one failed publish attempt.
func (m *Metrics) IncrementPublishFailure() {
	if m != nil {
		m.PublishFailures.Inc()
	}
}

// IncrementBreakerTransition records the publisher circuit entering a state.
func (m *Metrics) IncrementBreakerTransition(state string) {
	if m != nil {
		m.BreakerTransitions.WithLabelValues(state).Inc()
	}
}
