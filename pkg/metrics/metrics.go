// Package metrics exposes the control plane's Prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "oats"

// Metrics holds the control plane's collectors. It implements the
// lifecycle stats interface of the investigation service and the
// subscriber stats interface of the stream manager.
type Metrics struct {
	// StartedTotal counts accepted investigations.
	StartedTotal prometheus.Counter

	// TerminalTotal counts finished investigations by terminal state.
	// Labels: state (succeeded|failed|cancelled|timed_out)
	TerminalTotal *prometheus.CounterVec

	// Running is the number of investigations currently in flight.
	Running prometheus.Gauge

	// Subscribers is the number of live (connection, investigation)
	// stream subscriptions.
	Subscribers prometheus.Gauge

	// Duration measures investigation wall-clock time in seconds.
	// Buckets span quick diagnostics to the default hard deadline.
	Duration prometheus.Histogram
}

// New builds and registers the collectors. Pass
// prometheus.DefaultRegisterer in production; tests use a fresh
// registry to avoid duplicate registration panics.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		StartedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "investigations_started_total",
			Help:      "Total number of investigations accepted.",
		}),
		TerminalTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "investigations_terminal_total",
			Help:      "Total number of investigations finished, by terminal state.",
		}, []string{"state"}),
		Running: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "investigations_running",
			Help:      "Number of investigations currently running.",
		}),
		Subscribers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stream_subscribers",
			Help:      "Number of active investigation stream subscriptions.",
		}),
		Duration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "investigation_duration_seconds",
			Help:      "Investigation wall-clock duration in seconds.",
			Buckets:   []float64{30, 60, 120, 300, 600, 1200, 1800, 3600},
		}),
	}
}

// InvestigationStarted records an accepted investigation.
func (m *Metrics) InvestigationStarted() {
	m.StartedTotal.Inc()
	m.Running.Inc()
}

// InvestigationTerminal records a finished investigation.
func (m *Metrics) InvestigationTerminal(state string, duration time.Duration) {
	m.TerminalTotal.WithLabelValues(state).Inc()
	m.Running.Dec()
	m.Duration.Observe(duration.Seconds())
}

// SubscriberAdded records a new stream subscription.
func (m *Metrics) SubscriberAdded() {
	m.Subscribers.Inc()
}

// SubscriberRemoved records a dropped stream subscription.
func (m *Metrics) SubscriberRemoved() {
	m.Subscribers.Dec()
}

// Handler returns the scrape endpoint for the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
