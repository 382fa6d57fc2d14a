// Package metrics exposes Prometheus collectors for the meeting host.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Config configures the collectors.
type Config struct {
	// Namespace prefixes every metric (default: "meetinghost").
	Namespace string
	// Registry receives the collectors (default: prometheus.DefaultRegisterer).
	Registry prometheus.Registerer
}

// Option configures Config.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

// Metrics holds the collectors.
type Metrics struct {
	activeMeetings      prometheus.Gauge
	participants        prometheus.Gauge
	connectionsAccepted *prometheus.CounterVec
	connectionsLimited  prometheus.Counter
	validations         *prometheus.CounterVec
	validationDuration  prometheus.Histogram
	eventsExecuted      *prometheus.CounterVec
	heartbeatEvictions  prometheus.Counter
}

// New registers the collectors.
func New(opts ...Option) *Metrics {
	cfg := Config{Namespace: "meetinghost", Registry: prometheus.DefaultRegisterer}
	for _, opt := range opts {
		opt(&cfg)
	}
	factory := promauto.With(cfg.Registry)

	return &Metrics{
		activeMeetings: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Name:      "active_meetings",
			Help:      "Number of meetings currently running",
		}),
		participants: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Name:      "participants",
			Help:      "Number of participants across all meetings",
		}),
		connectionsAccepted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "connections_accepted_total",
			Help:      "Connections accepted, by transport",
		}, []string{"transport"}),
		connectionsLimited: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "connections_rate_limited_total",
			Help:      "Connections closed by the per-host rate limiter",
		}),
		validations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "validations_total",
			Help:      "Handshake outcomes, by result and failing stage",
		}, []string{"result", "stage"}),
		validationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Name:      "validation_duration_seconds",
			Help:      "Time spent in the authentication handshake",
			Buckets:   prometheus.DefBuckets,
		}),
		eventsExecuted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "events_executed_total",
			Help:      "Meeting events executed by dispatch loops, by kind",
		}, []string{"kind"}),
		heartbeatEvictions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "heartbeat_evictions_total",
			Help:      "Participants removed for missing heartbeats or dead connections",
		}),
	}
}

func (m *Metrics) MeetingOpened() {
	if m == nil {
		return
	}
	m.activeMeetings.Inc()
}

func (m *Metrics) MeetingClosed() {
	if m == nil {
		return
	}
	m.activeMeetings.Dec()
}

func (m *Metrics) ParticipantJoined() {
	if m == nil {
		return
	}
	m.participants.Inc()
}

func (m *Metrics) ParticipantLeft() {
	if m == nil {
		return
	}
	m.participants.Dec()
}

func (m *Metrics) ConnectionAccepted(transport string) {
	if m == nil {
		return
	}
	m.connectionsAccepted.WithLabelValues(transport).Inc()
}

func (m *Metrics) ConnectionRateLimited() {
	if m == nil {
		return
	}
	m.connectionsLimited.Inc()
}

// ValidationFinished records a handshake outcome. An empty stage means success.
func (m *Metrics) ValidationFinished(stage string, elapsed time.Duration) {
	if m == nil {
		return
	}
	if stage == "" {
		m.validations.WithLabelValues("accepted", "").Inc()
	} else {
		m.validations.WithLabelValues("rejected", stage).Inc()
	}
	m.validationDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) EventExecuted(kind string) {
	if m == nil {
		return
	}
	m.eventsExecuted.WithLabelValues(kind).Inc()
}

func (m *Metrics) HeartbeatEviction() {
	if m == nil {
		return
	}
	m.heartbeatEvictions.Inc()
}
