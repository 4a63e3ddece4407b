package middleware

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/parley-dev/parley/pkg/server"
	"github.com/parley-dev/parley/pkg/session"
)

// MetricsConfig configures the Prometheus metrics.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "parley").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for session duration, in
	// seconds. Default: exponential from 1s to about 4.5h.
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus metrics.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the session duration histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "parley",
		Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics holds the Prometheus metric set for a parley server.
type Metrics struct {
	sessionsActive  prometheus.Gauge
	sessionsTotal   *prometheus.CounterVec
	sessionDuration *prometheus.HistogramVec
	eventsReceived  prometheus.Counter
	eventsDropped   prometheus.Counter
	commandsSent    prometheus.Counter
	transportErrors *prometheus.CounterVec
}

// globalMetrics is the singleton metric set, created on the first call
// to Prometheus().
var (
	globalMetrics   *Metrics
	globalMetricsMu sync.Mutex
)

func initMetrics(config MetricsConfig) *Metrics {
	factory := promauto.With(config.Registry)

	return &Metrics{
		sessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "active_sessions",
			Help:        "Number of live sessions",
			ConstLabels: config.ConstLabels,
		}),

		sessionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "sessions_total",
			Help:        "Total sessions created, by execution model",
			ConstLabels: config.ConstLabels,
		}, []string{"kind"}),

		sessionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "session_duration_seconds",
			Help:        "Session lifetime in seconds, by execution model",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"kind"}),

		eventsReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "client_events_total",
			Help:        "Total client events delivered to sessions",
			ConstLabels: config.ConstLabels,
		}),

		eventsDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "dropped_events_total",
			Help:        "Total client events dropped by backpressure or routing",
			ConstLabels: config.ConstLabels,
		}),

		commandsSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "commands_sent_total",
			Help:        "Total commands issued to clients",
			ConstLabels: config.ConstLabels,
		}),

		transportErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "transport_errors_total",
			Help:        "Total transport errors by type",
			ConstLabels: config.ConstLabels,
		}, []string{"type"}),
	}
}

// Prometheus initializes the metric set and returns it for wiring into
// a server. The set is a process-wide singleton; later calls return the
// first configuration.
//
// Example:
//
//	srv := server.New(cfg, apps)
//	middleware.Prometheus().Instrument(srv.Sessions())
//	srv.Handle("/metrics", promhttp.Handler())
func Prometheus(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}

	globalMetricsMu.Lock()
	if globalMetrics == nil {
		globalMetrics = initMetrics(config)
	}
	m := globalMetrics
	globalMetricsMu.Unlock()
	return m
}

// GetMetrics returns the singleton metric set, or nil when Prometheus
// has not been called.
func GetMetrics() *Metrics {
	globalMetricsMu.Lock()
	defer globalMetricsMu.Unlock()
	return globalMetrics
}

// Instrument hooks the metric set into a session manager's lifecycle
// callbacks. Session traffic counters are folded in when each session
// closes.
func (m *Metrics) Instrument(sm *server.SessionManager) {
	sm.SetOnSessionCreate(func(s session.Session) {
		m.sessionsActive.Inc()
		m.sessionsTotal.WithLabelValues(s.Kind().String()).Inc()
	})
	sm.SetOnSessionClose(func(s session.Session) {
		m.sessionsActive.Dec()
		st := s.Stats()
		m.sessionDuration.WithLabelValues(s.Kind().String()).
			Observe(time.Since(st.CreatedAt).Seconds())
		m.eventsReceived.Add(float64(st.EventsReceived))
		m.eventsDropped.Add(float64(st.EventsDropped))
		m.commandsSent.Add(float64(st.CommandsSent))
	})
}

// RecordTransportError counts a transport failure. Call it from custom
// transports; the error type becomes a label, so keep the set small.
func RecordTransportError(errorType string) {
	if m := GetMetrics(); m != nil {
		m.transportErrors.WithLabelValues(errorType).Inc()
	}
}
