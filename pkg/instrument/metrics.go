package instrument

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/vango-dev/state/pkg/state"
)

// MetricsConfig configures the store metrics.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "state").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for write duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the store metrics.
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

// WithBuckets sets the histogram buckets.
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
		Namespace: "state",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics holds the Prometheus collectors for a set of stores. Every
// collector is labelled by store name.
type Metrics struct {
	writesTotal        *prometheus.CounterVec
	writeDuration      *prometheus.HistogramVec
	notificationsTotal *prometheus.CounterVec
	version            *prometheus.GaugeVec
	renderFailures     *prometheus.CounterVec
	connections        *prometheus.GaugeVec
}

// NewMetrics registers the store collectors. Registering twice against the
// same registry panics, as with promauto.
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Metrics{
		writesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "writes_total",
			Help:        "Total number of store writes through the persistence hook",
			ConstLabels: config.ConstLabels,
		}, []string{"store", "status"}),

		writeDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "write_duration_seconds",
			Help:        "Persistence hook duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"store"}),

		notificationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "notifications_total",
			Help:        "Total number of change notifications delivered by a store",
			ConstLabels: config.ConstLabels,
		}, []string{"store"}),

		version: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "version",
			Help:        "Current version of a store",
			ConstLabels: config.ConstLabels,
		}, []string{"store"}),

		renderFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "render_failures_total",
			Help:        "Total number of subscription renders that failed",
			ConstLabels: config.ConstLabels,
		}, []string{"store"}),

		connections: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "live_connections",
			Help:        "Number of open live WebSocket connections",
			ConstLabels: config.ConstLabels,
		}, []string{"store"}),
	}
}

// Persist wraps a persistence hook so every write is counted and timed.
// A nil hook is treated as the identity.
func Persist[T any](m *Metrics, name string, fn state.PersistFunc[T]) state.PersistFunc[T] {
	return func(ctx context.Context, value T) (T, error) {
		start := time.Now()
		var (
			out T
			err error
		)
		if fn == nil {
			out = value
		} else {
			out, err = fn(ctx, value)
		}
		m.writeDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())

		status := "success"
		if err != nil {
			status = "error"
		}
		m.writesTotal.WithLabelValues(name, status).Inc()
		return out, err
	}
}

// Watch counts the notifications of store and tracks its version. The
// returned func stops watching.
func Watch[T any](m *Metrics, name string, store state.Store[T]) (cancel func()) {
	m.version.WithLabelValues(name).Set(float64(store.Version()))
	return store.Listen(func(T) {
		m.notificationsTotal.WithLabelValues(name).Inc()
		m.version.WithLabelValues(name).Set(float64(store.Version()))
	})
}

// RenderFailed records a failed subscription render for store.
func (m *Metrics) RenderFailed(store string) {
	m.renderFailures.WithLabelValues(store).Inc()
}

// ConnectionOpened records a new live connection for store.
func (m *Metrics) ConnectionOpened(store string) {
	m.connections.WithLabelValues(store).Inc()
}

// ConnectionClosed records a closed live connection for store.
func (m *Metrics) ConnectionClosed(store string) {
	m.connections.WithLabelValues(store).Dec()
}
