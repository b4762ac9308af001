package live

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/vango-dev/state/pkg/instrument"
)

// Option configures a Handler.
type Option func(*options)

type options struct {
	logger       *slog.Logger
	metrics      *instrument.Metrics
	checkOrigin  func(r *http.Request) bool
	readOnly     bool
	writeTimeout time.Duration
}

func defaultOptions() options {
	return options{
		logger:       slog.Default(),
		writeTimeout: 10 * time.Second,
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetrics records connections and render failures.
func WithMetrics(m *instrument.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithCheckOrigin sets the WebSocket origin check. By default gorilla's
// same-origin check applies.
func WithCheckOrigin(fn func(r *http.Request) bool) Option {
	return func(o *options) {
		o.checkOrigin = fn
	}
}

// ReadOnly rejects writes from HTTP and WebSocket clients.
func ReadOnly() Option {
	return func(o *options) {
		o.readOnly = true
	}
}

// WithWriteTimeout bounds each WebSocket frame write.
// Default: 10s.
func WithWriteTimeout(d time.Duration) Option {
	return func(o *options) {
		o.writeTimeout = d
	}
}
