package instrument

import (
	"context"
	"fmt"

	"github.com/vango-dev/state/pkg/state"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Default tracer name for instrumented stores.
const defaultTracerName = "github.com/vango-dev/state"

// TraceConfig configures store tracing.
type TraceConfig struct {
	// TracerName is the name of the tracer.
	TracerName string

	// Provider supplies the tracer. Default: otel.GetTracerProvider().
	Provider trace.TracerProvider

	// Attributes are added to every span.
	Attributes []attribute.KeyValue
}

// TraceOption configures store tracing.
type TraceOption func(*TraceConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) TraceOption {
	return func(c *TraceConfig) {
		c.TracerName = name
	}
}

// WithTracerProvider sets the tracer provider.
func WithTracerProvider(provider trace.TracerProvider) TraceOption {
	return func(c *TraceConfig) {
		c.Provider = provider
	}
}

// WithAttributes adds attributes to every span.
func WithAttributes(attrs ...attribute.KeyValue) TraceOption {
	return func(c *TraceConfig) {
		c.Attributes = append(c.Attributes, attrs...)
	}
}

func newTracer(opts []TraceOption) (trace.Tracer, []attribute.KeyValue) {
	config := TraceConfig{TracerName: defaultTracerName}
	for _, opt := range opts {
		opt(&config)
	}
	if config.Provider == nil {
		return otel.Tracer(config.TracerName), config.Attributes
	}
	return config.Provider.Tracer(config.TracerName), config.Attributes
}

// TracePersist wraps a persistence hook in a span per write.
// A nil hook is treated as the identity.
func TracePersist[T any](name string, fn state.PersistFunc[T], opts ...TraceOption) state.PersistFunc[T] {
	tracer, extra := newTracer(opts)
	return func(ctx context.Context, value T) (T, error) {
		ctx, span := startSpan(ctx, tracer, "persist", name, extra)
		defer span.End()

		if fn == nil {
			span.SetStatus(codes.Ok, "")
			return value, nil
		}
		out, err := fn(ctx, value)
		endSpan(span, err)
		return out, err
	}
}

// TraceInit wraps an initializer in a span.
func TraceInit[T any](name string, fn state.InitFunc[T], opts ...TraceOption) state.InitFunc[T] {
	tracer, extra := newTracer(opts)
	return func(ctx context.Context) (T, error) {
		ctx, span := startSpan(ctx, tracer, "initialize", name, extra)
		defer span.End()

		out, err := fn(ctx)
		endSpan(span, err)
		return out, err
	}
}

func startSpan(ctx context.Context, tracer trace.Tracer, op, store string, extra []attribute.KeyValue) (context.Context, trace.Span) {
	attrs := append([]attribute.KeyValue{
		attribute.String("state.store", store),
		attribute.String("state.operation", op),
	}, extra...)

	return tracer.Start(ctx, fmt.Sprintf("state.%s %s", op, store),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Ok, "")
}
