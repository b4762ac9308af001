package instrument

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/vango-dev/state/pkg/state"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

type recordingProvider struct {
	noop.TracerProvider
	tracer *recordingTracer
}

func (p *recordingProvider) Tracer(string, ...trace.TracerOption) trace.Tracer {
	return p.tracer
}

type recordingTracer struct {
	noop.Tracer
	mu    sync.Mutex
	spans []*recordingSpan
}

func (t *recordingTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	cfg := trace.NewSpanStartConfig(opts...)
	span := &recordingSpan{name: name, attrs: cfg.Attributes()}
	t.mu.Lock()
	t.spans = append(t.spans, span)
	t.mu.Unlock()
	return trace.ContextWithSpan(ctx, span), span
}

type recordingSpan struct {
	noop.Span
	name   string
	attrs  []attribute.KeyValue
	status codes.Code
	errs   []error
	ended  bool
}

func (s *recordingSpan) RecordError(err error, _ ...trace.EventOption) { s.errs = append(s.errs, err) }
func (s *recordingSpan) SetStatus(code codes.Code, _ string)           { s.status = code }
func (s *recordingSpan) End(...trace.SpanEndOption)                    { s.ended = true }

func (s *recordingSpan) attr(key string) string {
	for _, kv := range s.attrs {
		if string(kv.Key) == key {
			return kv.Value.AsString()
		}
	}
	return ""
}

func newRecorder() (*recordingProvider, *recordingTracer) {
	tracer := &recordingTracer{}
	return &recordingProvider{tracer: tracer}, tracer
}

func TestTracePersist(t *testing.T) {
	provider, tracer := newRecorder()
	var sawSpan bool
	hook := TracePersist[int]("todos", func(ctx context.Context, v int) (int, error) {
		_, sawSpan = trace.SpanFromContext(ctx).(*recordingSpan)
		return v * 2, nil
	}, WithTracerProvider(provider), WithAttributes(attribute.String("app", "test")))

	store := state.New(1, state.WithPersist(hook))
	if v, _ := store.Value(); v != 2 {
		t.Fatalf("Value() = %d, want 2", v)
	}
	if !sawSpan {
		t.Fatal("hook did not run inside the span")
	}

	if len(tracer.spans) != 1 {
		t.Fatalf("spans = %d, want 1", len(tracer.spans))
	}
	span := tracer.spans[0]
	if span.name != "state.persist todos" {
		t.Errorf("span name = %q", span.name)
	}
	if span.attr("state.store") != "todos" || span.attr("app") != "test" {
		t.Errorf("span attrs = %v", span.attrs)
	}
	if span.status != codes.Ok || !span.ended {
		t.Errorf("status = %v, ended = %v", span.status, span.ended)
	}
}

func TestTracePersist_RecordsError(t *testing.T) {
	provider, tracer := newRecorder()
	fail := errors.New("boom")
	hook := TracePersist[int]("n", func(context.Context, int) (int, error) {
		return 0, fail
	}, WithTracerProvider(provider))

	if _, err := hook(context.Background(), 1); !errors.Is(err, fail) {
		t.Fatalf("hook() error = %v, want %v", err, fail)
	}
	span := tracer.spans[0]
	if span.status != codes.Error {
		t.Errorf("status = %v, want Error", span.status)
	}
	if len(span.errs) != 1 || span.errs[0] != fail {
		t.Errorf("recorded errors = %v", span.errs)
	}
}

func TestTraceInit(t *testing.T) {
	provider, tracer := newRecorder()
	load := TraceInit[string]("greeting", func(context.Context) (string, error) {
		return "hello", nil
	}, WithTracerProvider(provider))

	store := state.Define(load)
	<-store.Ready()

	if v, _ := store.Value(); v != "hello" {
		t.Fatalf("Value() = %q", v)
	}
	tracer.mu.Lock()
	defer tracer.mu.Unlock()
	if len(tracer.spans) != 1 || tracer.spans[0].name != "state.initialize greeting" {
		t.Fatalf("spans = %+v", tracer.spans)
	}
}

func TestTracePersist_GlobalProvider(t *testing.T) {
	hook := TracePersist[string]("s", nil)
	got, err := hook(context.Background(), "x")
	if err != nil || got != "x" {
		t.Fatalf("hook() = %q, %v", got, err)
	}
}
