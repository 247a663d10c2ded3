// Package otel bridges scope's debug event stream to OpenTelemetry spans,
// one span per task from its taskRegistered to its terminal taskUpdated
// event.
package otel

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/relaykit/scope/scope"
)

const defaultTracerName = "scope"

// Config configures Tracer.
type Config struct {
	// TracerName names the tracer resolved from the global provider
	// (default: "scope").
	TracerName string
}

// Option configures a Tracer.
type Option func(*Config)

// WithTracerName sets the tracer name.
func WithTracerName(name string) Option {
	return func(c *Config) { c.TracerName = name }
}

// Tracer adapts scope's debug event stream to OpenTelemetry spans. It uses
// the global TracerProvider, resolved at construction time via
// otel.Tracer; configure a real provider before calling New if spans
// should go anywhere but the no-op default.
type Tracer struct {
	tracer trace.Tracer

	mu    sync.Mutex
	spans map[uint64]trace.Span

	unsubscribe func()
}

// New builds an unattached Tracer.
func New(opts ...Option) *Tracer {
	cfg := Config{TracerName: defaultTracerName}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Tracer{
		tracer: otel.Tracer(cfg.TracerName),
		spans:  make(map[uint64]trace.Span),
	}
}

// Attach subscribes to scope's debug event stream. Call the returned func
// (or Detach) to stop.
func (t *Tracer) Attach() (detach func()) {
	t.unsubscribe = scope.SubscribeTaskDebug(t.onEvent)
	return t.unsubscribe
}

// Detach stops observing. Safe to call even if Attach was never called.
func (t *Tracer) Detach() {
	if t.unsubscribe != nil {
		t.unsubscribe()
		t.unsubscribe = nil
	}
}

func (t *Tracer) onEvent(ev scope.DebugEvent) {
	switch ev.Kind {
	case scope.EventTaskRegistered:
		name := ev.TaskName
		if name == "" {
			name = "task"
		}
		_, span := t.tracer.Start(context.Background(), name,
			trace.WithSpanKind(trace.SpanKindInternal),
			trace.WithAttributes(attribute.Int64("scope.task_id", int64(ev.TaskID))),
		)
		t.mu.Lock()
		t.spans[ev.TaskID] = span
		t.mu.Unlock()
	case scope.EventTaskUpdated:
		if ev.Status == scope.StatusRunning {
			return
		}
		t.mu.Lock()
		span, ok := t.spans[ev.TaskID]
		delete(t.spans, ev.TaskID)
		t.mu.Unlock()
		if !ok {
			return
		}
		switch ev.Status {
		case scope.StatusCompleted:
			span.SetStatus(codes.Ok, "")
		case scope.StatusFailed:
			span.SetStatus(codes.Error, "task failed")
		case scope.StatusCanceled:
			span.SetStatus(codes.Error, "task canceled")
		}
		span.End()
	}
}
