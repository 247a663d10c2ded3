package otel

import (
	"context"
	"testing"

	"github.com/relaykit/scope/scope"
)

func TestTracerOpensAndClosesSpanPerTask(t *testing.T) {
	scope.EnableTaskDebug(nil)
	defer scope.DisableTaskDebug()

	tr := New()
	detach := tr.Attach()
	defer detach()

	_, err := scope.Sync(context.Background(), func(tc *scope.TaskContext) (struct{}, error) {
		scope.StartTask[struct{}](tc, func(ctx context.Context, sig *scope.Signal) (struct{}, error) {
			return struct{}{}, nil
		})
		return struct{}{}, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tr.mu.Lock()
	remaining := len(tr.spans)
	tr.mu.Unlock()
	if remaining != 0 {
		t.Fatalf("expected no spans left open after task completed, got %d", remaining)
	}
}

func TestTracerLeavesSpanOpenWhileTaskRuns(t *testing.T) {
	scope.EnableTaskDebug(nil)
	defer scope.DisableTaskDebug()

	tr := New()
	detach := tr.Attach()
	defer detach()

	release := make(chan struct{})
	registered := make(chan struct{})

	go func() {
		_, _ = scope.Sync(context.Background(), func(tc *scope.TaskContext) (struct{}, error) {
			scope.StartTask[struct{}](tc, func(ctx context.Context, sig *scope.Signal) (struct{}, error) {
				close(registered)
				<-release
				return struct{}{}, nil
			})
			return struct{}{}, nil
		})
	}()

	<-registered
	tr.mu.Lock()
	inFlight := len(tr.spans)
	tr.mu.Unlock()
	if inFlight != 1 {
		t.Fatalf("expected 1 span open while task runs, got %d", inFlight)
	}
	close(release)
}

func TestTracerRecordsFailedTaskWithoutPanicking(t *testing.T) {
	scope.EnableTaskDebug(nil)
	defer scope.DisableTaskDebug()

	tr := New()
	detach := tr.Attach()
	defer detach()

	failing := context.DeadlineExceeded
	_, err := scope.Sync(context.Background(), func(tc *scope.TaskContext) (struct{}, error) {
		scope.StartTask[struct{}](tc, func(ctx context.Context, sig *scope.Signal) (struct{}, error) {
			return struct{}{}, failing
		})
		return struct{}{}, nil
	})
	if err == nil {
		t.Fatal("expected Sync to report the task's failure")
	}

	tr.mu.Lock()
	remaining := len(tr.spans)
	tr.mu.Unlock()
	if remaining != 0 {
		t.Fatalf("expected the failed task's span to be closed, got %d still open", remaining)
	}
}

func TestDetachStopsSpanCreation(t *testing.T) {
	scope.EnableTaskDebug(nil)
	defer scope.DisableTaskDebug()

	tr := New()
	detach := tr.Attach()
	detach()

	_, err := scope.Sync(context.Background(), func(tc *scope.TaskContext) (struct{}, error) {
		scope.StartTask[struct{}](tc, func(ctx context.Context, sig *scope.Signal) (struct{}, error) {
			return struct{}{}, nil
		})
		return struct{}{}, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tr.mu.Lock()
	created := len(tr.spans)
	tr.mu.Unlock()
	if created != 0 {
		t.Fatalf("expected no spans created after detach, got %d", created)
	}
}

func TestWithTracerNameResolvesTracer(t *testing.T) {
	tr := New(WithTracerName("custom"))
	if tr.tracer == nil {
		t.Fatal("expected a resolved tracer")
	}
}
