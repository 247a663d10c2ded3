package scope

import (
	"sync/atomic"
	"testing"
)

func TestEmitIsNoopWhenDisabled(t *testing.T) {
	DisableTaskDebug()
	var calls atomic.Int64
	unsubscribe := SubscribeTaskDebug(func(DebugEvent) { calls.Add(1) })
	defer unsubscribe()

	emit(DebugEvent{Kind: EventScopeOpened})
	if calls.Load() != 0 {
		t.Fatalf("expected 0 calls while debug is disabled, got %d", calls.Load())
	}
}

func TestEmitDispatchesToSubscribersWhenEnabled(t *testing.T) {
	EnableTaskDebug(nil)
	defer DisableTaskDebug()

	var calls atomic.Int64
	unsubscribe := SubscribeTaskDebug(func(ev DebugEvent) {
		if ev.Kind == EventScopeOpened {
			calls.Add(1)
		}
	})
	defer unsubscribe()

	emit(DebugEvent{Kind: EventScopeOpened})
	if calls.Load() != 1 {
		t.Fatalf("expected 1 call, got %d", calls.Load())
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	EnableTaskDebug(nil)
	defer DisableTaskDebug()

	var calls atomic.Int64
	unsubscribe := SubscribeTaskDebug(func(DebugEvent) { calls.Add(1) })
	unsubscribe()

	emit(DebugEvent{Kind: EventScopeOpened})
	if calls.Load() != 0 {
		t.Fatalf("expected 0 calls after unsubscribe, got %d", calls.Load())
	}
}

func TestSubscriberPanicIsReportedThroughLogger(t *testing.T) {
	var loggedFormat string
	EnableTaskDebug(func(format string, args ...any) { loggedFormat = format })
	defer DisableTaskDebug()

	unsubscribe := SubscribeTaskDebug(func(DebugEvent) { panic("subscriber boom") })
	defer unsubscribe()

	emit(DebugEvent{Kind: EventScopeOpened})
	if loggedFormat == "" {
		t.Fatal("expected the logger to be invoked when a subscriber panics")
	}
}

func TestScopeAndTaskIDsAreZeroWhenDisabled(t *testing.T) {
	DisableTaskDebug()
	if got := nextScopeID(); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if got := nextTaskID(); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}

func TestScopeAndTaskIDsIncrementWhenEnabled(t *testing.T) {
	EnableTaskDebug(nil)
	defer DisableTaskDebug()
	first := nextScopeID()
	second := nextScopeID()
	if second != first+1 {
		t.Fatalf("expected monotonically increasing IDs, got %d then %d", first, second)
	}
}
