package scope

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSignalAbortIsIdempotent(t *testing.T) {
	t.Parallel()
	s := NewSignal(context.Background())
	s.Abort(errors.New("first"))
	s.Abort(errors.New("second"))
	if s.Reason().Error() != "first" {
		t.Fatalf("expected first reason to stick, got %v", s.Reason())
	}
}

func TestSignalAbortNilReasonDefaultsToScopeClosed(t *testing.T) {
	t.Parallel()
	s := NewSignal(context.Background())
	s.Abort(nil)
	var scr ScopeClosedReason
	if !errors.As(s.Reason(), &scr) {
		t.Fatalf("expected ScopeClosedReason, got %v", s.Reason())
	}
}

func TestSignalOnAbortFiresForFutureAbort(t *testing.T) {
	t.Parallel()
	s := NewSignal(context.Background())
	fired := make(chan error, 1)
	s.OnAbort(func(reason error) { fired <- reason })
	s.Abort(errors.New("boom"))
	select {
	case err := <-fired:
		if err.Error() != "boom" {
			t.Fatalf("unexpected reason: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("OnAbort handler never fired")
	}
}

func TestSignalOnAbortFiresImmediatelyIfAlreadyAborted(t *testing.T) {
	t.Parallel()
	s := NewSignal(context.Background())
	s.Abort(errors.New("boom"))
	fired := make(chan error, 1)
	s.OnAbort(func(reason error) { fired <- reason })
	select {
	case err := <-fired:
		if err.Error() != "boom" {
			t.Fatalf("unexpected reason: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("OnAbort handler for an already-aborted signal must fire synchronously")
	}
}

func TestSignalWatchesParentContext(t *testing.T) {
	t.Parallel()
	parent, cancel := context.WithCancel(context.Background())
	s := NewSignal(parent)
	cancel()
	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("expected signal to abort when its parent context is canceled")
	}
	var pc ParentCanceledReason
	if !errors.As(s.Reason(), &pc) {
		t.Fatalf("expected ParentCanceledReason, got %v", s.Reason())
	}
}

func TestSignalOnAbortPanicDoesNotBlockOthers(t *testing.T) {
	t.Parallel()
	s := NewSignal(context.Background())
	secondFired := make(chan struct{})
	s.OnAbort(func(error) { panic("boom") })
	s.OnAbort(func(error) { close(secondFired) })
	s.Abort(errors.New("stop"))
	select {
	case <-secondFired:
	case <-time.After(time.Second):
		t.Fatal("a panicking handler must not prevent later handlers from running")
	}
}
