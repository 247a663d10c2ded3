package scope

import (
	"errors"
	"fmt"
	"testing"
)

func TestTaskNameOfFindsWrappedTaskError(t *testing.T) {
	t.Parallel()
	err := fmt.Errorf("wrapped: %w", &TaskError{TaskName: "worker", Err: errors.New("boom")})
	name, ok := TaskNameOf(err)
	if !ok || name != "worker" {
		t.Fatalf("expected (worker, true), got (%q, %v)", name, ok)
	}
}

func TestTaskNameOfMissing(t *testing.T) {
	t.Parallel()
	_, ok := TaskNameOf(errors.New("plain"))
	if ok {
		t.Fatal("expected false for a plain error")
	}
}

func TestCauseOfUnwrapsTaskError(t *testing.T) {
	t.Parallel()
	cause := errors.New("root cause")
	err := &TaskError{TaskName: "worker", Err: cause}
	if got := CauseOf(err); got != cause {
		t.Fatalf("expected root cause, got %v", got)
	}
}

func TestCauseOfPassesThroughNonTaskError(t *testing.T) {
	t.Parallel()
	plain := errors.New("plain")
	if got := CauseOf(plain); got != plain {
		t.Fatalf("expected the error unchanged, got %v", got)
	}
	if got := CauseOf(nil); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}

func TestTaskErrorsCollectsAcrossJoin(t *testing.T) {
	t.Parallel()
	te1 := &TaskError{TaskName: "a", Err: errors.New("boom-a")}
	te2 := &TaskError{TaskName: "b", Err: errors.New("boom-b")}
	joined := errors.Join(te1, fmt.Errorf("wrapped: %w", te2))

	got := TaskErrors(joined)
	if len(got) != 2 {
		t.Fatalf("expected 2 task errors, got %d", len(got))
	}
	names := map[string]bool{got[0].TaskName: true, got[1].TaskName: true}
	if !names["a"] || !names["b"] {
		t.Fatalf("expected task names a and b, got %v", names)
	}
}

func TestTaskErrorsNilReturnsNil(t *testing.T) {
	t.Parallel()
	if got := TaskErrors(nil); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}

func TestPanicErrorCapturesStack(t *testing.T) {
	t.Parallel()
	pe := newPanicError("boom")
	if pe.Value != "boom" {
		t.Fatalf("expected value %q, got %v", "boom", pe.Value)
	}
	if pe.Stack == "" {
		t.Fatal("expected a non-empty captured stack")
	}
}
