package scope

import "fmt"

// TimeoutReason is the cancellation reason attached to a scope or signal
// when a Timeout call's deadline elapses.
type TimeoutReason struct {
	Ms int64
}

func (r TimeoutReason) Error() string {
	return fmt.Sprintf("timeout after %d ms", r.Ms)
}

// UserAbortReason wraps an arbitrary caller-supplied error passed to
// Scope.Abort or Signal.Abort. It exists so callers can distinguish "the
// user asked for this" from the built-in reasons via errors.As, while the
// wrapped error still unwraps to whatever the caller passed.
type UserAbortReason struct {
	Err error
}

func (r UserAbortReason) Error() string { return r.Err.Error() }
func (r UserAbortReason) Unwrap() error { return r.Err }

// ScopeClosedReason is the cancellation reason a scope uses on itself, and
// on every task still bound to it, when the scope closes without any other
// failure having occurred first.
type ScopeClosedReason struct{}

func (ScopeClosedReason) Error() string { return "scope closed" }

// ParentCanceledReason wraps the reason a parent scope or task was
// cancelled with, when that cancellation propagates to a child.
type ParentCanceledReason struct {
	Parent error
}

func (r ParentCanceledReason) Error() string {
	return fmt.Sprintf("parent canceled: %v", r.Parent)
}

func (r ParentCanceledReason) Unwrap() error { return r.Parent }
