// Package errgroup adapts golang.org/x/sync/errgroup to this module's
// cancellation model: the context an errgroup.Group hands out is derived
// from a scope.Signal, so a Group composes with Limiter, Timeout, and the
// rest of the scope primitives wherever code already speaks errgroup.
package errgroup

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/relaykit/scope/scope"
)

// Group wraps an errgroup.Group. Its context is derived from a bridged
// scope.Signal rather than a bare context.WithCancel, so the first
// function to fail aborts that signal (with the failure wrapped as a
// scope.UserAbortReason) in addition to cancelling the context, letting
// callers that hold the Signal directly (rather than just the context)
// observe the same cause via Signal.Reason.
type Group struct {
	inner *errgroup.Group
	sig   *scope.Signal
}

// WithContext creates a Group bound to ctx. The returned context is
// cancelled when any function passed to Go returns a non-nil error, or
// when ctx itself is done, whichever comes first.
func WithContext(ctx context.Context) (*Group, context.Context) {
	sig := scope.NewSignal(ctx)
	inner, gctx := errgroup.WithContext(sig.Context())
	return &Group{inner: inner, sig: sig}, gctx
}

// Go runs f in a new goroutine. The first f to return a non-nil error
// aborts the group's bridged signal and cancels every other function's
// context; subsequent errors are recorded by errgroup itself but do not
// change the signal's reason.
func (g *Group) Go(f func() error) {
	g.inner.Go(func() error {
		err := f()
		if err != nil {
			g.sig.Abort(scope.UserAbortReason{Err: err})
		}
		return err
	})
}

// Wait blocks until every function passed to Go has returned, then
// returns the first non-nil error, if any.
func (g *Group) Wait() error {
	return g.inner.Wait()
}

// Signal exposes the bridged scope.Signal, so a Group can hand off to
// scope primitives that expect one directly (Limit, Timeout, RunTask
// via WithSignal) instead of a bare context.Context.
func (g *Group) Signal() *scope.Signal { return g.sig }
