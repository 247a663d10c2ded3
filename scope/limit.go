// Package scope provides structured concurrency primitives for Go.
package scope

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"
)

// LimiterOptions configures Limit.
type LimiterOptions struct {
	CancelQueuedOnAbort bool
}

// LimiterOption mutates LimiterOptions.
type LimiterOption func(*LimiterOptions)

// WithCancelQueuedOnAbort controls whether work still waiting for a slot
// is rejected immediately when the limiter's signal aborts. Defaults to
// true; pass false to let queued work keep waiting for the semaphore
// (it will still observe the aborted signal once it runs, cooperatively).
func WithCancelQueuedOnAbort(v bool) LimiterOption {
	return func(o *LimiterOptions) { o.CancelQueuedOnAbort = v }
}

// Limiter bounds concurrent executions to at most concurrency at a time,
// using a FIFO wait order backed by golang.org/x/sync/semaphore. It is
// bound to a Signal: once that signal aborts, new acquisitions fail
// immediately, and (unless disabled) already-queued acquisitions are
// rejected with the signal's reason instead of waiting.
type Limiter struct {
	sem     *semaphore.Weighted
	sig     *Signal
	cancelQ bool
}

// Limit creates a Limiter bound to sig. It panics if concurrency < 1.
func Limit(concurrency int, sig *Signal, opts ...LimiterOption) *Limiter {
	if concurrency < 1 {
		panic(fmt.Sprintf("scope: Limit concurrency must be >= 1, got %d", concurrency))
	}
	o := LimiterOptions{CancelQueuedOnAbort: true}
	for _, fn := range opts {
		fn(&o)
	}
	if sig == nil {
		sig = NewSignal(context.Background())
	}
	return &Limiter{sem: semaphore.NewWeighted(int64(concurrency)), sig: sig, cancelQ: o.CancelQueuedOnAbort}
}

// RunLimited executes fn once a slot is available, respecting the
// limiter's bound signal. If the signal is already aborted, or aborts
// while fn is queued (and WithCancelQueuedOnAbort(true), the default, is
// in effect), RunLimited returns the zero value and the signal's reason
// without ever invoking fn.
func RunLimited[T any](l *Limiter, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if l.sig.Aborted() {
		return zero, l.sig.Reason()
	}

	acquireCtx := l.sig.Context()
	if !l.cancelQ {
		acquireCtx = context.Background()
	}
	if err := l.sem.Acquire(acquireCtx, 1); err != nil {
		return zero, l.sig.Reason()
	}
	defer l.sem.Release(1)

	return fn(l.sig.Context())
}
