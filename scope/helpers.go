package scope

import (
	"context"
	"fmt"
	"time"
)

// Sleep waits for d, or until sig aborts, whichever comes first. If sig is
// already aborted, Sleep returns immediately with sig's reason without
// scheduling a timer. The timer is always cleared on either outcome.
func Sleep(d time.Duration, sig *Signal) error {
	if sig != nil && sig.Aborted() {
		return sig.Reason()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	if sig == nil {
		<-timer.C
		return nil
	}

	select {
	case <-timer.C:
		return nil
	case <-sig.Done():
		return sig.Reason()
	}
}

// TimeoutError is returned by Timeout when work does not finish before its
// effective deadline.
type TimeoutError struct {
	Ms int64
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("Timeout after %d ms", e.Ms)
}

// Timeout runs work under a budget of ms, tightened to the scope's ambient
// deadline (installed by an enclosing Timeout carried in ctx) if that
// deadline is nearer, so nested Timeout calls get monotonically shrinking
// budgets. On expiry it aborts s (if non-nil) with TimeoutReason and
// returns a *TimeoutError. If sig aborts externally before either work or
// the timer finishes, Timeout returns sig's reason.
func Timeout[T any](ctx context.Context, ms time.Duration, s *Scope, sig *Signal, work func(ctx context.Context, sig *Signal) (T, error)) (T, error) {
	var zero T

	effective := ms
	if remaining, ok := DeadlineRemaining(ctx); ok && remaining < effective {
		effective = remaining
	}

	deadline := time.Now().Add(effective)
	st, _ := FromContext(ctx)
	nestedCtx := NewContext(ctx, cloneWithDeadline(st, deadline))

	timeoutErr := &TimeoutError{Ms: effective.Milliseconds()}

	timer := time.NewTimer(effective)
	defer timer.Stop()

	type outcome struct {
		val T
		err error
	}
	workDone := make(chan outcome, 1)
	go func() {
		v, err := work(nestedCtx, sig)
		workDone <- outcome{v, err}
	}()

	var externalAbort chan struct{}
	if sig != nil {
		externalAbort = make(chan struct{})
		sig.OnAbort(func(error) {
			select {
			case <-externalAbort:
			default:
				close(externalAbort)
			}
		})
	}

	select {
	case <-timer.C:
		if s != nil {
			s.Abort(TimeoutReason{Ms: effective.Milliseconds()})
		}
		return zero, timeoutErr
	case o := <-workDone:
		return o.val, o.err
	case <-abortChan(externalAbort):
		return zero, sig.Reason()
	}
}

// abortChan returns ch, or a nil channel (which blocks forever in a
// select) when ch is nil, so Timeout's select can uniformly include the
// external-abort case whether or not a signal was supplied.
func abortChan(ch chan struct{}) <-chan struct{} { return ch }

// BackoffKind selects the wait strategy Retry uses between attempts.
type BackoffKind int

const (
	BackoffFixed BackoffKind = iota
	BackoffExponential
)

// RetryOptions configures Retry.
type RetryOptions struct {
	Retries        int
	Backoff        BackoffKind
	InitialDelayMs int64
}

func (o RetryOptions) delay(attemptIndex int) time.Duration {
	initial := o.InitialDelayMs
	if initial <= 0 {
		initial = 50
	}
	if o.Backoff == BackoffFixed {
		return time.Duration(initial) * time.Millisecond
	}
	ms := initial << attemptIndex
	return time.Duration(ms) * time.Millisecond
}

// Retry runs fn up to 1+opts.Retries times, waiting between attempts
// according to opts.Backoff (initial delay opts.InitialDelayMs, default
// 50ms). It checks sig.Aborted() before each attempt and before each
// wait; if aborted, it returns sig.Reason() immediately. If the final
// attempt fails, Retry returns that attempt's error.
func Retry[T any](fn func(ctx context.Context, sig *Signal) (T, error), opts RetryOptions, sig *Signal) (T, error) {
	var zero T
	attempts := opts.Retries + 1
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if sig != nil && sig.Aborted() {
			return zero, sig.Reason()
		}

		var attemptCtx context.Context
		if sig != nil {
			attemptCtx = sig.Context()
		} else {
			attemptCtx = context.Background()
		}
		v, err := fn(attemptCtx, sig)
		if err == nil {
			return v, nil
		}
		lastErr = err

		if i == attempts-1 {
			break
		}
		if sig != nil && sig.Aborted() {
			return zero, sig.Reason()
		}
		if err := Sleep(opts.delay(i), sig); err != nil {
			return zero, err
		}
	}
	return zero, lastErr
}
