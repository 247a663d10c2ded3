package scope

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// TaskContext is the context object every combinator passes to its
// callback. It carries the scoped context.Context (recoverable elsewhere
// via FromContext) and the Scope that owns whatever tasks the callback
// starts. Task creation is a package-level generic function (StartTask)
// rather than a method, since Go methods cannot introduce new type
// parameters; TaskContext itself stays non-generic so a single callback
// can start tasks of many different result types.
type TaskContext struct {
	ctx   context.Context
	scope *Scope

	mu        sync.Mutex
	taskCount int

	settleOnce sync.Once
	settleCh   chan settleOutcome
	failOnce   sync.Once
	failCh     chan error
}

func newTaskContext(ctx context.Context, s *Scope) *TaskContext {
	return &TaskContext{
		ctx:      ctx,
		scope:    s,
		settleCh: make(chan settleOutcome, 1),
		failCh:   make(chan error, 1),
	}
}

// Context returns the scoped context.Context, the same one passed to the
// combinator's callback.
func (tc *TaskContext) Context() context.Context { return tc.ctx }

// Scope returns the scope backing this callback invocation.
func (tc *TaskContext) Scope() *Scope { return tc.scope }

// Sleep waits d, or until the scope aborts, whichever comes first.
func (tc *TaskContext) Sleep(d time.Duration) error {
	return Sleep(d, tc.scope.signal)
}

// Limit creates a concurrency limiter bound to the scope's signal: it
// rejects new acquisitions the moment the scope aborts.
func (tc *TaskContext) Limit(concurrency int, opts ...LimiterOption) *Limiter {
	return Limit(concurrency, tc.scope.signal, opts...)
}

func (tc *TaskContext) noteStarted() {
	tc.mu.Lock()
	tc.taskCount++
	tc.mu.Unlock()
}

func (tc *TaskContext) taskCountSoFar() int {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.taskCount
}

type settleOutcome struct {
	val any
	err error
}

// notify records the first settle (fulfil or reject) for Race, and
// separately the first genuine failure for Sync. Both are fire-once: later
// calls are no-ops, matching "subsequent settles never change the
// outcome".
func (tc *TaskContext) notify(val any, err error) {
	tc.settleOnce.Do(func() { tc.settleCh <- settleOutcome{val: val, err: err} })
	if err != nil {
		tc.failOnce.Do(func() { tc.failCh <- err })
	}
}

// StartTask creates a scope-bound Task: its signal is the scope's own
// signal (shared identity), so aborting the scope fans out to the task
// without an extra listener hop, and it is registered in the scope's
// entries. A silent OnCancel handler is attached so an unawaited
// cancellation never looks like an ignored one under strict mode.
func StartTask[T any](tc *TaskContext, work func(ctx context.Context, sig *Signal) (T, error), opts ...TaskOption) *Task[T] {
	var o TaskOptions
	for _, fn := range opts {
		fn(&o)
	}

	wrapped := func(ctx context.Context, sig *Signal) (v T, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = newPanicError(r)
				tc.notify(v, err)
				panic(r)
			}
		}()
		v, err = work(ctx, sig)
		tc.notify(v, err)
		return v, err
	}

	t := newTaskShared[T](tc.scope.signal, o.Name, o.Hooks, tc.scope.id)
	tc.noteStarted()
	RegisterScopeTask(tc.ctx, tc.scope.signal, t)
	t.unhandledRejectionGuard()

	if tc.scope.signal.Aborted() {
		reason := tc.scope.signal.Reason()
		if o.ParentTask != "" {
			reason = ParentCanceledReason{Parent: reason}
		}
		t.transitionToCanceled(reason)
		return t
	}

	debugTaskRegistered(t)
	t.startTime = time.Now()
	go t.run(tc.ctx, wrapped)
	return t
}

// TaskTimeout runs work under the ms budget, cooperating with the scope's
// deadline the same way the standalone Timeout helper does.
func TaskTimeout[T any](tc *TaskContext, ms time.Duration, work func(ctx context.Context, sig *Signal) (T, error)) (T, error) {
	return Timeout[T](tc.ctx, ms, tc.scope, tc.scope.signal, work)
}

// TaskRetry retries fn according to opts, bound to the scope's signal.
func TaskRetry[T any](tc *TaskContext, fn func(ctx context.Context, sig *Signal) (T, error), opts RetryOptions) (T, error) {
	return Retry[T](fn, opts, tc.scope.signal)
}

// TaskAll awaits every task in order and returns their results, or the
// first error encountered (which stops collection immediately, mirroring
// Promise.all).
func TaskAll[T any](ctx context.Context, tasks []*Task[T]) ([]T, error) {
	results := make([]T, len(tasks))
	for i, t := range tasks {
		v, err := t.Await(ctx)
		if err != nil {
			return nil, err
		}
		results[i] = v
	}
	return results, nil
}

// TaskRace returns the outcome of whichever task in tasks settles first.
func TaskRace[T any](ctx context.Context, tasks []*Task[T]) (T, error) {
	var zero T
	if len(tasks) == 0 {
		return zero, fmt.Errorf("race: %w", errNoTasksStarted)
	}
	type out struct {
		v   T
		err error
	}
	ch := make(chan out, len(tasks))
	for _, t := range tasks {
		t := t
		go func() {
			v, err := t.Await(ctx)
			select {
			case ch <- out{v, err}:
			default:
			}
		}()
	}
	select {
	case o := <-ch:
		return o.v, o.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Settled is one task's outcome as reported by TaskAllSettled.
type Settled[T any] struct {
	Status Status
	Value  T
	Err    error
}

// TaskAllSettled awaits every task and reports each one's outcome,
// regardless of whether any of them failed.
func TaskAllSettled[T any](ctx context.Context, tasks []*Task[T]) []Settled[T] {
	out := make([]Settled[T], len(tasks))
	for i, t := range tasks {
		v, err := t.Await(ctx)
		out[i] = Settled[T]{Status: t.Status(), Value: v, Err: err}
	}
	return out
}

func runIsolatedCB[T any](cb func(tc *TaskContext) (T, error), tc *TaskContext) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = newPanicError(r)
		}
	}()
	return cb(tc)
}

func runIsolatedVoid(cb func(tc *TaskContext) error, tc *TaskContext) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = newPanicError(r)
		}
	}()
	return cb(tc)
}

func awaitEntries(s *Scope) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		for _, e := range s.snapshotEntries() {
			<-e.task.Done()
		}
		close(done)
	}()
	return done
}

// Sync runs cb inside a fresh scope and waits for every scope-bound task
// it starts to reach a terminal status. The first failure, whether cb's
// own return error or a task's, closes the scope, cancelling every other
// scope-bound task, and is what Sync returns. On success, Sync returns
// cb's own return value once every task has completed.
func Sync[T any](ctx context.Context, cb func(tc *TaskContext) (T, error)) (T, error) {
	var zero T
	s, scopedCtx := newScope(ctx, "sync")
	tc := newTaskContext(scopedCtx, s)
	defer s.close()

	cbResult, cbErr := runIsolatedCB(cb, tc)
	allDone := awaitEntries(s)

	if cbErr != nil {
		s.Abort(ScopeClosedReason{})
		<-allDone
		return zero, cbErr
	}

	var finalErr error
	select {
	case ferr := <-tc.failCh:
		finalErr = ferr
		s.Abort(ScopeClosedReason{})
		<-allDone
	case <-allDone:
		select {
		case ferr := <-tc.failCh:
			finalErr = ferr
		default:
		}
	}

	if finalErr != nil {
		return zero, finalErr
	}
	return cbResult, nil
}

// Race runs cb to start tasks, then returns the outcome of whichever
// scope-bound task settles (fulfils or rejects) first, cancelling every
// other task in the scope. It errors if cb starts no tasks at all.
func Race[T any](ctx context.Context, cb func(tc *TaskContext) error) (T, error) {
	var zero T
	s, scopedCtx := newScope(ctx, "race")
	tc := newTaskContext(scopedCtx, s)
	defer s.close()

	if err := runIsolatedVoid(cb, tc); err != nil {
		s.Abort(ScopeClosedReason{})
		return zero, err
	}
	if tc.taskCountSoFar() == 0 {
		return zero, fmt.Errorf("race: %w", errNoTasksStarted)
	}

	select {
	case o := <-tc.settleCh:
		s.Abort(ScopeClosedReason{})
		if o.err != nil {
			return zero, o.err
		}
		v, _ := o.val.(T)
		return v, nil
	case <-scopedCtx.Done():
		return zero, context.Cause(scopedCtx)
	}
}

// Rush runs cb to start tasks, then returns the outcome of whichever task
// settles first. Unlike Race, it does not cancel the rest: it waits for
// every scope-bound task to reach a terminal status before returning.
// It errors if cb starts no tasks at all.
func Rush[T any](ctx context.Context, cb func(tc *TaskContext) error) (T, error) {
	var zero T
	s, scopedCtx := newScope(ctx, "rush")
	tc := newTaskContext(scopedCtx, s)
	defer s.close()

	if err := runIsolatedVoid(cb, tc); err != nil {
		s.Abort(ScopeClosedReason{})
		return zero, err
	}
	if tc.taskCountSoFar() == 0 {
		return zero, fmt.Errorf("rush: %w", errNoTasksStarted)
	}

	var outcome settleOutcome
	select {
	case outcome = <-tc.settleCh:
	case <-scopedCtx.Done():
		return zero, context.Cause(scopedCtx)
	}

	<-awaitEntries(s)

	if outcome.err != nil {
		return zero, outcome.err
	}
	v, _ := outcome.val.(T)
	return v, nil
}

// Branch fires cb in a child scope linked to the enclosing scope (found via
// ctx) and returns immediately without ever awaiting the callback. The
// branch's tasks are cancelled when the enclosing scope closes or when cb
// itself returns, whichever comes first. If ctx carries no enclosing
// scope, Branch still runs cb in a degraded, unparented scope, but warns
// under strict mode.
func Branch(ctx context.Context, cb func(tc *TaskContext) error) {
	base := ctx
	if st, ok := FromContext(ctx); ok {
		base = st.Scope.signal.Context()
	} else {
		strictWarn("branch-without-parent", "branch called outside any enclosing scope")
	}

	s, scopedCtx := newScope(base, "branch")
	tc := newTaskContext(scopedCtx, s)

	go func() {
		defer s.close()
		_ = runIsolatedVoid(cb, tc)
	}()
}

// Spawn runs cb in a new scope parent-linked to whatever scope ctx
// carries (if any), wrapping the whole execution as a single Task using
// the new scope's own signal. Unlike a task started with StartTask, the
// returned Task is not registered anywhere else: it is a leaf with its
// own scope, the one combinator that deliberately does not participate in
// an enclosing scope's completion.
func Spawn[T any](ctx context.Context, cb func(tc *TaskContext) (T, error), opts ...TaskOption) *Task[T] {
	var o TaskOptions
	for _, fn := range opts {
		fn(&o)
	}

	base := ctx
	if st, ok := FromContext(ctx); ok {
		base = st.Scope.signal.Context()
	}
	s, scopedCtx := newScope(base, "spawn")
	tc := newTaskContext(scopedCtx, s)

	t := newTaskShared[T](s.signal, o.Name, o.Hooks, s.id)
	debugTaskRegistered(t)
	t.startTime = time.Now()

	go func() {
		t.signal.OnAbort(func(reason error) { t.transitionToCanceled(reason) })
		defer s.close()

		v, err := runIsolatedCB(cb, tc)
		if err != nil {
			t.transitionToFailed(err)
			return
		}
		t.transitionToCompleted(v)
	}()

	return t
}

// SpawnTask returns a fully detached Task for work: no parent signal, not
// bound to any scope, unaffected by any ambient cancellation.
func SpawnTask[T any](work func(ctx context.Context, sig *Signal) (T, error), opts ...TaskOption) *Task[T] {
	return RunTask[T](context.Background(), work, opts...)
}

// SpawnScope runs cb inside a fresh scope, like Sync, but returns as soon
// as cb itself returns without waiting for the tasks it started. Those
// tasks keep running independently; the scope stays alive, and is only
// closed once every task bound to it has settled on its own.
func SpawnScope[T any](ctx context.Context, cb func(tc *TaskContext) (T, error)) (T, error) {
	var zero T
	s, scopedCtx := newScope(ctx, "spawnScope")
	tc := newTaskContext(scopedCtx, s)

	v, err := runIsolatedCB(cb, tc)

	go func() {
		bgErr := s.awaitAll(context.Background())
		s.close()
		if bgErr != nil {
			strictWarn("task-failed-after-spawn-scope-return", "%v", bgErr)
		}
	}()

	if err != nil {
		return zero, err
	}
	return v, nil
}
