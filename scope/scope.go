package scope

import (
	"context"
	"sync"
	"time"
)

// entry is a scope-bound task record. It is intentionally untyped over T
// (via the taskHandle interface) since a single scope hosts tasks of many
// different result types.
type entry struct {
	task taskHandle
}

type taskHandle interface {
	Name() string
	Status() Status
	Done() <-chan struct{}
	awaitErr(ctx context.Context) error
}

// Scope owns a cancellation Signal and tracks every task bound to it. A
// Scope is created by RunInScope or by one of the combinators (Sync, Race,
// Rush, Branch, Spawn, SpawnScope); it closes exactly once, aborting with
// ScopeClosedReason unless something already aborted it first.
type Scope struct {
	id     uint64
	typ    string
	signal *Signal

	mu       sync.Mutex
	entries  []*entry
	deadline time.Time
	hasDL    bool

	closeOnce sync.Once
}

func newScope(ctx context.Context, typ string) (*Scope, context.Context) {
	sig := NewSignal(ctx)
	s := &Scope{id: nextScopeID(), typ: typ, signal: sig}
	debugScopeOpened(s)

	st := &Store{Scope: s}
	if remaining, ok := DeadlineRemaining(ctx); ok {
		st.HasDL = true
		st.Deadline = time.Now().Add(remaining)
		s.deadline, s.hasDL = st.Deadline, true
	}
	return s, NewContext(sig.Context(), st)
}

// Signal returns the scope's cancellation signal.
func (s *Scope) Signal() *Signal { return s.signal }

// Abort cancels the scope with reason, cancelling every task still bound
// to it. Idempotent: only the first call across the scope's lifetime
// (including its own internal close) has any effect.
func (s *Scope) Abort(reason error) { s.signal.Abort(reason) }

// close aborts the scope with ScopeClosedReason unless it was already
// aborted by something else, and reports the debug scope-closed event
// exactly once regardless of how many times close is called.
func (s *Scope) close() {
	s.closeOnce.Do(func() {
		s.signal.Abort(ScopeClosedReason{})
		debugScopeClosed(s)
	})
}

// register binds task to the scope. It is called by RegisterScopeTask,
// never directly by user code.
func (s *Scope) register(task taskHandle) {
	s.mu.Lock()
	s.entries = append(s.entries, &entry{task: task})
	s.mu.Unlock()
}

// RegisterScopeTask binds task to ctx's ambient scope, but only if that
// scope's own signal is identical to parentSignal, the ambient-identity
// check that guards against registering a task into a scope the caller
// is no longer actually inside. It reports whether registration happened.
// StartTask calls this for every scope-bound task it creates; it is
// exported so a custom task-creation helper built on Signal/Scope can
// register into the ambient scope the same way.
func RegisterScopeTask[T any](ctx context.Context, parentSignal *Signal, task *Task[T]) bool {
	st, ok := FromContext(ctx)
	if !ok || st.Scope == nil || st.Scope.signal != parentSignal {
		return false
	}
	st.Scope.register(task)
	return true
}

func (s *Scope) snapshotEntries() []*entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*entry(nil), s.entries...)
}

// awaitAll blocks until ctx is done or every scope-bound task has reached
// a terminal status, returning the first non-cancellation error observed.
func (s *Scope) awaitAll(ctx context.Context) error {
	var firstErr error
	for _, e := range s.snapshotEntries() {
		if err := e.task.awaitErr(ctx); err != nil && firstErr == nil {
			if _, isCancel := asCancelReason(err); !isCancel {
				firstErr = err
			}
		}
	}
	return firstErr
}

// asCancelReason reports whether err is one of the built-in cancellation
// reasons (as opposed to a genuine user/work error), so a combinator's
// "first failure" bookkeeping does not treat a sibling's expected
// cancellation as the failure that caused it.
func asCancelReason(err error) (error, bool) {
	cause := CauseOf(err)
	switch cause.(type) {
	case ScopeClosedReason, TimeoutReason, ParentCanceledReason, UserAbortReason:
		return cause, true
	default:
		return nil, false
	}
}

// warnOrphans implements the strict-mode "orphan at scope exit" check: any
// entry that has not reached a terminal status by the time the scope is
// about to close is reported once, by name.
func (s *Scope) warnOrphans() {
	if !strictEnabled() {
		return
	}
	for _, e := range s.snapshotEntries() {
		if e.task.Status() == StatusRunning {
			strictWarn("orphan-at-scope-exit", "task %q still running at scope exit", e.task.Name())
		}
	}
}

func debugScopeOpened(s *Scope) {
	if !debugEnabled() {
		return
	}
	emit(DebugEvent{Kind: EventScopeOpened, ScopeID: s.id, ScopeType: s.typ})
}

func debugScopeClosed(s *Scope) {
	if !debugEnabled() {
		return
	}
	emit(DebugEvent{Kind: EventScopeClosed, ScopeID: s.id, ScopeType: s.typ})
}

// RunInScope creates a Scope, links it to parent (if given) so parent
// cancellation propagates, installs a fresh scope store into the context
// passed to fn, and invokes fn. On return (success or failure) it scans
// for orphaned scope-bound tasks under strict mode, then closes the scope,
// cancelling anything still running, and returns fn's outcome immediately
// without waiting for cancelled work to actually finish.
func RunInScope[T any](ctx context.Context, fn func(ctx context.Context, s *Scope) (T, error), parent ...*Scope) (T, error) {
	base := ctx
	if len(parent) > 0 && parent[0] != nil {
		base = parent[0].signal.Context()
	}
	s, scopedCtx := newScope(base, "runInScope")

	defer func() {
		s.warnOrphans()
		s.close()
	}()

	return fn(scopedCtx, s)
}
