package scope

import (
	"errors"
	"fmt"
	"runtime"
)

// TaskError wraps an error together with the name of the task that
// produced it. RunTask attaches one whenever a named task fails, so a
// failure that has propagated up through several combinators can still be
// traced back to its origin.
type TaskError struct {
	TaskName string
	Err      error
}

func (e *TaskError) Error() string {
	if e.TaskName == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("task %q failed: %v", e.TaskName, e.Err)
}

func (e *TaskError) Unwrap() error { return e.Err }

// TaskNameOf extracts the task name from the first *TaskError in err's
// chain. It reports false if none is found.
func TaskNameOf(err error) (string, bool) {
	var te *TaskError
	if errors.As(err, &te) {
		return te.TaskName, true
	}
	return "", false
}

// CauseOf unwraps the first *TaskError in err's chain and returns its
// underlying cause. If err is not a *TaskError (or does not wrap one), err
// is returned unchanged. CauseOf(nil) returns nil.
func CauseOf(err error) error {
	if err == nil {
		return nil
	}
	var te *TaskError
	if errors.As(err, &te) {
		return te.Err
	}
	return err
}

// PanicError wraps a recovered panic value together with the goroutine
// stack trace captured at the point of the panic. A task whose work panics
// transitions to failed with a *PanicError, rather than crashing the
// process or leaving its scope's other tasks running unsupervised.
type PanicError struct {
	Value any
	Stack string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v\n\n%s", e.Value, e.Stack)
}

func newPanicError(v any) *PanicError {
	buf := make([]byte, 8192)
	n := runtime.Stack(buf, false)
	return &PanicError{Value: v, Stack: string(buf[:n])}
}

// TaskErrors recursively collects every *TaskError from err's chain,
// including errors wrapped via errors.Join, so a combinator's aggregated
// failure can still be traced back to every contributing task.
func TaskErrors(err error) []*TaskError {
	if err == nil {
		return nil
	}
	var out []*TaskError
	collectTaskErrors(err, &out)
	return out
}

func collectTaskErrors(err error, out *[]*TaskError) {
	switch e := err.(type) {
	case *TaskError:
		*out = append(*out, e)
	case interface{ Unwrap() []error }:
		for _, sub := range e.Unwrap() {
			collectTaskErrors(sub, out)
		}
	case interface{ Unwrap() error }:
		collectTaskErrors(e.Unwrap(), out)
	}
}
