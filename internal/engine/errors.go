package engine

import (
	"context"
	"errors"
	"fmt"
)

// RunError aborts a sync run. State is the state the run was in when the
// failure happened; no later state was entered.
type RunError struct {
	State State
	Op    string
	Err   error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("sync aborted in %s state: %s: %v", e.State, e.Op, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

func runError(s State, op string, err error) error {
	return &RunError{State: s, Op: op, Err: err}
}

// FailedState returns the state a run aborted in, if err came from Run.
func FailedState(err error) (State, bool) {
	var re *RunError
	if errors.As(err, &re) {
		return re.State, true
	}
	return 0, false
}

// IsCanceled reports whether a run stopped because its context ended.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
