package pipeline

import "fmt"

// PreconditionError rejects a call made against the wrong session
// phase or with an invalid selection. The session is left untouched.
type PreconditionError struct {
	Op     string
	Reason string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("pipeline: %s: %s", e.Op, e.Reason)
}

// FatalStageError wraps a stage failure that terminates the session.
type FatalStageError struct {
	Stage string
	Err   error
}

func (e *FatalStageError) Error() string {
	return fmt.Sprintf("pipeline: stage %s failed: %v", e.Stage, e.Err)
}

func (e *FatalStageError) Unwrap() error { return e.Err }
