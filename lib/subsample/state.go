package subsample

import (
	"fmt"
)

// State is a step in the processing of a single file. Files move through
// the states in order and stop at the first failure.
type State int

const (
	Init State = iota
	ValidateInput
	AllocateOutput
	WriteHeader
	CopyPositions
	CopyVelocities
	CopyIDs
	Finalize
	Done
)

func (s State) String() string {
	switch s {
	case Init:
		return "init"
	case ValidateInput:
		return "validate-input"
	case AllocateOutput:
		return "allocate-output"
	case WriteHeader:
		return "write-header"
	case CopyPositions:
		return "copy-positions"
	case CopyVelocities:
		return "copy-velocities"
	case CopyIDs:
		return "copy-ids"
	case Finalize:
		return "finalize"
	case Done:
		return "done"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// StateError is returned when a file fails. It records the state the file
// was in and wraps the underlying error.
type StateError struct {
	FileName string
	State    State
	Err      error
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s failed during %s: %s",
		e.FileName, e.State, e.Err.Error())
}

func (e *StateError) Unwrap() error { return e.Err }
