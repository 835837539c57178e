package debugger

import (
	"errors"
	"fmt"
)

var (
	// ErrCapability is returned when an operation is invoked while its capability flag is false.
	ErrCapability = errors.New("operation not available")

	// ErrInvalidState is returned by Start and Attach on a session that is not inactive.
	ErrInvalidState = errors.New("invalid session state")

	// ErrNoDebugger is returned when no registered debugger supports a project.
	ErrNoDebugger = errors.New("no debugger available")
)

// CapabilityError names the rejected operation and the state it was attempted in.
type CapabilityError struct {
	Op    string
	State State
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("%s: %s while %s", ErrCapability, e.Op, e.State)
}

// Unwrap returns ErrCapability.
func (e *CapabilityError) Unwrap() error {
	return ErrCapability
}
