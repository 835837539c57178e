package debugger

import "fmt"

// State is the lifecycle state of a debugger session.
type State int

const (
	// StateInactive is the initial state before Start or Attach.
	StateInactive State = iota
	// StateStarting is while the backend launches or attaches.
	StateStarting
	// StateRunning is when the debuggee executes.
	StateRunning
	// StatePaused is when the debuggee is suspended and CurrentSourceRange is valid.
	StatePaused
	// StateStopped is after the debuggee was stopped, detached or exited.
	StateStopped
	// StateDisposed is terminal; the backend has been released.
	StateDisposed
)

// String returns a string representation of the state.
func (s State) String() string {
	switch s {
	case StateInactive:
		return "inactive"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	case StateDisposed:
		return "disposed"
	default:
		return "unknown"
	}
}

// ended reports whether the session can no longer run.
func (s State) ended() bool {
	return s == StateStopped || s == StateDisposed
}

// SourceRange locates the statement the debuggee is paused at. Lines and
// columns start at 1.
type SourceRange struct {
	File        string
	StartLine   int
	StartColumn int
	EndLine     int
	EndColumn   int
}

// IsZero reports whether r carries no location.
func (r SourceRange) IsZero() bool {
	return r == SourceRange{}
}

func (r SourceRange) String() string {
	if r.File == "" {
		return "<unknown>"
	}
	return fmt.Sprintf("%s:%d:%d", r.File, r.StartLine, r.StartColumn)
}

// StartInfo describes the process a session launches.
type StartInfo struct {
	Program string
	Args    []string
	Dir     string
	Env     []string
}

// Capabilities are what a backend can do while the debuggee is running or paused.
type Capabilities struct {
	CanBreak    bool
	CanStepOver bool
	CanStepInto bool
	CanStepOut  bool
	CanContinue bool
}

// StepKind selects a stepping operation.
type StepKind int

const (
	StepOver StepKind = iota
	StepInto
	StepOut
)

func (k StepKind) String() string {
	switch k {
	case StepInto:
		return "step into"
	case StepOut:
		return "step out"
	default:
		return "step over"
	}
}
