package debugger

import "context"

// Backend drives an external debug engine. Every method except Capabilities
// may block; a session never calls more than one at a time.
//
// Stops the backend did not request itself (a breakpoint hit, the process
// exiting) are reported through the Sink passed to Start or Attach, from any
// goroutine.
type Backend interface {
	// Start launches info.Program under the debugger and returns once it runs.
	Start(ctx context.Context, info StartInfo, sink Sink) error

	// Attach attaches to a running process.
	Attach(ctx context.Context, pid int, sink Sink) error

	// Capabilities reports what the engine supports.
	Capabilities() Capabilities

	// Break suspends the debuggee and returns where it stopped.
	Break(ctx context.Context) (SourceRange, error)

	// Continue resumes a suspended debuggee.
	Continue(ctx context.Context) error

	// Step runs one step and returns where the debuggee stopped next.
	Step(ctx context.Context, kind StepKind) (SourceRange, error)

	// Stop terminates the debuggee.
	Stop(ctx context.Context) error

	// Detach leaves the debuggee running.
	Detach(ctx context.Context) error

	// Close releases the engine connection.
	Close() error
}

// Sink receives events the engine raises on its own.
type Sink interface {
	// Paused reports that the debuggee stopped at r.
	Paused(r SourceRange, reason string)

	// Resumed reports that the debuggee runs again.
	Resumed()

	// Exited reports that the debuggee terminated with code.
	Exited(code int)
}
