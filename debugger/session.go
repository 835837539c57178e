// Package debugger implements the lifecycle of a debugging session on top of
// a pluggable engine backend.
//
// A session moves Inactive → Starting → Running ⇄ Paused → Stopped → Disposed.
// Operations are checked against the backend's capabilities and the current
// state before they reach the backend; a rejected operation returns an error
// wrapping ErrCapability and leaves the session untouched.
package debugger

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/willibrandon/litedev/collections"
	"github.com/willibrandon/litedev/observability"
	"github.com/willibrandon/litedev/progress"
)

// PauseEvent is raised when the debuggee is suspended.
type PauseEvent struct {
	Session *Session
	Range   SourceRange
	Reason  string
}

// Session is one debugging session. Operations must not be called
// concurrently; events may be raised from the backend's goroutines.
type Session struct {
	id      string
	name    string
	backend Backend
	logger  observability.Logger

	mu       sync.Mutex
	state    State
	current  SourceRange
	active   bool
	exitCode int
	reporter progress.Reporter

	paused        collections.Event[PauseEvent]
	resumed       collections.Event[*Session]
	disposed      collections.Event[*Session]
	activeChanged collections.Event[*Session]
}

// NewSession creates an inactive session over backend. name identifies the
// debugger in logs and traces.
func NewSession(name string, backend Backend, logger observability.Logger) *Session {
	if logger == nil {
		logger = observability.NewNullLogger()
	}
	id := uuid.NewString()
	return &Session{
		id:       id,
		name:     name,
		backend:  backend,
		logger:   logger.ForContext("SessionId", id),
		reporter: progress.Discard,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Name returns the name of the debugger that created the session.
func (s *Session) Name() string { return s.name }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsActive reports whether the session has a live debuggee.
func (s *Session) IsActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// ExitCode returns the debuggee's exit code once it has exited.
func (s *Session) ExitCode() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exitCode
}

// SetReporter sets the sink for status lines.
func (s *Session) SetReporter(r progress.Reporter) {
	if r == nil {
		r = progress.Discard
	}
	s.mu.Lock()
	s.reporter = r
	s.mu.Unlock()
}

func (s *Session) report(format string, args ...any) {
	s.mu.Lock()
	r := s.reporter
	s.mu.Unlock()
	r.Report(format, args...)
}

// CurrentSourceRange returns where the debuggee is paused. It is the zero
// value unless the session is paused.
func (s *Session) CurrentSourceRange() SourceRange {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StatePaused {
		return SourceRange{}
	}
	return s.current
}

// CanBreak reports whether BreakAll is available.
func (s *Session) CanBreak() bool {
	return s.can(StateRunning, s.backend.Capabilities().CanBreak)
}

// CanContinue reports whether Continue is available.
func (s *Session) CanContinue() bool {
	return s.can(StatePaused, s.backend.Capabilities().CanContinue)
}

// CanStepOver reports whether StepOver is available.
func (s *Session) CanStepOver() bool {
	return s.can(StatePaused, s.backend.Capabilities().CanStepOver)
}

// CanStepInto reports whether StepInto is available.
func (s *Session) CanStepInto() bool {
	return s.can(StatePaused, s.backend.Capabilities().CanStepInto)
}

// CanStepOut reports whether StepOut is available.
func (s *Session) CanStepOut() bool {
	return s.can(StatePaused, s.backend.Capabilities().CanStepOut)
}

func (s *Session) can(want State, flag bool) bool {
	return flag && s.State() == want
}

func (s *Session) require(op string, allowed bool) error {
	if allowed {
		return nil
	}
	return &CapabilityError{Op: op, State: s.State()}
}

// OnPaused registers h for suspensions, including the end of every step.
func (s *Session) OnPaused(h func(PauseEvent)) func() { return s.paused.Subscribe(h) }

// OnResumed registers h for the debuggee running again, including the start of every step.
func (s *Session) OnResumed(h func(*Session)) func() { return s.resumed.Subscribe(h) }

// OnDisposed registers h for disposal. It fires exactly once per session.
func (s *Session) OnDisposed(h func(*Session)) func() { return s.disposed.Subscribe(h) }

// OnActiveChanged registers h for changes of IsActive.
func (s *Session) OnActiveChanged(h func(*Session)) func() { return s.activeChanged.Subscribe(h) }

// Start launches info.Program under the debugger. On failure the session
// returns to Inactive.
func (s *Session) Start(ctx context.Context, info StartInfo) error {
	if err := s.begin("start"); err != nil {
		return err
	}
	ctx, span := observability.StartDebugSessionSpan(ctx, info.Program, s.name)
	s.report("Starting %s", info.Program)
	err := s.backend.Start(ctx, info, sink{s})
	observability.EndSpanWithError(span, err)
	return s.started(err)
}

// Attach attaches to the running process pid.
func (s *Session) Attach(ctx context.Context, pid int) error {
	if err := s.begin("attach"); err != nil {
		return err
	}
	s.report("Attaching to process %d", pid)
	return s.started(s.backend.Attach(ctx, pid, sink{s}))
}

func (s *Session) begin(op string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateInactive {
		return fmt.Errorf("%w: cannot %s while %s", ErrInvalidState, op, s.state)
	}
	s.setState(StateStarting)
	return nil
}

func (s *Session) started(err error) error {
	s.mu.Lock()
	if err != nil {
		if s.state == StateStarting {
			s.setState(StateInactive)
		}
		s.mu.Unlock()
		observability.DebuggerSessionsTotal.WithLabelValues("failed").Inc()
		s.logger.Warn("Debugger {Debugger} failed to start: {Error}", s.name, err)
		return fmt.Errorf("failed to start debugger session: %w", err)
	}
	if s.state == StateStarting {
		s.setState(StateRunning)
	}
	live := !s.state.ended()
	s.mu.Unlock()

	observability.DebuggerSessionsTotal.WithLabelValues("started").Inc()
	if live {
		s.setActive(true)
	}
	return nil
}

// BreakAll suspends the debuggee. It requires CanBreak.
func (s *Session) BreakAll(ctx context.Context) error {
	if err := s.require("break", s.CanBreak()); err != nil {
		return err
	}
	r, err := s.backend.Break(ctx)
	if err != nil {
		return fmt.Errorf("failed to break: %w", err)
	}
	s.pause(r, "pause")
	return nil
}

// Continue resumes the debuggee. It requires CanContinue.
func (s *Session) Continue(ctx context.Context) error {
	if err := s.require("continue", s.CanContinue()); err != nil {
		return err
	}
	previous := s.CurrentSourceRange()
	s.resume()
	if err := s.backend.Continue(ctx); err != nil {
		s.pause(previous, "continue failed")
		return fmt.Errorf("failed to continue: %w", err)
	}
	return nil
}

// StepOver runs to the next statement. It requires CanStepOver.
func (s *Session) StepOver(ctx context.Context) error {
	return s.step(ctx, StepOver, s.CanStepOver())
}

// StepInto steps into the call at the current statement. It requires CanStepInto.
func (s *Session) StepInto(ctx context.Context) error {
	return s.step(ctx, StepInto, s.CanStepInto())
}

// StepOut runs until the current function returns. It requires CanStepOut.
func (s *Session) StepOut(ctx context.Context) error {
	return s.step(ctx, StepOut, s.CanStepOut())
}

// step pulses Resumed then Paused around the backend step.
func (s *Session) step(ctx context.Context, kind StepKind, allowed bool) error {
	if err := s.require(kind.String(), allowed); err != nil {
		return err
	}
	previous := s.CurrentSourceRange()
	s.resume()
	r, err := s.backend.Step(ctx, kind)
	if err != nil {
		s.pause(previous, kind.String()+" failed")
		return fmt.Errorf("failed to %s: %w", kind, err)
	}
	s.pause(r, kind.String())
	return nil
}

// StopAll terminates the debuggee and disposes the session. It is valid in
// every state and idempotent.
func (s *Session) StopAll(ctx context.Context) error {
	return s.end(ctx, "stop", s.backend.Stop)
}

// Detach leaves the debuggee running and disposes the session.
func (s *Session) Detach(ctx context.Context) error {
	return s.end(ctx, "detach", s.backend.Detach)
}

// Dispose stops the session if it is still live and releases the backend.
func (s *Session) Dispose() {
	_ = s.StopAll(context.Background())
}

func (s *Session) end(ctx context.Context, op string, backendOp func(context.Context) error) error {
	s.mu.Lock()
	st := s.state
	s.mu.Unlock()
	if st.ended() {
		return nil
	}

	var err error
	if st != StateInactive {
		err = backendOp(ctx)
	}
	s.stop()
	if err != nil {
		return fmt.Errorf("failed to %s debuggee: %w", op, err)
	}
	return nil
}

func (s *Session) pause(r SourceRange, reason string) {
	s.mu.Lock()
	if s.state != StateRunning && s.state != StateStarting {
		s.mu.Unlock()
		return
	}
	s.current = r
	s.setState(StatePaused)
	s.mu.Unlock()

	s.logger.Debug("Paused at {Location} ({Reason})", r.String(), reason)
	s.paused.Emit(PauseEvent{Session: s, Range: r, Reason: reason})
}

func (s *Session) resume() {
	s.mu.Lock()
	if s.state != StatePaused {
		s.mu.Unlock()
		return
	}
	s.setState(StateRunning)
	s.mu.Unlock()

	s.resumed.Emit(s)
}

func (s *Session) stop() {
	s.mu.Lock()
	if s.state.ended() {
		s.mu.Unlock()
		return
	}
	s.setState(StateStopped)
	s.mu.Unlock()

	s.setActive(false)
	s.dispose()
}

func (s *Session) dispose() {
	s.mu.Lock()
	if s.state == StateDisposed {
		s.mu.Unlock()
		return
	}
	s.setState(StateDisposed)
	s.mu.Unlock()

	if err := s.backend.Close(); err != nil {
		s.logger.Warn("Failed to close debugger backend: {Error}", err)
	}
	s.disposed.Emit(s)
}

func (s *Session) setActive(active bool) {
	s.mu.Lock()
	if s.active == active {
		s.mu.Unlock()
		return
	}
	s.active = active
	s.mu.Unlock()

	s.activeChanged.Emit(s)
}

// setState must be called with mu held.
func (s *Session) setState(to State) {
	from := s.state
	s.state = to
	observability.DebuggerStateTransitions.WithLabelValues(from.String(), to.String()).Inc()
	s.logger.Verbose("Session state {From} -> {To}", from, to)
}

// sink forwards backend events to the session.
type sink struct{ s *Session }

func (k sink) Paused(r SourceRange, reason string) { k.s.pause(r, reason) }

func (k sink) Resumed() { k.s.resume() }

func (k sink) Exited(code int) {
	k.s.mu.Lock()
	if k.s.state.ended() {
		k.s.mu.Unlock()
		return
	}
	k.s.exitCode = code
	k.s.mu.Unlock()
	k.s.report("Process exited with code %d", code)
	k.s.stop()
}
