// Package debuggertest provides a scripted debugger backend for tests.
package debuggertest

import (
	"context"
	"sync"

	"github.com/willibrandon/litedev/debugger"
)

// Backend is an in-memory debugger.Backend. Steps advance the reported line
// by one; Break stops at Location.
type Backend struct {
	Caps     debugger.Capabilities
	Location debugger.SourceRange

	// StartErr, when set, is returned by Start and Attach.
	StartErr error
	// StopErr, when set, is returned by Stop.
	StopErr error

	mu     sync.Mutex
	sink   debugger.Sink
	calls  []string
	closed int
}

// New returns a backend supporting every operation.
func New() *Backend {
	return &Backend{
		Caps: debugger.Capabilities{
			CanBreak:    true,
			CanStepOver: true,
			CanStepInto: true,
			CanStepOut:  true,
			CanContinue: true,
		},
		Location: debugger.SourceRange{File: "Program.cs", StartLine: 10, StartColumn: 9, EndLine: 10, EndColumn: 30},
	}
}

func (b *Backend) record(call string) {
	b.mu.Lock()
	b.calls = append(b.calls, call)
	b.mu.Unlock()
}

// Calls returns the operations invoked so far, in order.
func (b *Backend) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

// Closed returns how many times Close was called.
func (b *Backend) Closed() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Start implements debugger.Backend.
func (b *Backend) Start(_ context.Context, info debugger.StartInfo, sink debugger.Sink) error {
	b.record("start " + info.Program)
	return b.begin(sink)
}

// Attach implements debugger.Backend.
func (b *Backend) Attach(_ context.Context, _ int, sink debugger.Sink) error {
	b.record("attach")
	return b.begin(sink)
}

func (b *Backend) begin(sink debugger.Sink) error {
	if b.StartErr != nil {
		return b.StartErr
	}
	b.mu.Lock()
	b.sink = sink
	b.mu.Unlock()
	return nil
}

// Capabilities implements debugger.Backend.
func (b *Backend) Capabilities() debugger.Capabilities { return b.Caps }

// Break implements debugger.Backend.
func (b *Backend) Break(context.Context) (debugger.SourceRange, error) {
	b.record("break")
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Location, nil
}

// Continue implements debugger.Backend.
func (b *Backend) Continue(context.Context) error {
	b.record("continue")
	return nil
}

// Step implements debugger.Backend.
func (b *Backend) Step(_ context.Context, kind debugger.StepKind) (debugger.SourceRange, error) {
	b.record(kind.String())
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Location.StartLine++
	b.Location.EndLine++
	return b.Location, nil
}

// Stop implements debugger.Backend.
func (b *Backend) Stop(context.Context) error {
	b.record("stop")
	return b.StopErr
}

// Detach implements debugger.Backend.
func (b *Backend) Detach(context.Context) error {
	b.record("detach")
	return nil
}

// Close implements debugger.Backend.
func (b *Backend) Close() error {
	b.mu.Lock()
	b.closed++
	b.mu.Unlock()
	return nil
}

// HitBreakpoint simulates the engine stopping on its own at r.
func (b *Backend) HitBreakpoint(r debugger.SourceRange) {
	b.currentSink().Paused(r, "breakpoint")
}

// Exit simulates the debuggee terminating.
func (b *Backend) Exit(code int) {
	b.currentSink().Exited(code)
}

func (b *Backend) currentSink() debugger.Sink {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sink
}
