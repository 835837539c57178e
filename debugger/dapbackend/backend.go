// Package dapbackend implements debugger.Backend over the Debug Adapter
// Protocol, talking to an external adapter such as netcoredbg or vsdbg.
package dapbackend

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/google/go-dap"

	"github.com/willibrandon/litedev/debugger"
	"github.com/willibrandon/litedev/observability"
	"github.com/willibrandon/litedev/progress"
)

// DefaultTimeout bounds every request that has no earlier context deadline.
const DefaultTimeout = 10 * time.Second

// ErrClosed is returned for requests made after the connection ended.
var ErrClosed = errors.New("debug adapter connection closed")

// Option configures a Backend.
type Option func(*Backend)

// WithAdapterID sets the adapter identifier sent in initialize and launch, e.g. "coreclr".
func WithAdapterID(id string) Option {
	return func(b *Backend) { b.adapterID = id }
}

// WithLogger sets the logger for protocol diagnostics.
func WithLogger(logger observability.Logger) Option {
	return func(b *Backend) { b.logger = logger }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(b *Backend) { b.timeout = d }
}

// WithOutput forwards the debuggee's console output to r.
func WithOutput(r progress.Reporter) Option {
	return func(b *Backend) { b.output = r }
}

type stop struct {
	threadID int
	reason   string
}

// Backend is a DAP client bound to one adapter connection.
type Backend struct {
	conn   io.ReadWriteCloser
	reader *bufio.Reader
	writer *bufio.Writer
	cmd    *exec.Cmd

	adapterID string
	timeout   time.Duration
	logger    observability.Logger
	output    progress.Reporter
	retry     RetryConfig

	writeMu sync.Mutex
	seq     int

	mu       sync.Mutex
	pending  map[int]chan dap.Message
	waiter   chan stop
	sink     debugger.Sink
	caps     *dap.Capabilities
	threadID int
	exitCode int
	exited   bool
	closing  bool

	initialized chan struct{}
	initOnce    sync.Once
	done        chan struct{}
	closeOnce   sync.Once
}

// New creates a backend over conn and starts reading from it.
func New(conn io.ReadWriteCloser, opts ...Option) *Backend {
	b := &Backend{
		conn:        conn,
		reader:      bufio.NewReader(conn),
		writer:      bufio.NewWriter(conn),
		adapterID:   "coreclr",
		timeout:     DefaultTimeout,
		logger:      observability.NewNullLogger(),
		output:      progress.Discard,
		pending:     make(map[int]chan dap.Message),
		initialized: make(chan struct{}),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	go b.readLoop()
	return b
}

// Capabilities implements debugger.Backend. Pause, continue and the three
// step requests are mandatory in DAP, so every flag is set once the adapter
// has answered initialize.
func (b *Backend) Capabilities() debugger.Capabilities {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.caps == nil {
		return debugger.Capabilities{}
	}
	return debugger.Capabilities{
		CanBreak:    true,
		CanStepOver: true,
		CanStepInto: true,
		CanStepOut:  true,
		CanContinue: true,
	}
}

// Start implements debugger.Backend.
func (b *Backend) Start(ctx context.Context, info debugger.StartInfo, sink debugger.Sink) error {
	args := map[string]any{
		"name":        "litedev",
		"type":        b.adapterID,
		"request":     "launch",
		"program":     info.Program,
		"args":        nonNil(info.Args),
		"cwd":         info.Dir,
		"stopAtEntry": false,
		"console":     "internalConsole",
	}
	if len(info.Env) > 0 {
		env := make(map[string]string, len(info.Env))
		for _, kv := range info.Env {
			k, v, _ := strings.Cut(kv, "=")
			env[k] = v
		}
		args["env"] = env
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("failed to marshal launch arguments: %w", err)
	}
	return b.begin(ctx, sink, &dap.LaunchRequest{Request: newRequest("launch"), Arguments: raw})
}

// Attach implements debugger.Backend.
func (b *Backend) Attach(ctx context.Context, pid int, sink debugger.Sink) error {
	raw, err := json.Marshal(map[string]any{
		"name":      "litedev",
		"type":      b.adapterID,
		"request":   "attach",
		"processId": pid,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal attach arguments: %w", err)
	}
	return b.begin(ctx, sink, &dap.AttachRequest{Request: newRequest("attach"), Arguments: raw})
}

// begin runs initialize, then launch or attach, then configurationDone once
// the adapter signals initialized. Some adapters answer launch only after
// configurationDone, so its response is awaited last.
func (b *Backend) begin(ctx context.Context, sink debugger.Sink, launch dap.RequestMessage) error {
	b.mu.Lock()
	b.sink = sink
	b.mu.Unlock()

	resp, err := b.request(ctx, &dap.InitializeRequest{
		Request: newRequest("initialize"),
		Arguments: dap.InitializeRequestArguments{
			ClientID:        "litedev",
			ClientName:      "litedev",
			AdapterID:       b.adapterID,
			Locale:          "en-US",
			LinesStartAt1:   true,
			ColumnsStartAt1: true,
			PathFormat:      "path",
		},
	})
	if err != nil {
		return err
	}
	initResp, ok := resp.(*dap.InitializeResponse)
	if !ok {
		return fmt.Errorf("unexpected response type: %T", resp)
	}
	b.mu.Lock()
	b.caps = &initResp.Body
	b.mu.Unlock()

	launchCh, err := b.send(launch)
	if err != nil {
		return err
	}

	ctx, cancel := b.withTimeout(ctx)
	defer cancel()
	select {
	case <-b.initialized:
	case <-ctx.Done():
		return fmt.Errorf("waiting for initialized event: %w", ctx.Err())
	case <-b.done:
		return ErrClosed
	}

	if initResp.Body.SupportsConfigurationDoneRequest {
		if _, err := b.request(ctx, &dap.ConfigurationDoneRequest{Request: newRequest("configurationDone")}); err != nil {
			return err
		}
	}

	_, err = b.await(ctx, launchCh, launch.GetRequest().Command)
	return err
}

// Break implements debugger.Backend.
func (b *Backend) Break(ctx context.Context) (debugger.SourceRange, error) {
	thread, err := b.thread(ctx)
	if err != nil {
		return debugger.SourceRange{}, err
	}
	return b.runUntilStop(ctx, &dap.PauseRequest{
		Request:   newRequest("pause"),
		Arguments: dap.PauseArguments{ThreadId: thread},
	})
}

// Continue implements debugger.Backend.
func (b *Backend) Continue(ctx context.Context) error {
	thread, err := b.thread(ctx)
	if err != nil {
		return err
	}
	_, err = b.request(ctx, &dap.ContinueRequest{
		Request:   newRequest("continue"),
		Arguments: dap.ContinueArguments{ThreadId: thread},
	})
	return err
}

// Step implements debugger.Backend.
func (b *Backend) Step(ctx context.Context, kind debugger.StepKind) (debugger.SourceRange, error) {
	thread, err := b.thread(ctx)
	if err != nil {
		return debugger.SourceRange{}, err
	}
	var req dap.RequestMessage
	switch kind {
	case debugger.StepInto:
		req = &dap.StepInRequest{Request: newRequest("stepIn"), Arguments: dap.StepInArguments{ThreadId: thread}}
	case debugger.StepOut:
		req = &dap.StepOutRequest{Request: newRequest("stepOut"), Arguments: dap.StepOutArguments{ThreadId: thread}}
	default:
		req = &dap.NextRequest{Request: newRequest("next"), Arguments: dap.NextArguments{ThreadId: thread}}
	}
	return b.runUntilStop(ctx, req)
}

// Stop implements debugger.Backend.
func (b *Backend) Stop(ctx context.Context) error {
	return b.disconnect(ctx, true)
}

// Detach implements debugger.Backend.
func (b *Backend) Detach(ctx context.Context) error {
	return b.disconnect(ctx, false)
}

func (b *Backend) disconnect(ctx context.Context, terminate bool) error {
	_, err := b.request(ctx, &dap.DisconnectRequest{
		Request:   newRequest("disconnect"),
		Arguments: &dap.DisconnectArguments{TerminateDebuggee: terminate},
	})
	if errors.Is(err, ErrClosed) {
		return nil
	}
	return err
}

// Close implements debugger.Backend. It closes the connection and, for a
// spawned adapter, waits for the process to exit.
func (b *Backend) Close() error {
	var err error
	b.closeOnce.Do(func() {
		b.mu.Lock()
		b.closing = true
		b.mu.Unlock()

		err = b.conn.Close()
		<-b.done
		if b.cmd != nil {
			waited := make(chan error, 1)
			go func() { waited <- b.cmd.Wait() }()
			select {
			case <-waited:
			case <-time.After(b.timeout):
				_ = b.cmd.Process.Kill()
				<-waited
			}
		}
	})
	return err
}

// runUntilStop sends req and waits for the stopped event it causes.
func (b *Backend) runUntilStop(ctx context.Context, req dap.RequestMessage) (debugger.SourceRange, error) {
	waiter := make(chan stop, 1)
	b.mu.Lock()
	b.waiter = waiter
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		if b.waiter == waiter {
			b.waiter = nil
		}
		b.mu.Unlock()
	}()

	if _, err := b.request(ctx, req); err != nil {
		return debugger.SourceRange{}, err
	}

	ctx, cancel := b.withTimeout(ctx)
	defer cancel()
	select {
	case st := <-waiter:
		return b.topFrame(ctx, st.threadID)
	case <-ctx.Done():
		return debugger.SourceRange{}, fmt.Errorf("waiting for stopped event: %w", ctx.Err())
	case <-b.done:
		return debugger.SourceRange{}, ErrClosed
	}
}

// topFrame returns the location of the innermost frame of thread.
func (b *Backend) topFrame(ctx context.Context, thread int) (debugger.SourceRange, error) {
	resp, err := b.request(ctx, &dap.StackTraceRequest{
		Request:   newRequest("stackTrace"),
		Arguments: dap.StackTraceArguments{ThreadId: thread, Levels: 1},
	})
	if err != nil {
		return debugger.SourceRange{}, err
	}
	st, ok := resp.(*dap.StackTraceResponse)
	if !ok {
		return debugger.SourceRange{}, fmt.Errorf("unexpected response type: %T", resp)
	}
	if len(st.Body.StackFrames) == 0 {
		return debugger.SourceRange{}, nil
	}
	f := st.Body.StackFrames[0]
	r := debugger.SourceRange{
		StartLine:   f.Line,
		StartColumn: f.Column,
		EndLine:     f.EndLine,
		EndColumn:   f.EndColumn,
	}
	if f.Source != nil {
		r.File = f.Source.Path
	}
	if r.EndLine == 0 {
		r.EndLine = r.StartLine
	}
	return r, nil
}

// thread returns the thread of the last stop, or the first thread the adapter reports.
func (b *Backend) thread(ctx context.Context) (int, error) {
	b.mu.Lock()
	id := b.threadID
	b.mu.Unlock()
	if id != 0 {
		return id, nil
	}

	resp, err := b.request(ctx, &dap.ThreadsRequest{Request: newRequest("threads")})
	if err != nil {
		return 0, err
	}
	tr, ok := resp.(*dap.ThreadsResponse)
	if !ok || len(tr.Body.Threads) == 0 {
		return 1, nil
	}
	return tr.Body.Threads[0].Id, nil
}

// request sends req and waits for its response.
func (b *Backend) request(ctx context.Context, req dap.RequestMessage) (dap.Message, error) {
	ch, err := b.send(req)
	if err != nil {
		return nil, err
	}
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()
	return b.await(ctx, ch, req.GetRequest().Command)
}

func (b *Backend) send(req dap.RequestMessage) (chan dap.Message, error) {
	ch := make(chan dap.Message, 1)

	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	b.seq++
	r := req.GetRequest()
	r.Seq = b.seq

	b.mu.Lock()
	b.pending[r.Seq] = ch
	b.mu.Unlock()

	b.logger.Verbose("DAP request {Command} {Seq}", r.Command, r.Seq)
	err := dap.WriteProtocolMessage(b.writer, req)
	if err == nil {
		err = b.writer.Flush()
	}
	if err != nil {
		b.mu.Lock()
		delete(b.pending, r.Seq)
		b.mu.Unlock()
		select {
		case <-b.done:
			return nil, ErrClosed
		default:
		}
		return nil, fmt.Errorf("failed to write DAP message: %w", err)
	}
	return ch, nil
}

func (b *Backend) await(ctx context.Context, ch chan dap.Message, command string) (dap.Message, error) {
	select {
	case msg := <-ch:
		resp, ok := msg.(dap.ResponseMessage)
		if !ok {
			return nil, fmt.Errorf("unexpected response type: %T", msg)
		}
		if r := resp.GetResponse(); !r.Success {
			reason := r.Message
			if er, ok := msg.(*dap.ErrorResponse); ok && er.Body.Error != nil {
				reason = er.Body.Error.Format
			}
			return nil, fmt.Errorf("%s failed: %s", command, reason)
		}
		return msg, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", command, ctx.Err())
	case <-b.done:
		return nil, ErrClosed
	}
}

func (b *Backend) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, b.timeout)
}

func (b *Backend) readLoop() {
	var lost debugger.Sink
	defer func() {
		close(b.done)
		if lost != nil {
			lost.Exited(-1)
		}
	}()
	for {
		msg, err := dap.ReadProtocolMessage(b.reader)
		var fieldErr *dap.DecodeProtocolMessageFieldError
		if errors.As(err, &fieldErr) {
			// adapter-specific events and commands are skipped
			b.logger.Debug("Skipping DAP message: {Error}", err)
			continue
		}
		if err != nil {
			b.mu.Lock()
			closing, exited, sink := b.closing, b.exited, b.sink
			b.exited = true
			b.mu.Unlock()
			if !closing {
				b.logger.Warn("Debug adapter connection lost: {Error}", err)
				if !exited {
					lost = sink
				}
			}
			return
		}
		b.handle(msg)
	}
}

func (b *Backend) handle(msg dap.Message) {
	if resp, ok := msg.(dap.ResponseMessage); ok {
		seq := resp.GetResponse().RequestSeq
		b.mu.Lock()
		ch, ok := b.pending[seq]
		delete(b.pending, seq)
		b.mu.Unlock()
		if ok {
			ch <- msg
		}
		return
	}

	switch m := msg.(type) {
	case *dap.InitializedEvent:
		b.initOnce.Do(func() { close(b.initialized) })

	case *dap.StoppedEvent:
		st := stop{threadID: m.Body.ThreadId, reason: m.Body.Reason}
		b.mu.Lock()
		if st.threadID != 0 {
			b.threadID = st.threadID
		} else {
			st.threadID = b.threadID
		}
		waiter, sink := b.waiter, b.sink
		b.waiter = nil
		b.mu.Unlock()

		if waiter != nil {
			waiter <- st
			return
		}
		if sink != nil {
			// topFrame needs the read loop to deliver its response
			go b.reportStop(sink, st)
		}

	case *dap.ContinuedEvent:
		b.mu.Lock()
		sink := b.sink
		b.mu.Unlock()
		if sink != nil {
			go sink.Resumed()
		}

	case *dap.ExitedEvent:
		b.mu.Lock()
		b.exitCode = m.Body.ExitCode
		b.mu.Unlock()

	case *dap.TerminatedEvent:
		b.mu.Lock()
		sink, exited, code := b.sink, b.exited, b.exitCode
		b.exited = true
		b.mu.Unlock()
		if sink != nil && !exited {
			go sink.Exited(code)
		}

	case *dap.OutputEvent:
		if m.Body.Category != "telemetry" {
			b.output.Report("%s", strings.TrimRight(m.Body.Output, "\r\n"))
		}
	}
}

func (b *Backend) reportStop(sink debugger.Sink, st stop) {
	r, err := b.topFrame(context.Background(), st.threadID)
	if err != nil {
		b.logger.Warn("Failed to read stop location: {Error}", err)
	}
	sink.Paused(r, st.reason)
}

func newRequest(command string) dap.Request {
	return dap.Request{
		ProtocolMessage: dap.ProtocolMessage{Type: "request"},
		Command:         command,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
