package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/willibrandon/litedev/build"
	"github.com/willibrandon/litedev/cmd/litedev/cli"
	"github.com/willibrandon/litedev/cmd/litedev/output"
	"github.com/willibrandon/litedev/config"
	"github.com/willibrandon/litedev/debugger"
	"github.com/willibrandon/litedev/debugger/dapbackend"
	"github.com/willibrandon/litedev/observability"
	"github.com/willibrandon/litedev/progress"
	"github.com/willibrandon/litedev/solution"
	"github.com/willibrandon/litedev/workbench"
)

// shutdownTimeout bounds unloading the solution (and stopping a debuggee) on exit.
const shutdownTimeout = 10 * time.Second

// loadSettings reads the settings for cmd and sets up the console and logger from them.
func loadSettings(cmd *cobra.Command, console *output.Console) (*config.Settings, observability.Logger, error) {
	configPath, _ := cmd.Flags().GetString("config")
	settings, err := config.Load(configPath, cmd.Flags())
	if err != nil {
		return nil, nil, err
	}
	level, err := settings.LogLevel()
	if err != nil {
		return nil, nil, err
	}
	console.SetVerbosity(output.VerbosityFor(level))
	return settings, observability.NewLogger(cmd.ErrOrStderr(), level), nil
}

// host runs a workbench on its interactive loop for the lifetime of one command.
type host struct {
	console  *output.Console
	settings *config.Settings
	logger   observability.Logger
	tracer   *sdktrace.TracerProvider

	loop *workbench.Loop
	wb   *workbench.Workbench

	showOutput  atomic.Bool
	statusMu    sync.Mutex
	status      *output.Status
	failures    chan error
	unsubscribe []func()

	cancel context.CancelFunc
	done   chan struct{}
}

type hostOption func(*workbench.Context)

func withLauncher(l workbench.Launcher) hostOption {
	return func(c *workbench.Context) { c.Launcher = l }
}

func newHost(cmd *cobra.Command, console *output.Console, opts ...hostOption) (*host, error) {
	settings, logger, err := loadSettings(cmd, console)
	if err != nil {
		return nil, err
	}

	tracing := settings.TracerConfig()
	tracing.ServiceVersion = cli.GetVersion()
	tracing.Writer = cmd.ErrOrStderr()
	tp, err := observability.SetupTracing(cmd.Context(), tracing)
	if err != nil {
		return nil, err
	}

	h := &host{
		console:  console,
		settings: settings,
		logger:   logger,
		tracer:   tp,
		loop:     workbench.NewLoop(logger),
		failures: make(chan error, 16),
		done:     make(chan struct{}),
	}

	env := workbench.Context{
		Logger:     logger,
		Settings:   settings,
		Debuggers:  newRegistry(settings, logger, console),
		Reporter:   progress.Func(func(line string) { console.Info("%s", line) }),
		Dispatcher: h.loop,
		Runner: build.NewExecRunner(settings.Build.Tool, settings.Build.Args, settings.Build.MaxParallel,
			logger, progress.Func(h.toolOutput)),
	}
	for _, opt := range opts {
		opt(&env)
	}
	h.wb = workbench.New(env)
	h.unsubscribe = append(h.unsubscribe,
		h.wb.OnPanelRequested(h.panelRequested),
		h.wb.OnFailed(h.failed),
		h.wb.OnBuildStarted(h.buildStarted),
		h.wb.OnBuildCompleted(func(workbench.Completion) { h.stopStatus() }))

	ctx, cancel := context.WithCancel(context.WithoutCancel(cmd.Context()))
	h.cancel = cancel
	go func() {
		defer close(h.done)
		_ = h.loop.Run(ctx)
	}()
	return h, nil
}

// newRegistry registers the configured debug adapter. Without an adapter
// nothing can be debugged and the run command is disabled.
func newRegistry(s *config.Settings, logger observability.Logger, console *output.Console) *debugger.Registry {
	if s.Debugger.Adapter == "" {
		return debugger.NewRegistry()
	}
	factory := dapbackend.Factory(s.Debugger.Adapter, s.Debugger.AdapterArgs,
		dapbackend.WithAdapterID(s.Debugger.AdapterID),
		dapbackend.WithLogger(logger),
		dapbackend.WithOutput(progress.Func(func(line string) { console.Println(line) })))
	return debugger.NewRegistry(debugger.NewBackendDebugger(s.Debugger.AdapterID, nil, factory, logger))
}

// do runs fn on the interactive loop and waits for it.
func (h *host) do(ctx context.Context, fn func(ctx context.Context) error) error {
	return h.loop.Do(ctx, func() error { return fn(ctx) })
}

// load opens the solution at path, or the only solution in the working directory.
func (h *host) load(ctx context.Context, path string) error {
	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return err
		}
		if path, err = solution.FindSolution(wd); err != nil {
			return err
		}
	}
	return h.do(ctx, func(ctx context.Context) error { return h.wb.LoadSolution(ctx, path) })
}

// build starts a build or clean with start and waits for its completion and
// for the post-build action that follows it.
func (h *host) build(ctx context.Context, start func(ctx context.Context) error) (workbench.Completion, error) {
	h.drainFailures()

	completions := make(chan workbench.Completion, 1)
	unsubscribe := h.wb.OnBuildCompleted(func(c workbench.Completion) {
		select {
		case completions <- c:
		default:
		}
	})
	defer unsubscribe()

	if err := h.do(ctx, start); err != nil {
		return workbench.Completion{}, err
	}

	var c workbench.Completion
	select {
	case c = <-completions:
	case <-ctx.Done():
		return workbench.Completion{}, ctx.Err()
	}
	if c.Err != nil {
		return c, c.Err
	}

	// the action runs on the loop right after the completion is published
	if err := h.do(ctx, func(context.Context) error { return nil }); err != nil {
		return c, err
	}
	return c, nil
}

// summarize prints the outcome of c and returns an error when it failed.
func (h *host) summarize(c workbench.Completion) error {
	r := c.Result
	kind := c.Kind.String()
	h.console.Info("%d error(s), %d warning(s)", r.Count(build.SeverityError), r.Count(build.SeverityWarning))
	if !r.Success() {
		return fmt.Errorf("%s failed with %d error(s)", kind, r.Count(build.SeverityError))
	}
	h.console.Success("%s succeeded in %s", capitalize(kind), r.Duration().Round(time.Millisecond))
	return nil
}

// actionFailure returns the first failure reported since the last build started.
func (h *host) actionFailure() error {
	select {
	case err := <-h.failures:
		return err
	default:
		return nil
	}
}

func (h *host) drainFailures() {
	for {
		select {
		case <-h.failures:
		default:
			return
		}
	}
}

func (h *host) failed(err error) {
	h.logger.Debug("Workbench failure: {Error}", err)
	select {
	case h.failures <- err:
	default:
	}
}

// buildStarted shows a live timer for the build or clean on a terminal.
func (h *host) buildStarted(s solution.Started) {
	status := output.NewStatus(h.console.Out(), capitalize(s.Kind.String()))
	h.statusMu.Lock()
	prev := h.status
	h.status = status
	h.statusMu.Unlock()
	if prev != nil {
		prev.Stop()
	}
}

func (h *host) stopStatus() {
	h.statusMu.Lock()
	status := h.status
	h.status = nil
	h.statusMu.Unlock()
	if status != nil {
		status.Stop()
	}
}

func (h *host) panelRequested(p workbench.Panel) {
	switch p {
	case workbench.PanelOutput:
		h.showOutput.Store(true)
	case workbench.PanelErrors:
		for _, e := range h.wb.Errors().Items() {
			h.console.Problem(e)
		}
	}
}

// toolOutput receives build tool output. It is shown once the workbench asks
// for the output panel and otherwise only at detailed verbosity.
func (h *host) toolOutput(line string) {
	if h.showOutput.Load() {
		h.console.Println(line)
		return
	}
	h.console.Detail("%s", line)
}

// close unloads the solution, stops the loop and flushes traces.
func (h *host) close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := h.do(ctx, func(ctx context.Context) error {
		h.wb.UnloadSolution(ctx)
		return nil
	})
	if err != nil && !errors.Is(err, workbench.ErrLoopClosed) {
		h.logger.Warn("Failed to unload solution: {Error}", err)
	}
	for _, unsubscribe := range h.unsubscribe {
		unsubscribe()
	}

	h.stopStatus()
	h.loop.Close()
	select {
	case <-h.done:
	case <-ctx.Done():
	}
	h.cancel()

	if err := observability.ShutdownTracing(ctx, h.tracer); err != nil {
		h.logger.Warn("Failed to flush traces: {Error}", err)
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
