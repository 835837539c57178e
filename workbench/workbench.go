// Package workbench sequences the IDE's build and debug commands: it saves
// dirty artifacts, builds a solution in the background, runs or debugs the
// result and keeps the availability of every command in step with the
// debugger session.
//
// All Workbench methods must be called on the interactive goroutine, the one
// running the Context's Dispatcher. Build completions and debugger events
// are posted back to it.
package workbench

import (
	"context"
	"fmt"
	"strings"

	"github.com/willibrandon/litedev/build"
	"github.com/willibrandon/litedev/collections"
	"github.com/willibrandon/litedev/debugger"
	"github.com/willibrandon/litedev/observability"
	"github.com/willibrandon/litedev/project"
	"github.com/willibrandon/litedev/solution"
)

// PostBuildAction is what happens after a successful build.
type PostBuildAction int

const (
	PostBuildNone PostBuildAction = iota
	PostBuildRun
	PostBuildDebug
)

func (a PostBuildAction) String() string {
	switch a {
	case PostBuildRun:
		return "run"
	case PostBuildDebug:
		return "debug"
	default:
		return "none"
	}
}

// Panel names a host view the workbench asks to bring forward.
type Panel int

const (
	PanelOutput Panel = iota
	PanelErrors
)

// Completion is published when a build or clean of the current solution finishes.
type Completion struct {
	Kind   build.Kind
	Result *build.Result

	// Err is set when the build tool could not run at all; Result is then nil
	Err error
}

// Workbench is the build/debug orchestrator of one host.
type Workbench struct {
	env Context

	errors *ErrorList

	sol         *solution.Solution
	builder     *solution.Builder
	unsubscribe []func()
	generation  uint64

	// inFlight is set from an accepted request until its completion has run
	// here; pending is that request's post-build action
	inFlight bool
	pending  PostBuildAction

	session     *debugger.Session
	sessionSubs []func()

	commands CommandSet

	commandsChanged  collections.Event[CommandSet]
	solutionLoaded   collections.Event[*solution.Solution]
	solutionUnloaded collections.Event[*solution.Solution]
	buildStarted     collections.Event[solution.Started]
	buildCompleted   collections.Event[Completion]
	debugStarted     collections.Event[*debugger.Session]
	debugStopped     collections.Event[*debugger.Session]
	panelRequested   collections.Event[Panel]
	failed           collections.Event[error]
}

// New creates a workbench with no solution loaded.
func New(env Context) *Workbench {
	return &Workbench{
		env:    env.withDefaults(),
		errors: NewErrorList(),
	}
}

// Solution returns the loaded solution, or nil.
func (w *Workbench) Solution() *solution.Solution { return w.sol }

// Session returns the current debugger session, or nil.
func (w *Workbench) Session() *debugger.Session { return w.session }

// Errors returns the error list.
func (w *Workbench) Errors() *ErrorList { return w.errors }

// Commands returns the enabled commands.
func (w *Workbench) Commands() CommandSet { return w.commands }

// Enabled reports whether c is enabled.
func (w *Workbench) Enabled(c Command) bool { return w.commands.Has(c) }

// PendingAction returns the action waiting for the in-flight build.
func (w *Workbench) PendingAction() PostBuildAction { return w.pending }

// IsBuilding reports whether a build or clean of the loaded solution is in flight.
func (w *Workbench) IsBuilding() bool {
	return w.inFlight || (w.builder != nil && w.builder.IsBusy())
}

// OnCommandsChanged registers h for changes of command availability.
func (w *Workbench) OnCommandsChanged(h func(CommandSet)) func() {
	return w.commandsChanged.Subscribe(h)
}

// OnSolutionLoaded registers h for solution loads.
func (w *Workbench) OnSolutionLoaded(h func(*solution.Solution)) func() {
	return w.solutionLoaded.Subscribe(h)
}

// OnSolutionUnloaded registers h for solution unloads.
func (w *Workbench) OnSolutionUnloaded(h func(*solution.Solution)) func() {
	return w.solutionUnloaded.Subscribe(h)
}

// OnBuildStarted registers h for build and clean starts.
func (w *Workbench) OnBuildStarted(h func(solution.Started)) func() {
	return w.buildStarted.Subscribe(h)
}

// OnBuildCompleted registers h for build and clean completions.
func (w *Workbench) OnBuildCompleted(h func(Completion)) func() {
	return w.buildCompleted.Subscribe(h)
}

// OnDebugStarted registers h for new debugger sessions.
func (w *Workbench) OnDebugStarted(h func(*debugger.Session)) func() {
	return w.debugStarted.Subscribe(h)
}

// OnDebugStopped registers h for the end of a debugger session.
func (w *Workbench) OnDebugStopped(h func(*debugger.Session)) func() {
	return w.debugStopped.Subscribe(h)
}

// OnPanelRequested registers h for requests to show a host panel.
func (w *Workbench) OnPanelRequested(h func(Panel)) func() {
	return w.panelRequested.Subscribe(h)
}

// OnFailed registers h for failures of work the workbench ran on its own,
// such as a post-build action or a failed build.
func (w *Workbench) OnFailed(h func(error)) func() {
	return w.failed.Subscribe(h)
}

// LoadSolution loads path, replacing the current solution.
func (w *Workbench) LoadSolution(ctx context.Context, path string) error {
	w.UnloadSolution(ctx)

	sol, err := solution.Load(ctx, path,
		project.WithLogger(w.env.Logger),
		project.WithStrictConditions(w.env.Settings.Projects.StrictConditions))
	if err != nil {
		return err
	}

	w.generation++
	w.sol = sol
	w.builder = solution.NewBuilder(w.env.Runner, w.env.Logger)
	w.unsubscribe = append(w.unsubscribe, w.builder.OnStarted(w.onBuildStarted))

	w.env.Logger.Info("Loaded solution {Solution} with {ProjectCount} projects", sol.Name(), len(sol.Projects()))
	w.solutionLoaded.Emit(sol)
	w.setCommands(w.baseline())
	return nil
}

// UnloadSolution stops debugging and closes the current solution. A build
// in flight runs to completion but its result is ignored.
func (w *Workbench) UnloadSolution(ctx context.Context) {
	if w.sol == nil {
		return
	}
	if s := w.session; s != nil {
		if err := s.StopAll(ctx); err != nil {
			w.env.Logger.Warn("Failed to stop debugger session: {Error}", err)
		}
		w.endSession(s)
	}

	sol := w.sol
	for _, unsubscribe := range w.unsubscribe {
		unsubscribe()
	}
	w.unsubscribe = nil
	w.generation++
	w.inFlight, w.pending = false, PostBuildNone
	w.sol, w.builder = nil, nil
	sol.Close()

	w.env.Logger.Info("Unloaded solution {Solution}", sol.Name())
	w.solutionUnloaded.Emit(sol)
	w.setCommands(0)
}

// Build saves unsaved items and builds the solution in the background.
func (w *Workbench) Build(ctx context.Context) error {
	return w.startBuild(ctx, build.KindBuild, PostBuildNone)
}

// Clean cleans the solution in the background.
func (w *Workbench) Clean(ctx context.Context) error {
	return w.startBuild(ctx, build.KindClean, PostBuildNone)
}

// Run continues the current session, or builds and debugs the first
// executable project.
func (w *Workbench) Run(ctx context.Context) error {
	if w.session != nil {
		return w.session.Continue(ctx)
	}
	return w.startBuild(ctx, build.KindBuild, PostBuildDebug)
}

// RunWithoutDebugger builds and then starts the first executable project.
func (w *Workbench) RunWithoutDebugger(ctx context.Context) error {
	return w.startBuild(ctx, build.KindBuild, PostBuildRun)
}

// RunLastBuild starts the first executable project without building.
func (w *Workbench) RunLastBuild(ctx context.Context) error {
	if w.sol == nil {
		return ErrNoSolution
	}
	return w.execute(ctx, w.sol)
}

// Break suspends the debuggee.
func (w *Workbench) Break(ctx context.Context) error {
	if w.session == nil {
		return ErrNoSession
	}
	return w.session.BreakAll(ctx)
}

// Stop terminates the debuggee and resets the commands right away.
func (w *Workbench) Stop(ctx context.Context) error {
	s := w.session
	if s == nil {
		return ErrNoSession
	}
	err := s.StopAll(ctx)
	w.endSession(s)
	return err
}

// StepOver steps over the current statement.
func (w *Workbench) StepOver(ctx context.Context) error {
	if w.session == nil {
		return ErrNoSession
	}
	return w.session.StepOver(ctx)
}

// StepInto steps into the current statement.
func (w *Workbench) StepInto(ctx context.Context) error {
	if w.session == nil {
		return ErrNoSession
	}
	return w.session.StepInto(ctx)
}

// StepOut runs to the end of the current function.
func (w *Workbench) StepOut(ctx context.Context) error {
	if w.session == nil {
		return ErrNoSession
	}
	return w.session.StepOut(ctx)
}

func (w *Workbench) startBuild(ctx context.Context, kind build.Kind, action PostBuildAction) error {
	sol, builder := w.sol, w.builder
	if sol == nil {
		return ErrNoSolution
	}
	// busy until the previous completion has been handled here, so it can
	// never pick up this request's action
	if w.inFlight || builder.IsBusy() {
		observability.BuildRejectedTotal.WithLabelValues(kind.String()).Inc()
		return solution.ErrBusy
	}

	if kind == build.KindBuild {
		if err := w.saveAll(ctx, sol); err != nil {
			return err
		}
	}
	if w.env.Settings.Projects.ShowOutputWhenBuilding {
		w.panelRequested.Emit(PanelOutput)
	}

	gen := w.generation
	done := func(result *build.Result, err error) {
		w.env.Dispatcher.Post(func() { w.completed(ctx, gen, kind, action, result, err) })
	}
	var err error
	if kind == build.KindClean {
		err = builder.CleanAsync(ctx, sol, done)
	} else {
		err = builder.BuildAsync(ctx, sol, done)
	}
	if err != nil {
		return err
	}
	w.inFlight, w.pending = true, action
	return nil
}

// saveAll persists open files, then projects, then the solution.
func (w *Workbench) saveAll(ctx context.Context, sol *solution.Solution) error {
	for _, f := range w.env.Files.OpenedFiles() {
		if !f.HasUnsavedData() {
			continue
		}
		w.env.Reporter.Report("Saving %s", f.Path())
		if err := f.Save(ctx); err != nil {
			return &PersistenceError{Item: f.Path(), Err: err}
		}
	}
	for _, p := range sol.Projects() {
		if !p.HasUnsavedData() {
			continue
		}
		w.env.Reporter.Report("Saving %s", p.Path())
		if err := p.Save(ctx); err != nil {
			return &PersistenceError{Item: p.Path(), Err: err}
		}
	}
	if sol.Modified() {
		w.env.Reporter.Report("Saving %s", sol.Path())
		if err := sol.Save(ctx); err != nil {
			return &PersistenceError{Item: sol.Path(), Err: err}
		}
	}
	return nil
}

func (w *Workbench) onBuildStarted(s solution.Started) {
	w.errors.Clear()
	w.env.Reporter.Report("%s started", capitalize(s.Kind.String()))
	w.buildStarted.Emit(s)
}

// completed runs on the interactive goroutine. Completions of a solution
// that has since been unloaded are dropped.
func (w *Workbench) completed(ctx context.Context, gen uint64, kind build.Kind, action PostBuildAction, result *build.Result, err error) {
	if gen != w.generation {
		w.env.Logger.Debug("Ignoring {Kind} completion for an unloaded solution", kind)
		return
	}
	sol := w.sol
	w.inFlight, w.pending = false, PostBuildNone

	if err != nil {
		w.buildCompleted.Emit(Completion{Kind: kind, Err: err})
		w.fail(fmt.Errorf("%s could not run: %w", kind, err))
		return
	}

	if added := w.errors.Add(result.Errors()...); added > 0 && w.env.Settings.Projects.ShowErrorsWhenBuildFailed {
		w.panelRequested.Emit(PanelErrors)
	}
	w.env.Reporter.Report("%s %s: %d error(s), %d warning(s)", capitalize(kind.String()), outcome(result),
		result.Count(build.SeverityError), result.Count(build.SeverityWarning))
	w.buildCompleted.Emit(Completion{Kind: kind, Result: result})

	if !result.Success() {
		if kind == build.KindBuild {
			w.fail(fmt.Errorf("build failed with %d error(s)", result.Count(build.SeverityError)))
		}
		return
	}

	var actionErr error
	switch action {
	case PostBuildRun:
		actionErr = w.execute(ctx, sol)
	case PostBuildDebug:
		actionErr = w.debug(ctx, sol)
	}
	if actionErr != nil {
		w.fail(actionErr)
	}
}

func (w *Workbench) execute(ctx context.Context, sol *solution.Solution) error {
	p, ok := sol.FirstExecutableProject()
	if !ok {
		return ErrNoExecutableProject
	}
	info := startInfo(p)
	w.env.Reporter.Report("Running %s", info.Program)
	return w.env.Launcher.Launch(ctx, info)
}

// debug starts a session of the preferred debugger for the first executable project.
func (w *Workbench) debug(ctx context.Context, sol *solution.Solution) error {
	p, ok := sol.FirstExecutableProject()
	if !ok {
		return ErrNoExecutableProject
	}
	d, err := w.env.Debuggers.Preferred(p)
	if err != nil {
		return err
	}
	s, err := d.NewSession()
	if err != nil {
		return err
	}
	s.SetReporter(w.env.Reporter)

	w.session = s
	w.sessionSubs = []func(){
		s.OnPaused(func(debugger.PauseEvent) { w.env.Dispatcher.Post(func() { w.onPaused(s) }) }),
		s.OnResumed(func(*debugger.Session) { w.env.Dispatcher.Post(func() { w.onResumed(s) }) }),
		s.OnDisposed(func(*debugger.Session) { w.env.Dispatcher.Post(func() { w.endSession(s) }) }),
	}
	w.debugStarted.Emit(s)
	w.setCommands(resumed(0, false))

	if err := s.Start(ctx, startInfo(p)); err != nil {
		s.Dispose()
		w.endSession(s)
		return err
	}
	w.setCommands(resumed(0, s.CanBreak()))
	return nil
}

func (w *Workbench) onResumed(s *debugger.Session) {
	if w.session != s {
		return
	}
	w.setCommands(resumed(w.commands, s.CanBreak()))
}

func (w *Workbench) onPaused(s *debugger.Session) {
	if w.session != s {
		return
	}
	w.setCommands(paused(w.commands, s.CanStepOver(), s.CanStepInto(), s.CanStepOut()))
}

// endSession forgets s and restores the baseline commands. It is a no-op
// for a session that has already ended.
func (w *Workbench) endSession(s *debugger.Session) {
	if w.session != s {
		return
	}
	for _, unsubscribe := range w.sessionSubs {
		unsubscribe()
	}
	w.sessionSubs = nil
	w.session = nil
	w.debugStopped.Emit(s)
	w.setCommands(w.baseline())
}

func (w *Workbench) baseline() CommandSet {
	if w.sol == nil {
		return 0
	}
	return baseline(w.sol.HasDebuggableProjects(w.env.Debuggers.CanDebug))
}

func (w *Workbench) setCommands(s CommandSet) {
	if s == w.commands {
		return
	}
	w.env.Logger.Verbose("Commands {From} -> {To}", w.commands, s)
	w.commands = s
	w.commandsChanged.Emit(s)
}

func (w *Workbench) fail(err error) {
	w.env.Logger.Error("{Error}", err)
	w.env.Reporter.Report("%v", err)
	w.failed.Emit(err)
}

func startInfo(p *project.Project) debugger.StartInfo {
	return debugger.StartInfo{
		Program: p.OutputFile(),
		Dir:     p.OutputDirectory(),
	}
}

func outcome(r *build.Result) string {
	if r.Success() {
		return "succeeded"
	}
	return "failed"
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
