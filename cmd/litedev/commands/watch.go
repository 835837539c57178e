package commands

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/willibrandon/litedev/cmd/litedev/output"
	"github.com/willibrandon/litedev/project"
	"github.com/willibrandon/litedev/solution"
	"github.com/willibrandon/litedev/workbench"
)

// NewWatchCommand creates the watch command
func NewWatchCommand(console *output.Console) *cobra.Command {
	return &cobra.Command{
		Use:   "watch [SOLUTION]",
		Short: "Rebuild a solution whenever its files change",
		Long: `Build the solution, then rebuild it each time a project file or a source
file it compiles changes on disk. Project files changed by another program are
reloaded first. Press Ctrl+C to stop.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, console, firstArg(args))
		},
	}
}

func runWatch(cmd *cobra.Command, console *output.Console, path string) error {
	ctx := cmd.Context()
	h, err := newHost(cmd, console)
	if err != nil {
		return err
	}
	defer h.close()

	if err := h.load(ctx, path); err != nil {
		return err
	}

	fsw, err := project.NewWatcher(h.logger, 0)
	if err != nil {
		return err
	}
	defer func() { _ = fsw.Close() }()

	w := &watcher{ctx: ctx, host: h, fsw: fsw}
	unsubscribe := h.wb.OnBuildCompleted(w.completed)
	defer unsubscribe()

	err = h.do(ctx, func(ctx context.Context) error {
		w.track(h.wb.Solution())
		return h.wb.Build(ctx)
	})
	if err != nil {
		return err
	}

	go func() {
		_ = fsw.Run(ctx, func(path string) {
			h.loop.Post(func() { w.changed(path) })
		})
	}()

	<-ctx.Done()
	return nil
}

// watcher keeps a project.Watcher in step with the loaded solution. Its
// methods run on the interactive loop.
type watcher struct {
	ctx  context.Context
	host *host
	fsw  *project.Watcher

	paths   []string
	pending bool
}

func (w *watcher) track(sol *solution.Solution) {
	for _, path := range w.paths {
		_ = w.fsw.Remove(path)
	}
	w.paths = w.paths[:0]
	if sol == nil {
		return
	}

	w.add(sol.Path())
	for _, p := range sol.Projects() {
		w.add(p.Path())
		for _, f := range p.Files().Items() {
			w.add(f.Path())
		}
	}
	w.host.logger.Debug("Watching {FileCount} files of {Solution}", len(w.paths), sol.Name())
}

func (w *watcher) add(path string) {
	if err := w.fsw.Add(path); err != nil {
		w.host.logger.Warn("Cannot watch {Path}: {Error}", path, err)
		return
	}
	w.paths = append(w.paths, path)
}

func (w *watcher) changed(path string) {
	sol := w.host.wb.Solution()
	if sol == nil {
		return
	}
	w.host.console.Info("%s changed", filepath.Base(path))

	if w.needsReload(sol, path) {
		if err := w.host.wb.LoadSolution(w.ctx, sol.Path()); err != nil {
			w.host.console.Error("%v", err)
			w.track(nil)
			return
		}
		w.track(w.host.wb.Solution())
	}
	w.rebuild()
}

func (w *watcher) needsReload(sol *solution.Solution, path string) bool {
	if solution.IsSolutionFile(path) {
		return true
	}
	for _, p := range sol.Projects() {
		if changed, err := p.ChangedOnDisk(); err == nil && changed {
			return true
		}
	}
	return false
}

// rebuild starts a build, or queues one behind the build in flight.
func (w *watcher) rebuild() {
	err := w.host.wb.Build(w.ctx)
	switch {
	case errors.Is(err, solution.ErrBusy):
		w.pending = true
	case err != nil:
		w.host.console.Error("%v", err)
	}
}

func (w *watcher) completed(c workbench.Completion) {
	if c.Err != nil {
		w.host.console.Error("%v", c.Err)
	} else if err := w.host.summarize(c); err != nil {
		w.host.console.Error("%v", err)
	}
	if w.pending {
		w.pending = false
		w.rebuild()
	}
}
