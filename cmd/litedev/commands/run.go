package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"github.com/spf13/cobra"

	"github.com/willibrandon/litedev/cmd/litedev/output"
	"github.com/willibrandon/litedev/debugger"
	"github.com/willibrandon/litedev/workbench"
)

// NewRunCommand creates the run command
func NewRunCommand(console *output.Console) *cobra.Command {
	var noBuild bool

	cmd := &cobra.Command{
		Use:   "run [SOLUTION]",
		Short: "Build a solution and run its first executable project",
		Long: `Build the solution and, when the build succeeds, run the first executable
project without a debugger. The program's console is attached to this terminal
and litedev exits when it does.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd, console, firstArg(args), noBuild)
		},
	}

	cmd.Flags().BoolVar(&noBuild, "no-build", false, "Run the output of the last build")
	return cmd
}

func runRun(cmd *cobra.Command, console *output.Console, path string, noBuild bool) error {
	ctx := cmd.Context()
	launcher := newForegroundLauncher(cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
	h, err := newHost(cmd, console, withLauncher(launcher))
	if err != nil {
		return err
	}
	defer h.close()

	if err := h.load(ctx, path); err != nil {
		return err
	}

	if noBuild {
		if err := h.do(ctx, h.wb.RunLastBuild); err != nil {
			return err
		}
	} else {
		c, err := h.build(ctx, h.wb.RunWithoutDebugger)
		if err != nil {
			return err
		}
		if err := h.summarize(c); err != nil {
			return err
		}
		if err := h.actionFailure(); err != nil {
			return err
		}
	}
	return launcher.wait(ctx)
}

// foregroundLauncher runs the program attached to the terminal so that the
// command can wait for it.
type foregroundLauncher struct {
	stdin          io.Reader
	stdout, stderr io.Writer

	mu     sync.Mutex
	cmd    *exec.Cmd
	exited chan error
}

func newForegroundLauncher(stdin io.Reader, stdout, stderr io.Writer) *foregroundLauncher {
	return &foregroundLauncher{stdin: stdin, stdout: stdout, stderr: stderr, exited: make(chan error, 1)}
}

// Launch implements workbench.Launcher.
func (l *foregroundLauncher) Launch(_ context.Context, info debugger.StartInfo) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cmd != nil {
		return fmt.Errorf("%s is already running", l.cmd.Path)
	}

	cmd := workbench.ProcessCommand(info)
	cmd.Stdin, cmd.Stdout, cmd.Stderr = l.stdin, l.stdout, l.stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", info.Program, err)
	}
	l.cmd = cmd
	go func() { l.exited <- cmd.Wait() }()
	return nil
}

// wait blocks until the launched program exits. Cancelling ctx kills it.
func (l *foregroundLauncher) wait(ctx context.Context) error {
	l.mu.Lock()
	cmd := l.cmd
	l.mu.Unlock()
	if cmd == nil {
		return errors.New("no program was started")
	}

	var err error
	select {
	case err = <-l.exited:
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-l.exited
		return ctx.Err()
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return fmt.Errorf("%s exited with code %d", cmd.Path, exitErr.ExitCode())
	}
	return err
}
