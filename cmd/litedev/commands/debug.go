package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/willibrandon/litedev/cmd/litedev/output"
	"github.com/willibrandon/litedev/debugger"
	"github.com/willibrandon/litedev/workbench"
)

// debugCommand is one command of the interactive debug prompt.
type debugCommand struct {
	names []string
	cmd   workbench.Command
	help  string
}

var debugCommands = []debugCommand{
	{[]string{"continue", "c"}, workbench.CmdRun, "resume the program"},
	{[]string{"next", "n"}, workbench.CmdStepOver, "step over the current statement"},
	{[]string{"step", "s"}, workbench.CmdStepInto, "step into the current statement"},
	{[]string{"out", "o"}, workbench.CmdStepOut, "run to the end of the current function"},
	{[]string{"pause", "p"}, workbench.CmdBreak, "suspend the program"},
	{[]string{"stop", "q"}, workbench.CmdStop, "terminate the program and quit"},
}

func findDebugCommand(name string) (debugCommand, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, c := range debugCommands {
		for _, n := range c.names {
			if n == name {
				return c, true
			}
		}
	}
	return debugCommand{}, false
}

// NewDebugCommand creates the debug command
func NewDebugCommand(console *output.Console) *cobra.Command {
	return &cobra.Command{
		Use:   "debug [SOLUTION]",
		Short: "Build a solution and debug its first executable project",
		Long: `Build the solution and, when the build succeeds, start the first executable
project under the configured debug adapter. Control the program from the prompt:

  continue (c)  resume the program
  next (n)      step over the current statement
  step (s)      step into the current statement
  out (o)       run to the end of the current function
  pause (p)     suspend the program
  stop (q)      terminate the program and quit`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDebug(cmd, console, firstArg(args))
		},
	}
}

func runDebug(cmd *cobra.Command, console *output.Console, path string) error {
	ctx := cmd.Context()
	h, err := newHost(cmd, console)
	if err != nil {
		return err
	}
	defer h.close()

	if err := h.load(ctx, path); err != nil {
		return err
	}

	stopped := make(chan int, 1)
	unsubscribeStarted := h.wb.OnDebugStarted(func(s *debugger.Session) {
		console.Info("Debugging with %s", s.Name())
		s.OnPaused(func(e debugger.PauseEvent) { console.Location(e.Range.String(), e.Reason) })
	})
	defer unsubscribeStarted()
	unsubscribeStopped := h.wb.OnDebugStopped(func(s *debugger.Session) {
		select {
		case stopped <- s.ExitCode():
		default:
		}
	})
	defer unsubscribeStopped()

	c, err := h.build(ctx, h.wb.Run)
	if err != nil {
		return err
	}
	if err := h.summarize(c); err != nil {
		return err
	}
	if err := h.actionFailure(); err != nil {
		return err
	}
	return h.prompt(ctx, cmd.InOrStdin(), stopped)
}

// prompt reads debugger commands until the session ends. Closing the input
// stops the program.
func (h *host) prompt(ctx context.Context, in io.Reader, stopped <-chan int) error {
	lines := make(chan string)
	quit := make(chan struct{})
	defer close(quit)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-quit:
				return
			}
		}
	}()

	for {
		h.console.Print("(litedev) ")
		select {
		case code := <-stopped:
			h.console.Println()
			h.console.Info("Program exited with code %d", code)
			return nil

		case <-ctx.Done():
			h.stopSession()
			return ctx.Err()

		case line, ok := <-lines:
			if !ok {
				h.stopSession()
				return nil
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			if err := h.debugCommand(ctx, line); err != nil {
				h.console.Error("%v", err)
			}
		}
	}
}

func (h *host) debugCommand(ctx context.Context, line string) error {
	dc, ok := findDebugCommand(line)
	if !ok {
		var names []string
		for _, c := range debugCommands {
			names = append(names, fmt.Sprintf("%s (%s)", c.names[0], c.names[1]))
		}
		return fmt.Errorf("unknown command %q, expected one of: %s", strings.TrimSpace(line), strings.Join(names, ", "))
	}

	return h.do(ctx, func(ctx context.Context) error {
		if !h.wb.Enabled(dc.cmd) {
			return fmt.Errorf("%s is not available now", dc.names[0])
		}
		switch dc.cmd {
		case workbench.CmdRun:
			return h.wb.Run(ctx)
		case workbench.CmdStepOver:
			return h.wb.StepOver(ctx)
		case workbench.CmdStepInto:
			return h.wb.StepInto(ctx)
		case workbench.CmdStepOut:
			return h.wb.StepOut(ctx)
		case workbench.CmdBreak:
			return h.wb.Break(ctx)
		default:
			return h.wb.Stop(ctx)
		}
	})
}

func (h *host) stopSession() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := h.do(ctx, h.wb.Stop)
	if err != nil && !errors.Is(err, workbench.ErrNoSession) {
		h.logger.Warn("Failed to stop debugger session: {Error}", err)
	}
}
