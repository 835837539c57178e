package workbench

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/willibrandon/litedev/debugger"
)

// ProcessLauncher starts programs as detached child processes.
type ProcessLauncher struct{}

// Launch implements Launcher. It returns once the process has started.
func (ProcessLauncher) Launch(_ context.Context, info debugger.StartInfo) error {
	// not bound to ctx: the program outlives the command that started it
	cmd := ProcessCommand(info)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", info.Program, err)
	}
	go func() { _ = cmd.Wait() }()
	return nil
}

// ProcessCommand prepares the process for info without starting it. Managed
// assemblies (.dll) are started through the dotnet host.
func ProcessCommand(info debugger.StartInfo) *exec.Cmd {
	name, args := info.Program, info.Args
	if strings.EqualFold(filepath.Ext(name), ".dll") {
		name, args = "dotnet", append([]string{info.Program}, info.Args...)
	}

	cmd := exec.Command(name, args...)
	cmd.Dir = info.Dir
	if len(info.Env) > 0 {
		cmd.Env = append(cmd.Environ(), info.Env...)
	}
	return cmd
}
