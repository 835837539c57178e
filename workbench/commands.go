package workbench

import "strings"

// Command is a user-invokable workbench operation.
type Command uint16

const (
	CmdBuild Command = 1 << iota
	CmdClean
	CmdRun
	CmdRunWithoutDebugger
	CmdRunLastBuild
	CmdBreak
	CmdStop
	CmdStepOver
	CmdStepInto
	CmdStepOut
)

var commandNames = []struct {
	cmd  Command
	name string
}{
	{CmdBuild, "build"},
	{CmdClean, "clean"},
	{CmdRun, "run"},
	{CmdRunWithoutDebugger, "run-without-debugger"},
	{CmdRunLastBuild, "run-last-build"},
	{CmdBreak, "break"},
	{CmdStop, "stop"},
	{CmdStepOver, "step-over"},
	{CmdStepInto, "step-into"},
	{CmdStepOut, "step-out"},
}

// CommandSet is the set of currently enabled commands.
type CommandSet uint16

// Has reports whether c is enabled.
func (s CommandSet) Has(c Command) bool { return s&CommandSet(c) != 0 }

// With returns s with c enabled or disabled.
func (s CommandSet) With(c Command, enabled bool) CommandSet {
	if enabled {
		return s | CommandSet(c)
	}
	return s &^ CommandSet(c)
}

func (s CommandSet) String() string {
	var names []string
	for _, n := range commandNames {
		if s.Has(n.cmd) {
			names = append(names, n.name)
		}
	}
	return "[" + strings.Join(names, " ") + "]"
}

func (c Command) String() string {
	for _, n := range commandNames {
		if n.cmd == c {
			return n.name
		}
	}
	return "unknown"
}

// runCommands are disabled for the whole debug session.
const runCommands = CommandSet(CmdBuild | CmdClean | CmdRunWithoutDebugger | CmdRunLastBuild)

// baseline is the set with a solution loaded and no session: build and run
// commands on, debugger commands off, Run only when something can be debugged.
func baseline(debuggable bool) CommandSet {
	return runCommands.With(CmdRun, debuggable)
}

// resumed applies the running-debuggee rules to s.
func resumed(s CommandSet, canBreak bool) CommandSet {
	s = s.With(CmdRun, false).
		With(CmdStepOver, false).
		With(CmdStepInto, false).
		With(CmdStepOut, false).
		With(CmdStop, true)
	return s.With(CmdBreak, canBreak)
}

// paused applies the suspended-debuggee rules to s. Run continues the session.
func paused(s CommandSet, stepOver, stepInto, stepOut bool) CommandSet {
	return s.With(CmdRun, true).
		With(CmdStepOver, stepOver).
		With(CmdStepInto, stepInto).
		With(CmdStepOut, stepOut).
		With(CmdBreak, false)
}
