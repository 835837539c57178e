package commands

import (
	"github.com/spf13/cobra"

	"github.com/willibrandon/litedev/cmd/litedev/output"
)

// Register adds every litedev command through add.
func Register(add func(*cobra.Command), console *output.Console) {
	add(NewVersionCommand(console))

	add(NewBuildCommand(console))
	add(NewCleanCommand(console))
	add(NewRunCommand(console))
	add(NewDebugCommand(console))
	add(NewWatchCommand(console))

	add(NewProjectCommand(console))
	add(NewFilesCommand(console))
	add(NewRefsCommand(console))
	add(NewPropsCommand(console))
}
