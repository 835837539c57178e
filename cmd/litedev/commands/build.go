package commands

import (
	"github.com/spf13/cobra"

	"github.com/willibrandon/litedev/cmd/litedev/output"
)

// NewBuildCommand creates the build command
func NewBuildCommand(console *output.Console) *cobra.Command {
	return &cobra.Command{
		Use:   "build [SOLUTION]",
		Short: "Save and build a solution",
		Long: `Save modified project files and build the solution with the configured build tool.

When SOLUTION is omitted the only .sln file in the working directory is used.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd, console, firstArg(args), false)
		},
	}
}

// NewCleanCommand creates the clean command
func NewCleanCommand(console *output.Console) *cobra.Command {
	return &cobra.Command{
		Use:   "clean [SOLUTION]",
		Short: "Remove the build outputs of a solution",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd, console, firstArg(args), true)
		},
	}
}

func runBuild(cmd *cobra.Command, console *output.Console, path string, clean bool) error {
	ctx := cmd.Context()
	h, err := newHost(cmd, console)
	if err != nil {
		return err
	}
	defer h.close()

	if err := h.load(ctx, path); err != nil {
		return err
	}
	start := h.wb.Build
	if clean {
		start = h.wb.Clean
	}
	c, err := h.build(ctx, start)
	if err != nil {
		return err
	}
	return h.summarize(c)
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
