package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/willibrandon/litedev/cmd/litedev/output"
)

var rootCmd = &cobra.Command{
	Use:   "litedev",
	Short: "Build, run and debug .NET solutions from the terminal",
	Long: `litedev loads Visual Studio solutions, builds and cleans them with an
external build tool, runs the first executable project and debugs it over
the Debug Adapter Protocol. It also edits project files in place.

Settings are read from litedev.yaml, LITEDEV_* environment variables and flags.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	Run: func(cmd *cobra.Command, args []string) {
		// Show help when no command is provided
		_ = cmd.Help()
	},
}

// Console is the global console for CLI commands
var Console *output.Console

// Execute runs the root command
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	Console = output.DefaultConsole()

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Settings file to use (default: litedev.yaml in the working directory)")
	flags.String("verbosity", "info", "Log level (verbose, debug, info, warn, error)")
	flags.String("tool", "dotnet", "Build tool to run")
	flags.Int("max-parallel", 1, "Projects built at the same time when the tool builds one project per call")
	flags.String("adapter", "netcoredbg", "Debug adapter command, or tcp://host:port")
	flags.String("tracing", "none", "Trace exporter (none, stdout, otlp)")
}

// SetupVersion configures version information after variables are set
func SetupVersion() {
	rootCmd.SetVersionTemplate(GetFullVersion() + "\n")
	rootCmd.Version = GetVersion()
}

// AddCommand adds a command to the root command
func AddCommand(cmd *cobra.Command) {
	rootCmd.AddCommand(cmd)
}

// Root returns the root command.
func Root() *cobra.Command {
	return rootCmd
}
