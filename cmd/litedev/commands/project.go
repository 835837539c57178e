package commands

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"

	"github.com/willibrandon/litedev/cmd/litedev/output"
	"github.com/willibrandon/litedev/project"
)

// editProject opens the project at path, applies edit and saves the result
// when edit changed anything.
func editProject(cmd *cobra.Command, console *output.Console, path string, edit func(p *project.Project) error) error {
	ctx := cmd.Context()
	p, err := openProject(ctx, cmd, console, path)
	if err != nil {
		return err
	}
	defer p.Close()

	if err := edit(p); err != nil {
		return err
	}
	if !p.HasUnsavedData() {
		return nil
	}
	if err := p.Save(ctx); err != nil {
		return err
	}
	console.Success("Saved %s", p.Path())
	return nil
}

func openProject(ctx context.Context, cmd *cobra.Command, console *output.Console, path string) (*project.Project, error) {
	settings, logger, err := loadSettings(cmd, console)
	if err != nil {
		return nil, err
	}
	return project.Open(ctx, path,
		project.WithLogger(logger),
		project.WithStrictConditions(settings.Projects.StrictConditions))
}

// inProject resolves path against the project directory.
func inProject(p *project.Project, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(p.Dir(), path)
}

// expandPatterns returns the files under dir matching the doublestar patterns,
// in pattern order and without duplicates.
func expandPatterns(dir string, patterns []string) ([]string, error) {
	fsys := os.DirFS(dir)
	seen := make(map[string]bool)
	var files []string

	for _, pattern := range patterns {
		pattern = filepath.ToSlash(pattern)
		matched := false
		err := doublestar.GlobWalk(fsys, pattern, func(path string, d fs.DirEntry) error {
			if d.IsDir() {
				return nil
			}
			matched = true
			full := filepath.Join(dir, filepath.FromSlash(path))
			if !seen[full] {
				seen[full] = true
				files = append(files, full)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("glob %s: %w", pattern, err)
		}
		if !matched {
			return nil, fmt.Errorf("no files match %s", pattern)
		}
	}
	return files, nil
}

// NewProjectCommand creates the project command
func NewProjectCommand(console *output.Console) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Create projects and show their settings",
	}
	cmd.AddCommand(newProjectNewCommand(console))
	cmd.AddCommand(newProjectShowCommand(console))
	return cmd
}

func newProjectNewCommand(console *output.Console) *cobra.Command {
	var outputType string

	cmd := &cobra.Command{
		Use:   "new PROJECT",
		Short: "Create a project file",
		Long: `Create a project file with Debug and Release configurations. The language
is taken from the extension (.csproj, .vbproj or .fsproj).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appType, ok := project.ParseApplicationType(outputType)
			if !ok {
				return fmt.Errorf("unknown output type %q (expected Exe, WinExe or Library)", outputType)
			}
			if _, err := os.Stat(args[0]); err == nil {
				return fmt.Errorf("%s already exists", args[0])
			}

			settings, logger, err := loadSettings(cmd, console)
			if err != nil {
				return err
			}
			p, err := project.New(args[0],
				project.WithLogger(logger),
				project.WithStrictConditions(settings.Projects.StrictConditions))
			if err != nil {
				return err
			}
			defer p.Close()
			p.SetApplicationType(appType)
			if err := os.MkdirAll(filepath.Dir(p.Path()), 0o755); err != nil {
				return err
			}
			if err := p.Save(cmd.Context()); err != nil {
				return err
			}
			console.Success("Created %s (%s)", p.Path(), p.Language().Name)
			return nil
		},
	}

	cmd.Flags().StringVar(&outputType, "type", "Library", "Output type (Exe, WinExe, Library)")
	return cmd
}

func newProjectShowCommand(console *output.Console) *cobra.Command {
	return &cobra.Command{
		Use:   "show PROJECT",
		Short: "Show the name, type and output of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openProject(cmd.Context(), cmd, console, args[0])
			if err != nil {
				return err
			}
			defer p.Close()

			console.Printf("Name:          %s\n", p.Name())
			console.Printf("Language:      %s\n", p.Language().Name)
			console.Printf("Output type:   %s\n", p.ApplicationType())
			console.Printf("Configuration: %s|%s\n", p.Configuration(), p.Platform())
			console.Printf("Output:        %s\n", p.OutputFile())
			console.Printf("Files:         %d\n", p.Files().Len())
			console.Printf("References:    %d\n", p.References().Len())
			return nil
		},
	}
}

// NewFilesCommand creates the files command
func NewFilesCommand(console *output.Console) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "files",
		Short: "Manage the files a project compiles and includes",
		Long: `Manage the files of a project. Paths and patterns are relative to the
project directory; patterns support ** to match across directories.`,
	}
	cmd.AddCommand(newFilesListCommand(console))
	cmd.AddCommand(newFilesAddCommand(console))
	cmd.AddCommand(newFilesRemoveCommand(console))
	cmd.AddCommand(newFilesMoveCommand(console))
	return cmd
}

func newFilesListCommand(console *output.Console) *cobra.Command {
	return &cobra.Command{
		Use:   "list PROJECT",
		Short: "List the files of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openProject(cmd.Context(), cmd, console, args[0])
			if err != nil {
				return err
			}
			defer p.Close()

			for _, f := range p.Files().Items() {
				rel, err := filepath.Rel(p.Dir(), f.Path())
				if err != nil {
					rel = f.Path()
				}
				if deps := f.Dependencies.Items(); len(deps) > 0 {
					console.Printf("%s (depends on %s)\n", rel, strings.Join(deps, ", "))
					continue
				}
				console.Println(rel)
			}
			return nil
		},
	}
}

func newFilesAddCommand(console *output.Console) *cobra.Command {
	return &cobra.Command{
		Use:   "add PROJECT PATTERN...",
		Short: "Add files matching the patterns to a project",
		Example: `  litedev files add App/App.csproj "**/*.cs"
  litedev files add App/App.csproj Resources/*.resx`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return editProject(cmd, console, args[0], func(p *project.Project) error {
				files, err := expandPatterns(p.Dir(), args[1:])
				if err != nil {
					return err
				}
				added := 0
				for _, f := range files {
					if strings.EqualFold(f, p.Path()) {
						continue
					}
					if _, ok := p.FindFile(f); ok {
						continue
					}
					p.AddFile(f)
					added++
				}
				console.Info("Added %d file(s) to %s", added, p.Name())
				return nil
			})
		},
	}
}

func newFilesRemoveCommand(console *output.Console) *cobra.Command {
	return &cobra.Command{
		Use:     "remove PROJECT PATH...",
		Aliases: []string{"rm"},
		Short:   "Remove files from a project",
		Long:    `Remove files from a project. The files themselves are left on disk.`,
		Args:    cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return editProject(cmd, console, args[0], func(p *project.Project) error {
				for _, path := range args[1:] {
					if !p.RemoveFile(inProject(p, path)) {
						return fmt.Errorf("%s is not part of %s", path, p.Name())
					}
				}
				console.Info("Removed %d file(s) from %s", len(args)-1, p.Name())
				return nil
			})
		},
	}
}

func newFilesMoveCommand(console *output.Console) *cobra.Command {
	return &cobra.Command{
		Use:     "move PROJECT OLD NEW",
		Aliases: []string{"mv"},
		Short:   "Rename a file tracked by a project",
		Long: `Rename a file tracked by a project, keeping its item metadata such as
DependentUpon. The file on disk is renamed too when it exists.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return editProject(cmd, console, args[0], func(p *project.Project) error {
				oldPath, newPath := inProject(p, args[1]), inProject(p, args[2])
				entry, ok := p.FindFile(oldPath)
				if !ok {
					return fmt.Errorf("%s is not part of %s", args[1], p.Name())
				}
				if err := entry.SetPath(newPath); err != nil {
					return err
				}
				if _, err := os.Stat(oldPath); err == nil {
					if err := os.MkdirAll(filepath.Dir(newPath), 0o755); err != nil {
						return err
					}
					return os.Rename(oldPath, newPath)
				}
				return nil
			})
		},
	}
}

// NewRefsCommand creates the refs command
func NewRefsCommand(console *output.Console) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "refs",
		Short: "Manage the assembly references of a project",
	}
	cmd.AddCommand(newRefsListCommand(console))
	cmd.AddCommand(newRefsAddCommand(console))
	cmd.AddCommand(newRefsRemoveCommand(console))
	return cmd
}

func newRefsListCommand(console *output.Console) *cobra.Command {
	return &cobra.Command{
		Use:   "list PROJECT",
		Short: "List the assembly references of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openProject(cmd.Context(), cmd, console, args[0])
			if err != nil {
				return err
			}
			defer p.Close()

			for _, r := range p.References().Items() {
				switch {
				case r.HintPath != "":
					console.Printf("%s (%s)\n", r.AssemblyName, r.HintPath)
				default:
					console.Println(r.AssemblyName)
				}
			}
			return nil
		},
	}
}

func newRefsAddCommand(console *output.Console) *cobra.Command {
	var hintPath string
	var specificVersion bool

	cmd := &cobra.Command{
		Use:   "add PROJECT ASSEMBLY",
		Short: "Reference an assembly",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return editProject(cmd, console, args[0], func(p *project.Project) error {
				return p.AddReference(&project.AssemblyReference{
					AssemblyName:    args[1],
					HintPath:        hintPath,
					SpecificVersion: specificVersion,
				})
			})
		},
	}

	cmd.Flags().StringVar(&hintPath, "hint-path", "", "Path of the assembly file, relative to the project")
	cmd.Flags().BoolVar(&specificVersion, "specific-version", false, "Require the exact referenced version")
	return cmd
}

func newRefsRemoveCommand(console *output.Console) *cobra.Command {
	return &cobra.Command{
		Use:     "remove PROJECT ASSEMBLY",
		Aliases: []string{"rm"},
		Short:   "Remove an assembly reference",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return editProject(cmd, console, args[0], func(p *project.Project) error {
				if !p.RemoveReference(args[1]) {
					return fmt.Errorf("%s does not reference %s", p.Name(), args[1])
				}
				return nil
			})
		},
	}
}

// NewPropsCommand creates the props command
func NewPropsCommand(console *output.Console) *cobra.Command {
	var configuration, platform string

	cmd := &cobra.Command{
		Use:   "props",
		Short: "Read and write project properties",
		Long: `Read and write MSBuild properties. Without --configuration the unconditioned
property group is used; with it, the group for that configuration and platform.`,
	}
	cmd.PersistentFlags().StringVarP(&configuration, "configuration", "c", "", "Configuration, e.g. Debug")
	cmd.PersistentFlags().StringVarP(&platform, "platform", "p", "AnyCPU", "Platform used with --configuration")

	scope := func() (string, string) {
		if configuration == "" {
			return "", ""
		}
		return configuration, platform
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get PROJECT NAME",
		Short: "Print a property value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openProject(cmd.Context(), cmd, console, args[0])
			if err != nil {
				return err
			}
			defer p.Close()
			config, plat := scope()
			console.Println(p.ConfigProperty(config, plat, args[1]))
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "set PROJECT NAME VALUE",
		Short: "Set a property value",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return editProject(cmd, console, args[0], func(p *project.Project) error {
				config, plat := scope()
				p.SetConfigProperty(config, plat, args[1], args[2])
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "unset PROJECT NAME",
		Short: "Remove a property",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return editProject(cmd, console, args[0], func(p *project.Project) error {
				config, plat := scope()
				if !p.RemoveConfigProperty(config, plat, args[1]) {
					return fmt.Errorf("%s has no property %s", p.Name(), args[1])
				}
				return nil
			})
		},
	})
	return cmd
}
