package workbench

import (
	"context"

	"github.com/willibrandon/litedev/build"
	"github.com/willibrandon/litedev/config"
	"github.com/willibrandon/litedev/debugger"
	"github.com/willibrandon/litedev/observability"
	"github.com/willibrandon/litedev/progress"
)

// Dispatcher runs functions on the interactive goroutine.
type Dispatcher interface {
	Post(fn func())
}

// File is an open document that can be persisted.
type File interface {
	Path() string
	HasUnsavedData() bool
	Save(ctx context.Context) error
}

// FileService lists the documents open in the host.
type FileService interface {
	OpenedFiles() []File
}

// Launcher starts a built program outside the debugger.
type Launcher interface {
	Launch(ctx context.Context, info debugger.StartInfo) error
}

// Context carries the collaborators a Workbench works with. It is created
// once per running host and passed to New.
type Context struct {
	Logger     observability.Logger
	Settings   *config.Settings
	Debuggers  *debugger.Registry
	Reporter   progress.Reporter
	Dispatcher Dispatcher
	Files      FileService
	Launcher   Launcher

	// Runner executes builds; one Builder per loaded solution shares it
	Runner build.Runner
}

type noFiles struct{}

func (noFiles) OpenedFiles() []File { return nil }

// withDefaults fills unset optional collaborators. Dispatcher and Runner are required.
func (c Context) withDefaults() Context {
	if c.Logger == nil {
		c.Logger = observability.NewNullLogger()
	}
	if c.Settings == nil {
		c.Settings = &config.Settings{Projects: config.ProjectSettings{
			ShowOutputWhenBuilding:    true,
			ShowErrorsWhenBuildFailed: true,
		}}
	}
	if c.Debuggers == nil {
		c.Debuggers = debugger.NewRegistry()
	}
	if c.Reporter == nil {
		c.Reporter = progress.Discard
	}
	if c.Files == nil {
		c.Files = noFiles{}
	}
	if c.Launcher == nil {
		c.Launcher = ProcessLauncher{}
	}
	return c
}
