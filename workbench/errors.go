package workbench

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSolution is returned by commands that need a loaded solution.
	ErrNoSolution = errors.New("no solution is loaded")

	// ErrNoExecutableProject is returned when running a solution without an executable project.
	ErrNoExecutableProject = errors.New("solution has no executable project")

	// ErrNoSession is returned by debugger commands when nothing is being debugged.
	ErrNoSession = errors.New("no debugger session")
)

// PersistenceError reports an item that could not be saved before a build.
// The build is not started and the item keeps its unsaved data.
type PersistenceError struct {
	Item string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to save %s: %v", e.Item, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
