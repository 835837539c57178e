package project

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/willibrandon/litedev/collections"
)

// PathChange is raised when a FileEntry is moved or renamed.
type PathChange struct {
	Entry   *FileEntry
	OldPath string
	NewPath string
}

// FileEntry is a file tracked by a project.
type FileEntry struct {
	path string

	// Dependencies holds the files this one is nested under (DependentUpon values),
	// relative to the entry's directory.
	Dependencies *collections.ObservableSet[string]

	project     *Project
	pathChanged collections.Event[PathChange]
}

// NewFileEntry creates an entry for the file at path. Relative paths are made absolute.
func NewFileEntry(path string) *FileEntry {
	return &FileEntry{
		path:         absPath(path),
		Dependencies: collections.NewObservableSet[string](),
	}
}

// Path returns the absolute path of the file.
func (f *FileEntry) Path() string {
	return f.path
}

// ErrPathInUse is returned by SetPath when the project already tracks another
// entry at the new path.
var ErrPathInUse = errors.New("path is already tracked by the project")

// SetPath moves the entry to path and notifies listeners if it changed. Paths
// compare case-insensitively, so a case-only rename of the same entry is allowed.
func (f *FileEntry) SetPath(path string) error {
	path = absPath(path)
	if path == f.path {
		return nil
	}
	if f.project != nil {
		if other, ok := f.project.FindFile(path); ok && other != f {
			return fmt.Errorf("%w: %s", ErrPathInUse, path)
		}
	}
	old := f.path
	f.path = path
	f.pathChanged.Emit(PathChange{Entry: f, OldPath: old, NewPath: path})
	return nil
}

// OnPathChanged registers h for path changes.
func (f *FileEntry) OnPathChanged(h func(PathChange)) (unsubscribe func()) {
	return f.pathChanged.Subscribe(h)
}

// Project returns the project tracking this entry, or nil.
func (f *FileEntry) Project() *Project {
	return f.project
}

// Name returns the file name without directory.
func (f *FileEntry) Name() string {
	return filepath.Base(f.path)
}

func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}
