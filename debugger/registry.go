package debugger

import (
	"fmt"
	"slices"
	"sync"

	"github.com/willibrandon/litedev/observability"
	"github.com/willibrandon/litedev/project"
)

// Debugger creates sessions for the projects it supports.
type Debugger interface {
	Name() string
	Supports(p *project.Project) bool
	NewSession() (*Session, error)
}

// BackendFactory creates a fresh backend for one session.
type BackendFactory func() (Backend, error)

// BackendDebugger is a Debugger for executable projects of the given languages.
type BackendDebugger struct {
	name      string
	languages []string
	factory   BackendFactory
	logger    observability.Logger
}

// NewBackendDebugger creates a debugger named name. An empty languages list
// accepts every language.
func NewBackendDebugger(name string, languages []string, factory BackendFactory, logger observability.Logger) *BackendDebugger {
	if logger == nil {
		logger = observability.NewNullLogger()
	}
	return &BackendDebugger{name: name, languages: languages, factory: factory, logger: logger}
}

// Name returns the debugger name.
func (d *BackendDebugger) Name() string { return d.name }

// Supports reports whether p produces an executable in one of the debugger's languages.
func (d *BackendDebugger) Supports(p *project.Project) bool {
	if !p.ApplicationType().IsExecutable() {
		return false
	}
	return len(d.languages) == 0 || slices.Contains(d.languages, p.Language().Name)
}

// NewSession creates an inactive session over a new backend.
func (d *BackendDebugger) NewSession() (*Session, error) {
	backend, err := d.factory()
	if err != nil {
		return nil, fmt.Errorf("failed to create %s backend: %w", d.name, err)
	}
	return NewSession(d.name, backend, d.logger), nil
}

// Registry holds the available debuggers in preference order.
type Registry struct {
	mu        sync.RWMutex
	debuggers []Debugger
}

// NewRegistry creates a registry preferring debuggers in the order given.
func NewRegistry(debuggers ...Debugger) *Registry {
	return &Registry{debuggers: debuggers}
}

// Register appends d with the lowest preference.
func (r *Registry) Register(d Debugger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.debuggers = append(r.debuggers, d)
}

// Debuggers returns the registered debuggers in preference order.
func (r *Registry) Debuggers() []Debugger {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.debuggers)
}

// Preferred returns the first debugger supporting p.
func (r *Registry) Preferred(p *project.Project) (Debugger, error) {
	for _, d := range r.Debuggers() {
		if d.Supports(p) {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%w for project %s", ErrNoDebugger, p.Name())
}

// CanDebug reports whether any debugger supports p.
func (r *Registry) CanDebug(p *project.Project) bool {
	_, err := r.Preferred(p)
	return err == nil
}
