// Package build runs an external MSBuild-compatible tool over a solution or its
// projects and turns the tool output into a Result.
package build

import (
	"fmt"
	"slices"
	"time"
)

// Severity of a reported problem.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
	SeverityMessage
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityMessage:
		return "message"
	default:
		return fmt.Sprintf("Severity(%d)", int(s))
	}
}

// Location points into a source file. Line and Column are 1-based; 0 means unknown.
type Location struct {
	File   string
	Line   int
	Column int
}

func (l Location) String() string {
	switch {
	case l.File == "":
		return ""
	case l.Line == 0:
		return l.File
	case l.Column == 0:
		return fmt.Sprintf("%s(%d)", l.File, l.Line)
	default:
		return fmt.Sprintf("%s(%d,%d)", l.File, l.Line, l.Column)
	}
}

// Error is one problem reported by the build tool.
type Error struct {
	Severity Severity
	Code     string
	Message  string
	Location Location

	// Project is the build script the tool was building when it reported the problem
	Project string
}

func (e Error) String() string {
	prefix := e.Location.String()
	if prefix == "" {
		prefix = e.Project
	}
	if e.Code != "" {
		return fmt.Sprintf("%s: %s %s: %s", prefix, e.Severity, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", prefix, e.Severity, e.Message)
}

// Kind distinguishes builds from cleans.
type Kind int

const (
	KindBuild Kind = iota
	KindClean
)

func (k Kind) String() string {
	if k == KindClean {
		return "clean"
	}
	return "build"
}

// Result is the immutable outcome of one build or clean.
type Result struct {
	id       string
	kind     Kind
	success  bool
	errors   []Error
	duration time.Duration
}

// NewResult creates a result. errs is copied.
func NewResult(id string, kind Kind, success bool, errs []Error, duration time.Duration) *Result {
	return &Result{
		id:       id,
		kind:     kind,
		success:  success,
		errors:   slices.Clone(errs),
		duration: duration,
	}
}

// ID identifies the build in logs and traces.
func (r *Result) ID() string { return r.id }

// Kind reports whether this was a build or a clean.
func (r *Result) Kind() Kind { return r.kind }

// Success reports whether every tool invocation succeeded.
func (r *Result) Success() bool { return r.success }

// Duration is the wall time of the build.
func (r *Result) Duration() time.Duration { return r.duration }

// Errors returns the reported problems in output order.
func (r *Result) Errors() []Error { return slices.Clone(r.errors) }

// Count returns how many problems of severity s were reported.
func (r *Result) Count(s Severity) int {
	n := 0
	for _, e := range r.errors {
		if e.Severity == s {
			n++
		}
	}
	return n
}
