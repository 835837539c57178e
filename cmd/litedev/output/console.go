package output

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"

	"github.com/willibrandon/litedev/build"
	"github.com/willibrandon/litedev/observability"
)

// Verbosity levels
type Verbosity int

const (
	// VerbosityQuiet shows errors only
	VerbosityQuiet Verbosity = iota
	// VerbosityNormal shows errors, warnings, and key operations (default)
	VerbosityNormal
	// VerbosityDetailed shows above + build tool output
	VerbosityDetailed
	// VerbosityDiagnostic shows above + debug messages
	VerbosityDiagnostic
)

// VerbosityFor maps a log level to the console verbosity that goes with it.
func VerbosityFor(level observability.LogLevel) Verbosity {
	switch {
	case level <= observability.VerboseLevel:
		return VerbosityDiagnostic
	case level <= observability.DebugLevel:
		return VerbosityDetailed
	case level <= observability.InfoLevel:
		return VerbosityNormal
	default:
		return VerbosityQuiet
	}
}

// Console provides output abstraction
type Console struct {
	out       io.Writer
	err       io.Writer
	verbosity Verbosity
	mu        sync.Mutex
	colors    bool
}

// NewConsole creates a new console
func NewConsole(out, err io.Writer, verbosity Verbosity) *Console {
	c := &Console{
		out:       out,
		err:       err,
		verbosity: verbosity,
		colors:    IsColorEnabled(out),
	}

	if !c.colors {
		DisableColors()
	}

	return c
}

// DefaultConsole creates a console with stdout/stderr and normal verbosity
func DefaultConsole() *Console {
	return NewConsole(os.Stdout, os.Stderr, VerbosityNormal)
}

// SetVerbosity sets the verbosity level
func (c *Console) SetVerbosity(v Verbosity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.verbosity = v
}

// GetVerbosity returns the current verbosity level
func (c *Console) GetVerbosity() Verbosity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.verbosity
}

// Out returns the writer regular output goes to.
func (c *Console) Out() io.Writer {
	return c.out
}

// SetColors enables or disables color output
func (c *Console) SetColors(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.colors = enabled
	if enabled {
		EnableColors()
	} else {
		DisableColors()
	}
}

// Print writes to output
func (c *Console) Print(a ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprint(c.out, a...)
}

// Println writes line to output
func (c *Console) Println(a ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintln(c.out, a...)
}

// Printf writes formatted output
func (c *Console) Printf(format string, a ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintf(c.out, format, a...)
}

// Success writes success message (green)
func (c *Console) Success(format string, a ...any) {
	c.colored(VerbosityNormal, c.out, ColorSuccess, format, a...)
}

// Error writes error message (red)
func (c *Console) Error(format string, a ...any) {
	c.colored(VerbosityQuiet, c.err, ColorError, "Error: "+format, a...)
}

// Warning writes warning message (yellow)
func (c *Console) Warning(format string, a ...any) {
	c.colored(VerbosityNormal, c.out, ColorWarning, "Warning: "+format, a...)
}

// Info writes info message (cyan)
func (c *Console) Info(format string, a ...any) {
	c.colored(VerbosityNormal, c.out, ColorInfo, format, a...)
}

// Debug writes debug message (white)
func (c *Console) Debug(format string, a ...any) {
	c.colored(VerbosityDiagnostic, c.out, ColorDebug, "[DEBUG] "+format, a...)
}

// Detail writes detailed message
func (c *Console) Detail(format string, a ...any) {
	c.colored(VerbosityDetailed, c.out, nil, format, a...)
}

// Problem writes one build problem in the tool's own file(line,col) form,
// colored by severity. Messages are only shown at detailed verbosity.
func (c *Console) Problem(e build.Error) {
	switch e.Severity {
	case build.SeverityError:
		c.colored(VerbosityQuiet, c.out, ColorError, "%s", e)
	case build.SeverityWarning:
		c.colored(VerbosityNormal, c.out, ColorWarning, "%s", e)
	default:
		c.colored(VerbosityDetailed, c.out, nil, "%s", e)
	}
}

// Location writes a source position (magenta) followed by a note.
func (c *Console) Location(location, note string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.colors {
		_, _ = ColorLocation.Fprint(c.out, location)
	} else {
		_, _ = fmt.Fprint(c.out, location)
	}
	if note != "" {
		_, _ = fmt.Fprintf(c.out, " (%s)", note)
	}
	_, _ = fmt.Fprintln(c.out)
}

func (c *Console) colored(level Verbosity, w io.Writer, col *color.Color, format string, a ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.verbosity < level {
		return
	}
	if c.colors && col != nil {
		_, _ = col.Fprintf(w, format+"\n", a...)
	} else {
		_, _ = fmt.Fprintf(w, format+"\n", a...)
	}
}
