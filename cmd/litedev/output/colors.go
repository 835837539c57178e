// Package output provides console output formatting and colorization.
package output

import (
	"io"
	"os"

	"github.com/fatih/color"
	"golang.org/x/term"
)

// Color schemes
var (
	ColorSuccess  = color.New(color.FgGreen)
	ColorError    = color.New(color.FgRed)
	ColorWarning  = color.New(color.FgYellow)
	ColorInfo     = color.New(color.FgCyan)
	ColorDebug    = color.New(color.FgWhite)
	ColorHeader   = color.New(color.Bold, color.FgWhite)
	ColorLocation = color.New(color.FgMagenta)
)

// IsColorEnabled checks if color output should be enabled for w
func IsColorEnabled(w io.Writer) bool {
	if !IsTerminal(w) {
		return false
	}

	// Check NO_COLOR environment variable
	if os.Getenv("NO_COLOR") != "" {
		return false
	}

	termEnv := os.Getenv("TERM")
	if termEnv == "dumb" || termEnv == "" {
		return false
	}

	return true
}

// IsTerminal reports whether w is a terminal (not piped/redirected)
func IsTerminal(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return term.IsTerminal(int(f.Fd()))
	}
	return false
}

// DisableColors disables all color output
func DisableColors() {
	color.NoColor = true
}

// EnableColors enables color output
func EnableColors() {
	color.NoColor = false
}
