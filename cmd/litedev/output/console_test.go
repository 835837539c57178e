package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/willibrandon/litedev/build"
	"github.com/willibrandon/litedev/observability"
)

func newTestConsole(v Verbosity) (*Console, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	c := NewConsole(&out, &errOut, v)
	c.SetColors(false)
	return c, &out, &errOut
}

func TestConsole_Verbosity(t *testing.T) {
	tests := []struct {
		name      string
		verbosity Verbosity
		want      string
	}{
		{"quiet", VerbosityQuiet, ""},
		{"normal", VerbosityNormal, "info\nWarning: warn\n"},
		{"detailed", VerbosityDetailed, "info\nWarning: warn\ndetail\n"},
		{"diagnostic", VerbosityDiagnostic, "info\nWarning: warn\ndetail\n[DEBUG] debug\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, out, errOut := newTestConsole(tt.verbosity)
			c.Info("info")
			c.Warning("warn")
			c.Detail("detail")
			c.Debug("debug")
			c.Error("boom")

			assert.Equal(t, tt.want, out.String())
			assert.Equal(t, "Error: boom\n", errOut.String(), "errors are never suppressed")
		})
	}
}

func TestConsole_Problem(t *testing.T) {
	c, out, _ := newTestConsole(VerbosityNormal)

	c.Problem(build.Error{
		Severity: build.SeverityError,
		Code:     "CS1002",
		Message:  "; expected",
		Location: build.Location{File: "Program.cs", Line: 7, Column: 30},
	})
	c.Problem(build.Error{Severity: build.SeverityMessage, Message: "hidden at normal verbosity", Project: "App"})

	assert.Equal(t, "Program.cs(7,30): error CS1002: ; expected\n", out.String())
}

func TestConsole_Location(t *testing.T) {
	c, out, _ := newTestConsole(VerbosityNormal)
	c.Location("Program.cs:12", "step")
	c.Location("Program.cs:13", "")
	assert.Equal(t, "Program.cs:12 (step)\nProgram.cs:13\n", out.String())
}

func TestVerbosityFor(t *testing.T) {
	assert.Equal(t, VerbosityDiagnostic, VerbosityFor(observability.VerboseLevel))
	assert.Equal(t, VerbosityDetailed, VerbosityFor(observability.DebugLevel))
	assert.Equal(t, VerbosityNormal, VerbosityFor(observability.InfoLevel))
	assert.Equal(t, VerbosityQuiet, VerbosityFor(observability.ErrorLevel))
}

func TestIsTerminal_Buffer(t *testing.T) {
	assert.False(t, IsTerminal(&bytes.Buffer{}))
	assert.False(t, IsColorEnabled(&bytes.Buffer{}))
}
