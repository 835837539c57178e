package build

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMSBuildMatcher(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Error
		ok   bool
	}{
		{
			name: "compiler error with project suffix",
			line: `/src/App/Program.cs(10,17): error CS0103: The name 'x' does not exist in the current context [/src/App/App.csproj]`,
			want: Error{
				Severity: SeverityError,
				Code:     "CS0103",
				Message:  "The name 'x' does not exist in the current context",
				Location: Location{File: "/src/App/Program.cs", Line: 10, Column: 17},
				Project:  "/src/App/App.csproj",
			},
			ok: true,
		},
		{
			name: "windows path with range",
			line: `C:\src\App\Form1.vb(4,5,4,9): warning BC42024: Unused local variable: 'y'.`,
			want: Error{
				Severity: SeverityWarning,
				Code:     "BC42024",
				Message:  "Unused local variable: 'y'.",
				Location: Location{File: `C:\src\App\Form1.vb`, Line: 4, Column: 5},
			},
			ok: true,
		},
		{
			name: "line only",
			line: `Library.fs(3): error FS0039: The value or constructor 'foo' is not defined.`,
			want: Error{
				Severity: SeverityError,
				Code:     "FS0039",
				Message:  "The value or constructor 'foo' is not defined.",
				Location: Location{File: "Library.fs", Line: 3},
			},
			ok: true,
		},
		{
			name: "msbuild origin",
			line: `MSBUILD : error MSB1009: Project file does not exist.`,
			want: Error{Severity: SeverityError, Code: "MSB1009", Message: "Project file does not exist."},
			ok:   true,
		},
		{
			name: "project origin",
			line: `/src/App/App.csproj : warning MSB3245: Could not resolve this reference. [/src/App/App.csproj]`,
			want: Error{Severity: SeverityWarning, Code: "MSB3245", Message: "Could not resolve this reference.", Project: "/src/App/App.csproj"},
			ok:   true,
		},
		{name: "progress line", line: "  App -> /src/App/bin/Debug/App.dll", ok: false},
		{name: "summary", line: "    0 Warning(s)", ok: false},
		{name: "empty", line: "", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NewMSBuildMatcher().Match(tt.line)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestMatcher_DeduplicatesRepeats(t *testing.T) {
	m := NewMSBuildMatcher()
	line := `/src/App/Program.cs(1,1): error CS1022: Type or namespace definition, or end-of-file expected`

	_, ok := m.Match(line)
	assert.True(t, ok)
	_, ok = m.Match(line)
	assert.False(t, ok)
}

func TestResult(t *testing.T) {
	errs := []Error{
		{Severity: SeverityError, Message: "a"},
		{Severity: SeverityWarning, Message: "b"},
		{Severity: SeverityWarning, Message: "c"},
	}
	r := NewResult("id", KindBuild, false, errs, time.Second)
	errs[0].Message = "mutated"

	assert.Equal(t, "a", r.Errors()[0].Message, "result must not alias the caller's slice")
	assert.Equal(t, 1, r.Count(SeverityError))
	assert.Equal(t, 2, r.Count(SeverityWarning))
	assert.Equal(t, 0, r.Count(SeverityMessage))
	assert.Equal(t, time.Second, r.Duration())
}

func TestError_String(t *testing.T) {
	e := Error{Severity: SeverityError, Code: "CS1002", Message: "; expected", Location: Location{File: "a.cs", Line: 3, Column: 7}}
	assert.Equal(t, "a.cs(3,7): error CS1002: ; expected", e.String())

	e = Error{Severity: SeverityWarning, Message: "odd", Project: "App.csproj"}
	assert.Equal(t, "App.csproj: warning: odd", e.String())
	assert.Equal(t, "clean", KindClean.String())
	assert.Equal(t, "message", SeverityMessage.String())
}
