package workbench

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/willibrandon/litedev/build"
)

func TestErrorList(t *testing.T) {
	l := NewErrorList()

	var removed int
	l.OnRemoved(func(build.Error) { removed++ })

	cs0103 := build.Error{
		Severity: build.SeverityError,
		Code:     "CS0103",
		Message:  "The name 'x' does not exist in the current context",
		Location: build.Location{File: "Program.cs", Line: 7, Column: 13},
		Project:  "App",
	}
	cs0168 := build.Error{
		Severity: build.SeverityWarning,
		Code:     "CS0168",
		Message:  "The variable 'e' is declared but never used",
		Location: build.Location{File: "Program.cs", Line: 12, Column: 20},
		Project:  "App",
	}

	assert.Equal(t, 2, l.Add(cs0103, cs0168, cs0103))
	assert.Equal(t, 2, l.Len())
	assert.Equal(t, 1, l.Count(build.SeverityError))
	assert.Equal(t, 1, l.Count(build.SeverityWarning))
	assert.Equal(t, 0, l.Count(build.SeverityMessage))
	assert.Equal(t, []build.Error{cs0103, cs0168}, l.Items())
	assert.Equal(t, []build.Error{cs0168}, l.Filter(build.SeverityWarning, build.SeverityMessage))

	l.Clear()
	assert.Equal(t, 0, l.Len())
	assert.Equal(t, 2, removed)
	assert.Equal(t, 0, l.Count(build.SeverityError))
}
