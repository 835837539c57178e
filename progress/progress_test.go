package progress

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/willibrandon/litedev/observability"
)

func TestRecorder(t *testing.T) {
	var r Recorder
	r.Report("Saving %s", "App.csproj")
	r.Report("Build started")

	assert.Equal(t, []string{"Saving App.csproj", "Build started"}, r.Lines())
}

func TestFunc(t *testing.T) {
	var got string
	Func(func(line string) { got = line }).Report("%d errors", 3)
	assert.Equal(t, "3 errors", got)
}

func TestLogReporter(t *testing.T) {
	var buf bytes.Buffer
	r := NewLogReporter(observability.NewLogger(&buf, observability.InfoLevel))

	r.Report("Cleaning %s", "App.sln")

	assert.Contains(t, buf.String(), "Cleaning App.sln")
}

func TestDiscard(t *testing.T) {
	assert.NotPanics(t, func() { Discard.Report("ignored %v", 1) })
}
