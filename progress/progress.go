// Package progress defines the write-only sink long-running operations report status to.
package progress

import (
	"fmt"
	"sync"

	"github.com/willibrandon/litedev/observability"
)

// Reporter receives human-readable status lines. Implementations must be safe
// for use from the build worker and the interactive loop at the same time.
type Reporter interface {
	Report(format string, args ...any)
}

// Discard drops every report.
var Discard Reporter = discard{}

type discard struct{}

func (discard) Report(string, ...any) {}

// Func adapts a function to a Reporter.
type Func func(line string)

// Report implements Reporter.
func (f Func) Report(format string, args ...any) {
	f(fmt.Sprintf(format, args...))
}

// NewLogReporter forwards reports to logger at Info level under the {Progress} property.
func NewLogReporter(logger observability.Logger) Reporter {
	return &logReporter{logger: logger}
}

type logReporter struct {
	logger observability.Logger
}

func (r *logReporter) Report(format string, args ...any) {
	r.logger.Info("{Progress}", fmt.Sprintf(format, args...))
}

// Recorder keeps every reported line in order.
type Recorder struct {
	mu    sync.Mutex
	lines []string
}

// Report implements Reporter.
func (r *Recorder) Report(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, fmt.Sprintf(format, args...))
}

// Lines returns a copy of the recorded lines.
func (r *Recorder) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...)
}
