package workbench

import (
	"sync"

	"github.com/willibrandon/litedev/build"
	"github.com/willibrandon/litedev/collections"
)

// ErrorList holds the problems reported by the last build or clean.
// Identical problems reported twice by the tool are listed once.
type ErrorList struct {
	items *collections.ObservableSet[build.Error]

	mu     sync.Mutex
	counts map[build.Severity]int
}

// NewErrorList creates an empty list.
func NewErrorList() *ErrorList {
	l := &ErrorList{
		items:  collections.NewObservableSet[build.Error](),
		counts: make(map[build.Severity]int),
	}
	l.items.OnInserted(func(e build.Error) { l.adjust(e.Severity, 1) })
	l.items.OnRemoved(func(e build.Error) { l.adjust(e.Severity, -1) })
	return l
}

func (l *ErrorList) adjust(s build.Severity, delta int) {
	l.mu.Lock()
	l.counts[s] += delta
	l.mu.Unlock()
}

// Items returns the problems in report order.
func (l *ErrorList) Items() []build.Error { return l.items.Items() }

// Filter returns the problems with one of the given severities.
func (l *ErrorList) Filter(severities ...build.Severity) []build.Error {
	var out []build.Error
	for _, e := range l.items.All() {
		for _, s := range severities {
			if e.Severity == s {
				out = append(out, e)
				break
			}
		}
	}
	return out
}

// Len returns the number of problems.
func (l *ErrorList) Len() int { return l.items.Len() }

// Count returns the number of problems with severity s.
func (l *ErrorList) Count(s build.Severity) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.counts[s]
}

// Add appends errs and returns how many were new.
func (l *ErrorList) Add(errs ...build.Error) int { return l.items.AddRange(errs...) }

// Clear removes every problem, raising one removal per problem.
func (l *ErrorList) Clear() { l.items.Clear() }

// OnInserted registers h for added problems.
func (l *ErrorList) OnInserted(h func(build.Error)) func() { return l.items.OnInserted(h) }

// OnRemoved registers h for removed problems.
func (l *ErrorList) OnRemoved(h func(build.Error)) func() { return l.items.OnRemoved(h) }
