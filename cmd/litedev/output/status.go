package output

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/term"
)

// statusColumn is the widest column the status is right-aligned to.
const statusColumn = 120

// Status displays a live, right-aligned "Build (X.Xs)" timer while a build or
// clean runs. It redraws at 30Hz and only when the output is a terminal.
type Status struct {
	output io.Writer
	label  string
	isTTY  bool
	width  int
	start  time.Time

	ticker *time.Ticker
	done   chan struct{}
	exited chan struct{}
	once   sync.Once
}

// NewStatus starts a status for label on output.
func NewStatus(output io.Writer, label string) *Status {
	isTTY := false
	width := statusColumn
	if f, ok := output.(*os.File); ok {
		fd := int(f.Fd())
		isTTY = term.IsTerminal(fd)
		if isTTY {
			if w, _, err := term.GetSize(fd); err == nil && w > 0 {
				width = w
			}
		}
	}
	return newStatus(output, label, isTTY, width)
}

func newStatus(output io.Writer, label string, isTTY bool, width int) *Status {
	s := &Status{
		output: output,
		label:  label,
		isTTY:  isTTY,
		width:  width,
		start:  time.Now(),
		done:   make(chan struct{}),
		exited: make(chan struct{}),
	}
	if isTTY {
		s.ticker = time.NewTicker(33 * time.Millisecond)
		go s.updateLoop()
	}
	return s
}

func (s *Status) updateLoop() {
	defer close(s.exited)
	for {
		select {
		case <-s.ticker.C:
			s.draw()
		case <-s.done:
			return
		}
	}
}

// text returns the status as drawn, e.g. "Build (1.2s)".
func (s *Status) text() string {
	return fmt.Sprintf("%s (%.1fs)", s.label, time.Since(s.start).Seconds())
}

func (s *Status) draw() {
	status := s.text()
	column := min(s.width, statusColumn)

	// hide cursor, jump to column, step back over the text, write, return, show cursor
	_, _ = fmt.Fprintf(s.output, "\x1B[?25l\x1B[%dG\x1B[%dD%s\r\x1B[?25h", column, len(status), status)
}

// Stop stops redrawing and clears the status line. Safe to call more than once.
func (s *Status) Stop() {
	s.once.Do(func() {
		if s.ticker == nil {
			return
		}
		s.ticker.Stop()
		close(s.done)
		<-s.exited
		_, _ = fmt.Fprint(s.output, "\x1B[K")
	})
}

// Elapsed returns the time since the status started.
func (s *Status) Elapsed() time.Duration {
	return time.Since(s.start)
}

// IsTTY reports whether the status is drawn.
func (s *Status) IsTTY() bool {
	return s.isTTY
}
