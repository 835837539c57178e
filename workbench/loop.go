package workbench

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/willibrandon/litedev/observability"
)

// ErrLoopClosed is returned by Do after Close.
var ErrLoopClosed = errors.New("interactive loop is closed")

// Loop is the interactive goroutine: functions posted to it run one at a
// time, in posting order, on the goroutine that calls Run. Post never
// blocks, so handlers running on the loop may post further work.
type Loop struct {
	logger observability.Logger

	mu     sync.Mutex
	queue  []func()
	closed bool
	wake   chan struct{}
	done   chan struct{}
}

// NewLoop creates a loop. Nothing runs until Run is called.
func NewLoop(logger observability.Logger) *Loop {
	if logger == nil {
		logger = observability.NewNullLogger()
	}
	return &Loop{
		logger: logger,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Post queues fn. Functions posted after Close are dropped.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Do runs fn on the loop and waits for its result.
func (l *Loop) Do(ctx context.Context, fn func() error) error {
	result := make(chan error, 1)
	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed {
		return ErrLoopClosed
	}

	l.Post(func() {
		defer func() {
			if r := recover(); r != nil {
				result <- fmt.Errorf("panic on interactive loop: %v", r)
				panic(r)
			}
		}()
		result <- fn()
	})
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		// fn may have run just before the loop stopped
		select {
		case err := <-result:
			return err
		default:
			return ErrLoopClosed
		}
	}
}

// Run processes posted functions until ctx is cancelled or Close is called.
// Work queued before Close still runs.
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.done)
	for {
		for {
			fn, ok := l.next()
			if !ok {
				break
			}
			l.invoke(fn)
		}

		l.mu.Lock()
		closed := l.closed && len(l.queue) == 0
		l.mu.Unlock()
		if closed {
			return nil
		}

		select {
		case <-l.wake:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close stops accepting work and lets Run return once the queue is drained.
func (l *Loop) Close() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *Loop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil, false
	}
	fn := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return fn, true
}

// invoke runs fn, turning a panic into an error log so one failing handler
// does not take the loop down.
func (l *Loop) invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("Panic on interactive loop: {Panic}\n{Stack}", fmt.Sprint(r), string(debug.Stack()))
		}
	}()
	fn()
}
