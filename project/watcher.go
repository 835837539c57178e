package project

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/willibrandon/litedev/observability"
)

// DefaultDebounce is how long a build script must stay quiet before a change is reported.
const DefaultDebounce = 200 * time.Millisecond

// Watcher reports build scripts modified on disk. It watches the containing
// directories so that editors replacing a file by rename are noticed too.
type Watcher struct {
	watcher  *fsnotify.Watcher
	logger   observability.Logger
	debounce time.Duration

	mu    sync.Mutex
	files map[string]string // lowercased path -> path as added
	dirs  map[string]int    // watched directory -> number of files in it
}

// NewWatcher creates a watcher. debounce <= 0 uses DefaultDebounce.
func NewWatcher(logger observability.Logger, debounce time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		watcher:  fsw,
		logger:   logger,
		debounce: debounce,
		files:    make(map[string]string),
		dirs:     make(map[string]int),
	}, nil
}

// Add starts watching the file at path.
func (w *Watcher) Add(path string) error {
	path = absPath(path)
	key := strings.ToLower(path)

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.files[key]; ok {
		return nil
	}
	dir := filepath.Dir(path)
	if w.dirs[dir] == 0 {
		if err := w.watcher.Add(dir); err != nil {
			return err
		}
	}
	w.dirs[dir]++
	w.files[key] = path
	return nil
}

// Remove stops watching the file at path.
func (w *Watcher) Remove(path string) error {
	path = absPath(path)
	key := strings.ToLower(path)

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.files[key]; !ok {
		return nil
	}
	delete(w.files, key)
	dir := filepath.Dir(path)
	w.dirs[dir]--
	if w.dirs[dir] == 0 {
		delete(w.dirs, dir)
		return w.watcher.Remove(dir)
	}
	return nil
}

// Run delivers changed paths to onChange until ctx is done. Bursts of events
// for one file are coalesced into a single call after the debounce interval.
// onChange runs on a timer goroutine.
func (w *Watcher) Run(ctx context.Context, onChange func(path string)) error {
	timers := make(map[string]*time.Timer)
	defer func() {
		for _, t := range timers {
			t.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			path, tracked := w.tracked(event.Name)
			if !tracked {
				continue
			}
			if t, ok := timers[path]; ok {
				t.Stop()
			}
			timers[path] = time.AfterFunc(w.debounce, func() { onChange(path) })

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("File watcher error: {Error}", err)
		}
	}
}

// Close releases the underlying watcher. Run returns once its channels close.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) tracked(name string) (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	path, ok := w.files[strings.ToLower(absPath(name))]
	return path, ok
}
