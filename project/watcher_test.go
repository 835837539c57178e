package project

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/willibrandon/litedev/observability"
)

func TestWatcher_ReportsTrackedFileOnce(t *testing.T) {
	dir := t.TempDir()
	tracked := filepath.Join(dir, "App.csproj")
	other := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(tracked, []byte("<Project />"), 0o644))

	w, err := NewWatcher(observability.NewNullLogger(), 50*time.Millisecond)
	require.NoError(t, err)
	defer func() { _ = w.Close() }()
	require.NoError(t, w.Add(tracked))
	require.NoError(t, w.Add(tracked))

	var mu sync.Mutex
	var changes []string
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = w.Run(ctx, func(path string) {
			mu.Lock()
			defer mu.Unlock()
			changes = append(changes, path)
		})
	}()

	require.NoError(t, os.WriteFile(other, []byte("ignored"), 0o644))
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(tracked, []byte("<Project ToolsVersion=\"4.0\" />"), 0o644))
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(changes) > 0
	}, 2*time.Second, 10*time.Millisecond)

	time.Sleep(150 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{tracked}, changes)
}

func TestWatcher_Remove(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "A.csproj")
	b := filepath.Join(dir, "B.csproj")

	w, err := NewWatcher(observability.NewNullLogger(), 0)
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	require.NoError(t, w.Add(a))
	require.NoError(t, w.Add(b))
	require.NoError(t, w.Remove(a))

	_, ok := w.tracked(a)
	assert.False(t, ok)
	_, ok = w.tracked(b)
	assert.True(t, ok)
	assert.Equal(t, 1, w.dirs[dir])

	require.NoError(t, w.Remove(b))
	assert.Empty(t, w.dirs)
	require.NoError(t, w.Remove(b))
}
