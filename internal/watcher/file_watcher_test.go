package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for FileWatcher:
// - NewFileWatcher succeeds on a directory and fails on a missing one
// - A single change fires the callback with a root-relative path
// - Rapid changes are coalesced into one sorted, deduplicated batch
// - Only watched extensions trigger the callback
// - Changes inside skipped directories are ignored
// - Files in newly created directories are picked up
// - Pause accumulates and Resume delivers immediately
// - Stop is idempotent and safe before Start

const testDebounce = 100 * time.Millisecond

// collector records callback batches.
type collector struct {
	mu      sync.Mutex
	batches [][]string
	ch      chan struct{}
}

func newCollector() *collector {
	return &collector{ch: make(chan struct{}, 16)}
}

func (c *collector) callback(files []string) {
	c.mu.Lock()
	c.batches = append(c.batches, files)
	c.mu.Unlock()
	c.ch <- struct{}{}
}

func (c *collector) wait(t *testing.T) []string {
	t.Helper()
	select {
	case <-c.ch:
	case <-time.After(3 * time.Second):
		t.Fatal("callback not called before timeout")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.batches[len(c.batches)-1]
}

func (c *collector) none(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case <-c.ch:
		c.mu.Lock()
		defer c.mu.Unlock()
		t.Fatalf("unexpected callback: %v", c.batches[len(c.batches)-1])
	case <-time.After(d):
	}
}

func startWatcher(t *testing.T, root string) (Watcher, *collector) {
	t.Helper()
	w, err := NewFileWatcher(root, []string{".ts", ".tsx"}, WithDebounce(testDebounce))
	require.NoError(t, err)
	t.Cleanup(func() { w.Stop() })

	c := newCollector()
	require.NoError(t, w.Start(context.Background(), c.callback))
	time.Sleep(50 * time.Millisecond)
	return w, c
}

func write(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestNewFileWatcher(t *testing.T) {
	t.Parallel()

	w, err := NewFileWatcher(t.TempDir(), []string{".ts"})
	require.NoError(t, err)
	require.NoError(t, w.Stop())

	w, err = NewFileWatcher(filepath.Join(t.TempDir(), "missing"), []string{".ts"})
	assert.Error(t, err)
	assert.Nil(t, w)
}

func TestFileWatcher_SingleChange(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0755))
	_, c := startWatcher(t, root)

	write(t, root, "src/a.ts", "export const a = 1;\n")

	assert.Equal(t, []string{"src/a.ts"}, c.wait(t))
}

func TestFileWatcher_BatchesAndDedupes(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	_, c := startWatcher(t, root)

	write(t, root, "b.ts", "1")
	write(t, root, "a.tsx", "1")
	write(t, root, "b.ts", "2")

	assert.Equal(t, []string{"a.tsx", "b.ts"}, c.wait(t))
}

func TestFileWatcher_ExtensionFilter(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	_, c := startWatcher(t, root)

	write(t, root, "README.md", "# hi")
	write(t, root, "main.go", "package main")
	c.none(t, 3*testDebounce)

	write(t, root, "x.ts", "1")
	assert.Equal(t, []string{"x.ts"}, c.wait(t))
}

func TestFileWatcher_SkipsStateAndDependencies(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "node_modules", "lib"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".remedy"), 0755))
	_, c := startWatcher(t, root)

	write(t, root, "node_modules/lib/index.ts", "1")
	write(t, root, ".remedy/scratch.ts", "1")
	c.none(t, 3*testDebounce)
}

func TestFileWatcher_NewDirectory(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	_, c := startWatcher(t, root)

	require.NoError(t, os.MkdirAll(filepath.Join(root, "feature"), 0755))
	time.Sleep(2 * testDebounce)
	write(t, root, "feature/new.ts", "1")

	deadline := time.After(3 * time.Second)
	for {
		select {
		case <-c.ch:
			c.mu.Lock()
			last := c.batches[len(c.batches)-1]
			c.mu.Unlock()
			if assert.ObjectsAreEqual([]string{"feature/new.ts"}, last) {
				return
			}
		case <-deadline:
			t.Fatal("change in new directory not reported")
		}
	}
}

func TestFileWatcher_PauseResume(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	w, c := startWatcher(t, root)

	w.Pause()
	write(t, root, "p.ts", "1")
	c.none(t, 3*testDebounce)

	w.Resume()
	assert.Equal(t, []string{"p.ts"}, c.wait(t))
}

func TestFileWatcher_StopIdempotent(t *testing.T) {
	t.Parallel()

	w, err := NewFileWatcher(t.TempDir(), []string{".ts"})
	require.NoError(t, err)
	require.NoError(t, w.Stop())
	assert.NotPanics(t, func() { w.Stop() })

	w, err = NewFileWatcher(t.TempDir(), []string{".ts"})
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background(), func([]string) {}))

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Stop()
		}()
	}
	wg.Wait()
}
