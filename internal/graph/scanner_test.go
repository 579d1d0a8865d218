package graph

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for Scanner and FileDiscovery:
// - Code patterns match root-level and nested files
// - Ignore patterns skip directories such as node_modules; .remedy is always skipped
// - Scanned files carry content hashes, line counts and parsed imports
// - Scanning an unchanged tree twice yields identical hashes
// - Unreadable files are recorded as failures, not fatal
// - Progress reporter receives discovery and completion notifications
// - Cancelled context aborts the scan

var (
	defaultCode   = []string{"**/*.ts", "**/*.tsx"}
	defaultIgnore = []string{"node_modules/**", "**/node_modules/**", "dist/**"}
)

func sampleProject(t *testing.T) string {
	return writeProject(t, map[string]string{
		"index.ts":                      "import { util } from './src/util';\nutil();\n",
		"src/util.ts":                   "export function util(): void {}\n",
		"src/view.tsx":                  "export const View = () => <div/>;\n",
		"src/readme.md":                 "# not code\n",
		"node_modules/pkg/index.ts":     "export const x = 1;\n",
		"src/node_modules/inner/a.ts":   "export const y = 1;\n",
		"dist/out.ts":                   "export const z = 1;\n",
		".remedy/backups/files/util.ts": "export function util(): void {}\n",
	})
}

func TestFileDiscovery_Discover(t *testing.T) {
	t.Parallel()

	root := sampleProject(t)
	fd, err := NewFileDiscovery(root, defaultCode, defaultIgnore)
	require.NoError(t, err)

	files, failures, err := fd.Discover()
	require.NoError(t, err)
	assert.Empty(t, failures)
	assert.Equal(t, []string{"index.ts", "src/util.ts", "src/view.tsx"}, files)

	assert.True(t, fd.Matches("src/new.ts"))
	assert.False(t, fd.Matches("node_modules/a/b.ts"))
	assert.False(t, fd.Matches(".remedy/x.ts"))
}

func TestFileDiscovery_InvalidPattern(t *testing.T) {
	t.Parallel()

	_, err := NewFileDiscovery(t.TempDir(), []string{"[unclosed"}, nil)
	assert.Error(t, err)
}

type recordingProgress struct {
	total    int
	scanned  []string
	complete bool
}

func (r *recordingProgress) OnDiscoveryComplete(total int) { r.total = total }

func (r *recordingProgress) OnFileScanned(path string) { r.scanned = append(r.scanned, path) }

func (r *recordingProgress) OnScanComplete(int, int, time.Duration) { r.complete = true }

func TestScanner_Scan(t *testing.T) {
	t.Parallel()

	root := sampleProject(t)
	progress := &recordingProgress{}
	scanner, err := NewScanner(root, defaultCode, defaultIgnore, WithProgress(progress))
	require.NoError(t, err)

	result, err := scanner.Scan(context.Background())
	require.NoError(t, err)
	assert.Empty(t, result.Failures)
	assert.Equal(t, []string{"index.ts", "src/util.ts", "src/view.tsx"}, result.Files.Paths())

	index := result.Files["index.ts"]
	assert.Equal(t, 2, index.Lines)
	assert.Len(t, index.Hash, 64)
	require.Len(t, index.Imports, 1)
	assert.Equal(t, "./src/util", index.Imports[0].Specifier)
	assert.Equal(t, "util();", index.LineText(2))
	assert.True(t, result.Files["src/util.ts"].ExportsName("util"))

	assert.Equal(t, 3, progress.total)
	assert.Len(t, progress.scanned, 3)
	assert.True(t, progress.complete)
}

func TestScanner_IdempotentHashes(t *testing.T) {
	t.Parallel()

	// Test: scanning an unchanged tree twice gives identical hashes
	root := sampleProject(t)
	scanner, err := NewScanner(root, defaultCode, defaultIgnore)
	require.NoError(t, err)

	first, err := scanner.Scan(context.Background())
	require.NoError(t, err)
	second, err := scanner.Scan(context.Background())
	require.NoError(t, err)

	require.Equal(t, first.Files.Paths(), second.Files.Paths())
	for _, p := range first.Files.Paths() {
		assert.Equal(t, first.Files[p].Hash, second.Files[p].Hash, p)
	}
}

func TestScanner_UnreadableFileIsSkipped(t *testing.T) {
	t.Parallel()

	if runtime.GOOS == "windows" || os.Getuid() == 0 {
		t.Skip("permission bits are not enforced")
	}

	root := sampleProject(t)
	locked := filepath.Join(root, "src", "locked.ts")
	require.NoError(t, os.WriteFile(locked, []byte("export const a = 1;\n"), 0000))

	scanner, err := NewScanner(root, defaultCode, defaultIgnore)
	require.NoError(t, err)

	result, err := scanner.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, "src/locked.ts", result.Failures[0].Path)
	assert.NotContains(t, result.Files, "src/locked.ts")
	assert.Len(t, result.Files, 3)
}

func TestScanner_MissingRoot(t *testing.T) {
	t.Parallel()

	scanner, err := NewScanner(filepath.Join(t.TempDir(), "missing"), defaultCode, defaultIgnore)
	require.NoError(t, err)
	_, err = scanner.Scan(context.Background())
	assert.Error(t, err)
}

func TestScanner_CancelledContext(t *testing.T) {
	t.Parallel()

	root := sampleProject(t)
	scanner, err := NewScanner(root, defaultCode, defaultIgnore)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = scanner.Scan(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
