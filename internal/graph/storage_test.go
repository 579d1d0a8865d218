package graph

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for GraphStorage:
// - Save and load graph data with correct metadata
// - Load non-existent file returns nil without error
// - Atomic write leaves no temp file behind
// - NewGraphData summarizes files, cycles and orphans

func TestStorage_SaveAndLoad(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), ".remedy")
	storage, err := NewStorage(dir)
	require.NoError(t, err)

	files, g := buildGraph(t, map[string][]string{
		"a.ts": {"./b"},
		"b.ts": {"./a", "./missing"},
		"c.ts": nil,
	})
	data := NewGraphData(files, g)

	require.NoError(t, storage.Save(data))
	assert.True(t, storage.Exists())

	_, err = os.Stat(filepath.Join(dir, ".tmp", GraphFileName))
	assert.True(t, os.IsNotExist(err))

	loaded, err := storage.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)

	assert.Equal(t, GraphVersion, loaded.Metadata.Version)
	assert.Equal(t, 3, loaded.Metadata.FileCount)
	assert.Equal(t, 2, loaded.Metadata.EdgeCount)
	assert.False(t, loaded.Metadata.GeneratedAt.IsZero())
	require.Len(t, loaded.Cycles, 1)
	assert.Equal(t, []string{"c.ts"}, loaded.Orphans)

	require.Len(t, loaded.Files, 3)
	assert.Equal(t, "b.ts", loaded.Files[1].Path)
	assert.Equal(t, 1, loaded.Files[1].Unresolved)
}

func TestStorage_LoadMissing(t *testing.T) {
	t.Parallel()

	storage, err := NewStorage(t.TempDir())
	require.NoError(t, err)

	data, err := storage.Load()
	require.NoError(t, err)
	assert.Nil(t, data)
	assert.False(t, storage.Exists())
}
