package graph

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mvp-joe/project-remedy/internal/parsers"
	"github.com/stretchr/testify/require"
)

// fileWithImports builds an in-memory SourceFile importing the given specifiers.
func fileWithImports(path string, specifiers ...string) *SourceFile {
	f := &SourceFile{Path: path, Facts: &parsers.FileFacts{}}
	for i, spec := range specifiers {
		f.Imports = append(f.Imports, Import{Import: parsers.Import{
			Specifier: spec,
			Kind:      parsers.ImportStatic,
			Line:      i + 1,
		}})
	}
	return f
}

// buildGraph builds a graph from files given as path -> specifiers.
func buildGraph(t *testing.T, spec map[string][]string) (FileMap, *DependencyGraph) {
	t.Helper()
	files := FileMap{}
	for path, imports := range spec {
		files[path] = fileWithImports(path, imports...)
	}
	g, err := BuildGraph(files)
	require.NoError(t, err)
	return files, g
}

// writeProject writes files relative to a temp root and returns the root.
func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		abs := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0755))
		require.NoError(t, os.WriteFile(abs, []byte(content), 0644))
	}
	return root
}
