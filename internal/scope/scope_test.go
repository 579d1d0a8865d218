package scope

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/mvp-joe/project-remedy/internal/diagnostic"
	"github.com/mvp-joe/project-remedy/internal/graph"
	"github.com/mvp-joe/project-remedy/internal/typemodel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for Scope Resolver:
// - Scope tree nests classes, methods, functions and inner arrow functions
// - Containing scope is the innermost range around a line
// - Symbols are assigned to their declaring scope; visibility walks outward
// - References resolve to the declaring scope
// - Context bundle carries scope, symbols, imports, graph neighbours, types and a clamped window
// - Files outside the scanned set still get a window
// - Trees are cached by path and content hash across resolvers

const serviceSource = `import { Logger } from './logger';
import * as fs from 'fs';

const VERSION = '1.0';

export class Service {
  private name: string = 'svc';

  run(input: string, count?: number): number {
    const total = count ?? 0;
    return total + input.length;
  }
}

export function helper(value: number): number {
  const doubled = value * 2;
  const inner = (x: number) => {
    const tripled = x * 3;
    return tripled;
  };
  return inner(doubled);
}
`

const loggerSource = `export interface Logger {
  log(msg: string): void;
}
`

type fixture struct {
	root     string
	resolver *Resolver
	cache    *TreeCache
	files    graph.FileMap
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "service.ts"), []byte(serviceSource), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "logger.ts"), []byte(loggerSource), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "tsconfig.json"), []byte("{\n  \"compilerOptions\": {\n    \"strict\": true\n  }\n}\n"), 0644))

	scanner, err := graph.NewScanner(root, []string{"**/*.ts"}, nil)
	require.NoError(t, err)
	result, err := scanner.Scan(context.Background())
	require.NoError(t, err)
	deps, err := graph.BuildGraph(result.Files)
	require.NoError(t, err)
	types := typemodel.Build(result.Files, deps, typemodel.DefaultSeverityBands())

	cache, err := NewTreeCache(16)
	require.NoError(t, err)
	t.Cleanup(cache.Close)

	opts = append([]Option{WithCache(cache)}, opts...)
	return &fixture{
		root:     root,
		resolver: NewResolver(root, result.Files, deps, types, opts...),
		cache:    cache,
		files:    result.Files,
	}
}

func symbolNames(symbols []Symbol) []string {
	names := make([]string, 0, len(symbols))
	for _, s := range symbols {
		names = append(names, s.Name)
	}
	return names
}

func TestBuildTree_Nesting(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	tree, err := f.resolver.Tree("src/service.ts")
	require.NoError(t, err)

	assert.Equal(t, KindFile, tree.Kind)
	assert.Equal(t, 1, tree.StartLine)
	assert.Equal(t, 22, tree.EndLine)
	require.Len(t, tree.Children, 2)

	service := tree.Children[0]
	assert.Equal(t, KindClass, service.Kind)
	assert.Equal(t, "Service", service.Name)
	require.Len(t, service.Children, 1)
	assert.Equal(t, KindMethod, service.Children[0].Kind)
	assert.Equal(t, "run", service.Children[0].Name)

	helper := tree.Children[1]
	assert.Equal(t, KindFunction, helper.Kind)
	require.Len(t, helper.Children, 1)
	assert.Equal(t, "inner", helper.Children[0].Name)
	assert.Equal(t, 17, helper.Children[0].StartLine)
	assert.Equal(t, 20, helper.Children[0].EndLine)
}

func TestBuildTree_Symbols(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	tree, err := f.resolver.Tree("src/service.ts")
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"Service", "helper", "Logger", "fs", "VERSION"}, symbolNames(tree.Symbols))

	run := tree.Children[0].Children[0]
	assert.ElementsMatch(t, []string{"input", "count", "total"}, symbolNames(run.Symbols))

	helper := tree.Children[1]
	assert.ElementsMatch(t, []string{"value", "inner", "doubled"}, symbolNames(helper.Symbols))

	sym, ok := helper.Declares("inner")
	require.True(t, ok)
	assert.Equal(t, SymbolFunction, sym.Kind)
}

func TestFindContainingScope(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	tests := []struct {
		line int
		want []string
	}{
		{1, []string{"src/service.ts"}},
		{7, []string{"src/service.ts", "Service"}},
		{11, []string{"src/service.ts", "Service", "run"}},
		{16, []string{"src/service.ts", "helper"}},
		{18, []string{"src/service.ts", "helper", "inner"}},
		{99, []string{"src/service.ts"}},
	}
	for _, tt := range tests {
		scope, err := f.resolver.ContainingScope("src/service.ts", tt.line)
		require.NoError(t, err)
		assert.Equal(t, tt.want, scope.Path(), "line %d", tt.line)
	}

	_, err := f.resolver.ContainingScope("src/missing.ts", 1)
	assert.ErrorIs(t, err, ErrUnknownFile)
}

func TestRelevantSymbols(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	symbols, err := f.resolver.RelevantSymbols("src/service.ts", 18)
	require.NoError(t, err)

	names := symbolNames(symbols)
	assert.ElementsMatch(t, []string{
		"x", "tripled",
		"value", "inner", "doubled",
		"Service", "helper", "Logger", "fs", "VERSION",
	}, names)
	assert.Equal(t, "x", names[0])
}

func TestReferences(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	refs, err := f.resolver.References("src/service.ts")
	require.NoError(t, err)

	var total []Reference
	for _, r := range refs {
		if r.Name == "total" {
			total = append(total, r)
		}
	}
	require.Len(t, total, 2)
	assert.Equal(t, 10, total[0].Line)
	assert.Equal(t, 11, total[1].Line)
	assert.Equal(t, "src/service.ts.Service.run", total[1].Scope)
	assert.Equal(t, SymbolVariable, total[1].Kind)
}

func TestErrorContext(t *testing.T) {
	t.Parallel()

	f := newFixture(t, WithContextLines(2))
	d := diagnostic.Diagnostic{File: "src/service.ts", Line: 10, Code: "TS2322", Message: "Type 'string' is not assignable to type 'number'."}

	bundle, err := f.resolver.ErrorContext(d)
	require.NoError(t, err)

	assert.Equal(t, KindMethod, bundle.Scope.Kind)
	assert.Equal(t, []string{"src/service.ts", "Service", "run"}, bundle.Scope.Path)
	assert.Equal(t, 8, bundle.Window.StartLine)
	assert.Equal(t, 12, bundle.Window.EndLine)
	assert.Equal(t, "    const total = count ?? 0;", bundle.TargetLine())
	assert.ElementsMatch(t, []string{"Logger", "fs"}, symbolNames(bundle.Imports))
	assert.Contains(t, symbolNames(bundle.Symbols), "input")
	assert.Equal(t, []string{"src/logger.ts"}, bundle.Dependencies)
	assert.Empty(t, bundle.Dependents)

	require.NotEmpty(t, bundle.Types)
	assert.Equal(t, "Service", bundle.Types[0].Name)

	rendered := bundle.Render()
	assert.Contains(t, rendered, "Error TS2322 at line 10")
	assert.Contains(t, rendered, ">   10 |     const total = count ?? 0;")
	assert.Contains(t, bundle.Summary(), "src/service.ts:10")
}

func TestErrorContext_UnscannedFile(t *testing.T) {
	t.Parallel()

	f := newFixture(t, WithContextLines(1))
	bundle, err := f.resolver.ErrorContext(diagnostic.Diagnostic{File: "tsconfig.json", Line: 3, Code: "TS5023"})
	require.NoError(t, err)
	assert.Equal(t, KindFile, bundle.Scope.Kind)
	assert.Equal(t, 2, bundle.Window.StartLine)
	assert.Equal(t, 4, bundle.Window.EndLine)

	_, err = f.resolver.ErrorContext(diagnostic.Diagnostic{File: "nope.ts", Line: 1})
	assert.ErrorIs(t, err, ErrUnknownFile)
}

func TestExtractWindow_Clamps(t *testing.T) {
	t.Parallel()

	content := []byte("a\nb\nc\nd\n")
	w := ExtractWindow(content, 1, 5)
	assert.Equal(t, 1, w.StartLine)
	assert.Equal(t, 4, w.EndLine)
	assert.Equal(t, "a\nb\nc\nd", w.Text())

	w = ExtractWindow(content, 4, 1)
	assert.Equal(t, []string{"c", "d"}, w.Lines)

	line, ok := w.Line(4)
	assert.True(t, ok)
	assert.Equal(t, "d", line)
	_, ok = w.Line(1)
	assert.False(t, ok)

	assert.Empty(t, ExtractWindow(nil, 1, 2).Lines)
}

func TestTreeCache_SharedAcrossResolvers(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	first, err := f.resolver.Tree("src/service.ts")
	require.NoError(t, err)

	other := NewResolver(f.root, f.files, nil, nil, WithCache(f.cache))
	second, err := other.Tree("src/service.ts")
	require.NoError(t, err)
	assert.Same(t, first, second)

	cached, ok := f.cache.Get("src/service.ts", f.files["src/service.ts"].Hash)
	require.True(t, ok)
	assert.Same(t, first, cached)

	_, ok = f.cache.Get("src/service.ts", "stale-hash")
	assert.False(t, ok)
}
