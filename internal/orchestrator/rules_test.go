package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/project-remedy/internal/analysis"
	"github.com/mvp-joe/project-remedy/internal/diagnostic"
	"github.com/mvp-joe/project-remedy/internal/graph"
)

// Test Plan for rule generators:
// - relativeSpecifier reaches siblings, parents and index directories
// - AddMissingImport imports a name exported by exactly one other file
// - AddMissingImport declines when the name has zero or several providers
// - FixModulePath rewrites a specifier to the single near-match file
// - FixModulePath declines for package specifiers and ambiguous matches

func scanFiles(t *testing.T, files map[string]string) graph.FileMap {
	t.Helper()
	root := writeProject(t, files)
	b, err := analysis.NewBuilder(root, analysis.Options{Code: []string{"**/*.ts"}})
	require.NoError(t, err)
	t.Cleanup(b.Close)
	snap, err := b.Build(context.Background())
	require.NoError(t, err)
	return snap.Files
}

func TestRelativeSpecifier(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from, target, want string
	}{
		{"app.ts", "logger.ts", "./logger"},
		{"src/app.ts", "src/logger.ts", "./logger"},
		{"src/app.ts", "lib/log.ts", "../lib/log"},
		{"src/a/b.ts", "src/c/d.tsx", "../c/d"},
		{"src/app.ts", "src/util/index.ts", "./util"},
		{"app.ts", "src/types.d.ts", "./src/types"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, relativeSpecifier(tt.from, tt.target), "%s -> %s", tt.from, tt.target)
	}
}

func TestAddMissingImport(t *testing.T) {
	t.Parallel()

	files := scanFiles(t, map[string]string{
		"src/app.ts":      "const l = new Logger();\n",
		"src/log/main.ts": "export class Logger {}\n",
		"src/a.ts":        "export const Twice = 1;\n",
		"src/b.ts":        "export const Twice = 2;\n",
	})

	edit, ok := AddMissingImport(RuleInput{
		Diagnostic: diagnostic.Diagnostic{File: "src/app.ts", Line: 1, Message: "Cannot find name 'Logger'."},
		Files:      files,
	})
	require.True(t, ok)
	assert.Equal(t, "const l = new Logger();\n", edit.Original)
	assert.Equal(t, "import { Logger } from './log/main';\nconst l = new Logger();\n", edit.Replacement)

	_, ok = AddMissingImport(RuleInput{
		Diagnostic: diagnostic.Diagnostic{File: "src/app.ts", Line: 1, Message: "Cannot find name 'Twice'."},
		Files:      files,
	})
	assert.False(t, ok, "ambiguous provider")

	_, ok = AddMissingImport(RuleInput{
		Diagnostic: diagnostic.Diagnostic{File: "src/app.ts", Line: 1, Message: "Cannot find name 'Nowhere'."},
		Files:      files,
	})
	assert.False(t, ok)

	_, ok = AddMissingImport(RuleInput{
		Diagnostic: diagnostic.Diagnostic{File: "src/app.ts", Line: 1, Message: "';' expected."},
		Files:      files,
	})
	assert.False(t, ok)
}

func TestFixModulePath(t *testing.T) {
	t.Parallel()

	files := scanFiles(t, map[string]string{
		"src/x.ts":            "import { u } from './util';\nimport { L } from \"../Logger\";\nimport x from 'lodash';\n",
		"src/utils.ts":        "export const u = 1;\n",
		"logger.ts":           "export const L = 1;\n",
		"src/y.ts":            "import { w } from './widget';\n",
		"src/widget/index.ts": "export const w = 1;\n",
		"src/widgets.ts":      "export const w = 1;\n",
	})

	edit, ok := FixModulePath(RuleInput{
		Diagnostic: diagnostic.Diagnostic{File: "src/x.ts", Line: 1, Message: "Cannot find module './util' or its corresponding type declarations."},
		Files:      files,
	})
	require.True(t, ok)
	assert.Equal(t, "import { u } from './util';", edit.Original)
	assert.Equal(t, "import { u } from './utils';", edit.Replacement)

	edit, ok = FixModulePath(RuleInput{
		Diagnostic: diagnostic.Diagnostic{File: "src/x.ts", Line: 2, Message: "Cannot find module '../Logger'."},
		Files:      files,
	})
	require.True(t, ok)
	assert.Equal(t, `import { L } from "../logger";`, edit.Replacement)

	_, ok = FixModulePath(RuleInput{
		Diagnostic: diagnostic.Diagnostic{File: "src/x.ts", Line: 3, Message: "Cannot find module 'lodash'."},
		Files:      files,
	})
	assert.False(t, ok, "package specifier")

	_, ok = FixModulePath(RuleInput{
		Diagnostic: diagnostic.Diagnostic{File: "src/x.ts", Line: 2, Message: "Cannot find module './util'."},
		Files:      files,
	})
	assert.False(t, ok, "specifier not on the reported line")

	_, ok = FixModulePath(RuleInput{
		Diagnostic: diagnostic.Diagnostic{File: "src/y.ts", Line: 1, Message: "Cannot find module './widget'."},
		Files:      files,
	})
	assert.False(t, ok, "two near matches")
}
