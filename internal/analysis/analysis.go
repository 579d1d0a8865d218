// Package analysis derives the read-only project model (files,
// dependency graph, type model, scope resolver) from disk.
package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/mvp-joe/project-remedy/internal/graph"
	"github.com/mvp-joe/project-remedy/internal/scope"
	"github.com/mvp-joe/project-remedy/internal/typemodel"
)

// Options controls discovery and model construction.
type Options struct {
	Code         []string
	Ignore       []string
	Bands        typemodel.SeverityBands
	ContextLines int
}

// Snapshot is one consistent view of the project. It is never mutated
// after Build returns.
type Snapshot struct {
	Root     string
	Files    graph.FileMap
	Graph    *graph.DependencyGraph
	Types    *typemodel.Model
	Scopes   *scope.Resolver
	Failures []graph.ScanFailure
}

// Builder re-derives snapshots from disk. Scope trees are cached across
// builds by path and content hash.
type Builder struct {
	root     string
	opts     Options
	cache    *scope.TreeCache
	progress graph.ProgressReporter
	logger   *slog.Logger
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithProgress reports scan progress.
func WithProgress(p graph.ProgressReporter) BuilderOption {
	return func(b *Builder) { b.progress = p }
}

// NewBuilder creates a builder for root.
func NewBuilder(root string, opts Options, bopts ...BuilderOption) (*Builder, error) {
	cache, err := scope.NewTreeCache(scope.DefaultCacheSize)
	if err != nil {
		return nil, err
	}
	if opts.Bands == (typemodel.SeverityBands{}) {
		opts.Bands = typemodel.DefaultSeverityBands()
	}
	if opts.ContextLines <= 0 {
		opts.ContextLines = scope.DefaultContextLines
	}

	b := &Builder{
		root:     root,
		opts:     opts,
		cache:    cache,
		progress: graph.NoOpProgressReporter{},
		logger:   slog.Default().With("component", "analysis"),
	}
	for _, opt := range bopts {
		opt(b)
	}
	return b, nil
}

// Build scans the project and constructs every derived model.
func (b *Builder) Build(ctx context.Context) (*Snapshot, error) {
	scanner, err := graph.NewScanner(b.root, b.opts.Code, b.opts.Ignore,
		graph.WithProgress(b.progress),
		graph.WithLogger(b.logger))
	if err != nil {
		return nil, err
	}

	result, err := scanner.Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}

	deps, err := graph.BuildGraph(result.Files)
	if err != nil {
		return nil, fmt.Errorf("failed to build dependency graph: %w", err)
	}

	types := typemodel.Build(result.Files, deps, b.opts.Bands)
	resolver := scope.NewResolver(result.Root, result.Files, deps, types,
		scope.WithContextLines(b.opts.ContextLines),
		scope.WithCache(b.cache))

	b.logger.Debug("snapshot built",
		"files", len(result.Files),
		"edges", len(deps.Edges()),
		"types", len(types.Definitions()),
		"failures", len(result.Failures))

	return &Snapshot{
		Root:     result.Root,
		Files:    result.Files,
		Graph:    deps,
		Types:    types,
		Scopes:   resolver,
		Failures: result.Failures,
	}, nil
}

// Close releases the scope cache.
func (b *Builder) Close() {
	b.cache.Close()
}

// Summary is the analyze report for a snapshot.
type Summary struct {
	Root        string              `json:"root"`
	Files       int                 `json:"files"`
	Edges       int                 `json:"edges"`
	Types       int                 `json:"types"`
	Cycles      []string            `json:"cycles"`
	Orphans     []string            `json:"orphans"`
	Ambiguities map[string][]string `json:"ambiguities,omitempty"`
	Failures    []string            `json:"failures,omitempty"`
}

// Summarize reports the structural findings of s.
func (s *Snapshot) Summarize() Summary {
	sum := Summary{
		Root:        s.Root,
		Files:       len(s.Files),
		Edges:       len(s.Graph.Edges()),
		Types:       len(s.Types.Definitions()),
		Cycles:      []string{},
		Orphans:     graph.FindOrphans(s.Graph),
		Ambiguities: s.Types.Ambiguities(),
	}
	for _, c := range graph.DetectCycles(s.Graph) {
		sum.Cycles = append(sum.Cycles, c.String())
	}
	if sum.Orphans == nil {
		sum.Orphans = []string{}
	}
	for _, f := range s.Failures {
		sum.Failures = append(sum.Failures, f.Error())
	}
	sort.Strings(sum.Failures)
	return sum
}

// SaveGraph writes the dependency graph snapshot to dir.
func (s *Snapshot) SaveGraph(dir string) error {
	store, err := graph.NewStorage(dir)
	if err != nil {
		return err
	}
	return store.Save(graph.NewGraphData(s.Files, s.Graph))
}
