package graph

import (
	"errors"
	"fmt"
	"sort"

	"github.com/dominikbraun/graph"
)

// DependencyGraph is the directed file-level import graph with forward
// and reverse adjacency.
type DependencyGraph struct {
	g       graph.Graph[string, string]
	files   []string
	edges   []DependencyEdge
	forward map[string][]string
	reverse map[string][]string
}

// BuildGraph resolves every import in files against the scanned set,
// records the target on each Import, and builds the dependency graph.
// Unresolved imports produce no edge.
func BuildGraph(files FileMap) (*DependencyGraph, error) {
	g := graph.New(graph.StringHash, graph.Directed())

	paths := files.Paths()
	for _, p := range paths {
		if err := g.AddVertex(p); err != nil {
			return nil, fmt.Errorf("failed to add file %s: %w", p, err)
		}
	}

	exists := func(p string) bool {
		_, ok := files[p]
		return ok
	}

	var edges []DependencyEdge
	for _, p := range paths {
		file := files[p]
		for i := range file.Imports {
			imp := &file.Imports[i]
			imp.Target = ResolveSpecifier(p, imp.Specifier, exists)
			if imp.Target == "" {
				continue
			}

			err := g.AddEdge(p, imp.Target)
			if errors.Is(err, graph.ErrEdgeAlreadyExists) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("failed to add edge %s -> %s: %w", p, imp.Target, err)
			}
			edges = append(edges, DependencyEdge{
				From:      p,
				To:        imp.Target,
				Specifier: imp.Specifier,
				Line:      imp.Line,
			})
		}
	}

	return newDependencyGraph(g, paths, edges)
}

func newDependencyGraph(g graph.Graph[string, string], files []string, edges []DependencyEdge) (*DependencyGraph, error) {
	adjacency, err := g.AdjacencyMap()
	if err != nil {
		return nil, fmt.Errorf("failed to read adjacency map: %w", err)
	}
	predecessors, err := g.PredecessorMap()
	if err != nil {
		return nil, fmt.Errorf("failed to read predecessor map: %w", err)
	}

	return &DependencyGraph{
		g:       g,
		files:   files,
		edges:   edges,
		forward: flatten(adjacency),
		reverse: flatten(predecessors),
	}, nil
}

func flatten(m map[string]map[string]graph.Edge[string]) map[string][]string {
	out := make(map[string][]string, len(m))
	for from, targets := range m {
		list := make([]string, 0, len(targets))
		for to := range targets {
			list = append(list, to)
		}
		sort.Strings(list)
		out[from] = list
	}
	return out
}

// Files returns every file in the graph in sorted order.
func (d *DependencyGraph) Files() []string {
	return d.files
}

// Edges returns the resolved import edges.
func (d *DependencyGraph) Edges() []DependencyEdge {
	return d.edges
}

// Has reports whether file is a node of the graph.
func (d *DependencyGraph) Has(file string) bool {
	_, ok := d.forward[file]
	return ok
}

// Dependencies returns the files imported by file.
func (d *DependencyGraph) Dependencies(file string) []string {
	return d.forward[file]
}

// Dependents returns the files that import file.
func (d *DependencyGraph) Dependents(file string) []string {
	return d.reverse[file]
}
