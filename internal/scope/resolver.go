package scope

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/mvp-joe/project-remedy/internal/diagnostic"
	"github.com/mvp-joe/project-remedy/internal/graph"
	"github.com/mvp-joe/project-remedy/internal/typemodel"
)

// DefaultContextLines is the half-width of the code window in a bundle.
const DefaultContextLines = 5

// ErrUnknownFile is returned for files that are neither scanned nor readable.
var ErrUnknownFile = errors.New("unknown file")

// Resolver answers scope questions over one analysis snapshot.
type Resolver struct {
	root         string
	files        graph.FileMap
	deps         *graph.DependencyGraph
	types        *typemodel.Model
	contextLines int
	cache        *TreeCache
	trees        map[string]*Node
	logger       *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithContextLines sets the window half-width.
func WithContextLines(k int) Option {
	return func(r *Resolver) {
		if k >= 0 {
			r.contextLines = k
		}
	}
}

// WithCache shares a tree cache across resolvers.
func WithCache(c *TreeCache) Option {
	return func(r *Resolver) {
		r.cache = c
	}
}

// NewResolver creates a resolver over a snapshot. root is the absolute
// project root used to read files outside the scanned set.
func NewResolver(root string, files graph.FileMap, deps *graph.DependencyGraph, types *typemodel.Model, opts ...Option) *Resolver {
	r := &Resolver{
		root:         root,
		files:        files,
		deps:         deps,
		types:        types,
		contextLines: DefaultContextLines,
		trees:        map[string]*Node{},
		logger:       slog.Default().With("component", "scope"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Tree returns the scope tree of a scanned file.
func (r *Resolver) Tree(path string) (*Node, error) {
	file, ok := r.files[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFile, path)
	}
	if tree, ok := r.trees[path]; ok {
		return tree, nil
	}
	if r.cache != nil {
		if tree, ok := r.cache.Get(path, file.Hash); ok {
			r.trees[path] = tree
			return tree, nil
		}
	}

	tree := BuildTree(file)
	r.trees[path] = tree
	if r.cache != nil {
		r.cache.Set(path, file.Hash, tree)
	}
	return tree, nil
}

// ContainingScope returns the innermost scope containing line.
func (r *Resolver) ContainingScope(path string, line int) (*Node, error) {
	tree, err := r.Tree(path)
	if err != nil {
		return nil, err
	}
	return FindContainingScope(tree, line), nil
}

// RelevantSymbols returns the symbols visible at line, innermost scope
// first. Shadowed outer declarations are omitted.
func (r *Resolver) RelevantSymbols(path string, line int) ([]Symbol, error) {
	scope, err := r.ContainingScope(path, line)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var out []Symbol
	for cur := scope; cur != nil; cur = cur.Parent {
		for _, s := range cur.Symbols {
			if seen[s.Name] {
				continue
			}
			seen[s.Name] = true
			out = append(out, s)
		}
	}
	return out, nil
}

// Reference is one use of a declared name resolved to its scope.
type Reference struct {
	Name  string     `json:"name"`
	Line  int        `json:"line"`
	Kind  SymbolKind `json:"kind"`
	Scope string     `json:"scope"`
}

var identifierPattern = regexp.MustCompile(`[A-Za-z_$][\w$]*`)

// References maps every reference to a name declared in the file to the
// scope that declares it, resolving from the innermost scope outward.
func (r *Resolver) References(path string) ([]Reference, error) {
	tree, err := r.Tree(path)
	if err != nil {
		return nil, err
	}

	declared := map[string]bool{}
	Walk(tree, func(n *Node) {
		for _, s := range n.Symbols {
			declared[s.Name] = true
		}
	})

	var refs []Reference
	lines := strings.Split(string(r.files[path].Content), "\n")
	for i, text := range lines {
		trimmed := strings.TrimSpace(text)
		if strings.HasPrefix(trimmed, "//") || strings.HasPrefix(trimmed, "*") {
			continue
		}
		line := i + 1
		scope := FindContainingScope(tree, line)
		for _, name := range identifierPattern.FindAllString(text, -1) {
			if !declared[name] {
				continue
			}
			sym, owner, ok := scope.Lookup(name)
			if !ok {
				continue
			}
			refs = append(refs, Reference{Name: name, Line: line, Kind: sym.Kind, Scope: owner.PathString()})
		}
	}
	return refs, nil
}

// ErrorContext assembles the bounded context bundle for a diagnostic.
// Diagnostics in files outside the scanned set (configuration files, for
// example) get a window read from disk and no structural context.
func (r *Resolver) ErrorContext(d diagnostic.Diagnostic) (*Bundle, error) {
	bundle := &Bundle{
		Diagnostic: d,
		File:       d.File,
		Line:       d.Line,
	}

	file, scanned := r.files[d.File]
	if !scanned {
		content, err := os.ReadFile(filepath.Join(r.root, filepath.FromSlash(d.File)))
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrUnknownFile, d.File, err)
		}
		bundle.Window = ExtractWindow(content, d.Line, r.contextLines)
		bundle.Scope = ScopeSummary{Kind: KindFile, Name: d.File, StartLine: 1, EndLine: bundle.Window.EndLine, Path: []string{d.File}}
		return bundle, nil
	}

	scope, err := r.ContainingScope(d.File, d.Line)
	if err != nil {
		return nil, err
	}
	bundle.Scope = ScopeSummary{
		Kind:      scope.Kind,
		Name:      scope.Name,
		StartLine: scope.StartLine,
		EndLine:   scope.EndLine,
		Path:      scope.Path(),
	}

	symbols, err := r.RelevantSymbols(d.File, d.Line)
	if err != nil {
		return nil, err
	}
	for _, s := range symbols {
		if s.Kind == SymbolImport {
			bundle.Imports = append(bundle.Imports, s)
		} else {
			bundle.Symbols = append(bundle.Symbols, s)
		}
	}

	if r.deps != nil {
		bundle.Dependencies = r.deps.Dependencies(d.File)
		bundle.Dependents = r.deps.Dependents(d.File)
	}

	bundle.Window = ExtractWindow(file.Content, d.Line, r.contextLines)
	bundle.Types = r.relatedTypes(d.File, bundle.Window)

	return bundle, nil
}

// relatedTypes returns types declared in the file plus types referenced
// in the window that resolve unambiguously from the file.
func (r *Resolver) relatedTypes(path string, w Window) []typemodel.Definition {
	if r.types == nil {
		return nil
	}

	seen := map[typemodel.Key]bool{}
	var out []typemodel.Definition
	add := func(d typemodel.Definition) {
		if !seen[d.Key()] {
			seen[d.Key()] = true
			out = append(out, d)
		}
	}

	for _, d := range r.types.DefinitionsInFile(path) {
		add(d)
	}

	names := map[string]bool{}
	for _, name := range identifierPattern.FindAllString(w.Text(), -1) {
		names[name] = true
	}
	sorted := make([]string, 0, len(names))
	for name := range names {
		sorted = append(sorted, name)
	}
	sort.Strings(sorted)

	for _, name := range sorted {
		def, err := r.types.Resolve(name, path)
		if err != nil {
			if errors.Is(err, typemodel.ErrAmbiguous) {
				r.logger.Debug("ambiguous type in context", "file", path, "type", name)
			}
			continue
		}
		add(def)
	}
	return out
}
