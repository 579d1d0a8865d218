package graph

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mvp-joe/project-remedy/internal/parsers"
)

// SourceFile is one scanned project file. Path is slash-separated and
// relative to the project root. Facts holds the parsed structure
// (exports, functions, classes, interfaces, type aliases, variables).
type SourceFile struct {
	Path    string             `json:"path"`
	Size    int64              `json:"size"`
	Hash    string             `json:"hash"`
	ModTime time.Time          `json:"mod_time"`
	Lines   int                `json:"lines"`
	Imports []Import           `json:"imports,omitempty"`
	Facts   *parsers.FileFacts `json:"-"`
	Content []byte             `json:"-"`
}

// Import is a parsed import with its resolved project target.
type Import struct {
	parsers.Import
	Target string `json:"target,omitempty"` // empty when external or unresolved
}

// Relative reports whether the specifier is a relative path.
func (i Import) Relative() bool {
	return strings.HasPrefix(i.Specifier, "./") || strings.HasPrefix(i.Specifier, "../") ||
		i.Specifier == "." || i.Specifier == ".."
}

// Resolved reports whether the import points at a scanned project file.
func (i Import) Resolved() bool {
	return i.Target != ""
}

// Exports returns the names exported by the file.
func (f *SourceFile) Exports() []parsers.Export {
	if f.Facts == nil {
		return nil
	}
	return f.Facts.Exports
}

// ExportsName reports whether the file exports the given name.
func (f *SourceFile) ExportsName(name string) bool {
	for _, exp := range f.Exports() {
		if exp.Name == name {
			return true
		}
	}
	return false
}

// LineText returns the text of a 1-based line, or "" when out of range.
func (f *SourceFile) LineText(line int) string {
	lines := strings.Split(string(f.Content), "\n")
	if line < 1 || line > len(lines) {
		return ""
	}
	return strings.TrimSuffix(lines[line-1], "\r")
}

// FileMap maps project-relative paths to scanned files.
type FileMap map[string]*SourceFile

// Paths returns the file paths in sorted order.
func (m FileMap) Paths() []string {
	paths := make([]string, 0, len(m))
	for p := range m {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// ScanFailure records a file that could not be read or parsed. Failures
// are skipped, never fatal to the scan.
type ScanFailure struct {
	Path string `json:"path"`
	Err  error  `json:"-"`
}

func (f ScanFailure) Error() string {
	return fmt.Sprintf("scan %s: %v", f.Path, f.Err)
}

// ScanResult is the outcome of a full project scan.
type ScanResult struct {
	Root     string
	Files    FileMap
	Failures []ScanFailure
	Duration time.Duration
}

// DependencyEdge is a resolved import from one project file to another.
type DependencyEdge struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Specifier string `json:"specifier"`
	Line      int    `json:"line"`
}

// Cycle is a closed chain of imports, listed in traversal order.
type Cycle struct {
	Files []string `json:"files"`
}

func (c Cycle) String() string {
	if len(c.Files) == 0 {
		return ""
	}
	return strings.Join(append(append([]string{}, c.Files...), c.Files[0]), " -> ")
}

// Impact describes which files are affected when a file changes.
type Impact struct {
	File    string   `json:"file"`
	Direct  []string `json:"direct"`
	Closure []string `json:"closure"`
	Score   int      `json:"score"`
}
