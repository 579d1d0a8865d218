package graph

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	// GraphFileName is the name of the graph snapshot file
	GraphFileName = "dependency-graph.json"
	// GraphVersion is the current version of the snapshot format
	GraphVersion = "1.0"
)

// GraphData is the persisted form of a dependency graph analysis.
type GraphData struct {
	Metadata GraphMetadata    `json:"metadata"`
	Files    []FileSummary    `json:"files"`
	Edges    []DependencyEdge `json:"edges"`
	Cycles   []Cycle          `json:"cycles"`
	Orphans  []string         `json:"orphans"`
}

// GraphMetadata describes a graph snapshot.
type GraphMetadata struct {
	Version     string    `json:"version"`
	GeneratedAt time.Time `json:"generated_at"`
	FileCount   int       `json:"file_count"`
	EdgeCount   int       `json:"edge_count"`
}

// FileSummary is the per-file portion of a snapshot.
type FileSummary struct {
	Path       string `json:"path"`
	Hash       string `json:"hash"`
	Lines      int    `json:"lines"`
	Imports    int    `json:"imports"`
	Unresolved int    `json:"unresolved"`
	Exports    int    `json:"exports"`
}

// NewGraphData summarizes files and their graph for persistence.
func NewGraphData(files FileMap, d *DependencyGraph) *GraphData {
	data := &GraphData{
		Files:   []FileSummary{},
		Edges:   d.Edges(),
		Cycles:  DetectCycles(d),
		Orphans: FindOrphans(d),
	}
	for _, p := range files.Paths() {
		f := files[p]
		summary := FileSummary{
			Path:    p,
			Hash:    f.Hash,
			Lines:   f.Lines,
			Imports: len(f.Imports),
			Exports: len(f.Exports()),
		}
		for _, imp := range f.Imports {
			if imp.Relative() && !imp.Resolved() {
				summary.Unresolved++
			}
		}
		data.Files = append(data.Files, summary)
	}
	if data.Edges == nil {
		data.Edges = []DependencyEdge{}
	}
	return data
}

// Storage handles reading and writing graph snapshots to disk.
type Storage interface {
	// Load loads the graph from disk. Returns nil if file doesn't exist.
	Load() (*GraphData, error)

	// Save saves the graph to disk using atomic write pattern.
	Save(data *GraphData) error

	// Exists checks if the graph file exists.
	Exists() bool
}

// storage implements Storage with atomic write support.
type storage struct {
	dir string
}

// NewStorage creates a new graph storage instance rooted at dir.
func NewStorage(dir string) (Storage, error) {
	if err := os.MkdirAll(filepath.Join(dir, ".tmp"), 0755); err != nil {
		return nil, fmt.Errorf("failed to create graph directory: %w", err)
	}
	return &storage{dir: dir}, nil
}

// Load loads the graph data from disk.
func (s *storage) Load() (*GraphData, error) {
	raw, err := os.ReadFile(s.path())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read graph file: %w", err)
	}

	var data GraphData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to parse graph JSON: %w", err)
	}
	return &data, nil
}

// Save saves the graph data to disk using atomic write pattern.
func (s *storage) Save(data *GraphData) error {
	data.Metadata.Version = GraphVersion
	data.Metadata.GeneratedAt = time.Now()
	data.Metadata.FileCount = len(data.Files)
	data.Metadata.EdgeCount = len(data.Edges)

	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal graph data: %w", err)
	}

	tempPath := filepath.Join(s.dir, ".tmp", GraphFileName)
	if err := os.WriteFile(tempPath, raw, 0644); err != nil {
		return fmt.Errorf("failed to write temp graph file: %w", err)
	}

	if err := os.Rename(tempPath, s.path()); err != nil {
		return fmt.Errorf("failed to rename temp graph file: %w", err)
	}
	return nil
}

// Exists checks if the graph file exists.
func (s *storage) Exists() bool {
	_, err := os.Stat(s.path())
	return err == nil
}

func (s *storage) path() string {
	return filepath.Join(s.dir, GraphFileName)
}
