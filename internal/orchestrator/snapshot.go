package orchestrator

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

const (
	snapshotsDir = "snapshots"
	manifestName = "manifest.json"
)

// ErrSnapshotNotFound is returned when no snapshot exists for a run id.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// Manifest lists the files captured by a run snapshot.
type Manifest struct {
	RunID     string    `json:"run_id"`
	Root      string    `json:"root"`
	CreatedAt time.Time `json:"created_at"`
	Files     []string  `json:"files"`
}

// RunSnapshot is the pre-run copy of the project taken before any
// mutation.
type RunSnapshot struct {
	dir      string
	root     string
	manifest Manifest
	captured map[string]bool
}

// CreateSnapshot copies every file in files (relative to root) to
// backupDir/snapshots/runID.
func CreateSnapshot(root, backupDir, runID string, files []string) (*RunSnapshot, error) {
	s := &RunSnapshot{
		dir:  filepath.Join(backupDir, snapshotsDir, runID),
		root: root,
		manifest: Manifest{
			RunID:     runID,
			Root:      root,
			CreatedAt: time.Now().UTC(),
		},
		captured: map[string]bool{},
	}
	if err := os.MkdirAll(filepath.Join(s.dir, "files"), 0755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	sorted := append([]string(nil), files...)
	sort.Strings(sorted)
	for _, rel := range sorted {
		if err := s.capture(rel); err != nil {
			return nil, err
		}
	}
	if err := s.writeManifest(); err != nil {
		return nil, err
	}
	return s, nil
}

// Dir returns the snapshot directory.
func (s *RunSnapshot) Dir() string {
	return s.dir
}

// Files returns the captured paths.
func (s *RunSnapshot) Files() []string {
	return append([]string(nil), s.manifest.Files...)
}

// Ensure captures rel if it is not already part of the snapshot.
func (s *RunSnapshot) Ensure(rel string) error {
	if s.captured[rel] {
		return nil
	}
	if err := s.capture(rel); err != nil {
		return err
	}
	return s.writeManifest()
}

func (s *RunSnapshot) capture(rel string) error {
	data, err := os.ReadFile(filepath.Join(s.root, filepath.FromSlash(rel)))
	if err != nil {
		return fmt.Errorf("failed to snapshot %s: %w", rel, err)
	}
	dst := filepath.Join(s.dir, "files", filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to snapshot %s: %w", rel, err)
	}
	if err := os.WriteFile(dst, data, 0644); err != nil {
		return fmt.Errorf("failed to snapshot %s: %w", rel, err)
	}
	s.captured[rel] = true
	s.manifest.Files = append(s.manifest.Files, rel)
	return nil
}

func (s *RunSnapshot) writeManifest() error {
	data, err := json.MarshalIndent(s.manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot manifest: %w", err)
	}
	tmp := filepath.Join(s.dir, manifestName+".tmp")
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write snapshot manifest: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(s.dir, manifestName)); err != nil {
		return fmt.Errorf("failed to write snapshot manifest: %w", err)
	}
	return nil
}

// Restore writes every captured file back into the project.
func (s *RunSnapshot) Restore() ([]string, error) {
	return restoreFrom(s.dir, s.root, s.manifest)
}

// RestoreSnapshot restores the snapshot of runID into root.
func RestoreSnapshot(root, backupDir, runID string) ([]string, error) {
	dir := filepath.Join(backupDir, snapshotsDir, runID)
	data, err := os.ReadFile(filepath.Join(dir, manifestName))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot manifest: %w", err)
	}
	return restoreFrom(dir, root, m)
}

func restoreFrom(dir, root string, m Manifest) ([]string, error) {
	var restored []string
	for _, rel := range m.Files {
		data, err := os.ReadFile(filepath.Join(dir, "files", filepath.FromSlash(rel)))
		if err != nil {
			return restored, fmt.Errorf("failed to read snapshot of %s: %w", rel, err)
		}
		dst := filepath.Join(root, filepath.FromSlash(rel))
		current, err := os.ReadFile(dst)
		if err == nil && string(current) == string(data) {
			continue
		}
		if err := writePreservingMode(dst, data); err != nil {
			return restored, err
		}
		restored = append(restored, rel)
	}
	return restored, nil
}

// ListSnapshots returns the manifests under backupDir, newest first.
func ListSnapshots(backupDir string) ([]Manifest, error) {
	entries, err := os.ReadDir(filepath.Join(backupDir, snapshotsDir))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}

	var out []Manifest
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(backupDir, snapshotsDir, e.Name(), manifestName))
		if err != nil {
			continue
		}
		var m Manifest
		if err := json.Unmarshal(data, &m); err != nil {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// writePreservingMode writes data to path keeping its permission bits,
// or 0644 for a new file.
func writePreservingMode(path string, data []byte) error {
	mode := os.FileMode(0644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, mode); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
