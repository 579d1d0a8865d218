package orchestrator

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mvp-joe/project-remedy/internal/git"
)

const reportsDir = "reports"

// Report is the persisted record of a run.
type Report struct {
	RunID      string     `json:"run_id"`
	Root       string     `json:"root"`
	Git        git.Info   `json:"git"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at"`
	Phase      Phase      `json:"phase"`
	DryRun     bool       `json:"dry_run"`
	RolledBack bool       `json:"rolled_back"`
	Error      string     `json:"error,omitempty"`
	Outcomes   []*Outcome `json:"outcomes"`
	Summary    Summary    `json:"summary"`
	Path       string     `json:"-"`
}

func newReport(st *RunState, info git.Info) *Report {
	outcomes := st.Outcomes
	if outcomes == nil {
		outcomes = []*Outcome{}
	}
	return &Report{
		RunID:      st.RunID,
		Root:       st.Root,
		Git:        info,
		StartedAt:  st.StartedAt,
		FinishedAt: st.FinishedAt,
		Phase:      st.Phase,
		DryRun:     st.DryRun,
		RolledBack: st.RolledBack,
		Error:      st.Error,
		Outcomes:   outcomes,
		Summary:    st.Summarize(),
	}
}

// ReportPath returns where the report for runID is stored.
func ReportPath(backupDir, runID string) string {
	return filepath.Join(backupDir, reportsDir, runID+".json")
}

// SaveReport writes r atomically and records its path.
func SaveReport(backupDir string, r *Report) error {
	dir := filepath.Join(backupDir, reportsDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create reports directory: %w", err)
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	path := ReportPath(backupDir, r.RunID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	r.Path = path
	return nil
}

// LoadReport reads the report for runID.
func LoadReport(backupDir, runID string) (*Report, error) {
	path := ReportPath(backupDir, runID)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report: %w", err)
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	r.Path = path
	return &r, nil
}
