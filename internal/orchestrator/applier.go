package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mvp-joe/project-remedy/internal/checker"
	"github.com/mvp-joe/project-remedy/internal/diagnostic"
)

var (
	// ErrSpanNotFound means the proposal's original text is not in the file.
	ErrSpanNotFound = errors.New("original span not found in file")
	// ErrEmptySpan means the proposal has no original text to replace.
	ErrEmptySpan = errors.New("proposal has an empty original span")
	// ErrNotVerified means the post-edit check did not confirm the fix.
	ErrNotVerified = errors.New("fix not confirmed by type check")
)

const filesBackupDir = "files"

// Verification is the result of one apply-and-check cycle.
type Verification struct {
	Check  *checker.Result
	Diff   string
	Before int
	After  int
}

// Applier performs the backup, replace, check and restore protocol for a
// single proposal.
type Applier struct {
	root      string
	backupDir string
	checker   checker.Checker
	snapshot  *RunSnapshot
	logger    *slog.Logger
}

// NewApplier creates an applier. snapshot may be nil.
func NewApplier(root, backupDir string, c checker.Checker, snapshot *RunSnapshot) *Applier {
	return &Applier{
		root:      root,
		backupDir: backupDir,
		checker:   c,
		snapshot:  snapshot,
		logger:    slog.Default().With("component", "applier"),
	}
}

// Apply mutates the target file with p and re-checks the whole project.
// The edit is kept only when the target diagnostic disappeared and the
// total count strictly decreased; otherwise the file is restored to its
// exact previous bytes. before is the diagnostic list the proposal was
// made against.
//
// Errors are *Failure values of kind apply (no write happened) or
// verification (the write was undone). A failed restore is a run failure.
func (a *Applier) Apply(ctx context.Context, p *FixProposal, target diagnostic.Diagnostic, before []diagnostic.Diagnostic) (*Verification, error) {
	if err := p.consume(); err != nil {
		return nil, fail(FailureApply, err)
	}
	if p.Original == "" {
		return nil, fail(FailureApply, ErrEmptySpan)
	}

	path := filepath.Join(a.root, filepath.FromSlash(p.TargetFile))
	original, err := os.ReadFile(path)
	if err != nil {
		return nil, fail(FailureApply, fmt.Errorf("failed to read %s: %w", p.TargetFile, err))
	}

	updated, ok := p.Apply(string(original))
	if !ok {
		return nil, fail(FailureApply, fmt.Errorf("%w: %s", ErrSpanNotFound, p.TargetFile))
	}

	if a.snapshot != nil {
		if err := a.snapshot.Ensure(p.TargetFile); err != nil {
			return nil, fail(FailureRun, err)
		}
	}
	if err := a.backup(p.TargetFile, original); err != nil {
		return nil, fail(FailureRun, err)
	}

	v := &Verification{
		Diff:   unifiedDiff(p.TargetFile, string(original), updated),
		Before: len(before),
	}

	restored := false
	defer func() {
		if r := recover(); r != nil {
			if !restored {
				a.restore(path, original)
			}
			panic(r)
		}
	}()

	if err := writePreservingMode(path, []byte(updated)); err != nil {
		restored = true
		if rerr := a.restore(path, original); rerr != nil {
			return nil, fail(FailureRun, rerr)
		}
		return nil, fail(FailureApply, err)
	}

	a.logger.Debug("applied proposal", "file", p.TargetFile, "proposal", p.ID, "origin", p.Origin)

	result, err := a.checker.Check(ctx)
	if err == nil {
		v.Check = result
		v.After = result.Count()
		if !resolved(before, result.Diagnostics, target) || v.After >= v.Before {
			err = fmt.Errorf("%w: %d -> %d errors", ErrNotVerified, v.Before, v.After)
		}
	}
	if err != nil {
		restored = true
		if rerr := a.restore(path, original); rerr != nil {
			return v, fail(FailureRun, rerr)
		}
		a.logger.Warn("fix rolled back", "file", target.File, "line", target.Line, "code", target.Code, "error", err)
		return v, fail(FailureVerification, err)
	}

	return v, nil
}

// backup stores the pre-image of rel under backupDir/files.
func (a *Applier) backup(rel string, content []byte) error {
	dst := filepath.Join(a.backupDir, filesBackupDir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create backup directory: %w", err)
	}
	if err := os.WriteFile(dst, content, 0644); err != nil {
		return fmt.Errorf("failed to back up %s: %w", rel, err)
	}
	return nil
}

func (a *Applier) restore(path string, content []byte) error {
	if err := writePreservingMode(path, content); err != nil {
		a.logger.Error("failed to restore file", "path", path, "error", err)
		return fmt.Errorf("failed to restore %s: %w", path, err)
	}
	return nil
}

// resolved reports whether fewer instances of target remain.
func resolved(before, after []diagnostic.Diagnostic, target diagnostic.Diagnostic) bool {
	return countSame(after, target) < countSame(before, target)
}

func countSame(diags []diagnostic.Diagnostic, target diagnostic.Diagnostic) int {
	n := 0
	for _, d := range diags {
		if d.SameProblem(target) {
			n++
		}
	}
	return n
}
