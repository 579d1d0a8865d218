// Package orchestrator drives a repair run: it checks the project,
// categorizes diagnostics, sources one proposal per diagnostic, applies
// accepted proposals one at a time under an exact backup and rollback
// contract, and reports every outcome.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mvp-joe/project-remedy/internal/analysis"
	"github.com/mvp-joe/project-remedy/internal/checker"
	"github.com/mvp-joe/project-remedy/internal/diagnostic"
	"github.com/mvp-joe/project-remedy/internal/drafter"
	"github.com/mvp-joe/project-remedy/internal/git"
	"github.com/mvp-joe/project-remedy/internal/knowledge"
	"github.com/mvp-joe/project-remedy/internal/scope"
)

// DefaultAutoApplyConfidence is the confidence a low-risk proposal must
// exceed to be applied without approval.
const DefaultAutoApplyConfidence = 0.8

// Config holds run settings.
type Config struct {
	Root                string
	BackupDir           string
	AutoApplyConfidence float64
	DryRun              bool
}

// Orchestrator runs the repair pipeline. It is single-threaded: one
// diagnostic and one file mutation at a time.
type Orchestrator struct {
	cfg         Config
	builder     *analysis.Builder
	checker     checker.Checker
	store       *knowledge.Store
	drafter     drafter.Drafter
	operator    Operator
	observer    Observer
	git         git.Operations
	keepRunning func() bool
	now         func() time.Time
	logger      *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithDrafter sets the fix-drafting oracle.
func WithDrafter(d drafter.Drafter) Option {
	return func(o *Orchestrator) { o.drafter = d }
}

// WithOperator sets the human operator. Without one, queued proposals
// stay queued.
func WithOperator(op Operator) Option {
	return func(o *Orchestrator) { o.operator = op }
}

// WithObserver sets the progress observer.
func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) { o.observer = obs }
}

// WithKeepRunning sets the flag checked between diagnostics.
func WithKeepRunning(f func() bool) Option {
	return func(o *Orchestrator) { o.keepRunning = f }
}

// WithGit sets the git operations used for report metadata.
func WithGit(ops git.Operations) Option {
	return func(o *Orchestrator) { o.git = ops }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New creates an orchestrator.
func New(cfg Config, builder *analysis.Builder, c checker.Checker, store *knowledge.Store, opts ...Option) (*Orchestrator, error) {
	if builder == nil || c == nil || store == nil {
		return nil, errors.New("orchestrator requires an analysis builder, a checker and a knowledge store")
	}
	if cfg.AutoApplyConfidence <= 0 {
		cfg.AutoApplyConfidence = DefaultAutoApplyConfidence
	}

	o := &Orchestrator{
		cfg:         cfg,
		builder:     builder,
		checker:     c,
		store:       store,
		drafter:     drafter.Nop{},
		observer:    NopObserver{},
		git:         git.NewOperations(),
		keepRunning: func() bool { return true },
		now:         time.Now,
		logger:      slog.Default().With("component", "orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// pass carries the per-run collaborators that change as edits land.
type pass struct {
	st       *RunState
	snap     *analysis.Snapshot
	applier  *Applier
	snapshot *RunSnapshot
}

// Run executes one full run. A report is always returned, and persisted
// under the backup directory, even when the run aborts; the error is
// non-nil only for run failures.
func (o *Orchestrator) Run(ctx context.Context) (report *Report, err error) {
	st := newRunState(uuid.New().String(), o.cfg.Root, o.cfg.DryRun, o.now().UTC())
	info := git.Describe(o.git, o.cfg.Root)
	if info.Dirty() {
		o.logger.Warn("worktree has uncommitted changes", "files", len(info.Changed))
	}

	defer func() {
		if r := recover(); r != nil {
			err = fail(FailureRun, fmt.Errorf("panic: %v", r))
			st.Phase = PhaseAborted
			st.Error = err.Error()
			report = o.finish(st, info)
		}
	}()

	if runErr := o.run(ctx, st); runErr != nil {
		var f *Failure
		if !errors.As(runErr, &f) {
			runErr = fail(FailureRun, runErr)
		}
		o.logger.Error("run aborted", "run", st.RunID, "phase", st.Phase, "error", runErr)
		st.Phase = PhaseAborted
		st.Error = runErr.Error()
		return o.finish(st, info), runErr
	}
	return o.finish(st, info), nil
}

func (o *Orchestrator) run(ctx context.Context, st *RunState) error {
	p := &pass{st: st}

	o.setPhase(st, PhaseScanning)
	if err := o.scan(ctx, p); err != nil {
		return err
	}

	o.setPhase(st, PhaseCategorizing)
	groups := diagnostic.GroupByCategory(st.latest)
	for _, c := range diagnostic.CategoryOrder {
		if n := len(groups[c]); n > 0 {
			o.logger.Info("category", "category", c, "diagnostics", n)
		}
	}

	o.setPhase(st, PhasePerCategory)
	for _, category := range diagnostic.CategoryOrder {
		if st.stopped {
			break
		}
		if err := o.processCategory(ctx, p, category, groups[category]); err != nil {
			return err
		}
	}

	o.setPhase(st, PhaseVerifying)
	if result, err := o.checker.Check(ctx); err != nil {
		o.logger.Warn("final verification failed", "error", err)
	} else {
		st.setLatest(result.Diagnostics)
	}

	o.setPhase(st, PhaseReporting)
	return nil
}

func (o *Orchestrator) setPhase(st *RunState, phase Phase) {
	st.Phase = phase
	o.logger.Info("phase", "run", st.RunID, "phase", phase)
	o.observer.OnPhase(phase)
}

// scan builds the analysis snapshot, captures the run snapshot and runs
// the initial check.
func (o *Orchestrator) scan(ctx context.Context, p *pass) error {
	snap, err := o.builder.Build(ctx)
	if err != nil {
		return fail(FailureRun, err)
	}
	p.snap = snap
	for _, f := range snap.Failures {
		o.logger.Warn("scan failure", "file", f.Path, "error", f.Err)
	}

	if !p.st.DryRun {
		p.snapshot, err = CreateSnapshot(o.cfg.Root, o.cfg.BackupDir, p.st.RunID, snap.Files.Paths())
		if err != nil {
			return fail(FailureRun, err)
		}
		p.applier = NewApplier(o.cfg.Root, o.cfg.BackupDir, o.checker, p.snapshot)
	}

	result, err := o.checker.Check(ctx)
	if err != nil {
		return fail(FailureRun, fmt.Errorf("initial check failed: %w", err))
	}
	p.st.setInitial(result.Diagnostics)
	o.logger.Info("initial check", "errors", p.st.InitialErrors, "files", len(snap.Files))
	return nil
}

func (o *Orchestrator) processCategory(ctx context.Context, p *pass, category diagnostic.Category, diags []diagnostic.Diagnostic) error {
	if len(diags) == 0 {
		return nil
	}
	st := p.st
	fixedBefore := st.Fixed
	baseline := st.latest

	for _, d := range diags {
		if !o.keepRunning() {
			o.logger.Info("stopping after current diagnostic")
			st.stopped = true
			break
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := o.processDiagnostic(ctx, p, d); err != nil {
			return err
		}
	}

	if err := o.approvals(ctx, p); err != nil {
		return err
	}

	if st.Fixed > fixedBefore && !st.DryRun {
		return o.sweep(ctx, p, category, baseline)
	}
	return nil
}

func (o *Orchestrator) processDiagnostic(ctx context.Context, p *pass, d diagnostic.Diagnostic) error {
	st := p.st
	fp := d.Fingerprint()
	if st.attempted[fp] {
		return nil
	}
	st.attempted[fp] = true

	cur, ok := st.current(d)
	if !ok {
		out := newOutcome(d)
		out.Reason = "resolved by an earlier fix"
		out.advance(StatusSkipped)
		o.record(st, out)
		return nil
	}
	out := newOutcome(cur)
	out.origin = d

	switch {
	case !cur.AutoFixable:
		out.Reason = fmt.Sprintf("%s diagnostics are not auto-fixable", cur.Category)
	case cur.Risk == diagnostic.RiskHigh:
		out.Reason = "high risk"
	}
	if out.Reason != "" {
		o.learnSighting(cur, "", nil)
		out.advance(StatusSkipped)
		o.record(st, out)
		return nil
	}

	bundle, err := p.snap.Scopes.ErrorContext(cur)
	if err != nil {
		o.learnSighting(cur, "", nil)
		out.failWith(StatusProposalFailed, fail(FailureResolution, err))
		o.record(st, out)
		return nil
	}
	out.Scope = string(bundle.Scope.Kind)
	o.remember(cur, bundle)

	proposal, err := o.propose(ctx, p, cur, bundle)
	o.learnSighting(cur, out.Scope, proposal)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		out.failWith(StatusProposalFailed, fail(FailureProposal, err))
		o.record(st, out)
		return nil
	}
	out.Proposal = proposal
	if file, ok := p.snap.Files[proposal.TargetFile]; ok {
		out.Diff = proposal.Diff(string(file.Content))
	}

	if proposal.Confidence > o.cfg.AutoApplyConfidence && proposal.Risk == diagnostic.RiskLow {
		out.advance(StatusAutoApplied)
		if st.DryRun {
			o.record(st, out)
			return nil
		}
		err := o.apply(ctx, p, out)
		o.record(st, out)
		return err
	}

	out.advance(StatusQueuedForApproval)
	st.queue = append(st.queue, out)
	o.record(st, out)
	return nil
}

func (o *Orchestrator) record(st *RunState, out *Outcome) {
	found := false
	for _, existing := range st.Outcomes {
		if existing == out {
			found = true
			break
		}
	}
	if !found {
		st.Outcomes = append(st.Outcomes, out)
	}

	d := out.Diagnostic
	switch out.Result() {
	case ResultFailed:
		o.logger.Warn("diagnostic failed", "file", d.File, "line", d.Line, "code", d.Code, "reason", out.Reason)
	default:
		o.logger.Info("diagnostic", "file", d.File, "line", d.Line, "code", d.Code, "status", out.Status)
	}
	o.observer.OnOutcome(out)
}

// remember stores the context summary for the file. Dry runs leave the
// store untouched.
func (o *Orchestrator) remember(d diagnostic.Diagnostic, bundle *scope.Bundle) {
	if o.cfg.DryRun {
		return
	}
	err := o.store.RecordContext(knowledge.ContextRecord{
		File:    d.File,
		Line:    d.Line,
		Scope:   strings.Join(bundle.Scope.Path, "."),
		Summary: bundle.Summary(),
	})
	if err != nil {
		o.logger.Warn("failed to record context", "file", d.File, "error", err)
	}
}

// learnSighting upserts the learned pattern for d. An empty scopeKind
// keeps the pattern's recorded scope. Dry runs leave the store untouched.
func (o *Orchestrator) learnSighting(d diagnostic.Diagnostic, scopeKind string, proposal *FixProposal) {
	if o.cfg.DryRun {
		return
	}
	var candidate *knowledge.Solution
	if proposal != nil {
		candidate = &knowledge.Solution{
			Original:    proposal.Original,
			Replacement: proposal.Replacement,
			Explanation: proposal.Explanation,
			Origin:      string(proposal.Origin),
			SourceID:    proposal.SourceID,
		}
	}
	if _, err := o.store.StoreErrorPattern(d, scopeKind, candidate); err != nil {
		o.logger.Warn("failed to store error pattern", "file", d.File, "code", d.Code, "error", err)
	}
}

// propose sources a proposal: trusted knowledge first, then the
// drafting oracle.
func (o *Orchestrator) propose(ctx context.Context, p *pass, d diagnostic.Diagnostic, bundle *scope.Bundle) (*FixProposal, error) {
	results := o.store.Retrieve(knowledge.QueryFor(d, string(bundle.Scope.Kind)))

	var hints []string
	for _, r := range results {
		hints = append(hints, r.Remediations...)
	}

	for _, r := range results {
		if r.Confidence <= o.cfg.AutoApplyConfidence {
			continue
		}
		if proposal := o.fromKnowledge(p, d, bundle, r); proposal != nil {
			return proposal, nil
		}
	}

	draft, err := o.drafter.Draft(ctx, drafter.Request{Diagnostic: d, Context: bundle, Hints: hints})
	if err != nil {
		return nil, err
	}

	original := draft.Original
	if original == "" {
		original = bundle.TargetLine()
	}
	if original == "" || draft.Replacement == original {
		return nil, drafter.ErrNoProposal
	}

	proposal := newProposal(d.File, OriginDrafted)
	proposal.Original = original
	proposal.Replacement = draft.Replacement
	proposal.Explanation = draft.Explanation
	proposal.Confidence = draft.Confidence
	proposal.Risk = d.Risk
	return proposal, nil
}

// fromKnowledge turns a trusted retrieval hit into a low-risk proposal.
func (o *Orchestrator) fromKnowledge(p *pass, d diagnostic.Diagnostic, bundle *scope.Bundle, r knowledge.RankedResult) *FixProposal {
	switch r.Source {
	case knowledge.SourceCurated:
		rule, ok := Rules[r.Rule]
		if !ok {
			return nil
		}
		edit, ok := rule(RuleInput{Diagnostic: d, Files: p.snap.Files})
		if !ok {
			return nil
		}
		proposal := newProposal(d.File, OriginRule)
		proposal.Original = edit.Original
		proposal.Replacement = edit.Replacement
		proposal.Explanation = edit.Explanation
		proposal.Confidence = r.Confidence
		proposal.Risk = diagnostic.RiskLow
		proposal.SourceID = r.ID
		return proposal

	case knowledge.SourceLearned:
		sol := r.Solution
		if sol == nil || sol.Original == "" || !strings.Contains(bundle.Window.Text(), sol.Original) {
			return nil
		}
		proposal := newProposal(d.File, OriginLearned)
		proposal.Original = sol.Original
		proposal.Replacement = sol.Replacement
		proposal.Explanation = sol.Explanation
		proposal.Confidence = r.Confidence
		proposal.Risk = diagnostic.RiskLow
		proposal.SourceID = r.ID
		return proposal
	}
	return nil
}

// apply runs the apply protocol for an auto-applied or approved outcome.
// Only run failures are returned.
func (o *Orchestrator) apply(ctx context.Context, p *pass, out *Outcome) error {
	st := p.st
	v, err := p.applier.Apply(ctx, out.Proposal, out.Diagnostic, st.latest)
	if err != nil {
		var f *Failure
		if !errors.As(err, &f) {
			f = fail(FailureRun, err)
		}
		switch f.Kind {
		case FailureApply:
			out.failWith(StatusProposalFailed, f)
			return nil
		case FailureVerification:
			if v != nil && v.Diff != "" {
				out.Diff = v.Diff
			}
			out.advance(StatusApplied)
			out.failWith(StatusRolledBack, f)
			out.advance(StatusProposalFailed)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return nil
		default:
			return f
		}
	}

	out.Diff = v.Diff
	out.advance(StatusApplied)
	out.advance(StatusVerified)
	out.advance(StatusCommitted)
	st.Fixed++
	st.setLatest(v.Check.Diagnostics)

	o.logger.Info("fix committed",
		"file", out.Diagnostic.File,
		"line", out.Diagnostic.Line,
		"code", out.Diagnostic.Code,
		"origin", out.Proposal.Origin,
		"errors", st.CurrentErrors)

	_, err = o.store.StoreVerifiedFix(out.Diagnostic, out.Scope, knowledge.Solution{
		Original:    out.Proposal.Original,
		Replacement: out.Proposal.Replacement,
		Explanation: out.Proposal.Explanation,
		Origin:      string(out.Proposal.Origin),
		SourceID:    out.Proposal.SourceID,
	})
	if err != nil {
		o.logger.Warn("failed to store verified fix", "file", out.Diagnostic.File, "error", err)
	}

	snap, err := o.builder.Build(ctx)
	if err != nil {
		return fail(FailureRun, fmt.Errorf("failed to rebuild analysis after commit: %w", err))
	}
	p.snap = snap
	return nil
}

// approvals presents the category's queued proposals to the operator.
func (o *Orchestrator) approvals(ctx context.Context, p *pass) error {
	st := p.st
	queue := st.queue
	st.queue = nil
	if o.operator == nil || st.DryRun || len(queue) == 0 {
		return nil
	}

	for i, out := range queue {
		if st.stopped {
			break
		}
		live, ok := st.current(out.origin)
		if !ok {
			out.Reason = "resolved by an earlier fix"
			out.advance(StatusRejected)
			out.advance(StatusDiscarded)
			o.record(st, out)
			continue
		}
		out.Diagnostic = live

		decision, err := o.operator.Decide(ctx, Approval{
			Diagnostic: out.Diagnostic,
			Proposal:   out.Proposal,
			Diff:       out.Diff,
		}, i+1, len(queue))
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			o.logger.Warn("operator unavailable, leaving proposals queued", "error", err)
			st.stopped = true
			break
		}

		switch decision {
		case DecisionApply:
			out.advance(StatusApproved)
			if err := o.apply(ctx, p, out); err != nil {
				return err
			}
		case DecisionReject:
			out.advance(StatusRejected)
			out.advance(StatusDiscarded)
		default:
			o.logger.Info("operator quit")
			st.stopped = true
		}
		o.record(st, out)
	}
	return nil
}

// sweep re-checks the whole project after a category with commits and
// offers a whole-run rollback when the check fails. baseline is the
// check result the category started from; the sweep fails when the
// count rose above it or when the category's commits introduced
// diagnostics it did not contain.
func (o *Orchestrator) sweep(ctx context.Context, p *pass, category diagnostic.Category, baseline []diagnostic.Diagnostic) error {
	st := p.st
	result, err := o.checker.Check(ctx)
	var reason string
	switch {
	case err != nil:
		if ctx.Err() != nil {
			return ctx.Err()
		}
		reason = fmt.Sprintf("verification sweep after %s failed: %v", category, err)
	case result.Count() > len(baseline):
		reason = fmt.Sprintf("verification sweep after %s found %d errors, expected at most %d", category, result.Count(), len(baseline))
	default:
		introduced := introducedSince(baseline, result.Diagnostics)
		if len(introduced) == 0 {
			st.setLatest(result.Diagnostics)
			return nil
		}
		reason = fmt.Sprintf("verification sweep after %s found %d new diagnostic(s), first: %s", category, len(introduced), introduced[0])
	}
	if result != nil {
		st.setLatest(result.Diagnostics)
	}

	o.logger.Warn("verification sweep failed", "category", category, "reason", reason)
	if o.operator == nil {
		return nil
	}
	confirm, err := o.operator.ConfirmRollback(ctx, reason)
	if err != nil || !confirm {
		return nil
	}

	restored, err := p.snapshot.Restore()
	if err != nil {
		return fail(FailureRun, fmt.Errorf("whole-run rollback failed: %w", err))
	}
	o.logger.Warn("run rolled back to initial snapshot", "files", len(restored))
	st.RolledBack = true
	st.Fixed = 0
	st.stopped = true
	return nil
}

// introducedSince returns the diagnostics in after beyond the count of
// their problem key in before.
func introducedSince(before, after []diagnostic.Diagnostic) []diagnostic.Diagnostic {
	budget := map[string]int{}
	for _, d := range before {
		budget[d.ProblemKey()]++
	}
	var out []diagnostic.Diagnostic
	for _, d := range after {
		key := d.ProblemKey()
		if budget[key] > 0 {
			budget[key]--
			continue
		}
		out = append(out, d)
	}
	return out
}

// finish stamps, persists and returns the report. Persistence errors are
// logged; the report is still returned.
func (o *Orchestrator) finish(st *RunState, info git.Info) *Report {
	st.FinishedAt = o.now().UTC()
	report := newReport(st, info)

	if err := SaveReport(o.cfg.BackupDir, report); err != nil {
		o.logger.Error("failed to save report", "error", err)
	}

	if !st.DryRun {
		sum := report.Summary
		for k, v := range map[string]string{
			"last_run_id":      st.RunID,
			"last_error_count": fmt.Sprint(sum.Remaining),
			"last_fixed_count": fmt.Sprint(sum.Fixed),
		} {
			if err := o.store.SetProjectMemory(k, v); err != nil {
				o.logger.Warn("failed to update project memory", "key", k, "error", err)
			}
		}
	}

	o.logger.Info("run complete",
		"run", st.RunID,
		"phase", st.Phase,
		"initial", report.Summary.InitialErrors,
		"fixed", report.Summary.Fixed,
		"remaining", report.Summary.Remaining,
		"pending", report.Summary.PendingApprovals)
	return report
}
