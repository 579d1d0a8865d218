package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/project-remedy/internal/checker"
	"github.com/mvp-joe/project-remedy/internal/config"
	"github.com/mvp-joe/project-remedy/internal/drafter"
	"github.com/mvp-joe/project-remedy/internal/orchestrator"
)

var (
	fixDryRun  bool
	fixYes     bool
	fixNoDraft bool
)

// fixCmd represents the fix command
var fixCmd = &cobra.Command{
	Use:   "fix",
	Short: "Propose, apply and verify fixes for type errors",
	Long: `Fix runs the type checker, groups its errors by category and works
through them one at a time: each error gets a proposal from the
knowledge store or the fix-drafting model. Confident, low-risk proposals
are applied straight away; the rest are queued for your approval at the
end of each category.

Every applied edit is verified by re-running the type checker. An edit
that does not reduce the error count is rolled back to the file's exact
previous bytes.

Press Ctrl+C once to stop after the current fix, twice to abort.

Examples:
  # Interactive run
  remedy fix

  # Show what would be proposed without touching any file
  remedy fix --dry-run

  # Approve everything, knowledge store only
  remedy fix --yes --no-draft
`,
	Args: cobra.NoArgs,
	RunE: runFix,
}

func init() {
	rootCmd.AddCommand(fixCmd)
	fixCmd.Flags().BoolVar(&fixDryRun, "dry-run", false, "Categorize and propose without modifying files")
	fixCmd.Flags().BoolVarP(&fixYes, "yes", "y", false, "Approve every queued proposal")
	fixCmd.Flags().BoolVar(&fixNoDraft, "no-draft", false, "Disable the fix-drafting model")
}

func runFix(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := cmd.OutOrStdout()
	interrupts := newInterruptHandler(cancel, cmd.ErrOrStderr())
	interrupts.Listen()
	defer interrupts.Stop()

	p, err := loadProject()
	if err != nil {
		return err
	}

	b, err := p.builder()
	if err != nil {
		return err
	}
	defer b.Close()

	store, err := p.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	d, err := newDrafter(p.cfg, fixNoDraft)
	if err != nil {
		return err
	}

	var op orchestrator.Operator = newPromptOperator(out)
	if fixYes {
		op = orchestrator.AutoApprove{RollbackOnFailure: true}
	}

	chk := checker.NewCommandChecker(p.cfg.Checker.Command, p.cfg.Checker.Args, p.root, p.cfg.Checker.Timeout)
	orch, err := orchestrator.New(orchestrator.Config{
		Root:                p.root,
		BackupDir:           p.cfg.BackupDir(p.root),
		AutoApplyConfidence: p.cfg.Policy.AutoApplyConfidence,
		DryRun:              fixDryRun,
	}, b, chk, store,
		orchestrator.WithDrafter(d),
		orchestrator.WithOperator(op),
		orchestrator.WithObserver(newFixObserver(out)),
		orchestrator.WithKeepRunning(interrupts.KeepRunning))
	if err != nil {
		return err
	}

	report, err := orch.Run(ctx)
	if report != nil {
		printReport(out, report)
	}
	return err
}

// newDrafter builds the configured drafter, or a no-op one when drafting
// is disabled.
func newDrafter(cfg *config.Config, disabled bool) (drafter.Drafter, error) {
	if disabled || cfg.Drafter.Provider == config.ProviderNone {
		return drafter.Nop{}, nil
	}
	d, err := drafter.NewOpenAIDrafter(cfg.OpenAIConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create drafter: %w", err)
	}
	return d, nil
}

// fixObserver prints phase changes and settled outcomes.
type fixObserver struct {
	w io.Writer
}

func newFixObserver(w io.Writer) *fixObserver {
	return &fixObserver{w: w}
}

func (o *fixObserver) OnPhase(phase orchestrator.Phase) {
	fmt.Fprintf(o.w, "→ %s\n", phase)
}

func (o *fixObserver) OnOutcome(out *orchestrator.Outcome) {
	mark := map[orchestrator.Result]string{
		orchestrator.ResultFixed:         "✓",
		orchestrator.ResultNeedsApproval: "?",
		orchestrator.ResultSkipped:       "-",
		orchestrator.ResultFailed:        "✗",
	}[out.Result()]
	if mark == "" {
		mark = " "
	}
	line := fmt.Sprintf("  %s %s: %s", mark, out.Diagnostic, out.Status)
	if out.Reason != "" {
		line += " (" + out.Reason + ")"
	}
	fmt.Fprintln(o.w, line)
}

// printReport prints the run summary.
func printReport(w io.Writer, r *orchestrator.Report) {
	s := r.Summary
	fmt.Fprintln(w)
	switch {
	case r.Error != "":
		fmt.Fprintf(w, "✗ Run %s aborted in %s: %s\n", r.RunID, r.Phase, r.Error)
	case r.DryRun:
		fmt.Fprintf(w, "Dry run %s complete (no files modified)\n", r.RunID)
	default:
		fmt.Fprintf(w, "✓ Run %s complete in %s\n", r.RunID, formatDuration(r.FinishedAt.Sub(r.StartedAt)))
	}
	fmt.Fprintf(w, "  Initial errors:    %s\n", formatNumber(s.InitialErrors))
	fmt.Fprintf(w, "  Fixed:             %s (%.1f%%)\n", formatNumber(s.Fixed), s.SuccessRate)
	fmt.Fprintf(w, "  Remaining:         %s\n", formatNumber(s.Remaining))
	if r.DryRun {
		fmt.Fprintf(w, "  Would auto-apply:  %d\n", s.Proposed)
	}
	fmt.Fprintf(w, "  Pending approvals: %d\n", s.PendingApprovals)
	fmt.Fprintf(w, "  Skipped:           %d\n", s.Skipped)
	fmt.Fprintf(w, "  Failed:            %d\n", s.Failed)
	if r.RolledBack {
		fmt.Fprintln(w, "  All changes were rolled back to the initial snapshot.")
	}
	if r.Path != "" {
		fmt.Fprintf(w, "  Report: %s\n", r.Path)
	}
	if !r.DryRun && r.Summary.Fixed > 0 && !r.RolledBack {
		fmt.Fprintf(w, "  Undo with: remedy rollback %s\n", r.RunID)
	}
}
