package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/huh"

	"github.com/mvp-joe/project-remedy/internal/orchestrator"
)

// promptOperator asks the user in the terminal.
type promptOperator struct {
	w io.Writer
}

func newPromptOperator(w io.Writer) *promptOperator {
	return &promptOperator{w: w}
}

func (o *promptOperator) Decide(ctx context.Context, a orchestrator.Approval, index, total int) (orchestrator.Decision, error) {
	writeApproval(o.w, a, index, total)

	decision := orchestrator.DecisionApply
	form := huh.NewForm(huh.NewGroup(
		huh.NewSelect[orchestrator.Decision]().
			Title("Apply this fix?").
			Options(
				huh.NewOption("Apply", orchestrator.DecisionApply),
				huh.NewOption("Reject", orchestrator.DecisionReject),
				huh.NewOption("Quit (leave the rest queued)", orchestrator.DecisionQuit),
			).
			Value(&decision),
	))
	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return orchestrator.DecisionQuit, nil
		}
		return "", err
	}
	return decision, nil
}

func (o *promptOperator) ConfirmRollback(ctx context.Context, reason string) (bool, error) {
	fmt.Fprintf(o.w, "\n✗ %s\n", reason)

	confirm := false
	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title("Restore every file from the run snapshot?").
			Affirmative("Roll back").
			Negative("Keep changes").
			Value(&confirm),
	))
	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, nil
		}
		return false, err
	}
	return confirm, nil
}

// writeApproval prints the proposal under review.
func writeApproval(w io.Writer, a orchestrator.Approval, index, total int) {
	p := a.Proposal
	fmt.Fprintf(w, "\n[%d/%d] %s\n", index, total, a.Diagnostic)
	if p != nil {
		fmt.Fprintf(w, "  origin %s, confidence %.2f, risk %s\n", p.Origin, p.Confidence, p.Risk)
		if p.Explanation != "" {
			fmt.Fprintf(w, "  %s\n", p.Explanation)
		}
	}
	if a.Diff != "" {
		fmt.Fprintf(w, "\n%s\n", a.Diff)
	}
}
