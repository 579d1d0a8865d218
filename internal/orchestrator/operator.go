package orchestrator

import (
	"context"

	"github.com/mvp-joe/project-remedy/internal/diagnostic"
)

// Decision is the operator's answer to one pending approval.
type Decision string

const (
	DecisionApply  Decision = "apply"
	DecisionReject Decision = "reject"
	DecisionQuit   Decision = "quit"
)

// Approval is a proposal awaiting the operator.
type Approval struct {
	Diagnostic diagnostic.Diagnostic
	Proposal   *FixProposal
	Diff       string
}

// Operator is the human in the loop.
type Operator interface {
	// Decide answers approval index of total.
	Decide(ctx context.Context, a Approval, index, total int) (Decision, error)
	// ConfirmRollback asks whether to restore the whole run snapshot
	// after a failed verification sweep.
	ConfirmRollback(ctx context.Context, reason string) (bool, error)
}

// AutoApprove applies every proposal without asking.
type AutoApprove struct {
	// RollbackOnFailure answers ConfirmRollback.
	RollbackOnFailure bool
}

func (AutoApprove) Decide(context.Context, Approval, int, int) (Decision, error) {
	return DecisionApply, nil
}

func (a AutoApprove) ConfirmRollback(context.Context, string) (bool, error) {
	return a.RollbackOnFailure, nil
}

// Observer receives run progress.
type Observer interface {
	OnPhase(phase Phase)
	OnOutcome(o *Outcome)
}

// NopObserver ignores everything.
type NopObserver struct{}

func (NopObserver) OnPhase(Phase)      {}
func (NopObserver) OnOutcome(*Outcome) {}
