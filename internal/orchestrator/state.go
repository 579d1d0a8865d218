package orchestrator

import (
	"errors"
	"fmt"
	"time"

	"github.com/mvp-joe/project-remedy/internal/diagnostic"
)

// Phase is the run-level state.
type Phase string

const (
	PhaseScanning     Phase = "scanning"
	PhaseCategorizing Phase = "categorizing"
	PhasePerCategory  Phase = "per_category_processing"
	PhaseVerifying    Phase = "verifying"
	PhaseReporting    Phase = "reporting"
	PhaseAborted      Phase = "aborted"
)

// Status is the per-diagnostic state.
type Status string

const (
	StatusPending           Status = "pending"
	StatusSkipped           Status = "skipped"
	StatusProposalFailed    Status = "proposal_failed"
	StatusAutoApplied       Status = "auto_applied"
	StatusQueuedForApproval Status = "queued_for_approval"
	StatusApproved          Status = "approved"
	StatusRejected          Status = "rejected"
	StatusDiscarded         Status = "discarded"
	StatusApplied           Status = "applied"
	StatusVerified          Status = "verified"
	StatusCommitted         Status = "committed"
	StatusRolledBack        Status = "rolled_back"
)

// transitions lists the legal successors of each status. An apply that
// cannot find its span moves straight to ProposalFailed.
var transitions = map[Status][]Status{
	StatusPending:           {StatusSkipped, StatusProposalFailed, StatusAutoApplied, StatusQueuedForApproval},
	StatusAutoApplied:       {StatusApplied, StatusProposalFailed},
	StatusQueuedForApproval: {StatusApproved, StatusRejected},
	StatusApproved:          {StatusApplied, StatusProposalFailed},
	StatusRejected:          {StatusDiscarded},
	StatusApplied:           {StatusVerified, StatusRolledBack},
	StatusVerified:          {StatusCommitted},
	StatusRolledBack:        {StatusProposalFailed},
}

// ErrInvalidTransition is returned for a status change the state
// machine does not allow.
var ErrInvalidTransition = errors.New("invalid status transition")

// CanTransition reports whether from may move to to.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// FailureKind classifies why a step failed.
type FailureKind string

const (
	FailureScan         FailureKind = "scan"
	FailureResolution   FailureKind = "resolution"
	FailureProposal     FailureKind = "proposal"
	FailureApply        FailureKind = "apply"
	FailureVerification FailureKind = "verification"
	FailureRun          FailureKind = "run"
)

// Failure is a classified error.
type Failure struct {
	Kind FailureKind
	Err  error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s failure: %v", f.Kind, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

func fail(kind FailureKind, err error) *Failure {
	return &Failure{Kind: kind, Err: err}
}

// Result is the user-facing outcome of a diagnostic.
type Result string

const (
	ResultFixed         Result = "fixed"
	ResultNeedsApproval Result = "needs-approval"
	ResultSkipped       Result = "skipped"
	ResultFailed        Result = "failed"
	ResultPending       Result = "pending"
)

// Outcome tracks one diagnostic through the per-diagnostic state
// machine.
type Outcome struct {
	Diagnostic diagnostic.Diagnostic `json:"diagnostic"`
	Status     Status                `json:"status"`
	History    []Status              `json:"history"`
	Proposal   *FixProposal          `json:"proposal,omitempty"`
	Diff       string                `json:"diff,omitempty"`
	Reason     string                `json:"reason,omitempty"`
	Failure    FailureKind           `json:"failure,omitempty"`
	Scope      string                `json:"scope,omitempty"`

	// origin is the diagnostic as reported by the initial check.
	origin diagnostic.Diagnostic
}

func newOutcome(d diagnostic.Diagnostic) *Outcome {
	return &Outcome{
		Diagnostic: d,
		Status:     StatusPending,
		History:    []Status{StatusPending},
		origin:     d,
	}
}

// advance moves the outcome to next if the transition is legal.
func (o *Outcome) advance(next Status) error {
	if !CanTransition(o.Status, next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, next)
	}
	o.Status = next
	o.History = append(o.History, next)
	return nil
}

// failWith records a failure and moves to next.
func (o *Outcome) failWith(next Status, f *Failure) error {
	o.Failure = f.Kind
	o.Reason = f.Err.Error()
	return o.advance(next)
}

// Result maps the status to its user-facing outcome.
func (o *Outcome) Result() Result {
	switch o.Status {
	case StatusCommitted:
		return ResultFixed
	case StatusQueuedForApproval, StatusAutoApplied, StatusApproved:
		return ResultNeedsApproval
	case StatusSkipped, StatusDiscarded:
		return ResultSkipped
	case StatusProposalFailed, StatusRolledBack:
		return ResultFailed
	default:
		return ResultPending
	}
}

// RunState is the explicit state of one orchestration run. Each phase
// reads and updates it; nothing else holds run state.
type RunState struct {
	RunID         string     `json:"run_id"`
	Root          string     `json:"root"`
	Phase         Phase      `json:"phase"`
	DryRun        bool       `json:"dry_run"`
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    time.Time  `json:"finished_at"`
	InitialErrors int        `json:"initial_errors"`
	CurrentErrors int        `json:"current_errors"`
	Fixed         int        `json:"fixed"`
	Outcomes      []*Outcome `json:"outcomes"`
	RolledBack    bool       `json:"rolled_back"`
	Error         string     `json:"error,omitempty"`

	// latest holds the most recent classified check result.
	latest    []diagnostic.Diagnostic
	attempted map[string]bool
	queue     []*Outcome
	stopped   bool

	// initialCounts is the number of diagnostics per problem key in the
	// initial check.
	initialCounts map[string]int
}

func newRunState(runID, root string, dryRun bool, now time.Time) *RunState {
	return &RunState{
		RunID:     runID,
		Root:      root,
		Phase:     PhaseScanning,
		DryRun:    dryRun,
		StartedAt: now,
		attempted: map[string]bool{},
	}
}

// setInitial records the initial check result.
func (s *RunState) setInitial(diags []diagnostic.Diagnostic) {
	s.setLatest(diags)
	s.InitialErrors = s.CurrentErrors
	s.initialCounts = map[string]int{}
	for _, d := range diags {
		s.initialCounts[d.ProblemKey()]++
	}
}

// setLatest replaces the current diagnostics with a fresh check result.
func (s *RunState) setLatest(diags []diagnostic.Diagnostic) {
	diagnostic.ClassifyAll(diags)
	s.latest = diags
	s.CurrentErrors = len(diags)
}

// current returns the live instance of d, a diagnostic from the initial
// check, with refreshed position, or false when d no longer appears.
// Identical diagnostics are renumbered on every check: once k of them
// are gone, initial occurrence n is live occurrence n-k, and occurrences
// below k count as resolved.
func (s *RunState) current(d diagnostic.Diagnostic) (diagnostic.Diagnostic, bool) {
	key := d.ProblemKey()
	var live []diagnostic.Diagnostic
	for _, l := range s.latest {
		if l.ProblemKey() == key {
			live = append(live, l)
		}
	}
	gone := s.initialCounts[key] - len(live)
	if gone < 0 {
		gone = 0
	}
	idx := d.Occurrence() - gone
	if idx < 0 || idx >= len(live) {
		return diagnostic.Diagnostic{}, false
	}
	return live[idx], true
}

// Summary is the final tally of a run.
type Summary struct {
	InitialErrors    int     `json:"initial_errors"`
	Fixed            int     `json:"errors_fixed"`
	Remaining        int     `json:"remaining_errors"`
	SuccessRate      float64 `json:"success_rate"`
	PendingApprovals int     `json:"pending_approvals"`
	Proposed         int     `json:"proposed,omitempty"`
	Skipped          int     `json:"skipped"`
	Failed           int     `json:"failed"`
}

// Summarize tallies the run.
func (s *RunState) Summarize() Summary {
	sum := Summary{
		InitialErrors: s.InitialErrors,
		Fixed:         s.Fixed,
		Remaining:     s.CurrentErrors,
	}
	if s.InitialErrors > 0 {
		sum.SuccessRate = float64(s.Fixed) / float64(s.InitialErrors) * 100
	}
	for _, o := range s.Outcomes {
		switch o.Result() {
		case ResultNeedsApproval:
			// Dry-run auto-apply decisions are proposals, not approvals.
			if s.DryRun && o.Status == StatusAutoApplied {
				sum.Proposed++
			} else {
				sum.PendingApprovals++
			}
		case ResultSkipped:
			sum.Skipped++
		case ResultFailed:
			sum.Failed++
		}
	}
	return sum
}
