package orchestrator

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/project-remedy/internal/diagnostic"
	"github.com/mvp-joe/project-remedy/internal/git"
)

// Test Plan for run state, snapshots and reports:
// - The per-diagnostic transition table allows exactly the documented edges
// - Outcome.advance rejects illegal transitions and keeps history
// - Result maps statuses to fixed / needs-approval / skipped / failed
// - Summarize counts fixed, remaining, pending, skipped and failed; dry-run
//   auto-apply decisions count as proposed, not pending
// - current maps an initial diagnostic onto its live instance after
//   identical diagnostics were renumbered
// - FixProposal.Apply replaces only the first occurrence
// - Snapshots restore only files that changed
// - Reports round-trip through the backup directory

func TestTransitions(t *testing.T) {
	t.Parallel()

	legal := [][2]Status{
		{StatusPending, StatusSkipped},
		{StatusPending, StatusProposalFailed},
		{StatusPending, StatusAutoApplied},
		{StatusPending, StatusQueuedForApproval},
		{StatusQueuedForApproval, StatusApproved},
		{StatusQueuedForApproval, StatusRejected},
		{StatusRejected, StatusDiscarded},
		{StatusApproved, StatusApplied},
		{StatusAutoApplied, StatusApplied},
		{StatusApplied, StatusVerified},
		{StatusVerified, StatusCommitted},
		{StatusApplied, StatusRolledBack},
		{StatusRolledBack, StatusProposalFailed},
	}
	for _, tr := range legal {
		assert.True(t, CanTransition(tr[0], tr[1]), "%s -> %s", tr[0], tr[1])
	}

	illegal := [][2]Status{
		{StatusPending, StatusCommitted},
		{StatusQueuedForApproval, StatusApplied},
		{StatusCommitted, StatusRolledBack},
		{StatusSkipped, StatusPending},
		{StatusRejected, StatusApplied},
	}
	for _, tr := range illegal {
		assert.False(t, CanTransition(tr[0], tr[1]), "%s -> %s", tr[0], tr[1])
	}

	for _, s := range []Status{StatusSkipped, StatusProposalFailed, StatusDiscarded, StatusCommitted} {
		assert.True(t, s.Terminal(), s)
	}
}

func TestOutcome_Advance(t *testing.T) {
	t.Parallel()

	o := newOutcome(diagnostic.Diagnostic{File: "a.ts"})
	require.NoError(t, o.advance(StatusQueuedForApproval))
	assert.ErrorIs(t, o.advance(StatusCommitted), ErrInvalidTransition)
	assert.Equal(t, StatusQueuedForApproval, o.Status)
	assert.Equal(t, []Status{StatusPending, StatusQueuedForApproval}, o.History)
	assert.Equal(t, ResultNeedsApproval, o.Result())
}

func TestRunState_Summarize(t *testing.T) {
	t.Parallel()

	st := newRunState("run", "/p", false, time.Now())
	st.InitialErrors = 4
	st.CurrentErrors = 2
	st.Fixed = 1

	for _, s := range []Status{StatusCommitted, StatusQueuedForApproval, StatusSkipped, StatusProposalFailed, StatusDiscarded} {
		st.Outcomes = append(st.Outcomes, &Outcome{Status: s})
	}

	sum := st.Summarize()
	assert.Equal(t, Summary{
		InitialErrors:    4,
		Fixed:            1,
		Remaining:        2,
		SuccessRate:      25,
		PendingApprovals: 1,
		Skipped:          2,
		Failed:           1,
	}, sum)
}

func TestRunState_SummarizeDryRun(t *testing.T) {
	t.Parallel()

	st := newRunState("run", "/p", true, time.Now())
	st.InitialErrors = 2
	st.CurrentErrors = 2
	for _, s := range []Status{StatusAutoApplied, StatusQueuedForApproval} {
		st.Outcomes = append(st.Outcomes, &Outcome{Status: s})
	}

	sum := st.Summarize()
	assert.Equal(t, 1, sum.Proposed)
	assert.Equal(t, 1, sum.PendingApprovals)
}

func TestRunState_Current(t *testing.T) {
	t.Parallel()

	check := func(lines ...int) []diagnostic.Diagnostic {
		var out string
		for _, l := range lines {
			out += fmt.Sprintf("a.ts(%d,1): error TS1005: ';' expected.\n", l)
		}
		return diagnostic.Parse(out, "")
	}

	st := newRunState("run", "/p", false, time.Now())
	initial := check(1, 2, 3)
	st.setInitial(initial)

	live, ok := st.current(initial[1])
	require.True(t, ok)
	assert.Equal(t, 2, live.Line)

	// The first one was fixed; the survivors shift down.
	st.setLatest(check(2, 3))
	_, ok = st.current(initial[0])
	assert.False(t, ok)
	live, ok = st.current(initial[1])
	require.True(t, ok)
	assert.Equal(t, 2, live.Line)
	live, ok = st.current(initial[2])
	require.True(t, ok)
	assert.Equal(t, 3, live.Line)

	st.setLatest(nil)
	_, ok = st.current(initial[2])
	assert.False(t, ok)
}

func TestFixProposal_Apply(t *testing.T) {
	t.Parallel()

	p := &FixProposal{TargetFile: "a.ts", Original: "x", Replacement: "y"}
	got, ok := p.Apply("x x")
	assert.True(t, ok)
	assert.Equal(t, "y x", got)

	_, ok = p.Apply("zzz")
	assert.False(t, ok)
	assert.Empty(t, p.Diff("zzz"))
	assert.Contains(t, p.Diff("x\n"), "+y")
}

func TestSnapshot_CreateRestoreList(t *testing.T) {
	t.Parallel()

	root := writeProject(t, map[string]string{
		"a.ts":     "a\n",
		"src/b.ts": "b\n",
	})
	backups := t.TempDir()

	snap, err := CreateSnapshot(root, backups, "run-1", []string{"src/b.ts", "a.ts"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.ts", "src/b.ts"}, snap.Files())

	require.NoError(t, writePreservingMode(filepath.Join(root, "src", "b.ts"), []byte("changed\n")))

	restored, err := snap.Restore()
	require.NoError(t, err)
	assert.Equal(t, []string{"src/b.ts"}, restored)
	assert.Equal(t, "b\n", readFile(t, root, "src/b.ts"))

	list, err := ListSnapshots(backups)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "run-1", list[0].RunID)

	_, err = RestoreSnapshot(root, backups, "missing")
	assert.ErrorIs(t, err, ErrSnapshotNotFound)
}

func TestReport_SaveLoad(t *testing.T) {
	t.Parallel()

	st := newRunState("run-7", "/p", false, time.Now())
	st.Phase = PhaseReporting
	st.InitialErrors = 1
	out := newOutcome(diagnostic.Diagnostic{File: "a.ts", Code: "TS1005"})
	require.NoError(t, out.advance(StatusSkipped))
	st.Outcomes = append(st.Outcomes, out)

	backups := t.TempDir()
	rep := newReport(st, git.Info{Branch: "main"})
	require.NoError(t, SaveReport(backups, rep))
	assert.Equal(t, ReportPath(backups, "run-7"), rep.Path)

	loaded, err := LoadReport(backups, "run-7")
	require.NoError(t, err)
	assert.Equal(t, "run-7", loaded.RunID)
	assert.Equal(t, PhaseReporting, loaded.Phase)
	require.Len(t, loaded.Outcomes, 1)
	assert.Equal(t, StatusSkipped, loaded.Outcomes[0].Status)
	assert.Equal(t, 1, loaded.Summary.Skipped)
	assert.Equal(t, "main", loaded.Git.Branch)
}
