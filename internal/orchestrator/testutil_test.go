package orchestrator

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/project-remedy/internal/analysis"
	"github.com/mvp-joe/project-remedy/internal/checker"
	"github.com/mvp-joe/project-remedy/internal/diagnostic"
	"github.com/mvp-joe/project-remedy/internal/drafter"
	"github.com/mvp-joe/project-remedy/internal/git"
	"github.com/mvp-joe/project-remedy/internal/knowledge"
)

// finding is one diagnostic the fake checker reports for a file.
type finding struct {
	Line    int
	Code    string
	Message string
}

// emitFunc derives findings from a file's content.
type emitFunc func(rel, content string) []finding

// onLines reports code/message on every line containing needle.
func onLines(needle, code, message string) emitFunc {
	return func(rel, content string) []finding {
		var out []finding
		for i, line := range strings.Split(content, "\n") {
			if strings.Contains(line, needle) {
				out = append(out, finding{Line: i + 1, Code: code, Message: message})
			}
		}
		return out
	}
}

// fakeChecker reads the project on every call and reports what its
// emitters find, formatted and parsed like real checker output.
type fakeChecker struct {
	root  string
	emit  []emitFunc
	mu    sync.Mutex
	calls int
	fail  map[int]error
}

func newFakeChecker(root string, emit ...emitFunc) *fakeChecker {
	return &fakeChecker{root: root, emit: emit, fail: map[int]error{}}
}

func (c *fakeChecker) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func (c *fakeChecker) Check(ctx context.Context) (*checker.Result, error) {
	c.mu.Lock()
	c.calls++
	call := c.calls
	c.mu.Unlock()

	if err := c.fail[call]; err != nil {
		return nil, err
	}

	var paths []string
	err := filepath.WalkDir(c.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && d.Name() == ".remedy" {
			return filepath.SkipDir
		}
		if !d.IsDir() && strings.HasSuffix(path, ".ts") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	var out strings.Builder
	for _, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		rel, _ := filepath.Rel(c.root, path)
		rel = filepath.ToSlash(rel)
		for _, emit := range c.emit {
			for _, f := range emit(rel, string(content)) {
				fmt.Fprintf(&out, "%s(%d,1): error %s: %s\n", rel, f.Line, f.Code, f.Message)
			}
		}
	}

	result := &checker.Result{
		Diagnostics: diagnostic.Parse(out.String(), ""),
		Output:      out.String(),
	}
	if !result.Clean() {
		result.ExitCode = 2
	}
	return result, nil
}

// fixedDrafter always returns the same draft and counts calls.
type fixedDrafter struct {
	draft drafter.Draft
	err   error
	calls int
}

func (d *fixedDrafter) Draft(ctx context.Context, req drafter.Request) (*drafter.Draft, error) {
	d.calls++
	if d.err != nil {
		return nil, d.err
	}
	out := d.draft
	return &out, nil
}

// scriptedOperator answers approvals in order; when answers run out it
// applies.
type scriptedOperator struct {
	answers   []Decision
	rollback  bool
	approvals []Approval
	rollbacks []string
}

func (o *scriptedOperator) Decide(ctx context.Context, a Approval, index, total int) (Decision, error) {
	o.approvals = append(o.approvals, a)
	if len(o.answers) == 0 {
		return DecisionApply, nil
	}
	next := o.answers[0]
	o.answers = o.answers[1:]
	return next, nil
}

func (o *scriptedOperator) ConfirmRollback(ctx context.Context, reason string) (bool, error) {
	o.rollbacks = append(o.rollbacks, reason)
	return o.rollback, nil
}

// recordingObserver captures phases.
type recordingObserver struct {
	phases []Phase
}

func (r *recordingObserver) OnPhase(p Phase)      { r.phases = append(r.phases, p) }
func (r *recordingObserver) OnOutcome(o *Outcome) {}

func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return root
}

func readFile(t *testing.T, root, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(data)
}

type harness struct {
	root    string
	backups string
	checker *fakeChecker
	store   *knowledge.Store
	orch    *Orchestrator
}

func newHarness(t *testing.T, root string, c *fakeChecker, cfg Config, storeOpts []knowledge.Option, opts ...Option) *harness {
	t.Helper()

	builder, err := analysis.NewBuilder(root, analysis.Options{Code: []string{"**/*.ts"}})
	require.NoError(t, err)
	t.Cleanup(builder.Close)

	store, err := knowledge.Open(":memory:", storeOpts...)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg.Root = root
	if cfg.BackupDir == "" {
		cfg.BackupDir = filepath.Join(root, ".remedy", "backups")
	}

	opts = append([]Option{WithGit(git.NewMockGitOps())}, opts...)
	orch, err := New(cfg, builder, c, store, opts...)
	require.NoError(t, err)

	return &harness{root: root, backups: cfg.BackupDir, checker: c, store: store, orch: orch}
}
