package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/project-remedy/internal/analysis"
	"github.com/mvp-joe/project-remedy/internal/watcher"
)

var (
	analyzeJSON  bool
	analyzeWatch bool
	analyzeQuiet bool
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Scan the project and report its structure",
	Long: `Analyze scans every source file, builds the dependency graph and the
type model, and reports file and edge counts, import cycles, orphaned
files and type names declared in more than one file.

The dependency graph is written to .remedy/dependency-graph.json.

Examples:
  # One-off report
  remedy analyze

  # Machine-readable report
  remedy analyze --json

  # Re-analyse whenever a source file changes
  remedy analyze --watch
`,
	Args: cobra.NoArgs,
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "Print the report as JSON")
	analyzeCmd.Flags().BoolVarP(&analyzeWatch, "watch", "w", false, "Re-run on source changes")
	analyzeCmd.Flags().BoolVarP(&analyzeQuiet, "quiet", "q", false, "Disable progress bars")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	p, err := loadProject()
	if err != nil {
		return err
	}

	progress := NewCLIProgressReporter(analyzeQuiet || analyzeJSON, cmd.ErrOrStderr())
	b, err := p.builder(analysis.WithProgress(progress))
	if err != nil {
		return err
	}
	defer b.Close()

	out := cmd.OutOrStdout()
	if err := analyzeOnce(ctx, out, b, p.stateDir(), analyzeJSON); err != nil {
		return err
	}
	if !analyzeWatch {
		return nil
	}
	return watchAnalyze(ctx, out, p, b)
}

// analyzeOnce builds a snapshot, saves its graph to stateDir and prints
// the summary.
func analyzeOnce(ctx context.Context, w io.Writer, b *analysis.Builder, stateDir string, asJSON bool) error {
	snap, err := b.Build(ctx)
	if err != nil {
		return err
	}
	if err := snap.SaveGraph(stateDir); err != nil {
		return fmt.Errorf("failed to save dependency graph: %w", err)
	}

	sum := snap.Summarize()
	if asJSON {
		return writeJSON(w, sum)
	}
	printAnalysis(w, sum)
	return nil
}

func printAnalysis(w io.Writer, sum analysis.Summary) {
	fmt.Fprintf(w, "Project: %s\n", sum.Root)
	fmt.Fprintf(w, "  Files: %s\n", formatNumber(sum.Files))
	fmt.Fprintf(w, "  Edges: %s\n", formatNumber(sum.Edges))
	fmt.Fprintf(w, "  Types: %s\n", formatNumber(sum.Types))
	writeList(w, "Cycles", sum.Cycles)
	writeList(w, "Orphans", sum.Orphans)

	names := make([]string, 0, len(sum.Ambiguities))
	for name := range sum.Ambiguities {
		names = append(names, name)
	}
	sort.Strings(names)
	ambiguous := make([]string, 0, len(names))
	for _, name := range names {
		ambiguous = append(ambiguous, fmt.Sprintf("%s: %s", name, strings.Join(sum.Ambiguities[name], ", ")))
	}
	writeList(w, "Ambiguous types", ambiguous)

	if len(sum.Failures) > 0 {
		writeList(w, "Scan failures", sum.Failures)
	}
}

// changeSet accumulates watcher batches until the analyse loop drains
// them.
type changeSet struct {
	mu     sync.Mutex
	files  map[string]bool
	notify chan struct{}
}

func newChangeSet() *changeSet {
	return &changeSet{files: map[string]bool{}, notify: make(chan struct{}, 1)}
}

func (c *changeSet) add(files []string) {
	c.mu.Lock()
	for _, f := range files {
		c.files[f] = true
	}
	c.mu.Unlock()
	select {
	case c.notify <- struct{}{}:
	default:
	}
}

func (c *changeSet) drain() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.files))
	for f := range c.files {
		out = append(out, f)
	}
	c.files = map[string]bool{}
	sort.Strings(out)
	return out
}

func watchAnalyze(ctx context.Context, w io.Writer, p *project, b *analysis.Builder) error {
	fw, err := watcher.NewFileWatcher(p.root, p.cfg.SourceExtensions())
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	defer fw.Stop()

	changes := newChangeSet()
	if err := fw.Start(ctx, changes.add); err != nil {
		return err
	}
	fmt.Fprintln(w, "\nWatching for changes (Ctrl+C to stop)...")

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-changes.notify:
			files := changes.drain()
			if len(files) == 0 {
				continue
			}
			fw.Pause()
			fmt.Fprintf(w, "\n%d file(s) changed: %s\n", len(files), strings.Join(files, ", "))
			if err := analyzeOnce(ctx, w, b, p.stateDir(), analyzeJSON); err != nil {
				slog.Warn("re-analysis failed", "error", err)
			}
			fw.Resume()
		}
	}
}
