package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/project-remedy/internal/analysis"
	"github.com/mvp-joe/project-remedy/internal/config"
	"github.com/mvp-joe/project-remedy/internal/graph"
	"github.com/mvp-joe/project-remedy/internal/knowledge"
)

var (
	cfgFile  string
	verbose  bool
	rootFlag string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "remedy",
	Short: "Remedy - TypeScript type-error analysis and repair",
	Long: `Remedy analyses a TypeScript project (dependency graph, type model,
scope context) and drives its type errors toward zero by proposing,
applying and verifying targeted edits.

Every edit is verified by re-running the type checker and rolled back
byte-for-byte if it does not help.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging(cmd.ErrOrStderr(), verbose)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is <root>/.remedy/config.yml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&rootFlag, "root", "", "project root (default is the working directory)")
}

// setupLogging installs the default slog handler. Verbose lowers the
// level to debug; otherwise only warnings and errors are shown.
func setupLogging(w io.Writer, verbose bool) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

// project is a resolved root plus its loaded configuration.
type project struct {
	root string
	cfg  *config.Config
}

// loadProject resolves the project root from --root (or the working
// directory) and loads its configuration, honouring --config.
func loadProject() (*project, error) {
	return openProject(rootFlag, cfgFile)
}

func openProject(root, file string) (*project, error) {
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		root = wd
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root %s: %w", root, err)
	}

	loader := config.NewLoader(abs)
	if file != "" {
		loader = config.NewFileLoader(abs, file)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return &project{root: abs, cfg: cfg}, nil
}

func (p *project) stateDir() string {
	return filepath.Join(p.root, graph.StateDir)
}

func (p *project) builder(opts ...analysis.BuilderOption) (*analysis.Builder, error) {
	return analysis.NewBuilder(p.root, p.cfg.AnalysisOptions(), opts...)
}

func (p *project) openStore() (*knowledge.Store, error) {
	store, err := knowledge.Open(p.cfg.KnowledgePath(p.root), knowledge.WithPolicy(p.cfg.KnowledgePolicy()))
	if err != nil {
		return nil, fmt.Errorf("failed to open knowledge store: %w", err)
	}
	return store, nil
}

// relPath converts a user-supplied path into the root-relative slash form
// the project model uses.
func (p *project) relPath(path string) string {
	if filepath.IsAbs(path) {
		if rel, err := filepath.Rel(p.root, path); err == nil {
			path = rel
		}
	}
	return filepath.ToSlash(filepath.Clean(path))
}
