package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/project-remedy/internal/knowledge"
)

var knowledgeJSON bool

// knowledgeCmd represents the knowledge command group
var knowledgeCmd = &cobra.Command{
	Use:   "knowledge",
	Short: "Inspect the knowledge store",
}

var knowledgeStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show knowledge store statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(s *knowledge.Store) error {
			return printKnowledgeStats(cmd.OutOrStdout(), s, knowledgeJSON)
		})
	},
}

var knowledgeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List learned error patterns",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(s *knowledge.Store) error {
			return printLearnedPatterns(cmd.OutOrStdout(), s, knowledgeJSON)
		})
	},
}

func init() {
	rootCmd.AddCommand(knowledgeCmd)
	knowledgeCmd.AddCommand(knowledgeStatsCmd)
	knowledgeCmd.AddCommand(knowledgeListCmd)
	knowledgeCmd.PersistentFlags().BoolVar(&knowledgeJSON, "json", false, "Print as JSON")
}

func withStore(fn func(*knowledge.Store) error) error {
	p, err := loadProject()
	if err != nil {
		return err
	}
	store, err := p.openStore()
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func printKnowledgeStats(w io.Writer, s *knowledge.Store, asJSON bool) error {
	stats := s.Stats()
	if asJSON {
		return writeJSON(w, stats)
	}

	fmt.Fprintf(w, "Knowledge store: %s\n", s.Path())
	fmt.Fprintf(w, "  Curated entries:  %s\n", formatNumber(stats.Entries))
	fmt.Fprintf(w, "  Learned patterns: %s\n", formatNumber(stats.LearnedPatterns))
	fmt.Fprintf(w, "  Verified fixes:   %s\n", formatNumber(stats.VerifiedFixes))
	fmt.Fprintf(w, "  Sightings:        %s\n", formatNumber(stats.TotalUsage))
	fmt.Fprintf(w, "  Successes:        %s\n", formatNumber(stats.TotalSuccesses))
	fmt.Fprintf(w, "  Avg confidence:   %.2f\n", stats.AvgConfidence)

	if id, ok := s.ProjectMemory("last_run_id"); ok {
		errs, _ := s.ProjectMemory("last_error_count")
		fixed, _ := s.ProjectMemory("last_fixed_count")
		fmt.Fprintf(w, "  Last run:         %s (%s errors, %s fixed)\n", id, errs, fixed)
	}
	return nil
}

func printLearnedPatterns(w io.Writer, s *knowledge.Store, asJSON bool) error {
	patterns := s.LearnedPatterns()
	if asJSON {
		if patterns == nil {
			patterns = []knowledge.LearnedPattern{}
		}
		return writeJSON(w, patterns)
	}
	if len(patterns) == 0 {
		fmt.Fprintln(w, "No learned patterns yet")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CODE\tCATEGORY\tEXT\tSEEN\tFIXED\tCONFIDENCE\tMESSAGE")
	for _, p := range patterns {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%.2f\t%s\n",
			p.Code, p.Category, p.Extension, p.UsageCount, p.SuccessCount, p.Confidence, truncate(p.Message, 60))
	}
	return tw.Flush()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
