package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/project-remedy/internal/graph"
	"github.com/mvp-joe/project-remedy/internal/typemodel"
)

var impactJSON bool

// impactCmd represents the impact command
var impactCmd = &cobra.Command{
	Use:   "impact <file>",
	Short: "Show which files are affected by changing a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadProject()
		if err != nil {
			return err
		}
		return runImpact(cmd.Context(), cmd.OutOrStdout(), p, args[0], impactJSON)
	},
}

// typeImpactCmd represents the type-impact command
var typeImpactCmd = &cobra.Command{
	Use:   "type-impact <TypeName>",
	Short: "Score the consequences of changing a type",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadProject()
		if err != nil {
			return err
		}
		return runTypeImpact(cmd.Context(), cmd.OutOrStdout(), p, args[0], impactJSON)
	},
}

func init() {
	rootCmd.AddCommand(impactCmd)
	rootCmd.AddCommand(typeImpactCmd)
	impactCmd.Flags().BoolVar(&impactJSON, "json", false, "Print the impact as JSON")
	typeImpactCmd.Flags().BoolVar(&impactJSON, "json", false, "Print the impact as JSON")
}

func runImpact(ctx context.Context, w io.Writer, p *project, file string, asJSON bool) error {
	b, err := p.builder()
	if err != nil {
		return err
	}
	defer b.Close()

	snap, err := b.Build(contextOrBackground(ctx))
	if err != nil {
		return err
	}

	rel := p.relPath(file)
	if !snap.Graph.Has(rel) {
		return fmt.Errorf("%s is not part of the dependency graph", rel)
	}

	impact := graph.ChangeImpact(snap.Graph, rel)
	if asJSON {
		return writeJSON(w, impact)
	}
	fmt.Fprintf(w, "Impact of changing %s (score %d)\n", impact.File, impact.Score)
	writeList(w, "Direct dependents", impact.Direct)
	writeList(w, "All affected files", impact.Closure)
	return nil
}

func runTypeImpact(ctx context.Context, w io.Writer, p *project, name string, asJSON bool) error {
	b, err := p.builder()
	if err != nil {
		return err
	}
	defer b.Close()

	snap, err := b.Build(contextOrBackground(ctx))
	if err != nil {
		return err
	}

	defs := snap.Types.Lookup(name)
	if len(defs) == 0 {
		return fmt.Errorf("type %s is not declared in the project", name)
	}

	impact := snap.Types.ChangeImpact(name)
	if asJSON {
		return writeJSON(w, struct {
			typemodel.Impact
			Definitions []typemodel.Definition `json:"definitions"`
		}{impact, defs})
	}

	fmt.Fprintf(w, "Impact of changing %s: score %.1f (%s)\n", impact.TypeName, impact.Score, impact.Severity)
	for _, d := range defs {
		fmt.Fprintf(w, "  declared as %s in %s:%d\n", d.Kind, d.File, d.Line)
	}
	fmt.Fprintf(w, "  Direct usages: %d\n", impact.DirectUsages)
	fmt.Fprintf(w, "  Subtypes:      %d\n", impact.ChildrenImpact)
	fmt.Fprintf(w, "  Implementors:  %d\n", impact.Implementors)
	writeList(w, "Affected files", impact.AffectedFiles)
	return nil
}

func contextOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
