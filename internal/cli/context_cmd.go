package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/project-remedy/internal/diagnostic"
)

var (
	contextJSON    bool
	contextCode    string
	contextMessage string
)

// contextCmd represents the context command
var contextCmd = &cobra.Command{
	Use:   "context <file> <line>",
	Short: "Print the context bundle assembled for a position",
	Long: `Context prints the bounded context remedy assembles for an error at
the given position: the containing scope, visible symbols, imports,
dependency neighbours, related type definitions and the surrounding
source window.

Examples:
  remedy context src/app.ts 42
  remedy context src/app.ts 42 --code TS2304 --message "Cannot find name 'User'."
`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		line, err := strconv.Atoi(args[1])
		if err != nil || line < 1 {
			return fmt.Errorf("invalid line %q: must be a positive integer", args[1])
		}
		p, err := loadProject()
		if err != nil {
			return err
		}
		return runContext(cmd.Context(), cmd.OutOrStdout(), p, args[0], line, contextJSON)
	},
}

func init() {
	rootCmd.AddCommand(contextCmd)
	contextCmd.Flags().BoolVar(&contextJSON, "json", false, "Print the bundle as JSON")
	contextCmd.Flags().StringVar(&contextCode, "code", "", "Diagnostic code to attach (e.g. TS2304)")
	contextCmd.Flags().StringVar(&contextMessage, "message", "", "Diagnostic message to attach")
}

func runContext(ctx context.Context, w io.Writer, p *project, file string, line int, asJSON bool) error {
	b, err := p.builder()
	if err != nil {
		return err
	}
	defer b.Close()

	snap, err := b.Build(contextOrBackground(ctx))
	if err != nil {
		return err
	}

	d := diagnostic.Classify(diagnostic.Diagnostic{
		File:     p.relPath(file),
		Line:     line,
		Column:   1,
		Severity: diagnostic.SeverityError,
		Code:     contextCode,
		Message:  contextMessage,
	})
	bundle, err := snap.Scopes.ErrorContext(d)
	if err != nil {
		return err
	}

	if asJSON {
		return writeJSON(w, bundle)
	}
	fmt.Fprint(w, bundle.Render())
	return nil
}
