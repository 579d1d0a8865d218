package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/project-remedy/internal/orchestrator"
)

var rollbackList bool

// rollbackCmd represents the rollback command
var rollbackCmd = &cobra.Command{
	Use:   "rollback [run-id]",
	Short: "Restore the project files captured before a fix run",
	Long: `Rollback restores every file captured in a run's snapshot to its
pre-run bytes. Files that already match are left untouched.

Examples:
  # List available snapshots
  remedy rollback --list

  # Restore a run
  remedy rollback 3f2a9c1e-...
`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadProject()
		if err != nil {
			return err
		}
		backups := p.cfg.BackupDir(p.root)
		if rollbackList || len(args) == 0 {
			return listSnapshots(cmd.OutOrStdout(), backups)
		}
		return runRollback(cmd.OutOrStdout(), p.root, backups, args[0])
	},
}

func init() {
	rootCmd.AddCommand(rollbackCmd)
	rollbackCmd.Flags().BoolVarP(&rollbackList, "list", "l", false, "List available snapshots")
}

func listSnapshots(w io.Writer, backupDir string) error {
	snaps, err := orchestrator.ListSnapshots(backupDir)
	if err != nil {
		return err
	}
	if len(snaps) == 0 {
		fmt.Fprintln(w, "No snapshots found")
		return nil
	}
	for _, m := range snaps {
		fmt.Fprintf(w, "%s  %s  %d files\n", m.RunID, m.CreatedAt.Local().Format("2006-01-02 15:04:05"), len(m.Files))
	}
	return nil
}

func runRollback(w io.Writer, root, backupDir, runID string) error {
	restored, err := orchestrator.RestoreSnapshot(root, backupDir, runID)
	if err != nil {
		return err
	}
	if len(restored) == 0 {
		fmt.Fprintf(w, "Nothing to restore: every file already matches run %s\n", runID)
		return nil
	}
	fmt.Fprintf(w, "✓ Restored %d file(s) from run %s\n", len(restored), runID)
	for _, f := range restored {
		fmt.Fprintf(w, "  %s\n", f)
	}
	return nil
}
