package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	dryRunReconcile bool
	jsonReconcile   bool
)

// reconcileCmd is the parent command for reconciliation operations.
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reconcile reservation feeds into the record store",
}

// reconcileRunCmd performs a single reconciliation run.
var reconcileRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one reconciliation pass",
	Long: `Fetches every enabled feed, reconciles each property against its
active records and writes the resulting operations.

Examples:
  # Plan only, nothing is written
  reconcile run --dry-run

  # Print the full run report as JSON
  reconcile run --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApplication(cmd.Context(), dryRunReconcile)
		if err != nil {
			return err
		}
		defer app.logger.Sync()

		report, err := app.service.Run(cmd.Context())
		if err != nil {
			return err
		}

		if jsonReconcile {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		}

		s := report.Summary
		fmt.Println("\n=== Reconciliation Summary ===")
		fmt.Printf("Run: %s\n", report.RunID)
		fmt.Printf("New: %d\n", s.New)
		fmt.Printf("Modified: %d\n", s.Modified)
		fmt.Printf("Unchanged: %d\n", s.Unchanged)
		fmt.Printf("Removed: %d\n", s.Removed)
		fmt.Printf("Identifier Changes: %d\n", s.IdentifierChanges)
		fmt.Printf("Duplicates Ignored: %d\n", s.DuplicatesIgnored)
		fmt.Printf("Errors: %d\n", s.Errors)
		fmt.Printf("Feeds/Files Processed: %d\n", s.FeedsProcessed)
		if len(report.FailedFeeds) > 0 {
			fmt.Printf("Failed Feeds: %v\n", report.FailedFeeds)
		}
		if report.DryRun {
			fmt.Println("\nDry run: no changes were written.")
		}
		fmt.Printf("Execution Time: %s\n", report.Duration)
		return nil
	},
}

func init() {
	reconcileRunCmd.Flags().BoolVar(&dryRunReconcile, "dry-run", false, "Plan the run without writing")
	reconcileRunCmd.Flags().BoolVar(&jsonReconcile, "json", false, "Print the run report as JSON")

	reconcileCmd.AddCommand(reconcileRunCmd)
	RootCmd.AddCommand(reconcileCmd)
}
