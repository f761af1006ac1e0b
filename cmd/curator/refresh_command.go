package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"curator/internal/pipeline"
)

const timeRounding = 10 * time.Millisecond

func newRefreshCommand(ctx *commandContext) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Rewrite the collection order from the current ledger",
		Long: `Rebuild the collection in a fresh random order: every movie the ledger
tracks is removed and re-added in batches. Items of other media types in
the collection are left untouched. Safe to re-run after a partial failure.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := ctx.buildApp(!dryRun)
			if err != nil {
				return err
			}
			defer app.Close()

			summary, err := app.pipeline.Refresh(cmd.Context(), pipeline.Options{DryRun: dryRun})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if dryRun {
				fmt.Fprintln(out, "Dry run; no changes were applied to Plex.")
			}
			fmt.Fprintf(out, "Refreshed %d items", summary.Processed)
			if summary.Failed > 0 {
				fmt.Fprintf(out, ", %d failed", summary.Failed)
			}
			fmt.Fprintf(out, " (%s)\n", summary.Duration.Round(timeRounding))
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report the planned rebuild without mutating Plex")
	return cmd
}
