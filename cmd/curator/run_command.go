package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"curator/internal/pipeline"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var mediaType string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "run <seed-title>",
		Short: "Curate the collection from a just-watched movie",
		Long: `Run one curation pass: ask the recommendation sources for titles similar
to the seed, score them in the points ledger, and reconcile the Plex
collection with the surviving membership. Titles missing from the library
are handed to Radarr when it is configured.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := ctx.buildApp(!dryRun)
			if err != nil {
				return err
			}
			defer app.Close()

			summary, err := app.pipeline.Run(cmd.Context(), args[0], mediaType, pipeline.Options{DryRun: dryRun})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if summary.Skipped {
				fmt.Fprintf(out, "Skipped: %s\n", summary.SkipReason)
				return nil
			}
			if dryRun {
				fmt.Fprintln(out, "Dry run; no changes were applied to Plex.")
			}
			fmt.Fprintf(out, "Seed: %s\n", summary.Seed)
			fmt.Fprintf(out, "Recommended %d titles: %d in library, %d missing\n",
				summary.Recommended, summary.Found, summary.Missing)
			fmt.Fprintf(out, "Collection: +%d / -%d, %d evicted", summary.Added, summary.Removed, summary.Evicted)
			if summary.Failed > 0 {
				fmt.Fprintf(out, ", %d failed", summary.Failed)
			}
			fmt.Fprintf(out, " (%s)\n", summary.Duration.Round(timeRounding))
			return nil
		},
	}

	cmd.Flags().StringVar(&mediaType, "media-type", "movie", "Media type reported by the watch trigger")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Compute the diff without mutating Plex")
	return cmd
}
