package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "TMDB lookup cache utilities",
	}

	cacheCmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show cache size and location",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := ctx.buildApp(false)
			if err != nil {
				return err
			}
			defer app.Close()

			resolved := 0
			for _, entry := range app.cache.Entries() {
				if entry.Found() {
					resolved++
				}
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Path:     %s\n", app.cfg.CachePath())
			fmt.Fprintf(out, "Entries:  %d (%d resolved, %d not found)\n",
				app.cache.Count(), resolved, app.cache.Count()-resolved)
			return nil
		},
	})

	cacheCmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Drop all cached TMDB lookups",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := ctx.buildApp(true)
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.cache.Clear(); err != nil {
				return fmt.Errorf("clear cache: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Cache cleared.")
			return nil
		},
	})

	return cacheCmd
}
