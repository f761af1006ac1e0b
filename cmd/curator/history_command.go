package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"curator/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent curation runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := ctx.buildApp(false)
			if err != nil {
				return err
			}
			defer app.Close()

			records, err := app.history.Recent(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("load run history: %w", err)
			}
			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintln(out, "No runs recorded yet.")
				return nil
			}

			headers := []string{"When", "Kind", "Seed", "Found", "Missing", "Added", "Removed", "Evicted", "Failed", "Duration"}
			aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight}
			rows := make([][]string, 0, len(records))
			for _, record := range records {
				rows = append(rows, historyRow(record))
			}
			fmt.Fprintln(out, renderRows(headers, rows, aligns))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to show")
	return cmd
}

func historyRow(record history.Record) []string {
	seed := record.SeedTitle
	if seed == "" {
		seed = "-"
	}
	return []string{
		record.StartedAt.Local().Format("2006-01-02 15:04"),
		record.Kind,
		seed,
		strconv.Itoa(record.Found),
		strconv.Itoa(record.Missing),
		strconv.Itoa(record.Added),
		strconv.Itoa(record.Removed),
		strconv.Itoa(record.Evicted),
		strconv.Itoa(record.Failed),
		record.Duration.Round(time.Millisecond).String(),
	}
}
