package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newPointsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "points",
		Short: "Show the points ledger driving collection membership",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := ctx.buildApp(false)
			if err != nil {
				return err
			}
			defer app.Close()

			entries := app.ledger.Entries()
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "The ledger is empty; run `curator run` first.")
				return nil
			}

			headers := []string{"Title", "Points", "Rating", "Last Seen"}
			aligns := []columnAlignment{alignLeft, alignRight, alignRight, alignLeft}
			rows := make([][]string, 0, len(entries))
			for _, entry := range entries {
				rating := "-"
				if entry.Rating != nil {
					rating = strconv.FormatFloat(*entry.Rating, 'f', 1, 64)
				}
				lastSeen := "-"
				if !entry.LastSeen.IsZero() {
					lastSeen = entry.LastSeen.Local().Format("2006-01-02")
				}
				rows = append(rows, []string{
					string(entry.Key),
					strconv.Itoa(entry.Points),
					rating,
					lastSeen,
				})
			}
			fmt.Fprintln(out, renderRows(headers, rows, aligns))
			fmt.Fprintf(out, "%d titles tracked\n", len(entries))
			return nil
		},
	}
	return cmd
}
