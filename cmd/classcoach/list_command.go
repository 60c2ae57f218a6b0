package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"classcoach/internal/api"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"history"},
		Short:   "List recent analyses",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				items, err := client.History(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, items)
				}
				out := cmd.OutOrStdout()
				if len(items) == 0 {
					fmt.Fprintln(out, "No analyses yet")
					return nil
				}
				fmt.Fprintln(out, renderHistory(items, shouldColorize(out)))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of analyses to show (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func renderHistory(items []api.Analysis, colorize bool) string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		score := "-"
		if value, ok := api.OverallScore(item.Feedback); ok {
			score = strconv.FormatFloat(value, 'f', -1, 64)
		}
		rows = append(rows, []string{
			strconv.FormatInt(item.ID, 10),
			item.OriginalFilename,
			item.Context.Subject,
			coloredStatus(item.Status, colorize),
			score,
			relativeTime(item.CreatedAt),
		})
	}
	return renderTable(
		[]string{"ID", "File", "Subject", "Status", "Score", "Submitted"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	)
}
