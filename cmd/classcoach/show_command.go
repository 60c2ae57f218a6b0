package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"classcoach/internal/api"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show ID",
		Short: "Show an analysis with its results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseAnalysisID(args[0])
			if err != nil {
				return err
			}
			selected, err := parseFormat(format)
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *api.Client) error {
				item, err := client.Describe(cmd.Context(), id)
				if err != nil {
					return describeLookupError(err, id)
				}
				if selected != formatTable {
					return writeStructured(cmd, selected, item)
				}
				out := cmd.OutOrStdout()
				fmt.Fprint(out, renderAnalysis(item, shouldColorize(out)))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "o", formatTable, "Output format: table, json or yaml")
	return cmd
}
