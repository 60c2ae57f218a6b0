package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"classcoach/internal/api"
	"classcoach/internal/export"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	var xlsxPath string
	var limit int

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export analysis history to a spreadsheet",
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(xlsxPath)
			if target == "" {
				return errors.New("--xlsx is required")
			}
			if !strings.HasSuffix(strings.ToLower(target), ".xlsx") {
				target += ".xlsx"
			}
			return ctx.withClient(func(client *api.Client) error {
				items, err := client.History(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if err := export.SaveXLSX(target, items); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported %d analyses to %s\n", len(items), target)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&xlsxPath, "xlsx", "", "Destination .xlsx file")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of analyses to export (0 for all)")
	return cmd
}
