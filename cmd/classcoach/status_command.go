package main

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"classcoach/internal/analysis"
	"classcoach/internal/api"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status [ID]",
		Short: "Show daemon status, or the status of one analysis",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				id, err := parseAnalysisID(args[0])
				if err != nil {
					return err
				}
				return ctx.withClient(func(client *api.Client) error {
					status, err := client.GetStatus(cmd.Context(), id)
					if err != nil {
						return describeLookupError(err, id)
					}
					if asJSON {
						return writeJSON(cmd, status)
					}
					printAnalysisStatus(cmd, status)
					return nil
				})
			}
			return ctx.withClient(func(client *api.Client) error {
				status, err := client.Status(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, status)
				}
				printDaemonStatus(cmd, status)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func printAnalysisStatus(cmd *cobra.Command, status api.AnalysisStatus) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	kind := analysisStatusKind(status.Status)
	message := statusLabel(status.Status)
	if status.ErrorMessage != "" {
		message += ": " + status.ErrorMessage
	}
	fmt.Fprintln(out, renderStatusLine(fmt.Sprintf("Analysis %d", status.ID), kind, message, colorize))
	if status.CompletedAt != "" {
		fmt.Fprintln(out, renderStatusLine("Finished", statusInfo, relativeTime(status.CompletedAt), colorize))
	}
}

func printDaemonStatus(cmd *cobra.Command, status api.DaemonStatus) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	lines := renderSectionHeader("Daemon", colorize)

	daemonKind := statusError
	daemonText := "stopped"
	if status.Running {
		daemonKind = statusOK
		daemonText = fmt.Sprintf("running (pid %d)", status.PID)
	}
	lines = append(lines,
		renderStatusLine("Daemon", daemonKind, daemonText, colorize),
		renderStatusLine("Workflow", boolKind(status.Workflow.Running), yesNo(status.Workflow.Running), colorize),
		renderStatusLine("In flight", statusInfo, strconv.Itoa(status.Workflow.InFlight), colorize),
		renderStatusLine("Database", statusInfo, status.DatabasePath, colorize),
		renderStatusLine("Uploads", statusInfo, status.UploadDir, colorize),
	)
	if status.Workflow.LastError != "" {
		lines = append(lines, renderStatusLine("Last error", statusWarn, status.Workflow.LastError, colorize))
	}
	if sweep := status.Workflow.LastSweep; sweep != nil {
		kind, text := statusOK, fmt.Sprintf("%d marked %s", sweep.Marked, relativeTime(sweep.At))
		if sweep.Error != "" {
			kind, text = statusError, sweep.Error
		} else if sweep.Marked > 0 {
			kind = statusWarn
		}
		lines = append(lines, renderStatusLine("Stalled sweep", kind, text, colorize))
	}

	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Stages", colorize)...)
	for _, stage := range status.Workflow.StageHealth {
		detail := stage.Detail
		if detail == "" {
			detail = "ready"
		}
		lines = append(lines, renderStatusLine(statusLabel(stage.Name), boolKind(stage.Ready), detail, colorize))
	}

	if len(status.Workflow.Preflight) > 0 {
		lines = append(lines, "")
		lines = append(lines, renderSectionHeader("Preflight", colorize)...)
		for _, check := range status.Workflow.Preflight {
			lines = append(lines, renderStatusLine(check.Name, boolKind(check.Passed), check.Detail, colorize))
		}
	}

	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Analyses", colorize)...)
	lines = append(lines, renderQueueStats(status.Workflow.QueueStats))
	fmt.Fprintln(out, strings.Join(lines, "\n"))
}

func renderQueueStats(stats map[string]int) string {
	order := make(map[string]int)
	for i, status := range analysis.AllStatuses() {
		order[string(status)] = i
	}
	names := make([]string, 0, len(stats))
	for name := range stats {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return order[names[i]] < order[names[j]] })

	rows := make([][]string, 0, len(names))
	for _, name := range names {
		rows = append(rows, []string{statusLabel(name), strconv.Itoa(stats[name])})
	}
	return renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight})
}

func boolKind(ok bool) statusKind {
	if ok {
		return statusOK
	}
	return statusError
}

func parseAnalysisID(value string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid analysis id %q", value)
	}
	return id, nil
}

func describeLookupError(err error, id int64) error {
	switch {
	case errors.Is(err, api.ErrNotFound):
		return fmt.Errorf("analysis %d not found", id)
	case errors.Is(err, api.ErrNotCompleted):
		return fmt.Errorf("analysis %d has not completed yet; check `classcoach status %d`", id, id)
	default:
		return err
	}
}
