package main

import (
	"errors"
	"fmt"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"classcoach/internal/analysis"
	"classcoach/internal/api"
	"classcoach/internal/daemonrun"
	"classcoach/internal/logging"
	"classcoach/internal/upload"
	"classcoach/internal/workflow"
)

func newAnalyzeCommand(ctx *commandContext) *cobra.Command {
	var lesson lessonFlags
	var format string

	cmd := &cobra.Command{
		Use:   "analyze FILE",
		Short: "Analyze one recording in process, without a daemon",
		Long: "Runs transcription, prosody analysis, and feedback generation for FILE in this\n" +
			"process and prints the result. The daemon must not be running, since it would\n" +
			"compete for the same record.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			selected, err := parseFormat(format)
			if err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return err
			}

			lock := flock.New(cfg.LockPath())
			locked, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire lock: %w", err)
			}
			if !locked {
				return errors.New("the classcoach daemon is running; use `classcoach submit` instead")
			}
			defer lock.Unlock()

			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return err
			}
			store, err := analysis.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			saved, err := upload.NewStore(cfg, logger).Import(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			rec, err := store.Create(cmd.Context(), analysis.NewAnalysis{
				SourceRef:        saved.Ref,
				OriginalFilename: saved.OriginalFilename,
				Context:          lesson.record(),
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if selected == formatTable {
				fmt.Fprintf(out, "Analyzing %s as analysis %d...\n", saved.OriginalFilename, rec.ID)
			}
			orch := workflow.NewOrchestrator(cfg, store, daemonrun.Stages(cfg, logger), nil, logger)
			if err := orch.Run(cmd.Context(), rec.ID); err != nil {
				return err
			}

			item, err := api.NewStatusReporter(store).Describe(cmd.Context(), rec.ID)
			if err != nil {
				return err
			}
			if selected != formatTable {
				if err := writeStructured(cmd, selected, item); err != nil {
					return err
				}
			} else {
				fmt.Fprint(out, renderAnalysis(item, shouldColorize(out)))
			}
			if item.Status == string(analysis.StatusError) {
				return fmt.Errorf("analysis %d failed: %s", item.ID, item.ErrorMessage)
			}
			return nil
		},
	}

	lesson.register(cmd)
	cmd.Flags().StringVarP(&format, "format", "o", formatTable, "Output format: table, json or yaml")
	return cmd
}
