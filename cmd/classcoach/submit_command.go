package main

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"classcoach/internal/analysis"
	"classcoach/internal/api"
	"classcoach/internal/upload"
)

type lessonFlags struct {
	subject string
	grade   string
	topic   string
	notes   string
}

func (f *lessonFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.subject, "subject", "", "Subject taught in the recording")
	cmd.Flags().StringVar(&f.grade, "grade", "", "Grade level of the class")
	cmd.Flags().StringVar(&f.topic, "topic", "", "Lesson topic")
	cmd.Flags().StringVar(&f.notes, "context", "", "Additional context for the feedback")
}

func (f *lessonFlags) value() api.EducationalContext {
	return api.EducationalContext{
		Subject:           f.subject,
		GradeLevel:        f.grade,
		LessonTopic:       f.topic,
		AdditionalContext: f.notes,
	}
}

func (f *lessonFlags) record() analysis.EducationalContext {
	v := f.value()
	return analysis.EducationalContext{
		Subject:           v.Subject,
		GradeLevel:        v.GradeLevel,
		LessonTopic:       v.LessonTopic,
		AdditionalContext: v.AdditionalContext,
	}
}

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var lesson lessonFlags
	var wait bool
	var interval time.Duration
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "submit FILE",
		Short: "Upload a recording to the daemon for analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if err := upload.Validate(path); err != nil {
				return err
			}
			info, err := os.Stat(path)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.Submit(cmd.Context(), api.SubmitRequest{Path: path, Context: lesson.value()})
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Submitted %s (%s) as analysis %d\n", info.Name(), humanize.IBytes(uint64(info.Size())), resp.ID)
				if !wait {
					fmt.Fprintf(out, "Follow progress with `classcoach status %d`\n", resp.ID)
					return nil
				}

				last := resp.Status
				final, err := client.WaitForCompletion(cmd.Context(), resp.ID, api.PollOptions{
					Interval: interval,
					Timeout:  timeout,
					OnUpdate: func(status api.AnalysisStatus) {
						if status.Status != last {
							last = status.Status
							fmt.Fprintf(out, "  %s\n", coloredStatus(status.Status, colorize))
						}
					},
				})
				if err != nil {
					return fmt.Errorf("wait for analysis %d: %w", resp.ID, err)
				}
				return printFinalStatus(cmd, final, colorize)
			})
		},
	}

	lesson.register(cmd)
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Wait until the analysis finishes")
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "Polling interval while waiting")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Minute, "Maximum time to wait")
	return cmd
}

func printFinalStatus(cmd *cobra.Command, status api.AnalysisStatus, colorize bool) error {
	out := cmd.OutOrStdout()
	if status.Status == "error" {
		fmt.Fprintln(out, renderStatusLine(fmt.Sprintf("Analysis %d", status.ID), statusError, status.ErrorMessage, colorize))
		return fmt.Errorf("analysis %d failed", status.ID)
	}
	fmt.Fprintln(out, renderStatusLine(fmt.Sprintf("Analysis %d", status.ID), statusOK, "completed", colorize))
	fmt.Fprintf(out, "View feedback with `classcoach show %d`\n", status.ID)
	return nil
}
