package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"classcoach/internal/config"
	"classcoach/internal/daemonrun"
)

type options struct {
	configPath string
	runtime    daemonrun.Options
}

// runFunc is swapped in tests so flag handling can be checked without
// starting a daemon.
var runFunc = run

func newRootCommand() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:           "classcoachd",
		Short:         "classcoach analysis daemon",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFunc(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Configuration file path")
	cmd.Flags().StringVar(&opts.runtime.LogLevel, "log-level", "", "Override logging.level")
	cmd.Flags().BoolVar(&opts.runtime.Development, "dev", false, "Include source locations in log output")
	return cmd
}

func run(ctx context.Context, opts options) error {
	cfg, _, _, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	return daemonrun.Run(ctx, cfg, opts.runtime)
}
