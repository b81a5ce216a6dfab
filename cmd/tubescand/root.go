package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"tubescan/internal/config"
	"tubescan/internal/daemonrun"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	var logLevel string
	var workers int
	var skipPreflight bool

	cmd := &cobra.Command{
		Use:           "tubescand",
		Short:         "Drain the tubescan job queue",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, _, err := config.Load(strings.TrimSpace(configFlag))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := applyWorkers(cfg, workers); err != nil {
				return err
			}
			summary, err := daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:      logLevel,
				SkipPreflight: skipPreflight,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Processed %d job(s): %d done, %d failed\n",
				summary.Processed(), summary.Succeeded, summary.Failed)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level (debug, info, warn, error)")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Override dispatcher.workers for this run")
	cmd.Flags().BoolVar(&skipPreflight, "skip-preflight", false, "Start without directory and binary checks")
	return cmd
}

// applyWorkers overrides the pool width when the flag was given.
func applyWorkers(cfg *config.Config, workers int) error {
	if workers == 0 {
		return nil
	}
	cfg.Dispatcher.Workers = workers
	return cfg.Validate()
}
