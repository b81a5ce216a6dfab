package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"tubescan/internal/daemonrun"
)

func newDispatchCommand(ctx *commandContext) *cobra.Command {
	var workers int
	var skipPreflight bool

	cmd := &cobra.Command{
		Use:   "dispatch",
		Short: "Drain the job queue in the foreground",
		Long: "Run the dispatcher in this process until no pending or running job remains.\n" +
			"This is equivalent to running tubescand.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if workers != 0 {
				cfg.Dispatcher.Workers = workers
				if err := cfg.Validate(); err != nil {
					return err
				}
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			summary, err := daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				Logger:        logger,
				SkipPreflight: skipPreflight,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Processed %d job(s): %d done, %d failed, %d cached, %d occurrence(s)\n",
				summary.Processed(), summary.Succeeded, summary.Failed, summary.CacheHits, summary.Occurrences)
			return nil
		},
	}

	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Override dispatcher.workers for this run")
	cmd.Flags().BoolVar(&skipPreflight, "skip-preflight", false, "Start without directory and binary checks")
	return cmd
}
