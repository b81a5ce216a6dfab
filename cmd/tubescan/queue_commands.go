package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"tubescan/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the job queue",
	}

	queueCmd.AddCommand(newQueueStatusCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))
	queueCmd.AddCommand(newQueueResetCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))

	return queueCmd
}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show queue status summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store queue.Store) error {
				summary, err := store.StatusCounts(cmd.Context())
				if err != nil {
					return err
				}
				rows := buildQueueStatusRows(summary)
				if len(rows) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
				return nil
			})
		},
	}
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store queue.Store) error {
				jobs, err := store.Load(cmd.Context())
				if err != nil {
					return err
				}
				jobs, err = filterJobs(jobs, listStatuses)
				if err != nil {
					return err
				}
				if jsonOut {
					if jobs == nil {
						jobs = []queue.Job{}
					}
					return writeJSON(cmd.OutOrStdout(), jobs)
				}
				if len(jobs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Status", "Model", "Keywords", "Created", "URL", "Error"},
					buildQueueListRows(jobs),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&listStatuses, "status", "s", nil, "Filter by job status (repeatable)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print jobs as JSON")
	return cmd
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var finishedOnly bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove jobs from the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store queue.Store) error {
				removed, err := store.Clear(cmd.Context(), finishedOnly)
				if err != nil {
					return err
				}
				if finishedOnly {
					fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d finished jobs\n", removed)
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d jobs\n", removed)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&finishedOnly, "done", false, "Remove only done and failed jobs")
	return cmd
}

func newQueueResetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-stuck",
		Short: "Return running jobs to pending",
		Long: "Return every running job to pending. Use this after a dispatcher crashed; jobs still\n" +
			"held by a live dispatcher will be processed twice.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store queue.Store) error {
				updated, err := store.ResetStuck(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reset %d jobs\n", updated)
				return nil
			})
		},
	}
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [jobID...]",
		Short: "Retry failed jobs",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store queue.Store) error {
				out := cmd.OutOrStdout()
				if len(args) == 0 {
					updated, err := store.RetryFailed(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Retrying %d failed jobs\n", updated)
					return nil
				}

				jobs, err := store.Load(cmd.Context())
				if err != nil {
					return err
				}
				ids, err := resolveJobIDs(jobs, args)
				if err != nil {
					return err
				}
				updated, err := store.RetryFailed(cmd.Context(), ids...)
				if err != nil {
					return err
				}
				if updated == 0 {
					return errors.New("no matching failed jobs")
				}
				fmt.Fprintf(out, "Retrying %d failed jobs\n", updated)
				return nil
			})
		},
	}
}
