package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"tubescan/internal/pipeline"
	"tubescan/internal/queue"
	"tubescan/internal/stats"
	"tubescan/internal/transcribe"
)

// durationSource looks up video lengths for ETA estimates.
type durationSource interface {
	Duration(ctx context.Context, ref string) (time.Duration, error)
}

// queueEstimate is the projected processing time of the pending jobs.
type queueEstimate struct {
	Pending   int
	Estimated int
	Total     time.Duration
	Workers   int
}

// WallClock spreads the total over the worker pool.
func (e queueEstimate) WallClock() time.Duration {
	if e.Workers <= 1 {
		return e.Total
	}
	return e.Total / time.Duration(e.Workers)
}

func newStatsCommand(ctx *commandContext) *cobra.Command {
	var eta bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show transcription speed per model",
		Long: "Show the recorded transcription speed (seconds of video per second of processing)\n" +
			"for each model. --eta also estimates the processing time of the pending queue,\n" +
			"looking up each video's duration with yt-dlp.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withPipeline(func(p *pipeline.Pipeline) error {
				out := cmd.OutOrStdout()
				models := p.Stats.List()
				if len(models) == 0 {
					fmt.Fprintln(out, "No transcription samples recorded yet")
				} else {
					fmt.Fprint(out, renderTable(
						[]string{"Model", "Samples", "Video", "Processing", "Speed"},
						buildStatsRows(models),
						[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight},
					))
				}
				if !eta {
					return nil
				}

				jobs, err := p.Store.Load(cmd.Context())
				if err != nil {
					return err
				}
				est := estimateQueue(cmd.Context(), jobs, p.Catalog, p.Stats)
				est.Workers = p.Config.Dispatcher.Workers
				renderEstimate(cmd, est)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&eta, "eta", false, "Estimate processing time for pending jobs")
	return cmd
}

func buildStatsRows(models []stats.ModelStats) [][]string {
	rows := make([][]string, 0, len(models))
	for _, m := range models {
		speed := "-"
		if v, ok := m.Speed(); ok {
			speed = fmt.Sprintf("%.2fx", v)
		}
		rows = append(rows, []string{
			transcribe.Label(m.Model),
			strconv.Itoa(m.SampleCount),
			formatSeconds(secondsToDuration(m.TotalVideoDuration)),
			formatSeconds(secondsToDuration(m.TotalProcessingTime)),
			speed,
		})
	}
	return rows
}

func estimateQueue(ctx context.Context, jobs []queue.Job, durations durationSource, st *stats.Store) queueEstimate {
	var est queueEstimate
	for _, job := range jobs {
		if job.Status != queue.StatusPending {
			continue
		}
		est.Pending++
		if _, known := st.AverageSpeed(job.Model); !known {
			continue
		}
		d, err := durations.Duration(ctx, job.VideoRef)
		if err != nil || d <= 0 {
			continue
		}
		if remaining, ok := st.EstimateRemaining(job.Model, d); ok {
			est.Total += remaining
			est.Estimated++
		}
	}
	return est
}

func renderEstimate(cmd *cobra.Command, est queueEstimate) {
	out := cmd.OutOrStdout()
	if est.Pending == 0 {
		fmt.Fprintln(out, "No pending jobs")
		return
	}
	fmt.Fprintf(out, "Pending jobs: %d (%d with an estimate)\n", est.Pending, est.Estimated)
	if est.Estimated == 0 {
		fmt.Fprintln(out, "Estimated processing time: unknown")
		return
	}
	fmt.Fprintf(out, "Estimated processing time: %s (about %s with %d workers)\n",
		formatSeconds(est.Total), formatSeconds(est.WallClock()), max(1, est.Workers))
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
