package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"tubescan/internal/analysis"
	"tubescan/internal/pipeline"
	"tubescan/internal/ytdlp"
)

// catalog expands channel and playlist references.
type catalog interface {
	ListVideos(ctx context.Context, ref string) ([]ytdlp.Video, error)
}

func newAnalyzeCommand(ctx *commandContext) *cobra.Command {
	var keywordFlags []string
	var modelFlag string
	var expand bool
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "analyze <url>...",
		Short: "Transcribe videos and count keyword occurrences",
		Long: "Transcribe each video (reusing cached transcripts) and report where the keywords occur.\n" +
			"Playlist and channel URLs are expanded to their videos unless --expand=false.\n" +
			"Interrupting stops after the current video and prints a partial report.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keywords := splitKeywords(keywordFlags)
			if len(keywords) == 0 {
				return errors.New("at least one keyword is required (--keywords)")
			}
			return ctx.withPipeline(func(p *pipeline.Pipeline) error {
				model, err := p.Registry.Resolve(resolveModel(modelFlag, p.Config))
				if err != nil {
					return err
				}
				runCtx, stop, release := watchInterrupt(cmd.Context(), cmd.ErrOrStderr())
				defer release()

				refs, err := collectRefs(runCtx, p.Catalog, args, expand)
				if err != nil {
					return err
				}

				printer := newProgressPrinter(cmd.ErrOrStderr(), stop)
				report, runErr := p.Orchestrator.Analyze(runCtx, analysis.Request{
					VideoRefs: refs,
					Keywords:  keywords,
					Model:     model,
				}, printer)
				printer.finish(report)

				if jsonOut {
					if err := writeJSON(cmd.OutOrStdout(), report); err != nil {
						return err
					}
				} else {
					renderReport(cmd.OutOrStdout(), report)
				}
				return runErr
			})
		},
	}

	cmd.Flags().StringSliceVarP(&keywordFlags, "keywords", "k", nil, "Keywords to count (repeat or comma-separate)")
	cmd.Flags().StringVarP(&modelFlag, "model", "m", "", "Whisper model (defaults to transcriber.default_model)")
	cmd.Flags().BoolVar(&expand, "expand", true, "Expand playlist and channel URLs into their videos")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the report as JSON")
	return cmd
}

// collectRefs resolves arguments into video references, preserving order.
func collectRefs(ctx context.Context, cat catalog, args []string, expand bool) ([]string, error) {
	refs := make([]string, 0, len(args))
	for _, arg := range args {
		if !expand || !ytdlp.IsPlaylist(arg) {
			refs = append(refs, arg)
			continue
		}
		videos, err := cat.ListVideos(ctx, arg)
		if err != nil {
			return nil, err
		}
		for _, v := range videos {
			refs = append(refs, v.VideoRef)
		}
	}
	return refs, nil
}

func renderReport(out io.Writer, report analysis.Report) {
	fmt.Fprintf(out, "Videos analysed: %d of %d\n", report.Processed, report.TotalVideos)
	if report.Stopped {
		fmt.Fprintln(out, "Analysis stopped early; results cover the videos above only.")
	}
	fmt.Fprintf(out, "Cached transcripts: %d\n", report.CacheHits)
	fmt.Fprintf(out, "Total occurrences: %d\n", report.TotalOccurrences)
	if len(report.Keywords) == 0 {
		return
	}

	totals := report.Occurrences()
	rows := make([][]string, 0, len(totals))
	for _, t := range totals {
		rows = append(rows, []string{t.Keyword, strconv.Itoa(t.Count), strconv.Itoa(t.Videos)})
	}
	fmt.Fprint(out, renderTable([]string{"Keyword", "Occurrences", "Videos"}, rows,
		[]columnAlignment{alignLeft, alignRight, alignRight}))

	for _, keyword := range report.Keywords {
		details := report.Details[keyword]
		if len(details) == 0 {
			continue
		}
		fmt.Fprintf(out, "\n%s\n", keyword)
		detailRows := make([][]string, 0, len(details))
		for _, d := range details {
			detailRows = append(detailRows, []string{d.Title, strconv.Itoa(d.Count), d.VideoRef})
		}
		fmt.Fprint(out, renderTable([]string{"Title", "Count", "URL"}, detailRows,
			[]columnAlignment{alignLeft, alignRight, alignLeft}))
	}
}
