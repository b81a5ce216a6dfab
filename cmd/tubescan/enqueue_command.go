package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"tubescan/internal/manifest"
	"tubescan/internal/pipeline"
	"tubescan/internal/queue"
	"tubescan/internal/ytdlp"
)

func newEnqueueCommand(ctx *commandContext) *cobra.Command {
	var keywordFlags []string
	var modelFlag string
	var manifestPath string
	var reset bool
	var expand bool

	cmd := &cobra.Command{
		Use:   "enqueue [url...]",
		Short: "Add one job per video to the shared queue",
		Long: "Add pending jobs for tubescand to process. URLs come from the arguments or a YAML\n" +
			"manifest (--manifest). Playlist and channel URLs are expanded to one job per video.\n" +
			"--reset replaces the whole queue with the new selection.",
		RunE: func(cmd *cobra.Command, args []string) error {
			manifestPath = strings.TrimSpace(manifestPath)
			if len(args) == 0 && manifestPath == "" {
				return errors.New("provide at least one URL or --manifest")
			}
			keywords := splitKeywords(keywordFlags)

			return ctx.withPipeline(func(p *pipeline.Pipeline) error {
				model := resolveModel(modelFlag, p.Config)
				var entries []manifest.ResolvedEntry
				if manifestPath != "" {
					m, err := manifest.Load(manifestPath)
					if err != nil {
						return err
					}
					if len(keywords) > 0 && len(m.Keywords) == 0 {
						m.Keywords = keywords
					}
					entries = append(entries, m.Resolve(model)...)
				}
				if len(args) > 0 {
					if len(keywords) == 0 {
						return errors.New("at least one keyword is required (--keywords)")
					}
					for _, arg := range args {
						entries = append(entries, manifest.ResolvedEntry{
							Job:    queue.NewJob{VideoRef: arg, Keywords: keywords, Model: model},
							Expand: expand,
						})
					}
				}

				specs, err := expandEntries(cmd, p.Catalog, entries)
				if err != nil {
					return err
				}
				for _, spec := range specs {
					if len(splitKeywords(spec.Keywords)) == 0 {
						return fmt.Errorf("%s: no keywords (set them in the manifest or with --keywords)", spec.VideoRef)
					}
					if _, err := p.Registry.Resolve(spec.Model); err != nil {
						return fmt.Errorf("%s: %w", spec.VideoRef, err)
					}
				}
				jobs, err := p.Store.Enqueue(cmd.Context(), specs, reset)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				verb := "Queued"
				if reset {
					verb = "Replaced queue with"
				}
				fmt.Fprintf(out, "%s %d job(s) in %s\n", verb, len(jobs), p.Store.Location())
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&keywordFlags, "keywords", "k", nil, "Keywords to count (repeat or comma-separate)")
	cmd.Flags().StringVarP(&modelFlag, "model", "m", "", "Whisper model (defaults to transcriber.default_model)")
	cmd.Flags().StringVar(&manifestPath, "manifest", "", "YAML manifest describing jobs")
	cmd.Flags().BoolVar(&reset, "reset", false, "Discard existing jobs before adding")
	cmd.Flags().BoolVar(&expand, "expand", true, "Expand playlist and channel URLs into one job per video")
	return cmd
}

func expandEntries(cmd *cobra.Command, cat catalog, entries []manifest.ResolvedEntry) ([]queue.NewJob, error) {
	specs := make([]queue.NewJob, 0, len(entries))
	for _, entry := range entries {
		if !entry.Expand || !ytdlp.IsPlaylist(entry.Job.VideoRef) {
			specs = append(specs, entry.Job)
			continue
		}
		videos, err := cat.ListVideos(cmd.Context(), entry.Job.VideoRef)
		if err != nil {
			return nil, err
		}
		if len(videos) == 0 {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s lists no videos\n", entry.Job.VideoRef)
		}
		for _, v := range videos {
			job := entry.Job
			job.VideoRef = v.VideoRef
			specs = append(specs, job)
		}
	}
	return specs, nil
}
