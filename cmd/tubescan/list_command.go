package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"tubescan/internal/pipeline"
)

type videoListing struct {
	Title    string `json:"title"`
	Duration string `json:"duration"`
	VideoRef string `json:"url"`
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list <url>",
		Short: "List the videos of a channel, playlist, or single video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withPipeline(func(p *pipeline.Pipeline) error {
				videos, err := p.Catalog.ListVideos(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				listings := make([]videoListing, 0, len(videos))
				for _, v := range videos {
					listings = append(listings, videoListing{Title: v.Title, Duration: v.DisplayDuration(), VideoRef: v.VideoRef})
				}
				if jsonOut {
					return writeJSON(cmd.OutOrStdout(), listings)
				}
				if len(listings) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No videos found")
					return nil
				}
				rows := make([][]string, 0, len(listings))
				for i, l := range listings {
					rows = append(rows, []string{strconv.Itoa(i + 1), l.Title, l.Duration, l.VideoRef})
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"#", "Title", "Duration", "URL"}, rows,
					[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the listing as JSON")
	return cmd
}
