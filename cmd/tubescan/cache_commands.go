package main

import (
	"fmt"
	"strconv"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"tubescan/internal/transcache"
)

// previewRunes bounds the transcript excerpt printed by "cache show".
const previewRunes = 400

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage cached transcripts",
	}
	cacheCmd.AddCommand(newCacheListCommand(ctx))
	cacheCmd.AddCommand(newCacheShowCommand(ctx))
	cacheCmd.AddCommand(newCacheRemoveCommand(ctx))
	cacheCmd.AddCommand(newCacheClearCommand(ctx))
	return cacheCmd
}

func (c *commandContext) withCache(fn func(*transcache.Cache) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return err
	}
	return fn(transcache.New(cfg.Paths.CacheDir, logger))
}

func newCacheListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List cached transcripts, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withCache(func(cache *transcache.Cache) error {
				entries, err := cache.List()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(entries) == 0 {
					fmt.Fprintln(out, "Cache is empty")
					return nil
				}
				rows := make([][]string, 0, len(entries))
				for i, e := range entries {
					rows = append(rows, []string{
						strconv.Itoa(i + 1),
						e.Title,
						humanize.Comma(int64(utf8.RuneCountInString(e.Transcript))),
						humanize.Time(e.CachedAt()),
						e.VideoRef,
					})
				}
				fmt.Fprint(out, renderTable(
					[]string{"#", "Title", "Chars", "Cached", "URL"}, rows,
					[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft, alignLeft},
				))
				fmt.Fprintf(out, "%d transcript(s) in %s\n", len(entries), cache.Dir())
				return nil
			})
		},
	}
}

func newCacheShowCommand(ctx *commandContext) *cobra.Command {
	var full bool

	cmd := &cobra.Command{
		Use:   "show <url>",
		Short: "Print a cached transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withCache(func(cache *transcache.Cache) error {
				entry, ok := cache.Lookup(args[0])
				if !ok {
					return fmt.Errorf("video %q not found in cache", args[0])
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Title:  %s\n", entry.Title)
				fmt.Fprintf(out, "URL:    %s\n", entry.VideoRef)
				if cached := entry.CachedAt(); !cached.IsZero() {
					fmt.Fprintf(out, "Cached: %s\n", cached.Local().Format("2006-01-02 15:04:05"))
				}
				fmt.Fprintf(out, "File:   %s\n\n", cache.Path(entry.VideoRef))
				text := entry.Transcript
				if !full {
					text = truncateRunes(text, previewRunes)
				}
				fmt.Fprintln(out, text)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&full, "full", false, "Print the whole transcript")
	return cmd
}

func newCacheRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <url>...",
		Short: "Delete cached transcripts so the videos are transcribed again",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withCache(func(cache *transcache.Cache) error {
				for _, ref := range args {
					if err := cache.Remove(ref); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", ref)
				}
				return nil
			})
		},
	}
}

func newCacheClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every cached transcript",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withCache(func(cache *transcache.Cache) error {
				removed, err := cache.Clear()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cached transcript(s)\n", removed)
				return nil
			})
		},
	}
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "…"
}
