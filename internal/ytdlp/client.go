package ytdlp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/exec"
	"strings"
	"time"

	"tubescan/internal/config"
	"tubescan/internal/logging"
	"tubescan/internal/services"
)

// TitleUnavailable replaces titles yt-dlp cannot resolve.
const TitleUnavailable = "Title unavailable"

const watchURLPrefix = "https://www.youtube.com/watch?v="

// Video is one catalog entry.
type Video struct {
	Title    string        `json:"title"`
	Duration time.Duration `json:"-"`
	VideoRef string        `json:"url"`
}

// DisplayDuration formats the duration as MM:SS, H:MM:SS past an hour, or
// N/A when unknown.
func (v Video) DisplayDuration() string {
	return FormatDuration(v.Duration)
}

// CommandRunner executes a command and returns its stdout.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Client wraps the yt-dlp binary.
type Client struct {
	binary            string
	checkCertificates bool
	metadataTimeout   time.Duration
	downloadTimeout   time.Duration
	run               CommandRunner
	logger            *slog.Logger
}

// NewFromConfig builds a client using the transcriber settings.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) *Client {
	return &Client{
		binary:            cfg.YtDlpBinary(),
		checkCertificates: cfg.Transcriber.CheckCertificates,
		metadataTimeout:   time.Duration(cfg.Transcriber.MetadataTimeout) * time.Second,
		downloadTimeout:   time.Duration(cfg.Transcriber.DownloadTimeout) * time.Second,
		run:               execRunner,
		logger:            logging.NewComponentLogger(logger, "ytdlp"),
	}
}

// WithCommandRunner sets a custom command runner (for testing).
func (c *Client) WithCommandRunner(runner CommandRunner) {
	if runner != nil {
		c.run = runner
	}
}

// IsPlaylist reports whether ref points at a channel or playlist.
func IsPlaylist(ref string) bool {
	for _, marker := range []string{"playlist?list=", "/@", "/channel/", "/c/"} {
		if strings.Contains(ref, marker) {
			return true
		}
	}
	return false
}

type metadata struct {
	Type       string     `json:"_type"`
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Duration   float64    `json:"duration"`
	WebpageURL string     `json:"webpage_url"`
	Entries    []metadata `json:"entries"`
}

// ListVideos expands ref into its videos. A single video yields one entry.
func (c *Client) ListVideos(ctx context.Context, ref string) ([]Video, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, services.Wrap(services.ErrValidation, "ytdlp", "list videos", "reference is empty", nil)
	}
	args := []string{"--quiet", "--no-warnings", "-J"}
	if IsPlaylist(ref) {
		args = append(args, "--flat-playlist")
	}
	meta, err := c.fetchMetadata(ctx, ref, args)
	if err != nil {
		return nil, err
	}

	if meta.Type != "playlist" {
		url := meta.WebpageURL
		if url == "" {
			url = ref
		}
		return []Video{{Title: titleOrFallback(meta.Title), Duration: seconds(meta.Duration), VideoRef: url}}, nil
	}

	videos := make([]Video, 0, len(meta.Entries))
	for _, entry := range meta.Entries {
		if strings.TrimSpace(entry.ID) == "" {
			continue
		}
		videos = append(videos, Video{
			Title:    titleOrFallback(entry.Title),
			Duration: seconds(entry.Duration),
			VideoRef: watchURLPrefix + entry.ID,
		})
	}
	c.logger.Info("playlist resolved",
		logging.String("playlist", meta.Title),
		logging.Int("videos", len(videos)),
	)
	return videos, nil
}

// Title returns the video title, or TitleUnavailable when it cannot be read.
func (c *Client) Title(ctx context.Context, ref string) string {
	meta, err := c.fetchMetadata(ctx, ref, []string{"--quiet", "--no-warnings", "-J"})
	if err != nil {
		logging.WarnWithContext(c.logger, "video title unavailable", "title_lookup_failed",
			logging.String(logging.FieldVideoRef, ref),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the video is reachable with yt-dlp"),
			logging.String(logging.FieldImpact, "reports show a placeholder title"),
		)
		return TitleUnavailable
	}
	return titleOrFallback(meta.Title)
}

// Duration returns the length of a single video. Zero means unknown.
func (c *Client) Duration(ctx context.Context, ref string) (time.Duration, error) {
	meta, err := c.fetchMetadata(ctx, ref, []string{"--quiet", "--no-warnings", "-J"})
	if err != nil {
		return 0, err
	}
	return seconds(meta.Duration), nil
}

// DownloadAudio extracts the best audio track of ref as mp3 into dest.
func (c *Client) DownloadAudio(ctx context.Context, ref, dest string) error {
	if strings.TrimSpace(dest) == "" {
		return services.Wrap(services.ErrValidation, "ytdlp", "download audio", "destination is empty", nil)
	}
	args := []string{
		"--quiet", "--no-warnings",
		"-x",
		"--audio-format", "mp3",
		"--audio-quality", "0",
		"-o", dest,
	}
	args = c.withCertificateFlag(args)
	args = append(args, ref)

	callCtx, cancel := withTimeout(ctx, c.downloadTimeout)
	defer cancel()
	if _, err := c.run(callCtx, c.binary, args...); err != nil {
		return c.classify(ctx, callCtx, "download audio", ref, c.downloadTimeout, err)
	}
	if _, err := os.Stat(dest); err != nil {
		return services.Wrap(services.ErrRetrieval, "ytdlp", "download audio", "audio file missing after download", err)
	}
	return nil
}

func (c *Client) fetchMetadata(ctx context.Context, ref string, args []string) (metadata, error) {
	args = c.withCertificateFlag(args)
	args = append(args, ref)

	callCtx, cancel := withTimeout(ctx, c.metadataTimeout)
	defer cancel()
	out, err := c.run(callCtx, c.binary, args...)
	if err != nil {
		return metadata{}, c.classify(ctx, callCtx, "metadata", ref, c.metadataTimeout, err)
	}
	var meta metadata
	if err := json.Unmarshal(out, &meta); err != nil {
		return metadata{}, services.Wrap(services.ErrRetrieval, "ytdlp", "metadata", "unparseable yt-dlp output", err)
	}
	return meta, nil
}

func (c *Client) withCertificateFlag(args []string) []string {
	if c.checkCertificates {
		return args
	}
	return append(args, "--no-check-certificates")
}

func (c *Client) classify(parent, callCtx context.Context, operation, ref string, timeout time.Duration, err error) error {
	if parent.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, "ytdlp", operation, fmt.Sprintf("%s exceeded %s", ref, timeout), err)
	}
	if errors.Is(err, exec.ErrNotFound) {
		return services.Wrap(services.ErrRetrieval, "ytdlp", operation, c.binary+" is not installed or not on PATH", err)
	}
	return services.Wrap(services.ErrRetrieval, "ytdlp", operation, ref, err)
}

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			return stdout.Bytes(), err
		}
		return stdout.Bytes(), fmt.Errorf("%w: %s", err, detail)
	}
	return stdout.Bytes(), nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func titleOrFallback(title string) string {
	if title = strings.TrimSpace(title); title == "" {
		return TitleUnavailable
	}
	return title
}

func seconds(value float64) time.Duration {
	if value <= 0 || math.IsNaN(value) {
		return 0
	}
	return time.Duration(value * float64(time.Second))
}

// FormatDuration renders d as MM:SS, H:MM:SS past an hour, or N/A for zero.
func FormatDuration(d time.Duration) string {
	if d <= 0 {
		return "N/A"
	}
	total := int(d.Round(time.Second) / time.Second)
	h, m, s := total/3600, (total/60)%60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
