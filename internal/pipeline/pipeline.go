// Package pipeline assembles the analysis components from configuration.
//
// Both binaries share this wiring: the CLI runs the orchestrator directly for
// interactive analysis, and the dispatcher hands it to its worker pool.
package pipeline

import (
	"fmt"
	"log/slog"
	"time"

	"tubescan/internal/analysis"
	"tubescan/internal/config"
	"tubescan/internal/queue"
	"tubescan/internal/stats"
	"tubescan/internal/transcache"
	"tubescan/internal/transcribe"
	"tubescan/internal/ytdlp"
)

// Pipeline holds the wired components of one process.
type Pipeline struct {
	Config       *config.Config
	Store        queue.Store
	Cache        *transcache.Cache
	Stats        *stats.Store
	Catalog      *ytdlp.Client
	Registry     *transcribe.Registry
	Transcriber  *transcribe.Service
	Orchestrator *analysis.Orchestrator
}

// Option adjusts components before the orchestrator is assembled.
type Option func(*Pipeline)

// WithTranscriber replaces the whisper-backed transcriber.
func WithTranscriber(svc *transcribe.Service) Option {
	return func(p *Pipeline) {
		p.Transcriber = svc
	}
}

// WithCatalog replaces the yt-dlp client used for metadata and downloads.
func WithCatalog(client *ytdlp.Client) Option {
	return func(p *Pipeline) {
		p.Catalog = client
	}
}

// New opens the queue store and builds every analysis component. Callers must
// Close the returned pipeline.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Pipeline, error) {
	if cfg == nil {
		return nil, fmt.Errorf("pipeline: config is required")
	}
	store, err := queue.Open(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open queue: %w", err)
	}

	p := &Pipeline{
		Config:   cfg,
		Store:    store,
		Cache:    transcache.New(cfg.Paths.CacheDir, logger),
		Stats:    stats.New(cfg.Paths.StatsFile, logger),
		Catalog:  ytdlp.NewFromConfig(cfg, logger),
		Registry: transcribe.NewRegistry(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.Transcriber == nil {
		p.Transcriber = transcribe.NewService(cfg, p.Catalog, p.Registry, logger)
	}

	p.Orchestrator = analysis.New(p.Cache, p.Transcriber,
		analysis.WithDurationSource(p.Catalog),
		analysis.WithStats(p.Stats),
		analysis.WithTimeouts(Timeouts(cfg)),
		analysis.WithLogger(logger),
	)
	return p, nil
}

// Timeouts derives the orchestrator bounds. A transcription call covers the
// title lookup, the audio download, and the whisper run.
func Timeouts(cfg *config.Config) analysis.Timeouts {
	tr := cfg.Transcriber
	return analysis.Timeouts{
		Transcribe: seconds(tr.MetadataTimeout + tr.DownloadTimeout + tr.TranscribeTimeout),
		Metadata:   seconds(tr.MetadataTimeout),
	}
}

// Close releases the queue store.
func (p *Pipeline) Close() error {
	if p == nil || p.Store == nil {
		return nil
	}
	return p.Store.Close()
}

func seconds(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}
