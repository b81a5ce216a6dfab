package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"tubescan/internal/keywords"
	"tubescan/internal/logging"
	"tubescan/internal/services"
)

// Timeouts bound each collaborator call. Zero disables the bound.
type Timeouts struct {
	Transcribe time.Duration
	Metadata   time.Duration
}

// Request describes one analysis run.
type Request struct {
	VideoRefs []string
	Keywords  []string
	Model     string
}

// Orchestrator composes the cache, transcriber, keyword matcher, and stats.
type Orchestrator struct {
	cache       Cache
	transcriber Transcriber
	durations   DurationSource
	stats       StatsRecorder
	timeouts    Timeouts
	logger      *slog.Logger
	now         func() time.Time
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithDurationSource enables throughput sampling using src.
func WithDurationSource(src DurationSource) Option {
	return func(o *Orchestrator) { o.durations = src }
}

// WithStats sets the recorder updated after fresh transcriptions.
func WithStats(rec StatsRecorder) Option {
	return func(o *Orchestrator) { o.stats = rec }
}

// WithTimeouts sets per-call collaborator timeouts.
func WithTimeouts(t Timeouts) Option {
	return func(o *Orchestrator) { o.timeouts = t }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logging.NewComponentLogger(logger, "analysis") }
}

// WithClock overrides the wall clock used to measure processing time.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// New builds an orchestrator. cache and transcriber are required.
func New(cache Cache, transcriber Transcriber, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cache:       cache,
		transcriber: transcriber,
		logger:      logging.NewComponentLogger(nil, "analysis"),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Analyze processes req.VideoRefs in order and returns the keyword report.
// When the context is cancelled or sink returns false, the report covers only
// the videos processed so far and no error is returned. A collaborator
// failure aborts the run and is returned together with the partial report.
func (o *Orchestrator) Analyze(ctx context.Context, req Request, sink ProgressSink) (Report, error) {
	total := len(req.VideoRefs)
	if total == 0 {
		return Report{Details: map[string][]Detail{}}, nil
	}
	if o.cache == nil || o.transcriber == nil {
		return Report{}, services.Wrap(services.ErrValidation, "analysis", "analyze", "cache and transcriber are required", nil)
	}
	if sink == nil {
		sink = ProgressFunc(nil)
	}

	model := strings.TrimSpace(req.Model)
	matcher := keywords.NewMatcher(req.Keywords)
	report := newReport(total, matcher.Labels())
	logger := logging.WithContext(ctx, o.logger)

	for i, ref := range req.VideoRefs {
		if err := ctx.Err(); err != nil {
			report.Stopped = true
			logger.Info("analysis cancelled", logging.Int("processed", report.Processed), logging.Int("total", total))
			return report, nil
		}
		if !sink.Notify(Progress{
			Fraction: float64(i) / float64(total),
			Message:  fmt.Sprintf("analysing video %d/%d", i+1, total),
			Index:    i,
			Total:    total,
			VideoRef: ref,
		}) {
			report.Stopped = true
			logger.Info("analysis stopped by caller", logging.Int("processed", report.Processed), logging.Int("total", total))
			return report, nil
		}

		result, err := o.processVideo(ctx, ref, model)
		if err != nil {
			return report, err
		}
		if result.cached {
			report.CacheHits++
		}
		if result.text != "" {
			report.add(result.title, ref, matcher.Score(result.text))
		}
		report.Processed++

		if !sink.Notify(Progress{
			Fraction: float64(i+1) / float64(total),
			Message:  fmt.Sprintf("finished video %d/%d", i+1, total),
			Index:    i,
			Total:    total,
			VideoRef: ref,
		}) && i+1 < total {
			report.Stopped = true
			logger.Info("analysis stopped by caller", logging.Int("processed", report.Processed), logging.Int("total", total))
			return report, nil
		}
	}

	sink.Notify(Progress{Fraction: 1, Message: "analysis complete", Index: total, Total: total, Done: true})
	logger.Info("analysis complete",
		logging.Int("videos", total),
		logging.Int("occurrences", report.TotalOccurrences),
		logging.Int("cache_hits", report.CacheHits),
	)
	return report, nil
}

type videoResult struct {
	title  string
	text   string
	cached bool
}

func (o *Orchestrator) processVideo(ctx context.Context, ref, model string) (videoResult, error) {
	ctx = services.WithVideoRef(ctx, ref)
	logger := logging.WithContext(ctx, o.logger)

	if entry, ok := o.cache.Lookup(ref); ok {
		logger.Debug("transcript served from cache", logging.String(logging.FieldEventType, "cache_hit"))
		return videoResult{title: entry.Title, text: entry.Transcript, cached: true}, nil
	}

	start := o.now()
	transcript, err := o.transcribe(ctx, ref, model)
	if err != nil {
		return videoResult{}, err
	}
	elapsed := o.now().Sub(start)
	logger.Info("video transcribed",
		logging.String(logging.FieldModel, model),
		logging.Duration("processing_time", elapsed),
		logging.Int("characters", len(transcript.Text)),
	)

	if err := o.cache.Store(ref, transcript.Title, transcript.Text); err != nil {
		logging.WarnWithContext(logger, "transcript not cached", "cache_write_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check free space and permissions on the cache directory"),
			logging.String(logging.FieldImpact, "the video will be transcribed again next time"),
		)
	}

	if elapsed > 0 {
		o.recordThroughput(ctx, logger, ref, model, elapsed)
	}
	return videoResult{title: transcript.Title, text: transcript.Text}, nil
}

func (o *Orchestrator) transcribe(ctx context.Context, ref, model string) (Transcript, error) {
	callCtx, cancel := withOptionalTimeout(ctx, o.timeouts.Transcribe)
	defer cancel()

	transcript, err := o.transcriber.Transcribe(callCtx, ref, model)
	if err == nil {
		return transcript, nil
	}
	if ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return Transcript{}, services.Wrap(services.ErrTimeout, "analysis", "transcribe",
			fmt.Sprintf("%s exceeded %s", ref, o.timeouts.Transcribe), err)
	}
	if errors.Is(err, services.ErrRetrieval) || errors.Is(err, services.ErrTranscription) || errors.Is(err, services.ErrTimeout) {
		return Transcript{}, err
	}
	return Transcript{}, services.Wrap(services.ErrTranscription, "analysis", "transcribe", ref, err)
}

func (o *Orchestrator) recordThroughput(ctx context.Context, logger *slog.Logger, ref, model string, elapsed time.Duration) {
	if o.durations == nil || o.stats == nil {
		return
	}
	callCtx, cancel := withOptionalTimeout(ctx, o.timeouts.Metadata)
	defer cancel()

	duration, err := o.durations.Duration(callCtx, ref)
	if err != nil {
		logging.WarnWithContext(logger, "video duration unavailable", "duration_lookup_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "verify yt-dlp can read the video metadata"),
			logging.String(logging.FieldImpact, "throughput statistics skip this video"),
		)
		return
	}
	if duration <= 0 {
		return
	}
	if err := o.stats.Record(ctx, model, duration, elapsed); err != nil {
		logging.WarnWithContext(logger, "throughput sample not recorded", "stats_write_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check permissions on the stats file"),
			logging.String(logging.FieldImpact, "time estimates will not include this video"),
		)
	}
}

func withOptionalTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
