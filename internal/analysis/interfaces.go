package analysis

import (
	"context"
	"time"

	"tubescan/internal/transcache"
)

// Transcript is the output of one transcription.
type Transcript struct {
	Title string
	Text  string
}

// Transcriber produces a transcript for a video with the given model
// variant. Implementations may download audio first.
type Transcriber interface {
	Transcribe(ctx context.Context, videoRef, model string) (Transcript, error)
}

// DurationSource reports a video's length. A zero duration means unknown.
type DurationSource interface {
	Duration(ctx context.Context, videoRef string) (time.Duration, error)
}

// Cache is the subset of transcache.Cache the orchestrator relies on.
type Cache interface {
	Lookup(videoRef string) (transcache.Entry, bool)
	Store(videoRef, title, transcript string) error
}

// StatsRecorder accumulates throughput samples.
type StatsRecorder interface {
	Record(ctx context.Context, model string, videoDuration, processingTime time.Duration) error
}

// Progress is one notification sent to a ProgressSink.
type Progress struct {
	// Fraction is the share of videos processed before this notification, in [0, 1].
	Fraction float64
	Message  string
	Index    int
	Total    int
	VideoRef string
	Done     bool
}

// ProgressSink is notified before and after each video and once more when the
// run completes. Returning false asks the orchestrator to stop before the next
// video.
type ProgressSink interface {
	Notify(Progress) bool
}

// ProgressFunc adapts a function to ProgressSink.
type ProgressFunc func(Progress) bool

func (f ProgressFunc) Notify(p Progress) bool {
	if f == nil {
		return true
	}
	return f(p)
}
