package stats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"tubescan/internal/fileutil"
	"tubescan/internal/logging"
)

const lockRetryDelay = 25 * time.Millisecond

// Record is the running aggregate for one model variant.
type Record struct {
	TotalProcessingTime float64 `json:"total_processing_time"`
	TotalVideoDuration  float64 `json:"total_video_duration"`
	SampleCount         int     `json:"sample_count"`
}

// Speed returns seconds of video transcribed per wall-clock second. The
// second value is false while either total is zero.
func (r Record) Speed() (float64, bool) {
	if r.TotalProcessingTime <= 0 || r.TotalVideoDuration <= 0 {
		return 0, false
	}
	return r.TotalVideoDuration / r.TotalProcessingTime, true
}

// ModelStats pairs a model name with its record for ordered listings.
type ModelStats struct {
	Model string
	Record
}

// Store reads and updates the stats file.
type Store struct {
	path   string
	mu     sync.Mutex
	lock   *flock.Flock
	logger *slog.Logger
}

// New returns a store backed by the JSON file at path.
func New(path string, logger *slog.Logger) *Store {
	return &Store{
		path:   path,
		lock:   flock.New(path + ".lock"),
		logger: logging.NewComponentLogger(logger, "stats"),
	}
}

// Path returns the stats file location.
func (s *Store) Path() string {
	return s.path
}

// Record adds one transcription sample for model. Samples with a
// non-positive duration or processing time are ignored.
func (s *Store) Record(ctx context.Context, model string, videoDuration, processingTime time.Duration) error {
	model = strings.TrimSpace(model)
	if model == "" {
		return errors.New("stats: model is required")
	}
	if videoDuration <= 0 || processingTime <= 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := fileutil.EnsureDir(s.path); err != nil {
		return fmt.Errorf("stats: create directory: %w", err)
	}
	locked, err := s.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("stats: lock %s: %w", s.lock.Path(), err)
	}
	if !locked {
		return fmt.Errorf("stats: lock %s not acquired", s.lock.Path())
	}
	defer func() {
		if err := s.lock.Unlock(); err != nil {
			s.logger.Debug("stats unlock failed", logging.Error(err))
		}
	}()

	records, err := s.read()
	if err != nil {
		logging.WarnWithContext(s.logger, "stats file unreadable; starting fresh", "stats_corrupt",
			logging.String("path", s.path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the previous throughput history is discarded"),
			logging.String(logging.FieldImpact, "time estimates restart from this sample"),
		)
		records = map[string]Record{}
	}

	rec := records[model]
	rec.TotalProcessingTime += processingTime.Seconds()
	rec.TotalVideoDuration += videoDuration.Seconds()
	rec.SampleCount++
	records[model] = rec

	if err := fileutil.WriteJSONAtomic(s.path, records); err != nil {
		return fmt.Errorf("stats: write %s: %w", s.path, err)
	}
	s.logger.Debug("throughput sample recorded",
		logging.String(logging.FieldModel, model),
		logging.Float64("video_seconds", videoDuration.Seconds()),
		logging.Float64("processing_seconds", processingTime.Seconds()),
		logging.Int("samples", rec.SampleCount),
	)
	return nil
}

// Load returns every record. Missing or unreadable files load as empty.
func (s *Store) Load() map[string]Record {
	records, err := s.read()
	if err != nil {
		s.logger.Debug("stats file unreadable", logging.String("path", s.path), logging.Error(err))
		return map[string]Record{}
	}
	return records
}

// List returns the records sorted by model name.
func (s *Store) List() []ModelStats {
	records := s.Load()
	out := make([]ModelStats, 0, len(records))
	for model, rec := range records {
		out = append(out, ModelStats{Model: model, Record: rec})
	}
	slices.SortFunc(out, func(a, b ModelStats) int { return strings.Compare(a.Model, b.Model) })
	return out
}

// AverageSpeed returns total video duration over total processing time for
// model, or false when no usable sample exists.
func (s *Store) AverageSpeed(model string) (float64, bool) {
	rec, ok := s.Load()[strings.TrimSpace(model)]
	if !ok {
		return 0, false
	}
	return rec.Speed()
}

// EstimateRemaining predicts how long transcribing videoDuration of media
// with model will take.
func (s *Store) EstimateRemaining(model string, videoDuration time.Duration) (time.Duration, bool) {
	speed, ok := s.AverageSpeed(model)
	if !ok {
		return 0, false
	}
	return Estimate(speed, videoDuration), true
}

// Estimate converts a video duration into processing time at speed.
func Estimate(speed float64, videoDuration time.Duration) time.Duration {
	if speed <= 0 || videoDuration <= 0 {
		return 0
	}
	seconds := videoDuration.Seconds() / speed
	return time.Duration(math.Round(seconds)) * time.Second
}

func (s *Store) read() (map[string]Record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]Record{}, nil
		}
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return map[string]Record{}, nil
	}
	records := map[string]Record{}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.path, err)
	}
	return records, nil
}
