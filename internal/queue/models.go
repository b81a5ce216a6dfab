package queue

import (
	"errors"
	"math"
	"time"
)

// Status represents the lifecycle of a job.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// IsTerminal reports whether no further Update transition is allowed.
func (s Status) IsTerminal() bool {
	return s == StatusDone || s == StatusFailed
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusDone, StatusFailed:
		return true
	}
	return false
}

var (
	// ErrJobNotFound is returned when a job id is not present in the store.
	ErrJobNotFound = errors.New("job not found")
	// ErrInvalidTransition is returned when a job is already terminal or the
	// requested status is not a valid update target.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Timestamp is a unix time in fractional seconds, the encoding used by the
// job file. The zero value means unset.
type Timestamp float64

// TimestampOf converts t; the zero time maps to the zero Timestamp.
func TimestampOf(t time.Time) Timestamp {
	if t.IsZero() {
		return 0
	}
	return Timestamp(float64(t.UnixNano()) / 1e9)
}

// Time converts the timestamp back to a time.Time.
func (ts Timestamp) Time() time.Time {
	if ts <= 0 {
		return time.Time{}
	}
	sec, frac := math.Modf(float64(ts))
	return time.Unix(int64(sec), int64(frac*1e9))
}

// IsZero reports whether the timestamp is unset.
func (ts Timestamp) IsZero() bool {
	return ts <= 0
}

// Job is one queued transcription and keyword analysis of a single video.
type Job struct {
	ID         string    `json:"id,omitempty"`
	VideoRef   string    `json:"url"`
	Keywords   []string  `json:"keywords"`
	Model      string    `json:"model"`
	Status     Status    `json:"status"`
	CreatedAt  Timestamp `json:"created_at,omitempty"`
	StartedAt  Timestamp `json:"started_at,omitempty"`
	FinishedAt Timestamp `json:"finished_at,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// NewJob describes a job to enqueue.
type NewJob struct {
	VideoRef string   `yaml:"url"`
	Keywords []string `yaml:"keywords"`
	Model    string   `yaml:"model"`
}

// Summary aggregates job counts per status.
type Summary struct {
	Total   int
	Pending int
	Running int
	Done    int
	Failed  int
}

// Summarize partitions jobs by status. Jobs with unknown statuses count
// toward Total only.
func Summarize(jobs []Job) Summary {
	var s Summary
	for _, job := range jobs {
		s.Total++
		switch job.Status {
		case StatusPending:
			s.Pending++
		case StatusRunning:
			s.Running++
		case StatusDone:
			s.Done++
		case StatusFailed:
			s.Failed++
		}
	}
	return s
}

// Drained reports whether no job is pending or running.
func (s Summary) Drained() bool {
	return s.Pending == 0 && s.Running == 0
}
