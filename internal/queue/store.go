package queue

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"tubescan/internal/config"
	"tubescan/internal/services"
)

// Store is the durable job queue shared by the enqueuing CLI and dispatchers.
type Store interface {
	// Enqueue appends pending jobs, discarding all existing jobs first when
	// reset is true. The write is all-or-nothing.
	Enqueue(ctx context.Context, jobs []NewJob, reset bool) ([]Job, error)
	// Load returns the current snapshot in queue order.
	Load(ctx context.Context) ([]Job, error)
	// ClaimPending atomically moves up to max pending jobs to running.
	ClaimPending(ctx context.Context, max int) ([]Job, error)
	// Update moves a non-terminal job to status, recording errMsg for failures
	// and finished_at for terminal statuses.
	Update(ctx context.Context, id string, status Status, errMsg string) error
	StatusCounts(ctx context.Context) (Summary, error)
	// ResetStuck moves every running job back to pending.
	ResetStuck(ctx context.Context) (int, error)
	// ReclaimExpired moves running jobs started before cutoff back to pending.
	ReclaimExpired(ctx context.Context, cutoff time.Time) (int, error)
	// RetryFailed moves failed jobs (all, or only ids) back to pending.
	RetryFailed(ctx context.Context, ids ...string) (int, error)
	// Clear removes all jobs, or only done and failed ones when finishedOnly is set.
	Clear(ctx context.Context, finishedOnly bool) (int, error)
	// Location describes where the queue lives, for diagnostics.
	Location() string
	Close() error
}

// Open returns the backend selected by cfg.Queue.Backend.
func Open(cfg *config.Config, logger *slog.Logger) (Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("queue: config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	switch cfg.Queue.Backend {
	case config.QueueBackendSQLite:
		return OpenSQLite(cfg.Paths.QueueDB, logger)
	case config.QueueBackendJSON, "":
		return NewFileStore(cfg.Paths.QueueFile, logger), nil
	default:
		return nil, fmt.Errorf("queue: unsupported backend %q", cfg.Queue.Backend)
	}
}

func newJobID() string {
	return uuid.NewString()
}

// prepareNewJobs validates specs and builds pending jobs stamped with now.
func prepareNewJobs(specs []NewJob, now time.Time, newID func() string) ([]Job, error) {
	jobs := make([]Job, 0, len(specs))
	for i, spec := range specs {
		ref := strings.TrimSpace(spec.VideoRef)
		if ref == "" {
			return nil, services.Wrap(services.ErrValidation, "queue", "enqueue", fmt.Sprintf("job %d has no video reference", i+1), nil)
		}
		keywords := make([]string, 0, len(spec.Keywords))
		for _, kw := range spec.Keywords {
			if kw = strings.TrimSpace(kw); kw != "" {
				keywords = append(keywords, kw)
			}
		}
		jobs = append(jobs, Job{
			ID:        newID(),
			VideoRef:  ref,
			Keywords:  keywords,
			Model:     strings.TrimSpace(spec.Model),
			Status:    StatusPending,
			CreatedAt: TimestampOf(now),
		})
	}
	return jobs, nil
}

// validateUpdate checks the target status of an Update call.
func validateUpdate(status Status) error {
	switch status {
	case StatusRunning, StatusDone, StatusFailed:
		return nil
	default:
		return fmt.Errorf("%w: cannot update to %q", ErrInvalidTransition, status)
	}
}
