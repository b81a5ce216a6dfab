package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"tubescan/internal/fileutil"
	"tubescan/internal/logging"
	"tubescan/internal/services"
)

const lockRetryDelay = 25 * time.Millisecond

// FileStore keeps the queue in a JSON array file guarded by an advisory lock
// on <path>.lock.
type FileStore struct {
	path   string
	mu     sync.Mutex
	lock   *flock.Flock
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// NewFileStore returns a store for the queue file at path. The file is
// created on the first mutation.
func NewFileStore(path string, logger *slog.Logger) *FileStore {
	return &FileStore{
		path:   path,
		lock:   flock.New(path + ".lock"),
		logger: logging.NewComponentLogger(logger, "queue"),
		now:    time.Now,
		newID:  newJobID,
	}
}

// Location returns the queue file path.
func (s *FileStore) Location() string {
	return s.path
}

// Close is a no-op; the lock is only held for the duration of a mutation.
func (s *FileStore) Close() error {
	return nil
}

// Load returns the current snapshot. Missing or corrupt files load as empty.
// Records without an id, as written by older workers, get one persisted so
// they can be addressed by id afterwards.
func (s *FileStore) Load(ctx context.Context) ([]Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	jobs, err := s.read()
	if err != nil {
		s.warnCorrupt(err)
		return []Job{}, nil
	}
	if !slices.ContainsFunc(jobs, func(j Job) bool { return j.ID == "" }) {
		return jobs, nil
	}
	var stamped []Job
	err = s.mutate(ctx, func(current []Job) ([]Job, error) {
		stamped = slices.Clone(current)
		return current, nil
	})
	if err != nil {
		s.logger.Debug("could not persist ids for legacy jobs", logging.Error(err))
		return jobs, nil
	}
	return stamped, nil
}

// StatusCounts aggregates the current snapshot.
func (s *FileStore) StatusCounts(ctx context.Context) (Summary, error) {
	jobs, err := s.Load(ctx)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(jobs), nil
}

// Enqueue appends jobs (replacing the queue when reset is set).
func (s *FileStore) Enqueue(ctx context.Context, specs []NewJob, reset bool) ([]Job, error) {
	created, err := prepareNewJobs(specs, s.now(), s.newID)
	if err != nil {
		return nil, err
	}
	err = s.mutate(ctx, func(jobs []Job) ([]Job, error) {
		if reset {
			jobs = jobs[:0]
		}
		return append(jobs, created...), nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug("jobs enqueued", logging.Int("count", len(created)), logging.Bool("reset", reset))
	return created, nil
}

// ClaimPending moves up to max pending jobs to running under the file lock.
func (s *FileStore) ClaimPending(ctx context.Context, max int) ([]Job, error) {
	if max <= 0 {
		return nil, nil
	}
	var claimed []Job
	err := s.mutate(ctx, func(jobs []Job) ([]Job, error) {
		now := TimestampOf(s.now())
		for i := range jobs {
			if len(claimed) >= max {
				break
			}
			if jobs[i].Status != StatusPending {
				continue
			}
			jobs[i].Status = StatusRunning
			jobs[i].StartedAt = now
			claimed = append(claimed, jobs[i])
		}
		if len(claimed) == 0 {
			return nil, errNoChange
		}
		return jobs, nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// Update transitions the job with the given id.
func (s *FileStore) Update(ctx context.Context, id string, status Status, errMsg string) error {
	if err := validateUpdate(status); err != nil {
		return err
	}
	return s.mutate(ctx, func(jobs []Job) ([]Job, error) {
		idx := slices.IndexFunc(jobs, func(j Job) bool { return j.ID == id })
		if idx < 0 {
			return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
		}
		job := &jobs[idx]
		if job.Status.IsTerminal() {
			return nil, fmt.Errorf("%w: job %s is already %s", ErrInvalidTransition, id, job.Status)
		}
		job.Status = status
		if status.IsTerminal() {
			job.FinishedAt = TimestampOf(s.now())
		}
		if status == StatusFailed {
			job.Error = errMsg
		} else {
			job.Error = ""
		}
		return jobs, nil
	})
}

// ResetStuck moves every running job back to pending.
func (s *FileStore) ResetStuck(ctx context.Context) (int, error) {
	return s.revertRunning(ctx, func(Job) bool { return true })
}

// ReclaimExpired moves running jobs whose started_at precedes cutoff back to
// pending. Jobs without a start time are left for ResetStuck.
func (s *FileStore) ReclaimExpired(ctx context.Context, cutoff time.Time) (int, error) {
	limit := TimestampOf(cutoff)
	return s.revertRunning(ctx, func(j Job) bool {
		return !j.StartedAt.IsZero() && j.StartedAt < limit
	})
}

func (s *FileStore) revertRunning(ctx context.Context, match func(Job) bool) (int, error) {
	count := 0
	err := s.mutate(ctx, func(jobs []Job) ([]Job, error) {
		for i := range jobs {
			if jobs[i].Status != StatusRunning || !match(jobs[i]) {
				continue
			}
			jobs[i].Status = StatusPending
			jobs[i].StartedAt = 0
			count++
		}
		if count == 0 {
			return nil, errNoChange
		}
		return jobs, nil
	})
	return count, err
}

// RetryFailed moves failed jobs back to pending, clearing their error.
func (s *FileStore) RetryFailed(ctx context.Context, ids ...string) (int, error) {
	count := 0
	err := s.mutate(ctx, func(jobs []Job) ([]Job, error) {
		for i := range jobs {
			if jobs[i].Status != StatusFailed {
				continue
			}
			if len(ids) > 0 && !slices.Contains(ids, jobs[i].ID) {
				continue
			}
			jobs[i].Status = StatusPending
			jobs[i].Error = ""
			jobs[i].StartedAt = 0
			jobs[i].FinishedAt = 0
			count++
		}
		if count == 0 {
			return nil, errNoChange
		}
		return jobs, nil
	})
	return count, err
}

// Clear removes all jobs, or only finished ones.
func (s *FileStore) Clear(ctx context.Context, finishedOnly bool) (int, error) {
	removed := 0
	err := s.mutate(ctx, func(jobs []Job) ([]Job, error) {
		kept := jobs[:0]
		for _, job := range jobs {
			if finishedOnly && !job.Status.IsTerminal() {
				kept = append(kept, job)
				continue
			}
			removed++
		}
		if removed == 0 {
			return nil, errNoChange
		}
		return kept, nil
	})
	return removed, err
}

// errNoChange aborts a mutation without rewriting the file.
var errNoChange = errors.New("no change")

// mutate runs fn on a fresh snapshot while holding both the in-process mutex
// and the cross-process file lock, then atomically replaces the file.
func (s *FileStore) mutate(ctx context.Context, fn func([]Job) ([]Job, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := fileutil.EnsureDir(s.path); err != nil {
		return services.Wrap(services.ErrQueueCorruption, "queue", "lock", "create queue directory", err)
	}
	locked, err := s.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return services.Wrap(services.ErrQueueCorruption, "queue", "lock", s.lock.Path(), err)
	}
	if !locked {
		return services.Wrap(services.ErrQueueCorruption, "queue", "lock", "lock not acquired", nil)
	}
	defer func() {
		if err := s.lock.Unlock(); err != nil {
			s.logger.Debug("queue unlock failed", logging.Error(err))
		}
	}()

	jobs, readErr := s.read()
	if readErr != nil {
		s.warnCorrupt(readErr)
		s.quarantine()
		jobs = []Job{}
	}
	s.ensureIDs(jobs)

	next, err := fn(jobs)
	if errors.Is(err, errNoChange) {
		return nil
	}
	if err != nil {
		return err
	}
	if next == nil {
		next = []Job{}
	}
	if err := fileutil.WriteJSONAtomic(s.path, next); err != nil {
		return services.Wrap(services.ErrQueueCorruption, "queue", "write", s.path, err)
	}
	return nil
}

func (s *FileStore) read() ([]Job, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []Job{}, nil
		}
		return nil, services.Wrap(services.ErrQueueCorruption, "queue", "read", s.path, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return []Job{}, nil
	}
	var jobs []Job
	if err := json.Unmarshal(data, &jobs); err != nil {
		return nil, services.Wrap(services.ErrQueueCorruption, "queue", "parse", s.path, err)
	}
	for i := range jobs {
		if jobs[i].Status == "" {
			jobs[i].Status = StatusPending
		}
	}
	return jobs, nil
}

// ensureIDs assigns ids to records written without one by older tooling.
func (s *FileStore) ensureIDs(jobs []Job) {
	for i := range jobs {
		if jobs[i].ID == "" {
			jobs[i].ID = s.newID()
		}
	}
}

// quarantine moves an unreadable queue file aside so the next write does not
// destroy it.
func (s *FileStore) quarantine() {
	if _, err := os.Stat(s.path); err != nil {
		return
	}
	backup := fmt.Sprintf("%s.corrupt-%d", s.path, s.now().Unix())
	if err := os.Rename(s.path, backup); err != nil {
		s.logger.Debug("queue quarantine failed", logging.Error(err))
		return
	}
	s.logger.Info("moved unreadable queue file aside", logging.String("backup", backup))
}

func (s *FileStore) warnCorrupt(err error) {
	logging.WarnWithContext(s.logger, "queue file unreadable", "queue_corrupt",
		logging.String("path", s.path),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "inspect or delete the queue file"),
		logging.String(logging.FieldImpact, "queue treated as empty"))
}
