package queue

import (
	"cmp"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	_ "modernc.org/sqlite"

	"tubescan/internal/fileutil"
	"tubescan/internal/logging"
	"tubescan/internal/services"
)

// SQLiteStore keeps the queue in a SQLite database. Claims are a single
// UPDATE … RETURNING statement, so concurrent dispatchers never share a job.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// OpenSQLite initializes or connects to the queue database at path.
func OpenSQLite(path string, logger *slog.Logger) (*SQLiteStore, error) {
	if err := fileutil.EnsureDir(path); err != nil {
		return nil, fmt.Errorf("ensure queue directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &SQLiteStore{
		db:     db,
		path:   path,
		logger: logging.NewComponentLogger(logger, "queue"),
		now:    time.Now,
		newID:  newJobID,
	}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Location returns the database path.
func (s *SQLiteStore) Location() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) exec(ctx context.Context, query string, args ...any) (int, error) {
	var res sql.Result
	err := retryOnBusy(ctx, func() error {
		var execErr error
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	})
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// Load returns all jobs in insertion order. Query failures are logged and
// reported as an empty queue.
func (s *SQLiteStore) Load(ctx context.Context) ([]Job, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+jobColumns+" FROM jobs ORDER BY seq")
	if err == nil {
		var jobs []Job
		if jobs, err = scanJobs(rows); err == nil {
			return jobs, nil
		}
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	logging.WarnWithContext(s.logger, "queue database unreadable", "queue_corrupt",
		logging.String("path", s.path),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "run PRAGMA integrity_check or delete the database"),
		logging.String(logging.FieldImpact, "queue treated as empty"))
	return []Job{}, nil
}

// StatusCounts aggregates counts per status with a single query. When the
// query fails it falls back to summarizing Load, so an unreadable table counts
// as an empty queue.
func (s *SQLiteStore) StatusCounts(ctx context.Context) (Summary, error) {
	summary, err := s.countStatuses(ctx)
	if err == nil {
		return summary, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Summary{}, ctxErr
	}
	jobs, err := s.Load(ctx)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(jobs), nil
}

func (s *SQLiteStore) countStatuses(ctx context.Context) (Summary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM jobs GROUP BY status`)
	if err != nil {
		return Summary{}, services.Wrap(services.ErrQueueCorruption, "queue", "stats", "", err)
	}
	defer rows.Close()

	var summary Summary
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return Summary{}, err
		}
		summary.Total += count
		switch status {
		case StatusPending:
			summary.Pending += count
		case StatusRunning:
			summary.Running += count
		case StatusDone:
			summary.Done += count
		case StatusFailed:
			summary.Failed += count
		}
	}
	return summary, rows.Err()
}

// Enqueue inserts jobs in one transaction, deleting existing rows first when reset is set.
func (s *SQLiteStore) Enqueue(ctx context.Context, specs []NewJob, reset bool) ([]Job, error) {
	created, err := prepareNewJobs(specs, s.now(), s.newID)
	if err != nil {
		return nil, err
	}
	err = retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		if reset {
			if _, err := tx.ExecContext(ctx, "DELETE FROM jobs"); err != nil {
				return err
			}
		}
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO jobs (id, url, keywords_json, model, status, created_at) VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, job := range created {
			keywords, err := json.Marshal(job.Keywords)
			if err != nil {
				return err
			}
			if _, err := stmt.ExecContext(ctx, job.ID, job.VideoRef, string(keywords), job.Model, job.Status, nullableTimestamp(job.CreatedAt)); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
	if err != nil {
		return nil, services.Wrap(services.ErrQueueCorruption, "queue", "enqueue", "", err)
	}
	return created, nil
}

// ClaimPending moves up to max pending jobs to running in queue order.
func (s *SQLiteStore) ClaimPending(ctx context.Context, max int) ([]Job, error) {
	if max <= 0 {
		return nil, nil
	}
	var claimed []Job
	err := retryOnBusy(ctx, func() error {
		rows, err := s.db.QueryContext(ctx,
			`UPDATE jobs SET status = ?, started_at = ?
             WHERE seq IN (SELECT seq FROM jobs WHERE status = ? ORDER BY seq LIMIT ?)
             RETURNING `+jobColumns+`, seq`,
			StatusRunning, float64(TimestampOf(s.now())), StatusPending, max)
		if err != nil {
			return err
		}
		defer rows.Close()
		type claimedRow struct {
			job Job
			seq int64
		}
		var out []claimedRow
		for rows.Next() {
			var row claimedRow
			job, err := scanJob(seqScanner{rows, &row.seq})
			if err != nil {
				return err
			}
			row.job = job
			out = append(out, row)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		// RETURNING does not guarantee order.
		slices.SortFunc(out, func(a, b claimedRow) int { return cmp.Compare(a.seq, b.seq) })
		claimed = claimed[:0]
		for _, row := range out {
			claimed = append(claimed, row.job)
		}
		return nil
	})
	if err != nil {
		return nil, services.Wrap(services.ErrQueueCorruption, "queue", "claim", "", err)
	}
	return claimed, nil
}

// seqScanner appends the trailing seq column to a job scan.
type seqScanner struct {
	rows *sql.Rows
	seq  *int64
}

func (s seqScanner) Scan(dest ...any) error {
	return s.rows.Scan(append(dest, s.seq)...)
}

// Update transitions a non-terminal job.
func (s *SQLiteStore) Update(ctx context.Context, id string, status Status, errMsg string) error {
	if err := validateUpdate(status); err != nil {
		return err
	}
	var finished any
	if status.IsTerminal() {
		finished = float64(TimestampOf(s.now()))
	}
	if status != StatusFailed {
		errMsg = ""
	}
	n, err := s.exec(ctx,
		`UPDATE jobs SET status = ?, error = ?, finished_at = ?
         WHERE id = ? AND status NOT IN (?, ?)`,
		status, nullableString(errMsg), finished, id, StatusDone, StatusFailed)
	if err != nil {
		return services.Wrap(services.ErrQueueCorruption, "queue", "update", id, err)
	}
	if n > 0 {
		return nil
	}

	var current Status
	err = s.db.QueryRowContext(ctx, "SELECT status FROM jobs WHERE id = ?", id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if err != nil {
		return services.Wrap(services.ErrQueueCorruption, "queue", "update", id, err)
	}
	return fmt.Errorf("%w: job %s is already %s", ErrInvalidTransition, id, current)
}

// ResetStuck moves every running job back to pending.
func (s *SQLiteStore) ResetStuck(ctx context.Context) (int, error) {
	n, err := s.exec(ctx, `UPDATE jobs SET status = ?, started_at = NULL WHERE status = ?`, StatusPending, StatusRunning)
	if err != nil {
		return 0, fmt.Errorf("reset stuck jobs: %w", err)
	}
	return n, nil
}

// ReclaimExpired moves running jobs started before cutoff back to pending.
func (s *SQLiteStore) ReclaimExpired(ctx context.Context, cutoff time.Time) (int, error) {
	n, err := s.exec(ctx,
		`UPDATE jobs SET status = ?, started_at = NULL
         WHERE status = ? AND started_at IS NOT NULL AND started_at < ?`,
		StatusPending, StatusRunning, float64(TimestampOf(cutoff)))
	if err != nil {
		return 0, fmt.Errorf("reclaim expired jobs: %w", err)
	}
	return n, nil
}

// RetryFailed moves failed jobs back to pending for reprocessing.
func (s *SQLiteStore) RetryFailed(ctx context.Context, ids ...string) (int, error) {
	query := `UPDATE jobs SET status = ?, error = NULL, started_at = NULL, finished_at = NULL WHERE status = ?`
	args := []any{StatusPending, StatusFailed}
	if len(ids) > 0 {
		query += ` AND id IN (` + makePlaceholders(len(ids)) + `)`
		for _, id := range ids {
			args = append(args, id)
		}
	}
	n, err := s.exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry failed jobs: %w", err)
	}
	return n, nil
}

// Clear removes all jobs, or only done and failed ones.
func (s *SQLiteStore) Clear(ctx context.Context, finishedOnly bool) (int, error) {
	query := `DELETE FROM jobs`
	var args []any
	if finishedOnly {
		query += ` WHERE status IN (?, ?)`
		args = append(args, StatusDone, StatusFailed)
	}
	n, err := s.exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("clear jobs: %w", err)
	}
	return n, nil
}
