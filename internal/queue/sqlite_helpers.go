package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

const jobColumns = "id, url, keywords_json, model, status, created_at, started_at, finished_at, error"

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code()&0xff == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func scanJob(scanner interface{ Scan(dest ...any) error }) (Job, error) {
	var (
		job          Job
		keywordsJSON string
		status       string
		createdAt    sql.NullFloat64
		startedAt    sql.NullFloat64
		finishedAt   sql.NullFloat64
		errorMessage sql.NullString
	)
	if err := scanner.Scan(
		&job.ID,
		&job.VideoRef,
		&keywordsJSON,
		&job.Model,
		&status,
		&createdAt,
		&startedAt,
		&finishedAt,
		&errorMessage,
	); err != nil {
		return Job{}, err
	}
	job.Status = Status(status)
	job.CreatedAt = Timestamp(createdAt.Float64)
	job.StartedAt = Timestamp(startedAt.Float64)
	job.FinishedAt = Timestamp(finishedAt.Float64)
	job.Error = errorMessage.String
	if err := json.Unmarshal([]byte(keywordsJSON), &job.Keywords); err != nil {
		job.Keywords = nil
	}
	return job, nil
}

func scanJobs(rows *sql.Rows) ([]Job, error) {
	defer rows.Close()
	jobs := []Job{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTimestamp(ts Timestamp) any {
	if ts.IsZero() {
		return nil
	}
	return float64(ts)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", count), ",")
}
