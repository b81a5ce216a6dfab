package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"tubescan/internal/analysis"
	"tubescan/internal/logging"
	"tubescan/internal/metrics"
	"tubescan/internal/queue"
	"tubescan/internal/services"
)

const finalUpdateTimeout = 30 * time.Second

type jobResult struct {
	job    queue.Job
	report analysis.Report
	err    error
	// persistErr is set when the final status could not be written.
	persistErr error
}

func (d *Dispatcher) runJob(ctx context.Context, job queue.Job) jobResult {
	ctx = services.WithJobID(ctx, job.ID)
	ctx = services.WithVideoRef(ctx, job.VideoRef)
	ctx = services.WithModel(ctx, job.Model)
	logger := logging.WithContext(ctx, d.logger)

	start := d.now()
	logger.Info("job started",
		logging.String(logging.FieldEventType, "job_start"),
		logging.Int("keywords", len(job.Keywords)),
	)

	report, err := d.execute(ctx, job)
	elapsed := d.now().Sub(start)

	status := queue.StatusDone
	message := ""
	outcome := metrics.OutcomeDone
	if err != nil {
		status = queue.StatusFailed
		message = services.JobMessage(err)
		outcome = metrics.OutcomeFailed
	}

	// The run context may already be cancelled; the result still has to land.
	updateCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalUpdateTimeout)
	defer cancel()
	var persistErr error
	if updateErr := d.store.Update(updateCtx, job.ID, status, message); updateErr != nil {
		d.setLastError(updateErr)
		if errors.Is(updateErr, queue.ErrInvalidTransition) || errors.Is(updateErr, queue.ErrJobNotFound) {
			logging.WarnWithContext(logger, "job result discarded", "job_result_discarded",
				logging.Error(updateErr),
				logging.String("status", string(status)),
				logging.String(logging.FieldErrorHint, "the job was reset, cleared, or finished by another dispatcher"),
				logging.String(logging.FieldImpact, "the queue keeps the other writer's state for this job"),
			)
		} else {
			persistErr = queueFailure("update", updateErr)
			logging.ErrorWithContext(logger, "failed to persist job result", "job_persist_failed",
				logging.Error(persistErr),
				logging.String("status", string(status)),
				logging.String(logging.FieldErrorHint, "check the queue file or database is writable"),
				logging.String(logging.FieldImpact, "the job stays running until reset; the dispatcher stops"),
			)
		}
	}

	d.metrics.JobFinished(outcome, job.Model, elapsed, report.CacheHits, report.TotalOccurrences)
	job.Status = status
	job.Error = message
	d.setLastJob(job)

	if err != nil {
		d.setLastError(err)
		d.logFailure(logger, err, message, elapsed)
	} else {
		logger.Info("job completed",
			logging.String(logging.FieldEventType, "job_complete"),
			logging.Int("occurrences", report.TotalOccurrences),
			logging.String("keyword_counts", formatOccurrences(report)),
			logging.Bool("cached", report.CacheHits > 0),
			logging.Duration("job_duration", elapsed),
		)
	}
	return jobResult{job: job, report: report, err: err, persistErr: persistErr}
}

// execute runs the analysis for one job, converting panics and a stopped run
// into errors.
func (d *Dispatcher) execute(ctx context.Context, job queue.Job) (report analysis.Report, err error) {
	jobCtx := ctx
	cancel := context.CancelFunc(func() {})
	if d.jobTimeout > 0 {
		jobCtx, cancel = context.WithTimeout(ctx, d.jobTimeout)
	}
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			logging.WithContext(ctx, d.logger).Error("job panicked",
				logging.String(logging.FieldEventType, "job_panic"),
				logging.String("stack", string(debug.Stack())),
			)
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	report, err = d.analyzer.Analyze(jobCtx, analysis.Request{
		VideoRefs: []string{job.VideoRef},
		Keywords:  job.Keywords,
		Model:     job.Model,
	}, nil)

	if ctxErr := jobCtx.Err(); ctxErr != nil && ctx.Err() == nil && errors.Is(ctxErr, context.DeadlineExceeded) {
		if err == nil || !errors.Is(err, services.ErrTimeout) {
			return report, services.Wrap(services.ErrTimeout, "dispatcher", "run job",
				fmt.Sprintf("job exceeded %s", d.jobTimeout), err)
		}
	}
	if err == nil && report.Stopped {
		cause := ctx.Err()
		if cause == nil {
			cause = context.Canceled
		}
		return report, fmt.Errorf("dispatcher shutting down: %w", cause)
	}
	return report, err
}

func (d *Dispatcher) logFailure(logger *slog.Logger, err error, message string, elapsed time.Duration) {
	hint := "retry the job with tubescan queue retry once the cause is fixed"
	switch {
	case errors.Is(err, services.ErrRetrieval):
		hint = "check the video is public and yt-dlp is up to date"
	case errors.Is(err, services.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		hint = "raise dispatcher.job_timeout or transcriber timeouts for long videos"
	case errors.Is(err, context.Canceled):
		hint = "the dispatcher was stopped; retry the job to run it again"
	}
	logging.ErrorWithContext(logger, "job failed", "job_failed",
		logging.String("error_message", message),
		logging.String("error_kind", services.Kind(err)),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, hint),
		logging.Duration("job_duration", elapsed),
	)
}

func formatOccurrences(report analysis.Report) string {
	totals := report.Occurrences()
	if len(totals) == 0 {
		return "none"
	}
	parts := make([]string, 0, len(totals))
	for _, kw := range totals {
		parts = append(parts, fmt.Sprintf("%s=%d", kw.Keyword, kw.Count))
	}
	return strings.Join(parts, ", ")
}
