package dispatcher

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"tubescan/internal/logging"
	"tubescan/internal/queue"
	"tubescan/internal/services"
)

// RunSummary describes one Run.
type RunSummary struct {
	CorrelationID string
	Succeeded     int
	Failed        int
	CacheHits     int
	Occurrences   int
	Elapsed       time.Duration
	Final         queue.Summary
}

// Processed returns the number of jobs this run finished.
func (s RunSummary) Processed() int {
	return s.Succeeded + s.Failed
}

// Run drains the queue and returns once no pending or running job remains.
// Cancelling ctx stops claiming, waits for in-flight jobs, and returns the
// context error. A failed claim or result write also stops claiming; Run then
// drains in-flight jobs and returns the queue error.
func (d *Dispatcher) Run(ctx context.Context) (RunSummary, error) {
	summary := RunSummary{CorrelationID: uuid.NewString()}
	ctx = services.WithRequestID(ctx, summary.CorrelationID)
	logger := logging.WithContext(ctx, d.logger)
	start := d.now()

	logger.Info("dispatcher started",
		logging.String(logging.FieldEventType, "dispatcher_start"),
		logging.Int("workers", d.workers),
		logging.String("queue", d.store.Location()),
		logging.Duration("poll_interval", d.pollInterval),
		logging.Duration("lease", d.effectiveLease()),
	)

	results := make(chan jobResult, d.workers)
	inFlight := 0
	var queueErr error
	collect := func(res jobResult) {
		inFlight--
		if res.persistErr != nil && queueErr == nil {
			queueErr = res.persistErr
		}
		if res.err != nil {
			summary.Failed++
		} else {
			summary.Succeeded++
		}
		summary.CacheHits += res.report.CacheHits
		summary.Occurrences += res.report.TotalOccurrences
	}
	finish := func(err error) (RunSummary, error) {
		for inFlight > 0 {
			collect(<-results)
		}
		summary.Elapsed = d.now().Sub(start)
		if final, countErr := d.store.StatusCounts(context.WithoutCancel(ctx)); countErr == nil {
			summary.Final = final
			d.metrics.ObserveQueue(final)
		}
		logger.Info("dispatcher finished",
			logging.String(logging.FieldEventType, "dispatcher_stop"),
			logging.Int("succeeded", summary.Succeeded),
			logging.Int("failed", summary.Failed),
			logging.Int("cache_hits", summary.CacheHits),
			logging.Duration("elapsed", summary.Elapsed),
			logging.Bool("drained", summary.Final.Drained()),
		)
		return summary, err
	}

	for {
		if err := ctx.Err(); err != nil {
			return finish(err)
		}
		if queueErr != nil {
			return finish(queueErr)
		}

		// Only reclaim while idle so our own in-flight jobs are never reverted.
		if inFlight == 0 {
			d.reclaimExpired(ctx, logger)
		}

		claimed := 0
		if free := d.workers - inFlight; free > 0 {
			jobs, err := d.store.ClaimPending(ctx, free)
			if err != nil {
				if ctx.Err() != nil {
					continue
				}
				err = queueFailure("claim", err)
				d.setLastError(err)
				logging.ErrorWithContext(logger, "failed to claim pending jobs", "queue_claim_failed",
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check the queue file or database is writable"),
					logging.String(logging.FieldImpact, "the dispatcher stops after in-flight jobs finish"),
				)
				queueErr = err
				continue
			}
			for _, job := range jobs {
				inFlight++
				claimed++
				d.metrics.JobStarted()
				go func(job queue.Job) {
					results <- d.runJob(ctx, job)
				}(job)
			}
		}

		if inFlight > 0 {
			select {
			case res := <-results:
				collect(res)
			case <-ctx.Done():
			}
			continue
		}
		if claimed > 0 {
			continue
		}

		counts, err := d.store.StatusCounts(ctx)
		if err != nil {
			return finish(err)
		}
		d.metrics.ObserveQueue(counts)
		if counts.Pending == 0 && counts.Running == 0 {
			return finish(nil)
		}
		logger.Debug("waiting for jobs held by other dispatchers",
			logging.Int("pending", counts.Pending),
			logging.Int("running", counts.Running),
		)
		select {
		case <-ctx.Done():
		case <-time.After(d.pollInterval):
		}
	}
}

// queueFailure classifies a store error as queue corruption.
func queueFailure(op string, err error) error {
	if errors.Is(err, services.ErrQueueCorruption) {
		return err
	}
	return services.Wrap(services.ErrQueueCorruption, "dispatcher", op, "queue store", err)
}
