package dispatcher

import (
	"context"
	"log/slog"
	"time"

	"tubescan/internal/logging"
)

// effectiveLease never undercuts the job timeout, so a dispatcher does not
// reclaim work it is still executing.
func (d *Dispatcher) effectiveLease() time.Duration {
	if d.lease <= 0 {
		return 0
	}
	return max(d.lease, d.jobTimeout+leaseGrace)
}

// reclaimExpired moves running jobs whose lease lapsed back to pending.
func (d *Dispatcher) reclaimExpired(ctx context.Context, logger *slog.Logger) {
	lease := d.effectiveLease()
	if lease <= 0 {
		return
	}
	cutoff := d.now().Add(-lease)
	reclaimed, err := d.store.ReclaimExpired(ctx, cutoff)
	if err != nil {
		logging.WarnWithContext(logger, "reclaim of expired jobs failed; stuck jobs may remain", "lease_reclaim_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the queue file or database is writable"),
			logging.String(logging.FieldImpact, "abandoned running jobs stay running until the next attempt"),
		)
		return
	}
	if reclaimed > 0 {
		logger.Info("reclaimed expired jobs",
			logging.String(logging.FieldEventType, "lease_reclaim"),
			logging.Int("count", reclaimed),
			logging.Duration("lease", lease),
		)
	}
}
