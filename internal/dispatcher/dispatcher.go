package dispatcher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"tubescan/internal/analysis"
	"tubescan/internal/config"
	"tubescan/internal/logging"
	"tubescan/internal/metrics"
	"tubescan/internal/queue"
)

// leaseGrace keeps a dispatcher from reclaiming its own jobs while they
// finish past the job timeout.
const leaseGrace = time.Minute

// Analyzer runs one analysis request. *analysis.Orchestrator satisfies it.
type Analyzer interface {
	Analyze(ctx context.Context, req analysis.Request, sink analysis.ProgressSink) (analysis.Report, error)
}

// Dispatcher coordinates queue draining.
type Dispatcher struct {
	store        queue.Store
	analyzer     Analyzer
	logger       *slog.Logger
	metrics      *metrics.Dispatcher
	workers      int
	pollInterval time.Duration
	jobTimeout   time.Duration
	lease        time.Duration
	now          func() time.Time

	mu      sync.Mutex
	lastErr error
	lastJob *queue.Job
}

// Option configures optional Dispatcher behavior.
type Option func(*Dispatcher)

// WithMetrics records job activity on m.
func WithMetrics(m *metrics.Dispatcher) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithPollInterval overrides the wait between polls when only foreign
// running jobs remain.
func WithPollInterval(interval time.Duration) Option {
	return func(d *Dispatcher) {
		if interval > 0 {
			d.pollInterval = interval
		}
	}
}

// WithClock overrides the clock used for leases and job timing.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		if now != nil {
			d.now = now
		}
	}
}

// New constructs a dispatcher from configuration.
func New(cfg *config.Config, store queue.Store, analyzer Analyzer, logger *slog.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		store:        store,
		analyzer:     analyzer,
		logger:       logging.NewComponentLogger(logger, "dispatcher"),
		workers:      max(1, cfg.Dispatcher.Workers),
		pollInterval: time.Duration(cfg.Queue.PollInterval) * time.Second,
		jobTimeout:   time.Duration(cfg.Dispatcher.JobTimeout) * time.Second,
		lease:        time.Duration(cfg.Queue.LeaseTimeout) * time.Second,
		now:          time.Now,
	}
	if d.pollInterval <= 0 {
		d.pollInterval = time.Second
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Workers returns the pool width.
func (d *Dispatcher) Workers() int {
	return d.workers
}

// LastError returns the most recent job or queue error seen by Run.
func (d *Dispatcher) LastError() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastErr
}

// LastJob returns a copy of the most recently finished job.
func (d *Dispatcher) LastJob() *queue.Job {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lastJob == nil {
		return nil
	}
	job := *d.lastJob
	return &job
}

func (d *Dispatcher) setLastError(err error) {
	d.mu.Lock()
	d.lastErr = err
	d.mu.Unlock()
}

func (d *Dispatcher) setLastJob(job queue.Job) {
	d.mu.Lock()
	d.lastJob = &job
	d.mu.Unlock()
}
