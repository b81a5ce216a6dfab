// Package metrics exposes dispatcher activity as Prometheus collectors.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tubescan/internal/logging"
	"tubescan/internal/queue"
)

const namespace = "tubescan"

// Outcome labels for finished jobs.
const (
	OutcomeDone   = "done"
	OutcomeFailed = "failed"
)

// Dispatcher groups the collectors updated by the dispatcher.
type Dispatcher struct {
	registry    *prometheus.Registry
	jobs        *prometheus.CounterVec
	jobDuration *prometheus.HistogramVec
	inFlight    prometheus.Gauge
	cacheHits   prometheus.Counter
	occurrences prometheus.Counter
	queueJobs   *prometheus.GaugeVec
}

// NewDispatcher registers dispatcher collectors on a private registry.
func NewDispatcher() *Dispatcher {
	m := &Dispatcher{
		registry: prometheus.NewRegistry(),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_finished_total",
			Help:      "Jobs finished by the dispatcher, by outcome.",
		}, []string{"outcome", "model"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Wall-clock time spent per job.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 14),
		}, []string{"outcome"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_in_flight",
			Help:      "Jobs currently executing in this dispatcher.",
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Videos served from the transcription cache.",
		}),
		occurrences: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "keyword_occurrences_total",
			Help:      "Keyword occurrences found across finished jobs.",
		}),
		queueJobs: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_jobs",
			Help:      "Jobs in the shared queue by status, as of the last poll.",
		}, []string{"status"}),
	}
	m.registry.MustRegister(
		m.jobs,
		m.jobDuration,
		m.inFlight,
		m.cacheHits,
		m.occurrences,
		m.queueJobs,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry backing the collectors.
func (m *Dispatcher) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// JobStarted increments the in-flight gauge.
func (m *Dispatcher) JobStarted() {
	if m == nil {
		return
	}
	m.inFlight.Inc()
}

// JobFinished records a finished job.
func (m *Dispatcher) JobFinished(outcome, model string, elapsed time.Duration, cacheHits, occurrences int) {
	if m == nil {
		return
	}
	m.inFlight.Dec()
	m.jobs.WithLabelValues(outcome, model).Inc()
	m.jobDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
	if cacheHits > 0 {
		m.cacheHits.Add(float64(cacheHits))
	}
	if occurrences > 0 {
		m.occurrences.Add(float64(occurrences))
	}
}

// ObserveQueue publishes a queue snapshot.
func (m *Dispatcher) ObserveQueue(summary queue.Summary) {
	if m == nil {
		return
	}
	m.queueJobs.WithLabelValues(string(queue.StatusPending)).Set(float64(summary.Pending))
	m.queueJobs.WithLabelValues(string(queue.StatusRunning)).Set(float64(summary.Running))
	m.queueJobs.WithLabelValues(string(queue.StatusDone)).Set(float64(summary.Done))
	m.queueJobs.WithLabelValues(string(queue.StatusFailed)).Set(float64(summary.Failed))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Dispatcher) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Serve exposes /metrics on bind until ctx is done.
func (m *Dispatcher) Serve(ctx context.Context, bind string, logger *slog.Logger) error {
	logger = logging.NewComponentLogger(logger, "metrics")
	listener, err := net.Listen("tcp", bind)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(listener)
	}()
	logger.Info("metrics endpoint listening", logging.String("address", listener.Addr().String()))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
