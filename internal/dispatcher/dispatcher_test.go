package dispatcher_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"tubescan/internal/analysis"
	"tubescan/internal/config"
	"tubescan/internal/dispatcher"
	"tubescan/internal/metrics"
	"tubescan/internal/queue"
	"tubescan/internal/services"
	"tubescan/internal/testsupport"
)

type analyzeFunc func(ctx context.Context, req analysis.Request) (analysis.Report, error)

func (f analyzeFunc) Analyze(ctx context.Context, req analysis.Request, _ analysis.ProgressSink) (analysis.Report, error) {
	return f(ctx, req)
}

func okReport(req analysis.Request) analysis.Report {
	return analysis.Report{TotalVideos: len(req.VideoRefs), Processed: len(req.VideoRefs), Details: map[string][]analysis.Detail{}}
}

func jobsByRef(t *testing.T, store queue.Store) map[string]queue.Job {
	t.Helper()
	jobs, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	out := make(map[string]queue.Job, len(jobs))
	for _, job := range jobs {
		out[job.VideoRef] = job
	}
	return out
}

func runWithTimeout(t *testing.T, d *dispatcher.Dispatcher) dispatcher.RunSummary {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	summary, err := d.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return summary
}

func TestRunDrainsQueueWithBoundedParallelism(t *testing.T) {
	for _, backend := range []string{config.QueueBackendJSON, config.QueueBackendSQLite} {
		t.Run(backend, func(t *testing.T) {
			cfg := testsupport.NewConfig(t, testsupport.WithBackend(backend), testsupport.WithWorkers(2))
			store := testsupport.MustOpenStore(t, cfg)
			refs := []string{"v1", "v2", "v3", "v4", "v5"}
			testsupport.Enqueue(t, store, "base", []string{"fox"}, refs...)

			var active, peak atomic.Int32
			var mu sync.Mutex
			seen := map[string]int{}
			analyzer := analyzeFunc(func(_ context.Context, req analysis.Request) (analysis.Report, error) {
				n := active.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(20 * time.Millisecond)
				active.Add(-1)
				mu.Lock()
				seen[req.VideoRefs[0]]++
				mu.Unlock()
				return okReport(req), nil
			})

			summary := runWithTimeout(t, dispatcher.New(cfg, store, analyzer, nil))

			if summary.Succeeded != 5 || summary.Failed != 0 {
				t.Fatalf("summary = %+v", summary)
			}
			if !summary.Final.Drained() || summary.Final.Done != 5 {
				t.Fatalf("final counts = %+v", summary.Final)
			}
			if p := peak.Load(); p > 2 {
				t.Fatalf("peak concurrency %d exceeds pool width", p)
			}
			for _, ref := range refs {
				if seen[ref] != 1 {
					t.Fatalf("job %s analysed %d times", ref, seen[ref])
				}
			}
			for ref, job := range jobsByRef(t, store) {
				if job.Status != queue.StatusDone || job.FinishedAt.IsZero() {
					t.Fatalf("job %s = %+v", ref, job)
				}
			}
			if summary.CorrelationID == "" {
				t.Fatal("expected correlation id")
			}
		})
	}
}

func TestRunIsolatesFailures(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.Enqueue(t, store, "base", []string{"fox"}, "good-1", "bad", "boom", "good-2")

	analyzer := analyzeFunc(func(_ context.Context, req analysis.Request) (analysis.Report, error) {
		switch req.VideoRefs[0] {
		case "bad":
			return analysis.Report{}, services.Wrap(services.ErrRetrieval, "ytdlp", "metadata", "video unavailable", nil)
		case "boom":
			panic("decoder exploded")
		}
		return okReport(req), nil
	})

	summary := runWithTimeout(t, dispatcher.New(cfg, store, analyzer, nil))
	if summary.Succeeded != 2 || summary.Failed != 2 {
		t.Fatalf("summary = %+v", summary)
	}

	jobs := jobsByRef(t, store)
	if got := jobs["bad"]; got.Status != queue.StatusFailed || got.Error != "RetrievalError: ytdlp: metadata: video unavailable" {
		t.Fatalf("bad job = %+v", got)
	}
	if got := jobs["boom"]; got.Status != queue.StatusFailed || !strings.HasPrefix(got.Error, "Error: panic: decoder exploded") {
		t.Fatalf("panicking job = %+v", got)
	}
	if got := jobs["good-2"]; got.Status != queue.StatusDone || got.Error != "" {
		t.Fatalf("good job = %+v", got)
	}
}

func TestRunTimesOutJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Dispatcher.JobTimeout = 1
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.Enqueue(t, store, "base", nil, "slow")

	analyzer := analyzeFunc(func(ctx context.Context, _ analysis.Request) (analysis.Report, error) {
		<-ctx.Done()
		return analysis.Report{}, ctx.Err()
	})

	runWithTimeout(t, dispatcher.New(cfg, store, analyzer, nil))
	job := jobsByRef(t, store)["slow"]
	if job.Status != queue.StatusFailed || !strings.HasPrefix(job.Error, "Timeout: ") {
		t.Fatalf("job = %+v", job)
	}
}

func TestRunWaitsForForeignRunningJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.Enqueue(t, store, "base", nil, "elsewhere")
	claimed, err := store.ClaimPending(context.Background(), 1)
	if err != nil || len(claimed) != 1 {
		t.Fatalf("ClaimPending = %v, %v", claimed, err)
	}

	var calls atomic.Int32
	analyzer := analyzeFunc(func(_ context.Context, req analysis.Request) (analysis.Report, error) {
		calls.Add(1)
		return okReport(req), nil
	})
	d := dispatcher.New(cfg, store, analyzer, nil, dispatcher.WithPollInterval(10*time.Millisecond))

	done := make(chan dispatcher.RunSummary, 1)
	go func() {
		summary, _ := d.Run(context.Background())
		done <- summary
	}()

	select {
	case <-done:
		t.Fatal("dispatcher exited while a job was still running")
	case <-time.After(100 * time.Millisecond):
	}

	if err := store.Update(context.Background(), claimed[0].ID, queue.StatusDone, ""); err != nil {
		t.Fatalf("Update: %v", err)
	}
	select {
	case summary := <-done:
		if summary.Processed() != 0 || calls.Load() != 0 {
			t.Fatalf("dispatcher processed foreign job: %+v", summary)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("dispatcher did not exit after the queue drained")
	}
}

func TestRunReclaimsExpiredLeases(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Queue.LeaseTimeout = 60
	cfg.Dispatcher.JobTimeout = 60
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.Enqueue(t, store, "base", nil, "abandoned")
	if _, err := store.ClaimPending(context.Background(), 1); err != nil {
		t.Fatalf("ClaimPending: %v", err)
	}

	later := func() time.Time { return time.Now().Add(3 * time.Hour) }
	analyzer := analyzeFunc(func(_ context.Context, req analysis.Request) (analysis.Report, error) {
		return okReport(req), nil
	})

	summary := runWithTimeout(t, dispatcher.New(cfg, store, analyzer, nil, dispatcher.WithClock(later)))
	if summary.Succeeded != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	if job := jobsByRef(t, store)["abandoned"]; job.Status != queue.StatusDone {
		t.Fatalf("job = %+v", job)
	}
}

func TestRunCancellationFailsInFlightJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithWorkers(1))
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.Enqueue(t, store, "base", nil, "first", "second")

	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	analyzer := analyzeFunc(func(ctx context.Context, _ analysis.Request) (analysis.Report, error) {
		close(started)
		<-ctx.Done()
		return analysis.Report{}, ctx.Err()
	})
	d := dispatcher.New(cfg, store, analyzer, nil)

	errCh := make(chan error, 1)
	go func() {
		_, err := d.Run(ctx)
		errCh <- err
	}()
	<-started
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run error = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	jobs := jobsByRef(t, store)
	if got := jobs["first"]; got.Status != queue.StatusFailed || !strings.HasPrefix(got.Error, "Canceled: ") {
		t.Fatalf("first = %+v", got)
	}
	if got := jobs["second"]; got.Status != queue.StatusPending {
		t.Fatalf("second = %+v", got)
	}
	if last := d.LastJob(); last == nil || last.VideoRef != "first" {
		t.Fatalf("LastJob = %+v", last)
	}
}

func TestRunEmptyQueueExitsImmediately(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	m := metrics.NewDispatcher()
	analyzer := analyzeFunc(func(context.Context, analysis.Request) (analysis.Report, error) {
		t.Fatal("analyzer must not run on an empty queue")
		return analysis.Report{}, nil
	})

	summary := runWithTimeout(t, dispatcher.New(cfg, store, analyzer, nil, dispatcher.WithMetrics(m)))
	if summary.Processed() != 0 || summary.Final.Total != 0 {
		t.Fatalf("summary = %+v", summary)
	}
}

// breakQueueLock replaces the queue lock file with a directory so every
// mutation fails to lock.
func breakQueueLock(t *testing.T, store queue.Store) {
	t.Helper()
	lockPath := store.Location() + ".lock"
	if err := os.RemoveAll(lockPath); err != nil {
		t.Fatalf("remove lock: %v", err)
	}
	if err := os.Mkdir(lockPath, 0o755); err != nil {
		t.Fatalf("mkdir lock: %v", err)
	}
}

type runOutcome struct {
	summary dispatcher.RunSummary
	err     error
}

// runUnbounded runs without a context deadline and fails the test if Run
// does not return on its own.
func runUnbounded(t *testing.T, d *dispatcher.Dispatcher) runOutcome {
	t.Helper()
	done := make(chan runOutcome, 1)
	go func() {
		summary, err := d.Run(context.Background())
		done <- runOutcome{summary: summary, err: err}
	}()
	select {
	case out := <-done:
		return out
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after a queue failure")
		return runOutcome{}
	}
}

func TestRunStopsWhenClaimFails(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.Enqueue(t, store, "base", []string{"fox"}, "v1")
	breakQueueLock(t, store)

	analyzer := analyzeFunc(func(context.Context, analysis.Request) (analysis.Report, error) {
		t.Error("analyzer must not run when no job could be claimed")
		return analysis.Report{}, nil
	})

	d := dispatcher.New(cfg, store, analyzer, nil)
	out := runUnbounded(t, d)
	if !errors.Is(out.err, services.ErrQueueCorruption) {
		t.Fatalf("Run error = %v, want queue corruption", out.err)
	}
	if out.summary.Processed() != 0 {
		t.Fatalf("summary = %+v", out.summary)
	}
	if last := d.LastError(); !errors.Is(last, services.ErrQueueCorruption) {
		t.Fatalf("LastError = %v", last)
	}
}

func TestRunStopsWhenResultCannotBePersisted(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithWorkers(1))
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.Enqueue(t, store, "base", []string{"fox"}, "v1", "v2")

	var calls atomic.Int32
	analyzer := analyzeFunc(func(_ context.Context, req analysis.Request) (analysis.Report, error) {
		calls.Add(1)
		lockPath := store.Location() + ".lock"
		if err := os.RemoveAll(lockPath); err != nil {
			t.Errorf("remove lock: %v", err)
		}
		if err := os.Mkdir(lockPath, 0o755); err != nil {
			t.Errorf("mkdir lock: %v", err)
		}
		return okReport(req), nil
	})

	out := runUnbounded(t, dispatcher.New(cfg, store, analyzer, nil))
	if !errors.Is(out.err, services.ErrQueueCorruption) {
		t.Fatalf("Run error = %v, want queue corruption", out.err)
	}
	if calls.Load() != 1 {
		t.Fatalf("analyzer ran %d times, want 1", calls.Load())
	}
	jobs := jobsByRef(t, store)
	if got := jobs["v1"]; got.Status != queue.StatusRunning {
		t.Fatalf("v1 = %+v, want running after the failed write", got)
	}
	if got := jobs["v2"]; got.Status != queue.StatusPending {
		t.Fatalf("v2 = %+v, want pending", got)
	}
}
