package testsupport

import (
	"context"
	"testing"

	"tubescan/internal/config"
	"tubescan/internal/queue"
)

// MustOpenStore opens the configured queue backend for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) queue.Store {
	t.Helper()

	store, err := queue.Open(cfg, nil)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

// Enqueue adds one pending job per video ref with the given keywords and model.
func Enqueue(t testing.TB, store queue.Store, model string, keywords []string, refs ...string) []queue.Job {
	t.Helper()

	specs := make([]queue.NewJob, 0, len(refs))
	for _, ref := range refs {
		specs = append(specs, queue.NewJob{VideoRef: ref, Keywords: keywords, Model: model})
	}
	jobs, err := store.Enqueue(context.Background(), specs, false)
	if err != nil {
		t.Fatalf("store.Enqueue: %v", err)
	}
	return jobs
}
