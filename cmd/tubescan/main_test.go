package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tubescan/internal/logging"
	"tubescan/internal/queue"
	"tubescan/internal/stats"
	"tubescan/internal/testsupport"
	"tubescan/internal/transcache"
)

func TestConfigInitShowAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out := mustRunCLI(t, env, "config", "validate")
	requireContains(t, out, "Configuration valid")

	out = mustRunCLI(t, env, "config", "show")
	requireContains(t, out, "[transcriber]")
	requireContains(t, out, env.cfg.Transcriber.YtDlpBinary)

	target := filepath.Join(t.TempDir(), "config.toml")
	out = mustRunCLI(t, env, "config", "init", "--path", target)
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}
	if _, _, err := runCLI(t, env, "config", "init", "--path", target); err == nil {
		t.Fatal("expected init to refuse overwriting without --overwrite")
	}
}

func TestAnalyzeUsesCachedTranscripts(t *testing.T) {
	env := setupCLITestEnv(t)
	cache := transcache.New(env.cfg.Paths.CacheDir, logging.NewNop())
	if err := cache.Store("https://www.youtube.com/watch?v=a", "First", "the gambit of the immortal dame"); err != nil {
		t.Fatalf("cache store: %v", err)
	}
	if err := cache.Store("https://www.youtube.com/watch?v=b", "Second", "a rook and a gambit, another gambit"); err != nil {
		t.Fatalf("cache store: %v", err)
	}

	out := mustRunCLI(t, env, "analyze",
		"https://www.youtube.com/watch?v=a", "https://www.youtube.com/watch?v=b",
		"--keywords", "gambit,gambit dame", "-k", "queen")
	requireContains(t, out, "Videos analysed: 2 of 2")
	requireContains(t, out, "Cached transcripts: 2")
	requireContains(t, out, "Total occurrences: 5")
	requireContains(t, out, "gambit dame")
	requireContains(t, out, "Second")

	out = mustRunCLI(t, env, "analyze", "https://www.youtube.com/watch?v=b", "-k", "gambit", "--json")
	var report struct {
		TotalVideos      int `json:"total_videos"`
		TotalOccurrences int `json:"total_occurrences"`
		Details          map[string][]struct {
			Title string `json:"title"`
			URL   string `json:"url"`
			Count int    `json:"count"`
		} `json:"details"`
	}
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode report: %v\n%s", err, out)
	}
	if report.TotalVideos != 1 || report.TotalOccurrences != 2 {
		t.Fatalf("unexpected report %+v", report)
	}
	if got := report.Details["gambit"]; len(got) != 1 || got[0].Title != "Second" || got[0].Count != 2 {
		t.Fatalf("unexpected details %+v", report.Details)
	}
}

func TestAnalyzeRequiresKeywordsAndKnownModel(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, env, "analyze", "https://www.youtube.com/watch?v=a"); err == nil {
		t.Fatal("expected error without keywords")
	}
	_, _, err := runCLI(t, env, "analyze", "https://www.youtube.com/watch?v=a", "-k", "x", "--model", "gigantic")
	if err == nil || !strings.Contains(err.Error(), "gigantic") {
		t.Fatalf("expected unknown model error, got %v", err)
	}
}

func TestListPlaylist(t *testing.T) {
	env := setupCLITestEnv(t)

	out := mustRunCLI(t, env, "list", "https://www.youtube.com/playlist?list=PL1")
	requireContains(t, out, "Opening")
	requireContains(t, out, "02:05")
	requireContains(t, out, "1:02:05")
	requireContains(t, out, "https://www.youtube.com/watch?v=bbb")
	if strings.Contains(out, "Broken") {
		t.Fatalf("entries without an id should be skipped:\n%s", out)
	}

	out = mustRunCLI(t, env, "list", "https://www.youtube.com/watch?v=one", "--json")
	var listings []videoListing
	if err := json.Unmarshal([]byte(out), &listings); err != nil {
		t.Fatalf("decode listing: %v", err)
	}
	if len(listings) != 1 || listings[0].Title != "Single" || listings[0].Duration != "10:00" {
		t.Fatalf("unexpected listing %+v", listings)
	}
}

func TestEnqueueAndQueueMaintenance(t *testing.T) {
	env := setupCLITestEnv(t)

	out := mustRunCLI(t, env, "enqueue", "https://www.youtube.com/playlist?list=PL1",
		"https://www.youtube.com/watch?v=zzz", "-k", "gambit", "--model", "Small")
	requireContains(t, out, "Queued 3 job(s)")

	store := testsupport.MustOpenStore(t, env.cfg)
	jobs, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	wantRefs := []string{
		"https://www.youtube.com/watch?v=aaa",
		"https://www.youtube.com/watch?v=bbb",
		"https://www.youtube.com/watch?v=zzz",
	}
	for i, job := range jobs {
		if job.VideoRef != wantRefs[i] || job.Model != "small" || job.Status != queue.StatusPending {
			t.Fatalf("job %d = %+v", i, job)
		}
	}

	out = mustRunCLI(t, env, "queue", "status")
	requireContains(t, out, "Pending")
	requireContains(t, out, "3")

	ctx := context.Background()
	claimed, err := store.ClaimPending(ctx, 2)
	if err != nil || len(claimed) != 2 {
		t.Fatalf("ClaimPending: %v (%d)", err, len(claimed))
	}
	if err := store.Update(ctx, claimed[0].ID, queue.StatusFailed, "RetrievalError: gone"); err != nil {
		t.Fatalf("Update: %v", err)
	}

	out = mustRunCLI(t, env, "queue", "list", "--status", "failed")
	requireContains(t, out, "RetrievalError: gone")
	requireContains(t, out, claimed[0].ID[:shortIDLength])

	out = mustRunCLI(t, env, "queue", "retry", claimed[0].ID[:shortIDLength])
	requireContains(t, out, "Retrying 1 failed jobs")

	out = mustRunCLI(t, env, "queue", "reset-stuck")
	requireContains(t, out, "Reset 1 jobs")

	summary, err := store.StatusCounts(ctx)
	if err != nil {
		t.Fatalf("StatusCounts: %v", err)
	}
	if summary.Pending != 3 {
		t.Fatalf("expected all jobs pending again, got %+v", summary)
	}

	out = mustRunCLI(t, env, "queue", "clear", "--done")
	requireContains(t, out, "Cleared 0 finished jobs")
	out = mustRunCLI(t, env, "enqueue", "--reset", "https://www.youtube.com/watch?v=new", "-k", "rook")
	requireContains(t, out, "Replaced queue with 1 job(s)")
	out = mustRunCLI(t, env, "queue", "clear")
	requireContains(t, out, "Cleared 1 jobs")
}

func TestEnqueueManifest(t *testing.T) {
	env := setupCLITestEnv(t)
	path := filepath.Join(env.baseDir, "jobs.yaml")
	testsupport.WriteFile(t, path, `model: tiny
keywords: [gambit]
jobs:
  - https://www.youtube.com/watch?v=m1
  - url: https://www.youtube.com/playlist?list=PL1
    expand: true
    keywords: [rook]
`)

	out := mustRunCLI(t, env, "enqueue", "--manifest", path)
	requireContains(t, out, "Queued 3 job(s)")

	out = mustRunCLI(t, env, "queue", "list", "--json")
	var jobs []queue.Job
	if err := json.Unmarshal([]byte(out), &jobs); err != nil {
		t.Fatalf("decode jobs: %v", err)
	}
	if len(jobs) != 3 || jobs[0].Keywords[0] != "gambit" || jobs[2].Keywords[0] != "rook" || jobs[1].Model != "tiny" {
		t.Fatalf("unexpected jobs %+v", jobs)
	}
}

func TestEnqueueRejectsUnknownModel(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, env, "enqueue", "https://www.youtube.com/watch?v=x", "-k", "a", "-m", "gigantic"); err == nil {
		t.Fatal("expected unknown model error")
	}
	store := testsupport.MustOpenStore(t, env.cfg)
	summary, err := store.StatusCounts(context.Background())
	if err != nil {
		t.Fatalf("StatusCounts: %v", err)
	}
	if summary.Total != 0 {
		t.Fatalf("expected nothing enqueued, got %+v", summary)
	}
}

func TestCacheCommands(t *testing.T) {
	env := setupCLITestEnv(t)
	out := mustRunCLI(t, env, "cache", "list")
	requireContains(t, out, "Cache is empty")

	cache := transcache.New(env.cfg.Paths.CacheDir, logging.NewNop())
	ref := "https://www.youtube.com/watch?v=c1"
	if err := cache.Store(ref, "Cached Title", strings.Repeat("word ", 200)); err != nil {
		t.Fatalf("cache store: %v", err)
	}

	out = mustRunCLI(t, env, "cache", "list")
	requireContains(t, out, "Cached Title")
	requireContains(t, out, "1 transcript(s)")

	out = mustRunCLI(t, env, "cache", "show", ref)
	requireContains(t, out, "Title:  Cached Title")
	requireContains(t, out, "…")

	out = mustRunCLI(t, env, "cache", "remove", ref)
	requireContains(t, out, "Removed "+ref)
	if _, _, err := runCLI(t, env, "cache", "show", ref); err == nil {
		t.Fatal("expected removed entry to be missing")
	}

	if err := cache.Store(ref, "Again", "text"); err != nil {
		t.Fatalf("cache store: %v", err)
	}
	out = mustRunCLI(t, env, "cache", "clear")
	requireContains(t, out, "Removed 1 cached transcript(s)")
}

func TestStatsWithEstimate(t *testing.T) {
	env := setupCLITestEnv(t)
	out := mustRunCLI(t, env, "stats")
	requireContains(t, out, "No transcription samples recorded yet")

	st := stats.New(env.cfg.Paths.StatsFile, logging.NewNop())
	if err := st.Record(context.Background(), "base", 20*time.Minute, 10*time.Minute); err != nil {
		t.Fatalf("Record: %v", err)
	}

	store := testsupport.MustOpenStore(t, env.cfg)
	testsupport.Enqueue(t, store, "base", []string{"gambit"}, "https://www.youtube.com/watch?v=one", "https://www.youtube.com/watch?v=two")
	testsupport.Enqueue(t, store, "tiny", []string{"gambit"}, "https://www.youtube.com/watch?v=three")

	out = mustRunCLI(t, env, "stats", "--eta")
	requireContains(t, out, "Base")
	requireContains(t, out, "2.00x")
	requireContains(t, out, "Pending jobs: 3 (2 with an estimate)")
	// Two 10 minute videos at 2x take 10 minutes, 5 with two workers.
	requireContains(t, out, "Estimated processing time: 10m0s (about 5m0s with 2 workers)")
}

func TestDispatchDrainsCachedJobs(t *testing.T) {
	env := setupCLITestEnv(t)
	cache := transcache.New(env.cfg.Paths.CacheDir, logging.NewNop())
	ref := "https://www.youtube.com/watch?v=d1"
	if err := cache.Store(ref, "Dispatched", "gambit gambit gambit"); err != nil {
		t.Fatalf("cache store: %v", err)
	}
	store := testsupport.MustOpenStore(t, env.cfg)
	testsupport.Enqueue(t, store, "base", []string{"gambit"}, ref)

	out := mustRunCLI(t, env, "dispatch")
	requireContains(t, out, "Processed 1 job(s): 1 done, 0 failed, 1 cached, 3 occurrence(s)")
}

func TestDoctorReportsChecks(t *testing.T) {
	env := setupCLITestEnv(t)
	out := mustRunCLI(t, env, "doctor")
	requireContains(t, out, "yt-dlp")
	requireContains(t, out, "whisper")
	requireContains(t, out, "Work directory")

	env.cfg.Transcriber.WhisperBinary = "tubescan-missing-whisper"
	writeTestConfig(t, env.configPath, env.cfg)
	out, _, err := runCLI(t, env, "doctor")
	if err == nil {
		t.Fatal("expected doctor to fail without whisper")
	}
	requireContains(t, out, "FAIL")
}
