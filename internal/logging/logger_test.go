package logging_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tubescan/internal/config"
	"tubescan/internal/logging"
	"tubescan/internal/services"
)

func TestNewFromConfigWritesJSONLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()
	cfg.Logging.Level = "info"

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("dispatcher started", logging.Int("workers", 2))

	content, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, logging.LogFileName))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := strings.TrimSpace(string(content))
	var record map[string]any
	if err := json.Unmarshal([]byte(line), &record); err != nil {
		t.Fatalf("expected JSON log line, got %q: %v", line, err)
	}
	if record["msg"] != "dispatcher started" {
		t.Fatalf("unexpected msg: %v", record["msg"])
	}
	if record["level"] != "info" {
		t.Fatalf("unexpected level: %v", record["level"])
	}
	if record["workers"] != float64(2) {
		t.Fatalf("unexpected workers attr: %v", record["workers"])
	}
}

func TestConsoleLoggerPromotesJobSubject(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console.log")
	logger, err := logging.New(logging.Options{
		Format:      "console",
		Level:       "info",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := services.WithJobID(context.Background(), "1a2b3c4d-5e6f")
	ctx = services.WithVideoRef(ctx, "https://youtu.be/abc")
	logging.WithContext(ctx, logging.NewComponentLogger(logger, "dispatcher")).Info("job finished", logging.String("status", "done"))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	text := string(content)
	for _, fragment := range []string{"INFO [dispatcher]", "Job 1a2b3c4d (https://youtu.be/abc)", "job finished", "- status: done"} {
		if !strings.Contains(text, fragment) {
			t.Fatalf("expected %q in console output %q", fragment, text)
		}
	}
	if strings.Contains(text, "- job_id") {
		t.Fatalf("expected job id to be promoted to the header, got %q", text)
	}
	if strings.Contains(text, ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", text)
	}
}

func TestConsoleLoggerIncludesCallerForDebug(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "debug.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "debug", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Debug("probe")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "logger_test.go:") {
		t.Fatalf("expected caller information in debug logs, got %q", content)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected unsupported format error")
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "warn.log")
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.WarnWithContext(logger, "cache write failed", "cache_write_failed", logging.String(logging.FieldImpact, "transcript will be recomputed"))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var record map[string]any
	if err := json.Unmarshal(content, &record); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if record[logging.FieldEventType] != "cache_write_failed" {
		t.Fatalf("unexpected event type: %v", record[logging.FieldEventType])
	}
	if record[logging.FieldErrorHint] == nil {
		t.Fatal("expected default error hint")
	}
	if record[logging.FieldImpact] != "transcript will be recomputed" {
		t.Fatalf("expected caller impact to be preserved, got %v", record[logging.FieldImpact])
	}
}

func TestTeeHandlerSkipsNil(t *testing.T) {
	h := logging.TeeHandler(nil, nil)
	if h.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("expected a discarding handler when no handlers supplied")
	}
}

func TestFormatSubject(t *testing.T) {
	tests := []struct {
		job, video, want string
	}{
		{"", "", ""},
		{"abc", "", "Job abc"},
		{"0123456789", "v", "Job 01234567 (v)"},
		{"", "v", "v"},
	}
	for _, tt := range tests {
		if got := logging.FormatSubject(tt.job, tt.video); got != tt.want {
			t.Fatalf("FormatSubject(%q, %q) = %q, want %q", tt.job, tt.video, got, tt.want)
		}
	}
}

func TestProgressSamplerEmitsOnBucketChange(t *testing.T) {
	sampler := logging.NewProgressSampler(25)
	var emitted []float64
	for _, f := range []float64{0, 0.1, 0.2, 0.25, 0.3, 0.6, 1} {
		if sampler.ShouldLog(f) {
			emitted = append(emitted, f)
		}
	}
	want := []float64{0, 0.25, 0.6, 1}
	if len(emitted) != len(want) {
		t.Fatalf("emitted %v, want %v", emitted, want)
	}
	for i := range want {
		if emitted[i] != want[i] {
			t.Fatalf("emitted %v, want %v", emitted, want)
		}
	}
	sampler.Reset()
	if !sampler.ShouldLog(0) {
		t.Fatal("expected emit after reset")
	}
}
