package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"tubescan/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Every store path lives under a fresh data directory.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	data := filepath.Join(base, "data")
	cfgVal.Paths = config.Paths{
		DataDir:   data,
		CacheDir:  filepath.Join(data, "transcriptions_cache"),
		QueueFile: filepath.Join(data, "jobs_queue.json"),
		QueueDB:   filepath.Join(data, "queue.db"),
		StatsFile: filepath.Join(data, "processing_stats.json"),
		LogDir:    filepath.Join(data, "logs"),
		WorkDir:   filepath.Join(data, "work"),
	}
	cfgVal.Queue.PollInterval = 1

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithBackend selects the queue backend on the test config.
func WithBackend(backend string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Queue.Backend = backend
	}
}

// WithWorkers overrides the dispatcher pool width.
func WithWorkers(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Dispatcher.Workers = n
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, yt-dlp and whisper are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"yt-dlp", "whisper"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		for _, name := range names {
			WriteExecutable(b.t, filepath.Join(binDir, name), "exit 0\n")
		}
		b.t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
