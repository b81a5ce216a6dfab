package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"tubescan/internal/config"
	"tubescan/internal/testsupport"
)

// fakeYtDlp answers metadata requests: --flat-playlist gets a two-video
// playlist, anything else a single 10 minute video.
const fakeYtDlp = `for arg in "$@"; do
  if [ "$arg" = "--flat-playlist" ]; then
    echo '{"_type":"playlist","title":"Chess","entries":[{"id":"aaa","title":"Opening","duration":125},{"id":"bbb","title":"Endgame","duration":3725},{"title":"Broken"}]}'
    exit 0
  fi
done
echo '{"_type":"video","id":"one","title":"Single","duration":600,"webpage_url":"https://www.youtube.com/watch?v=one"}'
`

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries("yt-dlp", "whisper", "ffmpeg"))
	base := testsupport.BaseDir(cfg)
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	t.Setenv("TUBESCAN_WORKERS", "")

	ytdlp := filepath.Join(base, "fake", "yt-dlp")
	testsupport.WriteExecutable(t, ytdlp, fakeYtDlp)
	cfg.Transcriber.YtDlpBinary = ytdlp
	cfg.Logging.Level = "error"

	configPath := filepath.Join(base, "tubescan.toml")
	writeTestConfig(t, configPath, cfg)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	return &cliTestEnv{cfg: cfg, configPath: configPath, baseDir: base}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, env *cliTestEnv, args ...string) (string, string, error) {
	t.Helper()

	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", env.configPath}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func mustRunCLI(t *testing.T, env *cliTestEnv, args ...string) string {
	t.Helper()
	out, stderr, err := runCLI(t, env, args...)
	if err != nil {
		t.Fatalf("tubescan %s: %v\nstderr: %s", strings.Join(args, " "), err, stderr)
	}
	return out
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q, got:\n%s", needle, haystack)
	}
}
