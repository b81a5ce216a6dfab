package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains the on-disk locations shared by the CLI and dispatcher processes.
type Paths struct {
	DataDir   string `toml:"data_dir"`
	CacheDir  string `toml:"cache_dir"`
	QueueFile string `toml:"queue_file"`
	QueueDB   string `toml:"queue_db"`
	StatsFile string `toml:"stats_file"`
	LogDir    string `toml:"log_dir"`
	WorkDir   string `toml:"work_dir"`
}

// Queue selects the queue backend and its polling behaviour.
type Queue struct {
	// Backend is "json" (interoperable flat file) or "sqlite".
	Backend      string `toml:"backend"`
	PollInterval int    `toml:"poll_interval"`
	// LeaseTimeout reverts running jobs older than this many seconds back to
	// pending before each claim round. Zero disables the lease.
	LeaseTimeout int `toml:"lease_timeout"`
}

// Dispatcher contains worker pool settings.
type Dispatcher struct {
	Workers     int    `toml:"workers"`
	JobTimeout  int    `toml:"job_timeout"`
	MetricsBind string `toml:"metrics_bind"`
}

// Transcriber configures the external yt-dlp and whisper binaries.
type Transcriber struct {
	WhisperBinary     string `toml:"whisper_binary"`
	YtDlpBinary       string `toml:"ytdlp_binary"`
	DefaultModel      string `toml:"default_model"`
	Language          string `toml:"language"`
	DownloadTimeout   int    `toml:"download_timeout"`
	MetadataTimeout   int    `toml:"metadata_timeout"`
	TranscribeTimeout int    `toml:"transcribe_timeout"`
	CheckCertificates bool   `toml:"check_certificates"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for tubescan.
//
// Configuration sections by subsystem:
//   - Paths: queue, cache, stats, log and scratch locations
//   - Queue: backend selection, poll interval, optional lease
//   - Dispatcher: worker pool width, per-job timeout, metrics endpoint
//   - Transcriber: yt-dlp / whisper binaries, default model, timeouts
//   - Logging: log format and level
type Config struct {
	Paths       Paths       `toml:"paths"`
	Queue       Queue       `toml:"queue"`
	Dispatcher  Dispatcher  `toml:"dispatcher"`
	Transcriber Transcriber `toml:"transcriber"`
	Logging     Logging     `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("tubescan.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories every process needs before it
// touches the shared stores.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Paths.DataDir,
		c.Paths.CacheDir,
		c.Paths.LogDir,
		c.Paths.WorkDir,
		filepath.Dir(c.Paths.QueueFile),
		filepath.Dir(c.Paths.QueueDB),
		filepath.Dir(c.Paths.StatsFile),
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// YtDlpBinary returns the yt-dlp executable name.
func (c *Config) YtDlpBinary() string {
	if v := strings.TrimSpace(c.Transcriber.YtDlpBinary); v != "" {
		return v
	}
	return defaultYtDlpBinary
}

// WhisperBinary returns the whisper executable name.
func (c *Config) WhisperBinary() string {
	if v := strings.TrimSpace(c.Transcriber.WhisperBinary); v != "" {
		return v
	}
	return defaultWhisperBinary
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the resolved configuration as TOML.
func (c *Config) Encode() (string, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}
	return string(data), nil
}
