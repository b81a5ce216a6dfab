package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeDispatcher(); err != nil {
		return err
	}
	c.normalizeQueue()
	c.normalizeTranscriber()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}

	derived := []struct {
		key      string
		value    *string
		fallback string
	}{
		{"paths.cache_dir", &c.Paths.CacheDir, defaultCacheDirName},
		{"paths.queue_file", &c.Paths.QueueFile, defaultQueueFileName},
		{"paths.queue_db", &c.Paths.QueueDB, defaultQueueDBName},
		{"paths.stats_file", &c.Paths.StatsFile, defaultStatsFileName},
		{"paths.log_dir", &c.Paths.LogDir, defaultLogDirName},
		{"paths.work_dir", &c.Paths.WorkDir, defaultWorkDirName},
	}
	for _, entry := range derived {
		if strings.TrimSpace(*entry.value) == "" {
			*entry.value = filepath.Join(c.Paths.DataDir, entry.fallback)
		}
		if *entry.value, err = expandPath(*entry.value); err != nil {
			return fmt.Errorf("%s: %w", entry.key, err)
		}
	}
	return nil
}

func (c *Config) normalizeDispatcher() error {
	if value, ok := os.LookupEnv("TUBESCAN_WORKERS"); ok && strings.TrimSpace(value) != "" {
		workers, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("TUBESCAN_WORKERS: %w", err)
		}
		c.Dispatcher.Workers = workers
	}
	if c.Dispatcher.Workers == 0 {
		c.Dispatcher.Workers = defaultWorkers
	}
	if c.Dispatcher.JobTimeout == 0 {
		c.Dispatcher.JobTimeout = defaultJobTimeout
	}
	c.Dispatcher.MetricsBind = strings.TrimSpace(c.Dispatcher.MetricsBind)
	return nil
}

func (c *Config) normalizeQueue() {
	c.Queue.Backend = strings.ToLower(strings.TrimSpace(c.Queue.Backend))
	if c.Queue.Backend == "" {
		c.Queue.Backend = defaultQueueBackend
	}
	if c.Queue.PollInterval == 0 {
		c.Queue.PollInterval = defaultPollInterval
	}
}

func (c *Config) normalizeTranscriber() {
	c.Transcriber.WhisperBinary = strings.TrimSpace(c.Transcriber.WhisperBinary)
	c.Transcriber.YtDlpBinary = strings.TrimSpace(c.Transcriber.YtDlpBinary)
	c.Transcriber.DefaultModel = strings.ToLower(strings.TrimSpace(c.Transcriber.DefaultModel))
	if c.Transcriber.DefaultModel == "" {
		c.Transcriber.DefaultModel = defaultModel
	}
	c.Transcriber.Language = strings.ToLower(strings.TrimSpace(c.Transcriber.Language))
	if c.Transcriber.DownloadTimeout == 0 {
		c.Transcriber.DownloadTimeout = defaultDownloadTimeout
	}
	if c.Transcriber.MetadataTimeout == 0 {
		c.Transcriber.MetadataTimeout = defaultMetadataTimeout
	}
	if c.Transcriber.TranscribeTimeout == 0 {
		c.Transcriber.TranscribeTimeout = defaultTranscribeTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
