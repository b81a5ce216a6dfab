package config

import (
	"errors"
	"fmt"
	"net"

	"tubescan/internal/language"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateQueue(); err != nil {
		return err
	}
	if err := c.validateDispatcher(); err != nil {
		return err
	}
	if err := c.validateTranscriber(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateQueue() error {
	switch c.Queue.Backend {
	case QueueBackendJSON, QueueBackendSQLite:
	default:
		return fmt.Errorf("queue.backend must be %q or %q, got %q", QueueBackendJSON, QueueBackendSQLite, c.Queue.Backend)
	}
	if c.Queue.PollInterval < 1 {
		return errors.New("queue.poll_interval must be at least 1 second")
	}
	if c.Queue.LeaseTimeout < 0 {
		return errors.New("queue.lease_timeout must be zero (disabled) or positive")
	}
	return nil
}

func (c *Config) validateDispatcher() error {
	if c.Dispatcher.Workers < 1 || c.Dispatcher.Workers > maxWorkers {
		return fmt.Errorf("dispatcher.workers must be between 1 and %d", maxWorkers)
	}
	if c.Dispatcher.JobTimeout < 1 {
		return errors.New("dispatcher.job_timeout must be positive")
	}
	if c.Dispatcher.MetricsBind != "" {
		if _, _, err := net.SplitHostPort(c.Dispatcher.MetricsBind); err != nil {
			return fmt.Errorf("dispatcher.metrics_bind: %w", err)
		}
	}
	return nil
}

func (c *Config) validateTranscriber() error {
	if c.Transcriber.DownloadTimeout < 1 {
		return errors.New("transcriber.download_timeout must be positive")
	}
	if c.Transcriber.MetadataTimeout < 1 {
		return errors.New("transcriber.metadata_timeout must be positive")
	}
	if c.Transcriber.TranscribeTimeout < 1 {
		return errors.New("transcriber.transcribe_timeout must be positive")
	}
	if _, ok := language.ToISO2(c.Transcriber.Language); !ok {
		return fmt.Errorf("transcriber.language %q is not a recognized language", c.Transcriber.Language)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
