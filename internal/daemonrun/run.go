// Package daemonrun hosts the dispatcher process runtime shared by tubescand
// and "tubescan dispatch".
package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"

	"tubescan/internal/config"
	"tubescan/internal/deps"
	"tubescan/internal/dispatcher"
	"tubescan/internal/logging"
	"tubescan/internal/metrics"
	"tubescan/internal/pipeline"
	"tubescan/internal/preflight"
)

// Options configures dispatcher process runtime behavior.
type Options struct {
	// LogLevel overrides logging.level when set.
	LogLevel string
	// Logger replaces the config-derived logger.
	Logger *slog.Logger
	// SkipPreflight starts draining without directory and binary checks.
	SkipPreflight bool
	// Pipeline customizes the analysis components.
	Pipeline []pipeline.Option
	// Dispatcher customizes the worker pool.
	Dispatcher []dispatcher.Option
}

// Run drains the queue until no pending or running job remains, or until
// SIGINT/SIGTERM. The returned summary covers the jobs this process finished.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) (dispatcher.RunSummary, error) {
	if cfg == nil {
		return dispatcher.RunSummary{}, fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := opts.Logger
	if logger == nil {
		if level := strings.TrimSpace(opts.LogLevel); level != "" {
			cfg.Logging.Level = level
		}
		var err error
		logger, err = logging.NewFromConfig(cfg)
		if err != nil {
			return dispatcher.RunSummary{}, fmt.Errorf("init logger: %w", err)
		}
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return dispatcher.RunSummary{}, fmt.Errorf("ensure directories: %w", err)
	}
	logDependencySnapshot(logger, cfg)
	if !opts.SkipPreflight {
		if failed := preflight.Failed(preflight.RunAll(signalCtx, cfg)); failed != "" {
			logging.ErrorWithContext(logger, "preflight checks failed", "preflight_failed",
				logging.String("failures", failed),
				logging.String(logging.FieldErrorHint, "run `tubescan doctor` and install the missing dependencies"),
				logging.String(logging.FieldImpact, "no jobs were claimed"),
			)
			return dispatcher.RunSummary{}, fmt.Errorf("preflight: %s", failed)
		}
	}

	p, err := pipeline.New(cfg, logger, opts.Pipeline...)
	if err != nil {
		logger.Error("build pipeline", logging.Error(err))
		return dispatcher.RunSummary{}, err
	}
	defer p.Close()

	collector := metrics.NewDispatcher()
	metricsDone := startMetrics(signalCtx, cfg, collector, logger)

	dispatcherOpts := append([]dispatcher.Option{dispatcher.WithMetrics(collector)}, opts.Dispatcher...)
	d := dispatcher.New(cfg, p.Store, p.Orchestrator, logger, dispatcherOpts...)
	summary, runErr := d.Run(signalCtx)

	// The endpoint lives as long as the drain; stop it once Run returns.
	cancel()
	if metricsDone != nil {
		<-metricsDone
	}

	for _, use := range p.Registry.Used() {
		logger.Debug("model usage",
			logging.String(logging.FieldModel, use.Model),
			logging.Int("validations", use.Uses),
		)
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return summary, runErr
	}
	if runErr != nil {
		logger.Info("tubescan dispatcher interrupted",
			logging.Int("finished", summary.Processed()),
			logging.Int("pending", summary.Final.Pending),
		)
		return summary, runErr
	}
	logger.Info("tubescan dispatcher finished",
		logging.String(logging.FieldCorrelationID, summary.CorrelationID),
		logging.Int("succeeded", summary.Succeeded),
		logging.Int("failed", summary.Failed),
		logging.Seconds("elapsed_seconds", summary.Elapsed),
	)
	return summary, nil
}

func startMetrics(ctx context.Context, cfg *config.Config, collector *metrics.Dispatcher, logger *slog.Logger) <-chan struct{} {
	bind := strings.TrimSpace(cfg.Dispatcher.MetricsBind)
	if bind == "" {
		return nil
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := collector.Serve(ctx, bind, logger); err != nil {
			logging.WarnWithContext(logger, "metrics endpoint unavailable", "metrics_serve_failed",
				logging.Error(err),
				logging.String("bind", bind),
				logging.String(logging.FieldErrorHint, "check dispatcher.metrics_bind for a free host:port"),
				logging.String(logging.FieldImpact, "queue draining continues without /metrics"),
			)
		}
	}()
	return done
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	ytdlp := cfg.YtDlpBinary()
	whisper := cfg.WhisperBinary()
	ffmpeg := deps.ResolveFFmpeg(ytdlp)
	logger.Info("dependency snapshot",
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.Bool("ytdlp_available", binaryAvailable(ytdlp)),
		logging.String("ytdlp_binary", ytdlp),
		logging.Bool("whisper_available", binaryAvailable(whisper)),
		logging.String("whisper_binary", whisper),
		logging.Bool("ffmpeg_available", binaryAvailable(ffmpeg)),
		logging.String("ffmpeg_binary", ffmpeg),
		logging.String("queue_backend", cfg.Queue.Backend),
		logging.String("default_model", cfg.Transcriber.DefaultModel),
	)
}

func binaryAvailable(name string) bool {
	if strings.TrimSpace(name) == "" {
		return false
	}
	_, err := exec.LookPath(name)
	return err == nil
}
