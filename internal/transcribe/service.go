package transcribe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"tubescan/internal/analysis"
	"tubescan/internal/config"
	tlang "tubescan/internal/language"
	"tubescan/internal/logging"
	"tubescan/internal/services"
)

const audioFileName = "audio.mp3"

// AudioSource downloads audio and resolves titles. *ytdlp.Client satisfies it.
type AudioSource interface {
	Title(ctx context.Context, ref string) string
	DownloadAudio(ctx context.Context, ref, dest string) error
}

// CommandRunner executes a command, returning combined output on failure.
type CommandRunner func(ctx context.Context, name string, args ...string) error

// Service runs whisper on downloaded audio.
type Service struct {
	source   AudioSource
	registry *Registry
	binary   string
	workDir  string
	language string
	timeout  time.Duration
	run      CommandRunner
	logger   *slog.Logger
}

// NewService creates a transcriber from configuration.
func NewService(cfg *config.Config, source AudioSource, registry *Registry, logger *slog.Logger) *Service {
	lang, _ := tlang.ToISO2(cfg.Transcriber.Language)
	if registry == nil {
		registry = NewRegistry()
	}
	return &Service{
		source:   source,
		registry: registry,
		binary:   cfg.WhisperBinary(),
		workDir:  cfg.Paths.WorkDir,
		language: lang,
		timeout:  time.Duration(cfg.Transcriber.TranscribeTimeout) * time.Second,
		run:      execRunner,
		logger:   logging.NewComponentLogger(logger, "transcribe"),
	}
}

// WithCommandRunner sets a custom command runner (for testing).
func (s *Service) WithCommandRunner(runner CommandRunner) {
	if runner != nil {
		s.run = runner
	}
}

// Registry exposes the model registry shared by this service.
func (s *Service) Registry() *Registry {
	return s.registry
}

// Transcribe downloads ref's audio and transcribes it with model.
func (s *Service) Transcribe(ctx context.Context, ref, model string) (analysis.Transcript, error) {
	name, err := s.registry.Resolve(model)
	if err != nil {
		return analysis.Transcript{}, err
	}
	logger := logging.WithContext(ctx, s.logger).With(logging.String(logging.FieldModel, name))

	title := s.source.Title(ctx, ref)

	if err := os.MkdirAll(s.workDir, 0o755); err != nil {
		return analysis.Transcript{}, services.Wrap(services.ErrTranscription, "transcribe", "prepare", "create work directory", err)
	}
	tempDir, err := os.MkdirTemp(s.workDir, "job-*")
	if err != nil {
		return analysis.Transcript{}, services.Wrap(services.ErrTranscription, "transcribe", "prepare", "create temp directory", err)
	}
	defer func() {
		if err := os.RemoveAll(tempDir); err != nil {
			logger.Debug("temp audio cleanup failed", logging.String("path", tempDir), logging.Error(err))
		}
	}()

	audioPath := filepath.Join(tempDir, audioFileName)
	logger.Info("downloading audio", logging.String("title", title))
	if err := s.source.DownloadAudio(ctx, ref, audioPath); err != nil {
		return analysis.Transcript{}, err
	}

	logger.Info("transcribing audio", logging.String("language", tlang.DisplayName(s.language)))
	text, err := s.transcribeFile(ctx, audioPath, tempDir, name)
	if err != nil {
		return analysis.Transcript{}, err
	}
	return analysis.Transcript{Title: title, Text: text}, nil
}

func (s *Service) transcribeFile(ctx context.Context, audioPath, outputDir, model string) (string, error) {
	callCtx, cancel := ctx, context.CancelFunc(func() {})
	if s.timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, s.timeout)
	}
	defer cancel()

	if err := s.run(callCtx, s.binary, s.buildArgs(audioPath, outputDir, model)...); err != nil {
		if ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return "", services.Wrap(services.ErrTimeout, "transcribe", "whisper", fmt.Sprintf("exceeded %s", s.timeout), err)
		}
		if errors.Is(err, exec.ErrNotFound) {
			return "", services.Wrap(services.ErrTranscription, "transcribe", "whisper", s.binary+" is not installed or not on PATH", err)
		}
		return "", services.Wrap(services.ErrTranscription, "transcribe", "whisper", "whisper run failed", err)
	}

	textPath := filepath.Join(outputDir, strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))+".txt")
	data, err := os.ReadFile(textPath)
	if err != nil {
		return "", services.Wrap(services.ErrTranscription, "transcribe", "whisper", "transcript file missing", err)
	}
	return joinLines(string(data)), nil
}

// buildArgs constructs the whisper CLI arguments.
func (s *Service) buildArgs(audioPath, outputDir, model string) []string {
	args := []string{
		audioPath,
		"--model", model,
		"--output_dir", outputDir,
		"--output_format", "txt",
		"--fp16", "False",
		"--verbose", "False",
	}
	if s.language != tlang.Auto {
		args = append(args, "--language", s.language)
	}
	return args
}

// joinLines flattens whisper's one-segment-per-line text output.
func joinLines(raw string) string {
	lines := strings.Split(raw, "\n")
	parts := make([]string, 0, len(lines))
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			parts = append(parts, line)
		}
	}
	return strings.Join(parts, " ")
}

func execRunner(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output
	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(output.String())
		if len(detail) > 2000 {
			detail = detail[len(detail)-2000:]
		}
		if detail == "" {
			return fmt.Errorf("%s: %w", name, err)
		}
		return fmt.Errorf("%s: %w: %s", name, err, detail)
	}
	return nil
}
