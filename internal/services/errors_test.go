package services_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"tubescan/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("exit status 1")
	err := services.Wrap(services.ErrRetrieval, "ytdlp", "metadata", "lookup failed", base)
	if !errors.Is(err, services.ErrRetrieval) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"ytdlp", "metadata", "lookup failed", "exit status 1"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapWithoutMarkerDefaultsToTranscription(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTranscription) {
		t.Fatalf("expected transcription marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected placeholder detail, got %q", err.Error())
	}
}

func TestJobMessageClassification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"retrieval", services.Wrap(services.ErrRetrieval, "ytdlp", "list", "private video", nil), "RetrievalError: ytdlp: list: private video"},
		{"transcription", services.Wrap(services.ErrTranscription, "whisper", "run", "", errors.New("oom")), "TranscriptionError: whisper: run: oom"},
		{"timeout marker", services.Wrap(services.ErrTimeout, "whisper", "run", "exceeded 3600s", nil), "Timeout: whisper: run: exceeded 3600s"},
		{"deadline", fmt.Errorf("download: %w", context.DeadlineExceeded), "Timeout: download: context deadline exceeded"},
		{"plain", errors.New("boom"), "Error: boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := services.JobMessage(tt.err); got != tt.want {
				t.Fatalf("JobMessage = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestKindPrefersTimeoutOverMarker(t *testing.T) {
	err := services.Wrap(services.ErrTranscription, "whisper", "run", "", context.DeadlineExceeded)
	if kind := services.Kind(err); kind != "Timeout" {
		t.Fatalf("expected Timeout, got %s", kind)
	}
}
