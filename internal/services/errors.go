package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrRetrieval marks failures resolving a video or catalog reference.
	ErrRetrieval = errors.New("retrieval error")
	// ErrTranscription marks failures producing a transcript.
	ErrTranscription = errors.New("transcription error")
	// ErrCacheIO marks transcription cache read/write failures. Always recovered locally.
	ErrCacheIO = errors.New("cache io error")
	// ErrQueueCorruption marks an unreadable, unwritable, or malformed job queue store.
	ErrQueueCorruption = errors.New("queue corruption")
	ErrTimeout         = errors.New("timeout")
	ErrValidation      = errors.New("validation error")
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTranscription
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind names the taxonomy class of err as recorded in job error fields.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return "Timeout"
	case errors.Is(err, ErrRetrieval):
		return "RetrievalError"
	case errors.Is(err, ErrTranscription):
		return "TranscriptionError"
	case errors.Is(err, ErrCacheIO):
		return "CacheIOError"
	case errors.Is(err, ErrQueueCorruption):
		return "QueueCorruption"
	case errors.Is(err, ErrValidation):
		return "ValidationError"
	case errors.Is(err, context.Canceled):
		return "Canceled"
	default:
		return "Error"
	}
}

// JobMessage renders the short "<Kind>: <detail>" failure message persisted on
// failed jobs. The marker prefix added by Wrap is not repeated in the detail.
func JobMessage(err error) string {
	if err == nil {
		return ""
	}
	detail := strings.TrimSpace(err.Error())
	for _, marker := range []error{ErrRetrieval, ErrTranscription, ErrCacheIO, ErrQueueCorruption, ErrTimeout, ErrValidation} {
		prefix := marker.Error() + ": "
		if strings.HasPrefix(detail, prefix) {
			detail = strings.TrimPrefix(detail, prefix)
			break
		}
	}
	if detail == "" {
		detail = "unknown failure"
	}
	return Kind(err) + ": " + detail
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
