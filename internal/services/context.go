package services

import "context"

type contextKey string

const (
	jobIDKey     contextKey = "job_id"
	videoRefKey  contextKey = "video_ref"
	modelKey     contextKey = "model"
	requestIDKey contextKey = "request_id"
)

func withString(ctx context.Context, key contextKey, value string) context.Context {
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func stringFrom(ctx context.Context, key contextKey) (string, bool) {
	if ctx == nil {
		return "", false
	}
	if v, ok := ctx.Value(key).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithJobID annotates context with the queue job identifier.
func WithJobID(ctx context.Context, id string) context.Context {
	return withString(ctx, jobIDKey, id)
}

// JobIDFromContext extracts the queue job identifier if present.
func JobIDFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, jobIDKey)
}

// WithVideoRef annotates context with the video currently being processed.
func WithVideoRef(ctx context.Context, ref string) context.Context {
	return withString(ctx, videoRefKey, ref)
}

// VideoRefFromContext returns the video reference if present.
func VideoRefFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, videoRefKey)
}

// WithModel annotates context with the transcription model variant.
func WithModel(ctx context.Context, model string) context.Context {
	return withString(ctx, modelKey, model)
}

// ModelFromContext returns the model variant if present.
func ModelFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, modelKey)
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	return withString(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, requestIDKey)
}
