package services_test

import (
	"context"
	"testing"

	"tubescan/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithJobID(ctx, "job-1")
	ctx = services.WithVideoRef(ctx, "https://youtu.be/x")
	ctx = services.WithModel(ctx, "small")
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.JobIDFromContext(ctx); !ok || id != "job-1" {
		t.Fatalf("unexpected job id: %v %v", id, ok)
	}
	if ref, ok := services.VideoRefFromContext(ctx); !ok || ref != "https://youtu.be/x" {
		t.Fatalf("unexpected video ref: %v %v", ref, ok)
	}
	if model, ok := services.ModelFromContext(ctx); !ok || model != "small" {
		t.Fatalf("unexpected model: %v %v", model, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := services.WithJobID(context.Background(), "")
	if _, ok := services.JobIDFromContext(ctx); ok {
		t.Fatal("expected no job id value")
	}
}
