package preflight

import (
	"context"
	"fmt"
	"strings"

	"tubescan/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes every preflight check for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Cache directory", cfg.Paths.CacheDir),
		CheckDirectoryAccess("Work directory", cfg.Paths.WorkDir),
	}
	if results[2].Passed {
		results = append(results, CheckFreeSpace("Work directory space", cfg.Paths.WorkDir, MinFreeBytes))
	}
	for _, status := range CheckSystemDeps(ctx, cfg) {
		r := Result{Name: status.Name, Passed: status.Available || status.Optional}
		switch {
		case status.Available && status.Version != "":
			r.Detail = fmt.Sprintf("%s (%s)", status.Command, status.Version)
		case status.Available:
			r.Detail = status.Command
		default:
			r.Detail = status.Detail
		}
		results = append(results, r)
	}
	return results
}

// Failed returns a one-line summary of failed checks, or "" when all passed.
func Failed(results []Result) string {
	var parts []string
	for _, r := range results {
		if !r.Passed {
			parts = append(parts, fmt.Sprintf("%s: %s", r.Name, r.Detail))
		}
	}
	return strings.Join(parts, "; ")
}
