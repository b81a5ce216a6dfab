// Package manifest reads YAML batch files describing jobs to enqueue.
//
// A manifest sets default keywords and model and lists the videos. Entries may
// be a bare URL or a mapping that overrides keywords or model:
//
//	model: small
//	keywords: [gambit dame, rook]
//	jobs:
//	  - https://www.youtube.com/watch?v=abc
//	  - url: https://www.youtube.com/@channel
//	    keywords: [endgame]
//	    expand: true
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"tubescan/internal/queue"
	"tubescan/internal/services"
)

// Manifest is a parsed batch file.
type Manifest struct {
	Model    string   `yaml:"model"`
	Keywords []string `yaml:"keywords"`
	Jobs     []Entry  `yaml:"jobs"`
}

// Entry is one manifest job. Expand asks the caller to resolve a channel or
// playlist into one job per video.
type Entry struct {
	URL      string   `yaml:"url"`
	Keywords []string `yaml:"keywords"`
	Model    string   `yaml:"model"`
	Expand   bool     `yaml:"expand"`
}

// UnmarshalYAML accepts either a scalar URL or a mapping.
func (e *Entry) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		e.URL = node.Value
		return nil
	}
	type plain Entry
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*e = Entry(p)
	return nil
}

// Load reads and parses the manifest at path.
func Load(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, services.Wrap(services.ErrValidation, "manifest", "read", path, err)
	}
	return Parse(data)
}

// Parse decodes manifest YAML. Unknown fields are rejected.
func Parse(data []byte) (Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		if errors.Is(err, io.EOF) {
			return Manifest{}, services.Wrap(services.ErrValidation, "manifest", "parse", "manifest is empty", nil)
		}
		return Manifest{}, services.Wrap(services.ErrValidation, "manifest", "parse", "invalid yaml", err)
	}
	if len(m.Jobs) == 0 {
		return Manifest{}, services.Wrap(services.ErrValidation, "manifest", "parse", "manifest lists no jobs", nil)
	}
	for i, entry := range m.Jobs {
		if strings.TrimSpace(entry.URL) == "" {
			return Manifest{}, services.Wrap(services.ErrValidation, "manifest", "parse", fmt.Sprintf("job %d has no url", i+1), nil)
		}
	}
	return m, nil
}

// Resolve returns the jobs with manifest defaults applied. Entry keywords
// replace the defaults; a blank model falls back to the manifest model and
// then to defaultModel.
func (m Manifest) Resolve(defaultModel string) []ResolvedEntry {
	out := make([]ResolvedEntry, 0, len(m.Jobs))
	for _, entry := range m.Jobs {
		keywords := entry.Keywords
		if len(keywords) == 0 {
			keywords = m.Keywords
		}
		model := firstNonEmpty(entry.Model, m.Model, defaultModel)
		out = append(out, ResolvedEntry{
			Job: queue.NewJob{
				VideoRef: strings.TrimSpace(entry.URL),
				Keywords: append([]string(nil), keywords...),
				Model:    model,
			},
			Expand: entry.Expand,
		})
	}
	return out
}

// ResolvedEntry is a job ready to enqueue, possibly pending expansion.
type ResolvedEntry struct {
	Job    queue.NewJob
	Expand bool
}

// NewJobs returns the resolved jobs, ignoring expansion.
func (m Manifest) NewJobs(defaultModel string) []queue.NewJob {
	resolved := m.Resolve(defaultModel)
	jobs := make([]queue.NewJob, 0, len(resolved))
	for _, r := range resolved {
		jobs = append(jobs, r.Job)
	}
	return jobs
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return strings.ToLower(v)
		}
	}
	return ""
}
