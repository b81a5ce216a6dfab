package transcribe

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"tubescan/internal/services"
)

// Models lists the whisper variants accepted by the CLI, smallest first.
var Models = []string{
	"tiny", "tiny.en",
	"base", "base.en",
	"small", "small.en",
	"medium", "medium.en",
	"large", "large-v1", "large-v2", "large-v3",
	"turbo",
}

// Registry validates model names and tracks the ones used by this process.
type Registry struct {
	mu   sync.Mutex
	used map[string]int
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{used: make(map[string]int)}
}

// Resolve normalizes model and checks that whisper knows it. Every
// successful resolution is counted.
func (r *Registry) Resolve(model string) (string, error) {
	name := strings.ToLower(strings.TrimSpace(model))
	if !slices.Contains(Models, name) {
		return "", services.Wrap(services.ErrValidation, "transcribe", "resolve model",
			fmt.Sprintf("unknown whisper model %q (valid: %s)", model, strings.Join(Models, ", ")), nil)
	}
	r.mu.Lock()
	r.used[name]++
	r.mu.Unlock()
	return name, nil
}

// Used returns the resolved models in Models order with their use counts.
func (r *Registry) Used() []ModelUse {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ModelUse, 0, len(r.used))
	for _, name := range Models {
		if n := r.used[name]; n > 0 {
			out = append(out, ModelUse{Model: name, Uses: n})
		}
	}
	return out
}

// ModelUse is one Registry entry.
type ModelUse struct {
	Model string
	Uses  int
}

var titleCaser = cases.Title(language.English)

// Label renders a model name for tables, e.g. "large-v2" becomes "Large-V2".
func Label(model string) string {
	model = strings.TrimSpace(model)
	if model == "" {
		return "-"
	}
	return titleCaser.String(model)
}
