// Package selection resolves the effective agent and model for a thread.
//
// Both resolutions share one precedence shape: a stored override wins when
// present, otherwise the system default applies. Selections are recomputed
// on every read and never persisted.
package selection

import (
	"os"
	"strings"
)

// Effective is the outcome of applying override precedence.
type Effective struct {
	Resolved string
	Default  string
}

// IsDefault reports whether the resolved id is the default id.
func (e Effective) IsDefault() bool { return e.Resolved == e.Default }

// Apply resolves an optional override against a default. A non-empty
// override (after trimming) wins; otherwise the default is selected.
func Apply(override, defaultID string) Effective {
	if v := strings.TrimSpace(override); v != "" {
		return Effective{Resolved: v, Default: defaultID}
	}
	return Effective{Resolved: defaultID, Default: defaultID}
}

// fallbackModel is the configured global default model, consulted when a
// plugin declares none.
var fallbackModel string

// SetFallbackModel installs the configured global default model.
func SetFallbackModel(model string) {
	fallbackModel = strings.TrimSpace(model)
}

// modelEnvVars are consulted, in order, when neither the plugin nor the
// configuration declares a default model.
var modelEnvVars = []string{"WEFT_MODEL", "AGENT_MODEL"}

func firstEnv(names ...string) string {
	for _, name := range names {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			return v
		}
	}
	return ""
}
