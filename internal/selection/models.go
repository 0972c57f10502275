package selection

import (
	"context"
	"strings"

	"github.com/weftwork/weft/internal/agent"
	"github.com/weftwork/weft/internal/store"
	"github.com/weftwork/weft/pkg/types"
)

// ModelSelection is the resolved model for a session.
type ModelSelection struct {
	Model        string
	DefaultModel string
}

// IsDefault reports whether the default model was selected.
func (s ModelSelection) IsDefault() bool { return s.Model == s.DefaultModel }

// Info converts the selection to its client-facing form.
func (s ModelSelection) Info() types.ModelSelectionInfo {
	return types.ModelSelectionInfo{
		Model:        s.Model,
		DefaultModel: s.DefaultModel,
		IsDefault:    s.IsDefault(),
	}
}

// ListModels enumerates the plugin's models, tolerating plugins without the
// hook.
func ListModels(p *agent.Plugin) []string {
	if p == nil || p.ListModels == nil {
		return nil
	}
	return p.ListModels()
}

// DefaultModel derives the plugin's default model: the plugin-declared
// default, else the configured global default, else the first environment
// override, else the first enumerated model, else "".
func DefaultModel(p *agent.Plugin) string {
	if p != nil {
		if configured := strings.TrimSpace(p.DefaultModel); configured != "" {
			return configured
		}
	}
	if fallbackModel != "" {
		return fallbackModel
	}
	if env := firstEnv(modelEnvVars...); env != "" {
		return env
	}
	if models := ListModels(p); len(models) > 0 {
		return models[0]
	}
	return ""
}

// SelectSessionModel resolves the session's effective model against the
// plugin's default.
func SelectSessionModel(ctx context.Context, st *store.ThreadStore, sessionID string, p *agent.Plugin) (ModelSelection, error) {
	override, err := st.SessionModel(ctx, sessionID)
	if err != nil {
		return ModelSelection{}, err
	}
	eff := Apply(override, DefaultModel(p))
	return ModelSelection{Model: eff.Resolved, DefaultModel: eff.Default}, nil
}

// SetSessionModel stores a model override for the session, or clears it when
// requested is empty. Model ids are accepted opaquely unless the plugin
// provides a validator.
func SetSessionModel(ctx context.Context, st *store.ThreadStore, sessionID string, p *agent.Plugin, requested string) (ModelSelection, error) {
	defaultModel := DefaultModel(p)

	model := strings.TrimSpace(requested)
	if model == "" {
		if err := st.SetSessionModel(ctx, sessionID, ""); err != nil {
			return ModelSelection{}, err
		}
		return ModelSelection{Model: defaultModel, DefaultModel: defaultModel}, nil
	}

	if p != nil && p.ValidateModel != nil {
		if err := p.ValidateModel(model); err != nil {
			return ModelSelection{}, err
		}
	}
	if err := st.SetSessionModel(ctx, sessionID, model); err != nil {
		return ModelSelection{}, err
	}
	return ModelSelection{Model: model, DefaultModel: defaultModel}, nil
}
