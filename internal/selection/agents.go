package selection

import (
	"context"
	"strings"

	"github.com/weftwork/weft/internal/agent"
	"github.com/weftwork/weft/internal/store"
	"github.com/weftwork/weft/pkg/types"
)

// AgentSelection is the resolved agent for a thread.
type AgentSelection struct {
	AgentID        string
	Plugin         *agent.Plugin
	DefaultAgentID string
}

// IsDefault reports whether the default agent was selected.
func (s AgentSelection) IsDefault() bool { return s.AgentID == s.DefaultAgentID }

// Info converts the selection to its client-facing form.
func (s AgentSelection) Info() types.AgentSelectionInfo {
	return types.AgentSelectionInfo{
		Agent:        s.AgentID,
		AgentName:    s.Plugin.DisplayName(),
		DefaultAgent: s.DefaultAgentID,
		IsDefault:    s.IsDefault(),
	}
}

// DefaultAgentSelection selects the registry's default agent.
func DefaultAgentSelection(reg *agent.Registry) AgentSelection {
	defaultID := reg.DefaultID()
	plugin, _ := reg.Get(defaultID)
	return AgentSelection{
		AgentID:        defaultID,
		Plugin:         plugin,
		DefaultAgentID: defaultID,
	}
}

// SelectAgentForThread resolves the thread's effective agent. A stored
// override must match a registered id exactly; a stale override (an agent
// that no longer exists) silently falls back to the default rather than
// failing thread state retrieval.
func SelectAgentForThread(ctx context.Context, reg *agent.Registry, st *store.ThreadStore, sessionID, threadID string) (AgentSelection, error) {
	settings, err := st.ThreadSettings(ctx, sessionID, threadID)
	if err != nil {
		return AgentSelection{}, err
	}

	if settings.Agent != "" {
		if resolved := reg.Resolve(settings.Agent, false); resolved != "" {
			plugin, _ := reg.Get(resolved)
			return AgentSelection{
				AgentID:        resolved,
				Plugin:         plugin,
				DefaultAgentID: reg.DefaultID(),
			}, nil
		}
	}
	return DefaultAgentSelection(reg), nil
}

// ResolveRequestedAgent resolves a caller-supplied agent string, with fuzzy
// matching when asked for. Unknown or ambiguous requests fail with a
// ValidationError listing the registered agents.
func ResolveRequestedAgent(reg *agent.Registry, requested string, fuzzy bool) (AgentSelection, error) {
	resolved := reg.Resolve(requested, fuzzy)
	if resolved == "" {
		return AgentSelection{}, agent.NewUnknownAgentError(requested, reg.Names())
	}
	plugin, _ := reg.Get(resolved)
	return AgentSelection{
		AgentID:        resolved,
		Plugin:         plugin,
		DefaultAgentID: reg.DefaultID(),
	}, nil
}

// SetThreadAgent stores an agent override for the thread, or resets to the
// default when requested is empty. The request goes through fuzzy
// resolution: this is the interactive "set agent" path.
func SetThreadAgent(ctx context.Context, reg *agent.Registry, st *store.ThreadStore, sessionID, threadID, requested string) (AgentSelection, error) {
	settings, err := st.ThreadSettings(ctx, sessionID, threadID)
	if err != nil {
		return AgentSelection{}, err
	}

	if strings.TrimSpace(requested) == "" {
		settings.Agent = ""
		if err := st.SetThreadSettings(ctx, sessionID, threadID, settings); err != nil {
			return AgentSelection{}, err
		}
		return DefaultAgentSelection(reg), nil
	}

	sel, err := ResolveRequestedAgent(reg, requested, true)
	if err != nil {
		return AgentSelection{}, err
	}
	settings.Agent = sel.AgentID
	if err := st.SetThreadSettings(ctx, sessionID, threadID, settings); err != nil {
		return AgentSelection{}, err
	}
	return sel, nil
}
