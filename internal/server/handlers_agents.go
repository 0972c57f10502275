package server

import (
	"net/http"

	"github.com/weftwork/weft/internal/selection"
)

// AgentInfo describes one registered agent.
type AgentInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Default bool   `json:"default"`
}

// ModelInfo describes one model offered by an agent.
type ModelInfo struct {
	ID      string `json:"id"`
	Agent   string `json:"agent"`
	Default bool   `json:"default"`
}

// listAgents handles GET /agents
func (s *Server) listAgents(w http.ResponseWriter, r *http.Request) {
	defaultID := s.registry.DefaultID()

	agents := make([]AgentInfo, 0)
	for _, p := range s.registry.List() {
		agents = append(agents, AgentInfo{
			ID:      p.ID,
			Name:    p.DisplayName(),
			Default: p.ID == defaultID,
		})
	}

	writeJSON(w, http.StatusOK, map[string][]AgentInfo{"agents": agents})
}

// listModels handles GET /models. The optional agent query parameter selects
// which agent's models to list; the default agent otherwise.
func (s *Server) listModels(w http.ResponseWriter, r *http.Request) {
	requested := r.URL.Query().Get("agent")

	sel := selection.DefaultAgentSelection(s.registry)
	if requested != "" {
		resolved, err := selection.ResolveRequestedAgent(s.registry, requested, true)
		if err != nil {
			writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
			return
		}
		sel = resolved
	}

	defaultModel := selection.DefaultModel(sel.Plugin)
	models := make([]ModelInfo, 0)
	for _, id := range selection.ListModels(sel.Plugin) {
		models = append(models, ModelInfo{
			ID:      id,
			Agent:   sel.AgentID,
			Default: id == defaultModel,
		})
	}

	writeJSON(w, http.StatusOK, map[string][]ModelInfo{"models": models})
}
