package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/xela07ax/shieldforce/internal/domain"
)

type AgentService interface {
	ClearQuarantine(ctx context.Context, agentID string) error
	QuarantinedAgents(ctx context.Context) ([]domain.Agent, error)
}

type AgentHandler struct {
	service AgentService
}

func NewAgentHandler(s AgentService) *AgentHandler {
	return &AgentHandler{service: s}
}

// ListQuarantined отдает агентов, находящихся в локауте.
func (h *AgentHandler) ListQuarantined(w http.ResponseWriter, r *http.Request) {
	agents, err := h.service.QuarantinedAgents(r.Context())
	if err != nil {
		http.Error(w, "Failed to fetch agents", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"agents": agents})
}

// ClearQuarantine — административное снятие карантина (единственный путь
// QUARANTINED -> ACTIVE во всей системе).
func (h *AgentHandler) ClearQuarantine(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "id")
	if agentID == "" {
		http.Error(w, "agent id is required", http.StatusBadRequest)
		return
	}

	if err := h.service.ClearQuarantine(r.Context(), agentID); err != nil {
		http.Error(w, "Failed to clear quarantine", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"agent_id": agentID, "status": "active"})
}
