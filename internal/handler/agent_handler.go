package handler

import (
	"net/http"

	"github.com/centralita-ai/voice-orchestrator/internal/domain"
	"github.com/centralita-ai/voice-orchestrator/internal/services/agent"
	"github.com/gorilla/mux"
)

// AgentHandler serves agent configuration for the client API.
type AgentHandler struct {
	agents *agent.Service
}

// NewAgentHandler creates the agent handler.
func NewAgentHandler(agents *agent.Service) *AgentHandler {
	return &AgentHandler{agents: agents}
}

func (h *AgentHandler) create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateAgentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	created, err := h.agents.Create(r.Context(), identityFrom(r).OrganizationID, &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *AgentHandler) get(w http.ResponseWriter, r *http.Request) {
	found, err := h.agents.Get(r.Context(), identityFrom(r).OrganizationID, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, found)
}

func (h *AgentHandler) list(w http.ResponseWriter, r *http.Request) {
	listed, err := h.agents.List(r.Context(), identityFrom(r).OrganizationID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listed)
}

func (h *AgentHandler) update(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateAgentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	updated, err := h.agents.Update(r.Context(), identityFrom(r).OrganizationID, mux.Vars(r)["id"], &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}
