package handler

import (
	"net/http"

	"github.com/centralita-ai/voice-orchestrator/internal/auth"
	"github.com/centralita-ai/voice-orchestrator/internal/domain"
	"github.com/centralita-ai/voice-orchestrator/internal/repository"
	"github.com/gorilla/mux"
)

// AdminHandler serves the platform-operator API: organization lifecycle
// and token minting. It sits behind the admin key, not bearer tokens.
type AdminHandler struct {
	orgs *repository.OrganizationRepository
	auth *auth.Service
}

// NewAdminHandler creates the admin handler.
func NewAdminHandler(orgs *repository.OrganizationRepository, authSvc *auth.Service) *AdminHandler {
	return &AdminHandler{orgs: orgs, auth: authSvc}
}

func (h *AdminHandler) createOrganization(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateOrganizationRequest
	if !decodeBody(w, r, &req) {
		return
	}
	org, err := h.orgs.Create(r.Context(), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, org)
}

func (h *AdminHandler) getOrganization(w http.ResponseWriter, r *http.Request) {
	org, err := h.orgs.GetByID(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, org)
}

func (h *AdminHandler) updateOrganization(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateOrganizationRequest
	if !decodeBody(w, r, &req) {
		return
	}
	org, err := h.orgs.Update(r.Context(), mux.Vars(r)["id"], &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, org)
}

func (h *AdminHandler) mintToken(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateTokenRequest
	if !decodeBody(w, r, &req) {
		return
	}
	minted, err := h.auth.Mint(r.Context(), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, minted)
}

func (h *AdminHandler) rotateToken(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	minted, err := h.auth.Rotate(r.Context(), vars["org_id"], vars["token_id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, minted)
}

func (h *AdminHandler) rotateTokenByID(w http.ResponseWriter, r *http.Request) {
	minted, err := h.auth.RotateByID(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, minted)
}
