package handler

import (
	"net/http"

	"github.com/centralita-ai/voice-orchestrator/internal/dispatch"
	"github.com/centralita-ai/voice-orchestrator/internal/domain"
	"github.com/centralita-ai/voice-orchestrator/internal/repository"
	"github.com/gorilla/mux"
)

// WebhookHandler manages webhook subscriptions and their delivery log.
type WebhookHandler struct {
	repo    *repository.WebhookRepository
	emitter *dispatch.Emitter
}

// NewWebhookHandler creates the webhook handler.
func NewWebhookHandler(repo *repository.WebhookRepository, emitter *dispatch.Emitter) *WebhookHandler {
	return &WebhookHandler{repo: repo, emitter: emitter}
}

func (h *WebhookHandler) create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateWebhookRequest
	if !decodeBody(w, r, &req) {
		return
	}
	sub, err := h.repo.Create(r.Context(), identityFrom(r).OrganizationID, &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

func (h *WebhookHandler) list(w http.ResponseWriter, r *http.Request) {
	subs, err := h.repo.List(r.Context(), identityFrom(r).OrganizationID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, subs)
}

func (h *WebhookHandler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.repo.Delete(r.Context(), identityFrom(r).OrganizationID, mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *WebhookHandler) toggle(w http.ResponseWriter, r *http.Request) {
	sub, err := h.repo.Toggle(r.Context(), identityFrom(r).OrganizationID, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

// test fires a synthetic event at the subscription synchronously and
// reports the upstream status, so operators can verify their endpoint
// and signature handling.
func (h *WebhookHandler) test(w http.ResponseWriter, r *http.Request) {
	sub, err := h.repo.GetByID(r.Context(), identityFrom(r).OrganizationID, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	status, err := h.emitter.TestFire(r.Context(), sub)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"delivered": status >= 200 && status < 300, "upstream_status": status})
}

func (h *WebhookHandler) deliveries(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultPageSize)
	log, err := h.repo.ListDeliveries(r.Context(), identityFrom(r).OrganizationID, mux.Vars(r)["id"], limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, log)
}
