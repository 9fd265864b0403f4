package handler

import (
	"net/http"

	"github.com/centralita-ai/voice-orchestrator/internal/domain"
	"github.com/centralita-ai/voice-orchestrator/internal/repository"
)

// QAHandler serves the quality-assurance scorecard.
type QAHandler struct {
	repo *repository.QARepository
}

// NewQAHandler creates the QA handler.
func NewQAHandler(repo *repository.QARepository) *QAHandler {
	return &QAHandler{repo: repo}
}

func (h *QAHandler) criteria(w http.ResponseWriter, r *http.Request) {
	items, err := h.repo.ListCriteria(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *QAHandler) createEvaluation(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateQAEvaluationRequest
	if !decodeBody(w, r, &req) {
		return
	}
	eval, err := h.repo.CreateEvaluation(r.Context(), identityFrom(r).OrganizationID, &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, eval)
}

func (h *QAHandler) listEvaluations(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultPageSize)
	evals, err := h.repo.ListEvaluations(r.Context(), identityFrom(r).OrganizationID, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, evals)
}
