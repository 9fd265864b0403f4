package handler

import (
	"net/http"
	"strconv"

	"github.com/centralita-ai/voice-orchestrator/internal/services/call"
	"github.com/gorilla/mux"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// CallHandler serves call queries and the force-end operation.
type CallHandler struct {
	calls *call.Service
}

// NewCallHandler creates the call handler.
func NewCallHandler(calls *call.Service) *CallHandler {
	return &CallHandler{calls: calls}
}

func (h *CallHandler) list(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultPageSize)
	if limit > maxPageSize {
		limit = maxPageSize
	}
	offset := queryInt(r, "offset", 0)

	listed, err := h.calls.List(r.Context(), identityFrom(r).OrganizationID, limit, offset)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listed)
}

func (h *CallHandler) get(w http.ResponseWriter, r *http.Request) {
	found, err := h.calls.Get(r.Context(), identityFrom(r).OrganizationID, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, found)
}

func (h *CallHandler) turns(w http.ResponseWriter, r *http.Request) {
	turns, err := h.calls.Turns(r.Context(), identityFrom(r).OrganizationID, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, turns)
}

func (h *CallHandler) events(w http.ResponseWriter, r *http.Request) {
	events, err := h.calls.Events(r.Context(), identityFrom(r).OrganizationID, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *CallHandler) end(w http.ResponseWriter, r *http.Request) {
	if err := h.calls.End(r.Context(), identityFrom(r).OrganizationID, mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "ending"})
}

func (h *CallHandler) summary(w http.ResponseWriter, r *http.Request) {
	days := queryInt(r, "days", 7)
	sum, err := h.calls.Summary(r.Context(), identityFrom(r).OrganizationID, days)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return def
	}
	return v
}
