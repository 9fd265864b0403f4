package handler

import (
	"net/http"

	"github.com/centralita-ai/voice-orchestrator/internal/correction"
)

// DictionaryHandler serves the tenant correction dictionary.
type DictionaryHandler struct {
	dict *correction.Service
}

// NewDictionaryHandler creates the dictionary handler.
func NewDictionaryHandler(dict *correction.Service) *DictionaryHandler {
	return &DictionaryHandler{dict: dict}
}

type learnRequest struct {
	Misheard  string `json:"misheard"`
	Canonical string `json:"canonical"`
}

func (h *DictionaryHandler) learn(w http.ResponseWriter, r *http.Request) {
	var req learnRequest
	if !decodeBody(w, r, &req) {
		return
	}
	entry, err := h.dict.Learn(r.Context(), identityFrom(r).OrganizationID, req.Misheard, req.Canonical)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

type unlearnRequest struct {
	Misheard string `json:"misheard"`
}

func (h *DictionaryHandler) unlearn(w http.ResponseWriter, r *http.Request) {
	var req unlearnRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.dict.Unlearn(r.Context(), identityFrom(r).OrganizationID, req.Misheard); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

func (h *DictionaryHandler) list(w http.ResponseWriter, r *http.Request) {
	entries, err := h.dict.List(r.Context(), identityFrom(r).OrganizationID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
