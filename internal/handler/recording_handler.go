package handler

import (
	"net/http"

	"github.com/centralita-ai/voice-orchestrator/internal/domain"
	"github.com/centralita-ai/voice-orchestrator/internal/recording"
	"github.com/gorilla/mux"
)

// RecordingHandler serves recording artifacts and the worker contract the
// offline enrichment pipeline consumes: unprocessed listing, metadata
// read and metadata replace.
type RecordingHandler struct {
	recordings *recording.Service
}

// NewRecordingHandler creates the recording handler.
func NewRecordingHandler(recordings *recording.Service) *RecordingHandler {
	return &RecordingHandler{recordings: recordings}
}

func (h *RecordingHandler) get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.recordings.Get(r.Context(), identityFrom(r).OrganizationID, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *RecordingHandler) listByCall(w http.ResponseWriter, r *http.Request) {
	recs, err := h.recordings.ListByCall(r.Context(), identityFrom(r).OrganizationID, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (h *RecordingHandler) listUnprocessed(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultPageSize)
	recs, err := h.recordings.ListUnprocessed(r.Context(), identityFrom(r).OrganizationID, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (h *RecordingHandler) metadata(w http.ResponseWriter, r *http.Request) {
	meta, err := h.recordings.Metadata(r.Context(), identityFrom(r).OrganizationID, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

func (h *RecordingHandler) replaceMetadata(w http.ResponseWriter, r *http.Request) {
	var meta domain.Metadata
	if !decodeBody(w, r, &meta) {
		return
	}
	if err := h.recordings.ReplaceMetadata(r.Context(), identityFrom(r).OrganizationID, mux.Vars(r)["id"], &meta); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "replaced"})
}

func (h *RecordingHandler) audioURL(w http.ResponseWriter, r *http.Request) {
	url, err := h.recordings.AudioURL(r.Context(), identityFrom(r).OrganizationID, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}
