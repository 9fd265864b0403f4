package handler

import (
	"encoding/json"
	"net/http"

	"github.com/centralita-ai/voice-orchestrator/internal/fault"
	"github.com/centralita-ai/voice-orchestrator/pkg/logger"
	"go.uber.org/zap"
)

// errorBody is the uniform error envelope of the API.
type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Base().Warn("failed to encode response", zap.Error(err))
	}
}

// writeError maps a fault kind to its HTTP status. Unclassified errors
// become 500 without leaking internals to the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := fault.KindOf(err)
	status := kind.HTTPStatus()
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		logger.Base().Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		msg = "internal error"
	}
	writeJSON(w, status, errorBody{Error: msg, Kind: kind.String()})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, r, fault.Wrap(fault.KindValidation, "invalid request body", err))
		return false
	}
	return true
}
