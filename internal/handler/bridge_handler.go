package handler

import (
	"net/http"

	"github.com/centralita-ai/voice-orchestrator/internal/auth"
	"github.com/centralita-ai/voice-orchestrator/internal/bridge"
	"github.com/centralita-ai/voice-orchestrator/internal/domain"
	"github.com/centralita-ai/voice-orchestrator/internal/services/call"
	"github.com/centralita-ai/voice-orchestrator/pkg/logger"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  16 * 1024,
	WriteBufferSize: 16 * 1024,
	// bridges are server-to-server; browsers never connect here
	CheckOrigin: func(r *http.Request) bool { return true },
}

// BridgeHandler accepts telephony bridge websocket streams and runs the
// call pipeline on them. The bearer token authenticates before upgrade;
// the handshake's org must match the token's.
type BridgeHandler struct {
	auth  *auth.Service
	calls *call.Service
}

// NewBridgeHandler creates the bridge handler.
func NewBridgeHandler(authSvc *auth.Service, calls *call.Service) *BridgeHandler {
	return &BridgeHandler{auth: authSvc, calls: calls}
}

// Stream is the websocket entry point for one call.
func (h *BridgeHandler) Stream(w http.ResponseWriter, r *http.Request) {
	authorization := r.Header.Get("Authorization")
	if authorization == "" {
		// some bridge stacks cannot set headers on websocket dials
		if tok := r.URL.Query().Get("token"); tok != "" {
			authorization = "Bearer " + tok
		}
	}
	identity, err := h.auth.Validate(r.Context(), authorization)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !identity.HasScope(domain.ScopeCallsWrite) {
		writeJSON(w, http.StatusForbidden, errorBody{Error: "scope calls:write required", Kind: "forbidden"})
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Base().Warn("bridge upgrade failed",
			zap.String("remote_addr", r.RemoteAddr), zap.Error(err))
		return
	}

	conn, err := bridge.Accept(ws)
	if err != nil {
		logger.Base().Warn("bridge handshake rejected",
			zap.String("remote_addr", r.RemoteAddr), zap.Error(err))
		_ = ws.Close()
		return
	}
	if conn.Handshake().OrgID != identity.OrganizationID {
		logger.Base().Warn("bridge handshake org does not match token",
			zap.String("handshake_org", conn.Handshake().OrgID),
			zap.String("token_org", identity.OrganizationID))
		_ = conn.Close()
		return
	}

	h.calls.Run(conn)
}
