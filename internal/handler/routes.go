package handler

import (
	"net/http"

	"github.com/centralita-ai/voice-orchestrator/internal/auth"
	"github.com/centralita-ai/voice-orchestrator/internal/correction"
	"github.com/centralita-ai/voice-orchestrator/internal/dispatch"
	"github.com/centralita-ai/voice-orchestrator/internal/domain"
	"github.com/centralita-ai/voice-orchestrator/internal/recording"
	"github.com/centralita-ai/voice-orchestrator/internal/repository"
	"github.com/centralita-ai/voice-orchestrator/internal/services/agent"
	"github.com/centralita-ai/voice-orchestrator/internal/services/call"
	"github.com/gorilla/mux"
)

// Deps carries the services the router is assembled from.
type Deps struct {
	AdminSecret string

	Auth       *auth.Service
	Orgs       *repository.OrganizationRepository
	Webhooks   *repository.WebhookRepository
	QA         *repository.QARepository
	Agents     *agent.Service
	Calls      *call.Service
	Recordings *recording.Service
	Dictionary *correction.Service
	Emitter    *dispatch.Emitter
}

// SetupRoutes builds the full HTTP surface: admin API, client API and the
// bridge websocket endpoint.
func SetupRoutes(d Deps) *mux.Router {
	router := mux.NewRouter()
	router.Use(CORSMiddleware)

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")

	adminH := NewAdminHandler(d.Orgs, d.Auth)
	agentH := NewAgentHandler(d.Agents)
	callH := NewCallHandler(d.Calls)
	recH := NewRecordingHandler(d.Recordings)
	dictH := NewDictionaryHandler(d.Dictionary)
	hookH := NewWebhookHandler(d.Webhooks, d.Emitter)
	qaH := NewQAHandler(d.QA)
	bridgeH := NewBridgeHandler(d.Auth, d.Calls)

	// Platform operator API, behind the shared admin key.
	admin := router.PathPrefix("/api/admin").Subrouter()
	admin.Use(LoggingMiddleware)
	admin.Use(AdminKeyMiddleware(d.AdminSecret))
	admin.HandleFunc("/orgs", adminH.createOrganization).Methods("POST")
	admin.HandleFunc("/orgs/{id}", adminH.getOrganization).Methods("GET")
	admin.HandleFunc("/orgs/{id}", adminH.updateOrganization).Methods("PUT")
	admin.HandleFunc("/tokens", adminH.mintToken).Methods("POST")
	admin.HandleFunc("/tokens/{id}/rotate", adminH.rotateTokenByID).Methods("POST")
	// Long-form aliases kept for older integrations.
	admin.HandleFunc("/organizations", adminH.createOrganization).Methods("POST")
	admin.HandleFunc("/organizations/{id}", adminH.getOrganization).Methods("GET")
	admin.HandleFunc("/organizations/{id}", adminH.updateOrganization).Methods("PUT")
	admin.HandleFunc("/organizations/{org_id}/tokens/{token_id}/rotate", adminH.rotateToken).Methods("POST")

	// Tenant client API, behind bearer tokens.
	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(LoggingMiddleware)
	api.Use(BearerMiddleware(d.Auth))

	api.HandleFunc("/me", me).Methods("GET")

	api.HandleFunc("/agents", RequireScope(domain.ScopeAgentWrite, agentH.create)).Methods("POST")
	api.HandleFunc("/agents", RequireScope(domain.ScopeAgentRead, agentH.list)).Methods("GET")
	api.HandleFunc("/agents/{id}", RequireScope(domain.ScopeAgentRead, agentH.get)).Methods("GET")
	api.HandleFunc("/agents/{id}", RequireScope(domain.ScopeAgentWrite, agentH.update)).Methods("PUT")

	api.HandleFunc("/calls", RequireScope(domain.ScopeCallsRead, callH.list)).Methods("GET")
	api.HandleFunc("/calls/metrics/summary", RequireScope(domain.ScopeCallsRead, callH.summary)).Methods("GET")
	api.HandleFunc("/calls/{id}", RequireScope(domain.ScopeCallsRead, callH.get)).Methods("GET")
	api.HandleFunc("/calls/{id}/turns", RequireScope(domain.ScopeCallsRead, callH.turns)).Methods("GET")
	api.HandleFunc("/calls/{id}/events", RequireScope(domain.ScopeCallsRead, callH.events)).Methods("GET")
	api.HandleFunc("/calls/{id}/end", RequireScope(domain.ScopeCallsWrite, callH.end)).Methods("POST")
	api.HandleFunc("/calls/{id}/recordings", RequireScope(domain.ScopeCallsRead, recH.listByCall)).Methods("GET")

	api.HandleFunc("/metrics/summary", RequireScope(domain.ScopeCallsRead, callH.summary)).Methods("GET")

	api.HandleFunc("/recordings/unprocessed", RequireScope(domain.ScopeCallsRead, recH.listUnprocessed)).Methods("GET")
	api.HandleFunc("/recordings/{id}", RequireScope(domain.ScopeCallsRead, recH.get)).Methods("GET")
	api.HandleFunc("/recordings/{id}/metadata", RequireScope(domain.ScopeCallsRead, recH.metadata)).Methods("GET")
	api.HandleFunc("/recordings/{id}/metadata", RequireScope(domain.ScopeCallsWrite, recH.replaceMetadata)).Methods("PUT")
	api.HandleFunc("/recordings/{id}/audio-url", RequireScope(domain.ScopeCallsRead, recH.audioURL)).Methods("GET")

	api.HandleFunc("/dictionary", RequireScope(domain.ScopeAgentWrite, dictH.learn)).Methods("POST")
	api.HandleFunc("/dictionary", RequireScope(domain.ScopeAgentRead, dictH.list)).Methods("GET")
	api.HandleFunc("/dictionary", RequireScope(domain.ScopeAgentWrite, dictH.unlearn)).Methods("DELETE")

	api.HandleFunc("/webhooks", RequireScope(domain.ScopeAgentWrite, hookH.create)).Methods("POST")
	api.HandleFunc("/webhooks", RequireScope(domain.ScopeAgentRead, hookH.list)).Methods("GET")
	api.HandleFunc("/webhooks/test/{id}", RequireScope(domain.ScopeAgentWrite, hookH.test)).Methods("POST")
	api.HandleFunc("/webhooks/{id}", RequireScope(domain.ScopeAgentWrite, hookH.delete)).Methods("DELETE")
	api.HandleFunc("/webhooks/{id}/toggle", RequireScope(domain.ScopeAgentWrite, hookH.toggle)).Methods("PATCH", "POST")
	api.HandleFunc("/webhooks/{id}/test", RequireScope(domain.ScopeAgentWrite, hookH.test)).Methods("POST")
	api.HandleFunc("/webhooks/{id}/deliveries", RequireScope(domain.ScopeAgentRead, hookH.deliveries)).Methods("GET")

	api.HandleFunc("/qa/criteria", RequireScope(domain.ScopeQARead, qaH.criteria)).Methods("GET")
	api.HandleFunc("/qa/evaluations", RequireScope(domain.ScopeQAWrite, qaH.createEvaluation)).Methods("POST")
	api.HandleFunc("/qa/evaluations", RequireScope(domain.ScopeQARead, qaH.listEvaluations)).Methods("GET")

	// Bridge websocket; authenticates inside the handler, before upgrade.
	router.HandleFunc("/bridge/stream", bridgeH.Stream).Methods("GET")

	return router
}
