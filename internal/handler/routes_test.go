package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/centralita-ai/voice-orchestrator/internal/auth"
	"github.com/centralita-ai/voice-orchestrator/internal/domain"
)

func TestRouterMatchesPublishedPaths(t *testing.T) {
	router := SetupRoutes(Deps{})

	cases := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/me"},
		{http.MethodGet, "/api/v1/calls/metrics/summary"},
		{http.MethodPost, "/api/admin/orgs"},
		{http.MethodGet, "/api/admin/orgs/org-1"},
		{http.MethodPost, "/api/admin/tokens/tok-1/rotate"},
		{http.MethodPatch, "/api/v1/webhooks/wh-1/toggle"},
		{http.MethodPost, "/api/v1/webhooks/test/wh-1"},
		// long-form aliases
		{http.MethodPost, "/api/admin/organizations"},
		{http.MethodPost, "/api/admin/organizations/org-1/tokens/tok-1/rotate"},
		{http.MethodGet, "/api/v1/metrics/summary"},
		{http.MethodPost, "/api/v1/webhooks/wh-1/toggle"},
		{http.MethodPost, "/api/v1/webhooks/wh-1/test"},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		var m mux.RouteMatch
		assert.True(t, router.Match(req, &m), "%s %s", tc.method, tc.path)
	}
}

func TestMeEchoesAuthenticatedIdentity(t *testing.T) {
	id := &auth.Identity{
		TokenID:        "tok-1",
		TokenPrefix:    "01234567",
		OrganizationID: "org-1",
		Scopes:         []domain.Scope{domain.ScopeAgentRead, domain.ScopeCallsRead},
	}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req = req.WithContext(context.WithValue(req.Context(), identityKey, id))
	rr := httptest.NewRecorder()

	me(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var body struct {
		OrganizationID string         `json:"organization_id"`
		TokenID        string         `json:"token_id"`
		TokenPrefix    string         `json:"token_prefix"`
		Scopes         []domain.Scope `json:"scopes"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "org-1", body.OrganizationID)
	assert.Equal(t, "tok-1", body.TokenID)
	assert.Equal(t, "01234567", body.TokenPrefix)
	assert.Equal(t, []domain.Scope{domain.ScopeAgentRead, domain.ScopeCallsRead}, body.Scopes)
}
