package handler

import "net/http"

// me echoes the identity behind the presented bearer token so integrators
// can verify a credential before wiring anything else. Any valid token may
// call it; no scope is required.
func me(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"organization_id": id.OrganizationID,
		"token_id":        id.TokenID,
		"token_prefix":    id.TokenPrefix,
		"scopes":          id.Scopes,
	})
}
