package domain

import (
	"time"

	"github.com/lib/pq"
)

// Scope is a permission string attached to an api token.
type Scope string

const (
	ScopeAgentRead  Scope = "agent:read"
	ScopeAgentWrite Scope = "agent:write"
	ScopeCallsRead  Scope = "calls:read"
	ScopeCallsWrite Scope = "calls:write"
	ScopeQARead     Scope = "qa:read"
	ScopeQAWrite    Scope = "qa:write"
)

// AllScopes is the closed set of valid scopes.
var AllScopes = []Scope{
	ScopeAgentRead, ScopeAgentWrite,
	ScopeCallsRead, ScopeCallsWrite,
	ScopeQARead, ScopeQAWrite,
}

// ValidScope reports whether s is a member of the closed scope set.
func ValidScope(s Scope) bool {
	for _, known := range AllScopes {
		if s == known {
			return true
		}
	}
	return false
}

// APIToken is a bearer credential of shape cc_<prefix8>_<secret>.
// Only the SHA-256 hash of the secret is stored; the raw secret is surfaced
// exactly once at creation time.
type APIToken struct {
	ID             string         `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	OrganizationID string         `json:"organization_id" gorm:"type:uuid;not null;index"`
	TokenPrefix    string         `json:"token_prefix" gorm:"type:varchar(16);not null;uniqueIndex"`
	TokenHash      string         `json:"-" gorm:"type:varchar(64);not null"`
	Scopes         pq.StringArray `json:"scopes" gorm:"type:text[]"`
	ExpiresAt      time.Time      `json:"expires_at"`
	Active         bool           `json:"active" gorm:"default:true"`
	LastUsedAt     *time.Time     `json:"last_used_at,omitempty"`
	CreatedAt      time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt      time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName sets the table name for APIToken.
func (APIToken) TableName() string {
	return "api_tokens"
}

// HasScope reports whether the token carries the given scope.
func (t *APIToken) HasScope(s Scope) bool {
	for _, have := range t.Scopes {
		if Scope(have) == s {
			return true
		}
	}
	return false
}

// Expired reports whether the token is past its expiry at the given instant.
func (t *APIToken) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && now.After(t.ExpiresAt)
}

// CreateTokenRequest is the admin request to mint a token for an org.
type CreateTokenRequest struct {
	OrganizationID string  `json:"organization_id" validate:"required"`
	Scopes         []Scope `json:"scopes" validate:"required"`
	TTLDays        int     `json:"ttl_days,omitempty"` // default 90
}

// MintedToken is the one-time response carrying the raw secret.
type MintedToken struct {
	Token     APIToken `json:"token"`
	RawSecret string   `json:"raw_secret"` // full bearer value, shown once
}
