// Package auth implements bearer-token authentication for the client API
// and shared-secret authentication for the admin API.
//
// Bearer tokens have the shape cc_<prefix8>_<secret>. The prefix is stored
// in clear for O(1) lookup; only the SHA-256 digest of the full token is
// stored. Validation compares digests in constant time.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/centralita-ai/voice-orchestrator/internal/domain"
	"github.com/centralita-ai/voice-orchestrator/internal/fault"
	"github.com/centralita-ai/voice-orchestrator/internal/repository"
	"github.com/centralita-ai/voice-orchestrator/pkg/logger"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

const (
	tokenPrefixLen  = 8
	tokenSecretLen  = 32 // hex chars
	defaultTTL      = 90 * 24 * time.Hour
	bearerScheme    = "Bearer "
	tokenFixedStart = "cc_"
)

// Identity is the resolved caller of an authenticated request.
type Identity struct {
	TokenID        string
	TokenPrefix    string
	OrganizationID string
	Scopes         []domain.Scope
}

// HasScope reports whether the identity carries the given scope.
func (id *Identity) HasScope(s domain.Scope) bool {
	for _, have := range id.Scopes {
		if have == s {
			return true
		}
	}
	return false
}

// Service validates bearer tokens against the token repository and mints
// new ones for the admin API.
type Service struct {
	tokens *repository.TokenRepository
	orgs   *repository.OrganizationRepository
}

// NewService creates an auth service.
func NewService(tokens *repository.TokenRepository, orgs *repository.OrganizationRepository) *Service {
	return &Service{tokens: tokens, orgs: orgs}
}

// Mint creates a new API token for an organization. The returned MintedToken
// carries the raw secret exactly once; only its hash is persisted.
func (s *Service) Mint(ctx context.Context, req *domain.CreateTokenRequest) (*domain.MintedToken, error) {
	if req.OrganizationID == "" {
		return nil, fault.New(fault.KindValidation, "organization_id is required")
	}
	if len(req.Scopes) == 0 {
		return nil, fault.New(fault.KindValidation, "at least one scope is required")
	}
	for _, sc := range req.Scopes {
		if !domain.ValidScope(sc) {
			return nil, fault.Newf(fault.KindValidation, "unknown scope %q", sc)
		}
	}
	if _, err := s.orgs.GetByID(ctx, req.OrganizationID); err != nil {
		return nil, err
	}

	raw, prefix, hash, err := generate()
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	ttl := defaultTTL
	if req.TTLDays > 0 {
		ttl = time.Duration(req.TTLDays) * 24 * time.Hour
	}

	scopes := make(pq.StringArray, 0, len(req.Scopes))
	for _, sc := range req.Scopes {
		scopes = append(scopes, string(sc))
	}

	token := &domain.APIToken{
		ID:             uuid.New().String(),
		OrganizationID: req.OrganizationID,
		TokenPrefix:    prefix,
		TokenHash:      hash,
		Scopes:         scopes,
		ExpiresAt:      time.Now().Add(ttl),
		Active:         true,
	}
	if err := s.tokens.Create(ctx, token); err != nil {
		return nil, err
	}

	return &domain.MintedToken{Token: *token, RawSecret: raw}, nil
}

// Rotate replaces an active token with a fresh one in a single transaction.
// The old secret stops validating at the instant Rotate returns success.
func (s *Service) Rotate(ctx context.Context, orgID, tokenID string) (*domain.MintedToken, error) {
	old, err := s.tokens.GetByID(ctx, orgID, tokenID)
	if err != nil {
		return nil, err
	}

	raw, prefix, hash, err := generate()
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	replacement := &domain.APIToken{
		ID:             uuid.New().String(),
		OrganizationID: old.OrganizationID,
		TokenPrefix:    prefix,
		TokenHash:      hash,
		Scopes:         old.Scopes,
		ExpiresAt:      time.Now().Add(defaultTTL),
		Active:         true,
	}
	if err := s.tokens.Rotate(ctx, orgID, tokenID, replacement); err != nil {
		return nil, err
	}

	return &domain.MintedToken{Token: *replacement, RawSecret: raw}, nil
}

// RotateByID rotates a token addressed by id alone. Admin callers are
// not scoped to a tenant, so the owning organization is resolved first.
func (s *Service) RotateByID(ctx context.Context, tokenID string) (*domain.MintedToken, error) {
	orgID, err := s.tokens.OwnerOf(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	return s.Rotate(ctx, orgID, tokenID)
}

// Validate resolves an Authorization header value into an Identity.
// Missing, malformed, expired or inactive tokens return an auth fault;
// nothing about other tenants' tokens leaks through the error.
func (s *Service) Validate(ctx context.Context, authorization string) (*Identity, error) {
	if !strings.HasPrefix(authorization, bearerScheme) {
		return nil, fault.New(fault.KindAuth, "missing bearer token")
	}
	raw := strings.TrimPrefix(authorization, bearerScheme)

	prefix, err := splitPrefix(raw)
	if err != nil {
		return nil, err
	}

	token, err := s.tokens.GetByPrefix(ctx, prefix)
	if err != nil {
		if fault.Is(err, fault.KindNotFound) {
			return nil, fault.New(fault.KindAuth, "invalid token")
		}
		return nil, err
	}

	sum := sha256.Sum256([]byte(raw))
	want, err := hex.DecodeString(token.TokenHash)
	if err != nil || subtle.ConstantTimeCompare(sum[:], want) != 1 {
		return nil, fault.New(fault.KindAuth, "invalid token")
	}

	if !token.Active {
		return nil, fault.New(fault.KindAuth, "token revoked")
	}
	if token.Expired(time.Now()) {
		return nil, fault.New(fault.KindAuth, "token expired")
	}

	org, err := s.orgs.GetByID(ctx, token.OrganizationID)
	if err != nil || !org.Active {
		return nil, fault.New(fault.KindAuth, "organization inactive")
	}

	if err := s.tokens.TouchLastUsed(ctx, token.ID, time.Now()); err != nil {
		logger.Base().Debug("failed to touch token last_used_at", zap.Error(err))
	}

	scopes := make([]domain.Scope, 0, len(token.Scopes))
	for _, sc := range token.Scopes {
		scopes = append(scopes, domain.Scope(sc))
	}
	return &Identity{
		TokenID:        token.ID,
		TokenPrefix:    token.TokenPrefix,
		OrganizationID: token.OrganizationID,
		Scopes:         scopes,
	}, nil
}

// generate returns (raw bearer value, prefix, hex hash of raw).
func generate() (raw, prefix, hash string, err error) {
	buf := make([]byte, tokenPrefixLen/2+tokenSecretLen/2)
	if _, err = rand.Read(buf); err != nil {
		return "", "", "", err
	}
	hexed := hex.EncodeToString(buf)
	prefix = hexed[:tokenPrefixLen]
	secret := hexed[tokenPrefixLen:]

	raw = fmt.Sprintf("%s%s_%s", tokenFixedStart, prefix, secret)
	sum := sha256.Sum256([]byte(raw))
	return raw, prefix, hex.EncodeToString(sum[:]), nil
}

// splitPrefix extracts the searchable prefix from a raw bearer value of
// shape cc_<prefix8>_<secret>.
func splitPrefix(raw string) (string, error) {
	if !strings.HasPrefix(raw, tokenFixedStart) {
		return "", fault.New(fault.KindAuth, "malformed token")
	}
	rest := strings.TrimPrefix(raw, tokenFixedStart)
	parts := strings.SplitN(rest, "_", 2)
	if len(parts) != 2 || len(parts[0]) != tokenPrefixLen || parts[1] == "" {
		return "", fault.New(fault.KindAuth, "malformed token")
	}
	return parts[0], nil
}
