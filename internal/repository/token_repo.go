package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/centralita-ai/voice-orchestrator/internal/domain"
	"github.com/centralita-ai/voice-orchestrator/internal/fault"
	"gorm.io/gorm"
)

// TokenRepository handles database operations for api tokens. Lookups are
// by prefix (indexed, O(1)); the secret comparison happens in the auth
// layer, never in SQL.
type TokenRepository struct {
	db *gorm.DB
}

// NewTokenRepository creates a new token repository.
func NewTokenRepository(db *gorm.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// Create persists a freshly minted token.
func (r *TokenRepository) Create(ctx context.Context, token *domain.APIToken) error {
	if err := r.db.WithContext(ctx).Create(token).Error; err != nil {
		return fmt.Errorf("failed to create api token: %w", err)
	}
	return nil
}

// GetByPrefix retrieves a token by its searchable prefix.
func (r *TokenRepository) GetByPrefix(ctx context.Context, prefix string) (*domain.APIToken, error) {
	var token domain.APIToken
	if err := r.db.WithContext(ctx).Where("token_prefix = ?", prefix).First(&token).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fault.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get api token: %w", err)
	}
	return &token, nil
}

// GetByID retrieves a token by id within an organization.
func (r *TokenRepository) GetByID(ctx context.Context, orgID, id string) (*domain.APIToken, error) {
	var token domain.APIToken
	if err := r.db.WithContext(ctx).Where("id = ? AND organization_id = ?", id, orgID).First(&token).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fault.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get api token: %w", err)
	}
	return &token, nil
}

// OwnerOf resolves the organization a token belongs to.
func (r *TokenRepository) OwnerOf(ctx context.Context, id string) (string, error) {
	var token domain.APIToken
	if err := r.db.WithContext(ctx).Select("organization_id").Where("id = ?", id).First(&token).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", fault.ErrNotFound
		}
		return "", fmt.Errorf("failed to resolve token owner: %w", err)
	}
	return token.OrganizationID, nil
}

// Rotate atomically deactivates the old token and inserts its replacement.
// The old secret stops validating at the instant the transaction commits.
func (r *TokenRepository) Rotate(ctx context.Context, orgID, oldTokenID string, replacement *domain.APIToken) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.APIToken{}).
			Where("id = ? AND organization_id = ? AND active = true", oldTokenID, orgID).
			Updates(map[string]interface{}{"active": false, "updated_at": time.Now()})
		if res.Error != nil {
			return fmt.Errorf("failed to deactivate token: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fault.ErrNotFound
		}
		if err := tx.Create(replacement).Error; err != nil {
			return fmt.Errorf("failed to create replacement token: %w", err)
		}
		return nil
	})
}

// TouchLastUsed stamps the token's last_used_at. Best-effort; failures are
// not surfaced to the request path.
func (r *TokenRepository) TouchLastUsed(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&domain.APIToken{}).
		Where("id = ?", id).
		Update("last_used_at", at).Error
}
