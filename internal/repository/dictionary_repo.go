package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/centralita-ai/voice-orchestrator/internal/domain"
	"github.com/google/uuid"
	pgvector "github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

// DictionaryRepository handles the learned correction dictionary and the
// critical-word lists. Tenant entries shadow the global seed (empty org id)
// on conflicting misheard forms.
type DictionaryRepository struct {
	db *gorm.DB
}

// NewDictionaryRepository creates a new dictionary repository.
func NewDictionaryRepository(db *gorm.DB) *DictionaryRepository {
	return &DictionaryRepository{db: db}
}

// ListForOrg returns the tenant's entries plus the global seed list.
func (r *DictionaryRepository) ListForOrg(ctx context.Context, orgID string) ([]*domain.CorrectionEntry, error) {
	var entries []*domain.CorrectionEntry
	if err := r.db.WithContext(ctx).
		Where("organization_id = ? OR organization_id = ''", orgID).
		Order("organization_id DESC"). // tenant rows first so they shadow the seed
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to list correction entries: %w", err)
	}
	return entries, nil
}

// Learn upserts one misheard → canonical mapping for a tenant, optionally
// with its embedding for the vector stage.
func (r *DictionaryRepository) Learn(ctx context.Context, orgID, misheard, canonical string, embedding []float32) (*domain.CorrectionEntry, error) {
	misheard = strings.ToLower(strings.TrimSpace(misheard))
	canonical = strings.TrimSpace(canonical)
	if misheard == "" || canonical == "" {
		return nil, fmt.Errorf("misheard and canonical forms are required")
	}

	entry := &domain.CorrectionEntry{}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("organization_id = ? AND misheard = ?", orgID, misheard).First(entry)
		if res.Error == nil {
			updates := map[string]interface{}{"canonical": canonical, "updated_at": time.Now()}
			if len(embedding) > 0 {
				updates["embedding"] = pgvector.NewVector(embedding)
			}
			if err := tx.Model(entry).Updates(updates).Error; err != nil {
				return fmt.Errorf("failed to update correction entry: %w", err)
			}
			entry.Canonical = canonical
			return nil
		}
		if res.Error != gorm.ErrRecordNotFound {
			return fmt.Errorf("failed to look up correction entry: %w", res.Error)
		}

		*entry = domain.CorrectionEntry{
			ID:             uuid.New().String(),
			OrganizationID: orgID,
			Misheard:       misheard,
			Canonical:      canonical,
		}
		if len(embedding) > 0 {
			entry.Embedding = pgvector.NewVector(embedding)
		}
		if err := tx.Create(entry).Error; err != nil {
			return fmt.Errorf("failed to create correction entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Unlearn removes a tenant's mapping for a misheard form.
func (r *DictionaryRepository) Unlearn(ctx context.Context, orgID, misheard string) error {
	misheard = strings.ToLower(strings.TrimSpace(misheard))
	if err := r.db.WithContext(ctx).
		Where("organization_id = ? AND misheard = ?", orgID, misheard).
		Delete(&domain.CorrectionEntry{}).Error; err != nil {
		return fmt.Errorf("failed to delete correction entry: %w", err)
	}
	return nil
}

// NearestNeighbour finds the closest entry by cosine distance over the
// tenant's entries plus the seed. Entries farther than maxDistance are not
// returned.
func (r *DictionaryRepository) NearestNeighbour(ctx context.Context, orgID string, embedding []float32, maxDistance float64) (*domain.CorrectionEntry, float64, error) {
	vec := pgvector.NewVector(embedding)

	var result struct {
		domain.CorrectionEntry
		Distance float64
	}
	err := r.db.WithContext(ctx).Raw(`
		SELECT *, embedding <=> ? AS distance
		FROM correction_entries
		WHERE (organization_id = ? OR organization_id = '') AND embedding IS NOT NULL
		ORDER BY embedding <=> ?
		LIMIT 1`, vec, orgID, vec).Scan(&result).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to run nearest-neighbour query: %w", err)
	}
	if result.ID == "" || result.Distance > maxDistance {
		return nil, 0, nil
	}
	return &result.CorrectionEntry, result.Distance, nil
}

// BumpHitCount increments the usage counter of an entry. Best-effort.
func (r *DictionaryRepository) BumpHitCount(ctx context.Context, id string) {
	if r == nil || r.db == nil {
		return
	}
	r.db.WithContext(ctx).Model(&domain.CorrectionEntry{}).
		Where("id = ?", id).
		UpdateColumn("hit_count", gorm.Expr("hit_count + 1"))
}

// CriticalWords returns the effective word list for a category: the
// tenant's override when present, else the global default.
func (r *DictionaryRepository) CriticalWords(ctx context.Context, orgID string, category domain.CriticalCategory) ([]string, error) {
	var lists []*domain.CriticalWordList
	if err := r.db.WithContext(ctx).
		Where("(organization_id = ? OR organization_id = '') AND category = ?", orgID, category).
		Order("organization_id DESC").
		Find(&lists).Error; err != nil {
		return nil, fmt.Errorf("failed to load critical word list: %w", err)
	}
	if len(lists) == 0 {
		return nil, nil
	}
	// First row is the tenant override when one exists.
	raw, ok := lists[0].Words["words"].([]interface{})
	if !ok {
		return nil, nil
	}
	words := make([]string, 0, len(raw))
	for _, w := range raw {
		if s, ok := w.(string); ok {
			words = append(words, strings.ToLower(s))
		}
	}
	return words, nil
}
