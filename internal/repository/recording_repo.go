package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/centralita-ai/voice-orchestrator/internal/domain"
	"github.com/centralita-ai/voice-orchestrator/internal/fault"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RecordingRepository handles the recording index rows. The audio blob and
// canonical metadata document live in the recording store; this table is
// the listing surface and the processed-flag queue the batch worker drains.
type RecordingRepository struct {
	db *gorm.DB
}

// NewRecordingRepository creates a new recording repository.
func NewRecordingRepository(db *gorm.DB) *RecordingRepository {
	return &RecordingRepository{db: db}
}

// Create inserts a recording row. Called only after both the audio blob
// and the metadata document are readable.
func (r *RecordingRepository) Create(ctx context.Context, rec *domain.Recording) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("failed to create recording: %w", err)
	}
	return nil
}

// GetByID retrieves a recording within an organization.
func (r *RecordingRepository) GetByID(ctx context.Context, orgID, id string) (*domain.Recording, error) {
	var rec domain.Recording
	if err := r.db.WithContext(ctx).Where("id = ? AND organization_id = ?", id, orgID).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fault.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get recording: %w", err)
	}
	return &rec, nil
}

// ListByCall returns the recordings of one call.
func (r *RecordingRepository) ListByCall(ctx context.Context, orgID, callID string) ([]*domain.Recording, error) {
	var recs []*domain.Recording
	if err := r.db.WithContext(ctx).
		Where("call_id = ? AND organization_id = ?", callID, orgID).
		Order("created_at").
		Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to list recordings: %w", err)
	}
	return recs, nil
}

// ListUnprocessed returns up to limit recordings awaiting offline
// enrichment, oldest first. This is the batch worker's poll surface.
func (r *RecordingRepository) ListUnprocessed(ctx context.Context, orgID string, limit int) ([]*domain.Recording, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var recs []*domain.Recording
	if err := r.db.WithContext(ctx).
		Where("organization_id = ? AND processed = false", orgID).
		Order("created_at").
		Limit(limit).
		Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to list unprocessed recordings: %w", err)
	}
	return recs, nil
}

// MarkProcessed flips the processed flag after the worker replaced the
// metadata document.
func (r *RecordingRepository) MarkProcessed(ctx context.Context, orgID, id string, mode domain.ProcessingMode) error {
	res := r.db.WithContext(ctx).Model(&domain.Recording{}).
		Where("id = ? AND organization_id = ?", id, orgID).
		Updates(map[string]interface{}{
			"processed":       true,
			"processing_mode": mode,
			"updated_at":      time.Now(),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to mark recording processed: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fault.ErrNotFound
	}
	return nil
}
