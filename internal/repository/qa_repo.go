package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/centralita-ai/voice-orchestrator/internal/domain"
	"github.com/centralita-ai/voice-orchestrator/internal/fault"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// QARepository handles the quality-assurance scorecard tables.
type QARepository struct {
	db *gorm.DB
}

// NewQARepository creates a new QA repository.
func NewQARepository(db *gorm.DB) *QARepository {
	return &QARepository{db: db}
}

// ListCriteria returns the (global) scorecard criteria.
func (r *QARepository) ListCriteria(ctx context.Context) ([]*domain.QACriterion, error) {
	var criteria []*domain.QACriterion
	if err := r.db.WithContext(ctx).Order("created_at").Find(&criteria).Error; err != nil {
		return nil, fmt.Errorf("failed to list qa criteria: %w", err)
	}
	return criteria, nil
}

// CreateEvaluation scores a call. The call must belong to the org.
func (r *QARepository) CreateEvaluation(ctx context.Context, orgID string, req *domain.CreateQAEvaluationRequest) (*domain.QAEvaluation, error) {
	if req.CallID == "" {
		return nil, fault.New(fault.KindValidation, "call_id is required")
	}

	var call domain.Call
	if err := r.db.WithContext(ctx).Where("id = ? AND organization_id = ?", req.CallID, orgID).First(&call).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fault.ErrNotFound
		}
		return nil, fmt.Errorf("failed to verify call: %w", err)
	}

	eval := &domain.QAEvaluation{
		ID:             uuid.New().String(),
		OrganizationID: orgID,
		CallID:         req.CallID,
		Evaluator:      req.Evaluator,
		Scores:         req.Scores,
		OverallScore:   req.OverallScore,
		Notes:          req.Notes,
	}
	if err := r.db.WithContext(ctx).Create(eval).Error; err != nil {
		return nil, fmt.Errorf("failed to create qa evaluation: %w", err)
	}
	return eval, nil
}

// ListEvaluations returns the org's evaluations, newest first.
func (r *QARepository) ListEvaluations(ctx context.Context, orgID string, limit int) ([]*domain.QAEvaluation, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var evals []*domain.QAEvaluation
	if err := r.db.WithContext(ctx).
		Where("organization_id = ?", orgID).
		Order("created_at DESC").
		Limit(limit).
		Find(&evals).Error; err != nil {
		return nil, fmt.Errorf("failed to list qa evaluations: %w", err)
	}
	return evals, nil
}
