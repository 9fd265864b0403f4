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

// OrganizationRepository handles database operations for organizations.
// Organizations are the tenant roots and are managed by admin endpoints
// only; this is the single repository that is not org-scoped.
type OrganizationRepository struct {
	db *gorm.DB
}

// NewOrganizationRepository creates a new organization repository.
func NewOrganizationRepository(db *gorm.DB) *OrganizationRepository {
	return &OrganizationRepository{db: db}
}

// Create creates a new organization.
func (r *OrganizationRepository) Create(ctx context.Context, req *domain.CreateOrganizationRequest) (*domain.Organization, error) {
	if req.Name == "" {
		return nil, fault.New(fault.KindValidation, "organization name is required")
	}

	plan := req.Plan
	if plan == "" {
		plan = domain.PlanBasic
	}
	if !plan.Valid() {
		return nil, fault.Newf(fault.KindValidation, "unknown plan %q", plan)
	}

	org := &domain.Organization{
		ID:                 uuid.New().String(),
		Name:               req.Name,
		Plan:               plan,
		MaxAgents:          req.MaxAgents,
		MaxConcurrentCalls: req.MaxConcurrentCalls,
		Active:             true,
		Settings:           req.Settings,
	}
	if org.MaxAgents <= 0 {
		org.MaxAgents = 5
	}
	if org.MaxConcurrentCalls <= 0 {
		org.MaxConcurrentCalls = 10
	}

	if err := r.db.WithContext(ctx).Create(org).Error; err != nil {
		return nil, fmt.Errorf("failed to create organization: %w", err)
	}
	return org, nil
}

// GetByID retrieves an organization by id.
func (r *OrganizationRepository) GetByID(ctx context.Context, id string) (*domain.Organization, error) {
	var org domain.Organization
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&org).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fault.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	return &org, nil
}

// Update updates plan, limits, flags or settings. Name is immutable.
func (r *OrganizationRepository) Update(ctx context.Context, id string, req *domain.UpdateOrganizationRequest) (*domain.Organization, error) {
	org, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{"updated_at": time.Now()}
	if req.Plan != nil {
		if !req.Plan.Valid() {
			return nil, fault.Newf(fault.KindValidation, "unknown plan %q", *req.Plan)
		}
		updates["plan"] = *req.Plan
	}
	if req.MaxAgents != nil {
		updates["max_agents"] = *req.MaxAgents
	}
	if req.MaxConcurrentCalls != nil {
		updates["max_concurrent_calls"] = *req.MaxConcurrentCalls
	}
	if req.Active != nil {
		updates["active"] = *req.Active
	}
	if req.Settings != nil {
		updates["settings"] = *req.Settings
	}

	if err := r.db.WithContext(ctx).Model(org).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update organization: %w", err)
	}
	return r.GetByID(ctx, id)
}
