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

// AgentRepository handles database operations for agents. Every query is
// scoped by organization id.
type AgentRepository struct {
	db *gorm.DB
}

// NewAgentRepository creates a new agent repository.
func NewAgentRepository(db *gorm.DB) *AgentRepository {
	return &AgentRepository{db: db}
}

// Create creates an agent, enforcing the org's MaxAgents plan limit inside
// one transaction so concurrent creates cannot overshoot it.
func (r *AgentRepository) Create(ctx context.Context, orgID string, req *domain.CreateAgentRequest) (*domain.Agent, error) {
	if req.Name == "" {
		return nil, fault.New(fault.KindValidation, "agent name is required")
	}

	var agent *domain.Agent
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var org domain.Organization
		if err := tx.Where("id = ?", orgID).First(&org).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fault.ErrNotFound
			}
			return fmt.Errorf("failed to load organization: %w", err)
		}

		var count int64
		if err := tx.Model(&domain.Agent{}).Where("organization_id = ?", orgID).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to count agents: %w", err)
		}
		if count >= int64(org.MaxAgents) {
			return fault.Newf(fault.KindQuotaExceeded, "agent limit %d reached", org.MaxAgents)
		}

		agent = &domain.Agent{
			ID:               uuid.New().String(),
			OrganizationID:   orgID,
			Name:             req.Name,
			Status:           domain.AgentStatusIdle,
			VoiceProfileID:   req.VoiceProfileID,
			ContextProfileID: req.ContextProfileID,
			RuntimeConfig:    req.RuntimeConfig,
		}
		if err := tx.Create(agent).Error; err != nil {
			return fmt.Errorf("failed to create agent: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return agent, nil
}

// GetByID retrieves an agent within an organization. A cross-tenant id
// yields NotFound.
func (r *AgentRepository) GetByID(ctx context.Context, orgID, id string) (*domain.Agent, error) {
	var agent domain.Agent
	if err := r.db.WithContext(ctx).Where("id = ? AND organization_id = ?", id, orgID).First(&agent).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fault.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get agent: %w", err)
	}
	return &agent, nil
}

// List returns all agents of an organization.
func (r *AgentRepository) List(ctx context.Context, orgID string) ([]*domain.Agent, error) {
	var agents []*domain.Agent
	if err := r.db.WithContext(ctx).Where("organization_id = ?", orgID).Order("created_at").Find(&agents).Error; err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	return agents, nil
}

// Update updates an agent's mutable fields.
func (r *AgentRepository) Update(ctx context.Context, orgID, id string, req *domain.UpdateAgentRequest) (*domain.Agent, error) {
	agent, err := r.GetByID(ctx, orgID, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{"updated_at": time.Now()}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Status != nil {
		updates["status"] = *req.Status
	}
	if req.VoiceProfileID != nil {
		updates["voice_profile_id"] = *req.VoiceProfileID
	}
	if req.ContextProfileID != nil {
		updates["context_profile_id"] = *req.ContextProfileID
	}
	if req.RuntimeConfig != nil {
		updates["runtime_config"] = *req.RuntimeConfig
	}

	if err := r.db.WithContext(ctx).Model(agent).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update agent: %w", err)
	}
	return r.GetByID(ctx, orgID, id)
}

// TransitionStatus moves an agent from one status to another. The update is
// conditional on the current status so concurrent transitions serialize at
// the database; zero rows affected means the agent was not in `from`.
func (r *AgentRepository) TransitionStatus(ctx context.Context, orgID, id string, from, to domain.AgentStatus) error {
	res := r.db.WithContext(ctx).Model(&domain.Agent{}).
		Where("id = ? AND organization_id = ? AND status = ?", id, orgID, from).
		Updates(map[string]interface{}{"status": to, "updated_at": time.Now()})
	if res.Error != nil {
		return fmt.Errorf("failed to transition agent status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fault.ErrAgentUnavailable
	}
	return nil
}

// GetContextProfile loads a context profile within an organization.
func (r *AgentRepository) GetContextProfile(ctx context.Context, orgID, id string) (*domain.ContextProfile, error) {
	var profile domain.ContextProfile
	if err := r.db.WithContext(ctx).Where("id = ? AND organization_id = ?", id, orgID).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fault.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get context profile: %w", err)
	}
	return &profile, nil
}
