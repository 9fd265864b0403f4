// Package agent provides agent configuration management.
package agent

import (
	"context"

	"github.com/centralita-ai/voice-orchestrator/internal/domain"
	"github.com/centralita-ai/voice-orchestrator/internal/fault"
	"github.com/centralita-ai/voice-orchestrator/internal/repository"
	"github.com/centralita-ai/voice-orchestrator/pkg/logger"
	"go.uber.org/zap"
)

// Service manages agent configuration for the client API. Plan limits are
// enforced in the repository, inside the creating transaction.
type Service struct {
	repo *repository.AgentRepository
}

// NewService creates the agent service.
func NewService(repo *repository.AgentRepository) *Service {
	return &Service{repo: repo}
}

// Create registers a new agent for the organization.
func (s *Service) Create(ctx context.Context, orgID string, req *domain.CreateAgentRequest) (*domain.Agent, error) {
	if req.Name == "" {
		return nil, fault.New(fault.KindValidation, "name is required")
	}
	agent, err := s.repo.Create(ctx, orgID, req)
	if err != nil {
		return nil, err
	}
	logger.Base().Info("agent created",
		zap.String("org_id", orgID),
		zap.String("agent_id", agent.ID),
		zap.String("name", agent.Name))
	return agent, nil
}

// Get returns one agent, tenant scoped.
func (s *Service) Get(ctx context.Context, orgID, id string) (*domain.Agent, error) {
	return s.repo.GetByID(ctx, orgID, id)
}

// List returns the organization's agents.
func (s *Service) List(ctx context.Context, orgID string) ([]*domain.Agent, error) {
	return s.repo.List(ctx, orgID)
}

// Update patches an agent's mutable fields. The active status is owned by
// call admission and cannot be set from the API.
func (s *Service) Update(ctx context.Context, orgID, id string, req *domain.UpdateAgentRequest) (*domain.Agent, error) {
	if req.Status != nil && *req.Status == domain.AgentStatusActive {
		return nil, fault.New(fault.KindValidation, "status active is set by call admission, not the API")
	}
	return s.repo.Update(ctx, orgID, id, req)
}

// ContextProfile returns one prompt profile, tenant scoped.
func (s *Service) ContextProfile(ctx context.Context, orgID, id string) (*domain.ContextProfile, error) {
	return s.repo.GetContextProfile(ctx, orgID, id)
}
