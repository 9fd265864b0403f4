package correction

import (
	"context"
	"fmt"
	"strings"

	"github.com/centralita-ai/voice-orchestrator/internal/domain"
	"github.com/centralita-ai/voice-orchestrator/internal/fault"
	"github.com/centralita-ai/voice-orchestrator/internal/repository"
)

// Service owns dictionary maintenance: learning and unlearning entries
// and keeping every instance's cache fresh.
type Service struct {
	repo     *repository.DictionaryRepository
	cache    *Cache
	embedder TextEmbedder
}

// NewService builds the dictionary maintenance service.
func NewService(repo *repository.DictionaryRepository, cache *Cache, embedder TextEmbedder) *Service {
	return &Service{repo: repo, cache: cache, embedder: embedder}
}

// Learn upserts a misheard → canonical mapping for the organization and
// broadcasts a reload. The embedding is best effort; an entry without one
// still serves the exact stage.
func (s *Service) Learn(ctx context.Context, orgID, misheard, canonical string) (*domain.CorrectionEntry, error) {
	misheard = strings.ToLower(strings.TrimSpace(misheard))
	canonical = strings.TrimSpace(canonical)
	if misheard == "" || canonical == "" {
		return nil, fault.New(fault.KindValidation, "misheard and canonical forms are required")
	}
	if strings.ContainsAny(misheard, " \t") || strings.ContainsAny(canonical, " \t") {
		return nil, fault.New(fault.KindValidation, "dictionary entries are single tokens")
	}

	var embedding []float32
	if s.embedder != nil {
		if emb, err := s.embedder.EmbedText(ctx, misheard); err == nil && len(emb) == domain.CorrectionEmbeddingDim {
			embedding = emb
		}
	}

	entry, err := s.repo.Learn(ctx, orgID, misheard, canonical, embedding)
	if err != nil {
		return nil, fmt.Errorf("failed to learn correction: %w", err)
	}
	s.cache.Broadcast(ctx, orgID)
	return entry, nil
}

// Unlearn removes a tenant mapping and broadcasts a reload. Seed entries
// cannot be removed through the tenant API.
func (s *Service) Unlearn(ctx context.Context, orgID, misheard string) error {
	misheard = strings.ToLower(strings.TrimSpace(misheard))
	if misheard == "" {
		return fault.New(fault.KindValidation, "misheard form is required")
	}
	if err := s.repo.Unlearn(ctx, orgID, misheard); err != nil {
		return err
	}
	s.cache.Broadcast(ctx, orgID)
	return nil
}

// List returns the effective dictionary for the organization, seed
// entries included.
func (s *Service) List(ctx context.Context, orgID string) ([]*domain.CorrectionEntry, error) {
	return s.repo.ListForOrg(ctx, orgID)
}
