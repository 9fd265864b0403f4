package recording

import (
	"context"
	"time"

	"github.com/centralita-ai/voice-orchestrator/internal/domain"
	"github.com/centralita-ai/voice-orchestrator/internal/fault"
	"github.com/centralita-ai/voice-orchestrator/internal/repository"
	"github.com/centralita-ai/voice-orchestrator/pkg/logger"
	"github.com/centralita-ai/voice-orchestrator/pkg/pubsub"
	"go.uber.org/zap"
)

// presignedURLExpiry bounds how long a recording download link stays valid.
const presignedURLExpiry = 15 * time.Minute

// TextCorrector applies the heavyweight vocabulary correction pass that is
// too slow for the live call path.
type TextCorrector interface {
	CorrectText(ctx context.Context, orgID, text string, vocabulary []string) (string, []domain.CorrectionPair, error)
}

// Service is the tenant-scoped surface over stored recordings. It also
// hands finished recordings to the offline enrichment queue.
type Service struct {
	store     *Store
	repo      *repository.RecordingRepository
	queue     *pubsub.Service
	corrector TextCorrector
}

// NewService builds the recording service. queue may be nil; enrichment
// workers then rely on polling ListUnprocessed. corrector may be nil;
// submitted metadata is then stored verbatim.
func NewService(store *Store, repo *repository.RecordingRepository, queue *pubsub.Service, corrector TextCorrector) *Service {
	return &Service{store: store, repo: repo, queue: queue, corrector: corrector}
}

// Persist saves the bundle and announces it for enrichment. The announce
// is best effort; the processed=false row is the durable queue.
func (s *Service) Persist(ctx context.Context, b *Bundle) (*domain.Recording, error) {
	rec, err := s.store.Save(ctx, b)
	if err != nil {
		return nil, err
	}
	if s.queue != nil {
		notice := pubsub.EnrichmentNotice{
			RecordingID:    rec.ID,
			ConversationID: rec.CallID,
			OrgID:          rec.OrganizationID,
			EnqueuedAt:     time.Now().UTC(),
		}
		if err := s.queue.PublishEnrichment(ctx, notice); err != nil {
			logger.Base().Warn("enrichment notice failed, worker will poll",
				zap.String("recording_id", rec.ID), zap.Error(err))
		}
	}
	return rec, nil
}

// ListUnprocessed returns recordings awaiting offline enrichment.
func (s *Service) ListUnprocessed(ctx context.Context, orgID string, limit int) ([]*domain.Recording, error) {
	return s.repo.ListUnprocessed(ctx, orgID, limit)
}

// Get returns one recording row.
func (s *Service) Get(ctx context.Context, orgID, id string) (*domain.Recording, error) {
	return s.repo.GetByID(ctx, orgID, id)
}

// ListByCall returns the recordings of one call.
func (s *Service) ListByCall(ctx context.Context, orgID, callID string) ([]*domain.Recording, error) {
	return s.repo.ListByCall(ctx, orgID, callID)
}

// Metadata returns the canonical metadata document of a recording.
func (s *Service) Metadata(ctx context.Context, orgID, id string) (*domain.Metadata, error) {
	rec, err := s.repo.GetByID(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	return s.store.ReadMetadata(ctx, rec.CallID, rec.ID)
}

// AudioURL returns a presigned download URL for the audio, or empty when
// only local storage holds it.
func (s *Service) AudioURL(ctx context.Context, orgID, id string) (string, error) {
	rec, err := s.repo.GetByID(ctx, orgID, id)
	if err != nil {
		return "", err
	}
	return s.store.PresignedAudioURL(rec.CallID, rec.ID, presignedURLExpiry)
}

// ReplaceMetadata swaps in the metadata document produced by the offline
// enrichment worker and flips the processed flag when it says so.
func (s *Service) ReplaceMetadata(ctx context.Context, orgID, id string, meta *domain.Metadata) error {
	rec, err := s.repo.GetByID(ctx, orgID, id)
	if err != nil {
		return err
	}
	if meta.RecordingID != "" && meta.RecordingID != rec.ID {
		return fault.New(fault.KindValidation, "metadata recording id does not match")
	}
	meta.RecordingID = rec.ID
	meta.ConversationID = rec.CallID
	meta.OrgID = rec.OrganizationID
	s.correctTranscription(ctx, rec.OrganizationID, meta)
	if err := s.store.WriteMetadata(ctx, rec.CallID, rec.ID, meta); err != nil {
		return err
	}
	if meta.Processed {
		return s.repo.MarkProcessed(ctx, orgID, rec.ID, meta.ProcessingMode)
	}
	return nil
}

// correctTranscription runs the offline correction pass over a submitted
// transcript unless the worker already did its own. Best effort; a failed
// pass keeps the transcript as submitted.
func (s *Service) correctTranscription(ctx context.Context, orgID string, meta *domain.Metadata) {
	if s.corrector == nil || meta.Transcription.Text == "" {
		return
	}
	if meta.Transcription.CorrectionMethod == domain.ProcessingModeOffline {
		return
	}
	corrected, pairs, err := s.corrector.CorrectText(ctx, orgID, meta.Transcription.Text, nil)
	if err != nil {
		logger.Base().Warn("offline transcript correction failed",
			zap.String("recording_id", meta.RecordingID), zap.Error(err))
		return
	}
	meta.Transcription.CorrectedText = corrected
	meta.Transcription.CorrectionsMade = append(meta.Transcription.CorrectionsMade, pairs...)
	meta.Transcription.CorrectionMethod = domain.ProcessingModeOffline
}
