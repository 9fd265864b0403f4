package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/centralita-ai/voice-orchestrator/pkg/logger"
	"go.uber.org/zap"
)

// Config holds the Pub/Sub settings for batch-enrichment notifications.
type Config struct {
	ProjectID string
	TopicName string
}

// Service publishes recording-enrichment notifications for the offline
// worker fleet.
type Service struct {
	client *pubsub.Client
	topic  *pubsub.Topic
}

// EnrichmentNotice tells the batch worker that a recording awaits offline
// processing.
type EnrichmentNotice struct {
	RecordingID    string    `json:"recording_id"`
	ConversationID string    `json:"conversation_id"`
	OrgID          string    `json:"org_id"`
	EnqueuedAt     time.Time `json:"enqueued_at"`
}

// NewService creates the Pub/Sub publisher. The topic must already exist.
func NewService(ctx context.Context, cfg *Config) (*Service, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("pubsub project ID is required")
	}

	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}

	topic := client.Topic(cfg.TopicName)
	ok, err := topic.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check topic: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("pubsub topic %q does not exist", cfg.TopicName)
	}

	return &Service{client: client, topic: topic}, nil
}

// PublishEnrichment publishes an enrichment notice. Publication is
// fire-and-forget from the caller's perspective; the result is awaited here
// so errors surface in the log.
func (s *Service) PublishEnrichment(ctx context.Context, notice EnrichmentNotice) error {
	data, err := json.Marshal(notice)
	if err != nil {
		return fmt.Errorf("failed to marshal enrichment notice: %w", err)
	}

	result := s.topic.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"org_id": notice.OrgID,
		},
	})

	id, err := result.Get(ctx)
	if err != nil {
		return fmt.Errorf("failed to publish enrichment notice: %w", err)
	}
	logger.Base().Debug("published enrichment notice",
		zap.String("message_id", id),
		zap.String("recording_id", notice.RecordingID))
	return nil
}

// Close stops the topic publisher and closes the client.
func (s *Service) Close() error {
	s.topic.Stop()
	return s.client.Close()
}
