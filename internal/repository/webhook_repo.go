package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/centralita-ai/voice-orchestrator/internal/domain"
	"github.com/centralita-ai/voice-orchestrator/internal/fault"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// WebhookRepository handles webhook subscriptions and delivery records.
type WebhookRepository struct {
	db *gorm.DB
}

// NewWebhookRepository creates a new webhook repository.
func NewWebhookRepository(db *gorm.DB) *WebhookRepository {
	return &WebhookRepository{db: db}
}

// Create subscribes a URL to a set of lifecycle events.
func (r *WebhookRepository) Create(ctx context.Context, orgID string, req *domain.CreateWebhookRequest) (*domain.Webhook, error) {
	if req.URL == "" || req.Secret == "" {
		return nil, fault.New(fault.KindValidation, "url and secret are required")
	}
	if len(req.Events) == 0 {
		return nil, fault.New(fault.KindValidation, "at least one event is required")
	}
	events := make(pq.StringArray, 0, len(req.Events))
	for _, ev := range req.Events {
		if !domain.ValidWebhookEvent(ev) {
			return nil, fault.Newf(fault.KindValidation, "unknown event %q", ev)
		}
		events = append(events, string(ev))
	}

	hook := &domain.Webhook{
		ID:             uuid.New().String(),
		OrganizationID: orgID,
		URL:            req.URL,
		Events:         events,
		Secret:         req.Secret,
		Description:    req.Description,
		Active:         true,
	}
	if err := r.db.WithContext(ctx).Create(hook).Error; err != nil {
		return nil, fmt.Errorf("failed to create webhook: %w", err)
	}
	return hook, nil
}

// GetByID retrieves a webhook within an organization.
func (r *WebhookRepository) GetByID(ctx context.Context, orgID, id string) (*domain.Webhook, error) {
	var hook domain.Webhook
	if err := r.db.WithContext(ctx).Where("id = ? AND organization_id = ?", id, orgID).First(&hook).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fault.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get webhook: %w", err)
	}
	return &hook, nil
}

// List returns the org's webhooks.
func (r *WebhookRepository) List(ctx context.Context, orgID string) ([]*domain.Webhook, error) {
	var hooks []*domain.Webhook
	if err := r.db.WithContext(ctx).Where("organization_id = ?", orgID).Order("created_at").Find(&hooks).Error; err != nil {
		return nil, fmt.Errorf("failed to list webhooks: %w", err)
	}
	return hooks, nil
}

// ListActiveForEvent returns active subscriptions of any org interested in
// the given event type. The dispatcher filters per org before enqueueing.
func (r *WebhookRepository) ListActiveForOrg(ctx context.Context, orgID string) ([]*domain.Webhook, error) {
	var hooks []*domain.Webhook
	if err := r.db.WithContext(ctx).
		Where("organization_id = ? AND active = true", orgID).
		Find(&hooks).Error; err != nil {
		return nil, fmt.Errorf("failed to list active webhooks: %w", err)
	}
	return hooks, nil
}

// Delete removes a subscription.
func (r *WebhookRepository) Delete(ctx context.Context, orgID, id string) error {
	res := r.db.WithContext(ctx).Where("id = ? AND organization_id = ?", id, orgID).Delete(&domain.Webhook{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete webhook: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fault.ErrNotFound
	}
	return nil
}

// Toggle flips the active flag.
func (r *WebhookRepository) Toggle(ctx context.Context, orgID, id string) (*domain.Webhook, error) {
	hook, err := r.GetByID(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Model(hook).
		Updates(map[string]interface{}{"active": !hook.Active, "updated_at": time.Now()}).Error; err != nil {
		return nil, fmt.Errorf("failed to toggle webhook: %w", err)
	}
	hook.Active = !hook.Active
	return hook, nil
}

// RecordDelivery persists the outcome of one delivery attempt sequence.
func (r *WebhookRepository) RecordDelivery(ctx context.Context, delivery *domain.WebhookDelivery) error {
	if delivery.ID == "" {
		delivery.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Save(delivery).Error; err != nil {
		return fmt.Errorf("failed to record webhook delivery: %w", err)
	}
	return nil
}

// ListDeliveries returns the delivery history for one subscription.
func (r *WebhookRepository) ListDeliveries(ctx context.Context, orgID, webhookID string, limit int) ([]*domain.WebhookDelivery, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var deliveries []*domain.WebhookDelivery
	if err := r.db.WithContext(ctx).
		Where("webhook_id = ? AND organization_id = ?", webhookID, orgID).
		Order("created_at DESC").
		Limit(limit).
		Find(&deliveries).Error; err != nil {
		return nil, fmt.Errorf("failed to list webhook deliveries: %w", err)
	}
	return deliveries, nil
}
