package domain

import (
	"time"

	"github.com/lib/pq"
)

// WebhookEventType is the closed set of lifecycle events a subscription
// can receive.
type WebhookEventType string

const (
	EventCallStarted       WebhookEventType = "call_started"
	EventCallEnded         WebhookEventType = "call_ended"
	EventTurnCompleted     WebhookEventType = "turn_completed"
	EventInterruption      WebhookEventType = "interruption"
	EventTransferRequested WebhookEventType = "transfer_requested"
	EventCallbackScheduled WebhookEventType = "callback_scheduled"
	EventSentimentAlert    WebhookEventType = "sentiment_alert"
	EventError             WebhookEventType = "error"
)

// AllWebhookEvents is the full closed event set.
var AllWebhookEvents = []WebhookEventType{
	EventCallStarted, EventCallEnded, EventTurnCompleted,
	EventInterruption, EventTransferRequested, EventCallbackScheduled,
	EventSentimentAlert, EventError,
}

// ValidWebhookEvent reports whether t is a member of the closed event set.
func ValidWebhookEvent(t WebhookEventType) bool {
	for _, known := range AllWebhookEvents {
		if t == known {
			return true
		}
	}
	return false
}

// Webhook is one subscription.
type Webhook struct {
	ID             string         `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	OrganizationID string         `json:"organization_id" gorm:"type:uuid;not null;index"`
	URL            string         `json:"url" gorm:"type:varchar(2048);not null"`
	Events         pq.StringArray `json:"events" gorm:"type:text[]"`
	Secret         string         `json:"-" gorm:"type:varchar(255);not null"`
	Description    string         `json:"description" gorm:"type:varchar(512)"`
	Active         bool           `json:"active" gorm:"default:true"`
	CreatedAt      time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt      time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName sets the table name for Webhook.
func (Webhook) TableName() string {
	return "webhooks"
}

// Subscribed reports whether the subscription wants events of type t.
func (w *Webhook) Subscribed(t WebhookEventType) bool {
	for _, have := range w.Events {
		if WebhookEventType(have) == t {
			return true
		}
	}
	return false
}

// DeliveryStatus is the lifecycle status of one webhook delivery.
type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "pending"
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryDead      DeliveryStatus = "dead"
)

// WebhookDelivery is a pending or completed delivery of one event to one
// subscription.
type WebhookDelivery struct {
	ID             string         `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	OrganizationID string         `json:"organization_id" gorm:"type:uuid;not null;index"`
	WebhookID      string         `json:"webhook_id" gorm:"type:uuid;not null;index"`
	EventType      string         `json:"event_type" gorm:"type:varchar(64);not null"`
	Payload        []byte         `json:"payload" gorm:"type:bytea"`
	Attempts       int            `json:"attempts" gorm:"default:0"`
	NextAttemptAt  *time.Time     `json:"next_attempt_at,omitempty"`
	LastStatus     DeliveryStatus `json:"last_status" gorm:"type:varchar(16);default:'pending'"`
	LastHTTPStatus int            `json:"last_http_status"`
	CreatedAt      time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt      time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName sets the table name for WebhookDelivery.
func (WebhookDelivery) TableName() string {
	return "webhook_deliveries"
}

// CreateWebhookRequest subscribes a URL to a set of events.
type CreateWebhookRequest struct {
	URL         string             `json:"url" validate:"required"`
	Events      []WebhookEventType `json:"events" validate:"required"`
	Secret      string             `json:"secret" validate:"required"`
	Description string             `json:"description,omitempty"`
}
