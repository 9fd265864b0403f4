package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/centralita-ai/voice-orchestrator/internal/config"
	"github.com/centralita-ai/voice-orchestrator/internal/domain"
	"github.com/centralita-ai/voice-orchestrator/internal/repository"
	"github.com/centralita-ai/voice-orchestrator/pkg/logger"
	rediscache "github.com/centralita-ai/voice-orchestrator/pkg/redis"
	"go.uber.org/zap"
)

// Emitter resolves which subscriptions want an event and queues it.
type Emitter struct {
	repo       *repository.WebhookRepository
	dispatcher *Dispatcher
	redis      rediscache.ServiceInterface
	cooldown   time.Duration
}

// NewEmitter builds the emitter. redis gates sentiment alerts across
// instances; nil disables the gate.
func NewEmitter(repo *repository.WebhookRepository, dispatcher *Dispatcher, redisSvc rediscache.ServiceInterface, cfg config.PipelineConfig) *Emitter {
	return &Emitter{
		repo:       repo,
		dispatcher: dispatcher,
		redis:      redisSvc,
		cooldown:   cfg.SentimentAlertCooldown,
	}
}

// Emit queues the event for every active subscription of the
// organization that subscribes to its type. Failures to load
// subscriptions are logged; the call never blocks on delivery.
func (e *Emitter) Emit(ctx context.Context, orgID string, typ domain.WebhookEventType, conversationID string, data interface{}) {
	subs, err := e.repo.ListActiveForOrg(ctx, orgID)
	if err != nil {
		logger.Base().Warn("failed to load webhook subscriptions",
			zap.String("org_id", orgID), zap.Error(err))
		return
	}
	for _, sub := range subs {
		if sub.Subscribed(typ) {
			e.dispatcher.Enqueue(sub, typ, conversationID, data)
		}
	}
}

// EmitSentimentAlert emits a sentiment_alert, rate limited to one per
// call per cooldown window. The gate lives in Redis so replicas share it.
func (e *Emitter) EmitSentimentAlert(ctx context.Context, orgID, conversationID string, data interface{}) {
	if e.redis != nil {
		key := e.redis.GenerateKey(rediscache.SentimentAlert, conversationID)
		ok, err := e.redis.SetNX(ctx, key, "1", e.cooldown)
		if err != nil {
			logger.Base().Warn("sentiment alert gate unavailable, emitting anyway",
				zap.String("call_id", conversationID), zap.Error(err))
		} else if !ok {
			return
		}
	}
	e.Emit(ctx, orgID, domain.EventSentimentAlert, conversationID, data)
}

// TestFire sends a synthetic event to one subscription synchronously and
// reports the HTTP status. Used by the webhook test endpoint.
func (e *Emitter) TestFire(ctx context.Context, sub *domain.Webhook) (int, error) {
	body, err := json.Marshal(Payload{
		EventType:      domain.EventCallStarted,
		ConversationID: "00000000-0000-0000-0000-000000000000",
		OrgID:          sub.OrganizationID,
		Data:           map[string]string{"test": "true"},
		Timestamp:      time.Now().UTC(),
	})
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, "POST", sub.URL, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Signature", Sign(sub.Secret, body))

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	return resp.StatusCode, nil
}
