// Package dispatch delivers lifecycle events to tenant webhook
// subscriptions: canonical JSON payloads signed with the subscription
// secret, retried on a fixed backoff schedule, with per-subscription
// ordering and a bounded queue.
package dispatch

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/centralita-ai/voice-orchestrator/internal/config"
	"github.com/centralita-ai/voice-orchestrator/internal/domain"
	"github.com/centralita-ai/voice-orchestrator/internal/repository"
	"github.com/centralita-ai/voice-orchestrator/pkg/logger"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// backoffSchedule is the pause before each retry attempt. Retries past
// the schedule keep the last pause.
var backoffSchedule = []time.Duration{
	1 * time.Second,
	5 * time.Second,
	25 * time.Second,
	125 * time.Second,
	625 * time.Second,
}

// retryDelay returns the pause before retry n (1-based).
func retryDelay(n int) time.Duration {
	if n < 1 {
		return 0
	}
	if n > len(backoffSchedule) {
		n = len(backoffSchedule)
	}
	return backoffSchedule[n-1]
}

// Payload is the canonical webhook body.
type Payload struct {
	EventType      domain.WebhookEventType `json:"event_type"`
	ConversationID string                  `json:"conversation_id"`
	OrgID          string                  `json:"org_id"`
	Data           interface{}             `json:"data"`
	Timestamp      time.Time               `json:"timestamp"`
}

// Sign computes the hex HMAC-SHA256 of the raw body with the
// subscription secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

type delivery struct {
	sub  *domain.Webhook
	body []byte
	typ  domain.WebhookEventType
	conv string
}

// subQueue is one subscription's FIFO. A queue is drained by at most one
// worker at a time, which keeps deliveries to one endpoint in order.
type subQueue struct {
	mu     sync.Mutex
	items  []*delivery
	active bool
}

// Dispatcher fans events out to webhook subscriptions.
type Dispatcher struct {
	repo    *repository.WebhookRepository
	cfg     config.PipelineConfig
	client  *http.Client
	limiter *rate.Limiter

	mu     sync.Mutex
	queues map[string]*subQueue

	ready  chan *subQueue
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	dropped atomic.Int64
}

// NewDispatcher builds the dispatcher. Call Start before emitting.
func NewDispatcher(repo *repository.WebhookRepository, cfg config.PipelineConfig) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		repo:    repo,
		cfg:     cfg,
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(100), 200),
		queues:  make(map[string]*subQueue),
		ready:   make(chan *subQueue, 4096),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the delivery workers.
func (d *Dispatcher) Start() {
	for i := 0; i < d.cfg.WebhookWorkers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
}

// Stop cancels in-flight deliveries and waits for the workers. Queued
// deliveries are abandoned; the delivery log keeps their last state.
func (d *Dispatcher) Stop() {
	d.cancel()
	d.wg.Wait()
}

// Dropped reports how many events were evicted from full queues.
func (d *Dispatcher) Dropped() int64 { return d.dropped.Load() }

// Enqueue queues one event for one subscription. When the subscription's
// queue is full the oldest undelivered event is evicted.
func (d *Dispatcher) Enqueue(sub *domain.Webhook, typ domain.WebhookEventType, conversationID string, data interface{}) {
	body, err := json.Marshal(Payload{
		EventType:      typ,
		ConversationID: conversationID,
		OrgID:          sub.OrganizationID,
		Data:           data,
		Timestamp:      time.Now().UTC(),
	})
	if err != nil {
		logger.Base().Error("failed to marshal webhook payload", zap.Error(err))
		return
	}

	d.mu.Lock()
	q, ok := d.queues[sub.ID]
	if !ok {
		q = &subQueue{}
		d.queues[sub.ID] = q
	}
	d.mu.Unlock()

	q.mu.Lock()
	if len(q.items) >= d.cfg.WebhookQueueCap {
		q.items = q.items[1:]
		d.dropped.Add(1)
		logger.Base().Warn("webhook queue full, dropped oldest event",
			zap.String("webhook_id", sub.ID),
			zap.Int64("webhook_dropped", d.dropped.Load()))
	}
	q.items = append(q.items, &delivery{sub: sub, body: body, typ: typ, conv: conversationID})
	schedule := !q.active
	if schedule {
		q.active = true
	}
	q.mu.Unlock()

	if schedule {
		select {
		case d.ready <- q:
		case <-d.ctx.Done():
		}
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case <-d.ctx.Done():
			return
		case q := <-d.ready:
			d.drainOne(q)
		}
	}
}

// drainOne delivers the head of the queue and reschedules the queue if
// more is waiting. One worker holds a queue per delivery, so a slow
// endpoint delays only its own subscription.
func (d *Dispatcher) drainOne(q *subQueue) {
	q.mu.Lock()
	if len(q.items) == 0 {
		q.active = false
		q.mu.Unlock()
		return
	}
	item := q.items[0]
	q.items = q.items[1:]
	q.mu.Unlock()

	d.deliver(item)

	q.mu.Lock()
	more := len(q.items) > 0
	if !more {
		q.active = false
	}
	q.mu.Unlock()
	if more {
		select {
		case d.ready <- q:
		case <-d.ctx.Done():
		}
	}
}

// deliver runs one event through the initial post plus WebhookAttempts
// retries, pausing per backoffSchedule between them.
func (d *Dispatcher) deliver(item *delivery) {
	record := &domain.WebhookDelivery{
		OrganizationID: item.sub.OrganizationID,
		WebhookID:      item.sub.ID,
		EventType:      string(item.typ),
		Payload:        item.body,
		LastStatus:     domain.DeliveryPending,
	}

	for attempt := 0; attempt <= d.cfg.WebhookAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-d.ctx.Done():
				d.record(record)
				return
			case <-time.After(retryDelay(attempt)):
			}
		}
		record.Attempts = attempt + 1

		status, err := d.post(item)
		record.LastHTTPStatus = status
		if err == nil && status >= 200 && status < 300 {
			record.LastStatus = domain.DeliveryDelivered
			d.record(record)
			return
		}
		logger.Base().Warn("webhook delivery attempt failed",
			zap.String("webhook_id", item.sub.ID),
			zap.String("event_type", string(item.typ)),
			zap.Int("attempt", record.Attempts),
			zap.Int("http_status", status),
			zap.Error(err))
	}

	record.LastStatus = domain.DeliveryDead
	d.record(record)
}

func (d *Dispatcher) post(item *delivery) (int, error) {
	if err := d.limiter.Wait(d.ctx); err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(d.ctx, "POST", item.sub.URL, bytes.NewReader(item.body))
	if err != nil {
		return 0, fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Signature", Sign(item.sub.Secret, item.body))

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	return resp.StatusCode, nil
}

func (d *Dispatcher) record(rec *domain.WebhookDelivery) {
	if d.repo == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.repo.RecordDelivery(ctx, rec); err != nil {
		logger.Base().Warn("failed to record webhook delivery", zap.Error(err))
	}
}
