package dispatch

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/centralita-ai/voice-orchestrator/internal/config"
	"github.com/centralita-ai/voice-orchestrator/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignIsDeterministic(t *testing.T) {
	body := []byte(`{"event_type":"call_started","conversation_id":"call-1"}`)
	sig := Sign("shh", body)
	assert.Equal(t, "c4849614c3c3b6bd72664527885f980dda0b59ba69f277a699eb804e9c77958c", sig)
	assert.Equal(t, sig, Sign("shh", body))
	assert.NotEqual(t, sig, Sign("other", body))
}

func TestBackoffScheduleGrowsFivefold(t *testing.T) {
	require.Len(t, backoffSchedule, 5)
	assert.Equal(t, 1*time.Second, backoffSchedule[0])
	for i := 1; i < len(backoffSchedule); i++ {
		assert.Equal(t, backoffSchedule[i-1]*5, backoffSchedule[i])
	}
}

func TestRetryDelayCoversSchedule(t *testing.T) {
	want := []time.Duration{
		1 * time.Second,
		5 * time.Second,
		25 * time.Second,
		125 * time.Second,
		625 * time.Second,
	}
	for n, d := range want {
		assert.Equal(t, d, retryDelay(n+1))
	}
	// an initial post plus five retries exhausts the whole schedule
	assert.Equal(t, len(want), config.DefaultPipeline().WebhookAttempts)
	// retries past the schedule keep the last pause
	assert.Equal(t, 625*time.Second, retryDelay(6))
}

func TestEnqueueEvictsOldestWhenFull(t *testing.T) {
	cfg := config.DefaultPipeline()
	cfg.WebhookQueueCap = 2
	d := NewDispatcher(nil, cfg)
	// no workers started, so the queue only fills
	sub := &domain.Webhook{ID: "wh-1", OrganizationID: "org-1", Secret: "shh"}

	for i := 0; i < 5; i++ {
		d.Enqueue(sub, domain.EventTurnCompleted, "call-1", map[string]int{"seq": i})
	}

	assert.Equal(t, int64(3), d.Dropped())
	q := d.queues["wh-1"]
	require.Len(t, q.items, 2)
	assert.Contains(t, string(q.items[0].body), `"seq":3`)
	assert.Contains(t, string(q.items[1].body), `"seq":4`)
}

func TestDeliverySignsPayloadWithSubscriptionSecret(t *testing.T) {
	type got struct {
		body []byte
		sig  string
	}
	received := make(chan got, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		received <- got{body: body, sig: r.Header.Get("X-Webhook-Signature")}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := config.DefaultPipeline()
	cfg.WebhookWorkers = 1
	d := NewDispatcher(nil, cfg)
	d.Start()
	defer d.Stop()

	sub := &domain.Webhook{ID: "wh-1", OrganizationID: "org-1", URL: srv.URL, Secret: "shh"}
	d.Enqueue(sub, domain.EventCallEnded, "call-1", map[string]string{"outcome": "ended"})

	select {
	case g := <-received:
		mac := hmac.New(sha256.New, []byte("shh"))
		mac.Write(g.body)
		assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), g.sig)

		var p Payload
		require.NoError(t, json.Unmarshal(g.body, &p))
		assert.Equal(t, domain.EventCallEnded, p.EventType)
		assert.Equal(t, "call-1", p.ConversationID)
		assert.Equal(t, "org-1", p.OrgID)
	case <-time.After(3 * time.Second):
		t.Fatal("webhook was never delivered")
	}
}

func TestDeliveryRetriesAfterServerError(t *testing.T) {
	var calls atomic.Int32
	done := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
		close(done)
	}))
	defer srv.Close()

	cfg := config.DefaultPipeline()
	cfg.WebhookWorkers = 1
	d := NewDispatcher(nil, cfg)
	d.Start()
	defer d.Stop()

	sub := &domain.Webhook{ID: "wh-1", OrganizationID: "org-1", URL: srv.URL, Secret: "shh"}
	d.Enqueue(sub, domain.EventCallStarted, "call-1", nil)

	select {
	case <-done:
		assert.Equal(t, int32(2), calls.Load())
	case <-time.After(5 * time.Second):
		t.Fatal("delivery was not retried")
	}
}

func TestOrderingPreservedPerSubscription(t *testing.T) {
	var seen []string
	done := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p Payload
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &p)
		seen = append(seen, p.ConversationID)
		if len(seen) == 3 {
			close(done)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := config.DefaultPipeline()
	cfg.WebhookWorkers = 4
	d := NewDispatcher(nil, cfg)
	d.Start()
	defer d.Stop()

	sub := &domain.Webhook{ID: "wh-1", OrganizationID: "org-1", URL: srv.URL, Secret: "shh"}
	for _, conv := range []string{"call-a", "call-b", "call-c"} {
		d.Enqueue(sub, domain.EventTurnCompleted, conv, nil)
	}

	select {
	case <-done:
		assert.Equal(t, []string{"call-a", "call-b", "call-c"}, seen)
	case <-time.After(3 * time.Second):
		t.Fatal("deliveries did not complete")
	}
}
