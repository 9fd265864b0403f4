package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/centralita-ai/voice-orchestrator/internal/core/event"
	"github.com/centralita-ai/voice-orchestrator/internal/dispatch"
	"github.com/centralita-ai/voice-orchestrator/internal/domain"
	"github.com/centralita-ai/voice-orchestrator/internal/fault"
	"github.com/centralita-ai/voice-orchestrator/internal/repository"
	"github.com/centralita-ai/voice-orchestrator/pkg/logger"
	rediscache "github.com/centralita-ai/voice-orchestrator/pkg/redis"
	"go.uber.org/zap"
)

// presenceTTL bounds how long a crashed instance's sessions linger in
// the shared presence map.
const presenceTTL = 6 * time.Hour

// Outcome says how a call ended.
type Outcome string

const (
	OutcomeEnded Outcome = "ended"
	OutcomeError Outcome = "error"
)

// presence is the cross-instance session record kept in Redis.
type presence struct {
	OrgID      string    `json:"org_id"`
	AgentID    string    `json:"agent_id"`
	InstanceID string    `json:"instance_id"`
	StartedAt  time.Time `json:"started_at"`
}

// Registry owns call_id → Session. Opens enforce the organization's
// concurrency quota and flip the agent to active; closes release every
// per-call resource on all exit paths.
type Registry struct {
	orgs       *repository.OrganizationRepository
	agents     *repository.AgentRepository
	calls      *repository.CallRepository
	emitter    *dispatch.Emitter
	redis      rediscache.ServiceInterface
	instanceID string

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry builds the session registry.
func NewRegistry(
	orgs *repository.OrganizationRepository,
	agents *repository.AgentRepository,
	calls *repository.CallRepository,
	emitter *dispatch.Emitter,
	redisSvc rediscache.ServiceInterface,
	instanceID string,
) *Registry {
	return &Registry{
		orgs:       orgs,
		agents:     agents,
		calls:      calls,
		emitter:    emitter,
		redis:      redisSvc,
		instanceID: instanceID,
		sessions:   make(map[string]*Session),
	}
}

// Open admits a new call: quota check, agent idle → active transition,
// call row creation, then the in-memory session. Any later step failing
// unwinds the earlier ones.
func (r *Registry) Open(ctx context.Context, orgID, agentID, callerID, callID string) (*Session, error) {
	org, err := r.orgs.GetByID(ctx, orgID)
	if err != nil {
		return nil, err
	}
	active, err := r.calls.CountActive(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to count active calls: %w", err)
	}
	if active >= int64(org.MaxConcurrentCalls) {
		return nil, fault.ErrQuotaExceeded
	}

	if err := r.agents.TransitionStatus(ctx, orgID, agentID, domain.AgentStatusIdle, domain.AgentStatusActive); err != nil {
		return nil, err
	}

	call := &domain.Call{
		ID:             callID,
		OrganizationID: orgID,
		AgentID:        agentID,
		CallerID:       callerID,
		Status:         domain.CallStatusActive,
		StartedAt:      time.Now().UTC(),
	}
	if err := r.calls.Create(ctx, call); err != nil {
		r.revertAgent(orgID, agentID)
		return nil, fmt.Errorf("failed to create call: %w", err)
	}

	sess := New(call.ID, orgID, agentID, callerID, event.NewBus())

	r.mu.Lock()
	if _, exists := r.sessions[sess.CallID]; exists {
		r.mu.Unlock()
		sess.Close()
		r.revertAgent(orgID, agentID)
		return nil, fault.Newf(fault.KindInvariant, "session for call %s already exists", sess.CallID)
	}
	r.sessions[sess.CallID] = sess
	r.mu.Unlock()

	r.announce(ctx, sess)
	r.emitter.Emit(ctx, orgID, domain.EventCallStarted, sess.CallID, map[string]string{
		"agent_id":  agentID,
		"caller_id": callerID,
	})
	logger.Base().Info("session opened",
		zap.String("call_id", sess.CallID),
		zap.String("org_id", orgID),
		zap.String("agent_id", agentID))
	return sess, nil
}

// Get returns the session for an active call. Sessions of other tenants
// are reported absent, never forbidden.
func (r *Registry) Get(orgID, callID string) (*Session, error) {
	r.mu.RLock()
	sess := r.sessions[callID]
	r.mu.RUnlock()
	if sess == nil || sess.OrgID != orgID {
		return nil, fault.ErrNotFound
	}
	return sess, nil
}

// Active returns how many sessions this instance is running.
func (r *Registry) Active() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Close tears a session down: cancels its scope, runs its cleanups,
// returns the agent to idle, finalizes the call row and fires call_ended.
// Idempotent; later calls are no-ops.
func (r *Registry) Close(callID string, outcome Outcome) {
	r.mu.Lock()
	sess := r.sessions[callID]
	delete(r.sessions, callID)
	r.mu.Unlock()
	if sess == nil {
		return
	}

	sess.Close()

	// teardown uses its own context: the session scope is cancelled
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if outcome == OutcomeError {
		if err := r.calls.MarkError(ctx, sess.OrgID, sess.CallID); err != nil {
			logger.Base().Error("failed to mark call errored",
				zap.String("call_id", sess.CallID), zap.Error(err))
		}
	} else {
		if err := r.calls.MarkEnded(ctx, sess.OrgID, sess.CallID, time.Now().UTC()); err != nil {
			logger.Base().Error("failed to mark call ended",
				zap.String("call_id", sess.CallID), zap.Error(err))
		}
	}

	if err := r.agents.TransitionStatus(ctx, sess.OrgID, sess.AgentID, domain.AgentStatusActive, domain.AgentStatusIdle); err != nil {
		logger.Base().Warn("failed to return agent to idle",
			zap.String("agent_id", sess.AgentID), zap.Error(err))
	}

	if r.redis != nil {
		key := r.redis.GenerateKey(rediscache.SessionPresence, sess.CallID)
		if err := r.redis.DelValue(ctx, key); err != nil {
			logger.Base().Warn("failed to clear session presence",
				zap.String("call_id", sess.CallID), zap.Error(err))
		}
	}

	eventType := domain.EventCallEnded
	if outcome == OutcomeError {
		eventType = domain.EventError
	}
	r.emitter.Emit(ctx, sess.OrgID, eventType, sess.CallID, map[string]interface{}{
		"outcome":       string(outcome),
		"interruptions": sess.Interruptions(),
		"duration_sec":  time.Since(sess.StartedAt()).Seconds(),
	})
	_ = sess.Bus.Close()
	logger.Base().Info("session closed",
		zap.String("call_id", sess.CallID),
		zap.String("outcome", string(outcome)))
}

// CloseAll drains every session, used during shutdown.
func (r *Registry) CloseAll(outcome Outcome) {
	r.mu.RLock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	for _, id := range ids {
		r.Close(id, outcome)
	}
}

func (r *Registry) announce(ctx context.Context, sess *Session) {
	if r.redis == nil {
		return
	}
	data, err := json.Marshal(presence{
		OrgID:      sess.OrgID,
		AgentID:    sess.AgentID,
		InstanceID: r.instanceID,
		StartedAt:  sess.StartedAt(),
	})
	if err != nil {
		return
	}
	key := r.redis.GenerateKey(rediscache.SessionPresence, sess.CallID)
	if err := r.redis.SetValue(ctx, key, string(data), presenceTTL); err != nil {
		logger.Base().Warn("failed to announce session presence",
			zap.String("call_id", sess.CallID), zap.Error(err))
	}
}

func (r *Registry) revertAgent(orgID, agentID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.agents.TransitionStatus(ctx, orgID, agentID, domain.AgentStatusActive, domain.AgentStatusIdle); err != nil {
		logger.Base().Warn("failed to revert agent status",
			zap.String("agent_id", agentID), zap.Error(err))
	}
}
