// Package session owns the in-memory call fabric: one Session per active
// call, found through the Registry, destroyed the moment the call ends.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/centralita-ai/voice-orchestrator/internal/core/event"
	"github.com/centralita-ai/voice-orchestrator/internal/domain"
	"github.com/centralita-ai/voice-orchestrator/pkg/logger"
	"go.uber.org/zap"
)

// State is the session lifecycle state.
type State string

const (
	StateActive   State = "active"
	StateDraining State = "draining" // bridge closed, partial work finishing
	StateClosed   State = "closed"
)

// TranscriptEntry is one committed line of the rolling transcript.
type TranscriptEntry struct {
	Role       domain.TurnRole
	Text       string
	Confidence float64
	At         time.Time
}

// Session is the transient state of one active call. Everything here
// dies with the call; durable facts go through the repositories.
type Session struct {
	CallID   string
	OrgID    string
	AgentID  string
	CallerID string
	Bus      event.Bus

	ctx    context.Context
	cancel context.CancelFunc

	mu             sync.Mutex
	state          State
	transcript     []TranscriptEntry
	clarifications int
	interruptions  int
	latencies      map[string][]time.Duration
	cleanups       []func()
	startedAt      time.Time
}

// New creates an active session with its own cancellation scope.
func New(callID, orgID, agentID, callerID string, bus event.Bus) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		CallID:    callID,
		OrgID:     orgID,
		AgentID:   agentID,
		CallerID:  callerID,
		Bus:       bus,
		ctx:       ctx,
		cancel:    cancel,
		state:     StateActive,
		latencies: make(map[string][]time.Duration),
		startedAt: time.Now(),
	}
}

// Context is the session's cancellation scope. Every outbound call made
// on behalf of the call derives from it, so Close aborts them all.
func (s *Session) Context() context.Context { return s.ctx }

// StartedAt returns when the session opened.
func (s *Session) StartedAt() time.Time { return s.startedAt }

// State returns the lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Drain marks that the bridge closed; the pipeline finishes partial work
// but accepts no new audio.
func (s *Session) Drain() {
	s.mu.Lock()
	if s.state == StateActive {
		s.state = StateDraining
	}
	s.mu.Unlock()
}

// OnClose registers cleanup run during Close, last registered first.
// Registering after close runs the cleanup immediately.
func (s *Session) OnClose(fn func()) {
	s.mu.Lock()
	closed := s.state == StateClosed
	if !closed {
		s.cleanups = append(s.cleanups, fn)
	}
	s.mu.Unlock()
	if closed {
		fn()
	}
}

// Close cancels the session scope and runs every registered cleanup in
// reverse order. Idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = StateClosed
	cleanups := s.cleanups
	s.cleanups = nil
	s.mu.Unlock()

	s.cancel()
	for i := len(cleanups) - 1; i >= 0; i-- {
		func(fn func()) {
			defer func() {
				if r := recover(); r != nil {
					logger.Base().Error("session cleanup panic",
						zap.String("call_id", s.CallID), zap.Any("panic", r))
				}
			}()
			fn()
		}(cleanups[i])
	}
}

// AppendTranscript commits one line to the rolling transcript.
func (s *Session) AppendTranscript(role domain.TurnRole, text string, confidence float64) {
	s.mu.Lock()
	s.transcript = append(s.transcript, TranscriptEntry{
		Role:       role,
		Text:       text,
		Confidence: confidence,
		At:         time.Now(),
	})
	s.mu.Unlock()
}

// Transcript returns a copy of the committed transcript.
func (s *Session) Transcript() []TranscriptEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TranscriptEntry, len(s.transcript))
	copy(out, s.transcript)
	return out
}

// TryClarify consumes one clarification slot; false when the per-call
// allowance is spent.
func (s *Session) TryClarify(max int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.clarifications >= max {
		return false
	}
	s.clarifications++
	return true
}

// CountInterruption increments and returns the interruption counter.
func (s *Session) CountInterruption() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interruptions++
	return s.interruptions
}

// Interruptions returns the interruption count so far.
func (s *Session) Interruptions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interruptions
}

// RecordLatency appends one per-stage latency sample.
func (s *Session) RecordLatency(stage string, d time.Duration) {
	s.mu.Lock()
	s.latencies[stage] = append(s.latencies[stage], d)
	s.mu.Unlock()
}

// Latencies returns a copy of the per-stage latency log.
func (s *Session) Latencies() map[string][]time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string][]time.Duration, len(s.latencies))
	for k, v := range s.latencies {
		out[k] = append([]time.Duration(nil), v...)
	}
	return out
}
