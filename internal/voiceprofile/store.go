// Package voiceprofile keeps per-call speaker embeddings. A profile is
// built once per call from the first seconds of clean speech and is
// dropped the moment the call closes; embeddings never touch disk.
package voiceprofile

import (
	"context"
	"sync"
	"time"

	"github.com/centralita-ai/voice-orchestrator/internal/bridge"
	"github.com/centralita-ai/voice-orchestrator/pkg/logger"
	"go.uber.org/zap"
)

// Embedder produces a speaker embedding from clean speech.
type Embedder interface {
	Embed(ctx context.Context, samples []int16) ([]float32, error)
}

// Store holds the in-memory embeddings for live calls.
type Store struct {
	mu       sync.RWMutex
	profiles map[string][]float32
}

// NewStore creates an empty profile store.
func NewStore() *Store {
	return &Store{profiles: make(map[string][]float32)}
}

// Get returns the embedding for a call, or nil when none exists yet.
func (s *Store) Get(callID string) []float32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profiles[callID]
}

// Delete drops the embedding for a closed call.
func (s *Store) Delete(callID string) {
	s.mu.Lock()
	delete(s.profiles, callID)
	s.mu.Unlock()
}

// Enroller accumulates clean speech for one call until the enrollment
// window is full, then asks the embedder for a profile exactly once.
type Enroller struct {
	callID   string
	store    *Store
	embedder Embedder
	needed   int

	mu       sync.Mutex
	buf      []int16
	enrolled bool
	pending  bool
}

// NewEnroller builds an enroller that fires after window of speech.
func NewEnroller(callID string, store *Store, embedder Embedder, window time.Duration) *Enroller {
	return &Enroller{
		callID:   callID,
		store:    store,
		embedder: embedder,
		needed:   int(int64(window) * bridge.CanonicalRate / int64(time.Second)),
	}
}

// Observe feeds denoised speech into the enrollment buffer. When the
// window fills the embedding is created on the calling goroutine; later
// observations are no-ops.
func (e *Enroller) Observe(ctx context.Context, samples []int16) {
	if e.embedder == nil {
		return
	}
	e.mu.Lock()
	if e.enrolled || e.pending {
		e.mu.Unlock()
		return
	}
	e.buf = append(e.buf, samples...)
	if len(e.buf) < e.needed {
		e.mu.Unlock()
		return
	}
	clip := e.buf[:e.needed]
	e.pending = true
	e.mu.Unlock()

	embedding, err := e.embedder.Embed(ctx, clip)

	e.mu.Lock()
	e.pending = false
	if err != nil {
		// keep the buffer and retry from the next segment
		logger.Base().Warn("voice profile enrollment failed",
			zap.String("call_id", e.callID), zap.Error(err))
		e.mu.Unlock()
		return
	}
	e.enrolled = true
	e.buf = nil
	e.mu.Unlock()

	e.store.mu.Lock()
	e.store.profiles[e.callID] = embedding
	e.store.mu.Unlock()
	logger.Base().Info("voice profile enrolled",
		zap.String("call_id", e.callID), zap.Int("dims", len(embedding)))
}

// Enrolled reports whether the profile exists.
func (e *Enroller) Enrolled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enrolled
}
