package tts

import (
	"context"
	"sync"
	"time"

	"github.com/centralita-ai/voice-orchestrator/internal/bridge"
	"github.com/centralita-ai/voice-orchestrator/internal/config"
	"github.com/centralita-ai/voice-orchestrator/pkg/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Chunk is one synthesized sentence handed to playback. Generation
// increments on every cancel; playback drops chunks from a stale
// generation, and Seq keeps chunks ordered within one.
type Chunk struct {
	Generation uint64
	Seq        uint64
	Text       string
	Samples    []int16
	FirstByte  time.Duration
}

// Streamer serializes synthesis for one session.
type Streamer struct {
	client         *Client
	cap            *semaphore.Weighted
	cfg            config.PipelineConfig
	callID         string
	voiceProfileID string

	// OnChunk receives chunks in order on the streamer goroutine.
	OnChunk func(Chunk)
	// OnError is called when a synthesis fails; the sentence is skipped.
	OnError func(text string, err error)

	mu             sync.Mutex
	queue          []string
	generation     uint64
	seq            uint64
	inflightCancel context.CancelFunc
	wake           chan struct{}
	ctx            context.Context
	cancel         context.CancelFunc
	done           chan struct{}
}

// NewStreamer builds the per-session synthesis streamer. cap is the
// process-wide in-flight cap shared by all sessions.
func NewStreamer(client *Client, cap *semaphore.Weighted, cfg config.PipelineConfig, callID, voiceProfileID string) *Streamer {
	ctx, cancel := context.WithCancel(context.Background())
	return &Streamer{
		client:         client,
		cap:            cap,
		cfg:            cfg,
		callID:         callID,
		voiceProfileID: voiceProfileID,
		wake:           make(chan struct{}, 1),
		ctx:            ctx,
		cancel:         cancel,
		done:           make(chan struct{}),
	}
}

// Start launches the streamer goroutine.
func (s *Streamer) Start() {
	go s.run()
}

// Enqueue adds a sentence to the synthesis queue.
func (s *Streamer) Enqueue(text string) {
	s.mu.Lock()
	s.queue = append(s.queue, text)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Cancel abandons the in-flight synthesis, drains the queue and starts a
// new generation. Chunks from the old generation that were already
// emitted are discarded by playback.
func (s *Streamer) Cancel() {
	s.mu.Lock()
	s.queue = nil
	s.generation++
	s.seq = 0
	if s.inflightCancel != nil {
		s.inflightCancel()
	}
	s.mu.Unlock()
}

// Generation returns the current generation for playback gating.
func (s *Streamer) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// Close stops the streamer and waits for its goroutine.
func (s *Streamer) Close() {
	s.Cancel()
	s.cancel()
	<-s.done
}

func (s *Streamer) run() {
	defer close(s.done)
	for {
		s.mu.Lock()
		var text string
		var gen uint64
		have := len(s.queue) > 0
		if have {
			text = s.queue[0]
			s.queue = s.queue[1:]
			gen = s.generation
		}
		s.mu.Unlock()

		if !have {
			select {
			case <-s.ctx.Done():
				return
			case <-s.wake:
				continue
			}
		}
		s.synthesize(text, gen)
	}
}

func (s *Streamer) synthesize(text string, gen uint64) {
	acquire, cancelAcquire := context.WithTimeout(s.ctx, s.cfg.CapAcquireWait)
	err := s.cap.Acquire(acquire, 1)
	cancelAcquire()
	if err != nil {
		if s.ctx.Err() == nil && s.OnError != nil {
			s.OnError(text, err)
		}
		return
	}
	defer s.cap.Release(1)

	reqCtx, cancelReq := context.WithCancel(s.ctx)
	s.mu.Lock()
	if gen != s.generation {
		// cancelled while waiting for capacity
		s.mu.Unlock()
		cancelReq()
		return
	}
	s.inflightCancel = cancelReq
	s.mu.Unlock()

	out, err := s.client.Synthesize(reqCtx, text, s.voiceProfileID, bridge.CanonicalRate)

	s.mu.Lock()
	s.inflightCancel = nil
	stale := gen != s.generation
	var seq uint64
	if !stale {
		seq = s.seq
		s.seq++
	}
	s.mu.Unlock()
	cancelReq()

	if stale {
		return
	}
	if err != nil {
		if s.OnError != nil {
			s.OnError(text, err)
		}
		return
	}
	if out.FirstByte > s.cfg.TTSFirstByteTarget {
		logger.Base().Debug("synthesis first byte over target",
			zap.String("call_id", s.callID),
			zap.Duration("first_byte", out.FirstByte))
	}
	if s.OnChunk != nil {
		s.OnChunk(Chunk{
			Generation: gen,
			Seq:        seq,
			Text:       text,
			Samples:    out.Samples,
			FirstByte:  out.FirstByte,
		})
	}
}
