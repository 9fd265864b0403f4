// Package playback owns the single source of truth for "the assistant is
// speaking". It paces synthesized audio to the bridge in real time,
// tracks how much has been played and supports an atomic cancel that
// discards everything pending.
package playback

import (
	"context"
	"sync"
	"time"

	"github.com/centralita-ai/voice-orchestrator/internal/bridge"
	"github.com/centralita-ai/voice-orchestrator/internal/core/event"
	"github.com/centralita-ai/voice-orchestrator/internal/tts"
	"github.com/centralita-ai/voice-orchestrator/pkg/logger"
	"go.uber.org/zap"
)

// AudioSink receives paced frames. The bridge connection implements it.
type AudioSink interface {
	WriteAudio(samples []int16) error
}

// GenerationSource reports the current synthesis generation so stale
// chunks can be discarded after a cancel. The TTS streamer implements it.
type GenerationSource interface {
	Generation() uint64
}

// Controller paces assistant audio to the bridge.
type Controller struct {
	callID string
	orgID  string
	sink   AudioSink
	gens   GenerationSource
	bus    event.Bus

	queue  chan tts.Chunk
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu          sync.Mutex
	speaking    bool
	playedUntil time.Duration
	nextSeq     uint64
	lastGen     uint64
}

// NewController builds the playback controller for one call.
func NewController(callID, orgID string, sink AudioSink, gens GenerationSource, bus event.Bus) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		callID: callID,
		orgID:  orgID,
		sink:   sink,
		gens:   gens,
		bus:    bus,
		queue:  make(chan tts.Chunk, 16),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// Start launches the pacing goroutine.
func (c *Controller) Start() {
	go c.run()
}

// Enqueue hands one synthesized chunk to playback.
func (c *Controller) Enqueue(chunk tts.Chunk) {
	select {
	case c.queue <- chunk:
	case <-c.ctx.Done():
	}
}

// IsSpeaking reports whether assistant audio is being paced right now.
func (c *Controller) IsSpeaking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speaking
}

// PlayedUntil returns how much of the current assistant utterance has
// been delivered to the bridge. Monotonic within an utterance.
func (c *Controller) PlayedUntil() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playedUntil
}

// Cancel stops playback immediately: the speaking bit drops, pending
// chunks are discarded and a cancelled event carries the final position.
// Safe to call from any goroutine and idempotent while silent.
func (c *Controller) Cancel() {
	c.mu.Lock()
	wasSpeaking := c.speaking
	played := c.playedUntil
	c.speaking = false
	c.mu.Unlock()

	// drain whatever is queued; stale generations go with it
	for {
		select {
		case <-c.queue:
		default:
			if wasSpeaking {
				_ = c.bus.Publish(event.New(event.PlaybackCancelled, c.callID).
					WithOrg(c.orgID).
					WithData(event.InterruptionData{PlayedUntil: played}))
			}
			return
		}
	}
}

// Close stops the pacing goroutine.
func (c *Controller) Close() {
	c.cancel()
	<-c.done
}

func (c *Controller) run() {
	defer close(c.done)
	for {
		select {
		case <-c.ctx.Done():
			return
		case chunk := <-c.queue:
			c.play(chunk)
		}
	}
}

func (c *Controller) play(chunk tts.Chunk) {
	if chunk.Generation != c.gens.Generation() {
		return
	}

	c.mu.Lock()
	if chunk.Generation != c.lastGen {
		c.lastGen = chunk.Generation
		c.nextSeq = 0
	}
	if chunk.Seq != c.nextSeq {
		// out of order after a cancel raced the queue
		c.mu.Unlock()
		return
	}
	c.nextSeq++
	starting := !c.speaking
	if starting {
		c.playedUntil = 0
	}
	c.speaking = true
	c.mu.Unlock()

	if starting {
		_ = c.bus.Publish(event.New(event.PlaybackStarted, c.callID).WithOrg(c.orgID))
	}

	frame := bridge.CanonicalFrame
	ticker := time.NewTicker(bridge.FrameDuration * time.Millisecond)
	defer ticker.Stop()
	for off := 0; off < len(chunk.Samples); off += frame {
		end := off + frame
		if end > len(chunk.Samples) {
			end = len(chunk.Samples)
		}
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
		}

		c.mu.Lock()
		if !c.speaking || chunk.Generation != c.gens.Generation() {
			// cancelled mid-chunk
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()

		if err := c.sink.WriteAudio(chunk.Samples[off:end]); err != nil {
			logger.Base().Warn("failed to write assistant audio",
				zap.String("call_id", c.callID), zap.Error(err))
			return
		}

		c.mu.Lock()
		c.playedUntil += samplesToDuration(end - off)
		c.mu.Unlock()
	}

	// finished this chunk; if nothing else is queued the utterance ended
	if len(c.queue) == 0 {
		c.mu.Lock()
		c.speaking = false
		played := c.playedUntil
		c.mu.Unlock()
		_ = c.bus.Publish(event.New(event.PlaybackFinished, c.callID).
			WithOrg(c.orgID).
			WithData(event.InterruptionData{PlayedUntil: played}))
	}
}

func samplesToDuration(n int) time.Duration {
	return time.Duration(n) * time.Second / bridge.CanonicalRate
}
