package playback

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/centralita-ai/voice-orchestrator/internal/bridge"
	"github.com/centralita-ai/voice-orchestrator/internal/core/event"
	"github.com/centralita-ai/voice-orchestrator/internal/tts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureSink struct {
	mu      sync.Mutex
	samples []int16
}

func (s *captureSink) WriteAudio(frame []int16) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = append(s.samples, frame...)
	return nil
}

func (s *captureSink) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.samples)
}

type fakeGen struct{ gen atomic.Uint64 }

func (g *fakeGen) Generation() uint64 { return g.gen.Load() }

func chunkOf(gen, seq uint64, frames int) tts.Chunk {
	return tts.Chunk{
		Generation: gen,
		Seq:        seq,
		Samples:    make([]int16, frames*bridge.CanonicalFrame),
	}
}

func waitFor(t *testing.T, cond func() bool, within time.Duration) {
	t.Helper()
	deadline := time.Now().Add(within)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition never met")
}

func TestControllerPlaysAndReportsFinished(t *testing.T) {
	sink := &captureSink{}
	gens := &fakeGen{}
	bus := event.NewBus()

	var finished atomic.Bool
	bus.Subscribe(event.PlaybackFinished, func(*event.Event) { finished.Store(true) })

	c := NewController("call-1", "org-1", sink, gens, bus)
	c.Start()
	defer c.Close()

	c.Enqueue(chunkOf(0, 0, 3))

	waitFor(t, finished.Load, 2*time.Second)
	assert.Equal(t, 3*bridge.CanonicalFrame, sink.total())
	assert.False(t, c.IsSpeaking())
	assert.Equal(t, 60*time.Millisecond, c.PlayedUntil())
}

func TestControllerDiscardsStaleGeneration(t *testing.T) {
	sink := &captureSink{}
	gens := &fakeGen{}
	bus := event.NewBus()

	var finished atomic.Bool
	bus.Subscribe(event.PlaybackFinished, func(*event.Event) { finished.Store(true) })

	c := NewController("call-1", "org-1", sink, gens, bus)
	c.Start()
	defer c.Close()

	// the streamer moved on before this chunk played
	gens.gen.Store(1)
	c.Enqueue(chunkOf(0, 0, 2))
	c.Enqueue(chunkOf(1, 0, 1))

	waitFor(t, finished.Load, 2*time.Second)
	assert.Equal(t, bridge.CanonicalFrame, sink.total())
}

func TestControllerCancelStopsMidChunk(t *testing.T) {
	sink := &captureSink{}
	gens := &fakeGen{}
	bus := event.NewBus()

	var cancelled atomic.Bool
	bus.Subscribe(event.PlaybackCancelled, func(*event.Event) { cancelled.Store(true) })

	c := NewController("call-1", "org-1", sink, gens, bus)
	c.Start()
	defer c.Close()

	c.Enqueue(chunkOf(0, 0, 100)) // two seconds of audio
	waitFor(t, func() bool { return c.IsSpeaking() }, 2*time.Second)

	c.Cancel()
	require.True(t, cancelled.Load())
	assert.False(t, c.IsSpeaking())

	// allow any frame already past the speaking check to land
	time.Sleep(50 * time.Millisecond)
	written := sink.total()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, written, sink.total())
}

func TestControllerCancelWhileSilentIsQuiet(t *testing.T) {
	bus := event.NewBus()
	var cancelled atomic.Bool
	bus.Subscribe(event.PlaybackCancelled, func(*event.Event) { cancelled.Store(true) })

	c := NewController("call-1", "org-1", &captureSink{}, &fakeGen{}, bus)
	c.Start()
	defer c.Close()

	c.Cancel()
	assert.False(t, cancelled.Load())
}

func TestControllerDropsOutOfOrderSeq(t *testing.T) {
	sink := &captureSink{}
	gens := &fakeGen{}
	bus := event.NewBus()

	var finished atomic.Bool
	bus.Subscribe(event.PlaybackFinished, func(*event.Event) { finished.Store(true) })

	c := NewController("call-1", "org-1", sink, gens, bus)
	c.Start()
	defer c.Close()

	// seq 1 without seq 0 is a remnant of a cancel race
	c.Enqueue(tts.Chunk{Generation: 0, Seq: 1, Samples: make([]int16, bridge.CanonicalFrame)})
	c.Enqueue(chunkOf(0, 0, 1))

	waitFor(t, finished.Load, 2*time.Second)
	assert.Equal(t, bridge.CanonicalFrame, sink.total())
}
