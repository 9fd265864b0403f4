package ingress

import (
	"testing"
	"time"

	"github.com/centralita-ai/voice-orchestrator/internal/bridge"
	"github.com/centralita-ai/voice-orchestrator/internal/config"
	"github.com/centralita-ai/voice-orchestrator/internal/core/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 20 ms at the canonical rate.
func loudFrame() []int16 {
	frame := make([]int16, bridge.CanonicalFrame)
	for i := range frame {
		frame[i] = 3000
	}
	return frame
}

func quietFrame() []int16 {
	return make([]int16, bridge.CanonicalFrame)
}

type busRecorder struct {
	bus    event.Bus
	events []*event.Event
}

func newBusRecorder(t *testing.T) *busRecorder {
	t.Helper()
	r := &busRecorder{bus: event.NewBus()}
	for _, typ := range []event.Type{
		event.IngressSpeech, event.IngressSegment,
		event.IngressInterruption, event.IngressClosed,
	} {
		r.bus.Subscribe(typ, func(ev *event.Event) { r.events = append(r.events, ev) })
	}
	return r
}

func (r *busRecorder) ofType(t event.Type) []*event.Event {
	var out []*event.Event
	for _, ev := range r.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

type fakePlayer struct {
	speaking bool
	played   time.Duration
}

func (f *fakePlayer) IsSpeaking() bool           { return f.speaking }
func (f *fakePlayer) PlayedUntil() time.Duration { return f.played }

func TestSegmenterPublishesSpeechOnFirstLoudFrame(t *testing.T) {
	rec := newBusRecorder(t)
	s := NewSegmenter("call-1", "org-1", config.DefaultPipeline(), rec.bus)

	s.Feed(quietFrame())
	assert.Empty(t, rec.events)

	s.Feed(loudFrame())
	s.Feed(loudFrame())
	require.Len(t, rec.ofType(event.IngressSpeech), 1)
}

func TestSegmenterCutsOnSilence(t *testing.T) {
	rec := newBusRecorder(t)
	cfg := config.DefaultPipeline()
	s := NewSegmenter("call-1", "org-1", cfg, rec.bus)

	// 400 ms of speech, then enough silence to close the segment
	for i := 0; i < 20; i++ {
		s.Feed(loudFrame())
	}
	silenceFrames := int(cfg.MinSilence / (bridge.FrameDuration * time.Millisecond))
	for i := 0; i < silenceFrames; i++ {
		s.Feed(quietFrame())
	}

	segs := rec.ofType(event.IngressSegment)
	require.Len(t, segs, 1)
	data := segs[0].Data.(event.SegmentData)
	assert.Equal(t, bridge.CanonicalRate, data.SampleRate)
	assert.Equal(t, 400*time.Millisecond, data.Duration)
	assert.Len(t, data.Samples, 20*bridge.CanonicalFrame)
	assert.False(t, data.Flushed)
}

func TestSegmenterDropsTooShortSpeech(t *testing.T) {
	rec := newBusRecorder(t)
	cfg := config.DefaultPipeline()
	s := NewSegmenter("call-1", "org-1", cfg, rec.bus)

	// 100 ms burst, below MinSpeech
	for i := 0; i < 5; i++ {
		s.Feed(loudFrame())
	}
	silenceFrames := int(cfg.MinSilence / (bridge.FrameDuration * time.Millisecond))
	for i := 0; i < silenceFrames; i++ {
		s.Feed(quietFrame())
	}

	assert.Empty(t, rec.ofType(event.IngressSegment))
	// a later utterance still opens a fresh segment
	s.Feed(loudFrame())
	assert.Len(t, rec.ofType(event.IngressSpeech), 2)
}

func TestSegmenterFlushClosesOpenSegment(t *testing.T) {
	rec := newBusRecorder(t)
	s := NewSegmenter("call-1", "org-1", config.DefaultPipeline(), rec.bus)

	for i := 0; i < 20; i++ {
		s.Feed(loudFrame())
	}
	s.Flush()

	segs := rec.ofType(event.IngressSegment)
	require.Len(t, segs, 1)
	assert.True(t, segs[0].Data.(event.SegmentData).Flushed)

	// nothing buffered, second flush is a no-op
	s.Flush()
	assert.Len(t, rec.ofType(event.IngressSegment), 1)
}

func TestSegmenterCutsAtMaxDuration(t *testing.T) {
	rec := newBusRecorder(t)
	cfg := config.DefaultPipeline()
	s := NewSegmenter("call-1", "org-1", cfg, rec.bus)

	frames := int(cfg.MaxSegmentDuration / (bridge.FrameDuration * time.Millisecond))
	for i := 0; i < frames; i++ {
		s.Feed(loudFrame())
	}

	segs := rec.ofType(event.IngressSegment)
	require.Len(t, segs, 1)
	assert.Equal(t, cfg.MaxSegmentDuration, segs[0].Data.(event.SegmentData).Duration)
}

func TestSegmenterReportsBargeInBeforeSpeech(t *testing.T) {
	rec := newBusRecorder(t)
	s := NewSegmenter("call-1", "org-1", config.DefaultPipeline(), rec.bus)
	s.BindPlayer(&fakePlayer{speaking: true, played: 1200 * time.Millisecond})

	s.Feed(loudFrame())

	require.GreaterOrEqual(t, len(rec.events), 2)
	assert.Equal(t, event.IngressInterruption, rec.events[0].Type)
	assert.Equal(t, event.IngressSpeech, rec.events[1].Type)

	data := rec.events[0].Data.(event.InterruptionData)
	assert.Equal(t, 1200*time.Millisecond, data.PlayedUntil)
	assert.Greater(t, data.Energy, 0.0)
}

func TestSegmenterNoBargeInWhenAssistantSilent(t *testing.T) {
	rec := newBusRecorder(t)
	s := NewSegmenter("call-1", "org-1", config.DefaultPipeline(), rec.bus)
	s.BindPlayer(&fakePlayer{speaking: false})

	s.Feed(loudFrame())
	assert.Empty(t, rec.ofType(event.IngressInterruption))
}

func TestSegmenterCloseDropsPartialSegment(t *testing.T) {
	rec := newBusRecorder(t)
	s := NewSegmenter("call-1", "org-1", config.DefaultPipeline(), rec.bus)

	for i := 0; i < 20; i++ {
		s.Feed(loudFrame())
	}
	s.Close()

	assert.Empty(t, rec.ofType(event.IngressSegment))
	require.Len(t, rec.ofType(event.IngressClosed), 1)

	// feeding after close is ignored
	s.Feed(loudFrame())
	assert.Len(t, rec.ofType(event.IngressSpeech), 1)
}

func TestEnergyVADHysteresis(t *testing.T) {
	v := NewEnergyVAD(0.02)
	assert.False(t, v.Process(quietFrame()))
	assert.True(t, v.Process(loudFrame()))

	// between release and attack: stays speaking once started
	mid := make([]int16, bridge.CanonicalFrame)
	for i := range mid {
		mid[i] = 500 // RMS ~0.015, above release 0.012, below attack 0.02
	}
	assert.True(t, v.Process(mid))
	assert.False(t, v.Process(quietFrame()))
	assert.False(t, v.Process(mid))
}

func TestRMSNormalized(t *testing.T) {
	assert.Equal(t, 0.0, RMS(nil))
	full := []int16{-32768, -32768}
	assert.InDelta(t, 1.0, RMS(full), 0.001)
}
