package ingress

import (
	"sync"
	"time"

	"github.com/centralita-ai/voice-orchestrator/internal/bridge"
	"github.com/centralita-ai/voice-orchestrator/internal/config"
	"github.com/centralita-ai/voice-orchestrator/internal/core/event"
	"github.com/centralita-ai/voice-orchestrator/pkg/logger"
	"go.uber.org/zap"
)

// SpeakingState reports whether assistant audio is currently playing and
// how much of it has been sent. The playback controller implements it.
type SpeakingState interface {
	IsSpeaking() bool
	PlayedUntil() time.Duration
}

// Segmenter consumes caller frames and publishes speech segments on the
// session bus. Frame timing is derived from sample counts at the canonical
// rate, never from wall clocks, so replayed audio segments identically.
type Segmenter struct {
	callID string
	orgID  string
	cfg    config.PipelineConfig
	bus    event.Bus
	vad    *EnergyVAD
	ring   *Ring
	player SpeakingState

	mu            sync.Mutex
	current       []int16
	silenceFrames int
	speechStarted bool
	segmentStart  time.Time
	closed        bool
}

// NewSegmenter wires a segmenter to the session bus. player may be nil
// until playback exists; interruptions are only detected once it is set.
func NewSegmenter(callID, orgID string, cfg config.PipelineConfig, bus event.Bus) *Segmenter {
	ringSamples := int(cfg.ProsodyWindow/time.Millisecond) * bridge.CanonicalRate / 1000
	return &Segmenter{
		callID: callID,
		orgID:  orgID,
		cfg:    cfg,
		bus:    bus,
		vad:    NewEnergyVAD(cfg.VADThreshold),
		ring:   NewRing(ringSamples),
	}
}

// BindPlayer attaches the playback state used for barge-in detection.
func (s *Segmenter) BindPlayer(player SpeakingState) {
	s.mu.Lock()
	s.player = player
	s.mu.Unlock()
}

// ProsodyWindow returns the recent audio window for the prosody stage.
func (s *Segmenter) ProsodyWindow() []int16 { return s.ring.Window() }

func (s *Segmenter) frames(d time.Duration) int {
	return int(d / (bridge.FrameDuration * time.Millisecond))
}

func samplesToDuration(n int) time.Duration {
	return time.Duration(n) * time.Second / bridge.CanonicalRate
}

// Feed consumes one canonical-rate frame from the bridge. Events are
// published after internal state settles; the bus dispatches them in
// publish order, so an interruption always precedes the segment that
// carries the interrupting speech.
func (s *Segmenter) Feed(frame []int16) {
	s.ring.Append(frame)
	isSpeech := s.vad.Process(frame)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}

	var pending []*event.Event
	if isSpeech {
		if s.player != nil && s.player.IsSpeaking() {
			pending = append(pending, event.New(event.IngressInterruption, s.callID).
				WithOrg(s.orgID).
				WithData(event.InterruptionData{PlayedUntil: s.player.PlayedUntil(), Energy: RMS(frame)}))
		}
		if !s.speechStarted {
			s.speechStarted = true
			s.segmentStart = time.Now()
			pending = append(pending, event.New(event.IngressSpeech, s.callID).WithOrg(s.orgID))
		}
		s.silenceFrames = 0
	} else if s.speechStarted {
		s.silenceFrames++
	}

	if s.speechStarted {
		s.current = append(s.current, frame...)
		switch {
		case s.silenceFrames >= s.frames(s.cfg.MinSilence):
			// trim the trailing silence out of the segment
			trail := s.silenceFrames * bridge.CanonicalFrame
			if trail < len(s.current) {
				if ev := s.cutLocked(s.current[:len(s.current)-trail], false); ev != nil {
					pending = append(pending, ev)
				}
			} else {
				s.resetLocked()
			}
		case samplesToDuration(len(s.current)) >= s.cfg.MaxSegmentDuration:
			if ev := s.cutLocked(s.current, false); ev != nil {
				pending = append(pending, ev)
			}
		}
	}
	s.mu.Unlock()

	for _, ev := range pending {
		_ = s.bus.Publish(ev)
	}
}

// Flush force-closes the current segment, if any. The turn controller
// calls it when the end-of-turn pause elapses before MinSilence would.
func (s *Segmenter) Flush() {
	s.mu.Lock()
	if s.closed || !s.speechStarted {
		s.mu.Unlock()
		return
	}
	ev := s.cutLocked(s.current, true)
	s.mu.Unlock()
	if ev != nil {
		_ = s.bus.Publish(ev)
	}
}

// Close drops any partial segment and publishes the stream-closed event.
func (s *Segmenter) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.current = nil
	s.mu.Unlock()
	_ = s.bus.Publish(event.New(event.IngressClosed, s.callID).WithOrg(s.orgID))
}

// cutLocked builds the segment event if the cut carries enough speech and
// resets state. Callers hold s.mu and publish the returned event after
// releasing it.
func (s *Segmenter) cutLocked(samples []int16, flushed bool) *event.Event {
	dur := samplesToDuration(len(samples))
	startedAt := s.segmentStart
	seg := make([]int16, len(samples))
	copy(seg, samples)
	s.resetLocked()
	if dur < s.cfg.MinSpeech {
		logger.Base().Debug("segment below minimum speech, dropped",
			zap.String("call_id", s.callID), zap.Duration("duration", dur))
		return nil
	}
	return event.New(event.IngressSegment, s.callID).
		WithOrg(s.orgID).
		WithData(event.SegmentData{
			Samples:    seg,
			SampleRate: bridge.CanonicalRate,
			Duration:   dur,
			StartedAt:  startedAt,
			Flushed:    flushed,
		})
}

func (s *Segmenter) resetLocked() {
	s.current = nil
	s.silenceFrames = 0
	s.speechStarted = false
}
