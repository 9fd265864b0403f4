package event

import (
	"time"
)

// Type identifies a session event. The set is closed: components publish
// and subscribe only to the constants below.
type Type string

const (
	// Ingress events
	IngressSpeech       Type = "ingress.speech"       // first speech energy in a quiet period
	IngressSegment      Type = "ingress.segment"      // a bounded audio segment is ready
	IngressInterruption Type = "ingress.interruption" // caller spoke while the assistant was speaking
	IngressClosed       Type = "ingress.closed"       // the bridge closed the stream

	// Playback events
	PlaybackStarted   Type = "playback.started"
	PlaybackFinished  Type = "playback.finished"
	PlaybackCancelled Type = "playback.cancelled"

	// Turn events
	TurnCommitted     Type = "turn.committed"
	TurnClarification Type = "turn.clarification"

	// Call lifecycle
	CallStarted Type = "call.started"
	CallEnded   Type = "call.ended"
	CallError   Type = "call.error"

	// Degradation
	DependencyDegraded Type = "dependency.degraded"

	// Bridge control messages
	BridgeDTMF     Type = "bridge.dtmf"
	BridgeMetadata Type = "bridge.metadata"
)

// Event is one session event.
type Event struct {
	Type      Type        `json:"type"`
	CallID    string      `json:"call_id"`
	OrgID     string      `json:"org_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
	Error     error       `json:"-"`
}

// SegmentData carries a ready audio segment downstream.
type SegmentData struct {
	Samples    []int16       // PCM 16-bit mono, canonical 16 kHz
	SampleRate int
	Duration   time.Duration
	StartedAt  time.Time
	Flushed    bool // produced by an explicit flush rather than silence
}

// InterruptionData attributes a barge-in to a playback position.
type InterruptionData struct {
	PlayedUntil time.Duration // assistant audio played when the caller spoke
	Energy      float64
}

// DegradedData names the stage that was skipped.
type DegradedData struct {
	Stage  string `json:"stage"`
	Reason string `json:"reason"`
}

// DTMFData carries a bridge DTMF control message.
type DTMFData struct {
	Digit string `json:"digit"`
}

// New creates an event stamped now.
func New(t Type, callID string) *Event {
	return &Event{Type: t, CallID: callID, Timestamp: time.Now()}
}

// WithOrg attaches the org id.
func (e *Event) WithOrg(orgID string) *Event {
	e.OrgID = orgID
	return e
}

// WithData attaches a payload.
func (e *Event) WithData(data interface{}) *Event {
	e.Data = data
	return e
}

// WithError attaches an error.
func (e *Event) WithError(err error) *Event {
	e.Error = err
	return e
}
