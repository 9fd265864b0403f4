// Package bridge implements the telephony bridge protocol: one websocket
// per call carrying 20 ms frames of 16-bit little-endian mono PCM as binary
// messages and JSON control messages as text messages. The opening text
// message is the handshake identifying the call.
package bridge

import (
	"encoding/binary"
	"fmt"
)

// Frame timing and the canonical internal sample rate.
const (
	FrameDuration   = 20 // milliseconds
	CanonicalRate   = 16000
	NarrowbandRate  = 8000
	BytesPerSample  = 2
	CanonicalFrame  = CanonicalRate * FrameDuration / 1000 // samples per frame at 16 kHz
	NarrowbandFrame = NarrowbandRate * FrameDuration / 1000
)

// Handshake is the opening message of a bridge stream.
type Handshake struct {
	Type       string `json:"type"` // always "start"
	CallID     string `json:"call_id"`
	OrgID      string `json:"org_id"`
	AgentID    string `json:"agent_id"`
	CallerID   string `json:"caller_id"`
	SampleRate int    `json:"sample_rate"` // 8000 or 16000
}

// Validate checks the handshake fields.
func (h *Handshake) Validate() error {
	if h.Type != "start" {
		return fmt.Errorf("unexpected handshake type %q", h.Type)
	}
	if h.CallID == "" || h.OrgID == "" || h.AgentID == "" {
		return fmt.Errorf("handshake missing call, org or agent id")
	}
	if h.SampleRate != NarrowbandRate && h.SampleRate != CanonicalRate {
		return fmt.Errorf("unsupported sample rate %d", h.SampleRate)
	}
	return nil
}

// Control is a JSON control message on an established stream.
type Control struct {
	Type     string                 `json:"type"` // hangup | dtmf | metadata
	Digit    string                 `json:"digit,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Control message types.
const (
	ControlHangup   = "hangup"
	ControlDTMF     = "dtmf"
	ControlMetadata = "metadata"
)

// DecodeFrame converts a binary frame into samples. The byte length must be
// even; short or long frames are accepted (the segmenter rebuilds timing
// from sample counts).
func DecodeFrame(data []byte) ([]int16, error) {
	if len(data)%BytesPerSample != 0 {
		return nil, fmt.Errorf("odd frame length %d", len(data))
	}
	samples := make([]int16, len(data)/BytesPerSample)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*BytesPerSample:]))
	}
	return samples, nil
}

// EncodeFrame converts samples into a binary frame.
func EncodeFrame(samples []int16) []byte {
	data := make([]byte, len(samples)*BytesPerSample)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(data[i*BytesPerSample:], uint16(s))
	}
	return data
}

// Upsample8to16 converts narrowband samples to the canonical rate by
// linear interpolation. Good enough for VAD and STT framing; the model
// services do their own resampling.
func Upsample8to16(in []int16) []int16 {
	if len(in) == 0 {
		return nil
	}
	out := make([]int16, len(in)*2)
	for i, s := range in {
		out[i*2] = s
		if i+1 < len(in) {
			out[i*2+1] = int16((int32(s) + int32(in[i+1])) / 2)
		} else {
			out[i*2+1] = s
		}
	}
	return out
}
