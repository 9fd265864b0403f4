// Package tts synthesizes assistant sentences. Each session runs one
// synthesis at a time with a queue of pending sentences; cancellation
// abandons the in-flight request and drains the queue.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/centralita-ai/voice-orchestrator/pkg/wav"
)

// Client calls the synthesis service.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a TTS client.
func NewClient(baseURL string) *Client {
	return &Client{baseURL: baseURL, client: &http.Client{}}
}

type synthesizeRequest struct {
	Text           string `json:"text"`
	VoiceProfileID string `json:"voice_profile_id,omitempty"`
	SampleRate     int    `json:"sample_rate"`
}

// Synthesized is one finished synthesis with its first-byte latency.
type Synthesized struct {
	Samples     []int16
	SampleRate  int
	FirstByte   time.Duration
	SynthTotal  time.Duration
}

// Synthesize renders one sentence to PCM. The response is a WAV body.
func (c *Client) Synthesize(ctx context.Context, text, voiceProfileID string, sampleRate int) (*Synthesized, error) {
	payload, err := json.Marshal(synthesizeRequest{Text: text, VoiceProfileID: voiceProfileID, SampleRate: sampleRate})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal synthesis request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/synthesize", bytes.NewBuffer(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create synthesis request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call synthesis service: %w", err)
	}
	defer resp.Body.Close()
	firstByte := time.Since(start)

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("synthesis service returned status %d: %s", resp.StatusCode, string(data))
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read synthesis response: %w", err)
	}
	samples, rate, err := wav.Decode(body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode synthesized audio: %w", err)
	}
	return &Synthesized{
		Samples:    samples,
		SampleRate: rate,
		FirstByte:  firstByte,
		SynthTotal: time.Since(start),
	}, nil
}
