// Package preprocess runs the per-segment audio conditioning stages:
// denoising, primary speaker extraction and prosody analysis. Every stage
// is optional at runtime; a stage that fails or times out is skipped for
// that segment, never retried, and the segment continues unconditioned.
package preprocess

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/centralita-ai/voice-orchestrator/internal/bridge"
)

// Stage names used in degradation events and call events.
const (
	StageDenoise = "denoise"
	StageExtract = "extraction"
	StageProsody = "prosody"
)

// DenoiseClient calls the denoising service with raw PCM and receives
// cleaned PCM of the same length.
type DenoiseClient struct {
	baseURL string
	client  *http.Client
}

// NewDenoiseClient creates a denoise client. The timeout is the per-stage
// budget; the pipeline never waits longer than this for a cleaned segment.
func NewDenoiseClient(baseURL string, timeout time.Duration) *DenoiseClient {
	return &DenoiseClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// Denoise sends the segment and returns the cleaned samples.
func (c *DenoiseClient) Denoise(ctx context.Context, samples []int16) ([]int16, error) {
	body := bridge.EncodeFrame(samples)
	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/denoise", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create denoise request: %w", err)
	}
	req.Header.Set("Content-Type", "audio/l16")
	req.Header.Set("X-Sample-Rate", "16000")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call denoise service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("denoise service returned status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read denoise response: %w", err)
	}
	cleaned, err := bridge.DecodeFrame(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode denoised audio: %w", err)
	}
	if len(cleaned) != len(samples) {
		return nil, fmt.Errorf("denoise changed segment length from %d to %d", len(samples), len(cleaned))
	}
	return cleaned, nil
}

// ExtractClient calls the primary speaker extraction service. When the
// session has a voice profile embedding it is sent along so the service
// isolates the enrolled speaker instead of the loudest one.
type ExtractClient struct {
	baseURL string
	client  *http.Client
}

// NewExtractClient creates an extraction client.
func NewExtractClient(baseURL string, timeout time.Duration) *ExtractClient {
	return &ExtractClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type extractRequest struct {
	SampleRate int       `json:"sample_rate"`
	Audio      []int16   `json:"audio"`
	Profile    []float32 `json:"profile,omitempty"`
}

type extractResponse struct {
	Audio []int16 `json:"audio"`
}

// Extract isolates the primary speaker in the segment.
func (c *ExtractClient) Extract(ctx context.Context, samples []int16, profile []float32) ([]int16, error) {
	payload, err := json.Marshal(extractRequest{SampleRate: bridge.CanonicalRate, Audio: samples, Profile: profile})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal extraction request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/extract", bytes.NewBuffer(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create extraction request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call extraction service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("extraction service returned status %d", resp.StatusCode)
	}
	var out extractResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode extraction response: %w", err)
	}
	if len(out.Audio) != len(samples) {
		return nil, fmt.Errorf("extraction changed segment length from %d to %d", len(samples), len(out.Audio))
	}
	return out.Audio, nil
}

// Embed asks the extraction service for a speaker embedding from a clean
// window of speech. Used once per call to build the voice profile.
func (c *ExtractClient) Embed(ctx context.Context, samples []int16) ([]float32, error) {
	payload, err := json.Marshal(extractRequest{SampleRate: bridge.CanonicalRate, Audio: samples})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embedding request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/embed", bytes.NewBuffer(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call embedding endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding endpoint returned status %d", resp.StatusCode)
	}
	var out struct {
		Embedding []float32 `json:"embedding"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode embedding response: %w", err)
	}
	if len(out.Embedding) == 0 {
		return nil, fmt.Errorf("embedding endpoint returned an empty vector")
	}
	return out.Embedding, nil
}

// ProsodyResult is the acoustic read of the recent audio window.
type ProsodyResult struct {
	Tone          string  `json:"tone"` // calm | nervous | concerned | excited | angry
	PitchVariance float64 `json:"pitch_variance"`
	Energy        float64 `json:"energy"`
	IsQuestion    bool    `json:"is_question"` // rising terminal contour
	SpeechRate    float64 `json:"speech_rate"` // syllables per second estimate
}

// ProsodyClient calls the prosody analysis service over the rolling
// audio window.
type ProsodyClient struct {
	baseURL string
	client  *http.Client
}

// NewProsodyClient creates a prosody client.
func NewProsodyClient(baseURL string, timeout time.Duration) *ProsodyClient {
	return &ProsodyClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// Analyze returns the prosodic read of the window.
func (c *ProsodyClient) Analyze(ctx context.Context, window []int16) (*ProsodyResult, error) {
	payload, err := json.Marshal(extractRequest{SampleRate: bridge.CanonicalRate, Audio: window})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal prosody request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/analyze", bytes.NewBuffer(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create prosody request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call prosody service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("prosody service returned status %d", resp.StatusCode)
	}
	var out ProsodyResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode prosody response: %w", err)
	}
	return &out, nil
}
