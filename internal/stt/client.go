// Package stt wraps the speech-to-text service. Each session keeps at
// most one request in flight with a short queue behind it; a process-wide
// semaphore caps concurrent requests across all sessions.
package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/centralita-ai/voice-orchestrator/internal/bridge"
	"github.com/centralita-ai/voice-orchestrator/pkg/wav"
)

// Word is one recognized word with its confidence and timing.
type Word struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	StartMS    int64   `json:"start_ms"`
	EndMS      int64   `json:"end_ms"`
}

// Transcription is the service's read of one segment.
type Transcription struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Words      []Word  `json:"words"`
	Language   string  `json:"language"`
}

// Client calls the enhanced transcription endpoint.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates an STT client. Per-request deadlines come from the
// caller's context, scaled to segment length, so no client-level timeout
// is set here.
func NewClient(baseURL string) *Client {
	return &Client{baseURL: baseURL, client: &http.Client{}}
}

// Transcribe sends one segment as a multipart WAV upload.
func (c *Client) Transcribe(ctx context.Context, samples []int16, language string, callID string) (*Transcription, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("audio", "segment.wav")
	if err != nil {
		return nil, fmt.Errorf("failed to create multipart field: %w", err)
	}
	if _, err := fw.Write(wav.Encode(samples, bridge.CanonicalRate)); err != nil {
		return nil, fmt.Errorf("failed to write audio field: %w", err)
	}
	_ = mw.WriteField("conversation_id", callID)
	_ = mw.WriteField("enable_correction", "true")
	_ = mw.WriteField("enable_clarification", "true")
	if language != "" {
		_ = mw.WriteField("language", language)
	}
	_ = mw.WriteField("sample_rate", strconv.Itoa(bridge.CanonicalRate))
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/transcribe/enhanced", &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create transcription request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call transcription service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("transcription service returned status %d: %s", resp.StatusCode, string(data))
	}
	var out Transcription
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode transcription response: %w", err)
	}
	return &out, nil
}

// TimeoutFor scales the base timeout to the segment length. A segment at
// the maximum duration gets the full base timeout; shorter segments get
// proportionally less, floored at a quarter of the base.
func TimeoutFor(base time.Duration, segment, maxSegment time.Duration) time.Duration {
	if maxSegment <= 0 || segment >= maxSegment {
		return base
	}
	scaled := time.Duration(int64(base) * int64(segment) / int64(maxSegment))
	if floor := base / 4; scaled < floor {
		return floor
	}
	return scaled
}
