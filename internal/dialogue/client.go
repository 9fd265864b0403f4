package dialogue

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Message is one turn of conversation memory.
type Message struct {
	Role    string `json:"role"` // user | assistant | tool
	Content string `json:"content"`
}

// Request is the chat stream request body.
type Request struct {
	ConversationID string     `json:"conversation_id"`
	System         string     `json:"system"`
	Memory         []Message  `json:"memory"`
	User           string     `json:"user"`
	Tools          []ToolSpec `json:"tools,omitempty"`
}

// StreamEvent is one event on the response stream.
type StreamEvent struct {
	Type      string          `json:"type"` // text | tool_call | done
	Delta     string          `json:"delta,omitempty"`
	Name      ToolName        `json:"name,omitempty"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	Usage     *Usage          `json:"usage,omitempty"`
}

// Usage is the token accounting reported at stream end.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Client talks to the LLM service. Responses stream as Server-Sent-Events
// or as newline-delimited JSON; both shapes are accepted.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a dialogue client. Deadlines come from the caller's
// context so a long assistant turn is not cut off by a client timeout.
func NewClient(baseURL string) *Client {
	return &Client{baseURL: baseURL, client: &http.Client{}}
}

// Stream opens the chat stream and invokes onEvent for every event until
// the stream ends, the context is cancelled or the service reports done.
func (c *Client) Stream(ctx context.Context, req Request, onEvent func(StreamEvent) error) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal chat request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/stream", bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("failed to create chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to open chat stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("chat stream returned status %d: %s", resp.StatusCode, string(data))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		line = strings.TrimPrefix(line, "data: ")
		if line == "[DONE]" {
			return nil
		}
		var ev StreamEvent
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			return fmt.Errorf("failed to parse stream event: %w", err)
		}
		if err := onEvent(ev); err != nil {
			return err
		}
		if ev.Type == "done" {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("chat stream broke: %w", err)
	}
	return nil
}

// EmbedText returns the service's embedding for a short text, used by the
// offline corrector's vector stage.
func (c *Client) EmbedText(ctx context.Context, text string) ([]float32, error) {
	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/embeddings", bytes.NewBuffer(payload))
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
	return out.Embedding, nil
}
