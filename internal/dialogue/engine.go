package dialogue

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/centralita-ai/voice-orchestrator/internal/domain"
	"github.com/centralita-ai/voice-orchestrator/pkg/logger"
	"go.uber.org/zap"
)

// toolRoundLimit bounds tool-call continuation rounds in one turn so a
// misbehaving model cannot loop forever.
const toolRoundLimit = 4

// toolExecTimeout bounds one tool handler. Tool execution survives turn
// cancellation; this is its own deadline.
const toolExecTimeout = 10 * time.Second

// Engine drives one assistant turn: it streams the model response,
// dispatches tool calls and hands sentence chunks to the caller as they
// complete.
type Engine struct {
	client   *Client
	registry *ToolRegistry
	minWords int
}

// NewEngine builds the dialogue engine.
func NewEngine(client *Client, registry *ToolRegistry, minChunkWords int) *Engine {
	return &Engine{client: client, registry: registry, minWords: minChunkWords}
}

// TurnInput is everything one assistant turn needs.
type TurnInput struct {
	ConversationID string
	System         string
	Memory         *Memory
	User           string
}

// TurnResult summarizes a finished assistant turn.
type TurnResult struct {
	Text      string
	ToolCalls []ToolCall
	Usage     *Usage
}

// Respond runs one assistant turn. onChunk receives each sentence chunk
// as it completes; returning an error from it aborts the stream. When ctx
// is cancelled mid-turn any in-flight tool call still completes, but the
// turn's text is not committed by the caller.
func (e *Engine) Respond(ctx context.Context, in TurnInput, onChunk func(string) error) (*TurnResult, error) {
	res := &TurnResult{}
	chunker := NewSentenceChunker(e.minWords)
	var full strings.Builder
	extra := []Message{}

	for round := 0; round < toolRoundLimit; round++ {
		req := Request{
			ConversationID: in.ConversationID,
			System:         in.System,
			Memory:         append(in.Memory.Snapshot(), extra...),
			User:           in.User,
			Tools:          Catalog,
		}
		if round > 0 {
			// continuation after tool results; the utterance was already sent
			req.User = ""
		}

		var roundCalls []ToolCall
		err := e.client.Stream(ctx, req, func(ev StreamEvent) error {
			switch ev.Type {
			case "text":
				full.WriteString(ev.Delta)
				for _, chunk := range chunker.Feed(ev.Delta) {
					if err := onChunk(chunk); err != nil {
						return err
					}
				}
			case "tool_call":
				roundCalls = append(roundCalls, ToolCall{Name: ev.Name, Arguments: ev.Arguments})
			case "done":
				res.Usage = ev.Usage
			}
			return nil
		})
		if err != nil {
			// a cancelled turn still runs tool calls it already received
			if ctx.Err() != nil && len(roundCalls) > 0 {
				e.runTools(ctx, roundCalls)
				res.ToolCalls = append(res.ToolCalls, roundCalls...)
			}
			return res, err
		}

		if len(roundCalls) == 0 {
			break
		}
		res.ToolCalls = append(res.ToolCalls, roundCalls...)
		results := e.runTools(ctx, roundCalls)
		for i, call := range roundCalls {
			extra = append(extra,
				Message{Role: "assistant", Content: fmt.Sprintf("[tool_call] %s %s", call.Name, string(call.Arguments))},
				Message{Role: "tool", Content: results[i]},
			)
		}
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
	}

	if tail, ok := chunker.Flush(); ok {
		if err := onChunk(tail); err != nil {
			return res, err
		}
	}
	res.Text = strings.TrimSpace(full.String())
	return res, nil
}

// runTools executes tool calls on a context detached from turn
// cancellation: an interruption must not abort a side effect halfway.
func (e *Engine) runTools(ctx context.Context, calls []ToolCall) []string {
	detached, cancel := context.WithTimeout(context.WithoutCancel(ctx), toolExecTimeout)
	defer cancel()

	results := make([]string, len(calls))
	for i, call := range calls {
		out, err := e.registry.Dispatch(detached, call)
		if err != nil {
			logger.Base().Warn("tool dispatch failed",
				zap.String("tool", string(call.Name)), zap.Error(err))
			results[i] = fmt.Sprintf(`{"error": %q}`, err.Error())
			continue
		}
		data, err := json.Marshal(out)
		if err != nil {
			results[i] = `{"error": "unserializable tool result"}`
			continue
		}
		results[i] = string(data)
	}
	return results
}

// BuildSystemPrompt assembles the turn's system prompt from the agent's
// context profile, its runtime config and the sentiment context flags.
func BuildSystemPrompt(profile *domain.ContextProfile, runtime domain.JSONB, flags []string) string {
	var b strings.Builder
	if profile != nil && profile.SystemPrompt != "" {
		prompt := profile.SystemPrompt
		for k, v := range profile.Variables {
			prompt = strings.ReplaceAll(prompt, "{{"+k+"}}", fmt.Sprint(v))
		}
		b.WriteString(prompt)
	} else {
		b.WriteString("Eres un asistente telefónico profesional y conciso.")
	}

	if tone, ok := runtime["tone"].(string); ok && tone != "" {
		b.WriteString("\nTono requerido: " + tone + ".")
	}
	if lang, ok := runtime["language"].(string); ok && lang != "" {
		b.WriteString("\nResponde siempre en: " + lang + ".")
	}

	if len(flags) > 0 {
		sorted := append([]string(nil), flags...)
		sort.Strings(sorted)
		b.WriteString("\nEstado de la conversación: " + strings.Join(sorted, ", ") + ".")
		for _, f := range sorted {
			switch f {
			case "repeated_question":
				b.WriteString("\nEl cliente repite una pregunta; responde de forma diferente y más clara.")
			case "user_frustrated":
				b.WriteString("\nEl cliente está frustrado; sé empático y directo.")
			case "escalation_request":
				b.WriteString("\nEl cliente pide hablar con una persona; ofrece la transferencia.")
			case "confused":
				b.WriteString("\nEl cliente está confundido; simplifica la explicación.")
			}
		}
	}
	return b.String()
}
