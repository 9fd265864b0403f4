// Package turn implements the per-session conversation state machine.
// Transitions outside the allowed edge set are programming errors and
// are surfaced, never silently absorbed.
package turn

import (
	"sync"
	"time"

	"github.com/centralita-ai/voice-orchestrator/internal/config"
	"github.com/centralita-ai/voice-orchestrator/internal/fault"
)

// State of the conversation.
type State string

const (
	Listening     State = "listening"
	UserTurn      State = "user_turn"
	ThinkingPause State = "thinking_pause"
	Clarifying    State = "clarifying"
	AssistantTurn State = "assistant_turn"
	Interrupted   State = "interrupted"
	Ended         State = "ended"
)

// allowed is the closed edge set. Ended is reachable from anywhere.
var allowed = map[State][]State{
	Listening:     {UserTurn},
	UserTurn:      {ThinkingPause, Clarifying, AssistantTurn, Listening},
	ThinkingPause: {UserTurn, Clarifying, AssistantTurn, Listening},
	Clarifying:    {Listening, Interrupted},
	AssistantTurn: {Interrupted, Listening},
	Interrupted:   {Listening, UserTurn},
	Ended:         {},
}

// Machine is one session's state machine.
type Machine struct {
	mu    sync.Mutex
	state State
}

// NewMachine starts in Listening.
func NewMachine() *Machine {
	return &Machine{state: Listening}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Transition moves to next, failing on an edge outside the allowed set.
func (m *Machine) Transition(next State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == Ended {
		return fault.Newf(fault.KindInvariant, "turn machine is ended, cannot enter %s", next)
	}
	if next == Ended {
		m.state = Ended
		return nil
	}
	for _, ok := range allowed[m.state] {
		if ok == next {
			m.state = next
			return nil
		}
	}
	return fault.Newf(fault.KindInvariant, "illegal turn transition %s -> %s", m.state, next)
}

// TryTransition moves to next only if the edge exists, reporting whether
// it did. Used where concurrent events race and losing is fine.
func (m *Machine) TryTransition(next State) bool {
	return m.Transition(next) == nil
}

// Is reports whether the machine is in s.
func (m *Machine) Is(s State) bool {
	return m.State() == s
}

// PauseDecision classifies a silence observed during a user turn.
type PauseDecision int

const (
	// PauseWait keeps listening; the silence means nothing yet.
	PauseWait PauseDecision = iota
	// PauseThinking enters the thinking pause; STT is not dispatched.
	PauseThinking
	// PauseEndOfTurn commits the user turn.
	PauseEndOfTurn
)

// ClassifyPause decides what a pause means. A prosodic question shortens
// the end-of-turn threshold; a mid-range pause with the thinking
// heuristic holds the turn open.
func ClassifyPause(cfg config.PipelineConfig, pause time.Duration, isQuestion, thinkingHeuristic bool) PauseDecision {
	threshold := cfg.EndOfTurnPause
	if isQuestion {
		threshold = cfg.QuestionTurnPause
	}
	if pause >= threshold {
		return PauseEndOfTurn
	}
	if thinkingHeuristic && pause >= cfg.ThinkingPauseMin && pause < cfg.ThinkingPauseMax {
		return PauseThinking
	}
	return PauseWait
}
