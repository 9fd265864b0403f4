package dialogue

import "sync"

// Memory is the rolling conversation window: at most maxTurns
// user/assistant pairs, dropping the oldest pair when full. Tool results
// ride along with the pair they belong to.
type Memory struct {
	maxTurns int

	mu       sync.Mutex
	messages []Message
}

// NewMemory creates a rolling window of maxTurns pairs.
func NewMemory(maxTurns int) *Memory {
	return &Memory{maxTurns: maxTurns}
}

// Append adds a message and trims the window to the bound.
func (m *Memory) Append(role, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, Message{Role: role, Content: content})

	// count user messages; each starts one pair
	users := 0
	for _, msg := range m.messages {
		if msg.Role == "user" {
			users++
		}
	}
	for users > m.maxTurns {
		// drop everything up to and including the end of the oldest pair
		cut := 1
		for cut < len(m.messages) && m.messages[cut].Role != "user" {
			cut++
		}
		m.messages = m.messages[cut:]
		users--
	}
}

// Snapshot returns a copy of the window for one request.
func (m *Memory) Snapshot() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.messages))
	copy(out, m.messages)
	return out
}
