package sentiment

import (
	"strings"
	"sync"
)

// Context flags attached to the dialogue request for the current turn.
const (
	FlagRepeatedQuestion  = "repeated_question"
	FlagUserFrustrated    = "user_frustrated"
	FlagEscalationRequest = "escalation_request"
	FlagConfused          = "confused"
)

// Detection windows and thresholds.
const (
	repeatedQuestionJaccard = 0.6
	contextWindow           = 4 // user turns examined for repeats and confusion
	frustrationWindow       = 3 // turns examined for frustration keywords
	frustrationKeywordMin   = 2
	whQuestionMin           = 3
	rollingWindow           = 3 // turns in the rolling score
)

var frustrationKeywords = []string{
	"harto", "harta", "enfadado", "enfadada", "furioso", "furiosa",
	"inaceptable", "ridículo", "ridiculo", "vergüenza", "verguenza",
	"queja", "fatal", "horrible", "terrible", "otra vez", "de nuevo",
	"siempre igual", "no funciona",
}

var escalationPhrases = []string{
	"hablar con una persona",
	"hablar con alguien",
	"con un humano",
	"agente humano",
	"un supervisor",
	"el supervisor",
	"con tu jefe",
	"persona real",
}

var confusionPhrases = []string{
	"no entiendo",
	"no comprendo",
	"no me queda claro",
	"qué quieres decir",
	"que quieres decir",
	"no sé qué",
	"no se que",
	"estoy perdido",
	"estoy perdida",
}

var whWords = []string{
	"qué", "que", "cómo", "como", "cuándo", "cuando",
	"dónde", "donde", "cuál", "cual", "cuánto", "cuanto", "por qué", "por que", "quién", "quien",
}

func lowerTrim(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

type observedTurn struct {
	lower       string
	tokens      map[string]struct{}
	question    bool
	frustration int
}

// Tracker keeps per-call conversational state: the recent user turns and
// their fused scores.
type Tracker struct {
	mu     sync.Mutex
	turns  []observedTurn
	scores []float64
}

// NewTracker builds an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Observe ingests one fused user turn. isQuestion carries the prosodic
// question mark when available. It returns the context flags that now
// apply and the rolling score over the last turns.
func (t *Tracker) Observe(text string, fused Fused, isQuestion bool) (flags []string, rolling float64) {
	lower := lowerTrim(text)
	cur := observedTurn{
		lower:       lower,
		tokens:      tokenSet(text),
		question:    isQuestion || strings.Contains(text, "?") || strings.Contains(text, "¿") || startsWithWh(lower),
		frustration: countKeywords(lower, frustrationKeywords),
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	// repeated question: overlap with any of the last turns in window
	recent := t.turns
	if len(recent) > contextWindow {
		recent = recent[len(recent)-contextWindow:]
	}
	if cur.question {
		for _, prev := range recent {
			if prev.question && jaccard(cur.tokens, prev.tokens) > repeatedQuestionJaccard {
				flags = append(flags, FlagRepeatedQuestion)
				break
			}
		}
	}
	t.turns = append(t.turns, cur)

	// frustration keywords over the last turns, current included
	frustration := 0
	window := t.turns
	if len(window) > frustrationWindow {
		window = window[len(window)-frustrationWindow:]
	}
	for _, turn := range window {
		frustration += turn.frustration
	}
	if frustration >= frustrationKeywordMin || fused.Label == LabelFrustrated || fused.Label == LabelAngry {
		flags = append(flags, FlagUserFrustrated)
	}

	if containsAny(cur.lower, escalationPhrases) {
		flags = append(flags, FlagEscalationRequest)
	}

	// confusion: enough wh-questions in the context window
	whCount := 0
	ctxWindow := t.turns
	if len(ctxWindow) > contextWindow {
		ctxWindow = ctxWindow[len(ctxWindow)-contextWindow:]
	}
	for _, turn := range ctxWindow {
		if turn.question && startsWithWh(turn.lower) {
			whCount++
		}
	}
	if whCount >= whQuestionMin || containsAny(cur.lower, confusionPhrases) {
		flags = append(flags, FlagConfused)
	}

	t.scores = append(t.scores, fused.Score)
	rolling = rollingOf(t.scores)
	return flags, rolling
}

// Rolling returns the current rolling score without observing a turn.
func (t *Tracker) Rolling() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return rollingOf(t.scores)
}

func rollingOf(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	window := scores
	if len(window) > rollingWindow {
		window = window[len(window)-rollingWindow:]
	}
	var sum float64
	for _, s := range window {
		sum += s
	}
	return sum / float64(len(window))
}

func startsWithWh(lower string) bool {
	for _, w := range whWords {
		if strings.HasPrefix(lower, w+" ") || strings.HasPrefix(lower, "¿"+w) {
			return true
		}
	}
	return false
}

func countKeywords(lower string, keywords []string) int {
	n := 0
	for _, k := range keywords {
		if strings.Contains(lower, k) {
			n++
		}
	}
	return n
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

func tokenSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range tokenize(text) {
		set[tok] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	var inter int
	for k := range a {
		if _, ok := b[k]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}
