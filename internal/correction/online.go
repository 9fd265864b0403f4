package correction

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/centralita-ai/voice-orchestrator/internal/domain"
	"github.com/centralita-ai/voice-orchestrator/internal/stt"
	"github.com/centralita-ai/voice-orchestrator/pkg/logger"
	"go.uber.org/zap"
)

// ClarificationStrategy names how a clarification prompt is phrased.
type ClarificationStrategy string

const (
	// StrategyExplicitConfirmation repeats the doubtful word back and
	// asks for a yes/no before proceeding. Used for destructive actions
	// and confirmations.
	StrategyExplicitConfirmation ClarificationStrategy = "explicit_confirmation"
	// StrategyFullRepeat asks the caller to repeat the whole utterance.
	StrategyFullRepeat ClarificationStrategy = "full_repeat"
	// StrategyImplicitClarification works the doubtful word into an open
	// question instead of an explicit confirm. Used for negations.
	StrategyImplicitClarification ClarificationStrategy = "implicit_clarification"
	// StrategySpellOut asks the caller to spell the value digit by
	// digit. Used for numbers.
	StrategySpellOut ClarificationStrategy = "spell_out"
)

// Clarification is a request to confirm a doubtful critical word instead
// of committing the turn.
type Clarification struct {
	Word       string
	Category   domain.CriticalCategory
	Confidence float64
	Strategy   ClarificationStrategy
	Prompt     string
}

// Outcome is the result of the online pass over one transcription.
type Outcome struct {
	Text          string
	Corrections   []domain.CorrectionPair
	Clarification *Clarification
	ElapsedUS     int64
	BudgetBlown   bool
}

// OnlineCorrector applies exact dictionary corrections token by token and
// flags low-confidence critical words. It does only map lookups, so a
// blown budget means the process is in serious trouble; the pass still
// completes and the overrun is recorded.
type OnlineCorrector struct {
	cache               *Cache
	budget              time.Duration
	confidenceThreshold float64
}

// NewOnlineCorrector builds the online pass.
func NewOnlineCorrector(cache *Cache, budget time.Duration, confidenceThreshold float64) *OnlineCorrector {
	return &OnlineCorrector{cache: cache, budget: budget, confidenceThreshold: confidenceThreshold}
}

// Correct runs the online pass over one transcription. At most one
// clarification is raised per turn; when several words qualify the most
// severe category wins, earliest word breaking ties.
func (o *OnlineCorrector) Correct(ctx context.Context, orgID string, tr *stt.Transcription) Outcome {
	start := time.Now()
	out := Outcome{Text: tr.Text}

	snap, err := o.cache.Get(ctx, orgID)
	if err != nil {
		logger.Base().Warn("dictionary unavailable, skipping online correction",
			zap.String("org_id", orgID), zap.Error(err))
		out.ElapsedUS = time.Since(start).Microseconds()
		return out
	}

	words := tr.Words
	if len(words) == 0 {
		words = splitAsWords(tr.Text, tr.Confidence)
	}

	tokens := make([]string, len(words))
	for i, w := range words {
		tokens[i] = w.Text
		core, prefix, suffix := stripPunct(w.Text)
		if core == "" {
			continue
		}
		if e, ok := snap.Lookup(core); ok {
			tokens[i] = prefix + matchCase(core, e.Canonical) + suffix
			out.Corrections = append(out.Corrections, domain.CorrectionPair{
				Original:  core,
				Corrected: e.Canonical,
			})
			o.cache.repo.BumpHitCount(ctx, e.ID)
			core = e.Canonical
		}
		if w.Confidence >= o.confidenceThreshold {
			continue
		}
		cat, critical := snap.IsCritical(core)
		if !critical {
			continue
		}
		cand := &Clarification{
			Word:       strings.ToLower(core),
			Category:   cat,
			Confidence: w.Confidence,
		}
		if out.Clarification == nil || severity(cat) > severity(out.Clarification.Category) {
			out.Clarification = cand
		}
	}

	out.Text = strings.Join(tokens, " ")
	if out.Clarification != nil {
		out.Clarification.Strategy = strategyFor(out.Clarification.Category)
		out.Clarification.Prompt = promptFor(out.Clarification.Strategy, out.Clarification.Word)
	}
	out.ElapsedUS = time.Since(start).Microseconds()
	out.BudgetBlown = time.Duration(out.ElapsedUS)*time.Microsecond > o.budget
	if out.BudgetBlown {
		logger.Base().Warn("online correction exceeded its budget",
			zap.String("org_id", orgID), zap.Int64("elapsed_us", out.ElapsedUS))
	}
	return out
}

func severity(cat domain.CriticalCategory) int {
	switch cat {
	case domain.CategoryDestructiveActions:
		return 4
	case domain.CategoryNumbers:
		return 3
	case domain.CategoryNegations:
		return 2
	case domain.CategoryConfirmations:
		return 1
	}
	return 0
}

func strategyFor(cat domain.CriticalCategory) ClarificationStrategy {
	switch cat {
	case domain.CategoryDestructiveActions, domain.CategoryConfirmations:
		return StrategyExplicitConfirmation
	case domain.CategoryNumbers:
		return StrategySpellOut
	case domain.CategoryNegations:
		return StrategyImplicitClarification
	default:
		return StrategyFullRepeat
	}
}

// promptFor renders the Spanish clarification prompt for a strategy.
func promptFor(s ClarificationStrategy, word string) string {
	switch s {
	case StrategyExplicitConfirmation:
		return fmt.Sprintf("¿Dijiste '%s'? Quiero confirmar antes de proceder.", word)
	case StrategySpellOut:
		return fmt.Sprintf("Entendí '%s'. ¿Puedes decirlo dígito a dígito, por favor?", word)
	case StrategyImplicitClarification:
		return fmt.Sprintf("Entonces, para estar seguros: ¿%s o no? Cuéntame un poco más.", word)
	default:
		return "Perdona, no te he entendido bien. ¿Puedes repetirlo, por favor?"
	}
}

// stripPunct splits leading and trailing punctuation off a token.
func stripPunct(tok string) (core, prefix, suffix string) {
	runes := []rune(tok)
	i, j := 0, len(runes)
	for i < j && isPunct(runes[i]) {
		i++
	}
	for j > i && isPunct(runes[j-1]) {
		j--
	}
	return string(runes[i:j]), string(runes[:i]), string(runes[j:])
}

func isPunct(r rune) bool {
	switch r {
	case '.', ',', ';', ':', '!', '?', '¿', '¡', '"', '\'', '(', ')':
		return true
	}
	return false
}

// matchCase carries an initial capital from the original over to the
// replacement.
func matchCase(original, replacement string) string {
	if original == "" || replacement == "" {
		return replacement
	}
	or := []rune(original)
	if or[0] >= 'A' && or[0] <= 'Z' || or[0] == 'Á' || or[0] == 'É' || or[0] == 'Í' || or[0] == 'Ó' || or[0] == 'Ú' || or[0] == 'Ñ' {
		rr := []rune(replacement)
		return strings.ToUpper(string(rr[0])) + string(rr[1:])
	}
	return replacement
}

// splitAsWords builds per-word entries from plain text when the service
// returned no word timing, assigning the utterance confidence to each.
func splitAsWords(text string, confidence float64) []stt.Word {
	fields := strings.Fields(text)
	words := make([]stt.Word, len(fields))
	for i, f := range fields {
		words[i] = stt.Word{Text: f, Confidence: confidence}
	}
	return words
}
