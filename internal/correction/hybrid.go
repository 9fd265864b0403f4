package correction

import (
	"context"
	"strings"

	"github.com/antzucaro/matchr"
	"github.com/centralita-ai/voice-orchestrator/internal/domain"
	"github.com/centralita-ai/voice-orchestrator/internal/repository"
	"github.com/centralita-ai/voice-orchestrator/pkg/logger"
	"go.uber.org/zap"
)

// Default hybrid thresholds. Vector distance is cosine; phonetic score is
// Jaro-Winkler on top of a Double Metaphone code match.
const (
	DefaultMaxVectorDistance = 0.7
	DefaultPhoneticThreshold = 0.84
)

// TextEmbedder embeds a token for vector lookup. Implemented by the
// dialogue service client; nil disables the vector stage.
type TextEmbedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// HybridCorrector is the offline three-stage corrector used during
// enrichment: exact dictionary, vector nearest neighbour, then phonetic
// matching against the known vocabulary. It has no latency budget.
type HybridCorrector struct {
	cache             *Cache
	repo              *repository.DictionaryRepository
	embedder          TextEmbedder
	maxVectorDistance float64
	phoneticThreshold float64
}

// NewHybridCorrector builds the offline corrector.
func NewHybridCorrector(cache *Cache, repo *repository.DictionaryRepository, embedder TextEmbedder) *HybridCorrector {
	return &HybridCorrector{
		cache:             cache,
		repo:              repo,
		embedder:          embedder,
		maxVectorDistance: DefaultMaxVectorDistance,
		phoneticThreshold: DefaultPhoneticThreshold,
	}
}

// CorrectText reruns correction over a full transcript line. vocabulary is
// the expected domain vocabulary from the agent's context profile; it
// extends the phonetic candidate set beyond learned canonical forms.
func (h *HybridCorrector) CorrectText(ctx context.Context, orgID, text string, vocabulary []string) (string, []domain.CorrectionPair, error) {
	snap, err := h.cache.Get(ctx, orgID)
	if err != nil {
		return text, nil, err
	}

	candidates := h.phoneticCandidates(snap, vocabulary)
	tokens := strings.Fields(text)
	var pairs []domain.CorrectionPair
	for i, tok := range tokens {
		core, prefix, suffix := stripPunct(tok)
		if core == "" {
			continue
		}
		corrected, ok := h.correctToken(ctx, orgID, snap, candidates, core)
		if !ok || strings.EqualFold(corrected, core) {
			continue
		}
		tokens[i] = prefix + matchCase(core, corrected) + suffix
		pairs = append(pairs, domain.CorrectionPair{Original: strings.ToLower(core), Corrected: corrected})
	}
	return strings.Join(tokens, " "), pairs, nil
}

// correctToken runs the three stages for one token.
func (h *HybridCorrector) correctToken(ctx context.Context, orgID string, snap *Snapshot, candidates map[string][]string, token string) (string, bool) {
	// Stage 1: exact dictionary hit.
	if e, ok := snap.Lookup(token); ok {
		h.repo.BumpHitCount(ctx, e.ID)
		return e.Canonical, true
	}

	// Stage 2: vector nearest neighbour over learned misheard forms.
	if h.embedder != nil {
		embedding, err := h.embedder.EmbedText(ctx, strings.ToLower(token))
		if err != nil {
			logger.Base().Debug("token embedding failed, skipping vector stage",
				zap.String("token", token), zap.Error(err))
		} else if len(embedding) == domain.CorrectionEmbeddingDim {
			entry, distance, err := h.repo.NearestNeighbour(ctx, orgID, embedding, h.maxVectorDistance)
			if err == nil && entry != nil {
				logger.Base().Debug("vector correction",
					zap.String("token", token),
					zap.String("canonical", entry.Canonical),
					zap.Float64("distance", distance))
				h.repo.BumpHitCount(ctx, entry.ID)
				return entry.Canonical, true
			}
		}
	}

	// Stage 3: phonetic match against the known vocabulary.
	if best, ok := h.phoneticMatch(candidates, token); ok {
		return best, true
	}
	return "", false
}

// phoneticCandidates indexes canonical forms and profile vocabulary by
// their Double Metaphone codes.
func (h *HybridCorrector) phoneticCandidates(snap *Snapshot, vocabulary []string) map[string][]string {
	index := make(map[string][]string)
	add := func(word string) {
		w := strings.ToLower(word)
		p, s := matchr.DoubleMetaphone(w)
		for _, code := range []string{p, s} {
			if code == "" {
				continue
			}
			index[code] = append(index[code], w)
		}
	}
	for _, e := range snap.entries {
		add(e.Canonical)
	}
	for _, w := range vocabulary {
		add(w)
	}
	return index
}

// phoneticMatch finds the candidate sharing a metaphone code with the
// token whose Jaro-Winkler similarity clears the threshold.
func (h *HybridCorrector) phoneticMatch(index map[string][]string, token string) (string, bool) {
	t := strings.ToLower(token)
	p, s := matchr.DoubleMetaphone(t)

	var best string
	var bestScore float64
	seen := make(map[string]struct{})
	for _, code := range []string{p, s} {
		if code == "" {
			continue
		}
		for _, cand := range index[code] {
			if _, dup := seen[cand]; dup || cand == t {
				continue
			}
			seen[cand] = struct{}{}
			if score := matchr.JaroWinkler(t, cand, false); score >= h.phoneticThreshold && score > bestScore {
				best, bestScore = cand, score
			}
		}
	}
	return best, best != ""
}
