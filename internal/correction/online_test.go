package correction

import (
	"context"
	"testing"
	"time"

	"github.com/centralita-ai/voice-orchestrator/internal/domain"
	"github.com/centralita-ai/voice-orchestrator/internal/stt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCache(entries map[string]string, critical map[domain.CriticalCategory][]string) *Cache {
	snap := &Snapshot{
		entries:  make(map[string]*domain.CorrectionEntry),
		critical: make(map[domain.CriticalCategory]map[string]struct{}),
	}
	for misheard, canonical := range entries {
		snap.entries[misheard] = &domain.CorrectionEntry{Misheard: misheard, Canonical: canonical}
	}
	for cat, words := range critical {
		set := make(map[string]struct{})
		for _, w := range words {
			set[w] = struct{}{}
		}
		snap.critical[cat] = set
	}
	return &Cache{snapshots: map[string]*Snapshot{"org-1": snap}}
}

func corrector(c *Cache) *OnlineCorrector {
	return NewOnlineCorrector(c, 20*time.Millisecond, 0.6)
}

func words(ws ...stt.Word) []stt.Word { return ws }

func TestCorrectAppliesExactDictionary(t *testing.T) {
	c := testCache(map[string]string{"salgo": "saldo", "cuesta": "cuenta"}, nil)
	o := corrector(c)

	out := o.Correct(context.Background(), "org-1", &stt.Transcription{
		Text: "quiero saber mi salgo",
		Words: words(
			stt.Word{Text: "quiero", Confidence: 0.95},
			stt.Word{Text: "saber", Confidence: 0.94},
			stt.Word{Text: "mi", Confidence: 0.97},
			stt.Word{Text: "salgo", Confidence: 0.91},
		),
	})

	assert.Equal(t, "quiero saber mi saldo", out.Text)
	require.Len(t, out.Corrections, 1)
	assert.Equal(t, "salgo", out.Corrections[0].Original)
	assert.Equal(t, "saldo", out.Corrections[0].Corrected)
	assert.Nil(t, out.Clarification)
}

func TestCorrectPreservesCaseAndPunctuation(t *testing.T) {
	c := testCache(map[string]string{"cuesta": "cuenta"}, nil)
	o := corrector(c)

	out := o.Correct(context.Background(), "org-1", &stt.Transcription{
		Text: "Cuesta, por favor.",
		Words: words(
			stt.Word{Text: "Cuesta,", Confidence: 0.9},
			stt.Word{Text: "por", Confidence: 0.9},
			stt.Word{Text: "favor.", Confidence: 0.9},
		),
	})

	assert.Equal(t, "Cuenta, por favor.", out.Text)
}

func TestCorrectRaisesExplicitConfirmationForDestructiveWord(t *testing.T) {
	c := testCache(nil, map[domain.CriticalCategory][]string{
		domain.CategoryDestructiveActions: {"cancelar"},
	})
	o := corrector(c)

	out := o.Correct(context.Background(), "org-1", &stt.Transcription{
		Text: "quiero cancelar el servicio",
		Words: words(
			stt.Word{Text: "quiero", Confidence: 0.95},
			stt.Word{Text: "cancelar", Confidence: 0.45},
			stt.Word{Text: "el", Confidence: 0.96},
			stt.Word{Text: "servicio", Confidence: 0.92},
		),
	})

	require.NotNil(t, out.Clarification)
	assert.Equal(t, "cancelar", out.Clarification.Word)
	assert.Equal(t, StrategyExplicitConfirmation, out.Clarification.Strategy)
	assert.Equal(t, "¿Dijiste 'cancelar'? Quiero confirmar antes de proceder.", out.Clarification.Prompt)
}

func TestCorrectConfidentCriticalWordNeedsNoClarification(t *testing.T) {
	c := testCache(nil, map[domain.CriticalCategory][]string{
		domain.CategoryDestructiveActions: {"cancelar"},
	})
	o := corrector(c)

	out := o.Correct(context.Background(), "org-1", &stt.Transcription{
		Text:  "quiero cancelar el servicio",
		Words: words(stt.Word{Text: "cancelar", Confidence: 0.93}),
	})

	assert.Nil(t, out.Clarification)
}

func TestCorrectMostSevereCategoryWins(t *testing.T) {
	c := testCache(nil, map[domain.CriticalCategory][]string{
		domain.CategoryNumbers:            {"cuarenta"},
		domain.CategoryDestructiveActions: {"eliminar"},
	})
	o := corrector(c)

	out := o.Correct(context.Background(), "org-1", &stt.Transcription{
		Text: "cuarenta eliminar",
		Words: words(
			stt.Word{Text: "cuarenta", Confidence: 0.4},
			stt.Word{Text: "eliminar", Confidence: 0.5},
		),
	})

	require.NotNil(t, out.Clarification)
	assert.Equal(t, domain.CategoryDestructiveActions, out.Clarification.Category)
}

func TestCorrectNumbersSpellOutStrategy(t *testing.T) {
	c := testCache(nil, map[domain.CriticalCategory][]string{
		domain.CategoryNumbers: {"cuarenta"},
	})
	o := corrector(c)

	out := o.Correct(context.Background(), "org-1", &stt.Transcription{
		Text:  "cuarenta euros",
		Words: words(stt.Word{Text: "cuarenta", Confidence: 0.5}),
	})

	require.NotNil(t, out.Clarification)
	assert.Equal(t, StrategySpellOut, out.Clarification.Strategy)
}

func TestCorrectWithoutWordTimingsFallsBackToSplitting(t *testing.T) {
	c := testCache(map[string]string{"salgo": "saldo"}, nil)
	o := corrector(c)

	out := o.Correct(context.Background(), "org-1", &stt.Transcription{
		Text:       "mi salgo por favor",
		Confidence: 0.9,
	})

	assert.Equal(t, "mi saldo por favor", out.Text)
}

func TestSnapshotLookupIsCaseInsensitive(t *testing.T) {
	c := testCache(map[string]string{"salgo": "saldo"}, nil)
	snap, err := c.Get(context.Background(), "org-1")
	require.NoError(t, err)

	_, ok := snap.Lookup("SALGO")
	assert.True(t, ok)
}
