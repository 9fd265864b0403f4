package correction

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hybrid(c *Cache) *HybridCorrector {
	return NewHybridCorrector(c, nil, nil)
}

func TestCorrectTextAppliesExactDictionary(t *testing.T) {
	c := testCache(map[string]string{"salgo": "saldo"}, nil)
	h := hybrid(c)

	out, pairs, err := h.CorrectText(context.Background(), "org-1", "quiero saber mi salgo", nil)
	require.NoError(t, err)
	assert.Equal(t, "quiero saber mi saldo", out)
	require.Len(t, pairs, 1)
	assert.Equal(t, "salgo", pairs[0].Original)
	assert.Equal(t, "saldo", pairs[0].Corrected)
}

func TestCorrectTextPhoneticStageUsesProfileVocabulary(t *testing.T) {
	c := testCache(map[string]string{"salgo": "saldo"}, nil)
	h := hybrid(c)

	// "kuenta" shares its metaphone code with "cuenta" and the
	// Jaro-Winkler similarity clears the threshold.
	out, pairs, err := h.CorrectText(context.Background(), "org-1", "mi kuenta corriente", []string{"cuenta"})
	require.NoError(t, err)
	assert.Equal(t, "mi cuenta corriente", out)
	require.Len(t, pairs, 1)
	assert.Equal(t, "kuenta", pairs[0].Original)
	assert.Equal(t, "cuenta", pairs[0].Corrected)
}

func TestCorrectTextPhoneticStageMatchesLearnedCanonicals(t *testing.T) {
	c := testCache(map[string]string{"kwenta": "cuenta"}, nil)
	h := hybrid(c)

	// "kuenta" never hits the dictionary exactly, but the learned
	// canonical "cuenta" is a phonetic candidate.
	out, _, err := h.CorrectText(context.Background(), "org-1", "mi kuenta", nil)
	require.NoError(t, err)
	assert.Equal(t, "mi cuenta", out)
}

func TestCorrectTextLeavesUnknownWordsAlone(t *testing.T) {
	c := testCache(map[string]string{"salgo": "saldo"}, nil)
	h := hybrid(c)

	out, pairs, err := h.CorrectText(context.Background(), "org-1", "buenos días, una factura", nil)
	require.NoError(t, err)
	assert.Equal(t, "buenos días, una factura", out)
	assert.Empty(t, pairs)
}

func TestCorrectTextPreservesCaseAndPunctuation(t *testing.T) {
	c := testCache(map[string]string{"salgo": "saldo"}, nil)
	h := hybrid(c)

	out, _, err := h.CorrectText(context.Background(), "org-1", "Salgo, por favor.", nil)
	require.NoError(t, err)
	assert.Equal(t, "Saldo, por favor.", out)
}
