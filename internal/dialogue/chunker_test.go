package dialogue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkerCutsOnSentenceBoundaries(t *testing.T) {
	c := NewSentenceChunker(1)
	chunks := c.Feed("Hola, buenos días. ¿En qué puedo ayudarte?")
	assert.Equal(t, []string{"Hola, buenos días.", "¿En qué puedo ayudarte?"}, chunks)
}

func TestChunkerAccumulatesAcrossDeltas(t *testing.T) {
	c := NewSentenceChunker(1)
	assert.Empty(t, c.Feed("Su saldo "))
	assert.Empty(t, c.Feed("es de cien euros"))
	chunks := c.Feed(". Gracias.")
	assert.Equal(t, []string{"Su saldo es de cien euros.", "Gracias."}, chunks)
}

func TestChunkerHoldsBackShortFragments(t *testing.T) {
	c := NewSentenceChunker(3)
	// "Sí." alone is below the minimum and rides into the next sentence
	assert.Empty(t, c.Feed("Sí."))
	chunks := c.Feed(" Puedo ayudarte con eso.")
	require.Len(t, chunks, 1)
	assert.Equal(t, "Sí. Puedo ayudarte con eso.", chunks[0])
}

func TestChunkerTreatsNewlineAsBoundary(t *testing.T) {
	c := NewSentenceChunker(1)
	chunks := c.Feed("primera línea\nsegunda")
	assert.Equal(t, []string{"primera línea"}, chunks)
}

func TestChunkerFlushReturnsRemainder(t *testing.T) {
	c := NewSentenceChunker(3)
	c.Feed("sin puntuación final")
	out, ok := c.Flush()
	require.True(t, ok)
	assert.Equal(t, "sin puntuación final", out)

	out, ok = c.Flush()
	assert.False(t, ok)
	assert.Empty(t, out)
}
