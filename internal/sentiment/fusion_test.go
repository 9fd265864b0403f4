package sentiment

import (
	"testing"

	"github.com/centralita-ai/voice-orchestrator/internal/preprocess"
	"github.com/stretchr/testify/assert"
)

func TestFuseNegativeTextReadsFrustrated(t *testing.T) {
	f := Fuse("esto es un problema y no funciona", nil)
	assert.Equal(t, LabelFrustrated, f.Label)
	assert.Less(t, f.Score, 0.0)
}

func TestFuseVeryNegativeTextReadsAngry(t *testing.T) {
	f := Fuse("esto es horrible, fatal, una vergüenza inaceptable", nil)
	assert.Equal(t, LabelAngry, f.Label)
}

func TestFuseAngryToneDarkensNegativeText(t *testing.T) {
	calm := Fuse("esto es un problema", nil)
	angry := Fuse("esto es un problema", &preprocess.ProsodyResult{Tone: "angry"})
	assert.Equal(t, LabelAngry, angry.Label)
	assert.Less(t, angry.Score, calm.Score)
}

func TestFuseWorriedVoiceOverrulesPoliteWords(t *testing.T) {
	f := Fuse("de acuerdo, entiendo", &preprocess.ProsodyResult{Tone: "nervous"})
	assert.Equal(t, LabelFrustrated, f.Label)
	assert.InDelta(t, -0.4, f.Score, 0.001)
}

func TestFuseNeutralWithoutProsodyStaysNeutral(t *testing.T) {
	f := Fuse("quiero consultar una cosa", nil)
	assert.Equal(t, LabelNeutral, f.Label)
	assert.InDelta(t, 0.6, f.Confidence, 0.001)
}

func TestFuseConfusionPhraseWins(t *testing.T) {
	f := Fuse("perdona pero no entiendo nada de esto", nil)
	assert.Equal(t, LabelConfused, f.Label)
	assert.LessOrEqual(t, f.Score, 0.0)
}

func TestFuseExcitedToneLiftsPositive(t *testing.T) {
	plain := Fuse("perfecto, muchas gracias, excelente", nil)
	excited := Fuse("perfecto, muchas gracias, excelente", &preprocess.ProsodyResult{Tone: "excited"})
	assert.Equal(t, LabelPositive, excited.Label)
	assert.Greater(t, excited.Score, plain.Score)
}

func TestTrackerFlagsRepeatedQuestion(t *testing.T) {
	tr := NewTracker()
	tr.Observe("¿cuánto es la factura de este mes?", Fused{Label: LabelNeutral}, true)
	flags, _ := tr.Observe("¿cuánto es la factura de este mes?", Fused{Label: LabelNeutral}, true)
	assert.Contains(t, flags, FlagRepeatedQuestion)
}

func TestTrackerDifferentQuestionsAreNotRepeats(t *testing.T) {
	tr := NewTracker()
	tr.Observe("¿cuánto es la factura?", Fused{Label: LabelNeutral}, true)
	flags, _ := tr.Observe("¿a qué hora abren las oficinas centrales?", Fused{Label: LabelNeutral}, true)
	assert.NotContains(t, flags, FlagRepeatedQuestion)
}

func TestTrackerFlagsFrustrationKeywords(t *testing.T) {
	tr := NewTracker()
	tr.Observe("estoy harto de llamar", Fused{Label: LabelNeutral}, false)
	flags, _ := tr.Observe("otra vez el mismo problema", Fused{Label: LabelNeutral}, false)
	assert.Contains(t, flags, FlagUserFrustrated)
}

func TestTrackerFlagsEscalationRequest(t *testing.T) {
	tr := NewTracker()
	flags, _ := tr.Observe("quiero hablar con una persona", Fused{Label: LabelNeutral}, false)
	assert.Contains(t, flags, FlagEscalationRequest)
}

func TestTrackerFlagsConfusionPhrase(t *testing.T) {
	tr := NewTracker()
	flags, _ := tr.Observe("no me queda claro lo del contrato", Fused{Label: LabelNeutral}, false)
	assert.Contains(t, flags, FlagConfused)
}

func TestTrackerRollingScoreAveragesLastTurns(t *testing.T) {
	tr := NewTracker()
	tr.Observe("a", Fused{Score: 1}, false)
	tr.Observe("b", Fused{Score: -1}, false)
	tr.Observe("c", Fused{Score: -1}, false)
	_, rolling := tr.Observe("d", Fused{Score: -1}, false)
	assert.InDelta(t, -1.0, rolling, 0.001)
}
