package call

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/centralita-ai/voice-orchestrator/internal/core/session"
	"github.com/centralita-ai/voice-orchestrator/internal/domain"
	"github.com/centralita-ai/voice-orchestrator/internal/sentiment"
)

func TestOnlineMetadataKeepsRawAndCorrectedText(t *testing.T) {
	transcript := []session.TranscriptEntry{
		{Role: domain.TurnRoleUser, Text: "mi cuenta corriente", Confidence: 0.9},
		{Role: domain.TurnRoleAssistant, Text: "Claro, un momento."},
	}
	corrections := []domain.CorrectionPair{{Original: "kuenta", Corrected: "cuenta"}}
	lat := map[string][]time.Duration{
		"stt": {200 * time.Millisecond, 400 * time.Millisecond},
		"llm": {500 * time.Millisecond},
		"tts": {150 * time.Millisecond, 250 * time.Millisecond},
	}

	meta, lines := onlineMetadata(transcript, "mi kuenta corriente", corrections, sentiment.Fused{Label: "neutral"}, lat)

	assert.Equal(t, "mi kuenta corriente", meta.Transcription.Text)
	assert.Equal(t, "mi cuenta corriente", meta.Transcription.CorrectedText)
	assert.Equal(t, corrections, meta.Transcription.CorrectionsMade)
	assert.Equal(t, domain.ProcessingModeOnline, meta.Transcription.CorrectionMethod)

	assert.Equal(t, 300.0, meta.Metrics.STTMsAvg)
	assert.Equal(t, 500.0, meta.Metrics.LLMMsAvg)
	assert.Equal(t, 200.0, meta.Metrics.TTSMsAvg)
	assert.Equal(t, 1000.0, meta.Metrics.TotalMsAvg)

	require.Len(t, meta.Turns, 2)
	assert.Equal(t, domain.TurnRoleUser, meta.Turns[0].Role)
	assert.Equal(t, []string{"user: mi cuenta corriente", "assistant: Claro, un momento."}, lines)
}

func TestOnlineMetadataFallsBackToCorrectedText(t *testing.T) {
	transcript := []session.TranscriptEntry{
		{Role: domain.TurnRoleUser, Text: "hola", Confidence: 0.95},
	}

	meta, _ := onlineMetadata(transcript, "", nil, sentiment.Fused{}, nil)

	assert.Equal(t, "hola", meta.Transcription.Text)
	assert.Equal(t, "hola", meta.Transcription.CorrectedText)
}

func TestApologyBudgetIsPerCall(t *testing.T) {
	line, hangUp := apologyFor(1)
	assert.Equal(t, apologyDidNotCatch, line)
	assert.False(t, hangUp)

	line, hangUp = apologyFor(2)
	assert.Equal(t, apologyDidNotCatch, line)
	assert.False(t, hangUp)

	// the third failure ends the call even when turns in between
	// transcribed fine; the count never resets mid-call
	line, hangUp = apologyFor(3)
	assert.Equal(t, apologyGoodbye, line)
	assert.True(t, hangUp)
}
