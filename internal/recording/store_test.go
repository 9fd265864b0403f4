package recording

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/centralita-ai/voice-orchestrator/internal/domain"
)

func TestArtifactLayout(t *testing.T) {
	assert.Equal(t, filepath.Join("recordings", "call-1", "rec-1.wav"), audioPath("call-1", "rec-1"))
	assert.Equal(t, filepath.Join("recordings", "call-1", "rec-1_metadata.json"), metadataPath("call-1", "rec-1"))
	assert.Equal(t, filepath.Join("transcripts", "call-1", "rec-1_transcript.json"), transcriptPath("call-1", "rec-1"))
}

func TestTranscriptArtifactIsJSON(t *testing.T) {
	b := &Bundle{
		CallID:     "call-1",
		Transcript: "hola, quiero consultar mi factura",
		Metadata: domain.Metadata{
			Turns: []domain.TurnSummary{
				{Role: domain.TurnRoleUser, Text: "hola, quiero consultar mi factura"},
			},
		},
	}

	data, err := transcriptArtifact("rec-1", b)
	require.NoError(t, err)

	var doc transcriptDoc
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "rec-1", doc.RecordingID)
	assert.Equal(t, "call-1", doc.ConversationID)
	assert.Equal(t, "hola, quiero consultar mi factura", doc.Transcript)
	require.Len(t, doc.Turns, 1)
	assert.Equal(t, domain.TurnRoleUser, doc.Turns[0].Role)
}
