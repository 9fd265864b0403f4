package recording

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/centralita-ai/voice-orchestrator/internal/domain"
)

type staticCorrector struct {
	out   string
	pairs []domain.CorrectionPair
}

func (c staticCorrector) CorrectText(_ context.Context, _ string, _ string, _ []string) (string, []domain.CorrectionPair, error) {
	return c.out, c.pairs, nil
}

func TestCorrectTranscriptionRunsOfflinePass(t *testing.T) {
	svc := &Service{corrector: staticCorrector{
		out:   "mi cuenta corriente",
		pairs: []domain.CorrectionPair{{Original: "kuenta", Corrected: "cuenta"}},
	}}
	meta := &domain.Metadata{
		Transcription: domain.Transcription{
			Text:             "mi kuenta corriente",
			CorrectionMethod: domain.ProcessingModeOnline,
		},
	}

	svc.correctTranscription(context.Background(), "org-1", meta)

	assert.Equal(t, "mi cuenta corriente", meta.Transcription.CorrectedText)
	assert.Equal(t, domain.ProcessingModeOffline, meta.Transcription.CorrectionMethod)
	assert.Equal(t, []domain.CorrectionPair{{Original: "kuenta", Corrected: "cuenta"}}, meta.Transcription.CorrectionsMade)
}

func TestCorrectTranscriptionSkipsAlreadyOfflineDocuments(t *testing.T) {
	svc := &Service{corrector: staticCorrector{out: "should not appear"}}
	meta := &domain.Metadata{
		Transcription: domain.Transcription{
			Text:             "ya corregido",
			CorrectedText:    "ya corregido",
			CorrectionMethod: domain.ProcessingModeOffline,
		},
	}

	svc.correctTranscription(context.Background(), "org-1", meta)

	assert.Equal(t, "ya corregido", meta.Transcription.CorrectedText)
}
