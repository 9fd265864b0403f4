// Package metrics writes the per-turn observability rows: stage
// latencies, confidences, sentiment and the append-only call event log.
// Rows are written off the hot path so a slow database never stalls a
// turn.
package metrics

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/centralita-ai/voice-orchestrator/internal/domain"
	"github.com/centralita-ai/voice-orchestrator/internal/repository"
	"github.com/centralita-ai/voice-orchestrator/pkg/logger"
	"go.uber.org/zap"
)

// writeTimeout bounds a metrics write so a stuck database cannot pile up
// goroutines forever.
const writeTimeout = 5 * time.Second

// Recorder persists turns and stage events.
type Recorder struct {
	calls *repository.CallRepository
}

// NewRecorder builds the recorder.
func NewRecorder(calls *repository.CallRepository) *Recorder {
	return &Recorder{calls: calls}
}

// TurnRecord is everything known about one finished turn.
type TurnRecord struct {
	OrgID          string
	CallID         string
	Role           domain.TurnRole
	Text           string
	StartedAt      time.Time
	EndedAt        time.Time
	STTConfidence  float64
	Corrections    []domain.CorrectionPair
	SentimentLabel string
	SentimentScore float64
	STTLatencyMS   *int64
	LLMLatencyMS   *int64
	TTSLatencyMS   *int64
	DenoiseMS      *int64
	WasInterrupted bool
}

// RecordTurn appends the turn row asynchronously. Sequence numbers are
// assigned inside the append transaction, so concurrent calls stay dense.
func (r *Recorder) RecordTurn(rec TurnRecord) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()

		corrections := domain.JSONB{}
		for _, p := range rec.Corrections {
			corrections[p.Original] = p.Corrected
		}
		ended := rec.EndedAt
		turn := &domain.Turn{
			OrganizationID: rec.OrgID,
			CallID:         rec.CallID,
			Role:           rec.Role,
			Text:           rec.Text,
			StartedAt:      rec.StartedAt,
			EndedAt:        &ended,
			STTConfidence:  rec.STTConfidence,
			Corrections:    corrections,
			SentimentLabel: rec.SentimentLabel,
			SentimentScore: rec.SentimentScore,
			STTLatencyMs:   rec.STTLatencyMS,
			LLMLatencyMs:   rec.LLMLatencyMS,
			TTSLatencyMs:   rec.TTSLatencyMS,
			DenoiseMs:      rec.DenoiseMS,
			WasInterrupted: rec.WasInterrupted,
		}
		if err := r.calls.AppendTurn(ctx, turn); err != nil {
			logger.Base().Warn("failed to record turn",
				zap.String("call_id", rec.CallID), zap.Error(err))
		}
	}()
}

// RecordStage appends one stage event with input/output digests instead
// of payloads, keeping transcripts out of the event log.
func (r *Recorder) RecordStage(orgID, callID, stage string, input, output string, latency time.Duration, params domain.JSONB) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		ev := &domain.CallEvent{
			OrganizationID: orgID,
			CallID:         callID,
			Stage:          stage,
			InputDigest:    digest(input),
			OutputDigest:   digest(output),
			LatencyMs:      latency.Milliseconds(),
			Params:         params,
		}
		if err := r.calls.AppendEvent(ctx, ev); err != nil {
			logger.Base().Warn("failed to record stage event",
				zap.String("call_id", callID), zap.String("stage", stage), zap.Error(err))
		}
	}()
}

// Summary aggregates the last days of calls for one organization.
func (r *Recorder) Summary(ctx context.Context, orgID string, days int) (*domain.CallSummary, error) {
	return r.calls.Summary(ctx, orgID, days)
}

func digest(s string) string {
	if s == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
