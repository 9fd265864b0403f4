package domain

import (
	"time"
)

// Recording is the persistent index row for an audio artifact. The
// authoritative metadata document lives beside the audio blob; the row
// mirrors the fields needed for listing and the processed flag the batch
// worker toggles.
type Recording struct {
	ID             string         `json:"recording_id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	OrganizationID string         `json:"org_id" gorm:"type:uuid;not null;index"`
	CallID         string         `json:"conversation_id" gorm:"type:uuid;not null;index"`
	Direction      Direction      `json:"direction" gorm:"type:varchar(16);not null"`
	Format         string         `json:"format" gorm:"type:varchar(16)"`
	SampleRate     int            `json:"sample_rate"`
	DurationSec    float64        `json:"duration_seconds"`
	SizeBytes      int64          `json:"file_size_bytes"`
	ChecksumSHA256 string         `json:"checksum_sha256" gorm:"type:varchar(64)"`
	Processed      bool           `json:"processed" gorm:"default:false;index"`
	ProcessingMode ProcessingMode `json:"processing_mode" gorm:"type:varchar(16);default:'online'"`
	CreatedAt      time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt      time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName sets the table name for Recording.
func (Recording) TableName() string {
	return "recordings"
}

// Metadata is the canonical per-recording JSON document. Parse/serialize
// round-trips are identity on these fields.
type Metadata struct {
	RecordingID    string         `json:"recording_id"`
	ConversationID string         `json:"conversation_id"`
	OrgID          string         `json:"org_id"`
	Timestamp      time.Time      `json:"timestamp"`
	Direction      Direction      `json:"direction"`
	Audio          AudioBlock     `json:"audio"`
	Transcription  Transcription  `json:"transcription"`
	Sentiment      SentimentBlock `json:"sentiment"`
	Intent         *IntentBlock   `json:"intent,omitempty"`
	Entities       *EntityBlock   `json:"entities,omitempty"`
	Topics         *TopicBlock    `json:"topics,omitempty"`
	Turns          []TurnSummary  `json:"turns"`
	Metrics        MetricsBlock   `json:"processing_metrics"`
	Processed      bool           `json:"processed"`
	ProcessingMode ProcessingMode `json:"processing_mode"`
}

// AudioBlock describes the audio artifact.
type AudioBlock struct {
	Format         string  `json:"format"`
	SampleRate     int     `json:"sample_rate"`
	DurationSec    float64 `json:"duration_seconds"`
	SizeBytes      int64   `json:"file_size_bytes"`
	ChecksumSHA256 string  `json:"checksum_sha256"`
}

// Transcription is the transcript block of the metadata document.
type Transcription struct {
	Text             string           `json:"text"`
	CorrectedText    string           `json:"corrected_text"`
	Language         string           `json:"language"`
	Confidence       float64          `json:"confidence"`
	CorrectionsMade  []CorrectionPair `json:"corrections_made"`
	CorrectionMethod ProcessingMode   `json:"correction_method"`
}

// CorrectionPair records one applied correction.
type CorrectionPair struct {
	Original  string `json:"original"`
	Corrected string `json:"corrected"`
}

// SentimentBlock is the fused sentiment of the call.
type SentimentBlock struct {
	Label         string  `json:"label"`
	Score         float64 `json:"score"`
	Confidence    float64 `json:"confidence"`
	EmotionalTone string  `json:"emotional_tone"`
}

// IntentBlock is filled by the offline enrichment worker.
type IntentBlock struct {
	PrimaryIntent    string   `json:"primary_intent"`
	SecondaryIntents []string `json:"secondary_intents"`
	Confidence       float64  `json:"confidence"`
}

// EntityBlock is filled by the offline enrichment worker.
type EntityBlock struct {
	AccountNumbers []string `json:"account_numbers"`
	Amounts        []string `json:"amounts"`
	Emails         []string `json:"emails"`
	Phones         []string `json:"phones"`
	Dates          []string `json:"dates"`
}

// TopicBlock is filled by the offline enrichment worker.
type TopicBlock struct {
	Topics         []string `json:"topics"`
	Keywords       []string `json:"keywords"`
	CoherenceScore float64  `json:"coherence_score"`
}

// TurnSummary is the per-turn slice of the metadata document.
type TurnSummary struct {
	Role           TurnRole   `json:"role"`
	Text           string     `json:"text"`
	StartedAt      time.Time  `json:"started_at"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`
	STTConfidence  float64    `json:"stt_confidence"`
	WasInterrupted bool       `json:"was_interrupted"`
}

// MetricsBlock aggregates the per-stage latencies (averages over turns).
type MetricsBlock struct {
	STTMsAvg     float64 `json:"stt_ms_avg"`
	LLMMsAvg     float64 `json:"llm_ms_avg"`
	TTSMsAvg     float64 `json:"tts_ms_avg"`
	DenoiseMsAvg float64 `json:"denoise_ms_avg"`
	TotalMsAvg   float64 `json:"total_ms_avg"`
}
