package domain

import (
	"time"
)

// Call is the persistent record of one phone call. The transient per-call
// Session lives only in memory while the call is active.
type Call struct {
	ID             string     `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	OrganizationID string     `json:"organization_id" gorm:"type:uuid;not null;index"`
	AgentID        string     `json:"agent_id" gorm:"type:uuid;not null;index"`
	CallerID       string     `json:"caller_id" gorm:"type:varchar(64)"`
	Status         CallStatus `json:"status" gorm:"type:varchar(32);not null;default:'active'"`
	StartedAt      time.Time  `json:"started_at"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`
	Metadata       JSONB      `json:"metadata" gorm:"type:jsonb"`
	CreatedAt      time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt      time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName sets the table name for Call.
func (Call) TableName() string {
	return "calls"
}

// Turn is one speaker round within a call. Append-only.
type Turn struct {
	ID             string     `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	OrganizationID string     `json:"organization_id" gorm:"type:uuid;not null;index"`
	CallID         string     `json:"call_id" gorm:"type:uuid;not null;index"`
	Seq            int        `json:"seq" gorm:"not null"`
	Role           TurnRole   `json:"role" gorm:"type:varchar(16);not null"`
	Text           string     `json:"text" gorm:"type:text"`
	StartedAt      time.Time  `json:"started_at"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`
	STTConfidence  float64    `json:"stt_confidence"`
	Corrections    JSONB      `json:"corrections" gorm:"type:jsonb"` // original -> corrected pairs
	SentimentLabel string     `json:"sentiment_label" gorm:"type:varchar(32)"`
	SentimentScore float64    `json:"sentiment_score"`
	STTLatencyMs   *int64     `json:"stt_latency_ms,omitempty"`
	LLMLatencyMs   *int64     `json:"llm_latency_ms,omitempty"`
	TTSLatencyMs   *int64     `json:"tts_latency_ms,omitempty"`
	DenoiseMs      *int64     `json:"denoise_latency_ms,omitempty"`
	WasInterrupted bool       `json:"was_interrupted" gorm:"default:false"`
	CreatedAt      time.Time  `json:"created_at" gorm:"autoCreateTime"`
}

// TableName sets the table name for Turn.
func (Turn) TableName() string {
	return "turns"
}

// CallEvent is an append-only structured log row keyed by call.
type CallEvent struct {
	ID             string    `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	OrganizationID string    `json:"organization_id" gorm:"type:uuid;not null;index"`
	CallID         string    `json:"call_id" gorm:"type:uuid;not null;index"`
	Stage          string    `json:"stage" gorm:"type:varchar(64);not null"`
	InputDigest    string    `json:"input_digest" gorm:"type:varchar(64)"`
	OutputDigest   string    `json:"output_digest" gorm:"type:varchar(64)"`
	LatencyMs      int64     `json:"latency_ms"`
	ModelID        string    `json:"model_id" gorm:"type:varchar(128)"`
	Params         JSONB     `json:"params" gorm:"type:jsonb"`
	CreatedAt      time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName sets the table name for CallEvent.
func (CallEvent) TableName() string {
	return "call_events"
}

// CallSummary is the aggregate written on call close and served by the
// metrics summary endpoint.
type CallSummary struct {
	TotalCalls       int64   `json:"total_calls"`
	TotalTurns       int64   `json:"total_turns"`
	AvgSTTLatencyMs  float64 `json:"avg_stt_latency_ms"`
	AvgLLMLatencyMs  float64 `json:"avg_llm_latency_ms"`
	AvgTTSLatencyMs  float64 `json:"avg_tts_latency_ms"`
	AvgTotalMs       float64 `json:"avg_total_latency_ms"`
	AvgConfidence    float64 `json:"avg_confidence"`
	AvgSentiment     float64 `json:"avg_sentiment_score"`
	Interruptions    int64   `json:"interruptions"`
	CorrectionsTotal int64   `json:"corrections_total"`
}
