package domain

import (
	"time"

	pgvector "github.com/pgvector/pgvector-go"
)

// CorrectionEmbeddingDim is the fixed dimension of correction-entry
// embeddings. The embedding service and the vector column must agree on it.
const CorrectionEmbeddingDim = 256

// CorrectionEntry is one learned misheard → canonical mapping. Entries with
// an empty OrganizationID belong to the global seed list shared by all
// tenants. The embedding of the misheard form powers the vector
// nearest-neighbour stage of the hybrid corrector.
type CorrectionEntry struct {
	ID             string          `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	OrganizationID string          `json:"organization_id" gorm:"type:uuid;index"`
	Misheard       string          `json:"misheard" gorm:"type:varchar(255);not null;index"`
	Canonical      string          `json:"canonical" gorm:"type:varchar(255);not null"`
	Embedding      pgvector.Vector `json:"-" gorm:"type:vector(256)"`
	HitCount       int64           `json:"hit_count" gorm:"default:0"`
	CreatedAt      time.Time       `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt      time.Time       `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName sets the table name for CorrectionEntry.
func (CorrectionEntry) TableName() string {
	return "correction_entries"
}

// CriticalCategory names a closed category of words whose low-confidence
// transcription triggers clarification.
type CriticalCategory string

const (
	CategoryNumbers            CriticalCategory = "numbers"
	CategoryDestructiveActions CriticalCategory = "destructive_actions"
	CategoryNegations          CriticalCategory = "negations"
	CategoryConfirmations      CriticalCategory = "confirmations"
)

// CriticalWordList is a tenant override (or the global default when
// OrganizationID is empty) of the word list for one category.
type CriticalWordList struct {
	ID             string           `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	OrganizationID string           `json:"organization_id" gorm:"type:uuid;index"`
	Category       CriticalCategory `json:"category" gorm:"type:varchar(32);not null"`
	Words          JSONB            `json:"words" gorm:"type:jsonb"` // {"words": [...]}
	CreatedAt      time.Time        `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt      time.Time        `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName sets the table name for CriticalWordList.
func (CriticalWordList) TableName() string {
	return "critical_word_lists"
}
