package domain

import (
	"time"
)

// QACriterion is one item on the quality-assurance scorecard.
type QACriterion struct {
	ID          string    `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Name        string    `json:"name" gorm:"type:varchar(255);not null"`
	Description string    `json:"description" gorm:"type:text"`
	Weight      float64   `json:"weight" gorm:"default:1"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName sets the table name for QACriterion.
func (QACriterion) TableName() string {
	return "qa_criteria"
}

// QAEvaluation scores one call against the criteria set.
type QAEvaluation struct {
	ID             string    `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	OrganizationID string    `json:"organization_id" gorm:"type:uuid;not null;index"`
	CallID         string    `json:"call_id" gorm:"type:uuid;not null;index"`
	Evaluator      string    `json:"evaluator" gorm:"type:varchar(255)"`
	Scores         JSONB     `json:"scores" gorm:"type:jsonb"` // criterion id -> score
	OverallScore   float64   `json:"overall_score"`
	Notes          string    `json:"notes" gorm:"type:text"`
	CreatedAt      time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt      time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName sets the table name for QAEvaluation.
func (QAEvaluation) TableName() string {
	return "qa_evaluations"
}

// CreateQAEvaluationRequest scores a call.
type CreateQAEvaluationRequest struct {
	CallID       string  `json:"call_id" validate:"required"`
	Evaluator    string  `json:"evaluator,omitempty"`
	Scores       JSONB   `json:"scores" validate:"required"`
	OverallScore float64 `json:"overall_score"`
	Notes        string  `json:"notes,omitempty"`
}
