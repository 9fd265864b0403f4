package domain

import (
	"time"
)

// Agent is a virtual conversational agent owned by exactly one organization.
// The count of agents per organization never exceeds the plan's MaxAgents.
type Agent struct {
	ID               string      `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	OrganizationID   string      `json:"organization_id" gorm:"type:uuid;not null;index"`
	Name             string      `json:"name" gorm:"type:varchar(255);not null"`
	Status           AgentStatus `json:"status" gorm:"type:varchar(32);not null;default:'idle'"`
	VoiceProfileID   *string     `json:"voice_profile_id,omitempty" gorm:"type:varchar(255)"`
	ContextProfileID *string     `json:"context_profile_id,omitempty" gorm:"type:varchar(255)"`
	RuntimeConfig    JSONB       `json:"runtime_config" gorm:"type:jsonb"`
	CreatedAt        time.Time   `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt        time.Time   `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName sets the table name for Agent.
func (Agent) TableName() string {
	return "agents"
}

// CreateAgentRequest creates an agent within an organization.
type CreateAgentRequest struct {
	Name             string  `json:"name" validate:"required"`
	VoiceProfileID   *string `json:"voice_profile_id,omitempty"`
	ContextProfileID *string `json:"context_profile_id,omitempty"`
	RuntimeConfig    JSONB   `json:"runtime_config,omitempty"`
}

// UpdateAgentRequest updates an agent's mutable fields.
type UpdateAgentRequest struct {
	Name             *string      `json:"name,omitempty"`
	Status           *AgentStatus `json:"status,omitempty"`
	VoiceProfileID   *string      `json:"voice_profile_id,omitempty"`
	ContextProfileID *string      `json:"context_profile_id,omitempty"`
	RuntimeConfig    *JSONB       `json:"runtime_config,omitempty"`
}

// ContextProfile holds the prompt material an agent speaks from.
type ContextProfile struct {
	ID             string    `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	OrganizationID string    `json:"organization_id" gorm:"type:uuid;not null;index"`
	Name           string    `json:"name" gorm:"type:varchar(255);not null"`
	SystemPrompt   string    `json:"system_prompt" gorm:"type:text"`
	Variables      JSONB     `json:"variables" gorm:"type:jsonb"`
	CreatedAt      time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt      time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName sets the table name for ContextProfile.
func (ContextProfile) TableName() string {
	return "context_profiles"
}
