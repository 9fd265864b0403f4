package domain

import (
	"time"
)

// Organization is the tenant root. Every other persistent entity is
// reachable only through its organization id.
type Organization struct {
	ID                 string    `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Name               string    `json:"name" gorm:"type:varchar(255);not null"`
	Plan               Plan      `json:"plan" gorm:"type:varchar(32);not null;default:'basic'"`
	MaxAgents          int       `json:"max_agents" gorm:"not null;default:5"`
	MaxConcurrentCalls int       `json:"max_concurrent_calls" gorm:"not null;default:10"`
	Active             bool      `json:"active" gorm:"default:true"`
	Settings           JSONB     `json:"settings" gorm:"type:jsonb"`
	CreatedAt          time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt          time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName sets the table name for Organization.
func (Organization) TableName() string {
	return "organizations"
}

// CreateOrganizationRequest is the admin request to create a tenant.
type CreateOrganizationRequest struct {
	Name               string `json:"name" validate:"required"`
	Plan               Plan   `json:"plan,omitempty"`
	MaxAgents          int    `json:"max_agents,omitempty"`
	MaxConcurrentCalls int    `json:"max_concurrent_calls,omitempty"`
	Settings           JSONB  `json:"settings,omitempty"`
}

// UpdateOrganizationRequest updates plan, limits or the active flag.
// Name is immutable after creation.
type UpdateOrganizationRequest struct {
	Plan               *Plan  `json:"plan,omitempty"`
	MaxAgents          *int   `json:"max_agents,omitempty"`
	MaxConcurrentCalls *int   `json:"max_concurrent_calls,omitempty"`
	Active             *bool  `json:"active,omitempty"`
	Settings           *JSONB `json:"settings,omitempty"`
}
