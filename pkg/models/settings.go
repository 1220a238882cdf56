package models

import "time"

type SettingsScope string

const (
	OrganizationScope SettingsScope = "organization"
	UserScope         SettingsScope = "user"
)

// ProviderSettings holds the language-model credentials configured for an
// organization or an individual user. Resolution order is org → user →
// system defaults (see internal/settings).
type ProviderSettings struct {
	ID             int64         `json:"id" db:"id"`
	Scope          SettingsScope `json:"scope" db:"scope"`
	OrganizationID *int64        `json:"organization_id,omitempty" db:"organization_id"`
	UserID         *int64        `json:"user_id,omitempty" db:"user_id"`
	Provider       string        `json:"provider" db:"provider"` // anthropic, openai, ollama
	Model          string        `json:"model" db:"model"`
	APIKey         string        `json:"-" db:"api_key"`
	CreatedAt      time.Time     `json:"created_at" db:"created_at"`
}
