package models

// Member is an organization member, used for best-effort assignee matching.
type Member struct {
	OrganizationID int64  `json:"organization_id" db:"organization_id"`
	UserID         int64  `json:"user_id" db:"user_id"`
	Name           string `json:"name" db:"name"`
	Email          string `json:"email" db:"email"`
}
