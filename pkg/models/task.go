package models

import "time"

type TaskStatus string

const (
	PendingTaskStatus    TaskStatus = "pending"
	InProgressTaskStatus TaskStatus = "in_progress"
	CompletedTaskStatus  TaskStatus = "completed"
	CancelledTaskStatus  TaskStatus = "cancelled"
)

type TaskPriority string

const (
	LowPriority    TaskPriority = "low"
	MediumPriority TaskPriority = "medium"
	HighPriority   TaskPriority = "high"
	UrgentPriority TaskPriority = "urgent"
)

// TaskSource tracks where a task originated from.
type TaskSource string

const (
	ManualTaskSource       TaskSource = "manual"
	MeetingTaskSource      TaskSource = "meeting"
	ChatTaskSource         TaskSource = "chat"
	IssueTrackerTaskSource TaskSource = "issue_tracker"
	AIExtractedTaskSource  TaskSource = "ai_extracted"
)

// Task is a unit of work extracted from a meeting or message, or created
// manually. (source, source_id) is unique per organization so replayed
// webhook deliveries update the existing row instead of creating a duplicate.
type Task struct {
	ID             int64        `json:"id" db:"id"`
	OrganizationID int64        `json:"organization_id" db:"organization_id"`
	UserID         int64        `json:"user_id" db:"user_id"`                     // creator
	Title          string       `json:"title" db:"title"`
	Description    string       `json:"description,omitempty" db:"description"`
	AssigneeName   string       `json:"assignee_name,omitempty" db:"assignee_name"`   // name as spoken in the source
	AssigneeEmail  string       `json:"assignee_email,omitempty" db:"assignee_email"`
	AssigneeUserID *int64       `json:"assignee_user_id,omitempty" db:"assignee_user_id"` // set only on a confident match
	DueDate        *time.Time   `json:"due_date,omitempty" db:"due_date"`
	DueDateText    string       `json:"due_date_text,omitempty" db:"due_date_text"` // verbatim phrase, e.g. "next Friday"
	Status         TaskStatus   `json:"status" db:"status"`
	Priority       TaskPriority `json:"priority" db:"priority"`
	Source         TaskSource   `json:"source" db:"source"`
	SourceID       string       `json:"source_id" db:"source_id"`       // external reference for dedup/update
	Context        string       `json:"context,omitempty" db:"context"` // surrounding snippet from the source
	CanvasID       *int64       `json:"canvas_id,omitempty" db:"canvas_id"`
	CreatedAt      time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at" db:"updated_at"`
}

// ActionItem is a task draft extracted by the language model, before it is
// resolved against organization members and persisted.
type ActionItem struct {
	Title         string       `json:"task"`
	Description   string       `json:"description,omitempty"`
	AssigneeName  string       `json:"assignee,omitempty"`
	AssigneeEmail string       `json:"assignee_email,omitempty"`
	DueDateText   string       `json:"due_date,omitempty"`
	Priority      TaskPriority `json:"priority,omitempty"`
	Context       string       `json:"context,omitempty"`
}
