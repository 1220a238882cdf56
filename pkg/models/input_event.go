package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type EventStatus string

const (
	PendingEventStatus    EventStatus = "pending"
	ProcessingEventStatus EventStatus = "processing"
	CompletedEventStatus  EventStatus = "completed"
	FailedEventStatus     EventStatus = "failed"
)

// SourceType identifies the external system an event originated from.
type SourceType string

const (
	MeetingSource      SourceType = "meeting"
	ChatSource         SourceType = "chat"
	IssueTrackerSource SourceType = "issue_tracker"
	ManualSource       SourceType = "manual"
)

// JobStatus is the outcome of a single pipeline job.
type JobStatus string

const (
	CompletedJobStatus JobStatus = "completed"
	SkippedJobStatus   JobStatus = "skipped"
	FailedJobStatus    JobStatus = "failed"
)

// FailureClass classifies why a job failed, so callers can tell transient
// failures (retry the delivery) apart from configuration problems.
type FailureClass string

const (
	FailureInvalidResponse FailureClass = "upstream_invalid_response"
	FailureTimeout         FailureClass = "upstream_timeout"
	FailureUnavailable     FailureClass = "upstream_unavailable"
	FailureConflict        FailureClass = "persistence_conflict"
	FailureFatalConfig     FailureClass = "fatal_config"
	FailureInternal        FailureClass = "internal_error"
)

// JobOutcome records how one job ended within a pipeline run.
type JobOutcome struct {
	Job     string       `json:"job"`
	Status  JobStatus    `json:"status"`
	Message string       `json:"message,omitempty"`
	Class   FailureClass `json:"class,omitempty"`
}

// RunResults is the ordered per-job outcome list persisted on an InputEvent.
// Stored as JSONB.
type RunResults []JobOutcome

func (r RunResults) Value() (driver.Value, error) {
	if r == nil {
		return "[]", nil
	}
	b, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (r *RunResults) Scan(src interface{}) error {
	return scanJSON(src, r)
}

// Int64List is a JSONB-backed list of entity IDs.
type Int64List []int64

func (l Int64List) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *Int64List) Scan(src interface{}) error {
	return scanJSON(src, l)
}

func scanJSON(src, dest interface{}) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dest)
	case string:
		return json.Unmarshal([]byte(v), dest)
	default:
		return fmt.Errorf("cannot scan %T into JSON column", src)
	}
}

// InputEvent is the durable record of one external trigger (webhook delivery
// or manual import) and the pipeline's outcome against it. Events are never
// deleted; they form the audit trail of everything the pipeline produced.
type InputEvent struct {
	ID             int64           `json:"id" db:"id"`
	SourceType     SourceType      `json:"source_type" db:"source_type"`         // meeting, chat, issue_tracker, manual
	EventType      string          `json:"event_type" db:"event_type"`           // e.g. "meeting.ended", "message.created"
	ExternalID     string          `json:"external_id" db:"external_id"`         // dedup key, unique with source_type per org
	Payload        json.RawMessage `json:"payload,omitempty" db:"payload"`       // raw event data as delivered
	Status         EventStatus     `json:"status" db:"status"`                   // pending, processing, completed, failed
	Error          string          `json:"error,omitempty" db:"processing_error"`
	Results        RunResults      `json:"results,omitempty" db:"results"`       // per-job outcomes of the last run
	CreatedTaskIDs Int64List       `json:"created_task_ids" db:"created_task_ids"`
	CreatedNodeIDs Int64List       `json:"created_node_ids" db:"created_node_ids"`
	OrganizationID int64           `json:"organization_id" db:"organization_id"`
	UserID         int64           `json:"user_id" db:"user_id"`                 // user the run executes as (AI settings)
	CanvasID       *int64          `json:"canvas_id,omitempty" db:"canvas_id"`   // optional target canvas
	RetryCount     int             `json:"retry_count" db:"retry_count"`         // number of reprocess attempts
	StartedAt      *time.Time      `json:"started_at,omitempty" db:"processing_started_at"`
	FinishedAt     *time.Time      `json:"finished_at,omitempty" db:"processing_completed_at"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
}
