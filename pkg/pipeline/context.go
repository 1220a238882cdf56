package pipeline

import (
	"time"

	"github.com/hadiudoit11/merlin/pkg/models"
)

// MeetingInfo carries source metadata used for the extraction prompt and the
// generated notes document.
type MeetingInfo struct {
	Topic           string
	Participants    []string
	StartTime       *time.Time
	DurationMinutes int
}

// TranscriptSegment is one parsed cue of a subtitle-format transcript.
type TranscriptSegment struct {
	Start   string
	End     string
	Speaker string
	Text    string
}

// Context is the shared state threaded through one pipeline run. It is
// created fresh per run and owned exclusively by that run; only its final
// projection (created ids, per-job outcomes) is written onto the InputEvent.
//
// A field written by one job is read-only for the jobs after it, except the
// created-id lists, which accumulate.
type Context struct {
	Event          *models.InputEvent
	UserID         int64
	OrganizationID int64
	CanvasID       *int64
	Meeting        MeetingInfo

	// Raw payload content, seeded by the caller before the run starts.
	RawContent string

	// Populated by the extraction job.
	Transcript string
	Segments   []TranscriptSegment

	// Populated by the notes job.
	Summary     string
	KeyPoints   []string
	ActionItems []models.ActionItem
	Decisions   []string

	// Accumulated by the persistence jobs.
	CreatedTaskIDs []int64
	CreatedNodeIDs []int64
	DocNodeID      *int64
}
