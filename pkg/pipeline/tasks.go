package pipeline

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/hadiudoit11/merlin/pkg/models"
	"github.com/hadiudoit11/merlin/pkg/storage"
)

// TaskExtractionJob persists the action-item drafts as tasks. The source id
// of each task is derived deterministically from the event's external id and
// the draft index, so a re-delivered or reprocessed event updates the
// existing rows instead of creating duplicates.
type TaskExtractionJob struct {
	store   storage.Store
	matcher Matcher
	logger  Logger
}

func NewTaskExtractionJob(store storage.Store, matcher Matcher, logger Logger) *TaskExtractionJob {
	return &TaskExtractionJob{store: store, matcher: matcher, logger: logger}
}

func (j *TaskExtractionJob) Name() string {
	return "task_extraction"
}

func (j *TaskExtractionJob) Run(_ context.Context, jc *Context) Result {
	if len(jc.ActionItems) == 0 {
		return Skipped("no action items to process")
	}

	members, err := j.store.ListOrganizationMembers(jc.OrganizationID)
	if err != nil {
		return Failed(models.FailureUnavailable, errors.Wrap(err, "list organization members"))
	}

	created := 0
	for i, item := range jc.ActionItems {
		title := item.Title
		if title == "" {
			title = "Untitled Task"
		}
		title = truncateText(title, 500)

		task := models.Task{
			OrganizationID: jc.OrganizationID,
			UserID:         jc.UserID,
			Title:          title,
			Description:    item.Description,
			AssigneeName:   item.AssigneeName,
			AssigneeEmail:  item.AssigneeEmail,
			DueDateText:    item.DueDateText,
			Status:         models.PendingTaskStatus,
			Priority:       item.Priority,
			Source:         taskSourceFor(jc.Event.SourceType),
			SourceID:       fmt.Sprintf("%s:%d", jc.Event.ExternalID, i),
			Context:        item.Context,
			CanvasID:       jc.CanvasID,
		}
		if userID, ok := j.matcher.Match(item, members); ok {
			task.AssigneeUserID = &userID
		}

		id, wasCreated, err := j.store.UpsertTask(task)
		if err != nil {
			if isUniqueViolation(err) {
				return Failed(models.FailureConflict, errors.Wrapf(err, "unexpected conflict upserting task %d", i))
			}
			return Failed(models.FailureUnavailable, errors.Wrapf(err, "upsert task %d", i))
		}
		if wasCreated {
			created++
		}
		jc.CreatedTaskIDs = append(jc.CreatedTaskIDs, id)
	}

	return Completed("persisted %d tasks (%d new)", len(jc.CreatedTaskIDs), created)
}

func taskSourceFor(st models.SourceType) models.TaskSource {
	switch st {
	case models.MeetingSource:
		return models.MeetingTaskSource
	case models.ChatSource:
		return models.ChatTaskSource
	case models.IssueTrackerSource:
		return models.IssueTrackerTaskSource
	default:
		return models.AIExtractedTaskSource
	}
}

// truncateText caps s at limit bytes without splitting a multi-byte rune.
func truncateText(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}

// isUniqueViolation reports whether err is a Postgres unique-constraint
// error outside the designed upsert path.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
