package pipeline_test

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"github.com/hadiudoit11/merlin/pkg/models"
	"github.com/hadiudoit11/merlin/pkg/pipeline"
	"github.com/hadiudoit11/merlin/pkg/storage"
)

func taskContext(store *storage.MockStore) *pipeline.Context {
	return &pipeline.Context{
		Event: &models.InputEvent{
			ID:         1,
			SourceType: models.MeetingSource,
			ExternalID: "mtg-42",
		},
		UserID:         7,
		OrganizationID: 1,
		ActionItems: []models.ActionItem{
			{Title: "A", AssigneeName: "John Smith", DueDateText: "Friday", Priority: models.HighPriority},
			{Title: "B"},
		},
	}
}

func TestTaskExtractionJob(t *testing.T) {
	t.Run("SkipsWithoutDrafts", func(t *testing.T) {
		store := storage.NewMockStore()
		job := pipeline.NewTaskExtractionJob(store, pipeline.NewBestEffortMatcher(), testLogger{})
		jc := taskContext(store)
		jc.ActionItems = nil
		res := job.Run(context.Background(), jc)
		assert.Equal(t, models.SkippedJobStatus, res.Status)
		assert.Empty(t, jc.CreatedTaskIDs)
	})

	t.Run("CreatesTasksFromDrafts", func(t *testing.T) {
		store := storage.NewMockStore()
		store.AddMember(models.Member{OrganizationID: 1, UserID: 10, Name: "John Smith", Email: "john@example.com"})
		job := pipeline.NewTaskExtractionJob(store, pipeline.NewBestEffortMatcher(), testLogger{})
		jc := taskContext(store)

		res := job.Run(context.Background(), jc)
		assert.Equal(t, models.CompletedJobStatus, res.Status)
		assert.Len(t, jc.CreatedTaskIDs, 2)

		task, err := store.GetTask(jc.CreatedTaskIDs[0])
		assert.NoError(t, err)
		assert.Equal(t, "A", task.Title)
		assert.Equal(t, models.PendingTaskStatus, task.Status)
		assert.Equal(t, models.MeetingTaskSource, task.Source)
		assert.Equal(t, "mtg-42:0", task.SourceID)
		assert.Equal(t, "Friday", task.DueDateText)
		if assert.NotNil(t, task.AssigneeUserID) {
			assert.Equal(t, int64(10), *task.AssigneeUserID)
		}

		second, err := store.GetTask(jc.CreatedTaskIDs[1])
		assert.NoError(t, err)
		assert.Equal(t, "mtg-42:1", second.SourceID)
		assert.Nil(t, second.AssigneeUserID)
	})

	t.Run("LongTitleTruncatesOnRuneBoundary", func(t *testing.T) {
		store := storage.NewMockStore()
		job := pipeline.NewTaskExtractionJob(store, pipeline.NewBestEffortMatcher(), testLogger{})
		jc := taskContext(store)
		jc.ActionItems = []models.ActionItem{{Title: strings.Repeat("ü", 400)}}

		res := job.Run(context.Background(), jc)
		assert.Equal(t, models.CompletedJobStatus, res.Status)

		task, err := store.GetTask(jc.CreatedTaskIDs[0])
		assert.NoError(t, err)
		assert.LessOrEqual(t, len(task.Title), 500)
		assert.True(t, utf8.ValidString(task.Title))
	})

	t.Run("RerunUpdatesInsteadOfDuplicating", func(t *testing.T) {
		store := storage.NewMockStore()
		job := pipeline.NewTaskExtractionJob(store, pipeline.NewBestEffortMatcher(), testLogger{})

		first := taskContext(store)
		res := job.Run(context.Background(), first)
		assert.Equal(t, models.CompletedJobStatus, res.Status)

		second := taskContext(store)
		res = job.Run(context.Background(), second)
		assert.Equal(t, models.CompletedJobStatus, res.Status)

		// Same ids, and the org still has exactly two tasks.
		assert.Equal(t, first.CreatedTaskIDs, second.CreatedTaskIDs)
		tasks, err := store.ListTasks(1)
		assert.NoError(t, err)
		assert.Len(t, tasks, 2)
	})
}
