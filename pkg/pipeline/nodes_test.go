package pipeline_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/hadiudoit11/merlin/pkg/models"
	"github.com/hadiudoit11/merlin/pkg/pipeline"
	"github.com/hadiudoit11/merlin/pkg/storage"
)

func nodeContext(canvasID *int64) *pipeline.Context {
	start := time.Date(2026, 8, 14, 10, 0, 0, 0, time.UTC)
	return &pipeline.Context{
		Event:          &models.InputEvent{ID: 1, SourceType: models.MeetingSource},
		OrganizationID: 1,
		CanvasID:       canvasID,
		Meeting: pipeline.MeetingInfo{
			Topic:           "Quarterly Review",
			Participants:    []string{"John", "Sarah"},
			StartTime:       &start,
			DurationMinutes: 30,
		},
		Summary:   "The team reviewed quarterly numbers.",
		KeyPoints: []string{"Revenue is up twelve percent"},
		ActionItems: []models.ActionItem{
			{Title: "Follow up with client", AssigneeName: "John", DueDateText: "Friday"},
		},
		Decisions: []string{"Ship the beta next sprint"},
	}
}

func TestNodeCreationJob(t *testing.T) {
	canvasID := int64(5)

	t.Run("SkipsWithoutCanvas", func(t *testing.T) {
		store := storage.NewMockStore()
		job := pipeline.NewNodeCreationJob(store)
		res := job.Run(context.Background(), nodeContext(nil))
		assert.Equal(t, models.SkippedJobStatus, res.Status)
	})

	t.Run("SkipsWithoutSummary", func(t *testing.T) {
		store := storage.NewMockStore()
		store.AddCanvas(models.Canvas{ID: canvasID, OrganizationID: 1})
		job := pipeline.NewNodeCreationJob(store)
		jc := nodeContext(&canvasID)
		jc.Summary = ""
		res := job.Run(context.Background(), jc)
		assert.Equal(t, models.SkippedJobStatus, res.Status)
	})

	t.Run("MissingCanvasIsFatalConfig", func(t *testing.T) {
		store := storage.NewMockStore()
		job := pipeline.NewNodeCreationJob(store)
		res := job.Run(context.Background(), nodeContext(&canvasID))
		assert.Equal(t, models.FailedJobStatus, res.Status)
		assert.Equal(t, models.FailureFatalConfig, res.Class)
	})

	t.Run("CreatesNotesNode", func(t *testing.T) {
		store := storage.NewMockStore()
		store.AddCanvas(models.Canvas{ID: canvasID, OrganizationID: 1})
		job := pipeline.NewNodeCreationJob(store)
		jc := nodeContext(&canvasID)

		res := job.Run(context.Background(), jc)
		assert.Equal(t, models.CompletedJobStatus, res.Status)
		assert.Len(t, jc.CreatedNodeIDs, 1)
		if assert.NotNil(t, jc.DocNodeID) {
			node, err := store.GetNode(*jc.DocNodeID)
			assert.NoError(t, err)
			assert.Equal(t, "doc", node.NodeType)
			assert.Equal(t, "Quarterly Review", node.Name)
			assert.Contains(t, node.Content, "# Quarterly Review")
			assert.Contains(t, node.Content, "**Date:** August 14, 2026")
			assert.Contains(t, node.Content, "**Duration:** 30 minutes")
			assert.Contains(t, node.Content, "The team reviewed quarterly numbers.")
			assert.Contains(t, node.Content, "- Revenue is up twelve percent")
			assert.Contains(t, node.Content, "- [ ] **Follow up with client** - @John (Due: Friday)")
			assert.Contains(t, node.Content, "- Ship the beta next sprint")
		}
	})
}

func TestNodeLinkingJob(t *testing.T) {
	t.Run("SkipsWithoutTasks", func(t *testing.T) {
		store := storage.NewMockStore()
		job := pipeline.NewNodeLinkingJob(store)
		jc := &pipeline.Context{Event: &models.InputEvent{}}
		res := job.Run(context.Background(), jc)
		assert.Equal(t, models.SkippedJobStatus, res.Status)
	})

	t.Run("SkipsWithoutNode", func(t *testing.T) {
		store := storage.NewMockStore()
		job := pipeline.NewNodeLinkingJob(store)
		jc := &pipeline.Context{Event: &models.InputEvent{}, CreatedTaskIDs: []int64{1}}
		res := job.Run(context.Background(), jc)
		assert.Equal(t, models.SkippedJobStatus, res.Status)
	})

	t.Run("LinksRunTasksToRunNode", func(t *testing.T) {
		store := storage.NewMockStore()
		nodeID := int64(9)
		job := pipeline.NewNodeLinkingJob(store)
		jc := &pipeline.Context{
			Event:          &models.InputEvent{},
			CreatedTaskIDs: []int64{1, 2},
			DocNodeID:      &nodeID,
		}

		res := job.Run(context.Background(), jc)
		assert.Equal(t, models.CompletedJobStatus, res.Status)
		links, err := store.ListNodeLinks(1)
		assert.NoError(t, err)
		assert.Len(t, links, 1)
		assert.Equal(t, nodeID, links[0].NodeID)

		// Re-linking on reprocess is a no-op.
		res = job.Run(context.Background(), jc)
		assert.Equal(t, models.CompletedJobStatus, res.Status)
		links, err = store.ListNodeLinks(1)
		assert.NoError(t, err)
		assert.Len(t, links, 1)
	})
}
