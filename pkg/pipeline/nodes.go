package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/hadiudoit11/merlin/pkg/models"
	"github.com/hadiudoit11/merlin/pkg/storage"
)

// NodeCreationJob renders the extracted notes as a markdown document node on
// the target canvas. Canvas-less sources (e.g. a pure task-sync webhook)
// skip this step.
type NodeCreationJob struct {
	store storage.Store
}

func NewNodeCreationJob(store storage.Store) *NodeCreationJob {
	return &NodeCreationJob{store: store}
}

func (j *NodeCreationJob) Name() string {
	return "node_creation"
}

func (j *NodeCreationJob) Run(_ context.Context, jc *Context) Result {
	if jc.CanvasID == nil {
		return Skipped("no target canvas specified")
	}
	if jc.Summary == "" {
		return Skipped("no summary to render")
	}

	if _, err := j.store.GetCanvas(*jc.CanvasID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// The canvas configured for this source no longer exists.
			return Failed(models.FailureFatalConfig, errors.Errorf("canvas %d not found", *jc.CanvasID))
		}
		return Failed(models.FailureUnavailable, errors.Wrap(err, "get canvas"))
	}

	topic := jc.Meeting.Topic
	if topic == "" {
		topic = "Meeting Notes"
	}
	node := models.Node{
		CanvasID:  *jc.CanvasID,
		Name:      topic,
		NodeType:  "doc",
		Content:   formatMeetingNotes(jc),
		PositionX: 100,
		PositionY: 100,
	}

	id, err := j.store.CreateNode(node)
	if err != nil {
		if isUniqueViolation(err) {
			return Failed(models.FailureConflict, errors.Wrap(err, "create node"))
		}
		return Failed(models.FailureUnavailable, errors.Wrap(err, "create node"))
	}

	jc.DocNodeID = &id
	jc.CreatedNodeIDs = append(jc.CreatedNodeIDs, id)
	return Completed("created notes node %d", id)
}

// formatMeetingNotes renders the extraction as a markdown document.
func formatMeetingNotes(jc *Context) string {
	var b strings.Builder

	topic := jc.Meeting.Topic
	if topic == "" {
		topic = "Meeting"
	}
	fmt.Fprintf(&b, "# %s\n\n", topic)

	if jc.Meeting.StartTime != nil {
		fmt.Fprintf(&b, "**Date:** %s\n", jc.Meeting.StartTime.Format("January 2, 2006"))
	}
	if jc.Meeting.DurationMinutes > 0 {
		fmt.Fprintf(&b, "**Duration:** %d minutes\n", jc.Meeting.DurationMinutes)
	}
	if len(jc.Meeting.Participants) > 0 {
		fmt.Fprintf(&b, "**Participants:** %s\n", strings.Join(jc.Meeting.Participants, ", "))
	}

	fmt.Fprintf(&b, "\n## Summary\n%s\n", jc.Summary)

	b.WriteString("\n## Key Discussion Points\n")
	if len(jc.KeyPoints) == 0 {
		b.WriteString("- No key points identified\n")
	}
	for _, point := range jc.KeyPoints {
		fmt.Fprintf(&b, "- %s\n", point)
	}

	b.WriteString("\n## Action Items\n")
	if len(jc.ActionItems) == 0 {
		b.WriteString("- No action items identified\n")
	}
	for _, item := range jc.ActionItems {
		assignee := item.AssigneeName
		if assignee == "" {
			assignee = "unassigned"
		}
		fmt.Fprintf(&b, "- [ ] **%s** - @%s", item.Title, assignee)
		if item.DueDateText != "" {
			fmt.Fprintf(&b, " (Due: %s)", item.DueDateText)
		}
		b.WriteString("\n")
	}

	b.WriteString("\n## Decisions Made\n")
	if len(jc.Decisions) == 0 {
		b.WriteString("- No decisions recorded\n")
	}
	for _, d := range jc.Decisions {
		fmt.Fprintf(&b, "- %s\n", d)
	}

	b.WriteString("\n---\n*Notes automatically generated from meeting recording*\n")
	return b.String()
}
