package pipeline

import (
	"context"

	"github.com/pkg/errors"

	"github.com/hadiudoit11/merlin/pkg/models"
	"github.com/hadiudoit11/merlin/pkg/storage"
)

// NodeLinkingJob links every task created in this run to the document node
// the run created. The link table makes double-linking a no-op, so a
// reprocess of the same event does not inflate the link count.
type NodeLinkingJob struct {
	store storage.Store
}

func NewNodeLinkingJob(store storage.Store) *NodeLinkingJob {
	return &NodeLinkingJob{store: store}
}

func (j *NodeLinkingJob) Name() string {
	return "node_linking"
}

func (j *NodeLinkingJob) Run(_ context.Context, jc *Context) Result {
	if len(jc.CreatedTaskIDs) == 0 {
		return Skipped("no tasks to link")
	}
	if jc.DocNodeID == nil {
		return Skipped("no node created in this run")
	}

	linked := 0
	for _, taskID := range jc.CreatedTaskIDs {
		ok, err := j.store.LinkTaskToNode(taskID, *jc.DocNodeID)
		if err != nil {
			if isUniqueViolation(err) {
				return Failed(models.FailureConflict, errors.Wrapf(err, "link task %d", taskID))
			}
			return Failed(models.FailureUnavailable, errors.Wrapf(err, "link task %d", taskID))
		}
		if ok {
			linked++
		}
	}

	return Completed("created %d task-node links", linked)
}
