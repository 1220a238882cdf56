package pipeline

import (
	"context"

	"github.com/pkg/errors"

	"github.com/hadiudoit11/merlin/pkg/models"
	"github.com/hadiudoit11/merlin/pkg/storage"
)

// RunSummary is the ordered outcome of one pipeline run.
type RunSummary struct {
	Outcomes     []models.JobOutcome
	TasksCreated int
	NodesCreated int
}

// Failed reports whether the run stopped on a job failure, and which one.
func (s RunSummary) Failed() (models.JobOutcome, bool) {
	for _, out := range s.Outcomes {
		if out.Status == models.FailedJobStatus {
			return out, true
		}
	}
	return models.JobOutcome{}, false
}

// InputProcessor executes an ordered list of jobs against one context.
//
// The driver is the only writer of the InputEvent's status, and it writes it
// at exactly two points: processing at the start, completed/failed at the
// end. Jobs mutate only the Context.
type InputProcessor struct {
	jobs   []Job
	store  storage.Store
	logger Logger
}

func NewInputProcessor(store storage.Store, logger Logger, jobs ...Job) *InputProcessor {
	return &InputProcessor{jobs: jobs, store: store, logger: logger}
}

// Process runs the pipeline. A skip records its reason and continues; a
// failure records the failing job and classification and stops the pipeline,
// since downstream jobs depend on upstream output. Work persisted by jobs
// before the failure is kept - the event is marked failed, not rolled back.
func (p *InputProcessor) Process(ctx context.Context, jc *Context) (RunSummary, error) {
	summary := RunSummary{}

	if err := p.store.MarkInputEventProcessing(jc.Event.ID); err != nil {
		return summary, err
	}

	var failed *models.JobOutcome
	for _, job := range p.jobs {
		p.logger.Infof("Running job '%s' for event %d", job.Name(), jc.Event.ID)
		res := p.runJob(ctx, job, jc)
		outcome := models.JobOutcome{
			Job:     job.Name(),
			Status:  res.Status,
			Message: res.Message,
			Class:   res.Class,
		}
		summary.Outcomes = append(summary.Outcomes, outcome)

		switch res.Status {
		case models.SkippedJobStatus:
			p.logger.Infof("Job '%s' skipped: %s", job.Name(), res.Message)
		case models.FailedJobStatus:
			p.logger.Errorf("Job '%s' failed (%s): %v", job.Name(), res.Class, res.Err)
			failed = &outcome
		}
		if failed != nil {
			break
		}
	}

	summary.TasksCreated = len(jc.CreatedTaskIDs)
	summary.NodesCreated = len(jc.CreatedNodeIDs)

	status := models.CompletedEventStatus
	errMsg := ""
	if failed != nil {
		status = models.FailedEventStatus
		errMsg = failed.Job + ": " + failed.Message
	}
	if err := p.store.FinishInputEvent(
		jc.Event.ID,
		status,
		errMsg,
		summary.Outcomes,
		jc.CreatedTaskIDs,
		jc.CreatedNodeIDs,
	); err != nil {
		return summary, err
	}

	p.logger.Infof("Event %d finished with status '%s' (%d tasks, %d nodes)",
		jc.Event.ID, status, summary.TasksCreated, summary.NodesCreated)
	return summary, nil
}

// runJob executes one job, converting a panic into a failed outcome so a
// single bad payload cannot take the worker down or leave the event stuck
// in processing.
func (p *InputProcessor) runJob(ctx context.Context, job Job, jc *Context) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Failed(models.FailureInternal, errors.Errorf("job '%s' panicked: %v", job.Name(), r))
		}
	}()
	return job.Run(ctx, jc)
}
