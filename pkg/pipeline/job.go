package pipeline

import (
	"context"
	"fmt"

	"github.com/hadiudoit11/merlin/pkg/models"
)

// Logger defines the logging interface for the pipeline.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Result is the typed outcome of one job execution. Jobs never return plain
// errors to the driver; every stop reason carries a FailureClass so the
// caller can tell transient failures apart from configuration problems.
type Result struct {
	Status  models.JobStatus
	Message string
	Class   models.FailureClass
	Err     error
}

// Completed marks the job as successful.
func Completed(format string, args ...interface{}) Result {
	return Result{Status: models.CompletedJobStatus, Message: fmt.Sprintf(format, args...)}
}

// Skipped marks the job's preconditions as unmet for a legitimate reason
// (e.g. no transcript yet). The pipeline records the reason and continues.
func Skipped(reason string) Result {
	return Result{Status: models.SkippedJobStatus, Message: reason}
}

// Failed stops the pipeline. No subsequent job runs.
func Failed(class models.FailureClass, err error) Result {
	return Result{Status: models.FailedJobStatus, Class: class, Err: err, Message: err.Error()}
}

// Job is a single named processing step. A job validates its own
// preconditions against the context rather than trusting whatever the
// pipeline placed before it, and must be idempotent with respect to a
// reprocess of the same event.
type Job interface {
	Name() string
	Run(ctx context.Context, jc *Context) Result
}
