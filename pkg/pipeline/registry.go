package pipeline

import (
	"github.com/pkg/errors"

	"github.com/hadiudoit11/merlin/pkg/models"
	"github.com/hadiudoit11/merlin/pkg/storage"
)

// Deps carries the collaborators the concrete jobs need. The registry hands
// it to each factory so pipelines stay pure composition.
type Deps struct {
	Store    storage.Store
	Resolver CredentialResolver
	NewGen   GeneratorFactory
	Matcher  Matcher
	Logger   Logger
}

// Factory builds the ordered job list for one source type.
type Factory func(deps Deps) []Job

// Registry maps source types to pipeline factories. It is populated once at
// startup; new source types are added by composing a new ordered list from
// the existing job set.
type Registry struct {
	factories map[models.SourceType]Factory
}

func NewRegistry() *Registry {
	r := &Registry{factories: make(map[models.SourceType]Factory)}
	r.Register(models.MeetingSource, MeetingPipeline)
	r.Register(models.ManualSource, MeetingPipeline)
	r.Register(models.ChatSource, ChatPipeline)
	return r
}

func (r *Registry) Register(st models.SourceType, f Factory) {
	r.factories[st] = f
}

// Jobs returns the job list for a source type.
func (r *Registry) Jobs(st models.SourceType, deps Deps) ([]Job, error) {
	f, ok := r.factories[st]
	if !ok {
		return nil, errors.Errorf("no pipeline registered for source type '%s'", st)
	}
	return f(deps), nil
}

// MeetingPipeline processes a recording: parse the transcript, extract notes
// with the language model, persist tasks, render a notes node, link them.
func MeetingPipeline(deps Deps) []Job {
	return []Job{
		NewExtractionJob(),
		NewNotesJob(deps.Resolver, deps.NewGen),
		NewTaskExtractionJob(deps.Store, deps.Matcher, deps.Logger),
		NewNodeCreationJob(deps.Store),
		NewNodeLinkingJob(deps.Store),
	}
}

// ChatPipeline processes a chat message. Messages are already plain text and
// short enough to carry their task drafts directly, so the transcript and
// notes stages are skipped entirely.
func ChatPipeline(deps Deps) []Job {
	return []Job{
		NewTaskExtractionJob(deps.Store, deps.Matcher, deps.Logger),
		NewNodeLinkingJob(deps.Store),
	}
}
