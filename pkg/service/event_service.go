package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/hadiudoit11/merlin/pkg/models"
	"github.com/hadiudoit11/merlin/pkg/pipeline"
	"github.com/hadiudoit11/merlin/pkg/storage"
)

// Logger defines the logging interface for EventService.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// EventService owns the InputEvent lifecycle: it records triggers with
// at-most-one semantics per (source_type, external_id, organization), selects
// the pipeline for the source type, and runs it.
type EventService struct {
	store    storage.Store
	registry *pipeline.Registry
	deps     pipeline.Deps
	logger   Logger
}

func NewEventService(store storage.Store, registry *pipeline.Registry, deps pipeline.Deps, logger Logger) *EventService {
	deps.Store = store
	deps.Logger = logger
	return &EventService{
		store:    store,
		registry: registry,
		deps:     deps,
		logger:   logger,
	}
}

// meetingPayload is the envelope the meeting webhook and the manual import
// deliver. Transcript may be inline VTT or plain text.
type meetingPayload struct {
	Transcript      string     `json:"transcript"`
	Topic           string     `json:"topic"`
	Participants    []string   `json:"participants"`
	StartTime       *time.Time `json:"start_time"`
	DurationMinutes int        `json:"duration_minutes"`
}

// chatPayload is the envelope for chat-message events.
type chatPayload struct {
	Text     string `json:"text"`
	UserName string `json:"user_name"`
}

// CreateEvent records one external trigger. A redelivery of the same
// (source_type, external_id) for the organization returns the existing event
// with created=false.
func (s *EventService) CreateEvent(ev models.InputEvent) (created models.InputEvent, isNew bool, err error) {
	if ev.SourceType == "" {
		return models.InputEvent{}, false, errors.New("source type cannot be empty")
	}
	if ev.EventType == "" {
		return models.InputEvent{}, false, errors.New("event type cannot be empty")
	}
	if ev.ExternalID == "" {
		return models.InputEvent{}, false, errors.New("external id cannot be empty")
	}

	txStore, err := s.store.Begin()
	if err != nil {
		return models.InputEvent{}, false, err
	}
	defer func() {
		if err != nil {
			if rollbackErr := txStore.Rollback(); rollbackErr != nil {
				s.logger.Errorf("Failed to rollback after error: %v (original error: %v)", rollbackErr, err)
			}
			return
		}
		if commitErr := txStore.Commit(); commitErr != nil {
			s.logger.Errorf("Failed to commit: %v", commitErr)
			err = commitErr
		}
	}()

	created, isNew, err = txStore.CreateInputEvent(ev)
	if err != nil {
		return models.InputEvent{}, false, err
	}
	if isNew {
		s.logger.Infof("Created input event %d (%s:%s)", created.ID, created.SourceType, created.EventType)
	} else {
		s.logger.Infof("Duplicate delivery of %s:%s, reusing event %d", ev.SourceType, ev.ExternalID, created.ID)
	}
	return created, isNew, nil
}

// Process runs the registered pipeline for an event, seeding the job context
// from the stored payload. Reprocessing the same event is safe: task
// persistence dedups by (source, source_id) and linking is a no-op on
// existing links.
func (s *EventService) Process(ctx context.Context, eventID int64) (pipeline.RunSummary, error) {
	ev, err := s.store.GetInputEvent(eventID)
	if err != nil {
		return pipeline.RunSummary{}, errors.Wrapf(err, "event %d not found", eventID)
	}

	jobs, err := s.registry.Jobs(ev.SourceType, s.deps)
	if err != nil {
		return pipeline.RunSummary{}, err
	}

	jc, err := s.buildContext(&ev)
	if err != nil {
		return pipeline.RunSummary{}, err
	}

	proc := pipeline.NewInputProcessor(s.store, s.logger, jobs...)
	return proc.Process(ctx, jc)
}

func (s *EventService) buildContext(ev *models.InputEvent) (*pipeline.Context, error) {
	jc := &pipeline.Context{
		Event:          ev,
		UserID:         ev.UserID,
		OrganizationID: ev.OrganizationID,
		CanvasID:       ev.CanvasID,
	}

	switch ev.SourceType {
	case models.MeetingSource, models.ManualSource:
		var p meetingPayload
		if len(ev.Payload) > 0 {
			if err := json.Unmarshal(ev.Payload, &p); err != nil {
				return nil, errors.Wrap(err, "decode meeting payload")
			}
		}
		jc.RawContent = p.Transcript
		jc.Meeting = pipeline.MeetingInfo{
			Topic:           p.Topic,
			Participants:    p.Participants,
			StartTime:       p.StartTime,
			DurationMinutes: p.DurationMinutes,
		}

	case models.ChatSource:
		var p chatPayload
		if len(ev.Payload) > 0 {
			if err := json.Unmarshal(ev.Payload, &p); err != nil {
				return nil, errors.Wrap(err, "decode chat payload")
			}
		}
		// Chat messages carry their task draft directly; no model call.
		// The task job caps the title length on persist.
		if text := strings.TrimSpace(p.Text); text != "" {
			jc.ActionItems = []models.ActionItem{{
				Title:   text,
				Context: text,
			}}
		}
	}

	return jc, nil
}

// ImportMeeting records a manual meeting import as an InputEvent and runs
// the meeting pipeline synchronously. The correlation id is generated, since
// a manual import has no external delivery id.
func (s *EventService) ImportMeeting(ctx context.Context, organizationID, userID int64, canvasID *int64, p MeetingImport) (models.InputEvent, pipeline.RunSummary, error) {
	payload, err := json.Marshal(meetingPayload{
		Transcript:      p.Transcript,
		Topic:           p.Topic,
		Participants:    p.Participants,
		StartTime:       p.StartTime,
		DurationMinutes: p.DurationMinutes,
	})
	if err != nil {
		return models.InputEvent{}, pipeline.RunSummary{}, err
	}

	ev, _, err := s.CreateEvent(models.InputEvent{
		SourceType:     models.ManualSource,
		EventType:      "meeting.imported",
		ExternalID:     uuid.NewString(),
		Payload:        payload,
		OrganizationID: organizationID,
		UserID:         userID,
		CanvasID:       canvasID,
	})
	if err != nil {
		return models.InputEvent{}, pipeline.RunSummary{}, err
	}

	summary, err := s.Process(ctx, ev.ID)
	if err != nil {
		return ev, summary, err
	}
	// Re-read so the caller sees the run's projection.
	ev, err = s.store.GetInputEvent(ev.ID)
	return ev, summary, err
}

// MeetingImport is the request body of a manual import.
type MeetingImport struct {
	Transcript      string     `json:"transcript"`
	Topic           string     `json:"topic"`
	Participants    []string   `json:"participants"`
	StartTime       *time.Time `json:"start_time"`
	DurationMinutes int        `json:"duration_minutes"`
}

// GetEvent fetches one event with its run results.
func (s *EventService) GetEvent(id int64) (models.InputEvent, error) {
	return s.store.GetInputEvent(id)
}

// ListEvents lists the most recent events.
func (s *EventService) ListEvents(limit int) ([]models.InputEvent, error) {
	return s.store.ListInputEvents(limit)
}

// ListTasks lists an organization's tasks.
func (s *EventService) ListTasks(organizationID int64) ([]models.Task, error) {
	return s.store.ListTasks(organizationID)
}
