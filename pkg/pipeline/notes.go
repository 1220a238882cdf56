package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/hadiudoit11/merlin/pkg/models"
)

// DefaultGenerateTimeout bounds a single language-model call.
const DefaultGenerateTimeout = 2 * time.Minute

// maxTranscriptChars limits how much transcript is sent to the model.
const maxTranscriptChars = 50000

// Credential is a resolved language-model credential.
type Credential struct {
	Provider string
	Model    string
	APIKey   string
}

// ErrNoCredential is returned by a CredentialResolver when no provider key
// is configured at any scope for the requesting user.
var ErrNoCredential = errors.New("no language-model credential configured")

// CredentialResolver resolves the effective credential for a user, walking
// the org -> user -> system-default settings cascade.
type CredentialResolver interface {
	Resolve(userID, organizationID int64) (Credential, error)
}

// Generator is the language-model collaborator. internal/llm provides the
// langchaingo-backed implementation; tests substitute a fake.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneratorFactory builds a Generator for a resolved credential. Credentials
// differ per organization, so the client cannot be constructed once at
// startup.
type GeneratorFactory func(cred Credential) (Generator, error)

const extractionPrompt = `You are analyzing a meeting transcript. Extract the following information:

1. **Summary**: A 2-3 sentence overview of what was discussed.

2. **Key Points**: The main topics and important points discussed (list of strings).

3. **Action Items**: Tasks that were assigned or need to be done. For each:
   - task: What needs to be done
   - description: A fuller description of the task, if the discussion gives one (or "")
   - assignee: Who is responsible (or "unassigned" if unclear)
   - due_date: When it's due (or null if not specified)
   - priority: high/medium/low based on urgency discussed
   - context: The transcript snippet the task came from

4. **Decisions**: Important decisions that were made (list of strings).

Return your response as valid JSON in this exact format:
{
  "summary": "string",
  "key_points": ["point 1", "point 2", ...],
  "action_items": [
    {"task": "string", "description": "string", "assignee": "string", "due_date": "string or null", "priority": "string", "context": "string"}
  ],
  "decisions": ["decision 1", "decision 2", ...]
}

Meeting Topic: %s
Participants: %s

Transcript:
%s
`

// NotesJob asks the language model for a structured extraction of the
// transcript: summary, key points, action-item drafts and decisions. The
// credential is resolved per run through the injected resolver; a missing
// credential fails with fatal_config before any network call is made.
type NotesJob struct {
	resolver CredentialResolver
	newGen   GeneratorFactory
	timeout  time.Duration
}

func NewNotesJob(resolver CredentialResolver, newGen GeneratorFactory) *NotesJob {
	return &NotesJob{resolver: resolver, newGen: newGen, timeout: DefaultGenerateTimeout}
}

func (j *NotesJob) Name() string {
	return "meeting_notes"
}

// extraction mirrors the JSON shape requested by the prompt.
type extraction struct {
	Summary     string   `json:"summary"`
	KeyPoints   []string `json:"key_points"`
	ActionItems []struct {
		Task        string `json:"task"`
		Assignee    string `json:"assignee"`
		DueDate     string `json:"due_date"`
		Priority    string `json:"priority"`
		Context     string `json:"context"`
		Description string `json:"description"`
	} `json:"action_items"`
	Decisions []string `json:"decisions"`
}

func (j *NotesJob) Run(ctx context.Context, jc *Context) Result {
	if jc.Transcript == "" {
		return Skipped("no transcript available")
	}

	cred, err := j.resolver.Resolve(jc.UserID, jc.OrganizationID)
	if err != nil {
		if errors.Is(err, ErrNoCredential) {
			return Failed(models.FailureFatalConfig, err)
		}
		return Failed(models.FailureUnavailable, errors.Wrap(err, "resolve credential"))
	}

	gen, err := j.newGen(cred)
	if err != nil {
		return Failed(models.FailureFatalConfig, errors.Wrap(err, "build model client"))
	}

	transcript := truncateText(jc.Transcript, maxTranscriptChars)
	participants := "Unknown"
	if len(jc.Meeting.Participants) > 0 {
		participants = strings.Join(jc.Meeting.Participants, ", ")
	}
	topic := jc.Meeting.Topic
	if topic == "" {
		topic = "Meeting"
	}
	prompt := fmt.Sprintf(extractionPrompt, topic, participants, transcript)

	callCtx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()
	response, err := gen.Generate(callCtx, prompt)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || callCtx.Err() == context.DeadlineExceeded {
			return Failed(models.FailureTimeout, errors.Wrap(err, "model call timed out"))
		}
		return Failed(models.FailureUnavailable, errors.Wrap(err, "model call failed"))
	}

	var ext extraction
	if err := json.Unmarshal([]byte(stripCodeFences(response)), &ext); err != nil {
		return Failed(models.FailureInvalidResponse, errors.Wrap(err, "unparseable model response"))
	}

	jc.Summary = ext.Summary
	jc.KeyPoints = ext.KeyPoints
	jc.Decisions = ext.Decisions
	jc.ActionItems = make([]models.ActionItem, 0, len(ext.ActionItems))
	for _, item := range ext.ActionItems {
		jc.ActionItems = append(jc.ActionItems, models.ActionItem{
			Title:        item.Task,
			Description:  item.Description,
			AssigneeName: item.Assignee,
			DueDateText:  item.DueDate,
			Priority:     normalizePriority(item.Priority),
			Context:      item.Context,
		})
	}

	return Completed("extracted %d key points, %d action items, %d decisions",
		len(jc.KeyPoints), len(jc.ActionItems), len(jc.Decisions))
}

// stripCodeFences unwraps a JSON body the model wrapped in a markdown code
// block, which several providers do despite being asked for bare JSON.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if start := strings.Index(s, "```json"); start >= 0 {
		s = s[start+len("```json"):]
	} else if start := strings.Index(s, "```"); start >= 0 {
		s = s[start+3:]
	} else {
		return s
	}
	if end := strings.Index(s, "```"); end >= 0 {
		s = s[:end]
	}
	return strings.TrimSpace(s)
}

func normalizePriority(p string) models.TaskPriority {
	switch models.TaskPriority(strings.ToLower(p)) {
	case models.LowPriority, models.MediumPriority, models.HighPriority, models.UrgentPriority:
		return models.TaskPriority(strings.ToLower(p))
	default:
		return models.MediumPriority
	}
}
