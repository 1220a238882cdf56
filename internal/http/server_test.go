package http_test

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	internal_http "github.com/hadiudoit11/merlin/internal/http"
	"github.com/hadiudoit11/merlin/internal/log"
	"github.com/hadiudoit11/merlin/pkg/models"
	"github.com/hadiudoit11/merlin/pkg/pipeline"
	"github.com/hadiudoit11/merlin/pkg/service"
	"github.com/hadiudoit11/merlin/pkg/storage"
)

const testSecret = "test-webhook-secret"

const serverExtraction = `{
  "summary": "The team reviewed open client work.",
  "key_points": [],
  "action_items": [
    {"task": "Follow up with the client", "assignee": "John", "due_date": "Friday"}
  ],
  "decisions": []
}`

type fixedGen struct{ response string }

func (g fixedGen) Generate(ctx context.Context, prompt string) (string, error) {
	return g.response, nil
}

type fixedResolver struct{}

func (fixedResolver) Resolve(userID, organizationID int64) (pipeline.Credential, error) {
	return pipeline.Credential{Provider: "anthropic", Model: "claude-sonnet-4-20250514", APIKey: "key"}, nil
}

func newTestService(store *storage.MockStore) *service.EventService {
	deps := pipeline.Deps{
		Resolver: fixedResolver{},
		NewGen: func(cred pipeline.Credential) (pipeline.Generator, error) {
			return fixedGen{response: serverExtraction}, nil
		},
		Matcher: pipeline.NewBestEffortMatcher(),
	}
	return service.NewEventService(store, pipeline.NewRegistry(), deps, log.GetLogger())
}

func sign(body []byte, ts string) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	fmt.Fprintf(mac, "v0:%s:%s", ts, body)
	return "v0=" + hex.EncodeToString(mac.Sum(nil))
}

func signedPost(t *testing.T, client *http.Client, url string, body []byte) *http.Response {
	t.Helper()
	req, err := http.NewRequest("POST", url, bytes.NewBuffer(body))
	assert.NoError(t, err)
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-webhook-timestamp", ts)
	req.Header.Set("x-webhook-signature", sign(body, ts))
	resp, err := client.Do(req)
	assert.NoError(t, err)
	return resp
}

func meetingDelivery(externalID string) []byte {
	body, _ := json.Marshal(map[string]interface{}{
		"event":           "meeting.ended",
		"external_id":     externalID,
		"organization_id": 1,
		"user_id":         7,
		"payload": map[string]interface{}{
			"transcript": "John: I will follow up with the client by Friday.",
			"topic":      "Weekly Sync",
		},
	})
	return body
}

func TestServer(t *testing.T) {
	newServer := func(t *testing.T) (*httptest.Server, *storage.MockStore) {
		t.Helper()
		store := storage.NewMockStore()
		svc := newTestService(store)
		disp := service.NewDispatcher(context.Background(), svc, log.GetLogger())
		disp.Start(1)
		t.Cleanup(disp.Stop)

		mux := http.NewServeMux()
		mux.HandleFunc("/health", internal_http.HealthHandler)
		mux.HandleFunc("/webhooks/meeting", internal_http.WebhookHandler(svc, disp, testSecret, models.MeetingSource))
		mux.HandleFunc("/import/meeting", internal_http.ImportHandler(svc))
		mux.HandleFunc("/events", internal_http.EventsHandler(svc))
		mux.HandleFunc("/events/", internal_http.EventByIDHandler(svc))
		srv := httptest.NewServer(mux)
		t.Cleanup(srv.Close)
		return srv, store
	}

	t.Run("HealthCheck", func(t *testing.T) {
		srv, _ := newServer(t)
		resp, err := srv.Client().Get(srv.URL + "/health")
		assert.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		body, _ := io.ReadAll(resp.Body)
		assert.Equal(t, "Input processor is running", string(body))
	})

	t.Run("URLValidationChallenge", func(t *testing.T) {
		srv, _ := newServer(t)
		body := []byte(`{"event":"endpoint.url_validation","payload":{"plainToken":"abc123"}}`)
		resp, err := srv.Client().Post(srv.URL+"/webhooks/meeting", "application/json", bytes.NewBuffer(body))
		assert.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		var out map[string]string
		assert.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		assert.Equal(t, "abc123", out["plainToken"])

		mac := hmac.New(sha256.New, []byte(testSecret))
		mac.Write([]byte("abc123"))
		assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), out["encryptedToken"])
	})

	t.Run("RejectsBadSignature", func(t *testing.T) {
		srv, _ := newServer(t)
		body := meetingDelivery("mtg-1")
		req, err := http.NewRequest("POST", srv.URL+"/webhooks/meeting", bytes.NewBuffer(body))
		assert.NoError(t, err)
		req.Header.Set("x-webhook-timestamp", "1700000000")
		req.Header.Set("x-webhook-signature", "v0=deadbeef")
		resp, err := srv.Client().Do(req)
		assert.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("RejectsMissingSignature", func(t *testing.T) {
		srv, _ := newServer(t)
		resp, err := srv.Client().Post(srv.URL+"/webhooks/meeting", "application/json",
			bytes.NewBuffer(meetingDelivery("mtg-1")))
		assert.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("AcceptsDelivery", func(t *testing.T) {
		srv, store := newServer(t)
		resp := signedPost(t, srv.Client(), srv.URL+"/webhooks/meeting", meetingDelivery("mtg-1"))
		defer resp.Body.Close()

		assert.Equal(t, http.StatusAccepted, resp.StatusCode)
		var out map[string]interface{}
		assert.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		assert.Equal(t, "accepted", out["status"])

		events, err := store.ListInputEvents(10)
		assert.NoError(t, err)
		assert.Len(t, events, 1)
	})

	t.Run("DuplicateDeliveryReturns200", func(t *testing.T) {
		srv, _ := newServer(t)
		resp := signedPost(t, srv.Client(), srv.URL+"/webhooks/meeting", meetingDelivery("mtg-1"))
		resp.Body.Close()
		assert.Equal(t, http.StatusAccepted, resp.StatusCode)

		resp = signedPost(t, srv.Client(), srv.URL+"/webhooks/meeting", meetingDelivery("mtg-1"))
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		var out map[string]interface{}
		assert.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		assert.Equal(t, "duplicate", out["status"])
	})

	t.Run("IgnoresUnsupportedEvent", func(t *testing.T) {
		srv, store := newServer(t)
		body, _ := json.Marshal(map[string]interface{}{
			"event":       "participant.joined",
			"external_id": "mtg-2",
		})
		resp := signedPost(t, srv.Client(), srv.URL+"/webhooks/meeting", body)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		var out map[string]interface{}
		assert.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		assert.Equal(t, "ignored", out["status"])

		events, err := store.ListInputEvents(10)
		assert.NoError(t, err)
		assert.Empty(t, events)
	})

	t.Run("ImportMeeting", func(t *testing.T) {
		srv, store := newServer(t)
		canvasID := int64(3)
		store.AddCanvas(models.Canvas{ID: canvasID, OrganizationID: 1})

		body, _ := json.Marshal(map[string]interface{}{
			"organization_id": 1,
			"user_id":         7,
			"canvas_id":       canvasID,
			"transcript":      "John: I will follow up with the client by Friday.",
			"topic":           "Imported Sync",
		})
		resp, err := srv.Client().Post(srv.URL+"/import/meeting", "application/json", bytes.NewBuffer(body))
		assert.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		var out struct {
			Event        models.InputEvent `json:"event"`
			TasksCreated int               `json:"tasks_created"`
			NodesCreated int               `json:"nodes_created"`
		}
		assert.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		assert.Equal(t, models.CompletedEventStatus, out.Event.Status)
		assert.Equal(t, 1, out.TasksCreated)
		assert.Equal(t, 1, out.NodesCreated)
	})

	t.Run("ImportRequiresTranscript", func(t *testing.T) {
		srv, _ := newServer(t)
		resp, err := srv.Client().Post(srv.URL+"/import/meeting", "application/json",
			bytes.NewBufferString(`{"organization_id":1}`))
		assert.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("GetEvent", func(t *testing.T) {
		srv, store := newServer(t)
		ev, _, err := store.CreateInputEvent(models.InputEvent{
			SourceType:     models.MeetingSource,
			EventType:      "meeting.ended",
			ExternalID:     "mtg-9",
			OrganizationID: 1,
			Status:         models.PendingEventStatus,
		})
		assert.NoError(t, err)

		resp, err := srv.Client().Get(srv.URL + "/events/" + strconv.FormatInt(ev.ID, 10))
		assert.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		var got models.InputEvent
		assert.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
		assert.Equal(t, "mtg-9", got.ExternalID)
	})

	t.Run("GetEventNotFound", func(t *testing.T) {
		srv, _ := newServer(t)
		resp, err := srv.Client().Get(srv.URL + "/events/999")
		assert.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("ReprocessEvent", func(t *testing.T) {
		srv, store := newServer(t)
		ev, _, err := store.CreateInputEvent(models.InputEvent{
			SourceType:     models.ChatSource,
			EventType:      "message.created",
			ExternalID:     "msg-1",
			Payload:        json.RawMessage(`{"text":"Write the release notes"}`),
			OrganizationID: 1,
			Status:         models.PendingEventStatus,
		})
		assert.NoError(t, err)

		resp, err := srv.Client().Post(
			srv.URL+"/events/"+strconv.FormatInt(ev.ID, 10)+"/reprocess", "application/json", nil)
		assert.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		var out struct {
			Outcomes     []models.JobOutcome `json:"outcomes"`
			TasksCreated int                 `json:"tasks_created"`
		}
		assert.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		assert.Equal(t, 1, out.TasksCreated)
		assert.Len(t, out.Outcomes, 2)
	})
}
