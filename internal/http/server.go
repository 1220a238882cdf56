package http

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/hadiudoit11/merlin/internal/log"
	"github.com/hadiudoit11/merlin/pkg/models"
	"github.com/hadiudoit11/merlin/pkg/service"
	"github.com/hadiudoit11/merlin/pkg/storage"
)

// StartServer wires the handlers and blocks serving HTTP.
func StartServer(port string, svc *service.EventService, disp *service.Dispatcher, webhookSecret string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", HealthHandler)
	mux.HandleFunc("/webhooks/meeting", WebhookHandler(svc, disp, webhookSecret, models.MeetingSource))
	mux.HandleFunc("/webhooks/chat", WebhookHandler(svc, disp, webhookSecret, models.ChatSource))
	mux.HandleFunc("/import/meeting", ImportHandler(svc))
	mux.HandleFunc("/events", EventsHandler(svc))
	mux.HandleFunc("/events/", EventByIDHandler(svc))

	log.GetLogger().Infof("Starting input processor server on :%s", port)
	return http.ListenAndServe(":"+port, mux)
}

func HealthHandler(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintf(w, "Input processor is running")
}

// webhookEnvelope is the common outer shape of webhook deliveries.
type webhookEnvelope struct {
	Event          string          `json:"event"`
	ExternalID     string          `json:"external_id"`
	OrganizationID int64           `json:"organization_id"`
	UserID         int64           `json:"user_id"`
	CanvasID       *int64          `json:"canvas_id"`
	Payload        json.RawMessage `json:"payload"`
}

var supportedEvents = map[models.SourceType][]string{
	models.MeetingSource: {"meeting.ended", "recording.completed"},
	models.ChatSource:    {"message.created"},
}

// WebhookHandler accepts one delivery: it validates the signature, records
// an InputEvent (at most one per external id) and queues it for background
// processing. The sender gets a 202 before the pipeline runs.
func WebhookHandler(svc *service.EventService, disp *service.Dispatcher, secret string, source models.SourceType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read body", http.StatusBadRequest)
			return
		}

		var env webhookEnvelope
		if err := json.Unmarshal(body, &env); err != nil {
			http.Error(w, "Invalid JSON payload", http.StatusBadRequest)
			return
		}

		// URL validation challenge: echo the token with its HMAC.
		if env.Event == "endpoint.url_validation" {
			handleURLValidation(w, env.Payload, secret)
			return
		}

		if secret != "" && !verifySignature(body, secret,
			r.Header.Get("x-webhook-signature"), r.Header.Get("x-webhook-timestamp")) {
			log.GetLogger().Errorf("Invalid webhook signature from %s", r.RemoteAddr)
			http.Error(w, "Invalid webhook signature", http.StatusUnauthorized)
			return
		}

		if !isSupported(source, env.Event) {
			writeJSON(w, http.StatusOK, map[string]string{
				"status":  "ignored",
				"message": fmt.Sprintf("Event type '%s' not processed", env.Event),
			})
			return
		}

		ev, isNew, err := svc.CreateEvent(models.InputEvent{
			SourceType:     source,
			EventType:      env.Event,
			ExternalID:     env.ExternalID,
			Payload:        env.Payload,
			OrganizationID: env.OrganizationID,
			UserID:         env.UserID,
			CanvasID:       env.CanvasID,
		})
		if err != nil {
			log.GetLogger().Errorf("Failed to create input event: %v", err)
			http.Error(w, fmt.Sprintf("Failed to record event: %v", err), http.StatusBadRequest)
			return
		}
		if !isNew {
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"status":   "duplicate",
				"message":  "Event already received",
				"event_id": ev.ID,
			})
			return
		}

		if err := disp.Enqueue(ev.ID); err != nil {
			log.GetLogger().Errorf("Failed to enqueue event %d: %v", ev.ID, err)
			http.Error(w, "Processing queue full, retry later", http.StatusServiceUnavailable)
			return
		}

		writeJSON(w, http.StatusAccepted, map[string]interface{}{
			"status":   "accepted",
			"message":  fmt.Sprintf("Event '%s' queued for processing", env.Event),
			"event_id": ev.ID,
		})
	}
}

func handleURLValidation(w http.ResponseWriter, payload json.RawMessage, secret string) {
	var p struct {
		PlainToken string `json:"plainToken"`
	}
	if err := json.Unmarshal(payload, &p); err != nil {
		http.Error(w, "Invalid validation payload", http.StatusBadRequest)
		return
	}
	encrypted := p.PlainToken
	if secret != "" {
		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write([]byte(p.PlainToken))
		encrypted = hex.EncodeToString(mac.Sum(nil))
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"plainToken":     p.PlainToken,
		"encryptedToken": encrypted,
	})
}

// verifySignature checks the v0 HMAC scheme: sha256 over
// "v0:{timestamp}:{body}" keyed with the webhook secret.
func verifySignature(body []byte, secret, signature, timestamp string) bool {
	if signature == "" || timestamp == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "v0:%s:%s", timestamp, body)
	expected := "v0=" + hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func isSupported(source models.SourceType, event string) bool {
	for _, e := range supportedEvents[source] {
		if e == event {
			return true
		}
	}
	return false
}

// ImportHandler runs a manual meeting import synchronously and returns the
// run summary.
func ImportHandler(svc *service.EventService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req struct {
			OrganizationID int64  `json:"organization_id"`
			UserID         int64  `json:"user_id"`
			CanvasID       *int64 `json:"canvas_id"`
			service.MeetingImport
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid JSON payload", http.StatusBadRequest)
			return
		}
		if req.Transcript == "" {
			http.Error(w, "Missing 'transcript'", http.StatusBadRequest)
			return
		}

		ev, summary, err := svc.ImportMeeting(r.Context(), req.OrganizationID, req.UserID, req.CanvasID, req.MeetingImport)
		if err != nil {
			log.GetLogger().Errorf("Meeting import failed: %v", err)
			http.Error(w, fmt.Sprintf("Import failed: %v", err), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"event":         ev,
			"tasks_created": summary.TasksCreated,
			"nodes_created": summary.NodesCreated,
		})
	}
}

// EventsHandler lists recent input events.
func EventsHandler(svc *service.EventService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		events, err := svc.ListEvents(limit)
		if err != nil {
			log.GetLogger().Errorf("Failed to list events: %v", err)
			http.Error(w, fmt.Sprintf("Failed to list events: %v", err), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, events)
	}
}

// EventByIDHandler serves GET /events/{id} and POST /events/{id}/reprocess.
func EventByIDHandler(svc *service.EventService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/events/")
		parts := strings.Split(strings.Trim(rest, "/"), "/")
		id, err := strconv.ParseInt(parts[0], 10, 64)
		if err != nil {
			http.Error(w, "Invalid event id", http.StatusBadRequest)
			return
		}

		switch {
		case len(parts) == 1 && r.Method == http.MethodGet:
			ev, err := svc.GetEvent(id)
			if err != nil {
				if errors.Is(err, storage.ErrNotFound) {
					http.Error(w, "Event not found", http.StatusNotFound)
					return
				}
				http.Error(w, fmt.Sprintf("Failed to get event: %v", err), http.StatusInternalServerError)
				return
			}
			writeJSON(w, http.StatusOK, ev)

		case len(parts) == 2 && parts[1] == "reprocess" && r.Method == http.MethodPost:
			summary, err := svc.Process(r.Context(), id)
			if err != nil {
				log.GetLogger().Errorf("Reprocess of event %d failed: %v", id, err)
				http.Error(w, fmt.Sprintf("Reprocess failed: %v", err), http.StatusInternalServerError)
				return
			}
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"outcomes":      summary.Outcomes,
				"tasks_created": summary.TasksCreated,
				"nodes_created": summary.NodesCreated,
			})

		default:
			http.Error(w, "Not found", http.StatusNotFound)
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.GetLogger().Errorf("Failed to encode response: %v", err)
	}
}
