package service_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/hadiudoit11/merlin/internal/log"
	"github.com/hadiudoit11/merlin/pkg/models"
	"github.com/hadiudoit11/merlin/pkg/service"
	"github.com/hadiudoit11/merlin/pkg/storage"
)

func TestDispatcher(t *testing.T) {
	t.Run("ProcessesQueuedEvents", func(t *testing.T) {
		store := storage.NewMockStore()
		svc := newTestService(t, store, meetingExtraction, nil)
		disp := service.NewDispatcher(context.Background(), svc, log.GetLogger())
		disp.Start(2)

		var ids []int64
		for i := 0; i < 5; i++ {
			payload, _ := json.Marshal(map[string]string{"text": fmt.Sprintf("task %d", i)})
			ev, _, err := svc.CreateEvent(models.InputEvent{
				SourceType:     models.ChatSource,
				EventType:      "message.created",
				ExternalID:     fmt.Sprintf("msg-%d", i),
				Payload:        payload,
				OrganizationID: 1,
			})
			assert.NoError(t, err)
			ids = append(ids, ev.ID)
			assert.NoError(t, disp.Enqueue(ev.ID))
		}

		disp.Stop()

		for _, id := range ids {
			ev, err := store.GetInputEvent(id)
			assert.NoError(t, err)
			assert.Equal(t, models.CompletedEventStatus, ev.Status)
		}
		tasks, err := store.ListTasks(1)
		assert.NoError(t, err)
		assert.Len(t, tasks, 5)
	})

	t.Run("EnqueueDoesNotBlock", func(t *testing.T) {
		store := storage.NewMockStore()
		svc := newTestService(t, store, meetingExtraction, nil)
		disp := service.NewDispatcher(context.Background(), svc, log.GetLogger())
		// Never started: the queue cannot accept anything, and the caller
		// must get an error instead of hanging.
		done := make(chan error, 1)
		go func() { done <- disp.Enqueue(1) }()
		select {
		case err := <-done:
			assert.Error(t, err)
		case <-time.After(time.Second):
			t.Fatal("Enqueue blocked on an unstarted dispatcher")
		}
	})
}
