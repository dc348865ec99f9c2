package services_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskstream/backend/api/transport"
	"github.com/taskstream/backend/domain"
	"github.com/taskstream/backend/internal/services"
)

type fakeBroadcaster struct {
	frames map[string][][]byte
}

func newFakeBroadcaster() *fakeBroadcaster {
	return &fakeBroadcaster{frames: make(map[string][][]byte)}
}

func (b *fakeBroadcaster) Broadcast(userID string, frame []byte) int {
	b.frames[userID] = append(b.frames[userID], frame)
	return 1
}

func TestDispatcher(t *testing.T) {
	t.Run("serializes event into wire frame", func(t *testing.T) {
		registry := newFakeBroadcaster()
		d := services.NewDispatcher(registry, nil)

		payload, err := json.Marshal(domain.CreatedPayload{TaskID: 42, Title: "buy milk", Status: domain.StatusActive})
		require.NoError(t, err)

		d.Dispatch(&domain.TaskEvent{
			ID:      1,
			TaskID:  42,
			UserID:  "u1",
			Type:    domain.EventTaskCreated,
			Payload: payload,
		})

		require.Len(t, registry.frames["u1"], 1)
		frame, err := transport.DecodeFrame(registry.frames["u1"][0])
		require.NoError(t, err)
		assert.Equal(t, string(domain.EventTaskCreated), frame.Type)
		assert.Equal(t, int64(1), frame.ID)

		var decoded domain.CreatedPayload
		require.NoError(t, json.Unmarshal(frame.Data, &decoded))
		assert.Equal(t, int64(42), decoded.TaskID)
		assert.Equal(t, "buy milk", decoded.Title)
	})

	t.Run("routes by event owner", func(t *testing.T) {
		registry := newFakeBroadcaster()
		d := services.NewDispatcher(registry, nil)

		d.Dispatch(&domain.TaskEvent{ID: 1, UserID: "u1", Type: domain.EventTaskDeleted, Payload: []byte(`{"taskId":1}`)})
		d.Dispatch(&domain.TaskEvent{ID: 2, UserID: "u2", Type: domain.EventTaskDeleted, Payload: []byte(`{"taskId":2}`)})

		assert.Len(t, registry.frames["u1"], 1)
		assert.Len(t, registry.frames["u2"], 1)
	})

	t.Run("preserves dispatch order", func(t *testing.T) {
		registry := newFakeBroadcaster()
		d := services.NewDispatcher(registry, nil)

		for i := 1; i <= 5; i++ {
			d.Dispatch(&domain.TaskEvent{
				ID:      int64(i),
				UserID:  "u1",
				Type:    domain.EventTaskUpdated,
				Payload: []byte(`{}`),
			})
		}

		require.Len(t, registry.frames["u1"], 5)
	})

	t.Run("nil event is ignored", func(t *testing.T) {
		registry := newFakeBroadcaster()
		d := services.NewDispatcher(registry, nil)
		d.Dispatch(nil)
		assert.Empty(t, registry.frames)
	})
}
