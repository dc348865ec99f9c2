package services_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskstream/backend/domain"
	"github.com/taskstream/backend/internal/services"
	"github.com/taskstream/backend/repository/memory"
)

type recordingSink struct {
	mu     sync.Mutex
	events []*domain.TaskEvent
}

func (s *recordingSink) Dispatch(event *domain.TaskEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *recordingSink) all() []*domain.TaskEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*domain.TaskEvent(nil), s.events...)
}

func seedTask(t *testing.T, store *memory.TaskStore, task *domain.Task) *domain.Task {
	t.Helper()
	task.Normalize()
	event, err := domain.NewEvent(task, domain.EventTaskCreated, domain.CreatedPayload{Title: task.Title})
	require.NoError(t, err)
	require.NoError(t, store.CreateWithEvent(context.Background(), task, event))
	return task
}

func TestReminderSweeper(t *testing.T) {
	ctx := context.Background()

	t.Run("fires due reminders once", func(t *testing.T) {
		store := memory.NewTaskStore()
		sink := &recordingSink{}
		past := time.Now().Add(-time.Minute)
		seedTask(t, store, &domain.Task{UserID: "u1", Title: "call dentist", ReminderAt: &past})

		sweeper := services.NewReminderSweeper(store, sink, nil, services.SweeperConfig{})

		require.NoError(t, sweeper.Sweep(ctx))
		events := sink.all()
		require.Len(t, events, 1)
		assert.Equal(t, domain.EventReminderTriggered, events[0].Type)

		var payload domain.ReminderPayload
		require.NoError(t, json.Unmarshal(events[0].Payload, &payload))
		assert.Equal(t, "call dentist", payload.Title)

		// Repeated sweeps must not fire the same reminder again.
		require.NoError(t, sweeper.Sweep(ctx))
		require.NoError(t, sweeper.Sweep(ctx))
		assert.Len(t, sink.all(), 1)
	})

	t.Run("a moved reminder fires again exactly once", func(t *testing.T) {
		store := memory.NewTaskStore()
		sink := &recordingSink{}
		past := time.Now().Add(-time.Minute)
		task := seedTask(t, store, &domain.Task{UserID: "u1", Title: "recheck", ReminderAt: &past})

		sweeper := services.NewReminderSweeper(store, sink, nil, services.SweeperConfig{})
		require.NoError(t, sweeper.Sweep(ctx))
		require.Len(t, sink.all(), 1)

		// Setting a different reminder time re-arms the guard.
		rearmed := *task
		again := time.Now().Add(-time.Second)
		rearmed.ReminderAt = &again
		event, err := domain.NewEvent(&rearmed, domain.EventTaskUpdated, domain.UpdatedPayload{TaskID: task.ID})
		require.NoError(t, err)
		require.NoError(t, store.UpdateWithEvent(ctx, &rearmed, event))

		require.NoError(t, sweeper.Sweep(ctx))
		assert.Len(t, sink.all(), 2)

		require.NoError(t, sweeper.Sweep(ctx))
		assert.Len(t, sink.all(), 2)
	})

	t.Run("future reminders stay untouched", func(t *testing.T) {
		store := memory.NewTaskStore()
		sink := &recordingSink{}
		future := time.Now().Add(time.Hour)
		seedTask(t, store, &domain.Task{UserID: "u1", Title: "later", ReminderAt: &future})

		sweeper := services.NewReminderSweeper(store, sink, nil, services.SweeperConfig{})
		require.NoError(t, sweeper.Sweep(ctx))
		assert.Empty(t, sink.all())
	})

	t.Run("tasks without reminders are skipped", func(t *testing.T) {
		store := memory.NewTaskStore()
		sink := &recordingSink{}
		seedTask(t, store, &domain.Task{UserID: "u1", Title: "no reminder"})

		sweeper := services.NewReminderSweeper(store, sink, nil, services.SweeperConfig{})
		require.NoError(t, sweeper.Sweep(ctx))
		assert.Empty(t, sink.all())
	})

	t.Run("storage failure surfaces and next sweep recovers", func(t *testing.T) {
		store := memory.NewTaskStore()
		sink := &recordingSink{}
		past := time.Now().Add(-time.Minute)
		seedTask(t, store, &domain.Task{UserID: "u1", Title: "retry me", ReminderAt: &past})

		sweeper := services.NewReminderSweeper(store, sink, nil, services.SweeperConfig{})

		store.FailWrites = true
		assert.Error(t, sweeper.Sweep(ctx))
		assert.Empty(t, sink.all())

		store.FailWrites = false
		require.NoError(t, sweeper.Sweep(ctx))
		assert.Len(t, sink.all(), 1)
	})

	t.Run("batch size bounds one sweep", func(t *testing.T) {
		store := memory.NewTaskStore()
		sink := &recordingSink{}
		past := time.Now().Add(-time.Minute)
		for i := 0; i < 5; i++ {
			reminder := past
			seedTask(t, store, &domain.Task{UserID: "u1", Title: "bulk", ReminderAt: &reminder})
		}

		sweeper := services.NewReminderSweeper(store, sink, nil, services.SweeperConfig{BatchSize: 2})

		require.NoError(t, sweeper.Sweep(ctx))
		assert.Len(t, sink.all(), 2)

		require.NoError(t, sweeper.Sweep(ctx))
		require.NoError(t, sweeper.Sweep(ctx))
		assert.Len(t, sink.all(), 5)
	})
}
