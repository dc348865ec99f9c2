package task_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskstream/backend/domain"
	"github.com/taskstream/backend/repository"
	"github.com/taskstream/backend/repository/memory"
	taskUC "github.com/taskstream/backend/usecase/task"
)

type captureSink struct {
	mu     sync.Mutex
	events []*domain.TaskEvent
}

func (s *captureSink) Dispatch(event *domain.TaskEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *captureSink) all() []*domain.TaskEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*domain.TaskEvent(nil), s.events...)
}

func newFixture() (*taskUC.UseCase, *memory.TaskStore, *captureSink) {
	store := memory.NewTaskStore()
	sink := &captureSink{}
	return taskUC.New(store, store, sink, nil), store, sink
}

func strPtr(s string) *string { return &s }

func TestCreateTask(t *testing.T) {
	ctx := context.Background()

	t.Run("records event and dispatches", func(t *testing.T) {
		uc, store, sink := newFixture()

		created, err := uc.CreateTask(ctx, &domain.Task{UserID: "u1", Title: "buy milk"})
		require.NoError(t, err)
		assert.NotZero(t, created.ID)
		assert.Equal(t, domain.StatusActive, created.Status)
		assert.Equal(t, domain.PriorityMedium, created.Priority)

		events := store.Events()
		require.Len(t, events, 1)
		assert.Equal(t, domain.EventTaskCreated, events[0].Type)
		assert.Equal(t, created.ID, events[0].TaskID)

		var payload domain.CreatedPayload
		require.NoError(t, json.Unmarshal(events[0].Payload, &payload))
		assert.Equal(t, "buy milk", payload.Title)

		require.Len(t, sink.all(), 1)
	})

	t.Run("rejects invalid task", func(t *testing.T) {
		uc, store, sink := newFixture()

		_, err := uc.CreateTask(ctx, &domain.Task{UserID: "u1", Title: ""})
		require.Error(t, err)
		assert.Empty(t, store.Events())
		assert.Empty(t, sink.all())
	})

	t.Run("storage failure leaves no event and no dispatch", func(t *testing.T) {
		uc, store, sink := newFixture()
		store.FailWrites = true

		_, err := uc.CreateTask(ctx, &domain.Task{UserID: "u1", Title: "doomed"})
		require.Error(t, err)
		assert.Empty(t, store.Events())
		assert.Empty(t, sink.all())
	})
}

func TestUpdateTask(t *testing.T) {
	ctx := context.Background()

	t.Run("emits field diff", func(t *testing.T) {
		uc, store, _ := newFixture()
		created, err := uc.CreateTask(ctx, &domain.Task{UserID: "u1", Title: "old title"})
		require.NoError(t, err)

		updated, err := uc.UpdateTask(ctx, "u1", created.ID, taskUC.UpdateParams{
			Title:    strPtr("new title"),
			Priority: strPtr(domain.PriorityHigh),
		})
		require.NoError(t, err)
		assert.Equal(t, "new title", updated.Title)

		events := store.EventsForTask(created.ID)
		require.Len(t, events, 2)
		assert.Equal(t, domain.EventTaskUpdated, events[1].Type)

		var payload domain.UpdatedPayload
		require.NoError(t, json.Unmarshal(events[1].Payload, &payload))
		require.Contains(t, payload.Changes, "title")
		assert.Equal(t, "old title", payload.Changes["title"].Old)
		assert.Equal(t, "new title", payload.Changes["title"].New)
		require.Contains(t, payload.Changes, "priority")
		assert.NotContains(t, payload.Changes, "description")
	})

	t.Run("no-op update appends nothing", func(t *testing.T) {
		uc, store, sink := newFixture()
		created, err := uc.CreateTask(ctx, &domain.Task{UserID: "u1", Title: "stable"})
		require.NoError(t, err)

		_, err = uc.UpdateTask(ctx, "u1", created.ID, taskUC.UpdateParams{Title: strPtr("stable")})
		require.NoError(t, err)

		assert.Len(t, store.Events(), 1)
		assert.Len(t, sink.all(), 1)
	})

	t.Run("unknown task", func(t *testing.T) {
		uc, _, _ := newFixture()
		_, err := uc.UpdateTask(ctx, "u1", 404, taskUC.UpdateParams{Title: strPtr("x")})
		assert.ErrorIs(t, err, domain.ErrTaskNotFound)
	})

	t.Run("status change to completed routes through completion", func(t *testing.T) {
		uc, store, _ := newFixture()
		created, err := uc.CreateTask(ctx, &domain.Task{UserID: "u1", Title: "finish me"})
		require.NoError(t, err)

		updated, err := uc.UpdateTask(ctx, "u1", created.ID, taskUC.UpdateParams{
			Status: strPtr(domain.StatusCompleted),
		})
		require.NoError(t, err)
		assert.True(t, updated.IsCompleted())

		events := store.EventsForTask(created.ID)
		require.Len(t, events, 2)
		assert.Equal(t, domain.EventTaskCompleted, events[1].Type)
	})

	t.Run("completion with co-submitted edits logs the diff first", func(t *testing.T) {
		uc, store, _ := newFixture()
		created, err := uc.CreateTask(ctx, &domain.Task{UserID: "u1", Title: "draft"})
		require.NoError(t, err)

		updated, err := uc.UpdateTask(ctx, "u1", created.ID, taskUC.UpdateParams{
			Title:  strPtr("final"),
			Status: strPtr(domain.StatusCompleted),
		})
		require.NoError(t, err)
		assert.True(t, updated.IsCompleted())
		assert.Equal(t, "final", updated.Title)

		events := store.EventsForTask(created.ID)
		require.Len(t, events, 3)
		assert.Equal(t, domain.EventTaskUpdated, events[1].Type)
		assert.Equal(t, domain.EventTaskCompleted, events[2].Type)

		var payload domain.UpdatedPayload
		require.NoError(t, json.Unmarshal(events[1].Payload, &payload))
		assert.Contains(t, payload.Changes, "title")
		assert.NotContains(t, payload.Changes, "status")
	})
}

func TestConcurrentMutationOrdering(t *testing.T) {
	ctx := context.Background()
	uc, store, sink := newFixture()

	const creates = 25
	var wg sync.WaitGroup
	for i := 0; i < creates; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := uc.CreateTask(ctx, &domain.Task{UserID: "u1", Title: fmt.Sprintf("task %d", i)})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	// Frames must leave for the registry in event append order.
	dispatched := sink.all()
	require.Len(t, dispatched, creates)
	for i := 1; i < len(dispatched); i++ {
		assert.Greater(t, dispatched[i].ID, dispatched[i-1].ID)
	}

	logged := store.Events()
	require.Len(t, logged, creates)
	for i, ev := range logged {
		assert.Equal(t, ev.ID, dispatched[i].ID)
	}
}

func TestCompleteTask(t *testing.T) {
	ctx := context.Background()

	t.Run("one-off completion", func(t *testing.T) {
		uc, store, _ := newFixture()
		created, err := uc.CreateTask(ctx, &domain.Task{UserID: "u1", Title: "one-off"})
		require.NoError(t, err)

		completed, err := uc.CompleteTask(ctx, "u1", created.ID)
		require.NoError(t, err)
		assert.True(t, completed.IsCompleted())

		events := store.Events()
		require.Len(t, events, 2)
		assert.Equal(t, domain.EventTaskCompleted, events[1].Type)

		var payload domain.CompletedPayload
		require.NoError(t, json.Unmarshal(events[1].Payload, &payload))
		assert.False(t, payload.IsRecurring)

		// Only the original task exists.
		tasks, err := uc.ListTasks(ctx, repository.TaskFilter{UserID: "u1"})
		require.NoError(t, err)
		assert.Len(t, tasks, 1)
	})

	t.Run("recurring completion spawns exactly one successor", func(t *testing.T) {
		uc, store, sink := newFixture()
		due := time.Date(2026, time.February, 1, 9, 0, 0, 0, time.UTC)
		created, err := uc.CreateTask(ctx, &domain.Task{
			UserID:         "u1",
			Title:          "weekly review",
			DueDate:        &due,
			RecurrenceRule: domain.RecurrenceWeekly,
			RecurrenceInt:  1,
		})
		require.NoError(t, err)

		_, err = uc.CompleteTask(ctx, "u1", created.ID)
		require.NoError(t, err)

		tasks, err := uc.ListTasks(ctx, repository.TaskFilter{UserID: "u1", Status: domain.StatusActive})
		require.NoError(t, err)
		require.Len(t, tasks, 1)
		successor := tasks[0]
		assert.Equal(t, "weekly review", successor.Title)
		require.NotNil(t, successor.ParentTaskID)
		assert.Equal(t, created.ID, *successor.ParentTaskID)
		assert.Equal(t, due.AddDate(0, 0, 7), *successor.DueDate)

		// created + completed + successor created
		events := store.Events()
		require.Len(t, events, 3)
		assert.Equal(t, domain.EventTaskCreated, events[2].Type)
		assert.Len(t, sink.all(), 3)
	})

	t.Run("re-completing is a no-op", func(t *testing.T) {
		uc, store, _ := newFixture()
		due := time.Date(2026, time.February, 1, 9, 0, 0, 0, time.UTC)
		created, err := uc.CreateTask(ctx, &domain.Task{
			UserID:         "u1",
			Title:          "idempotent",
			DueDate:        &due,
			RecurrenceRule: domain.RecurrenceDaily,
			RecurrenceInt:  1,
		})
		require.NoError(t, err)

		_, err = uc.CompleteTask(ctx, "u1", created.ID)
		require.NoError(t, err)
		eventsAfterFirst := len(store.Events())

		_, err = uc.CompleteTask(ctx, "u1", created.ID)
		require.NoError(t, err)
		assert.Len(t, store.Events(), eventsAfterFirst)

		tasks, err := uc.ListTasks(ctx, repository.TaskFilter{UserID: "u1", Status: domain.StatusActive})
		require.NoError(t, err)
		assert.Len(t, tasks, 1)
	})
}

func TestDeleteTask(t *testing.T) {
	ctx := context.Background()

	t.Run("soft delete records event", func(t *testing.T) {
		uc, store, sink := newFixture()
		created, err := uc.CreateTask(ctx, &domain.Task{UserID: "u1", Title: "remove me"})
		require.NoError(t, err)

		require.NoError(t, uc.DeleteTask(ctx, "u1", created.ID))

		_, err = uc.GetTask(ctx, "u1", created.ID)
		assert.ErrorIs(t, err, domain.ErrTaskNotFound)

		events := store.Events()
		require.Len(t, events, 2)
		assert.Equal(t, domain.EventTaskDeleted, events[1].Type)
		assert.Len(t, sink.all(), 2)
	})

	t.Run("wrong user cannot delete", func(t *testing.T) {
		uc, _, _ := newFixture()
		created, err := uc.CreateTask(ctx, &domain.Task{UserID: "u1", Title: "mine"})
		require.NoError(t, err)

		err = uc.DeleteTask(ctx, "u2", created.ID)
		assert.ErrorIs(t, err, domain.ErrTaskNotFound)
	})
}

func TestQueryEvents(t *testing.T) {
	ctx := context.Background()
	uc, _, _ := newFixture()

	created, err := uc.CreateTask(ctx, &domain.Task{UserID: "u1", Title: "a"})
	require.NoError(t, err)
	_, err = uc.UpdateTask(ctx, "u1", created.ID, taskUC.UpdateParams{Title: strPtr("b")})
	require.NoError(t, err)
	_, err = uc.CreateTask(ctx, &domain.Task{UserID: "u2", Title: "other user"})
	require.NoError(t, err)

	t.Run("scoped to user since cursor", func(t *testing.T) {
		events, err := uc.QueryEvents(ctx, "u1", 0, 100)
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, domain.EventTaskCreated, events[0].Type)
		assert.Equal(t, domain.EventTaskUpdated, events[1].Type)

		tail, err := uc.QueryEvents(ctx, "u1", events[0].ID, 100)
		require.NoError(t, err)
		require.Len(t, tail, 1)
		assert.Equal(t, domain.EventTaskUpdated, tail[0].Type)
	})
}
