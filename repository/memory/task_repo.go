// Package memory provides in-memory repositories mirroring the Postgres
// semantics, used by unit tests and as a reference for the storage contract.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/taskstream/backend/domain"
	"github.com/taskstream/backend/repository"
)

// TaskStore implements repository.TaskRepository and repository.EventRepository
// over process memory. Mutation+append pairs are applied under one lock so the
// atomicity contract holds: a forced failure leaves neither side visible.
type TaskStore struct {
	mu          sync.Mutex
	tasks       map[int64]domain.Task
	events      []domain.TaskEvent
	fired       map[int64]bool
	nextTaskID  int64
	nextEventID int64

	// FailWrites forces every mutation to fail, for atomicity tests.
	FailWrites bool
}

var errWriteFailed = errors.New("storage write failed")

func NewTaskStore() *TaskStore {
	return &TaskStore{
		tasks: make(map[int64]domain.Task),
		fired: make(map[int64]bool),
	}
}

func (s *TaskStore) GetByID(_ context.Context, userID string, id int64) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok || task.UserID != userID || task.DeletedAt != nil {
		return nil, domain.ErrTaskNotFound
	}
	copied := task
	return &copied, nil
}

func (s *TaskStore) List(_ context.Context, filter repository.TaskFilter) ([]domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var tasks []domain.Task
	for _, task := range s.tasks {
		if task.UserID != filter.UserID || task.DeletedAt != nil {
			continue
		}
		if filter.Status != "" && task.Status != filter.Status {
			continue
		}
		if filter.Priority != "" && task.Priority != filter.Priority {
			continue
		}
		tasks = append(tasks, task)
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
	return tasks, nil
}

func (s *TaskStore) CreateWithEvent(_ context.Context, task *domain.Task, event *domain.TaskEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailWrites {
		return errWriteFailed
	}
	s.nextTaskID++
	task.ID = s.nextTaskID
	now := time.Now()
	task.CreatedAt = now
	task.UpdatedAt = now
	s.tasks[task.ID] = *task

	event.TaskID = task.ID
	s.append(event)
	return nil
}

func (s *TaskStore) UpdateWithEvent(_ context.Context, task *domain.Task, event *domain.TaskEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailWrites {
		return errWriteFailed
	}
	existing, ok := s.tasks[task.ID]
	if !ok || existing.UserID != task.UserID || existing.DeletedAt != nil {
		return domain.ErrTaskNotFound
	}
	// A changed reminder re-arms the fire-once guard.
	if !sameTime(existing.ReminderAt, task.ReminderAt) {
		delete(s.fired, task.ID)
	}
	task.CreatedAt = existing.CreatedAt
	task.UpdatedAt = time.Now()
	s.tasks[task.ID] = *task

	s.append(event)
	return nil
}

func (s *TaskStore) DeleteWithEvent(_ context.Context, userID string, id int64, event *domain.TaskEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailWrites {
		return errWriteFailed
	}
	existing, ok := s.tasks[id]
	if !ok || existing.UserID != userID || existing.DeletedAt != nil {
		return domain.ErrTaskNotFound
	}
	now := time.Now()
	existing.DeletedAt = &now
	s.tasks[id] = existing

	s.append(event)
	return nil
}

func (s *TaskStore) DueReminders(_ context.Context, now time.Time, limit int) ([]domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailWrites {
		return nil, errWriteFailed
	}
	var due []domain.Task
	for _, task := range s.tasks {
		if task.DeletedAt != nil || task.ReminderAt == nil || s.fired[task.ID] {
			continue
		}
		if task.ReminderAt.After(now) {
			continue
		}
		due = append(due, task)
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ReminderAt.Before(*due[j].ReminderAt) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (s *TaskStore) ConsumeReminder(_ context.Context, userID string, id int64, event *domain.TaskEvent) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailWrites {
		return false, errWriteFailed
	}
	task, ok := s.tasks[id]
	if !ok || task.UserID != userID || task.DeletedAt != nil || task.ReminderAt == nil || s.fired[id] {
		return false, nil
	}
	s.fired[id] = true

	s.append(event)
	return true, nil
}

func (s *TaskStore) Query(_ context.Context, userID string, sinceID int64, limit int) ([]domain.TaskEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var events []domain.TaskEvent
	for _, ev := range s.events {
		if ev.UserID != userID || ev.ID <= sinceID {
			continue
		}
		events = append(events, ev)
		if limit > 0 && len(events) >= limit {
			break
		}
	}
	return events, nil
}

// Events returns a copy of the whole log, newest last.
func (s *TaskStore) Events() []domain.TaskEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.TaskEvent(nil), s.events...)
}

// EventsForTask filters the log by task id.
func (s *TaskStore) EventsForTask(taskID int64) []domain.TaskEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var events []domain.TaskEvent
	for _, ev := range s.events {
		if ev.TaskID == taskID {
			events = append(events, ev)
		}
	}
	return events
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func (s *TaskStore) append(event *domain.TaskEvent) {
	s.nextEventID++
	event.ID = s.nextEventID
	event.CreatedAt = time.Now()
	s.events = append(s.events, *event)
}
