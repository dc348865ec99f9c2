package task

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/taskstream/backend/domain"
	"github.com/taskstream/backend/repository"
	"github.com/taskstream/backend/usecase"
)

// UseCase orchestrates task mutations. Every accepted mutation commits the
// task write and its event-log entry in one repository transaction, then
// hands the recorded event to the sink for live fan-out. Delivery problems
// never fail a mutation; a storage failure is retried once and then surfaced
// with no partial state.
type UseCase struct {
	tasks  repository.TaskRepository
	events repository.EventRepository
	sink   usecase.EventSink
	locks  usecase.KeyedMutex
	logger *zap.Logger
}

func New(tasks repository.TaskRepository, events repository.EventRepository, sink usecase.EventSink, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		tasks:  tasks,
		events: events,
		sink:   sink,
		logger: logger,
	}
}

func (uc *UseCase) ListTasks(ctx context.Context, filter repository.TaskFilter) ([]domain.Task, error) {
	return uc.tasks.List(ctx, filter)
}

func (uc *UseCase) GetTask(ctx context.Context, userID string, id int64) (*domain.Task, error) {
	return uc.tasks.GetByID(ctx, userID, id)
}

// QueryEvents serves reconnect catch-up: the user's event-log entries after
// sinceID, in append order.
func (uc *UseCase) QueryEvents(ctx context.Context, userID string, sinceID int64, limit int) ([]domain.TaskEvent, error) {
	return uc.events.Query(ctx, userID, sinceID, limit)
}

func (uc *UseCase) CreateTask(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	task.Normalize()
	if err := task.Validate(); err != nil {
		return nil, err
	}

	event, err := domain.NewEvent(task, domain.EventTaskCreated, createdPayload(task))
	if err != nil {
		return nil, err
	}
	if err := uc.commitAndDispatch(task.UserID, event, func() error {
		return uc.tasks.CreateWithEvent(ctx, task, event)
	}); err != nil {
		return nil, err
	}
	return task, nil
}

// UpdateParams carries a partial update; nil fields stay untouched.
type UpdateParams struct {
	Title             *string
	Description       *string
	Status            *string
	Priority          *string
	DueDate           *time.Time
	ReminderAt        *time.Time
	RecurrenceRule    *string
	RecurrenceInt     *int
	RecurrenceEndDate *time.Time
	Tags              *[]string
}

func (p UpdateParams) apply(task *domain.Task) {
	if p.Title != nil {
		task.Title = *p.Title
	}
	if p.Description != nil {
		task.Description = *p.Description
	}
	if p.Status != nil {
		task.Status = *p.Status
	}
	if p.Priority != nil {
		task.Priority = *p.Priority
	}
	if p.DueDate != nil {
		task.DueDate = p.DueDate
	}
	if p.ReminderAt != nil {
		task.ReminderAt = p.ReminderAt
	}
	if p.RecurrenceRule != nil {
		task.RecurrenceRule = *p.RecurrenceRule
	}
	if p.RecurrenceInt != nil {
		task.RecurrenceInt = *p.RecurrenceInt
	}
	if p.RecurrenceEndDate != nil {
		task.RecurrenceEndDate = p.RecurrenceEndDate
	}
	if p.Tags != nil {
		task.Tags = *p.Tags
	}
}

// UpdateTask applies the requested field values and records the matching
// event: task.updated with a field diff, or task.completed when the update is
// the active-to-completed transition (which also drives the recurrence
// engine). Field edits submitted together with the transition are logged as
// their own task.updated entry before the completion. An update that changes
// nothing appends nothing.
func (uc *UseCase) UpdateTask(ctx context.Context, userID string, id int64, params UpdateParams) (*domain.Task, error) {
	before, err := uc.tasks.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	merged := *before
	params.apply(&merged)
	updated := &merged

	updated.Normalize()
	if err := updated.Validate(); err != nil {
		return nil, err
	}

	changes := domain.DiffTasks(before, updated)

	if !before.IsCompleted() && updated.IsCompleted() {
		// Co-submitted edits get their own task.updated entry first; the
		// completion event records only the transition.
		delete(changes, "status")
		if len(changes) > 0 {
			active := *updated
			active.Status = before.Status
			if _, err := uc.recordUpdate(ctx, &active, changes); err != nil {
				return nil, err
			}
		}
		return uc.completeTask(ctx, updated)
	}

	if len(changes) == 0 {
		return before, nil
	}
	return uc.recordUpdate(ctx, updated, changes)
}

func (uc *UseCase) recordUpdate(ctx context.Context, updated *domain.Task, changes map[string]domain.FieldChange) (*domain.Task, error) {
	event, err := domain.NewEvent(updated, domain.EventTaskUpdated, domain.UpdatedPayload{
		TaskID:  updated.ID,
		Changes: changes,
	})
	if err != nil {
		return nil, err
	}
	if err := uc.commitAndDispatch(updated.UserID, event, func() error {
		return uc.tasks.UpdateWithEvent(ctx, updated, event)
	}); err != nil {
		return nil, err
	}
	return updated, nil
}

// CompleteTask marks a task completed. Completing an already-completed task
// is a no-op, which keeps successor generation idempotent.
func (uc *UseCase) CompleteTask(ctx context.Context, userID string, id int64) (*domain.Task, error) {
	before, err := uc.tasks.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if before.IsCompleted() {
		return before, nil
	}

	completed := *before
	completed.Status = domain.StatusCompleted
	return uc.completeTask(ctx, &completed)
}

func (uc *UseCase) DeleteTask(ctx context.Context, userID string, id int64) error {
	task, err := uc.tasks.GetByID(ctx, userID, id)
	if err != nil {
		return err
	}

	event, err := domain.NewEvent(task, domain.EventTaskDeleted, domain.DeletedPayload{TaskID: id})
	if err != nil {
		return err
	}
	return uc.commitAndDispatch(userID, event, func() error {
		return uc.tasks.DeleteWithEvent(ctx, userID, id, event)
	})
}

func (uc *UseCase) completeTask(ctx context.Context, completed *domain.Task) (*domain.Task, error) {
	completedAt := time.Now()
	event, err := domain.NewEvent(completed, domain.EventTaskCompleted, domain.CompletedPayload{
		TaskID:      completed.ID,
		IsRecurring: completed.IsRecurring(),
		CompletedAt: completedAt,
	})
	if err != nil {
		return nil, err
	}
	if err := uc.commitAndDispatch(completed.UserID, event, func() error {
		return uc.tasks.UpdateWithEvent(ctx, completed, event)
	}); err != nil {
		return nil, err
	}

	uc.generateSuccessor(ctx, completed, completedAt)
	return completed, nil
}

// generateSuccessor runs the recurrence engine after a completion commit. The
// successor goes through the normal create path, so subscribers see its
// task.created event like any other. Failures here never undo the completion:
// they are logged and left for manual correction, since recurrence only fires
// on this transition.
func (uc *UseCase) generateSuccessor(ctx context.Context, completed *domain.Task, completedAt time.Time) {
	successor, err := NextOccurrence(completed, completedAt)
	if err != nil {
		uc.logger.Error("recurrence computation failed",
			zap.Int64("task_id", completed.ID),
			zap.String("rule", completed.RecurrenceRule),
			zap.Error(err))
		return
	}
	if successor == nil {
		return
	}

	if _, err := uc.CreateTask(ctx, successor); err != nil {
		uc.logger.Error("failed to create recurrence instance",
			zap.Int64("parent_task_id", completed.ID), zap.Error(err))
		return
	}
	uc.logger.Info("recurrence instance created",
		zap.Int64("parent_task_id", completed.ID),
		zap.Int64("task_id", successor.ID))
}

// commitAndDispatch holds the user's mutation lock across the storage commit
// and the fan-out, so frames reach the registry in event append order even
// when the same user mutates concurrently. The lock is released before any
// follow-up mutation (successor creation) re-enters.
func (uc *UseCase) commitAndDispatch(userID string, event *domain.TaskEvent, commit func() error) error {
	unlock := uc.locks.Lock(userID)
	defer unlock()

	if err := uc.retryOnce(commit); err != nil {
		return err
	}
	uc.dispatch(event)
	return nil
}

func (uc *UseCase) dispatch(event *domain.TaskEvent) {
	if uc.sink == nil {
		return
	}
	uc.sink.Dispatch(event)
}

// retryOnce retries a storage write a single time before surfacing the
// failure. Domain errors (not found, validation) are final.
func (uc *UseCase) retryOnce(fn func() error) error {
	err := fn()
	if err == nil {
		return nil
	}
	var dErr *domain.Error
	if errors.As(err, &dErr) {
		return err
	}
	uc.logger.Warn("storage write failed, retrying once", zap.Error(err))
	return fn()
}

func createdPayload(task *domain.Task) domain.CreatedPayload {
	return domain.CreatedPayload{
		TaskID:       task.ID,
		Title:        task.Title,
		Description:  task.Description,
		Status:       task.Status,
		Priority:     task.Priority,
		DueDate:      task.DueDate,
		ReminderAt:   task.ReminderAt,
		Tags:         task.Tags,
		ParentTaskID: task.ParentTaskID,
	}
}
