package repository

import (
	"context"
	"time"

	"github.com/taskstream/backend/domain"
)

// TaskFilter narrows task listings. Zero values mean "no filter".
type TaskFilter struct {
	UserID   string
	Status   string
	Priority string
	Limit    int
	Offset   int
}

// TaskRepository is the task store plus the event-log half of every mutation.
// The *WithEvent methods commit the task write and the event append in one
// transaction: either both are visible afterwards or neither is. Implementations
// fill generated ids and timestamps on the passed task and event.
type TaskRepository interface {
	GetByID(ctx context.Context, userID string, id int64) (*domain.Task, error)
	List(ctx context.Context, filter TaskFilter) ([]domain.Task, error)
	CreateWithEvent(ctx context.Context, task *domain.Task, event *domain.TaskEvent) error
	UpdateWithEvent(ctx context.Context, task *domain.Task, event *domain.TaskEvent) error
	DeleteWithEvent(ctx context.Context, userID string, id int64, event *domain.TaskEvent) error

	// DueReminders returns tasks whose reminder time is at or before now and
	// has not been consumed yet.
	DueReminders(ctx context.Context, now time.Time, limit int) ([]domain.Task, error)

	// ConsumeReminder clears the reminder and appends the reminder.triggered
	// event atomically. It reports false when another sweep already consumed
	// the reminder, which is what makes firing idempotent.
	ConsumeReminder(ctx context.Context, userID string, id int64, event *domain.TaskEvent) (bool, error)
}
