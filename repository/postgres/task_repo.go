package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskstream/backend/domain"
	"github.com/taskstream/backend/repository"
)

const taskColumns = `
	t.id, t.user_id, t.title, t.description, t.status, t.priority,
	t.due_date, t.reminder_at, t.recurrence_rule, t.recurrence_interval,
	t.recurrence_end_date, t.parent_task_id, t.created_at, t.updated_at, t.deleted_at,
	COALESCE(array_agg(tg.name ORDER BY tg.name) FILTER (WHERE tg.name IS NOT NULL), '{}')
`

const taskJoins = `
	FROM todos t
	LEFT JOIN todo_tags tt ON tt.todo_id = t.id
	LEFT JOIN tags tg ON tg.id = tt.tag_id
`

type taskRepository struct {
	pool *pgxpool.Pool
}

// NewTaskRepository returns the Postgres-backed task store. Every mutation
// writes the todos row and its task_events entry in one transaction.
func NewTaskRepository(pool *pgxpool.Pool) repository.TaskRepository {
	return &taskRepository{pool: pool}
}

func (r *taskRepository) GetByID(ctx context.Context, userID string, id int64) (*domain.Task, error) {
	query := `SELECT` + taskColumns + taskJoins + `
	WHERE t.id = $1 AND t.user_id = $2 AND t.deleted_at IS NULL
	GROUP BY t.id
	`
	row := r.pool.QueryRow(ctx, query, id, userID)
	return scanTask(row)
}

func (r *taskRepository) List(ctx context.Context, filter repository.TaskFilter) ([]domain.Task, error) {
	query := `SELECT` + taskColumns + taskJoins + `
	WHERE t.user_id = $1
	  AND t.deleted_at IS NULL
	  AND ($2 = '' OR t.status = $2)
	  AND ($3 = '' OR t.priority = $3)
	GROUP BY t.id
	ORDER BY t.created_at DESC
	LIMIT $4 OFFSET $5
	`
	rows, err := r.pool.Query(ctx, query,
		filter.UserID, filter.Status, filter.Priority,
		clampLimit(filter.Limit), filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

func (r *taskRepository) CreateWithEvent(ctx context.Context, task *domain.Task, event *domain.TaskEvent) error {
	if task == nil || event == nil {
		return domain.ErrInvalidPayload
	}
	return r.inTx(ctx, func(tx pgx.Tx) error {
		const query = `
		INSERT INTO todos (user_id, title, description, status, priority, due_date,
			reminder_at, recurrence_rule, recurrence_interval, recurrence_end_date, parent_task_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at
		`
		if err := tx.QueryRow(ctx, query,
			task.UserID,
			task.Title,
			task.Description,
			task.Status,
			task.Priority,
			task.DueDate,
			task.ReminderAt,
			nullString(task.RecurrenceRule),
			task.RecurrenceInt,
			task.RecurrenceEndDate,
			task.ParentTaskID,
		).Scan(&task.ID, &task.CreatedAt, &task.UpdatedAt); err != nil {
			return err
		}

		if err := setTags(ctx, tx, task); err != nil {
			return err
		}

		// The event is built before the id is known; stamp it here.
		event.TaskID = task.ID
		event.Payload = stampTaskID(event.Payload, task.ID)
		return appendEvent(ctx, tx, event)
	})
}

func (r *taskRepository) UpdateWithEvent(ctx context.Context, task *domain.Task, event *domain.TaskEvent) error {
	if task == nil || event == nil {
		return domain.ErrInvalidPayload
	}
	return r.inTx(ctx, func(tx pgx.Tx) error {
		// A changed reminder re-arms the fire-once guard; the CASE compares
		// against the row's previous reminder_at.
		const query = `
		UPDATE todos
		SET title = $3,
			description = $4,
			status = $5,
			priority = $6,
			due_date = $7,
			reminder_at = $8,
			reminder_fired = CASE WHEN reminder_at IS DISTINCT FROM $8
				THEN FALSE ELSE reminder_fired END,
			recurrence_rule = $9,
			recurrence_interval = $10,
			recurrence_end_date = $11,
			updated_at = NOW()
		WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL
		RETURNING updated_at
		`
		if err := tx.QueryRow(ctx, query,
			task.ID,
			task.UserID,
			task.Title,
			task.Description,
			task.Status,
			task.Priority,
			task.DueDate,
			task.ReminderAt,
			nullString(task.RecurrenceRule),
			task.RecurrenceInt,
			task.RecurrenceEndDate,
		).Scan(&task.UpdatedAt); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrTaskNotFound
			}
			return err
		}

		if err := setTags(ctx, tx, task); err != nil {
			return err
		}
		return appendEvent(ctx, tx, event)
	})
}

func (r *taskRepository) DeleteWithEvent(ctx context.Context, userID string, id int64, event *domain.TaskEvent) error {
	if event == nil {
		return domain.ErrInvalidPayload
	}
	return r.inTx(ctx, func(tx pgx.Tx) error {
		// Soft delete keeps the row referenced by the event log coherent.
		const query = `
		UPDATE todos
		SET deleted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL
		`
		tag, err := tx.Exec(ctx, query, id, userID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrTaskNotFound
		}
		return appendEvent(ctx, tx, event)
	})
}

func (r *taskRepository) DueReminders(ctx context.Context, now time.Time, limit int) ([]domain.Task, error) {
	query := `SELECT` + taskColumns + taskJoins + `
	WHERE t.reminder_at IS NOT NULL
	  AND t.reminder_at <= $1
	  AND t.reminder_fired = FALSE
	  AND t.deleted_at IS NULL
	GROUP BY t.id
	ORDER BY t.reminder_at
	LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, now, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

func (r *taskRepository) ConsumeReminder(ctx context.Context, userID string, id int64, event *domain.TaskEvent) (bool, error) {
	if event == nil {
		return false, domain.ErrInvalidPayload
	}
	consumed := false
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		// The reminder_fired guard makes concurrent sweeps fire each
		// reminder exactly once.
		const query = `
		UPDATE todos
		SET reminder_fired = TRUE
		WHERE id = $1 AND user_id = $2
		  AND reminder_at IS NOT NULL AND reminder_fired = FALSE
		  AND deleted_at IS NULL
		`
		tag, err := tx.Exec(ctx, query, id, userID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		consumed = true
		return appendEvent(ctx, tx, event)
	})
	return consumed, err
}

func (r *taskRepository) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
