package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/taskstream/backend/domain"
)

func scanTask(row interface {
	Scan(dest ...interface{}) error
}) (*domain.Task, error) {
	var task domain.Task
	var (
		rule   *string
		parent *int64
	)

	if err := row.Scan(
		&task.ID,
		&task.UserID,
		&task.Title,
		&task.Description,
		&task.Status,
		&task.Priority,
		&task.DueDate,
		&task.ReminderAt,
		&rule,
		&task.RecurrenceInt,
		&task.RecurrenceEndDate,
		&parent,
		&task.CreatedAt,
		&task.UpdatedAt,
		&task.DeletedAt,
		&task.Tags,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, err
	}

	if rule != nil {
		task.RecurrenceRule = *rule
	}
	task.ParentTaskID = parent
	return &task, nil
}

// appendEvent inserts an event-log entry inside the caller's transaction and
// fills the generated id and timestamp.
func appendEvent(ctx context.Context, tx pgx.Tx, event *domain.TaskEvent) error {
	const query = `
	INSERT INTO task_events (task_id, user_id, event_type, payload)
	VALUES ($1, $2, $3, $4)
	RETURNING id, created_at
	`
	payload := event.Payload
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}
	return tx.QueryRow(ctx, query,
		event.TaskID,
		event.UserID,
		string(event.Type),
		payload,
	).Scan(&event.ID, &event.CreatedAt)
}

// setTags replaces the task's tag associations, creating missing tags for the
// user on the way. A nil slice keeps the payload small for tasks without tags.
func setTags(ctx context.Context, tx pgx.Tx, task *domain.Task) error {
	if _, err := tx.Exec(ctx, `DELETE FROM todo_tags WHERE todo_id = $1`, task.ID); err != nil {
		return err
	}
	for _, name := range task.Tags {
		var tagID int64
		const upsert = `
		INSERT INTO tags (user_id, name)
		VALUES ($1, $2)
		ON CONFLICT (user_id, name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id
		`
		if err := tx.QueryRow(ctx, upsert, task.UserID, name).Scan(&tagID); err != nil {
			return err
		}
		const link = `
		INSERT INTO todo_tags (todo_id, tag_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
		`
		if _, err := tx.Exec(ctx, link, task.ID, tagID); err != nil {
			return err
		}
	}
	return nil
}

// stampTaskID rewrites the taskId field of a payload built before the
// database assigned the row id.
func stampTaskID(payload json.RawMessage, id int64) json.RawMessage {
	if len(payload) == 0 {
		return payload
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(payload, &fields); err != nil {
		return payload
	}
	fields["taskId"] = id
	out, err := json.Marshal(fields)
	if err != nil {
		return payload
	}
	return out
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 100
	}
	return limit
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
