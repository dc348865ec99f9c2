package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskstream/backend/domain"
	"github.com/taskstream/backend/repository"
)

type eventRepository struct {
	pool *pgxpool.Pool
}

// NewEventRepository returns the read side of the append-only event log.
func NewEventRepository(pool *pgxpool.Pool) repository.EventRepository {
	return &eventRepository{pool: pool}
}

func (r *eventRepository) Query(ctx context.Context, userID string, sinceID int64, limit int) ([]domain.TaskEvent, error) {
	const query = `
	SELECT id, task_id, user_id, event_type, payload, created_at
	FROM task_events
	WHERE user_id = $1 AND id > $2
	ORDER BY id
	LIMIT $3
	`
	rows, err := r.pool.Query(ctx, query, userID, sinceID, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.TaskEvent
	for rows.Next() {
		var ev domain.TaskEvent
		var eventType string
		if err := rows.Scan(&ev.ID, &ev.TaskID, &ev.UserID, &eventType, &ev.Payload, &ev.CreatedAt); err != nil {
			return nil, err
		}
		ev.Type = domain.EventType(eventType)
		events = append(events, ev)
	}
	return events, rows.Err()
}
