package repository

import (
	"context"

	"github.com/taskstream/backend/domain"
)

// EventRepository reads the append-only event log. Appends never happen here:
// they ride along with the task mutation inside TaskRepository so the two
// commit together.
type EventRepository interface {
	// Query returns the user's events with id > sinceID in append order.
	// Clients resume catch-up after reconnect by passing the last id they saw.
	Query(ctx context.Context, userID string, sinceID int64, limit int) ([]domain.TaskEvent, error)
}
