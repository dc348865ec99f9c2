package usecase

import "github.com/taskstream/backend/domain"

// EventSink receives committed event-log entries for live fan-out. Use cases
// call it after the transaction commits; a sink failure never propagates back
// into the mutation path, so implementations must swallow delivery errors.
type EventSink interface {
	Dispatch(event *domain.TaskEvent)
}
