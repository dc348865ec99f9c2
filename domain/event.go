package domain

import (
	"encoding/json"
	"time"
)

// EventType tags every entry in the append-only task event log.
type EventType string

const (
	EventTaskCreated       EventType = "task.created"
	EventTaskUpdated       EventType = "task.updated"
	EventTaskCompleted     EventType = "task.completed"
	EventTaskDeleted       EventType = "task.deleted"
	EventReminderTriggered EventType = "reminder.triggered"
)

// TaskEvent is one immutable entry of the event log. The ID is assigned by
// storage in insert order, so it doubles as the catch-up cursor for clients.
type TaskEvent struct {
	ID        int64           `json:"id"`
	TaskID    int64           `json:"task_id"`
	UserID    string          `json:"user_id"`
	Type      EventType       `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// FieldChange captures an old/new pair for one mutated field.
type FieldChange struct {
	Old interface{} `json:"old"`
	New interface{} `json:"new"`
}

// CreatedPayload is the data carried by a task.created event.
type CreatedPayload struct {
	TaskID       int64      `json:"taskId"`
	Title        string     `json:"title"`
	Description  string     `json:"description,omitempty"`
	Status       string     `json:"status"`
	Priority     string     `json:"priority"`
	DueDate      *time.Time `json:"dueDate,omitempty"`
	ReminderAt   *time.Time `json:"reminderAt,omitempty"`
	Tags         []string   `json:"tags,omitempty"`
	ParentTaskID *int64     `json:"parentTaskId,omitempty"`
}

// UpdatedPayload is the data carried by a task.updated event.
type UpdatedPayload struct {
	TaskID  int64                  `json:"taskId"`
	Changes map[string]FieldChange `json:"changes"`
}

// CompletedPayload is the data carried by a task.completed event.
type CompletedPayload struct {
	TaskID      int64     `json:"taskId"`
	IsRecurring bool      `json:"isRecurring,omitempty"`
	CompletedAt time.Time `json:"completedAt"`
}

// DeletedPayload is the data carried by a task.deleted event.
type DeletedPayload struct {
	TaskID int64 `json:"taskId"`
}

// ReminderPayload is the data carried by a reminder.triggered event.
type ReminderPayload struct {
	TaskID int64  `json:"taskId"`
	Title  string `json:"title"`
}

// NewEvent builds an event record for a task mutation. The payload must
// marshal cleanly; builders below guarantee that for the known shapes.
func NewEvent(task *Task, eventType EventType, payload interface{}) (*TaskEvent, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, WrapError(ErrCodeInternal, "failed to encode event payload", err)
	}
	return &TaskEvent{
		TaskID:  task.ID,
		UserID:  task.UserID,
		Type:    eventType,
		Payload: raw,
	}, nil
}

// DiffTasks computes the field-level changes between two versions of a task.
// Only the mutable fields the log cares about are compared; the result feeds
// the task.updated payload as field -> {old, new}.
func DiffTasks(before, after *Task) map[string]FieldChange {
	changes := make(map[string]FieldChange)
	if before == nil || after == nil {
		return changes
	}
	if before.Title != after.Title {
		changes["title"] = FieldChange{Old: before.Title, New: after.Title}
	}
	if before.Description != after.Description {
		changes["description"] = FieldChange{Old: before.Description, New: after.Description}
	}
	if before.Status != after.Status {
		changes["status"] = FieldChange{Old: before.Status, New: after.Status}
	}
	if before.Priority != after.Priority {
		changes["priority"] = FieldChange{Old: before.Priority, New: after.Priority}
	}
	if !equalTime(before.DueDate, after.DueDate) {
		changes["due_date"] = FieldChange{Old: timeValue(before.DueDate), New: timeValue(after.DueDate)}
	}
	if !equalTime(before.ReminderAt, after.ReminderAt) {
		changes["reminder_at"] = FieldChange{Old: timeValue(before.ReminderAt), New: timeValue(after.ReminderAt)}
	}
	if before.RecurrenceRule != after.RecurrenceRule {
		changes["recurrence_rule"] = FieldChange{Old: before.RecurrenceRule, New: after.RecurrenceRule}
	}
	if before.RecurrenceInt != after.RecurrenceInt {
		changes["recurrence_interval"] = FieldChange{Old: before.RecurrenceInt, New: after.RecurrenceInt}
	}
	if !equalTime(before.RecurrenceEndDate, after.RecurrenceEndDate) {
		changes["recurrence_end_date"] = FieldChange{Old: timeValue(before.RecurrenceEndDate), New: timeValue(after.RecurrenceEndDate)}
	}
	if !equalTags(before.Tags, after.Tags) {
		changes["tags"] = FieldChange{Old: before.Tags, New: after.Tags}
	}
	return changes
}

func equalTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func timeValue(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func equalTags(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]struct{}, len(a))
	for _, tag := range a {
		seen[tag] = struct{}{}
	}
	for _, tag := range b {
		if _, ok := seen[tag]; !ok {
			return false
		}
	}
	return true
}
