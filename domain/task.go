package domain

import "time"

// Task statuses.
const (
	StatusActive    = "active"
	StatusCompleted = "completed"
)

// Task priorities.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Recurrence rules. An empty rule means the task does not repeat.
const (
	RecurrenceDaily   = "daily"
	RecurrenceWeekly  = "weekly"
	RecurrenceMonthly = "monthly"
)

// Task represents a user-owned activity item, including the scheduling
// metadata the recurrence engine and reminder sweep operate on.
type Task struct {
	ID                int64      `json:"id"`
	UserID            string     `json:"user_id"`
	Title             string     `json:"title"`
	Description       string     `json:"description,omitempty"`
	Status            string     `json:"status"`
	Priority          string     `json:"priority"`
	DueDate           *time.Time `json:"due_date,omitempty"`
	ReminderAt        *time.Time `json:"reminder_at,omitempty"`
	RecurrenceRule    string     `json:"recurrence_rule,omitempty"`
	RecurrenceInt     int        `json:"recurrence_interval,omitempty"`
	RecurrenceEndDate *time.Time `json:"recurrence_end_date,omitempty"`
	ParentTaskID      *int64     `json:"parent_task_id,omitempty"`
	Tags              []string   `json:"tags,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
	DeletedAt         *time.Time `json:"-"`
}

func (t *Task) IsCompleted() bool {
	return t != nil && t.Status == StatusCompleted
}

// IsRecurring reports whether completing the task should generate a successor.
func (t *Task) IsRecurring() bool {
	return t != nil && t.RecurrenceRule != ""
}

// Normalize fills defaults before validation.
func (t *Task) Normalize() {
	if t == nil {
		return
	}
	if t.Status == "" {
		t.Status = StatusActive
	}
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	if t.RecurrenceRule != "" && t.RecurrenceInt <= 0 {
		t.RecurrenceInt = 1
	}
}

// Validate checks the invariants enforced on every write path.
func (t *Task) Validate() error {
	if t == nil {
		return ErrInvalidPayload
	}
	if t.Title == "" || len(t.Title) > 200 {
		return NewError(ErrCodeInvalid, "title must be 1-200 characters")
	}
	switch t.Status {
	case StatusActive, StatusCompleted:
	default:
		return NewError(ErrCodeInvalid, "status must be active or completed")
	}
	switch t.Priority {
	case PriorityLow, PriorityMedium, PriorityHigh:
	default:
		return NewError(ErrCodeInvalid, "priority must be low, medium or high")
	}
	switch t.RecurrenceRule {
	case "", RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly:
	default:
		return NewError(ErrCodeInvalid, "recurrence rule must be daily, weekly or monthly")
	}
	if t.RecurrenceRule != "" && t.RecurrenceInt < 1 {
		return NewError(ErrCodeInvalid, "recurrence interval must be >= 1")
	}
	if t.RecurrenceRule == "" && t.ParentTaskID != nil {
		return NewError(ErrCodeInvalid, "non-recurring task cannot reference a parent")
	}
	return nil
}
