package task

import (
	"time"

	"github.com/taskstream/backend/domain"
)

// NextDueDate advances base by interval units of the recurrence rule.
func NextDueDate(rule string, interval int, base time.Time) (time.Time, error) {
	if interval < 1 {
		interval = 1
	}
	switch rule {
	case domain.RecurrenceDaily:
		return base.AddDate(0, 0, interval), nil
	case domain.RecurrenceWeekly:
		return base.AddDate(0, 0, 7*interval), nil
	case domain.RecurrenceMonthly:
		return base.AddDate(0, interval, 0), nil
	default:
		return time.Time{}, domain.NewError(domain.ErrCodeInvalid, "unknown recurrence rule "+rule)
	}
}

// NextOccurrence derives the successor instance for a completed recurring
// task, or nil when the chain ends. The next due date counts from the
// completed instance's due date, falling back to the completion time for
// tasks that never had one. The successor keeps the recurrence fields so it
// can regenerate in turn, and points at its predecessor via ParentTaskID.
func NextOccurrence(completed *domain.Task, completedAt time.Time) (*domain.Task, error) {
	if completed == nil || !completed.IsRecurring() {
		return nil, nil
	}

	base := completedAt
	if completed.DueDate != nil {
		base = *completed.DueDate
	}

	nextDue, err := NextDueDate(completed.RecurrenceRule, completed.RecurrenceInt, base)
	if err != nil {
		return nil, err
	}

	if completed.RecurrenceEndDate != nil && nextDue.After(*completed.RecurrenceEndDate) {
		// Chain terminates silently once the end date is behind us.
		return nil, nil
	}

	parentID := completed.ID
	return &domain.Task{
		UserID:            completed.UserID,
		Title:             completed.Title,
		Description:       completed.Description,
		Status:            domain.StatusActive,
		Priority:          completed.Priority,
		DueDate:           &nextDue,
		RecurrenceRule:    completed.RecurrenceRule,
		RecurrenceInt:     completed.RecurrenceInt,
		RecurrenceEndDate: completed.RecurrenceEndDate,
		ParentTaskID:      &parentID,
		Tags:              append([]string(nil), completed.Tags...),
	}, nil
}
