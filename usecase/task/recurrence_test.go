package task_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskstream/backend/domain"
	taskUC "github.com/taskstream/backend/usecase/task"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 9, 0, 0, 0, time.UTC)
}

func TestNextDueDate(t *testing.T) {
	base := date(2026, time.February, 1)

	t.Run("daily", func(t *testing.T) {
		next, err := taskUC.NextDueDate(domain.RecurrenceDaily, 1, base)
		require.NoError(t, err)
		assert.Equal(t, date(2026, time.February, 2), next)
	})

	t.Run("daily with interval", func(t *testing.T) {
		next, err := taskUC.NextDueDate(domain.RecurrenceDaily, 3, base)
		require.NoError(t, err)
		assert.Equal(t, date(2026, time.February, 4), next)
	})

	t.Run("weekly", func(t *testing.T) {
		next, err := taskUC.NextDueDate(domain.RecurrenceWeekly, 1, base)
		require.NoError(t, err)
		assert.Equal(t, date(2026, time.February, 8), next)
	})

	t.Run("monthly", func(t *testing.T) {
		next, err := taskUC.NextDueDate(domain.RecurrenceMonthly, 1, base)
		require.NoError(t, err)
		assert.Equal(t, date(2026, time.March, 1), next)
	})

	t.Run("monthly normalizes short months", func(t *testing.T) {
		next, err := taskUC.NextDueDate(domain.RecurrenceMonthly, 1, date(2026, time.January, 31))
		require.NoError(t, err)
		// AddDate semantics: Jan 31 + 1 month rolls into March.
		assert.Equal(t, date(2026, time.March, 3), next)
	})

	t.Run("unknown rule", func(t *testing.T) {
		_, err := taskUC.NextDueDate("yearly", 1, base)
		assert.Error(t, err)
	})
}

func TestNextOccurrence(t *testing.T) {
	completedAt := date(2026, time.February, 10)

	t.Run("non-recurring yields nothing", func(t *testing.T) {
		successor, err := taskUC.NextOccurrence(&domain.Task{ID: 1, Title: "one-off"}, completedAt)
		require.NoError(t, err)
		assert.Nil(t, successor)
	})

	t.Run("counts from due date", func(t *testing.T) {
		due := date(2026, time.February, 1)
		completed := &domain.Task{
			ID:             7,
			UserID:         "u1",
			Title:          "weekly report",
			Status:         domain.StatusCompleted,
			Priority:       domain.PriorityHigh,
			DueDate:        &due,
			RecurrenceRule: domain.RecurrenceWeekly,
			RecurrenceInt:  1,
			Tags:           []string{"work"},
		}

		successor, err := taskUC.NextOccurrence(completed, completedAt)
		require.NoError(t, err)
		require.NotNil(t, successor)

		assert.Equal(t, date(2026, time.February, 8), *successor.DueDate)
		assert.Equal(t, domain.StatusActive, successor.Status)
		assert.Equal(t, "weekly report", successor.Title)
		assert.Equal(t, domain.PriorityHigh, successor.Priority)
		assert.Equal(t, []string{"work"}, successor.Tags)
		require.NotNil(t, successor.ParentTaskID)
		assert.Equal(t, int64(7), *successor.ParentTaskID)
		assert.Equal(t, domain.RecurrenceWeekly, successor.RecurrenceRule)
	})

	t.Run("falls back to completion time without due date", func(t *testing.T) {
		completed := &domain.Task{
			ID:             8,
			UserID:         "u1",
			Title:          "daily standup",
			RecurrenceRule: domain.RecurrenceDaily,
			RecurrenceInt:  1,
		}

		successor, err := taskUC.NextOccurrence(completed, completedAt)
		require.NoError(t, err)
		require.NotNil(t, successor)
		assert.Equal(t, completedAt.AddDate(0, 0, 1), *successor.DueDate)
	})

	t.Run("end date terminates the chain", func(t *testing.T) {
		due := date(2026, time.February, 1)
		end := date(2026, time.February, 5)
		completed := &domain.Task{
			ID:                9,
			UserID:            "u1",
			Title:             "limited series",
			DueDate:           &due,
			RecurrenceRule:    domain.RecurrenceWeekly,
			RecurrenceInt:     1,
			RecurrenceEndDate: &end,
		}

		successor, err := taskUC.NextOccurrence(completed, completedAt)
		require.NoError(t, err)
		assert.Nil(t, successor)
	})

	t.Run("next due on the end date still generates", func(t *testing.T) {
		due := date(2026, time.February, 1)
		end := date(2026, time.February, 8)
		completed := &domain.Task{
			ID:                10,
			UserID:            "u1",
			Title:             "ends exactly on schedule",
			DueDate:           &due,
			RecurrenceRule:    domain.RecurrenceWeekly,
			RecurrenceInt:     1,
			RecurrenceEndDate: &end,
		}

		successor, err := taskUC.NextOccurrence(completed, completedAt)
		require.NoError(t, err)
		require.NotNil(t, successor)
		assert.Equal(t, end, *successor.DueDate)
	})
}
