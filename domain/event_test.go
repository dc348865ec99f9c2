package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskstream/backend/domain"
)

func TestDiffTasks(t *testing.T) {
	base := func() *domain.Task {
		due := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
		return &domain.Task{
			ID:       1,
			UserID:   "u1",
			Title:    "title",
			Status:   domain.StatusActive,
			Priority: domain.PriorityMedium,
			DueDate:  &due,
			Tags:     []string{"home", "errand"},
		}
	}

	t.Run("identical tasks diff to nothing", func(t *testing.T) {
		before := base()
		after := base()
		assert.Empty(t, domain.DiffTasks(before, after))
	})

	t.Run("scalar change carries old and new", func(t *testing.T) {
		before := base()
		after := base()
		after.Title = "renamed"
		after.Priority = domain.PriorityHigh

		changes := domain.DiffTasks(before, after)
		require.Len(t, changes, 2)
		require.Contains(t, changes, "title")
		assert.Equal(t, "renamed", changes["title"].New)
		assert.Equal(t, "title", changes["title"].Old)
		assert.Equal(t, domain.PriorityMedium, changes["priority"].Old)
	})

	t.Run("due date cleared", func(t *testing.T) {
		before := base()
		after := base()
		after.DueDate = nil

		changes := domain.DiffTasks(before, after)
		require.Contains(t, changes, "due_date")
		assert.Nil(t, changes["due_date"].New)
		assert.Equal(t, "2026-03-01T12:00:00Z", changes["due_date"].Old)
	})

	t.Run("tag order does not count as a change", func(t *testing.T) {
		before := base()
		after := base()
		after.Tags = []string{"errand", "home"}
		assert.Empty(t, domain.DiffTasks(before, after))
	})

	t.Run("tag membership change is reported", func(t *testing.T) {
		before := base()
		after := base()
		after.Tags = []string{"home"}
		assert.Contains(t, domain.DiffTasks(before, after), "tags")
	})

	t.Run("nil inputs diff to nothing", func(t *testing.T) {
		assert.Empty(t, domain.DiffTasks(nil, base()))
		assert.Empty(t, domain.DiffTasks(base(), nil))
	})
}
