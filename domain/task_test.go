package domain_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskstream/backend/domain"
)

func TestTaskNormalize(t *testing.T) {
	t.Run("fills defaults", func(t *testing.T) {
		task := &domain.Task{Title: "bare"}
		task.Normalize()
		assert.Equal(t, domain.StatusActive, task.Status)
		assert.Equal(t, domain.PriorityMedium, task.Priority)
		assert.Zero(t, task.RecurrenceInt)
	})

	t.Run("recurring task gets interval 1", func(t *testing.T) {
		task := &domain.Task{Title: "weekly", RecurrenceRule: domain.RecurrenceWeekly}
		task.Normalize()
		assert.Equal(t, 1, task.RecurrenceInt)
	})

	t.Run("explicit values survive", func(t *testing.T) {
		task := &domain.Task{Title: "set", Status: domain.StatusCompleted, Priority: domain.PriorityLow}
		task.Normalize()
		assert.Equal(t, domain.StatusCompleted, task.Status)
		assert.Equal(t, domain.PriorityLow, task.Priority)
	})
}

func TestTaskValidate(t *testing.T) {
	valid := func() *domain.Task {
		task := &domain.Task{Title: "ok"}
		task.Normalize()
		return task
	}

	t.Run("accepts a normalized task", func(t *testing.T) {
		require.NoError(t, valid().Validate())
	})

	t.Run("rejects empty title", func(t *testing.T) {
		task := valid()
		task.Title = ""
		assert.Error(t, task.Validate())
	})

	t.Run("rejects overlong title", func(t *testing.T) {
		task := valid()
		task.Title = strings.Repeat("x", 201)
		assert.Error(t, task.Validate())
	})

	t.Run("rejects unknown status", func(t *testing.T) {
		task := valid()
		task.Status = "paused"
		assert.Error(t, task.Validate())
	})

	t.Run("rejects unknown priority", func(t *testing.T) {
		task := valid()
		task.Priority = "urgent"
		assert.Error(t, task.Validate())
	})

	t.Run("rejects unknown recurrence rule", func(t *testing.T) {
		task := valid()
		task.RecurrenceRule = "yearly"
		task.RecurrenceInt = 1
		assert.Error(t, task.Validate())
	})

	t.Run("rejects parent reference without recurrence", func(t *testing.T) {
		task := valid()
		parent := int64(9)
		task.ParentTaskID = &parent
		assert.Error(t, task.Validate())
	})
}
