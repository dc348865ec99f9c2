package syncclient_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskstream/backend/domain"
	"github.com/taskstream/backend/pkg/syncclient"
)

func openCache(t *testing.T) *syncclient.Cache {
	t.Helper()
	cache, err := syncclient.OpenCache(filepath.Join(t.TempDir(), "tasks.db"))
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })
	return cache
}

func TestCache(t *testing.T) {
	t.Run("put then get round trip", func(t *testing.T) {
		cache := openCache(t)
		due := time.Date(2026, time.April, 1, 8, 0, 0, 0, time.UTC)
		require.NoError(t, cache.Put(&domain.Task{ID: 1, UserID: "u1", Title: "cached", DueDate: &due}))

		task, err := cache.Get(1)
		require.NoError(t, err)
		require.NotNil(t, task)
		assert.Equal(t, "cached", task.Title)
		assert.True(t, due.Equal(*task.DueDate))
	})

	t.Run("get missing returns nil", func(t *testing.T) {
		cache := openCache(t)
		task, err := cache.Get(404)
		require.NoError(t, err)
		assert.Nil(t, task)
	})

	t.Run("delete removes the entry", func(t *testing.T) {
		cache := openCache(t)
		require.NoError(t, cache.Put(&domain.Task{ID: 2, Title: "gone soon"}))
		require.NoError(t, cache.Delete(2))

		task, err := cache.Get(2)
		require.NoError(t, err)
		assert.Nil(t, task)
	})

	t.Run("replace all swaps the whole set", func(t *testing.T) {
		cache := openCache(t)
		require.NoError(t, cache.Put(&domain.Task{ID: 1, Title: "old"}))
		require.NoError(t, cache.ReplaceAll([]*domain.Task{
			{ID: 10, Title: "fresh a"},
			{ID: 11, Title: "fresh b"},
		}))

		tasks, err := cache.List()
		require.NoError(t, err)
		require.Len(t, tasks, 2)

		stale, err := cache.Get(1)
		require.NoError(t, err)
		assert.Nil(t, stale)
	})

	t.Run("cursor persists", func(t *testing.T) {
		cache := openCache(t)

		cursor, err := cache.Cursor()
		require.NoError(t, err)
		assert.Zero(t, cursor)

		require.NoError(t, cache.SetCursor(1234))
		cursor, err = cache.Cursor()
		require.NoError(t, err)
		assert.Equal(t, int64(1234), cursor)
	})
}
