package syncclient

import (
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/taskstream/backend/domain"
)

var (
	bucketTasks = []byte("tasks")
	bucketMeta  = []byte("meta")
	keyCursor   = []byte("last_event_id")
)

// Cache is a BoltDB-backed local copy of the user's tasks. It lets a client
// render state while offline and remembers the last applied event id so the
// next session can catch up over the REST event feed before resubscribing.
type Cache struct {
	db *bolt.DB
}

// OpenCache initializes the BoltDB file and ensures the buckets exist.
func OpenCache(path string) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketTasks); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketMeta)
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}

	return &Cache{db: db}, nil
}

// Put stores or replaces a task.
func (c *Cache) Put(task *domain.Task) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTasks).Put(taskKey(task.ID), payload)
	})
}

// Get returns the cached task or nil when absent.
func (c *Cache) Get(id int64) (*domain.Task, error) {
	var task *domain.Task
	err := c.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketTasks).Get(taskKey(id))
		if raw == nil {
			return nil
		}
		task = &domain.Task{}
		return json.Unmarshal(raw, task)
	})
	return task, err
}

// Delete removes a task from the cache.
func (c *Cache) Delete(id int64) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTasks).Delete(taskKey(id))
	})
}

// List returns every cached task.
func (c *Cache) List() ([]*domain.Task, error) {
	var tasks []*domain.Task
	err := c.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTasks).ForEach(func(_, v []byte) error {
			task := &domain.Task{}
			if err := json.Unmarshal(v, task); err != nil {
				return err
			}
			tasks = append(tasks, task)
			return nil
		})
	})
	return tasks, err
}

// ReplaceAll swaps the cached set for a fresh server snapshot. Used after a
// reconnect, when deltas may have been missed.
func (c *Cache) ReplaceAll(tasks []*domain.Task) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucketTasks); err != nil {
			return err
		}
		b, err := tx.CreateBucket(bucketTasks)
		if err != nil {
			return err
		}
		for _, task := range tasks {
			payload, err := json.Marshal(task)
			if err != nil {
				return err
			}
			if err := b.Put(taskKey(task.ID), payload); err != nil {
				return err
			}
		}
		return nil
	})
}

// Cursor returns the id of the last applied event, zero when none.
func (c *Cache) Cursor() (int64, error) {
	var cursor int64
	err := c.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketMeta).Get(keyCursor)
		if len(raw) == 8 {
			cursor = int64(binary.BigEndian.Uint64(raw))
		}
		return nil
	})
	return cursor, err
}

// SetCursor records the id of the last applied event.
func (c *Cache) SetCursor(id int64) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(id))
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketMeta).Put(keyCursor, buf)
	})
}

// Close releases the underlying BoltDB file.
func (c *Cache) Close() error {
	return c.db.Close()
}

func taskKey(id int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(id))
	return buf
}
