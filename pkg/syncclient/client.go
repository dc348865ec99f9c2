package syncclient

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/fasthttp/websocket"
	"go.uber.org/zap"

	"github.com/taskstream/backend/api/transport"
	"github.com/taskstream/backend/domain"
)

// CloseUnauthorized is the close code the server sends when the token is
// rejected. Reconnecting with the same token cannot succeed, so the client
// stops instead of retrying.
const CloseUnauthorized = 4001

// Config controls the sync client connection.
type Config struct {
	// URL is the websocket endpoint, e.g. ws://host:8080/ws/tasks.
	URL   string
	Token string

	PingInterval   time.Duration
	ReconnectDelay time.Duration
	Logger         *zap.Logger
}

// Handlers receives decoded stream activity. Any handler may be nil.
type Handlers struct {
	// OnEvent fires for every event frame after the cache has been updated.
	OnEvent func(frameType string, data json.RawMessage)
	// Refresh fetches the authoritative task list, used to reconcile the
	// cache after a reconnect when deltas may have been missed.
	Refresh func(ctx context.Context) ([]*domain.Task, error)
}

// Client maintains a websocket subscription to the task stream, keeps the
// local cache consistent, and reconnects with a fixed delay on failure.
type Client struct {
	cfg      Config
	cache    *Cache
	handlers Handlers
	logger   *zap.Logger
}

func New(cfg Config, cache *Cache, handlers Handlers) *Client {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Client{
		cfg:      cfg,
		cache:    cache,
		handlers: handlers,
		logger:   cfg.Logger,
	}
}

// Run connects and processes the stream until the context is cancelled or
// the server rejects the token. Connection drops trigger a reconcile-then-
// resubscribe cycle after the configured delay.
func (c *Client) Run(ctx context.Context) error {
	first := true
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if !first {
			select {
			case <-time.After(c.cfg.ReconnectDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		first = false

		err := c.session(ctx)
		if err == nil {
			continue
		}
		if websocket.IsCloseError(err, CloseUnauthorized) {
			c.logger.Error("subscription rejected", zap.Error(err))
			return domain.NewError(domain.ErrCodeUnauthorized, "token rejected by server")
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn("stream disconnected, will retry", zap.Error(err))
	}
}

func (c *Client) session(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	sock, resp, err := dialer.DialContext(ctx, c.cfg.URL+"?token="+c.cfg.Token, nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return domain.NewError(domain.ErrCodeUnauthorized, "token rejected by server")
		}
		return err
	}
	defer sock.Close()

	if err := c.reconcile(ctx); err != nil {
		return err
	}

	done := make(chan struct{})
	defer close(done)
	go c.pingLoop(sock, done)

	for {
		_, payload, err := sock.ReadMessage()
		if err != nil {
			return err
		}
		frame, err := transport.DecodeFrame(payload)
		if err != nil {
			c.logger.Warn("skipping malformed frame", zap.Error(err))
			continue
		}
		c.apply(frame)
	}
}

// reconcile replaces the cache with the server's current task list. Skipped
// when no refresh source is configured.
func (c *Client) reconcile(ctx context.Context) error {
	if c.handlers.Refresh == nil {
		return nil
	}
	tasks, err := c.handlers.Refresh(ctx)
	if err != nil {
		return err
	}
	if c.cache != nil {
		return c.cache.ReplaceAll(tasks)
	}
	return nil
}

func (c *Client) pingLoop(sock *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := sock.WriteMessage(websocket.TextMessage, transport.EncodePing()); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func (c *Client) apply(frame transport.Frame) {
	if c.cache != nil {
		if err := c.applyToCache(frame); err != nil {
			c.logger.Warn("cache update failed", zap.String("type", frame.Type), zap.Error(err))
		}
		if frame.ID > 0 {
			if err := c.cache.SetCursor(frame.ID); err != nil {
				c.logger.Warn("cursor update failed", zap.Int64("event_id", frame.ID), zap.Error(err))
			}
		}
	}
	if c.handlers.OnEvent != nil && frame.Type != transport.MsgPong {
		c.handlers.OnEvent(frame.Type, frame.Data)
	}
}

func (c *Client) applyToCache(frame transport.Frame) error {
	switch domain.EventType(frame.Type) {
	case domain.EventTaskCreated:
		var payload domain.CreatedPayload
		if err := json.Unmarshal(frame.Data, &payload); err != nil {
			return err
		}
		return c.cache.Put(&domain.Task{
			ID:           payload.TaskID,
			Title:        payload.Title,
			Description:  payload.Description,
			Status:       payload.Status,
			Priority:     payload.Priority,
			DueDate:      payload.DueDate,
			ReminderAt:   payload.ReminderAt,
			Tags:         payload.Tags,
			ParentTaskID: payload.ParentTaskID,
		})
	case domain.EventTaskCompleted:
		var payload domain.CompletedPayload
		if err := json.Unmarshal(frame.Data, &payload); err != nil {
			return err
		}
		task, err := c.cache.Get(payload.TaskID)
		if err != nil || task == nil {
			return err
		}
		task.Status = domain.StatusCompleted
		return c.cache.Put(task)
	case domain.EventTaskDeleted:
		var payload domain.DeletedPayload
		if err := json.Unmarshal(frame.Data, &payload); err != nil {
			return err
		}
		return c.cache.Delete(payload.TaskID)
	case domain.EventTaskUpdated:
		// Field diffs cannot rebuild a task the cache never saw; the
		// reconnect reconcile picks up anything missed here.
		var payload domain.UpdatedPayload
		if err := json.Unmarshal(frame.Data, &payload); err != nil {
			return err
		}
		return c.patch(payload)
	default:
		return nil
	}
}

func (c *Client) patch(payload domain.UpdatedPayload) error {
	task, err := c.cache.Get(payload.TaskID)
	if err != nil || task == nil {
		return err
	}
	for field, change := range payload.Changes {
		switch field {
		case "title":
			if v, ok := change.New.(string); ok {
				task.Title = v
			}
		case "description":
			if v, ok := change.New.(string); ok {
				task.Description = v
			}
		case "status":
			if v, ok := change.New.(string); ok {
				task.Status = v
			}
		case "priority":
			if v, ok := change.New.(string); ok {
				task.Priority = v
			}
		}
	}
	return c.cache.Put(task)
}
