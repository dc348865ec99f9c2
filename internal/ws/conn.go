package ws

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/fasthttp/websocket"
	"go.uber.org/zap"

	"github.com/taskstream/backend/domain"
)

// Connection is one live client transport registered for a user. The registry
// only depends on this interface so tests can substitute fakes.
type Connection interface {
	UserID() string
	Enqueue(frame []byte) error
	LastSeen() time.Time
	Close()
}

// Conn wraps a websocket connection with an owned outbound queue. All writes
// go through the queue and a single write pump, so frames for one connection
// are delivered in enqueue order and socket writes never interleave.
type Conn struct {
	userID       string
	sock         *websocket.Conn
	send         chan []byte
	done         chan struct{}
	closeOnce    sync.Once
	created      time.Time
	lastSeen     atomic.Int64
	writeTimeout time.Duration
	logger       *zap.Logger
}

func NewConn(userID string, sock *websocket.Conn, sendBuffer int, writeTimeout time.Duration, logger *zap.Logger) *Conn {
	if sendBuffer <= 0 {
		sendBuffer = 32
	}
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Conn{
		userID:       userID,
		sock:         sock,
		send:         make(chan []byte, sendBuffer),
		done:         make(chan struct{}),
		created:      time.Now(),
		writeTimeout: writeTimeout,
		logger:       logger,
	}
	c.Touch()
	return c
}

func (c *Conn) UserID() string {
	return c.userID
}

func (c *Conn) CreatedAt() time.Time {
	return c.created
}

// Touch refreshes the heartbeat stamp; called on every inbound frame.
func (c *Conn) Touch() {
	c.lastSeen.Store(time.Now().UnixNano())
}

func (c *Conn) LastSeen() time.Time {
	return time.Unix(0, c.lastSeen.Load())
}

// Enqueue hands a frame to the write pump without blocking the caller. A full
// queue means the client stopped draining; the connection is treated as dead
// so one slow consumer cannot stall a broadcast.
func (c *Conn) Enqueue(frame []byte) error {
	select {
	case <-c.done:
		return domain.NewError(ErrCodeClosed, "connection closed")
	default:
	}
	select {
	case c.send <- frame:
		return nil
	default:
		return domain.NewError(ErrCodeSlow, "send queue full")
	}
}

// Close shuts the outbound side and the socket. Safe to call multiple times
// and from any goroutine.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.sock.Close()
	})
}

// WritePump drains the send queue onto the socket until Close or a write
// error. Run it in its own goroutine per connection.
func (c *Conn) WritePump() {
	for {
		select {
		case <-c.done:
			return
		case frame := <-c.send:
			_ = c.sock.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.sock.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.logger.Debug("websocket write failed",
					zap.String("user_id", c.userID), zap.Error(err))
				c.Close()
				return
			}
		}
	}
}

// ReadMessage blocks for the next inbound text frame.
func (c *Conn) ReadMessage() ([]byte, error) {
	_, payload, err := c.sock.ReadMessage()
	return payload, err
}

// Close error codes local to the websocket layer.
const (
	ErrCodeClosed domain.ErrorCode = "WS_CLOSED"
	ErrCodeSlow   domain.ErrorCode = "WS_SLOW_CONSUMER"
)
