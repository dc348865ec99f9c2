package ws

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Registry tracks the live connections of every user. A user may hold any
// number of simultaneous connections (tabs, devices); broadcast delivers to
// all of them. Nothing is buffered for offline users: reconnecting clients
// catch up through the event log, not through the registry.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]map[Connection]struct{}
	order map[string]*sync.Mutex

	heartbeatTimeout time.Duration
	logger           *zap.Logger
}

func NewRegistry(heartbeatTimeout time.Duration, logger *zap.Logger) *Registry {
	if heartbeatTimeout <= 0 {
		heartbeatTimeout = 90 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		conns:            make(map[string]map[Connection]struct{}),
		order:            make(map[string]*sync.Mutex),
		heartbeatTimeout: heartbeatTimeout,
		logger:           logger,
	}
}

// Register adds a connection under its user id.
func (r *Registry) Register(conn Connection) {
	if conn == nil {
		return
	}
	userID := conn.UserID()

	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.conns[userID]
	if !ok {
		set = make(map[Connection]struct{})
		r.conns[userID] = set
	}
	if _, ok := r.order[userID]; !ok {
		r.order[userID] = &sync.Mutex{}
	}
	set[conn] = struct{}{}
	r.logger.Debug("connection registered",
		zap.String("user_id", userID), zap.Int("user_connections", len(set)))
}

// Unregister removes a connection. Unknown connections are a no-op, so the
// close path and the sweep can race without harm.
func (r *Registry) Unregister(conn Connection) {
	if conn == nil {
		return
	}
	userID := conn.UserID()

	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.conns[userID]
	if !ok {
		return
	}
	if _, ok := set[conn]; !ok {
		return
	}
	delete(set, conn)
	if len(set) == 0 {
		// The ordering mutex stays: a broadcast in flight must keep its
		// lock across reconnect churn, or a new broadcast could interleave.
		delete(r.conns, userID)
	}
	r.logger.Debug("connection unregistered", zap.String("user_id", userID))
}

// Broadcast delivers one frame to every live connection of the user and
// returns the number of delivery attempts. The per-user ordering lock keeps
// concurrent broadcasts for the same user from interleaving, so every
// connection observes events in append order. A failing connection is dropped
// without affecting delivery to the rest.
func (r *Registry) Broadcast(userID string, frame []byte) int {
	r.mu.RLock()
	order := r.order[userID]
	r.mu.RUnlock()
	if order == nil {
		return 0
	}

	order.Lock()
	defer order.Unlock()

	r.mu.RLock()
	set := r.conns[userID]
	targets := make([]Connection, 0, len(set))
	for conn := range set {
		targets = append(targets, conn)
	}
	r.mu.RUnlock()

	attempts := 0
	for _, conn := range targets {
		attempts++
		if err := conn.Enqueue(frame); err != nil {
			r.logger.Warn("dropping connection after failed delivery",
				zap.String("user_id", userID), zap.Error(err))
			r.Unregister(conn)
			conn.Close()
		}
	}
	return attempts
}

// Sweep closes and removes connections whose heartbeat is older than the
// timeout. It is the fallback for closes the read loop never observed.
func (r *Registry) Sweep() int {
	cutoff := time.Now().Add(-r.heartbeatTimeout)

	r.mu.RLock()
	var stale []Connection
	for _, set := range r.conns {
		for conn := range set {
			if conn.LastSeen().Before(cutoff) {
				stale = append(stale, conn)
			}
		}
	}
	r.mu.RUnlock()

	for _, conn := range stale {
		r.logger.Info("sweeping stale connection", zap.String("user_id", conn.UserID()))
		r.Unregister(conn)
		conn.Close()
	}
	return len(stale)
}

// Count returns the number of live connections for one user.
func (r *Registry) Count(userID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns[userID])
}

// Total returns the number of live connections across all users.
func (r *Registry) Total() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	total := 0
	for _, set := range r.conns {
		total += len(set)
	}
	return total
}

// CloseAll drops every connection; used on shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	var all []Connection
	for _, set := range r.conns {
		for conn := range set {
			all = append(all, conn)
		}
	}
	r.conns = make(map[string]map[Connection]struct{})
	r.mu.Unlock()

	for _, conn := range all {
		conn.Close()
	}
}
