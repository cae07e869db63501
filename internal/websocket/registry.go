package websocket

import (
	"sync"

	"github.com/dohuyhi210/realtime-chat-app/internal/logger"
)

// Registry is the single source of truth for which users hold a live
// connection. All methods are safe for concurrent use from every
// connection's read loop plus the fanout path; none of them block on I/O.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]Transport
}

// NewRegistry creates an empty connection registry.
func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[string]Transport),
	}
}

// Register stores the transport for a user. A superseded transport is closed
// rather than leaked; its own teardown path then fails to unregister (handle
// mismatch) and cannot evict the new connection.
func (r *Registry) Register(userID string, t Transport) {
	r.mu.Lock()
	old := r.conns[userID]
	r.conns[userID] = t
	total := len(r.conns)
	r.mu.Unlock()

	if old != nil && old != t {
		logger.Infof("replacing live connection for user %s", userID)
		old.Close()
	}
	logger.Infof("websocket connected: user %s, total connections: %d", userID, total)
}

// Unregister removes the entry for a user only when the stored transport is
// the caller's handle. It reports whether an entry was removed, so a stale
// close never evicts a newer connection.
func (r *Registry) Unregister(userID string, t Transport) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conns[userID] != t {
		return false
	}
	delete(r.conns, userID)
	logger.Infof("websocket disconnected: user %s, total connections: %d", userID, len(r.conns))
	return true
}

// Lookup returns the live transport for a user, if any.
func (r *Registry) Lookup(userID string) (Transport, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.conns[userID]
	return t, ok
}

// IsOnline reports whether a user holds a live connection.
func (r *Registry) IsOnline(userID string) bool {
	_, ok := r.Lookup(userID)
	return ok
}

// ListOnline returns the ids of all users with a live connection.
func (r *Registry) ListOnline() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	return ids
}

// Count returns the number of live connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.conns)
}
