package websocket

import (
	"context"
	"time"

	"github.com/dohuyhi210/realtime-chat-app/internal/logger"
	"github.com/dohuyhi210/realtime-chat-app/internal/store"
	"github.com/dohuyhi210/realtime-chat-app/internal/wire"
)

// Presence announces online/offline transitions to every other registered
// connection and answers point-in-time presence queries. The registry is the
// single source of truth for "online"; last-seen markers are persisted for
// users who are not currently connected.
type Presence struct {
	registry *Registry
	fanout   *Fanout
	users    store.UserQueries
	now      func() time.Time
}

// NewPresence creates a presence broadcaster.
func NewPresence(registry *Registry, fanout *Fanout, users store.UserQueries, now func() time.Time) *Presence {
	if now == nil {
		now = time.Now
	}
	return &Presence{
		registry: registry,
		fanout:   fanout,
		users:    users,
		now:      now,
	}
}

// Connected refreshes the user's last-seen marker and broadcasts user_online
// to every other registered connection. The event is not persisted; a user
// who is offline at that moment sees the correct state on their next query.
func (p *Presence) Connected(ctx context.Context, userID string) {
	p.announce(ctx, userID, true)
}

// Disconnected persists the last-seen timestamp and broadcasts user_offline.
func (p *Presence) Disconnected(ctx context.Context, userID string) {
	p.announce(ctx, userID, false)
}

func (p *Presence) announce(ctx context.Context, userID string, online bool) {
	lastSeen := p.now().UnixMilli()
	if err := p.users.UpdateLastSeen(ctx, userID, lastSeen); err != nil {
		logger.Warnf("update last seen for %s: %v", userID, err)
	}

	frameType := wire.TypeUserOffline
	if online {
		frameType = wire.TypeUserOnline
	}
	env, err := wire.NewEnvelope(frameType, wire.PresenceChanged{
		UserID:   userID,
		IsOnline: online,
		LastSeen: lastSeen,
	})
	if err != nil {
		logger.Errorf("build %s frame: %v", frameType, err)
		return
	}
	p.fanout.DeliverToAllExcept(userID, env)
}

// Online reports whether the user holds a live connection right now.
func (p *Presence) Online(userID string) bool {
	return p.registry.IsOnline(userID)
}

// OnlineSet returns the current set of connected user ids.
func (p *Presence) OnlineSet() map[string]struct{} {
	ids := p.registry.ListOnline()
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
