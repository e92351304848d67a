package presence

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"skillswap-backend/pkg/logger"
	"skillswap-backend/pkg/metrics"
)

// Event emitted to every connection when a user's presence changes
const EventUserStatusUpdate = "userStatusUpdate"

// StatusUpdate is the userStatusUpdate payload
type StatusUpdate struct {
	UserID   uuid.UUID `json:"userId"`
	IsOnline bool      `json:"isOnline"`
}

// Conn is the delivery handle for one live connection. Send is
// fire-and-forget: no acknowledgement, no retry.
type Conn interface {
	Send(event string, data interface{})
	Close()
}

// FlagStore persists the informational online flag (users.is_online)
type FlagStore interface {
	SetOnlineStatus(ctx context.Context, userID uuid.UUID, isOnline bool) error
}

// Mirror maintains the informational Redis presence set
type Mirror interface {
	SetUserOnline(ctx context.Context, userID uuid.UUID) error
	SetUserOffline(ctx context.Context, userID uuid.UUID) error
}

// Registry is the authoritative in-memory map from user identity to the
// single active connection for that user. At most one entry exists per
// user; registering again replaces the previous connection.
type Registry struct {
	mu    sync.RWMutex
	conns map[uuid.UUID]Conn

	flagStore FlagStore
	mirror    Mirror
}

// NewRegistry creates a presence registry. flagStore and mirror may be nil;
// both are best-effort and never affect registry correctness.
func NewRegistry(flagStore FlagStore, mirror Mirror) *Registry {
	return &Registry{
		conns:     make(map[uuid.UUID]Conn),
		flagStore: flagStore,
		mirror:    mirror,
	}
}

// Register installs conn as the active connection for userID and announces
// the user online. A previous connection for the same user is closed: the
// last-registered connection is authoritative and the old one would
// otherwise linger as a dead drain.
func (r *Registry) Register(ctx context.Context, userID uuid.UUID, conn Conn) {
	r.mu.Lock()
	prev := r.conns[userID]
	r.conns[userID] = conn
	size := len(r.conns)
	r.mu.Unlock()

	if prev != nil && prev != conn {
		logger.Info("replacing existing connection", zap.String("user_id", userID.String()))
		prev.Close()
	}

	metrics.PresenceOnlineUsers.Set(float64(size))

	r.persistStatus(ctx, userID, true)
	r.Broadcast(EventUserStatusUpdate, StatusUpdate{UserID: userID, IsOnline: true})
}

// Unregister removes the entry for userID, but only if conn is still the
// registered connection. A stale disconnect from an already-replaced
// connection must not clobber the newer registration. It reports whether
// the entry was removed, so callers can tell a real departure from a
// replaced connection closing late.
func (r *Registry) Unregister(ctx context.Context, userID uuid.UUID, conn Conn) bool {
	r.mu.Lock()
	current, ok := r.conns[userID]
	if !ok || current != conn {
		r.mu.Unlock()
		return false
	}
	delete(r.conns, userID)
	size := len(r.conns)
	r.mu.Unlock()

	metrics.PresenceOnlineUsers.Set(float64(size))

	r.persistStatus(ctx, userID, false)
	r.Broadcast(EventUserStatusUpdate, StatusUpdate{UserID: userID, IsOnline: false})
	return true
}

// Resolve returns the active connection for userID, if any
func (r *Registry) Resolve(userID uuid.UUID) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[userID]
	return conn, ok
}

// Snapshot returns the set of currently online user IDs
func (r *Registry) Snapshot() []uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]uuid.UUID, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	return ids
}

// Broadcast delivers an event to every registered connection
func (r *Registry) Broadcast(event string, data interface{}) {
	r.mu.RLock()
	targets := make([]Conn, 0, len(r.conns))
	for _, conn := range r.conns {
		targets = append(targets, conn)
	}
	r.mu.RUnlock()

	for _, conn := range targets {
		conn.Send(event, data)
	}
}

// persistStatus mirrors the presence change to the store and Redis.
// Failures are logged and swallowed: the registry is the source of truth
// and the persisted flag is informational only.
func (r *Registry) persistStatus(ctx context.Context, userID uuid.UUID, online bool) {
	if r.flagStore != nil {
		if err := r.flagStore.SetOnlineStatus(ctx, userID, online); err != nil {
			metrics.PresenceStoreWriteFailuresTotal.Inc()
			logger.Warn("failed to persist online flag",
				zap.String("user_id", userID.String()),
				zap.Bool("online", online),
				zap.Error(err))
		}
	}

	if r.mirror != nil {
		var err error
		if online {
			err = r.mirror.SetUserOnline(ctx, userID)
		} else {
			err = r.mirror.SetUserOffline(ctx, userID)
		}
		if err != nil {
			metrics.PresenceStoreWriteFailuresTotal.Inc()
			logger.Warn("failed to mirror presence to redis",
				zap.String("user_id", userID.String()),
				zap.Bool("online", online),
				zap.Error(err))
		}
	}
}
