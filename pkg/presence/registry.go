// Package presence tracks which users are currently reachable for
// direct delivery. It is process-local and rebuilt from empty on
// restart; clients re-authenticate after a restart.
package presence

import (
	"log/slog"
	"sync"

	"github.com/Deepayon/LocalSeva/pkg/transport"
	"github.com/google/uuid"
)

// Registry maps an authenticated user id to their current connection.
// At most one connection per user is registered at any instant; a new
// registration for the same user overwrites the old one (last wins).
type Registry struct {
	mu     sync.RWMutex
	byUser map[string]transport.Conn
	owner  map[uuid.UUID]string // connID -> userID, for guarded removal

	logger *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		byUser: make(map[string]transport.Conn),
		owner:  make(map[uuid.UUID]string),
		logger: logger.With(slog.String("component", "presence_registry")),
	}
}

// Register makes conn the current connection for userID, replacing any
// previous one. The replaced connection stays open but is no longer
// reachable by user-id lookup.
func (r *Registry) Register(userID string, conn transport.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.byUser[userID]; ok {
		delete(r.owner, old.ID())
		r.logger.Debug("superseding registered connection",
			slog.String("userID", userID),
			slog.String("oldConnID", old.ID().String()),
		)
	}
	r.byUser[userID] = conn
	r.owner[conn.ID()] = userID

	r.logger.Debug("user registered", slog.String("userID", userID), slog.String("connID", conn.ID().String()))
}

// Lookup returns the current connection for userID, if any.
func (r *Registry) Lookup(userID string) (transport.Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.byUser[userID]
	return conn, ok
}

// Unregister removes the mapping owned by connID. If the user has
// since been re-registered on a newer connection, this is a no-op, so
// a stale disconnect can never evict the live mapping.
func (r *Registry) Unregister(connID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.owner[connID]
	if !ok {
		return
	}
	delete(r.owner, connID)
	delete(r.byUser, userID)

	r.logger.Debug("user unregistered", slog.String("userID", userID), slog.String("connID", connID.String()))
}

// Count reports the number of registered users.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}
