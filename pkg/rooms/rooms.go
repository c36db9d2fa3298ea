// Package rooms groups live connections into named fan-out sets.
// Membership is purely in-process and vanishes when the connection
// closes; there is no replay for late joiners.
package rooms

import (
	"log/slog"
	"sync"

	"github.com/Deepayon/LocalSeva/pkg/transport"
	"github.com/google/uuid"
)

// Room name builders. Three shapes exist: the personal room, the
// neighborhood room, and ad-hoc alert subscription rooms.
func UserRoom(userID string) string                 { return "user:" + userID }
func NeighborhoodRoom(neighborhoodID string) string { return "neighborhood:" + neighborhoodID }
func AlertRoom(alertID string) string               { return "alert:" + alertID }

// Router manages room membership and best-effort broadcast.
type Router struct {
	mu         sync.RWMutex
	rooms      map[string]map[uuid.UUID]transport.Conn
	membership map[uuid.UUID]map[string]struct{} // connID -> rooms joined

	logger *slog.Logger
}

func NewRouter(logger *slog.Logger) *Router {
	return &Router{
		rooms:      make(map[string]map[uuid.UUID]transport.Conn),
		membership: make(map[uuid.UUID]map[string]struct{}),
		logger:     logger.With(slog.String("component", "room_router")),
	}
}

// Join adds conn to room, creating the room if needed. Joining a room
// twice is a no-op.
func (r *Router) Join(conn transport.Conn, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	connID := conn.ID()
	members, ok := r.rooms[room]
	if !ok {
		members = make(map[uuid.UUID]transport.Conn)
		r.rooms[room] = members
	}
	if _, already := members[connID]; already {
		return
	}
	members[connID] = conn

	joined, ok := r.membership[connID]
	if !ok {
		joined = make(map[string]struct{})
		r.membership[connID] = joined
	}
	joined[room] = struct{}{}

	r.logger.Debug("joined room", slog.String("connID", connID.String()), slog.String("room", room))
}

// Leave removes connID from room. Leaving a room not joined is a no-op.
func (r *Router) Leave(connID uuid.UUID, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(connID, room)
}

// Drop removes connID from every room it joined. Called on disconnect;
// unlike a transport with built-in rooms, membership here must be torn
// down explicitly.
func (r *Router) Drop(connID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for room := range r.membership[connID] {
		r.leaveLocked(connID, room)
	}
}

func (r *Router) leaveLocked(connID uuid.UUID, room string) {
	members, ok := r.rooms[room]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(r.rooms, room)
	}

	if joined, ok := r.membership[connID]; ok {
		delete(joined, room)
		if len(joined) == 0 {
			delete(r.membership, connID)
		}
	}

	r.logger.Debug("left room", slog.String("connID", connID.String()), slog.String("room", room))
}

// Broadcast sends msg to every connection in room and reports how many
// were reached. Delivery is best-effort: recipients whose transport is
// closing silently miss the message, and no order across recipients is
// guaranteed. An empty or unknown room reaches nobody.
func (r *Router) Broadcast(room string, msg []byte) int {
	r.mu.RLock()
	// Snapshot so sends happen without holding the lock.
	members := make([]transport.Conn, 0, len(r.rooms[room]))
	for _, conn := range r.rooms[room] {
		members = append(members, conn)
	}
	r.mu.RUnlock()

	for _, conn := range members {
		conn.Send(msg)
	}
	return len(members)
}

// InRoom reports whether connID is currently a member of room.
func (r *Router) InRoom(connID uuid.UUID, room string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[room][connID]
	return ok
}

// MemberCount reports the current size of room.
func (r *Router) MemberCount(room string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[room])
}
