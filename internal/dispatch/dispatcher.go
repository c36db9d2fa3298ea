// Package dispatch drives the lifecycle of each realtime connection:
// the authentication handshake, the typed domain events an
// authenticated connection may emit, and disconnect cleanup.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/Deepayon/LocalSeva/internal/identity"
	"github.com/Deepayon/LocalSeva/pkg/presence"
	"github.com/Deepayon/LocalSeva/pkg/rooms"
	"github.com/Deepayon/LocalSeva/pkg/transport"
	"github.com/google/uuid"
)

const welcomeText = "Welcome to PadosHelp Real-time Server!"

// client is the per-connection state. identity is nil until the
// handshake succeeds and immutable afterwards; it is only touched from
// the connection's own read pump, so it needs no lock of its own.
type client struct {
	conn        transport.Conn
	ip          string
	identity    *identity.Identity
	connectedAt time.Time
}

// Dispatcher routes inbound events for every live connection. All
// failures are answered on the offending connection; nothing a single
// client sends can affect other connections or crash the process.
type Dispatcher struct {
	logger           *slog.Logger
	validator        identity.Validator
	registry         *presence.Registry
	rooms            *rooms.Router
	handshakeTimeout time.Duration

	mu      sync.RWMutex
	clients map[uuid.UUID]*client
}

func New(logger *slog.Logger, validator identity.Validator, registry *presence.Registry, router *rooms.Router, handshakeTimeout time.Duration) *Dispatcher {
	return &Dispatcher{
		logger:           logger.With(slog.String("component", "dispatcher")),
		validator:        validator,
		registry:         registry,
		rooms:            router,
		handshakeTimeout: handshakeTimeout,
		clients:          make(map[uuid.UUID]*client),
	}
}

// Attach starts tracking a freshly accepted connection and greets it.
// The connection is unauthenticated until its handshake completes.
func (d *Dispatcher) Attach(conn transport.Conn, ip string) {
	d.mu.Lock()
	d.clients[conn.ID()] = &client{
		conn:        conn,
		ip:          ip,
		connectedAt: time.Now(),
	}
	d.mu.Unlock()

	d.send(conn, EventSystemMessage, systemMessagePayload{
		Text:      welcomeText,
		SenderID:  "system",
		Timestamp: timestamp(),
	})
}

// Detach releases everything derived from the connection: its presence
// entry (guarded, so a superseded connection cannot evict its
// successor) and all of its room memberships.
func (d *Dispatcher) Detach(connID uuid.UUID) {
	d.registry.Unregister(connID)
	d.rooms.Drop(connID)

	d.mu.Lock()
	delete(d.clients, connID)
	d.mu.Unlock()

	d.logger.Debug("connection detached", slog.String("connID", connID.String()))
}

// HandleMessage is the transport's message callback. Events from one
// connection arrive here in order, one at a time.
func (d *Dispatcher) HandleMessage(ctx context.Context, connID uuid.UUID, msg []byte) {
	d.mu.RLock()
	c, ok := d.clients[connID]
	d.mu.RUnlock()
	if !ok {
		d.logger.Warn("message from untracked connection", slog.String("connID", connID.String()))
		return
	}

	var env Envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		d.sendError(c.conn, "Invalid message")
		return
	}

	if c.identity == nil && env.Event != EventAuthenticate {
		d.sendError(c.conn, "Not authenticated")
		return
	}

	switch env.Event {
	case EventAuthenticate:
		d.handleAuthenticate(ctx, c, env.Payload)
	case EventCreateAlert:
		d.handleCreateAlert(c, env.Payload)
	case EventSendMessage:
		d.handleSendMessage(c, env.Payload)
	case EventSubscribeAlert:
		d.handleSubscribeAlert(c, env.Payload)
	case EventUnsubscribeAlert:
		d.handleUnsubscribeAlert(c, env.Payload)
	case EventUpdateAlert:
		d.handleUpdateAlert(c, env.Payload)
	case EventEcho:
		d.handleEcho(c, env.Payload)
	default:
		d.sendError(c.conn, "Unknown event")
	}
}

// send marshals an envelope and queues it on one connection.
func (d *Dispatcher) send(conn transport.Conn, event string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		d.logger.Error("failed to marshal outbound payload", slog.String("event", event), slog.Any("error", err))
		return
	}
	msg, err := json.Marshal(Envelope{Event: event, Payload: raw})
	if err != nil {
		d.logger.Error("failed to marshal envelope", slog.String("event", event), slog.Any("error", err))
		return
	}
	conn.Send(msg)
}

func (d *Dispatcher) sendError(conn transport.Conn, message string) {
	d.send(conn, EventError, errorPayload{Message: message})
}

// broadcast marshals once and fans out to every member of room.
func (d *Dispatcher) broadcast(room, event string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		d.logger.Error("failed to marshal broadcast payload", slog.String("event", event), slog.Any("error", err))
		return
	}
	msg, err := json.Marshal(Envelope{Event: event, Payload: raw})
	if err != nil {
		d.logger.Error("failed to marshal broadcast envelope", slog.String("event", event), slog.Any("error", err))
		return
	}
	reached := d.rooms.Broadcast(room, msg)
	d.logger.Debug("broadcast", slog.String("event", event), slog.String("room", room), slog.Int("reached", reached))
}

// CountByIP reports how many live connections originate from ip. Used
// by the connection limiter at upgrade time.
func (d *Dispatcher) CountByIP(ip string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	n := 0
	for _, c := range d.clients {
		if c.ip == ip {
			n++
		}
	}
	return n
}

// OldestByIP returns the longest-lived connection from ip, if any.
func (d *Dispatcher) OldestByIP(ip string) (transport.Conn, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var oldest *client
	for _, c := range d.clients {
		if c.ip != ip {
			continue
		}
		if oldest == nil || c.connectedAt.Before(oldest.connectedAt) {
			oldest = c
		}
	}
	if oldest == nil {
		return nil, false
	}
	return oldest.conn, true
}

// Stats is a point-in-time snapshot for the health endpoint.
type Stats struct {
	Connections     int `json:"connections"`
	RegisteredUsers int `json:"registeredUsers"`
}

func (d *Dispatcher) Stats() Stats {
	d.mu.RLock()
	conns := len(d.clients)
	d.mu.RUnlock()

	return Stats{
		Connections:     conns,
		RegisteredUsers: d.registry.Count(),
	}
}

// CloseAll force-closes every tracked connection. Used on shutdown.
func (d *Dispatcher) CloseAll() {
	d.mu.RLock()
	conns := make([]transport.Conn, 0, len(d.clients))
	for _, c := range d.clients {
		conns = append(conns, c.conn)
	}
	d.mu.RUnlock()

	for _, conn := range conns {
		conn.Close(errors.New("server shutting down"))
	}
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func newEventID() string {
	return uuid.NewString()
}
