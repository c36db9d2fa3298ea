package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/Deepayon/LocalSeva/pkg/rooms"
	"github.com/tidwall/gjson"
)

// handleAuthenticate runs the handshake. On success the connection
// gains its identity, a presence entry, and its two implicit rooms.
// On any failure the client is told success:false and the transport is
// force-closed; a connection never lingers half-trusted.
func (d *Dispatcher) handleAuthenticate(ctx context.Context, c *client, payload json.RawMessage) {
	if c.identity != nil {
		d.sendError(c.conn, "Already authenticated")
		return
	}

	var p authenticatePayload
	if err := json.Unmarshal(payload, &p); err != nil || p.SessionToken == "" {
		d.rejectAuth(c, "Invalid session")
		return
	}

	vctx := ctx
	if d.handshakeTimeout > 0 {
		var cancel context.CancelFunc
		vctx, cancel = context.WithTimeout(ctx, d.handshakeTimeout)
		defer cancel()
	}

	id, err := d.validator.Validate(vctx, p.SessionToken)
	if err != nil {
		d.logger.Warn("authentication failed", slog.String("connID", c.conn.ID().String()), slog.Any("error", err))
		d.rejectAuth(c, "Invalid session")
		return
	}
	// When the client quotes a userId it must be the session's user.
	if p.UserID != "" && p.UserID != id.UserID {
		d.logger.Warn("authentication user mismatch",
			slog.String("connID", c.conn.ID().String()),
			slog.String("claimed", p.UserID),
			slog.String("resolved", id.UserID),
		)
		d.rejectAuth(c, "Invalid session")
		return
	}

	c.identity = id
	d.registry.Register(id.UserID, c.conn)
	d.rooms.Join(c.conn, rooms.UserRoom(id.UserID))
	if id.NeighborhoodID != "" {
		d.rooms.Join(c.conn, rooms.NeighborhoodRoom(id.NeighborhoodID))
	}

	d.logger.Info("user authenticated", slog.String("userID", id.UserID), slog.String("connID", c.conn.ID().String()))
	d.send(c.conn, EventAuthenticated, authResultPayload{Success: true})
}

func (d *Dispatcher) rejectAuth(c *client, reason string) {
	d.send(c.conn, EventAuthenticated, authResultPayload{Success: false, Error: reason})
	c.conn.Close(errors.New("authentication failed"))
}

// handleCreateAlert fans a neighborhood alert out to everyone in the
// effective neighborhood room, then confirms to the sender alone.
func (d *Dispatcher) handleCreateAlert(c *client, payload json.RawMessage) {
	var p createAlertPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		d.sendError(c.conn, "createAlert: malformed payload")
		return
	}
	if err := p.validate(); err != nil {
		d.sendError(c.conn, err.Error())
		return
	}

	neighborhoodID := p.NeighborhoodID
	if neighborhoodID == "" {
		neighborhoodID = c.identity.NeighborhoodID
	}
	if neighborhoodID == "" {
		d.sendError(c.conn, "User or neighborhood not found")
		return
	}

	d.broadcast(rooms.NeighborhoodRoom(neighborhoodID), EventNewAlert, newAlertPayload{
		ID:             newEventID(),
		Type:           p.Type,
		Title:          p.Title,
		Message:        p.Message,
		UserID:         c.identity.UserID,
		UserName:       c.identity.DisplayName(),
		NeighborhoodID: neighborhoodID,
		Timestamp:      timestamp(),
	})
	d.send(c.conn, EventAlertCreated, alertCreatedPayload{Success: true})
}

// handleSendMessage delivers a direct message to the recipient's
// registered connection, if there is one. The sender is confirmed
// either way: presence is racy, so delivery is deliberately opaque.
func (d *Dispatcher) handleSendMessage(c *client, payload json.RawMessage) {
	var p sendMessagePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		d.sendError(c.conn, "sendMessage: malformed payload")
		return
	}
	if err := p.validate(); err != nil {
		d.sendError(c.conn, err.Error())
		return
	}

	if recipient, ok := d.registry.Lookup(p.RecipientID); ok {
		d.send(recipient, EventNewMessage, newMessagePayload{
			ID:          newEventID(),
			SenderID:    c.identity.UserID,
			RecipientID: p.RecipientID,
			Message:     p.Message,
			Type:        p.Type,
			Timestamp:   timestamp(),
		})
	}
	d.send(c.conn, EventMessageSent, messageSentPayload{Success: true, RecipientID: p.RecipientID})
}

// alertIDFromPayload accepts both shapes seen in the wild: a bare JSON
// string, or an object with an alertId field.
func alertIDFromPayload(payload json.RawMessage) string {
	parsed := gjson.ParseBytes(payload)
	if parsed.Type == gjson.String {
		return parsed.String()
	}
	return parsed.Get("alertId").String()
}

func (d *Dispatcher) handleSubscribeAlert(c *client, payload json.RawMessage) {
	alertID := alertIDFromPayload(payload)
	if alertID == "" {
		d.sendError(c.conn, "subscribeAlert: alertId is required")
		return
	}
	d.rooms.Join(c.conn, rooms.AlertRoom(alertID))
	d.logger.Debug("subscribed to alert", slog.String("userID", c.identity.UserID), slog.String("alertID", alertID))
}

func (d *Dispatcher) handleUnsubscribeAlert(c *client, payload json.RawMessage) {
	alertID := alertIDFromPayload(payload)
	if alertID == "" {
		d.sendError(c.conn, "unsubscribeAlert: alertId is required")
		return
	}
	d.rooms.Leave(c.conn.ID(), rooms.AlertRoom(alertID))
	d.logger.Debug("unsubscribed from alert", slog.String("userID", c.identity.UserID), slog.String("alertID", alertID))
}

// handleUpdateAlert broadcasts to the alert's subscription room.
// Subscription is about receiving updates, not a precondition for
// sending them, so the updater need not be in the room.
func (d *Dispatcher) handleUpdateAlert(c *client, payload json.RawMessage) {
	var p updateAlertPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		d.sendError(c.conn, "updateAlert: malformed payload")
		return
	}
	if err := p.validate(); err != nil {
		d.sendError(c.conn, err.Error())
		return
	}

	d.broadcast(rooms.AlertRoom(p.AlertID), EventAlertUpdated, alertUpdatedPayload{
		AlertID:       p.AlertID,
		Update:        p.Update,
		Status:        p.Status,
		UpdatedBy:     c.identity.UserID,
		UpdatedByName: c.identity.DisplayName(),
		Timestamp:     timestamp(),
	})
	d.send(c.conn, EventAlertUpdateSent, alertUpdateSentPayload{Success: true})
}

// handleEcho answers the legacy "message" event kept for old clients.
func (d *Dispatcher) handleEcho(c *client, payload json.RawMessage) {
	var p echoPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		d.sendError(c.conn, "message: malformed payload")
		return
	}
	d.send(c.conn, EventSystemMessage, systemMessagePayload{
		Text:      "Echo: " + p.Text,
		SenderID:  "system",
		Timestamp: timestamp(),
	})
}
