package dispatch

import (
	"encoding/json"
	"fmt"
)

// Envelope is the wire frame for every message in both directions.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Inbound event names. The set is closed: anything else is rejected
// with an error event.
const (
	EventAuthenticate     = "authenticate"
	EventCreateAlert      = "createAlert"
	EventSendMessage      = "sendMessage"
	EventSubscribeAlert   = "subscribeAlert"
	EventUnsubscribeAlert = "unsubscribeAlert"
	EventUpdateAlert      = "updateAlert"
	EventEcho             = "message"
)

// Outbound event names.
const (
	EventAuthenticated   = "authenticated"
	EventNewAlert        = "newAlert"
	EventAlertCreated    = "alertCreated"
	EventNewMessage      = "newMessage"
	EventMessageSent     = "messageSent"
	EventAlertUpdated    = "alertUpdated"
	EventAlertUpdateSent = "alertUpdateSent"
	EventError           = "error"
	EventSystemMessage   = "message"
)

type authenticatePayload struct {
	UserID       string `json:"userId,omitempty"`
	SessionToken string `json:"sessionToken"`
}

var alertTypes = map[string]struct{}{
	"water":     {},
	"power":     {},
	"lostFound": {},
	"skill":     {},
	"queue":     {},
	"parking":   {},
}

type createAlertPayload struct {
	Type           string `json:"type"`
	Title          string `json:"title"`
	Message        string `json:"message"`
	NeighborhoodID string `json:"neighborhoodId,omitempty"`
}

func (p *createAlertPayload) validate() error {
	if _, ok := alertTypes[p.Type]; !ok {
		return fmt.Errorf("createAlert: unknown alert type %q", p.Type)
	}
	if p.Title == "" {
		return fmt.Errorf("createAlert: title is required")
	}
	if p.Message == "" {
		return fmt.Errorf("createAlert: message is required")
	}
	return nil
}

var messageTypes = map[string]struct{}{
	"text":           {},
	"alertUpdate":    {},
	"bookingRequest": {},
}

type sendMessagePayload struct {
	RecipientID string `json:"recipientId"`
	Message     string `json:"message"`
	Type        string `json:"type"`
}

func (p *sendMessagePayload) validate() error {
	if p.RecipientID == "" {
		return fmt.Errorf("sendMessage: recipientId is required")
	}
	if p.Message == "" {
		return fmt.Errorf("sendMessage: message is required")
	}
	if _, ok := messageTypes[p.Type]; !ok {
		return fmt.Errorf("sendMessage: unknown message type %q", p.Type)
	}
	return nil
}

type updateAlertPayload struct {
	AlertID string `json:"alertId"`
	Update  string `json:"update"`
	Status  string `json:"status,omitempty"`
}

func (p *updateAlertPayload) validate() error {
	if p.AlertID == "" {
		return fmt.Errorf("updateAlert: alertId is required")
	}
	if p.Update == "" {
		return fmt.Errorf("updateAlert: update is required")
	}
	return nil
}

type echoPayload struct {
	Text     string `json:"text"`
	SenderID string `json:"senderId,omitempty"`
}

// Outbound payload shapes.

type authResultPayload struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type newAlertPayload struct {
	ID             string `json:"id"`
	Type           string `json:"type"`
	Title          string `json:"title"`
	Message        string `json:"message"`
	UserID         string `json:"userId"`
	UserName       string `json:"userName"`
	NeighborhoodID string `json:"neighborhoodId"`
	Timestamp      string `json:"timestamp"`
}

type alertCreatedPayload struct {
	Success bool `json:"success"`
}

type newMessagePayload struct {
	ID          string `json:"id"`
	SenderID    string `json:"senderId"`
	RecipientID string `json:"recipientId"`
	Message     string `json:"message"`
	Type        string `json:"type"`
	Timestamp   string `json:"timestamp"`
}

type messageSentPayload struct {
	Success     bool   `json:"success"`
	RecipientID string `json:"recipientId"`
}

type alertUpdatedPayload struct {
	AlertID       string `json:"alertId"`
	Update        string `json:"update"`
	Status        string `json:"status,omitempty"`
	UpdatedBy     string `json:"updatedBy"`
	UpdatedByName string `json:"updatedByName"`
	Timestamp     string `json:"timestamp"`
}

type alertUpdateSentPayload struct {
	Success bool `json:"success"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type systemMessagePayload struct {
	Text      string `json:"text"`
	SenderID  string `json:"senderId"`
	Timestamp string `json:"timestamp"`
}
