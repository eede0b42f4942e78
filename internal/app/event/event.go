/*
Package event defines the envelopes exchanged over the realtime channel.

Every envelope is a flat JSON object tagged by its "type" field. Server events are built
with the constructors below and serialized once per fan-out by the hub.
*/
package event

import (
	"encoding/json"
	"time"

	"roomlink/internal/app/model"
)

// Type is the kind tag of an envelope.
type Type string

const (
	TypeStatus         Type = "status"
	TypeRoomCreated    Type = "room_created"
	TypeInvite         Type = "invite"
	TypeInviteResponse Type = "invite_response"
	TypeMessage        Type = "message"
	TypeSignal         Type = "signal"
	TypeError          Type = "error"
)

// Event is implemented by every server-to-client envelope.
type Event interface {
	Kind() Type
}

// Status announces a presence transition.
type Status struct {
	Type     Type       `json:"type"`
	User     string     `json:"user"`
	Online   bool       `json:"online"`
	LastSeen *time.Time `json:"last_seen,omitempty"`
}

func (e Status) Kind() Type { return e.Type }

// NewStatus builds a status event. lastSeen is only reported for offline transitions.
func NewStatus(user string, online bool, lastSeen time.Time) Status {
	e := Status{Type: TypeStatus, User: user, Online: online}
	if !online {
		e.LastSeen = &lastSeen
	}
	return e
}

// RoomCreated makes a room visible to its receivers.
type RoomCreated struct {
	Type     Type           `json:"type"`
	RoomID   string         `json:"room_id"`
	Name     string         `json:"name"`
	RoomType model.RoomType `json:"room_type"`
	Owner    string         `json:"owner"`
}

func (e RoomCreated) Kind() Type { return e.Type }

// NewRoomCreated builds a room_created event for room.
func NewRoomCreated(room model.Room) RoomCreated {
	return RoomCreated{
		Type:     TypeRoomCreated,
		RoomID:   room.ID,
		Name:     room.Name,
		RoomType: room.Type,
		Owner:    room.Owner,
	}
}

// Invite is delivered privately to an invite recipient.
type Invite struct {
	Type      Type      `json:"type"`
	InviteID  string    `json:"invite_id"`
	RoomID    string    `json:"room_id"`
	RoomName  string    `json:"room_name,omitempty"`
	From      string    `json:"from"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (e Invite) Kind() Type { return e.Type }

// NewInvite builds an invite event.
func NewInvite(inv model.Invite, roomName string) Invite {
	return Invite{
		Type:      TypeInvite,
		InviteID:  inv.ID,
		RoomID:    inv.RoomID,
		RoomName:  roomName,
		From:      inv.Sender,
		ExpiresAt: inv.ExpiresAt,
	}
}

// InviteResponse reports the terminal state reached by an invite.
type InviteResponse struct {
	Type     Type               `json:"type"`
	InviteID string             `json:"invite_id"`
	RoomID   string             `json:"room_id"`
	User     string             `json:"user"`
	Status   model.InviteStatus `json:"status"`
}

func (e InviteResponse) Kind() Type { return e.Type }

// NewInviteResponse builds an invite_response event for inv's current status.
func NewInviteResponse(inv model.Invite) InviteResponse {
	return InviteResponse{
		Type:     TypeInviteResponse,
		InviteID: inv.ID,
		RoomID:   inv.RoomID,
		User:     inv.Recipient,
		Status:   inv.Status,
	}
}

// Message carries a newly appended room message.
type Message struct {
	Type        Type               `json:"type"`
	MessageID   string             `json:"message_id"`
	RoomID      string             `json:"room_id"`
	Sender      string             `json:"sender"`
	Content     string             `json:"content"`
	Attachments []model.Attachment `json:"attachments"`
	CreatedAt   time.Time          `json:"created_at"`
}

func (e Message) Kind() Type { return e.Type }

// NewMessage builds a message event from a persisted message.
func NewMessage(msg model.Message) Message {
	attachments := msg.Attachments
	if attachments == nil {
		attachments = []model.Attachment{}
	}

	return Message{
		Type:        TypeMessage,
		MessageID:   msg.ID,
		RoomID:      msg.RoomID,
		Sender:      msg.Sender,
		Content:     msg.Content,
		Attachments: attachments,
		CreatedAt:   msg.CreatedAt,
	}
}

// Signal wraps an opaque negotiation payload relayed between two peers.
type Signal struct {
	Type   Type            `json:"type"`
	From   string          `json:"from"`
	RoomID string          `json:"room_id"`
	Data   json.RawMessage `json:"data"`
}

func (e Signal) Kind() Type { return e.Type }

// NewSignal wraps data without inspecting it.
func NewSignal(from, roomID string, data json.RawMessage) Signal {
	return Signal{Type: TypeSignal, From: from, RoomID: roomID, Data: data}
}

// Error reports a rejected inbound envelope to its sender.
type Error struct {
	Type    Type   `json:"type"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e Error) Kind() Type { return e.Type }

// NewError builds an error event.
func NewError(code int, message string) Error {
	return Error{Type: TypeError, Code: code, Message: message}
}

// Inbound is a client-to-server envelope. Only the signal kind is accepted on the channel;
// all other mutations go through the HTTP API.
type Inbound struct {
	Type   Type            `json:"type"`
	To     string          `json:"to,omitempty"`
	RoomID string          `json:"room_id,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}
