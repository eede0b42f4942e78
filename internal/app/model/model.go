/*
Package model contains the domain entities shared by the realtime engine and its
persistence collaborators: users, sessions, rooms, invites and messages.

Entities are plain values addressed by stable identifiers. Mutation goes through the
component that owns the entity (session, room, invite, message packages).
*/
package model

import (
	"slices"
	"time"
)

// User is an account together with its presence state.
type User struct {
	Username string     `json:"username"`
	Online   bool       `json:"online"`
	LastSeen *time.Time `json:"last_seen"`

	// PasswordHash is owned by the credential store and never serialized.
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Session binds an opaque token to a username.
type Session struct {
	ID        string
	Username  string
	Token     string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// RoomType distinguishes text rooms from voice rooms.
type RoomType string

const (
	RoomText  RoomType = "text"
	RoomVoice RoomType = "voice"
)

// Valid reports whether t is a known room type.
func (t RoomType) Valid() bool {
	return t == RoomText || t == RoomVoice
}

// Room is a named group of members. The owner is always a member.
type Room struct {
	ID        string    `json:"room_id"`
	Name      string    `json:"name"`
	Type      RoomType  `json:"type"`
	Owner     string    `json:"owner"`
	Members   []string  `json:"members"`
	CreatedAt time.Time `json:"created_at"`
}

// HasMember reports whether username belongs to the room.
func (r Room) HasMember(username string) bool {
	_, found := slices.BinarySearch(r.Members, username)
	return found
}

// Clone returns a copy whose member slice does not alias r.
func (r Room) Clone() Room {
	r.Members = slices.Clone(r.Members)
	return r
}

// InviteStatus is the state of an invite. Only pending may transition.
type InviteStatus string

const (
	InvitePending  InviteStatus = "pending"
	InviteAccepted InviteStatus = "accepted"
	InviteDeclined InviteStatus = "declined"
	InviteExpired  InviteStatus = "expired"
)

// Terminal reports whether s allows no further transition.
func (s InviteStatus) Terminal() bool {
	return s != InvitePending
}

// Invite is a time-bounded offer for Recipient to join RoomID.
type Invite struct {
	ID        string       `json:"invite_id"`
	RoomID    string       `json:"room_id"`
	Sender    string       `json:"from_user"`
	Recipient string       `json:"to_user"`
	Status    InviteStatus `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
	ExpiresAt time.Time    `json:"expires_at"`
}

// Attachment is a binary payload owned by a message. When the payload was offloaded to
// blob storage, Key is set and Data is empty.
type Attachment struct {
	Name     string `json:"name"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`
	Data     []byte `json:"data,omitempty"`
	Key      string `json:"key,omitempty"`
}

// Message is an immutable entry of a room's log.
type Message struct {
	ID          string       `json:"message_id"`
	RoomID      string       `json:"room_id"`
	Sender      string       `json:"sender"`
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments"`
	CreatedAt   time.Time    `json:"created_at"`
}
