/*
Package store defines the persistence collaborator consumed by the realtime engine and
provides an in-memory implementation used in development and tests.

Implementations are durable, synchronous and authoritative: components do not cache
beyond what a single operation needs, except for the room and invite state they own.
*/
package store

import (
	"context"
	"errors"
	"time"

	"roomlink/internal/app/model"
)

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate is returned when a unique key is already taken.
	ErrDuplicate = errors.New("duplicate record")
)

// UserRepository persists accounts and their presence stamps.
type UserRepository interface {
	CreateUser(ctx context.Context, user model.User) error
	GetUser(ctx context.Context, username string) (model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	UpdatePresence(ctx context.Context, username string, online bool, lastSeen time.Time) error
}

// RoomRepository persists room definitions and membership.
type RoomRepository interface {
	SaveRoom(ctx context.Context, room model.Room) error
	LoadAllRooms(ctx context.Context) ([]model.Room, error)
}

// MessageRepository is the append-only message log.
type MessageRepository interface {
	AppendMessage(ctx context.Context, msg model.Message) error
	LoadRoomLog(ctx context.Context, roomID string) ([]model.Message, error)
}

// InviteRepository persists invites and their status transitions.
type InviteRepository interface {
	SaveInvite(ctx context.Context, inv model.Invite) error
	LoadInvites(ctx context.Context) ([]model.Invite, error)
}

// Store is the full persistence collaborator.
type Store interface {
	UserRepository
	RoomRepository
	MessageRepository
	InviteRepository
}
