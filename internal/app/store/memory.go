package store

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"roomlink/internal/app/model"
)

// Memory is a Store kept in process memory. Every read returns copies so callers cannot
// mutate stored records.
type Memory struct {
	mu       sync.RWMutex
	users    map[string]model.User
	rooms    map[string]model.Room
	invites  map[string]model.Invite
	messages map[string][]model.Message
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		users:    make(map[string]model.User),
		rooms:    make(map[string]model.Room),
		invites:  make(map[string]model.Invite),
		messages: make(map[string][]model.Message),
	}
}

func (m *Memory) CreateUser(_ context.Context, user model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[user.Username]; ok {
		return ErrDuplicate
	}
	m.users[user.Username] = user
	return nil
}

func (m *Memory) GetUser(_ context.Context, username string) (model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.users[username]
	if !ok {
		return model.User{}, ErrNotFound
	}
	return user, nil
}

func (m *Memory) ListUsers(_ context.Context) ([]model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	users := make([]model.User, 0, len(m.users))
	for _, u := range m.users {
		users = append(users, u)
	}
	slices.SortFunc(users, func(a, b model.User) int { return strings.Compare(a.Username, b.Username) })
	return users, nil
}

func (m *Memory) UpdatePresence(_ context.Context, username string, online bool, lastSeen time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[username]
	if !ok {
		return ErrNotFound
	}
	user.Online = online
	user.LastSeen = &lastSeen
	m.users[username] = user
	return nil
}

func (m *Memory) SaveRoom(_ context.Context, room model.Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rooms[room.ID] = room.Clone()
	return nil
}

func (m *Memory) LoadAllRooms(_ context.Context) ([]model.Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rooms := make([]model.Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r.Clone())
	}
	slices.SortFunc(rooms, func(a, b model.Room) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return rooms, nil
}

func (m *Memory) AppendMessage(_ context.Context, msg model.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.messages[msg.RoomID] = append(m.messages[msg.RoomID], cloneMessage(msg))
	return nil
}

func (m *Memory) LoadRoomLog(_ context.Context, roomID string) ([]model.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	log := m.messages[roomID]
	out := make([]model.Message, len(log))
	for i, msg := range log {
		out[i] = cloneMessage(msg)
	}
	return out, nil
}

func (m *Memory) SaveInvite(_ context.Context, inv model.Invite) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.invites[inv.ID] = inv
	return nil
}

func (m *Memory) LoadInvites(_ context.Context) ([]model.Invite, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	invites := make([]model.Invite, 0, len(m.invites))
	for _, inv := range m.invites {
		invites = append(invites, inv)
	}
	slices.SortFunc(invites, func(a, b model.Invite) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return invites, nil
}

func cloneMessage(msg model.Message) model.Message {
	msg.Attachments = slices.Clone(msg.Attachments)
	for i := range msg.Attachments {
		msg.Attachments[i].Data = slices.Clone(msg.Attachments[i].Data)
	}
	return msg
}
