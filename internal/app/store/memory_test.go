package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"roomlink/internal/app/model"
)

func TestMemoryUsers(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	m := NewMemory()

	req.NoError(m.CreateUser(ctx, model.User{Username: "bob"}))
	req.NoError(m.CreateUser(ctx, model.User{Username: "alice"}))
	req.ErrorIs(m.CreateUser(ctx, model.User{Username: "bob"}), ErrDuplicate)

	_, err := m.GetUser(ctx, "carol")
	req.ErrorIs(err, ErrNotFound)

	seen := time.Now().UTC()
	req.NoError(m.UpdatePresence(ctx, "bob", true, seen))
	bob, err := m.GetUser(ctx, "bob")
	req.NoError(err)
	req.True(bob.Online)
	req.Equal(seen, *bob.LastSeen)

	users, err := m.ListUsers(ctx)
	req.NoError(err)
	req.Equal("alice", users[0].Username)
	req.Equal("bob", users[1].Username)
}

func TestMemoryMessageLogIsOrderedAndIsolated(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	m := NewMemory()

	data := []byte("payload")
	req.NoError(m.AppendMessage(ctx, model.Message{ID: "1", RoomID: "r", Content: "first"}))
	req.NoError(m.AppendMessage(ctx, model.Message{ID: "2", RoomID: "r", Content: "second",
		Attachments: []model.Attachment{{Name: "a.txt", Data: data}}}))
	req.NoError(m.AppendMessage(ctx, model.Message{ID: "3", RoomID: "other"}))

	data[0] = 'X'

	log, err := m.LoadRoomLog(ctx, "r")
	req.NoError(err)
	req.Len(log, 2)
	req.Equal("first", log[0].Content)
	req.Equal("payload", string(log[1].Attachments[0].Data))

	empty, err := m.LoadRoomLog(ctx, "missing")
	req.NoError(err)
	req.Empty(empty)
}

func TestMemoryRoomsAreCopied(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	m := NewMemory()

	room := model.Room{ID: "r1", Members: []string{"alice"}, CreatedAt: time.Now()}
	req.NoError(m.SaveRoom(ctx, room))
	room.Members[0] = "mallory"

	rooms, err := m.LoadAllRooms(ctx)
	req.NoError(err)
	req.Equal([]string{"alice"}, rooms[0].Members)
}
