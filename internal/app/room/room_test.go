package room

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomlink/internal/app/event"
	"roomlink/internal/app/model"
	"roomlink/internal/app/store"
	"roomlink/internal/pkg/errs"
)

type recorder struct {
	mu     sync.Mutex
	events []event.Event
}

func (r *recorder) BroadcastAll(ev event.Event) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return 1
}

func newTestStore(t *testing.T, users ...string) (*Store, *store.Memory, *recorder) {
	t.Helper()

	mem := store.NewMemory()
	for _, u := range users {
		require.NoError(t, mem.CreateUser(context.Background(), model.User{Username: u, CreatedAt: time.Now()}))
	}

	rec := &recorder{}
	return NewStore(mem, mem, rec), mem, rec
}

func TestCreateRoom(t *testing.T) {
	req := require.New(t)
	s, mem, rec := newTestStore(t, "alice", "bob")

	room, err := s.Create(context.Background(), "  general ", model.RoomText, "alice")
	req.NoError(err)
	req.Equal("general", room.Name)
	req.Equal([]string{"alice"}, room.Members)
	req.Len(room.ID, 10)

	req.Len(rec.events, 1)
	created, ok := rec.events[0].(event.RoomCreated)
	req.True(ok)
	req.Equal(room.ID, created.RoomID)
	req.Equal("general", created.Name)

	persisted, err := mem.LoadAllRooms(context.Background())
	req.NoError(err)
	req.Len(persisted, 1)
	req.Equal(room.ID, persisted[0].ID)
}

func TestCreateRoomValidation(t *testing.T) {
	tests := []struct {
		name     string
		roomName string
		roomType model.RoomType
		members  []string
		code     int
	}{
		{name: "empty name", roomName: "   ", roomType: model.RoomText, code: errs.ErrRoomNameInvalid},
		{name: "long name", roomName: string(make([]rune, MaxNameLength+1)), roomType: model.RoomText, code: errs.ErrRoomNameInvalid},
		{name: "bad type", roomName: "lobby", roomType: "video", code: errs.ErrRoomTypeInvalid},
		{name: "unknown member", roomName: "lobby", roomType: model.RoomVoice, members: []string{"mallory"}, code: errs.ErrUserNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _, rec := newTestStore(t, "alice")

			_, err := s.Create(context.Background(), tt.roomName, tt.roomType, "alice", tt.members...)
			require.True(t, errs.HasCode(err, tt.code), "got %v", err)
			require.Empty(t, rec.events)
			require.Empty(t, s.List("alice"))
		})
	}
}

func TestCreateRoomWithInitialMembers(t *testing.T) {
	s, _, _ := newTestStore(t, "alice", "bob", "carol")

	room, err := s.Create(context.Background(), "team", "", "carol", "bob", "alice", "bob", "")
	require.NoError(t, err)
	require.Equal(t, model.RoomText, room.Type)
	require.Equal(t, []string{"alice", "bob", "carol"}, room.Members)
}

func TestListAndGet(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s, _, _ := newTestStore(t, "alice", "bob")

	general, err := s.Create(ctx, "general", model.RoomText, "alice")
	req.NoError(err)
	voice, err := s.Create(ctx, "voice", model.RoomVoice, "bob")
	req.NoError(err)

	req.Equal([]string{general.ID}, roomIDs(s.List("alice")))
	req.Equal([]string{voice.ID}, roomIDs(s.List("bob")))
	req.Empty(s.List("carol"))

	got, err := s.Get(voice.ID)
	req.NoError(err)
	req.Equal(model.RoomVoice, got.Type)

	_, err = s.Get("missing")
	req.Equal(errs.KindNotFound, errs.KindOf(err))

	_, err = s.IsMember("missing", "alice")
	req.Equal(errs.KindNotFound, errs.KindOf(err))
}

func roomIDs(rooms []model.Room) []string {
	ids := make([]string, 0, len(rooms))
	for _, r := range rooms {
		ids = append(ids, r.ID)
	}
	return ids
}

func TestAddMemberIsIdempotent(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s, mem, _ := newTestStore(t, "alice", "bob")

	room, err := s.Create(ctx, "general", model.RoomText, "alice")
	req.NoError(err)

	_, added, err := s.AddMember(ctx, room.ID, "bob")
	req.NoError(err)
	req.True(added)

	updated, added, err := s.AddMember(ctx, room.ID, "bob")
	req.NoError(err)
	req.False(added)
	req.Equal([]string{"alice", "bob"}, updated.Members)

	ok, err := s.IsMember(room.ID, "bob")
	req.NoError(err)
	req.True(ok)

	persisted, err := mem.LoadAllRooms(ctx)
	req.NoError(err)
	req.Equal([]string{"alice", "bob"}, persisted[0].Members)
}

func TestAddMemberConcurrent(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestStore(t, "alice")

	room, err := s.Create(ctx, "general", model.RoomText, "alice")
	require.NoError(t, err)

	users := []string{"bob", "carol", "dave", "erin"}
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		for _, u := range users {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _, err := s.AddMember(ctx, room.ID, u)
				assert.NoError(t, err)
			}()
		}
	}
	wg.Wait()

	members, err := s.Members(room.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"alice", "bob", "carol", "dave", "erin"}, members)
}

func TestLoadRestoresRooms(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s, mem, _ := newTestStore(t, "alice", "bob")

	room, err := s.Create(ctx, "general", model.RoomText, "alice")
	req.NoError(err)
	_, _, err = s.AddMember(ctx, room.ID, "bob")
	req.NoError(err)

	restored := NewStore(mem, mem, &recorder{})
	req.NoError(restored.Load(ctx))

	got, err := restored.Get(room.ID)
	req.NoError(err)
	req.Equal([]string{"alice", "bob"}, got.Members)
}
