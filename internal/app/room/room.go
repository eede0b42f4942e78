/*
Package room owns room definitions and their membership lists.

Each room carries its own lock, so membership changes on one room never contend with reads
of another. The store is authoritative for broadcast targets: other components ask it who
belongs to a room right before they fan out.
*/
package room

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"roomlink/internal/app/event"
	"roomlink/internal/app/model"
	"roomlink/internal/app/store"
	"roomlink/internal/pkg/errs"
	"roomlink/internal/pkg/logx"
	"roomlink/internal/pkg/randx"
)

// MaxNameLength is the maximum number of characters in a room name.
const MaxNameLength = 64

// Notifier delivers room lifecycle events.
type Notifier interface {
	BroadcastAll(ev event.Event) int
}

// entry guards one room.
type entry struct {
	mu   sync.RWMutex
	room model.Room
}

// Store is the in-process owner of every room.
type Store struct {
	// mu protects the rooms map only. Rooms are never deleted.
	mu    sync.RWMutex
	rooms map[string]*entry

	repo     store.RoomRepository
	users    store.UserRepository
	notifier Notifier
	now      func() time.Time

	logger zerolog.Logger
}

// NewStore creates an empty room store. Call Load to restore persisted rooms.
func NewStore(repo store.RoomRepository, users store.UserRepository, notifier Notifier) *Store {
	return &Store{
		rooms:    make(map[string]*entry),
		repo:     repo,
		users:    users,
		notifier: notifier,
		now:      time.Now,
		logger:   logx.Component("room"),
	}
}

// Load restores every persisted room. Existing in-memory rooms with the same id are replaced.
func (s *Store) Load(ctx context.Context) error {
	rooms, err := s.repo.LoadAllRooms(ctx)
	if err != nil {
		return errs.NewError(errs.ErrStorageFailed, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range rooms {
		r.Members = normalizeMembers(r.Owner, r.Members)
		s.rooms[r.ID] = &entry{room: r}
	}

	s.logger.Info().Int("rooms", len(rooms)).Msg("Rooms restored.")
	return nil
}

// Create makes a new room owned by owner. The owner is always a member; extra members
// must be known users. On success every online user is told about the room.
func (s *Store) Create(ctx context.Context, name string, roomType model.RoomType, owner string, members ...string) (model.Room, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > MaxNameLength {
		return model.Room{}, errs.NewError(errs.ErrRoomNameInvalid, MaxNameLength)
	}

	if roomType == "" {
		roomType = model.RoomText
	}
	if !roomType.Valid() {
		return model.Room{}, errs.NewError(errs.ErrRoomTypeInvalid)
	}

	members = normalizeMembers(owner, members)
	for _, m := range members {
		if m == owner {
			continue
		}
		if err := s.userExists(ctx, m); err != nil {
			return model.Room{}, err
		}
	}

	id, err := randx.RoomID()
	if err != nil {
		return model.Room{}, errs.NewError(errs.ErrUnknown, err)
	}

	room := model.Room{
		ID:        id,
		Name:      name,
		Type:      roomType,
		Owner:     owner,
		Members:   members,
		CreatedAt: s.now().UTC(),
	}

	if err := s.repo.SaveRoom(ctx, room); err != nil {
		return model.Room{}, errs.NewError(errs.ErrStorageFailed, err)
	}

	s.mu.Lock()
	s.rooms[room.ID] = &entry{room: room.Clone()}
	s.mu.Unlock()

	delivered := s.notifier.BroadcastAll(event.NewRoomCreated(room))

	s.logger.Info().
		Str("room_id", room.ID).
		Str("owner", owner).
		Str("room_type", string(roomType)).
		Int("members", len(members)).
		Int("delivered", delivered).
		Msg("Room created.")

	return room, nil
}

func (s *Store) userExists(ctx context.Context, username string) error {
	if _, err := s.users.GetUser(ctx, username); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return errs.NewError(errs.ErrUserNotFound)
		}
		return errs.NewError(errs.ErrStorageFailed, err)
	}
	return nil
}

func (s *Store) lookup(id string) (*entry, error) {
	if !randx.IsValidID(id, randx.RoomIDLength) {
		return nil, errs.NewError(errs.ErrRoomNotFound)
	}

	s.mu.RLock()
	e, ok := s.rooms[id]
	s.mu.RUnlock()

	if !ok {
		return nil, errs.NewError(errs.ErrRoomNotFound)
	}
	return e, nil
}

// Get returns a snapshot of the room.
func (s *Store) Get(id string) (model.Room, error) {
	e, err := s.lookup(id)
	if err != nil {
		return model.Room{}, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.room.Clone(), nil
}

// List returns the rooms username belongs to, oldest first.
func (s *Store) List(username string) []model.Room {
	s.mu.RLock()
	entries := lo.Values(s.rooms)
	s.mu.RUnlock()

	rooms := make([]model.Room, 0)
	for _, e := range entries {
		e.mu.RLock()
		if e.room.HasMember(username) {
			rooms = append(rooms, e.room.Clone())
		}
		e.mu.RUnlock()
	}

	slices.SortFunc(rooms, func(a, b model.Room) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return rooms
}

// IsMember reports whether username belongs to room id. Unknown rooms yield NotFound.
func (s *Store) IsMember(id, username string) (bool, error) {
	e, err := s.lookup(id)
	if err != nil {
		return false, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.room.HasMember(username), nil
}

// Members returns the sorted member list of room id.
func (s *Store) Members(id string) ([]string, error) {
	e, err := s.lookup(id)
	if err != nil {
		return nil, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	return slices.Clone(e.room.Members), nil
}

// AddMember adds username to room id. Adding an existing member is a no-op; added reports
// whether the member list changed. The change is persisted before it becomes visible.
func (s *Store) AddMember(ctx context.Context, id, username string) (room model.Room, added bool, err error) {
	e, err := s.lookup(id)
	if err != nil {
		return model.Room{}, false, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	pos, found := slices.BinarySearch(e.room.Members, username)
	if found {
		return e.room.Clone(), false, nil
	}

	next := e.room.Clone()
	next.Members = slices.Insert(next.Members, pos, username)

	if err := s.repo.SaveRoom(ctx, next); err != nil {
		return model.Room{}, false, errs.NewError(errs.ErrStorageFailed, err)
	}
	e.room = next

	s.logger.Info().Str("room_id", id).Str("username", username).Msg("Member added.")
	return next.Clone(), true, nil
}

func normalizeMembers(owner string, members []string) []string {
	all := lo.Uniq(append([]string{owner}, lo.Compact(members)...))
	slices.Sort(all)
	return all
}
