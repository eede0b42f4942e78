/*
Package invite manages time-bounded offers to join a room.

An invite starts pending and reaches exactly one terminal state: accepted, declined or
expired. Every invite has its own mutex; accept, decline and the expiry timer all commit
under it, so the first terminal transition wins and later attempts fail with InvalidState
and no side effects. At most one pending invite exists per (room, recipient) pair.
*/
package invite

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"roomlink/internal/app/event"
	"roomlink/internal/app/model"
	"roomlink/internal/app/store"
	"roomlink/internal/pkg/errs"
	"roomlink/internal/pkg/logx"
	"roomlink/internal/pkg/randx"
)

// DefaultTTL is how long an untouched invite stays pending.
const DefaultTTL = 5 * time.Minute

const expiryWriteTimeout = 5 * time.Second

// Rooms is the membership store the manager consults and mutates.
type Rooms interface {
	Get(id string) (model.Room, error)
	AddMember(ctx context.Context, id, username string) (model.Room, bool, error)
}

// Notifier delivers invite events to users.
type Notifier interface {
	SendTo(username string, ev event.Event) int
	Broadcast(usernames []string, ev event.Event) int
}

type pairKey struct {
	roomID    string
	recipient string
}

type entry struct {
	mu     sync.Mutex
	invite model.Invite
	timer  *time.Timer
}

// Manager owns every invite and its expiry timer.
type Manager struct {
	// mu protects invites and pending. Lock order: entry.mu may be held while taking mu,
	// never the other way round.
	mu      sync.Mutex
	invites map[string]*entry
	pending map[pairKey]string
	closed  bool

	repo     store.InviteRepository
	users    store.UserRepository
	rooms    Rooms
	notifier Notifier
	ttl      time.Duration
	now      func() time.Time

	logger zerolog.Logger
}

// NewManager creates an invite manager. A non-positive ttl selects DefaultTTL.
func NewManager(repo store.InviteRepository, users store.UserRepository, rooms Rooms, notifier Notifier, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &Manager{
		invites:  make(map[string]*entry),
		pending:  make(map[pairKey]string),
		repo:     repo,
		users:    users,
		rooms:    rooms,
		notifier: notifier,
		ttl:      ttl,
		now:      time.Now,
		logger:   logx.Component("invite"),
	}
}

// Load restores persisted invites. Pending invites whose window already passed are expired
// immediately; the others get a timer for their remaining time.
func (m *Manager) Load(ctx context.Context) error {
	invites, err := m.repo.LoadInvites(ctx)
	if err != nil {
		return errs.NewError(errs.ErrStorageFailed, err)
	}

	var overdue []*entry
	rescheduled := 0

	for _, inv := range invites {
		e := &entry{invite: inv}

		m.mu.Lock()
		m.invites[inv.ID] = e
		if inv.Status == model.InvitePending {
			m.pending[pairKey{inv.RoomID, inv.Recipient}] = inv.ID
		}
		m.mu.Unlock()

		if inv.Status != model.InvitePending {
			continue
		}

		remaining := inv.ExpiresAt.Sub(m.now())
		if remaining <= 0 {
			overdue = append(overdue, e)
			continue
		}

		id := inv.ID
		e.mu.Lock()
		e.timer = time.AfterFunc(remaining, func() { m.expire(id) })
		e.mu.Unlock()
		rescheduled++
	}

	for _, e := range overdue {
		e.mu.Lock()
		m.commitExpired(ctx, e)
		e.mu.Unlock()
	}

	m.logger.Info().
		Int("invites", len(invites)).
		Int("rescheduled", rescheduled).
		Int("expired", len(overdue)).
		Msg("Invites restored.")
	return nil
}

// Create offers recipient a seat in roomID on behalf of sender and notifies the recipient.
func (m *Manager) Create(ctx context.Context, roomID, sender, recipient string) (model.Invite, error) {
	if sender == recipient {
		return model.Invite{}, errs.NewError(errs.ErrInviteSelf)
	}

	if _, err := m.users.GetUser(ctx, recipient); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.Invite{}, errs.NewError(errs.ErrUserNotFound)
		}
		return model.Invite{}, errs.NewError(errs.ErrStorageFailed, err)
	}

	room, err := m.rooms.Get(roomID)
	if err != nil {
		return model.Invite{}, err
	}
	if !room.HasMember(sender) {
		return model.Invite{}, errs.NewError(errs.ErrNotRoomMember)
	}
	if room.HasMember(recipient) {
		return model.Invite{}, errs.NewError(errs.ErrAlreadyRoomMember)
	}

	id, err := randx.InviteID()
	if err != nil {
		return model.Invite{}, errs.NewError(errs.ErrUnknown, err)
	}

	now := m.now().UTC()
	inv := model.Invite{
		ID:        id,
		RoomID:    roomID,
		Sender:    sender,
		Recipient: recipient,
		Status:    model.InvitePending,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}
	pair := pairKey{roomID, recipient}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return model.Invite{}, errs.NewError(errs.ErrUnknown, errors.New("invite manager is shut down"))
	}
	if _, taken := m.pending[pair]; taken {
		m.mu.Unlock()
		return model.Invite{}, errs.NewError(errs.ErrInviteAlreadyPending)
	}
	m.pending[pair] = inv.ID
	m.mu.Unlock()

	if err := m.repo.SaveInvite(ctx, inv); err != nil {
		m.mu.Lock()
		delete(m.pending, pair)
		m.mu.Unlock()
		return model.Invite{}, errs.NewError(errs.ErrStorageFailed, err)
	}

	e := &entry{invite: inv}
	e.mu.Lock()
	m.mu.Lock()
	m.invites[inv.ID] = e
	m.mu.Unlock()
	e.timer = time.AfterFunc(m.ttl, func() { m.expire(inv.ID) })
	e.mu.Unlock()

	delivered := m.notifier.SendTo(recipient, event.NewInvite(inv, room.Name))

	m.logger.Info().
		Str("invite_id", inv.ID).
		Str("room_id", roomID).
		Str("from", sender).
		Str("to", recipient).
		Int("delivered", delivered).
		Msg("Invite created.")

	return inv, nil
}

// Accept makes actor a member of the invite's room. Only the recipient may accept.
func (m *Manager) Accept(ctx context.Context, id, actor string) (model.Invite, error) {
	return m.respond(ctx, id, actor, model.InviteAccepted)
}

// Decline rejects the invite. Only the recipient may decline.
func (m *Manager) Decline(ctx context.Context, id, actor string) (model.Invite, error) {
	return m.respond(ctx, id, actor, model.InviteDeclined)
}

func (m *Manager) respond(ctx context.Context, id, actor string, status model.InviteStatus) (model.Invite, error) {
	e, err := m.lookup(id)
	if err != nil {
		return model.Invite{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	inv := e.invite
	if inv.Recipient != actor {
		return model.Invite{}, errs.NewError(errs.ErrInviteNotRecipient)
	}
	if inv.Status.Terminal() {
		return model.Invite{}, errs.NewError(errs.ErrInviteNotPending)
	}
	if !m.now().Before(inv.ExpiresAt) {
		m.commitExpired(ctx, e)
		return model.Invite{}, errs.NewError(errs.ErrInviteNotPending)
	}

	next := inv
	next.Status = status
	if err := m.repo.SaveInvite(ctx, next); err != nil {
		return model.Invite{}, errs.NewError(errs.ErrStorageFailed, err)
	}

	var room model.Room
	if status == model.InviteAccepted {
		room, _, err = m.rooms.AddMember(ctx, inv.RoomID, inv.Recipient)
		if err != nil {
			m.restorePending(inv)
			return model.Invite{}, err
		}
	}
	m.commit(e, next)

	m.notifier.Broadcast([]string{inv.Sender, inv.Recipient}, event.NewInviteResponse(next))
	if status == model.InviteAccepted {
		m.notifier.SendTo(inv.Recipient, event.NewRoomCreated(room))
	}

	m.logger.Info().
		Str("invite_id", id).
		Str("room_id", inv.RoomID).
		Str("status", string(status)).
		Msg("Invite answered.")

	return next, nil
}

// restorePending writes inv back after a membership change failed following the terminal
// write. It runs with e.mu held; the in-memory invite was never changed.
func (m *Manager) restorePending(inv model.Invite) {
	ctx, cancel := context.WithTimeout(context.Background(), expiryWriteTimeout)
	defer cancel()

	if err := m.repo.SaveInvite(ctx, inv); err != nil {
		m.logger.Error().Err(err).Str("invite_id", inv.ID).Msg("Failed to restore pending invite.")
	}
}

// expire is the timer callback.
func (m *Manager) expire(id string) {
	e, err := m.lookup(id)
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), expiryWriteTimeout)
	defer cancel()

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.invite.Status.Terminal() {
		return
	}
	m.commitExpired(ctx, e)
}

// commitExpired runs with e.mu held on a pending invite. A failed write is logged: the
// invite still expires in memory and Load expires it again after a restart.
func (m *Manager) commitExpired(ctx context.Context, e *entry) {
	next := e.invite
	next.Status = model.InviteExpired

	if err := m.repo.SaveInvite(ctx, next); err != nil {
		m.logger.Error().Err(err).Str("invite_id", next.ID).Msg("Failed to persist invite expiry.")
	}
	m.commit(e, next)

	m.notifier.Broadcast([]string{next.Sender, next.Recipient}, event.NewInviteResponse(next))
	m.logger.Info().Str("invite_id", next.ID).Str("room_id", next.RoomID).Msg("Invite expired.")
}

// commit installs a terminal state. It runs with e.mu held.
func (m *Manager) commit(e *entry, next model.Invite) {
	e.invite = next
	if e.timer != nil {
		e.timer.Stop()
	}

	pair := pairKey{next.RoomID, next.Recipient}
	m.mu.Lock()
	if m.pending[pair] == next.ID {
		delete(m.pending, pair)
	}
	m.mu.Unlock()
}

func (m *Manager) lookup(id string) (*entry, error) {
	if !randx.IsValidID(id, randx.InviteIDLength) {
		return nil, errs.NewError(errs.ErrInviteNotFound)
	}

	m.mu.Lock()
	e, ok := m.invites[id]
	m.mu.Unlock()

	if !ok {
		return nil, errs.NewError(errs.ErrInviteNotFound)
	}
	return e, nil
}

// Get returns a snapshot of invite id.
func (m *Manager) Get(id string) (model.Invite, error) {
	e, err := m.lookup(id)
	if err != nil {
		return model.Invite{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.invite, nil
}

// ListFor returns the invites addressed to username, newest first.
func (m *Manager) ListFor(username string) []model.Invite {
	m.mu.Lock()
	entries := make([]*entry, 0, len(m.invites))
	for _, e := range m.invites {
		entries = append(entries, e)
	}
	m.mu.Unlock()

	invites := make([]model.Invite, 0)
	for _, e := range entries {
		e.mu.Lock()
		if e.invite.Recipient == username {
			invites = append(invites, e.invite)
		}
		e.mu.Unlock()
	}

	slices.SortFunc(invites, func(a, b model.Invite) int {
		return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
	return invites
}

// Shutdown stops every expiry timer and refuses new invites. Pending invites stay pending
// and are rescheduled by Load on the next start.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	m.closed = true
	entries := make([]*entry, 0, len(m.invites))
	for _, e := range m.invites {
		entries = append(entries, e)
	}
	m.mu.Unlock()

	for _, e := range entries {
		e.mu.Lock()
		if e.timer != nil {
			e.timer.Stop()
		}
		e.mu.Unlock()
	}

	m.logger.Info().Int("invites", len(entries)).Msg("Invite timers stopped.")
}
