/*
Package hub owns the live realtime connections of every user.

Each user has an entry holding a set of connections (multi-tab). A user is online iff the
set is non-empty. The first registration and the last unregistration flip presence and
broadcast a status event to every connected user. All delivery is a non-blocking enqueue
into a bounded per-connection queue; a connection whose queue overflows is disconnected so
it never stalls delivery to others.
*/
package hub

import (
	"encoding/json"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"roomlink/internal/app/event"
	"roomlink/internal/pkg/logx"
)

// ErrHubClosed is returned by Register after Shutdown.
var ErrHubClosed = errors.New("hub is shut down")

// PresenceFunc observes presence transitions before they are broadcast.
type PresenceFunc func(username string, online bool, at time.Time)

// entry holds the connections of one user.
type entry struct {
	// presenceMu serializes a presence transition with its broadcast so status events
	// for one user are emitted in transition order.
	presenceMu sync.Mutex

	// mu protects conns. It is never held while acquiring another entry's lock.
	mu    sync.Mutex
	conns map[*Conn]struct{}
}

// Hub maps usernames to their live connections.
type Hub struct {
	// mu protects the entries map. Entries are never removed, users are never deleted.
	mu      sync.RWMutex
	entries map[string]*entry

	queueSize  int
	onPresence PresenceFunc
	now        func() time.Time

	nextID atomic.Uint64
	closed atomic.Bool

	logger zerolog.Logger
}

// New creates a hub whose connections buffer queueSize outbound envelopes.
func New(queueSize int) *Hub {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	return &Hub{
		entries:   make(map[string]*entry),
		queueSize: queueSize,
		now:       time.Now,
		logger:    logx.Component("hub"),
	}
}

// SetPresenceHook installs fn as the presence observer. It must be called before the
// first Register.
func (h *Hub) SetPresenceHook(fn PresenceFunc) {
	h.onPresence = fn
}

// NewConn creates an unregistered connection handle for username.
func (h *Hub) NewConn(username, sessionID, roomID string) *Conn {
	id := h.nextID.Add(1)

	return &Conn{
		id:        id,
		username:  username,
		sessionID: sessionID,
		roomID:    roomID,
		send:      make(chan []byte, h.queueSize),
		done:      make(chan struct{}),
		logger: h.logger.With().
			Uint64("conn_id", id).
			Str("username", username).
			Logger(),
	}
}

func (h *Hub) lookup(username string) *entry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.entries[username]
}

func (h *Hub) entryFor(username string) *entry {
	if e := h.lookup(username); e != nil {
		return e
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	e, ok := h.entries[username]
	if !ok {
		e = &entry{conns: make(map[*Conn]struct{})}
		h.entries[username] = e
	}
	return e
}

// Register adds conn to its user's set. The first connection flips the user online and
// broadcasts status{online=true} to every connected user.
func (h *Hub) Register(conn *Conn) error {
	if h.closed.Load() {
		return ErrHubClosed
	}

	e := h.entryFor(conn.username)

	e.presenceMu.Lock()
	defer e.presenceMu.Unlock()

	e.mu.Lock()
	first := len(e.conns) == 0
	e.conns[conn] = struct{}{}
	total := len(e.conns)
	e.mu.Unlock()

	conn.logger.Info().Int("user_connections", total).Msg("Connection registered.")

	if first {
		h.transition(conn.username, true)
	}

	return nil
}

// Unregister removes conn and closes it. Removing the last connection flips the user
// offline and broadcasts status{online=false}. Unknown or already removed connections are
// ignored. It reports whether the user went offline.
func (h *Hub) Unregister(conn *Conn) bool {
	conn.Close()

	e := h.lookup(conn.username)
	if e == nil {
		return false
	}

	e.presenceMu.Lock()
	defer e.presenceMu.Unlock()

	e.mu.Lock()
	_, ok := e.conns[conn]
	if ok {
		delete(e.conns, conn)
	}
	last := ok && len(e.conns) == 0
	e.mu.Unlock()

	if !ok {
		return false
	}

	conn.logger.Info().Bool("last", last).Msg("Connection unregistered.")

	if last {
		h.transition(conn.username, false)
	}

	return last
}

// CloseSession unregisters every connection bound to sessionID and kicks it with reason.
// It reports whether the user went offline as a result.
func (h *Hub) CloseSession(username, sessionID, reason string) bool {
	e := h.lookup(username)
	if e == nil {
		return false
	}

	e.presenceMu.Lock()
	defer e.presenceMu.Unlock()

	e.mu.Lock()
	var kicked []*Conn
	for c := range e.conns {
		if c.sessionID == sessionID {
			kicked = append(kicked, c)
			delete(e.conns, c)
		}
	}
	last := len(kicked) > 0 && len(e.conns) == 0
	e.mu.Unlock()

	for _, c := range kicked {
		c.Kick(CloseSessionReplaced, reason)
	}

	if len(kicked) > 0 {
		h.logger.Info().
			Str("username", username).
			Int("kicked", len(kicked)).
			Msg("Session connections closed.")
	}

	if last {
		h.transition(username, false)
	}

	return last
}

// AnnounceOffline stamps and broadcasts status{online=false} for a user that holds no
// connection, such as after a logout from a session that never connected. The connection set
// is checked under the user's presence lock, so a concurrent Register cannot be followed by a
// stale offline status. It reports whether the status was broadcast.
func (h *Hub) AnnounceOffline(username string) bool {
	e := h.entryFor(username)

	e.presenceMu.Lock()
	defer e.presenceMu.Unlock()

	e.mu.Lock()
	online := len(e.conns) > 0
	e.mu.Unlock()

	if online {
		return false
	}

	h.transition(username, false)
	return true
}

// transition runs with the user's presenceMu held.
func (h *Hub) transition(username string, online bool) {
	at := h.now().UTC()

	if h.onPresence != nil {
		h.onPresence(username, online, at)
	}

	h.BroadcastAll(event.NewStatus(username, online, at))
}

// SendTo delivers ev to every live connection of username and returns how many
// connections accepted it. A user without connections is a silent no-op.
func (h *Hub) SendTo(username string, ev event.Event) int {
	e := h.lookup(username)
	if e == nil {
		return 0
	}

	payload, ok := h.marshal(ev)
	if !ok {
		return 0
	}

	return h.deliver(e, payload)
}

// SendToConn delivers ev to a single connection, such as the error reply to an inbound
// envelope. It reports whether the connection accepted it.
func (h *Hub) SendToConn(c *Conn, ev event.Event) bool {
	payload, ok := h.marshal(ev)
	if !ok {
		return false
	}

	accepted, overflow := c.enqueue(payload)
	if overflow {
		c.logger.Warn().Int("queue_len", len(c.send)).Msg("Outbound queue full, disconnecting slow connection.")
		c.Kick(CloseSlowConsumer, "outbound queue overflow")
		go h.Unregister(c)
	}
	return accepted
}

// Broadcast delivers ev to the union of the given users' connections. Duplicate
// usernames receive the event once.
func (h *Hub) Broadcast(usernames []string, ev event.Event) int {
	if len(usernames) == 0 {
		return 0
	}

	payload, ok := h.marshal(ev)
	if !ok {
		return 0
	}

	delivered := 0
	for _, username := range lo.Uniq(usernames) {
		if e := h.lookup(username); e != nil {
			delivered += h.deliver(e, payload)
		}
	}

	return delivered
}

// BroadcastAll delivers ev to every connected user.
func (h *Hub) BroadcastAll(ev event.Event) int {
	payload, ok := h.marshal(ev)
	if !ok {
		return 0
	}

	h.mu.RLock()
	entries := lo.Values(h.entries)
	h.mu.RUnlock()

	delivered := 0
	for _, e := range entries {
		delivered += h.deliver(e, payload)
	}

	return delivered
}

func (h *Hub) marshal(ev event.Event) ([]byte, bool) {
	payload, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error().Err(err).Str("event_type", string(ev.Kind())).Msg("Failed to marshal event.")
		return nil, false
	}
	return payload, true
}

// deliver enqueues payload on every connection of e. Connections whose queue is full are
// kicked and unregistered asynchronously.
func (h *Hub) deliver(e *entry, payload []byte) int {
	var slow []*Conn
	delivered := 0

	e.mu.Lock()
	for c := range e.conns {
		ok, overflow := c.enqueue(payload)
		if ok {
			delivered++
		} else if overflow {
			slow = append(slow, c)
		}
	}
	e.mu.Unlock()

	for _, c := range slow {
		c.logger.Warn().Int("queue_len", len(c.send)).Msg("Outbound queue full, disconnecting slow connection.")
		c.Kick(CloseSlowConsumer, "outbound queue overflow")
		go h.Unregister(c)
	}

	return delivered
}

// IsOnline reports whether username has at least one live connection.
func (h *Hub) IsOnline(username string) bool {
	return h.ConnectionCount(username) > 0
}

// ConnectionCount returns the number of live connections of username.
func (h *Hub) ConnectionCount(username string) int {
	e := h.lookup(username)
	if e == nil {
		return 0
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.conns)
}

// OnlineUsers returns the sorted usernames that currently hold a connection.
func (h *Hub) OnlineUsers() []string {
	h.mu.RLock()
	snapshot := make(map[string]*entry, len(h.entries))
	for username, e := range h.entries {
		snapshot[username] = e
	}
	h.mu.RUnlock()

	var online []string
	for username, e := range snapshot {
		e.mu.Lock()
		if len(e.conns) > 0 {
			online = append(online, username)
		}
		e.mu.Unlock()
	}

	slices.Sort(online)
	return online
}

// Shutdown refuses new registrations and asks every connection to close.
func (h *Hub) Shutdown() {
	if !h.closed.CompareAndSwap(false, true) {
		return
	}

	h.mu.RLock()
	entries := lo.Values(h.entries)
	h.mu.RUnlock()

	count := 0
	for _, e := range entries {
		e.mu.Lock()
		for c := range e.conns {
			c.Kick(websocket.CloseGoingAway, "server shutting down")
			count++
		}
		e.mu.Unlock()
	}

	h.logger.Info().Int("connections", count).Msg("Hub shutdown complete.")
}
