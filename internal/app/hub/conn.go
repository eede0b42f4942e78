package hub

import (
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	// DefaultQueueSize is the number of outbound envelopes buffered per connection.
	DefaultQueueSize = 256

	// CloseSessionReplaced is a custom WebSocket close code (4000-4999 range) telling the
	// client that its session was replaced by a newer login, revoked by a logout or expired.
	CloseSessionReplaced = 4001

	// CloseSlowConsumer is sent when a connection's outbound queue overflowed.
	CloseSlowConsumer = 4002
)

// Conn is the hub-side handle of one realtime connection. The transport owns the socket
// and drains Outbound from a single goroutine, which gives each connection FIFO delivery.
type Conn struct {
	id        uint64
	username  string
	sessionID string
	roomID    string

	// send queues serialized envelopes. It is never closed; Done signals shutdown.
	send chan []byte
	done chan struct{}

	closeOnce   sync.Once
	mu          sync.Mutex
	closeCode   int
	closeReason string

	logger zerolog.Logger
}

// Username returns the authenticated owner of the connection.
func (c *Conn) Username() string { return c.username }

// SessionID returns the session the connection was authenticated with.
func (c *Conn) SessionID() string { return c.sessionID }

// RoomID returns the room the client declared when connecting, if any.
func (c *Conn) RoomID() string { return c.roomID }

// ID returns the hub-unique connection id.
func (c *Conn) ID() uint64 { return c.id }

// Outbound returns the queue the transport writer drains.
func (c *Conn) Outbound() <-chan []byte { return c.send }

// Done is closed once the connection must stop writing.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Logger returns the connection-scoped logger.
func (c *Conn) Logger() zerolog.Logger { return c.logger }

// Close signals the transport to close the socket with a normal closure.
func (c *Conn) Close() {
	c.Kick(websocket.CloseNormalClosure, "")
}

// Kick records the close code and reason to send to the client, then closes.
// Only the first call has an effect.
func (c *Conn) Kick(code int, reason string) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closeCode = code
		c.closeReason = reason
		c.mu.Unlock()

		close(c.done)
	})
}

// CloseReason returns the close code and reason recorded by Kick.
func (c *Conn) CloseReason() (int, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCode, c.closeReason
}

// closed reports whether Done has been closed.
func (c *Conn) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// enqueue queues payload without blocking. It reports overflow separately from a
// connection that is already closed.
func (c *Conn) enqueue(payload []byte) (ok bool, overflow bool) {
	if c.closed() {
		return false, false
	}

	select {
	case c.send <- payload:
		return true, false
	default:
		return false, true
	}
}
