/*
Package realtime runs the WebSocket side of a connection registered with the hub.

A Client owns exactly two goroutines: ReadPump, which decodes inbound envelopes and
dispatches them, and WritePump, which is the only writer of the socket and drains the hub
connection's outbound queue in order.
*/
package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"roomlink/internal/app/event"
	"roomlink/internal/app/hub"
	"roomlink/internal/pkg/errs"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed for the server to wait for a Pong message from the client.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// maximum allowed size (in bytes) of an inbound envelope. Session descriptions are the
	// largest payloads clients send.
	maxMessageSize = 64 * 1024
)

// Hub is the connection registry a client attaches to.
type Hub interface {
	Register(conn *hub.Conn) error
	Unregister(conn *hub.Conn) bool
	SendToConn(conn *hub.Conn, ev event.Event) bool
}

// Signaler relays signal envelopes to their addressee.
type Signaler interface {
	Relay(ctx context.Context, from, to, roomID string, data json.RawMessage) error
}

// Client binds a WebSocket to its hub connection.
type Client struct {
	ws      *websocket.Conn
	conn    *hub.Conn
	hub     Hub
	signals Signaler
	logger  zerolog.Logger
}

// NewClient constructs a client for an upgraded socket.
func NewClient(ws *websocket.Conn, conn *hub.Conn, h Hub, signals Signaler) *Client {
	return &Client{
		ws:      ws,
		conn:    conn,
		hub:     h,
		signals: signals,
		logger:  conn.Logger(),
	}
}

// Run registers the connection, starts the writer and blocks reading until the socket
// closes. The connection is unregistered before Run returns.
func (c *Client) Run(ctx context.Context) {
	if err := c.hub.Register(c.conn); err != nil {
		c.logger.Warn().Err(err).Msg("Connection refused by hub.")
		msg := websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "server shutting down")
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		_ = c.ws.Close()
		return
	}

	go c.WritePump()
	c.ReadPump(ctx)
}

// ReadPump handles reading envelopes from the WebSocket connection.
// It handles heartbeats (Pong), dispatch and performs cleanup upon connection closure.
func (c *Client) ReadPump(ctx context.Context) {
	defer c.cleanupOnDisconnect()

	c.ws.SetReadLimit(maxMessageSize)

	if err := c.ws.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, messageBytes, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Error reading message (Client close/going away)")
			}
			return
		}

		c.processInbound(ctx, messageBytes)
	}
}

// cleanupOnDisconnect unregisters the connection, which also stops WritePump.
func (c *Client) cleanupOnDisconnect() {
	c.hub.Unregister(c.conn)
	c.logger.Debug().Msg("Client read loop finished.")
}

func (c *Client) processInbound(ctx context.Context, messageBytes []byte) {
	var in event.Inbound
	if err := json.Unmarshal(messageBytes, &in); err != nil {
		c.logger.Warn().Err(err).Int("size", len(messageBytes)).Msg("Client sent invalid JSON")
		c.SendError(errs.NewError(errs.ErrInvalidJSONFormat))
		return
	}

	switch in.Type {
	case event.TypeSignal:
		roomID := in.RoomID
		if roomID == "" {
			roomID = c.conn.RoomID()
		}

		if err := c.signals.Relay(ctx, c.conn.Username(), in.To, roomID, in.Data); err != nil {
			c.SendError(err)
		}

	default:
		c.logger.Warn().Str("msg_type", string(in.Type)).Msg("Client sent unsupported message type")
		c.SendError(errs.NewError(errs.ErrUnsupportedEnvelope))
	}
}

// SendError queues an error event for this connection only.
func (c *Client) SendError(err error) {
	customErr := errs.From(err)
	c.hub.SendToConn(c.conn, event.NewError(customErr.Code, customErr.Message))
}

// WritePump writes queued envelopes to the socket until the hub connection is done, then
// sends the recorded close frame.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()

		if err := c.ws.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Client connection close error in WritePump")
		}
	}()

	for {
		select {
		case message := <-c.conn.Outbound():
			if !c.writeQueuedMessage(message) {
				return
			}

		case <-c.conn.Done():
			c.flush()
			c.writeClose()
			return

		case <-ticker.C:
			if !c.writePingMessage() {
				return
			}
		}
	}
}

// writeQueuedMessage writes one envelope. It returns false if WritePump should terminate.
func (c *Client) writeQueuedMessage(message []byte) bool {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
		c.logger.Warn().Err(err).Msg("Error writing message")
		return false
	}

	return true
}

// writePingMessage sends a periodic WebSocket Ping message to maintain the connection heartbeat.
// Returns false if the WritePump loop should terminate due to write failure.
func (c *Client) writePingMessage() bool {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline on ping")
		return false
	}

	if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.logger.Warn().Err(err).Msg("Error writing ping")
		return false
	}

	return true
}

// flush writes the envelopes that were queued before the connection was closed.
func (c *Client) flush() {
	for {
		select {
		case message := <-c.conn.Outbound():
			if !c.writeQueuedMessage(message) {
				return
			}
		default:
			return
		}
	}
}

// writeClose sends the close frame recorded on the hub connection.
func (c *Client) writeClose() {
	code, reason := c.conn.CloseReason()
	if code == 0 {
		code = websocket.CloseNormalClosure
	}

	if code != websocket.CloseNormalClosure {
		c.logger.Info().Int("close_code", code).Str("reason", reason).Msg("Closing connection.")
	}

	msg := websocket.FormatCloseMessage(code, reason)
	if err := c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait)); err != nil {
		c.logger.Debug().Err(err).Msg("Failed to send close frame.")
	}
}
