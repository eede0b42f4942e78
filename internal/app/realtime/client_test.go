package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"roomlink/internal/app/hub"
	"roomlink/internal/app/model"
	"roomlink/internal/app/relay"
	"roomlink/internal/app/room"
	"roomlink/internal/app/store"
	"roomlink/internal/pkg/errs"
)

type harness struct {
	hub    *hub.Hub
	server *httptest.Server
	call   model.Room
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()

	mem := store.NewMemory()
	for _, u := range []string{"alice", "bob", "carol"} {
		require.NoError(t, mem.CreateUser(ctx, model.User{Username: u, CreatedAt: time.Now()}))
	}

	h := hub.New(32)
	rooms := room.NewStore(mem, mem, h)
	call, err := rooms.Create(ctx, "call", model.RoomVoice, "alice", "bob")
	require.NoError(t, err)

	signals := relay.New(rooms, h)
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn := h.NewConn(q.Get("user"), "session-"+q.Get("user"), q.Get("room_id"))
		NewClient(ws, conn, h, signals).Run(r.Context())
	}))
	t.Cleanup(server.Close)

	return &harness{hub: h, server: server, call: call}
}

func (hs *harness) dial(t *testing.T, user, roomID string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(hs.server.URL, "http") + "/?user=" + user + "&room_id=" + roomID
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })

	require.Eventually(t, func() bool { return hs.hub.IsOnline(user) }, 2*time.Second, 5*time.Millisecond)
	return ws
}

type envelope struct {
	Type    string          `json:"type"`
	From    string          `json:"from"`
	RoomID  string          `json:"room_id"`
	Data    json.RawMessage `json:"data"`
	Code    int             `json:"code"`
	Message string          `json:"message"`
}

// next reads envelopes until one of kind arrives.
func next(t *testing.T, ws *websocket.Conn, kind string) envelope {
	t.Helper()

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		_, b, err := ws.ReadMessage()
		require.NoError(t, err)

		var env envelope
		require.NoError(t, json.Unmarshal(b, &env))
		if env.Type == kind {
			return env
		}
	}
}

func TestSignalIsRelayedBetweenPeers(t *testing.T) {
	req := require.New(t)
	hs := newHarness(t)

	alice := hs.dial(t, "alice", "")
	bob := hs.dial(t, "bob", "")

	req.NoError(alice.WriteJSON(map[string]any{
		"type":    "signal",
		"to":      "bob",
		"room_id": hs.call.ID,
		"data":    map[string]any{"type": "offer", "sdp": "v=0"},
	}))

	got := next(t, bob, "signal")
	req.Equal("alice", got.From)
	req.Equal(hs.call.ID, got.RoomID)
	req.JSONEq(`{"type":"offer","sdp":"v=0"}`, string(got.Data))
}

func TestSignalFallsBackToConnectionRoom(t *testing.T) {
	hs := newHarness(t)

	bob := hs.dial(t, "bob", hs.call.ID)
	alice := hs.dial(t, "alice", hs.call.ID)

	require.NoError(t, bob.WriteJSON(map[string]any{"type": "signal", "to": "alice", "data": "candidate"}))

	got := next(t, alice, "signal")
	require.Equal(t, hs.call.ID, got.RoomID)
	require.JSONEq(t, `"candidate"`, string(got.Data))
}

func TestRejectedEnvelopesGetErrorEvents(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		code  int
	}{
		{name: "invalid json", frame: `{"type":`, code: errs.ErrInvalidJSONFormat},
		{name: "unsupported kind", frame: `{"type":"message","room_id":"x"}`, code: errs.ErrUnsupportedEnvelope},
		{name: "peer not member", frame: `{"type":"signal","to":"carol","room_id":"%s","data":{}}`, code: errs.ErrNotRoomMember},
		{name: "unknown room", frame: `{"type":"signal","to":"bob","room_id":"nowhere","data":{}}`, code: errs.ErrRoomNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hs := newHarness(t)
			alice := hs.dial(t, "alice", "")

			frame := strings.Replace(tt.frame, "%s", hs.call.ID, 1)
			require.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte(frame)))

			got := next(t, alice, "error")
			require.Equal(t, tt.code, got.Code)
			require.NotEmpty(t, got.Message)
		})
	}
}

func TestKickedSessionReceivesCloseCode(t *testing.T) {
	req := require.New(t)
	hs := newHarness(t)

	alice := hs.dial(t, "alice", "")
	req.True(hs.hub.CloseSession("alice", "session-alice", "Session replaced by a new login."))

	req.NoError(alice.SetReadDeadline(time.Now().Add(2 * time.Second)))
	for {
		_, _, err := alice.ReadMessage()
		if err == nil {
			continue
		}

		var closeErr *websocket.CloseError
		req.True(errors.As(err, &closeErr), "got %v", err)
		req.Equal(hub.CloseSessionReplaced, closeErr.Code)
		req.Equal("Session replaced by a new login.", closeErr.Text)
		break
	}
}

func TestDisconnectUnregisters(t *testing.T) {
	hs := newHarness(t)

	alice := hs.dial(t, "alice", "")
	require.NoError(t, alice.Close())

	require.Eventually(t, func() bool { return !hs.hub.IsOnline("alice") }, 2*time.Second, 5*time.Millisecond)
}

func TestShutdownClosesWithGoingAway(t *testing.T) {
	hs := newHarness(t)
	alice := hs.dial(t, "alice", "")

	hs.hub.Shutdown()

	require.NoError(t, alice.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		_, _, err := alice.ReadMessage()
		if err != nil {
			require.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
			return
		}
	}
}
