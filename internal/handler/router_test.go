package handler

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"roomlink/internal/app/account"
	"roomlink/internal/app/hub"
	"roomlink/internal/app/invite"
	"roomlink/internal/app/message"
	"roomlink/internal/app/relay"
	"roomlink/internal/app/room"
	"roomlink/internal/app/session"
	"roomlink/internal/app/store"
	"roomlink/internal/configs"
	"roomlink/internal/pkg/errs"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	t       *testing.T
	deps    *AppDeps
	server  *httptest.Server
	clients int
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg := &configs.AppConfig{
		Environment:        "development",
		JWTSecret:          "test-secret",
		SessionTTL:         time.Hour,
		InviteTTL:          time.Hour,
		MaxContentBytes:    100,
		MaxAttachments:     2,
		MaxAttachmentBytes: 1024,
	}

	mem := store.NewMemory()
	h := hub.New(64)
	accounts := account.NewService(mem, bcrypt.MinCost)
	sessions := session.NewRegistry(accounts, mem, h, cfg.JWTSecret, cfg.SessionTTL)
	h.SetPresenceHook(sessions.OnPresence)
	t.Cleanup(sessions.Shutdown)
	rooms := room.NewStore(mem, mem, h)
	invites := invite.NewManager(mem, mem, rooms, h, cfg.InviteTTL)
	t.Cleanup(invites.Shutdown)
	messages := message.NewPipeline(rooms, mem, h, nil, message.Limits{
		MaxContentBytes:    cfg.MaxContentBytes,
		MaxAttachments:     cfg.MaxAttachments,
		MaxAttachmentBytes: cfg.MaxAttachmentBytes,
	})

	deps := &AppDeps{
		Config:   cfg,
		Accounts: accounts,
		Sessions: sessions,
		Hub:      h,
		Rooms:    rooms,
		Invites:  invites,
		Messages: messages,
		Relay:    relay.New(rooms, h),
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	server := httptest.NewServer(Router(ctx, deps))
	t.Cleanup(server.Close)

	return &testServer{t: t, deps: deps, server: server}
}

func (ts *testServer) do(method, path, token string, body any) (int, envelope) {
	ts.t.Helper()
	return ts.doFrom("", method, path, token, body)
}

// doFrom sends the request as if it came from ip, which keeps per-IP rate limits apart.
func (ts *testServer) doFrom(ip, method, path, token string, body any) (int, envelope) {
	ts.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(ts.t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	r, err := http.NewRequest(method, ts.server.URL+path, reader)
	require.NoError(ts.t, err)
	if body != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	if ip != "" {
		r.Header.Set("X-Real-IP", ip)
	}

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}
	res, err := client.Do(r)
	require.NoError(ts.t, err)
	defer res.Body.Close()

	var env envelope
	if strings.HasPrefix(res.Header.Get("Content-Type"), "application/json") {
		require.NoError(ts.t, json.NewDecoder(res.Body).Decode(&env))
	}
	return res.StatusCode, env
}

func (ts *testServer) signup(username string) string {
	ts.t.Helper()

	ts.clients++
	ip := fmt.Sprintf("10.0.0.%d", ts.clients)

	status, _ := ts.doFrom(ip, http.MethodPost, "/api/auth/register", "", CredentialsInput{Username: username, Password: "password"})
	require.Equal(ts.t, http.StatusOK, status)

	status, env := ts.doFrom(ip, http.MethodPost, "/api/auth/login", "", CredentialsInput{Username: username, Password: "password"})
	require.Equal(ts.t, http.StatusOK, status)

	var data struct {
		Token string `json:"token"`
	}
	require.NoError(ts.t, json.Unmarshal(env.Data, &data))
	require.NotEmpty(ts.t, data.Token)
	return data.Token
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

type roomBody struct {
	Room struct {
		ID      string   `json:"room_id"`
		Members []string `json:"members"`
	} `json:"room"`
}

type inviteBody struct {
	Invite struct {
		ID     string `json:"invite_id"`
		Status string `json:"status"`
	} `json:"invite"`
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	status, env := ts.do(http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, status)
	require.Zero(t, env.Code)
}

func TestAuthFlow(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t)

	token := ts.signup("alice")

	status, env := ts.do(http.MethodPost, "/api/auth/register", "", CredentialsInput{Username: "alice", Password: "password"})
	req.Equal(http.StatusConflict, status)
	req.Equal(errs.ErrUserAlreadyExists, env.Code)

	status, env = ts.do(http.MethodPost, "/api/auth/login", "", CredentialsInput{Username: "alice", Password: "nope-nope"})
	req.Equal(http.StatusUnauthorized, status)
	req.Equal(errs.ErrInvalidCredentials, env.Code)

	status, _ = ts.do(http.MethodGet, "/api/users", token, nil)
	req.Equal(http.StatusOK, status)

	status, _ = ts.do(http.MethodPost, "/api/auth/logout", token, nil)
	req.Equal(http.StatusOK, status)

	status, env = ts.do(http.MethodGet, "/api/users", token, nil)
	req.Equal(http.StatusUnauthorized, status)
	req.Equal(errs.ErrUnauthorized, env.Code)
}

func TestRoomInviteMessageFlow(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t)

	alice := ts.signup("alice")
	bob := ts.signup("bob")
	carol := ts.signup("carol")

	status, env := ts.do(http.MethodPost, "/api/rooms", alice, CreateRoomInput{Name: "general", Type: "text"})
	req.Equal(http.StatusOK, status)
	general := decode[roomBody](t, env).Room
	req.Equal([]string{"alice"}, general.Members)

	status, _ = ts.do(http.MethodGet, "/api/rooms/"+general.ID, bob, nil)
	req.Equal(http.StatusForbidden, status)

	status, env = ts.do(http.MethodPost, "/api/invites", alice, CreateInviteInput{RoomID: general.ID, ToUser: "bob"})
	req.Equal(http.StatusOK, status)
	inv := decode[inviteBody](t, env).Invite
	req.Equal("pending", inv.Status)

	status, env = ts.do(http.MethodPost, "/api/invites", alice, CreateInviteInput{RoomID: general.ID, ToUser: "bob"})
	req.Equal(http.StatusConflict, status)
	req.Equal(errs.ErrInviteAlreadyPending, env.Code)

	status, env = ts.do(http.MethodGet, "/api/invites", bob, nil)
	req.Equal(http.StatusOK, status)
	req.Contains(string(env.Data), inv.ID)

	status, _ = ts.do(http.MethodPost, "/api/invites/"+inv.ID+"/accept", carol, nil)
	req.Equal(http.StatusForbidden, status)

	status, env = ts.do(http.MethodPost, "/api/invites/"+inv.ID+"/accept", bob, nil)
	req.Equal(http.StatusOK, status)
	req.Equal("accepted", decode[inviteBody](t, env).Invite.Status)

	status, env = ts.do(http.MethodPost, "/api/invites/"+inv.ID+"/decline", bob, nil)
	req.Equal(http.StatusConflict, status)
	req.Equal(errs.ErrInviteNotPending, env.Code)

	status, env = ts.do(http.MethodPost, "/api/rooms/"+general.ID+"/messages", bob, PostMessageInput{
		Content:     "hi",
		Attachments: []message.AttachmentInput{{Name: "a.txt", Data: base64.StdEncoding.EncodeToString([]byte("hello"))}},
	})
	req.Equal(http.StatusOK, status)

	status, env = ts.do(http.MethodPost, "/api/rooms/"+general.ID+"/messages", bob, PostMessageInput{
		Attachments: []message.AttachmentInput{{Name: "big.bin", Data: base64.StdEncoding.EncodeToString(make([]byte, 2048))}},
	})
	req.Equal(http.StatusRequestEntityTooLarge, status)
	req.Equal(errs.ErrAttachmentTooLarge, env.Code)

	status, _ = ts.do(http.MethodPost, "/api/rooms/"+general.ID+"/messages", carol, PostMessageInput{Content: "let me in"})
	req.Equal(http.StatusForbidden, status)

	status, env = ts.do(http.MethodGet, "/api/rooms/"+general.ID+"/messages", alice, nil)
	req.Equal(http.StatusOK, status)
	messages := decode[struct {
		Messages []struct {
			Sender  string `json:"sender"`
			Content string `json:"content"`
		} `json:"messages"`
	}](t, env).Messages
	req.Len(messages, 1)
	req.Equal("bob", messages[0].Sender)

	status, _ = ts.do(http.MethodGet, "/api/rooms/"+general.ID+"/messages", carol, nil)
	req.Equal(http.StatusForbidden, status)

	status, env = ts.do(http.MethodGet, "/api/rooms/"+general.ID+"/attachments?k=rooms/"+general.ID+"/x", alice, nil)
	req.Equal(http.StatusNotFound, status)
	req.Equal(errs.ErrAttachmentNotFound, env.Code)

	status, _ = ts.do(http.MethodGet, "/api/rooms/missing/messages", alice, nil)
	req.Equal(http.StatusNotFound, status)
}

func TestAuthRoutesAreRateLimited(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t)

	creds := CredentialsInput{Username: "nobody", Password: "password"}
	for range AuthBurst {
		status, _ := ts.doFrom("192.0.2.1", http.MethodPost, "/api/auth/login", "", creds)
		req.Equal(http.StatusUnauthorized, status)
	}

	status, env := ts.doFrom("192.0.2.1", http.MethodPost, "/api/auth/login", "", creds)
	req.Equal(http.StatusTooManyRequests, status)
	req.Equal(errs.ErrRateLimitExceeded, env.Code)

	status, _ = ts.doFrom("192.0.2.2", http.MethodPost, "/api/auth/login", "", creds)
	req.Equal(http.StatusUnauthorized, status)
}

func TestRejectsBadBodies(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t)
	token := ts.signup("alice")

	status, env := ts.do(http.MethodPost, "/api/rooms", token, map[string]any{"name": "x", "colour": "red"})
	req.Equal(http.StatusBadRequest, status)
	req.Equal(errs.ErrInvalidJSONFormat, env.Code)

	status, env = ts.do(http.MethodPost, "/api/rooms", token, map[string]any{"name": "x", "type": "video"})
	req.Equal(http.StatusBadRequest, status)
	req.Equal(errs.ErrRoomTypeInvalid, env.Code)

	status, _ = ts.do(http.MethodPost, "/api/rooms", "", CreateRoomInput{Name: "x"})
	req.Equal(http.StatusUnauthorized, status)
}

func (ts *testServer) dial(token, roomID string) (*websocket.Conn, *http.Response, error) {
	url := "ws" + strings.TrimPrefix(ts.server.URL, "http") + "/ws?token=" + token
	if roomID != "" {
		url += "&room_id=" + roomID
	}
	return websocket.DefaultDialer.Dial(url, nil)
}

// readType reads events until one of kind whose fields include every entry of match arrives.
func readType(t *testing.T, ws *websocket.Conn, kind string, match map[string]any) map[string]any {
	t.Helper()

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
next:
	for {
		var m map[string]any
		require.NoError(t, ws.ReadJSON(&m))
		if m["type"] != kind {
			continue
		}
		for k, v := range match {
			if m[k] != v {
				continue next
			}
		}
		return m
	}
}

func TestWebSocketPresenceAndEvents(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t)

	alice := ts.signup("alice")
	bob := ts.signup("bob")

	_, res, err := ts.dial("bogus", "")
	req.Error(err)
	req.Equal(http.StatusUnauthorized, res.StatusCode)

	aliceWS, _, err := ts.dial(alice, "")
	req.NoError(err)
	defer aliceWS.Close()

	bobWS, _, err := ts.dial(bob, "")
	req.NoError(err)
	defer bobWS.Close()

	readType(t, aliceWS, "status", map[string]any{"user": "bob", "online": true})

	_, env := ts.do(http.MethodPost, "/api/rooms", alice, CreateRoomInput{Name: "general"})
	general := decode[roomBody](t, env).Room

	created := readType(t, bobWS, "room_created", nil)
	req.Equal(general.ID, created["room_id"])

	_, env = ts.do(http.MethodPost, "/api/invites", alice, CreateInviteInput{RoomID: general.ID, ToUser: "bob"})
	inv := decode[inviteBody](t, env).Invite

	invited := readType(t, bobWS, "invite", nil)
	req.Equal(inv.ID, invited["invite_id"])
	req.Equal("alice", invited["from"])

	ts.do(http.MethodPost, "/api/invites/"+inv.ID+"/accept", bob, nil)
	response := readType(t, aliceWS, "invite_response", nil)
	req.Equal("accepted", response["status"])

	ts.do(http.MethodPost, "/api/rooms/"+general.ID+"/messages", alice, PostMessageInput{Content: "welcome"})
	msg := readType(t, bobWS, "message", nil)
	req.Equal("welcome", msg["content"])
	req.Equal("alice", msg["sender"])

	req.NoError(bobWS.WriteJSON(map[string]any{"type": "signal", "to": "alice", "room_id": general.ID, "data": map[string]any{"sdp": "x"}}))
	signal := readType(t, aliceWS, "signal", nil)
	req.Equal("bob", signal["from"])

	ts.do(http.MethodPost, "/api/auth/logout", bob, nil)
	offline := readType(t, aliceWS, "status", map[string]any{"user": "bob", "online": false})
	req.NotEmpty(offline["last_seen"])
}

func TestWebSocketRoomParameterRequiresMembership(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t)

	alice := ts.signup("alice")
	bob := ts.signup("bob")

	_, env := ts.do(http.MethodPost, "/api/rooms", alice, CreateRoomInput{Name: "general"})
	general := decode[roomBody](t, env).Room

	_, res, err := ts.dial(bob, general.ID)
	req.Error(err)
	req.Equal(http.StatusForbidden, res.StatusCode)

	ws, _, err := ts.dial(alice, general.ID)
	req.NoError(err)
	ws.Close()
}

func TestReloginKicksPreviousConnection(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t)

	first := ts.signup("alice")
	ws, _, err := ts.dial(first, "")
	req.NoError(err)
	defer ws.Close()

	status, _ := ts.do(http.MethodPost, "/api/auth/login", "", CredentialsInput{Username: "alice", Password: "password"})
	req.Equal(http.StatusOK, status)

	req.NoError(ws.SetReadDeadline(time.Now().Add(2 * time.Second)))
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			req.True(websocket.IsCloseError(err, hub.CloseSessionReplaced), "got %v", err)
			break
		}
	}
}
