/*
Package session is the session registry: it issues opaque session tokens on login,
resolves tokens to usernames and keeps presence stamps of every user up to date.

A user holds at most one active session. Logging in again revokes the previous session
and kicks the connections that were opened with it. A session that reaches its expiry is
revoked the same way, whether or not it is used again.
*/
package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"roomlink/internal/app/model"
	"roomlink/internal/app/store"
	"roomlink/internal/pkg/auth/jwt"
	"roomlink/internal/pkg/errs"
	"roomlink/internal/pkg/logx"
	"roomlink/internal/pkg/randx"
)

const presenceWriteTimeout = 5 * time.Second

// Credentials verifies username/password pairs.
type Credentials interface {
	Verify(ctx context.Context, username, password string) error
}

// Connections is the part of the connection hub the registry drives.
type Connections interface {
	CloseSession(username, sessionID, reason string) bool
	AnnounceOffline(username string) bool
	IsOnline(username string) bool
}

// Registry maps session tokens to users.
type Registry struct {
	// mu protects sessions, active and timers.
	mu       sync.RWMutex
	sessions map[string]model.Session
	active   map[string]string
	timers   map[string]*time.Timer

	creds  Credentials
	users  store.UserRepository
	conns  Connections
	secret string
	ttl    time.Duration
	now    func() time.Time

	logger zerolog.Logger
}

// NewRegistry creates a registry signing tokens with secret. ttl bounds the lifetime of
// a session; zero selects jwt.SessionExpiration.
func NewRegistry(creds Credentials, users store.UserRepository, conns Connections, secret string, ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = jwt.SessionExpiration
	}

	return &Registry{
		sessions: make(map[string]model.Session),
		active:   make(map[string]string),
		timers:   make(map[string]*time.Timer),
		creds:    creds,
		users:    users,
		conns:    conns,
		secret:   secret,
		ttl:      ttl,
		now:      time.Now,
		logger:   logx.Component("session"),
	}
}

// Login verifies the credentials and opens a new session, replacing any previous one.
func (r *Registry) Login(ctx context.Context, username, password string) (model.Session, error) {
	if err := r.creds.Verify(ctx, username, password); err != nil {
		return model.Session{}, err
	}

	now := r.now()
	sess := model.Session{
		ID:        randx.SessionID(),
		Username:  username,
		CreatedAt: now.UTC(),
		ExpiresAt: now.Add(r.ttl).UTC(),
	}

	token, err := jwt.GenerateToken(username, sess.ID, r.secret, now, r.ttl)
	if err != nil {
		return model.Session{}, errs.NewError(errs.ErrUnknown, err)
	}
	sess.Token = token

	r.mu.Lock()
	previous, hadPrevious := r.active[username]
	if hadPrevious {
		r.dropLocked(previous)
	}
	r.sessions[sess.ID] = sess
	r.active[username] = sess.ID
	id := sess.ID
	r.timers[id] = time.AfterFunc(r.ttl, func() { r.expire(id) })
	r.mu.Unlock()

	if hadPrevious {
		r.conns.CloseSession(username, previous, errs.NewError(errs.ErrSessionKicked).Message)
	}

	r.logger.Info().Str("username", username).Bool("replaced", hadPrevious).Msg("Session opened.")
	return sess, nil
}

// Authenticate resolves token to its username.
func (r *Registry) Authenticate(token string) (string, error) {
	sess, err := r.Session(token)
	if err != nil {
		return "", err
	}
	return sess.Username, nil
}

// Session resolves token to its active session.
func (r *Registry) Session(token string) (model.Session, error) {
	if token == "" {
		return model.Session{}, errs.NewError(errs.ErrUnauthorized)
	}

	payload, err := jwt.ParseToken(token, r.secret)
	if err != nil {
		return model.Session{}, errs.NewError(errs.ErrUnauthorized)
	}

	r.mu.RLock()
	sess, ok := r.sessions[payload.SessionID()]
	r.mu.RUnlock()

	if !ok || sess.Username != payload.Username {
		return model.Session{}, errs.NewError(errs.ErrUnauthorized)
	}

	if !r.now().Before(sess.ExpiresAt) {
		r.expire(sess.ID)
		return model.Session{}, errs.NewError(errs.ErrUnauthorized)
	}

	return sess, nil
}

// Logout invalidates token and closes the connections opened with it. If the user is left
// without connections, the offline transition is stamped and broadcast.
func (r *Registry) Logout(ctx context.Context, token string) error {
	sess, err := r.Session(token)
	if err != nil {
		return err
	}

	r.revoke(sess)

	if wentOffline := r.conns.CloseSession(sess.Username, sess.ID, "Signed out."); wentOffline {
		r.logger.Info().Str("username", sess.Username).Msg("Session closed, user went offline.")
		return nil
	}

	announced := r.conns.AnnounceOffline(sess.Username)

	r.logger.Info().Str("username", sess.Username).Bool("announced_offline", announced).Msg("Session closed.")
	return nil
}

// expire revokes session id once its lifetime ended and kicks its connections. It is the
// session timer callback and also runs when an expired token is presented first.
func (r *Registry) expire(id string) {
	r.mu.Lock()
	sess, ok := r.sessions[id]
	if ok {
		r.dropLocked(id)
	}
	r.mu.Unlock()

	if !ok {
		return
	}

	r.conns.CloseSession(sess.Username, sess.ID, errs.NewError(errs.ErrSessionExpired).Message)
	r.logger.Info().Str("username", sess.Username).Msg("Session expired.")
}

func (r *Registry) revoke(sess model.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.dropLocked(sess.ID)
}

// dropLocked removes session id and stops its timer. It runs with mu held.
func (r *Registry) dropLocked(id string) {
	sess, ok := r.sessions[id]
	if !ok {
		return
	}

	delete(r.sessions, id)
	if r.active[sess.Username] == id {
		delete(r.active, sess.Username)
	}
	if t, ok := r.timers[id]; ok {
		t.Stop()
		delete(r.timers, id)
	}
}

// Shutdown stops every session timer. Sessions are not persisted, so nothing else is kept.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, t := range r.timers {
		t.Stop()
		delete(r.timers, id)
	}
}

// OnPresence persists a presence transition. It is installed as the hub presence hook.
func (r *Registry) OnPresence(username string, online bool, at time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), presenceWriteTimeout)
	defer cancel()

	if err := r.users.UpdatePresence(ctx, username, online, at); err != nil {
		r.logger.Error().Err(err).Str("username", username).Bool("online", online).Msg("Failed to persist presence.")
	}
}

// Users lists every known user. The online flag reflects live connections at query time.
func (r *Registry) Users(ctx context.Context) ([]model.User, error) {
	users, err := r.users.ListUsers(ctx)
	if err != nil {
		return nil, errs.NewError(errs.ErrStorageFailed, err)
	}

	for i := range users {
		users[i].Online = r.conns.IsOnline(users[i].Username)
	}

	return users, nil
}
