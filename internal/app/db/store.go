package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"roomlink/internal/app/model"
	"roomlink/internal/app/store"
)

// Store implements store.Store on a pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

var _ store.Store = (*Store)(nil)

// NewStore wraps pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) CreateUser(ctx context.Context, user model.User) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (username, password_hash, created_at) VALUES ($1, $2, $3)`,
		user.Username, user.PasswordHash, user.CreatedAt,
	)
	return translate(err)
}

func (s *Store) GetUser(ctx context.Context, username string) (model.User, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT username, password_hash, online, last_seen, created_at FROM users WHERE username = $1`,
		username,
	)
	user, err := scanUser(row)
	return user, translate(err)
}

func (s *Store) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT username, password_hash, online, last_seen, created_at FROM users ORDER BY username`,
	)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (s *Store) UpdatePresence(ctx context.Context, username string, online bool, lastSeen time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET online = $2, last_seen = $3 WHERE username = $1`,
		username, online, lastSeen,
	)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) SaveRoom(ctx context.Context, room model.Room) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO rooms (id, name, room_type, owner, members, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, members = EXCLUDED.members`,
		room.ID, room.Name, string(room.Type), room.Owner, room.Members, room.CreatedAt,
	)
	return translate(err)
}

func (s *Store) LoadAllRooms(ctx context.Context) ([]model.Room, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, room_type, owner, members, created_at FROM rooms ORDER BY created_at`,
	)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var rooms []model.Room
	for rows.Next() {
		var (
			room     model.Room
			roomType string
		)
		if err := rows.Scan(&room.ID, &room.Name, &roomType, &room.Owner, &room.Members, &room.CreatedAt); err != nil {
			return nil, err
		}
		room.Type = model.RoomType(roomType)
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}

func (s *Store) AppendMessage(ctx context.Context, msg model.Message) error {
	attachments, err := json.Marshal(msg.Attachments)
	if err != nil {
		return fmt.Errorf("marshal attachments: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO messages (id, room_id, sender, content, attachments, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		msg.ID, msg.RoomID, msg.Sender, msg.Content, attachments, msg.CreatedAt,
	)
	return translate(err)
}

func (s *Store) LoadRoomLog(ctx context.Context, roomID string) ([]model.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, room_id, sender, content, attachments, created_at
		FROM messages WHERE room_id = $1 ORDER BY seq`,
		roomID,
	)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	messages := []model.Message{}
	for rows.Next() {
		var (
			msg         model.Message
			attachments []byte
		)
		if err := rows.Scan(&msg.ID, &msg.RoomID, &msg.Sender, &msg.Content, &attachments, &msg.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(attachments, &msg.Attachments); err != nil {
			return nil, fmt.Errorf("unmarshal attachments of message %s: %w", msg.ID, err)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func (s *Store) SaveInvite(ctx context.Context, inv model.Invite) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO invites (id, room_id, sender, recipient, status, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status`,
		inv.ID, inv.RoomID, inv.Sender, inv.Recipient, string(inv.Status), inv.CreatedAt, inv.ExpiresAt,
	)
	return translate(err)
}

func (s *Store) LoadInvites(ctx context.Context) ([]model.Invite, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, room_id, sender, recipient, status, created_at, expires_at
		FROM invites ORDER BY created_at`,
	)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var invites []model.Invite
	for rows.Next() {
		var (
			inv    model.Invite
			status string
		)
		if err := rows.Scan(&inv.ID, &inv.RoomID, &inv.Sender, &inv.Recipient, &status, &inv.CreatedAt, &inv.ExpiresAt); err != nil {
			return nil, err
		}
		inv.Status = model.InviteStatus(status)
		invites = append(invites, inv)
	}
	return invites, rows.Err()
}

func scanUser(row pgx.Row) (model.User, error) {
	var user model.User
	err := row.Scan(&user.Username, &user.PasswordHash, &user.Online, &user.LastSeen, &user.CreatedAt)
	return user, err
}
