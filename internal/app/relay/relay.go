// Package relay forwards opaque peer negotiation payloads between two members of a room.
package relay

import (
	"context"
	"encoding/json"
	"slices"

	"github.com/rs/zerolog"

	"roomlink/internal/app/event"
	"roomlink/internal/pkg/errs"
	"roomlink/internal/pkg/logx"
)

// Rooms resolves the current members of a room.
type Rooms interface {
	Members(id string) ([]string, error)
}

// Notifier delivers events to a single user.
type Notifier interface {
	SendTo(username string, ev event.Event) int
}

// Relay is a stateless pass-through. It never inspects payloads.
type Relay struct {
	rooms    Rooms
	notifier Notifier
	logger   zerolog.Logger
}

func New(rooms Rooms, notifier Notifier) *Relay {
	return &Relay{
		rooms:    rooms,
		notifier: notifier,
		logger:   logx.Component("relay"),
	}
}

// Relay wraps data as a signal event from from and delivers it to every connection of to.
// Both users must be members of roomID. An offline peer is not an error: the payload is
// dropped.
func (r *Relay) Relay(ctx context.Context, from, to, roomID string, data json.RawMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if to == "" || len(data) == 0 {
		return errs.NewError(errs.ErrInvalidParams)
	}

	members, err := r.rooms.Members(roomID)
	if err != nil {
		return err
	}

	_, fromOK := slices.BinarySearch(members, from)
	_, toOK := slices.BinarySearch(members, to)
	if !fromOK || !toOK {
		return errs.NewError(errs.ErrNotRoomMember)
	}

	delivered := r.notifier.SendTo(to, event.NewSignal(from, roomID, data))

	r.logger.Debug().
		Str("room_id", roomID).
		Str("from", from).
		Str("to", to).
		Int("bytes", len(data)).
		Int("delivered", delivered).
		Msg("Signal relayed.")

	return nil
}
