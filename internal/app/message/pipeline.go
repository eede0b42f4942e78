/*
Package message validates, persists and publishes room messages.

Appends to one room are serialized by a per-room lock that also covers the broadcast, so
every member observes a room's messages in log order. Rooms never contend with each other.
*/
package message

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"roomlink/internal/app/event"
	"roomlink/internal/app/model"
	"roomlink/internal/app/storage"
	"roomlink/internal/app/store"
	"roomlink/internal/pkg/errs"
	"roomlink/internal/pkg/logx"
	"roomlink/internal/pkg/randx"
)

const (
	DefaultMaxContentBytes    = 5000
	DefaultMaxAttachments     = 10
	DefaultMaxAttachmentBytes = 5 * 1024 * 1024

	// DownloadURLDuration is how long a presigned attachment URL stays valid.
	DownloadURLDuration = 5 * time.Minute
)

// Limits bounds what a single message may carry.
type Limits struct {
	MaxContentBytes    int
	MaxAttachments     int
	MaxAttachmentBytes int64
}

// DefaultLimits returns the limits used when none are configured.
func DefaultLimits() Limits {
	return Limits{
		MaxContentBytes:    DefaultMaxContentBytes,
		MaxAttachments:     DefaultMaxAttachments,
		MaxAttachmentBytes: DefaultMaxAttachmentBytes,
	}
}

// Rooms resolves the current members of a room.
type Rooms interface {
	Members(id string) ([]string, error)
}

// Notifier delivers message events to room members.
type Notifier interface {
	Broadcast(usernames []string, ev event.Event) int
}

// Pipeline is the single entry point for writing and reading room logs.
type Pipeline struct {
	// mu protects locks. A room's lock is created on its first post and never removed.
	mu    sync.Mutex
	locks map[string]*sync.Mutex

	rooms    Rooms
	log      store.MessageRepository
	notifier Notifier
	blobs    storage.BlobStore
	limits   Limits
	now      func() time.Time

	logger zerolog.Logger
}

// NewPipeline creates a message pipeline. blobs may be nil, in which case attachment
// payloads are kept inline in the log. Zero limits fall back to the defaults.
func NewPipeline(rooms Rooms, log store.MessageRepository, notifier Notifier, blobs storage.BlobStore, limits Limits) *Pipeline {
	defaults := DefaultLimits()
	if limits.MaxContentBytes <= 0 {
		limits.MaxContentBytes = defaults.MaxContentBytes
	}
	if limits.MaxAttachments <= 0 {
		limits.MaxAttachments = defaults.MaxAttachments
	}
	if limits.MaxAttachmentBytes <= 0 {
		limits.MaxAttachmentBytes = defaults.MaxAttachmentBytes
	}

	return &Pipeline{
		locks:    make(map[string]*sync.Mutex),
		rooms:    rooms,
		log:      log,
		notifier: notifier,
		blobs:    blobs,
		limits:   limits,
		now:      time.Now,
		logger:   logx.Component("message"),
	}
}

func (p *Pipeline) roomLock(roomID string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()

	l, ok := p.locks[roomID]
	if !ok {
		l = &sync.Mutex{}
		p.locks[roomID] = l
	}
	return l
}

// Post appends a message from sender to roomID and broadcasts it to the room's members.
// Nothing is persisted or broadcast when validation fails.
func (p *Pipeline) Post(ctx context.Context, roomID, sender, content string, inputs []AttachmentInput) (model.Message, error) {
	if err := p.checkMember(roomID, sender); err != nil {
		return model.Message{}, err
	}

	if strings.TrimSpace(content) == "" && len(inputs) == 0 {
		return model.Message{}, errs.NewError(errs.ErrMessageEmpty)
	}
	if len(content) > p.limits.MaxContentBytes {
		return model.Message{}, errs.NewError(errs.ErrMessageContentTooLong)
	}
	if len(inputs) > p.limits.MaxAttachments {
		return model.Message{}, errs.NewError(errs.ErrAttachmentCountInvalid, p.limits.MaxAttachments)
	}

	attachments := make([]model.Attachment, 0, len(inputs))
	for _, in := range inputs {
		a, err := decodeAttachment(in, p.limits.MaxAttachmentBytes)
		if err != nil {
			return model.Message{}, err
		}
		attachments = append(attachments, a)
	}

	msg := model.Message{
		ID:          randx.MessageID(),
		RoomID:      roomID,
		Sender:      sender,
		Content:     content,
		Attachments: attachments,
	}

	if err := p.offload(ctx, &msg); err != nil {
		return model.Message{}, err
	}

	lock := p.roomLock(roomID)
	lock.Lock()
	defer lock.Unlock()

	members, err := p.rooms.Members(roomID)
	if err != nil {
		p.discard(msg)
		return model.Message{}, err
	}
	if _, found := slices.BinarySearch(members, sender); !found {
		p.discard(msg)
		return model.Message{}, errs.NewError(errs.ErrNotRoomMember)
	}

	msg.CreatedAt = p.now().UTC()
	if err := p.log.AppendMessage(ctx, msg); err != nil {
		p.discard(msg)
		return model.Message{}, errs.NewError(errs.ErrStorageFailed, err)
	}

	delivered := p.notifier.Broadcast(members, event.NewMessage(msg))

	p.logger.Debug().
		Str("room_id", roomID).
		Str("message_id", msg.ID).
		Str("sender", sender).
		Int("attachments", len(msg.Attachments)).
		Int("delivered", delivered).
		Msg("Message posted.")

	return msg, nil
}

func (p *Pipeline) checkMember(roomID, username string) error {
	members, err := p.rooms.Members(roomID)
	if err != nil {
		return err
	}
	if _, found := slices.BinarySearch(members, username); !found {
		return errs.NewError(errs.ErrNotRoomMember)
	}
	return nil
}

// offload moves attachment payloads to blob storage when it is configured.
func (p *Pipeline) offload(ctx context.Context, msg *model.Message) error {
	if p.blobs == nil {
		return nil
	}

	for i := range msg.Attachments {
		a := &msg.Attachments[i]
		key := blobKey(msg.RoomID, msg.ID, i, a.Name)

		if err := p.blobs.Put(ctx, key, a.MimeType, a.Data); err != nil {
			p.discard(*msg)
			return errs.NewError(errs.ErrFileStorageFailed, err)
		}

		a.Key = key
		a.Data = nil
	}
	return nil
}

// discard removes blobs uploaded for a message that was never appended.
func (p *Pipeline) discard(msg model.Message) {
	if p.blobs == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, a := range msg.Attachments {
		if a.Key == "" {
			continue
		}
		if err := p.blobs.Delete(ctx, a.Key); err != nil {
			p.logger.Warn().Err(err).Str("key", a.Key).Msg("Failed to remove orphaned blob.")
		}
	}
}

// List returns the log of roomID, oldest first.
func (p *Pipeline) List(ctx context.Context, roomID string) ([]model.Message, error) {
	if _, err := p.rooms.Members(roomID); err != nil {
		return nil, err
	}

	messages, err := p.log.LoadRoomLog(ctx, roomID)
	if err != nil {
		return nil, errs.NewError(errs.ErrStorageFailed, err)
	}
	if messages == nil {
		messages = []model.Message{}
	}
	return messages, nil
}

// DownloadURL returns a short-lived URL for an offloaded attachment of roomID.
func (p *Pipeline) DownloadURL(ctx context.Context, roomID, key string) (string, error) {
	if p.blobs == nil || !strings.HasPrefix(key, roomKeyPrefix(roomID)) || strings.Contains(key, "..") {
		return "", errs.NewError(errs.ErrAttachmentNotFound)
	}

	url, err := p.blobs.PresignDownload(ctx, key, DownloadURLDuration)
	if err != nil {
		return "", errs.NewError(errs.ErrFileStorageFailed, err)
	}
	return url, nil
}
