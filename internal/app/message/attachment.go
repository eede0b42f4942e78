package message

import (
	"encoding/base64"
	"fmt"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"roomlink/internal/app/model"
	"roomlink/internal/pkg/errs"
)

const defaultAttachmentName = "attachment"

// AttachmentInput is an attachment as it arrives from a client. Data is standard base64,
// optionally in data URL form ("data:image/png;base64,...").
type AttachmentInput struct {
	Name     string `json:"name" validate:"max=255"`
	MimeType string `json:"mime_type" validate:"max=255"`
	Data     string `json:"data"`
}

// decodeAttachment turns in into a model attachment, enforcing maxBytes on the decoded
// payload. A missing MIME type is taken from the data URL header or sniffed.
func decodeAttachment(in AttachmentInput, maxBytes int64) (model.Attachment, error) {
	name := sanitizeName(in.Name)
	mimeType := strings.ToLower(strings.TrimSpace(in.MimeType))

	encoded := strings.TrimSpace(in.Data)
	if rest, ok := strings.CutPrefix(encoded, "data:"); ok {
		header, payload, found := strings.Cut(rest, ",")
		mediaType, isBase64 := strings.CutSuffix(header, ";base64")
		if !found || !isBase64 {
			return model.Attachment{}, errs.NewError(errs.ErrAttachmentEncodingInvalid, name)
		}
		if mimeType == "" {
			mimeType = strings.ToLower(mediaType)
		}
		encoded = payload
	}

	if int64(base64.StdEncoding.DecodedLen(len(encoded))) > maxBytes+2 {
		return model.Attachment{}, errs.NewError(errs.ErrAttachmentTooLarge, name)
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return model.Attachment{}, errs.NewError(errs.ErrAttachmentEncodingInvalid, name)
	}
	if int64(len(data)) > maxBytes {
		return model.Attachment{}, errs.NewError(errs.ErrAttachmentTooLarge, name)
	}

	if mimeType == "" {
		mimeType = mimetype.Detect(data).String()
	}

	return model.Attachment{
		Name:     name,
		MimeType: mimeType,
		Size:     int64(len(data)),
		Data:     data,
	}, nil
}

func sanitizeName(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	name = path.Base(name)
	if name == "." || name == "/" || name == "" {
		return defaultAttachmentName
	}
	return name
}

// blobKey is the storage key of attachment index of a message.
func blobKey(roomID, messageID string, index int, name string) string {
	return fmt.Sprintf("rooms/%s/%s/%d-%s", roomID, messageID, index, name)
}

// roomKeyPrefix is the prefix every blob key of roomID starts with.
func roomKeyPrefix(roomID string) string {
	return "rooms/" + roomID + "/"
}
