/*
Package errs provides custom error types and application-level error code constants.

This file defines the map from error codes to the CustomError struct, used to standardize
HTTP responses, realtime error events and internal error handling.
*/
package errs

import "net/http"

// errorMap stores the detailed CustomError struct corresponding to every application error code.
var errorMap = map[int]CustomError{
	// 1xxx: General Request Handling Errors
	ErrInvalidParams:         {Code: ErrInvalidParams, Kind: KindInvalidRequest, Message: "Invalid request parameters."},
	ErrUnsupportedMediaType:  {Code: ErrUnsupportedMediaType, Kind: KindInvalidRequest, Message: "Unsupported request format."},
	ErrInvalidJSONFormat:     {Code: ErrInvalidJSONFormat, Kind: KindInvalidRequest, Message: "Unsupported request format."},
	ErrExtraContentInBody:    {Code: ErrExtraContentInBody, Kind: KindInvalidRequest, Message: "Request contains unexpected data."},
	ErrRequestEntityTooLarge: {Code: ErrRequestEntityTooLarge, Kind: KindPayloadTooLarge, Message: "Request size is too large."},
	ErrRateLimitExceeded:     {Code: ErrRateLimitExceeded, Kind: KindRateLimited, Message: "Too many requests. Please try again later."},
	ErrUnsupportedEnvelope:   {Code: ErrUnsupportedEnvelope, Kind: KindInvalidRequest, Message: "Unsupported message type."},

	// 2xxx: Room and Content Business Logic Errors
	ErrRoomTypeInvalid:           {Code: ErrRoomTypeInvalid, Kind: KindInvalidRequest, Message: "Invalid room type."},
	ErrRoomNameInvalid:           {Code: ErrRoomNameInvalid, Kind: KindInvalidRequest, Message: "Room name must be 1 to %d characters."},
	ErrRoomNotFound:              {Code: ErrRoomNotFound, Kind: KindNotFound, Message: "Room not found."},
	ErrNotRoomMember:             {Code: ErrNotRoomMember, Kind: KindForbidden, Message: "You are not a member of this room."},
	ErrMessageContentTooLong:     {Code: ErrMessageContentTooLong, Kind: KindInvalidRequest, Message: "Message is too long."},
	ErrMessageEmpty:              {Code: ErrMessageEmpty, Kind: KindInvalidRequest, Message: "Message is empty."},
	ErrAttachmentTooLarge:        {Code: ErrAttachmentTooLarge, Kind: KindPayloadTooLarge, Message: "Attachment %q is too large."},
	ErrAttachmentCountInvalid:    {Code: ErrAttachmentCountInvalid, Kind: KindInvalidRequest, Message: "A message can carry at most %d attachments."},
	ErrAttachmentEncodingInvalid: {Code: ErrAttachmentEncodingInvalid, Kind: KindInvalidRequest, Message: "Attachment %q is not valid base64."},
	ErrAttachmentNotFound:        {Code: ErrAttachmentNotFound, Kind: KindNotFound, Message: "Attachment not found."},

	// 3xxx: User, Session, and Security Errors
	ErrSessionKicked:      {Code: ErrSessionKicked, Kind: KindUnauthorized, Message: "You were signed in on another device."},
	ErrUnauthorized:       {Code: ErrUnauthorized, Kind: KindUnauthorized, Message: "Please sign in to continue."},
	ErrInvalidUsername:    {Code: ErrInvalidUsername, Kind: KindInvalidRequest, Message: "Invalid username."},
	ErrInvalidPassword:    {Code: ErrInvalidPassword, Kind: KindInvalidRequest, Message: "Invalid password."},
	ErrUserAlreadyExists:  {Code: ErrUserAlreadyExists, Kind: KindConflict, Message: "Username is already taken."},
	ErrInvalidCredentials: {Code: ErrInvalidCredentials, Kind: KindUnauthorized, Message: "Incorrect username or password."},
	ErrUserNotFound:       {Code: ErrUserNotFound, Kind: KindNotFound, Message: "User not found."},
	ErrSessionExpired:     {Code: ErrSessionExpired, Kind: KindUnauthorized, Message: "Your session has expired. Please sign in again."},

	// 4xxx: Invite Errors
	ErrInviteNotFound:       {Code: ErrInviteNotFound, Kind: KindNotFound, Message: "Invite not found."},
	ErrInviteNotPending:     {Code: ErrInviteNotPending, Kind: KindInvalidState, Message: "Invite is no longer pending."},
	ErrInviteAlreadyPending: {Code: ErrInviteAlreadyPending, Kind: KindConflict, Message: "An invite for this user is already pending."},
	ErrAlreadyRoomMember:    {Code: ErrAlreadyRoomMember, Kind: KindConflict, Message: "User is already a member of this room."},
	ErrInviteSelf:           {Code: ErrInviteSelf, Kind: KindInvalidRequest, Message: "You cannot invite yourself."},
	ErrInviteNotRecipient:   {Code: ErrInviteNotRecipient, Kind: KindForbidden, Message: "This invite is addressed to someone else."},

	// 5xxx: Internal System Errors
	ErrUnknown:           {Code: ErrUnknown, Kind: KindInternal, Message: "Something went wrong. Please try again."},
	ErrStorageFailed:     {Code: ErrStorageFailed, Kind: KindInternal, Message: "Storage is unavailable. Please try again."},
	ErrFileStorageFailed: {Code: ErrFileStorageFailed, Kind: KindInternal, Message: "File upload failed. Please try again."},
}

// kindStatus maps every error kind to the HTTP status used when the error reaches a client.
var kindStatus = map[Kind]int{
	KindInvalidRequest:  http.StatusBadRequest,
	KindUnauthorized:    http.StatusUnauthorized,
	KindForbidden:       http.StatusForbidden,
	KindNotFound:        http.StatusNotFound,
	KindInvalidState:    http.StatusConflict,
	KindConflict:        http.StatusConflict,
	KindPayloadTooLarge: http.StatusRequestEntityTooLarge,
	KindRateLimited:     http.StatusTooManyRequests,
	KindInternal:        http.StatusInternalServerError,
}
