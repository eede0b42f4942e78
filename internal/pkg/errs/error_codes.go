/*
Package errs provides custom error types and application-level error code constants.

These error codes identify specific business or system errors both inside the server
and in the JSON/WebSocket payloads returned to clients.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates that the request header Content-Type is not supported.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates that the request body JSON format is incorrect.
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates that the request body contained extra content after valid JSON data.
	ErrExtraContentInBody = 1004

	// ErrRequestEntityTooLarge indicates that the request body size exceeded the server limit.
	ErrRequestEntityTooLarge = 1006

	// ErrRateLimitExceeded indicates that the request rate has exceeded the set limit.
	ErrRateLimitExceeded = 1007

	// ErrUnsupportedEnvelope indicates that a realtime envelope kind is not accepted on the channel.
	ErrUnsupportedEnvelope = 1008
)

// 2xxx: Room and Content Business Logic Errors
const (
	// ErrRoomTypeInvalid indicates that an invalid room type was provided during creation.
	ErrRoomTypeInvalid = 2101

	// ErrRoomNameInvalid indicates an empty or overly long room name.
	ErrRoomNameInvalid = 2102

	// ErrRoomNotFound indicates that the referenced room does not exist.
	ErrRoomNotFound = 2103

	// ErrNotRoomMember indicates that the actor or target user is not a member of the room.
	ErrNotRoomMember = 2105

	// ErrMessageContentTooLong indicates that the message content exceeded the maximum length limit.
	ErrMessageContentTooLong = 2201

	// ErrMessageEmpty indicates a message with neither content nor attachments.
	ErrMessageEmpty = 2202

	// ErrAttachmentTooLarge indicates that a decoded attachment exceeds the configured maximum.
	ErrAttachmentTooLarge = 2203

	// ErrAttachmentCountInvalid indicates that too many attachments were sent in one message.
	ErrAttachmentCountInvalid = 2204

	// ErrAttachmentEncodingInvalid indicates that an attachment payload is not valid base64.
	ErrAttachmentEncodingInvalid = 2205

	// ErrAttachmentNotFound indicates that the requested attachment key is unknown.
	ErrAttachmentNotFound = 2206
)

// 3xxx: User, Session, and Security Errors
const (
	// ErrSessionKicked indicates that the connection was closed because its session was replaced.
	ErrSessionKicked = 3004

	// ErrUnauthorized indicates a missing, invalid or revoked session token.
	ErrUnauthorized = 3005

	// ErrInvalidUsername indicates that the username does not satisfy the format rules.
	ErrInvalidUsername = 3006

	// ErrInvalidPassword indicates that the password does not satisfy the length rules.
	ErrInvalidPassword = 3007

	// ErrUserAlreadyExists indicates that the username is already registered.
	ErrUserAlreadyExists = 3008

	// ErrInvalidCredentials indicates a failed credential check during login.
	ErrInvalidCredentials = 3009

	// ErrUserNotFound indicates that the referenced user is unknown.
	ErrUserNotFound = 3010

	// ErrSessionExpired indicates that the connection was closed because its session lifetime ended.
	ErrSessionExpired = 3011
)

// 4xxx: Invite Errors
const (
	// ErrInviteNotFound indicates that the referenced invite does not exist.
	ErrInviteNotFound = 4001

	// ErrInviteNotPending indicates a transition attempted on an accepted, declined or expired invite.
	ErrInviteNotPending = 4002

	// ErrInviteAlreadyPending indicates that a pending invite exists for the same room and recipient.
	ErrInviteAlreadyPending = 4003

	// ErrAlreadyRoomMember indicates that the invite recipient is already a member of the room.
	ErrAlreadyRoomMember = 4004

	// ErrInviteSelf indicates that the sender tried to invite themselves.
	ErrInviteSelf = 4005

	// ErrInviteNotRecipient indicates that only the invite recipient may answer it.
	ErrInviteNotRecipient = 4006
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified, general server internal error.
	ErrUnknown = 5000

	// ErrStorageFailed indicates that the persistence collaborator rejected a write or read.
	ErrStorageFailed = 5001

	// ErrFileStorageFailed indicates that the blob storage rejected an upload or presign call.
	ErrFileStorageFailed = 5002
)
