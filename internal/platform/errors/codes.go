// Package errors provides structured error handling shared across services.
package errors

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Message errors
	CodeMessageContentEmpty     Code = "MESSAGE_CONTENT_EMPTY"
	CodeMessageContentTooLong   Code = "MESSAGE_CONTENT_TOO_LONG"
	CodeMessageKindInvalid      Code = "MESSAGE_KIND_INVALID"
	CodeMessageKindReserved     Code = "MESSAGE_KIND_RESERVED"
	CodeMessageFileRefRequired  Code = "MESSAGE_FILE_REF_REQUIRED"
	CodeMessageFileRefForbidden Code = "MESSAGE_FILE_REF_FORBIDDEN"
	CodeMessageProjectEmpty     Code = "MESSAGE_PROJECT_EMPTY"
	CodeMessageSenderUnknown    Code = "MESSAGE_SENDER_UNKNOWN"

	// Handshake/session errors
	CodeTokenMissing          Code = "TOKEN_MISSING"
	CodeTokenInvalid          Code = "TOKEN_INVALID"
	CodeTokenExpired          Code = "TOKEN_EXPIRED"
	CodeProjectNotFound       Code = "PROJECT_NOT_FOUND"
	CodeProjectMemberRequired Code = "PROJECT_MEMBER_REQUIRED"

	// Notification errors
	CodeNotificationRecipientEmpty Code = "NOTIFICATION_RECIPIENT_EMPTY"
	CodeNotificationTopicInvalid   Code = "NOTIFICATION_TOPIC_INVALID"

	// Transport budget errors
	CodeRateLimited     Code = "RATE_LIMITED"
	CodePayloadTooLarge Code = "PAYLOAD_TOO_LARGE"

	// Storage errors
	CodeNotFound           Code = "NOT_FOUND"
	CodeConflict           Code = "CONFLICT"
	CodeStorageUnavailable Code = "STORAGE_UNAVAILABLE"
)

// Wire status strings carried by error frames and shared with clients.
const (
	WireInvalidArgument    = "INVALID_ARGUMENT"
	WireUnauthenticated    = "UNAUTHENTICATED"
	WireForbidden          = "FORBIDDEN"
	WireNotFound           = "NOT_FOUND"
	WireFailedPrecondition = "FAILED_PRECONDITION"
	WireResourceExhausted  = "RESOURCE_EXHAUSTED"
	WireUnavailable        = "UNAVAILABLE"
	WireInternal           = "INTERNAL"
)

// WireCode maps domain codes to the status strings carried by error frames.
func (c Code) WireCode() string {
	switch c {
	// InvalidArgument - the request itself is malformed
	case CodeMessageContentEmpty,
		CodeMessageContentTooLong,
		CodeMessageKindInvalid,
		CodeMessageKindReserved,
		CodeMessageFileRefRequired,
		CodeMessageFileRefForbidden,
		CodeMessageProjectEmpty,
		CodeNotificationRecipientEmpty,
		CodeNotificationTopicInvalid:
		return WireInvalidArgument

	// Unauthenticated - identity missing or unverifiable
	case CodeTokenMissing,
		CodeTokenInvalid,
		CodeTokenExpired,
		CodeMessageSenderUnknown:
		return WireUnauthenticated

	// Forbidden - identity verified but not allowed
	case CodeProjectMemberRequired:
		return WireForbidden

	// NotFound - the addressed resource is missing
	case CodeNotFound,
		CodeProjectNotFound:
		return WireNotFound

	// FailedPrecondition - state doesn't allow the operation
	case CodeConflict:
		return WireFailedPrecondition

	// ResourceExhausted - per-connection budgets
	case CodeRateLimited,
		CodePayloadTooLarge:
		return WireResourceExhausted

	// Unavailable - a collaborator is down
	case CodeStorageUnavailable:
		return WireUnavailable

	default:
		return WireInternal
	}
}

// Retryable reports whether clients may retry the failed operation
// without changing the request.
func (c Code) Retryable() bool {
	switch c {
	case CodeRateLimited, CodeStorageUnavailable:
		return true
	default:
		return false
	}
}
