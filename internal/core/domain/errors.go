package domain

import "errors"

var (
	ErrAppNotFound     = errors.New("app not found")
	ErrContactNotFound = errors.New("contact not found")
	ErrMessageNotFound = errors.New("message not found")
	ErrTagNotFound     = errors.New("tag not found")
	ErrTagExists       = errors.New("tag already exists")
	ErrInvalidPayload  = errors.New("invalid message payload")
	ErrMalformedEvent  = errors.New("malformed webhook event")
	ErrSendFailed      = errors.New("provider send failed")
	ErrBadTransition   = errors.New("illegal status transition")
)

// ErrorCode maps a domain error to the wire-level error code sent to
// clients and webhook callers.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrAppNotFound),
		errors.Is(err, ErrContactNotFound),
		errors.Is(err, ErrMessageNotFound),
		errors.Is(err, ErrTagNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidPayload), errors.Is(err, ErrMalformedEvent):
		return "invalid_payload"
	case errors.Is(err, ErrSendFailed):
		return "send_failed"
	case errors.Is(err, ErrBadTransition), errors.Is(err, ErrTagExists):
		return "conflict"
	default:
		return "internal"
	}
}
