// Package apperr implements the error taxonomy the core design assumes:
// validation, auth, not-found, storage, protocol and rate-limit errors,
// each with a distinct propagation policy at the HTTP and socket surfaces.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Category is one of the six design-level error kinds.
type Category int

const (
	Validation Category = iota
	Auth
	NotFound
	Storage
	Protocol
	RateLimit
)

func (c Category) String() string {
	switch c {
	case Validation:
		return "validation"
	case Auth:
		return "auth"
	case NotFound:
		return "not_found"
	case Storage:
		return "storage"
	case Protocol:
		return "protocol"
	case RateLimit:
		return "rate_limit"
	default:
		return "unknown"
	}
}

// Error wraps an underlying cause with its design-level category.
type Error struct {
	Category Category
	Msg      string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Category, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Category, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func New(cat Category, msg string) *Error {
	return &Error{Category: cat, Msg: msg}
}

func Wrap(cat Category, msg string, err error) *Error {
	return &Error{Category: cat, Msg: msg, Err: err}
}

// CategoryOf extracts the Category from err, defaulting to Storage for any
// error that was not produced via this package (unexpected runtime errors
// degrade as storage/runtime failures per the design's propagation policy).
func CategoryOf(err error) Category {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Category
	}
	return Storage
}

// HTTPStatus maps a Category to the HTTP status the design assigns it.
func HTTPStatus(cat Category) int {
	switch cat {
	case Validation:
		return http.StatusBadRequest
	case Auth:
		return http.StatusUnauthorized
	case NotFound:
		return http.StatusNotFound
	case RateLimit:
		return http.StatusTooManyRequests
	case Protocol:
		return http.StatusBadRequest
	case Storage:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

var (
	ErrRoomNotFound       = New(NotFound, "no such room")
	ErrBadPrivateID       = New(Auth, "private id does not match")
	ErrBadCoEditorToken   = New(Auth, "co-editor token is invalid")
	ErrUnauthedMutation   = New(Auth, "connection is not authenticated")
	ErrTitleTooLong       = New(Validation, "title exceeds 36 code points")
	ErrSizeTooLarge       = New(Validation, "dimension exceeds 10000")
	ErrBadEditID          = New(Validation, "edit id must be exactly 36 characters")
	ErrShapeFieldTooLarge = New(Validation, "shape field exceeds its bound")
	ErrImageTooLarge      = New(Validation, "image url exceeds 60000 bytes")
	ErrMalformedFrame     = New(Protocol, "malformed wire frame")
	ErrBanned             = New(RateLimit, "ip is currently banned")
	ErrUserNotFound       = New(NotFound, "no such user")
)
