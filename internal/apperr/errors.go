// Package apperr holds the error values shared across the room engine.
// Wrap them with fmt.Errorf("...: %w", apperr.ErrX) and match with errors.Is.
package apperr

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrConfiguration     = errors.New("configuration error")
	ErrTransient         = errors.New("transient failure")
	ErrUnauthenticated   = errors.New("unauthenticated")
	ErrRoomFull          = errors.New("room is full")
	ErrAlreadyJoined     = errors.New("player already joined")
	ErrInvalidInput      = errors.New("invalid input")

	// ErrCorruptState marks an invariant violation discovered while a game is
	// running. The room is terminated when a command returns it.
	ErrCorruptState = errors.New("corrupt room state")
)

// Code maps an error to the short machine-readable code sent to clients.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrRoomFull):
		return "room_full"
	case errors.Is(err, ErrAlreadyJoined):
		return "already_joined"
	case errors.Is(err, ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, ErrConfiguration), errors.Is(err, ErrInvalidInput):
		return "bad_request"
	default:
		return "internal"
	}
}
