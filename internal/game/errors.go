// internal/game/errors.go
package game

import (
	"errors"
	"fmt"
)

// Kind classifies engine failures so callers can map them to a transport
// status. Every precondition is checked before any state is staged, so an
// error of any kind means the operation had zero side effects.
type Kind int

const (
	// KindNotFound means the game or one of its documents does not exist.
	KindNotFound Kind = iota + 1
	// KindPermissionDenied means the caller is not the dealer / active player
	// / host the operation requires.
	KindPermissionDenied
	// KindFailedPrecondition means the game is in the wrong status or round
	// state, or the table itself cannot proceed (no cards left, no players
	// with lives).
	KindFailedPrecondition
	// KindInvalidArgument means the request payload is malformed.
	KindInvalidArgument
	// KindInternal means an engine invariant was violated; it indicates a
	// bug, not a user error.
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not-found"
	case KindPermissionDenied:
		return "permission-denied"
	case KindFailedPrecondition:
		return "failed-precondition"
	case KindInvalidArgument:
		return "invalid-argument"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error is the engine's error type: a kind plus a human-readable reason.
type Error struct {
	Kind   Kind
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

// Errorf builds an *Error with a formatted reason.
func Errorf(kind Kind, format string, args ...interface{}) error {
	return &Error{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// KindOf extracts the Kind from err, or KindInternal if err is not an engine
// error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
