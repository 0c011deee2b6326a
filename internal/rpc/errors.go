package rpc

import (
	"errors"
	"fmt"
)

// Domain error kinds surfaced by the client. The client applies no retry —
// callers decide what a Transient failure means for them (the engine relies
// on the next poll, the façade returns a 5xx).
var (
	ErrTransient       = errors.New("transient rpc failure")
	ErrNotFound        = errors.New("not found")
	ErrInvalidArgument = errors.New("invalid argument")
)

// RevertError is an on-chain abort: the transaction executed and failed
// deterministically. Never retryable.
type RevertError struct {
	Code   int64
	Reason string
}

func (e *RevertError) Error() string {
	return fmt.Sprintf("reverted with code %d: %s", e.Code, e.Reason)
}

// Transient wraps a network-shaped failure (timeout, 5xx, connection error).
func Transient(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrTransient, fmt.Sprintf(format, args...))
}

// NotFound wraps a missing-object failure.
func NotFound(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// InvalidArgument wraps a request-validation failure.
func InvalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// IsTransient reports whether err is network-shaped.
func IsTransient(err error) bool { return errors.Is(err, ErrTransient) }

// IsNotFound reports whether err is a missing object or intent.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// AsRevert extracts a RevertError if err is an on-chain abort.
func AsRevert(err error) (*RevertError, bool) {
	var rev *RevertError
	if errors.As(err, &rev) {
		return rev, true
	}
	return nil, false
}

// Reverted constructs an abort error from the node's failure status string.
func Reverted(code int64, reason string) error {
	return &RevertError{Code: code, Reason: reason}
}
