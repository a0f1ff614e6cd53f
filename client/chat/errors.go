package chat

import (
	"errors"
	"fmt"
	"time"
)

// Error kinds, for errors.Is.
var (
	ErrValidation   = errors.New("validation error")
	ErrAuth         = errors.New("auth error")
	ErrConnectivity = errors.New("connectivity error")
	ErrSubmit       = errors.New("submit error")
	ErrRateLimited  = errors.New("rate limited")
)

// Error is the typed failure returned by the client operations.
type Error struct {
	Op     string
	Kind   error
	Status int    // HTTP status, when the server answered
	Msg    string // server or validation message, safe to show
	// RetryAfter is set for ErrRateLimited when the server sent Retry-After.
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Status != 0:
		return fmt.Sprintf("%s: %v (status %d): %s", e.Op, e.Kind, e.Status, e.Msg)
	case e.Msg != "":
		return fmt.Sprintf("%s: %v: %s", e.Op, e.Kind, e.Msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
}

// Is matches the kind sentinel.
func (e *Error) Is(target error) bool { return target == e.Kind }

func (e *Error) Unwrap() error { return e.Err }
