package session

import "errors"

var (
	// ErrInvalidToken is returned when an access token fails verification or validation.
	ErrInvalidToken = errors.New("invalid token")

	// ErrForbidden is returned when a valid token lacks the required role.
	ErrForbidden = errors.New("forbidden")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid config")
)
