package leads

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel error kinds (stable for errors.Is and for mapping to API status codes).
var (
	ErrInvalidInput = errors.New("invalid_input")
	ErrRateLimited  = errors.New("rate_limited")
)

// ValidationError carries the per-field messages of a rejected capture request.
type ValidationError struct {
	Op     string
	Fields map[string]string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Op, ErrInvalidInput, e.Fields)
}

func (e ValidationError) Unwrap() error { return ErrInvalidInput }

// RateLimitError reports a refused capture and when the window reopens.
type RateLimitError struct {
	Op         string
	RetryAfter time.Duration
}

func (e RateLimitError) Error() string {
	return fmt.Sprintf("%s: %v: retry after %s", e.Op, ErrRateLimited, e.RetryAfter)
}

func (e RateLimitError) Unwrap() error { return ErrRateLimited }
