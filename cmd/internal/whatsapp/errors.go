package whatsapp

import (
	"errors"
	"fmt"
)

var (
	ErrNotConfigured = errors.New("whatsapp: not configured")
	ErrInvalidInput  = errors.New("whatsapp: invalid input")
	ErrUpstream      = errors.New("whatsapp: upstream error")
)

// APIError is a non-2xx answer from the Cloud API.
type APIError struct {
	Status  int
	Code    int
	Type    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("whatsapp: api status %d code %d: %s", e.Status, e.Code, e.Message)
}

func (e *APIError) Unwrap() error { return ErrUpstream }
