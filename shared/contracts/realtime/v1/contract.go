// Package v1 defines the Supreme Realtime Protocol v1 contract.
//
// This package is intentionally stable and dependency-light.
// It is shared between the server gateway and the client kit to keep the wire protocol authoritative.
package v1

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Version is the protocol version identifier embedded into every envelope.
const Version = "v1"

// Subprotocol is the WebSocket subprotocol both ends must negotiate.
const Subprotocol = "supreme.realtime.v1"

// Type constants (wire-stable).
const (
	// TypeSubscribe opens a change channel for one table (client -> server).
	TypeSubscribe = "subscribe"
	// TypeUnsubscribe releases a change channel (client -> server).
	TypeUnsubscribe = "unsubscribe"

	// TypeStatus reports a channel status transition (server -> client).
	TypeStatus = "status"
	// TypeChange carries one row-level change event (server -> client).
	TypeChange = "change"

	// TypeError is a generic error envelope (server -> client).
	TypeError = "error"
)

// Envelope is the canonical wire wrapper.
type Envelope struct {
	V       string          `json:"v"`
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	TS      time.Time       `json:"ts,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Validate performs strict structural validation for an Envelope.
func (e Envelope) Validate() error {
	if strings.TrimSpace(e.V) == "" {
		return errors.New("missing field: v")
	}
	if e.V != Version {
		return fmt.Errorf("unsupported protocol version: %q", e.V)
	}
	if strings.TrimSpace(e.Type) == "" {
		return errors.New("missing field: type")
	}

	switch e.Type {
	case TypeSubscribe,
		TypeUnsubscribe,
		TypeStatus,
		TypeChange,
		TypeError:
		return nil
	default:
		return fmt.Errorf("unknown type: %q", e.Type)
	}
}

// NewEnvelope marshals payload into a fresh envelope.
func NewEnvelope(typ, id string, ts time.Time, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		V:       Version,
		Type:    typ,
		ID:      id,
		TS:      ts,
		Payload: raw,
	}, nil
}
