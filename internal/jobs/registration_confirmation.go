// Package jobs defines the typed payloads carried by the async job queue.
package jobs

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

const TypeRegistrationConfirmation = "registration.confirmation"

var ErrInvalidPayload = errors.New("invalid job payload")

// RegistrationConfirmationPayload is everything the worker needs to notify a
// member about a successful registration. It carries the denormalized email
// so the worker never has to resolve identity.
type RegistrationConfirmationPayload struct {
	EventID      string    `json:"eventId"`
	UserID       string    `json:"userId"`
	UserEmail    string    `json:"userEmail"`
	RegisteredAt time.Time `json:"registeredAt"`
}

// DecodeRegistrationConfirmation parses and validates a raw payload.
func DecodeRegistrationConfirmation(raw json.RawMessage) (RegistrationConfirmationPayload, error) {
	if len(raw) == 0 {
		return RegistrationConfirmationPayload{}, ErrInvalidPayload
	}

	var p RegistrationConfirmationPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return RegistrationConfirmationPayload{}, ErrInvalidPayload
	}

	if strings.TrimSpace(p.EventID) == "" ||
		strings.TrimSpace(p.UserID) == "" ||
		strings.TrimSpace(p.UserEmail) == "" {
		return RegistrationConfirmationPayload{}, ErrInvalidPayload
	}

	return p, nil
}
