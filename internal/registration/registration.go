// Package registration enforces the attendee invariants for a single event:
// at most one registration per member, and never more registrations than
// capacity as the result of a register call.
package registration

import (
	"errors"

	"github.com/communityhub/events/internal/domain/event"
)

var (
	// member already holds a registration for this event
	ErrAlreadyRegistered = errors.New("already registered for this event")
	// cancel attempted with no matching registration
	ErrNotRegistered = errors.New("not registered for this event")
	// event is at capacity
	ErrEventFull = errors.New("event is at full capacity")
)

// Result is the structured outcome for mutating operations. Mutations never
// raise toward UI controllers; they report through this shape instead.
type Result struct {
	Success bool   `json:"success"`
	Code    string `json:"code,omitempty"`
	Error   string `json:"error,omitempty"`
}

const (
	CodeEventNotFound     = "event_not_found"
	CodeAlreadyRegistered = "already_registered"
	CodeEventFull         = "event_full"
	CodeNotRegistered     = "not_registered"
	CodePersistence       = "persistence_error"
)

func ok() Result {
	return Result{Success: true}
}

func failed(code, message string) Result {
	return Result{Success: false, Code: code, Error: message}
}

// Snapshot is the registration status view for one (event, member) pair,
// computed from a single read of the event record.
type Snapshot struct {
	IsRegistered  bool             `json:"isRegistered"`
	IsFull        bool             `json:"isFull"`
	AttendeeCount int              `json:"attendeeCount"`
	Capacity      *int             `json:"capacity,omitempty"`
	Attendees     []event.Attendee `json:"attendees"`
}
