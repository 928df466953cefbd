package event

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewFromCreateRequest builds a fresh event record from the incoming DTO.
// The store-assigned fields (id, createdBy, createdAt, attendees) are fixed
// here; isActive and category fall back to their defaults when the caller
// leaves them out.
func NewFromCreateRequest(req CreateEventRequest, createdBy string) Event {
	now := time.Now().UTC()

	category := req.Category
	if category == "" {
		category = CategoryGeneral
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	return Event{
		ID:          uuid.NewString(),
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Location:    strings.TrimSpace(req.Location),
		Date:        req.Date,
		Category:    category,
		Capacity:    req.Capacity,
		IsActive:    active,
		CreatedBy:   createdBy,
		Attendees:   []Attendee{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// ValidateCreateRequest re-checks the invariants the HTTP binding tags cover,
// for callers that do not come through gin (worker, tests, library use).
func ValidateCreateRequest(req CreateEventRequest) error {
	if strings.TrimSpace(req.Title) == "" ||
		strings.TrimSpace(req.Description) == "" ||
		strings.TrimSpace(req.Location) == "" ||
		req.Date.IsZero() {
		return ErrValidation
	}
	if req.Category != "" && !req.Category.IsValid() {
		return ErrValidation
	}
	if req.Capacity != nil && *req.Capacity <= 0 {
		return ErrValidation
	}
	return nil
}
