package event

import (
	"errors"
	"time"
)

// Category is the fixed set of event kinds the platform knows about.
type Category string

const (
	CategoryGeneral  Category = "general"
	CategoryWorkshop Category = "workshop"
	CategoryMeetup   Category = "meetup"
	CategorySeminar  Category = "seminar"
	CategorySocial   Category = "social"
)

func (c Category) IsValid() bool {
	switch c {
	case CategoryGeneral, CategoryWorkshop, CategoryMeetup, CategorySeminar, CategorySocial:
		return true
	default:
		return false
	}
}

// Attendee is one member's registration, embedded in the event record.
// UserEmail is a snapshot taken at registration time and is not refreshed
// if the member later changes their email.
type Attendee struct {
	UserID       string    `json:"userId"`
	UserEmail    string    `json:"userEmail"`
	RegisteredAt time.Time `json:"registeredAt"`
}

type Event struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	Date        time.Time `json:"date"`
	Category    Category  `json:"category"`
	// nil means unlimited
	Capacity  *int       `json:"capacity,omitempty"`
	IsActive  bool       `json:"isActive"`
	CreatedBy string     `json:"createdBy"`
	Attendees []Attendee `json:"attendees"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

func (e Event) AttendeeCount() int {
	return len(e.Attendees)
}

// IsFull reports whether the snapshot is at or over capacity.
// Unlimited events are never full.
func (e Event) IsFull() bool {
	return e.Capacity != nil && len(e.Attendees) >= *e.Capacity
}

// HasAttendee reports whether userID already holds a registration.
func (e Event) HasAttendee(userID string) bool {
	for _, a := range e.Attendees {
		if a.UserID == userID {
			return true
		}
	}
	return false
}

var ErrNotFound = errors.New("event not found")

// caller-supplied event data is missing required fields
var ErrValidation = errors.New("invalid event data")

type CreateEventRequest struct {
	Title       string    `json:"title" binding:"required,min=3,max=120"`
	Description string    `json:"description" binding:"required,max=2000"`
	Location    string    `json:"location" binding:"required,min=2,max=200"`
	Date        time.Time `json:"date" binding:"required"`
	Category    Category  `json:"category" binding:"omitempty,oneof=general workshop meetup seminar social"`
	Capacity    *int      `json:"capacity" binding:"omitempty,min=1,max=50000"`
	IsActive    *bool     `json:"isActive"`
}

// UpdateEventRequest is a patch: nil fields are left untouched by the store.
// Attendees are deliberately absent here; they only move through the
// registration manager's append/remove operations.
type UpdateEventRequest struct {
	Title       *string    `json:"title" binding:"omitempty,min=3,max=120"`
	Description *string    `json:"description" binding:"omitempty,max=2000"`
	Location    *string    `json:"location" binding:"omitempty,min=2,max=200"`
	Date        *time.Time `json:"date"`
	Category    *Category  `json:"category" binding:"omitempty,oneof=general workshop meetup seminar social"`
	Capacity    *int       `json:"capacity" binding:"omitempty,min=1,max=50000"`
	IsActive    *bool      `json:"isActive"`
}

// IsEmpty reports whether the patch carries no fields at all.
func (r UpdateEventRequest) IsEmpty() bool {
	return r.Title == nil && r.Description == nil && r.Location == nil &&
		r.Date == nil && r.Category == nil && r.Capacity == nil && r.IsActive == nil
}
