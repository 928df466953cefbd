// Package memory holds a mutex-guarded events repository used by unit tests
// and local development. It enforces the same attendee invariants as the
// postgres repository; the mutex stands in for the row lock.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/communityhub/events/internal/domain/event"
	"github.com/communityhub/events/internal/query"
	"github.com/communityhub/events/internal/registration"
	"github.com/jackc/pgx/v5"
)

type EventsRepo struct {
	mu    sync.RWMutex
	items map[string]event.Event
}

func NewEventsRepo() *EventsRepo {
	return &EventsRepo{items: make(map[string]event.Event)}
}

func (r *EventsRepo) Create(_ context.Context, req event.CreateEventRequest, createdBy string) (event.Event, error) {
	if err := event.ValidateCreateRequest(req); err != nil {
		return event.Event{}, err
	}

	e := event.NewFromCreateRequest(req, createdBy)

	r.mu.Lock()
	r.items[e.ID] = e
	r.mu.Unlock()

	return e, nil
}

func (r *EventsRepo) GetByID(_ context.Context, id string) (event.Event, error) {
	r.mu.RLock()
	e, ok := r.items[id]
	r.mu.RUnlock()

	if !ok {
		return event.Event{}, event.ErrNotFound
	}
	return cloneEvent(e), nil
}

func (r *EventsRepo) Update(_ context.Context, id string, req event.UpdateEventRequest) (event.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.items[id]
	if !ok {
		return event.Event{}, event.ErrNotFound
	}

	if req.Title != nil {
		e.Title = *req.Title
	}
	if req.Description != nil {
		e.Description = *req.Description
	}
	if req.Location != nil {
		e.Location = *req.Location
	}
	if req.Date != nil {
		e.Date = *req.Date
	}
	if req.Category != nil {
		e.Category = *req.Category
	}
	if req.Capacity != nil {
		e.Capacity = req.Capacity
	}
	if req.IsActive != nil {
		e.IsActive = *req.IsActive
	}
	e.UpdatedAt = time.Now().UTC()

	r.items[id] = e
	return cloneEvent(e), nil
}

func (r *EventsRepo) ToggleActive(_ context.Context, id string) (event.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.items[id]
	if !ok {
		return event.Event{}, event.ErrNotFound
	}

	e.IsActive = !e.IsActive
	e.UpdatedAt = time.Now().UTC()
	r.items[id] = e

	return cloneEvent(e), nil
}

func (r *EventsRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[id]; !ok {
		return event.ErrNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *EventsRepo) List(_ context.Context, s query.Sort) ([]event.Event, error) {
	return r.snapshotWhere(query.Filter{}, s), nil
}

func (r *EventsRepo) ListFiltered(_ context.Context, f query.Filter, s query.Sort) ([]event.Event, error) {
	return r.snapshotWhere(f, s), nil
}

func (r *EventsRepo) ListByCreator(_ context.Context, createdBy string) ([]event.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]event.Event, 0)
	for _, e := range r.items {
		if e.CreatedBy == createdBy {
			out = append(out, cloneEvent(e))
		}
	}
	query.SortEvents(out, query.Sort{Field: query.SortByDate, Direction: query.Desc})
	return out, nil
}

// AppendAttendee mirrors the postgres merge primitive: validation and append
// happen under the same lock. followUp receives a nil transaction; callers
// that need transactional follow-ups use the postgres repository.
func (r *EventsRepo) AppendAttendee(ctx context.Context, eventID string, att event.Attendee, followUp func(ctx context.Context, tx pgx.Tx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.items[eventID]
	if !ok {
		return event.ErrNotFound
	}

	if e.HasAttendee(att.UserID) {
		return registration.ErrAlreadyRegistered
	}
	if e.IsFull() {
		return registration.ErrEventFull
	}

	// Mirror the transactional contract: a failed follow-up aborts the
	// append, so the map write happens only once the follow-up is through.
	if followUp != nil {
		if err := followUp(ctx, nil); err != nil {
			return err
		}
	}

	e.Attendees = append(append([]event.Attendee{}, e.Attendees...), att)
	e.UpdatedAt = time.Now().UTC()
	r.items[eventID] = e

	return nil
}

func (r *EventsRepo) RemoveAttendee(_ context.Context, eventID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.items[eventID]
	if !ok {
		return event.ErrNotFound
	}

	if !e.HasAttendee(userID) {
		return registration.ErrNotRegistered
	}

	kept := make([]event.Attendee, 0, len(e.Attendees))
	for _, a := range e.Attendees {
		if a.UserID != userID {
			kept = append(kept, a)
		}
	}
	e.Attendees = kept
	e.UpdatedAt = time.Now().UTC()
	r.items[eventID] = e

	return nil
}

func (r *EventsRepo) snapshotWhere(f query.Filter, s query.Sort) []event.Event {
	r.mu.RLock()
	all := make([]event.Event, 0, len(r.items))
	for _, e := range r.items {
		all = append(all, cloneEvent(e))
	}
	r.mu.RUnlock()

	return query.Apply(all, f, s)
}

// cloneEvent copies the attendee slice so callers never share backing arrays
// with the stored record.
func cloneEvent(e event.Event) event.Event {
	e.Attendees = append([]event.Attendee{}, e.Attendees...)
	return e
}
