package registration

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/communityhub/events/internal/domain/event"
	"github.com/communityhub/events/internal/domain/job"
	"github.com/communityhub/events/internal/jobs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Store is the slice of the events repository the manager needs. The append
// and remove operations are the store's atomic merge primitives: both
// re-validate the invariants inside the same transaction that performs the
// write, so two racing register calls cannot both slip past a full check.
type Store interface {
	GetByID(ctx context.Context, id string) (event.Event, error)
	AppendAttendee(ctx context.Context, eventID string, att event.Attendee, followUp func(ctx context.Context, tx pgx.Tx) error) error
	RemoveAttendee(ctx context.Context, eventID, userID string) error
}

// JobsEnqueuer enqueues follow-up work inside the registration transaction.
type JobsEnqueuer interface {
	CreateTx(ctx context.Context, tx pgx.Tx, req job.CreateRequest) (job.Job, error)
}

type Manager struct {
	store Store
	jobs  JobsEnqueuer // optional; nil disables confirmation enqueue
	log   *slog.Logger
}

func NewManager(store Store, jobsRepo JobsEnqueuer, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{store: store, jobs: jobsRepo, log: log}
}

// Register moves (eventID, userID) from NotRegistered to Registered. The
// userEmail snapshot is denormalized onto the attendee entry as supplied.
func (m *Manager) Register(ctx context.Context, eventID, userID, userEmail string) Result {
	att := event.Attendee{
		UserID:       userID,
		UserEmail:    userEmail,
		RegisteredAt: time.Now().UTC(),
	}

	var followUp func(ctx context.Context, tx pgx.Tx) error
	if m.jobs != nil {
		followUp = m.confirmationEnqueue(eventID, att)
	}

	err := m.store.AppendAttendee(ctx, eventID, att, followUp)
	if err != nil {
		return m.registerFailure(ctx, eventID, userID, err)
	}

	return ok()
}

func (m *Manager) registerFailure(ctx context.Context, eventID, userID string, err error) Result {
	switch {
	case errors.Is(err, event.ErrNotFound):
		return failed(CodeEventNotFound, "Event not found")
	case errors.Is(err, ErrAlreadyRegistered):
		return failed(CodeAlreadyRegistered, "You are already registered for this event")
	case errors.Is(err, ErrEventFull):
		return failed(CodeEventFull, "This event has reached its capacity")
	default:
		m.log.ErrorContext(ctx, "registration failed",
			"event_id", eventID, "user_id", userID, "err", err)
		return failed(CodePersistence, "Failed to register for event")
	}
}

// Cancel moves (eventID, userID) back to NotRegistered. Removal is by
// userId value match against the embedded attendee list, never by index.
func (m *Manager) Cancel(ctx context.Context, eventID, userID string) Result {
	err := m.store.RemoveAttendee(ctx, eventID, userID)
	if err != nil {
		switch {
		case errors.Is(err, event.ErrNotFound):
			return failed(CodeEventNotFound, "Event not found")
		case errors.Is(err, ErrNotRegistered):
			return failed(CodeNotRegistered, "You are not registered for this event")
		default:
			m.log.ErrorContext(ctx, "cancellation failed",
				"event_id", eventID, "user_id", userID, "err", err)
			return failed(CodePersistence, "Failed to cancel registration")
		}
	}

	return ok()
}

// Status computes the registration view from the current read of the event.
// Unlike the mutations this is a read and raises its error: there is no
// sensible default snapshot to hand back.
func (m *Manager) Status(ctx context.Context, eventID, userID string) (Snapshot, error) {
	e, err := m.store.GetByID(ctx, eventID)
	if err != nil {
		return Snapshot{}, err
	}

	attendees := e.Attendees
	if attendees == nil {
		attendees = []event.Attendee{}
	}

	return Snapshot{
		IsRegistered:  e.HasAttendee(userID),
		IsFull:        e.IsFull(),
		AttendeeCount: e.AttendeeCount(),
		Capacity:      e.Capacity,
		Attendees:     attendees,
	}, nil
}

// confirmationEnqueue builds the same-transaction follow-up that records a
// confirmation job. The idempotency key makes a registration enqueue at most
// one confirmation even if the store retries the transaction body. A key
// collision means a confirmation for this (event, user) pair already exists,
// which happens on register after cancel; that is a success, not a reason to
// roll back the attendee write.
func (m *Manager) confirmationEnqueue(eventID string, att event.Attendee) func(ctx context.Context, tx pgx.Tx) error {
	return func(ctx context.Context, tx pgx.Tx) error {
		payload := jobs.RegistrationConfirmationPayload{
			EventID:      eventID,
			UserID:       att.UserID,
			UserEmail:    att.UserEmail,
			RegisteredAt: att.RegisteredAt,
		}

		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}

		key := "registration:confirm:" + eventID + ":" + att.UserID

		_, err = m.jobs.CreateTx(ctx, tx, job.CreateRequest{
			Type:           jobs.TypeRegistrationConfirmation,
			Payload:        raw,
			RunAt:          time.Now().UTC(),
			MaxAttempts:    10,
			IdempotencyKey: &key,
		})
		if isUniqueViolation(err) {
			m.log.DebugContext(ctx, "confirmation already enqueued",
				"event_id", eventID, "user_id", att.UserID)
			return nil
		}
		return err
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
