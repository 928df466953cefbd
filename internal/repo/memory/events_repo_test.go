package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/communityhub/events/internal/domain/event"
)

func seedEvent(t *testing.T, r *EventsRepo) event.Event {
	t.Helper()

	cap := 20
	e, err := r.Create(context.Background(), event.CreateEventRequest{
		Title:       "Garden cleanup",
		Description: "Spring tidy-up of the community garden",
		Location:    "Riverside garden",
		Date:        time.Date(2026, 9, 12, 10, 0, 0, 0, time.UTC),
		Category:    event.CategoryGeneral,
		Capacity:    &cap,
	}, "organizer-1")
	require.NoError(t, err)
	return e
}

func TestUpdateMergesOnlyProvidedFields(t *testing.T) {
	repo := NewEventsRepo()
	seeded := seedEvent(t, repo)

	err := repo.AppendAttendee(context.Background(), seeded.ID, event.Attendee{
		UserID:       "user-1",
		UserEmail:    "user-1@example.com",
		RegisteredAt: time.Now().UTC(),
	}, nil)
	require.NoError(t, err)

	title := "Garden cleanup (rescheduled)"
	updated, err := repo.Update(context.Background(), seeded.ID, event.UpdateEventRequest{
		Title: &title,
	})
	require.NoError(t, err)

	assert.Equal(t, title, updated.Title)
	assert.Equal(t, seeded.Description, updated.Description)
	assert.Equal(t, seeded.Location, updated.Location)
	assert.Equal(t, seeded.Capacity, updated.Capacity)
	assert.Len(t, updated.Attendees, 1, "patching metadata must not touch attendees")
	assert.Equal(t, "user-1", updated.Attendees[0].UserID)
}

func TestUpdateUnknownEvent(t *testing.T) {
	repo := NewEventsRepo()

	title := "anything"
	_, err := repo.Update(context.Background(), "missing", event.UpdateEventRequest{Title: &title})

	assert.ErrorIs(t, err, event.ErrNotFound)
}

func TestToggleActiveFlips(t *testing.T) {
	repo := NewEventsRepo()
	seeded := seedEvent(t, repo)
	require.True(t, seeded.IsActive)

	off, err := repo.ToggleActive(context.Background(), seeded.ID)
	require.NoError(t, err)
	assert.False(t, off.IsActive)

	on, err := repo.ToggleActive(context.Background(), seeded.ID)
	require.NoError(t, err)
	assert.True(t, on.IsActive)
}

func TestDeleteRemovesEvent(t *testing.T) {
	repo := NewEventsRepo()
	seeded := seedEvent(t, repo)

	require.NoError(t, repo.Delete(context.Background(), seeded.ID))

	_, err := repo.GetByID(context.Background(), seeded.ID)
	assert.ErrorIs(t, err, event.ErrNotFound)
}

func TestAppendAttendeeFollowUpFailureAborts(t *testing.T) {
	repo := NewEventsRepo()
	seeded := seedEvent(t, repo)

	boom := errors.New("enqueue failed")
	err := repo.AppendAttendee(context.Background(), seeded.ID, event.Attendee{
		UserID:       "user-1",
		UserEmail:    "user-1@example.com",
		RegisteredAt: time.Now().UTC(),
	}, func(context.Context, pgx.Tx) error { return boom })

	assert.ErrorIs(t, err, boom)

	got, getErr := repo.GetByID(context.Background(), seeded.ID)
	require.NoError(t, getErr)
	assert.Zero(t, got.AttendeeCount(), "failed follow-up must not leave the attendee registered")
}
