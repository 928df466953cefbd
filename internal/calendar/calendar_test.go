package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/communityhub/events/internal/domain/event"
)

func TestBuild(t *testing.T) {
	start := time.Date(2026, 9, 12, 18, 30, 0, 0, time.UTC)
	e := event.Event{
		Title:       "Intro to Woodworking",
		Description: "Bring gloves.",
		Location:    "Makerspace, Hall B",
		Category:    event.CategoryWorkshop,
		Date:        start,
	}

	entry := Build(e)

	assert.Equal(t, "Intro to Woodworking", entry.Summary)
	assert.Equal(t, "Makerspace, Hall B", entry.Location)
	assert.Equal(t, "Bring gloves.\n\nCategory: workshop", entry.Description)
	assert.Equal(t, "2026-09-12T18:30:00Z", entry.Start.DateTime)
	assert.Equal(t, "2026-09-12T20:30:00Z", entry.End.DateTime)
	assert.Equal(t, "UTC", entry.Start.TimeZone)
	assert.Equal(t, entry.Start.TimeZone, entry.End.TimeZone)
}

func TestBuildReminders(t *testing.T) {
	entry := Build(event.Event{Date: time.Now()})

	assert.False(t, entry.Reminders.UseDefault)
	require.Len(t, entry.Reminders.Overrides, 2)
	assert.Equal(t, ReminderOverride{Method: "email", Minutes: 1440}, entry.Reminders.Overrides[0])
	assert.Equal(t, ReminderOverride{Method: "popup", Minutes: 30}, entry.Reminders.Overrides[1])
}
