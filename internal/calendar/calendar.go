// Package calendar builds third-party calendar payloads from event records.
// The shape matches the Google Calendar events API so a client can POST it
// as-is with its own OAuth token; this service never talks to the API.
package calendar

import (
	"time"

	"github.com/communityhub/events/internal/domain/event"
)

// DefaultDuration is assumed when an event has no explicit end time.
const DefaultDuration = 2 * time.Hour

type EventDateTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

type ReminderOverride struct {
	Method  string `json:"method"`
	Minutes int    `json:"minutes"`
}

type Reminders struct {
	UseDefault bool               `json:"useDefault"`
	Overrides  []ReminderOverride `json:"overrides"`
}

type Entry struct {
	Summary     string        `json:"summary"`
	Location    string        `json:"location"`
	Description string        `json:"description"`
	Start       EventDateTime `json:"start"`
	End         EventDateTime `json:"end"`
	Reminders   Reminders     `json:"reminders"`
}

// Build formats an event for export. The description carries the category
// so it survives the trip into a calendar that has no category field.
func Build(e event.Event) Entry {
	start := e.Date
	end := start.Add(DefaultDuration)
	tz := start.Location().String()

	return Entry{
		Summary:     e.Title,
		Location:    e.Location,
		Description: e.Description + "\n\nCategory: " + string(e.Category),
		Start: EventDateTime{
			DateTime: start.Format(time.RFC3339),
			TimeZone: tz,
		},
		End: EventDateTime{
			DateTime: end.Format(time.RFC3339),
			TimeZone: tz,
		},
		Reminders: Reminders{
			UseDefault: false,
			Overrides: []ReminderOverride{
				{Method: "email", Minutes: 24 * 60},
				{Method: "popup", Minutes: 30},
			},
		},
	}
}
