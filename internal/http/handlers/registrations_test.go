package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/communityhub/events/internal/cache"
	"github.com/communityhub/events/internal/domain/event"
	"github.com/communityhub/events/internal/http/handlers"
	"github.com/communityhub/events/internal/identity"
	"github.com/communityhub/events/internal/query"
	"github.com/communityhub/events/internal/registration"
)

// fake implementation of handlers.RegistrationService

type fakeRegistrationService struct {
	registerFn func(ctx context.Context, eventID, userID, userEmail string) registration.Result
	cancelFn   func(ctx context.Context, eventID, userID string) registration.Result
	statusFn   func(ctx context.Context, eventID, userID string) (registration.Snapshot, error)
}

func (f *fakeRegistrationService) Register(ctx context.Context, eventID, userID, userEmail string) registration.Result {
	if f.registerFn != nil {
		return f.registerFn(ctx, eventID, userID, userEmail)
	}
	return registration.Result{Success: true}
}

func (f *fakeRegistrationService) Cancel(ctx context.Context, eventID, userID string) registration.Result {
	if f.cancelFn != nil {
		return f.cancelFn(ctx, eventID, userID)
	}
	return registration.Result{Success: true}
}

func (f *fakeRegistrationService) Status(ctx context.Context, eventID, userID string) (registration.Snapshot, error) {
	if f.statusFn != nil {
		return f.statusFn(ctx, eventID, userID)
	}
	return registration.Snapshot{}, nil
}

func TestRegisterStatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		result     registration.Result
		wantStatus int
	}{
		{name: "success", result: registration.Result{Success: true}, wantStatus: http.StatusCreated},
		{name: "event not found", result: registration.Result{Code: registration.CodeEventNotFound, Error: "Event not found"}, wantStatus: http.StatusNotFound},
		{name: "already registered", result: registration.Result{Code: registration.CodeAlreadyRegistered, Error: "You are already registered for this event"}, wantStatus: http.StatusConflict},
		{name: "event full", result: registration.Result{Code: registration.CodeEventFull, Error: "This event has reached its capacity"}, wantStatus: http.StatusConflict},
		{name: "persistence failure", result: registration.Result{Code: registration.CodePersistence, Error: "Failed to register for event"}, wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeRegistrationService{
				registerFn: func(_ context.Context, _, userID, userEmail string) registration.Result {
					if userID != "user-1" || userEmail != "u1@example.com" {
						t.Errorf("identity = (%q, %q), want (user-1, u1@example.com)", userID, userEmail)
					}
					return tt.result
				},
			}

			r, requireAuth := authedRouter("user-1", "u1@example.com", identity.RoleMember)
			h := handlers.NewRegistrationsHandler(svc, &fakeEventsRepo{}, nil)
			r.POST("/events/:id/registrations", requireAuth, h.Register)

			w := doJSON(r, http.MethodPost, "/events/"+newUUID()+"/registrations", "")

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d, body=%s", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestRegisterRejectsBadEventID(t *testing.T) {
	r, requireAuth := authedRouter("user-1", "u1@example.com", identity.RoleMember)
	h := handlers.NewRegistrationsHandler(&fakeRegistrationService{}, &fakeEventsRepo{}, nil)
	r.POST("/events/:id/registrations", requireAuth, h.Register)

	w := doJSON(r, http.MethodPost, "/events/not-a-uuid/registrations", "")

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400, body=%s", w.Code, w.Body.String())
	}
}

func TestCancelStatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		result     registration.Result
		wantStatus int
	}{
		{name: "success", result: registration.Result{Success: true}, wantStatus: http.StatusOK},
		{name: "not registered", result: registration.Result{Code: registration.CodeNotRegistered, Error: "You are not registered for this event"}, wantStatus: http.StatusConflict},
		{name: "event not found", result: registration.Result{Code: registration.CodeEventNotFound, Error: "Event not found"}, wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeRegistrationService{
				cancelFn: func(_ context.Context, _, _ string) registration.Result {
					return tt.result
				},
			}

			r, requireAuth := authedRouter("user-1", "u1@example.com", identity.RoleMember)
			h := handlers.NewRegistrationsHandler(svc, &fakeEventsRepo{}, nil)
			r.DELETE("/events/:id/registrations", requireAuth, h.Cancel)

			w := doJSON(r, http.MethodDelete, "/events/"+newUUID()+"/registrations", "")

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d, body=%s", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestStatusEndpoint(t *testing.T) {
	capacity := 5

	svc := &fakeRegistrationService{
		statusFn: func(_ context.Context, _, userID string) (registration.Snapshot, error) {
			return registration.Snapshot{
				IsRegistered:  userID == "user-1",
				IsFull:        false,
				AttendeeCount: 3,
				Capacity:      &capacity,
				Attendees:     []event.Attendee{},
			}, nil
		},
	}

	r, requireAuth := authedRouter("user-1", "u1@example.com", identity.RoleMember)
	h := handlers.NewRegistrationsHandler(svc, &fakeEventsRepo{}, nil)
	r.GET("/events/:id/registrations/me", requireAuth, h.Status)

	w := doJSON(r, http.MethodGet, "/events/"+newUUID()+"/registrations/me", "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body=%s", w.Code, w.Body.String())
	}

	var snap registration.Snapshot
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !snap.IsRegistered || snap.AttendeeCount != 3 {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestStatusEventNotFound(t *testing.T) {
	svc := &fakeRegistrationService{
		statusFn: func(_ context.Context, _, _ string) (registration.Snapshot, error) {
			return registration.Snapshot{}, event.ErrNotFound
		},
	}

	r, requireAuth := authedRouter("user-1", "u1@example.com", identity.RoleMember)
	h := handlers.NewRegistrationsHandler(svc, &fakeEventsRepo{}, nil)
	r.GET("/events/:id/registrations/me", requireAuth, h.Status)

	w := doJSON(r, http.MethodGet, "/events/"+newUUID()+"/registrations/me", "")

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404, body=%s", w.Code, w.Body.String())
	}
}

func TestCalendarEndpoint(t *testing.T) {
	start := time.Date(2026, 11, 20, 19, 0, 0, 0, time.UTC)

	events := &fakeEventsRepo{
		getFn: func(_ context.Context, id string) (event.Event, error) {
			return event.Event{
				ID:          id,
				Title:       "Film night",
				Description: "Outdoor screening.",
				Location:    "Rooftop",
				Category:    event.CategorySocial,
				Date:        start,
			}, nil
		},
	}

	r := gin.New()
	h := handlers.NewRegistrationsHandler(&fakeRegistrationService{}, events, nil)
	r.GET("/events/:id/calendar", h.Calendar)

	req := httptest.NewRequest(http.MethodGet, "/events/"+newUUID()+"/calendar", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body=%s", w.Code, w.Body.String())
	}

	var entry struct {
		Summary     string `json:"summary"`
		Description string `json:"description"`
		Start       struct {
			DateTime string `json:"dateTime"`
		} `json:"start"`
		End struct {
			DateTime string `json:"dateTime"`
		} `json:"end"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if entry.Summary != "Film night" {
		t.Errorf("summary = %q", entry.Summary)
	}
	if entry.End.DateTime != "2026-11-20T21:00:00Z" {
		t.Errorf("end = %q, want start+2h", entry.End.DateTime)
	}
}

func TestCalendarEventNotFound(t *testing.T) {
	events := &fakeEventsRepo{
		getFn: func(_ context.Context, _ string) (event.Event, error) {
			return event.Event{}, event.ErrNotFound
		},
	}

	r := gin.New()
	h := handlers.NewRegistrationsHandler(&fakeRegistrationService{}, events, nil)
	r.GET("/events/:id/calendar", h.Calendar)

	req := httptest.NewRequest(http.MethodGet, "/events/"+newUUID()+"/calendar", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestRegisterInvalidatesListCache(t *testing.T) {
	listCalls := 0
	attendees := []event.Attendee{}
	repo := &fakeEventsRepo{
		listFilteredFn: func(context.Context, query.Filter, query.Sort) ([]event.Event, error) {
			listCalls++
			return []event.Event{{ID: newUUID(), Title: "Cheese tasting", Attendees: attendees}}, nil
		},
	}

	listCache := cache.New(time.Hour)
	eventsHandler := handlers.NewEventsHandler(repo, listCache)

	svc := &fakeRegistrationService{}
	r, requireAuth := authedRouter("user-1", "u1@example.com", identity.RoleMember)
	regsHandler := handlers.NewRegistrationsHandler(svc, repo, listCache)
	r.GET("/events", eventsHandler.ListEvents)
	r.POST("/events/:id/registrations", requireAuth, regsHandler.Register)

	doJSON(r, http.MethodGet, "/events", "")
	doJSON(r, http.MethodGet, "/events", "")
	if listCalls != 1 {
		t.Fatalf("list calls after two reads = %d, want 1 (second read cached)", listCalls)
	}

	attendees = []event.Attendee{{UserID: "user-1", UserEmail: "u1@example.com", RegisteredAt: time.Now().UTC()}}
	w := doJSON(r, http.MethodPost, "/events/"+newUUID()+"/registrations", "")
	if w.Code != http.StatusCreated {
		t.Fatalf("register status = %d, body=%s", w.Code, w.Body.String())
	}

	w = doJSON(r, http.MethodGet, "/events", "")
	if listCalls != 2 {
		t.Fatalf("list calls after registration = %d, want 2 (cache cleared)", listCalls)
	}

	var body struct {
		Items []struct {
			Attendees []event.Attendee `json:"attendees"`
		} `json:"items"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal list body: %v", err)
	}
	if len(body.Items) != 1 || len(body.Items[0].Attendees) != 1 {
		t.Fatalf("attendees after registration = %+v, want 1 entry", body.Items)
	}
}

func TestCancelInvalidatesListCache(t *testing.T) {
	listCalls := 0
	repo := &fakeEventsRepo{
		listFilteredFn: func(context.Context, query.Filter, query.Sort) ([]event.Event, error) {
			listCalls++
			return []event.Event{}, nil
		},
	}

	listCache := cache.New(time.Hour)
	eventsHandler := handlers.NewEventsHandler(repo, listCache)

	r, requireAuth := authedRouter("user-1", "u1@example.com", identity.RoleMember)
	regsHandler := handlers.NewRegistrationsHandler(&fakeRegistrationService{}, repo, listCache)
	r.GET("/events", eventsHandler.ListEvents)
	r.DELETE("/events/:id/registrations", requireAuth, regsHandler.Cancel)

	doJSON(r, http.MethodGet, "/events", "")
	w := doJSON(r, http.MethodDelete, "/events/"+newUUID()+"/registrations", "")
	if w.Code != http.StatusOK {
		t.Fatalf("cancel status = %d, body=%s", w.Code, w.Body.String())
	}
	doJSON(r, http.MethodGet, "/events", "")

	if listCalls != 2 {
		t.Fatalf("list calls = %d, want 2 (cancel clears the cache)", listCalls)
	}
}
