package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/communityhub/events/internal/cache"
	"github.com/communityhub/events/internal/calendar"
	"github.com/communityhub/events/internal/config"
	"github.com/communityhub/events/internal/domain/event"
	"github.com/communityhub/events/internal/http/middlewares"
	"github.com/communityhub/events/internal/registration"
)

// RegistrationService is the manager surface the handler consumes.
type RegistrationService interface {
	Register(ctx context.Context, eventID, userID, userEmail string) registration.Result
	Cancel(ctx context.Context, eventID, userID string) registration.Result
	Status(ctx context.Context, eventID, userID string) (registration.Snapshot, error)
}

type EventsGetter interface {
	GetByID(ctx context.Context, id string) (event.Event, error)
}

type RegistrationsHandler struct {
	svc       RegistrationService
	events    EventsGetter
	listCache *cache.Cache // optional; nil disables list caching
}

func NewRegistrationsHandler(svc RegistrationService, events EventsGetter, listCache *cache.Cache) *RegistrationsHandler {
	return &RegistrationsHandler{svc: svc, events: events, listCache: listCache}
}

// invalidateLists drops the cached list pages; registrations change the
// attendee counts those pages carry.
func (h *RegistrationsHandler) invalidateLists() {
	if h.listCache != nil {
		h.listCache.Clear()
	}
}

func (h *RegistrationsHandler) Register(ctx *gin.Context) {
	eventID := ctx.Param("id")
	if !isUUID(eventID) {
		RespondBadRequest(ctx, "event id must be a valid UUID", nil)
		return
	}

	userID, ok := middlewares.UserIDFromContext(ctx)
	if !ok || userID == "" {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity")
		return
	}
	email, _ := middlewares.EmailFromContext(ctx)

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	res := h.svc.Register(cctx, eventID, userID, email)
	if !res.Success {
		h.respondFailure(ctx, res)
		return
	}

	h.invalidateLists()
	ctx.JSON(http.StatusCreated, res)
}

func (h *RegistrationsHandler) Cancel(ctx *gin.Context) {
	eventID := ctx.Param("id")
	if !isUUID(eventID) {
		RespondBadRequest(ctx, "event id must be a valid UUID", nil)
		return
	}

	userID, ok := middlewares.UserIDFromContext(ctx)
	if !ok || userID == "" {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity")
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	res := h.svc.Cancel(cctx, eventID, userID)
	if !res.Success {
		h.respondFailure(ctx, res)
		return
	}

	h.invalidateLists()
	ctx.JSON(http.StatusOK, res)
}

// Status reports the caller's view of an event: whether they are on the
// attendee list, whether it is full, and the current headcount.
func (h *RegistrationsHandler) Status(ctx *gin.Context) {
	eventID := ctx.Param("id")
	if !isUUID(eventID) {
		RespondBadRequest(ctx, "event id must be a valid UUID", nil)
		return
	}

	userID, ok := middlewares.UserIDFromContext(ctx)
	if !ok || userID == "" {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity")
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	snap, err := h.svc.Status(cctx, eventID, userID)
	if err != nil {
		if errors.Is(err, event.ErrNotFound) {
			RespondNotFound(ctx, "Event not found")
			return
		}
		RespondInternal(ctx, "Could not fetch registration status")
		return
	}

	ctx.JSON(http.StatusOK, snap)
}

// Calendar renders the event as a calendar entry the client can push to an
// external calendar with its own credentials.
func (h *RegistrationsHandler) Calendar(ctx *gin.Context) {
	eventID := ctx.Param("id")
	if !isUUID(eventID) {
		RespondBadRequest(ctx, "event id must be a valid UUID", nil)
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	e, err := h.events.GetByID(cctx, eventID)
	if err != nil {
		if errors.Is(err, event.ErrNotFound) {
			RespondNotFound(ctx, "Event not found")
			return
		}
		RespondInternal(ctx, "Could not fetch event")
		return
	}

	ctx.JSON(http.StatusOK, calendar.Build(e))
}

func (h *RegistrationsHandler) respondFailure(ctx *gin.Context, res registration.Result) {
	switch res.Code {
	case registration.CodeEventNotFound:
		RespondNotFound(ctx, res.Error)
	case registration.CodeAlreadyRegistered, registration.CodeEventFull:
		RespondConflict(ctx, res.Code, res.Error)
	case registration.CodeNotRegistered:
		RespondConflict(ctx, res.Code, res.Error)
	default:
		RespondInternal(ctx, res.Error)
	}
}
