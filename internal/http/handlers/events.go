package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/communityhub/events/internal/cache"
	"github.com/communityhub/events/internal/config"
	"github.com/communityhub/events/internal/domain/event"
	"github.com/communityhub/events/internal/http/middlewares"
	"github.com/communityhub/events/internal/identity"
	"github.com/communityhub/events/internal/query"
)

// EventsStore is the slice of the events repository the handler needs.
type EventsStore interface {
	Create(ctx context.Context, req event.CreateEventRequest, createdBy string) (event.Event, error)
	GetByID(ctx context.Context, id string) (event.Event, error)
	Update(ctx context.Context, id string, req event.UpdateEventRequest) (event.Event, error)
	ToggleActive(ctx context.Context, id string) (event.Event, error)
	Delete(ctx context.Context, id string) error
	ListFiltered(ctx context.Context, f query.Filter, s query.Sort) ([]event.Event, error)
	ListByCreator(ctx context.Context, createdBy string) ([]event.Event, error)
}

type EventsHandler struct {
	repo      EventsStore
	listCache *cache.Cache // optional; nil disables list caching
}

func NewEventsHandler(repo EventsStore, listCache *cache.Cache) *EventsHandler {
	return &EventsHandler{repo: repo, listCache: listCache}
}

func (h *EventsHandler) CreateEvent(ctx *gin.Context) {
	var req event.CreateEventRequest

	if !BindJSON(ctx, &req) {
		return
	}

	userID, ok := middlewares.UserIDFromContext(ctx)
	if !ok || userID == "" {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity")
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	e, err := h.repo.Create(cctx, req, userID)
	if err != nil {
		RespondInternal(ctx, "Could not create event")
		return
	}

	h.invalidateLists()
	ctx.JSON(http.StatusCreated, e)
}

func (h *EventsHandler) ListEvents(ctx *gin.Context) {
	f, s, ok := parseListQuery(ctx)
	if !ok {
		return
	}

	key := cache.ListKey(f, s)
	if h.listCache != nil {
		if v, hit := h.listCache.Get(key); hit {
			if events, castOK := v.([]event.Event); castOK {
				RespondJSONWithETag(ctx, http.StatusOK, listPayload(events))
				return
			}
		}
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	events, err := h.repo.ListFiltered(cctx, f, s)
	if err != nil {
		RespondInternal(ctx, "Could not list events")
		return
	}

	// Title order from the database follows its collation, which does not
	// match locale-aware ordering. Settle it in process.
	if s.Field == query.SortByTitle {
		query.SortEvents(events, s)
	}

	if h.listCache != nil {
		h.listCache.Set(key, events)
	}

	RespondJSONWithETag(ctx, http.StatusOK, listPayload(events))
}

func (h *EventsHandler) GetEventByID(ctx *gin.Context) {
	id := ctx.Param("id")
	if !isUUID(id) {
		RespondBadRequest(ctx, "event id must be a valid UUID", nil)
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	e, err := h.repo.GetByID(cctx, id)
	if err != nil {
		if errors.Is(err, event.ErrNotFound) {
			RespondNotFound(ctx, "Event not found")
			return
		}
		RespondInternal(ctx, "Could not fetch event")
		return
	}

	ctx.JSON(http.StatusOK, e)
}

func (h *EventsHandler) UpdateEvent(ctx *gin.Context) {
	id := ctx.Param("id")
	if !isUUID(id) {
		RespondBadRequest(ctx, "event id must be a valid UUID", nil)
		return
	}

	var req event.UpdateEventRequest
	if !BindJSON(ctx, &req) {
		return
	}

	if req.IsEmpty() {
		RespondBadRequest(ctx, "At least one field must be provided", nil)
		return
	}

	if !h.requireOwnership(ctx, id) {
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	e, err := h.repo.Update(cctx, id, req)
	if err != nil {
		switch {
		case errors.Is(err, event.ErrNotFound):
			RespondNotFound(ctx, "Event not found")
		case errors.Is(err, event.ErrValidation):
			RespondBadRequest(ctx, err.Error(), nil)
		default:
			RespondInternal(ctx, "Could not update event")
		}
		return
	}

	h.invalidateLists()
	ctx.JSON(http.StatusOK, e)
}

func (h *EventsHandler) ToggleEventActive(ctx *gin.Context) {
	id := ctx.Param("id")
	if !isUUID(id) {
		RespondBadRequest(ctx, "event id must be a valid UUID", nil)
		return
	}

	if !h.requireOwnership(ctx, id) {
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	e, err := h.repo.ToggleActive(cctx, id)
	if err != nil {
		if errors.Is(err, event.ErrNotFound) {
			RespondNotFound(ctx, "Event not found")
			return
		}
		RespondInternal(ctx, "Could not update event")
		return
	}

	h.invalidateLists()
	ctx.JSON(http.StatusOK, e)
}

func (h *EventsHandler) DeleteEvent(ctx *gin.Context) {
	id := ctx.Param("id")
	if !isUUID(id) {
		RespondBadRequest(ctx, "event id must be a valid UUID", nil)
		return
	}

	if !h.requireOwnership(ctx, id) {
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	if err := h.repo.Delete(cctx, id); err != nil {
		if errors.Is(err, event.ErrNotFound) {
			RespondNotFound(ctx, "Event not found")
			return
		}
		RespondInternal(ctx, "Could not delete event")
		return
	}

	h.invalidateLists()
	ctx.Status(http.StatusNoContent)
}

// ListMyEvents backs the organizer dashboard: only the caller's events,
// newest first.
func (h *EventsHandler) ListMyEvents(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)
	if !ok || userID == "" {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity")
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	events, err := h.repo.ListByCreator(cctx, userID)
	if err != nil {
		RespondInternal(ctx, "Could not list events")
		return
	}

	ctx.JSON(http.StatusOK, listPayload(events))
}

// requireOwnership loads the event and rejects callers that neither created
// it nor hold the staff role. Writes the response on failure.
func (h *EventsHandler) requireOwnership(ctx *gin.Context, eventID string) bool {
	userID, ok := middlewares.UserIDFromContext(ctx)
	if !ok || userID == "" {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity")
		return false
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	e, err := h.repo.GetByID(cctx, eventID)
	if err != nil {
		if errors.Is(err, event.ErrNotFound) {
			RespondNotFound(ctx, "Event not found")
			return false
		}
		RespondInternal(ctx, "Could not fetch event")
		return false
	}

	role, _ := middlewares.RoleFromContext(ctx)
	if e.CreatedBy != userID && role != identity.RoleStaff {
		RespondForbidden(ctx, "You can only manage events you created")
		return false
	}

	return true
}

func (h *EventsHandler) invalidateLists() {
	if h.listCache != nil {
		h.listCache.Clear()
	}
}

func listPayload(events []event.Event) gin.H {
	if events == nil {
		events = []event.Event{}
	}
	return gin.H{
		"items": events,
		"count": len(events),
	}
}

func parseListQuery(ctx *gin.Context) (query.Filter, query.Sort, bool) {
	var f query.Filter

	if raw := ctx.Query("category"); raw != "" && raw != "all" {
		cat := event.Category(raw)
		if !cat.IsValid() {
			RespondBadRequest(ctx, "Unknown category", gin.H{"category": raw})
			return f, query.Sort{}, false
		}
		f.Category = cat
	}

	if raw := ctx.Query("from"); raw != "" {
		t, err := parseDateParam(raw)
		if err != nil {
			RespondBadRequest(ctx, "Invalid from date", gin.H{"from": raw})
			return f, query.Sort{}, false
		}
		f.StartDate = &t
	}

	if raw := ctx.Query("to"); raw != "" {
		t, err := parseDateParam(raw)
		if err != nil {
			RespondBadRequest(ctx, "Invalid to date", gin.H{"to": raw})
			return f, query.Sort{}, false
		}
		f.EndDate = &t
	}

	f.OnlyActive = ctx.Query("active") == "true"

	s, err := query.ParseSort(ctx.Query("sortBy"), ctx.Query("order"))
	if err != nil {
		RespondBadRequest(ctx, "Invalid sort", gin.H{
			"sortBy": ctx.Query("sortBy"),
			"order":  ctx.Query("order"),
		})
		return f, query.Sort{}, false
	}

	return f, s, true
}

func parseDateParam(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}

func isUUID(id string) bool {
	return uuid.Validate(id) == nil
}
