package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/escolalink/messaging-platform/internal/middleware"
	"github.com/escolalink/messaging-platform/internal/model"
	"github.com/escolalink/messaging-platform/internal/service"
	"github.com/escolalink/messaging-platform/pkg/logger"
)

// EventHandler handles calendar event endpoints.
type EventHandler struct {
	service *service.BroadcastService
	logger  *logger.Logger
}

// NewEventHandler creates a new calendar event handler.
func NewEventHandler(svc *service.BroadcastService, log *logger.Logger) *EventHandler {
	return &EventHandler{
		service: svc,
		logger:  log,
	}
}

// Create handles POST /api/v1/events. Restricted to teachers and admins
// by route middleware.
func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req model.CreateEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	event, err := h.service.CreateEvent(ctx, &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

// List handles GET /api/v1/events?from=&to= with RFC 3339 date bounds,
// filtered by the caller's profile.
func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	profile := middleware.GetProfile(ctx)

	from, ok := parseDateParam(w, r, "from")
	if !ok {
		return
	}
	to, ok := parseDateParam(w, r, "to")
	if !ok {
		return
	}

	events, err := h.service.ListEventsForUser(ctx, profile, from, to)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"total":  len(events),
	})
}

func parseDateParam(w http.ResponseWriter, r *http.Request, key string) (time.Time, bool) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return time.Time{}, true
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, true
	}
	if t, err := time.Parse("2006-01-02", v); err == nil {
		return t, true
	}
	writeError(w, http.StatusBadRequest, "invalid "+key+" date")
	return time.Time{}, false
}
