package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/escolalink/messaging-platform/internal/middleware"
	"github.com/escolalink/messaging-platform/internal/model"
	"github.com/escolalink/messaging-platform/internal/service"
	"github.com/escolalink/messaging-platform/pkg/logger"
)

// BroadcastHandler handles mural post endpoints.
type BroadcastHandler struct {
	service *service.BroadcastService
	logger  *logger.Logger
}

// NewBroadcastHandler creates a new broadcast handler.
func NewBroadcastHandler(svc *service.BroadcastService, log *logger.Logger) *BroadcastHandler {
	return &BroadcastHandler{
		service: svc,
		logger:  log,
	}
}

// Publish handles POST /api/v1/broadcasts. Restricted to teachers and
// admins by route middleware.
func (h *BroadcastHandler) Publish(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req model.PublishBroadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	post, err := h.service.Publish(ctx, &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, post)
}

// List handles GET /api/v1/broadcasts. The caller's profile decides
// relevance; course_id and class_section query parameters let an admin
// preview another audience.
func (h *BroadcastHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	profile := middleware.GetProfile(ctx)

	if c := r.URL.Query().Get("course_id"); c != "" && profile.Role == model.RoleAdmin {
		if parsed, err := strconv.ParseInt(c, 10, 64); err == nil {
			profile.CourseID = parsed
		}
	}
	if s := r.URL.Query().Get("class_section"); s != "" && profile.Role == model.RoleAdmin {
		profile.ClassSection = s
	}

	posts, err := h.service.ListForUser(ctx, profile)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"broadcasts": posts,
		"total":      len(posts),
	})
}
