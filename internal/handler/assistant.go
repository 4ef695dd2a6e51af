package handler

import (
	"encoding/json"
	"net/http"

	"github.com/escolalink/messaging-platform/internal/service"
	"github.com/escolalink/messaging-platform/pkg/logger"
)

// AssistantHandler handles the AI assistant endpoint.
type AssistantHandler struct {
	service *service.AssistantService
	logger  *logger.Logger
}

// NewAssistantHandler creates a new assistant handler.
func NewAssistantHandler(svc *service.AssistantService, log *logger.Logger) *AssistantHandler {
	return &AssistantHandler{
		service: svc,
		logger:  log,
	}
}

// Chat handles POST /api/v1/assistant.
func (h *AssistantHandler) Chat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !h.service.Enabled() {
		writeError(w, http.StatusServiceUnavailable, "assistant is not configured")
		return
	}

	reply, err := h.service.Reply(ctx, req.Content)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"reply": reply})
}
