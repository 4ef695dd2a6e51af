package handler

import (
	"net/http"

	"github.com/escolalink/messaging-platform/internal/store"
	"github.com/escolalink/messaging-platform/internal/ws"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	store store.Store
	hub   *ws.Hub
	// busConnected reports fan-out bus health; nil when the bus is not
	// configured.
	busConnected func() bool
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(st store.Store, hub *ws.Hub, busConnected func() bool) *HealthHandler {
	return &HealthHandler{
		store:        st,
		hub:          hub,
		busConnected: busConnected,
	}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "store unavailable",
		})
		return
	}
	if !h.hub.Running() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "delivery hub not running",
		})
		return
	}
	if h.busConnected != nil && !h.busConnected() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "fan-out bus not connected",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
