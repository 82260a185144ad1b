package api

import (
	"context"
	"net/http"

	"github.com/taskrooms/taskrooms/internal/api/respond"
)

// Pinger is implemented by stores that can verify connectivity.
type Pinger interface {
	HealthPing(ctx context.Context) error
}

// HealthHandler reports service and storage health.
type HealthHandler struct {
	pinger Pinger
}

func NewHealthHandler(p Pinger) *HealthHandler { return &HealthHandler{pinger: p} }

// CheckHealth GET /api/health
func (h *HealthHandler) CheckHealth(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// CheckStorageHealth GET /api/health/db
func (h *HealthHandler) CheckStorageHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.pinger.HealthPing(r.Context()); err != nil {
		respond.WriteError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
