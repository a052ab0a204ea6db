package api

import (
	"net/http"
	"time"

	"github.com/supahealth/supahealth/internal/api/respond"
	"github.com/supahealth/supahealth/internal/store"
)

// HealthHandler reports process liveness and store connectivity.
type HealthHandler struct {
	store store.Store
}

func NewHealthHandler(s store.Store) *HealthHandler {
	return &HealthHandler{store: s}
}

// Check handles GET /api/v1/system/health. Always 200; the body says
// whether the store is reachable.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	if err := h.store.Ping(r.Context()); err != nil {
		status = "unhealthy"
	}
	respond.WriteJSON(w, http.StatusOK, map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
