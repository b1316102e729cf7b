package handlers

import (
	"context"
	"net/http"

	"github.com/facegate/facegate/internal/vecindex"
)

// Pinger checks backing store liveness. Nil means no store is configured.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports service liveness and index readiness.
type HealthHandler struct {
	index *vecindex.Manager
	db    Pinger
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(index *vecindex.Manager, db Pinger) *HealthHandler {
	return &HealthHandler{index: index, db: db}
}

// Health handles GET /api/v1/health. A degraded index still answers 200,
// load balancers should keep routing while operators rebuild.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":      "ok",
		"index_state": h.index.State(),
		"indexed":     h.index.Count(),
	}

	if h.db != nil {
		if err := h.db.Ping(r.Context()); err != nil {
			resp["status"] = "degraded"
			resp["database"] = "unavailable"
		} else {
			resp["database"] = "ok"
		}
	}

	respondJSON(w, http.StatusOK, resp)
}
