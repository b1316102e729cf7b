package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/facegate/facegate/internal/store"
	"github.com/facegate/facegate/internal/vecindex"
)

// AdminHandler exposes index operations behind the admin token.
type AdminHandler struct {
	index      *vecindex.Manager
	identities store.IdentityStore
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(index *vecindex.Manager, identities store.IdentityStore) *AdminHandler {
	return &AdminHandler{index: index, identities: identities}
}

// Rebuild handles POST /api/v1/admin/rebuild. The old index serves
// searches until the swap, so this is safe to call on a live system.
func (h *AdminHandler) Rebuild(w http.ResponseWriter, r *http.Request) {
	indexed, err := h.index.Rebuild(r.Context(), h.identities)
	if errors.Is(err, vecindex.ErrRebuildSource) {
		respondError(w, http.StatusServiceUnavailable, "identity store unavailable, index unchanged")
		return
	}
	if err != nil {
		log.Printf("index rebuild failed: %v", err)
		respondError(w, http.StatusInternalServerError, "index rebuild failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"indexed": indexed,
		"state":   h.index.State(),
	})
}

// IndexInfo handles GET /api/v1/admin/index.
func (h *AdminHandler) IndexInfo(w http.ResponseWriter, r *http.Request) {
	info := map[string]any{
		"state":   h.index.State(),
		"indexed": h.index.Count(),
	}
	if count, err := h.identities.Count(r.Context()); err == nil {
		info["identities"] = count
	}
	respondJSON(w, http.StatusOK, info)
}
