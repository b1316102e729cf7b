package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/facegate/facegate/internal/config"
	"github.com/facegate/facegate/internal/enroll"
	"github.com/facegate/facegate/internal/store"
	"github.com/facegate/facegate/internal/vecindex"
)

// EnrollHandler handles identity enrollment.
type EnrollHandler struct {
	cfg        *config.Config
	identities store.IdentityStore
	aggregator *enroll.Aggregator
	index      *vecindex.Manager
}

// NewEnrollHandler creates a new enrollment handler.
func NewEnrollHandler(cfg *config.Config, identities store.IdentityStore, aggregator *enroll.Aggregator, index *vecindex.Manager) *EnrollHandler {
	return &EnrollHandler{cfg: cfg, identities: identities, aggregator: aggregator, index: index}
}

type enrollRequest struct {
	// PersonID re-enrolls an existing identity when set.
	PersonID int64    `json:"person_id,omitempty"`
	Name     string   `json:"name"`
	Images   []string `json:"images"` // base64, data-URL prefix tolerated
}

type enrollResponse struct {
	PersonID int64                `json:"person_id"`
	Name     string               `json:"name"`
	Quality  float64              `json:"quality"`
	Accepted int                  `json:"accepted"`
	Reports  []enroll.ImageReport `json:"reports"`
}

// Enroll handles POST /api/v1/enroll.
func (h *EnrollHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	var req enrollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}
	if len(req.Images) < h.cfg.Enrollment.MinImages {
		respondError(w, http.StatusBadRequest,
			fmt.Sprintf("at least %d images are required", h.cfg.Enrollment.MinImages))
		return
	}
	if len(req.Images) > h.cfg.Enrollment.MaxImages {
		respondError(w, http.StatusBadRequest,
			fmt.Sprintf("at most %d images are allowed", h.cfg.Enrollment.MaxImages))
		return
	}

	images := make([][]byte, 0, len(req.Images))
	for i, encoded := range req.Images {
		data, err := decodeImage(encoded)
		if err != nil {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("image %d: %v", i, err))
			return
		}
		images = append(images, data)
	}

	embedding, reports, err := h.aggregator.Aggregate(r.Context(), images)
	if errors.Is(err, enroll.ErrInsufficientSamples) {
		respondJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":   "no usable face samples in batch",
			"reports": reports,
		})
		return
	}
	if err != nil {
		log.Printf("enrollment aggregation failed: %v", err)
		respondError(w, http.StatusInternalServerError, "enrollment failed")
		return
	}

	accepted, quality := summarize(reports)
	if accepted < h.cfg.Enrollment.MinImages {
		respondJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":   fmt.Sprintf("only %d of the required %d images were usable", accepted, h.cfg.Enrollment.MinImages),
			"reports": reports,
		})
		return
	}

	personID, err := h.identities.Save(r.Context(), store.IdentityRecord{
		PersonID:          req.PersonID,
		Name:              req.Name,
		Embedding:         embedding,
		EnrollmentQuality: quality,
	})
	if err != nil {
		log.Printf("saving identity failed: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to save identity")
		return
	}

	if req.PersonID == 0 {
		if err := h.index.Add(personID, embedding); err != nil {
			log.Printf("indexing identity %d failed: %v", personID, err)
			respondError(w, http.StatusInternalServerError, "failed to index identity")
			return
		}
	} else {
		// Re-enrollment replaces an embedding; rebuild is the only way to
		// update the flat index.
		if _, err := h.index.Rebuild(r.Context(), h.identities); err != nil {
			log.Printf("index rebuild after re-enrollment of %d failed: %v", personID, err)
			respondError(w, http.StatusInternalServerError, "failed to refresh index")
			return
		}
	}

	respondJSON(w, http.StatusCreated, enrollResponse{
		PersonID: personID,
		Name:     req.Name,
		Quality:  quality,
		Accepted: accepted,
		Reports:  reports,
	})
}

// Deactivate handles DELETE /api/v1/identities/{id} by flipping the record
// inactive and rebuilding the index without it.
func (h *EnrollHandler) Deactivate(w http.ResponseWriter, r *http.Request, personID int64) {
	if err := h.identities.Deactivate(r.Context(), personID); err != nil {
		respondError(w, http.StatusNotFound, fmt.Sprintf("identity %d not found", personID))
		return
	}
	if _, err := h.index.Rebuild(r.Context(), h.identities); err != nil {
		log.Printf("index rebuild after deactivating %d failed: %v", personID, err)
		respondError(w, http.StatusInternalServerError, "identity deactivated but index refresh failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"person_id": personID, "status": store.StatusInactive})
}

// summarize returns the accepted count and the mean quality score of the
// accepted images.
func summarize(reports []enroll.ImageReport) (int, float64) {
	var accepted int
	var sum float64
	for _, rep := range reports {
		if rep.Status == enroll.StatusAccepted {
			accepted++
			sum += rep.Quality.Score
		}
	}
	if accepted == 0 {
		return 0, 0
	}
	return accepted, sum / float64(accepted)
}
