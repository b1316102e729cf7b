package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/facegate/facegate/internal/quality"
)

// FaceHandler exposes raw detection and capture quality checks, used by
// enrollment clients to give feedback before submitting a batch.
type FaceHandler struct {
	faces      FaceClient
	assessor   *quality.Assessor
	minQuality float64
}

// NewFaceHandler creates a new face utility handler.
func NewFaceHandler(faces FaceClient, assessor *quality.Assessor, minQuality float64) *FaceHandler {
	return &FaceHandler{faces: faces, assessor: assessor, minQuality: minQuality}
}

type imageRequest struct {
	Image string `json:"image"`
}

type detectedFace struct {
	BBox     []float64 `json:"bbox"`
	DetScore float64   `json:"det_score"`
}

// Detect handles POST /api/v1/face/detect. Embeddings stay server-side;
// clients only get geometry and confidence.
func (h *FaceHandler) Detect(w http.ResponseWriter, r *http.Request) {
	var req imageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	image, err := decodeImage(req.Image)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	detections, err := h.faces.Detect(r.Context(), image)
	if err != nil {
		log.Printf("face detection failed: %v", err)
		respondError(w, http.StatusServiceUnavailable, "face service unavailable")
		return
	}

	faces := make([]detectedFace, 0, len(detections))
	for _, d := range detections {
		faces = append(faces, detectedFace{BBox: d.BBox, DetScore: d.DetScore})
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"faces_count": len(faces),
		"faces":       faces,
	})
}

// QualityCheck handles POST /api/v1/face/quality-check.
func (h *FaceHandler) QualityCheck(w http.ResponseWriter, r *http.Request) {
	var req imageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	image, err := decodeImage(req.Image)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	report := h.assessor.Assess(image)
	respondJSON(w, http.StatusOK, quality.Evaluate(report, h.minQuality))
}
