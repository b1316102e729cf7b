package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/facegate/facegate/internal/faceid"
	"github.com/facegate/facegate/internal/store"
	"github.com/facegate/facegate/internal/vecindex"
)

// FaceClient is the face server surface the HTTP handlers need.
type FaceClient interface {
	Detect(ctx context.Context, imageData []byte) ([]faceid.Detection, error)
	Embed(ctx context.Context, imageData []byte) ([]float32, error)
}

// IdentifyHandler resolves probe images to enrolled identities.
type IdentifyHandler struct {
	faces      FaceClient
	matcher    *vecindex.Matcher
	identities store.IdentityStore
}

// NewIdentifyHandler creates a new identification handler.
func NewIdentifyHandler(faces FaceClient, matcher *vecindex.Matcher, identities store.IdentityStore) *IdentifyHandler {
	return &IdentifyHandler{faces: faces, matcher: matcher, identities: identities}
}

type identifyRequest struct {
	Image string `json:"image"`
}

type identifyResponse struct {
	Matched    bool    `json:"matched"`
	PersonID   int64   `json:"person_id,omitempty"`
	Name       string  `json:"name,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Reason     string  `json:"reason,omitempty"`
}

// Identify handles POST /api/v1/identify.
func (h *IdentifyHandler) Identify(w http.ResponseWriter, r *http.Request) {
	result, ok := h.identify(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// identify runs the shared decode, embed, match pipeline. It writes the
// error response itself and reports ok=false when the request is already
// answered.
func (h *IdentifyHandler) identify(w http.ResponseWriter, r *http.Request) (identifyResponse, bool) {
	var req identifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return identifyResponse{}, false
	}

	image, err := decodeImage(req.Image)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return identifyResponse{}, false
	}

	embedding, err := h.faces.Embed(r.Context(), image)
	switch {
	case errors.Is(err, faceid.ErrNoFace):
		return identifyResponse{Matched: false, Reason: "no face detected"}, true
	case errors.Is(err, faceid.ErrLowConfidence):
		return identifyResponse{Matched: false, Reason: "face detection confidence too low"}, true
	case err != nil:
		log.Printf("face embedding failed: %v", err)
		respondError(w, http.StatusServiceUnavailable, "face service unavailable")
		return identifyResponse{}, false
	}

	match, matched := h.matcher.Identify(embedding)
	if !matched {
		return identifyResponse{Matched: false, Reason: "no enrolled identity matched"}, true
	}

	resp := identifyResponse{Matched: true, PersonID: match.PersonID, Confidence: match.Confidence}
	if rec, err := h.identities.Get(r.Context(), match.PersonID); err == nil && rec != nil {
		resp.Name = rec.Name
	}
	return resp, true
}
