package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/facegate/facegate/internal/store"
)

// AttendanceHandler turns successful identifications into check-in records.
type AttendanceHandler struct {
	identify   *IdentifyHandler
	attendance store.AttendanceWriter
}

// NewAttendanceHandler creates a new attendance handler.
func NewAttendanceHandler(identify *IdentifyHandler, attendance store.AttendanceWriter) *AttendanceHandler {
	return &AttendanceHandler{identify: identify, attendance: attendance}
}

type checkInResponse struct {
	identifyResponse
	AttendanceUID string    `json:"attendance_uid,omitempty"`
	RecordedAt    time.Time `json:"recorded_at,omitzero"`
}

// CheckIn handles POST /api/v1/attendance/check-in. An unmatched probe is
// a normal outcome, not an error; nothing is recorded for it.
func (h *AttendanceHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	result, ok := h.identify.identify(w, r)
	if !ok {
		return
	}
	if !result.Matched {
		respondJSON(w, http.StatusOK, checkInResponse{identifyResponse: result})
		return
	}

	rec := store.AttendanceRecord{
		UID:        uuid.NewString(),
		PersonID:   result.PersonID,
		Confidence: result.Confidence,
		RecordedAt: time.Now().UTC(),
	}
	if err := h.attendance.RecordAttendance(r.Context(), rec); err != nil {
		log.Printf("recording attendance for person %d failed: %v", result.PersonID, err)
		respondError(w, http.StatusInternalServerError, "failed to record attendance")
		return
	}

	respondJSON(w, http.StatusOK, checkInResponse{
		identifyResponse: result,
		AttendanceUID:    rec.UID,
		RecordedAt:       rec.RecordedAt,
	})
}
