package store

import (
	"time"
)

// Identity statuses. Identities are deactivated, never deleted, so the
// attendance history keeps its foreign keys.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// IdentityRecord is the authoritative record of an enrolled person. The
// vector index holds a read-derived copy of active identities' embeddings;
// this table is the source of truth for rebuilds.
type IdentityRecord struct {
	PersonID          int64
	Name              string
	Embedding         []float32
	EnrollmentQuality float64
	Status            string
	EnrolledAt        time.Time
}

// AttendanceRecord is one verified check-in.
type AttendanceRecord struct {
	UID        string // uuid
	PersonID   int64
	Confidence float64
	RecordedAt time.Time
}
