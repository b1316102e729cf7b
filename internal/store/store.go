// Package store defines the authoritative identity storage interfaces and
// shared record types. Backends live in subpackages (postgres, mariadb,
// mock); the rest of the application depends only on these interfaces.
package store

import "context"

// IdentitySource lists active identities. It is the only storage surface
// the index rebuild path depends on.
type IdentitySource interface {
	// ListActive returns all identities with status "active".
	ListActive(ctx context.Context) ([]IdentityRecord, error)
}

// IdentityStore provides full access to identity records.
type IdentityStore interface {
	IdentitySource

	// Get retrieves an identity by person id, nil if not found.
	Get(ctx context.Context, personID int64) (*IdentityRecord, error)
	// Save inserts or replaces an identity record and returns its person
	// id. A zero PersonID inserts a new identity; re-enrollment passes the
	// existing id and follows up with an index rebuild.
	Save(ctx context.Context, rec IdentityRecord) (int64, error)
	// Deactivate flips an identity to inactive. The index keeps serving
	// the stale embedding until the next rebuild.
	Deactivate(ctx context.Context, personID int64) error
	// Count returns the number of identities, active or not.
	Count(ctx context.Context) (int, error)
}

// AttendanceWriter records verified check-ins.
type AttendanceWriter interface {
	RecordAttendance(ctx context.Context, rec AttendanceRecord) error
}
