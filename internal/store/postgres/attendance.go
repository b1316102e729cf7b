package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/facegate/facegate/internal/store"
)

// AttendanceRepository provides PostgreSQL-backed attendance logging.
type AttendanceRepository struct {
	pool *Pool
}

// NewAttendanceRepository creates a new PostgreSQL attendance repository.
func NewAttendanceRepository(pool *Pool) *AttendanceRepository {
	return &AttendanceRepository{pool: pool}
}

// RecordAttendance inserts one verified check-in. A missing UID or
// timestamp is filled in here so callers only have to supply the decision.
func (r *AttendanceRepository) RecordAttendance(ctx context.Context, rec store.AttendanceRecord) error {
	if rec.UID == "" {
		rec.UID = uuid.NewString()
	}
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now().UTC()
	}

	_, err := r.pool.Exec(ctx,
		"INSERT INTO attendance (uid, person_id, confidence, recorded_at) VALUES ($1, $2, $3, $4)",
		rec.UID, rec.PersonID, rec.Confidence, rec.RecordedAt)
	if err != nil {
		return fmt.Errorf("insert attendance: %w", err)
	}
	return nil
}

// ListRecent returns the most recent check-ins, newest first.
func (r *AttendanceRepository) ListRecent(ctx context.Context, limit int) ([]store.AttendanceRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx,
		"SELECT uid, person_id, confidence, recorded_at FROM attendance ORDER BY recorded_at DESC LIMIT $1",
		limit)
	if err != nil {
		return nil, fmt.Errorf("query attendance: %w", err)
	}
	defer rows.Close()

	var records []store.AttendanceRecord
	for rows.Next() {
		var rec store.AttendanceRecord
		if err := rows.Scan(&rec.UID, &rec.PersonID, &rec.Confidence, &rec.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan attendance: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendance: %w", err)
	}
	return records, nil
}
