package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/facegate/facegate/internal/store"
)

// IdentityRepository provides PostgreSQL-backed identity storage.
type IdentityRepository struct {
	pool *Pool
}

// NewIdentityRepository creates a new PostgreSQL identity repository.
func NewIdentityRepository(pool *Pool) *IdentityRepository {
	return &IdentityRepository{pool: pool}
}

// ListActive returns all identities with status "active", ordered by person
// id so rebuilds assign index slots deterministically.
func (r *IdentityRepository) ListActive(ctx context.Context) ([]store.IdentityRecord, error) {
	query := `
		SELECT person_id, name, embedding, enrollment_quality, status, enrolled_at
		FROM identities
		WHERE status = $1
		ORDER BY person_id
	`

	rows, err := r.pool.Query(ctx, query, store.StatusActive)
	if err != nil {
		return nil, fmt.Errorf("query active identities: %w", err)
	}
	defer rows.Close()

	var records []store.IdentityRecord
	for rows.Next() {
		rec, err := scanIdentity(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate identities: %w", err)
	}
	return records, nil
}

// Get retrieves an identity by person id, returns nil if not found.
func (r *IdentityRepository) Get(ctx context.Context, personID int64) (*store.IdentityRecord, error) {
	query := `
		SELECT person_id, name, embedding, enrollment_quality, status, enrolled_at
		FROM identities
		WHERE person_id = $1
	`

	var rec store.IdentityRecord
	var vec pgvector.Vector

	err := r.pool.QueryRow(ctx, query, personID).Scan(
		&rec.PersonID,
		&rec.Name,
		&vec,
		&rec.EnrollmentQuality,
		&rec.Status,
		&rec.EnrolledAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query identity: %w", err)
	}

	rec.Embedding = vec.Slice()
	return &rec, nil
}

// Save inserts or replaces an identity record and returns its person id.
func (r *IdentityRepository) Save(ctx context.Context, rec store.IdentityRecord) (int64, error) {
	vec := pgvector.NewVector(rec.Embedding)

	if rec.PersonID == 0 {
		query := `
			INSERT INTO identities (name, embedding, enrollment_quality, status)
			VALUES ($1, $2, $3, $4)
			RETURNING person_id
		`
		var id int64
		err := r.pool.QueryRow(ctx, query, rec.Name, vec, rec.EnrollmentQuality, store.StatusActive).Scan(&id)
		if err != nil {
			return 0, fmt.Errorf("insert identity: %w", err)
		}
		return id, nil
	}

	query := `
		UPDATE identities
		SET name = $2, embedding = $3, enrollment_quality = $4, status = $5, enrolled_at = NOW()
		WHERE person_id = $1
	`
	result, err := r.pool.Exec(ctx, query, rec.PersonID, rec.Name, vec, rec.EnrollmentQuality, store.StatusActive)
	if err != nil {
		return 0, fmt.Errorf("update identity: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("update identity: %w", err)
	}
	if affected == 0 {
		return 0, fmt.Errorf("identity %d not found", rec.PersonID)
	}
	return rec.PersonID, nil
}

// Deactivate flips an identity to inactive. The record stays for the
// attendance history; the index drops it on the next rebuild.
func (r *IdentityRepository) Deactivate(ctx context.Context, personID int64) error {
	result, err := r.pool.Exec(ctx,
		"UPDATE identities SET status = $2 WHERE person_id = $1",
		personID, store.StatusInactive)
	if err != nil {
		return fmt.Errorf("deactivate identity: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("deactivate identity: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("identity %d not found", personID)
	}
	return nil
}

// Count returns the number of identities, active or not.
func (r *IdentityRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM identities").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count identities: %w", err)
	}
	return count, nil
}

func scanIdentity(rows *sql.Rows) (store.IdentityRecord, error) {
	var rec store.IdentityRecord
	var vec pgvector.Vector

	err := rows.Scan(
		&rec.PersonID,
		&rec.Name,
		&vec,
		&rec.EnrollmentQuality,
		&rec.Status,
		&rec.EnrolledAt,
	)
	if err != nil {
		return rec, fmt.Errorf("scan identity: %w", err)
	}

	rec.Embedding = vec.Slice()
	return rec, nil
}
