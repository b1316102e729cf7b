package mariadb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// RosterEntry is one employee row from the HR system.
type RosterEntry struct {
	EmployeeID int64
	FullName   string
	Department string
	Active     bool
}

// ListEmployees returns the HR roster, active employees first. The HR
// schema is owned by another team; only these columns are contractual.
func (p *Pool) ListEmployees(ctx context.Context) ([]RosterEntry, error) {
	query := `
		SELECT id, full_name, department, active
		FROM employees
		ORDER BY active DESC, full_name
	`

	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query employees: %w", err)
	}
	defer rows.Close()

	var entries []RosterEntry
	for rows.Next() {
		var e RosterEntry
		var dept sql.NullString
		if err := rows.Scan(&e.EmployeeID, &e.FullName, &dept, &e.Active); err != nil {
			return nil, fmt.Errorf("scan employee: %w", err)
		}
		e.Department = dept.String
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate employees: %w", err)
	}
	return entries, nil
}

// GetEmployee returns one employee by id.
func (p *Pool) GetEmployee(ctx context.Context, employeeID int64) (*RosterEntry, error) {
	var e RosterEntry
	var dept sql.NullString

	err := p.db.QueryRowContext(ctx,
		"SELECT id, full_name, department, active FROM employees WHERE id = ?",
		employeeID).Scan(&e.EmployeeID, &e.FullName, &dept, &e.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query employee %d: %w", employeeID, err)
	}

	e.Department = dept.String
	return &e, nil
}
