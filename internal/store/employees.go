package store

import (
	"context"
	"fmt"

	"github.com/erazemk/evidenca/internal/model"
)

// UpsertEmployee creates or replaces a directory record keyed by email.
func UpsertEmployee(ctx context.Context, db DBTX, e model.Employee) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO employees (email, name, status) VALUES (?, ?, ?)
		 ON CONFLICT (email) DO UPDATE SET name = excluded.name, status = excluded.status`,
		e.Email, e.Name, e.Status,
	)
	if err != nil {
		return fmt.Errorf("saving employee: %w", err)
	}
	return nil
}

// ListEmployees returns all directory records ordered by email.
func ListEmployees(ctx context.Context, db DBTX) ([]model.Employee, error) {
	rows, err := db.QueryContext(ctx, `SELECT email, name, status FROM employees ORDER BY email`)
	if err != nil {
		return nil, fmt.Errorf("listing employees: %w", err)
	}
	defer rows.Close()

	var employees []model.Employee
	for rows.Next() {
		var e model.Employee
		if err := rows.Scan(&e.Email, &e.Name, &e.Status); err != nil {
			return nil, fmt.Errorf("scanning employee: %w", err)
		}
		employees = append(employees, e)
	}
	return employees, rows.Err()
}

// ListActiveEmails returns the emails of active employees, sorted.
// Entries without an @ are not addresses and are skipped.
func ListActiveEmails(ctx context.Context, db DBTX) ([]string, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT email FROM employees
		 WHERE status = ? AND instr(email, '@') > 0
		 ORDER BY email`, model.EmployeeStatusActive,
	)
	if err != nil {
		return nil, fmt.Errorf("listing active emails: %w", err)
	}
	defer rows.Close()

	var emails []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, fmt.Errorf("scanning email: %w", err)
		}
		emails = append(emails, email)
	}
	return emails, rows.Err()
}
