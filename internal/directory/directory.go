// Package directory is a read-mostly view of the employee directory. Only
// active employees with an email address may receive devices.
package directory

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/erazemk/evidenca/internal/model"
	"github.com/erazemk/evidenca/internal/store"
)

// Directory reads employees from the database.
type Directory struct {
	db *sql.DB
}

// New returns a directory over db.
func New(db *sql.DB) *Directory {
	return &Directory{db: db}
}

// Normalize trims an email and puts it in Unicode NFC form, so the same
// address typed on different systems compares equal.
func Normalize(email string) string {
	return norm.NFC.String(strings.TrimSpace(email))
}

// Add creates or updates an employee record.
func (d *Directory) Add(ctx context.Context, e model.Employee) error {
	e.Email = Normalize(e.Email)
	e.Name = norm.NFC.String(strings.TrimSpace(e.Name))
	if e.Email == "" {
		return fmt.Errorf("employee email is required")
	}
	if e.Status == "" {
		e.Status = model.EmployeeStatusActive
	}
	return store.UpsertEmployee(ctx, d.db, e)
}

// List returns every employee ordered by email.
func (d *Directory) List(ctx context.Context) ([]model.Employee, error) {
	return store.ListEmployees(ctx, d.db)
}

// ActiveRecipients returns the sorted emails of active employees.
func (d *Directory) ActiveRecipients(ctx context.Context) ([]string, error) {
	return store.ListActiveEmails(ctx, d.db)
}

// IsActive reports whether email belongs to an active employee.
func (d *Directory) IsActive(ctx context.Context, email string) (bool, error) {
	active, err := d.ActiveRecipients(ctx)
	if err != nil {
		return false, err
	}
	_, found := slices.BinarySearch(active, Normalize(email))
	return found, nil
}
