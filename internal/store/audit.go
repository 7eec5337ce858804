package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/erazemk/evidenca/internal/model"
)

// AuditFilter controls which audit entries to return.
type AuditFilter struct {
	Action   model.Action // optional
	Category string       // optional
	Limit    int
	Offset   int
}

// InsertAuditEntry appends an entry and returns its sequence number.
func InsertAuditEntry(ctx context.Context, db DBTX, e *model.AuditEntry) (int64, error) {
	res, err := db.ExecContext(ctx,
		`INSERT INTO audit_log (timestamp, action, category, location, actor, old_value, new_value, details, item_name, color)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		formatTime(e.Timestamp), string(e.Action), e.Category, e.Location, e.Actor,
		e.OldValue, e.NewValue, e.Details, e.ItemName, e.Color,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting audit entry: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting audit entry seq: %w", err)
	}
	return seq, nil
}

// ListAuditEntries returns entries newest first.
func ListAuditEntries(ctx context.Context, db DBTX, f AuditFilter) ([]model.AuditEntry, error) {
	var conditions []string
	var args []any

	if f.Action != "" {
		conditions = append(conditions, "action = ?")
		args = append(args, string(f.Action))
	}
	if f.Category != "" {
		conditions = append(conditions, "category = ?")
		args = append(args, f.Category)
	}

	query := `SELECT seq, timestamp, action, category, location, actor, old_value, new_value, details, item_name, color
	          FROM audit_log`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY seq DESC LIMIT ? OFFSET ?"
	args = append(args, f.Limit, f.Offset)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing audit entries: %w", err)
	}
	defer rows.Close()

	var entries []model.AuditEntry
	for rows.Next() {
		var e model.AuditEntry
		var ts, action string
		if err := rows.Scan(&e.Seq, &ts, &action, &e.Category, &e.Location, &e.Actor,
			&e.OldValue, &e.NewValue, &e.Details, &e.ItemName, &e.Color); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}
		e.Action = model.Action(action)
		if e.Timestamp, err = ParseTime(ts); err != nil {
			return nil, fmt.Errorf("audit entry %d: %w", e.Seq, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CountAuditEntries returns the number of stored audit entries.
func CountAuditEntries(ctx context.Context, db DBTX) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_log`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting audit entries: %w", err)
	}
	return n, nil
}

// DeleteAuditEntries removes every audit entry. The table itself is kept.
func DeleteAuditEntries(ctx context.Context, db DBTX) (int64, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM audit_log`)
	if err != nil {
		return 0, fmt.Errorf("deleting audit entries: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// GetAuditEntry returns an audit entry by sequence number, or nil if absent.
func GetAuditEntry(ctx context.Context, db DBTX, seq int64) (*model.AuditEntry, error) {
	var e model.AuditEntry
	var ts, action string
	err := db.QueryRowContext(ctx,
		`SELECT seq, timestamp, action, category, location, actor, old_value, new_value, details, item_name, color
		 FROM audit_log WHERE seq = ?`, seq,
	).Scan(&e.Seq, &ts, &action, &e.Category, &e.Location, &e.Actor,
		&e.OldValue, &e.NewValue, &e.Details, &e.ItemName, &e.Color)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting audit entry: %w", err)
	}
	e.Action = model.Action(action)
	if e.Timestamp, err = ParseTime(ts); err != nil {
		return nil, fmt.Errorf("audit entry %d: %w", e.Seq, err)
	}
	return &e, nil
}
