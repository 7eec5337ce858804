package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/erazemk/evidenca/internal/model"
)

// EventFilter controls which device events to return.
type EventFilter struct {
	Serial    string // optional
	EventType string // optional
	Limit     int
	Offset    int
}

// InsertDeviceEvent appends a device history event and returns its sequence number.
func InsertDeviceEvent(ctx context.Context, db DBTX, ev *model.DeviceEvent) (int64, error) {
	var duration any
	if ev.DurationDays != nil {
		duration = *ev.DurationDays
	}

	res, err := db.ExecContext(ctx,
		`INSERT INTO device_events (id, timestamp, event_type, device_type, serial, specs,
		                            assigned_to, assigned_at, returned_at, duration_days, actor, color)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, formatTime(ev.Timestamp), ev.EventType, ev.DeviceType, ev.Serial, ev.Specs,
		ev.AssignedTo, nullableTime(ev.AssignedAt), nullableTime(ev.ReturnedAt), duration,
		ev.Actor, ev.Color,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting device event: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting device event seq: %w", err)
	}
	return seq, nil
}

// ListDeviceEvents returns device history events newest first.
func ListDeviceEvents(ctx context.Context, db DBTX, f EventFilter) ([]model.DeviceEvent, error) {
	var conditions []string
	var args []any

	if f.Serial != "" {
		conditions = append(conditions, "serial = ?")
		args = append(args, f.Serial)
	}
	if f.EventType != "" {
		conditions = append(conditions, "event_type = ?")
		args = append(args, f.EventType)
	}

	query := `SELECT seq, id, timestamp, event_type, device_type, serial, specs,
	                 assigned_to, assigned_at, returned_at, duration_days, actor, color
	          FROM device_events`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY seq DESC LIMIT ? OFFSET ?"
	args = append(args, f.Limit, f.Offset)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing device events: %w", err)
	}
	defer rows.Close()

	var events []model.DeviceEvent
	for rows.Next() {
		var ev model.DeviceEvent
		var ts string
		var assignedAt, returnedAt sql.NullString
		var duration sql.NullInt64
		if err := rows.Scan(&ev.Seq, &ev.ID, &ts, &ev.EventType, &ev.DeviceType, &ev.Serial, &ev.Specs,
			&ev.AssignedTo, &assignedAt, &returnedAt, &duration, &ev.Actor, &ev.Color); err != nil {
			return nil, fmt.Errorf("scanning device event: %w", err)
		}
		if ev.Timestamp, err = ParseTime(ts); err != nil {
			return nil, fmt.Errorf("device event %s: %w", ev.ID, err)
		}
		if ev.AssignedAt, err = parseNullTime(assignedAt); err != nil {
			return nil, fmt.Errorf("device event %s: %w", ev.ID, err)
		}
		if ev.ReturnedAt, err = parseNullTime(returnedAt); err != nil {
			return nil, fmt.Errorf("device event %s: %w", ev.ID, err)
		}
		if duration.Valid {
			d := int(duration.Int64)
			ev.DurationDays = &d
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// CountDeviceEvents returns the number of stored device events.
func CountDeviceEvents(ctx context.Context, db DBTX) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM device_events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting device events: %w", err)
	}
	return n, nil
}

// DeleteDeviceEvents removes every device event. The table itself is kept.
func DeleteDeviceEvents(ctx context.Context, db DBTX) (int64, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM device_events`)
	if err != nil {
		return 0, fmt.Errorf("deleting device events: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
