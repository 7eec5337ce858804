package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/erazemk/evidenca/internal/model"
)

const deviceColumns = `category, row, id, serial, specs, assigned_to, assigned_at, returned_at, status`

// CreateDevice provisions a new device row at the next free position in its
// category. Rows with a serial start out Available.
func CreateDevice(ctx context.Context, db DBTX, category, serial, specs string) (*model.Device, error) {
	var next int
	err := db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(row), 1) + 1 FROM devices WHERE category = ?`, category,
	).Scan(&next)
	if err != nil {
		return nil, fmt.Errorf("finding next device row: %w", err)
	}

	status := ""
	if serial != "" {
		status = model.DeviceStatusAvailable
	}

	_, err = db.ExecContext(ctx,
		`INSERT INTO devices (category, row, serial, specs, status) VALUES (?, ?, ?, ?, ?)`,
		category, next, serial, specs, status,
	)
	if err != nil {
		return nil, fmt.Errorf("creating device: %w", err)
	}

	return GetDevice(ctx, db, category, next)
}

// GetDevice returns a device by category and row, or nil if absent.
func GetDevice(ctx context.Context, db DBTX, category string, row int) (*model.Device, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE category = ? AND row = ?`,
		category, row,
	)
	if err != nil {
		return nil, fmt.Errorf("getting device: %w", err)
	}
	defer rows.Close()

	devices, err := scanDevices(rows)
	if err != nil {
		return nil, err
	}
	if len(devices) == 0 {
		return nil, nil
	}
	return &devices[0], nil
}

// ListDevices returns the devices of a category in row order, optionally
// filtered by status.
func ListDevices(ctx context.Context, db DBTX, category, status string) ([]model.Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE category = ?`
	args := []any{category}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY row`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}
	defer rows.Close()

	return scanDevices(rows)
}

// AssignDevice records a device as assigned. The return date is cleared.
func AssignDevice(ctx context.Context, db DBTX, category string, row int, id, recipient string, at time.Time) error {
	res, err := db.ExecContext(ctx,
		`UPDATE devices
		 SET id = ?, assigned_to = ?, assigned_at = ?, returned_at = NULL, status = ?
		 WHERE category = ? AND row = ?`,
		id, recipient, formatTime(at), model.DeviceStatusAssigned, category, row,
	)
	if err != nil {
		return fmt.Errorf("assigning device: %w", err)
	}
	return requireOneRow(res, "device")
}

// ReturnDevice records a device as returned and clears its assignee. The
// assignment date is kept for reference.
func ReturnDevice(ctx context.Context, db DBTX, category string, row int, at time.Time) error {
	res, err := db.ExecContext(ctx,
		`UPDATE devices
		 SET assigned_to = '', returned_at = ?, status = ?
		 WHERE category = ? AND row = ? AND status = ?`,
		formatTime(at), model.DeviceStatusAvailable, category, row, model.DeviceStatusAssigned,
	)
	if err != nil {
		return fmt.Errorf("returning device: %w", err)
	}
	return requireOneRow(res, "assigned device")
}

// SetDeviceField writes one free-form device field (id, serial or specs).
func SetDeviceField(ctx context.Context, db DBTX, category string, row int, field, value string) error {
	var column string
	switch field {
	case model.DeviceFieldID, model.DeviceFieldSerial, model.DeviceFieldSpecs:
		column = field
	default:
		return fmt.Errorf("field %q is not writable", field)
	}

	res, err := db.ExecContext(ctx,
		`UPDATE devices SET `+column+` = ? WHERE category = ? AND row = ?`,
		value, category, row,
	)
	if err != nil {
		return fmt.Errorf("updating device %s: %w", field, err)
	}
	return requireOneRow(res, "device")
}

// SetDeviceStatus writes a device's status.
func SetDeviceStatus(ctx context.Context, db DBTX, category string, row int, status string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE devices SET status = ? WHERE category = ? AND row = ?`,
		status, category, row,
	)
	if err != nil {
		return fmt.Errorf("updating device status: %w", err)
	}
	return nil
}

func scanDevices(rows *sql.Rows) ([]model.Device, error) {
	var devices []model.Device
	for rows.Next() {
		var d model.Device
		var assignedAt, returnedAt sql.NullString
		if err := rows.Scan(&d.Category, &d.Row, &d.ID, &d.Serial, &d.Specs,
			&d.AssignedTo, &assignedAt, &returnedAt, &d.Status); err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}

		// Unreadable dates are treated as missing so one bad row cannot
		// block a listing; the lifecycle reports missing dates per device.
		d.AssignedAt, _ = parseNullTime(assignedAt)
		d.ReturnedAt, _ = parseNullTime(returnedAt)
		devices = append(devices, d)
	}
	return devices, rows.Err()
}
