package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Setting keys.
const (
	SettingCreatedAt          = "created_at"
	SettingAuditLastCleared   = "audit_last_cleared"
	SettingHistoryLastCleared = "device_history_last_cleared"
	SettingItemHistoryCleared = "item_history_last_cleared"
)

// EnsureSetting stores value under key unless the key already exists, and
// returns whichever value is stored. Uses INSERT OR IGNORE + re-SELECT to
// avoid a TOCTOU race between processes.
func EnsureSetting(ctx context.Context, db DBTX, key, value string) (string, error) {
	_, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO settings (key, value) VALUES (?, ?)`,
		key, value,
	)
	if err != nil {
		return "", fmt.Errorf("storing %s: %w", key, err)
	}

	var stored string
	err = db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = ?`, key,
	).Scan(&stored)
	if err != nil {
		return "", fmt.Errorf("querying %s: %w", key, err)
	}

	return stored, nil
}

// SetSetting stores value under key, replacing any previous value.
func SetSetting(ctx context.Context, db DBTX, key, value string) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("storing %s: %w", key, err)
	}
	return nil
}

// GetSetting returns the value stored under key, or "" if unset.
func GetSetting(ctx context.Context, db DBTX, key string) (string, error) {
	var value string
	err := db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("querying %s: %w", key, err)
	}
	return value, nil
}
