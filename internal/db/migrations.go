package db

import (
	"database/sql"
	"fmt"
)

// migrations is a list of SQL statements applied in order after schema creation.
// Each migration must be idempotent. Append new migrations at the end.
var migrations = []string{
	// Migration 1: speed up newest-first listings filtered by action.
	`CREATE INDEX IF NOT EXISTS idx_audit_log_action ON audit_log(action, seq)`,
	// Migration 2: device history lookups by serial.
	`CREATE INDEX IF NOT EXISTS idx_device_events_serial ON device_events(serial, seq)`,
}

// Migrate ensures the schema and runs the migrations.
func Migrate(db *sql.DB) error {
	if err := EnsureSchema(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	for i, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("running migration %d: %w", i+1, err)
		}
	}

	return nil
}
