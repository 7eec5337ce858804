package db

import (
	"database/sql"
	"fmt"
)

// schema is the full database schema.
//
// items.quantity has no declared type: rows provisioned by hand may carry the
// stock as text ("7", "7,0") and the ledger normalizes it on read.
const schema = `
CREATE TABLE IF NOT EXISTS items (
    row        INTEGER PRIMARY KEY CHECK (row > 1),
    id         TEXT NOT NULL DEFAULT '',
    name       TEXT NOT NULL DEFAULT '',
    quantity,
    history    TEXT NOT NULL DEFAULT '',
    updated_at TEXT
);

CREATE TABLE IF NOT EXISTS devices (
    category    TEXT NOT NULL,
    row         INTEGER NOT NULL CHECK (row > 1),
    id          TEXT NOT NULL DEFAULT '',
    serial      TEXT NOT NULL DEFAULT '',
    specs       TEXT NOT NULL DEFAULT '',
    assigned_to TEXT NOT NULL DEFAULT '',
    assigned_at TEXT,
    returned_at TEXT,
    status      TEXT NOT NULL DEFAULT '' CHECK (status IN ('', 'Available', 'Assigned')),
    PRIMARY KEY (category, row)
);

CREATE INDEX IF NOT EXISTS idx_devices_status ON devices(status);

CREATE TABLE IF NOT EXISTS audit_log (
    seq        INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp  TEXT NOT NULL,
    action     TEXT NOT NULL,
    category   TEXT NOT NULL,
    location   TEXT NOT NULL DEFAULT '',
    actor      TEXT NOT NULL,
    old_value  TEXT NOT NULL DEFAULT '',
    new_value  TEXT NOT NULL DEFAULT '',
    details    TEXT NOT NULL DEFAULT '',
    item_name  TEXT NOT NULL DEFAULT '',
    color      TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS device_events (
    seq           INTEGER PRIMARY KEY AUTOINCREMENT,
    id            TEXT NOT NULL,
    timestamp     TEXT NOT NULL,
    event_type    TEXT NOT NULL CHECK (event_type IN ('Assign', 'Return')),
    device_type   TEXT NOT NULL,
    serial        TEXT NOT NULL DEFAULT '',
    specs         TEXT NOT NULL DEFAULT '',
    assigned_to   TEXT NOT NULL DEFAULT '',
    assigned_at   TEXT,
    returned_at   TEXT,
    duration_days INTEGER,
    actor         TEXT NOT NULL,
    color         TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS employees (
    email  TEXT PRIMARY KEY,
    name   TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT 'Active'
);

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

// EnsureSchema creates all tables and indexes if they don't already exist.
func EnsureSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}
