// Package devicelog records device assignments and returns.
package devicelog

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/erazemk/evidenca/internal/clock"
	"github.com/erazemk/evidenca/internal/ident"
	"github.com/erazemk/evidenca/internal/model"
	"github.com/erazemk/evidenca/internal/notify"
	"github.com/erazemk/evidenca/internal/store"
)

// DefaultCategory is the category name of the device history log.
const DefaultCategory = "Device History Log"

// ClearPrompt is the confirmation shown before the log is wiped.
const ClearPrompt = "Are you sure you want to clear ALL history records? This cannot be undone."

const (
	defaultLimit = 50
	maxLimit     = 500
)

// Log is the unbounded device history log.
type Log struct {
	db    *sql.DB
	clock clock.Clock
	ids   *ident.Allocator

	// Location is the time zone used by Rows.
	Location *time.Location
}

// New returns a device history log over db.
func New(db *sql.DB, clk clock.Clock, ids *ident.Allocator) *Log {
	if clk == nil {
		clk = clock.System{}
	}
	if ids == nil {
		ids = ident.New()
	}
	return &Log{db: db, clock: clk, ids: ids, Location: time.Local}
}

// EventColor returns the colour tag of an event type.
func EventColor(eventType string) string {
	if eventType == model.EventReturn {
		return model.ColorEventReturn
	}
	return model.ColorEventAssign
}

// Append stores ev with a fresh ID and returns the stored event.
func (l *Log) Append(ctx context.Context, ev model.DeviceEvent) (*model.DeviceEvent, error) {
	if ev.EventType != model.EventAssign && ev.EventType != model.EventReturn {
		return nil, fmt.Errorf("devicelog: unknown event type %q", ev.EventType)
	}

	ev.ID = l.ids.Token()
	if ev.Timestamp.IsZero() {
		ev.Timestamp = l.clock.Now()
	}
	ev.Color = EventColor(ev.EventType)
	ev.Actor = clock.Actor(ev.Actor)
	if ev.EventType != model.EventReturn {
		ev.ReturnedAt = nil
		ev.DurationDays = nil
	}

	seq, err := store.InsertDeviceEvent(ctx, l.db, &ev)
	if err != nil {
		return nil, err
	}
	ev.Seq = seq
	return &ev, nil
}

// Filter selects events for List.
type Filter struct {
	Serial    string
	EventType string
	Limit     int
	Offset    int
}

// List returns events newest first.
func (l *Log) List(ctx context.Context, f Filter) ([]model.DeviceEvent, error) {
	if f.Limit <= 0 {
		f.Limit = defaultLimit
	}
	if f.Limit > maxLimit {
		f.Limit = maxLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return store.ListDeviceEvents(ctx, l.db, store.EventFilter{
		Serial:    f.Serial,
		EventType: f.EventType,
		Limit:     f.Limit,
		Offset:    f.Offset,
	})
}

// Count returns the number of stored events.
func (l *Log) Count(ctx context.Context) (int, error) {
	return store.CountDeviceEvents(ctx, l.db)
}

// Clear deletes every event after the confirmer agrees.
func (l *Log) Clear(ctx context.Context, confirmer notify.Confirmer, actor string) (int64, error) {
	if confirmer == nil || !confirmer.Confirm("Confirm Clear", ClearPrompt) {
		return 0, notify.ErrNotConfirmed
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	n, err := store.DeleteDeviceEvents(ctx, tx)
	if err != nil {
		return 0, err
	}
	if err := store.SetSetting(ctx, tx, store.SettingHistoryLastCleared, l.clock.Now().UTC().Format(time.RFC3339)); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing device history clear: %w", err)
	}

	slog.Info("device history cleared", "events", n, "actor", clock.Actor(actor))
	return n, nil
}

// Rows renders events in the stable device history row layout.
func (l *Log) Rows(events []model.DeviceEvent) [][]string {
	rows := make([][]string, len(events))
	for i, ev := range events {
		rows[i] = ev.Row(l.Location)
	}
	return rows
}
