// Package audit keeps the append-only trail of every mutation.
package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/erazemk/evidenca/internal/clock"
	"github.com/erazemk/evidenca/internal/model"
	"github.com/erazemk/evidenca/internal/notify"
	"github.com/erazemk/evidenca/internal/store"
)

// DefaultCategory is the category name of the audit trail itself.
const DefaultCategory = "Audit Log"

// Listing limits.
const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// ClearPrompt is the confirmation shown before the trail is wiped.
const ClearPrompt = "Delete ALL audit records? This cannot be undone!"

var (
	// ErrNoChange is returned for entries whose old and new values match.
	ErrNoChange = errors.New("audit: old and new values are equal")
	// ErrSelfLog is returned for entries about the audit trail itself.
	ErrSelfLog = errors.New("audit: refusing to log changes to the audit log")
)

// Trail is the audit trail. It only grows, except through Clear.
type Trail struct {
	db       *sql.DB
	clock    clock.Clock
	category string

	// Location is the time zone used by Rows.
	Location *time.Location
}

// New returns a trail over db. category is the trail's own category name;
// entries about it are refused.
func New(db *sql.DB, clk clock.Clock, category string) *Trail {
	if clk == nil {
		clk = clock.System{}
	}
	if category == "" {
		category = DefaultCategory
	}
	return &Trail{db: db, clock: clk, category: category, Location: time.Local}
}

// Category returns the trail's own category name.
func (t *Trail) Category() string { return t.category }

// Append stores e and returns it with its sequence number set.
func (t *Trail) Append(ctx context.Context, e model.AuditEntry) (*model.AuditEntry, error) {
	if strings.EqualFold(e.Category, t.category) {
		return nil, ErrSelfLog
	}
	if e.OldValue == e.NewValue {
		return nil, ErrNoChange
	}
	if !e.Action.Valid() {
		return nil, fmt.Errorf("audit: unknown action %q", e.Action)
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = t.clock.Now()
	}
	if e.Color == "" {
		e.Color = model.ActionColor(e.Action)
	}
	e.Actor = clock.Actor(e.Actor)

	seq, err := store.InsertAuditEntry(ctx, t.db, &e)
	if err != nil {
		return nil, err
	}
	e.Seq = seq
	return &e, nil
}

// Filter selects entries for List.
type Filter struct {
	Action   model.Action
	Category string
	Limit    int
	Offset   int
}

// List returns entries newest first.
func (t *Trail) List(ctx context.Context, f Filter) ([]model.AuditEntry, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	return store.ListAuditEntries(ctx, t.db, store.AuditFilter{
		Action:   f.Action,
		Category: f.Category,
		Limit:    limit,
		Offset:   offset,
	})
}

// Count returns the number of stored entries.
func (t *Trail) Count(ctx context.Context) (int, error) {
	return store.CountAuditEntries(ctx, t.db)
}

// Clear deletes every entry after the confirmer agrees. It returns the
// number of entries removed. This cannot be undone.
func (t *Trail) Clear(ctx context.Context, confirmer notify.Confirmer, actor string) (int64, error) {
	if confirmer == nil || !confirmer.Confirm("Clear Audit Log", ClearPrompt) {
		return 0, notify.ErrNotConfirmed
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	n, err := store.DeleteAuditEntries(ctx, tx)
	if err != nil {
		return 0, err
	}
	if err := store.SetSetting(ctx, tx, store.SettingAuditLastCleared, t.clock.Now().UTC().Format(time.RFC3339)); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing audit clear: %w", err)
	}

	slog.Info("audit log cleared", "entries", n, "actor", clock.Actor(actor))
	return n, nil
}

// Rows renders entries in the stable audit row layout.
func (t *Trail) Rows(entries []model.AuditEntry) [][]string {
	rows := make([][]string, len(entries))
	for i, e := range entries {
		rows[i] = e.Row(t.Location)
	}
	return rows
}
