// Package ledger owns inventory quantities. Every accepted change is kept in
// the item's rotating history and appended to the audit trail.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/erazemk/evidenca/internal/clock"
	"github.com/erazemk/evidenca/internal/history"
	"github.com/erazemk/evidenca/internal/ident"
	"github.com/erazemk/evidenca/internal/metrics"
	"github.com/erazemk/evidenca/internal/model"
	"github.com/erazemk/evidenca/internal/notify"
	"github.com/erazemk/evidenca/internal/store"
)

// Defaults for the inventory layout.
const (
	DefaultCategory    = "IT_Storage"
	DefaultStockColumn = "E"
)

// HistoryClearPrompt is the confirmation shown before item histories are wiped.
const HistoryClearPrompt = "Clear the change history of every item? This cannot be undone."

// Auditor appends entries to the audit trail.
type Auditor interface {
	Append(ctx context.Context, e model.AuditEntry) (*model.AuditEntry, error)
}

type discard struct{}

func (discard) Append(context.Context, model.AuditEntry) (*model.AuditEntry, error) { return nil, nil }

// Cell addresses one stock cell.
type Cell struct {
	Category string
	Row      int
	Column   string
}

// Config is the inventory layout the ledger operates on.
type Config struct {
	Category    string
	StockColumn string
	Location    *time.Location
}

// Deps are the ledger's collaborators. Nil fields get working defaults.
type Deps struct {
	Auditor  Auditor
	IDs      *ident.Allocator
	Clock    clock.Clock
	Notifier notify.Notifier
	Flasher  notify.Flasher
	Metrics  *metrics.Recorder
	Logger   *slog.Logger
}

// Result describes an applied stock change.
type Result struct {
	Item     model.Item
	Previous int
	Delta    int
	Action   model.Action
	Audit    *model.AuditEntry
	// Diagnostics lists log and presentation failures that happened after
	// the change was committed.
	Diagnostics []string
}

// Ledger applies stock changes. Public operations are serialised.
type Ledger struct {
	mu   sync.Mutex
	db   *sql.DB
	cfg  Config
	deps Deps
}

// New returns a ledger over db.
func New(db *sql.DB, cfg Config, deps Deps) *Ledger {
	if cfg.Category == "" {
		cfg.Category = DefaultCategory
	}
	if cfg.StockColumn == "" {
		cfg.StockColumn = DefaultStockColumn
	}
	cfg.StockColumn = strings.ToUpper(cfg.StockColumn)
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if deps.Auditor == nil {
		deps.Auditor = discard{}
	}
	if deps.IDs == nil {
		deps.IDs = ident.New()
	}
	if deps.Clock == nil {
		deps.Clock = clock.System{}
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.Nop{}
	}
	if deps.Flasher == nil {
		deps.Flasher = notify.Nop{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Ledger{db: db, cfg: cfg, deps: deps}
}

// StockCell returns the stock cell of an inventory row.
func (l *Ledger) StockCell(row int) Cell {
	return Cell{Category: l.cfg.Category, Row: row, Column: l.cfg.StockColumn}
}

// Increment adds one to the cell's quantity.
func (l *Ledger) Increment(ctx context.Context, cell Cell, actor string) (*Result, error) {
	return l.ApplyDelta(ctx, cell, 1, actor)
}

// Decrement removes one from the cell's quantity.
func (l *Ledger) Decrement(ctx context.Context, cell Cell, actor string) (*Result, error) {
	return l.ApplyDelta(ctx, cell, -1, actor)
}

// ApplyDelta changes the quantity at cell by delta. The change is rejected
// when the cell is not a stock cell, the stored quantity is malformed, or the
// result would be negative; nothing is written in that case.
func (l *Ledger) ApplyDelta(ctx context.Context, cell Cell, delta int, actor string) (*Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	actor = clock.Actor(actor)
	res, err := l.applyDelta(ctx, cell, delta, actor)
	if err != nil {
		l.deps.Metrics.Rejection("apply_delta", Kind(err))
		return nil, err
	}
	l.deps.Metrics.StockMutation(string(res.Action))

	l.deps.Logger.Info("stock updated",
		"row", res.Item.Row, "item", res.Item.Name,
		"from", res.Previous, "to", res.Item.Quantity, "actor", actor)

	location := model.CellRef(l.cfg.StockColumn, res.Item.Row)
	entry, err := l.deps.Auditor.Append(ctx, model.AuditEntry{
		Timestamp: res.Item.History[0].Timestamp,
		Action:    res.Action,
		Category:  l.cfg.Category,
		Location:  location,
		Actor:     actor,
		OldValue:  strconv.Itoa(res.Previous),
		NewValue:  strconv.Itoa(res.Item.Quantity),
		Details:   fmt.Sprintf("Changed from %d to %d", res.Previous, res.Item.Quantity),
		ItemName:  res.Item.Name,
	})
	if err != nil {
		res.Diagnostics = append(res.Diagnostics, "audit: "+err.Error())
		l.deps.Metrics.LogFailure("audit")
		l.deps.Logger.Warn("writing audit entry", "location", location, "error", err)
	}
	res.Audit = entry

	if err := l.deps.Flasher.Flash(ctx, location, model.ColorFlashSuccess); err != nil {
		res.Diagnostics = append(res.Diagnostics, "flash: "+err.Error())
	}

	verb := "increased"
	if delta < 0 {
		verb = "decreased"
	}
	magnitude := delta
	if magnitude < 0 {
		magnitude = -magnitude
	}
	l.deps.Notifier.Notify(fmt.Sprintf("Stock %s by %d. New value: %d", verb, magnitude, res.Item.Quantity), "Success", 3)

	return res, nil
}

func (l *Ledger) applyDelta(ctx context.Context, cell Cell, delta int, actor string) (*Result, error) {
	if err := l.checkCell(cell); err != nil {
		return nil, err
	}
	if delta == 0 {
		return nil, &ValidationError{Field: "delta", Message: "must not be zero"}
	}
	if delta > math.MaxInt32 || delta < -math.MaxInt32 {
		return nil, &ValidationError{Field: "delta", Message: fmt.Sprintf("magnitude exceeds %d", math.MaxInt32)}
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	row, err := store.GetItem(ctx, tx, cell.Row)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, &NotFoundError{What: "item in row", Key: strconv.Itoa(cell.Row)}
	}

	current, err := ParseQuantity(row.Quantity)
	if err != nil {
		return nil, err
	}
	next := current + delta
	if next < 0 {
		return nil, &NegativeStockError{Current: current, Delta: delta}
	}

	now := l.deps.Clock.Now()
	id := l.deps.IDs.Allocate(row.ID)
	h := history.Parse(row.History, l.cfg.Location)
	h.Push(history.NewRecord(now, delta, actor, l.cfg.Location))

	if err := store.UpdateItemStock(ctx, tx, cell.Row, id, next, h.String(), now); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing stock change: %w", err)
	}

	action := model.ActionStockIncrease
	if delta < 0 {
		action = model.ActionStockDecrease
	}
	return &Result{
		Item: model.Item{
			Row:      row.Row,
			ID:       id,
			Name:     row.Name,
			Quantity: next,
			History:  h.Records(),
		},
		Previous: current,
		Delta:    delta,
		Action:   action,
	}, nil
}

func (l *Ledger) checkCell(cell Cell) error {
	if !strings.EqualFold(strings.TrimSpace(cell.Category), l.cfg.Category) {
		return &PermissionContextError{Reason: fmt.Sprintf("stock changes are only allowed on %s", l.cfg.Category)}
	}
	if !strings.EqualFold(strings.TrimSpace(cell.Column), l.cfg.StockColumn) {
		return &PermissionContextError{Reason: fmt.Sprintf("select a cell in the stock column %s", l.cfg.StockColumn)}
	}
	if cell.Row <= 1 {
		return &PermissionContextError{Reason: "the header row cannot be changed"}
	}
	return nil
}

// Items returns every inventory row with its quantity and history decoded.
// Rows whose stored quantity is malformed are returned with a zero quantity
// and reported in the error slice.
func (l *Ledger) Items(ctx context.Context) ([]model.Item, []error, error) {
	rows, err := store.ListItems(ctx, l.db)
	if err != nil {
		return nil, nil, err
	}

	items := make([]model.Item, 0, len(rows))
	var problems []error
	for _, r := range rows {
		q, err := ParseQuantity(r.Quantity)
		if err != nil {
			problems = append(problems, fmt.Errorf("row %d: %w", r.Row, err))
		}
		items = append(items, model.Item{
			Row:      r.Row,
			ID:       r.ID,
			Name:     r.Name,
			Quantity: q,
			History:  history.Parse(r.History, l.cfg.Location).Records(),
		})
	}
	return items, problems, nil
}

// ClearHistories wipes the rotating history of every item after the
// confirmer agrees. Quantities and the audit trail are untouched.
func (l *Ledger) ClearHistories(ctx context.Context, confirmer notify.Confirmer, actor string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if confirmer == nil || !confirmer.Confirm("Clear Timestamps", HistoryClearPrompt) {
		return 0, notify.ErrNotConfirmed
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	n, err := store.ClearItemHistories(ctx, tx)
	if err != nil {
		return 0, err
	}
	now := l.deps.Clock.Now().UTC().Format(time.RFC3339)
	if err := store.SetSetting(ctx, tx, store.SettingItemHistoryCleared, now); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing history clear: %w", err)
	}

	l.deps.Logger.Info("item histories cleared", "items", n, "actor", clock.Actor(actor))
	return n, nil
}
