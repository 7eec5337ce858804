// Package edits applies single-cell edits made outside the core operations.
// Fields the core owns cannot be edited here; every applied change is audited.
package edits

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/erazemk/evidenca/internal/clock"
	"github.com/erazemk/evidenca/internal/ident"
	"github.com/erazemk/evidenca/internal/ledger"
	"github.com/erazemk/evidenca/internal/metrics"
	"github.com/erazemk/evidenca/internal/model"
	"github.com/erazemk/evidenca/internal/store"
)

// Edit is one single-cell edit event.
type Edit struct {
	Category string
	Row      int
	Field    string
	Value    string
	Actor    string
}

// Result describes a handled edit. Applied is false for ignored and no-op
// edits.
type Result struct {
	Applied     bool
	Ignored     string
	Location    string
	OldValue    string
	NewValue    string
	ID          string
	Audit       *model.AuditEntry
	Diagnostics []string
}

// Config names the categories and the inventory columns.
type Config struct {
	InventoryCategory string
	NameColumn        string
	StockColumn       string
	HistoryColumn     string
	DeviceCategories  []string
	// Categories that are written only by the core and never produce edits.
	LogCategories []string
}

// Deps are the handler's collaborators.
type Deps struct {
	Auditor ledger.Auditor
	IDs     *ident.Allocator
	Clock   clock.Clock
	Metrics *metrics.Recorder
	Logger  *slog.Logger
}

// Handler applies edits. Public operations are serialised.
type Handler struct {
	mu   sync.Mutex
	db   *sql.DB
	cfg  Config
	deps Deps
}

// New returns a handler over db.
func New(db *sql.DB, cfg Config, deps Deps) *Handler {
	if cfg.NameColumn == "" {
		cfg.NameColumn = "D"
	}
	if cfg.StockColumn == "" {
		cfg.StockColumn = ledger.DefaultStockColumn
	}
	if cfg.HistoryColumn == "" {
		cfg.HistoryColumn = "I"
	}
	if deps.IDs == nil {
		deps.IDs = ident.New()
	}
	if deps.Clock == nil {
		deps.Clock = clock.System{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Handler{db: db, cfg: cfg, deps: deps}
}

// ItemColumn returns the column of an inventory field, or "" if the field
// is unknown.
func (h *Handler) ItemColumn(field string) string {
	switch field {
	case model.ItemFieldID:
		return "A"
	case model.ItemFieldName:
		return strings.ToUpper(h.cfg.NameColumn)
	case model.ItemFieldQuantity:
		return strings.ToUpper(h.cfg.StockColumn)
	case model.ItemFieldHistory:
		return strings.ToUpper(h.cfg.HistoryColumn)
	}
	return ""
}

// Apply handles one edit.
func (h *Handler) Apply(ctx context.Context, e Edit) (*Result, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	e.Field = strings.ToLower(strings.TrimSpace(e.Field))
	e.Actor = clock.Actor(e.Actor)

	category, kind := h.classify(e.Category)
	if kind == "" {
		return &Result{Ignored: fmt.Sprintf("%q is not tracked", e.Category)}, nil
	}
	if kind == "log" {
		return &Result{Ignored: fmt.Sprintf("%s is written by the system", category)}, nil
	}
	e.Category = category

	var (
		res *Result
		err error
	)
	if kind == "inventory" {
		res, err = h.applyItem(ctx, e)
	} else {
		res, err = h.applyDevice(ctx, e)
	}
	if err != nil {
		h.deps.Metrics.Rejection("edit", ledger.Kind(err))
		return nil, err
	}
	if !res.Applied {
		return res, nil
	}

	h.deps.Metrics.Edit(kind)
	h.deps.Logger.Info("cell edited",
		"category", e.Category, "location", res.Location,
		"from", res.OldValue, "to", res.NewValue, "actor", e.Actor)
	return res, nil
}

func (h *Handler) classify(category string) (string, string) {
	category = strings.TrimSpace(category)
	for _, c := range h.cfg.LogCategories {
		if strings.EqualFold(c, category) {
			return c, "log"
		}
	}
	if strings.EqualFold(h.cfg.InventoryCategory, category) {
		return h.cfg.InventoryCategory, "inventory"
	}
	for _, c := range h.cfg.DeviceCategories {
		if strings.EqualFold(c, category) {
			return c, "device"
		}
	}
	return "", ""
}

func (h *Handler) applyItem(ctx context.Context, e Edit) (*Result, error) {
	if e.Row <= 1 {
		return nil, &ledger.PermissionContextError{Reason: "the header row cannot be edited"}
	}

	var (
		newValue string
		negative *int
	)
	switch e.Field {
	case model.ItemFieldName:
		newValue = strings.TrimSpace(e.Value)
	case model.ItemFieldQuantity:
		q, neg, err := parseEditedQuantity(e.Value)
		if err != nil {
			return nil, err
		}
		negative = neg
		newValue = strconv.Itoa(q)
	case model.ItemFieldID, model.ItemFieldHistory:
		return nil, &ledger.PermissionContextError{Reason: fmt.Sprintf("the %s column is maintained automatically", e.Field)}
	default:
		return nil, &ledger.ValidationError{Field: "field", Message: fmt.Sprintf("unknown inventory field %q", e.Field)}
	}

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	item, err := store.GetItem(ctx, tx, e.Row)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, &ledger.NotFoundError{What: "item in row", Key: strconv.Itoa(e.Row)}
	}
	if negative != nil {
		current, _ := ledger.ParseQuantity(item.Quantity)
		return nil, &ledger.NegativeStockError{Current: current, Delta: *negative - current}
	}

	res := &Result{
		Location: model.CellRef(h.ItemColumn(e.Field), e.Row),
		NewValue: newValue,
		ID:       item.ID,
	}
	itemName := item.Name

	now := h.deps.Clock.Now()
	switch e.Field {
	case model.ItemFieldName:
		res.OldValue = item.Name
		if res.OldValue == newValue {
			return res, nil
		}
		if err := store.SetItemName(ctx, tx, e.Row, newValue, now); err != nil {
			return nil, err
		}
		itemName = newValue
	case model.ItemFieldQuantity:
		res.OldValue = quantityText(item.Quantity)
		if res.OldValue == newValue {
			return res, nil
		}
		q, _ := strconv.Atoi(newValue)
		if err := store.SetItemQuantity(ctx, tx, e.Row, q, now); err != nil {
			return nil, err
		}
	}

	if item.ID == "" {
		res.ID = h.deps.IDs.Allocate(item.ID)
		if err := store.SetItemID(ctx, tx, e.Row, res.ID); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing edit: %w", err)
	}
	res.Applied = true

	h.audit(ctx, res, model.AuditEntry{
		Timestamp: now,
		Action:    model.ActionInventoryEdit,
		Category:  e.Category,
		Location:  res.Location,
		Actor:     e.Actor,
		OldValue:  res.OldValue,
		NewValue:  res.NewValue,
		Details:   fmt.Sprintf("Changed from %s to %s", display(res.OldValue), display(res.NewValue)),
		ItemName:  itemName,
	})
	return res, nil
}

func (h *Handler) applyDevice(ctx context.Context, e Edit) (*Result, error) {
	if e.Row <= 1 {
		return nil, &ledger.PermissionContextError{Reason: "the header row cannot be edited"}
	}

	switch e.Field {
	case model.DeviceFieldSerial, model.DeviceFieldSpecs:
	case model.DeviceFieldID, model.DeviceFieldAssignedTo, model.DeviceFieldAssignedAt,
		model.DeviceFieldReturnedAt, model.DeviceFieldStatus:
		return nil, &ledger.PermissionContextError{Reason: fmt.Sprintf("%s is changed by assigning or returning the device", e.Field)}
	default:
		return nil, &ledger.ValidationError{Field: "field", Message: fmt.Sprintf("unknown device field %q", e.Field)}
	}
	newValue := strings.TrimSpace(e.Value)

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	d, err := store.GetDevice(ctx, tx, e.Category, e.Row)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, &ledger.NotFoundError{What: e.Category + " row", Key: strconv.Itoa(e.Row)}
	}

	res := &Result{
		Location: model.CellRef(model.DeviceColumns[e.Field], e.Row),
		OldValue: d.Specs,
		NewValue: newValue,
		ID:       d.ID,
	}
	serial := d.Serial
	if e.Field == model.DeviceFieldSerial {
		res.OldValue = d.Serial
		serial = newValue
	}
	if res.OldValue == newValue {
		return res, nil
	}

	if err := store.SetDeviceField(ctx, tx, e.Category, e.Row, e.Field, newValue); err != nil {
		return nil, err
	}
	if d.ID == "" {
		res.ID = h.deps.IDs.Allocate(d.ID)
		if err := store.SetDeviceField(ctx, tx, e.Category, e.Row, model.DeviceFieldID, res.ID); err != nil {
			return nil, err
		}
	}
	if d.Status == "" && newValue != "" {
		if err := store.SetDeviceStatus(ctx, tx, e.Category, e.Row, model.DeviceStatusAvailable); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing edit: %w", err)
	}
	res.Applied = true

	h.audit(ctx, res, model.AuditEntry{
		Timestamp: h.deps.Clock.Now(),
		Action:    model.ActionDeviceEdit,
		Category:  e.Category,
		Location:  res.Location,
		Actor:     e.Actor,
		OldValue:  res.OldValue,
		NewValue:  res.NewValue,
		Details:   fmt.Sprintf("Changed from %s to %s", display(res.OldValue), display(res.NewValue)),
		ItemName:  serial,
	})
	return res, nil
}

func (h *Handler) audit(ctx context.Context, res *Result, entry model.AuditEntry) {
	if h.deps.Auditor == nil {
		return
	}
	a, err := h.deps.Auditor.Append(ctx, entry)
	if err != nil {
		h.deps.Metrics.LogFailure("audit")
		h.deps.Logger.Warn("writing audit entry", "location", entry.Location, "error", err)
		res.Diagnostics = append(res.Diagnostics, "audit: "+err.Error())
		return
	}
	res.Audit = a
}

// parseEditedQuantity normalizes a typed quantity. A whole negative value is
// returned separately so it can be reported as negative stock.
func parseEditedQuantity(value string) (int, *int, error) {
	v := strings.TrimSpace(value)
	if f, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", "."), 64); err == nil && f < 0 && f == math.Trunc(f) {
		n := int(f)
		return 0, &n, nil
	}
	q, err := ledger.ParseQuantity(v)
	return q, nil, err
}

func quantityText(v any) string {
	if q, err := ledger.ParseQuantity(v); err == nil {
		return strconv.Itoa(q)
	}
	switch raw := v.(type) {
	case []byte:
		return string(raw)
	case nil:
		return ""
	}
	return fmt.Sprint(v)
}

func display(v string) string {
	if v == "" {
		return "(empty)"
	}
	return v
}
