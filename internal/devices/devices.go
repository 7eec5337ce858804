// Package devices drives device custody: Available devices are assigned to
// active employees and returned in batches by recipient.
package devices

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/erazemk/evidenca/internal/clock"
	"github.com/erazemk/evidenca/internal/directory"
	"github.com/erazemk/evidenca/internal/ident"
	"github.com/erazemk/evidenca/internal/ledger"
	"github.com/erazemk/evidenca/internal/metrics"
	"github.com/erazemk/evidenca/internal/model"
	"github.com/erazemk/evidenca/internal/notify"
	"github.com/erazemk/evidenca/internal/store"
)

// DefaultCategories are the device categories tracked out of the box.
var DefaultCategories = []string{"Laptops", "Tablets", "Smartphones", "Desktops"}

// Recipients lists the employees allowed to receive devices.
type Recipients interface {
	ActiveRecipients(ctx context.Context) ([]string, error)
}

// EventLog records device history events.
type EventLog interface {
	Append(ctx context.Context, ev model.DeviceEvent) (*model.DeviceEvent, error)
}

// DeviceRef addresses one device row.
type DeviceRef struct {
	Category string
	Row      int
}

// Config lists the device categories and the display time zone.
type Config struct {
	Categories []string
	Location   *time.Location
}

// Deps are the lifecycle's collaborators.
type Deps struct {
	Auditor   ledger.Auditor
	Events    EventLog
	Directory Recipients
	IDs       *ident.Allocator
	Clock     clock.Clock
	Notifier  notify.Notifier
	Metrics   *metrics.Recorder
	Logger    *slog.Logger
}

// Lifecycle moves devices between Available and Assigned. Public
// operations are serialised.
type Lifecycle struct {
	mu   sync.Mutex
	db   *sql.DB
	cfg  Config
	deps Deps
}

// New returns a lifecycle over db. Auditor, Events and Directory are required.
func New(db *sql.DB, cfg Config, deps Deps) *Lifecycle {
	if len(cfg.Categories) == 0 {
		cfg.Categories = DefaultCategories
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
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
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Lifecycle{db: db, cfg: cfg, deps: deps}
}

// Categories returns the configured device categories.
func (l *Lifecycle) Categories() []string {
	return slices.Clone(l.cfg.Categories)
}

// Category returns the configured spelling of category, matched
// case-insensitively.
func (l *Lifecycle) Category(category string) (string, bool) {
	category = strings.TrimSpace(category)
	for _, c := range l.cfg.Categories {
		if strings.EqualFold(c, category) {
			return c, true
		}
	}
	return "", false
}

// DeviceTypeName returns the singular device name for a category.
func DeviceTypeName(category string) string {
	switch category {
	case "Laptops":
		return "Laptop"
	case "Tablets":
		return "Tablet"
	case "Smartphones":
		return "Smartphone"
	case "Desktops":
		return "Desktop PC"
	}
	return "Device"
}

// AssignResult describes a completed assignment.
type AssignResult struct {
	Device      model.Device
	Event       *model.DeviceEvent
	Audit       *model.AuditEntry
	Diagnostics []string
}

// Assign hands the device at ref to recipient, who must be an active
// employee. Only Available devices, or unprovisioned rows with a serial, can
// be assigned.
func (l *Lifecycle) Assign(ctx context.Context, ref DeviceRef, recipient, actor string) (*AssignResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	actor = clock.Actor(actor)
	res, err := l.assign(ctx, ref, directory.Normalize(recipient), actor)
	if err != nil {
		l.deps.Metrics.Rejection("assign", ledger.Kind(err))
		return nil, err
	}
	l.deps.Metrics.DeviceEvent(model.EventAssign)

	d := res.Device
	typeName := DeviceTypeName(d.Category)
	l.deps.Logger.Info("device assigned",
		"category", d.Category, "row", d.Row, "serial", d.Serial,
		"recipient", d.AssignedTo, "actor", actor)

	ev, err := l.deps.Events.Append(ctx, model.DeviceEvent{
		Timestamp:  *d.AssignedAt,
		EventType:  model.EventAssign,
		DeviceType: d.Category,
		Serial:     d.Serial,
		Specs:      d.Specs,
		AssignedTo: d.AssignedTo,
		AssignedAt: d.AssignedAt,
		Actor:      actor,
	})
	if err != nil {
		res.Diagnostics = append(res.Diagnostics, l.logFailure("device_history", d, err))
	}
	res.Event = ev

	entry, err := l.deps.Auditor.Append(ctx, model.AuditEntry{
		Timestamp: *d.AssignedAt,
		Action:    model.ActionAssign,
		Category:  d.Category,
		Location:  model.CellRef(model.DeviceColumns[model.DeviceFieldAssignedTo], d.Row),
		Actor:     actor,
		OldValue:  "",
		NewValue:  d.AssignedTo,
		Details:   fmt.Sprintf("%s %s assigned to %s", typeName, d.Serial, d.AssignedTo),
		ItemName:  d.Serial,
	})
	if err != nil {
		res.Diagnostics = append(res.Diagnostics, l.logFailure("audit", d, err))
	}
	res.Audit = entry

	l.deps.Notifier.Notify(fmt.Sprintf("%s %s assigned to %s", typeName, d.Serial, d.AssignedTo), "Success", 3)
	return res, nil
}

func (l *Lifecycle) assign(ctx context.Context, ref DeviceRef, recipient, actor string) (*AssignResult, error) {
	category, ok := l.Category(ref.Category)
	if !ok {
		return nil, &ledger.PermissionContextError{Reason: fmt.Sprintf("%q is not a device category", ref.Category)}
	}
	if ref.Row <= 1 {
		return nil, &ledger.PermissionContextError{Reason: "the header row cannot be assigned"}
	}

	active, err := l.deps.Directory.ActiveRecipients(ctx)
	if err != nil {
		return nil, err
	}
	if recipient == "" || !slices.Contains(active, recipient) {
		return nil, &ledger.InvalidRecipientError{Recipient: recipient}
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	d, err := store.GetDevice(ctx, tx, category, ref.Row)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, &ledger.NotFoundError{What: category + " row", Key: fmt.Sprint(ref.Row)}
	}
	switch {
	case d.Status == model.DeviceStatusAssigned:
		return nil, &ledger.ValidationError{Field: "device", Message: fmt.Sprintf("%s is already assigned to %s", d.Serial, d.AssignedTo)}
	case strings.TrimSpace(d.Serial) == "":
		return nil, &ledger.ValidationError{Field: "device", Message: "row has no serial number"}
	}

	now := l.deps.Clock.Now()
	id := l.deps.IDs.Allocate(d.ID)
	if err := store.AssignDevice(ctx, tx, category, ref.Row, id, recipient, now); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing assignment: %w", err)
	}

	d.ID = id
	d.AssignedTo = recipient
	d.AssignedAt = &now
	d.ReturnedAt = nil
	d.Status = model.DeviceStatusAssigned
	return &AssignResult{Device: *d}, nil
}

func (l *Lifecycle) logFailure(log string, d model.Device, err error) string {
	l.deps.Metrics.LogFailure(log)
	l.deps.Logger.Warn("writing "+log+" entry", "category", d.Category, "row", d.Row, "error", err)
	return log + ": " + err.Error()
}

// Devices returns every device of every category, in category then row order.
func (l *Lifecycle) Devices(ctx context.Context) ([]model.Device, error) {
	var all []model.Device
	for _, c := range l.cfg.Categories {
		ds, err := store.ListDevices(ctx, l.db, c, "")
		if err != nil {
			return nil, err
		}
		all = append(all, ds...)
	}
	return all, nil
}

// Add provisions a device row in category.
func (l *Lifecycle) Add(ctx context.Context, category, serial, specs string) (*model.Device, error) {
	c, ok := l.Category(category)
	if !ok {
		return nil, &ledger.PermissionContextError{Reason: fmt.Sprintf("%q is not a device category", category)}
	}
	return store.CreateDevice(ctx, l.db, c, strings.TrimSpace(serial), strings.TrimSpace(specs))
}
