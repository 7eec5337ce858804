package devices

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/erazemk/evidenca/internal/clock"
	"github.com/erazemk/evidenca/internal/directory"
	"github.com/erazemk/evidenca/internal/ledger"
	"github.com/erazemk/evidenca/internal/model"
	"github.com/erazemk/evidenca/internal/store"
)

// ReturnOutcome is the result of returning one matched device.
type ReturnOutcome struct {
	Device      model.Device
	Event       *model.DeviceEvent
	Audit       *model.AuditEntry
	Err         error
	Diagnostics []string
}

// ReturnReport lists one outcome per matched device, in discovery order.
type ReturnReport struct {
	Query    string
	Outcomes []ReturnOutcome
}

// Succeeded returns the outcomes that were returned.
func (r *ReturnReport) Succeeded() []ReturnOutcome {
	var out []ReturnOutcome
	for _, o := range r.Outcomes {
		if o.Err == nil {
			out = append(out, o)
		}
	}
	return out
}

// Failed returns the outcomes that were rejected.
func (r *ReturnReport) Failed() []ReturnOutcome {
	var out []ReturnOutcome
	for _, o := range r.Outcomes {
		if o.Err != nil {
			out = append(out, o)
		}
	}
	return out
}

// Summary renders a human-readable report.
func (r *ReturnReport) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Returned %d of %d device(s) matching %q", len(r.Succeeded()), len(r.Outcomes), r.Query)
	for _, o := range r.Outcomes {
		name := DeviceTypeName(o.Device.Category) + " " + o.Device.Serial
		if o.Err != nil {
			fmt.Fprintf(&b, "\n  %s: %v", name, o.Err)
			continue
		}
		if o.Event != nil && o.Event.DurationDays != nil {
			fmt.Fprintf(&b, "\n  %s: returned after %d day(s)", name, *o.Event.DurationDays)
		} else {
			fmt.Fprintf(&b, "\n  %s: returned", name)
		}
	}
	return b.String()
}

// FindByRecipient returns Assigned devices whose assignee contains query,
// compared with Unicode case folding, in category then row order.
func (l *Lifecycle) FindByRecipient(ctx context.Context, query string) ([]model.Device, error) {
	fold := cases.Fold()
	needle := fold.String(directory.Normalize(query))

	var matches []model.Device
	for _, c := range l.cfg.Categories {
		assigned, err := store.ListDevices(ctx, l.db, c, model.DeviceStatusAssigned)
		if err != nil {
			return nil, err
		}
		for _, d := range assigned {
			if d.AssignedTo != "" && strings.Contains(fold.String(directory.Normalize(d.AssignedTo)), needle) {
				matches = append(matches, d)
			}
		}
	}
	return matches, nil
}

// ReturnByRecipient returns every Assigned device whose assignee contains
// query. Each device is handled on its own; a failure is recorded in the
// report and the batch carries on.
func (l *Lifecycle) ReturnByRecipient(ctx context.Context, query, actor string) (*ReturnReport, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	query = strings.TrimSpace(query)
	if query == "" {
		err := &ledger.ValidationError{Field: "query", Message: "enter part of the recipient's email"}
		l.deps.Metrics.Rejection("return", ledger.Kind(err))
		return nil, err
	}

	matches, err := l.FindByRecipient(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		err := &ledger.NotFoundError{What: "assigned devices matching", Key: fmt.Sprintf("%q", query)}
		l.deps.Metrics.Rejection("return", ledger.Kind(err))
		return nil, err
	}

	actor = clock.Actor(actor)
	report := &ReturnReport{Query: query}
	for _, d := range matches {
		o := l.returnOne(ctx, d, actor)
		if o.Err != nil {
			l.deps.Metrics.Rejection("return", ledger.Kind(o.Err))
			l.deps.Logger.Warn("device not returned",
				"category", d.Category, "row", d.Row, "serial", d.Serial, "error", o.Err)
		}
		report.Outcomes = append(report.Outcomes, o)
	}

	l.deps.Notifier.Notify(report.Summary(), "Return", 5)
	return report, nil
}

func (l *Lifecycle) returnOne(ctx context.Context, d model.Device, actor string) ReturnOutcome {
	o := ReturnOutcome{Device: d}
	if d.AssignedAt == nil {
		o.Err = &ledger.NotFoundError{What: "assignment date for", Key: d.Serial}
		return o
	}

	now := l.deps.Clock.Now()
	if now.Before(*d.AssignedAt) {
		o.Err = &ledger.DateOrderError{Serial: d.Serial, AssignedAt: *d.AssignedAt, ReturnedAt: now}
		return o
	}

	if err := l.commitReturn(ctx, d, now); err != nil {
		o.Err = err
		return o
	}

	recipient := d.AssignedTo
	assignedAt := *d.AssignedAt
	days := DurationDays(assignedAt, now)

	o.Device.AssignedTo = ""
	o.Device.ReturnedAt = &now
	o.Device.Status = model.DeviceStatusAvailable
	l.deps.Metrics.DeviceEvent(model.EventReturn)
	l.deps.Logger.Info("device returned",
		"category", d.Category, "row", d.Row, "serial", d.Serial,
		"recipient", recipient, "days", days, "actor", actor)

	typeName := DeviceTypeName(d.Category)
	ev, err := l.deps.Events.Append(ctx, model.DeviceEvent{
		Timestamp:    now,
		EventType:    model.EventReturn,
		DeviceType:   d.Category,
		Serial:       d.Serial,
		Specs:        d.Specs,
		AssignedTo:   recipient,
		AssignedAt:   &assignedAt,
		ReturnedAt:   &now,
		DurationDays: &days,
		Actor:        actor,
	})
	if err != nil {
		o.Diagnostics = append(o.Diagnostics, l.logFailure("device_history", d, err))
	}
	o.Event = ev

	entry, err := l.deps.Auditor.Append(ctx, model.AuditEntry{
		Timestamp: now,
		Action:    model.ActionReturn,
		Category:  d.Category,
		Location:  model.CellRef(model.DeviceColumns[model.DeviceFieldAssignedTo], d.Row),
		Actor:     actor,
		OldValue:  recipient,
		NewValue:  "",
		Details:   fmt.Sprintf("%s %s returned after %d day(s)", typeName, d.Serial, days),
		ItemName:  d.Serial,
	})
	if err != nil {
		o.Diagnostics = append(o.Diagnostics, l.logFailure("audit", d, err))
	}
	o.Audit = entry
	return o
}

func (l *Lifecycle) commitReturn(ctx context.Context, d model.Device, at time.Time) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	current, err := store.GetDevice(ctx, tx, d.Category, d.Row)
	if err != nil {
		return err
	}
	if current == nil || current.Status != model.DeviceStatusAssigned {
		return &ledger.NotFoundError{What: "assigned device", Key: d.Serial}
	}
	if err := store.ReturnDevice(ctx, tx, d.Category, d.Row, at); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing return: %w", err)
	}
	return nil
}

// DurationDays returns the number of started days between assignment and
// return. A same-instant return is zero days.
func DurationDays(assignedAt, returnedAt time.Time) int {
	elapsed := returnedAt.Sub(assignedAt)
	if elapsed <= 0 {
		return 0
	}
	return int(math.Ceil(elapsed.Hours() / 24))
}

// MaxSpecsLength is the length specs are truncated to in availability lists.
const MaxSpecsLength = 40

// AvailableGroup lists the Available devices of one category.
type AvailableGroup struct {
	Category   string
	DeviceType string
	Devices    []model.Device
}

// ListAvailable returns the Available devices with a serial, grouped by
// category. Long specs are shortened.
func (l *Lifecycle) ListAvailable(ctx context.Context) ([]AvailableGroup, error) {
	var groups []AvailableGroup
	for _, c := range l.cfg.Categories {
		ds, err := store.ListDevices(ctx, l.db, c, model.DeviceStatusAvailable)
		if err != nil {
			return nil, err
		}
		g := AvailableGroup{Category: c, DeviceType: DeviceTypeName(c)}
		for _, d := range ds {
			if strings.TrimSpace(d.Serial) == "" {
				continue
			}
			d.Specs = truncate(d.Specs, MaxSpecsLength)
			g.Devices = append(g.Devices, d)
		}
		if len(g.Devices) > 0 {
			groups = append(groups, g)
		}
	}
	return groups, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
