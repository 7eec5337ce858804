package model

import (
	"strconv"
	"time"
)

// Timestamp layouts of the exported record rows.
const (
	AuditTimeLayout = "02/01/2006 15:04:05"
	EventTimeLayout = "02/01/2006 15:04"
)

// AuditHeader is the header of the audit log row layout.
var AuditHeader = []string{
	"Timestamp", "Action", "Sheet", "Cell", "User",
	"Old Value", "New Value", "Details", "Item_name",
}

// EventHeader is the header of the device history row layout.
var EventHeader = []string{
	"Event ID", "Timestamp", "Event Type", "Device Type", "Serial Number",
	"Device Specs", "Assigned To", "Assigned Date",
	"Return Date", "Duration (Days)", "Responsible User",
}

// Row renders the entry in the stable audit log layout.
func (e AuditEntry) Row(loc *time.Location) []string {
	return []string{
		e.Timestamp.In(loc).Format(AuditTimeLayout),
		string(e.Action),
		e.Category,
		e.Location,
		e.Actor,
		e.OldValue,
		e.NewValue,
		e.Details,
		e.ItemName,
	}
}

// Row renders the event in the stable device history layout. The return date
// is only present on Return events.
func (ev DeviceEvent) Row(loc *time.Location) []string {
	returned := ""
	if ev.EventType == EventReturn {
		returned = formatOptional(ev.ReturnedAt, loc)
	}
	duration := ""
	if ev.DurationDays != nil {
		duration = strconv.Itoa(*ev.DurationDays)
	}
	return []string{
		ev.ID,
		ev.Timestamp.In(loc).Format(EventTimeLayout),
		ev.EventType,
		ev.DeviceType,
		ev.Serial,
		ev.Specs,
		ev.AssignedTo,
		formatOptional(ev.AssignedAt, loc),
		returned,
		duration,
		ev.Actor,
	}
}

func formatOptional(t *time.Time, loc *time.Location) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.In(loc).Format(EventTimeLayout)
}

// ColumnName converts a 1-based column index to its letter name (1 → A, 27 → AA).
func ColumnName(index int) string {
	name := ""
	for index > 0 {
		index--
		name = string(rune('A'+index%26)) + name
		index /= 26
	}
	return name
}

// CellRef renders an A1-style location token.
func CellRef(column string, row int) string {
	return column + strconv.Itoa(row)
}
