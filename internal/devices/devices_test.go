package devices

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/evidenca/internal/audit"
	"github.com/erazemk/evidenca/internal/clock"
	"github.com/erazemk/evidenca/internal/db"
	"github.com/erazemk/evidenca/internal/devicelog"
	"github.com/erazemk/evidenca/internal/directory"
	"github.com/erazemk/evidenca/internal/ledger"
	"github.com/erazemk/evidenca/internal/model"
	"github.com/erazemk/evidenca/internal/store"
)

var t0 = time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)

type fixture struct {
	db        *sql.DB
	clock     *clock.Fixed
	lifecycle *Lifecycle
	trail     *audit.Trail
	events    *devicelog.Log
}

type failingEvents struct{}

func (failingEvents) Append(context.Context, model.DeviceEvent) (*model.DeviceEvent, error) {
	return nil, errors.New("history sheet missing")
}

func newFixture(t *testing.T, events EventLog) *fixture {
	t.Helper()
	sqlDB := db.NewTestDB(t)
	clk := clock.NewFixed(t0)

	dir := directory.New(sqlDB)
	ctx := context.Background()
	for _, email := range []string{"a@x.com", "a@x.org", "b@y.com"} {
		require.NoError(t, dir.Add(ctx, model.Employee{Email: email, Name: email}))
	}
	require.NoError(t, dir.Add(ctx, model.Employee{Email: "old@x.com", Status: model.EmployeeStatusInactive}))

	f := &fixture{
		db:     sqlDB,
		clock:  clk,
		trail:  audit.New(sqlDB, clk, ""),
		events: devicelog.New(sqlDB, clk, nil),
	}
	if events == nil {
		events = f.events
	}
	f.lifecycle = New(sqlDB, Config{Location: time.UTC}, Deps{
		Auditor:   f.trail,
		Events:    events,
		Directory: dir,
		Clock:     clk,
	})
	return f
}

func (f *fixture) addDevice(t *testing.T, category, serial string) DeviceRef {
	t.Helper()
	d, err := f.lifecycle.Add(context.Background(), category, serial, "16GB RAM")
	require.NoError(t, err)
	return DeviceRef{Category: d.Category, Row: d.Row}
}

func TestAssignThenReturnAfterThreeDays(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	ref := f.addDevice(t, "Laptops", "SN1")

	res, err := f.lifecycle.Assign(ctx, ref, "a@x.com", "admin")
	require.NoError(t, err)
	assert.Equal(t, model.DeviceStatusAssigned, res.Device.Status)
	assert.NotEmpty(t, res.Device.ID)
	require.NotNil(t, res.Event)
	assert.Equal(t, model.EventAssign, res.Event.EventType)
	assert.Equal(t, "Laptops", res.Event.DeviceType)
	require.NotNil(t, res.Audit)
	assert.Equal(t, "D2", res.Audit.Location)
	assert.Equal(t, "a@x.com", res.Audit.NewValue)

	f.clock.Advance(72 * time.Hour)

	report, err := f.lifecycle.ReturnByRecipient(ctx, "a@x.com", "admin")
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 1)
	o := report.Outcomes[0]
	require.NoError(t, o.Err)
	require.NotNil(t, o.Event)
	require.NotNil(t, o.Event.DurationDays)
	assert.Equal(t, 3, *o.Event.DurationDays)
	assert.Equal(t, "a@x.com", o.Event.AssignedTo)

	d, err := store.GetDevice(ctx, f.db, ref.Category, ref.Row)
	require.NoError(t, err)
	assert.Equal(t, model.DeviceStatusAvailable, d.Status)
	assert.Empty(t, d.AssignedTo)
	require.NotNil(t, d.AssignedAt, "assignment date is kept for reference")
	assert.True(t, d.AssignedAt.Equal(t0))
	require.NotNil(t, d.ReturnedAt)
	assert.True(t, d.ReturnedAt.Equal(t0.Add(72*time.Hour)))

	returns, err := f.events.List(ctx, devicelog.Filter{EventType: model.EventReturn})
	require.NoError(t, err)
	assert.Len(t, returns, 1)

	entries, err := f.trail.List(ctx, audit.Filter{Action: model.ActionReturn})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a@x.com", entries[0].OldValue)
}

func TestDurationRoundsUp(t *testing.T) {
	tests := []struct {
		elapsed time.Duration
		want    int
	}{
		{0, 0},
		{time.Minute, 1},
		{24 * time.Hour, 1},
		{24*time.Hour + time.Second, 2},
		{72 * time.Hour, 3},
	}
	for _, tt := range tests {
		if got := DurationDays(t0, t0.Add(tt.elapsed)); got != tt.want {
			t.Errorf("DurationDays(%v) = %d, want %d", tt.elapsed, got, tt.want)
		}
	}
}

func TestReturnBeforeAssignmentIsRejected(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	ref := f.addDevice(t, "Tablets", "TAB1")

	_, err := f.lifecycle.Assign(ctx, ref, "b@y.com", "admin")
	require.NoError(t, err)

	f.clock.Set(t0.Add(-time.Hour))
	report, err := f.lifecycle.ReturnByRecipient(ctx, "b@y.com", "admin")
	require.NoError(t, err)
	require.Len(t, report.Failed(), 1)

	var order *ledger.DateOrderError
	assert.ErrorAs(t, report.Outcomes[0].Err, &order)

	d, err := store.GetDevice(ctx, f.db, ref.Category, ref.Row)
	require.NoError(t, err)
	assert.Equal(t, model.DeviceStatusAssigned, d.Status)
	assert.Equal(t, "b@y.com", d.AssignedTo)
	assert.Nil(t, d.ReturnedAt)

	n, err := f.events.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "only the assign event is recorded")
}

func TestReturnMatchesSubstringCaseInsensitively(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	com := f.addDevice(t, "Laptops", "L-COM")
	org := f.addDevice(t, "Smartphones", "P-ORG")
	other := f.addDevice(t, "Laptops", "L-B")

	_, err := f.lifecycle.Assign(ctx, com, "a@x.com", "admin")
	require.NoError(t, err)
	_, err = f.lifecycle.Assign(ctx, org, "a@x.org", "admin")
	require.NoError(t, err)
	_, err = f.lifecycle.Assign(ctx, other, "b@y.com", "admin")
	require.NoError(t, err)

	matches, err := f.lifecycle.FindByRecipient(ctx, "A@X")
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "L-COM", matches[0].Serial)
	assert.Equal(t, "P-ORG", matches[1].Serial)

	f.clock.Advance(time.Hour)
	report, err := f.lifecycle.ReturnByRecipient(ctx, "a@x", "admin")
	require.NoError(t, err)
	assert.Len(t, report.Succeeded(), 2)

	d, err := store.GetDevice(ctx, f.db, other.Category, other.Row)
	require.NoError(t, err)
	assert.Equal(t, model.DeviceStatusAssigned, d.Status)
}

func TestReturnContinuesPastFailures(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	broken := f.addDevice(t, "Laptops", "BROKEN")
	good := f.addDevice(t, "Laptops", "GOOD")

	_, err := f.db.ExecContext(ctx,
		`UPDATE devices SET status = 'Assigned', assigned_to = 'a@x.com', assigned_at = NULL
		 WHERE category = ? AND row = ?`, broken.Category, broken.Row)
	require.NoError(t, err)
	_, err = f.lifecycle.Assign(ctx, good, "a@x.com", "admin")
	require.NoError(t, err)

	f.clock.Advance(25 * time.Hour)
	report, err := f.lifecycle.ReturnByRecipient(ctx, "a@x.com", "admin")
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 2)

	assert.Equal(t, ledger.KindNotFound, ledger.Kind(report.Outcomes[0].Err))
	require.NoError(t, report.Outcomes[1].Err)
	assert.Equal(t, 2, *report.Outcomes[1].Event.DurationDays)

	summary := report.Summary()
	assert.True(t, strings.HasPrefix(summary, `Returned 1 of 2 device(s) matching "a@x.com"`), summary)
	assert.Contains(t, summary, "Laptop GOOD: returned after 2 day(s)")
	assert.Contains(t, summary, "Laptop BROKEN: assignment date for BROKEN not found")
}

func TestReturnQueryValidation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.lifecycle.ReturnByRecipient(ctx, "  ", "admin")
	assert.Equal(t, ledger.KindValidation, ledger.Kind(err))

	_, err = f.lifecycle.ReturnByRecipient(ctx, "nobody", "admin")
	assert.Equal(t, ledger.KindNotFound, ledger.Kind(err))
}

func TestAssignValidation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	ref := f.addDevice(t, "Laptops", "SN1")
	blank := f.addDevice(t, "Laptops", "")

	tests := []struct {
		name      string
		ref       DeviceRef
		recipient string
		want      string
	}{
		{"unknown category", DeviceRef{Category: "Printers", Row: 2}, "a@x.com", ledger.KindPermissionContext},
		{"header row", DeviceRef{Category: "Laptops", Row: 1}, "a@x.com", ledger.KindPermissionContext},
		{"inactive recipient", ref, "old@x.com", ledger.KindInvalidRecipient},
		{"unknown recipient", ref, "z@x.com", ledger.KindInvalidRecipient},
		{"recipient case differs", ref, "A@x.com", ledger.KindInvalidRecipient},
		{"missing row", DeviceRef{Category: "Laptops", Row: 40}, "a@x.com", ledger.KindNotFound},
		{"no serial", blank, "a@x.com", ledger.KindValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.lifecycle.Assign(ctx, tt.ref, tt.recipient, "admin")
			assert.Equal(t, tt.want, ledger.Kind(err), "error: %v", err)
		})
	}

	_, err := f.lifecycle.Assign(ctx, ref, "a@x.com", "admin")
	require.NoError(t, err)
	_, err = f.lifecycle.Assign(ctx, ref, "b@y.com", "admin")
	assert.Equal(t, ledger.KindValidation, ledger.Kind(err), "assigned devices cannot be reassigned")

	n, err := f.trail.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestAssignNormalizesRecipient(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	ref := f.addDevice(t, "Laptops", "SN1")

	dir := directory.New(f.db)
	require.NoError(t, dir.Add(ctx, model.Employee{Email: "jose\u0301@x.com", Name: "Jose"}))
	active, err := dir.IsActive(ctx, "jose\u0301@x.com")
	require.NoError(t, err)
	require.True(t, active)

	for _, recipient := range []string{"jose\u0301@x.com", " jos\u00e9@x.com "} {
		res, err := f.lifecycle.Assign(ctx, ref, recipient, "admin")
		require.NoError(t, err, "recipient %q", recipient)
		assert.Equal(t, "jos\u00e9@x.com", res.Device.AssignedTo)

		report, err := f.lifecycle.ReturnByRecipient(ctx, recipient, "admin")
		require.NoError(t, err)
		assert.Len(t, report.Succeeded(), 1)
	}
}

func TestAssignLogFailureIsDiagnostic(t *testing.T) {
	f := newFixture(t, failingEvents{})
	ctx := context.Background()
	ref := f.addDevice(t, "Desktops", "PC1")

	res, err := f.lifecycle.Assign(ctx, ref, "a@x.com", "admin")
	require.NoError(t, err)
	require.Len(t, res.Diagnostics, 1)
	assert.Contains(t, res.Diagnostics[0], "history sheet missing")
	assert.Nil(t, res.Event)
	assert.NotNil(t, res.Audit)

	d, err := store.GetDevice(ctx, f.db, ref.Category, ref.Row)
	require.NoError(t, err)
	assert.Equal(t, model.DeviceStatusAssigned, d.Status)
}

func TestListAvailable(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.lifecycle.Add(ctx, "laptops", "L1", strings.Repeat("x", 45))
	require.NoError(t, err)
	_, err = f.lifecycle.Add(ctx, "Laptops", "", "unprovisioned")
	require.NoError(t, err)
	busy := f.addDevice(t, "Tablets", "T1")
	_, err = f.lifecycle.Assign(ctx, busy, "a@x.com", "admin")
	require.NoError(t, err)

	groups, err := f.lifecycle.ListAvailable(ctx)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "Laptops", groups[0].Category)
	assert.Equal(t, "Laptop", groups[0].DeviceType)
	require.Len(t, groups[0].Devices, 1)
	assert.Equal(t, strings.Repeat("x", 40)+"...", groups[0].Devices[0].Specs)
}

func TestDeviceTypeName(t *testing.T) {
	tests := map[string]string{
		"Laptops":     "Laptop",
		"Tablets":     "Tablet",
		"Smartphones": "Smartphone",
		"Desktops":    "Desktop PC",
		"Monitors":    "Device",
	}
	for category, want := range tests {
		if got := DeviceTypeName(category); got != want {
			t.Errorf("DeviceTypeName(%q) = %q, want %q", category, got, want)
		}
	}
}
