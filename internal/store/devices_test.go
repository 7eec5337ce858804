package store

import (
	"context"
	"testing"
	"time"

	"github.com/erazemk/evidenca/internal/db"
	"github.com/erazemk/evidenca/internal/model"
)

func TestCreateDevice(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	d, err := CreateDevice(ctx, database, "Laptops", "SN-1", "16GB RAM")
	if err != nil {
		t.Fatalf("CreateDevice: %v", err)
	}
	if d.Row != 2 || d.Status != model.DeviceStatusAvailable {
		t.Errorf("unexpected device: %+v", d)
	}

	blank, _ := CreateDevice(ctx, database, "Laptops", "", "")
	if blank.Row != 3 || blank.Status != "" {
		t.Errorf("expected unprovisioned row 3, got %+v", blank)
	}

	// Rows are numbered per category.
	other, _ := CreateDevice(ctx, database, "Tablets", "SN-2", "")
	if other.Row != 2 {
		t.Errorf("expected row 2 in new category, got %d", other.Row)
	}
}

func TestAssignAndReturnDevice(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	d, _ := CreateDevice(ctx, database, "Laptops", "SN-1", "")
	assignedAt := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	if err := AssignDevice(ctx, database, d.Category, d.Row, "dev12345", "a@x.com", assignedAt); err != nil {
		t.Fatalf("AssignDevice: %v", err)
	}

	got, _ := GetDevice(ctx, database, d.Category, d.Row)
	if got.Status != model.DeviceStatusAssigned || got.AssignedTo != "a@x.com" || got.ID != "dev12345" {
		t.Fatalf("unexpected device after assign: %+v", got)
	}
	if got.AssignedAt == nil || !got.AssignedAt.Equal(assignedAt) {
		t.Errorf("expected assigned_at %v, got %v", assignedAt, got.AssignedAt)
	}
	if got.ReturnedAt != nil {
		t.Errorf("expected no return date, got %v", got.ReturnedAt)
	}

	returnedAt := assignedAt.Add(72 * time.Hour)
	if err := ReturnDevice(ctx, database, d.Category, d.Row, returnedAt); err != nil {
		t.Fatalf("ReturnDevice: %v", err)
	}

	got, _ = GetDevice(ctx, database, d.Category, d.Row)
	if got.Status != model.DeviceStatusAvailable || got.AssignedTo != "" {
		t.Errorf("unexpected device after return: %+v", got)
	}
	if got.ReturnedAt == nil || !got.ReturnedAt.Equal(returnedAt) {
		t.Errorf("expected returned_at %v, got %v", returnedAt, got.ReturnedAt)
	}
	if got.AssignedAt == nil {
		t.Error("expected assigned_at to be kept after return")
	}

	// Returning an available device affects nothing.
	if err := ReturnDevice(ctx, database, d.Category, d.Row, returnedAt); err == nil {
		t.Error("expected error returning an available device")
	}
}

func TestListDevicesByStatus(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	a, _ := CreateDevice(ctx, database, "Laptops", "SN-1", "")
	CreateDevice(ctx, database, "Laptops", "SN-2", "")
	AssignDevice(ctx, database, a.Category, a.Row, "", "a@x.com", time.Now())

	all, _ := ListDevices(ctx, database, "Laptops", "")
	if len(all) != 2 {
		t.Errorf("expected 2 devices, got %d", len(all))
	}

	assigned, _ := ListDevices(ctx, database, "Laptops", model.DeviceStatusAssigned)
	if len(assigned) != 1 || assigned[0].Serial != "SN-1" {
		t.Errorf("expected SN-1 assigned, got %+v", assigned)
	}
}

func TestHandEnteredDatesAreParsed(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	_, err := database.Exec(
		`INSERT INTO devices (category, row, serial, assigned_to, assigned_at, status)
		 VALUES ('Laptops', 2, 'SN-1', 'a@x.com', '01/03/2024 09:30', 'Assigned'),
		        ('Laptops', 3, 'SN-2', 'b@x.com', 'not a date', 'Assigned')`)
	if err != nil {
		t.Fatalf("seeding devices: %v", err)
	}

	devices, err := ListDevices(ctx, database, "Laptops", "")
	if err != nil {
		t.Fatalf("ListDevices: %v", err)
	}
	want := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	if devices[0].AssignedAt == nil || !devices[0].AssignedAt.Equal(want) {
		t.Errorf("expected %v, got %v", want, devices[0].AssignedAt)
	}
	if devices[1].AssignedAt != nil {
		t.Errorf("expected unreadable date to read as missing, got %v", devices[1].AssignedAt)
	}
}

func TestSetDeviceField(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	d, _ := CreateDevice(ctx, database, "Laptops", "", "")

	if err := SetDeviceField(ctx, database, d.Category, d.Row, model.DeviceFieldSerial, "SN-9"); err != nil {
		t.Fatalf("SetDeviceField: %v", err)
	}
	if err := SetDeviceField(ctx, database, d.Category, d.Row, model.DeviceFieldStatus, "Assigned"); err == nil {
		t.Error("expected status to be refused as a free-form field")
	}

	got, _ := GetDevice(ctx, database, d.Category, d.Row)
	if got.Serial != "SN-9" {
		t.Errorf("expected serial SN-9, got %q", got.Serial)
	}
}
