package model

import "time"

// Device is one custody-tracked device row within a device category.
type Device struct {
	Category   string     `json:"category"`
	Row        int        `json:"row"`
	ID         string     `json:"id,omitempty"`
	Serial     string     `json:"serial"`
	Specs      string     `json:"specs,omitempty"`
	AssignedTo string     `json:"assigned_to,omitempty"`
	AssignedAt *time.Time `json:"assigned_at,omitempty"`
	ReturnedAt *time.Time `json:"returned_at,omitempty"`
	Status     string     `json:"status"`
}

// Device statuses. An empty status means the row has not been provisioned yet.
const (
	DeviceStatusAvailable = "Available"
	DeviceStatusAssigned  = "Assigned"
)

// Device fields addressable by single-cell edits.
const (
	DeviceFieldID         = "id"
	DeviceFieldSerial     = "serial"
	DeviceFieldSpecs      = "specs"
	DeviceFieldAssignedTo = "assigned_to"
	DeviceFieldAssignedAt = "assigned_at"
	DeviceFieldReturnedAt = "returned_at"
	DeviceFieldStatus     = "status"
)

// DeviceColumns maps device fields to their sheet columns.
var DeviceColumns = map[string]string{
	DeviceFieldID:         "A",
	DeviceFieldSerial:     "B",
	DeviceFieldSpecs:      "C",
	DeviceFieldAssignedTo: "D",
	DeviceFieldAssignedAt: "E",
	DeviceFieldReturnedAt: "F",
	DeviceFieldStatus:     "G",
}

// Event types recorded in the device history log.
const (
	EventAssign = "Assign"
	EventReturn = "Return"
)

// DeviceEvent is one entry of the device history log.
type DeviceEvent struct {
	Seq          int64      `json:"-"`
	ID           string     `json:"id"`
	Timestamp    time.Time  `json:"timestamp"`
	EventType    string     `json:"event_type"`
	DeviceType   string     `json:"device_type"`
	Serial       string     `json:"serial"`
	Specs        string     `json:"specs,omitempty"`
	AssignedTo   string     `json:"assigned_to"`
	AssignedAt   *time.Time `json:"assigned_at,omitempty"`
	ReturnedAt   *time.Time `json:"returned_at,omitempty"`
	DurationDays *int       `json:"duration_days,omitempty"`
	Actor        string     `json:"actor"`
	Color        string     `json:"color,omitempty"`
}

// Employee is a directory record. Only active employees may receive devices.
type Employee struct {
	Email  string `json:"email"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// Employee statuses.
const (
	EmployeeStatusActive   = "Active"
	EmployeeStatusInactive = "Inactive"
)
