package model

import "time"

// Action is the kind of mutation an audit entry records.
type Action string

// Audit actions.
const (
	ActionStockIncrease Action = "Stock Increase"
	ActionStockDecrease Action = "Stock Decrease"
	ActionInventoryEdit Action = "Inventory Edit"
	ActionDeviceEdit    Action = "Device Edit"
	ActionAssign        Action = "Assign"
	ActionReturn        Action = "Return"
)

// Valid reports whether a is one of the known audit actions.
func (a Action) Valid() bool {
	switch a {
	case ActionStockIncrease, ActionStockDecrease, ActionInventoryEdit,
		ActionDeviceEdit, ActionAssign, ActionReturn:
		return true
	}
	return false
}

// AuditEntry is one row of the audit trail.
type AuditEntry struct {
	Seq       int64     `json:"-"`
	Timestamp time.Time `json:"timestamp"`
	Action    Action    `json:"action"`
	Category  string    `json:"category"`
	Location  string    `json:"location"`
	Actor     string    `json:"actor"`
	OldValue  string    `json:"old_value"`
	NewValue  string    `json:"new_value"`
	Details   string    `json:"details"`
	ItemName  string    `json:"item_name,omitempty"`
	Color     string    `json:"color,omitempty"`
}

// Colour tags for downstream presentation.
const (
	ColorStockUp      = "#81C784"
	ColorStockDown    = "#E57373"
	ColorUserEdit     = "#64B5F6"
	ColorDeviceChange = "#81C784"
	ColorEventAssign  = "#e8f5e9"
	ColorEventReturn  = "#fbe9e7"
	ColorFlashSuccess = "#C8E6C9"
)

// ActionColor returns the colour tag used for an audit action.
func ActionColor(a Action) string {
	switch a {
	case ActionStockIncrease:
		return ColorStockUp
	case ActionStockDecrease:
		return ColorStockDown
	case ActionInventoryEdit:
		return ColorUserEdit
	default:
		return ColorDeviceChange
	}
}
