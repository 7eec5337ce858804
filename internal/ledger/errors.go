package ledger

import (
	"errors"
	"fmt"
	"time"
)

// ValidationError reports malformed or inapplicable input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// NegativeStockError reports a change that would take a quantity below zero.
type NegativeStockError struct {
	Current int
	Delta   int
}

func (e *NegativeStockError) Error() string {
	return fmt.Sprintf("stock cannot go negative: have %d, change %+d", e.Current, e.Delta)
}

// InvalidRecipientError reports a recipient that is not an active employee.
type InvalidRecipientError struct {
	Recipient string
}

func (e *InvalidRecipientError) Error() string {
	return fmt.Sprintf("%q is not an active employee", e.Recipient)
}

// DateOrderError reports a return dated before its assignment.
type DateOrderError struct {
	Serial     string
	AssignedAt time.Time
	ReturnedAt time.Time
}

func (e *DateOrderError) Error() string {
	return fmt.Sprintf("return date %s is before assignment date %s for %s",
		e.ReturnedAt.Format(time.DateTime), e.AssignedAt.Format(time.DateTime), e.Serial)
}

// NotFoundError reports a missing row or a missing required value.
type NotFoundError struct {
	What string
	Key  string
}

func (e *NotFoundError) Error() string {
	if e.Key == "" {
		return e.What + " not found"
	}
	return fmt.Sprintf("%s %s not found", e.What, e.Key)
}

// PermissionContextError reports an operation invoked outside its valid
// category, column or row.
type PermissionContextError struct {
	Reason string
}

func (e *PermissionContextError) Error() string {
	return "not allowed here: " + e.Reason
}

// Error kinds returned by Kind.
const (
	KindValidation        = "validation"
	KindNegativeStock     = "negative_stock"
	KindInvalidRecipient  = "invalid_recipient"
	KindDateOrder         = "date_order"
	KindNotFound          = "not_found"
	KindPermissionContext = "permission_context"
	KindInternal          = "internal"
)

// Kind maps err to a short stable label. It returns "" for nil.
func Kind(err error) string {
	if err == nil {
		return ""
	}

	var (
		validation *ValidationError
		negative   *NegativeStockError
		recipient  *InvalidRecipientError
		order      *DateOrderError
		notFound   *NotFoundError
		permission *PermissionContextError
	)
	switch {
	case errors.As(err, &validation):
		return KindValidation
	case errors.As(err, &negative):
		return KindNegativeStock
	case errors.As(err, &recipient):
		return KindInvalidRecipient
	case errors.As(err, &order):
		return KindDateOrder
	case errors.As(err, &notFound):
		return KindNotFound
	case errors.As(err, &permission):
		return KindPermissionContext
	}
	return KindInternal
}
