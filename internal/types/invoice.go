package types

import (
	ierr "github.com/invopay/invopay/internal/errors"
	"github.com/samber/lo"
)

// InvoiceStatus represents the current state of an invoice in its lifecycle.
// Overdue is intentionally not part of this set: it is a derived predicate
// (pending plus a due date in the past), never a stored state.
type InvoiceStatus string

const (
	// InvoiceStatusPending indicates the invoice is issued and awaiting payment
	InvoiceStatusPending InvoiceStatus = "pending"
	// InvoiceStatusPaid indicates the invoice has been settled in full
	InvoiceStatusPaid InvoiceStatus = "paid"
	// InvoiceStatusCancelled indicates the invoice was withdrawn before payment
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
	// InvoiceStatusFailed indicates payment collection failed
	InvoiceStatusFailed InvoiceStatus = "failed"
	// InvoiceStatusRefunded indicates a paid invoice has been refunded
	InvoiceStatusRefunded InvoiceStatus = "refunded"
)

func (s InvoiceStatus) String() string {
	return string(s)
}

func (s InvoiceStatus) Validate() error {
	allowed := []InvoiceStatus{
		InvoiceStatusPending,
		InvoiceStatusPaid,
		InvoiceStatusCancelled,
		InvoiceStatusFailed,
		InvoiceStatusRefunded,
	}
	if !lo.Contains(allowed, s) {
		return ierr.NewError("invalid invoice status").
			WithHint("Please provide a valid invoice status").
			WithReportableDetails(map[string]any{
				"allowed": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}
