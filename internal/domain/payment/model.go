package payment

import (
	"time"

	ierr "github.com/invopay/invopay/internal/errors"
	"github.com/invopay/invopay/internal/types"
	"github.com/shopspring/decimal"
)

// Payment represents a single payment recorded against an invoice. A payment
// belongs to exactly one invoice; the sum of an invoice's payments never
// exceeds its total.
type Payment struct {
	ID        string `json:"id"`
	InvoiceID string `json:"invoice_id"`

	// Amount is the paid value in the invoice currency, always positive
	Amount decimal.Decimal `json:"amount"`

	// Method records how the payment was collected
	Method types.PaymentMethodType `json:"method"`

	// Reference is an optional external reference such as a bank transaction number
	Reference *string `json:"reference,omitempty"`

	// Notes carries free-form operator notes
	Notes *string `json:"notes,omitempty"`

	Metadata types.Metadata `json:"metadata,omitempty"`

	// PaidAt is when the payment was received
	PaidAt time.Time `json:"paid_at"`

	types.BaseModel
}

// Details carries the optional attributes of a payment record
type Details struct {
	Reference *string
	Notes     *string
	Metadata  types.Metadata
}

// Validate validates the payment
func (p *Payment) Validate() error {
	if !p.Amount.IsPositive() {
		return ierr.NewError("invalid payment amount").
			WithHint("Amount must be greater than 0").
			Mark(ierr.ErrValidation)
	}
	if p.InvoiceID == "" {
		return ierr.NewError("invalid invoice id").
			WithHint("Payment must reference an invoice").
			Mark(ierr.ErrValidation)
	}
	if err := p.Method.Validate(); err != nil {
		return err
	}
	return nil
}
