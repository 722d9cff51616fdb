package payment

import (
	"context"

	"github.com/shopspring/decimal"
)

// Repository defines the interface for payment persistence operations
type Repository interface {
	// Create records a payment against its invoice
	Create(ctx context.Context, p *Payment) error

	// Get retrieves a payment by ID
	Get(ctx context.Context, id string) (*Payment, error)

	// ListByInvoice retrieves all payments recorded against an invoice in
	// paid-at order
	ListByInvoice(ctx context.Context, invoiceID string) ([]*Payment, error)

	// SumByInvoice returns the sum of all payment amounts recorded against
	// an invoice. Derived on every call; there is no cached counter to drift.
	SumByInvoice(ctx context.Context, invoiceID string) (decimal.Decimal, error)
}
