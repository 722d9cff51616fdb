package invoice

import (
	"context"
	"time"

	"github.com/invopay/invopay/internal/types"
	"github.com/shopspring/decimal"
)

// Repository defines the interface for invoice persistence operations
type Repository interface {
	// Create persists the invoice header and its line items as one unit;
	// partial creation must not be observable
	Create(ctx context.Context, inv *Invoice) error

	// Get retrieves an invoice by ID with its line items
	Get(ctx context.Context, id string) (*Invoice, error)

	// Update updates an existing invoice header
	Update(ctx context.Context, inv *Invoice) error

	// Delete soft-deletes an invoice, retaining its history
	Delete(ctx context.Context, id string) error

	// List retrieves invoices based on filter criteria
	List(ctx context.Context, filter *types.InvoiceFilter) ([]*Invoice, error)

	// Count returns the total count of invoices based on filter criteria
	Count(ctx context.Context, filter *types.InvoiceFilter) (int, error)

	// LastInvoiceNumber returns the highest issued invoice number in the
	// given date scope, or "" when none exists. Implementations must
	// serialize the lookup-then-create sequence per scope so that concurrent
	// creation cannot issue the same number twice.
	LastInvoiceNumber(ctx context.Context, scope string) (string, error)

	// Stats aggregates invoice counts and revenue per lifecycle status
	Stats(ctx context.Context, asOf time.Time) (*Stats, error)
}

// Stats summarizes a payer's or tenant's invoice population
type Stats struct {
	TotalCount   int `json:"total_count"`
	PendingCount int `json:"pending_count"`
	PaidCount    int `json:"paid_count"`
	OverdueCount int `json:"overdue_count"`
	FailedCount  int `json:"failed_count"`

	TotalRevenue   decimal.Decimal `json:"total_revenue"`
	PendingRevenue decimal.Decimal `json:"pending_revenue"`
}
