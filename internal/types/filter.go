package types

import "time"

// InvoiceFilter represents the filter options for listing invoices
type InvoiceFilter struct {
	// InvoiceIDs restricts results to invoices with the specified IDs
	InvoiceIDs []string

	// InvoiceStatus filters by lifecycle status; empty means all statuses
	InvoiceStatus []InvoiceStatus

	// PayerKind and PayerID filter invoices for a specific payer
	PayerKind string
	PayerID   string

	// InvoiceableKind and InvoiceableID filter invoices for a specific billed subject
	InvoiceableKind string
	InvoiceableID   string

	// OverdueAsOf restricts results to pending invoices whose due date has
	// passed at the given instant
	OverdueAsOf *time.Time

	// RecurringDueAsOf restricts results to recurring invoices whose next
	// billing date has matured at the given instant and whose recurrence has
	// not ended
	RecurringDueAsOf *time.Time

	// IncludeDeleted includes soft-deleted records when true
	IncludeDeleted bool
}

// NewInvoiceFilter creates an empty invoice filter
func NewInvoiceFilter() *InvoiceFilter {
	return &InvoiceFilter{}
}
