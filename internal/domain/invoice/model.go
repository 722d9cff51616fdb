package invoice

import (
	"context"
	"fmt"
	"strings"
	"time"

	ierr "github.com/invopay/invopay/internal/errors"
	"github.com/invopay/invopay/internal/types"
	"github.com/shopspring/decimal"
)

// PaidCallback runs after an invoice transitions to paid. Callbacks are held
// in memory on the entity instance and are never persisted; a failure is
// reported and never aborts the transition or later callbacks.
type PaidCallback func(ctx context.Context, inv *Invoice) error

// CreatedCallback runs after an invoice has been created and persisted
type CreatedCallback func(ctx context.Context, inv *Invoice) error

// Invoice represents the invoice domain model. It is created once by the
// builder and mutated only through the documented lifecycle operations.
type Invoice struct {
	ID            string `json:"id"`
	InvoiceNumber string `json:"invoice_number"`

	PayerRef       PartyRef `json:"payer"`
	PayerName      string   `json:"payer_name"`
	PayerEmail     string   `json:"payer_email,omitempty"`
	InvoiceableRef PartyRef `json:"invoiceable"`

	Description string `json:"description,omitempty"`

	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Discount decimal.Decimal `json:"discount"`
	Total    decimal.Decimal `json:"total"`
	Currency string          `json:"currency"`

	InvoiceStatus types.InvoiceStatus `json:"invoice_status"`
	DueDate       time.Time           `json:"due_date"`
	PaidAt        *time.Time          `json:"paid_at,omitempty"`

	Metadata types.Metadata `json:"metadata,omitempty"`

	IsRecurring        bool                     `json:"is_recurring"`
	RecurringFrequency types.RecurringFrequency `json:"recurring_frequency,omitempty"`
	RecurringInterval  int                      `json:"recurring_interval,omitempty"`
	RecurringEndDate   *time.Time               `json:"recurring_end_date,omitempty"`
	NextBillingDate    *time.Time               `json:"next_billing_date,omitempty"`
	ParentInvoiceID    *string                  `json:"parent_invoice_id,omitempty"`

	LineItems []*LineItem `json:"line_items,omitempty"`

	// paidCallbacks registered at build time live only for this process
	// instance; they are not copied by repositories and never persisted.
	paidCallbacks []PaidCallback

	// invoiceable keeps the in-memory handle to the billed subject so its
	// paid hook can fire; like callbacks it is transient.
	invoiceable Invoiceable

	types.BaseModel
}

// OnPaid registers a callback to fire when the invoice transitions to paid
func (i *Invoice) OnPaid(cb PaidCallback) {
	i.paidCallbacks = append(i.paidCallbacks, cb)
}

// PaidCallbacks returns the registered on-paid callbacks in registration order
func (i *Invoice) PaidCallbacks() []PaidCallback {
	return i.paidCallbacks
}

// AttachInvoiceable keeps the in-memory invoiceable handle on the entity so
// the paid hook can be invoked later in this process.
func (i *Invoice) AttachInvoiceable(target Invoiceable) {
	i.invoiceable = target
}

// InvoiceableTarget returns the attached invoiceable, nil when the entity was
// loaded from storage rather than built in this process.
func (i *Invoice) InvoiceableTarget() Invoiceable {
	return i.invoiceable
}

// IsPaid reports whether the invoice has been settled
func (i *Invoice) IsPaid() bool {
	return i.InvoiceStatus == types.InvoiceStatusPaid
}

// IsPending reports whether the invoice is awaiting payment
func (i *Invoice) IsPending() bool {
	return i.InvoiceStatus == types.InvoiceStatusPending
}

// IsOverdue reports whether the invoice is pending with a due date in the
// past. Overdue is derived, never stored.
func (i *Invoice) IsOverdue(now time.Time) bool {
	return i.IsPending() && !i.DueDate.IsZero() && i.DueDate.Before(now)
}

// StatusLabel returns the status capitalized for display, e.g. "Paid"
func (i *Invoice) StatusLabel() string {
	s := string(i.InvoiceStatus)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// FormattedTotal returns the total with its currency code for display,
// e.g. "USD 180000.00"
func (i *Invoice) FormattedTotal() string {
	return fmt.Sprintf("%s %s", strings.ToUpper(i.Currency), i.Total.StringFixed(MoneyScale))
}

// MarkPaid applies the pending -> paid transition and stamps the paid time.
// Callback and hook firing is the caller's responsibility so the transition
// itself stays pure.
func (i *Invoice) MarkPaid(now time.Time) error {
	if i.IsPaid() {
		return ierr.WithError(ErrAlreadyPaid).
			WithHint("Invoice is already paid").
			WithReportableDetails(map[string]any{
				"invoice_number": i.InvoiceNumber,
			}).
			Mark(ierr.ErrInvalidOperation)
	}
	if !i.IsPending() {
		return ierr.NewError("invalid status transition").
			WithHintf("Cannot pay an invoice in status %s", i.InvoiceStatus).
			Mark(ierr.ErrInvalidOperation)
	}

	i.InvoiceStatus = types.InvoiceStatusPaid
	paidAt := now.UTC()
	i.PaidAt = &paidAt
	return nil
}

// MarkCancelled applies the cancel transition, legal whenever the invoice is not paid
func (i *Invoice) MarkCancelled() error {
	if i.IsPaid() {
		return ierr.WithError(ErrCannotCancelPaid).
			WithHint("Cannot cancel a paid invoice").
			Mark(ierr.ErrInvalidOperation)
	}

	i.InvoiceStatus = types.InvoiceStatusCancelled
	return nil
}

// MarkFailed applies the failed transition, which has no precondition
func (i *Invoice) MarkFailed() {
	i.InvoiceStatus = types.InvoiceStatusFailed
}

// MarkRefunded applies the paid -> refunded transition
func (i *Invoice) MarkRefunded() error {
	if !i.IsPaid() {
		return ierr.WithError(ErrCannotRefundUnpaid).
			WithHint("Only paid invoices can be refunded").
			Mark(ierr.ErrInvalidOperation)
	}

	i.InvoiceStatus = types.InvoiceStatusRefunded
	return nil
}

// AdvanceNextBillingDate moves the next billing date forward. Moves backward
// from the current value are ignored.
func (i *Invoice) AdvanceNextBillingDate(next time.Time) {
	next = next.UTC()
	if i.NextBillingDate != nil && !next.After(*i.NextBillingDate) {
		return
	}
	i.NextBillingDate = &next
}

// RecurringEnded reports whether the recurrence end date is set and has passed
func (i *Invoice) RecurringEnded(now time.Time) bool {
	return i.RecurringEndDate != nil && i.RecurringEndDate.Before(now)
}

// Validate checks the monetary invariants of a materialized invoice
func (i *Invoice) Validate() error {
	if i.Subtotal.IsNegative() {
		return ierr.NewError("invoice validation failed").
			WithHint("subtotal must be non negative").
			Mark(ierr.ErrValidation)
	}
	if i.Tax.IsNegative() {
		return ierr.NewError("invoice validation failed").
			WithHint("tax must be non negative").
			Mark(ierr.ErrValidation)
	}
	if i.Discount.IsNegative() {
		return ierr.NewError("invoice validation failed").
			WithHint("discount must be non negative").
			Mark(ierr.ErrValidation)
	}
	if i.Total.IsNegative() {
		return ierr.NewError("invoice validation failed").
			WithHint("total must be non negative").
			Mark(ierr.ErrValidation)
	}
	if !i.Subtotal.Add(i.Tax).Sub(i.Discount).Equal(i.Total) {
		return ierr.NewError("invoice validation failed").
			WithHint("total must equal subtotal + tax - discount").
			Mark(ierr.ErrValidation)
	}

	if err := i.InvoiceStatus.Validate(); err != nil {
		return err
	}

	for _, item := range i.LineItems {
		if err := item.Validate(); err != nil {
			return err
		}
	}

	return nil
}
