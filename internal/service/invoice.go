package service

import (
	"context"
	"fmt"

	"github.com/invopay/invopay/internal/domain/activity"
	"github.com/invopay/invopay/internal/domain/invoice"
	"github.com/invopay/invopay/internal/types"
)

// InvoiceService governs the invoice lifecycle after creation. Every
// transition is validated by the entity, persisted as a single update, and
// reported to the activity observer.
type InvoiceService interface {
	// MarkAsPaid transitions a pending invoice to paid, then fires the
	// registered on-paid callbacks in order and the invoiceable's paid hook
	// exactly once. Callback failures are logged and never abort the
	// transition.
	MarkAsPaid(ctx context.Context, inv *invoice.Invoice) error

	// Cancel withdraws an invoice that has not been paid
	Cancel(ctx context.Context, inv *invoice.Invoice) error

	// MarkAsFailed records that payment collection failed
	MarkAsFailed(ctx context.Context, inv *invoice.Invoice) error

	// Refund transitions a paid invoice to refunded
	Refund(ctx context.Context, inv *invoice.Invoice) error

	// Get retrieves an invoice with its line items
	Get(ctx context.Context, id string) (*invoice.Invoice, error)

	// List retrieves invoices matching the filter
	List(ctx context.Context, filter *types.InvoiceFilter) ([]*invoice.Invoice, error)

	// Delete soft-deletes an invoice, retaining its payment history
	Delete(ctx context.Context, id string) error

	// Stats aggregates counts and revenue across the invoice population
	Stats(ctx context.Context) (*invoice.Stats, error)
}

type invoiceService struct {
	ServiceParams
}

// NewInvoiceService creates a new invoice service
func NewInvoiceService(params ServiceParams) InvoiceService {
	return &invoiceService{ServiceParams: params}
}

func (s *invoiceService) MarkAsPaid(ctx context.Context, inv *invoice.Invoice) error {
	oldStatus := inv.InvoiceStatus

	if err := inv.MarkPaid(s.clock().Now()); err != nil {
		return err
	}

	if err := s.persistTransition(ctx, inv, oldStatus); err != nil {
		// roll the entity back so the caller does not hold state that was
		// never persisted
		inv.InvoiceStatus = oldStatus
		inv.PaidAt = nil
		return err
	}

	s.firePaidCallbacks(ctx, inv)
	return nil
}

func (s *invoiceService) Cancel(ctx context.Context, inv *invoice.Invoice) error {
	oldStatus := inv.InvoiceStatus

	if err := inv.MarkCancelled(); err != nil {
		return err
	}

	if err := s.persistTransition(ctx, inv, oldStatus); err != nil {
		inv.InvoiceStatus = oldStatus
		return err
	}
	return nil
}

func (s *invoiceService) MarkAsFailed(ctx context.Context, inv *invoice.Invoice) error {
	oldStatus := inv.InvoiceStatus

	inv.MarkFailed()

	if err := s.persistTransition(ctx, inv, oldStatus); err != nil {
		inv.InvoiceStatus = oldStatus
		return err
	}
	return nil
}

func (s *invoiceService) Refund(ctx context.Context, inv *invoice.Invoice) error {
	oldStatus := inv.InvoiceStatus

	if err := inv.MarkRefunded(); err != nil {
		return err
	}

	if err := s.persistTransition(ctx, inv, oldStatus); err != nil {
		inv.InvoiceStatus = oldStatus
		return err
	}
	return nil
}

func (s *invoiceService) Get(ctx context.Context, id string) (*invoice.Invoice, error) {
	return s.InvoiceRepo.Get(ctx, id)
}

func (s *invoiceService) List(ctx context.Context, filter *types.InvoiceFilter) ([]*invoice.Invoice, error) {
	return s.InvoiceRepo.List(ctx, filter)
}

func (s *invoiceService) Delete(ctx context.Context, id string) error {
	return s.InvoiceRepo.Delete(ctx, id)
}

func (s *invoiceService) Stats(ctx context.Context) (*invoice.Stats, error) {
	return s.InvoiceRepo.Stats(ctx, s.clock().Now())
}

// persistTransition writes the updated status and reports the before/after
// pair to the activity observer. Observer failures are logged, never fatal.
func (s *invoiceService) persistTransition(ctx context.Context, inv *invoice.Invoice, oldStatus types.InvoiceStatus) error {
	now := s.clock().Now()
	inv.UpdatedAt = now
	inv.UpdatedBy = types.GetUserID(ctx)

	if err := s.InvoiceRepo.Update(ctx, inv); err != nil {
		return err
	}

	err := s.observer().RecordActivity(ctx, &activity.Activity{
		ID:          types.GenerateUUIDWithPrefix(types.UUID_PREFIX_ACTIVITY),
		InvoiceID:   inv.ID,
		Action:      activity.ActionStatusChanged,
		OldStatus:   oldStatus,
		NewStatus:   inv.InvoiceStatus,
		OldTotal:    inv.Total,
		NewTotal:    inv.Total,
		Description: fmt.Sprintf("status changed from %s to %s", oldStatus, inv.InvoiceStatus),
		OccurredAt:  now,
	})
	if err != nil {
		s.Logger.Errorw("activity recording failed", "invoice_id", inv.ID, "error", err)
	}

	return nil
}

// firePaidCallbacks runs the registered on-paid callbacks in registration
// order and the invoiceable's paid hook once. Each failure is isolated.
func (s *invoiceService) firePaidCallbacks(ctx context.Context, inv *invoice.Invoice) {
	if !s.Config.Invoice.CallbacksEnabled {
		return
	}

	for i, cb := range inv.PaidCallbacks() {
		cb := cb
		if err := runCallback(ctx, func(ctx context.Context) error { return cb(ctx, inv) }); err != nil {
			s.Logger.Errorw("on-paid callback failed",
				"invoice_id", inv.ID,
				"callback_index", i,
				"error", err)
		}
	}

	if hook, ok := inv.InvoiceableTarget().(invoice.PaidHook); ok {
		err := runCallback(ctx, func(ctx context.Context) error { return hook.OnInvoicePaid(ctx, inv) })
		if err != nil {
			s.Logger.Errorw("invoiceable paid hook failed", "invoice_id", inv.ID, "error", err)
		}
	}
}

// runCallback invokes fn, converting a panic into an error so one misbehaving
// callback cannot take down the triggering operation.
func runCallback(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("callback panicked: %v", r)
		}
	}()
	return fn(ctx)
}
