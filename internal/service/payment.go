package service

import (
	"context"
	"sync"

	"github.com/invopay/invopay/internal/domain/activity"
	"github.com/invopay/invopay/internal/domain/invoice"
	"github.com/invopay/invopay/internal/domain/payment"
	ierr "github.com/invopay/invopay/internal/errors"
	"github.com/invopay/invopay/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// PaymentService is the payment ledger: it records payments against invoices,
// derives paid and remaining amounts from the payment set on every call, and
// settles the invoice when payments reach its total.
//
// AddPayment is serialized per invoice within the process; route all payment
// recording through one PaymentService instance.
type PaymentService interface {
	// AddPayment records a payment against the invoice after checking it does
	// not exceed the remaining balance. When the balance reaches zero the
	// invoice is marked paid as a consequence.
	AddPayment(ctx context.Context, inv *invoice.Invoice, amount decimal.Decimal, method types.PaymentMethodType, details *payment.Details) (*payment.Payment, error)

	// GetPaidAmount returns the sum of payments recorded against the invoice
	GetPaidAmount(ctx context.Context, inv *invoice.Invoice) (decimal.Decimal, error)

	// GetRemainingAmount returns total minus the sum of recorded payments
	GetRemainingAmount(ctx context.Context, inv *invoice.Invoice) (decimal.Decimal, error)

	// IsFullyPaid reports whether recorded payments cover the invoice total
	IsFullyPaid(ctx context.Context, inv *invoice.Invoice) (bool, error)

	// ListPayments returns the payments recorded against the invoice in
	// recording order
	ListPayments(ctx context.Context, inv *invoice.Invoice) ([]*payment.Payment, error)
}

type paymentService struct {
	ServiceParams
	invoiceSvc InvoiceService
	locks      *keyedMutex
}

// NewPaymentService creates a new payment service
func NewPaymentService(params ServiceParams, invoiceSvc InvoiceService) PaymentService {
	return &paymentService{
		ServiceParams: params,
		invoiceSvc:    invoiceSvc,
		locks:         newKeyedMutex(),
	}
}

func (s *paymentService) AddPayment(ctx context.Context, inv *invoice.Invoice, amount decimal.Decimal, method types.PaymentMethodType, details *payment.Details) (*payment.Payment, error) {
	if details == nil {
		details = &payment.Details{}
	}
	reference := details.Reference
	if reference == nil {
		reference = lo.ToPtr(types.GenerateShortIDWithPrefix(types.SHORT_ID_PREFIX_PAYMENT))
	}

	p := &payment.Payment{
		ID:        types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PAYMENT),
		InvoiceID: inv.ID,
		Amount:    amount.Round(invoice.MoneyScale),
		Method:    method,
		Reference: reference,
		Notes:     details.Notes,
		Metadata:  details.Metadata,
		PaidAt:    s.clock().Now(),
		BaseModel: types.GetDefaultBaseModel(ctx),
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	// the remaining-balance check and the write must not interleave with
	// another payment against the same invoice
	unlock := s.locks.lock(inv.ID)
	defer unlock()

	paid, err := s.PaymentRepo.SumByInvoice(ctx, inv.ID)
	if err != nil {
		return nil, err
	}

	remaining := inv.Total.Sub(paid)
	if p.Amount.GreaterThan(remaining) {
		return nil, ierr.WithError(&invoice.PaymentExceedsRemainingError{
			Attempted: p.Amount,
			Remaining: remaining,
		}).
			WithHintf("Payment %s exceeds remaining amount %s",
				p.Amount.StringFixed(2), remaining.StringFixed(2)).
			WithReportableDetails(map[string]any{
				"attempted": p.Amount.String(),
				"remaining": remaining.String(),
			}).
			Mark(ierr.ErrInvalidOperation)
	}

	if err := s.PaymentRepo.Create(ctx, p); err != nil {
		return nil, err
	}

	s.notifyPayment(ctx, inv, p)

	if remaining.Sub(p.Amount).LessThanOrEqual(decimal.Zero) {
		if err := s.invoiceSvc.MarkAsPaid(ctx, inv); err != nil {
			return nil, err
		}
	}

	return p, nil
}

func (s *paymentService) GetPaidAmount(ctx context.Context, inv *invoice.Invoice) (decimal.Decimal, error) {
	return s.PaymentRepo.SumByInvoice(ctx, inv.ID)
}

func (s *paymentService) GetRemainingAmount(ctx context.Context, inv *invoice.Invoice) (decimal.Decimal, error) {
	paid, err := s.PaymentRepo.SumByInvoice(ctx, inv.ID)
	if err != nil {
		return decimal.Zero, err
	}
	return inv.Total.Sub(paid), nil
}

func (s *paymentService) IsFullyPaid(ctx context.Context, inv *invoice.Invoice) (bool, error) {
	remaining, err := s.GetRemainingAmount(ctx, inv)
	if err != nil {
		return false, err
	}
	return remaining.LessThanOrEqual(decimal.Zero), nil
}

func (s *paymentService) ListPayments(ctx context.Context, inv *invoice.Invoice) ([]*payment.Payment, error) {
	return s.PaymentRepo.ListByInvoice(ctx, inv.ID)
}

func (s *paymentService) notifyPayment(ctx context.Context, inv *invoice.Invoice, p *payment.Payment) {
	err := s.observer().RecordActivity(ctx, &activity.Activity{
		ID:          types.GenerateUUIDWithPrefix(types.UUID_PREFIX_ACTIVITY),
		InvoiceID:   inv.ID,
		Action:      activity.ActionPaymentRecorded,
		OldStatus:   inv.InvoiceStatus,
		NewStatus:   inv.InvoiceStatus,
		OldTotal:    inv.Total,
		NewTotal:    inv.Total,
		Description: "payment of " + p.Amount.StringFixed(2) + " recorded",
		Metadata:    types.Metadata{"payment_id": p.ID},
		OccurredAt:  s.clock().Now(),
	})
	if err != nil {
		s.Logger.Errorw("activity recording failed", "invoice_id", inv.ID, "error", err)
	}
}

// keyedMutex provides one mutex per key so unrelated invoices never contend
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*sync.Mutex)}
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &sync.Mutex{}
		k.locks[key] = l
	}
	k.mu.Unlock()

	l.Lock()
	return l.Unlock
}
