package testutil

import (
	"context"
	"fmt"

	"github.com/invopay/invopay/internal/domain/payment"
	ierr "github.com/invopay/invopay/internal/errors"
	"github.com/invopay/invopay/internal/types"
	"github.com/shopspring/decimal"
)

// InMemoryPaymentStore implements payment.Repository
type InMemoryPaymentStore struct {
	*InMemoryStore[*payment.Payment]
}

// NewInMemoryPaymentStore creates a new in-memory payment store
func NewInMemoryPaymentStore() *InMemoryPaymentStore {
	return &InMemoryPaymentStore{
		InMemoryStore: NewInMemoryStore[*payment.Payment](),
	}
}

func copyPayment(p *payment.Payment) *payment.Payment {
	if p == nil {
		return nil
	}

	out := *p
	out.Reference = copyPtr(p.Reference)
	out.Notes = copyPtr(p.Notes)
	out.Metadata = types.MergeMetadata(p.Metadata)
	return &out
}

func (s *InMemoryPaymentStore) Create(ctx context.Context, p *payment.Payment) error {
	if p == nil {
		return fmt.Errorf("payment cannot be nil")
	}
	return s.InMemoryStore.Create(ctx, p.ID, copyPayment(p))
}

func (s *InMemoryPaymentStore) Get(ctx context.Context, id string) (*payment.Payment, error) {
	p, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, ierr.NewError("payment not found").
			WithHintf("Payment %s not found", id).
			Mark(ierr.ErrNotFound)
	}
	return copyPayment(p), nil
}

func paymentInvoiceFilterFn(ctx context.Context, p *payment.Payment, filter interface{}) bool {
	invoiceID, ok := filter.(string)
	if !ok {
		return false
	}
	return p.InvoiceID == invoiceID && p.Status != types.StatusDeleted
}

func paymentSortFn(i, j *payment.Payment) bool {
	return i.CreatedAt.Before(j.CreatedAt)
}

func (s *InMemoryPaymentStore) ListByInvoice(ctx context.Context, invoiceID string) ([]*payment.Payment, error) {
	payments, err := s.InMemoryStore.List(ctx, invoiceID, paymentInvoiceFilterFn, paymentSortFn)
	if err != nil {
		return nil, err
	}

	result := make([]*payment.Payment, len(payments))
	for i, p := range payments {
		result[i] = copyPayment(p)
	}
	return result, nil
}

func (s *InMemoryPaymentStore) SumByInvoice(ctx context.Context, invoiceID string) (decimal.Decimal, error) {
	payments, err := s.ListByInvoice(ctx, invoiceID)
	if err != nil {
		return decimal.Zero, err
	}

	sum := decimal.Zero
	for _, p := range payments {
		sum = sum.Add(p.Amount)
	}
	return sum, nil
}
