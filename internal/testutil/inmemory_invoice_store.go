package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/invopay/invopay/internal/domain/invoice"
	ierr "github.com/invopay/invopay/internal/errors"
	"github.com/invopay/invopay/internal/types"
	"github.com/samber/lo"
)

// InMemoryInvoiceStore implements invoice.Repository
type InMemoryInvoiceStore struct {
	*InMemoryStore[*invoice.Invoice]

	// numMu guards direct number lookups; txMu serializes WithTx sections
	numMu sync.Mutex
	txMu  sync.Mutex
}

// NewInMemoryInvoiceStore creates a new in-memory invoice store
func NewInMemoryInvoiceStore() *InMemoryInvoiceStore {
	return &InMemoryInvoiceStore{
		InMemoryStore: NewInMemoryStore[*invoice.Invoice](),
	}
}

// copyInvoice returns a deep copy of the persisted fields. Transient state
// such as registered callbacks stays on the caller's instance, matching what
// a round trip through real storage would preserve.
func copyInvoice(inv *invoice.Invoice) *invoice.Invoice {
	if inv == nil {
		return nil
	}

	out := &invoice.Invoice{
		ID:                 inv.ID,
		InvoiceNumber:      inv.InvoiceNumber,
		PayerRef:           inv.PayerRef,
		PayerName:          inv.PayerName,
		PayerEmail:         inv.PayerEmail,
		InvoiceableRef:     inv.InvoiceableRef,
		Description:        inv.Description,
		Subtotal:           inv.Subtotal,
		Tax:                inv.Tax,
		Discount:           inv.Discount,
		Total:              inv.Total,
		Currency:           inv.Currency,
		InvoiceStatus:      inv.InvoiceStatus,
		DueDate:            inv.DueDate,
		Metadata:           types.MergeMetadata(inv.Metadata),
		IsRecurring:        inv.IsRecurring,
		RecurringFrequency: inv.RecurringFrequency,
		RecurringInterval:  inv.RecurringInterval,
		ParentInvoiceID:    copyPtr(inv.ParentInvoiceID),
		BaseModel:          inv.BaseModel,
	}

	out.PaidAt = copyPtr(inv.PaidAt)
	out.RecurringEndDate = copyPtr(inv.RecurringEndDate)
	out.NextBillingDate = copyPtr(inv.NextBillingDate)

	if len(inv.LineItems) > 0 {
		out.LineItems = make([]*invoice.LineItem, len(inv.LineItems))
		for i, item := range inv.LineItems {
			itemCopy := *item
			out.LineItems[i] = &itemCopy
		}
	}

	return out
}

func copyPtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func (s *InMemoryInvoiceStore) Create(ctx context.Context, inv *invoice.Invoice) error {
	if inv == nil {
		return fmt.Errorf("invoice cannot be nil")
	}

	stored := copyInvoice(inv)
	for _, item := range stored.LineItems {
		item.InvoiceID = stored.ID
	}
	return s.InMemoryStore.Create(ctx, inv.ID, stored)
}

func (s *InMemoryInvoiceStore) Get(ctx context.Context, id string) (*invoice.Invoice, error) {
	inv, err := s.InMemoryStore.Get(ctx, id)
	if err != nil || inv.Status == types.StatusDeleted {
		return nil, ierr.WithError(invoice.ErrInvoiceNotFound).
			WithHintf("Invoice %s not found", id).
			Mark(ierr.ErrNotFound)
	}
	return copyInvoice(inv), nil
}

func (s *InMemoryInvoiceStore) Update(ctx context.Context, inv *invoice.Invoice) error {
	if inv == nil {
		return fmt.Errorf("invoice cannot be nil")
	}

	if err := s.InMemoryStore.Update(ctx, inv.ID, copyInvoice(inv)); err != nil {
		return ierr.WithError(invoice.ErrInvoiceNotFound).
			WithHintf("Invoice %s not found", inv.ID).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

func (s *InMemoryInvoiceStore) Delete(ctx context.Context, id string) error {
	inv, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	inv.Status = types.StatusDeleted
	return s.InMemoryStore.Update(ctx, id, inv)
}

func invoiceFilterFn(ctx context.Context, inv *invoice.Invoice, filter interface{}) bool {
	f, ok := filter.(*types.InvoiceFilter)
	if !ok || f == nil {
		f = types.NewInvoiceFilter()
	}

	if !f.IncludeDeleted && inv.Status == types.StatusDeleted {
		return false
	}
	if len(f.InvoiceIDs) > 0 && !lo.Contains(f.InvoiceIDs, inv.ID) {
		return false
	}
	if len(f.InvoiceStatus) > 0 && !lo.Contains(f.InvoiceStatus, inv.InvoiceStatus) {
		return false
	}
	if f.PayerKind != "" && inv.PayerRef.Kind != f.PayerKind {
		return false
	}
	if f.PayerID != "" && inv.PayerRef.ID != f.PayerID {
		return false
	}
	if f.InvoiceableKind != "" && inv.InvoiceableRef.Kind != f.InvoiceableKind {
		return false
	}
	if f.InvoiceableID != "" && inv.InvoiceableRef.ID != f.InvoiceableID {
		return false
	}
	if f.OverdueAsOf != nil && !inv.IsOverdue(*f.OverdueAsOf) {
		return false
	}
	if f.RecurringDueAsOf != nil {
		asOf := *f.RecurringDueAsOf
		if !inv.IsRecurring {
			return false
		}
		if inv.NextBillingDate == nil || inv.NextBillingDate.After(asOf) {
			return false
		}
		if inv.RecurringEnded(asOf) {
			return false
		}
	}

	return true
}

func invoiceSortFn(i, j *invoice.Invoice) bool {
	return i.CreatedAt.After(j.CreatedAt)
}

func (s *InMemoryInvoiceStore) List(ctx context.Context, filter *types.InvoiceFilter) ([]*invoice.Invoice, error) {
	invoices, err := s.InMemoryStore.List(ctx, filter, invoiceFilterFn, invoiceSortFn)
	if err != nil {
		return nil, err
	}

	result := make([]*invoice.Invoice, len(invoices))
	for i, inv := range invoices {
		result[i] = copyInvoice(inv)
	}
	return result, nil
}

func (s *InMemoryInvoiceStore) Count(ctx context.Context, filter *types.InvoiceFilter) (int, error) {
	return s.InMemoryStore.Count(ctx, filter, invoiceFilterFn)
}

// WithTx emulates a storage transaction as a serialized critical section:
// the number lookup and the subsequent create cannot interleave across
// goroutines. There is no rollback; callers should not rely on partial
// writes being undone.
func (s *InMemoryInvoiceStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return fn(ctx)
}

// LastInvoiceNumber scans issued numbers in the scope. The lookup-then-assign
// window is serialized by WithTx; the store-wide mutex only covers direct
// calls. The postgres implementation holds an advisory lock instead.
func (s *InMemoryInvoiceStore) LastInvoiceNumber(ctx context.Context, scope string) (string, error) {
	s.numMu.Lock()
	defer s.numMu.Unlock()

	all, err := s.InMemoryStore.List(ctx, &types.InvoiceFilter{IncludeDeleted: true}, invoiceFilterFn, nil)
	if err != nil {
		return "", err
	}

	last := ""
	for _, inv := range all {
		if strings.HasPrefix(inv.InvoiceNumber, scope) && inv.InvoiceNumber > last {
			last = inv.InvoiceNumber
		}
	}
	return last, nil
}

func (s *InMemoryInvoiceStore) Stats(ctx context.Context, asOf time.Time) (*invoice.Stats, error) {
	all, err := s.List(ctx, types.NewInvoiceFilter())
	if err != nil {
		return nil, err
	}

	stats := &invoice.Stats{}
	for _, inv := range all {
		stats.TotalCount++
		switch inv.InvoiceStatus {
		case types.InvoiceStatusPending:
			stats.PendingCount++
			stats.PendingRevenue = stats.PendingRevenue.Add(inv.Total)
			if inv.IsOverdue(asOf) {
				stats.OverdueCount++
			}
		case types.InvoiceStatusPaid:
			stats.PaidCount++
			stats.TotalRevenue = stats.TotalRevenue.Add(inv.Total)
		case types.InvoiceStatusFailed:
			stats.FailedCount++
		}
	}
	return stats, nil
}
