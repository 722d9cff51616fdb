package service

import (
	"context"
	"sync"
	"time"

	"github.com/invopay/invopay/internal/domain/activity"
	"github.com/invopay/invopay/internal/domain/invoice"
	"github.com/invopay/invopay/internal/types"
	"github.com/sourcegraph/conc/pool"
)

// recurringWorkers bounds how many successor invoices are generated in
// parallel during a batch run
const recurringWorkers = 4

// RecurringService produces successor invoices for matured recurring
// invoices and advances their billing cycle.
type RecurringService interface {
	// GenerateNextInvoice clones a matured recurring invoice into a pending
	// successor and advances the source's next billing date. It returns nil
	// without error when the invoice is not recurring or its recurrence has
	// ended. Re-invoking it before the next billing date advances will
	// generate another successor; one invocation per maturity event is the
	// scheduling contract.
	GenerateNextInvoice(ctx context.Context, inv *invoice.Invoice) (*invoice.Invoice, error)

	// GenerateDueInvoices generates successors for every recurring invoice
	// whose next billing date has matured. Per-invoice failures are logged
	// and do not stop the batch; the count of generated invoices is returned.
	GenerateDueInvoices(ctx context.Context) (int, error)
}

type recurringService struct {
	ServiceParams
}

// NewRecurringService creates a new recurring invoice service
func NewRecurringService(params ServiceParams) RecurringService {
	return &recurringService{ServiceParams: params}
}

func (s *recurringService) GenerateNextInvoice(ctx context.Context, inv *invoice.Invoice) (*invoice.Invoice, error) {
	now := s.clock().Now()

	if !inv.IsRecurring || inv.RecurringEnded(now) {
		return nil, nil
	}

	cfg := s.Config.Invoice
	child := s.cloneForNextCycle(ctx, inv, now)

	err := s.withTx(ctx, func(txCtx context.Context) error {
		scope := invoice.NumberScope(cfg.NumberPrefix, cfg.NumberFormat, now)

		last, err := s.InvoiceRepo.LastInvoiceNumber(txCtx, scope)
		if err != nil {
			return err
		}

		number, err := invoice.NextNumber(scope, last, cfg.NumberPadding)
		if err != nil {
			return err
		}
		child.InvoiceNumber = number

		if err := s.InvoiceRepo.Create(txCtx, child); err != nil {
			return err
		}

		// advance the billing cycle from its current anchor, not from now,
		// so late runs do not drift the schedule
		anchor := now
		if inv.NextBillingDate != nil {
			anchor = *inv.NextBillingDate
		}
		inv.AdvanceNextBillingDate(inv.RecurringFrequency.NextBillingDate(anchor, inv.RecurringInterval))
		inv.UpdatedAt = now
		inv.UpdatedBy = types.GetUserID(txCtx)

		return s.InvoiceRepo.Update(txCtx, inv)
	})
	if err != nil {
		return nil, err
	}

	s.notifySpawn(ctx, inv, child)
	return child, nil
}

// cloneForNextCycle copies the billable content of the source invoice into a
// fresh pending draft. The successor is a plain invoice: the source remains
// the recurring template.
func (s *recurringService) cloneForNextCycle(ctx context.Context, inv *invoice.Invoice, now time.Time) *invoice.Invoice {
	items := make([]*invoice.LineItem, len(inv.LineItems))
	for i, item := range inv.LineItems {
		items[i] = item.Clone()
	}

	parentID := inv.ID
	return &invoice.Invoice{
		ID:              types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE),
		PayerRef:        inv.PayerRef,
		PayerName:       inv.PayerName,
		PayerEmail:      inv.PayerEmail,
		InvoiceableRef:  inv.InvoiceableRef,
		Description:     inv.Description,
		Subtotal:        inv.Subtotal,
		Tax:             inv.Tax,
		Discount:        inv.Discount,
		Total:           inv.Total,
		Currency:        inv.Currency,
		InvoiceStatus:   types.InvoiceStatusPending,
		DueDate:         now.AddDate(0, 0, s.Config.Invoice.RecurringGraceDays),
		Metadata:        types.MergeMetadata(inv.Metadata),
		ParentInvoiceID: &parentID,
		LineItems:       items,
		BaseModel:       types.GetDefaultBaseModel(ctx),
	}
}

func (s *recurringService) GenerateDueInvoices(ctx context.Context) (int, error) {
	now := s.clock().Now()

	due, err := s.InvoiceRepo.List(ctx, &types.InvoiceFilter{RecurringDueAsOf: &now})
	if err != nil {
		return 0, err
	}

	var mu sync.Mutex
	generated := 0

	p := pool.New().WithMaxGoroutines(recurringWorkers)
	for _, inv := range due {
		inv := inv
		p.Go(func() {
			child, err := s.GenerateNextInvoice(ctx, inv)
			if err != nil {
				s.Logger.Errorw("recurring generation failed",
					"invoice_id", inv.ID,
					"invoice_number", inv.InvoiceNumber,
					"error", err)
				return
			}
			if child != nil {
				mu.Lock()
				generated++
				mu.Unlock()
			}
		})
	}
	p.Wait()

	s.Logger.Infow("recurring generation run complete", "due", len(due), "generated", generated)
	return generated, nil
}

func (s *recurringService) notifySpawn(ctx context.Context, parent, child *invoice.Invoice) {
	err := s.observer().RecordActivity(ctx, &activity.Activity{
		ID:          types.GenerateUUIDWithPrefix(types.UUID_PREFIX_ACTIVITY),
		InvoiceID:   parent.ID,
		Action:      activity.ActionRecurringSpawn,
		OldStatus:   parent.InvoiceStatus,
		NewStatus:   parent.InvoiceStatus,
		OldTotal:    parent.Total,
		NewTotal:    parent.Total,
		Description: "generated successor invoice " + child.InvoiceNumber,
		Metadata:    types.Metadata{"child_invoice_id": child.ID},
		OccurredAt:  s.clock().Now(),
	})
	if err != nil {
		s.Logger.Errorw("activity recording failed", "invoice_id", parent.ID, "error", err)
	}
}
