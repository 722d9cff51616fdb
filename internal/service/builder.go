package service

import (
	"context"
	"time"

	"github.com/invopay/invopay/internal/domain/activity"
	"github.com/invopay/invopay/internal/domain/invoice"
	ierr "github.com/invopay/invopay/internal/errors"
	"github.com/invopay/invopay/internal/types"
	"github.com/shopspring/decimal"
)

// amountTolerance is the absolute tolerance applied by strict reconciliation
// against the invoiceable's declared amount, in currency units.
var amountTolerance = decimal.NewFromFloat(0.01)

// InvoiceBuilder accumulates everything needed to create an invoice and
// materializes it in one atomic Create call. A builder is single use and not
// safe for concurrent mutation; build one per invoice.
type InvoiceBuilder struct {
	params ServiceParams

	payer       invoice.Payer
	invoiceable invoice.Invoiceable
	items       []*invoice.LineItem

	tax      decimal.Decimal
	discount decimal.Decimal

	currency    string
	status      types.InvoiceStatus
	dueDate     *time.Time
	description string
	metadata    types.Metadata

	strict             *bool
	useInvoiceableItem bool

	recurring          bool
	recurringFrequency types.RecurringFrequency
	recurringInterval  int
	recurringEndDate   *time.Time

	afterCreate []invoice.CreatedCallback
	onPaid      []invoice.PaidCallback

	// err holds the first chained-call failure; Create reports it instead of
	// building on known-bad state.
	err error
}

// NewInvoiceBuilder creates a new invoice builder
func NewInvoiceBuilder(params ServiceParams) *InvoiceBuilder {
	return &InvoiceBuilder{
		params:   params,
		tax:      decimal.Zero,
		discount: decimal.Zero,
	}
}

// Payer sets the party responsible for settling the invoice
func (b *InvoiceBuilder) Payer(p invoice.Payer) *InvoiceBuilder {
	b.payer = p
	return b
}

// Invoiceable sets the billed subject
func (b *InvoiceBuilder) Invoiceable(target invoice.Invoiceable) *InvoiceBuilder {
	b.invoiceable = target
	return b
}

// Item validates and appends a single line item
func (b *InvoiceBuilder) Item(in invoice.LineItemInput) *InvoiceBuilder {
	if b.err != nil {
		return b
	}

	item, err := invoice.NewLineItem(in)
	if err != nil {
		b.err = err
		return b
	}

	b.items = append(b.items, item)
	return b
}

// Items appends multiple line items, stopping at the first invalid one
func (b *InvoiceBuilder) Items(inputs ...invoice.LineItemInput) *InvoiceBuilder {
	for _, in := range inputs {
		b.Item(in)
	}
	return b
}

// Tax sets the explicit tax adjustment added on top of per-item tax
func (b *InvoiceBuilder) Tax(amount decimal.Decimal) *InvoiceBuilder {
	b.tax = amount
	return b
}

// Discount sets the discount adjustment, bounded by the item subtotal
func (b *InvoiceBuilder) Discount(amount decimal.Decimal) *InvoiceBuilder {
	b.discount = amount
	return b
}

// Currency overrides the configured default currency
func (b *InvoiceBuilder) Currency(code string) *InvoiceBuilder {
	b.currency = code
	return b
}

// Status overrides the initial lifecycle status, pending by default
func (b *InvoiceBuilder) Status(status types.InvoiceStatus) *InvoiceBuilder {
	b.status = status
	return b
}

// DueDate overrides the configured default due date offset
func (b *InvoiceBuilder) DueDate(at time.Time) *InvoiceBuilder {
	at = at.UTC()
	b.dueDate = &at
	return b
}

// Description sets the invoice description; when empty it falls back to the
// invoiceable's description
func (b *InvoiceBuilder) Description(text string) *InvoiceBuilder {
	b.description = text
	return b
}

// Metadata sets builder-supplied metadata. Payer and invoiceable metadata are
// merged on top at create time, later sources winning on key collision.
func (b *InvoiceBuilder) Metadata(md types.Metadata) *InvoiceBuilder {
	b.metadata = md
	return b
}

// WithoutStrictValidation disables reconciliation against the invoiceable's
// declared amount for this build only
func (b *InvoiceBuilder) WithoutStrictValidation() *InvoiceBuilder {
	strict := false
	b.strict = &strict
	return b
}

// WithStrictValidation forces reconciliation on for this build regardless of
// the configured default
func (b *InvoiceBuilder) WithStrictValidation() *InvoiceBuilder {
	strict := true
	b.strict = &strict
	return b
}

// WithInvoiceableItem adds a line item derived from the invoiceable's declared
// amount and description. This is always an explicit opt-in, never implicit.
func (b *InvoiceBuilder) WithInvoiceableItem() *InvoiceBuilder {
	b.useInvoiceableItem = true
	return b
}

// Recurring marks the invoice as recurring with the given cycle. The interval
// is clamped to at least 1; a nil end date means the recurrence never ends.
func (b *InvoiceBuilder) Recurring(frequency types.RecurringFrequency, interval int, endDate *time.Time) *InvoiceBuilder {
	b.recurring = true
	b.recurringFrequency = frequency
	if interval < 1 {
		interval = 1
	}
	b.recurringInterval = interval
	b.recurringEndDate = endDate
	return b
}

// AfterCreate registers a callback fired once the invoice has been persisted
func (b *InvoiceBuilder) AfterCreate(cb invoice.CreatedCallback) *InvoiceBuilder {
	b.afterCreate = append(b.afterCreate, cb)
	return b
}

// OnPaid registers a callback fired when the invoice transitions to paid
func (b *InvoiceBuilder) OnPaid(cb invoice.PaidCallback) *InvoiceBuilder {
	b.onPaid = append(b.onPaid, cb)
	return b
}

// Create validates the accumulated state, assigns the invoice number inside a
// serialized scope and persists the invoice with its items as one unit. On
// success the returned entity carries the registered on-paid callbacks and
// after-create callbacks have already fired.
func (b *InvoiceBuilder) Create(ctx context.Context) (*invoice.Invoice, error) {
	if b.err != nil {
		return nil, b.err
	}

	if b.payer == nil {
		return nil, ierr.WithError(invoice.ErrMissingPayer).
			WithHint("Attach a payer before creating the invoice").
			Mark(ierr.ErrValidation)
	}
	if b.invoiceable == nil {
		return nil, ierr.WithError(invoice.ErrMissingInvoiceable).
			WithHint("Attach an invoiceable target before creating the invoice").
			Mark(ierr.ErrValidation)
	}

	items := b.items
	if b.useInvoiceableItem {
		item, err := invoice.NewLineItem(invoice.LineItemInput{
			Name:     b.invoiceable.InvoiceableDescription(),
			Price:    b.invoiceable.InvoiceableAmount(),
			Quantity: 1,
		})
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if len(items) == 0 {
		return nil, ierr.WithError(invoice.ErrNoItems).
			WithHint("Add at least one line item before creating the invoice").
			Mark(ierr.ErrValidation)
	}

	amounts, err := invoice.ComputeAmounts(items, b.tax, b.discount)
	if err != nil {
		return nil, err
	}

	if err := b.reconcile(amounts.Total); err != nil {
		return nil, err
	}

	cfg := b.params.Config.Invoice
	now := b.params.clock().Now()

	currency := b.currency
	if currency == "" {
		currency = cfg.DefaultCurrency
	}

	status := b.status
	if status == "" {
		status = types.InvoiceStatusPending
	}
	if err := status.Validate(); err != nil {
		return nil, err
	}

	dueDate := now.AddDate(0, 0, cfg.DueDateDays)
	if b.dueDate != nil {
		dueDate = *b.dueDate
	}

	description := b.description
	if description == "" {
		description = b.invoiceable.InvoiceableDescription()
	}

	inv := &invoice.Invoice{
		ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE),
		PayerRef:       b.payer.PayerRef(),
		PayerName:      b.payer.PayerName(),
		PayerEmail:     b.payer.PayerEmail(),
		InvoiceableRef: b.invoiceable.InvoiceableRef(),
		Description:    description,
		Subtotal:       amounts.Subtotal,
		Tax:            amounts.Tax,
		Discount:       amounts.Discount,
		Total:          amounts.Total,
		Currency:       currency,
		InvoiceStatus:  status,
		DueDate:        dueDate,
		Metadata: types.MergeMetadata(
			b.metadata,
			b.payer.PayerMetadata(),
			b.invoiceable.InvoiceableMetadata(),
		),
		LineItems: items,
		BaseModel: types.GetDefaultBaseModel(ctx),
	}

	if b.recurring {
		next := b.recurringFrequency.NextBillingDate(now, b.recurringInterval)
		inv.IsRecurring = true
		inv.RecurringFrequency = b.recurringFrequency
		inv.RecurringInterval = b.recurringInterval
		inv.RecurringEndDate = b.recurringEndDate
		inv.NextBillingDate = &next
	}

	err = b.params.withTx(ctx, func(txCtx context.Context) error {
		scope := invoice.NumberScope(cfg.NumberPrefix, cfg.NumberFormat, now)

		last, err := b.params.InvoiceRepo.LastInvoiceNumber(txCtx, scope)
		if err != nil {
			return err
		}

		number, err := invoice.NextNumber(scope, last, cfg.NumberPadding)
		if err != nil {
			return err
		}
		inv.InvoiceNumber = number

		return b.params.InvoiceRepo.Create(txCtx, inv)
	})
	if err != nil {
		return nil, err
	}

	inv.AttachInvoiceable(b.invoiceable)
	if cfg.CallbacksEnabled {
		for _, cb := range b.onPaid {
			inv.OnPaid(cb)
		}
	}

	b.notifyCreated(ctx, inv)

	if cfg.CallbacksEnabled {
		for i, cb := range b.afterCreate {
			if err := runCallback(ctx, func(ctx context.Context) error { return cb(ctx, inv) }); err != nil {
				b.params.Logger.Errorw("after-create callback failed",
					"invoice_id", inv.ID,
					"callback_index", i,
					"error", err)
			}
		}
	}

	return inv, nil
}

// reconcile applies strict validation against the invoiceable's declared
// amount. A zero declared amount disables reconciliation for this target.
func (b *InvoiceBuilder) reconcile(total decimal.Decimal) error {
	strict := b.params.Config.Invoice.StrictValidation
	if b.strict != nil {
		strict = *b.strict
	}
	if !strict {
		return nil
	}

	expected := b.invoiceable.InvoiceableAmount()
	if !expected.IsPositive() {
		return nil
	}

	if expected.Sub(total).Abs().GreaterThan(amountTolerance) {
		return ierr.WithError(&invoice.AmountMismatchError{Expected: expected, Calculated: total}).
			WithHintf("Calculated total %s does not match expected amount %s",
				total.StringFixed(2), expected.StringFixed(2)).
			WithReportableDetails(map[string]any{
				"expected":   expected.String(),
				"calculated": total.String(),
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

func (b *InvoiceBuilder) notifyCreated(ctx context.Context, inv *invoice.Invoice) {
	err := b.params.observer().RecordActivity(ctx, &activity.Activity{
		ID:          types.GenerateUUIDWithPrefix(types.UUID_PREFIX_ACTIVITY),
		InvoiceID:   inv.ID,
		Action:      activity.ActionCreated,
		NewStatus:   inv.InvoiceStatus,
		NewTotal:    inv.Total,
		Description: "invoice created",
		OccurredAt:  b.params.clock().Now(),
	})
	if err != nil {
		b.params.Logger.Errorw("activity recording failed", "invoice_id", inv.ID, "error", err)
	}
}
