package invoice

import (
	"context"

	"github.com/invopay/invopay/internal/types"
	"github.com/shopspring/decimal"
)

// PartyRef identifies a payer or invoiceable by an explicit (kind, id) pair.
// Kind is a caller-chosen discriminator ("user", "company", "order", ...);
// the core never inspects it beyond equality.
type PartyRef struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

func (r PartyRef) IsZero() bool {
	return r.Kind == "" && r.ID == ""
}

// Payer is the capability contract for the party responsible for settling an
// invoice. Implementations live outside the core (users, companies, agents).
type Payer interface {
	// PayerRef returns the identity of the payer
	PayerRef() PartyRef

	// PayerName returns the display name snapshotted onto the invoice
	PayerName() string

	// PayerEmail returns the billing email, empty when unknown
	PayerEmail() string

	// PayerAddress returns the billing address, empty when unknown
	PayerAddress() string

	// PayerMetadata returns extra payer attributes merged into invoice metadata
	PayerMetadata() types.Metadata
}

// Invoiceable is the capability contract for the billed subject (an order,
// subscription, top-up and so on).
type Invoiceable interface {
	// InvoiceableRef returns the identity of the billed subject
	InvoiceableRef() PartyRef

	// InvoiceableDescription returns a human-readable summary of what is billed
	InvoiceableDescription() string

	// InvoiceableAmount returns the declared expected amount. Zero disables
	// strict reconciliation for this target.
	InvoiceableAmount() decimal.Decimal

	// InvoiceableMetadata returns extra attributes merged into invoice metadata
	InvoiceableMetadata() types.Metadata
}

// PaidHook is an optional extension of Invoiceable. When the billed subject
// implements it, the hook is invoked exactly once after the invoice
// transitions to paid. Hook failures are reported but never abort the
// transition.
type PaidHook interface {
	OnInvoicePaid(ctx context.Context, inv *Invoice) error
}
