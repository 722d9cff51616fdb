package activity

import (
	"time"

	"github.com/invopay/invopay/internal/types"
	"github.com/shopspring/decimal"
)

// Action identifies what happened to an invoice
type Action string

const (
	ActionCreated         Action = "created"
	ActionStatusChanged   Action = "status_changed"
	ActionPaymentRecorded Action = "payment_recorded"
	ActionRecurringSpawn  Action = "recurring_spawn"
)

// Activity describes a single invoice lifecycle event handed to the Observer.
// The core produces these records; storing them is the collaborator's concern.
type Activity struct {
	ID        string `json:"id"`
	InvoiceID string `json:"invoice_id"`
	Action    Action `json:"action"`

	// Before/after lifecycle status for status transitions
	OldStatus types.InvoiceStatus `json:"old_status,omitempty"`
	NewStatus types.InvoiceStatus `json:"new_status,omitempty"`

	// Before/after total amount
	OldTotal decimal.Decimal `json:"old_total"`
	NewTotal decimal.Decimal `json:"new_total"`

	Description string         `json:"description,omitempty"`
	Metadata    types.Metadata `json:"metadata,omitempty"`

	OccurredAt time.Time `json:"occurred_at"`
}
