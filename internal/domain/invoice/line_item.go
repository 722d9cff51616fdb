package invoice

import (
	ierr "github.com/invopay/invopay/internal/errors"
	"github.com/invopay/invopay/internal/types"
	"github.com/shopspring/decimal"
)

// MoneyScale is the decimal precision for currency amounts
const MoneyScale = 2

// TaxRateScale is the decimal precision for tax rate fractions
const TaxRateScale = 4

// LineItem represents a single line item in an invoice. Items are immutable
// once added to a build; the builder owns them until they are committed into
// an Invoice.
type LineItem struct {
	ID          string          `json:"id" db:"id"`
	InvoiceID   string          `json:"invoice_id" db:"invoice_id"`
	Name        string          `json:"name" db:"name"`
	Description string          `json:"description" db:"description"`
	Price       decimal.Decimal `json:"price" db:"price"`
	Quantity    int64           `json:"quantity" db:"quantity"`
	TaxRate     decimal.Decimal `json:"tax_rate" db:"tax_rate"`
	Subtotal    decimal.Decimal `json:"subtotal" db:"subtotal"`
	SKU         *string         `json:"sku,omitempty" db:"sku"`
	Notes       *string         `json:"notes,omitempty" db:"notes"`
}

// LineItemInput is the single typed construction shape for line items.
// Description defaults to Name when empty.
type LineItemInput struct {
	Name        string
	Description string
	Price       decimal.Decimal
	Quantity    int64
	TaxRate     decimal.Decimal
	SKU         *string
	Notes       *string
}

// NewLineItem validates the input and materializes a line item with its
// subtotal computed at money precision.
func NewLineItem(in LineItemInput) (*LineItem, error) {
	if err := validateItemInput(in); err != nil {
		return nil, err
	}

	description := in.Description
	if description == "" {
		description = in.Name
	}

	return &LineItem{
		ID:          types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE_LINE_ITEM),
		Name:        in.Name,
		Description: description,
		Price:       in.Price.Round(MoneyScale),
		Quantity:    in.Quantity,
		TaxRate:     in.TaxRate.Round(TaxRateScale),
		Subtotal:    in.Price.Mul(decimal.NewFromInt(in.Quantity)).Round(MoneyScale),
		SKU:         in.SKU,
		Notes:       in.Notes,
	}, nil
}

func validateItemInput(in LineItemInput) error {
	fail := func(reason string) error {
		return ierr.WithError(&ItemValidationError{Item: in.Name, Reason: reason}).
			WithHintf("Line item %q is invalid: %s", in.Name, reason).
			Mark(ierr.ErrValidation)
	}

	if in.Name == "" {
		return ierr.WithError(&ItemValidationError{Item: in.Name, Reason: "name is required"}).
			WithHint("Line item name is required").
			Mark(ierr.ErrValidation)
	}
	if in.Price.IsNegative() {
		return fail("price must be non negative")
	}
	if in.Quantity < 1 {
		return fail("quantity must be at least 1")
	}
	if in.TaxRate.IsNegative() || in.TaxRate.GreaterThan(decimal.NewFromInt(1)) {
		return fail("tax rate must be between 0 and 1")
	}

	return nil
}

// TaxAmount returns the tax owed on this item at money precision
func (i *LineItem) TaxAmount() decimal.Decimal {
	return i.Subtotal.Mul(i.TaxRate).Round(MoneyScale)
}

// Total returns the item subtotal including its tax
func (i *LineItem) Total() decimal.Decimal {
	return i.Subtotal.Add(i.TaxAmount())
}

// Clone returns a copy of the item with a fresh identity and no invoice
// attachment, used when recurring invoices copy their parent's items.
func (i *LineItem) Clone() *LineItem {
	clone := *i
	clone.ID = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE_LINE_ITEM)
	clone.InvoiceID = ""
	return &clone
}

// Validate checks the invariants of a materialized line item
func (i *LineItem) Validate() error {
	return validateItemInput(LineItemInput{
		Name:     i.Name,
		Price:    i.Price,
		Quantity: i.Quantity,
		TaxRate:  i.TaxRate,
	})
}
