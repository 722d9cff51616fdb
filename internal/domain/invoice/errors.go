package invoice

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvoiceNotFound is returned when an invoice is not found
	ErrInvoiceNotFound = errors.New("invoice not found")

	// ErrMissingPayer is returned when a build has no payer attached
	ErrMissingPayer = errors.New("payer is required to create an invoice")

	// ErrMissingInvoiceable is returned when a build has no invoiceable attached
	ErrMissingInvoiceable = errors.New("invoiceable is required to create an invoice")

	// ErrNoItems is returned when a build has no line items
	ErrNoItems = errors.New("at least one item is required to create an invoice")

	// ErrItemInvalid is returned when a line item fails validation
	ErrItemInvalid = errors.New("invalid line item")

	// ErrDiscountExceedsSubtotal is returned when the discount adjustment is larger than the item subtotal
	ErrDiscountExceedsSubtotal = errors.New("discount cannot exceed subtotal")

	// ErrNegativeTotal is returned when the computed total would be negative
	ErrNegativeTotal = errors.New("total cannot be negative")

	// ErrAmountMismatch is returned by strict reconciliation when the computed
	// total diverges from the invoiceable's declared amount
	ErrAmountMismatch = errors.New("calculated total does not match expected amount")

	// ErrAlreadyPaid is returned when paying an invoice that is already paid
	ErrAlreadyPaid = errors.New("invoice is already paid")

	// ErrCannotCancelPaid is returned when cancelling a paid invoice
	ErrCannotCancelPaid = errors.New("cannot cancel a paid invoice")

	// ErrCannotRefundUnpaid is returned when refunding an invoice that is not paid
	ErrCannotRefundUnpaid = errors.New("only paid invoices can be refunded")

	// ErrPaymentExceedsRemaining is returned when a payment is larger than the outstanding balance
	ErrPaymentExceedsRemaining = errors.New("payment exceeds remaining amount")
)

// ItemValidationError reports which line item failed validation and why
type ItemValidationError struct {
	Item   string
	Reason string
}

func (e *ItemValidationError) Error() string {
	return fmt.Sprintf("item %q: %s", e.Item, e.Reason)
}

func (e *ItemValidationError) Unwrap() error {
	return ErrItemInvalid
}

// AmountMismatchError carries both sides of a failed strict reconciliation
type AmountMismatchError struct {
	Expected   decimal.Decimal
	Calculated decimal.Decimal
}

func (e *AmountMismatchError) Error() string {
	return fmt.Sprintf(
		"invoice total mismatch: expected %s, calculated %s (disable strict validation if intentional)",
		e.Expected.StringFixed(2), e.Calculated.StringFixed(2),
	)
}

func (e *AmountMismatchError) Unwrap() error {
	return ErrAmountMismatch
}

// PaymentExceedsRemainingError carries the attempted amount and the balance it exceeded
type PaymentExceedsRemainingError struct {
	Attempted decimal.Decimal
	Remaining decimal.Decimal
}

func (e *PaymentExceedsRemainingError) Error() string {
	return fmt.Sprintf(
		"payment %s exceeds remaining amount %s",
		e.Attempted.StringFixed(2), e.Remaining.StringFixed(2),
	)
}

func (e *PaymentExceedsRemainingError) Unwrap() error {
	return ErrPaymentExceedsRemaining
}

// IsNotFoundError checks if an error is a not found error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrInvoiceNotFound)
}
