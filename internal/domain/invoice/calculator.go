package invoice

import (
	ierr "github.com/invopay/invopay/internal/errors"
	"github.com/shopspring/decimal"
)

// Amounts is the monetary breakdown of an invoice. All values are at money
// precision and non-negative; Total = Subtotal + Tax - Discount.
type Amounts struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	ItemTax  decimal.Decimal `json:"item_tax"`
	Tax      decimal.Decimal `json:"tax"`
	Discount decimal.Decimal `json:"discount"`
	Total    decimal.Decimal `json:"total"`
}

// ComputeAmounts aggregates line items with the explicit tax and discount
// adjustments. Every item is validated before aggregation so the error
// identifies the offending item; the discount bound and the non-negative
// total are checked after.
func ComputeAmounts(items []*LineItem, taxAdjustment, discount decimal.Decimal) (Amounts, error) {
	if taxAdjustment.IsNegative() {
		return Amounts{}, ierr.NewError("tax amount cannot be negative").
			WithHint("Tax adjustment must be non negative").
			Mark(ierr.ErrValidation)
	}
	if discount.IsNegative() {
		return Amounts{}, ierr.NewError("discount amount cannot be negative").
			WithHint("Discount adjustment must be non negative").
			Mark(ierr.ErrValidation)
	}

	subtotal := decimal.Zero
	itemTax := decimal.Zero
	for _, item := range items {
		if err := item.Validate(); err != nil {
			return Amounts{}, err
		}
		subtotal = subtotal.Add(item.Subtotal)
		itemTax = itemTax.Add(item.TaxAmount())
	}
	subtotal = subtotal.Round(MoneyScale)
	itemTax = itemTax.Round(MoneyScale)

	discount = discount.Round(MoneyScale)
	if discount.GreaterThan(subtotal) {
		return Amounts{}, ierr.WithError(ErrDiscountExceedsSubtotal).
			WithHintf("Discount %s cannot exceed subtotal %s", discount.StringFixed(2), subtotal.StringFixed(2)).
			WithReportableDetails(map[string]any{
				"discount": discount.String(),
				"subtotal": subtotal.String(),
			}).
			Mark(ierr.ErrValidation)
	}

	tax := taxAdjustment.Round(MoneyScale).Add(itemTax)
	total := subtotal.Add(tax).Sub(discount).Round(MoneyScale)
	if total.IsNegative() {
		return Amounts{}, ierr.WithError(ErrNegativeTotal).
			WithHintf("Total cannot be negative: subtotal %s, tax %s, discount %s",
				subtotal.StringFixed(2), tax.StringFixed(2), discount.StringFixed(2)).
			Mark(ierr.ErrValidation)
	}

	return Amounts{
		Subtotal: subtotal,
		ItemTax:  itemTax,
		Tax:      tax,
		Discount: discount,
		Total:    total,
	}, nil
}
