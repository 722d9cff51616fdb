package invoice

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustItem(t *testing.T, in LineItemInput) *LineItem {
	t.Helper()
	item, err := NewLineItem(in)
	require.NoError(t, err)
	return item
}

func TestComputeAmounts(t *testing.T) {
	tests := []struct {
		name     string
		items    []LineItemInput
		tax      decimal.Decimal
		discount decimal.Decimal

		wantSubtotal string
		wantTax      string
		wantTotal    string
		wantErr      error
	}{
		{
			name: "two items with explicit tax and discount",
			items: []LineItemInput{
				{Name: "widget", Price: decimal.NewFromInt(50000), Quantity: 2},
				{Name: "gadget", Price: decimal.NewFromInt(75000), Quantity: 1},
			},
			tax:          decimal.NewFromInt(15000),
			discount:     decimal.NewFromInt(10000),
			wantSubtotal: "175000.00",
			wantTax:      "15000.00",
			wantTotal:    "180000.00",
		},
		{
			name: "per item tax rates aggregate into tax",
			items: []LineItemInput{
				{Name: "hosting", Price: decimal.NewFromInt(100), Quantity: 1, TaxRate: decimal.NewFromFloat(0.1)},
				{Name: "support", Price: decimal.NewFromInt(200), Quantity: 1, TaxRate: decimal.NewFromFloat(0.05)},
			},
			tax:          decimal.Zero,
			discount:     decimal.Zero,
			wantSubtotal: "300.00",
			wantTax:      "20.00",
			wantTotal:    "320.00",
		},
		{
			name: "explicit tax stacks on item tax",
			items: []LineItemInput{
				{Name: "hosting", Price: decimal.NewFromInt(100), Quantity: 1, TaxRate: decimal.NewFromFloat(0.1)},
			},
			tax:          decimal.NewFromInt(5),
			discount:     decimal.Zero,
			wantSubtotal: "100.00",
			wantTax:      "15.00",
			wantTotal:    "115.00",
		},
		{
			name: "discount equal to subtotal is allowed",
			items: []LineItemInput{
				{Name: "credit", Price: decimal.NewFromInt(50), Quantity: 1},
			},
			tax:          decimal.Zero,
			discount:     decimal.NewFromInt(50),
			wantSubtotal: "50.00",
			wantTax:      "0.00",
			wantTotal:    "0.00",
		},
		{
			name: "discount exceeding subtotal is rejected",
			items: []LineItemInput{
				{Name: "credit", Price: decimal.NewFromInt(50), Quantity: 1},
			},
			tax:      decimal.Zero,
			discount: decimal.NewFromInt(51),
			wantErr:  ErrDiscountExceedsSubtotal,
		},
		{
			name:         "no items yields zero amounts",
			items:        nil,
			tax:          decimal.Zero,
			discount:     decimal.Zero,
			wantSubtotal: "0.00",
			wantTax:      "0.00",
			wantTotal:    "0.00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items := make([]*LineItem, len(tt.items))
			for i, in := range tt.items {
				items[i] = mustItem(t, in)
			}

			amounts, err := ComputeAmounts(items, tt.tax, tt.discount)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr))
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantSubtotal, amounts.Subtotal.StringFixed(2))
			assert.Equal(t, tt.wantTax, amounts.Tax.StringFixed(2))
			assert.Equal(t, tt.wantTotal, amounts.Total.StringFixed(2))
			assert.Equal(t, amounts.Subtotal.Add(amounts.Tax).Sub(amounts.Discount).StringFixed(2), amounts.Total.StringFixed(2))
			assert.False(t, amounts.Total.IsNegative())
		})
	}
}

func TestComputeAmountsRejectsNegativeAdjustments(t *testing.T) {
	items := []*LineItem{mustItem(t, LineItemInput{Name: "widget", Price: decimal.NewFromInt(10), Quantity: 1})}

	_, err := ComputeAmounts(items, decimal.NewFromInt(-1), decimal.Zero)
	assert.Error(t, err)

	_, err = ComputeAmounts(items, decimal.Zero, decimal.NewFromInt(-1))
	assert.Error(t, err)
}

func TestComputeAmountsIdentifiesInvalidItem(t *testing.T) {
	tests := []struct {
		name   string
		input  LineItemInput
		reason string
	}{
		{
			name:  "empty name",
			input: LineItemInput{Name: "", Price: decimal.NewFromInt(10), Quantity: 1},
		},
		{
			name:  "negative price",
			input: LineItemInput{Name: "bad-price", Price: decimal.NewFromInt(-1), Quantity: 1},
		},
		{
			name:  "zero quantity",
			input: LineItemInput{Name: "bad-qty", Price: decimal.NewFromInt(10), Quantity: 0},
		},
		{
			name:  "tax rate above one",
			input: LineItemInput{Name: "bad-rate", Price: decimal.NewFromInt(10), Quantity: 1, TaxRate: decimal.NewFromFloat(1.5)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLineItem(tt.input)
			require.Error(t, err)

			var itemErr *ItemValidationError
			require.True(t, errors.As(err, &itemErr))
			assert.True(t, errors.Is(err, ErrItemInvalid))
			assert.Equal(t, tt.input.Name, itemErr.Item)
		})
	}
}

func TestLineItemSubtotalAndTax(t *testing.T) {
	item := mustItem(t, LineItemInput{
		Name:     "seat",
		Price:    decimal.NewFromFloat(19.99),
		Quantity: 3,
		TaxRate:  decimal.NewFromFloat(0.1),
	})

	assert.Equal(t, "59.97", item.Subtotal.StringFixed(2))
	assert.Equal(t, "6.00", item.TaxAmount().StringFixed(2))
	assert.Equal(t, "65.97", item.Total().StringFixed(2))
}

func TestLineItemDescriptionDefaultsToName(t *testing.T) {
	item := mustItem(t, LineItemInput{Name: "seat", Price: decimal.NewFromInt(10), Quantity: 1})
	assert.Equal(t, "seat", item.Description)
}

func TestLineItemClone(t *testing.T) {
	item := mustItem(t, LineItemInput{Name: "seat", Price: decimal.NewFromInt(10), Quantity: 2})
	item.InvoiceID = "inv_123"

	clone := item.Clone()
	assert.NotEqual(t, item.ID, clone.ID)
	assert.Empty(t, clone.InvoiceID)
	assert.Equal(t, item.Name, clone.Name)
	assert.True(t, item.Price.Equal(clone.Price))
	assert.Equal(t, item.Quantity, clone.Quantity)
}
