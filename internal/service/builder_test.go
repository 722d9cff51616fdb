package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/invopay/invopay/internal/domain/invoice"
	"github.com/invopay/invopay/internal/testutil"
	"github.com/invopay/invopay/internal/types"
	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc/pool"
	"github.com/stretchr/testify/suite"
)

type InvoiceBuilderSuite struct {
	testutil.BaseServiceTestSuite
	params ServiceParams
}

func TestInvoiceBuilderSuite(t *testing.T) {
	suite.Run(t, new(InvoiceBuilderSuite))
}

func (s *InvoiceBuilderSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.params = newParams(&s.BaseServiceTestSuite)
}

func (s *InvoiceBuilderSuite) builder() *InvoiceBuilder {
	return NewInvoiceBuilder(s.params)
}

func (s *InvoiceBuilderSuite) TestCreateHappyPath() {
	payer := newTestPayer()
	order := newTestOrder(decimal.NewFromInt(180000))

	inv, err := s.builder().
		Payer(payer).
		Invoiceable(order).
		Items(
			invoice.LineItemInput{Name: "widget", Price: decimal.NewFromInt(50000), Quantity: 2},
			invoice.LineItemInput{Name: "gadget", Price: decimal.NewFromInt(75000), Quantity: 1},
		).
		Tax(decimal.NewFromInt(15000)).
		Discount(decimal.NewFromInt(10000)).
		Create(s.GetContext())

	s.NoError(err)
	s.NotNil(inv)
	s.Equal("175000.00", inv.Subtotal.StringFixed(2))
	s.Equal("15000.00", inv.Tax.StringFixed(2))
	s.Equal("180000.00", inv.Total.StringFixed(2))
	s.Equal(types.InvoiceStatusPending, inv.InvoiceStatus)
	s.Equal("usd", inv.Currency)
	s.Len(inv.LineItems, 2)
	s.Equal(payer.PayerRef(), inv.PayerRef)
	s.Equal(order.InvoiceableRef(), inv.InvoiceableRef)
	s.Equal("Ada Lovelace", inv.PayerName)

	scope := invoice.NumberScope("INV-", "20060102", s.GetNow())
	s.Equal(scope+"-0001", inv.InvoiceNumber)

	// persisted with items as one unit
	stored, err := s.GetStores().InvoiceRepo.Get(s.GetContext(), inv.ID)
	s.NoError(err)
	s.Len(stored.LineItems, 2)
	s.Equal(inv.InvoiceNumber, stored.InvoiceNumber)
}

func (s *InvoiceBuilderSuite) TestSequentialNumbersShareAScope() {
	payer := newTestPayer()

	for i := 1; i <= 3; i++ {
		order := newTestOrder(decimal.Zero)
		order.id = fmt.Sprintf("order_%d", i)

		inv, err := s.builder().
			Payer(payer).
			Invoiceable(order).
			Item(seatItem(100, 1)).
			Create(s.GetContext())
		s.NoError(err)

		scope := invoice.NumberScope("INV-", "20060102", s.GetNow())
		s.Equal(fmt.Sprintf("%s-%04d", scope, i), inv.InvoiceNumber)
	}
}

func (s *InvoiceBuilderSuite) TestConcurrentCreatesAssignDistinctNumbers() {
	const creators = 32

	payer := newTestPayer()

	var (
		mu      sync.Mutex
		numbers = make(map[string]int, creators)
	)

	p := pool.New().WithErrors()
	for i := 0; i < creators; i++ {
		p.Go(func() error {
			order := newTestOrder(decimal.Zero)
			order.id = fmt.Sprintf("order_%d", i)

			inv, err := NewInvoiceBuilder(s.params).
				Payer(payer).
				Invoiceable(order).
				Item(seatItem(100, 1)).
				Create(s.GetContext())
			if err != nil {
				return err
			}

			mu.Lock()
			numbers[inv.InvoiceNumber]++
			mu.Unlock()
			return nil
		})
	}
	s.NoError(p.Wait())

	s.Len(numbers, creators)
	for number, count := range numbers {
		s.Equalf(1, count, "invoice number %s assigned %d times", number, count)
	}
}

func (s *InvoiceBuilderSuite) TestValidationOrder() {
	order := newTestOrder(decimal.Zero)

	// payer checked first
	_, err := s.builder().Invoiceable(order).Item(seatItem(100, 1)).Create(s.GetContext())
	s.True(errors.Is(err, invoice.ErrMissingPayer))

	// then invoiceable
	_, err = s.builder().Payer(newTestPayer()).Item(seatItem(100, 1)).Create(s.GetContext())
	s.True(errors.Is(err, invoice.ErrMissingInvoiceable))

	// then items
	_, err = s.builder().Payer(newTestPayer()).Invoiceable(order).Create(s.GetContext())
	s.True(errors.Is(err, invoice.ErrNoItems))
}

func (s *InvoiceBuilderSuite) TestInvalidItemFailsCreate() {
	_, err := s.builder().
		Payer(newTestPayer()).
		Invoiceable(newTestOrder(decimal.Zero)).
		Item(invoice.LineItemInput{Name: "bad", Price: decimal.NewFromInt(-1), Quantity: 1}).
		Create(s.GetContext())

	var itemErr *invoice.ItemValidationError
	s.True(errors.As(err, &itemErr))
	s.Equal("bad", itemErr.Item)

	// nothing persisted
	count, err := s.GetStores().InvoiceRepo.Count(s.GetContext(), types.NewInvoiceFilter())
	s.NoError(err)
	s.Zero(count)
}

func (s *InvoiceBuilderSuite) TestStrictValidation() {
	// expected amount matches within the tolerance
	order := newTestOrder(decimal.NewFromFloat(100.01))
	inv, err := s.builder().
		Payer(newTestPayer()).
		Invoiceable(order).
		Item(seatItem(100, 1)).
		Create(s.GetContext())
	s.NoError(err)
	s.NotNil(inv)

	// beyond the tolerance fails with both sides reported
	order2 := newTestOrder(decimal.NewFromInt(150))
	order2.id = "order_2"
	_, err = s.builder().
		Payer(newTestPayer()).
		Invoiceable(order2).
		Item(seatItem(100, 1)).
		Create(s.GetContext())

	var mismatch *invoice.AmountMismatchError
	s.True(errors.As(err, &mismatch))
	s.True(mismatch.Expected.Equal(decimal.NewFromInt(150)))
	s.True(mismatch.Calculated.Equal(decimal.NewFromInt(100)))

	// disabling strict validation per build lets the mismatch through
	inv, err = s.builder().
		Payer(newTestPayer()).
		Invoiceable(order2).
		Item(seatItem(100, 1)).
		WithoutStrictValidation().
		Create(s.GetContext())
	s.NoError(err)
	s.NotNil(inv)
}

func (s *InvoiceBuilderSuite) TestZeroDeclaredAmountSkipsReconciliation() {
	inv, err := s.builder().
		Payer(newTestPayer()).
		Invoiceable(newTestOrder(decimal.Zero)).
		Item(seatItem(100, 1)).
		Create(s.GetContext())

	s.NoError(err)
	s.NotNil(inv)
}

func (s *InvoiceBuilderSuite) TestMetadataMergePrecedence() {
	payer := newTestPayer()
	payer.metadata = types.Metadata{"source": "payer", "payer_only": "yes"}

	order := newTestOrder(decimal.Zero)
	order.metadata = types.Metadata{"source": "invoiceable"}

	inv, err := s.builder().
		Payer(payer).
		Invoiceable(order).
		Item(seatItem(100, 1)).
		Metadata(types.Metadata{"source": "builder", "builder_only": "yes"}).
		Create(s.GetContext())

	s.NoError(err)
	// later sources win on collision: builder < payer < invoiceable
	s.Equal("invoiceable", inv.Metadata["source"])
	s.Equal("yes", inv.Metadata["payer_only"])
	s.Equal("yes", inv.Metadata["builder_only"])
}

func (s *InvoiceBuilderSuite) TestWithInvoiceableItem() {
	order := newTestOrder(decimal.NewFromInt(250))

	inv, err := s.builder().
		Payer(newTestPayer()).
		Invoiceable(order).
		WithInvoiceableItem().
		Create(s.GetContext())

	s.NoError(err)
	s.Len(inv.LineItems, 1)
	s.Equal(order.description, inv.LineItems[0].Name)
	s.Equal("250.00", inv.Total.StringFixed(2))
}

func (s *InvoiceBuilderSuite) TestDefaultsFromConfig() {
	inv, err := s.builder().
		Payer(newTestPayer()).
		Invoiceable(newTestOrder(decimal.Zero)).
		Item(seatItem(100, 1)).
		Create(s.GetContext())

	s.NoError(err)
	s.Equal("usd", inv.Currency)
	s.Equal(s.GetNow().AddDate(0, 0, 30), inv.DueDate)
	s.Equal(newTestOrder(decimal.Zero).description, inv.Description)
}

func (s *InvoiceBuilderSuite) TestRecurringSeedsNextBillingDate() {
	inv, err := s.builder().
		Payer(newTestPayer()).
		Invoiceable(newTestOrder(decimal.Zero)).
		Item(seatItem(100, 1)).
		Recurring(types.RecurringFrequencyMonthly, 1, nil).
		Create(s.GetContext())

	s.NoError(err)
	s.True(inv.IsRecurring)
	s.Require().NotNil(inv.NextBillingDate)
	s.Equal(s.GetNow().AddDate(0, 1, 0), *inv.NextBillingDate)
}

func (s *InvoiceBuilderSuite) TestAfterCreateCallbacks() {
	var order []int
	failing := func(ctx context.Context, inv *invoice.Invoice) error {
		order = append(order, 1)
		return errors.New("boom")
	}
	second := func(ctx context.Context, inv *invoice.Invoice) error {
		order = append(order, 2)
		return nil
	}

	inv, err := s.builder().
		Payer(newTestPayer()).
		Invoiceable(newTestOrder(decimal.Zero)).
		Item(seatItem(100, 1)).
		AfterCreate(failing).
		AfterCreate(second).
		Create(s.GetContext())

	// a failing callback never aborts creation or later callbacks
	s.NoError(err)
	s.NotNil(inv)
	s.Equal([]int{1, 2}, order)
}

func (s *InvoiceBuilderSuite) TestCallbacksDisabledByConfig() {
	s.params.Config.Invoice.CallbacksEnabled = false
	defer func() { s.params.Config.Invoice.CallbacksEnabled = true }()

	fired := false
	inv, err := s.builder().
		Payer(newTestPayer()).
		Invoiceable(newTestOrder(decimal.Zero)).
		Item(seatItem(100, 1)).
		AfterCreate(func(ctx context.Context, inv *invoice.Invoice) error {
			fired = true
			return nil
		}).
		OnPaid(func(ctx context.Context, inv *invoice.Invoice) error {
			fired = true
			return nil
		}).
		Create(s.GetContext())

	s.NoError(err)
	s.False(fired)
	s.Empty(inv.PaidCallbacks())
}

func (s *InvoiceBuilderSuite) TestCreateRecordsActivity() {
	inv, err := s.builder().
		Payer(newTestPayer()).
		Invoiceable(newTestOrder(decimal.Zero)).
		Item(seatItem(100, 1)).
		Create(s.GetContext())
	s.NoError(err)

	records := s.GetActivityRecorder().ActivitiesFor(inv.ID)
	s.Require().Len(records, 1)
	s.Equal(types.InvoiceStatusPending, records[0].NewStatus)
}
