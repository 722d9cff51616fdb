package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/invopay/invopay/internal/domain/invoice"
	"github.com/invopay/invopay/internal/domain/payment"
	"github.com/invopay/invopay/internal/testutil"
	"github.com/invopay/invopay/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type PaymentServiceSuite struct {
	testutil.BaseServiceTestSuite
	params     ServiceParams
	invoiceSvc InvoiceService
	service    PaymentService
}

func TestPaymentServiceSuite(t *testing.T) {
	suite.Run(t, new(PaymentServiceSuite))
}

func (s *PaymentServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.params = newParams(&s.BaseServiceTestSuite)
	s.invoiceSvc = NewInvoiceService(s.params)
	s.service = NewPaymentService(s.params, s.invoiceSvc)
}

func (s *PaymentServiceSuite) createInvoice(total int64) *invoice.Invoice {
	inv, err := NewInvoiceBuilder(s.params).
		Payer(newTestPayer()).
		Invoiceable(newTestOrder(decimal.Zero)).
		Item(seatItem(total, 1)).
		Create(s.GetContext())
	s.Require().NoError(err)
	return inv
}

func (s *PaymentServiceSuite) TestExactPaymentSettlesInvoice() {
	inv := s.createInvoice(100000)

	p, err := s.service.AddPayment(s.GetContext(), inv, decimal.NewFromInt(100000), types.PaymentMethodTypeBankTransfer, nil)
	s.NoError(err)
	s.NotNil(p)

	s.Equal(types.InvoiceStatusPaid, inv.InvoiceStatus)
	s.NotNil(inv.PaidAt)

	remaining, err := s.service.GetRemainingAmount(s.GetContext(), inv)
	s.NoError(err)
	s.True(remaining.IsZero())
}

func (s *PaymentServiceSuite) TestOverpaymentRejectedWithoutRecord() {
	inv := s.createInvoice(100000)

	_, err := s.service.AddPayment(s.GetContext(), inv, decimal.NewFromInt(150000), types.PaymentMethodTypeCard, nil)

	var exceedsErr *invoice.PaymentExceedsRemainingError
	s.Require().True(errors.As(err, &exceedsErr))
	s.True(exceedsErr.Attempted.Equal(decimal.NewFromInt(150000)))
	s.True(exceedsErr.Remaining.Equal(decimal.NewFromInt(100000)))

	// no payment recorded, status unchanged
	payments, err := s.service.ListPayments(s.GetContext(), inv)
	s.NoError(err)
	s.Empty(payments)
	s.Equal(types.InvoiceStatusPending, inv.InvoiceStatus)
}

func (s *PaymentServiceSuite) TestPartialPaymentsAccumulate() {
	inv := s.createInvoice(100)

	_, err := s.service.AddPayment(s.GetContext(), inv, decimal.NewFromInt(40), types.PaymentMethodTypeCash, nil)
	s.NoError(err)
	s.Equal(types.InvoiceStatusPending, inv.InvoiceStatus)

	paid, err := s.service.GetPaidAmount(s.GetContext(), inv)
	s.NoError(err)
	s.True(paid.Equal(decimal.NewFromInt(40)))

	fully, err := s.service.IsFullyPaid(s.GetContext(), inv)
	s.NoError(err)
	s.False(fully)

	_, err = s.service.AddPayment(s.GetContext(), inv, decimal.NewFromInt(60), types.PaymentMethodTypeCash, nil)
	s.NoError(err)
	s.Equal(types.InvoiceStatusPaid, inv.InvoiceStatus)

	fully, err = s.service.IsFullyPaid(s.GetContext(), inv)
	s.NoError(err)
	s.True(fully)
}

func (s *PaymentServiceSuite) TestRemainingAmountIsIdempotent() {
	inv := s.createInvoice(100)

	_, err := s.service.AddPayment(s.GetContext(), inv, decimal.NewFromInt(25), types.PaymentMethodTypeCard, nil)
	s.NoError(err)

	first, err := s.service.GetRemainingAmount(s.GetContext(), inv)
	s.NoError(err)
	second, err := s.service.GetRemainingAmount(s.GetContext(), inv)
	s.NoError(err)

	s.True(first.Equal(second))
	s.True(first.Equal(decimal.NewFromInt(75)))
}

func (s *PaymentServiceSuite) TestPaymentExceedingRemainderAfterPartial() {
	inv := s.createInvoice(100)

	_, err := s.service.AddPayment(s.GetContext(), inv, decimal.NewFromInt(70), types.PaymentMethodTypeCard, nil)
	s.NoError(err)

	_, err = s.service.AddPayment(s.GetContext(), inv, decimal.NewFromInt(31), types.PaymentMethodTypeCard, nil)
	s.True(errors.Is(err, invoice.ErrPaymentExceedsRemaining))

	remaining, err := s.service.GetRemainingAmount(s.GetContext(), inv)
	s.NoError(err)
	s.True(remaining.Equal(decimal.NewFromInt(30)))
}

func (s *PaymentServiceSuite) TestInvalidPaymentsRejected() {
	inv := s.createInvoice(100)

	_, err := s.service.AddPayment(s.GetContext(), inv, decimal.Zero, types.PaymentMethodTypeCard, nil)
	s.Error(err)

	_, err = s.service.AddPayment(s.GetContext(), inv, decimal.NewFromInt(-5), types.PaymentMethodTypeCard, nil)
	s.Error(err)

	_, err = s.service.AddPayment(s.GetContext(), inv, decimal.NewFromInt(5), types.PaymentMethodType("crypto"), nil)
	s.Error(err)

	payments, err := s.service.ListPayments(s.GetContext(), inv)
	s.NoError(err)
	s.Empty(payments)
}

func (s *PaymentServiceSuite) TestPaymentDetailsPersisted() {
	inv := s.createInvoice(100)

	ref := "TXN-42"
	notes := "wire transfer"
	p, err := s.service.AddPayment(s.GetContext(), inv, decimal.NewFromInt(100), types.PaymentMethodTypeBankTransfer, &payment.Details{
		Reference: &ref,
		Notes:     &notes,
		Metadata:  types.Metadata{"bank": "acme"},
	})
	s.NoError(err)

	stored, err := s.GetStores().PaymentRepo.Get(s.GetContext(), p.ID)
	s.NoError(err)
	s.Require().NotNil(stored.Reference)
	s.Equal(ref, *stored.Reference)
	s.Require().NotNil(stored.Notes)
	s.Equal(notes, *stored.Notes)
	s.Equal("acme", stored.Metadata["bank"])
	s.Equal(inv.ID, stored.InvoiceID)
}

func (s *PaymentServiceSuite) TestReferenceDefaultsToShortID() {
	inv := s.createInvoice(100)

	p, err := s.service.AddPayment(s.GetContext(), inv, decimal.NewFromInt(40), types.PaymentMethodTypeCard, nil)
	s.NoError(err)
	s.Require().NotNil(p.Reference)
	s.True(strings.HasPrefix(*p.Reference, types.SHORT_ID_PREFIX_PAYMENT))
	s.Greater(len(*p.Reference), len(types.SHORT_ID_PREFIX_PAYMENT))

	stored, err := s.GetStores().PaymentRepo.Get(s.GetContext(), p.ID)
	s.NoError(err)
	s.Require().NotNil(stored.Reference)
	s.Equal(*p.Reference, *stored.Reference)
}

func (s *PaymentServiceSuite) TestSettlementFiresPaidCallbacks() {
	fired := 0
	inv, err := NewInvoiceBuilder(s.params).
		Payer(newTestPayer()).
		Invoiceable(newTestOrder(decimal.Zero)).
		Item(seatItem(50, 1)).
		OnPaid(func(ctx context.Context, inv *invoice.Invoice) error {
			fired++
			return nil
		}).
		Create(s.GetContext())
	s.Require().NoError(err)

	_, err = s.service.AddPayment(s.GetContext(), inv, decimal.NewFromInt(50), types.PaymentMethodTypeCard, nil)
	s.NoError(err)
	s.Equal(1, fired)
}
