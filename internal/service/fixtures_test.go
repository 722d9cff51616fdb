package service

import (
	"context"

	"github.com/invopay/invopay/internal/domain/invoice"
	"github.com/invopay/invopay/internal/testutil"
	"github.com/invopay/invopay/internal/types"
	"github.com/shopspring/decimal"
)

// testPayer implements invoice.Payer
type testPayer struct {
	id       string
	name     string
	email    string
	metadata types.Metadata
}

func newTestPayer() *testPayer {
	return &testPayer{
		id:    "user_1",
		name:  "Ada Lovelace",
		email: "ada@example.com",
	}
}

func (p *testPayer) PayerRef() invoice.PartyRef {
	return invoice.PartyRef{Kind: "user", ID: p.id}
}

func (p *testPayer) PayerName() string             { return p.name }
func (p *testPayer) PayerEmail() string            { return p.email }
func (p *testPayer) PayerAddress() string          { return "" }
func (p *testPayer) PayerMetadata() types.Metadata { return p.metadata }

// testOrder implements invoice.Invoiceable and invoice.PaidHook
type testOrder struct {
	id          string
	description string
	amount      decimal.Decimal
	metadata    types.Metadata

	paidHookCalls int
	paidHookErr   error
}

func newTestOrder(amount decimal.Decimal) *testOrder {
	return &testOrder{
		id:          "order_1",
		description: "Order #1",
		amount:      amount,
	}
}

func (o *testOrder) InvoiceableRef() invoice.PartyRef {
	return invoice.PartyRef{Kind: "order", ID: o.id}
}

func (o *testOrder) InvoiceableDescription() string      { return o.description }
func (o *testOrder) InvoiceableAmount() decimal.Decimal  { return o.amount }
func (o *testOrder) InvoiceableMetadata() types.Metadata { return o.metadata }

func (o *testOrder) OnInvoicePaid(ctx context.Context, inv *invoice.Invoice) error {
	o.paidHookCalls++
	return o.paidHookErr
}

func newParams(s *testutil.BaseServiceTestSuite) ServiceParams {
	return ServiceParams{
		Logger:           s.GetLogger(),
		Config:           s.GetConfig(),
		InvoiceRepo:      s.GetStores().InvoiceRepo,
		PaymentRepo:      s.GetStores().PaymentRepo,
		ActivityObserver: s.GetActivityRecorder(),
		Clock:            s.GetClock(),
	}
}

func seatItem(price int64, qty int64) invoice.LineItemInput {
	return invoice.LineItemInput{
		Name:     "seat",
		Price:    decimal.NewFromInt(price),
		Quantity: qty,
	}
}
