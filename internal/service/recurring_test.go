package service

import (
	"testing"
	"time"

	"github.com/invopay/invopay/internal/domain/activity"
	"github.com/invopay/invopay/internal/domain/invoice"
	"github.com/invopay/invopay/internal/testutil"
	"github.com/invopay/invopay/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type RecurringServiceSuite struct {
	testutil.BaseServiceTestSuite
	params  ServiceParams
	service RecurringService
}

func TestRecurringServiceSuite(t *testing.T) {
	suite.Run(t, new(RecurringServiceSuite))
}

func (s *RecurringServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.params = newParams(&s.BaseServiceTestSuite)
	s.service = NewRecurringService(s.params)
}

func (s *RecurringServiceSuite) createRecurring(frequency types.RecurringFrequency, interval int, endDate *time.Time) *invoice.Invoice {
	inv, err := NewInvoiceBuilder(s.params).
		Payer(newTestPayer()).
		Invoiceable(newTestOrder(decimal.Zero)).
		Items(
			invoice.LineItemInput{Name: "base plan", Price: decimal.NewFromInt(90), Quantity: 1},
			invoice.LineItemInput{Name: "extra seat", Price: decimal.NewFromInt(10), Quantity: 1},
		).
		Recurring(frequency, interval, endDate).
		Create(s.GetContext())
	s.Require().NoError(err)
	return inv
}

func (s *RecurringServiceSuite) TestGenerateNextInvoice() {
	parent := s.createRecurring(types.RecurringFrequencyMonthly, 1, nil)
	billingDate := *parent.NextBillingDate

	// mature the parent
	s.GetClock().SetTime(billingDate.Add(time.Hour))

	child, err := s.service.GenerateNextInvoice(s.GetContext(), parent)
	s.NoError(err)
	s.Require().NotNil(child)

	// child references its parent and starts a fresh pending cycle
	s.Require().NotNil(child.ParentInvoiceID)
	s.Equal(parent.ID, *child.ParentInvoiceID)
	s.Equal(types.InvoiceStatusPending, child.InvoiceStatus)
	s.Nil(child.PaidAt)
	s.NotEqual(parent.InvoiceNumber, child.InvoiceNumber)
	s.False(child.IsRecurring)

	// identical item set with fresh identities
	s.Require().Len(child.LineItems, len(parent.LineItems))
	for i, item := range child.LineItems {
		s.Equal(parent.LineItems[i].Name, item.Name)
		s.True(parent.LineItems[i].Price.Equal(item.Price))
		s.Equal(parent.LineItems[i].Quantity, item.Quantity)
		s.NotEqual(parent.LineItems[i].ID, item.ID)
	}
	s.True(parent.Total.Equal(child.Total))

	// due date honors the grace period
	s.Equal(s.GetNow().AddDate(0, 0, s.GetConfig().Invoice.RecurringGraceDays), child.DueDate)

	// the parent's cycle advanced one month from its previous anchor
	s.Equal(billingDate.AddDate(0, 1, 0), *parent.NextBillingDate)

	// child persisted
	stored, err := s.GetStores().InvoiceRepo.Get(s.GetContext(), child.ID)
	s.NoError(err)
	s.Len(stored.LineItems, 2)
}

func (s *RecurringServiceSuite) TestNonRecurringIsNoOp() {
	inv, err := NewInvoiceBuilder(s.params).
		Payer(newTestPayer()).
		Invoiceable(newTestOrder(decimal.Zero)).
		Item(seatItem(100, 1)).
		Create(s.GetContext())
	s.Require().NoError(err)

	child, err := s.service.GenerateNextInvoice(s.GetContext(), inv)
	s.NoError(err)
	s.Nil(child)
}

func (s *RecurringServiceSuite) TestEndedRecurrenceIsNoOp() {
	end := s.GetNow().AddDate(0, 2, 0)
	parent := s.createRecurring(types.RecurringFrequencyMonthly, 1, &end)

	s.GetClock().SetTime(end.AddDate(0, 0, 1))

	child, err := s.service.GenerateNextInvoice(s.GetContext(), parent)
	s.NoError(err)
	s.Nil(child)
}

func (s *RecurringServiceSuite) TestFrequencyAdvancement() {
	tests := []struct {
		name      string
		frequency types.RecurringFrequency
		interval  int
		advance   func(t time.Time) time.Time
	}{
		{"daily", types.RecurringFrequencyDaily, 1, func(t time.Time) time.Time { return t.AddDate(0, 0, 1) }},
		{"weekly", types.RecurringFrequencyWeekly, 2, func(t time.Time) time.Time { return t.AddDate(0, 0, 14) }},
		{"yearly", types.RecurringFrequencyYearly, 1, func(t time.Time) time.Time { return t.AddDate(1, 0, 0) }},
		{"unknown frequency defaults to monthly", types.RecurringFrequency("fortnightly"), 1, func(t time.Time) time.Time { return t.AddDate(0, 1, 0) }},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.SetupTest()

			parent := s.createRecurring(tt.frequency, tt.interval, nil)
			anchor := *parent.NextBillingDate
			s.GetClock().SetTime(anchor.Add(time.Hour))

			child, err := s.service.GenerateNextInvoice(s.GetContext(), parent)
			s.NoError(err)
			s.NotNil(child)
			s.Equal(tt.advance(anchor), *parent.NextBillingDate)
		})
	}
}

func (s *RecurringServiceSuite) TestGenerateDueInvoices() {
	due := s.createRecurring(types.RecurringFrequencyMonthly, 1, nil)
	notDue := s.createRecurring(types.RecurringFrequencyYearly, 1, nil)

	s.GetClock().SetTime(due.NextBillingDate.Add(time.Hour))

	generated, err := s.service.GenerateDueInvoices(s.GetContext())
	s.NoError(err)
	s.Equal(1, generated)

	children, err := s.GetStores().InvoiceRepo.List(s.GetContext(), types.NewInvoiceFilter())
	s.NoError(err)

	var childCount int
	for _, inv := range children {
		if inv.ParentInvoiceID != nil {
			childCount++
			s.Equal(due.ID, *inv.ParentInvoiceID)
			s.NotEqual(notDue.ID, *inv.ParentInvoiceID)
		}
	}
	s.Equal(1, childCount)
}

func (s *RecurringServiceSuite) TestSpawnRecordsActivity() {
	parent := s.createRecurring(types.RecurringFrequencyMonthly, 1, nil)
	s.GetClock().SetTime(parent.NextBillingDate.Add(time.Hour))

	child, err := s.service.GenerateNextInvoice(s.GetContext(), parent)
	s.Require().NoError(err)
	s.Require().NotNil(child)

	records := s.GetActivityRecorder().ActivitiesFor(parent.ID)
	s.Require().NotEmpty(records)

	last := records[len(records)-1]
	s.Equal(activity.ActionRecurringSpawn, last.Action)
	s.Equal(child.ID, last.Metadata["child_invoice_id"])
}
