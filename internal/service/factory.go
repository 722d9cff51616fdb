package service

import (
	"context"

	"github.com/invopay/invopay/internal/clock"
	"github.com/invopay/invopay/internal/config"
	"github.com/invopay/invopay/internal/domain/activity"
	"github.com/invopay/invopay/internal/domain/invoice"
	"github.com/invopay/invopay/internal/domain/payment"
	"github.com/invopay/invopay/internal/logger"
	"github.com/invopay/invopay/internal/postgres"
	"go.uber.org/fx"
)

// ServiceParams holds common dependencies for all services
type ServiceParams struct {
	Logger *logger.Logger
	Config *config.Configuration

	// DB is optional; when nil, operations that would span a transaction run
	// directly against the repositories (the in-memory test stores).
	DB *postgres.DB

	InvoiceRepo invoice.Repository
	PaymentRepo payment.Repository

	ActivityObserver activity.Observer
	Clock            clock.Clock
}

func (p ServiceParams) observer() activity.Observer {
	if p.ActivityObserver == nil {
		return activity.NopObserver()
	}
	return p.ActivityObserver
}

func (p ServiceParams) clock() clock.Clock {
	if p.Clock == nil {
		return clock.New()
	}
	return p.Clock
}

// txRunner is the optional repository-side transaction hook used when no
// database is configured.
type txRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// withTx runs fn inside a database transaction when a database is attached.
// Without one it defers to the invoice repository's own critical section when
// it has one, so the number lookup-then-create window stays serialized
// against the in-memory stores too.
func (p ServiceParams) withTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if p.DB != nil {
		return p.DB.WithTx(ctx, fn)
	}
	if r, ok := p.InvoiceRepo.(txRunner); ok {
		return r.WithTx(ctx, fn)
	}
	return fn(ctx)
}

// NewServiceParams assembles service params for fx
func NewServiceParams(
	logger *logger.Logger,
	cfg *config.Configuration,
	db *postgres.DB,
	invoiceRepo invoice.Repository,
	paymentRepo payment.Repository,
	observer activity.Observer,
	cl clock.Clock,
) ServiceParams {
	return ServiceParams{
		Logger:           logger,
		Config:           cfg,
		DB:               db,
		InvoiceRepo:      invoiceRepo,
		PaymentRepo:      paymentRepo,
		ActivityObserver: observer,
		Clock:            cl,
	}
}

// Module provides fx options for the service layer
func Module() fx.Option {
	return fx.Options(
		fx.Provide(
			NewServiceParams,
			NewInvoiceService,
			NewPaymentService,
			NewRecurringService,
		),
	)
}
