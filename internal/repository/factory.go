package repository

import (
	"github.com/invopay/invopay/internal/cache"
	"github.com/invopay/invopay/internal/domain/activity"
	"github.com/invopay/invopay/internal/domain/invoice"
	"github.com/invopay/invopay/internal/domain/payment"
	"github.com/invopay/invopay/internal/logger"
	"github.com/invopay/invopay/internal/postgres"
	pgrepo "github.com/invopay/invopay/internal/repository/postgres"
	"go.uber.org/fx"
)

// Module provides fx options for the postgres-backed repository layer
func Module() fx.Option {
	return fx.Options(
		fx.Provide(
			NewInvoiceRepository,
			NewPaymentRepository,
			NewActivityObserver,
		),
	)
}

func NewInvoiceRepository(db *postgres.DB, logger *logger.Logger, c cache.Cache) invoice.Repository {
	return pgrepo.NewInvoiceRepository(db, logger, c)
}

func NewPaymentRepository(db *postgres.DB, logger *logger.Logger) payment.Repository {
	return pgrepo.NewPaymentRepository(db, logger)
}

func NewActivityObserver(db *postgres.DB, logger *logger.Logger) activity.Observer {
	return pgrepo.NewActivityObserver(db, logger)
}
