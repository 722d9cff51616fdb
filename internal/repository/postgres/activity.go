package postgres

import (
	"context"

	"github.com/invopay/invopay/internal/domain/activity"
	ierr "github.com/invopay/invopay/internal/errors"
	"github.com/invopay/invopay/internal/logger"
	"github.com/invopay/invopay/internal/postgres"
)

type activityObserver struct {
	db     *postgres.DB
	logger *logger.Logger
}

// NewActivityObserver creates an Observer that appends invoice activity to the
// invoice_activities audit table
func NewActivityObserver(db *postgres.DB, logger *logger.Logger) activity.Observer {
	return &activityObserver{
		db:     db,
		logger: logger,
	}
}

func (o *activityObserver) RecordActivity(ctx context.Context, a *activity.Activity) error {
	q := o.db.GetQuerier(ctx)

	_, err := q.ExecContext(ctx, `
		INSERT INTO invoice_activities (
			id, invoice_id, action, old_status, new_status,
			old_total, new_total, description, metadata, occurred_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		a.ID, a.InvoiceID, string(a.Action),
		a.OldStatus.String(), a.NewStatus.String(),
		a.OldTotal, a.NewTotal,
		a.Description, a.Metadata, a.OccurredAt)
	if err != nil {
		return ierr.WithError(err).
			WithHint("activity recording failed").
			Mark(ierr.ErrDatabase)
	}
	return nil
}
