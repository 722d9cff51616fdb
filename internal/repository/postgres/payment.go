package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/invopay/invopay/internal/domain/payment"
	ierr "github.com/invopay/invopay/internal/errors"
	"github.com/invopay/invopay/internal/logger"
	"github.com/invopay/invopay/internal/postgres"
	"github.com/invopay/invopay/internal/types"
	"github.com/shopspring/decimal"
)

type paymentRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

// NewPaymentRepository creates a new postgres-backed payment repository
func NewPaymentRepository(db *postgres.DB, logger *logger.Logger) payment.Repository {
	return &paymentRepository{
		db:     db,
		logger: logger,
	}
}

type paymentRow struct {
	ID        string          `db:"id"`
	InvoiceID string          `db:"invoice_id"`
	Amount    decimal.Decimal `db:"amount"`
	Method    string          `db:"method"`
	Reference *string         `db:"reference"`
	Notes     *string         `db:"notes"`
	Metadata  types.Metadata  `db:"metadata"`
	PaidAt    time.Time       `db:"paid_at"`
	TenantID  string          `db:"tenant_id"`
	Status    string          `db:"status"`
	CreatedAt time.Time       `db:"created_at"`
	UpdatedAt time.Time       `db:"updated_at"`
	CreatedBy string          `db:"created_by"`
	UpdatedBy string          `db:"updated_by"`
}

func (r *paymentRow) toDomain() *payment.Payment {
	return &payment.Payment{
		ID:        r.ID,
		InvoiceID: r.InvoiceID,
		Amount:    r.Amount,
		Method:    types.PaymentMethodType(r.Method),
		Reference: r.Reference,
		Notes:     r.Notes,
		Metadata:  r.Metadata,
		PaidAt:    r.PaidAt,
		BaseModel: types.BaseModel{
			TenantID:  r.TenantID,
			Status:    types.Status(r.Status),
			CreatedAt: r.CreatedAt,
			UpdatedAt: r.UpdatedAt,
			CreatedBy: r.CreatedBy,
			UpdatedBy: r.UpdatedBy,
		},
	}
}

// Create persists a payment record against an invoice
func (r *paymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	q := r.db.GetQuerier(ctx)

	row := &paymentRow{
		ID:        p.ID,
		InvoiceID: p.InvoiceID,
		Amount:    p.Amount,
		Method:    p.Method.String(),
		Reference: p.Reference,
		Notes:     p.Notes,
		Metadata:  p.Metadata,
		PaidAt:    p.PaidAt,
		TenantID:  p.TenantID,
		Status:    string(p.Status),
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
		CreatedBy: p.CreatedBy,
		UpdatedBy: p.UpdatedBy,
	}

	_, err := q.NamedExec(`
		INSERT INTO payments (
			id, invoice_id, amount, method, reference, notes, metadata, paid_at,
			tenant_id, status, created_at, updated_at, created_by, updated_by
		) VALUES (
			:id, :invoice_id, :amount, :method, :reference, :notes, :metadata, :paid_at,
			:tenant_id, :status, :created_at, :updated_at, :created_by, :updated_by
		)`, row)
	if err != nil {
		return ierr.WithError(err).
			WithHint("payment creation failed").
			WithReportableDetails(map[string]any{
				"invoice_id": p.InvoiceID,
			}).
			Mark(ierr.ErrDatabase)
	}
	return nil
}

// Get retrieves a payment by ID
func (r *paymentRepository) Get(ctx context.Context, id string) (*payment.Payment, error) {
	q := r.db.GetQuerier(ctx)

	var row paymentRow
	err := q.GetContext(ctx, &row,
		`SELECT * FROM payments WHERE id = $1 AND status != $2`,
		id, string(types.StatusDeleted))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ierr.NewError("payment not found").
				WithHintf("Payment %s not found", id).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).WithHint("payment lookup failed").Mark(ierr.ErrDatabase)
	}
	return row.toDomain(), nil
}

// ListByInvoice retrieves all payments recorded against an invoice, in
// recording order
func (r *paymentRepository) ListByInvoice(ctx context.Context, invoiceID string) ([]*payment.Payment, error) {
	q := r.db.GetQuerier(ctx)

	var rows []paymentRow
	err := q.SelectContext(ctx, &rows,
		`SELECT * FROM payments WHERE invoice_id = $1 AND status != $2 ORDER BY created_at`,
		invoiceID, string(types.StatusDeleted))
	if err != nil {
		return nil, ierr.WithError(err).WithHint("payment list failed").Mark(ierr.ErrDatabase)
	}

	result := make([]*payment.Payment, len(rows))
	for i := range rows {
		result[i] = rows[i].toDomain()
	}
	return result, nil
}

// SumByInvoice derives the cumulative amount paid against an invoice from
// its payment records
func (r *paymentRepository) SumByInvoice(ctx context.Context, invoiceID string) (decimal.Decimal, error) {
	q := r.db.GetQuerier(ctx)

	var sum decimal.Decimal
	err := q.GetContext(ctx, &sum,
		`SELECT COALESCE(SUM(amount), 0) FROM payments WHERE invoice_id = $1 AND status != $2`,
		invoiceID, string(types.StatusDeleted))
	if err != nil {
		return decimal.Zero, ierr.WithError(err).WithHint("payment sum failed").Mark(ierr.ErrDatabase)
	}
	return sum, nil
}
