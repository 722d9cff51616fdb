package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/invopay/invopay/internal/cache"
	"github.com/invopay/invopay/internal/domain/invoice"
	ierr "github.com/invopay/invopay/internal/errors"
	"github.com/invopay/invopay/internal/logger"
	"github.com/invopay/invopay/internal/postgres"
	"github.com/invopay/invopay/internal/types"
	"github.com/shopspring/decimal"
)

type invoiceRepository struct {
	db     *postgres.DB
	logger *logger.Logger
	cache  cache.Cache
}

// NewInvoiceRepository creates a new postgres-backed invoice repository
func NewInvoiceRepository(db *postgres.DB, logger *logger.Logger, c cache.Cache) invoice.Repository {
	return &invoiceRepository{
		db:     db,
		logger: logger,
		cache:  c,
	}
}

// invoiceRow is the flat scan target for the invoices table
type invoiceRow struct {
	ID                 string          `db:"id"`
	InvoiceNumber      string          `db:"invoice_number"`
	PayerKind          string          `db:"payer_kind"`
	PayerID            string          `db:"payer_id"`
	PayerName          string          `db:"payer_name"`
	PayerEmail         string          `db:"payer_email"`
	InvoiceableKind    string          `db:"invoiceable_kind"`
	InvoiceableID      string          `db:"invoiceable_id"`
	Description        string          `db:"description"`
	Subtotal           decimal.Decimal `db:"subtotal"`
	Tax                decimal.Decimal `db:"tax"`
	Discount           decimal.Decimal `db:"discount"`
	Total              decimal.Decimal `db:"total"`
	Currency           string          `db:"currency"`
	InvoiceStatus      string          `db:"invoice_status"`
	DueDate            time.Time       `db:"due_date"`
	PaidAt             *time.Time      `db:"paid_at"`
	Metadata           types.Metadata  `db:"metadata"`
	IsRecurring        bool            `db:"is_recurring"`
	RecurringFrequency string          `db:"recurring_frequency"`
	RecurringInterval  int             `db:"recurring_interval"`
	RecurringEndDate   *time.Time      `db:"recurring_end_date"`
	NextBillingDate    *time.Time      `db:"next_billing_date"`
	ParentInvoiceID    *string         `db:"parent_invoice_id"`
	TenantID           string          `db:"tenant_id"`
	Status             string          `db:"status"`
	CreatedAt          time.Time       `db:"created_at"`
	UpdatedAt          time.Time       `db:"updated_at"`
	CreatedBy          string          `db:"created_by"`
	UpdatedBy          string          `db:"updated_by"`
}

func toRow(inv *invoice.Invoice) *invoiceRow {
	return &invoiceRow{
		ID:                 inv.ID,
		InvoiceNumber:      inv.InvoiceNumber,
		PayerKind:          inv.PayerRef.Kind,
		PayerID:            inv.PayerRef.ID,
		PayerName:          inv.PayerName,
		PayerEmail:         inv.PayerEmail,
		InvoiceableKind:    inv.InvoiceableRef.Kind,
		InvoiceableID:      inv.InvoiceableRef.ID,
		Description:        inv.Description,
		Subtotal:           inv.Subtotal,
		Tax:                inv.Tax,
		Discount:           inv.Discount,
		Total:              inv.Total,
		Currency:           inv.Currency,
		InvoiceStatus:      inv.InvoiceStatus.String(),
		DueDate:            inv.DueDate,
		PaidAt:             inv.PaidAt,
		Metadata:           inv.Metadata,
		IsRecurring:        inv.IsRecurring,
		RecurringFrequency: inv.RecurringFrequency.String(),
		RecurringInterval:  inv.RecurringInterval,
		RecurringEndDate:   inv.RecurringEndDate,
		NextBillingDate:    inv.NextBillingDate,
		ParentInvoiceID:    inv.ParentInvoiceID,
		TenantID:           inv.TenantID,
		Status:             string(inv.Status),
		CreatedAt:          inv.CreatedAt,
		UpdatedAt:          inv.UpdatedAt,
		CreatedBy:          inv.CreatedBy,
		UpdatedBy:          inv.UpdatedBy,
	}
}

func (r *invoiceRow) toDomain() *invoice.Invoice {
	return &invoice.Invoice{
		ID:                 r.ID,
		InvoiceNumber:      r.InvoiceNumber,
		PayerRef:           invoice.PartyRef{Kind: r.PayerKind, ID: r.PayerID},
		PayerName:          r.PayerName,
		PayerEmail:         r.PayerEmail,
		InvoiceableRef:     invoice.PartyRef{Kind: r.InvoiceableKind, ID: r.InvoiceableID},
		Description:        r.Description,
		Subtotal:           r.Subtotal,
		Tax:                r.Tax,
		Discount:           r.Discount,
		Total:              r.Total,
		Currency:           r.Currency,
		InvoiceStatus:      types.InvoiceStatus(r.InvoiceStatus),
		DueDate:            r.DueDate,
		PaidAt:             r.PaidAt,
		Metadata:           r.Metadata,
		IsRecurring:        r.IsRecurring,
		RecurringFrequency: types.RecurringFrequency(r.RecurringFrequency),
		RecurringInterval:  r.RecurringInterval,
		RecurringEndDate:   r.RecurringEndDate,
		NextBillingDate:    r.NextBillingDate,
		ParentInvoiceID:    r.ParentInvoiceID,
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

const insertInvoiceQuery = `
	INSERT INTO invoices (
		id, invoice_number, payer_kind, payer_id, payer_name, payer_email,
		invoiceable_kind, invoiceable_id, description,
		subtotal, tax, discount, total, currency, invoice_status,
		due_date, paid_at, metadata,
		is_recurring, recurring_frequency, recurring_interval,
		recurring_end_date, next_billing_date, parent_invoice_id,
		tenant_id, status, created_at, updated_at, created_by, updated_by
	) VALUES (
		:id, :invoice_number, :payer_kind, :payer_id, :payer_name, :payer_email,
		:invoiceable_kind, :invoiceable_id, :description,
		:subtotal, :tax, :discount, :total, :currency, :invoice_status,
		:due_date, :paid_at, :metadata,
		:is_recurring, :recurring_frequency, :recurring_interval,
		:recurring_end_date, :next_billing_date, :parent_invoice_id,
		:tenant_id, :status, :created_at, :updated_at, :created_by, :updated_by
	)`

const insertLineItemQuery = `
	INSERT INTO invoice_line_items (
		id, invoice_id, name, description, price, quantity, tax_rate, subtotal, sku, notes
	) VALUES (
		:id, :invoice_id, :name, :description, :price, :quantity, :tax_rate, :subtotal, :sku, :notes
	)`

// Create persists the invoice header and its line items in one transaction
func (r *invoiceRepository) Create(ctx context.Context, inv *invoice.Invoice) error {
	err := r.db.WithTx(ctx, func(tx context.Context) error {
		q := r.db.GetQuerier(tx)
		if _, err := q.NamedExec(insertInvoiceQuery, toRow(inv)); err != nil {
			return err
		}
		for _, item := range inv.LineItems {
			item.InvoiceID = inv.ID
			if _, err := q.NamedExec(insertLineItemQuery, item); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return ierr.WithError(err).
			WithHint("invoice creation failed").
			WithReportableDetails(map[string]any{
				"invoice_number": inv.InvoiceNumber,
			}).
			Mark(ierr.ErrDatabase)
	}

	r.cache.Delete(ctx, cache.GenerateKey(cache.PrefixInvoice, inv.ID))
	return nil
}

// Get retrieves an invoice by ID with its line items
func (r *invoiceRepository) Get(ctx context.Context, id string) (*invoice.Invoice, error) {
	key := cache.GenerateKey(cache.PrefixInvoice, id)
	if cached, ok := r.cache.Get(ctx, key); ok {
		if inv, ok := cached.(*invoice.Invoice); ok {
			return inv, nil
		}
	}

	q := r.db.GetQuerier(ctx)

	var row invoiceRow
	err := q.GetContext(ctx, &row,
		`SELECT * FROM invoices WHERE id = $1 AND status != $2`,
		id, string(types.StatusDeleted))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ierr.WithError(invoice.ErrInvoiceNotFound).
				WithHintf("Invoice %s not found", id).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).WithHint("invoice lookup failed").Mark(ierr.ErrDatabase)
	}

	inv := row.toDomain()

	var items []*invoice.LineItem
	err = q.SelectContext(ctx, &items,
		`SELECT * FROM invoice_line_items WHERE invoice_id = $1 ORDER BY id`, id)
	if err != nil {
		return nil, ierr.WithError(err).WithHint("line item lookup failed").Mark(ierr.ErrDatabase)
	}
	inv.LineItems = items

	r.cache.Set(ctx, key, inv, cache.DefaultExpiration)
	return inv, nil
}

// Update updates an existing invoice header
func (r *invoiceRepository) Update(ctx context.Context, inv *invoice.Invoice) error {
	q := r.db.GetQuerier(ctx)

	res, err := q.NamedExec(`
		UPDATE invoices SET
			invoice_status = :invoice_status,
			paid_at = :paid_at,
			metadata = :metadata,
			next_billing_date = :next_billing_date,
			status = :status,
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE id = :id`, toRow(inv))
	if err != nil {
		return ierr.WithError(err).WithHint("invoice update failed").Mark(ierr.ErrDatabase)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ierr.WithError(invoice.ErrInvoiceNotFound).
			WithHintf("Invoice %s not found", inv.ID).
			Mark(ierr.ErrNotFound)
	}

	r.cache.Delete(ctx, cache.GenerateKey(cache.PrefixInvoice, inv.ID))
	return nil
}

// Delete soft-deletes an invoice, retaining its history
func (r *invoiceRepository) Delete(ctx context.Context, id string) error {
	q := r.db.GetQuerier(ctx)

	_, err := q.ExecContext(ctx,
		`UPDATE invoices SET status = $1, updated_at = NOW() WHERE id = $2`,
		string(types.StatusDeleted), id)
	if err != nil {
		return ierr.WithError(err).WithHint("invoice delete failed").Mark(ierr.ErrDatabase)
	}

	r.cache.Delete(ctx, cache.GenerateKey(cache.PrefixInvoice, id))
	return nil
}

func buildFilterClauses(filter *types.InvoiceFilter) (string, []interface{}) {
	clauses := []string{"1=1"}
	var args []interface{}

	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter == nil {
		filter = types.NewInvoiceFilter()
	}

	if !filter.IncludeDeleted {
		clauses = append(clauses, "status != "+arg(string(types.StatusDeleted)))
	}
	if len(filter.InvoiceIDs) > 0 {
		placeholders := make([]string, len(filter.InvoiceIDs))
		for i, id := range filter.InvoiceIDs {
			placeholders[i] = arg(id)
		}
		clauses = append(clauses, "id IN ("+strings.Join(placeholders, ", ")+")")
	}
	if len(filter.InvoiceStatus) > 0 {
		placeholders := make([]string, len(filter.InvoiceStatus))
		for i, s := range filter.InvoiceStatus {
			placeholders[i] = arg(s.String())
		}
		clauses = append(clauses, "invoice_status IN ("+strings.Join(placeholders, ", ")+")")
	}
	if filter.PayerKind != "" {
		clauses = append(clauses, "payer_kind = "+arg(filter.PayerKind))
	}
	if filter.PayerID != "" {
		clauses = append(clauses, "payer_id = "+arg(filter.PayerID))
	}
	if filter.InvoiceableKind != "" {
		clauses = append(clauses, "invoiceable_kind = "+arg(filter.InvoiceableKind))
	}
	if filter.InvoiceableID != "" {
		clauses = append(clauses, "invoiceable_id = "+arg(filter.InvoiceableID))
	}
	if filter.OverdueAsOf != nil {
		clauses = append(clauses, "invoice_status = "+arg(types.InvoiceStatusPending.String()))
		clauses = append(clauses, "due_date < "+arg(*filter.OverdueAsOf))
	}
	if filter.RecurringDueAsOf != nil {
		asOf := *filter.RecurringDueAsOf
		clauses = append(clauses, "is_recurring = TRUE")
		clauses = append(clauses, "next_billing_date <= "+arg(asOf))
		clauses = append(clauses, "(recurring_end_date IS NULL OR recurring_end_date >= "+arg(asOf)+")")
	}

	return strings.Join(clauses, " AND "), args
}

// List retrieves invoices based on filter criteria
func (r *invoiceRepository) List(ctx context.Context, filter *types.InvoiceFilter) ([]*invoice.Invoice, error) {
	where, args := buildFilterClauses(filter)
	q := r.db.GetQuerier(ctx)

	var rows []invoiceRow
	query := `SELECT * FROM invoices WHERE ` + where + ` ORDER BY created_at DESC`
	if err := q.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, ierr.WithError(err).WithHint("invoice list failed").Mark(ierr.ErrDatabase)
	}

	result := make([]*invoice.Invoice, len(rows))
	for i := range rows {
		result[i] = rows[i].toDomain()
	}
	return result, nil
}

// Count returns the total count of invoices based on filter criteria
func (r *invoiceRepository) Count(ctx context.Context, filter *types.InvoiceFilter) (int, error) {
	where, args := buildFilterClauses(filter)
	q := r.db.GetQuerier(ctx)

	var count int
	if err := q.GetContext(ctx, &count, `SELECT COUNT(*) FROM invoices WHERE `+where, args...); err != nil {
		return 0, ierr.WithError(err).WithHint("invoice count failed").Mark(ierr.ErrDatabase)
	}
	return count, nil
}

// LastInvoiceNumber returns the highest issued number in the given scope. It
// takes a transaction-scoped advisory lock on the scope so the caller's
// lookup-then-create sequence is serialized per scope; concurrent creators
// in the same scope queue behind the lock until the surrounding transaction
// commits.
func (r *invoiceRepository) LastInvoiceNumber(ctx context.Context, scope string) (string, error) {
	q := r.db.GetQuerier(ctx)

	if _, ok := postgres.GetTx(ctx); ok {
		if _, err := q.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, scope); err != nil {
			return "", ierr.WithError(err).WithHint("invoice number lock failed").Mark(ierr.ErrDatabase)
		}
	}

	var last sql.NullString
	err := q.GetContext(ctx, &last,
		`SELECT MAX(invoice_number) FROM invoices WHERE invoice_number LIKE $1`,
		scope+"%")
	if err != nil {
		return "", ierr.WithError(err).WithHint("invoice number lookup failed").Mark(ierr.ErrDatabase)
	}

	if !last.Valid {
		return "", nil
	}
	return last.String, nil
}

// Stats aggregates invoice counts and revenue per lifecycle status
func (r *invoiceRepository) Stats(ctx context.Context, asOf time.Time) (*invoice.Stats, error) {
	q := r.db.GetQuerier(ctx)

	var row struct {
		TotalCount     int             `db:"total_count"`
		PendingCount   int             `db:"pending_count"`
		PaidCount      int             `db:"paid_count"`
		OverdueCount   int             `db:"overdue_count"`
		FailedCount    int             `db:"failed_count"`
		TotalRevenue   decimal.Decimal `db:"total_revenue"`
		PendingRevenue decimal.Decimal `db:"pending_revenue"`
	}

	err := q.GetContext(ctx, &row, `
		SELECT
			COUNT(*) AS total_count,
			COUNT(*) FILTER (WHERE invoice_status = 'pending') AS pending_count,
			COUNT(*) FILTER (WHERE invoice_status = 'paid') AS paid_count,
			COUNT(*) FILTER (WHERE invoice_status = 'pending' AND due_date < $1) AS overdue_count,
			COUNT(*) FILTER (WHERE invoice_status = 'failed') AS failed_count,
			COALESCE(SUM(total) FILTER (WHERE invoice_status = 'paid'), 0) AS total_revenue,
			COALESCE(SUM(total) FILTER (WHERE invoice_status = 'pending'), 0) AS pending_revenue
		FROM invoices
		WHERE status != $2`,
		asOf, string(types.StatusDeleted))
	if err != nil {
		return nil, ierr.WithError(err).WithHint("invoice stats failed").Mark(ierr.ErrDatabase)
	}

	return &invoice.Stats{
		TotalCount:     row.TotalCount,
		PendingCount:   row.PendingCount,
		PaidCount:      row.PaidCount,
		OverdueCount:   row.OverdueCount,
		FailedCount:    row.FailedCount,
		TotalRevenue:   row.TotalRevenue,
		PendingRevenue: row.PendingRevenue,
	}, nil
}
