package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/vastrabill/vastrabill/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence for the ledger.
type Repository struct {
	PgStore
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{PgStore: PgStore{Q: pool}, pool: pool}
}

type txRepo struct {
	PgStore
}

// WithTx wraps callback in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepositoryPort) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{PgStore: PgStore{Q: tx}})
	})
}

const paymentColumns = `id, reference, customer_id, invoice_id, amount, method, paid_at, note, created_at`

// InsertPayment writes a new payment row.
func (r *txRepo) InsertPayment(ctx context.Context, p Payment) (int64, error) {
	query := `
		INSERT INTO payments (reference, customer_id, invoice_id, amount, method, paid_at, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING id`

	var id int64
	err := r.Q.QueryRow(ctx, query,
		p.Reference, p.CustomerID, p.InvoiceID, p.Amount, p.Method, p.PaidAt, p.Note,
	).Scan(&id)
	return id, err
}

// InvoiceBelongsTo reports whether the invoice exists under the
// customer.
func (r *txRepo) InvoiceBelongsTo(ctx context.Context, invoiceID, customerID int64) (bool, error) {
	var ok bool
	err := r.Q.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM invoices WHERE id = $1 AND customer_id = $2)`,
		invoiceID, customerID,
	).Scan(&ok)
	return ok, err
}

// GetPayment retrieves a payment by ID.
func (r *Repository) GetPayment(ctx context.Context, id int64) (*Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`

	var p Payment
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.Reference, &p.CustomerID, &p.InvoiceID, &p.Amount, &p.Method, &p.PaidAt, &p.Note, &p.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPayments returns payments matching the filter plus the total
// count, newest first.
func (r *Repository) ListPayments(ctx context.Context, filter PaymentFilter) ([]Payment, int, error) {
	where := " WHERE 1=1"
	args := []any{}
	argNum := 1

	if filter.CustomerID != 0 {
		where += fmt.Sprintf(" AND customer_id = $%d", argNum)
		args = append(args, filter.CustomerID)
		argNum++
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM payments"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	query := `SELECT ` + paymentColumns + ` FROM payments` + where +
		fmt.Sprintf(" ORDER BY paid_at DESC, id DESC LIMIT $%d OFFSET $%d", argNum, argNum+1)
	args = append(args, limit, (page-1)*limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(
			&p.ID, &p.Reference, &p.CustomerID, &p.InvoiceID, &p.Amount, &p.Method, &p.PaidAt, &p.Note, &p.CreatedAt,
		); err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

// PaymentsFor returns every payment of a customer in paid order.
func (r *Repository) PaymentsFor(ctx context.Context, customerID int64) ([]Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE customer_id = $1 ORDER BY paid_at, id`

	rows, err := r.pool.Query(ctx, query, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(
			&p.ID, &p.Reference, &p.CustomerID, &p.InvoiceID, &p.Amount, &p.Method, &p.PaidAt, &p.Note, &p.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// InvoiceSummaries returns statement rows for the customer's invoices.
func (r *Repository) InvoiceSummaries(ctx context.Context, customerID int64) ([]DocumentSummary, error) {
	return r.documentSummaries(ctx, "invoices", customerID)
}

// DyeingBillSummaries returns statement rows for the customer's dyeing
// bills.
func (r *Repository) DyeingBillSummaries(ctx context.Context, customerID int64) ([]DocumentSummary, error) {
	return r.documentSummaries(ctx, "dyeing_bills", customerID)
}

func (r *Repository) documentSummaries(ctx context.Context, table string, customerID int64) ([]DocumentSummary, error) {
	query := fmt.Sprintf(
		`SELECT number, issue_date, total, paid_amount FROM %s WHERE customer_id = $1 ORDER BY issue_date, id`, table)

	rows, err := r.pool.Query(ctx, query, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DocumentSummary
	for rows.Next() {
		var doc DocumentSummary
		if err := rows.Scan(&doc.Number, &doc.Date, &doc.Total, &doc.Paid); err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

// CustomerIDs returns every customer ID.
func (r *Repository) CustomerIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM customers ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CustomerOutstanding reads the stored balance off the customer row.
func (r *Repository) CustomerOutstanding(ctx context.Context, customerID int64) (decimal.Decimal, error) {
	var outstanding decimal.Decimal
	err := r.pool.QueryRow(ctx,
		`SELECT outstanding_balance FROM customers WHERE id = $1`, customerID,
	).Scan(&outstanding)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, ErrCustomerNotFound
	}
	return outstanding, err
}
