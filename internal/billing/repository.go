package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/vastrabill/vastrabill/internal/ledger"
	"github.com/vastrabill/vastrabill/internal/platform/db"
	"github.com/vastrabill/vastrabill/internal/sequence"
)

// Repository provides PostgreSQL backed persistence for billing.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// txRepo binds every balance-affecting operation to one transaction:
// the customer lock and balance write come from the ledger store, the
// number counter from the sequence store.
type txRepo struct {
	ledger.PgStore
	sequence.Store
	q ledger.Querier
}

// WithTx wraps callback in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepositoryPort) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{
			PgStore: ledger.PgStore{Q: tx},
			Store:   sequence.PgStore{Q: tx},
			q:       tx,
		})
	})
}

const invoiceColumns = `
	id, number, customer_id, issue_date, subtotal, tax_mode, tax_rate,
	cgst, sgst, igst, total, paid_amount, status, created_at, updated_at`

const dyeingBillColumns = `
	id, number, customer_id, issue_date, total, paid_amount, status, created_at, updated_at`

// InsertInvoice writes the invoice header.
func (r *txRepo) InsertInvoice(ctx context.Context, inv *Invoice) (int64, error) {
	query := `
		INSERT INTO invoices (
			number, customer_id, issue_date, subtotal, tax_mode, tax_rate,
			cgst, sgst, igst, total, paid_amount, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW())
		RETURNING id`

	var id int64
	err := r.q.QueryRow(ctx, query,
		inv.Number, inv.CustomerID, inv.IssueDate, inv.Subtotal, inv.TaxMode, inv.TaxRate,
		inv.CGST, inv.SGST, inv.IGST, inv.Total, inv.PaidAmount, inv.Status,
	).Scan(&id)
	return id, err
}

// InsertInvoiceItems writes the invoice's line items.
func (r *txRepo) InsertInvoiceItems(ctx context.Context, invoiceID int64, items []LineItem) error {
	query := `
		INSERT INTO invoice_items (invoice_id, name, hsn_code, quantity, rate, amount)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	for i := range items {
		item := &items[i]
		if err := r.q.QueryRow(ctx, query,
			invoiceID, item.Name, item.HSNCode, item.Quantity, item.Rate, item.Amount,
		).Scan(&item.ID); err != nil {
			return err
		}
	}
	return nil
}

// InvoiceHeader reads and locks the invoice row, without items.
func (r *txRepo) InvoiceHeader(ctx context.Context, id int64) (*Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1 FOR UPDATE`
	return scanInvoice(r.q.QueryRow(ctx, query, id))
}

// DeleteInvoice removes the invoice; items cascade with it.
func (r *txRepo) DeleteInvoice(ctx context.Context, id int64) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM invoices WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetInvoicePayment writes the paid amount and its derived status.
func (r *txRepo) SetInvoicePayment(ctx context.Context, id int64, paid decimal.Decimal, status Status) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE invoices SET paid_amount = $2, status = $3, updated_at = NOW() WHERE id = $1`,
		id, paid, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// InsertDyeingBill writes the dyeing bill header.
func (r *txRepo) InsertDyeingBill(ctx context.Context, bill *DyeingBill) (int64, error) {
	query := `
		INSERT INTO dyeing_bills (
			number, customer_id, issue_date, total, paid_amount, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING id`

	var id int64
	err := r.q.QueryRow(ctx, query,
		bill.Number, bill.CustomerID, bill.IssueDate, bill.Total, bill.PaidAmount, bill.Status,
	).Scan(&id)
	return id, err
}

// InsertDyeingBillItems writes the bill's line items.
func (r *txRepo) InsertDyeingBillItems(ctx context.Context, billID int64, items []LineItem) error {
	query := `
		INSERT INTO dyeing_bill_items (dyeing_bill_id, name, hsn_code, quantity, rate, amount)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	for i := range items {
		item := &items[i]
		if err := r.q.QueryRow(ctx, query,
			billID, item.Name, item.HSNCode, item.Quantity, item.Rate, item.Amount,
		).Scan(&item.ID); err != nil {
			return err
		}
	}
	return nil
}

// DyeingBillHeader reads and locks the bill row, without items.
func (r *txRepo) DyeingBillHeader(ctx context.Context, id int64) (*DyeingBill, error) {
	query := `SELECT ` + dyeingBillColumns + ` FROM dyeing_bills WHERE id = $1 FOR UPDATE`
	return scanDyeingBill(r.q.QueryRow(ctx, query, id))
}

// DeleteDyeingBill removes the bill; items cascade with it.
func (r *txRepo) DeleteDyeingBill(ctx context.Context, id int64) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM dyeing_bills WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetDyeingBillPayment writes the paid amount and its derived status.
func (r *txRepo) SetDyeingBillPayment(ctx context.Context, id int64, paid decimal.Decimal, status Status) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE dyeing_bills SET paid_amount = $2, status = $3, updated_at = NOW() WHERE id = $1`,
		id, paid, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetInvoice retrieves an invoice with its items.
func (r *Repository) GetInvoice(ctx context.Context, id int64) (*Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1`
	inv, err := scanInvoice(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}
	inv.Items, err = r.lineItems(ctx, "invoice_items", "invoice_id", id)
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// ListInvoices returns invoice headers matching the filter plus the
// total count.
func (r *Repository) ListInvoices(ctx context.Context, filter ListFilter) ([]Invoice, int, error) {
	where, args := filterClause(filter)

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM invoices"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + invoiceColumns + ` FROM invoices` + where +
		fmt.Sprintf(" ORDER BY issue_date DESC, id DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = appendPaging(args, filter)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *inv)
	}
	return out, total, rows.Err()
}

// GetDyeingBill retrieves a dyeing bill with its items.
func (r *Repository) GetDyeingBill(ctx context.Context, id int64) (*DyeingBill, error) {
	query := `SELECT ` + dyeingBillColumns + ` FROM dyeing_bills WHERE id = $1`
	bill, err := scanDyeingBill(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}
	bill.Items, err = r.lineItems(ctx, "dyeing_bill_items", "dyeing_bill_id", id)
	if err != nil {
		return nil, err
	}
	return bill, nil
}

// ListDyeingBills returns bill headers matching the filter plus the
// total count.
func (r *Repository) ListDyeingBills(ctx context.Context, filter ListFilter) ([]DyeingBill, int, error) {
	where, args := filterClause(filter)

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM dyeing_bills"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + dyeingBillColumns + ` FROM dyeing_bills` + where +
		fmt.Sprintf(" ORDER BY issue_date DESC, id DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = appendPaging(args, filter)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []DyeingBill
	for rows.Next() {
		bill, err := scanDyeingBill(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *bill)
	}
	return out, total, rows.Err()
}

func (r *Repository) lineItems(ctx context.Context, table, fk string, docID int64) ([]LineItem, error) {
	query := fmt.Sprintf(
		`SELECT id, name, hsn_code, quantity, rate, amount FROM %s WHERE %s = $1 ORDER BY id`, table, fk)

	rows, err := r.pool.Query(ctx, query, docID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []LineItem
	for rows.Next() {
		var item LineItem
		if err := rows.Scan(&item.ID, &item.Name, &item.HSNCode, &item.Quantity, &item.Rate, &item.Amount); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	err := row.Scan(
		&inv.ID, &inv.Number, &inv.CustomerID, &inv.IssueDate, &inv.Subtotal, &inv.TaxMode, &inv.TaxRate,
		&inv.CGST, &inv.SGST, &inv.IGST, &inv.Total, &inv.PaidAmount, &inv.Status, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func scanDyeingBill(row pgx.Row) (*DyeingBill, error) {
	var bill DyeingBill
	err := row.Scan(
		&bill.ID, &bill.Number, &bill.CustomerID, &bill.IssueDate, &bill.Total,
		&bill.PaidAmount, &bill.Status, &bill.CreatedAt, &bill.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &bill, nil
}

func filterClause(filter ListFilter) (string, []any) {
	where := " WHERE 1=1"
	args := []any{}

	if filter.CustomerID != 0 {
		args = append(args, filter.CustomerID)
		where += fmt.Sprintf(" AND customer_id = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		where += fmt.Sprintf(" AND issue_date >= $%d", len(args))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		where += fmt.Sprintf(" AND issue_date <= $%d", len(args))
	}
	return where, args
}

func appendPaging(args []any, filter ListFilter) []any {
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	return append(args, limit, (page-1)*limit)
}
