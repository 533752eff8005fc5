package ledger

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// ErrCustomerNotFound indicates the customer row does not exist.
var ErrCustomerNotFound = errors.New("ledger: customer not found")

// Querier is satisfied by pgxpool.Pool and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is the transaction-scoped view reconciliation needs. Any
// repository whose transaction touches a customer's balance implements
// it, so document writers and the payment path share one reconcile
// routine.
type Store interface {
	// LockCustomer takes the customer's row lock, serialising all
	// balance-affecting work for that customer until commit.
	LockCustomer(ctx context.Context, customerID int64) error
	// DocumentAggregates sums totals and paid amounts across the
	// customer's invoices and dyeing bills.
	DocumentAggregates(ctx context.Context, customerID int64) (Aggregates, error)
	// SaveOutstanding replaces the stored balance with a freshly
	// computed value. Never adjusted incrementally.
	SaveOutstanding(ctx context.Context, customerID int64, amount decimal.Decimal) error
}

// PgStore implements Store against PostgreSQL. Embed it with a
// transaction-bound Querier so the lock spans the caller's whole unit
// of work.
type PgStore struct {
	Q Querier
}

// LockCustomer acquires the per-customer row lock.
func (s PgStore) LockCustomer(ctx context.Context, customerID int64) error {
	var id int64
	err := s.Q.QueryRow(ctx, `SELECT id FROM customers WHERE id = $1 FOR UPDATE`, customerID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrCustomerNotFound
	}
	return err
}

// DocumentAggregates reads the document sums the balance derives from.
func (s PgStore) DocumentAggregates(ctx context.Context, customerID int64) (Aggregates, error) {
	query := `
		SELECT
			COALESCE((SELECT SUM(total) FROM invoices WHERE customer_id = $1), 0),
			COALESCE((SELECT SUM(paid_amount) FROM invoices WHERE customer_id = $1), 0),
			COALESCE((SELECT SUM(total) FROM dyeing_bills WHERE customer_id = $1), 0),
			COALESCE((SELECT SUM(paid_amount) FROM dyeing_bills WHERE customer_id = $1), 0)`

	var agg Aggregates
	err := s.Q.QueryRow(ctx, query, customerID).Scan(
		&agg.InvoiceTotal, &agg.InvoicePaid, &agg.DyeingTotal, &agg.DyeingPaid,
	)
	return agg, err
}

// SaveOutstanding writes the recomputed balance onto the customer row.
func (s PgStore) SaveOutstanding(ctx context.Context, customerID int64, amount decimal.Decimal) error {
	tag, err := s.Q.Exec(ctx,
		`UPDATE customers SET outstanding_balance = $2, updated_at = NOW() WHERE id = $1`,
		customerID, amount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCustomerNotFound
	}
	return nil
}
