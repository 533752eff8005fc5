package sequence

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is satisfied by pgxpool.Pool and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PgStore keeps the counter rows in the document_sequences table.
// Embed it in a transaction-bound repository so allocation shares the
// document insert's transaction.
type PgStore struct {
	Q Querier
}

// LastNumber reads the counter row, locking it for the remainder of
// the transaction so concurrent allocations of the same series
// serialise.
func (s PgStore) LastNumber(ctx context.Context, class Class, prefix string) (string, bool, error) {
	query := `
		SELECT last_number FROM document_sequences
		WHERE class = $1 AND prefix = $2
		FOR UPDATE`

	var last string
	err := s.Q.QueryRow(ctx, query, string(class), prefix).Scan(&last)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return last, true, nil
}

// SaveLast upserts the counter row.
func (s PgStore) SaveLast(ctx context.Context, class Class, prefix, number string) error {
	query := `
		INSERT INTO document_sequences (class, prefix, last_number, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (class, prefix) DO UPDATE SET
			last_number = EXCLUDED.last_number,
			updated_at = NOW()`

	_, err := s.Q.Exec(ctx, query, string(class), prefix, number)
	return err
}
