package customers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence for customers.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const customerColumns = `
	id, name, phone, email, gstin, address, city, state, postal_code,
	outstanding_balance, created_at, updated_at`

// Create inserts a customer with a zero outstanding balance.
func (r *Repository) Create(ctx context.Context, c Customer) (int64, error) {
	query := `
		INSERT INTO customers (
			name, phone, email, gstin, address, city, state, postal_code,
			outstanding_balance, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0, NOW(), NOW())
		RETURNING id`

	var id int64
	err := r.pool.QueryRow(ctx, query,
		c.Name, c.Phone, c.Email, c.GSTIN, c.Address, c.City, c.State, c.PostalCode,
	).Scan(&id)
	return id, err
}

// Get retrieves a customer by ID.
func (r *Repository) Get(ctx context.Context, id int64) (*Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE id = $1`

	var c Customer
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&c.ID, &c.Name, &c.Phone, &c.Email, &c.GSTIN, &c.Address, &c.City, &c.State, &c.PostalCode,
		&c.OutstandingBalance, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// List returns customers matching the filter plus the total count.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Customer, int, error) {
	where := " WHERE 1=1"
	args := []any{}
	argNum := 1

	if filter.Search != "" {
		where += fmt.Sprintf(" AND (name ILIKE $%d OR phone ILIKE $%d OR gstin ILIKE $%d)", argNum, argNum, argNum)
		args = append(args, "%"+filter.Search+"%")
		argNum++
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM customers"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + customerColumns + ` FROM customers` + where + " ORDER BY name"

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argNum, argNum+1)
	args = append(args, limit, (page-1)*limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Customer
	for rows.Next() {
		var c Customer
		if err := rows.Scan(
			&c.ID, &c.Name, &c.Phone, &c.Email, &c.GSTIN, &c.Address, &c.City, &c.State, &c.PostalCode,
			&c.OutstandingBalance, &c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

// Update applies column updates by name.
func (r *Repository) Update(ctx context.Context, id int64, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}

	setClauses := make([]string, 0, len(updates)+1)
	args := []any{}
	argNum := 1
	for column, value := range updates {
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, argNum))
		args = append(args, value)
		argNum++
	}
	setClauses = append(setClauses, "updated_at = NOW()")
	args = append(args, id)

	query := fmt.Sprintf("UPDATE customers SET %s WHERE id = $%d",
		strings.Join(setClauses, ", "), argNum)

	result, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a customer row.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// HasDocuments reports whether any invoice, dyeing bill or payment
// still references the customer.
func (r *Repository) HasDocuments(ctx context.Context, id int64) (bool, error) {
	query := `
		SELECT EXISTS (SELECT 1 FROM invoices WHERE customer_id = $1)
			OR EXISTS (SELECT 1 FROM dyeing_bills WHERE customer_id = $1)
			OR EXISTS (SELECT 1 FROM payments WHERE customer_id = $1)`

	var referenced bool
	err := r.pool.QueryRow(ctx, query, id).Scan(&referenced)
	return referenced, err
}
