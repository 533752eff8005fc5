package company

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence for the profile.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get loads the single profile row.
func (r *Repository) Get(ctx context.Context) (*Profile, error) {
	query := `
		SELECT name, gstin, address, phone, email,
			invoice_prefix, dyeing_bill_prefix, updated_at
		FROM company_profile
		WHERE id = 1`

	var p Profile
	err := r.pool.QueryRow(ctx, query).Scan(
		&p.Name, &p.GSTIN, &p.Address, &p.Phone, &p.Email,
		&p.InvoicePrefix, &p.DyeingBillPrefix, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotConfigured
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Save upserts the single profile row.
func (r *Repository) Save(ctx context.Context, p Profile) error {
	query := `
		INSERT INTO company_profile (
			id, name, gstin, address, phone, email,
			invoice_prefix, dyeing_bill_prefix, updated_at
		) VALUES (1, $1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			gstin = EXCLUDED.gstin,
			address = EXCLUDED.address,
			phone = EXCLUDED.phone,
			email = EXCLUDED.email,
			invoice_prefix = EXCLUDED.invoice_prefix,
			dyeing_bill_prefix = EXCLUDED.dyeing_bill_prefix,
			updated_at = NOW()`

	_, err := r.pool.Exec(ctx, query,
		p.Name, p.GSTIN, p.Address, p.Phone, p.Email,
		p.InvoicePrefix, p.DyeingBillPrefix,
	)
	return err
}
