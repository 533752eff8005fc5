package customers

import (
	"time"

	"github.com/shopspring/decimal"
)

// Customer is a billed party. OutstandingBalance is derived: only the
// ledger reconciler writes it, everything here treats it as read-only.
type Customer struct {
	ID                 int64           `json:"id"`
	Name               string          `json:"name"`
	Phone              string          `json:"phone,omitempty"`
	Email              string          `json:"email,omitempty"`
	GSTIN              string          `json:"gstin,omitempty"`
	Address            string          `json:"address,omitempty"`
	City               string          `json:"city,omitempty"`
	State              string          `json:"state,omitempty"`
	PostalCode         string          `json:"postal_code,omitempty"`
	OutstandingBalance decimal.Decimal `json:"outstanding_balance"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// ListFilter narrows customer listings.
type ListFilter struct {
	Search string
	Page   int
	Limit  int
}
