// Package billing manages invoices and dyeing bills, the two document
// classes that drive customer balances.
package billing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/vastrabill/vastrabill/internal/tax"
)

// Status reflects how much of a document has been settled.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusPartial Status = "PARTIAL"
	StatusPaid    Status = "PAID"
)

// DeriveStatus computes the document status from its totals. Status is
// never stored independently of the paid amount that produced it.
func DeriveStatus(total, paid decimal.Decimal) Status {
	switch {
	case !paid.IsPositive():
		return StatusPending
	case paid.GreaterThanOrEqual(total):
		return StatusPaid
	default:
		return StatusPartial
	}
}

// LineItem is one row on an invoice or dyeing bill. Amount is
// quantity × rate, rounded to two places when the item is built.
type LineItem struct {
	ID       int64           `json:"id"`
	Name     string          `json:"name"`
	HSNCode  string          `json:"hsnCode,omitempty"`
	Quantity decimal.Decimal `json:"quantity"`
	Rate     decimal.Decimal `json:"rate"`
	Amount   decimal.Decimal `json:"amount"`
}

// Invoice is a GST sales invoice.
type Invoice struct {
	ID         int64           `json:"id"`
	Number     string          `json:"number"`
	CustomerID int64           `json:"customerId"`
	IssueDate  time.Time       `json:"issueDate"`
	Items      []LineItem      `json:"items,omitempty"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	TaxMode    tax.Mode        `json:"taxMode"`
	TaxRate    decimal.Decimal `json:"taxRatePercent"`
	CGST       decimal.Decimal `json:"cgst"`
	SGST       decimal.Decimal `json:"sgst"`
	IGST       decimal.Decimal `json:"igst"`
	Total      decimal.Decimal `json:"total"`
	PaidAmount decimal.Decimal `json:"paidAmount"`
	Status     Status          `json:"status"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// DyeingBill is a job-work bill. No GST breakdown; the total is the
// sum of its line amounts.
type DyeingBill struct {
	ID         int64           `json:"id"`
	Number     string          `json:"number"`
	CustomerID int64           `json:"customerId"`
	IssueDate  time.Time       `json:"issueDate"`
	Items      []LineItem      `json:"items,omitempty"`
	Total      decimal.Decimal `json:"total"`
	PaidAmount decimal.Decimal `json:"paidAmount"`
	Status     Status          `json:"status"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// ListFilter narrows document listings.
type ListFilter struct {
	CustomerID int64
	Status     Status
	From       time.Time
	To         time.Time
	Page       int
	Limit      int
}
