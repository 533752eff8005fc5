// Package ledger keeps customer outstanding balances consistent with
// the documents and payments recorded against them.
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment is a customer-level receipt. Payments are immutable once
// recorded; corrections are made with a new compensating entry.
type Payment struct {
	ID         int64           `json:"id"`
	Reference  string          `json:"reference"`
	CustomerID int64           `json:"customerId"`
	InvoiceID  *int64          `json:"invoiceId,omitempty"`
	Amount     decimal.Decimal `json:"amount"`
	Method     string          `json:"method"`
	PaidAt     time.Time       `json:"paidAt"`
	Note       string          `json:"note,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// Aggregates holds the per-customer document sums the outstanding
// balance derives from.
type Aggregates struct {
	InvoiceTotal decimal.Decimal
	InvoicePaid  decimal.Decimal
	DyeingTotal  decimal.Decimal
	DyeingPaid   decimal.Decimal
}

// Outstanding is the authoritative balance formula: the unpaid part of
// every invoice plus the unpaid part of every dyeing bill. Payments do
// not enter the formula directly; they reach it through each
// document's paid amount.
func (a Aggregates) Outstanding() decimal.Decimal {
	return a.InvoiceTotal.Sub(a.InvoicePaid).Add(a.DyeingTotal.Sub(a.DyeingPaid))
}

// StatementLine is one ledger entry on a customer statement. Debits
// are documents raised against the customer, credits are receipts.
type StatementLine struct {
	Date    time.Time       `json:"date"`
	Kind    string          `json:"kind"`
	Number  string          `json:"number"`
	Debit   decimal.Decimal `json:"debit"`
	Credit  decimal.Decimal `json:"credit"`
	Balance decimal.Decimal `json:"balance"`
}

// Statement line kinds.
const (
	LineKindInvoice    = "invoice"
	LineKindDyeingBill = "dyeing_bill"
	LineKindPayment    = "payment"
)

// Statement is the chronological account view for one customer.
type Statement struct {
	CustomerID  int64           `json:"customerId"`
	Lines       []StatementLine `json:"lines"`
	Outstanding decimal.Decimal `json:"outstandingBalance"`
	GeneratedAt time.Time       `json:"generatedAt"`
}

// DocumentSummary is the slice of a document the statement needs.
type DocumentSummary struct {
	Number string
	Date   time.Time
	Total  decimal.Decimal
	Paid   decimal.Decimal
}
