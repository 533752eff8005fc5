package billing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/vastrabill/vastrabill/internal/tax"
)

// ItemInput is one requested line item. Quantity and rate bounds are
// checked in the service, where decimals are parsed.
type ItemInput struct {
	Name     string          `json:"name" validate:"required,max=200"`
	HSNCode  string          `json:"hsnCode" validate:"omitempty,max=8"`
	Quantity decimal.Decimal `json:"quantity"`
	Rate     decimal.Decimal `json:"rate"`
}

// CreateInvoiceRequest is the invoice creation payload.
type CreateInvoiceRequest struct {
	CustomerID     int64           `json:"customerId" validate:"required,gt=0"`
	IssueDate      *time.Time      `json:"issueDate"`
	TaxMode        tax.Mode        `json:"taxMode" validate:"required,oneof=INTRASTATE INTERSTATE"`
	TaxRatePercent decimal.Decimal `json:"taxRatePercent"`
	Items          []ItemInput     `json:"items" validate:"required,min=1,dive"`
}

// CreateDyeingBillRequest is the dyeing bill creation payload.
type CreateDyeingBillRequest struct {
	CustomerID int64       `json:"customerId" validate:"required,gt=0"`
	IssueDate  *time.Time  `json:"issueDate"`
	Items      []ItemInput `json:"items" validate:"required,min=1,dive"`
}

// RecordPaymentRequest sets the document-level paid amount.
type RecordPaymentRequest struct {
	PaidAmount decimal.Decimal `json:"paidAmount"`
}
