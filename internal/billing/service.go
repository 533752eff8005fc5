package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vastrabill/vastrabill/internal/ledger"
	"github.com/vastrabill/vastrabill/internal/platform/db"
	"github.com/vastrabill/vastrabill/internal/sequence"
	"github.com/vastrabill/vastrabill/internal/tax"
)

// Service errors.
var (
	ErrNotFound          = errors.New("billing: document not found")
	ErrNoItems           = errors.New("billing: at least one line item required")
	ErrInvalidItem       = errors.New("billing: invalid line item")
	ErrInvalidPaidAmount = errors.New("billing: paid amount must not be negative")
)

// Number column constraints, used to spot allocation collisions.
const (
	invoiceNumberConstraint    = "uq_invoices_number"
	dyeingBillNumberConstraint = "uq_dyeing_bills_number"
)

// numberAttempts bounds the retries when two transactions race the
// same series and one loses on the number's unique constraint.
const numberAttempts = 3

// TxRepositoryPort exposes the operations that must share one
// transaction: number allocation, document writes and the balance
// recompute.
type TxRepositoryPort interface {
	ledger.Store
	sequence.Store
	InsertInvoice(ctx context.Context, inv *Invoice) (int64, error)
	InsertInvoiceItems(ctx context.Context, invoiceID int64, items []LineItem) error
	InvoiceHeader(ctx context.Context, id int64) (*Invoice, error)
	DeleteInvoice(ctx context.Context, id int64) error
	SetInvoicePayment(ctx context.Context, id int64, paid decimal.Decimal, status Status) error
	InsertDyeingBill(ctx context.Context, bill *DyeingBill) (int64, error)
	InsertDyeingBillItems(ctx context.Context, billID int64, items []LineItem) error
	DyeingBillHeader(ctx context.Context, id int64) (*DyeingBill, error)
	DeleteDyeingBill(ctx context.Context, id int64) error
	SetDyeingBillPayment(ctx context.Context, id int64, paid decimal.Decimal, status Status) error
}

// RepositoryPort defines data access methods for billing.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepositoryPort) error) error
	GetInvoice(ctx context.Context, id int64) (*Invoice, error)
	ListInvoices(ctx context.Context, filter ListFilter) ([]Invoice, int, error)
	GetDyeingBill(ctx context.Context, id int64) (*DyeingBill, error)
	ListDyeingBills(ctx context.Context, filter ListFilter) ([]DyeingBill, int, error)
}

// PrefixSource supplies the configured numbering prefixes. The company
// profile implements it; prefixes are always passed in explicitly.
type PrefixSource interface {
	NumberingPrefixes(ctx context.Context) (invoice, dyeingBill string, err error)
}

// StatementInvalidator drops cached customer statements after a
// balance-affecting write.
type StatementInvalidator interface {
	InvalidateStatement(ctx context.Context, customerID int64)
}

// Service handles invoice and dyeing bill business logic.
type Service struct {
	repo       RepositoryPort
	prefixes   PrefixSource
	statements StatementInvalidator
	reconciler ledger.Reconciler
	logger     *slog.Logger
}

// NewService builds Service instance. statements may be nil.
func NewService(repo RepositoryPort, prefixes PrefixSource, statements StatementInvalidator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, prefixes: prefixes, statements: statements, logger: logger}
}

// CreateInvoice computes the tax breakdown, allocates the next invoice
// number and persists header, items and the recomputed customer
// balance in one transaction.
func (s *Service) CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (*Invoice, error) {
	items, subtotal, err := buildItems(req.Items)
	if err != nil {
		return nil, err
	}
	breakdown, err := tax.Compute(subtotal, req.TaxRatePercent, req.TaxMode)
	if err != nil {
		return nil, err
	}
	rounded := breakdown.Rounded()

	prefix, _, err := s.prefixes.NumberingPrefixes(ctx)
	if err != nil {
		return nil, fmt.Errorf("billing: load numbering prefixes: %w", err)
	}

	inv := &Invoice{
		CustomerID: req.CustomerID,
		IssueDate:  issueDate(req.IssueDate),
		Items:      items,
		Subtotal:   rounded.Subtotal,
		TaxMode:    req.TaxMode,
		TaxRate:    req.TaxRatePercent,
		CGST:       rounded.CGST,
		SGST:       rounded.SGST,
		IGST:       rounded.IGST,
		Total:      rounded.Total,
		PaidAmount: decimal.Zero,
		Status:     StatusPending,
	}

	err = s.createDocument(ctx, req.CustomerID, sequence.ClassInvoice, prefix, invoiceNumberConstraint,
		func(ctx context.Context, r TxRepositoryPort, number string) error {
			inv.Number = number
			id, err := r.InsertInvoice(ctx, inv)
			if err != nil {
				return err
			}
			inv.ID = id
			return r.InsertInvoiceItems(ctx, id, inv.Items)
		})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// CreateDyeingBill persists a job-work bill. Same path as invoices,
// without a tax breakdown.
func (s *Service) CreateDyeingBill(ctx context.Context, req CreateDyeingBillRequest) (*DyeingBill, error) {
	items, subtotal, err := buildItems(req.Items)
	if err != nil {
		return nil, err
	}

	_, prefix, err := s.prefixes.NumberingPrefixes(ctx)
	if err != nil {
		return nil, fmt.Errorf("billing: load numbering prefixes: %w", err)
	}

	bill := &DyeingBill{
		CustomerID: req.CustomerID,
		IssueDate:  issueDate(req.IssueDate),
		Items:      items,
		Total:      subtotal.Round(2),
		PaidAmount: decimal.Zero,
		Status:     StatusPending,
	}

	err = s.createDocument(ctx, req.CustomerID, sequence.ClassDyeingBill, prefix, dyeingBillNumberConstraint,
		func(ctx context.Context, r TxRepositoryPort, number string) error {
			bill.Number = number
			id, err := r.InsertDyeingBill(ctx, bill)
			if err != nil {
				return err
			}
			bill.ID = id
			return r.InsertDyeingBillItems(ctx, id, bill.Items)
		})
	if err != nil {
		return nil, err
	}
	return bill, nil
}

func (s *Service) createDocument(ctx context.Context, customerID int64, class sequence.Class, prefix, constraint string,
	insert func(context.Context, TxRepositoryPort, string) error) error {

	var lastErr error
	for attempt := 0; attempt < numberAttempts; attempt++ {
		err := s.repo.WithTx(ctx, func(ctx context.Context, r TxRepositoryPort) error {
			if err := r.LockCustomer(ctx, customerID); err != nil {
				return err
			}
			number, err := sequence.Next(ctx, r, class, prefix)
			if err != nil {
				return err
			}
			if err := insert(ctx, r, number); err != nil {
				return err
			}
			_, err = s.reconciler.Recompute(ctx, r, customerID)
			return err
		})
		if err == nil {
			s.invalidate(ctx, customerID)
			return nil
		}
		if !db.IsUniqueViolation(err, constraint) {
			return err
		}
		lastErr = err
		s.logger.Warn("document number collision, retrying",
			slog.String("class", string(class)), slog.Int("attempt", attempt+1))
	}
	return fmt.Errorf("billing: allocate %s number: %w", class, lastErr)
}

// GetInvoice returns an invoice with its items.
func (s *Service) GetInvoice(ctx context.Context, id int64) (*Invoice, error) {
	return s.repo.GetInvoice(ctx, id)
}

// ListInvoices returns invoices matching the filter plus the total
// count.
func (s *Service) ListInvoices(ctx context.Context, filter ListFilter) ([]Invoice, int, error) {
	return s.repo.ListInvoices(ctx, filter)
}

// DeleteInvoice removes an invoice and its items, then reconciles the
// customer's balance in the same transaction. The freed number is
// never reissued.
func (s *Service) DeleteInvoice(ctx context.Context, id int64) error {
	var customerID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, r TxRepositoryPort) error {
		header, err := r.InvoiceHeader(ctx, id)
		if err != nil {
			return err
		}
		customerID = header.CustomerID
		if err := r.LockCustomer(ctx, customerID); err != nil {
			return err
		}
		if err := r.DeleteInvoice(ctx, id); err != nil {
			return err
		}
		_, err = s.reconciler.Recompute(ctx, r, customerID)
		return err
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx, customerID)
	return nil
}

// RecordInvoicePayment sets the invoice's paid amount, derives its
// status and reconciles. This is the document-level path; it does not
// create a payment row.
func (s *Service) RecordInvoicePayment(ctx context.Context, id int64, paid decimal.Decimal) (*Invoice, error) {
	if paid.IsNegative() {
		return nil, ErrInvalidPaidAmount
	}
	var customerID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, r TxRepositoryPort) error {
		header, err := r.InvoiceHeader(ctx, id)
		if err != nil {
			return err
		}
		customerID = header.CustomerID
		if err := r.LockCustomer(ctx, customerID); err != nil {
			return err
		}
		if err := r.SetInvoicePayment(ctx, id, paid.Round(2), DeriveStatus(header.Total, paid)); err != nil {
			return err
		}
		_, err = s.reconciler.Recompute(ctx, r, customerID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, customerID)
	return s.repo.GetInvoice(ctx, id)
}

// GetDyeingBill returns a dyeing bill with its items.
func (s *Service) GetDyeingBill(ctx context.Context, id int64) (*DyeingBill, error) {
	return s.repo.GetDyeingBill(ctx, id)
}

// ListDyeingBills returns dyeing bills matching the filter plus the
// total count.
func (s *Service) ListDyeingBills(ctx context.Context, filter ListFilter) ([]DyeingBill, int, error) {
	return s.repo.ListDyeingBills(ctx, filter)
}

// DeleteDyeingBill removes a dyeing bill and reconciles.
func (s *Service) DeleteDyeingBill(ctx context.Context, id int64) error {
	var customerID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, r TxRepositoryPort) error {
		header, err := r.DyeingBillHeader(ctx, id)
		if err != nil {
			return err
		}
		customerID = header.CustomerID
		if err := r.LockCustomer(ctx, customerID); err != nil {
			return err
		}
		if err := r.DeleteDyeingBill(ctx, id); err != nil {
			return err
		}
		_, err = s.reconciler.Recompute(ctx, r, customerID)
		return err
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx, customerID)
	return nil
}

// RecordDyeingBillPayment sets the bill's paid amount, derives its
// status and reconciles.
func (s *Service) RecordDyeingBillPayment(ctx context.Context, id int64, paid decimal.Decimal) (*DyeingBill, error) {
	if paid.IsNegative() {
		return nil, ErrInvalidPaidAmount
	}
	var customerID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, r TxRepositoryPort) error {
		header, err := r.DyeingBillHeader(ctx, id)
		if err != nil {
			return err
		}
		customerID = header.CustomerID
		if err := r.LockCustomer(ctx, customerID); err != nil {
			return err
		}
		if err := r.SetDyeingBillPayment(ctx, id, paid.Round(2), DeriveStatus(header.Total, paid)); err != nil {
			return err
		}
		_, err = s.reconciler.Recompute(ctx, r, customerID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, customerID)
	return s.repo.GetDyeingBill(ctx, id)
}

func (s *Service) invalidate(ctx context.Context, customerID int64) {
	if s.statements != nil {
		s.statements.InvalidateStatement(ctx, customerID)
	}
}

func issueDate(requested *time.Time) time.Time {
	if requested != nil && !requested.IsZero() {
		return *requested
	}
	return time.Now()
}

func buildItems(inputs []ItemInput) ([]LineItem, decimal.Decimal, error) {
	if len(inputs) == 0 {
		return nil, decimal.Zero, ErrNoItems
	}
	items := make([]LineItem, 0, len(inputs))
	subtotal := decimal.Zero
	for i, in := range inputs {
		name := strings.TrimSpace(in.Name)
		if name == "" {
			return nil, decimal.Zero, fmt.Errorf("%w: item %d name required", ErrInvalidItem, i+1)
		}
		if !in.Quantity.IsPositive() {
			return nil, decimal.Zero, fmt.Errorf("%w: item %d quantity must be positive", ErrInvalidItem, i+1)
		}
		if in.Rate.IsNegative() {
			return nil, decimal.Zero, fmt.Errorf("%w: item %d rate must not be negative", ErrInvalidItem, i+1)
		}
		amount := in.Quantity.Mul(in.Rate).Round(2)
		items = append(items, LineItem{
			Name:     name,
			HSNCode:  strings.TrimSpace(in.HSNCode),
			Quantity: in.Quantity,
			Rate:     in.Rate,
			Amount:   amount,
		})
		subtotal = subtotal.Add(amount)
	}
	return items, subtotal, nil
}
