package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/vastrabill/vastrabill/internal/shared"
)

// Service errors.
var (
	ErrInvalidAmount   = errors.New("ledger: payment amount must be positive")
	ErrOverpayment     = errors.New("ledger: payment exceeds outstanding balance")
	ErrInvoiceMismatch = errors.New("ledger: invoice does not belong to customer")
	ErrPaymentNotFound = errors.New("ledger: payment not found")
)

// Reconciler recomputes a customer's outstanding balance from scratch.
// The stored balance is always replaced with the full formula result,
// never adjusted by a delta, so a missed update cannot accumulate.
type Reconciler struct{}

// Recompute locks the customer, derives the balance from document
// aggregates and writes it back. Must run inside the caller's
// transaction.
func (Reconciler) Recompute(ctx context.Context, store Store, customerID int64) (decimal.Decimal, error) {
	if err := store.LockCustomer(ctx, customerID); err != nil {
		return decimal.Zero, err
	}
	agg, err := store.DocumentAggregates(ctx, customerID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("ledger: aggregate documents: %w", err)
	}
	outstanding := agg.Outstanding()
	if err := store.SaveOutstanding(ctx, customerID, outstanding); err != nil {
		return decimal.Zero, fmt.Errorf("ledger: save outstanding: %w", err)
	}
	return outstanding, nil
}

// TxRepositoryPort exposes the transactional operations the payment
// path needs.
type TxRepositoryPort interface {
	Store
	InsertPayment(ctx context.Context, p Payment) (int64, error)
	InvoiceBelongsTo(ctx context.Context, invoiceID, customerID int64) (bool, error)
}

// PaymentFilter narrows payment listings.
type PaymentFilter struct {
	CustomerID int64
	Page       int
	Limit      int
}

// RepositoryPort defines data access methods for the ledger.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepositoryPort) error) error
	GetPayment(ctx context.Context, id int64) (*Payment, error)
	ListPayments(ctx context.Context, filter PaymentFilter) ([]Payment, int, error)
	PaymentsFor(ctx context.Context, customerID int64) ([]Payment, error)
	InvoiceSummaries(ctx context.Context, customerID int64) ([]DocumentSummary, error)
	DyeingBillSummaries(ctx context.Context, customerID int64) ([]DocumentSummary, error)
	CustomerOutstanding(ctx context.Context, customerID int64) (decimal.Decimal, error)
}

// ApplyPaymentInput carries a new receipt.
type ApplyPaymentInput struct {
	CustomerID     int64
	InvoiceID      *int64
	Amount         decimal.Decimal
	Method         string
	PaidAt         time.Time
	Note           string
	IdempotencyKey string
}

// Service handles payments, reconciliation and statements.
type Service struct {
	repo       RepositoryPort
	reconciler Reconciler
	cache      *StatementCache
	idem       *shared.IdempotencyStore
	logger     *slog.Logger
	group      singleflight.Group
}

// NewService builds Service instance. cache and idem may be nil.
func NewService(repo RepositoryPort, cache *StatementCache, idem *shared.IdempotencyStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, idem: idem, logger: logger}
}

// ApplyPayment records a customer-level receipt. The overpayment check
// runs against a balance recomputed under the customer's row lock, so
// a stale stored balance can never let a payment exceed what is truly
// owed.
func (s *Service) ApplyPayment(ctx context.Context, input ApplyPaymentInput) (*Payment, error) {
	if !input.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if input.IdempotencyKey != "" {
		if err := s.idem.CheckAndInsert(ctx, input.IdempotencyKey, "ledger:payment"); err != nil {
			return nil, err
		}
	}

	payment := Payment{
		Reference:  uuid.NewString(),
		CustomerID: input.CustomerID,
		InvoiceID:  input.InvoiceID,
		Amount:     input.Amount,
		Method:     input.Method,
		PaidAt:     input.PaidAt,
		Note:       input.Note,
	}
	if payment.PaidAt.IsZero() {
		payment.PaidAt = time.Now()
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, r TxRepositoryPort) error {
		if err := r.LockCustomer(ctx, input.CustomerID); err != nil {
			return err
		}
		agg, err := r.DocumentAggregates(ctx, input.CustomerID)
		if err != nil {
			return err
		}
		outstanding := agg.Outstanding()
		if input.Amount.GreaterThan(outstanding) {
			return ErrOverpayment
		}
		if input.InvoiceID != nil {
			ok, err := r.InvoiceBelongsTo(ctx, *input.InvoiceID, input.CustomerID)
			if err != nil {
				return err
			}
			if !ok {
				return ErrInvoiceMismatch
			}
		}

		id, err := r.InsertPayment(ctx, payment)
		if err != nil {
			return err
		}
		payment.ID = id

		// Payments only move the balance through document paid
		// amounts, so writing the recomputed value also heals any
		// drift found while holding the lock.
		return r.SaveOutstanding(ctx, input.CustomerID, outstanding)
	})
	if err != nil {
		if input.IdempotencyKey != "" {
			if delErr := s.idem.Delete(ctx, input.IdempotencyKey); delErr != nil {
				s.logger.Warn("release idempotency key", slog.Any("error", delErr))
			}
		}
		return nil, err
	}

	s.InvalidateStatement(ctx, input.CustomerID)
	return &payment, nil
}

// RecomputeBalance rebuilds the stored outstanding balance from the
// document aggregates and returns the fresh value.
func (s *Service) RecomputeBalance(ctx context.Context, customerID int64) (decimal.Decimal, error) {
	var outstanding decimal.Decimal
	err := s.repo.WithTx(ctx, func(ctx context.Context, r TxRepositoryPort) error {
		var err error
		outstanding, err = s.reconciler.Recompute(ctx, r, customerID)
		return err
	})
	if err != nil {
		return decimal.Zero, err
	}
	s.InvalidateStatement(ctx, customerID)
	return outstanding, nil
}

// GetPayment returns one payment by ID.
func (s *Service) GetPayment(ctx context.Context, id int64) (*Payment, error) {
	return s.repo.GetPayment(ctx, id)
}

// ListPayments returns payments matching the filter plus the total
// count.
func (s *Service) ListPayments(ctx context.Context, filter PaymentFilter) ([]Payment, int, error) {
	return s.repo.ListPayments(ctx, filter)
}

// Statement assembles the chronological account view for a customer,
// served through the versioned cache. Concurrent requests for the same
// customer share a single build.
func (s *Service) Statement(ctx context.Context, customerID int64) (*Statement, error) {
	key, err := s.cache.Key(ctx, customerID)
	if err != nil {
		return nil, err
	}

	result, err, _ := s.group.Do(key, func() (any, error) {
		var stmt Statement
		loadErr := s.cache.FetchJSON(ctx, key, &stmt, func(ctx context.Context) (any, error) {
			return s.buildStatement(ctx, customerID)
		})
		if loadErr != nil {
			return nil, loadErr
		}
		return &stmt, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*Statement), nil
}

// InvalidateStatement drops cached statements for the customer. Called
// after every balance-affecting write, including those made by the
// billing side.
func (s *Service) InvalidateStatement(ctx context.Context, customerID int64) {
	if err := s.cache.Bump(ctx, customerID); err != nil {
		s.logger.Warn("invalidate statement cache",
			slog.Int64("customer_id", customerID), slog.Any("error", err))
	}
}

func (s *Service) buildStatement(ctx context.Context, customerID int64) (*Statement, error) {
	outstanding, err := s.repo.CustomerOutstanding(ctx, customerID)
	if err != nil {
		return nil, err
	}

	var (
		invoices []DocumentSummary
		bills    []DocumentSummary
		payments []Payment
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		invoices, err = s.repo.InvoiceSummaries(gctx, customerID)
		return err
	})
	g.Go(func() error {
		var err error
		bills, err = s.repo.DyeingBillSummaries(gctx, customerID)
		return err
	})
	g.Go(func() error {
		var err error
		payments, err = s.repo.PaymentsFor(gctx, customerID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	lines := make([]StatementLine, 0, len(invoices)+len(bills)+len(payments))
	for _, doc := range invoices {
		lines = append(lines, StatementLine{
			Date: doc.Date, Kind: LineKindInvoice, Number: doc.Number, Debit: doc.Total,
		})
	}
	for _, doc := range bills {
		lines = append(lines, StatementLine{
			Date: doc.Date, Kind: LineKindDyeingBill, Number: doc.Number, Debit: doc.Total,
		})
	}
	for _, p := range payments {
		lines = append(lines, StatementLine{
			Date: p.PaidAt, Kind: LineKindPayment, Number: p.Reference, Credit: p.Amount,
		})
	}

	// Chronological, with same-day documents ahead of receipts.
	sort.SliceStable(lines, func(i, j int) bool {
		if !lines[i].Date.Equal(lines[j].Date) {
			return lines[i].Date.Before(lines[j].Date)
		}
		return lines[i].Kind != LineKindPayment && lines[j].Kind == LineKindPayment
	})

	running := decimal.Zero
	for i := range lines {
		running = running.Add(lines[i].Debit).Sub(lines[i].Credit)
		lines[i].Balance = running
	}

	return &Statement{
		CustomerID:  customerID,
		Lines:       lines,
		Outstanding: outstanding,
		GeneratedAt: time.Now().UTC(),
	}, nil
}
