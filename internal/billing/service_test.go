package billing

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vastrabill/vastrabill/internal/ledger"
	"github.com/vastrabill/vastrabill/internal/sequence"
	"github.com/vastrabill/vastrabill/internal/tax"
)

type memoryBillingRepo struct {
	outstanding map[int64]decimal.Decimal
	invoices    map[int64]*Invoice
	bills       map[int64]*DyeingBill
	seq         map[string]string
	nextID      int64
	failUnique  int
}

func newMemoryBillingRepo() *memoryBillingRepo {
	return &memoryBillingRepo{
		outstanding: make(map[int64]decimal.Decimal),
		invoices:    make(map[int64]*Invoice),
		bills:       make(map[int64]*DyeingBill),
		seq:         make(map[string]string),
	}
}

func (r *memoryBillingRepo) addCustomer(id int64) {
	r.outstanding[id] = decimal.Zero
}

type repoSnapshot struct {
	outstanding map[int64]decimal.Decimal
	invoices    map[int64]*Invoice
	bills       map[int64]*DyeingBill
	seq         map[string]string
	nextID      int64
}

func (r *memoryBillingRepo) snapshot() repoSnapshot {
	s := repoSnapshot{
		outstanding: make(map[int64]decimal.Decimal, len(r.outstanding)),
		invoices:    make(map[int64]*Invoice, len(r.invoices)),
		bills:       make(map[int64]*DyeingBill, len(r.bills)),
		seq:         make(map[string]string, len(r.seq)),
		nextID:      r.nextID,
	}
	for k, v := range r.outstanding {
		s.outstanding[k] = v
	}
	for k, v := range r.invoices {
		copied := *v
		s.invoices[k] = &copied
	}
	for k, v := range r.bills {
		copied := *v
		s.bills[k] = &copied
	}
	for k, v := range r.seq {
		s.seq[k] = v
	}
	return s
}

func (r *memoryBillingRepo) restore(s repoSnapshot) {
	r.outstanding = s.outstanding
	r.invoices = s.invoices
	r.bills = s.bills
	r.seq = s.seq
	r.nextID = s.nextID
}

// WithTx mimics rollback by restoring the pre-transaction state when
// the callback fails.
func (r *memoryBillingRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepositoryPort) error) error {
	snap := r.snapshot()
	if err := fn(ctx, r); err != nil {
		r.restore(snap)
		return err
	}
	return nil
}

func (r *memoryBillingRepo) LockCustomer(ctx context.Context, customerID int64) error {
	if _, ok := r.outstanding[customerID]; !ok {
		return ledger.ErrCustomerNotFound
	}
	return nil
}

func (r *memoryBillingRepo) DocumentAggregates(ctx context.Context, customerID int64) (ledger.Aggregates, error) {
	agg := ledger.Aggregates{
		InvoiceTotal: decimal.Zero, InvoicePaid: decimal.Zero,
		DyeingTotal: decimal.Zero, DyeingPaid: decimal.Zero,
	}
	for _, inv := range r.invoices {
		if inv.CustomerID == customerID {
			agg.InvoiceTotal = agg.InvoiceTotal.Add(inv.Total)
			agg.InvoicePaid = agg.InvoicePaid.Add(inv.PaidAmount)
		}
	}
	for _, bill := range r.bills {
		if bill.CustomerID == customerID {
			agg.DyeingTotal = agg.DyeingTotal.Add(bill.Total)
			agg.DyeingPaid = agg.DyeingPaid.Add(bill.PaidAmount)
		}
	}
	return agg, nil
}

func (r *memoryBillingRepo) SaveOutstanding(ctx context.Context, customerID int64, amount decimal.Decimal) error {
	if _, ok := r.outstanding[customerID]; !ok {
		return ledger.ErrCustomerNotFound
	}
	r.outstanding[customerID] = amount
	return nil
}

func (r *memoryBillingRepo) seqKey(class sequence.Class, prefix string) string {
	return string(class) + "/" + prefix
}

func (r *memoryBillingRepo) LastNumber(ctx context.Context, class sequence.Class, prefix string) (string, bool, error) {
	last, ok := r.seq[r.seqKey(class, prefix)]
	return last, ok, nil
}

func (r *memoryBillingRepo) SaveLast(ctx context.Context, class sequence.Class, prefix, number string) error {
	r.seq[r.seqKey(class, prefix)] = number
	return nil
}

func uniqueViolation(constraint string) error {
	return &pgconn.PgError{Code: "23505", ConstraintName: constraint}
}

func (r *memoryBillingRepo) InsertInvoice(ctx context.Context, inv *Invoice) (int64, error) {
	if r.failUnique > 0 {
		r.failUnique--
		return 0, uniqueViolation(invoiceNumberConstraint)
	}
	r.nextID++
	copied := *inv
	copied.ID = r.nextID
	copied.CreatedAt = time.Now()
	copied.UpdatedAt = copied.CreatedAt
	r.invoices[copied.ID] = &copied
	return copied.ID, nil
}

func (r *memoryBillingRepo) InsertInvoiceItems(ctx context.Context, invoiceID int64, items []LineItem) error {
	for i := range items {
		r.nextID++
		items[i].ID = r.nextID
	}
	return nil
}

func (r *memoryBillingRepo) InvoiceHeader(ctx context.Context, id int64) (*Invoice, error) {
	inv, ok := r.invoices[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *inv
	return &copied, nil
}

func (r *memoryBillingRepo) DeleteInvoice(ctx context.Context, id int64) error {
	if _, ok := r.invoices[id]; !ok {
		return ErrNotFound
	}
	delete(r.invoices, id)
	return nil
}

func (r *memoryBillingRepo) SetInvoicePayment(ctx context.Context, id int64, paid decimal.Decimal, status Status) error {
	inv, ok := r.invoices[id]
	if !ok {
		return ErrNotFound
	}
	inv.PaidAmount = paid
	inv.Status = status
	return nil
}

func (r *memoryBillingRepo) InsertDyeingBill(ctx context.Context, bill *DyeingBill) (int64, error) {
	r.nextID++
	copied := *bill
	copied.ID = r.nextID
	copied.CreatedAt = time.Now()
	copied.UpdatedAt = copied.CreatedAt
	r.bills[copied.ID] = &copied
	return copied.ID, nil
}

func (r *memoryBillingRepo) InsertDyeingBillItems(ctx context.Context, billID int64, items []LineItem) error {
	for i := range items {
		r.nextID++
		items[i].ID = r.nextID
	}
	return nil
}

func (r *memoryBillingRepo) DyeingBillHeader(ctx context.Context, id int64) (*DyeingBill, error) {
	bill, ok := r.bills[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *bill
	return &copied, nil
}

func (r *memoryBillingRepo) DeleteDyeingBill(ctx context.Context, id int64) error {
	if _, ok := r.bills[id]; !ok {
		return ErrNotFound
	}
	delete(r.bills, id)
	return nil
}

func (r *memoryBillingRepo) SetDyeingBillPayment(ctx context.Context, id int64, paid decimal.Decimal, status Status) error {
	bill, ok := r.bills[id]
	if !ok {
		return ErrNotFound
	}
	bill.PaidAmount = paid
	bill.Status = status
	return nil
}

func (r *memoryBillingRepo) GetInvoice(ctx context.Context, id int64) (*Invoice, error) {
	return r.InvoiceHeader(ctx, id)
}

func (r *memoryBillingRepo) ListInvoices(ctx context.Context, filter ListFilter) ([]Invoice, int, error) {
	var out []Invoice
	for _, inv := range r.invoices {
		if filter.CustomerID == 0 || inv.CustomerID == filter.CustomerID {
			out = append(out, *inv)
		}
	}
	return out, len(out), nil
}

func (r *memoryBillingRepo) GetDyeingBill(ctx context.Context, id int64) (*DyeingBill, error) {
	return r.DyeingBillHeader(ctx, id)
}

func (r *memoryBillingRepo) ListDyeingBills(ctx context.Context, filter ListFilter) ([]DyeingBill, int, error) {
	var out []DyeingBill
	for _, bill := range r.bills {
		if filter.CustomerID == 0 || bill.CustomerID == filter.CustomerID {
			out = append(out, *bill)
		}
	}
	return out, len(out), nil
}

type staticPrefixes struct{}

func (staticPrefixes) NumberingPrefixes(ctx context.Context) (string, string, error) {
	return "INV", "DYE", nil
}

type recordingInvalidator struct {
	customers []int64
}

func (r *recordingInvalidator) InvalidateStatement(ctx context.Context, customerID int64) {
	r.customers = append(r.customers, customerID)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestService(repo *memoryBillingRepo) (*Service, *recordingInvalidator) {
	invalidator := &recordingInvalidator{}
	return NewService(repo, staticPrefixes{}, invalidator, nil), invalidator
}

func invoiceRequest(customerID int64) CreateInvoiceRequest {
	return CreateInvoiceRequest{
		CustomerID:     customerID,
		TaxMode:        tax.ModeIntrastate,
		TaxRatePercent: dec("18"),
		Items: []ItemInput{
			{Name: "Cotton saree", HSNCode: "5208", Quantity: dec("10"), Rate: dec("50")},
			{Name: "Silk blouse", Quantity: dec("2"), Rate: dec("250")},
		},
	}
}

func TestCreateInvoiceComputesTaxAndReconciles(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryBillingRepo()
	repo.addCustomer(1)
	svc, invalidator := newTestService(repo)

	inv, err := svc.CreateInvoice(ctx, invoiceRequest(1))
	require.NoError(t, err)

	require.Equal(t, "INV-00001", inv.Number)
	require.Equal(t, StatusPending, inv.Status)
	require.True(t, inv.Subtotal.Equal(dec("1000")), "subtotal = %s", inv.Subtotal)
	require.True(t, inv.CGST.Equal(dec("90")))
	require.True(t, inv.SGST.Equal(dec("90")))
	require.True(t, inv.IGST.IsZero())
	require.True(t, inv.Total.Equal(dec("1180")))
	require.Len(t, inv.Items, 2)
	require.True(t, inv.Items[0].Amount.Equal(dec("500")))

	require.True(t, repo.outstanding[1].Equal(dec("1180")),
		"outstanding = %s", repo.outstanding[1])
	require.Equal(t, []int64{1}, invalidator.customers)
}

func TestCreateInvoiceNumbersAreSequentialPerClass(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryBillingRepo()
	repo.addCustomer(1)
	svc, _ := newTestService(repo)

	first, err := svc.CreateInvoice(ctx, invoiceRequest(1))
	require.NoError(t, err)
	second, err := svc.CreateInvoice(ctx, invoiceRequest(1))
	require.NoError(t, err)
	require.Equal(t, "INV-00001", first.Number)
	require.Equal(t, "INV-00002", second.Number)

	bill, err := svc.CreateDyeingBill(ctx, CreateDyeingBillRequest{
		CustomerID: 1,
		Items:      []ItemInput{{Name: "Dyeing lot 14", Quantity: dec("100"), Rate: dec("12.5")}},
	})
	require.NoError(t, err)
	require.Equal(t, "DYE-00001", bill.Number)
}

func TestCreateDyeingBillHasNoTax(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryBillingRepo()
	repo.addCustomer(1)
	svc, _ := newTestService(repo)

	bill, err := svc.CreateDyeingBill(ctx, CreateDyeingBillRequest{
		CustomerID: 1,
		Items:      []ItemInput{{Name: "Dyeing lot 14", Quantity: dec("100"), Rate: dec("12.5")}},
	})
	require.NoError(t, err)
	require.True(t, bill.Total.Equal(dec("1250")), "total = %s", bill.Total)
	require.True(t, repo.outstanding[1].Equal(dec("1250")))
}

func TestCreateInvoiceUnknownCustomer(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(newMemoryBillingRepo())

	_, err := svc.CreateInvoice(ctx, invoiceRequest(42))
	require.ErrorIs(t, err, ledger.ErrCustomerNotFound)
}

func TestCreateInvoiceRejectsBadItems(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryBillingRepo()
	repo.addCustomer(1)
	svc, _ := newTestService(repo)

	req := invoiceRequest(1)
	req.Items = nil
	_, err := svc.CreateInvoice(ctx, req)
	require.ErrorIs(t, err, ErrNoItems)

	req = invoiceRequest(1)
	req.Items[0].Quantity = dec("0")
	_, err = svc.CreateInvoice(ctx, req)
	require.ErrorIs(t, err, ErrInvalidItem)

	req = invoiceRequest(1)
	req.Items[1].Rate = dec("-1")
	_, err = svc.CreateInvoice(ctx, req)
	require.ErrorIs(t, err, ErrInvalidItem)
}

func TestCreateInvoiceRetriesOnNumberCollision(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryBillingRepo()
	repo.addCustomer(1)
	repo.failUnique = 1
	svc, _ := newTestService(repo)

	inv, err := svc.CreateInvoice(ctx, invoiceRequest(1))
	require.NoError(t, err)
	// The colliding attempt rolled back, so the retry got the same
	// number.
	require.Equal(t, "INV-00001", inv.Number)
	require.Len(t, repo.invoices, 1)
}

func TestCreateInvoiceGivesUpAfterRepeatedCollisions(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryBillingRepo()
	repo.addCustomer(1)
	repo.failUnique = numberAttempts
	svc, _ := newTestService(repo)

	_, err := svc.CreateInvoice(ctx, invoiceRequest(1))
	require.Error(t, err)
	require.Empty(t, repo.invoices)
}

func TestCreateInvoiceFailsLoudOnCorruptedSeries(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryBillingRepo()
	repo.addCustomer(1)
	repo.seq[repo.seqKey(sequence.ClassInvoice, "INV")] = "INV_BROKEN"
	svc, _ := newTestService(repo)

	_, err := svc.CreateInvoice(ctx, invoiceRequest(1))
	require.ErrorIs(t, err, sequence.ErrCorruption)
	require.Empty(t, repo.invoices)
	// The corrupted marker is left in place for an operator to repair.
	require.Equal(t, "INV_BROKEN", repo.seq[repo.seqKey(sequence.ClassInvoice, "INV")])
}

func TestDeleteInvoiceReconcilesAndKeepsNumberRetired(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryBillingRepo()
	repo.addCustomer(1)
	svc, _ := newTestService(repo)

	inv, err := svc.CreateInvoice(ctx, invoiceRequest(1))
	require.NoError(t, err)
	require.NoError(t, svc.DeleteInvoice(ctx, inv.ID))
	require.True(t, repo.outstanding[1].IsZero())

	// Deleting the latest document must not hand its number back out.
	next, err := svc.CreateInvoice(ctx, invoiceRequest(1))
	require.NoError(t, err)
	require.Equal(t, "INV-00002", next.Number)
}

func TestDeleteInvoiceNotFound(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryBillingRepo()
	repo.addCustomer(1)
	svc, _ := newTestService(repo)

	require.ErrorIs(t, svc.DeleteInvoice(ctx, 99), ErrNotFound)
}

func TestRecordInvoicePaymentDerivesStatus(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryBillingRepo()
	repo.addCustomer(1)
	svc, _ := newTestService(repo)

	inv, err := svc.CreateInvoice(ctx, invoiceRequest(1))
	require.NoError(t, err)

	partial, err := svc.RecordInvoicePayment(ctx, inv.ID, dec("500"))
	require.NoError(t, err)
	require.Equal(t, StatusPartial, partial.Status)
	require.True(t, repo.outstanding[1].Equal(dec("680")), "outstanding = %s", repo.outstanding[1])

	paid, err := svc.RecordInvoicePayment(ctx, inv.ID, dec("1180"))
	require.NoError(t, err)
	require.Equal(t, StatusPaid, paid.Status)
	require.True(t, repo.outstanding[1].IsZero())

	reset, err := svc.RecordInvoicePayment(ctx, inv.ID, dec("0"))
	require.NoError(t, err)
	require.Equal(t, StatusPending, reset.Status)

	_, err = svc.RecordInvoicePayment(ctx, inv.ID, dec("-1"))
	require.ErrorIs(t, err, ErrInvalidPaidAmount)
}

func TestRecordDyeingBillPaymentDerivesStatus(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryBillingRepo()
	repo.addCustomer(1)
	svc, _ := newTestService(repo)

	bill, err := svc.CreateDyeingBill(ctx, CreateDyeingBillRequest{
		CustomerID: 1,
		Items:      []ItemInput{{Name: "Dyeing lot 14", Quantity: dec("100"), Rate: dec("12.5")}},
	})
	require.NoError(t, err)

	updated, err := svc.RecordDyeingBillPayment(ctx, bill.ID, dec("1250"))
	require.NoError(t, err)
	require.Equal(t, StatusPaid, updated.Status)
	require.True(t, repo.outstanding[1].IsZero())
}

func TestDeriveStatus(t *testing.T) {
	total := dec("100")
	require.Equal(t, StatusPending, DeriveStatus(total, dec("0")))
	require.Equal(t, StatusPartial, DeriveStatus(total, dec("0.01")))
	require.Equal(t, StatusPartial, DeriveStatus(total, dec("99.99")))
	require.Equal(t, StatusPaid, DeriveStatus(total, dec("100")))
	require.Equal(t, StatusPaid, DeriveStatus(total, dec("120")))
}
