package customers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vastrabill/vastrabill/internal/gstin"
)

type memoryCustomerRepo struct {
	customers  map[int64]*Customer
	referenced map[int64]bool
	nextID     int64
}

func newMemoryCustomerRepo() *memoryCustomerRepo {
	return &memoryCustomerRepo{
		customers:  make(map[int64]*Customer),
		referenced: make(map[int64]bool),
	}
}

func (r *memoryCustomerRepo) Create(ctx context.Context, c Customer) (int64, error) {
	r.nextID++
	c.ID = r.nextID
	r.customers[c.ID] = &c
	return c.ID, nil
}

func (r *memoryCustomerRepo) Get(ctx context.Context, id int64) (*Customer, error) {
	c, ok := r.customers[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *c
	return &copied, nil
}

func (r *memoryCustomerRepo) List(ctx context.Context, filter ListFilter) ([]Customer, int, error) {
	var out []Customer
	for _, c := range r.customers {
		out = append(out, *c)
	}
	return out, len(out), nil
}

func (r *memoryCustomerRepo) Update(ctx context.Context, id int64, updates map[string]any) error {
	c, ok := r.customers[id]
	if !ok {
		return ErrNotFound
	}
	for column, value := range updates {
		s, _ := value.(string)
		switch column {
		case "name":
			c.Name = s
		case "phone":
			c.Phone = s
		case "email":
			c.Email = s
		case "gstin":
			c.GSTIN = s
		case "address":
			c.Address = s
		case "city":
			c.City = s
		case "state":
			c.State = s
		case "postal_code":
			c.PostalCode = s
		}
	}
	return nil
}

func (r *memoryCustomerRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := r.customers[id]; !ok {
		return ErrNotFound
	}
	delete(r.customers, id)
	return nil
}

func (r *memoryCustomerRepo) HasDocuments(ctx context.Context, id int64) (bool, error) {
	return r.referenced[id], nil
}

func strPtr(s string) *string { return &s }

func TestCreateFillsStateFromGSTIN(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemoryCustomerRepo())

	customer, err := svc.Create(ctx, CreateCustomerRequest{
		Name:  "Patil Fabrics",
		GSTIN: strPtr("27aaaaa0000a1z5"),
	})
	require.NoError(t, err)
	require.Equal(t, "27AAAAA0000A1Z5", customer.GSTIN)
	require.Equal(t, "Maharashtra", customer.State)
}

func TestCreateKeepsManualState(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemoryCustomerRepo())

	customer, err := svc.Create(ctx, CreateCustomerRequest{
		Name:  "Patil Fabrics",
		GSTIN: strPtr("27AAAAA0000A1Z5"),
		State: strPtr("Goa"),
	})
	require.NoError(t, err)
	require.Equal(t, "Goa", customer.State)
}

func TestCreateRejectsInvalidGSTIN(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemoryCustomerRepo())

	_, err := svc.Create(ctx, CreateCustomerRequest{
		Name:  "Patil Fabrics",
		GSTIN: strPtr("99AAAAA0000A1Z5"),
	})
	require.ErrorIs(t, err, gstin.ErrUnknownState)
}

func TestUpdateAutoFillsStateOnlyWhenEmpty(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryCustomerRepo()
	svc := NewService(repo)

	customer, err := svc.Create(ctx, CreateCustomerRequest{Name: "Patil Fabrics"})
	require.NoError(t, err)
	require.Empty(t, customer.State)

	updated, err := svc.Update(ctx, customer.ID, UpdateCustomerRequest{
		GSTIN: strPtr("29ABCDE1234F1Z5"),
	})
	require.NoError(t, err)
	require.Equal(t, "Karnataka", updated.State)

	// A later GSTIN change must not overwrite the filled state.
	updated, err = svc.Update(ctx, customer.ID, UpdateCustomerRequest{
		GSTIN: strPtr("27AAAAA0000A1Z5"),
	})
	require.NoError(t, err)
	require.Equal(t, "Karnataka", updated.State)
}

func TestUpdateExplicitStateWins(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemoryCustomerRepo())

	customer, err := svc.Create(ctx, CreateCustomerRequest{Name: "Patil Fabrics"})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, customer.ID, UpdateCustomerRequest{
		GSTIN: strPtr("27AAAAA0000A1Z5"),
		State: strPtr("Karnataka"),
	})
	require.NoError(t, err)
	require.Equal(t, "Karnataka", updated.State)
}

func TestDeleteBlockedWhileReferenced(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryCustomerRepo()
	svc := NewService(repo)

	customer, err := svc.Create(ctx, CreateCustomerRequest{Name: "Patil Fabrics"})
	require.NoError(t, err)

	repo.referenced[customer.ID] = true
	require.ErrorIs(t, svc.Delete(ctx, customer.ID), ErrHasDocuments)

	repo.referenced[customer.ID] = false
	require.NoError(t, svc.Delete(ctx, customer.ID))

	_, err = svc.Get(ctx, customer.ID)
	require.ErrorIs(t, err, ErrNotFound)
}
