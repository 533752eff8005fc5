package customers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/vastrabill/vastrabill/internal/gstin"
)

// RepositoryPort defines data access methods for customers.
type RepositoryPort interface {
	Create(ctx context.Context, customer Customer) (int64, error)
	Get(ctx context.Context, id int64) (*Customer, error)
	List(ctx context.Context, filter ListFilter) ([]Customer, int, error)
	Update(ctx context.Context, id int64, updates map[string]any) error
	Delete(ctx context.Context, id int64) error
	HasDocuments(ctx context.Context, id int64) (bool, error)
}

var (
	// ErrNotFound indicates the customer does not exist.
	ErrNotFound = errors.New("customers: not found")
	// ErrHasDocuments blocks deletion while invoices, dyeing bills or
	// payments still reference the customer.
	ErrHasDocuments = errors.New("customers: referenced by documents")
)

// Service handles customer master data logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Create registers a customer. A valid GSTIN fills the state field
// exactly once, and only when the caller left it empty.
func (s *Service) Create(ctx context.Context, req CreateCustomerRequest) (*Customer, error) {
	customer := Customer{
		Name:       strings.TrimSpace(req.Name),
		Phone:      deref(req.Phone),
		Email:      deref(req.Email),
		Address:    deref(req.Address),
		City:       deref(req.City),
		State:      deref(req.State),
		PostalCode: deref(req.PostalCode),
	}

	if raw := strings.TrimSpace(deref(req.GSTIN)); raw != "" {
		decoded, err := gstin.Decode(raw)
		if err != nil {
			return nil, err
		}
		customer.GSTIN = decoded.GSTIN
		if customer.State == "" {
			customer.State = decoded.StateName
		}
	}

	id, err := s.repo.Create(ctx, customer)
	if err != nil {
		return nil, fmt.Errorf("customers: create: %w", err)
	}

	return s.repo.Get(ctx, id)
}

// Get returns a single customer.
func (s *Service) Get(ctx context.Context, id int64) (*Customer, error) {
	return s.repo.Get(ctx, id)
}

// List returns customers matching the filter plus the total count.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Customer, int, error) {
	return s.repo.List(ctx, filter)
}

// Update applies partial changes. A changed GSTIN is revalidated; the
// state field is only auto-filled when it is still empty and the
// request does not set it, so a manually entered state survives.
func (s *Service) Update(ctx context.Context, id int64, req UpdateCustomerRequest) (*Customer, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]any)
	if req.Name != nil {
		updates["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Phone != nil {
		updates["phone"] = *req.Phone
	}
	if req.Email != nil {
		updates["email"] = *req.Email
	}
	if req.GSTIN != nil {
		raw := strings.TrimSpace(*req.GSTIN)
		if raw == "" {
			updates["gstin"] = ""
		} else {
			decoded, err := gstin.Decode(raw)
			if err != nil {
				return nil, err
			}
			updates["gstin"] = decoded.GSTIN
			if req.State == nil && existing.State == "" {
				updates["state"] = decoded.StateName
			}
		}
	}
	if req.Address != nil {
		updates["address"] = *req.Address
	}
	if req.City != nil {
		updates["city"] = *req.City
	}
	if req.State != nil {
		updates["state"] = *req.State
	}
	if req.PostalCode != nil {
		updates["postal_code"] = *req.PostalCode
	}

	if len(updates) == 0 {
		return existing, nil
	}

	if err := s.repo.Update(ctx, id, updates); err != nil {
		return nil, fmt.Errorf("customers: update: %w", err)
	}
	return s.repo.Get(ctx, id)
}

// Delete removes a customer unless documents still reference it.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}

	referenced, err := s.repo.HasDocuments(ctx, id)
	if err != nil {
		return fmt.Errorf("customers: check references: %w", err)
	}
	if referenced {
		return ErrHasDocuments
	}

	return s.repo.Delete(ctx, id)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
