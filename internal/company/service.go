package company

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/vastrabill/vastrabill/internal/gstin"
)

// RepositoryPort defines data access for the company profile.
type RepositoryPort interface {
	Get(ctx context.Context) (*Profile, error)
	Save(ctx context.Context, profile Profile) error
}

// ErrNotConfigured indicates no profile row exists yet.
var ErrNotConfigured = errors.New("company: profile not configured")

// Service handles company profile logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Get returns the profile, falling back to defaults before first save.
func (s *Service) Get(ctx context.Context) (*Profile, error) {
	profile, err := s.repo.Get(ctx)
	if errors.Is(err, ErrNotConfigured) {
		p := DefaultProfile()
		return &p, nil
	}
	if err != nil {
		return nil, fmt.Errorf("company: get profile: %w", err)
	}
	return profile, nil
}

// Update applies partial changes and persists the whole profile.
func (s *Service) Update(ctx context.Context, input UpdateProfileInput) (*Profile, error) {
	profile, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		profile.Name = strings.TrimSpace(*input.Name)
	}
	if input.GSTIN != nil {
		id := strings.TrimSpace(*input.GSTIN)
		if id != "" {
			decoded, err := gstin.Decode(id)
			if err != nil {
				return nil, err
			}
			id = decoded.GSTIN
		}
		profile.GSTIN = id
	}
	if input.Address != nil {
		profile.Address = *input.Address
	}
	if input.Phone != nil {
		profile.Phone = *input.Phone
	}
	if input.Email != nil {
		profile.Email = *input.Email
	}
	if input.InvoicePrefix != nil {
		profile.InvoicePrefix = strings.ToUpper(strings.TrimSpace(*input.InvoicePrefix))
	}
	if input.DyeingBillPrefix != nil {
		profile.DyeingBillPrefix = strings.ToUpper(strings.TrimSpace(*input.DyeingBillPrefix))
	}

	if err := s.repo.Save(ctx, *profile); err != nil {
		return nil, fmt.Errorf("company: save profile: %w", err)
	}
	return profile, nil
}

// NumberingPrefixes returns the configured document prefixes.
func (s *Service) NumberingPrefixes(ctx context.Context) (invoice, dyeingBill string, err error) {
	profile, err := s.Get(ctx)
	if err != nil {
		return "", "", err
	}
	return profile.InvoicePrefix, profile.DyeingBillPrefix, nil
}
