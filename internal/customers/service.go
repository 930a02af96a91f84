package customers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/glowdesk/glowdesk/internal/docstore"
	"github.com/glowdesk/glowdesk/internal/schemas"
	"github.com/glowdesk/glowdesk/internal/shared"
	"github.com/glowdesk/glowdesk/internal/validation"
)

// Service exposes customer CRUD and lookups.
type Service struct {
	repo *Repository
}

// NewService constructs a Service.
func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// Create validates and stores a new customer.
func (s *Service) Create(ctx context.Context, c Customer) (Customer, error) {
	return s.repo.Create(ctx, c)
}

// Get returns the customer with id.
func (s *Service) Get(ctx context.Context, id string) (Customer, error) {
	return s.repo.Get(ctx, id)
}

// List returns every customer.
func (s *Service) List(ctx context.Context) ([]Customer, error) {
	return s.repo.All(ctx)
}

// Update replaces the customer with id.
func (s *Service) Update(ctx context.Context, id string, c Customer) (Customer, error) {
	return s.repo.Update(ctx, id, c)
}

// Delete removes the customer with id.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// Validate checks c without storing it.
func (s *Service) Validate(c Customer) validation.Result {
	return s.repo.Validate(c)
}

// Find dispatches req to the matching lookup, or lists everything.
func (s *Service) Find(ctx context.Context, req ListCustomersRequest) ([]Customer, error) {
	switch {
	case req.Search != "":
		return s.SearchByName(ctx, req.Search)
	case req.Pincode != "":
		return s.FindByPincode(ctx, req.Pincode)
	case req.Phone != "":
		return s.FindByPhone(ctx, req.Phone)
	case req.Email != "":
		return s.FindByEmail(ctx, req.Email)
	case req.BirthdayMonth != 0:
		return s.BirthdaysInMonth(ctx, req.BirthdayMonth)
	case req.AnniversaryMonth != 0:
		return s.AnniversariesInMonth(ctx, req.AnniversaryMonth)
	}
	return s.List(ctx)
}

// SearchByName matches term case-insensitively against first or last name.
func (s *Service) SearchByName(ctx context.Context, term string) ([]Customer, error) {
	all, err := s.repo.All(ctx)
	if err != nil {
		return nil, err
	}
	fold := cases.Fold()
	needle := fold.String(strings.TrimSpace(term))
	out := make([]Customer, 0)
	for _, c := range all {
		if strings.Contains(fold.String(c.FirstName), needle) || strings.Contains(fold.String(c.LastName), needle) {
			out = append(out, c)
		}
	}
	return out, nil
}

// FindByPincode returns customers with an exact pincode.
func (s *Service) FindByPincode(ctx context.Context, pincode string) ([]Customer, error) {
	return s.repo.Query(ctx, []docstore.Filter{docstore.Where("pincode", docstore.OpEq, pincode)}, docstore.QueryOptions{})
}

// FindByPhone returns customers with an exact phone number.
func (s *Service) FindByPhone(ctx context.Context, phone string) ([]Customer, error) {
	return s.repo.Query(ctx, []docstore.Filter{docstore.Where("phone", docstore.OpEq, phone)}, docstore.QueryOptions{})
}

// FindByEmail returns customers with an exact email address.
func (s *Service) FindByEmail(ctx context.Context, email string) ([]Customer, error) {
	return s.repo.Query(ctx, []docstore.Filter{docstore.Where("email", docstore.OpEq, email)}, docstore.QueryOptions{})
}

// BirthdaysInMonth returns customers whose dob falls in month (1-12).
func (s *Service) BirthdaysInMonth(ctx context.Context, month int) ([]Customer, error) {
	return s.inMonth(ctx, month, func(c Customer) string { return c.DOB })
}

// AnniversariesInMonth returns customers whose anniversary falls in month (1-12).
func (s *Service) AnniversariesInMonth(ctx context.Context, month int) ([]Customer, error) {
	return s.inMonth(ctx, month, func(c Customer) string { return c.Anniversary })
}

func (s *Service) inMonth(ctx context.Context, month int, date func(Customer) string) ([]Customer, error) {
	if month < 1 || month > 12 {
		return nil, fmt.Errorf("%w: month must be between 1 and 12", shared.ErrBadRequest)
	}
	all, err := s.repo.All(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Customer, 0)
	for _, c := range all {
		raw := date(c)
		if raw == "" {
			continue
		}
		t, err := schemas.ParseDate(raw)
		if err != nil {
			continue
		}
		if t.Month() == time.Month(month) {
			out = append(out, c)
		}
	}
	return out, nil
}
