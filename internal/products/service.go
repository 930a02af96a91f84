package products

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/cases"

	"github.com/glowdesk/glowdesk/internal/docstore"
	"github.com/glowdesk/glowdesk/internal/shared"
	"github.com/glowdesk/glowdesk/internal/validation"
)

// ServiceConfig tunes product lookups.
type ServiceConfig struct {
	LowStockThreshold int
}

// Service exposes product CRUD, lookups and stock adjustment.
type Service struct {
	repo   *Repository
	config ServiceConfig
}

// NewService constructs a Service.
func NewService(repo *Repository, cfg ServiceConfig) *Service {
	if cfg.LowStockThreshold <= 0 {
		cfg.LowStockThreshold = DefaultLowStockThreshold
	}
	return &Service{repo: repo, config: cfg}
}

// Create validates and stores a product.
func (s *Service) Create(ctx context.Context, p Product) (Product, error) {
	return s.repo.Create(ctx, p)
}

// Get returns the product with id.
func (s *Service) Get(ctx context.Context, id string) (Product, error) {
	return s.repo.Get(ctx, id)
}

// List returns every product.
func (s *Service) List(ctx context.Context) ([]Product, error) {
	return s.repo.All(ctx)
}

// Update replaces the product with id.
func (s *Service) Update(ctx context.Context, id string, p Product) (Product, error) {
	return s.repo.Update(ctx, id, p)
}

// Delete removes the product with id.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// Validate checks p without storing it.
func (s *Service) Validate(p Product) validation.Result {
	return s.repo.Validate(p)
}

// Find dispatches req to the matching lookup, or lists everything.
func (s *Service) Find(ctx context.Context, req ListProductsRequest) ([]Product, error) {
	switch {
	case req.Search != "":
		return s.SearchByName(ctx, req.Search)
	case req.Variant != "":
		return s.FindByVariant(ctx, req.Variant)
	case req.MinPrice != nil || req.MaxPrice != nil:
		if req.MinPrice == nil || req.MaxPrice == nil {
			return nil, fmt.Errorf("%w: minPrice and maxPrice must be given together", shared.ErrBadRequest)
		}
		return s.PriceRange(ctx, *req.MinPrice, *req.MaxPrice)
	case req.LowStock:
		return s.LowInventory(ctx, 0)
	}
	return s.List(ctx)
}

// SearchByName matches term case-insensitively against the product name.
func (s *Service) SearchByName(ctx context.Context, term string) ([]Product, error) {
	all, err := s.repo.All(ctx)
	if err != nil {
		return nil, err
	}
	fold := cases.Fold()
	needle := fold.String(strings.TrimSpace(term))
	out := make([]Product, 0)
	for _, p := range all {
		if strings.Contains(fold.String(p.Name), needle) {
			out = append(out, p)
		}
	}
	return out, nil
}

// FindByVariant returns products with an exact variant.
func (s *Service) FindByVariant(ctx context.Context, variant string) ([]Product, error) {
	return s.repo.Query(ctx, []docstore.Filter{docstore.Where("variant", docstore.OpEq, variant)}, docstore.QueryOptions{})
}

// PriceRange returns products priced within [lo, hi].
func (s *Service) PriceRange(ctx context.Context, lo, hi float64) ([]Product, error) {
	if lo > hi {
		return nil, fmt.Errorf("%w: minPrice exceeds maxPrice", shared.ErrBadRequest)
	}
	return s.repo.Query(ctx, []docstore.Filter{
		docstore.Where("price", docstore.OpGte, lo),
		docstore.Where("price", docstore.OpLte, hi),
	}, docstore.QueryOptions{OrderBy: "price"})
}

// LowInventory returns products with qty at or below threshold. A threshold
// of zero or less uses the configured default.
func (s *Service) LowInventory(ctx context.Context, threshold int) ([]Product, error) {
	if threshold <= 0 {
		threshold = s.config.LowStockThreshold
	}
	return s.repo.Query(ctx, []docstore.Filter{docstore.Where("qty", docstore.OpLte, threshold)}, docstore.QueryOptions{OrderBy: "qty"})
}

// AdjustQuantity adds change (which may be negative) to the product's qty.
// The product is left untouched and ErrNegativeStock returned when the
// result would be below zero.
func (s *Service) AdjustQuantity(ctx context.Context, id string, change int) (Product, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return Product{}, err
	}
	next := p.Qty + change
	if next < 0 {
		return Product{}, fmt.Errorf("%w: product %s has %d, change %d", ErrNegativeStock, id, p.Qty, change)
	}
	p.Qty = next
	return s.repo.Update(ctx, id, p)
}
