package products

import (
	"fmt"

	"github.com/glowdesk/glowdesk/internal/docstore"
	"github.com/glowdesk/glowdesk/internal/repository"
	"github.com/glowdesk/glowdesk/internal/schemas"
	"github.com/glowdesk/glowdesk/internal/shared"
)

// ErrNegativeStock triggered when an adjustment would leave qty below zero.
var ErrNegativeStock = fmt.Errorf("products: negative stock not allowed: %w", shared.ErrConflict)

// DefaultLowStockThreshold applies when callers pass no threshold.
const DefaultLowStockThreshold = 5

// Product is a sellable item with on-hand quantity.
type Product struct {
	repository.Meta
	Name     string  `json:"name"`
	Variant  string  `json:"variant,omitempty"`
	Category string  `json:"category"`
	Price    float64 `json:"price"`
	Qty      int     `json:"qty"`
}

// Label is the display name including the variant.
func (p Product) Label() string {
	if p.Variant == "" {
		return p.Name
	}
	return p.Name + " (" + p.Variant + ")"
}

// Repository is the product collection.
type Repository = repository.Repository[Product]

// NewRepository binds the product schema to store.
func NewRepository(store docstore.Store) *Repository {
	return repository.New[Product](store, schemas.ProductsCollection, schemas.Product)
}
