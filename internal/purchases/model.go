package purchases

import (
	"time"

	"github.com/glowdesk/glowdesk/internal/docstore"
	"github.com/glowdesk/glowdesk/internal/repository"
	"github.com/glowdesk/glowdesk/internal/schemas"
)

// LineItem is one product line of a stored purchase. Name and Variant are
// snapshots taken at purchase time.
type LineItem struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name,omitempty"`
	Variant   string  `json:"variant,omitempty"`
	Price     float64 `json:"price"`
	Qty       int     `json:"qty"`
	Subtotal  float64 `json:"subtotal"`
}

// Purchase is a stored sale.
type Purchase struct {
	repository.Meta
	CustomerID   string     `json:"customerId"`
	Products     []LineItem `json:"products"`
	TotalAmount  float64    `json:"totalAmount"`
	FreebieID    string     `json:"freebieId,omitempty"`
	PurchaseDate time.Time  `json:"purchaseDate"`
}

// MonthStat summarises one calendar month of sales.
type MonthStat struct {
	Month   int     `json:"month"`
	Total   float64 `json:"total"`
	Count   int     `json:"count"`
	Average float64 `json:"average"`
}

// Repository is the purchase collection.
type Repository = repository.Repository[Purchase]

// NewRepository binds the purchase schema to store.
func NewRepository(store docstore.Store) *Repository {
	return repository.New[Purchase](store, schemas.PurchasesCollection, schemas.Purchase)
}
