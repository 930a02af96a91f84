package products

// ListProductsRequest selects a product lookup. MinPrice and MaxPrice apply
// together; LowStock lists products at or below the threshold.
type ListProductsRequest struct {
	Search   string   `json:"search,omitempty"`
	Variant  string   `json:"variant,omitempty"`
	MinPrice *float64 `json:"minPrice,omitempty" validate:"omitempty,gte=0"`
	MaxPrice *float64 `json:"maxPrice,omitempty" validate:"omitempty,gte=0"`
	LowStock bool     `json:"lowStock,omitempty"`
}

// AdjustQuantityRequest carries a signed stock change.
type AdjustQuantityRequest struct {
	Change *int `json:"change" validate:"required"`
}
