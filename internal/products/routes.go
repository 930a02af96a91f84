package products

import (
	"github.com/go-chi/chi/v5"
)

// MountRoutes registers the product endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/products", h.list)
	r.Post("/products", h.create)
	r.Get("/products/{id}", h.show)
	r.Put("/products/{id}", h.update)
	r.Delete("/products/{id}", h.remove)
	r.Post("/products/{id}/quantity", h.adjustQuantity)
}
