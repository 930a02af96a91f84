package purchases

import (
	"github.com/go-chi/chi/v5"
)

// MountRoutes registers the purchase endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/purchases", h.list)
	r.Post("/purchases", h.create)
	r.Get("/purchases/{id}", h.show)
	r.Delete("/purchases/{id}", h.remove)
	r.Get("/customers/{id}/purchases", h.byCustomer)
}
