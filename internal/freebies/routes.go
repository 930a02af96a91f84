package freebies

import (
	"github.com/go-chi/chi/v5"
)

// MountRoutes registers the freebie and ledger endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/freebies", h.list)
	r.Post("/freebies", h.create)
	r.Get("/freebies/{id}", h.show)
	r.Put("/freebies/{id}", h.update)
	r.Delete("/freebies/{id}", h.remove)
	r.Get("/freebies-sent", h.listSent)
	r.Get("/customers/{id}/freebies", h.sentToCustomer)
	r.Get("/customers/{id}/freebies/eligible", h.eligible)
}
