package analytichttp

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/glowdesk/glowdesk/internal/platform/httpx"
	"github.com/glowdesk/glowdesk/internal/shared"
)

// MountRoutes registers analytics endpoints onto the router. CSV exports are
// rate limited per user.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(10, time.Minute,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Problem(w, http.StatusTooManyRequests, "Too Many Requests", "export limit reached, retry in a minute")
		}),
	)

	r.Get("/analytics/dashboard", h.handleDashboard)
	r.Get("/analytics/inventory", h.handleInventory)
	r.Get("/analytics/sales", h.handleSales)
	r.Get("/analytics/total-sales", h.handleTotalSales)
	r.Get("/analytics/customers-without-purchases", h.handleCustomersWithoutPurchases)
	r.Group(func(gr chi.Router) {
		gr.Use(limiter)
		gr.Get("/analytics/inventory.csv", h.handleInventoryCSV)
		gr.Get("/analytics/sales.csv", h.handleSalesCSV)
	})
}

func rateLimitKey(r *http.Request) (string, error) {
	if user := strings.TrimSpace(shared.UserIDFromContext(r.Context())); user != "" {
		return "user:" + user, nil
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}
