package purchases

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/glowdesk/glowdesk/internal/platform/httpx"
	"github.com/glowdesk/glowdesk/internal/schemas"
	"github.com/glowdesk/glowdesk/internal/shared"
)

// IdempotencyHeader carries the client key for POST /purchases.
const IdempotencyHeader = "Idempotency-Key"

// Handler serves the purchase API.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the purchase handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, to, ok, err := shared.ParseDateRange(q.Get("from"), q.Get("to"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	list, err := h.service.Find(r.Context(), ListPurchasesRequest{
		CustomerID:  q.Get("customerId"),
		From:        from,
		To:          to,
		HasRange:    ok,
		WithFreebie: q.Get("withFreebie") == "true",
	})
	if err != nil {
		httpx.Fail(w, h.logger, "list purchases failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	purchase, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.Fail(w, h.logger, "get purchase failed", err, "purchase_id", id)
		return
	}
	httpx.JSON(w, http.StatusOK, purchase)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreatePurchaseRequest
	if err := httpx.DecodeRecord(r, schemas.PurchaseDraft, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	key := r.Header.Get(IdempotencyHeader)
	if key == "" {
		key = shared.IdempotencyKeyFromContext(r.Context())
	}
	purchase, err := h.service.Create(r.Context(), req, key)
	if err != nil {
		httpx.Fail(w, h.logger, "create purchase failed", err)
		return
	}
	h.logger.Info("purchase created", "purchase_id", purchase.ID, "customer_id", purchase.CustomerID, "total", purchase.TotalAmount)
	httpx.JSON(w, http.StatusCreated, purchase)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.Delete(r.Context(), id); err != nil {
		httpx.Fail(w, h.logger, "delete purchase failed", err, "purchase_id", id)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) byCustomer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	list, err := h.service.ByCustomer(r.Context(), id)
	if err != nil {
		httpx.Fail(w, h.logger, "list customer purchases failed", err, "customer_id", id)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}
