package freebies

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/glowdesk/glowdesk/internal/platform/httpx"
	"github.com/glowdesk/glowdesk/internal/schemas"
	"github.com/glowdesk/glowdesk/internal/shared"
)

// Handler serves freebies and the redemption ledger.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the freebie handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := ListFreebiesRequest{Search: q.Get("search"), Available: q.Get("available") == "true"}
	freebies, err := h.service.Find(r.Context(), req)
	if err != nil {
		httpx.Fail(w, h.logger, "list freebies failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, freebies)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	freebie, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.Fail(w, h.logger, "get freebie failed", err, "freebie_id", id)
		return
	}
	httpx.JSON(w, http.StatusOK, freebie)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var input Freebie
	if err := httpx.DecodeRecord(r, schemas.Freebie, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	freebie, err := h.service.Create(r.Context(), input)
	if err != nil {
		httpx.Fail(w, h.logger, "create freebie failed", err)
		return
	}
	h.logger.Info("freebie created", "freebie_id", freebie.ID)
	httpx.JSON(w, http.StatusCreated, freebie)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var input Freebie
	if err := httpx.DecodeRecord(r, schemas.Freebie, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	freebie, err := h.service.Update(r.Context(), id, input)
	if err != nil {
		httpx.Fail(w, h.logger, "update freebie failed", err, "freebie_id", id)
		return
	}
	httpx.JSON(w, http.StatusOK, freebie)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.Delete(r.Context(), id); err != nil {
		httpx.Fail(w, h.logger, "delete freebie failed", err, "freebie_id", id)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listSent(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, to, ok, err := shared.ParseDateRange(q.Get("from"), q.Get("to"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	entries, err := h.service.ListSent(r.Context(), ListSentRequest{
		CustomerID: q.Get("customerId"),
		From:       from,
		To:         to,
		HasRange:   ok,
	})
	if err != nil {
		httpx.Fail(w, h.logger, "list freebies sent failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, entries)
}

func (h *Handler) sentToCustomer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	entries, err := h.service.SentToCustomer(r.Context(), id)
	if err != nil {
		httpx.Fail(w, h.logger, "list customer freebies failed", err, "customer_id", id)
		return
	}
	httpx.JSON(w, http.StatusOK, entries)
}

func (h *Handler) eligible(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	freebies, err := h.service.NotReceivedBy(r.Context(), id)
	if err != nil {
		httpx.Fail(w, h.logger, "list eligible freebies failed", err, "customer_id", id)
		return
	}
	httpx.JSON(w, http.StatusOK, freebies)
}
