package customers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/glowdesk/glowdesk/internal/platform/httpx"
	"github.com/glowdesk/glowdesk/internal/schemas"
	"github.com/glowdesk/glowdesk/internal/shared"
)

// Handler serves the customer API.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the customer handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := ListCustomersRequest{
		Search:  q.Get("search"),
		Pincode: q.Get("pincode"),
		Phone:   q.Get("phone"),
		Email:   q.Get("email"),
	}
	var err error
	if req.BirthdayMonth, err = monthParam(q.Get("birthdayMonth")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if req.AnniversaryMonth, err = monthParam(q.Get("anniversaryMonth")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := httpx.ValidateStruct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	customers, err := h.service.Find(r.Context(), req)
	if err != nil {
		httpx.Fail(w, h.logger, "list customers failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, customers)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	customer, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.Fail(w, h.logger, "get customer failed", err, "customer_id", id)
		return
	}
	httpx.JSON(w, http.StatusOK, customer)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var input Customer
	if err := httpx.DecodeRecord(r, schemas.Customer, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	customer, err := h.service.Create(r.Context(), input)
	if err != nil {
		httpx.Fail(w, h.logger, "create customer failed", err)
		return
	}
	h.logger.Info("customer created", "customer_id", customer.ID)
	httpx.JSON(w, http.StatusCreated, customer)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var input Customer
	if err := httpx.DecodeRecord(r, schemas.Customer, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	customer, err := h.service.Update(r.Context(), id, input)
	if err != nil {
		httpx.Fail(w, h.logger, "update customer failed", err, "customer_id", id)
		return
	}
	httpx.JSON(w, http.StatusOK, customer)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.Delete(r.Context(), id); err != nil {
		httpx.Fail(w, h.logger, "delete customer failed", err, "customer_id", id)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func monthParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	month, err := strconv.Atoi(raw)
	if err != nil {
		return 0, shared.ErrBadRequest
	}
	return month, nil
}
