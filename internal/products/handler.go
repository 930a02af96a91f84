package products

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/glowdesk/glowdesk/internal/platform/httpx"
	"github.com/glowdesk/glowdesk/internal/schemas"
	"github.com/glowdesk/glowdesk/internal/shared"
)

// Handler serves the product API.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the product handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := ListProductsRequest{
		Search:   q.Get("search"),
		Variant:  q.Get("variant"),
		LowStock: q.Get("lowStock") == "true",
	}
	var err error
	if req.MinPrice, err = floatParam(q.Get("minPrice")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if req.MaxPrice, err = floatParam(q.Get("maxPrice")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := httpx.ValidateStruct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	products, err := h.service.Find(r.Context(), req)
	if err != nil {
		httpx.Fail(w, h.logger, "list products failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, products)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	product, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.Fail(w, h.logger, "get product failed", err, "product_id", id)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var input Product
	if err := httpx.DecodeRecord(r, schemas.Product, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	product, err := h.service.Create(r.Context(), input)
	if err != nil {
		httpx.Fail(w, h.logger, "create product failed", err)
		return
	}
	h.logger.Info("product created", "product_id", product.ID)
	httpx.JSON(w, http.StatusCreated, product)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var input Product
	if err := httpx.DecodeRecord(r, schemas.Product, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	product, err := h.service.Update(r.Context(), id, input)
	if err != nil {
		httpx.Fail(w, h.logger, "update product failed", err, "product_id", id)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

func (h *Handler) adjustQuantity(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req AdjustQuantityRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	product, err := h.service.AdjustQuantity(r.Context(), id, *req.Change)
	if err != nil {
		httpx.Fail(w, h.logger, "adjust quantity failed", err, "product_id", id)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.Delete(r.Context(), id); err != nil {
		httpx.Fail(w, h.logger, "delete product failed", err, "product_id", id)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func floatParam(raw string) (*float64, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, shared.ErrBadRequest
	}
	return &v, nil
}
