package analytichttp

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/glowdesk/glowdesk/internal/analytics"
	"github.com/glowdesk/glowdesk/internal/analytics/export"
	"github.com/glowdesk/glowdesk/internal/customers"
	"github.com/glowdesk/glowdesk/internal/platform/httpx"
	"github.com/glowdesk/glowdesk/internal/shared"
)

const requestTimeout = 5 * time.Second

// AnalyticsService defines the report contract used by the handler.
type AnalyticsService interface {
	Dashboard(ctx context.Context) (analytics.Dashboard, error)
	Inventory(ctx context.Context, threshold, limit int) (analytics.InventoryReport, error)
	Sales(ctx context.Context, year int) (analytics.SalesReport, error)
	TotalSales(ctx context.Context, from, to time.Time) (analytics.SalesTotal, error)
	CustomersWithoutPurchases(ctx context.Context) ([]customers.Customer, error)
}

// Handler serves the analytics endpoints.
type Handler struct {
	logger  *slog.Logger
	service AnalyticsService
	csvPool sync.Pool
	now     func() time.Time
}

// NewHandler constructs the analytics HTTP handler.
func NewHandler(logger *slog.Logger, service AnalyticsService) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{logger: logger, service: service, now: time.Now}
	h.csvPool.New = func() any { return new(bytes.Buffer) }
	return h
}

// WithNow overrides the handler clock for testing.
func (h *Handler) WithNow(fn func() time.Time) {
	if fn != nil {
		h.now = fn
	}
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	dashboard, err := h.service.Dashboard(ctx)
	if err != nil {
		httpx.Fail(w, h.logger, "load dashboard failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, dashboard)
}

func (h *Handler) handleInventory(w http.ResponseWriter, r *http.Request) {
	threshold, limit, err := inventoryParams(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	report, err := h.service.Inventory(ctx, threshold, limit)
	if err != nil {
		httpx.Fail(w, h.logger, "load inventory report failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) handleInventoryCSV(w http.ResponseWriter, r *http.Request) {
	threshold, limit, err := inventoryParams(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	report, err := h.service.Inventory(ctx, threshold, limit)
	if err != nil {
		httpx.Fail(w, h.logger, "load inventory report failed", err)
		return
	}
	h.writeCSV(w, "inventory.csv", func(buf *bytes.Buffer) error {
		return export.WriteInventoryCSV(buf, report)
	})
}

func (h *Handler) handleSales(w http.ResponseWriter, r *http.Request) {
	year, err := h.yearParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	report, err := h.service.Sales(ctx, year)
	if err != nil {
		httpx.Fail(w, h.logger, "load sales report failed", err, "year", year)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) handleSalesCSV(w http.ResponseWriter, r *http.Request) {
	year, err := h.yearParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	report, err := h.service.Sales(ctx, year)
	if err != nil {
		httpx.Fail(w, h.logger, "load sales report failed", err, "year", year)
		return
	}
	h.writeCSV(w, fmt.Sprintf("sales-%d.csv", year), func(buf *bytes.Buffer) error {
		return export.WriteSalesCSV(buf, report)
	})
}

func (h *Handler) handleTotalSales(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, to, ok, err := shared.ParseDateRange(q.Get("from"), q.Get("to"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if !ok {
		from, to = shared.MonthBounds(h.now().UTC())
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	total, err := h.service.TotalSales(ctx, from, to)
	if err != nil {
		httpx.Fail(w, h.logger, "load total sales failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, total)
}

func (h *Handler) handleCustomersWithoutPurchases(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	list, err := h.service.CustomersWithoutPurchases(ctx)
	if err != nil {
		httpx.Fail(w, h.logger, "load customers without purchases failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) writeCSV(w http.ResponseWriter, filename string, fill func(*bytes.Buffer) error) {
	buf := h.csvPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer h.csvPool.Put(buf)
	if err := fill(buf); err != nil {
		httpx.Fail(w, h.logger, "write csv failed", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.Error("stream csv", "error", err)
	}
}

func (h *Handler) yearParam(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("year")
	if raw == "" {
		return h.now().UTC().Year(), nil
	}
	year, err := strconv.Atoi(raw)
	if err != nil || year < 1970 || year > 9999 {
		return 0, fmt.Errorf("%w: invalid year %q", shared.ErrBadRequest, raw)
	}
	return year, nil
}

func inventoryParams(r *http.Request) (int, int, error) {
	q := r.URL.Query()
	threshold, err := optionalInt(q.Get("threshold"), "threshold")
	if err != nil {
		return 0, 0, err
	}
	limit, err := optionalInt(q.Get("limit"), "limit")
	if err != nil {
		return 0, 0, err
	}
	return threshold, limit, nil
}

func optionalInt(raw, name string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%w: invalid %s %q", shared.ErrBadRequest, name, raw)
	}
	return v, nil
}
