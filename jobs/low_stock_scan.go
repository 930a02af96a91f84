package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/glowdesk/glowdesk/internal/analytics"
	jobmetrics "github.com/glowdesk/glowdesk/internal/jobs"
)

// Reports is the analytics surface the scan reads and warms.
type Reports interface {
	Inventory(ctx context.Context, threshold, limit int) (analytics.InventoryReport, error)
	Dashboard(ctx context.Context) (analytics.Dashboard, error)
}

// LowStockScanJob logs every low-stock product and freebie, publishes the
// counts as gauges and leaves the analytics cache warm.
type LowStockScanJob struct {
	Reports Reports
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	Timeout time.Duration
}

// NewLowStockScanJob wires dependencies for the scan handler.
func NewLowStockScanJob(reports Reports, logger *slog.Logger, metrics *jobmetrics.Metrics) *LowStockScanJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &LowStockScanJob{Reports: reports, Logger: logger, Metrics: metrics, Timeout: 30 * time.Second}
}

// Handle processes TaskLowStockScan tasks.
func (j *LowStockScanJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Reports == nil {
		return errors.New("low stock scan: handler not configured")
	}
	var payload LowStockScanPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("low stock scan: decode payload: %v: %w", err, asynq.SkipRetry)
		}
	}

	tracker := j.Metrics.Track(TaskLowStockScan)
	defer func() {
		err = tracker.End(err)
	}()

	if j.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.Timeout)
		defer cancel()
	}

	report, err := j.Reports.Inventory(ctx, payload.Threshold, payload.Limit)
	if err != nil {
		return fmt.Errorf("low stock scan: inventory report: %w", err)
	}
	for _, p := range report.LowStockProducts {
		j.Logger.Warn("low stock product", "product_id", p.ID, "name", p.Label(), "qty", p.Qty)
	}
	for _, f := range report.LowStockFreebies {
		j.Logger.Warn("low stock freebie", "freebie_id", f.ID, "name", f.Name, "available_qty", f.AvailableQty)
	}
	j.Metrics.SetLowStock("product", len(report.LowStockProducts))
	j.Metrics.SetLowStock("freebie", len(report.LowStockFreebies))

	if _, err := j.Reports.Dashboard(ctx); err != nil {
		return fmt.Errorf("low stock scan: warm dashboard: %w", err)
	}
	j.Logger.Info("low stock scan completed",
		"threshold", report.Threshold,
		"products", len(report.LowStockProducts),
		"freebies", len(report.LowStockFreebies))
	return nil
}
