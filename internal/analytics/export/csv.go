package export

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/glowdesk/glowdesk/internal/analytics"
)

// WriteSalesCSV serialises a year of monthly sales.
func WriteSalesCSV(w io.Writer, report analytics.SalesReport) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write([]string{"Month", "Purchases", "Total", "Average"}); err != nil {
		return err
	}
	for _, m := range report.Months {
		if err := writer.Write([]string{
			time.Date(report.Year, time.Month(m.Month), 1, 0, 0, 0, 0, time.UTC).Format("2006-01"),
			strconv.Itoa(m.Count),
			formatFloat(m.Total),
			formatFloat(m.Average),
		}); err != nil {
			return err
		}
	}
	if err := writer.Write([]string{"Total", strconv.Itoa(report.Count), formatFloat(report.Total), ""}); err != nil {
		return err
	}
	writer.Flush()
	return writer.Error()
}

// WriteInventoryCSV emits low-stock and fast-moving rows in one sheet.
func WriteInventoryCSV(w io.Writer, report analytics.InventoryReport) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()
	if err := writer.Write([]string{"Section", "ID", "Name", "Qty Sold", "Remaining"}); err != nil {
		return err
	}
	for _, p := range report.LowStockProducts {
		if err := writer.Write([]string{"low_stock_product", p.ID, p.Label(), "", strconv.Itoa(p.Qty)}); err != nil {
			return err
		}
	}
	for _, f := range report.LowStockFreebies {
		if err := writer.Write([]string{"low_stock_freebie", f.ID, f.Name, "", strconv.Itoa(f.AvailableQty)}); err != nil {
			return err
		}
	}
	for _, section := range []struct {
		name string
		rows []analytics.Movement
	}{
		{"fast_moving_product", report.FastMovingProducts},
		{"fast_moving_freebie", report.FastMovingFreebies},
	} {
		for _, m := range section.rows {
			if err := writer.Write([]string{section.name, m.ID, m.Name, strconv.Itoa(m.QtySold), strconv.Itoa(m.RemainingQty)}); err != nil {
				return err
			}
		}
	}
	writer.Flush()
	return writer.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
