package analytics

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/glowdesk/glowdesk/internal/freebies"
	"github.com/glowdesk/glowdesk/internal/products"
	"github.com/glowdesk/glowdesk/internal/purchases"
	"github.com/glowdesk/glowdesk/internal/schemas"
)

// Movement is one row of a fast-moving ranking.
type Movement struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	QtySold      int    `json:"qtySold"`
	RemainingQty int    `json:"remainingQty"`
}

// InventoryReport covers stock levels and sell-through.
type InventoryReport struct {
	Threshold          int                `json:"threshold"`
	LowStockProducts   []products.Product `json:"lowStockProducts"`
	LowStockFreebies   []freebies.Freebie `json:"lowStockFreebies"`
	FastMovingProducts []Movement         `json:"fastMovingProducts"`
	FastMovingFreebies []Movement         `json:"fastMovingFreebies"`
}

// Dashboard holds the headline counters.
type Dashboard struct {
	Month                 string `json:"month"`
	TotalCustomers        int    `json:"totalCustomers"`
	PurchasesThisMonth    int    `json:"purchasesThisMonth"`
	FreebiesSentThisMonth int    `json:"freebiesSentThisMonth"`
	TotalProducts         int    `json:"totalProducts"`
	LowStockProducts      int    `json:"lowStockProducts"`
	FreebiesAvailable     int    `json:"freebiesAvailable"`
}

// SalesReport is a year of monthly sales.
type SalesReport struct {
	Year   int                   `json:"year"`
	Total  float64               `json:"total"`
	Count  int                   `json:"count"`
	Months []purchases.MonthStat `json:"months"`
}

// SalesTotal is the revenue of a date range.
type SalesTotal struct {
	From  time.Time `json:"from"`
	To    time.Time `json:"to"`
	Total float64   `json:"total"`
	Count int       `json:"count"`
}

func sumMonths(months []purchases.MonthStat) float64 {
	total := decimal.Zero
	for _, m := range months {
		total = total.Add(schemas.Money(m.Total))
	}
	return total.InexactFloat64()
}
