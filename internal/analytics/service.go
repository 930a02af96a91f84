package analytics

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/glowdesk/glowdesk/internal/customers"
	"github.com/glowdesk/glowdesk/internal/freebies"
	"github.com/glowdesk/glowdesk/internal/products"
	"github.com/glowdesk/glowdesk/internal/purchases"
	"github.com/glowdesk/glowdesk/internal/shared"
)

// CustomerSource lists customers.
type CustomerSource interface {
	List(ctx context.Context) ([]customers.Customer, error)
}

// ProductSource lists products.
type ProductSource interface {
	List(ctx context.Context) ([]products.Product, error)
}

// FreebieSource lists freebies and the redemption ledger.
type FreebieSource interface {
	List(ctx context.Context) ([]freebies.Freebie, error)
	AllSent(ctx context.Context) ([]freebies.Sent, error)
}

// PurchaseSource lists purchases.
type PurchaseSource interface {
	List(ctx context.Context) ([]purchases.Purchase, error)
}

// Sources groups the collections analytics reads.
type Sources struct {
	Customers CustomerSource
	Products  ProductSource
	Freebies  FreebieSource
	Purchases PurchaseSource
}

// Config holds report defaults.
type Config struct {
	DashboardLowStockThreshold int
	InventoryLowStockThreshold int
	FastMovingLimit            int
}

// Service computes reports over the stored collections and caches them.
type Service struct {
	src   Sources
	cache *Cache
	cfg   Config
	now   func() time.Time
}

// NewService wires the sources with a cache helper. cache may be nil.
func NewService(src Sources, cache *Cache, cfg Config) *Service {
	if cfg.DashboardLowStockThreshold <= 0 {
		cfg.DashboardLowStockThreshold = products.DefaultLowStockThreshold
	}
	if cfg.InventoryLowStockThreshold <= 0 {
		cfg.InventoryLowStockThreshold = 10
	}
	if cfg.FastMovingLimit <= 0 {
		cfg.FastMovingLimit = 5
	}
	return &Service{src: src, cache: cache, cfg: cfg, now: time.Now}
}

// WithNow overrides the service clock for testing.
func (s *Service) WithNow(fn func() time.Time) {
	if fn != nil {
		s.now = fn
	}
}

// Config returns the effective report defaults.
func (s *Service) Config() Config {
	return s.cfg
}

// Invalidate drops every cached report. It matches repository.ChangeHook.
func (s *Service) Invalidate(ctx context.Context, _ string) {
	_ = s.cache.Bump(ctx)
}

type snapshot struct {
	customers []customers.Customer
	products  []products.Product
	freebies  []freebies.Freebie
	purchases []purchases.Purchase
	sent      []freebies.Sent
}

type loadSet struct {
	customers, products, freebies, purchases, sent bool
}

// load reads the requested collections in parallel.
func (s *Service) load(ctx context.Context, want loadSet) (snapshot, error) {
	var snap snapshot
	g, ctx := errgroup.WithContext(ctx)
	if want.customers {
		g.Go(func() error {
			list, err := s.src.Customers.List(ctx)
			snap.customers = list
			return err
		})
	}
	if want.products {
		g.Go(func() error {
			list, err := s.src.Products.List(ctx)
			snap.products = list
			return err
		})
	}
	if want.freebies {
		g.Go(func() error {
			list, err := s.src.Freebies.List(ctx)
			snap.freebies = list
			return err
		})
	}
	if want.purchases {
		g.Go(func() error {
			list, err := s.src.Purchases.List(ctx)
			snap.purchases = list
			return err
		})
	}
	if want.sent {
		g.Go(func() error {
			list, err := s.src.Freebies.AllSent(ctx)
			snap.sent = list
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return snapshot{}, fmt.Errorf("analytics: load: %w", err)
	}
	return snap, nil
}

func (s *Service) cached(ctx context.Context, dest any, loader func(context.Context) (any, error), parts ...string) error {
	key, err := s.cache.BuildKey(ctx, parts...)
	if err != nil {
		return load(ctx, dest, loader)
	}
	return s.cache.FetchJSON(ctx, key, dest, loader)
}

// Inventory reports low-stock and fast-moving products and freebies. Zero
// threshold or limit falls back to the configured default.
func (s *Service) Inventory(ctx context.Context, threshold, limit int) (InventoryReport, error) {
	if threshold <= 0 {
		threshold = s.cfg.InventoryLowStockThreshold
	}
	if limit <= 0 {
		limit = s.cfg.FastMovingLimit
	}
	var report InventoryReport
	err := s.cached(ctx, &report, func(ctx context.Context) (any, error) {
		snap, err := s.load(ctx, loadSet{products: true, freebies: true, purchases: true})
		if err != nil {
			return nil, err
		}
		return buildInventory(snap, threshold, limit), nil
	}, "inventory", strconv.Itoa(threshold), strconv.Itoa(limit))
	return report, err
}

// CustomersWithoutPurchases returns customers no purchase refers to.
func (s *Service) CustomersWithoutPurchases(ctx context.Context) ([]customers.Customer, error) {
	var out []customers.Customer
	err := s.cached(ctx, &out, func(ctx context.Context) (any, error) {
		snap, err := s.load(ctx, loadSet{customers: true, purchases: true})
		if err != nil {
			return nil, err
		}
		return withoutPurchases(snap.customers, snap.purchases), nil
	}, "customers_without_purchases")
	return out, err
}

// Dashboard returns the headline counters for the current month.
func (s *Service) Dashboard(ctx context.Context) (Dashboard, error) {
	now := s.now().UTC()
	var out Dashboard
	err := s.cached(ctx, &out, func(ctx context.Context) (any, error) {
		snap, err := s.load(ctx, loadSet{customers: true, products: true, freebies: true, purchases: true, sent: true})
		if err != nil {
			return nil, err
		}
		return buildDashboard(snap, now, s.cfg.DashboardLowStockThreshold), nil
	}, "dashboard", now.Format("2006-01"))
	return out, err
}

// Sales returns the monthly breakdown of year.
func (s *Service) Sales(ctx context.Context, year int) (SalesReport, error) {
	if year <= 0 {
		year = s.now().UTC().Year()
	}
	var out SalesReport
	err := s.cached(ctx, &out, func(ctx context.Context) (any, error) {
		snap, err := s.load(ctx, loadSet{purchases: true})
		if err != nil {
			return nil, err
		}
		months := purchases.MonthlyBreakdown(snap.purchases, year)
		report := SalesReport{Year: year, Months: months}
		for _, m := range months {
			report.Count += m.Count
		}
		report.Total = sumMonths(months)
		return report, nil
	}, "sales", strconv.Itoa(year))
	return out, err
}

// TotalSales sums purchases dated within [from, to].
func (s *Service) TotalSales(ctx context.Context, from, to time.Time) (SalesTotal, error) {
	if to.Before(from) {
		return SalesTotal{}, fmt.Errorf("%w: from is after to", shared.ErrBadRequest)
	}
	var out SalesTotal
	err := s.cached(ctx, &out, func(ctx context.Context) (any, error) {
		snap, err := s.load(ctx, loadSet{purchases: true})
		if err != nil {
			return nil, err
		}
		in := make([]purchases.Purchase, 0, len(snap.purchases))
		for _, p := range snap.purchases {
			if !p.PurchaseDate.Before(from) && !p.PurchaseDate.After(to) {
				in = append(in, p)
			}
		}
		return SalesTotal{From: from, To: to, Total: purchases.Sum(in), Count: len(in)}, nil
	}, "total_sales", from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339))
	return out, err
}

func buildInventory(snap snapshot, threshold, limit int) InventoryReport {
	report := InventoryReport{
		Threshold:          threshold,
		LowStockProducts:   make([]products.Product, 0),
		LowStockFreebies:   make([]freebies.Freebie, 0),
		FastMovingProducts: fastMovingProducts(snap.products, snap.purchases, limit),
		FastMovingFreebies: fastMovingFreebies(snap.freebies, snap.purchases, limit),
	}
	for _, p := range snap.products {
		if p.Qty <= threshold {
			report.LowStockProducts = append(report.LowStockProducts, p)
		}
	}
	for _, f := range snap.freebies {
		if f.AvailableQty <= threshold {
			report.LowStockFreebies = append(report.LowStockFreebies, f)
		}
	}
	return report
}

func fastMovingProducts(list []products.Product, sales []purchases.Purchase, limit int) []Movement {
	sold := make(map[string]int)
	for _, p := range sales {
		for _, line := range p.Products {
			sold[line.ProductID] += line.Qty
		}
	}
	out := make([]Movement, 0, len(list))
	for _, p := range list {
		out = append(out, Movement{ID: p.ID, Name: p.Label(), QtySold: sold[p.ID], RemainingQty: p.Qty - sold[p.ID]})
	}
	return rank(out, limit)
}

func fastMovingFreebies(list []freebies.Freebie, sales []purchases.Purchase, limit int) []Movement {
	sold := make(map[string]int)
	for _, p := range sales {
		if p.FreebieID != "" {
			sold[p.FreebieID]++
		}
	}
	out := make([]Movement, 0, len(list))
	for _, f := range list {
		out = append(out, Movement{ID: f.ID, Name: f.Name, QtySold: sold[f.ID], RemainingQty: f.AvailableQty - sold[f.ID]})
	}
	return rank(out, limit)
}

func rank(list []Movement, limit int) []Movement {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].QtySold != list[j].QtySold {
			return list[i].QtySold > list[j].QtySold
		}
		return list[i].Name < list[j].Name
	})
	if len(list) > limit {
		list = list[:limit]
	}
	return list
}

func withoutPurchases(all []customers.Customer, sales []purchases.Purchase) []customers.Customer {
	buyers := make(map[string]struct{}, len(sales))
	for _, p := range sales {
		buyers[p.CustomerID] = struct{}{}
	}
	out := make([]customers.Customer, 0)
	for _, c := range all {
		if _, ok := buyers[c.ID]; !ok {
			out = append(out, c)
		}
	}
	return out
}

func buildDashboard(snap snapshot, now time.Time, threshold int) Dashboard {
	from, to := shared.MonthBounds(now)
	d := Dashboard{
		Month:          now.Format("2006-01"),
		TotalCustomers: len(snap.customers),
		TotalProducts:  len(snap.products),
	}
	for _, p := range snap.purchases {
		if !p.PurchaseDate.Before(from) && !p.PurchaseDate.After(to) {
			d.PurchasesThisMonth++
		}
	}
	for _, entry := range snap.sent {
		if !entry.SentDate.Before(from) && !entry.SentDate.After(to) {
			d.FreebiesSentThisMonth++
		}
	}
	for _, p := range snap.products {
		if p.Qty <= threshold {
			d.LowStockProducts++
		}
	}
	for _, f := range snap.freebies {
		if f.AvailableQty > 0 {
			d.FreebiesAvailable++
		}
	}
	return d
}
