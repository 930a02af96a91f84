package analytics

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/glowdesk/glowdesk/internal/customers"
	"github.com/glowdesk/glowdesk/internal/freebies"
	"github.com/glowdesk/glowdesk/internal/products"
	"github.com/glowdesk/glowdesk/internal/purchases"
	"github.com/glowdesk/glowdesk/internal/repository"
)

type fakeSources struct {
	customers []customers.Customer
	products  []products.Product
	freebies  []freebies.Freebie
	sent      []freebies.Sent
	purchases []purchases.Purchase
	calls     int
}

type customerList struct{ f *fakeSources }

func (c customerList) List(context.Context) ([]customers.Customer, error) { return c.f.customers, nil }

type productList struct{ f *fakeSources }

func (p productList) List(context.Context) ([]products.Product, error) {
	p.f.calls++
	return p.f.products, nil
}

type freebieList struct{ f *fakeSources }

func (l freebieList) List(context.Context) ([]freebies.Freebie, error) { return l.f.freebies, nil }

func (l freebieList) AllSent(context.Context) ([]freebies.Sent, error) { return l.f.sent, nil }

type purchaseList struct{ f *fakeSources }

func (p purchaseList) List(context.Context) ([]purchases.Purchase, error) { return p.f.purchases, nil }

type lookups struct{ hits, misses int }

func (l *lookups) CacheLookup(hit bool) {
	if hit {
		l.hits++
		return
	}
	l.misses++
}

func meta(id string) repository.Meta { return repository.Meta{ID: id} }

func fixture() *fakeSources {
	may := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)
	april := time.Date(2024, 4, 2, 9, 0, 0, 0, time.UTC)
	return &fakeSources{
		customers: []customers.Customer{
			{Meta: meta("c1"), FirstName: "Asha"},
			{Meta: meta("c2"), FirstName: "Meera"},
			{Meta: meta("c3"), FirstName: "Ravi"},
		},
		products: []products.Product{
			{Meta: meta("p1"), Name: "Rose Soap", Qty: 20},
			{Meta: meta("p2"), Name: "Aloe Gel", Qty: 3},
			{Meta: meta("p3"), Name: "Hair Oil", Qty: 8},
		},
		freebies: []freebies.Freebie{
			{Meta: meta("f1"), Name: "Sachet", AvailableQty: 0},
			{Meta: meta("f2"), Name: "Pouch", AvailableQty: 12},
		},
		sent: []freebies.Sent{
			{Meta: meta("s1"), CustomerID: "c1", FreebieID: "f1", SentDate: may},
			{Meta: meta("s2"), CustomerID: "c2", FreebieID: "f1", SentDate: april},
		},
		purchases: []purchases.Purchase{
			{Meta: meta("o1"), CustomerID: "c1", TotalAmount: 300, FreebieID: "f1", PurchaseDate: may,
				Products: []purchases.LineItem{{ProductID: "p1", Qty: 2}, {ProductID: "p3", Qty: 2}}},
			{Meta: meta("o2"), CustomerID: "c2", TotalAmount: 100.5, FreebieID: "f1", PurchaseDate: april,
				Products: []purchases.LineItem{{ProductID: "p3", Qty: 1}}},
		},
	}
}

func newTestService(t *testing.T, f *fakeSources) (*Service, *miniredis.Miniredis, *lookups) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	rec := &lookups{}
	cache := NewCache(client, "test", time.Minute).WithMetrics(rec)
	svc := NewService(Sources{
		Customers: customerList{f},
		Products:  productList{f},
		Freebies:  freebieList{f},
		Purchases: purchaseList{f},
	}, cache, Config{})
	svc.WithNow(func() time.Time { return time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC) })
	return svc, mr, rec
}

func TestInventoryReport(t *testing.T) {
	svc, _, _ := newTestService(t, fixture())
	report, err := svc.Inventory(context.Background(), 0, 0)
	require.NoError(t, err)
	require.Equal(t, 10, report.Threshold)
	require.Len(t, report.LowStockProducts, 2)
	require.Len(t, report.LowStockFreebies, 1)

	require.Equal(t, Movement{ID: "p3", Name: "Hair Oil", QtySold: 3, RemainingQty: 5}, report.FastMovingProducts[0])
	require.Equal(t, "p1", report.FastMovingProducts[1].ID)
	require.Equal(t, "p2", report.FastMovingProducts[2].ID)
	require.Equal(t, Movement{ID: "f1", Name: "Sachet", QtySold: 2, RemainingQty: -2}, report.FastMovingFreebies[0])

	limited, err := svc.Inventory(context.Background(), 5, 1)
	require.NoError(t, err)
	require.Len(t, limited.FastMovingProducts, 1)
	require.Len(t, limited.LowStockProducts, 1)
}

func TestInventoryIsCachedUntilBump(t *testing.T) {
	f := fixture()
	svc, _, rec := newTestService(t, f)
	ctx := context.Background()

	_, err := svc.Inventory(ctx, 0, 0)
	require.NoError(t, err)
	_, err = svc.Inventory(ctx, 0, 0)
	require.NoError(t, err)
	require.Equal(t, 1, f.calls)
	require.Equal(t, 1, rec.hits)
	require.Equal(t, 1, rec.misses)

	svc.Invalidate(ctx, "products")
	f.products = append(f.products, products.Product{Meta: meta("p4"), Name: "Face Pack", Qty: 1})
	report, err := svc.Inventory(ctx, 0, 0)
	require.NoError(t, err)
	require.Equal(t, 2, f.calls)
	require.Len(t, report.LowStockProducts, 3)
}

func TestDashboardAndCustomers(t *testing.T) {
	svc, _, _ := newTestService(t, fixture())
	ctx := context.Background()

	d, err := svc.Dashboard(ctx)
	require.NoError(t, err)
	require.Equal(t, Dashboard{
		Month:                 "2024-05",
		TotalCustomers:        3,
		PurchasesThisMonth:    1,
		FreebiesSentThisMonth: 1,
		TotalProducts:         3,
		LowStockProducts:      1,
		FreebiesAvailable:     1,
	}, d)

	idle, err := svc.CustomersWithoutPurchases(ctx)
	require.NoError(t, err)
	require.Len(t, idle, 1)
	require.Equal(t, "c3", idle[0].ID)
}

func TestSalesReports(t *testing.T) {
	svc, _, _ := newTestService(t, fixture())
	ctx := context.Background()

	report, err := svc.Sales(ctx, 2024)
	require.NoError(t, err)
	require.Equal(t, 400.5, report.Total)
	require.Equal(t, 2, report.Count)
	require.Equal(t, 300.0, report.Months[4].Total)

	total, err := svc.TotalSales(ctx, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 5, 31, 23, 59, 59, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, 300.0, total.Total)
	require.Equal(t, 1, total.Count)

	_, err = svc.TotalSales(ctx, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))
	require.Error(t, err)
}

func TestCacheWithoutRedisCallsLoader(t *testing.T) {
	var cache *Cache
	var out []int
	calls := 0
	loader := func(context.Context) (any, error) {
		calls++
		return []int{1, 2}, nil
	}
	require.NoError(t, cache.FetchJSON(context.Background(), "k", &out, loader))
	require.NoError(t, cache.FetchJSON(context.Background(), "k", &out, loader))
	require.Equal(t, []int{1, 2}, out)
	require.Equal(t, 2, calls)
	require.NoError(t, cache.Bump(context.Background()))
}

func TestCacheVersionedKeys(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache := NewCache(client, "gd", time.Minute)
	ctx := context.Background()

	key, err := cache.BuildKey(ctx, "sales", "2024")
	require.NoError(t, err)
	require.Equal(t, "gd:analytics:sales:2024:1", key)

	require.NoError(t, cache.Bump(ctx))
	key, err = cache.BuildKey(ctx, "sales", "2024")
	require.NoError(t, err)
	require.Equal(t, "gd:analytics:sales:2024:2", key)
}

func TestReportsSurviveRedisOutage(t *testing.T) {
	f := fixture()
	svc, mr, _ := newTestService(t, f)
	mr.Close()

	report, err := svc.Inventory(context.Background(), 0, 0)
	require.NoError(t, err)
	require.Len(t, report.LowStockProducts, 2)
	require.Equal(t, 1, f.calls)
}
