package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	analytichttp "github.com/glowdesk/glowdesk/internal/analytics/http"
	"github.com/glowdesk/glowdesk/internal/auth"
	"github.com/glowdesk/glowdesk/internal/customers"
	"github.com/glowdesk/glowdesk/internal/docstore"
	"github.com/glowdesk/glowdesk/internal/freebies"
	"github.com/glowdesk/glowdesk/internal/observability"
	"github.com/glowdesk/glowdesk/internal/products"
	"github.com/glowdesk/glowdesk/internal/purchases"
	"github.com/glowdesk/glowdesk/internal/shared"
	"github.com/glowdesk/glowdesk/jobs"
	_ "github.com/glowdesk/glowdesk/testing"
)

type nopMail struct{}

func (nopMail) EnqueueMail(context.Context, string, string, string) error { return nil }

type browser struct {
	t       *testing.T
	handler http.Handler
	cookies map[string]*http.Cookie
	csrf    string
}

func (b *browser) do(method, path, body string) *httptest.ResponseRecorder {
	b.t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if b.csrf != "" {
		req.Header.Set(shared.CSRFHeader, b.csrf)
	}
	for _, c := range b.cookies {
		req.AddCookie(c)
	}
	res := httptest.NewRecorder()
	b.handler.ServeHTTP(res, req)
	for _, c := range res.Result().Cookies() {
		b.cookies[c.Name] = c
	}
	return res
}

func (b *browser) decode(res *httptest.ResponseRecorder, dest any) {
	b.t.Helper()
	require.NoError(b.t, json.NewDecoder(res.Body).Decode(dest))
}

func testConfig() *Config {
	return &Config{
		AppEnv:                     "test",
		StoreDriver:                StoreMemory,
		StorePrefix:                "test",
		CSRFSecret:                 "secret",
		SessionTTL:                 time.Hour,
		LowStockThreshold:          5,
		AnalyticsLowStockThreshold: 10,
		FastMovingLimit:            5,
		AnalyticsCacheTTL:          time.Minute,
		IdempotencyTTL:             time.Hour,
		PasswordResetTTL:           time.Hour,
		AppRequestTimeout:          5 * time.Second,
	}
}

func newTestApp(t *testing.T) (*browser, *Services) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cfg := testConfig()
	store := docstore.NewMemoryStore()
	metrics := observability.NewMetrics()
	svcs := NewServices(ServiceDeps{Config: cfg, Store: store, Redis: client, Mail: nopMail{}, Metrics: metrics})

	sessions := shared.NewSessionManager(client, "glowdesk_session", cfg.StorePrefix, cfg.SessionTTL, false)
	csrf := shared.NewCSRFManager(cfg.CSRFSecret)
	router := NewRouter(RouterParams{
		Config:           cfg,
		SessionManager:   sessions,
		CSRFManager:      csrf,
		AuthHandler:      auth.NewHandler(nil, svcs.Auth, sessions, csrf),
		CustomersHandler: customers.NewHandler(nil, svcs.Customers),
		ProductsHandler:  products.NewHandler(nil, svcs.Products),
		FreebiesHandler:  freebies.NewHandler(nil, svcs.Freebies),
		PurchasesHandler: purchases.NewHandler(nil, svcs.Purchases),
		AnalyticsHandler: analytichttp.NewHandler(nil, svcs.Analytics),
		JobHandler:       jobs.NewHandler(nil, nil),
		Metrics:          metrics,
		Store:            store,
	})
	return &browser{t: t, handler: router, cookies: map[string]*http.Cookie{}}, svcs
}

func (b *browser) signIn(svcs *Services) {
	b.t.Helper()
	_, err := svcs.Auth.CreateUser(context.Background(), "owner@glowdesk.test", "long-enough", "Owner")
	require.NoError(b.t, err)
	var session struct {
		CSRFToken string `json:"csrfToken"`
	}
	b.decode(b.do(http.MethodGet, "/auth/session", ""), &session)
	b.csrf = session.CSRFToken
	res := b.do(http.MethodPost, "/auth/sign-in", `{"email":"owner@glowdesk.test","password":"long-enough"}`)
	require.Equal(b.t, http.StatusOK, res.Code)
	b.decode(res, &session)
	b.csrf = session.CSRFToken
}

func TestPublicEndpoints(t *testing.T) {
	b, _ := newTestApp(t)

	res := b.do(http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, res.Code)
	require.Equal(t, "nosniff", res.Header().Get("X-Content-Type-Options"))

	require.Equal(t, http.StatusOK, b.do(http.MethodGet, "/jobs/health", "").Code)
	require.Equal(t, http.StatusUnauthorized, b.do(http.MethodGet, "/api/customers", "").Code)

	res = b.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, res.Code)
	require.Contains(t, res.Body.String(), "glowdesk_http_requests_total")
}

func TestPurchaseThroughAPI(t *testing.T) {
	b, svcs := newTestApp(t)
	b.signIn(svcs)

	var product products.Product
	res := b.do(http.MethodPost, "/api/products", `{"name":"Rose Soap","category":"bath","price":120,"qty":4}`)
	require.Equal(t, http.StatusCreated, res.Code)
	b.decode(res, &product)

	var customer customers.Customer
	res = b.do(http.MethodPost, "/api/customers", `{"firstName":"Asha","lastName":"Rao","phone":"9876543210"}`)
	require.Equal(t, http.StatusCreated, res.Code)
	b.decode(res, &customer)

	res = b.do(http.MethodGet, "/api/analytics/dashboard", "")
	require.Equal(t, http.StatusOK, res.Code)

	body := `{"customerId":"` + customer.ID + `","products":[{"productId":"` + product.ID + `","price":120,"qty":3}]}`
	res = b.do(http.MethodPost, "/api/purchases", body)
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())

	stored, err := svcs.Products.Get(context.Background(), product.ID)
	require.NoError(t, err)
	require.Equal(t, 1, stored.Qty)

	res = b.do(http.MethodPost, "/api/purchases", body)
	require.Equal(t, http.StatusConflict, res.Code)
	stored, err = svcs.Products.Get(context.Background(), product.ID)
	require.NoError(t, err)
	require.Equal(t, 1, stored.Qty)

	var report struct {
		LowStockProducts []products.Product `json:"lowStockProducts"`
	}
	res = b.do(http.MethodGet, "/api/analytics/inventory", "")
	require.Equal(t, http.StatusOK, res.Code)
	b.decode(res, &report)
	require.Len(t, report.LowStockProducts, 1)
}

func TestMutationWithoutCSRFIsForbidden(t *testing.T) {
	b, svcs := newTestApp(t)
	b.signIn(svcs)
	b.csrf = ""
	res := b.do(http.MethodPost, "/api/customers", `{"firstName":"Asha","lastName":"Rao","phone":"9876543210"}`)
	require.Equal(t, http.StatusForbidden, res.Code)
}
