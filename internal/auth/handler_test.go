package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/glowdesk/glowdesk/internal/auth"
	"github.com/glowdesk/glowdesk/internal/docstore"
	"github.com/glowdesk/glowdesk/internal/shared"
	_ "github.com/glowdesk/glowdesk/testing"
)

type nopQueue struct{}

func (nopQueue) EnqueueMail(context.Context, string, string, string) error { return nil }

type client struct {
	t       *testing.T
	router  http.Handler
	cookies map[string]*http.Cookie
	csrf    string
}

func (c *client) do(method, path, body string) *httptest.ResponseRecorder {
	c.t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if c.csrf != "" {
		req.Header.Set(shared.CSRFHeader, c.csrf)
	}
	for _, cookie := range c.cookies {
		req.AddCookie(cookie)
	}
	res := httptest.NewRecorder()
	c.router.ServeHTTP(res, req)
	for _, cookie := range res.Result().Cookies() {
		if cookie.MaxAge < 0 {
			delete(c.cookies, cookie.Name)
			continue
		}
		c.cookies[cookie.Name] = cookie
	}
	return res
}

func (c *client) session() map[string]any {
	c.t.Helper()
	res := c.do(http.MethodGet, "/auth/session", "")
	require.Equal(c.t, http.StatusOK, res.Code)
	var body map[string]any
	require.NoError(c.t, json.NewDecoder(res.Body).Decode(&body))
	c.csrf, _ = body["csrfToken"].(string)
	return body
}

func newClient(t *testing.T) (*client, *auth.Service) {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = redisClient.Close() })
	sessions := shared.NewSessionManager(redisClient, "test_session", "test", time.Hour, false)
	csrf := shared.NewCSRFManager("csrfsecret")
	svc := auth.NewService(auth.NewRepository(docstore.NewMemoryStore()), auth.Options{
		Tokens: auth.NewResetTokens(redisClient, "test", time.Hour),
		Mail:   nopQueue{},
	})
	handler := auth.NewHandler(nil, svc, sessions, csrf)

	r := chi.NewRouter()
	r.Use(sessions.Middleware(nil), csrf.Middleware(nil))
	r.Route("/auth", handler.MountRoutes)
	r.With(auth.RequireUser).Get("/api/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return &client{t: t, router: r, cookies: map[string]*http.Cookie{}}, svc
}

func TestSignInFlow(t *testing.T) {
	c, svc := newClient(t)
	_, err := svc.CreateUser(context.Background(), "owner@glowdesk.test", "correct-pass", "Owner")
	require.NoError(t, err)

	body := c.session()
	require.Equal(t, false, body["authenticated"])
	require.NotEmpty(t, c.csrf)
	require.Equal(t, http.StatusUnauthorized, c.do(http.MethodGet, "/api/ping", "").Code)

	preAuth := c.cookies["test_session"].Value
	res := c.do(http.MethodPost, "/auth/sign-in", `{"email":"owner@glowdesk.test","password":"correct-pass"}`)
	require.Equal(t, http.StatusOK, res.Code)
	require.NotEqual(t, preAuth, c.cookies["test_session"].Value)

	body = c.session()
	require.Equal(t, true, body["authenticated"])
	require.Equal(t, "Owner", body["user"].(map[string]any)["displayName"])
	require.NotContains(t, body["user"], "passwordHash")
	require.Equal(t, http.StatusNoContent, c.do(http.MethodGet, "/api/ping", "").Code)

	require.Equal(t, http.StatusNoContent, c.do(http.MethodPost, "/auth/sign-out", "").Code)
	require.NotContains(t, c.cookies, "test_session")
	require.Equal(t, http.StatusUnauthorized, c.do(http.MethodGet, "/api/ping", "").Code)
}

func TestSignInRejectsBadCredentials(t *testing.T) {
	c, svc := newClient(t)
	_, err := svc.CreateUser(context.Background(), "owner@glowdesk.test", "correct-pass", "")
	require.NoError(t, err)
	c.session()

	res := c.do(http.MethodPost, "/auth/sign-in", `{"email":"owner@glowdesk.test","password":"wrong-pass"}`)
	require.Equal(t, http.StatusUnauthorized, res.Code)
	require.Contains(t, res.Body.String(), "invalid credentials")

	res = c.do(http.MethodPost, "/auth/sign-in", `{"email":"owner@glowdesk.test","password":"short"}`)
	require.Equal(t, http.StatusUnauthorized, res.Code)
	require.Contains(t, res.Body.String(), "invalid credentials")

	res = c.do(http.MethodPost, "/auth/sign-in", `{"email":"owner","password":"x"}`)
	require.Equal(t, http.StatusBadRequest, res.Code)
	require.Contains(t, res.Body.String(), `"email":"Invalid email address"`)
}

func TestMutationsRequireCSRFToken(t *testing.T) {
	c, _ := newClient(t)
	c.session()
	c.csrf = ""
	res := c.do(http.MethodPost, "/auth/sign-in", `{"email":"owner@glowdesk.test","password":"correct-pass"}`)
	require.Equal(t, http.StatusForbidden, res.Code)
}

func TestPasswordResetEndpoints(t *testing.T) {
	c, _ := newClient(t)
	c.session()
	require.Equal(t, http.StatusAccepted, c.do(http.MethodPost, "/auth/password-reset", `{"email":"ghost@glowdesk.test"}`).Code)

	res := c.do(http.MethodPost, "/auth/password-reset/confirm", `{"token":"missing","password":"long-enough"}`)
	require.Equal(t, http.StatusBadRequest, res.Code)

	res = c.do(http.MethodPost, "/auth/password-reset/confirm", `{"token":"missing","password":"short"}`)
	require.Equal(t, http.StatusBadRequest, res.Code)
	require.Contains(t, res.Body.String(), `"password":"password must be at least 8"`)
}
