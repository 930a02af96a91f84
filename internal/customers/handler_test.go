package customers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/glowdesk/glowdesk/internal/platform/httpx"
)

func newTestRouter(t *testing.T) (http.Handler, *Service) {
	t.Helper()
	svc := newTestService(t)
	r := chi.NewRouter()
	NewHandler(nil, svc).MountRoutes(r)
	return r, svc
}

func TestHandlerCreateAndShow(t *testing.T) {
	router, _ := newTestRouter(t)

	body := `{"firstName":"Asha","lastName":"Rao","phone":"9876543210"}`
	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/customers", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, res.Code)

	var created Customer
	require.NoError(t, json.NewDecoder(res.Body).Decode(&created))
	require.NotEmpty(t, created.ID)

	res = httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/customers/"+created.ID, nil))
	require.Equal(t, http.StatusOK, res.Code)

	res = httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/customers/unknown", nil))
	require.Equal(t, http.StatusNotFound, res.Code)
}

func TestHandlerValidationProblem(t *testing.T) {
	router, _ := newTestRouter(t)

	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/customers", strings.NewReader(`{"firstName":"Asha","pincode":"12ab5"}`)))
	require.Equal(t, http.StatusBadRequest, res.Code)

	var problem httpx.ProblemDetail
	require.NoError(t, json.NewDecoder(res.Body).Decode(&problem))
	require.Equal(t, "lastName is required", problem.Errors["lastName"])
	require.Equal(t, "Pincode must contain only numbers", problem.Errors["pincode"])

	res = httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/customers", strings.NewReader(`{`)))
	require.Equal(t, http.StatusBadRequest, res.Code)
}

func TestHandlerListFilters(t *testing.T) {
	router, svc := newTestRouter(t)
	seedCustomers(t, svc)

	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/customers?search=rao", nil))
	require.Equal(t, http.StatusOK, res.Code)
	var found []Customer
	require.NoError(t, json.NewDecoder(res.Body).Decode(&found))
	require.Len(t, found, 1)

	res = httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/customers?birthdayMonth=13", nil))
	require.Equal(t, http.StatusBadRequest, res.Code)

	res = httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/customers", nil))
	require.Equal(t, http.StatusOK, res.Code)
	found = nil
	require.NoError(t, json.NewDecoder(res.Body).Decode(&found))
	require.Len(t, found, 3)
}

func TestHandlerDeleteIsIdempotent(t *testing.T) {
	router, _ := newTestRouter(t)
	for i := 0; i < 2; i++ {
		res := httptest.NewRecorder()
		router.ServeHTTP(res, httptest.NewRequest(http.MethodDelete, "/customers/whatever", nil))
		require.Equal(t, http.StatusNoContent, res.Code)
	}
}
