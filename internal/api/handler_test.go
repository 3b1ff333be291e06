package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"storefront/internal/apperr"
	"storefront/internal/auth"
	"storefront/internal/models"
	"storefront/internal/service"
	"storefront/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Fakes embed the interface so only the methods a test touches need bodies.

type fakeAuth struct {
	AuthService
	tokens map[string]auth.Principal
}

func (f *fakeAuth) ResolvePrincipal(_ context.Context, token string) (auth.Principal, error) {
	if token == "outage-token" {
		return auth.Principal{}, apperr.Internal("failed to load principal", errors.New("pq: connection refused"))
	}
	p, ok := f.tokens[token]
	if !ok {
		return auth.Principal{}, apperr.Unauthorized("Not authorized, token failed")
	}
	return p, nil
}

func (f *fakeAuth) Me(_ context.Context, p auth.Principal) (*models.User, error) {
	return &models.User{ID: p.ID, Role: p.Role}, nil
}

type fakeProducts struct {
	ProductService
	statsCalled bool
	getCalls    []uuid.UUID
}

func (f *fakeProducts) Get(_ context.Context, id uuid.UUID) (*models.Product, error) {
	f.getCalls = append(f.getCalls, id)
	return nil, apperr.NotFound("Product not found")
}

func (f *fakeProducts) Stats(context.Context, auth.Principal) (*store.ProductStats, error) {
	f.statsCalled = true
	return &store.ProductStats{TotalProducts: 3}, nil
}

type fakeOrders struct {
	OrderService
	lastCreate *service.CreateOrderRequest
	listErr    error
}

func (f *fakeOrders) Create(_ context.Context, p auth.Principal, req *service.CreateOrderRequest) (*models.Order, error) {
	f.lastCreate = req
	return &models.Order{ID: uuid.New(), UserID: p.ID}, nil
}

func (f *fakeOrders) ListMine(context.Context, auth.Principal) ([]models.Order, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return []models.Order{{ID: uuid.New()}, {ID: uuid.New()}}, nil
}

type fakePayments struct {
	PaymentService
}

func (fakePayments) Key() string { return "rzp_test_key" }

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	router   *gin.Engine
	products *fakeProducts
	orders   *fakeOrders
}

var (
	customer = auth.Principal{ID: uuid.New(), Role: models.RoleCustomer}
	seller   = auth.Principal{ID: uuid.New(), Role: models.RoleSeller}
	admin    = auth.Principal{ID: uuid.New(), Role: models.RoleAdmin}
)

func newTestServer(readiness map[string]Pinger) *testServer {
	gin.SetMode(gin.TestMode)

	ts := &testServer{products: &fakeProducts{}, orders: &fakeOrders{}}
	h := NewHandler(Services{
		Auth: &fakeAuth{tokens: map[string]auth.Principal{
			"customer-token": customer,
			"seller-token":   seller,
			"admin-token":    admin,
		}},
		Products: ts.products,
		Orders:   ts.orders,
		Payments: fakePayments{},
	}, "http://localhost:3000", readiness)

	ts.router = gin.New()
	h.SetupRoutes(ts.router)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, token, body string, headers ...string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rr := httptest.NewRecorder()
	ts.router.ServeHTTP(rr, req)

	var env envelope
	if strings.HasPrefix(rr.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	}
	return rr, env
}

func TestAuthenticateRejectsMissingAndBadTokens(t *testing.T) {
	ts := newTestServer(nil)

	rr, env := ts.do(t, http.MethodGet, "/api/auth/me", "", "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.False(t, env.Success)
	assert.Equal(t, "Not authorized, no token", env.Message)

	rr, env = ts.do(t, http.MethodGet, "/api/auth/me", "forged", "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "Not authorized, token failed", env.Message)

	rr, env = ts.do(t, http.MethodGet, "/api/auth/me", "customer-token", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, env.Success)

	var user models.User
	require.NoError(t, json.Unmarshal(env.Data, &user))
	assert.Equal(t, customer.ID, user.ID)
}

func TestAuthenticateStoreOutageIsServerError(t *testing.T) {
	ts := newTestServer(nil)

	rr, env := ts.do(t, http.MethodGet, "/api/auth/me", "outage-token", "")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "Server error", env.Message)
	assert.NotContains(t, rr.Body.String(), "connection refused")
}

func TestRoleMiddlewareRunsBeforeHandler(t *testing.T) {
	ts := newTestServer(nil)

	rr, env := ts.do(t, http.MethodGet, "/api/products/stats", "seller-token", "")
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Contains(t, env.Message, "seller")
	assert.False(t, ts.products.statsCalled)

	rr, _ = ts.do(t, http.MethodPost, "/api/orders", "seller-token", `{"order_items":[]}`)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Nil(t, ts.orders.lastCreate)
}

func TestStaticRouteWinsOverID(t *testing.T) {
	ts := newTestServer(nil)

	rr, env := ts.do(t, http.MethodGet, "/api/products/stats", "admin-token", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, ts.products.statsCalled)
	assert.Empty(t, ts.products.getCalls)

	var stats store.ProductStats
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, 3, stats.TotalProducts)
}

func TestMalformedIDIsBadRequest(t *testing.T) {
	ts := newTestServer(nil)

	rr, env := ts.do(t, http.MethodGet, "/api/products/not-a-uuid", "customer-token", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Invalid product ID", env.Message)
	assert.Empty(t, ts.products.getCalls)

	id := uuid.New()
	rr, env = ts.do(t, http.MethodGet, "/api/products/"+id.String(), "customer-token", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "Product not found", env.Message)
	assert.Equal(t, []uuid.UUID{id}, ts.products.getCalls)
}

func TestCreateOrderPassesIdempotencyKey(t *testing.T) {
	ts := newTestServer(nil)
	body := `{"order_items":[{"product_id":"` + uuid.NewString() + `","quantity":2}],` +
		`"shipping_address":{"street":"1 MG Road","city":"Pune","state":"MH","zip_code":"411001","country":"IN"},"payment_method":"razorpay"}`

	rr, env := ts.do(t, http.MethodPost, "/api/orders", "customer-token", body, "Idempotency-Key", "checkout-42")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.True(t, env.Success)
	require.NotNil(t, ts.orders.lastCreate)
	assert.Equal(t, "checkout-42", ts.orders.lastCreate.IdempotencyKey)
	assert.Len(t, ts.orders.lastCreate.Items, 1)
}

func TestBindingFailureIsBadRequest(t *testing.T) {
	ts := newTestServer(nil)

	rr, env := ts.do(t, http.MethodPost, "/api/auth/register", "", `{"email":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.False(t, env.Success)
	assert.NotEmpty(t, env.Message)
}

func TestInternalErrorsAreMasked(t *testing.T) {
	ts := newTestServer(nil)
	ts.orders.listErr = apperr.Internal("select orders", errors.New("pq: connection reset"))

	rr, env := ts.do(t, http.MethodGet, "/api/orders", "customer-token", "")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "Server error", env.Message)
	assert.NotContains(t, rr.Body.String(), "connection reset")
}

func TestListOrdersEnvelope(t *testing.T) {
	ts := newTestServer(nil)

	rr, env := ts.do(t, http.MethodGet, "/api/orders", "customer-token", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var list orderList
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Equal(t, 2, list.Count)
	assert.Len(t, list.Orders, 2)
}

func TestPaymentKeyIsPublic(t *testing.T) {
	ts := newTestServer(nil)

	rr, env := ts.do(t, http.MethodGet, "/api/payment/key", "", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"key":"rzp_test_key"}`, string(env.Data))
}

func TestReadiness(t *testing.T) {
	ts := newTestServer(map[string]Pinger{"postgres": pinger{}, "redis": pinger{}})
	rr, _ := ts.do(t, http.MethodGet, "/ready", "", "")
	assert.Equal(t, http.StatusOK, rr.Code)

	ts = newTestServer(map[string]Pinger{"postgres": pinger{}, "redis": pinger{err: errors.New("down")}})
	rr, _ = ts.do(t, http.MethodGet, "/ready", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), `"redis":"unavailable"`)
}
