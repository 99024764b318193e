package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/procktails/storefront/internal/checkout"
	"github.com/procktails/storefront/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListProducts_StaleAdvisory(t *testing.T) {
	router, deps := newTestRouter()
	deps.catalog.stale = true

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp productListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Stale)
	assert.Len(t, resp.Products, 1)
}

func TestGetProduct_EncodedID(t *testing.T) {
	router, _ := newTestRouter()

	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/products/gid%3A%2F%2Fplatform%2FProduct%2F1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp productResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Smoky Margarita", resp.Product.Title)
}

func TestValidateCheckout(t *testing.T) {
	router, deps := newTestRouter()
	deps.checkouts.result = &domain.ValidationResult{Valid: true, TotalAmount: 28.00, Currency: "USD"}

	body := `{"items": [{"product_id": "gid://platform/Product/1", "quantity": 2}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/validate", strings.NewReader(body))
	req.Header.Set("X-Session-ID", "anon_abc")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, deps.checkouts.lastReq)
	assert.Equal(t, "anonymous:anon_abc", deps.checkouts.lastReq.ActorKey.String())
	require.Len(t, deps.checkouts.lastReq.ProposedLines, 1)

	var resp domain.ValidationResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Valid)
	assert.InDelta(t, 28.00, resp.TotalAmount, 0.001)
}

func TestCreateCheckout_Success(t *testing.T) {
	router, deps := newTestRouter()
	deps.checkouts.result = &domain.ValidationResult{Valid: true, TotalAmount: 28.00, Currency: "USD"}
	deps.checkouts.session = &domain.CheckoutSession{ID: "chk_1", URL: "https://pay.example/chk_1"}

	body := `{"items": [{"product_id": "gid://platform/Product/1", "quantity": 2}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/create", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp createCheckoutResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Checkout)
	assert.Equal(t, "https://pay.example/chk_1", resp.Checkout.URL)
}

func TestCreateCheckout_FallsBackToAccountEmail(t *testing.T) {
	router, deps := newTestRouter()
	deps.checkouts.result = &domain.ValidationResult{Valid: true}
	deps.checkouts.session = &domain.CheckoutSession{ID: "chk_1"}

	body := `{"items": [{"product_id": "gid://platform/Product/1", "quantity": 2}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/create", strings.NewReader(body))
	req.Header.Set("X-Account-ID", "42")
	req.Header.Set("X-Account-Email", "sam@example.com")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, deps.checkouts.lastReq)
	assert.Equal(t, "sam@example.com", deps.checkouts.lastReq.CustomerEmail)
}

func TestCreateCheckout_RequestEmailWinsOverClaim(t *testing.T) {
	router, deps := newTestRouter()
	deps.checkouts.result = &domain.ValidationResult{Valid: true}
	deps.checkouts.session = &domain.CheckoutSession{ID: "chk_1"}

	body := `{"items": [{"product_id": "gid://platform/Product/1", "quantity": 2}],
		"customer_email": "gift@example.com"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/create", strings.NewReader(body))
	req.Header.Set("X-Account-ID", "42")
	req.Header.Set("X-Account-Email", "sam@example.com")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, deps.checkouts.lastReq)
	assert.Equal(t, "gift@example.com", deps.checkouts.lastReq.CustomerEmail)
}

func TestCreateCheckout_ValidationFailure(t *testing.T) {
	router, deps := newTestRouter()
	deps.checkouts.err = checkout.ErrValidationFailed
	deps.checkouts.result = &domain.ValidationResult{
		Valid:  false,
		Errors: []domain.LineError{{ProductID: "gid://platform/Product/1", Reason: "line not found in cart"}},
	}

	body := `{"items": [{"product_id": "gid://platform/Product/1", "quantity": 2}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/create", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)

	var resp createCheckoutResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Nil(t, resp.Checkout)
	require.NotNil(t, resp.Validation)
	require.Len(t, resp.Validation.Errors, 1)
	assert.Equal(t, "line not found in cart", resp.Validation.Errors[0].Reason)
}

func TestCreateCheckout_BadInput(t *testing.T) {
	router, deps := newTestRouter()
	deps.checkouts.err = checkout.ErrNoLines

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/create", strings.NewReader(`{"items": []}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckoutStatus(t *testing.T) {
	router, deps := newTestRouter()
	deps.orders.byCheckout["chk_1"] = &domain.Order{
		CheckoutID: "chk_1",
		ActorKey:   "anonymous:anon_abc",
		Status:     domain.OrderStatusPaid,
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/checkout/status?checkout_id=chk_1", nil)
	req.Header.Set("X-Session-ID", "anon_abc")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp domain.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, domain.OrderStatusPaid, resp.Status)
}

func TestCheckoutStatus_OtherActorsOrderHidden(t *testing.T) {
	router, deps := newTestRouter()
	deps.orders.byCheckout["chk_1"] = &domain.Order{
		CheckoutID: "chk_1",
		ActorKey:   "account:42",
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/checkout/status?checkout_id=chk_1", nil)
	req.Header.Set("X-Session-ID", "anon_abc")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListOrders(t *testing.T) {
	router, deps := newTestRouter()
	deps.orders.byActor["account:42"] = []*domain.Order{
		{CheckoutID: "chk_1", ActorKey: "account:42", Status: domain.OrderStatusCompleted},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	req.Header.Set("X-Account-ID", "42")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp ordersResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Orders, 1)
	assert.Equal(t, domain.OrderStatusCompleted, resp.Orders[0].Status)
}

func TestListOrders_EmptyIsAnArray(t *testing.T) {
	router, _ := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	req.Header.Set("X-Account-ID", "42")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"orders":[]`)
}
