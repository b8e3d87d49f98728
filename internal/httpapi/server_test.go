package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pos/internal/domain"
	"github.com/roach88/pos/internal/fulfillment"
	"github.com/roach88/pos/internal/inventory"
	"github.com/roach88/pos/internal/metrics"
	"github.com/roach88/pos/internal/store"
	tu "github.com/roach88/pos/internal/testutil"
)

type testAPI struct {
	store   *store.Store
	metrics *metrics.Metrics
	handler http.Handler
	burger  int64
	fries   int64
}

func newTestAPI(t *testing.T, keys ...string) *testAPI {
	t.Helper()
	s := tu.NewStore(t)
	clk := tu.NewFrozenClock(tu.Epoch)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.New()

	svc := fulfillment.New(s,
		fulfillment.WithClock(clk),
		fulfillment.WithLogger(logger),
		fulfillment.WithMetrics(m),
	)
	api := &testAPI{
		store:   s,
		metrics: m,
		handler: New(svc, clk, logger, m, Options{APIKeys: keys}).Routes(),
		burger:  tu.InsertMenuItem(t, s, "Burger", 899),
		fries:   tu.InsertMenuItem(t, s, "Fries", 299),
	}
	for _, id := range []int64{api.burger, api.fries} {
		_, err := inventory.AddBatch(context.Background(), s, clk, inventory.NewBatch{MenuItemID: id, Quantity: 5})
		require.NoError(t, err)
	}
	return api
}

func (a *testAPI) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	a.handler.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[HealthResponse](t, w)
	assert.Equal(t, "healthy", resp.Status)
	assert.True(t, tu.Epoch.Equal(resp.Timestamp))
}

func TestPlaceOrder_Created(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, http.MethodPost, "/api/orders", OrderRequest{
		Items:         []OrderItemRequest{{MenuItemID: api.burger, Quantity: 2}},
		PaymentMethod: "cash",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	res := decode[fulfillment.Result](t, w)
	assert.Equal(t, int64(1798), res.Subtotal)
	assert.Equal(t, int64(126), res.Tax)
	assert.Equal(t, int64(1924), res.Total)
	assert.Contains(t, res.Receipt, "Burger")
	assert.Equal(t, "/api/orders/1", w.Header().Get("Location"))

	w = api.do(t, http.MethodGet, "/api/orders/1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	detail := decode[OrderDetail](t, w)
	assert.Equal(t, "CASH", detail.Order.PaymentMethod)
	require.Len(t, detail.Lines, 1)
	assert.Equal(t, "Burger", detail.Lines[0].Name)
	assert.Equal(t, int64(1924), detail.Payment.AmountCents)
}

func TestPlaceOrder_UsesClientSnapshots(t *testing.T) {
	api := newTestAPI(t)
	price := int64(500)

	w := api.do(t, http.MethodPost, "/api/orders", OrderRequest{
		Items:         []OrderItemRequest{{MenuItemID: api.fries, Quantity: 1, Name: "Fries (promo)", UnitPriceCents: &price}},
		PaymentMethod: "CARD",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	res := decode[fulfillment.Result](t, w)
	assert.Equal(t, int64(500), res.Subtotal)
	assert.Contains(t, res.Receipt, "Fries (promo)")
}

func TestPlaceOrder_IdempotencyKey(t *testing.T) {
	api := newTestAPI(t)
	body := OrderRequest{Items: []OrderItemRequest{{MenuItemID: api.burger, Quantity: 1}}, PaymentMethod: "CASH"}

	first := api.do(t, http.MethodPost, "/api/orders", body, IdempotencyKeyHeader, "till-1-0001")
	require.Equal(t, http.StatusCreated, first.Code)
	second := api.do(t, http.MethodPost, "/api/orders", body, IdempotencyKeyHeader, "till-1-0001")
	require.Equal(t, http.StatusOK, second.Code)

	a := decode[fulfillment.Result](t, first)
	b := decode[fulfillment.Result](t, second)
	assert.Equal(t, "till-1-0001", a.CheckoutID)
	assert.Equal(t, a.OrderID, b.OrderID)
	assert.True(t, b.Replayed)

	n, err := inventory.Available(context.Background(), api.store, api.burger)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}

func TestPlaceOrder_ErrorMapping(t *testing.T) {
	api := newTestAPI(t)

	tests := []struct {
		name     string
		body     any
		status   int
		kind     string
		line     int
		validate func(t *testing.T, resp ErrorResponse)
	}{
		{
			name:   "empty cart",
			body:   OrderRequest{PaymentMethod: "CASH"},
			status: http.StatusBadRequest,
			kind:   string(domain.KindValidation),
		},
		{
			name:   "unknown item",
			body:   OrderRequest{Items: []OrderItemRequest{{MenuItemID: api.burger, Quantity: 1}, {MenuItemID: 42, Quantity: 1}}, PaymentMethod: "CASH"},
			status: http.StatusBadRequest,
			kind:   string(domain.KindValidation),
			line:   2,
		},
		{
			name:   "insufficient stock",
			body:   OrderRequest{Items: []OrderItemRequest{{MenuItemID: api.fries, Quantity: 9}}, PaymentMethod: "CASH"},
			status: http.StatusConflict,
			kind:   string(domain.KindInsufficientStock),
			line:   1,
			validate: func(t *testing.T, resp ErrorResponse) {
				assert.Equal(t, 9, resp.Requested)
				require.NotNil(t, resp.Available)
				assert.Equal(t, 5, *resp.Available)
				assert.False(t, resp.Retryable)
			},
		},
		{
			name:   "unknown field",
			body:   map[string]any{"items": []any{}, "payment": "CASH"},
			status: http.StatusBadRequest,
			kind:   string(domain.KindValidation),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := api.do(t, http.MethodPost, "/api/orders", tt.body)
			require.Equal(t, tt.status, w.Code, w.Body.String())
			resp := decode[ErrorResponse](t, w)
			assert.Equal(t, tt.kind, resp.Kind)
			assert.Equal(t, tt.line, resp.Line)
			if tt.validate != nil {
				tt.validate(t, resp)
			}
		})
	}
	assert.Equal(t, 0, tu.Count(t, api.store, "orders"))
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(domain.NewTransactionError("commit", io.ErrUnexpectedEOF)))
	assert.Equal(t, http.StatusInternalServerError, statusFor(domain.NewIntegrityError("bad")))
	assert.Equal(t, http.StatusNotFound, statusFor(domain.ErrNotFound))
	assert.Equal(t, http.StatusInternalServerError, statusFor(io.EOF))
}

func TestReceipt(t *testing.T) {
	api := newTestAPI(t)
	w := api.do(t, http.MethodPost, "/api/orders", OrderRequest{
		Items:         []OrderItemRequest{{MenuItemID: api.burger, Quantity: 2}},
		PaymentMethod: "CASH",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	placed := decode[fulfillment.Result](t, w)

	w = api.do(t, http.MethodGet, "/api/orders/1/receipt", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/plain; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, placed.Receipt, w.Body.String())
	assert.Len(t, w.Header().Get("X-Receipt-Digest"), 64)

	w = api.do(t, http.MethodGet, "/api/orders/1/receipt?format=json", nil)
	require.Equal(t, http.StatusOK, w.Code)
	rc := decode[domain.Receipt](t, w)
	assert.Equal(t, placed.Receipt, rc.Content)
}

func TestOrderLookupErrors(t *testing.T) {
	api := newTestAPI(t)

	assert.Equal(t, http.StatusNotFound, api.do(t, http.MethodGet, "/api/orders/99", nil).Code)
	assert.Equal(t, http.StatusNotFound, api.do(t, http.MethodGet, "/api/orders/99/receipt", nil).Code)
	assert.Equal(t, http.StatusBadRequest, api.do(t, http.MethodGet, "/api/orders/abc", nil).Code)
}

func TestMenuAndStock(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, http.MethodGet, "/api/menu", nil)
	require.Equal(t, http.StatusOK, w.Code)
	items := decode[[]domain.MenuItem](t, w)
	require.Len(t, items, 2)
	assert.Equal(t, "Burger", items[0].Name)

	w = api.do(t, http.MethodGet, "/api/stock", nil)
	require.Equal(t, http.StatusOK, w.Code)
	levels := decode[[]inventory.StockLevel](t, w)
	require.Len(t, levels, 2)
	assert.Equal(t, int64(5), levels[0].Quantity)
}

func TestAddBatch(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, http.MethodPost, "/api/stock/batches", BatchRequest{
		MenuItemID: api.burger, Quantity: 10, UnitCostCents: 400, ExpiryDate: "2025-04-01",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	batch := decode[domain.InventoryBatch](t, w)
	assert.Equal(t, 10, batch.Quantity)
	require.NotNil(t, batch.ExpiryDate)
	assert.Equal(t, "2025-04-01", batch.ExpiryDate.Format("2006-01-02"))

	w = api.do(t, http.MethodPost, "/api/stock/batches", BatchRequest{MenuItemID: api.burger, Quantity: 1, ExpiryDate: "01/04/2025"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(t, http.MethodPost, "/api/stock/batches", BatchRequest{MenuItemID: 77, Quantity: 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	n, err := inventory.Available(context.Background(), api.store, api.burger)
	require.NoError(t, err)
	assert.Equal(t, int64(15), n)
}

func TestListOrdersForecastReconcile(t *testing.T) {
	api := newTestAPI(t)
	for i := 0; i < 2; i++ {
		w := api.do(t, http.MethodPost, "/api/orders", OrderRequest{
			Items:         []OrderItemRequest{{MenuItemID: api.fries, Quantity: 2}},
			PaymentMethod: "CASH",
		})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := api.do(t, http.MethodGet, "/api/orders?limit=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	orders := decode[[]domain.Order](t, w)
	require.Len(t, orders, 1)
	assert.Equal(t, int64(2), orders[0].ID)
	assert.Equal(t, http.StatusBadRequest, api.do(t, http.MethodGet, "/api/orders?limit=0", nil).Code)

	w = api.do(t, http.MethodGet, "/api/forecast?months=1", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"forecast_quantity":4`)
	assert.Equal(t, http.StatusBadRequest, api.do(t, http.MethodGet, "/api/forecast?months=x", nil).Code)

	w = api.do(t, http.MethodGet, "/api/inventory/reconcile", nil)
	require.Equal(t, http.StatusOK, w.Code)
	rec := decode[ReconcileResponse](t, w)
	assert.True(t, rec.Balanced)
	assert.Empty(t, rec.Discrepancies)
}

func TestAPIKeyAuth(t *testing.T) {
	api := newTestAPI(t, "apitest", "till-2")

	tests := []struct {
		name   string
		key    string
		status int
	}{
		{"valid key", "apitest", http.StatusOK},
		{"second key", "till-2", http.StatusOK},
		{"missing key", "", http.StatusUnauthorized},
		{"wrong key", "nope", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var headers []string
			if tt.key != "" {
				headers = []string{APIKeyHeader, tt.key}
			}
			w := api.do(t, http.MethodGet, "/api/menu", nil, headers...)
			assert.Equal(t, tt.status, w.Code)
		})
	}

	assert.Equal(t, http.StatusOK, api.do(t, http.MethodGet, "/health", nil).Code, "health is public")
}

func TestMetricsEndpoint(t *testing.T) {
	api := newTestAPI(t)
	api.do(t, http.MethodGet, "/api/orders/7", nil)

	w := api.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.True(t, strings.Contains(body, `pos_http_requests_total{route="/api/orders/{orderID}",status="4xx"} 1`), body)
}
