package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"spot-exchange/internal/db"
	"spot-exchange/internal/engine"
	"spot-exchange/internal/models"
)

type testServer struct {
	handler  http.Handler
	adminKey string
}

func setupServer(t *testing.T) *testServer {
	t.Helper()
	if os.Getenv("DB_DSN") == "" {
		t.Skip("DB_DSN environment variable not set, skipping integration test")
	}

	conn, err := db.Connect(os.Getenv("DB_DSN"))
	require.NoError(t, err, "failed to connect to test database")
	require.NoError(t, db.Migrate(conn))
	t.Cleanup(func() { conn.Close() })

	eng := engine.New(conn, engine.Options{AllowSelfTrade: true, InitialCash: 100000}, zap.NewNop())

	adminKey := "key-" + uuid.NewString()
	_, err = eng.BootstrapAdmin(context.Background(), "root admin", adminKey)
	require.NoError(t, err)

	srv := New(eng, conn, zap.NewNop())
	return &testServer{handler: srv.Handler(), adminKey: adminKey}
}

// do issues one request against the in-process router. A non-empty token
// is sent in the original TOKEN form.
func (ts *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "TOKEN "+token)
	}

	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out),
		"body: %s", rec.Body.String())
	return out
}

func (ts *testServer) register(t *testing.T, name string) models.User {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/api/v1/public/register", "",
		models.RegisterRequest{Name: name})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[models.User](t, rec)
}

func (ts *testServer) listTicker(t *testing.T) string {
	t.Helper()
	ticker := strings.ToUpper(gofakeit.LetterN(8))
	rec := ts.do(t, http.MethodPost, "/api/v1/admin/instrument", ts.adminKey,
		models.InstrumentRequest{Ticker: ticker, Name: gofakeit.Word()})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return ticker
}

// TestSmokeFlow walks the whole happy path end to end over HTTP:
// register, list, deposit, cross a limit buy with a market sell, then
// read back trades, the book and balances.
func TestSmokeFlow(t *testing.T) {
	ts := setupServer(t)

	alice := ts.register(t, gofakeit.Name())
	bob := ts.register(t, gofakeit.Name())
	ticker := ts.listTicker(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/admin/balance/deposit", ts.adminKey,
		models.BalanceOpRequest{UserID: bob.ID, Ticker: ticker, Amount: 10})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	price := int64(100)
	rec = ts.do(t, http.MethodPost, "/api/v1/order", alice.APIKey,
		models.PlaceOrderBody{Direction: models.DirectionBuy, Ticker: ticker, Qty: 1, Price: &price})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	placed := decode[models.CreateOrderResponse](t, rec)
	assert.True(t, placed.Success)
	assert.NotEmpty(t, placed.OrderID)

	rec = ts.do(t, http.MethodPost, "/api/v1/order", bob.APIKey,
		models.PlaceOrderBody{Direction: models.DirectionSell, Ticker: ticker, Qty: 1})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/api/v1/public/transactions/"+ticker, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	trades := decode[[]models.Trade](t, rec)
	require.Len(t, trades, 1)
	assert.Equal(t, int64(1), trades[0].Amount)
	assert.Equal(t, int64(100), trades[0].Price)

	rec = ts.do(t, http.MethodGet, "/api/v1/public/orderbook/"+ticker, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	book := decode[models.L2OrderBook](t, rec)
	assert.Empty(t, book.BidLevels)
	assert.Empty(t, book.AskLevels)

	rec = ts.do(t, http.MethodGet, "/api/v1/balance", alice.APIKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	balances := decode[map[string]int64](t, rec)
	assert.Equal(t, int64(99900), balances[models.CashTicker])
	assert.Equal(t, int64(1), balances[ticker])

	rec = ts.do(t, http.MethodGet, "/api/v1/order/"+placed.OrderID, alice.APIKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	order := decode[models.OrderOut](t, rec)
	assert.Equal(t, models.OrderStatusExecuted, order.Status)
	assert.Equal(t, int64(1), order.Filled)
	assert.Equal(t, ticker, order.Body.Ticker)
}

func TestCancelOverHTTP(t *testing.T) {
	ts := setupServer(t)

	alice := ts.register(t, gofakeit.Name())
	ticker := ts.listTicker(t)

	price := int64(50)
	rec := ts.do(t, http.MethodPost, "/api/v1/order", alice.APIKey,
		models.PlaceOrderBody{Direction: models.DirectionBuy, Ticker: ticker, Qty: 4, Price: &price})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	placed := decode[models.CreateOrderResponse](t, rec)

	rec = ts.do(t, http.MethodDelete, "/api/v1/order/"+placed.OrderID, alice.APIKey, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Cancelling again is a client error.
	rec = ts.do(t, http.MethodDelete, "/api/v1/order/"+placed.OrderID, alice.APIKey, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/balance", alice.APIKey, nil)
	balances := decode[map[string]int64](t, rec)
	assert.Equal(t, int64(100000), balances[models.CashTicker])
}

func TestAuthFailures(t *testing.T) {
	ts := setupServer(t)

	rec := ts.do(t, http.MethodGet, "/api/v1/balance", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	detail := decode[map[string]string](t, rec)
	assert.Contains(t, detail["detail"], "Authorization")

	rec = ts.do(t, http.MethodGet, "/api/v1/balance", "key-"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// A regular user cannot reach the admin surface.
	alice := ts.register(t, gofakeit.Name())
	rec = ts.do(t, http.MethodPost, "/api/v1/admin/instrument", alice.APIKey,
		models.InstrumentRequest{Ticker: "NOPE", Name: "nope"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestValidationFailures(t *testing.T) {
	ts := setupServer(t)
	alice := ts.register(t, gofakeit.Name())
	ticker := ts.listTicker(t)

	// Name too short.
	rec := ts.do(t, http.MethodPost, "/api/v1/public/register", "",
		models.RegisterRequest{Name: "ab"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Unknown ticker is a 404.
	rec = ts.do(t, http.MethodPost, "/api/v1/order", alice.APIKey,
		models.PlaceOrderBody{Direction: models.DirectionBuy, Ticker: "MISSING", Qty: 1})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Zero qty never reaches the engine.
	rec = ts.do(t, http.MethodPost, "/api/v1/order", alice.APIKey,
		models.PlaceOrderBody{Direction: models.DirectionBuy, Ticker: ticker, Qty: 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Spending beyond the balance is rejected atomically.
	price := int64(100000)
	rec = ts.do(t, http.MethodPost, "/api/v1/order", alice.APIKey,
		models.PlaceOrderBody{Direction: models.DirectionBuy, Ticker: ticker, Qty: 2, Price: &price})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	detail := decode[map[string]string](t, rec)
	assert.Contains(t, strings.ToLower(detail["detail"]), "insufficient")

	// Malformed JSON.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/order", strings.NewReader("{nope"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "TOKEN "+alice.APIKey)
	raw := httptest.NewRecorder()
	ts.handler.ServeHTTP(raw, req)
	assert.Equal(t, http.StatusBadRequest, raw.Code)
}

func TestOpsEndpoints(t *testing.T) {
	ts := setupServer(t)

	rec := ts.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	status := decode[map[string]string](t, rec)
	assert.Equal(t, "healthy", status["status"])

	rec = ts.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "request_total")

	rec = ts.do(t, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminUserLifecycle(t *testing.T) {
	ts := setupServer(t)

	victim := ts.register(t, gofakeit.Name())

	rec := ts.do(t, http.MethodDelete, "/api/v1/admin/user/"+victim.ID, ts.adminKey, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	snapshot := decode[models.User](t, rec)
	assert.Equal(t, victim.ID, snapshot.ID)

	// The key dies with the user.
	rec = ts.do(t, http.MethodGet, "/api/v1/balance", victim.APIKey, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodDelete, "/api/v1/admin/user/"+victim.ID, ts.adminKey, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
