package handler_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"custodia/internal/adapter/handler"
	"custodia/internal/adapter/middleware"
	"custodia/internal/adapter/storage"
	"custodia/internal/core/ledger"
)

const testAccount = "100000000001"

// newTestApp wires the movement routes over the in-memory store, with a stub
// in place of the session middleware so requests act as testAccount.
func newTestApp(t *testing.T) (*fiber.App, *storage.MemoryStore) {
	t.Helper()

	store := storage.NewMemoryStore(2 * time.Second)
	h := &handler.TransactionHandler{Svc: ledger.NewService(store)}

	app := fiber.New()
	api := app.Group("/v1", func(c *fiber.Ctx) error {
		c.Locals(middleware.AccountLocal, testAccount)
		return c.Next()
	})
	api.Post("/deposit", h.Deposit)
	api.Post("/withdraw", h.Withdraw)
	api.Post("/transfer", h.Transfer)
	api.Get("/balance", h.Balance)
	api.Get("/transactions", h.History)

	return app, store
}

func doJSON(t *testing.T, app *fiber.App, method, target string, body any) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestDepositEndpoint(t *testing.T) {
	app, store := newTestApp(t)
	store.CreateAccount(testAccount, 0)

	status, body := doJSON(t, app, http.MethodPost, "/v1/deposit", fiber.Map{"amount": "25.00"})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "25.00", body["balance"])
}

func TestDepositEndpointInvalidAmount(t *testing.T) {
	app, store := newTestApp(t)
	store.CreateAccount(testAccount, 0)

	status, body := doJSON(t, app, http.MethodPost, "/v1/deposit", fiber.Map{"amount": "-3.00"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.NotEmpty(t, body["error"])
}

func TestWithdrawEndpointInsufficientFunds(t *testing.T) {
	app, store := newTestApp(t)
	store.CreateAccount(testAccount, 500)

	status, body := doJSON(t, app, http.MethodPost, "/v1/withdraw", fiber.Map{"amount": "100.00"})
	assert.Equal(t, http.StatusConflict, status)
	assert.NotEmpty(t, body["error"])

	status, body = doJSON(t, app, http.MethodGet, "/v1/balance", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "5.00", body["balance"])
}

func TestTransferEndpoint(t *testing.T) {
	app, store := newTestApp(t)
	store.CreateAccount(testAccount, 10_000)
	store.CreateAccount("100000000002", 0)

	status, body := doJSON(t, app, http.MethodPost, "/v1/transfer", fiber.Map{
		"to_account": "100000000002",
		"amount":     "40.00",
	})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "60.00", body["balance"])
}

func TestTransferEndpointToSelf(t *testing.T) {
	app, store := newTestApp(t)
	store.CreateAccount(testAccount, 10_000)

	status, _ := doJSON(t, app, http.MethodPost, "/v1/transfer", fiber.Map{
		"to_account": testAccount,
		"amount":     "1.00",
	})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestTransferEndpointUnknownRecipient(t *testing.T) {
	app, store := newTestApp(t)
	store.CreateAccount(testAccount, 10_000)

	status, _ := doJSON(t, app, http.MethodPost, "/v1/transfer", fiber.Map{
		"to_account": "999999999999",
		"amount":     "1.00",
	})
	assert.Equal(t, http.StatusNotFound, status)
}

func TestHistoryEndpoint(t *testing.T) {
	app, store := newTestApp(t)
	store.CreateAccount(testAccount, 0)

	for i := 0; i < 3; i++ {
		status, _ := doJSON(t, app, http.MethodPost, "/v1/deposit", fiber.Map{"amount": "1.00"})
		require.Equal(t, http.StatusOK, status)
	}

	status, body := doJSON(t, app, http.MethodGet, "/v1/transactions?limit=2", nil)
	assert.Equal(t, http.StatusOK, status)
	txs, ok := body["transactions"].([]any)
	require.True(t, ok)
	assert.Len(t, txs, 2)
}
