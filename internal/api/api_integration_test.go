// internal/api/api_integration_test.go
package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	app "astrolive/internal"
	"astrolive/internal/config"
	"astrolive/internal/session"
)

const billingInterval = time.Minute

type testEnv struct {
	app       *app.Application
	server    *httptest.Server
	scheduler *session.ManualScheduler
}

// newTestEnv builds the whole application on in-memory backends with a virtual clock.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := &config.AppConfig{
		ServerPort:      "0",
		LogLevel:        "error",
		StoreBackend:    config.BackendMemory,
		PresenceBackend: config.BackendMemory,
		Billing: config.BillingConfig{
			Interval:          billingInterval,
			ProviderShare:     decimal.RequireFromString("0.60"),
			OperatorAccountID: "operator",
			MoneyPlaces:       2,
		},
		Breaker: config.BreakerConfig{ConsecutiveFailures: 5, OpenTimeout: time.Second},
	}
	require.NoError(t, cfg.Validate())

	scheduler := session.NewManualScheduler()
	application := app.NewApplication()
	application.Scheduler = scheduler
	require.NoError(t, application.Build(context.Background(), cfg))

	server := httptest.NewServer(application.HTTPHandler)
	t.Cleanup(func() {
		server.Close()
		_ = application.Shutdown(context.Background())
	})
	return &testEnv{app: application, server: server, scheduler: scheduler}
}

// makeRequest sends an HTTP request to the test server and returns the status and decoded JSON body.
func (e *testEnv) makeRequest(t *testing.T, method, path, body string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var decoded map[string]any
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &decoded), string(raw))
	}
	return resp.StatusCode, decoded
}

func (e *testEnv) balance(t *testing.T, accountID string) decimal.Decimal {
	t.Helper()
	status, body := e.makeRequest(t, http.MethodGet, "/wallets/"+accountID+"/balance", "")
	require.Equal(t, http.StatusOK, status)
	b, err := decimal.NewFromString(body["balance"].(string))
	require.NoError(t, err)
	return b
}

// onboard creates a funded client and a provider that is online.
func (e *testEnv) onboard(t *testing.T, clientBalance string) {
	t.Helper()
	status, _ := e.makeRequest(t, http.MethodPost, "/wallets/client-1", `{"role":"client","name":"Client"}`)
	require.Equal(t, http.StatusCreated, status)
	if clientBalance != "0" {
		status, _ = e.makeRequest(t, http.MethodPost, "/wallets/client-1/recharge", fmt.Sprintf(`{"amount":"%s"}`, clientBalance))
		require.Equal(t, http.StatusOK, status)
	}

	status, _ = e.makeRequest(t, http.MethodPost, "/providers/astro-1", `{"name":"Astro","prices":{"text":"100","audio":"150","video":"0"}}`)
	require.Equal(t, http.StatusCreated, status)

	// Online means a live address and an available provider, as the WebSocket handshake does.
	ctx := context.Background()
	require.NoError(t, e.app.Presence.SetAddress(ctx, "astro-1", "conn-astro"))
	ok, err := e.app.Guard.MarkOnline(ctx, "astro-1")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestHealthAndMetrics(t *testing.T) {
	e := newTestEnv(t)

	resp, err := http.Get(e.server.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(e.server.URL + "/metrics")
	require.NoError(t, err)
	raw, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "astrolive_http_requests_total")
}

func TestWalletIntegration(t *testing.T) {
	e := newTestEnv(t)
	status, _ := e.makeRequest(t, http.MethodPost, "/wallets/client-1", `{"name":"Client"}`)
	require.Equal(t, http.StatusCreated, status)

	t.Run("Recharge", func(t *testing.T) {
		status, body := e.makeRequest(t, http.MethodPost, "/wallets/client-1/recharge", `{"amount":"250.50","reference":"order-1"}`)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "Recharge successful", body["message"])
		assert.True(t, decimal.RequireFromString("250.5").Equal(e.balance(t, "client-1")))
	})

	t.Run("InvalidAmount", func(t *testing.T) {
		status, body := e.makeRequest(t, http.MethodPost, "/wallets/client-1/recharge", `{"amount":"-10"}`)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Contains(t, body["error"], "amount must be positive")
	})

	t.Run("WalletNotFound", func(t *testing.T) {
		status, _ := e.makeRequest(t, http.MethodGet, "/wallets/ghost/balance", "")
		assert.Equal(t, http.StatusNotFound, status)
	})

	t.Run("DuplicateWallet", func(t *testing.T) {
		status, _ := e.makeRequest(t, http.MethodPost, "/wallets/client-1", `{"name":"Again"}`)
		assert.Equal(t, http.StatusConflict, status)
	})

	t.Run("ProviderRoleNeedsProviderEndpoint", func(t *testing.T) {
		status, _ := e.makeRequest(t, http.MethodPost, "/wallets/astro-9", `{"role":"provider"}`)
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("TransactionHistory", func(t *testing.T) {
		status, body := e.makeRequest(t, http.MethodGet, "/wallets/client-1/transactions?limit=5", "")
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, float64(1), body["total_count"])
		data := body["data"].([]any)
		require.Len(t, data, 1)
		tx := data[0].(map[string]any)
		assert.Equal(t, "credit", tx["direction"])
		assert.Equal(t, "recharge", tx["category"])
		assert.Equal(t, "order-1", tx["reference"])
	})
}

func TestConsultationLifecycleIntegration(t *testing.T) {
	e := newTestEnv(t)
	e.onboard(t, "150")

	status, body := e.makeRequest(t, http.MethodGet, "/providers/astro-1/availability", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "available", body["availability"])

	status, body = e.makeRequest(t, http.MethodPost, "/consultations", `{"clientId":"client-1","providerId":"astro-1","channelType":"text"}`)
	require.Equal(t, http.StatusCreated, status)
	requestID := body["id"].(string)
	assert.Equal(t, "pending", body["status"])

	status, body = e.makeRequest(t, http.MethodGet, "/providers/astro-1/consultations/pending", "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["data"], 1)

	status, body = e.makeRequest(t, http.MethodPost, "/consultations/"+requestID+"/respond", `{"decision":"accept"}`)
	require.Equal(t, http.StatusOK, status)
	sess := body["session"].(map[string]any)
	roomID := sess["room_id"].(string)
	assert.Equal(t, "room_client-1_astro-1", roomID)
	assert.Equal(t, "running", sess["state"])

	assert.True(t, decimal.NewFromInt(50).Equal(e.balance(t, "client-1")))
	assert.True(t, decimal.NewFromInt(60).Equal(e.balance(t, "astro-1")))
	assert.True(t, decimal.NewFromInt(40).Equal(e.balance(t, "operator")))

	status, body = e.makeRequest(t, http.MethodGet, "/sessions", "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["data"], 1)

	status, _ = e.makeRequest(t, http.MethodPost, "/consultations", `{"clientId":"client-1","providerId":"astro-1","channelType":"audio"}`)
	assert.Equal(t, http.StatusConflict, status, "provider is busy")

	// The next interval cannot be paid.
	e.scheduler.Advance(billingInterval)

	status, _ = e.makeRequest(t, http.MethodGet, "/sessions/"+roomID, "")
	assert.Equal(t, http.StatusNotFound, status)
	status, body = e.makeRequest(t, http.MethodGet, "/providers/astro-1/availability", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "available", body["availability"])
	assert.True(t, decimal.NewFromInt(50).Equal(e.balance(t, "client-1")))
}

func TestEndSessionIntegration(t *testing.T) {
	e := newTestEnv(t)
	e.onboard(t, "1000")

	_, body := e.makeRequest(t, http.MethodPost, "/consultations", `{"clientId":"client-1","providerId":"astro-1","channelType":"audio"}`)
	requestID := body["id"].(string)
	status, _ := e.makeRequest(t, http.MethodPost, "/consultations/"+requestID+"/respond", `{"decision":"accepted"}`)
	require.Equal(t, http.StatusOK, status)

	e.scheduler.Advance(2 * billingInterval)

	status, body = e.makeRequest(t, http.MethodGet, "/sessions/room_client-1_astro-1", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(3), body["elapsed_intervals"])

	status, _ = e.makeRequest(t, http.MethodPost, "/sessions/room_client-1_astro-1/end", `{"initiator":"provider"}`)
	assert.Equal(t, http.StatusOK, status)
	status, _ = e.makeRequest(t, http.MethodPost, "/sessions/room_client-1_astro-1/end", `{"initiator":"client"}`)
	assert.Equal(t, http.StatusNotFound, status)

	e.scheduler.Advance(5 * billingInterval)
	assert.True(t, decimal.NewFromInt(550).Equal(e.balance(t, "client-1")))
	assert.True(t, decimal.NewFromInt(270).Equal(e.balance(t, "astro-1")))
	assert.True(t, decimal.NewFromInt(180).Equal(e.balance(t, "operator")))
}

func TestConsultationErrorsIntegration(t *testing.T) {
	e := newTestEnv(t)
	e.onboard(t, "1000")

	cases := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"UnknownProvider", http.MethodPost, "/consultations", `{"clientId":"client-1","providerId":"nobody","channelType":"text"}`, http.StatusNotFound},
		{"UnofferedChannel", http.MethodPost, "/consultations", `{"clientId":"client-1","providerId":"astro-1","channelType":"video"}`, http.StatusBadRequest},
		{"MissingClient", http.MethodPost, "/consultations", `{"providerId":"astro-1","channelType":"text"}`, http.StatusBadRequest},
		{"MalformedBody", http.MethodPost, "/consultations", `{`, http.StatusBadRequest},
		{"UnknownRequest", http.MethodPost, "/consultations/nope/respond", `{"decision":"accept"}`, http.StatusNotFound},
		{"BadDecision", http.MethodPost, "/consultations/nope/respond", `{"decision":"perhaps"}`, http.StatusBadRequest},
		{"BadInitiator", http.MethodPost, "/sessions/room_x/end", `{"initiator":"operator"}`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, _ := e.makeRequest(t, tc.method, tc.path, tc.body)
			assert.Equal(t, tc.want, status)
		})
	}
}
