package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learn-earn/backend/internal/handlers"
	"github.com/learn-earn/backend/internal/models"
	"github.com/learn-earn/backend/internal/routes"
	"github.com/learn-earn/backend/internal/services"
	"github.com/learn-earn/backend/internal/store"
)

const testPepper = "test-pepper"

type testServer struct {
	st     *store.Memory
	router *chi.Mux
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	st := store.NewMemory()
	require.NoError(t, st.SeedSettings(context.Background(), &models.Settings{
		MinPayoutUsd:        5,
		PayoutCooldownHours: 48,
		MaxDailyEarnUsd:     0.5,
		SafetyMargin:        0.6,
		ECPMUsd:             2.0,
		AppPepper:           testPepper,
		CoinToUsdRate:       0.001,
		UpdatedAt:           time.Now(),
	}))

	settings := services.NewSettingsService(st, nil)
	devices := services.NewDeviceService(st)
	earning := services.NewEarningService(st, settings)
	progress := services.NewProgressService(st, settings)
	payouts := services.NewPayoutService(st, st, st, settings)
	version := services.NewVersionService(st)

	handlers.Init(devices, progress, earning, payouts, settings, version, st)

	r := chi.NewRouter()
	routes.SetupRoutes(r, devices)
	return &testServer{st: st, router: r}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func deviceHeaders(deviceID string) map[string]string {
	return map[string]string{"X-Device-ID": deviceID}
}

func TestRegisterEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodPost, "/api/users/register", map[string]interface{}{
		"deviceId": "dev-1", "pubKey": "pub-1", "isEmulator": false,
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])

	// Re-register with same key is idempotent
	rec = srv.do(t, http.MethodPost, "/api/users/register", map[string]interface{}{
		"deviceId": "dev-1", "pubKey": "pub-1",
	}, nil)
	assert.Equal(t, http.StatusCreated, rec.Code)

	// Different key is refused
	rec = srv.do(t, http.MethodPost, "/api/users/register", map[string]interface{}{
		"deviceId": "dev-1", "pubKey": "pub-2",
	}, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestDeviceAuthRequired(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodGet, "/api/users/profile", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = srv.do(t, http.MethodGet, "/api/users/profile", nil, deviceHeaders("ghost"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProgressEndpoints(t *testing.T) {
	srv := newTestServer(t)
	srv.do(t, http.MethodPost, "/api/users/register", map[string]interface{}{
		"deviceId": "dev-1", "pubKey": "pub-1",
	}, nil)

	rec := srv.do(t, http.MethodPost, "/api/users/lessons/lesson-1/progress", map[string]interface{}{
		"scrollPosition": 85, "timeSpentSeconds": 120,
	}, deviceHeaders("dev-1"))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["coinAwarded"])

	// Unopened lesson returns zero-value progress, not 404
	rec = srv.do(t, http.MethodGet, "/api/users/lessons/lesson-9/progress", nil, deviceHeaders("dev-1"))
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeBody(t, rec)
	progress := body["progress"].(map[string]interface{})
	assert.Equal(t, "lesson-9", progress["lessonId"])
	assert.Equal(t, false, progress["isCompleted"])

	rec = srv.do(t, http.MethodGet, "/api/users/lessons/progress", nil, deviceHeaders("dev-1"))
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeBody(t, rec)
	assert.Equal(t, float64(1), body["completedCount"])

	// Out-of-range scroll is a 400
	rec = srv.do(t, http.MethodPost, "/api/users/lessons/lesson-1/progress", map[string]interface{}{
		"scrollPosition": 150,
	}, deviceHeaders("dev-1"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPayoutEndpoints(t *testing.T) {
	srv := newTestServer(t)
	srv.do(t, http.MethodPost, "/api/users/register", map[string]interface{}{
		"deviceId": "dev-1", "pubKey": "pub-1",
	}, nil)

	ctx := context.Background()
	granted, err := srv.st.CreditEarning(ctx, "dev-1", store.Award{Coins: 12000, CapUsd: 1})
	require.NoError(t, err)
	require.True(t, granted)

	user, err := srv.st.FindUserByDevice(ctx, "dev-1")
	require.NoError(t, err)

	sign := func(mobile string, coins int64, nonce string) map[string]string {
		return map[string]string{
			"X-Device-ID": "dev-1",
			"X-Nonce":     nonce,
			"X-Signature": services.SignPayoutRequest(testPepper, user, mobile, coins, nonce),
		}
	}

	// Bad signature is a 403
	rec := srv.do(t, http.MethodPost, "/api/payouts/request", map[string]interface{}{
		"mobileNumber": "+250780000001", "coins": 5000,
	}, map[string]string{"X-Device-ID": "dev-1", "X-Nonce": "n0", "X-Signature": "bogus"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Valid request
	rec = srv.do(t, http.MethodPost, "/api/payouts/request", map[string]interface{}{
		"mobileNumber": "+250780000001", "coins": 5000,
	}, sign("+250780000001", 5000, "n1"))
	require.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody(t, rec)
	payout := body["payout"].(map[string]interface{})
	assert.Equal(t, "pending", payout["status"])
	payoutID := payout["id"].(string)

	// Replayed nonce is a 409
	rec = srv.do(t, http.MethodPost, "/api/payouts/request", map[string]interface{}{
		"mobileNumber": "+250780000001", "coins": 5000,
	}, sign("+250780000001", 5000, "n1"))
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Cooldown is surfaced as 429 with remaining seconds
	rec = srv.do(t, http.MethodPost, "/api/payouts/request", map[string]interface{}{
		"mobileNumber": "+250780000001", "coins": 5000,
	}, sign("+250780000001", 5000, "n2"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	body = decodeBody(t, rec)
	assert.Greater(t, body["remainingSeconds"].(float64), float64(0))

	rec = srv.do(t, http.MethodGet, "/api/payouts/cooldown", nil, deviceHeaders("dev-1"))
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeBody(t, rec)
	cooldown := body["cooldown"].(map[string]interface{})
	assert.Equal(t, true, cooldown["active"])

	rec = srv.do(t, http.MethodGet, "/api/payouts/history", nil, deviceHeaders("dev-1"))
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeBody(t, rec)
	assert.Len(t, body["payouts"].([]interface{}), 1)

	rec = srv.do(t, http.MethodGet, fmt.Sprintf("/api/payouts/status/%s", payoutID), nil, deviceHeaders("dev-1"))
	assert.Equal(t, http.StatusOK, rec.Code)

	// User cancel refunds
	rec = srv.do(t, http.MethodPost, fmt.Sprintf("/api/payouts/%s/cancel", payoutID), nil, deviceHeaders("dev-1"))
	require.Equal(t, http.StatusOK, rec.Code)

	fresh, err := srv.st.FindUserByDevice(ctx, "dev-1")
	require.NoError(t, err)
	assert.Equal(t, int64(12000), fresh.CoinBalance)
}

func TestAdsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	srv.do(t, http.MethodPost, "/api/users/register", map[string]interface{}{
		"deviceId": "dev-1", "pubKey": "pub-1",
	}, nil)

	rec := srv.do(t, http.MethodPost, "/api/ads/impression", nil, deviceHeaders("dev-1"))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["granted"])
	assert.Equal(t, float64(2), body["coins"])
}

func TestVersionEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodGet, "/api/version", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	version := body["version"].(map[string]interface{})
	assert.Equal(t, "1.0.0", version["minimumVersion"])
}
