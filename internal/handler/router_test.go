package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/makkenzo/keygate/internal/config"
	"github.com/makkenzo/keygate/internal/domain/apikey"
	"github.com/makkenzo/keygate/internal/handler/dto"
	"github.com/makkenzo/keygate/internal/service"
	"github.com/makkenzo/keygate/internal/storage/memstorage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testAdminKey   = "admin-secret"
	testHMACSecret = "s3cr3t"
	testTwilioTok  = "tok"
)

type testServer struct {
	router   *gin.Engine
	snapshot *memstorage.SnapshotStore
	store    *service.KeyStore
}

func newTestServer(t *testing.T, rates service.RateDefaults) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := zap.NewNop()
	snapshot := memstorage.NewSnapshotStore()

	limiter := service.NewRateLimiter(nil, nil, logger)
	store, err := service.NewKeyStore(t.Context(), snapshot, rates, limiter, nil, nil, logger)
	require.NoError(t, err)

	gate, err := service.NewAuthGate(store, limiter, config.AuthConfig{AdminKey: testAdminKey}, nil, nil, logger)
	require.NoError(t, err)

	webhookCfg := config.WebhookConfig{
		HMACSecret:      testHMACSecret,
		TwilioAuthToken: testTwilioTok,
		PublicBaseURL:   "https://hooks.example.com/",
	}
	verifier := service.NewSignatureVerifier(webhookCfg, nil, logger)

	router := NewRouter(RouterDeps{
		Gate:     gate,
		APIKeys:  NewAPIKeyHandler(service.NewAPIKeyService(store, logger), logger),
		Webhooks: NewWebhookHandler(verifier, webhookCfg, logger),
		Health:   NewHealthHandler(snapshot, store, limiter, logger),
	}, logger)

	return &testServer{router: router, snapshot: snapshot, store: store}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) createKey(t *testing.T, body string) dto.CreateAPIKeyResponse {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/admin/create-key", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Admin-API-Key", testAdminKey)

	w := s.do(req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp dto.CreateAPIKeyResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) dto.APIErrorResponse {
	t.Helper()
	var resp dto.APIErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

var defaultRates = service.RateDefaults{Capacity: 60, RefillPerSec: 1}

func TestAdmin_CreateKey(t *testing.T) {
	srv := newTestServer(t, defaultRates)

	resp := srv.createKey(t, `{"client_name":"acme","days_valid":7}`)
	assert.Equal(t, "API key created", resp.Message)
	assert.NotEmpty(t, resp.APIKey)
	assert.Equal(t, "acme", resp.Record.ClientName)
	assert.Equal(t, resp.Record.CreatedAt+7*apikey.SecondsPerDay, resp.Record.ExpiresAt)
	assert.Equal(t, 60, resp.Record.RateCapacity)
}

func TestAdmin_CreateKeyDefaultsToThirtyDays(t *testing.T) {
	srv := newTestServer(t, defaultRates)

	resp := srv.createKey(t, `{"client_name":"acme"}`)
	assert.Equal(t, resp.Record.CreatedAt+30*apikey.SecondsPerDay, resp.Record.ExpiresAt)
}

func TestAdmin_CreateKeyFromQuery(t *testing.T) {
	srv := newTestServer(t, defaultRates)

	req := httptest.NewRequest(http.MethodPost, "/admin/create-key?client_name=acme&days_valid=2", nil)
	req.Header.Set("X-Admin-API-Key", testAdminKey)

	w := srv.do(req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp dto.CreateAPIKeyResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, resp.Record.CreatedAt+2*apikey.SecondsPerDay, resp.Record.ExpiresAt)
}

func TestAdmin_CreateKeyValidation(t *testing.T) {
	srv := newTestServer(t, defaultRates)

	tests := []struct {
		name string
		body string
	}{
		{name: "missing client name", body: `{"days_valid":3}`},
		{name: "zero days", body: `{"client_name":"acme","days_valid":0}`},
		{name: "negative days", body: `{"client_name":"acme","days_valid":-4}`},
		{name: "malformed json", body: `{"client_name":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/admin/create-key", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("X-Admin-API-Key", testAdminKey)

			w := srv.do(req)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "VALIDATION_ERROR", decodeError(t, w).Code)
		})
	}
	assert.Equal(t, 0, srv.store.Len())
}

func TestAdmin_RequiresAdminKey(t *testing.T) {
	srv := newTestServer(t, defaultRates)

	for _, header := range []string{"", "wrong"} {
		req := httptest.NewRequest(http.MethodGet, "/admin/list-keys", nil)
		if header != "" {
			req.Header.Set("X-Admin-API-Key", header)
		}
		w := srv.do(req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "INVALID_ADMIN_KEY", decodeError(t, w).Code)
	}
}

func TestAdmin_StorageFailure(t *testing.T) {
	srv := newTestServer(t, defaultRates)
	srv.snapshot.FailSaves(errors.New("disk full"))

	req := httptest.NewRequest(http.MethodPost, "/admin/create-key", strings.NewReader(`{"client_name":"acme"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Admin-API-Key", testAdminKey)

	w := srv.do(req)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "STORAGE_FAILURE", decodeError(t, w).Code)
	assert.Equal(t, 0, srv.store.Len())
}

func TestAdmin_ListAndRevoke(t *testing.T) {
	srv := newTestServer(t, defaultRates)
	created := srv.createKey(t, `{"client_name":"acme"}`)

	req := httptest.NewRequest(http.MethodGet, "/admin/list-keys", nil)
	req.Header.Set("X-Admin-API-Key", testAdminKey)
	w := srv.do(req)
	require.Equal(t, http.StatusOK, w.Code)

	var listed dto.ListAPIKeysResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	assert.Equal(t, created.Record, listed.Keys[created.APIKey])

	req = httptest.NewRequest(http.MethodDelete, "/admin/revoke-key?key="+url.QueryEscape(created.APIKey), nil)
	req.Header.Set("X-Admin-API-Key", testAdminKey)
	w = srv.do(req)
	require.Equal(t, http.StatusOK, w.Code)

	var revoked dto.RevokeAPIKeyResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &revoked))
	assert.Equal(t, created.APIKey, revoked.Key.Revoked)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/whoami", nil)
	req.Header.Set("X-API-Key", created.APIKey)
	w = srv.do(req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "INVALID_API_KEY", decodeError(t, w).Code)
}

func TestAdmin_RevokeRequiresKey(t *testing.T) {
	srv := newTestServer(t, defaultRates)

	req := httptest.NewRequest(http.MethodDelete, "/admin/revoke-key", nil)
	req.Header.Set("X-Admin-API-Key", testAdminKey)
	w := srv.do(req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWhoAmI(t *testing.T) {
	srv := newTestServer(t, defaultRates)
	created := srv.createKey(t, `{"client_name":"acme"}`)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/whoami", nil)
	req.Header.Set("X-API-Key", created.APIKey)
	w := srv.do(req)
	require.Equal(t, http.StatusOK, w.Code)

	var who dto.WhoAmIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &who))
	assert.Equal(t, "acme", who.ClientName)
	assert.Equal(t, created.Record.ExpiresAt, who.ExpiresAt)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestWhoAmI_MissingKey(t *testing.T) {
	srv := newTestServer(t, defaultRates)

	w := srv.do(httptest.NewRequest(http.MethodGet, "/api/v1/whoami", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "MISSING_API_KEY", decodeError(t, w).Code)
}

func TestWhoAmI_RateLimited(t *testing.T) {
	srv := newTestServer(t, service.RateDefaults{Capacity: 2, RefillPerSec: 0.0001})
	created := srv.createKey(t, `{"client_name":"acme"}`)

	codes := make([]int, 0, 3)
	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/whoami", nil)
		req.Header.Set("X-API-Key", created.APIKey)
		last = srv.do(req)
		codes = append(codes, last.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
	assert.Equal(t, "1", last.Header().Get("Retry-After"))
	assert.Equal(t, "RATE_LIMITED", decodeError(t, last).Code)
}

func TestWhoAmI_ExpiredKey(t *testing.T) {
	srv := newTestServer(t, defaultRates)

	// Seed an already expired record directly through the snapshot backend.
	expired := apikey.NewCredentialRecord("old", 1_000, 1, 60, 1)
	require.NoError(t, srv.snapshot.Save(t.Context(), map[string]apikey.CredentialRecord{"expired-key": expired}))

	limiter := service.NewRateLimiter(nil, nil, zap.NewNop())
	store, err := service.NewKeyStore(t.Context(), srv.snapshot, defaultRates, limiter, nil, nil, zap.NewNop())
	require.NoError(t, err)
	gate, err := service.NewAuthGate(store, limiter, config.AuthConfig{AdminKey: testAdminKey}, nil, nil, zap.NewNop())
	require.NoError(t, err)

	router := NewRouter(RouterDeps{
		Gate:     gate,
		APIKeys:  NewAPIKeyHandler(service.NewAPIKeyService(store, zap.NewNop()), zap.NewNop()),
		Webhooks: NewWebhookHandler(service.NewSignatureVerifier(config.WebhookConfig{}, nil, zap.NewNop()), config.WebhookConfig{}, zap.NewNop()),
		Health:   NewHealthHandler(srv.snapshot, store, limiter, zap.NewNop()),
	}, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/whoami", nil)
	req.Header.Set("X-API-Key", "expired-key")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "API_KEY_EXPIRED", decodeError(t, w).Code)
	assert.Equal(t, 0, limiter.Len())
}

func TestWebhook_Generic(t *testing.T) {
	srv := newTestServer(t, defaultRates)
	body := []byte(`{"event":"ping"}`)
	sig := service.ComputeHMACSHA256(body, testHMACSecret)

	tests := []struct {
		name   string
		header string
		value  string
		want   int
	}{
		{name: "hub header with prefix", header: "X-Hub-Signature-256", value: "sha256=" + sig, want: http.StatusNoContent},
		{name: "plain header", header: "X-Signature", value: sig, want: http.StatusNoContent},
		{name: "wrong signature", header: "X-Signature", value: service.ComputeHMACSHA256(body, "other"), want: http.StatusUnauthorized},
		{name: "no signature", want: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/webhooks/generic", bytes.NewReader(body))
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			w := srv.do(req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestWebhook_Twilio(t *testing.T) {
	srv := newTestServer(t, defaultRates)

	form := url.Values{}
	form.Set("From", "+15550001")
	form.Set("Body", "hello")
	params := map[string]string{"From": "+15550001", "Body": "hello"}
	sig := service.ComputeTwilioSignature(testTwilioTok, "https://hooks.example.com/webhooks/twilio", params)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/twilio", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Twilio-Signature", sig)
	assert.Equal(t, http.StatusNoContent, srv.do(req).Code)

	form.Set("Body", "tampered")
	req = httptest.NewRequest(http.MethodPost, "/webhooks/twilio", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Twilio-Signature", sig)
	w := srv.do(req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "INVALID_SIGNATURE", decodeError(t, w).Code)
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, defaultRates)
	srv.createKey(t, `{"client_name":"acme"}`)

	w := srv.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 1, body["keys"])
}
