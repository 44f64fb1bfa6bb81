package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petcare/apiserver/config"
)

func memoryConfig() config.Config {
	return config.Config{
		Env:          "test",
		StoreBackend: "memory",
		Auth: config.AuthConfig{
			JWTSecret:               "server-test-secret",
			JWTIssuer:               "petcare-api",
			JWTAudience:             "petcare-clients",
			TokenTTL:                time.Hour,
			RequireOwnerRoleForPets: true,
		},
		HTTP: config.HTTPConfig{
			CORSOrigins:    []string{"http://localhost:5173"},
			LoginRateLimit: 2,
		},
		Log: config.LogConfig{Level: "error"},
	}
}

func newTestServer(t *testing.T, cfg config.Config) *Server {
	t.Helper()
	srv, err := New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func serve(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestNewRequiresSecret(t *testing.T) {
	cfg := memoryConfig()
	cfg.Auth.JWTSecret = ""
	_, err := New(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestNewRejectsUnknownStorage(t *testing.T) {
	cfg := memoryConfig()
	cfg.Storage.Backend = "floppy"
	_, err := New(context.Background(), cfg)
	require.Error(t, err)
}

func TestHealthAndMetricsRoutes(t *testing.T) {
	srv := newTestServer(t, memoryConfig())

	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))

	rec = serve(srv, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "PetCare API is running")

	rec = serve(srv, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, memoryConfig())

	req := httptest.NewRequest(http.MethodOptions, "/pets", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := serve(srv, req)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/pets", nil)
	req.Header.Set("Origin", "http://evil.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = serve(srv, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestLoginIsRateLimited(t *testing.T) {
	srv := newTestServer(t, memoryConfig())

	var last int
	for range 3 {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"x@example.com","password":"nope"}`))
		req.RemoteAddr = "203.0.113.7:4000"
		rec := serve(srv, req)
		last = rec.Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}

func TestMemoryModeServesRoutes(t *testing.T) {
	srv := newTestServer(t, memoryConfig())

	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/pets", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total":0`)

	rec = serve(srv, httptest.NewRequest(http.MethodGet, "/users/profile", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
