package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlibekovAA/authcore/internal/common/constants"
	commonerrors "github.com/AlibekovAA/authcore/internal/common/errors"
	"github.com/AlibekovAA/authcore/internal/common/logger"
)

func testLogger() *logger.Logger {
	return logger.NewWithWriter(io.Discard, "test", "error")
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) ErrorEnvelope {
	t.Helper()
	var env ErrorEnvelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	return env
}

func TestHandleError_DomainErrorEnvelope(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", nil)
	req = req.WithContext(context.WithValue(req.Context(), constants.TraceIDKey, "trace-1"))
	rec := httptest.NewRecorder()

	err := commonerrors.ErrStorage.WithDetails(map[string]any{"field": "value"})
	HandleError(rec, req, fmt.Errorf("wrapped: %w", err), testLogger())

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, "STORAGE_ERROR", env.Code)
	assert.Equal(t, "storage operation failed", env.Message)
	assert.Equal(t, "value", env.Details["field"])
	assert.Equal(t, "trace-1", env.TraceID)
}

func TestHandleError_UnauthenticatedCollapsed(t *testing.T) {
	for _, err := range []error{
		commonerrors.ErrUnauthenticatedMissing,
		commonerrors.ErrUnauthenticatedInvalid.WithCause(errors.New("bad signature")),
		commonerrors.ErrUnauthenticatedExpired,
	} {
		req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
		rec := httptest.NewRecorder()

		HandleError(rec, req, err, testLogger())

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
		env := decodeEnvelope(t, rec)
		assert.Equal(t, CodeUnauthorized, env.Code)
		assert.Equal(t, "unauthorized", env.Message)
		assert.Empty(t, env.Details)
	}
}

func TestHandleError_UnknownErrorIsInternal(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	rec := httptest.NewRecorder()

	HandleError(rec, req, errors.New("boom"), testLogger())

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, CodeInternal, env.Code)
	assert.NotContains(t, env.Message, "boom")
}

func TestHandleError_NilWritesNothing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	HandleError(rec, req, nil, testLogger())

	assert.Equal(t, 0, rec.Body.Len())
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Username string `json:"username"`
	}

	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{name: "valid", body: `{"username":"alice"}`},
		{name: "unknown field", body: `{"username":"alice","admin":true}`, wantErr: true},
		{name: "trailing value", body: `{"username":"alice"}{"username":"bob"}`, wantErr: true},
		{name: "not json", body: `username=alice`, wantErr: true},
		{name: "empty", body: ``, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var p payload
			err := DecodeJSON(req, &p)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "alice", p.Username)
		})
	}
}

func TestHealthHandler(t *testing.T) {
	checks := map[string]HealthCheck{
		"store": func(context.Context) error { return nil },
	}

	rec := httptest.NewRecorder()
	HealthHandler(testLogger(), checks)(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	checks["store"] = func(context.Context) error { return errors.New("down") }
	rec = httptest.NewRecorder()
	HealthHandler(testLogger(), checks)(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, "unavailable", body["store"])
}

func TestTraceIDMiddleware(t *testing.T) {
	var seen string
	handler := TraceIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = r.Context().Value(constants.TraceIDKey).(string)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Trace-ID", "client-trace")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "client-trace", seen)
	assert.Equal(t, "client-trace", rec.Header().Get("X-Trace-ID"))

	for _, bad := range []string{strings.Repeat("x", 65), "id\nforged=1", "a b"} {
		req = httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Trace-ID", bad)
		rec = httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Len(t, seen, 32)
		assert.NotEqual(t, bad, seen)
	}
}

func TestClientIPResolver_IgnoresHeadersFromUntrustedPeer(t *testing.T) {
	resolver, err := NewClientIPResolver(nil)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.9:5555"
	req.Header.Set("X-Real-IP", "198.51.100.2")
	req.Header.Set("X-Forwarded-For", "198.51.100.3")
	assert.Equal(t, "203.0.113.9", resolver.ClientIP(req))

	ipv6 := httptest.NewRequest(http.MethodGet, "/", nil)
	ipv6.RemoteAddr = "[2001:db8::1]:443"
	assert.Equal(t, "2001:db8::1", resolver.ClientIP(ipv6))
}

func TestClientIPResolver_TrustedProxy(t *testing.T) {
	resolver, err := NewClientIPResolver([]string{"10.0.0.0/8", "192.0.2.10"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	req.Header.Set("X-Forwarded-For", "198.51.100.7, 203.0.113.7, 192.0.2.10")
	assert.Equal(t, "203.0.113.7", resolver.ClientIP(req), "rightmost untrusted hop is the client")

	realIP := httptest.NewRequest(http.MethodGet, "/", nil)
	realIP.RemoteAddr = "10.0.0.1:5555"
	realIP.Header.Set("X-Real-IP", "198.51.100.2")
	assert.Equal(t, "198.51.100.2", resolver.ClientIP(realIP))

	garbage := httptest.NewRequest(http.MethodGet, "/", nil)
	garbage.RemoteAddr = "10.0.0.1:5555"
	garbage.Header.Set("X-Forwarded-For", "not-an-ip")
	assert.Equal(t, "10.0.0.1", resolver.ClientIP(garbage))
}

func TestNewClientIPResolver_RejectsInvalidEntries(t *testing.T) {
	for _, entry := range []string{"10.0.0.0/33", "proxy.local", ""} {
		_, err := NewClientIPResolver([]string{entry})
		assert.Error(t, err, entry)
	}
}

func TestPathRateLimiter_RotatingForwardedHeaderDoesNotBypass(t *testing.T) {
	limiter := NewPathRateLimiter(map[string]RateLimitRule{
		"/api/auth/login": {Name: "login", RequestsPerSecond: 0.01, Burst: 3},
	}, nil)
	t.Cleanup(limiter.Stop)

	handler := limiter.MiddlewareForPath("/api/auth/login")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	blocked := 0
	for i := 0; i < 50; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		req.RemoteAddr = "203.0.113.50:40000"
		req.Header.Set("X-Real-IP", fmt.Sprintf("198.51.100.%d", i))
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.18.0.%d", i))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code == http.StatusTooManyRequests {
			blocked++
		}
	}
	assert.Equal(t, 47, blocked)
}

func TestPathRateLimiter_KeysByForwardedClientBehindTrustedProxy(t *testing.T) {
	resolver, err := NewClientIPResolver([]string{"10.0.0.1"})
	require.NoError(t, err)
	limiter := NewPathRateLimiter(map[string]RateLimitRule{
		"/api/auth/login": {Name: "login", RequestsPerSecond: 0.01, Burst: 1},
	}, resolver)
	t.Cleanup(limiter.Stop)

	handler := limiter.MiddlewareForPath("/api/auth/login")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for _, client := range []string{"198.51.100.1", "198.51.100.2"} {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		req.RemoteAddr = "10.0.0.1:40000"
		req.Header.Set("X-Forwarded-For", client)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, "distinct clients behind one proxy get their own bucket")
	}
}
