package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/tokenauth/internal/server/metrics"
)

func newTestLimiter(t *testing.T, rate int, window time.Duration) (*RateLimiter, *testClock) {
	t.Helper()
	clock := &testClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	limiter := newRateLimiter(rate, window, clock.Now)
	t.Cleanup(limiter.Stop)
	return limiter, clock
}

func TestRateLimiter_Allow(t *testing.T) {
	t.Run("First requests within limit are allowed", func(t *testing.T) {
		limiter, _ := newTestLimiter(t, 5, time.Minute)

		for i := range 5 {
			assert.True(t, limiter.Allow("192.168.1.1"), "request %d should be allowed", i+1)
		}
		assert.False(t, limiter.Allow("192.168.1.1"), "request over the limit should be blocked")
	})

	t.Run("Keys are tracked separately", func(t *testing.T) {
		limiter, _ := newTestLimiter(t, 1, time.Minute)

		assert.True(t, limiter.Allow("a"))
		assert.False(t, limiter.Allow("a"))
		assert.True(t, limiter.Allow("b"))
	})

	t.Run("Tokens are refilled after window", func(t *testing.T) {
		limiter, clock := newTestLimiter(t, 2, time.Minute)

		assert.True(t, limiter.Allow("k"))
		assert.True(t, limiter.Allow("k"))
		assert.False(t, limiter.Allow("k"))

		clock.now = clock.now.Add(time.Minute)
		assert.True(t, limiter.Allow("k"), "tokens should be refilled")
	})
}

func TestRateLimiter_CleanupOldBuckets(t *testing.T) {
	limiter, clock := newTestLimiter(t, 5, time.Minute)

	limiter.Allow("old")
	clock.now = clock.now.Add(90 * time.Second)
	limiter.Allow("fresh")
	clock.now = clock.now.Add(45 * time.Second)

	limiter.cleanupOldBuckets()

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	assert.NotContains(t, limiter.buckets, "old")
	assert.Contains(t, limiter.buckets, "fresh")
}

func TestRateLimiter_StopIsIdempotent(t *testing.T) {
	limiter := NewRateLimiter(1, time.Millisecond)

	assert.NotPanics(t, func() {
		limiter.Stop()
		limiter.Stop()
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	limiter, _ := newTestLimiter(t, 3, time.Minute)
	m := metrics.New()

	handler := RateLimitMiddleware(limiter, setupTestLogger(), m, false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// Первые 3 запроса проходят, в том числе с разных портов одного IP
	for i := range 3 {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
		req.RemoteAddr = fmt.Sprintf("192.168.1.2:%d", 40000+i)
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	}

	// 4-й запрос блокируется
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
	req.RemoteAddr = "192.168.1.2:50000"
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "rate limit exceeded")

	count, err := testutil.GatherAndCount(m.Registry(), "tokenauth_rate_limited_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRateLimitMiddleware_IgnoresSpoofedForwardedFor(t *testing.T) {
	limiter, _ := newTestLimiter(t, 2, time.Minute)

	handler := RateLimitMiddleware(limiter, setupTestLogger(), metrics.New(), false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// один сокет, каждый запрос с новым X-Forwarded-For
	limited := 0
	for i := range 50 {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
		req.RemoteAddr = "203.0.113.7:40000"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("10.0.0.%d", i))
		req.Header.Set("X-Real-IP", fmt.Sprintf("10.1.0.%d", i))
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)
		if w.Code == http.StatusTooManyRequests {
			limited++
		}
	}

	assert.Equal(t, 48, limited)
}

func TestRateLimitMiddleware_TrustedProxyHeaders(t *testing.T) {
	limiter, _ := newTestLimiter(t, 1, time.Minute)

	handler := RateLimitMiddleware(limiter, setupTestLogger(), metrics.New(), true)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// за прокси все запросы приходят с одного адреса, ключ - реальный клиент
	for _, client := range []string{"192.168.1.1", "192.168.1.2"} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
		req.RemoteAddr = "10.0.0.1:40000"
		req.Header.Set("X-Forwarded-For", client)
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, client)
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		xRealIP    string
		expectedIP string
		trustProxy bool
	}{
		{
			name:       "X-Forwarded-For with single IP",
			remoteAddr: "10.0.0.1:12345",
			xff:        "192.168.1.1",
			trustProxy: true,
			expectedIP: "192.168.1.1",
		},
		{
			name:       "X-Forwarded-For with multiple IPs",
			remoteAddr: "10.0.0.1:12345",
			xff:        "192.168.1.1, 10.0.0.2, 10.0.0.3",
			trustProxy: true,
			expectedIP: "192.168.1.1", // Первый IP
		},
		{
			name:       "X-Real-IP when X-Forwarded-For is empty",
			remoteAddr: "10.0.0.1:12345",
			xRealIP:    "192.168.2.1",
			trustProxy: true,
			expectedIP: "192.168.2.1",
		},
		{
			name:       "X-Forwarded-For takes precedence over X-Real-IP",
			remoteAddr: "10.0.0.1:12345",
			xff:        "192.168.1.1",
			xRealIP:    "192.168.2.1",
			trustProxy: true,
			expectedIP: "192.168.1.1",
		},
		{
			name:       "proxy headers ignored when not trusted",
			remoteAddr: "10.0.0.1:12345",
			xff:        "192.168.1.1",
			xRealIP:    "192.168.2.1",
			expectedIP: "10.0.0.1",
		},
		{
			name:       "RemoteAddr without port when headers are empty",
			remoteAddr: "192.168.3.1:54321",
			trustProxy: true,
			expectedIP: "192.168.3.1",
		},
		{
			name:       "RemoteAddr without port at all",
			remoteAddr: "192.168.3.1",
			expectedIP: "192.168.3.1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xRealIP != "" {
				req.Header.Set("X-Real-IP", tt.xRealIP)
			}

			assert.Equal(t, tt.expectedIP, getClientIP(req, tt.trustProxy))
		})
	}
}
