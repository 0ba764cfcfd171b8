package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/beanhop/backend/internal/metrics"
	"github.com/beanhop/backend/pkg/logger"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

// =============================================================================
// CORS
// =============================================================================

func TestCORSAllowAll(t *testing.T) {
	h := NewCORSMiddleware([]string{"*"}).Handler(okHandler)

	req := httptest.NewRequest(http.MethodGet, "/api/shops", nil)
	req.Header.Set("Origin", "http://localhost:8081")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "http://localhost:8081", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSPreflight(t *testing.T) {
	h := NewCORSMiddleware([]string{"*.beanhop.ca"}).Handler(okHandler)

	req := httptest.NewRequest(http.MethodOptions, "/api/orders", nil)
	req.Header.Set("Origin", "https://app.beanhop.ca")
	req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
	req.Header.Set("Access-Control-Request-Headers", "content-type, x-client-version")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "https://app.beanhop.ca", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rr.Header().Get("Access-Control-Allow-Credentials"))
	assert.Contains(t, rr.Header().Get("Access-Control-Allow-Methods"), "PATCH")
	assert.Equal(t, "content-type, x-client-version", rr.Header().Get("Access-Control-Allow-Headers"))
}

func TestCORSPreflightDisallowedOrigin(t *testing.T) {
	h := NewCORSMiddleware([]string{"https://app.beanhop.ca"}).Handler(okHandler)

	req := httptest.NewRequest(http.MethodOptions, "/api/orders", nil)
	req.Header.Set("Origin", "https://evil.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSPlainOptionsReachesRouter(t *testing.T) {
	h := NewCORSMiddleware([]string{"*"}).Handler(okHandler)

	req := httptest.NewRequest(http.MethodOptions, "/api/orders", nil)
	req.Header.Set("Origin", "http://localhost:8081")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestCORSRejectsUnknownOrigin(t *testing.T) {
	h := NewCORSMiddleware([]string{"https://app.beanhop.ca"}).Handler(okHandler)

	req := httptest.NewRequest(http.MethodGet, "/api/shops", nil)
	req.Header.Set("Origin", "https://evil.example")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSAllowed(t *testing.T) {
	m := NewCORSMiddleware([]string{"https://admin.beanhop.ca/", "*.beanhop.app"})

	for origin, want := range map[string]bool{
		"https://admin.beanhop.ca":     true,
		"HTTPS://ADMIN.BEANHOP.CA":     true,
		"https://shop.beanhop.app":     true,
		"https://a.b.beanhop.app:8443": true,
		"https://evilbeanhop.app":      false,
		"https://beanhop.app.evil.com": false,
		"https://other.beanhop.ca":     false,
	} {
		assert.Equal(t, want, m.Allowed(origin), origin)
	}
}

// =============================================================================
// Rate limiting
// =============================================================================

func TestRateLimiterBlocksAfterBurst(t *testing.T) {
	rl := NewRateLimiter(1, 2, logger.NewDiscard())
	h := rl.Handler(okHandler)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/promos", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}

	assert.Equal(t, []int{200, 200, 429}, codes)
	assert.Equal(t, 1, rl.Tracked())
}

func TestRateLimiterSeparatesClients(t *testing.T) {
	rl := NewRateLimiter(1, 1, logger.NewDiscard(), WithIdleTTL(time.Minute))
	clock := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return clock }
	h := rl.Handler(okHandler)

	for _, addr := range []string{"10.0.0.1:1", "10.0.0.2:1"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code)
	}

	clock = clock.Add(30 * time.Second)
	assert.Equal(t, 0, rl.Cleanup())
	assert.Equal(t, 2, rl.Tracked())

	clock = clock.Add(2 * time.Minute)
	assert.Equal(t, 2, rl.Cleanup())
	assert.Equal(t, 0, rl.Tracked())
}

func TestRateLimiterIgnoresForwardedForFromUntrustedPeer(t *testing.T) {
	rl := NewRateLimiter(1, 1, logger.NewDiscard())
	h := rl.Handler(okHandler)

	codes := make([]int, 0, 3)
	for _, fwd := range []string{"198.51.100.1", "198.51.100.2", "198.51.100.3"} {
		req := httptest.NewRequest(http.MethodGet, "/api/promos", nil)
		req.RemoteAddr = "203.0.113.7:40000"
		req.Header.Set("X-Forwarded-For", fwd)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}

	assert.Equal(t, []int{200, 429, 429}, codes)
	assert.Equal(t, 1, rl.Tracked())
}

func TestRateLimiterClientKey(t *testing.T) {
	proxies, err := ParseTrustedProxies([]string{"10.0.0.0/8", "127.0.0.1"})
	require.NoError(t, err)
	rl := NewRateLimiter(1, 1, logger.NewDiscard(), WithTrustedProxies(proxies))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "127.0.0.1:9000"
	req.Header.Set("X-Forwarded-For", "1.2.3.4, 203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", rl.clientKey(req))

	req.Header.Del("X-Forwarded-For")
	assert.Equal(t, "127.0.0.1", rl.clientKey(req))

	req.RemoteAddr = "192.0.2.50:9000"
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	assert.Equal(t, "192.0.2.50", rl.clientKey(req))
}

func TestRateLimiterOverflowKeepsTrackedClients(t *testing.T) {
	rl := NewRateLimiter(1, 1, logger.NewDiscard())
	for i := 0; i < maxTrackedClients; i++ {
		rl.getLimiter(fmt.Sprintf("10.1.%d.%d", i/256, i%256))
	}
	require.Equal(t, maxTrackedClients, rl.Tracked())

	first := rl.getLimiter("10.1.0.0")
	assert.Same(t, rl.overflow, rl.getLimiter("192.0.2.1"))
	assert.Same(t, first, rl.getLimiter("10.1.0.0"))
	assert.Equal(t, maxTrackedClients, rl.Tracked())
}

func TestParseTrustedProxies(t *testing.T) {
	nets, err := ParseTrustedProxies([]string{" 10.0.0.0/8 ", "", "::1"})
	require.NoError(t, err)
	require.Len(t, nets, 2)
	assert.True(t, nets[1].Contains(net.ParseIP("::1")))

	_, err = ParseTrustedProxies([]string{"not-an-ip"})
	assert.Error(t, err)
}

// =============================================================================
// Tracing, metrics, recovery
// =============================================================================

func TestTracingPropagatesTraceID(t *testing.T) {
	var seen string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logger.GetTraceID(r.Context())
	})

	var buf bytes.Buffer
	h := NewTracingMiddleware(logger.New(logger.Config{Service: "test", Output: &buf})).Handler(inner)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set(TraceIDHeader, "abc-123")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", rr.Header().Get(TraceIDHeader))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "abc-123", entry["trace_id"])
}

func TestTracingGeneratesTraceID(t *testing.T) {
	h := NewTracingMiddleware(logger.NewDiscard()).Handler(okHandler)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, rr.Header().Get(TraceIDHeader))
}

func TestMetricsMiddlewareUsesRouteTemplate(t *testing.T) {
	m := metrics.New("test")
	router := mux.NewRouter()
	router.Use(MetricsMiddleware("api", m))
	router.HandleFunc("/orders/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/orders/ord-1", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)

	count, err := testutil.GatherAndCount(m.Registry, "test_http_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRecoveryReturns500(t *testing.T) {
	h := Recovery(logger.NewDiscard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.JSONEq(t, `{"detail":"internal server error"}`, rr.Body.String())
}
