package shield

import (
	"context"
	"database/sql"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/ileri/atelier/dbopen"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db := dbopen.OpenMemory(t)
	require.NoError(t, Init(db))
	return db
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
}

func serve(h http.Handler, method, path string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestDefaultStackHeaders(t *testing.T) {
	stack, _, _ := DefaultStack(setupDB(t))
	r := chi.NewRouter()
	for _, mw := range stack {
		r.Use(mw)
	}
	r.Get("/api/site", func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, GetRequestID(r.Context()))
		w.WriteHeader(http.StatusOK)
	})

	w := serve(r, http.MethodGet, "/api/site", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Contains(t, w.Header().Get("Content-Security-Policy"), "connect-src 'self' ws: wss:")
	assert.Len(t, w.Header().Get(RequestIDHeader), 36)
}

func TestRequestIDKeepsValidIncoming(t *testing.T) {
	h := RequestID(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "0190f5a4-7b2c-7d3e-8f00-123456789abc")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, "0190f5a4-7b2c-7d3e-8f00-123456789abc", w.Header().Get(RequestIDHeader))

	req.Header.Set(RequestIDHeader, "<script>")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.NotEqual(t, "<script>", w.Header().Get(RequestIDHeader))
}

func TestMaxBody(t *testing.T) {
	h := MaxBody(8, map[string]int64{"/api/analysis": 64})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := io.ReadAll(r.Body); err != nil {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	assert.Equal(t, http.StatusRequestEntityTooLarge, serve(h, http.MethodPost, "/api/orders", strings.NewReader(strings.Repeat("x", 20))).Code)
	assert.Equal(t, http.StatusOK, serve(h, http.MethodPost, "/api/analysis", strings.NewReader(strings.Repeat("x", 20))).Code)
	assert.Equal(t, http.StatusOK, serve(h, http.MethodPost, "/api/orders", strings.NewReader("small")).Code)
}

func TestRateLimiter(t *testing.T) {
	db := setupDB(t)
	rl := NewRateLimiter(db, "/healthz")
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	require.NoError(t, rl.SetRule(context.Background(), "POST /api/orders", RateLimitConfig{MaxRequests: 2, WindowSeconds: 60, Enabled: true}))

	h := rl.Middleware(okHandler())
	for range 2 {
		assert.Equal(t, http.StatusOK, serve(h, http.MethodPost, "/api/orders", nil).Code)
	}
	w := serve(h, http.MethodPost, "/api/orders", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "30", w.Header().Get("Retry-After"), "one token back every window/max")
	assert.JSONEq(t, `{"error":"rate limit exceeded"}`, w.Body.String())

	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/api/site", nil).Code, "no rule, no limit")

	now = now.Add(30 * time.Second)
	assert.Equal(t, http.StatusOK, serve(h, http.MethodPost, "/api/orders", nil).Code, "refilled one token")
	assert.Equal(t, http.StatusTooManyRequests, serve(h, http.MethodPost, "/api/orders", nil).Code)

	now = now.Add(61 * time.Second)
	for range 2 {
		assert.Equal(t, http.StatusOK, serve(h, http.MethodPost, "/api/orders", nil).Code, "bucket full again")
	}

	now = now.Add(2 * time.Minute)
	rl.gc()
	_, ok := rl.buckets.Load("192.0.2.1 POST /api/orders")
	assert.False(t, ok)
}

func TestRateLimiterSeededRules(t *testing.T) {
	rl := NewRateLimiter(setupDB(t))
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	assert.Equal(t, RateLimitConfig{MaxRequests: 10, WindowSeconds: 300, Enabled: true}, rl.rules["POST /api/login"])
}

func TestExtractIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	assert.Equal(t, "10.0.0.1", ExtractIP(req))
	req.Header.Set("X-Forwarded-For", " 203.0.113.9 , 10.0.0.1")
	assert.Equal(t, "203.0.113.9", ExtractIP(req))
}

func TestMaintenance(t *testing.T) {
	db := setupDB(t)
	mm := NewMaintenanceMode(db, "/healthz")
	h := mm.Middleware(okHandler())
	ctx := context.Background()

	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/", nil).Code)

	require.NoError(t, mm.Set(ctx, true, "Back at <b>noon</b>"))
	assert.True(t, mm.Active())

	w := serve(h, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "300", w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "Back at &lt;b&gt;noon&lt;/b&gt;")

	w = serve(h, http.MethodGet, "/api/site", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"error":"maintenance","message":"Back at <b>noon</b>"}`, w.Body.String())

	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/healthz", nil).Code)

	require.NoError(t, mm.Set(ctx, false, ""))
	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/", nil).Code)
	assert.Equal(t, DefaultMaintenanceMessage, mm.Message())
}

func TestMaintenanceWithoutTable(t *testing.T) {
	mm := NewMaintenanceMode(dbopen.OpenMemory(t))
	assert.False(t, mm.Active())
	assert.Equal(t, http.StatusOK, serve(mm.Middleware(okHandler()), http.MethodGet, "/", nil).Code)
}
