package httpapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/ileri/atelier/analysis"
	"github.com/ileri/atelier/auth"
	"github.com/ileri/atelier/dbopen"
	"github.com/ileri/atelier/docstore"
	"github.com/ileri/atelier/observability"
	"github.com/ileri/atelier/reconcile"
	"github.com/ileri/atelier/session"
	"github.com/ileri/atelier/shield"
	"github.com/ileri/atelier/site"
)

const (
	testSecret   = "0123456789abcdef0123456789abcdef"
	testPassword = "rose-gold-2026"
)

type fixture struct {
	srv     *httptest.Server
	rec     *reconcile.Reconciler
	gate    *session.Gate
	metrics *observability.Metrics
	remote  *countingEndpoint
}

type countingEndpoint struct {
	calls atomic.Int32
}

func (e *countingEndpoint) Analyze(_ context.Context, _ []byte, lang analysis.Language, _ string, _ json.RawMessage) (string, error) {
	e.calls.Add(1)
	r := analysis.Fallback(lang)
	r.Summary = "remote report " + string(lang)
	b, err := json.Marshal(r)
	return "```json\n" + string(b) + "\n```", err
}

type allowAll struct{}

func (allowAll) TryAcquire(time.Time) bool { return true }

func newFixture(t *testing.T) *fixture {
	t.Helper()
	storeDB := dbopen.OpenMemory(t)
	obsDB := dbopen.OpenMemory(t)
	require.NoError(t, observability.Init(obsDB))
	require.NoError(t, shield.Init(obsDB))

	hash, err := auth.HashPassword(testPassword)
	require.NoError(t, err)
	local, err := auth.NewLocal("admin", hash, []byte(testSecret), time.Hour)
	require.NoError(t, err)
	events := observability.NewEventLogger(obsDB)
	gate := session.NewGate(local, session.WithEventLogger(events))

	store, err := docstore.New(storeDB, docstore.WithAuthorizer(gate))
	require.NoError(t, err)
	t.Cleanup(store.Close)

	metrics := observability.NewMetrics()
	rec := reconcile.New(store,
		reconcile.WithRetryInterval(20*time.Millisecond),
		reconcile.WithMetrics(metrics),
		reconcile.WithEventLogger(events),
	)
	require.NoError(t, rec.Start(context.Background(), reconcile.SessionContext{}))
	t.Cleanup(rec.Stop)
	t.Cleanup(gate.Subscribe(func(s session.Status) { rec.SetAuthenticated(s.Authenticated) }))

	remote := &countingEndpoint{}
	pipeline := analysis.New(remote, analysis.WithLimiter(allowAll{}), analysis.WithMetrics(metrics))

	stack, mm, _ := shield.DefaultStack(obsDB)
	s := New(Deps{
		Reconciler:  rec,
		Gate:        gate,
		Auth:        local,
		Analysis:    pipeline,
		Feed:        store,
		Maintenance: mm,
		Metrics:     metrics,
		Events:      events,
		Middleware:  stack,
	})
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return &fixture{srv: srv, rec: rec, gate: gate, metrics: metrics, remote: remote}
}

func (f *fixture) client(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar, Timeout: 5 * time.Second}
}

func (f *fixture) do(t *testing.T, c *http.Client, method, path string, body any) (int, []byte) {
	t.Helper()
	return f.doBearer(t, c, method, path, body, "")
}

// doBearer is do with the token in an Authorization header instead of the
// cookie.
func (f *fixture) doBearer(t *testing.T, c *http.Client, method, path string, body any, token string) (int, []byte) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, f.srv.URL+path, rd)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, out
}

// login signs c in and returns the issued token.
func (f *fixture) login(t *testing.T, c *http.Client) string {
	t.Helper()
	code, body := f.do(t, c, http.MethodPost, "/api/login", auth.Credential{Username: "admin", Password: testPassword})
	require.Equal(t, http.StatusOK, code, string(body))
	var resp loginResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func (f *fixture) siteView(t *testing.T, c *http.Client) site.Configuration {
	t.Helper()
	code, body := f.do(t, c, http.MethodGet, "/api/site?lang=en", nil)
	require.Equal(t, http.StatusOK, code)
	var cfg site.Configuration
	require.NoError(t, json.Unmarshal(body, &cfg))
	return cfg
}

func TestLoginLogout(t *testing.T) {
	f := newFixture(t)
	c := f.client(t)

	code, _ := f.do(t, c, http.MethodPost, "/api/login", auth.Credential{Username: "admin", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.False(t, f.gate.Authorized())

	code, _ = f.do(t, c, http.MethodPost, "/api/login", map[string]string{"username": "admin"})
	assert.Equal(t, http.StatusBadRequest, code, "password is required")

	f.login(t, c)
	assert.True(t, f.gate.Authorized())
	assert.True(t, f.rec.Authenticated())

	code, body := f.do(t, c, http.MethodGet, "/api/session", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(body), `"authenticated":true`)

	code, _ = f.do(t, c, http.MethodPost, "/api/logout", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.False(t, f.gate.Authorized())
	assert.False(t, f.rec.Authenticated())

	code, _ = f.do(t, c, http.MethodPut, "/api/title", map[string]string{"value": "Atelier"})
	assert.Equal(t, http.StatusUnauthorized, code, "cookie cleared on logout")
}

func TestAdminRoutesRequireToken(t *testing.T) {
	f := newFixture(t)
	c := f.client(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodPut, "/api/settings"},
		{http.MethodPut, "/api/title"},
		{http.MethodPut, "/api/legacy"},
		{http.MethodPost, "/api/collections/products"},
		{http.MethodDelete, "/api/collections/products/1"},
		{http.MethodPatch, "/api/orders/1"},
		{http.MethodPatch, "/api/appointments/1"},
		{http.MethodPut, "/api/maintenance"},
	} {
		code, _ := f.do(t, c, tc.method, tc.path, map[string]string{})
		assert.Equal(t, http.StatusUnauthorized, code, tc.method+" "+tc.path)
	}
}

func TestTokenResumesSession(t *testing.T) {
	f := newFixture(t)
	c := f.client(t)
	require.False(t, f.gate.Authorized())

	// Signed before a restart: the new process never saw it issued.
	token, err := auth.GenerateToken([]byte(testSecret), &auth.Claims{UserID: "admin:admin", Username: "admin", Role: auth.RoleAdmin}, time.Hour)
	require.NoError(t, err)

	code, _ := f.doBearer(t, c, http.MethodPut, "/api/title", map[string]string{"value": "Atelier Ileri"}, token)
	assert.Equal(t, http.StatusNoContent, code)
	assert.True(t, f.gate.Authorized())
	require.Eventually(t, func() bool {
		return f.siteView(t, c).SiteTitle == "Atelier Ileri"
	}, 2*time.Second, 20*time.Millisecond)
}

func TestLogoutRevokesToken(t *testing.T) {
	f := newFixture(t)
	admin := f.client(t)
	token := f.login(t, admin)

	code, _ := f.do(t, admin, http.MethodPost, "/api/logout", nil)
	require.Equal(t, http.StatusOK, code)
	require.False(t, f.gate.Authorized())

	other := f.client(t)
	code, _ = f.doBearer(t, other, http.MethodPut, "/api/title", map[string]string{"value": "Hijacked"}, token)
	assert.Equal(t, http.StatusUnauthorized, code)
	code, body := f.doBearer(t, other, http.MethodGet, "/api/session", nil, token)
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(body), `"authenticated":false`)
	assert.False(t, f.gate.Authorized(), "a revoked token does not resume the session")
	assert.False(t, f.rec.Authenticated())

	f.login(t, admin)
	assert.True(t, f.gate.Authorized(), "logging in again still works")
}

func TestAnonymousLogoutKeepsSession(t *testing.T) {
	f := newFixture(t)
	admin := f.client(t)
	f.login(t, admin)

	code, _ := f.do(t, f.client(t), http.MethodPost, "/api/logout", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, f.gate.Authorized())
	assert.True(t, f.rec.Authenticated())

	code, _ = f.do(t, admin, http.MethodPut, "/api/title", map[string]string{"value": "Still here"})
	assert.Equal(t, http.StatusNoContent, code)
}

func TestPublishSettings(t *testing.T) {
	f := newFixture(t)
	c := f.client(t)
	f.login(t, c)

	code, _ := f.do(t, c, http.MethodPut, "/api/settings", map[string]string{
		"heroTitle":    "Bridal Season",
		"heroTitle_en": "Bridal Season EN",
		"contactEmail": "hello@example.com",
	})
	require.Equal(t, http.StatusNoContent, code)
	require.Eventually(t, func() bool {
		v := f.siteView(t, c)
		return v.HeroTitle == "Bridal Season EN" && v.ContactEmail == "hello@example.com"
	}, 2*time.Second, 20*time.Millisecond)

	code, _ = f.do(t, c, http.MethodPut, "/api/settings", map[string]string{"heroTitle": "  "})
	assert.Equal(t, http.StatusBadRequest, code, "blank settings are rejected")
}

func TestCollectionsAndCheckout(t *testing.T) {
	f := newFixture(t)
	admin := f.client(t)
	guest := f.client(t)
	f.login(t, admin)

	code, body := f.do(t, admin, http.MethodPost, "/api/collections/products", site.Product{Name: "Velvet Lipstick", Price: "€12.50"})
	require.Equal(t, http.StatusCreated, code, string(body))
	var product site.Product
	require.NoError(t, json.Unmarshal(body, &product))
	require.NotZero(t, product.ID)

	code, _ = f.do(t, admin, http.MethodPost, "/api/collections/products", site.Product{Price: "€1"})
	assert.Equal(t, http.StatusBadRequest, code, "name is required")
	code, _ = f.do(t, admin, http.MethodPost, "/api/collections/perfumes", site.Product{Name: "x", Price: "€1"})
	assert.Equal(t, http.StatusNotFound, code)

	require.Eventually(t, func() bool { return len(f.siteView(t, guest).Products) == 1 }, 2*time.Second, 20*time.Millisecond)

	cart := map[string]any{
		"customer": site.Customer{
			FullName: "Ada Lovelace", Phone: "+49 30 1", Email: "ada@example.com",
			Address: "Unter den Linden 1", City: "Berlin", ZipCode: "10117",
		},
		"items": []map[string]any{{"productId": product.ID, "quantity": 2, "price": "€0.01"}},
	}
	code, body = f.do(t, guest, http.MethodPost, "/api/orders", cart)
	require.Equal(t, http.StatusCreated, code, string(body))
	var order site.Order
	require.NoError(t, json.Unmarshal(body, &order))
	assert.Equal(t, "€25.00", order.TotalAmount)
	assert.Equal(t, site.OrderPending, order.Status)

	cart["items"] = []map[string]any{{"productId": 999, "quantity": 1}}
	code, _ = f.do(t, guest, http.MethodPost, "/api/orders", cart)
	assert.Equal(t, http.StatusUnprocessableEntity, code)

	assert.Empty(t, f.siteView(t, guest).Orders, "anonymous view never carries orders")
	require.Eventually(t, func() bool { return len(f.siteView(t, admin).Orders) == 1 }, 2*time.Second, 20*time.Millisecond)

	id := strconv.FormatInt(order.ID, 10)
	code, _ = f.do(t, guest, http.MethodPatch, "/api/orders/"+id, map[string]string{"status": "shipped"})
	assert.Equal(t, http.StatusUnauthorized, code)
	code, _ = f.do(t, admin, http.MethodPatch, "/api/orders/"+id, map[string]string{"status": "lost"})
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = f.do(t, admin, http.MethodPatch, "/api/orders/999999", map[string]string{"status": "shipped"})
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = f.do(t, admin, http.MethodPatch, "/api/orders/"+id, map[string]string{"status": "shipped"})
	require.Equal(t, http.StatusNoContent, code)
	require.Eventually(t, func() bool {
		o := f.siteView(t, admin).Orders
		return len(o) == 1 && o[0].Status == site.OrderShipped
	}, 2*time.Second, 20*time.Millisecond)

	code, _ = f.do(t, admin, http.MethodDelete, "/api/collections/products/"+strconv.FormatInt(product.ID, 10), nil)
	require.Equal(t, http.StatusNoContent, code)
	require.Eventually(t, func() bool { return len(f.siteView(t, guest).Products) == 0 }, 2*time.Second, 20*time.Millisecond)
	code, _ = f.do(t, admin, http.MethodDelete, "/api/collections/products/abc", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestBookAppointment(t *testing.T) {
	f := newFixture(t)
	guest := f.client(t)

	code, body := f.do(t, guest, http.MethodPost, "/api/appointments", map[string]string{
		"name": "Grace", "phone": "+49 40 2", "date": "2026-11-02", "time": "14:30", "service": "Bridal makeup",
	})
	require.Equal(t, http.StatusCreated, code, string(body))
	var a site.Appointment
	require.NoError(t, json.Unmarshal(body, &a))
	assert.Equal(t, site.AppointmentPending, a.Status)
	assert.NotEmpty(t, a.CreatedAt)

	code, _ = f.do(t, guest, http.MethodPost, "/api/appointments", map[string]string{
		"name": "Grace", "phone": "+49 40 2", "date": "next tuesday", "time": "14:30", "service": "Bridal makeup",
	})
	assert.Equal(t, http.StatusBadRequest, code)

	admin := f.client(t)
	f.login(t, admin)
	code, _ = f.do(t, admin, http.MethodPatch, "/api/appointments/"+strconv.FormatInt(a.ID, 10), map[string]string{"status": "confirmed"})
	require.Equal(t, http.StatusNoContent, code)
	require.Eventually(t, func() bool {
		ap := f.siteView(t, admin).Appointments
		return len(ap) == 1 && ap[0].Status == site.AppointmentConfirmed
	}, 2*time.Second, 20*time.Millisecond)
}

func TestAnalysis(t *testing.T) {
	f := newFixture(t)
	c := f.client(t)
	photo := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString([]byte("portrait-one"))

	code, _ := f.do(t, c, http.MethodPost, "/api/analysis/language?lang=de", nil)
	assert.Equal(t, http.StatusConflict, code, "no photo yet")
	code, _ = f.do(t, c, http.MethodGet, "/api/analysis", nil)
	assert.Equal(t, http.StatusNotFound, code)

	var resp analysisResponse
	code, body := f.do(t, c, http.MethodPost, "/api/analysis?lang=en", map[string]string{"image": photo})
	require.Equal(t, http.StatusOK, code, string(body))
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.Equal(t, "remote report en", resp.Result.Summary)
	assert.False(t, resp.Cached)
	assert.Equal(t, analysis.English, resp.Language)

	code, body = f.do(t, c, http.MethodPost, "/api/analysis", map[string]string{"image": photo, "lang": "en"})
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.True(t, resp.Cached)
	assert.EqualValues(t, 1, f.remote.calls.Load())

	code, body = f.do(t, c, http.MethodPost, "/api/analysis/language", map[string]string{"lang": "de"})
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.Equal(t, "remote report de", resp.Result.Summary)
	assert.EqualValues(t, 2, f.remote.calls.Load())

	code, body = f.do(t, c, http.MethodGet, "/api/analysis", nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.Equal(t, analysis.German, resp.Language)

	code, _ = f.do(t, c, http.MethodPost, "/api/analysis?lang=fr", map[string]string{"image": photo})
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = f.do(t, c, http.MethodPost, "/api/analysis", map[string]string{"image": "data:image/png;base64,"})
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = f.do(t, c, http.MethodPost, "/api/analysis", map[string]string{"image": "%%%"})
	assert.Equal(t, http.StatusBadRequest, code)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.AnalysisRequests.WithLabelValues("en", "cached")))
}

func TestAnalysisIsPerVisitor(t *testing.T) {
	f := newFixture(t)
	alice := f.client(t)
	bob := f.client(t)
	photo := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString([]byte("alice-portrait"))

	code, body := f.do(t, alice, http.MethodPost, "/api/analysis?lang=en", map[string]string{"image": photo})
	require.Equal(t, http.StatusOK, code, string(body))
	require.EqualValues(t, 1, f.remote.calls.Load())

	code, _ = f.do(t, bob, http.MethodGet, "/api/analysis", nil)
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = f.do(t, bob, http.MethodPost, "/api/analysis/language?lang=de", nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.EqualValues(t, 1, f.remote.calls.Load(), "no remote call on someone else's photo")

	code, body = f.do(t, alice, http.MethodGet, "/api/analysis", nil)
	require.Equal(t, http.StatusOK, code)
	var resp analysisResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.Equal(t, "remote report en", resp.Result.Summary)

	_, body = f.do(t, bob, http.MethodGet, "/healthz", nil)
	assert.Contains(t, string(body), `"consultations":1`)
}

func TestMaintenance(t *testing.T) {
	f := newFixture(t)
	admin := f.client(t)
	f.login(t, admin)

	code, body := f.do(t, admin, http.MethodPut, "/api/maintenance", map[string]any{"active": true, "message": "New collection at noon"})
	require.Equal(t, http.StatusOK, code, string(body))

	code, body = f.do(t, f.client(t), http.MethodGet, "/api/site", nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, string(body), "New collection at noon")
	code, _ = f.do(t, admin, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, code)

	code, _ = f.do(t, admin, http.MethodPut, "/api/maintenance", map[string]any{"active": false})
	require.Equal(t, http.StatusOK, code)
	code, _ = f.do(t, f.client(t), http.MethodGet, "/api/site", nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestLiveFeed(t *testing.T) {
	f := newFixture(t)
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/api/site/live?lang=en"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	defer conn.Close()

	var cfg site.Configuration
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.ReadJSON(&cfg))
	assert.Nil(t, cfg.Orders)
	require.Eventually(t, func() bool { return testutil.ToFloat64(f.metrics.LiveClients) == 1 }, 2*time.Second, 10*time.Millisecond)

	f.rec.Apply(reconcile.TitleEvent{Value: "Atelier Live"})
	for cfg.SiteTitle != "Atelier Live" {
		require.NoError(t, conn.ReadJSON(&cfg))
	}

	conn.Close()
	require.Eventually(t, func() bool { return testutil.ToFloat64(f.metrics.LiveClients) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t)
	c := f.client(t)

	code, body := f.do(t, c, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(body), `"status":"ok"`)
	assert.Contains(t, string(body), `"feed":{`)

	code, body = f.do(t, c, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(body), "atelier_http_requests_total")
	assert.Contains(t, string(body), `route="/healthz"`)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusUnauthorized, statusFor(reconcile.ErrUnauthenticated))
	assert.Equal(t, http.StatusNotFound, statusFor(reconcile.ErrNotFound))
	assert.Equal(t, http.StatusBadRequest, statusFor(&docstore.Error{Op: "set", Code: docstore.CodeInvalidArgument}))
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(&docstore.Error{Op: "set", Code: docstore.CodeUnavailable}))
	assert.Equal(t, http.StatusInternalServerError, statusFor(io.ErrUnexpectedEOF))
}
