// Package httpapi is the storefront's HTTP boundary: the public site view
// and its live websocket feed, the CMS administration routes, checkout and
// booking, and the makeup consultant.
//
// Authentication is soft on every route (the auth provider's middleware
// parses the token cookie and drops revoked tokens) and enforced per group
// with requireAdmin. A valid admin token
// presented while the process-wide session is logged out resumes it, so a
// restart does not force the administrator to log in again.
package httpapi

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/ileri/atelier/analysis"
	"github.com/ileri/atelier/auth"
	"github.com/ileri/atelier/observability"
	"github.com/ileri/atelier/reconcile"
	"github.com/ileri/atelier/session"
	"github.com/ileri/atelier/shield"
	"github.com/ileri/atelier/watch"
)

// Deps are the components the routes are served from. Reconciler, Gate and
// Auth are required; the rest may be nil.
type Deps struct {
	Reconciler  *reconcile.Reconciler
	Gate        *session.Gate
	Auth        *auth.Local
	Analysis    *analysis.Pipeline
	Visitors    *analysis.Visitors
	Feed        FeedStats
	Maintenance *shield.MaintenanceMode
	Metrics     *observability.Metrics
	Events      *observability.EventLogger
	Logger      *slog.Logger

	// Middleware runs outermost, before authentication. Usually the
	// shield.DefaultStack.
	Middleware []func(http.Handler) http.Handler

	SecureCookie  bool
	MaxImageBytes int
}

// Server holds the route handlers.
type Server struct {
	rec      *reconcile.Reconciler
	gate     *session.Gate
	auth     *auth.Local
	pipeline *analysis.Pipeline
	visitors *analysis.Visitors
	feed     FeedStats
	mm       *shield.MaintenanceMode
	metrics  *observability.Metrics
	events   *observability.EventLogger
	log      *slog.Logger
	validate *validator.Validate

	stack        []func(http.Handler) http.Handler
	secureCookie bool
	maxImage     int
}

// New builds a Server from d.
func New(d Deps) *Server {
	s := &Server{
		rec:          d.Reconciler,
		gate:         d.Gate,
		auth:         d.Auth,
		pipeline:     d.Analysis,
		visitors:     d.Visitors,
		feed:         d.Feed,
		mm:           d.Maintenance,
		metrics:      d.Metrics,
		events:       d.Events,
		log:          d.Logger,
		validate:     validator.New(validator.WithRequiredStructEnabled()),
		stack:        d.Middleware,
		secureCookie: d.SecureCookie,
		maxImage:     d.MaxImageBytes,
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.pipeline == nil {
		s.pipeline = analysis.New(nil, analysis.WithLogger(s.log))
	}
	if s.maxImage <= 0 {
		s.maxImage = analysis.DefaultMaxImageBytes
	}
	if s.visitors == nil {
		s.visitors = analysis.NewVisitors(s.pipeline, 0, 0)
	}
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	for _, mw := range s.stack {
		r.Use(mw)
	}
	r.Use(s.auth.Middleware())
	r.Use(s.logRequests)
	r.Use(s.resume)

	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Get("/api/site", s.handleSite)
	r.Get("/api/site/live", s.handleLive)
	r.Post("/api/login", s.handleLogin)
	r.Post("/api/logout", s.handleLogout)
	r.Get("/api/session", s.handleSession)

	r.Post("/api/orders", s.handlePlaceOrder)
	r.Post("/api/appointments", s.handleBookAppointment)

	r.Post("/api/analysis", s.handleAnalysis)
	r.Post("/api/analysis/language", s.handleAnalysisLanguage)
	r.Get("/api/analysis", s.handleAnalysisDisplayed)

	r.Group(func(r chi.Router) {
		r.Use(requireAdmin)

		r.Put("/api/settings", s.handlePublishSettings)
		r.Put("/api/title", s.handlePublishTitle)
		r.Put("/api/legacy", s.handlePublishLegacy)
		r.Post("/api/collections/{kind}", s.handleAddItem)
		r.Delete("/api/collections/{kind}/{id}", s.handleDeleteItem)
		r.Patch("/api/orders/{id}", s.handleOrderStatus)
		r.Patch("/api/appointments/{id}", s.handleAppointmentStatus)
		r.Put("/api/maintenance", s.handleMaintenance)
	})
	return r
}

// resume re-establishes the session for a valid admin token. Tokens
// revoked by a logout never get here: the auth middleware drops them.
func (s *Server) resume(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c := auth.GetClaims(r.Context()); c != nil && c.Role == auth.RoleAdmin && !s.gate.Authorized() {
			s.gate.Resume(c.Identity())
			shield.GetLogger(r.Context()).Info("httpapi: session resumed from token", "user", c.UserID)
		}
		next.ServeHTTP(w, r)
	})
}

// logRequests records every request in the request log and the request
// counter, labelled with the matched route pattern.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		if s.metrics != nil {
			s.metrics.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		}
		var user string
		if c := auth.GetClaims(r.Context()); c != nil {
			user = c.UserID
		}
		s.events.LogRequest(r.Context(), observability.RequestLog{
			Method:    r.Method,
			Path:      r.URL.Path,
			Status:    status,
			Duration:  time.Since(start),
			UserID:    user,
			IP:        shield.ExtractIP(r),
			UserAgent: r.UserAgent(),
		})
	})
}

func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := auth.GetClaims(r.Context())
		if c == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
			return
		}
		if c.Role != auth.RoleAdmin {
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "admin required"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isAdmin(r *http.Request) bool {
	c := auth.GetClaims(r.Context())
	return c != nil && c.Role == auth.RoleAdmin
}

// FeedStats reports the change feed counters, for /healthz.
type FeedStats interface {
	Stats() watch.Stats
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	body := map[string]any{
		"status":        "ok",
		"watchers":      s.rec.ActiveWatchers(),
		"authenticated": s.gate.Authorized(),
		"consultations": s.visitors.Len(),
	}
	if s.feed != nil {
		body["feed"] = s.feed.Stats()
	}
	writeJSON(w, http.StatusOK, body)
}
