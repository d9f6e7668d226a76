// Package shield holds the HTTP middleware in front of the storefront API:
// security headers, body limits, request IDs with a per-request logger,
// per-IP rate limits and the maintenance switch.
//
// Usage:
//
//	r := chi.NewRouter()
//	stack, mm, rl := shield.DefaultStack(db)
//	go mm.Reload(ctx, 5*time.Second)
//	for _, mw := range stack {
//	    r.Use(mw)
//	}
package shield

import (
	"database/sql"
	"net/http"
)

type contextKey string

// LoggerKey is the context key for the per-request structured logger.
const LoggerKey contextKey = "shield_logger"

// DefaultStack returns the storefront middleware, outermost first:
// Maintenance, SecurityHeaders, MaxBody, RequestID, RateLimiter. Health
// checks, metrics, login and the maintenance switch itself bypass
// maintenance.
func DefaultStack(db *sql.DB) ([]func(http.Handler) http.Handler, *MaintenanceMode, *RateLimiter) {
	rl := NewRateLimiter(db, "/healthz", "/metrics")
	mm := NewMaintenanceMode(db, "/healthz", "/metrics", "/api/login", "/api/maintenance")
	return []func(http.Handler) http.Handler{
		mm.Middleware,
		SecurityHeaders(DefaultHeaders()),
		MaxBody(64*1024, map[string]int64{
			"/api/analysis":    12 << 20,
			"/api/legacy":      4 << 20,
			"/api/collections": 2 << 20,
		}),
		RequestID,
		rl.Middleware,
	}, mm, rl
}
