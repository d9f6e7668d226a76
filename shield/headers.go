package shield

import "net/http"

// HeaderConfig defines the security headers applied to every response.
type HeaderConfig struct {
	CSP                 string
	XFrameOptions       string
	XContentTypeOptions string
	ReferrerPolicy      string
	PermissionsPolicy   string
}

// DefaultHeaders allows product and gallery images from any https origin,
// inline data URLs for uploaded photos and websocket connections back to
// the site. The camera is allowed for the makeup consultant.
func DefaultHeaders() HeaderConfig {
	return HeaderConfig{
		CSP:                 "default-src 'self'; script-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data: blob: https:; media-src 'self' https:; connect-src 'self' ws: wss:; frame-ancestors 'none'",
		XFrameOptions:       "DENY",
		XContentTypeOptions: "nosniff",
		ReferrerPolicy:      "strict-origin-when-cross-origin",
		PermissionsPolicy:   "camera=(self), microphone=(), geolocation=()",
	}
}

// SecurityHeaders sets the configured headers on every response. Empty
// values are skipped.
func SecurityHeaders(cfg HeaderConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			for name, v := range map[string]string{
				"X-Content-Type-Options":  cfg.XContentTypeOptions,
				"X-Frame-Options":         cfg.XFrameOptions,
				"Referrer-Policy":         cfg.ReferrerPolicy,
				"Content-Security-Policy": cfg.CSP,
				"Permissions-Policy":      cfg.PermissionsPolicy,
			} {
				if v != "" {
					h.Set(name, v)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
