package shield

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig defines the rate limit for a single endpoint.
type RateLimitConfig struct {
	MaxRequests   int
	WindowSeconds int
	Enabled       bool
}

type bucket struct {
	mu   sync.Mutex
	cfg  RateLimitConfig
	lim  *rate.Limiter
	last time.Time
}

// RateLimiter provides per-IP, per-endpoint limits. Each (IP, endpoint)
// pair gets a token bucket holding MaxRequests tokens that refills over
// WindowSeconds. Rules live in the rate_limits table (see Schema) keyed
// "METHOD /path"; endpoints without a rule are unlimited.
type RateLimiter struct {
	db      *sql.DB
	now     func() time.Time
	exclude []string

	mu      sync.RWMutex
	rules   map[string]RateLimitConfig
	buckets sync.Map
}

// NewRateLimiter loads the rules from db. Paths under excludePrefixes are
// never limited.
func NewRateLimiter(db *sql.DB, excludePrefixes ...string) *RateLimiter {
	rl := &RateLimiter{
		db:      db,
		now:     time.Now,
		rules:   make(map[string]RateLimitConfig),
		exclude: excludePrefixes,
	}
	rl.reload()
	return rl
}

// Run reloads the rules every interval and drops expired buckets every five
// intervals, until ctx is cancelled.
func (rl *RateLimiter) Run(ctx context.Context, interval time.Duration) {
	tick := time.NewTicker(interval)
	defer tick.Stop()
	for n := 1; ; n++ {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			rl.reload()
			if n%5 == 0 {
				rl.gc()
			}
		}
	}
}

// SetRule stores a rule and applies it immediately.
func (rl *RateLimiter) SetRule(ctx context.Context, endpoint string, cfg RateLimitConfig) error {
	enabled := 0
	if cfg.Enabled {
		enabled = 1
	}
	_, err := rl.db.ExecContext(ctx,
		`INSERT INTO rate_limits (endpoint, max_requests, window_seconds, enabled) VALUES (?, ?, ?, ?)
		 ON CONFLICT(endpoint) DO UPDATE SET max_requests = excluded.max_requests,
		   window_seconds = excluded.window_seconds, enabled = excluded.enabled`,
		endpoint, cfg.MaxRequests, cfg.WindowSeconds, enabled)
	if err != nil {
		return err
	}
	rl.reload()
	return nil
}

func (rl *RateLimiter) reload() {
	rows, err := rl.db.Query(`SELECT endpoint, max_requests, window_seconds, enabled FROM rate_limits`)
	if err != nil {
		slog.Warn("ratelimit: failed to reload rules", "error", err)
		return
	}
	defer rows.Close()

	rules := make(map[string]RateLimitConfig)
	for rows.Next() {
		var endpoint string
		var cfg RateLimitConfig
		var enabled int
		if err := rows.Scan(&endpoint, &cfg.MaxRequests, &cfg.WindowSeconds, &enabled); err != nil {
			continue
		}
		cfg.Enabled = enabled == 1
		rules[endpoint] = cfg
	}

	rl.mu.Lock()
	rl.rules = rules
	rl.mu.Unlock()

	slog.Debug("ratelimit: rules reloaded", "count", len(rules))
}

func (rl *RateLimiter) gc() {
	now := rl.now()
	rl.buckets.Range(func(key, value any) bool {
		b := value.(*bucket)
		b.mu.Lock()
		idle := now.Sub(b.last) > time.Duration(b.cfg.WindowSeconds)*time.Second
		b.mu.Unlock()
		if idle {
			rl.buckets.Delete(key)
		}
		return true
	})
}

func newBucketLimiter(cfg RateLimitConfig) *rate.Limiter {
	if cfg.MaxRequests <= 0 {
		return rate.NewLimiter(0, 0)
	}
	window := time.Duration(cfg.WindowSeconds) * time.Second
	return rate.NewLimiter(rate.Every(window/time.Duration(cfg.MaxRequests)), cfg.MaxRequests)
}

// allow takes a token for ip on endpoint. When none is left it returns
// false and the seconds until the next one.
func (rl *RateLimiter) allow(ip, endpoint string) (bool, int) {
	rl.mu.RLock()
	cfg, ok := rl.rules[endpoint]
	rl.mu.RUnlock()
	if !ok || !cfg.Enabled {
		return true, 0
	}

	now := rl.now()
	val, _ := rl.buckets.LoadOrStore(ip+" "+endpoint, &bucket{})
	b := val.(*bucket)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.lim == nil || b.cfg != cfg {
		b.cfg = cfg
		b.lim = newBucketLimiter(cfg)
	}
	b.last = now

	res := b.lim.ReserveN(now, 1)
	if !res.OK() {
		return false, cfg.WindowSeconds
	}
	delay := res.DelayFrom(now)
	if delay == 0 {
		return true, 0
	}
	res.CancelAt(now)
	return false, int(math.Ceil(delay.Seconds()))
}

// Middleware answers 429 with a JSON body once an IP exceeds the rule of
// the endpoint.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, prefix := range rl.exclude {
			if strings.HasPrefix(r.URL.Path, prefix) {
				next.ServeHTTP(w, r)
				return
			}
		}

		endpoint := r.Method + " " + r.URL.Path
		ip := ExtractIP(r)
		ok, retry := rl.allow(ip, endpoint)
		if ok {
			next.ServeHTTP(w, r)
			return
		}

		GetLogger(r.Context()).Warn("ratelimit: request blocked", "ip", ip, "endpoint", endpoint)
		w.Header().Set("Retry-After", strconv.Itoa(retry))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]string{"error": "rate limit exceeded"})
	})
}

// ExtractIP returns the client IP from X-Forwarded-For or RemoteAddr.
func ExtractIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
