package analysis

import (
	"time"

	"golang.org/x/time/rate"
)

// DefaultMinInterval separates two remote analysis attempts.
const DefaultMinInterval = 10 * time.Second

// RateLimiter decides whether a remote call may start at now.
type RateLimiter interface {
	TryAcquire(now time.Time) bool
}

// Limiter admits one attempt per interval, process-wide. A refused attempt
// does not push the window back.
type Limiter struct {
	lim *rate.Limiter
}

// NewLimiter returns a Limiter admitting one call every interval.
func NewLimiter(interval time.Duration) *Limiter {
	if interval <= 0 {
		interval = DefaultMinInterval
	}
	return &Limiter{lim: rate.NewLimiter(rate.Every(interval), 1)}
}

// TryAcquire reports whether an attempt may start at now and, if so,
// records it.
func (l *Limiter) TryAcquire(now time.Time) bool { return l.lim.AllowN(now, 1) }
