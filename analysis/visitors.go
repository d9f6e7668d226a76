package analysis

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	// DefaultVisitorTTL is how long an idle visitor keeps its photo and
	// report.
	DefaultVisitorTTL = 30 * time.Minute
	// DefaultMaxVisitors bounds the sessions held at once. Each holds up to
	// one image.
	DefaultMaxVisitors = 512
)

// Visitors holds one Session per visitor id. All sessions share the
// Pipeline, so the result cache and the rate limit stay process-wide while
// the loaded photo and the report on screen belong to one visitor.
//
// A session idle for longer than the TTL is dropped; when the registry is
// full the least recently used one goes first.
type Visitors struct {
	p   *Pipeline
	ttl time.Duration

	mu  sync.Mutex
	lru *expirable.LRU[string, *Session]
}

// NewVisitors returns an empty registry over p. Zero values select
// DefaultMaxVisitors and DefaultVisitorTTL.
func NewVisitors(p *Pipeline, size int, ttl time.Duration) *Visitors {
	if size <= 0 {
		size = DefaultMaxVisitors
	}
	if ttl <= 0 {
		ttl = DefaultVisitorTTL
	}
	return &Visitors{p: p, ttl: ttl, lru: expirable.NewLRU[string, *Session](size, nil, ttl)}
}

// Open returns the session for id, creating it if needed, and restarts its
// idle timer.
func (v *Visitors) Open(id string) *Session {
	v.mu.Lock()
	defer v.mu.Unlock()
	s, ok := v.lru.Get(id)
	if !ok {
		s = NewSession(v.p)
	}
	v.lru.Add(id, s)
	return s
}

// Lookup returns the session for id without creating one.
func (v *Visitors) Lookup(id string) (*Session, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	s, ok := v.lru.Get(id)
	if ok {
		v.lru.Add(id, s)
	}
	return s, ok
}

// Len is the number of live sessions.
func (v *Visitors) Len() int { return v.lru.Len() }

// TTL is the idle lifetime of a session.
func (v *Visitors) TTL() time.Duration { return v.ttl }
