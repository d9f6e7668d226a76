// Package idgen generates identifiers for the storefront.
//
// Collection items get numeric identifiers assigned client-side at creation
// time. They are derived from the wall clock in milliseconds, the same shape
// the legacy data already uses, but never repeat within a process: a
// Sequence hands out strictly increasing values even when several items are
// created within the same millisecond or the clock steps backwards.
//
// Audit events and order references use RFC 9562 UUIDv7 strings.
package idgen

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Generator produces unique string identifiers.
type Generator func() string

// UUIDv7 returns a Generator that produces time-sortable UUID v7 strings.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Prefixed prepends a fixed prefix to every ID, e.g. "evt_".
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

// Default is UUIDv7.
var Default Generator = UUIDv7()

// New produces an ID using the Default generator.
func New() string {
	return Default()
}

// Parse validates a UUID string.
func Parse(s string) (string, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("idgen: invalid UUID: %w", err)
	}
	return u.String(), nil
}

// Sequence hands out strictly increasing int64 identifiers seeded from a
// millisecond clock. Safe for concurrent use.
type Sequence struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

// NewSequence returns a Sequence reading time from now (time.Now when nil).
func NewSequence(now func() time.Time) *Sequence {
	if now == nil {
		now = time.Now
	}
	return &Sequence{now: now}
}

// Next returns max(now in ms, previous+1).
func (s *Sequence) Next() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.now().UnixMilli()
	if id <= s.last {
		id = s.last + 1
	}
	s.last = id
	return id
}

// Observe raises the floor so that future IDs stay above id. Callers feed it
// identifiers already present in a collection.
func (s *Sequence) Observe(id int64) {
	s.mu.Lock()
	if id > s.last {
		s.last = id
	}
	s.mu.Unlock()
}
