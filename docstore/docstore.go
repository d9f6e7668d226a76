// Package docstore is the storefront's backend store: a document store
// (single JSON documents addressed by path), a collection store (JSON items
// keyed by numeric id inside a named collection) and the legacy key-value
// store, all kept in one SQLite database.
//
// Every read surface is a live subscription. A listener delivers the current
// value once, then again after every change, until it is cancelled or hits an
// error. After an error the listener is dead; re-subscribing is the caller's
// job (see package resilient).
//
// Access rules follow the hosted backend the site was designed for: reads of
// privileged collections and every write need an authorized session, except
// that anyone may create an order or an appointment.
package docstore

import (
	"context"
	"database/sql"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ileri/atelier/site"
	"github.com/ileri/atelier/watch"
)

// Schema creates the store tables.
const Schema = `
CREATE TABLE IF NOT EXISTS documents (
	path       TEXT PRIMARY KEY,
	data       TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS items (
	collection TEXT NOT NULL,
	id         INTEGER NOT NULL,
	data       TEXT NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (collection, id)
);
CREATE TABLE IF NOT EXISTS kv (
	path       TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);
`

// Authorizer reports whether the current session may use privileged paths.
type Authorizer interface {
	Authorized() bool
}

// AuthorizerFunc adapts a function to Authorizer.
type AuthorizerFunc func() bool

func (f AuthorizerFunc) Authorized() bool { return f() }

// Rules lists the collections with non-default access.
type Rules struct {
	// PrivilegedRead collections can only be read by an authorized session.
	PrivilegedRead map[string]bool
	// PublicCreate collections accept new items from anyone.
	PublicCreate map[string]bool
}

// DefaultRules protects the site's privileged collections (orders and
// appointments) and lets visitors create items in them.
func DefaultRules() Rules {
	r := Rules{PrivilegedRead: map[string]bool{}, PublicCreate: map[string]bool{}}
	for _, c := range site.Collections {
		if c.Privileged() {
			r.PrivilegedRead[c.String()] = true
			r.PublicCreate[c.String()] = true
		}
	}
	return r
}

// Store is safe for concurrent use.
type Store struct {
	db    *sql.DB
	feed  *watch.Watcher
	auth  Authorizer
	rules Rules
	log   *slog.Logger
	now   func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	listeners atomic.Int64
	closeOnce sync.Once
}

// Option configures a Store.
type Option func(*Store)

// WithAuthorizer sets the session check. The default denies everything
// privileged.
func WithAuthorizer(a Authorizer) Option { return func(s *Store) { s.auth = a } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(s *Store) { s.log = l } }

// WithWatcher sets the change feed. The default polls PRAGMA data_version
// every 500ms once Run is called.
func WithWatcher(w *watch.Watcher) Option { return func(s *Store) { s.feed = w } }

// WithClock sets the clock used for updated_at stamps.
func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

// New creates the tables on db and returns a Store.
func New(db *sql.DB, opts ...Option) (*Store, error) {
	s := &Store{
		db:    db,
		auth:  AuthorizerFunc(func() bool { return false }),
		rules: DefaultRules(),
		log:   slog.Default(),
		now:   time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	if s.feed == nil {
		s.feed = watch.New(db, watch.Options{Logger: s.log})
	}
	if _, err := db.Exec(Schema); err != nil {
		return nil, wrap("schema", "", err)
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s, nil
}

// Run polls for writes made outside this Store until ctx is cancelled.
func (s *Store) Run(ctx context.Context) { s.feed.Run(ctx) }

// Stats returns the change feed counters.
func (s *Store) Stats() watch.Stats { return s.feed.Stats() }

// Close stops every listener. The database is left open.
func (s *Store) Close() {
	s.closeOnce.Do(s.cancel)
}

// Listeners returns the number of live listeners.
func (s *Store) Listeners() int { return int(s.listeners.Load()) }

func (s *Store) authorized() bool { return s.auth != nil && s.auth.Authorized() }

func (s *Store) stamp() int64 { return s.now().UnixMilli() }
