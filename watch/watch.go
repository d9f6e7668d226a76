// Package watch is the change feed behind the document store. Writers in this
// process call Notify; writes made through another connection or another
// process (an admin CLI against the same file) are picked up by polling a
// version token such as PRAGMA data_version. Either way every subscriber is
// signalled.
//
//	w := watch.New(db, watch.Options{Interval: 250 * time.Millisecond})
//	go w.Run(ctx)
//	cancel := w.Subscribe(func() { reload() })
//
// Subscriber callbacks run on the notifying goroutine and must not block.
// The docstore listeners only do a non-blocking channel send.
package watch

import (
	"context"
	"database/sql"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// ChangeDetector reads a version token from the database. Two calls that
// return different values mean something changed.
type ChangeDetector func(ctx context.Context, db *sql.DB) (int64, error)

// Options tunes the watcher.
type Options struct {
	// Interval is the polling frequency. Default: 500ms.
	Interval time.Duration
	// Detector overrides the default PragmaDataVersion detector.
	Detector ChangeDetector
	Logger   *slog.Logger
}

func (o *Options) defaults() {
	if o.Interval <= 0 {
		o.Interval = 500 * time.Millisecond
	}
	if o.Detector == nil {
		o.Detector = PragmaDataVersion
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Watcher fans change signals out to subscribers. Safe for concurrent use.
type Watcher struct {
	db   *sql.DB
	opts Options

	mu     sync.Mutex
	nextID int
	subs   map[int]func()

	version atomic.Int64

	checks  atomic.Int64
	changes atomic.Int64
	errors  atomic.Int64
	notifs  atomic.Int64
}

// Stats are point-in-time counters.
type Stats struct {
	Checks          int64 `json:"checks"`
	ChangesDetected int64 `json:"changes_detected"`
	Errors          int64 `json:"errors"`
	Notifications   int64 `json:"notifications"`
	Subscribers     int   `json:"subscribers"`
}

// New creates a Watcher. Run starts the polling loop; Notify works without it.
func New(db *sql.DB, opts Options) *Watcher {
	opts.defaults()
	return &Watcher{db: db, opts: opts, subs: make(map[int]func())}
}

// Subscribe registers fn and returns a function that removes it. The
// returned function is idempotent.
func (w *Watcher) Subscribe(fn func()) (cancel func()) {
	w.mu.Lock()
	id := w.nextID
	w.nextID++
	w.subs[id] = fn
	w.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			w.mu.Lock()
			delete(w.subs, id)
			w.mu.Unlock()
		})
	}
}

// Notify signals every subscriber.
func (w *Watcher) Notify() {
	w.notifs.Add(1)
	w.mu.Lock()
	fns := make([]func(), 0, len(w.subs))
	for _, fn := range w.subs {
		fns = append(fns, fn)
	}
	w.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// Run polls the detector until ctx is cancelled and calls Notify whenever
// the version token moves.
func (w *Watcher) Run(ctx context.Context) {
	log := w.opts.Logger

	v, err := w.opts.Detector(ctx, w.db)
	if err != nil {
		log.Warn("watch: initial version check failed", "error", err)
	} else {
		w.version.Store(v)
	}

	ticker := time.NewTicker(w.opts.Interval)
	defer ticker.Stop()

	log.Debug("watch: started", "interval", w.opts.Interval)
	for {
		select {
		case <-ctx.Done():
			log.Debug("watch: stopped")
			return
		case <-ticker.C:
			w.checks.Add(1)
			cur, err := w.opts.Detector(ctx, w.db)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				w.errors.Add(1)
				log.Warn("watch: version check failed", "error", err)
				continue
			}
			if cur != w.version.Swap(cur) {
				w.changes.Add(1)
				log.Debug("watch: external change", "version", cur)
				w.Notify()
			}
		}
	}
}

// Version returns the last polled version token.
func (w *Watcher) Version() int64 { return w.version.Load() }

// Stats returns the current counters.
func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	n := len(w.subs)
	w.mu.Unlock()
	return Stats{
		Checks:          w.checks.Load(),
		ChangesDetected: w.changes.Load(),
		Errors:          w.errors.Load(),
		Notifications:   w.notifs.Load(),
		Subscribers:     n,
	}
}

// PragmaDataVersion uses PRAGMA data_version, which increments whenever
// another connection commits to the same database file.
func PragmaDataVersion(ctx context.Context, db *sql.DB) (int64, error) {
	var v int64
	err := db.QueryRowContext(ctx, "PRAGMA data_version").Scan(&v)
	return v, err
}

// PragmaUserVersion uses PRAGMA user_version. Callers bump it explicitly.
func PragmaUserVersion(ctx context.Context, db *sql.DB) (int64, error) {
	var v int64
	err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v)
	return v, err
}
