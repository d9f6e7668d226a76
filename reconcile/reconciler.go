// Package reconcile merges the storefront's live feeds (the settings
// documents, one watcher per collection, the legacy aggregate and the local
// snapshot) into one site configuration, and carries the CMS and checkout
// mutations back to the store.
//
// Every inbound snapshot becomes a typed Event applied by the pure Reduce
// function under a single lock, so the merge rules hold whatever order the
// feeds deliver in. Each feed runs inside a resilient.Subscription: a
// permission error parks it, anything else retries it on a fixed interval.
package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/ileri/atelier/idgen"
	"github.com/ileri/atelier/observability"
	"github.com/ileri/atelier/resilient"
	"github.com/ileri/atelier/site"
	"github.com/ileri/atelier/snapshot"
)

// Store paths.
const (
	SettingsPath = "settings/global"
	TitlePath    = "settings/siteTitle"
	LegacyPath   = "siteConfig"
)

var (
	// ErrUnauthenticated is returned by privileged mutations without a
	// session. The caller must log in and retry.
	ErrUnauthenticated = errors.New("reconcile: authentication required")
	// ErrRunning is returned by Start on a running Reconciler.
	ErrRunning = errors.New("reconcile: already started")
	// ErrNotFound is returned when a mutation targets a missing item.
	ErrNotFound = errors.New("reconcile: item not found")
)

// Store is the backend the Reconciler reads and writes. *docstore.Store
// implements it.
type Store interface {
	SubscribeDocument(path string, onNext func(json.RawMessage), onError func(error)) func()
	SetDocument(ctx context.Context, path string, data json.RawMessage, merge bool) error
	SubscribeCollection(name string, onNext func([]json.RawMessage), onError func(error)) func()
	UpsertItem(ctx context.Context, collection string, id int64, data json.RawMessage) error
	DeleteItem(ctx context.Context, collection string, id int64) error
	GetItem(ctx context.Context, collection string, id int64) (json.RawMessage, error)
	SubscribeValue(path string, onNext func(json.RawMessage), onError func(error)) func()
	SetValue(ctx context.Context, path string, value json.RawMessage) error
}

// SnapshotStore is the local persistence. *snapshot.Store implements it.
type SnapshotStore interface {
	Read(key string) ([]byte, error)
	Write(key string, value []byte) error
}

// SessionContext is the authentication state at Start.
type SessionContext struct {
	Authenticated bool
}

type subscription interface {
	Stop()
	Active() bool
}

// Reconciler owns the merged site configuration. Safe for concurrent use.
type Reconciler struct {
	store    Store
	snaps    SnapshotStore
	log      *slog.Logger
	metrics  *observability.Metrics
	audit    *observability.AuditLogger
	events   *observability.EventLogger
	seq      *idgen.Sequence
	interval time.Duration
	policy   *bluemonday.Policy
	now      func() time.Time

	// mu guards the state and the observers.
	mu        sync.Mutex
	state     State
	observers map[int]chan site.Configuration
	nextObs   int

	// lifeMu guards the subscription lifecycle. It is never held while
	// dispatching, and mu is never held while stopping a subscription.
	lifeMu     sync.Mutex
	running    bool
	authed     bool
	public     []subscription
	privileged []subscription
	stopCtx    func() bool
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(r *Reconciler) { r.log = l } }

// WithSnapshots sets the local snapshot store.
func WithSnapshots(s SnapshotStore) Option { return func(r *Reconciler) { r.snaps = s } }

// WithMetrics exports watcher and mutation counters.
func WithMetrics(m *observability.Metrics) Option { return func(r *Reconciler) { r.metrics = m } }

// WithAudit records CMS mutations.
func WithAudit(a *observability.AuditLogger) Option { return func(r *Reconciler) { r.audit = a } }

// WithEventLogger records orders and bookings.
func WithEventLogger(e *observability.EventLogger) Option {
	return func(r *Reconciler) { r.events = e }
}

// WithRetryInterval sets the watcher retry delay. Default: 5s.
func WithRetryInterval(d time.Duration) Option { return func(r *Reconciler) { r.interval = d } }

// WithClock sets the clock used for identifiers and dates.
func WithClock(now func() time.Time) Option { return func(r *Reconciler) { r.now = now } }

// WithDefaults replaces the static defaults the state starts from.
func WithDefaults(c site.Configuration) Option {
	return func(r *Reconciler) { r.state = NewState(c) }
}

// New returns a stopped Reconciler seeded with site.Defaults.
func New(store Store, opts ...Option) *Reconciler {
	r := &Reconciler{
		store:     store,
		log:       slog.Default(),
		interval:  resilient.DefaultInterval,
		policy:    bluemonday.UGCPolicy(),
		now:       time.Now,
		state:     NewState(site.Defaults()),
		observers: make(map[int]chan site.Configuration),
	}
	for _, o := range opts {
		o(r)
	}
	r.seq = idgen.NewSequence(r.now)
	return r
}

// Start paints from the local snapshot, then opens every public watcher and,
// when sc.Authenticated, the privileged ones. Cancelling ctx stops the
// Reconciler.
func (r *Reconciler) Start(ctx context.Context, sc SessionContext) error {
	r.lifeMu.Lock()
	defer r.lifeMu.Unlock()
	if r.running {
		return ErrRunning
	}
	r.running = true
	r.authed = sc.Authenticated

	r.loadSnapshot()

	r.public = append(r.public,
		r.watchDocument(SettingsPath, "settings", func(raw json.RawMessage) (Event, error) {
			var s site.Settings
			if raw != nil {
				if err := json.Unmarshal(raw, &s); err != nil {
					return nil, err
				}
			}
			return SettingsEvent{Settings: s}, nil
		}),
		r.watchDocument(TitlePath, "title", func(raw json.RawMessage) (Event, error) {
			var doc struct {
				Value string `json:"value"`
			}
			if raw != nil {
				if err := json.Unmarshal(raw, &doc); err != nil {
					return nil, err
				}
			}
			return TitleEvent{Value: doc.Value}, nil
		}),
		r.watchLegacy(),
	)
	for _, c := range site.Collections {
		if !c.Privileged() {
			r.public = append(r.public, r.watchCollection(c))
		}
	}
	if r.authed {
		r.startPrivileged()
	}
	r.stopCtx = context.AfterFunc(ctx, r.Stop)
	r.updateGauge()
	r.log.Info("reconcile: started", "authenticated", r.authed, "watchers", len(r.public)+len(r.privileged))
	return nil
}

// Stop tears down every watcher and pending retry. Idempotent.
func (r *Reconciler) Stop() {
	r.lifeMu.Lock()
	defer r.lifeMu.Unlock()
	if !r.running {
		return
	}
	r.running = false
	if r.stopCtx != nil {
		r.stopCtx()
		r.stopCtx = nil
	}
	for _, s := range r.public {
		s.Stop()
	}
	r.public = nil
	for _, s := range r.privileged {
		s.Stop()
	}
	r.privileged = nil
	r.updateGauge()
	r.log.Info("reconcile: stopped")
}

// SetAuthenticated reacts to a session transition: the privileged watchers
// are torn down, their data cleared, and on authentication restarted with
// fresh subscriptions.
func (r *Reconciler) SetAuthenticated(v bool) {
	r.lifeMu.Lock()
	defer r.lifeMu.Unlock()
	if r.authed == v {
		return
	}
	r.authed = v
	if !r.running {
		return
	}
	if len(r.privileged) > 0 {
		for _, s := range r.privileged {
			s.Stop()
		}
		r.privileged = nil
	}
	if v {
		r.startPrivileged()
	} else {
		r.dispatch(PrivilegedReset{})
	}
	r.updateGauge()
	r.log.Info("reconcile: session changed", "authenticated", v)
}

// Authenticated reports the session state last seen.
func (r *Reconciler) Authenticated() bool {
	r.lifeMu.Lock()
	defer r.lifeMu.Unlock()
	return r.authed
}

// ActiveWatchers returns the number of running subscriptions.
func (r *Reconciler) ActiveWatchers() int {
	r.lifeMu.Lock()
	defer r.lifeMu.Unlock()
	return r.activeLocked()
}

func (r *Reconciler) activeLocked() int {
	n := 0
	for _, s := range r.public {
		if s.Active() {
			n++
		}
	}
	for _, s := range r.privileged {
		if s.Active() {
			n++
		}
	}
	return n
}

func (r *Reconciler) updateGauge() {
	if r.metrics != nil {
		r.metrics.ActiveWatchers.Set(float64(r.activeLocked()))
	}
}

func (r *Reconciler) startPrivileged() {
	for _, c := range site.Collections {
		if c.Privileged() {
			r.privileged = append(r.privileged, r.watchCollection(c))
		}
	}
}

func (r *Reconciler) subOpts(name string) []resilient.Option {
	return []resilient.Option{
		resilient.WithName(name),
		resilient.WithInterval(r.interval),
		resilient.WithLogger(r.log),
		resilient.WithErrorHook(func(name string, class resilient.Class, _ error) {
			if r.metrics != nil {
				r.metrics.WatcherErrors.WithLabelValues(name, string(class)).Inc()
			}
		}),
	}
}

func (r *Reconciler) watchDocument(path, name string, decode func(json.RawMessage) (Event, error)) subscription {
	sub := func(onNext func(json.RawMessage), onError func(error)) func() {
		return r.store.SubscribeDocument(path, onNext, onError)
	}
	return resilient.Start(sub, func(raw json.RawMessage) {
		ev, err := decode(raw)
		if err != nil {
			r.log.Warn("reconcile: undecodable document", "path", path, "error", err)
			return
		}
		r.dispatch(ev)
	}, r.subOpts(name)...)
}

func (r *Reconciler) watchLegacy() subscription {
	sub := func(onNext func(json.RawMessage), onError func(error)) func() {
		return r.store.SubscribeValue(LegacyPath, onNext, onError)
	}
	return resilient.Start(sub, func(raw json.RawMessage) {
		if raw == nil {
			return
		}
		var c site.Configuration
		if err := json.Unmarshal(raw, &c); err != nil {
			r.log.Warn("reconcile: undecodable legacy blob", "error", err)
			return
		}
		r.dispatch(LegacyEvent{Config: &c})
	}, r.subOpts("legacy")...)
}

func (r *Reconciler) watchCollection(c site.Collection) subscription {
	sub := func(onNext func([]json.RawMessage), onError func(error)) func() {
		return r.store.SubscribeCollection(c.String(), onNext, onError)
	}
	return resilient.Start(sub, func(raw []json.RawMessage) {
		ev := r.decodeCollection(c, raw)
		if ev != nil {
			r.dispatch(ev)
		}
	}, r.subOpts(c.String())...)
}

// dispatch applies e under the state lock, persists the public view and
// notifies observers.
func (r *Reconciler) dispatch(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.state = Reduce(r.state, e)
	if r.metrics != nil {
		r.metrics.WatcherSnapshots.WithLabelValues(e.Source()).Inc()
	}
	if _, fromSnapshot := e.(SnapshotEvent); !fromSnapshot {
		r.persistLocked()
	}
	cfg := r.state.Config
	for _, ch := range r.observers {
		select {
		case <-ch:
		default:
		}
		ch <- cfg
	}
}

func (r *Reconciler) persistLocked() {
	if r.snaps == nil {
		return
	}
	b, err := json.Marshal(r.state.Config.WithoutPrivate())
	if err != nil {
		r.log.Error("reconcile: marshal snapshot", "error", err)
		return
	}
	if err := r.snaps.Write(snapshot.SiteConfigKey, b); err != nil {
		r.log.Warn("reconcile: write snapshot", "error", err)
	}
}

func (r *Reconciler) loadSnapshot() {
	if r.snaps == nil {
		return
	}
	b, err := r.snaps.Read(snapshot.SiteConfigKey)
	if err != nil {
		r.log.Warn("reconcile: read snapshot", "error", err)
		return
	}
	if b == nil {
		return
	}
	var c site.Configuration
	if err := json.Unmarshal(b, &c); err != nil {
		r.log.Warn("reconcile: undecodable snapshot", "error", err)
		return
	}
	r.dispatch(SnapshotEvent{Config: c.WithoutPrivate()})
}

// Apply feeds e through the reducer as if a watcher had delivered it.
func (r *Reconciler) Apply(e Event) { r.dispatch(e) }
