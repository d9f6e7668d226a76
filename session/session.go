// Package session is the single source of truth for "is there a privileged
// session". The reconciler subscribes to it and starts or stops the
// privileged feeds on every transition.
package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ileri/atelier/auth"
	"github.com/ileri/atelier/observability"
)

// Provider authenticates credentials.
type Provider interface {
	Login(ctx context.Context, cred auth.Credential) (auth.Identity, error)
	Logout(ctx context.Context) error
}

// Status is one authentication state.
type Status struct {
	Authenticated bool          `json:"authenticated"`
	Identity      auth.Identity `json:"identity"`
}

// Gate tracks the session status and notifies subscribers of every change.
//
// Emissions are serialized: a subscriber never sees two statuses
// concurrently and sees them in order. Subscribers must not call Login,
// Logout or Resume from inside the callback.
type Gate struct {
	provider Provider
	log      *slog.Logger
	events   *observability.EventLogger

	// emitMu is held while the status changes and is fanned out.
	emitMu sync.Mutex

	mu     sync.Mutex
	status Status
	subs   map[int]func(Status)
	nextID int
}

// Option configures a Gate.
type Option func(*Gate)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(g *Gate) { g.log = l } }

// WithEventLogger records logins and logouts as business events.
func WithEventLogger(e *observability.EventLogger) Option { return func(g *Gate) { g.events = e } }

// NewGate returns an unauthenticated Gate.
func NewGate(p Provider, opts ...Option) *Gate {
	g := &Gate{provider: p, log: slog.Default(), subs: make(map[int]func(Status))}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Subscribe calls fn with the current status, then after every change. The
// returned cancel is idempotent.
func (g *Gate) Subscribe(fn func(Status)) (cancel func()) {
	g.emitMu.Lock()
	g.mu.Lock()
	id := g.nextID
	g.nextID++
	g.subs[id] = fn
	cur := g.status
	g.mu.Unlock()
	fn(cur)
	g.emitMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.subs, id)
			g.mu.Unlock()
		})
	}
}

// Login authenticates cred and, on success, emits the authenticated status
// before returning.
func (g *Gate) Login(ctx context.Context, cred auth.Credential) (auth.Identity, error) {
	id, err := g.provider.Login(ctx, cred)
	g.events.LogEvent(ctx, observability.BusinessEvent{
		EventType:   "session",
		ServiceName: "session",
		EntityType:  "user",
		EntityID:    cred.Username,
		UserID:      id.UserID,
		Action:      "login",
		Success:     err == nil,
	})
	if err != nil {
		g.log.Info("session: login rejected", "username", cred.Username)
		return auth.Identity{}, err
	}
	g.set(Status{Authenticated: true, Identity: id})
	g.log.Info("session: logged in", "user", id.UserID)
	return id, nil
}

// Resume marks the session authenticated for an identity proven by other
// means, such as a valid token presented after a restart.
func (g *Gate) Resume(id auth.Identity) {
	g.set(Status{Authenticated: true, Identity: id})
}

// Logout ends the session. The unauthenticated status has been delivered to
// every subscriber by the time Logout returns, even when the provider fails.
func (g *Gate) Logout(ctx context.Context) error {
	err := g.provider.Logout(ctx)
	prev := g.Status()
	g.set(Status{})
	g.events.LogEvent(ctx, observability.BusinessEvent{
		EventType:   "session",
		ServiceName: "session",
		EntityType:  "user",
		UserID:      prev.Identity.UserID,
		Action:      "logout",
		Success:     err == nil,
	})
	if err != nil {
		g.log.Warn("session: provider logout failed", "error", err)
	}
	return err
}

// Authorized reports whether the session is authenticated. It makes Gate a
// docstore.Authorizer.
func (g *Gate) Authorized() bool { return g.Status().Authenticated }

// Status returns the current status.
func (g *Gate) Status() Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status
}

func (g *Gate) set(s Status) {
	g.emitMu.Lock()
	defer g.emitMu.Unlock()

	g.mu.Lock()
	if g.status == s {
		g.mu.Unlock()
		return
	}
	g.status = s
	fns := make([]func(Status), 0, len(g.subs))
	for _, fn := range g.subs {
		fns = append(fns, fn)
	}
	g.mu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}
