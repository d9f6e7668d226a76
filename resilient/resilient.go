// Package resilient keeps a live subscription alive across failures.
//
// A Subscription wraps a subscribe function of the shape every store
// listener in this module has (onNext, onError, returns a cancel func).
// Errors are classified: permission-denied stops the subscription quietly,
// anything else schedules a fresh subscribe after a fixed interval. Stop
// tears everything down once and guarantees no delivery after it returns.
package resilient

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/ileri/atelier/dbopen"
)

// Class is the coarse category of a subscription error.
type Class string

const (
	PermissionDenied Class = "permission-denied"
	Transient        Class = "transient"
	Unknown          Class = "unknown"
)

// Classify maps err to a Class. Errors that report PermissionDenied() true
// are permission-denied; context expiry, network errors, SQLite BUSY and
// errors that report Temporary() true are transient.
func Classify(err error) Class {
	var pd interface{ PermissionDenied() bool }
	if errors.As(err, &pd) && pd.PermissionDenied() {
		return PermissionDenied
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return Transient
	}
	var tmp interface{ Temporary() bool }
	if errors.As(err, &tmp) && tmp.Temporary() {
		return Transient
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return Transient
	}
	if dbopen.IsBusy(err) {
		return Transient
	}
	return Unknown
}

// SubscribeFunc opens one live subscription. After onError the
// subscription is considered dead. The returned cancel must be idempotent.
type SubscribeFunc[T any] func(onNext func(T), onError func(error)) (cancel func())

// State is the lifecycle state of a Subscription.
type State string

const (
	StateConnecting State = "connecting"
	StateLive       State = "live"
	StateRetrying   State = "retrying"
	StateDenied     State = "denied"
	StateStopped    State = "stopped"
)

// DefaultInterval is the fixed retry delay.
const DefaultInterval = 5 * time.Second

type config struct {
	name     string
	interval time.Duration
	log      *slog.Logger
	onError  func(name string, class Class, err error)
}

// Option configures a Subscription.
type Option func(*config)

// WithName labels log lines and error hooks.
func WithName(name string) Option { return func(c *config) { c.name = name } }

// WithInterval sets the retry delay. Default: 5s.
func WithInterval(d time.Duration) Option { return func(c *config) { c.interval = d } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(c *config) { c.log = l } }

// WithErrorHook is called for every classified error, before any retry is
// scheduled.
func WithErrorHook(fn func(name string, class Class, err error)) Option {
	return func(c *config) { c.onError = fn }
}

// Subscription is safe for concurrent use.
type Subscription[T any] struct {
	subscribe SubscribeFunc[T]
	onNext    func(T)
	cfg       config

	mu      sync.Mutex
	gen     uint64
	cancel  func()
	timer   *time.Timer
	state   State
	retries int

	// deliverMu serializes onNext and lets Stop wait for a delivery in
	// progress.
	deliverMu sync.Mutex
}

// Start subscribes immediately and returns the running Subscription.
// onNext is never called concurrently with itself.
func Start[T any](subscribe SubscribeFunc[T], onNext func(T), opts ...Option) *Subscription[T] {
	cfg := config{interval: DefaultInterval, log: slog.Default()}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.interval <= 0 {
		cfg.interval = DefaultInterval
	}
	s := &Subscription[T]{subscribe: subscribe, onNext: onNext, cfg: cfg, state: StateConnecting}
	s.connect()
	return s
}

func (s *Subscription[T]) connect() {
	s.mu.Lock()
	if s.state == StateStopped {
		s.mu.Unlock()
		return
	}
	s.gen++
	gen := s.gen
	s.timer = nil
	s.state = StateConnecting
	s.mu.Unlock()

	cancel := s.subscribe(
		func(v T) { s.deliver(gen, v) },
		func(err error) { s.fail(gen, err) },
	)

	s.mu.Lock()
	if s.state == StateStopped || s.gen != gen {
		// Stopped or failed while subscribing.
		s.mu.Unlock()
		cancel()
		return
	}
	s.cancel = cancel
	s.mu.Unlock()
}

func (s *Subscription[T]) deliver(gen uint64, v T) {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	s.mu.Lock()
	current := s.state != StateStopped && s.gen == gen
	if current {
		s.state = StateLive
	}
	s.mu.Unlock()
	if current {
		s.onNext(v)
	}
}

func (s *Subscription[T]) fail(gen uint64, err error) {
	class := Classify(err)

	s.mu.Lock()
	if s.state == StateStopped || s.gen != gen {
		s.mu.Unlock()
		return
	}
	s.gen++
	cancel := s.cancel
	s.cancel = nil
	if class == PermissionDenied {
		s.state = StateDenied
	} else {
		s.state = StateRetrying
		s.retries++
		s.timer = time.AfterFunc(s.cfg.interval, s.connect)
	}
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if s.cfg.onError != nil {
		s.cfg.onError(s.cfg.name, class, err)
	}

	log := s.cfg.log
	switch class {
	case PermissionDenied:
		log.Debug("resilient: permission denied, not retrying", "name", s.cfg.name, "error", err)
	case Transient:
		log.Warn("resilient: transient error, retrying", "name", s.cfg.name, "in", s.cfg.interval, "error", err)
	default:
		log.Error("resilient: subscription failed, retrying", "name", s.cfg.name, "in", s.cfg.interval, "error", err)
	}
}

// Stop cancels the live subscription and any pending retry. It is
// idempotent, and once it returns onNext will not be called again. Stop must
// not be called from inside onNext.
func (s *Subscription[T]) Stop() {
	s.mu.Lock()
	if s.state == StateStopped {
		s.mu.Unlock()
		return
	}
	s.state = StateStopped
	s.gen++
	cancel := s.cancel
	s.cancel = nil
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.deliverMu.Lock()
	s.deliverMu.Unlock()
}

// State returns the current lifecycle state.
func (s *Subscription[T]) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Retries returns how many retries have been scheduled.
func (s *Subscription[T]) Retries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.retries
}

// Active reports whether the subscription has not been stopped.
func (s *Subscription[T]) Active() bool { return s.State() != StateStopped }
