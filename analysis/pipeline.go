// Package analysis turns a face photo and a language into a makeup report.
//
// A Pipeline owns a result cache keyed by image fingerprint and language,
// a process-wide rate limiter and the static fallback reports. Requests
// resolve in this order:
//
//  1. a cached result for (image, language) is returned without a call;
//  2. a request inside the minimum interval gets the fallback report and
//     leaves the limiter untouched;
//  3. otherwise one remote call is made; a failure, a timeout or an answer
//     that does not validate gets the fallback report;
//  4. a valid answer is cached and returned.
//
// Fallback reports are never cached, so a later attempt can still produce a
// personal one.
package analysis

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ileri/atelier/observability"
)

// DefaultTimeout bounds one remote call.
const DefaultTimeout = 30 * time.Second

// Outcome is the answer to one request. Cached lets the UI skip its loading
// state. Throttled and Fallback are for telemetry and tests.
type Outcome struct {
	Result    *Result  `json:"result"`
	Language  Language `json:"language"`
	Cached    bool     `json:"cached"`
	Throttled bool     `json:"-"`
	Fallback  bool     `json:"-"`
}

// Pipeline is safe for concurrent use.
type Pipeline struct {
	endpoint Endpoint
	limiter  RateLimiter
	timeout  time.Duration
	now      func() time.Time
	log      *slog.Logger
	metrics  *observability.Metrics

	group singleflight.Group

	mu      sync.Mutex
	current string
	cache   map[string]*Result
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLimiter replaces the default 10 s limiter.
func WithLimiter(l RateLimiter) Option { return func(p *Pipeline) { p.limiter = l } }

// WithTimeout bounds each remote call. Default: 30s.
func WithTimeout(d time.Duration) Option { return func(p *Pipeline) { p.timeout = d } }

// WithClock sets the clock the limiter is consulted with.
func WithClock(now func() time.Time) Option { return func(p *Pipeline) { p.now = now } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(p *Pipeline) { p.log = l } }

// WithMetrics counts outcomes and times remote calls.
func WithMetrics(m *observability.Metrics) Option { return func(p *Pipeline) { p.metrics = m } }

// New returns a Pipeline. A nil endpoint means no credential is configured:
// every admitted request resolves to the fallback report.
func New(endpoint Endpoint, opts ...Option) *Pipeline {
	p := &Pipeline{
		endpoint: endpoint,
		timeout:  DefaultTimeout,
		now:      time.Now,
		log:      slog.Default(),
		cache:    make(map[string]*Result),
	}
	for _, o := range opts {
		o(p)
	}
	if p.limiter == nil {
		p.limiter = NewLimiter(DefaultMinInterval)
	}
	return p
}

// LoadImage makes image the current one. A different image drops every
// cached result.
func (p *Pipeline) LoadImage(image []byte) string {
	fp := Fingerprint(image)
	p.mu.Lock()
	defer p.mu.Unlock()
	if fp != p.current {
		p.current = fp
		clear(p.cache)
	}
	return fp
}

// Cached returns the cached result for image and lang, if any.
func (p *Pipeline) Cached(image []byte, lang Language) (*Result, bool) {
	return p.lookup(cacheKey(Fingerprint(image), lang))
}

// Analyze returns a report for image in lang. It never fails: every problem
// resolves to the fallback report.
func (p *Pipeline) Analyze(ctx context.Context, image []byte, lang Language) Outcome {
	fp := p.LoadImage(image)
	key := cacheKey(fp, lang)

	if r, ok := p.lookup(key); ok {
		p.count(lang, "cached")
		return Outcome{Result: r, Language: lang, Cached: true}
	}

	v, _, _ := p.group.Do(key, func() (any, error) {
		// A call for the same key may have finished in between.
		if r, ok := p.lookup(key); ok {
			return Outcome{Result: r, Language: lang, Cached: true}, nil
		}
		if !p.limiter.TryAcquire(p.now()) {
			p.log.Info("analysis: rate limited, using fallback", "lang", lang)
			p.count(lang, "throttled")
			return Outcome{Result: Fallback(lang), Language: lang, Throttled: true, Fallback: true}, nil
		}
		r, err := p.remote(ctx, image, lang)
		if err != nil {
			p.log.Warn("analysis: using fallback", "lang", lang, "error", err)
			p.count(lang, "fallback")
			return Outcome{Result: Fallback(lang), Language: lang, Fallback: true}, nil
		}
		p.store(fp, key, r)
		p.count(lang, "fresh")
		return Outcome{Result: r, Language: lang}, nil
	})
	return v.(Outcome)
}

var errNoEndpoint = errors.New("analysis: no endpoint configured")

func (p *Pipeline) remote(ctx context.Context, image []byte, lang Language) (*Result, error) {
	if p.endpoint == nil {
		return nil, errNoEndpoint
	}
	// The call may outlive the request that started it; its result still
	// fills the cache.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	start := time.Now()
	text, err := p.endpoint.Analyze(ctx, image, lang, Instruction(lang), Schema())
	if p.metrics != nil {
		p.metrics.AnalysisLatency.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		return nil, err
	}
	return Parse(text)
}

func (p *Pipeline) lookup(key string) (*Result, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.cache[key]
	return r, ok
}

func (p *Pipeline) store(fp, key string, r *Result) {
	p.mu.Lock()
	defer p.mu.Unlock()
	// Results for an image that is no longer current are dropped.
	if fp == p.current {
		p.cache[key] = r
	}
}

func (p *Pipeline) count(lang Language, outcome string) {
	if p.metrics != nil {
		p.metrics.AnalysisRequests.WithLabelValues(string(lang), outcome).Inc()
	}
}

func cacheKey(fp string, lang Language) string { return fp + ":" + string(lang) }
