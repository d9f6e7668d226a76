package analysis

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEndpoint struct {
	calls atomic.Int32
	mu    sync.Mutex
	langs []Language
	reply func(ctx context.Context, lang Language) (string, error)
}

func (f *fakeEndpoint) Analyze(ctx context.Context, _ []byte, lang Language, instruction string, schema json.RawMessage) (string, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.langs = append(f.langs, lang)
	f.mu.Unlock()
	if instruction == "" || len(schema) == 0 {
		return "", errors.New("missing instruction or schema")
	}
	if f.reply != nil {
		return f.reply(ctx, lang)
	}
	return validReply(lang), nil
}

func validReply(lang Language) string {
	r := Fallback(lang)
	r.Summary = "personal " + string(lang)
	b, _ := json.Marshal(r)
	return "```json\n" + string(b) + "\n```"
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newPipeline(ep Endpoint) (*Pipeline, *clock) {
	c := &clock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	return New(ep, WithClock(c.now)), c
}

var (
	imgA = []byte("\xff\xd8\xff\xe0 first image")
	imgB = []byte("\xff\xd8\xff\xe0 second image")
)

func TestCacheHitReturnsSameResult(t *testing.T) {
	ep := &fakeEndpoint{}
	p, _ := newPipeline(ep)
	ctx := context.Background()

	first := p.Analyze(ctx, imgA, English)
	require.False(t, first.Fallback)
	assert.False(t, first.Cached)
	assert.Equal(t, "personal en", first.Result.Summary)

	second := p.Analyze(ctx, imgA, English)
	assert.True(t, second.Cached)
	assert.Same(t, first.Result, second.Result)
	assert.EqualValues(t, 1, ep.calls.Load())
}

func TestRateLimitAcrossLanguages(t *testing.T) {
	ep := &fakeEndpoint{}
	p, c := newPipeline(ep)
	ctx := context.Background()

	en := p.Analyze(ctx, imgA, English)
	c.advance(5 * time.Second)
	de := p.Analyze(ctx, imgA, German)

	assert.False(t, en.Fallback)
	assert.True(t, de.Throttled)
	assert.True(t, de.Fallback)
	assert.Equal(t, Fallback(German), de.Result)
	assert.EqualValues(t, 1, ep.calls.Load())

	again := p.Analyze(ctx, imgA, English)
	assert.True(t, again.Cached, "the first call's result is unaffected")
	assert.Same(t, en.Result, again.Result)
}

func TestThrottledCallDoesNotExtendWindow(t *testing.T) {
	ep := &fakeEndpoint{}
	p, c := newPipeline(ep)
	ctx := context.Background()

	p.Analyze(ctx, imgA, English)
	c.advance(9 * time.Second)
	assert.True(t, p.Analyze(ctx, imgA, German).Throttled)
	c.advance(time.Second)
	out := p.Analyze(ctx, imgA, German)
	assert.False(t, out.Throttled)
	assert.Equal(t, "personal de", out.Result.Summary)
	assert.EqualValues(t, 2, ep.calls.Load())
}

func TestNewImageInvalidatesCache(t *testing.T) {
	ep := &fakeEndpoint{}
	p, c := newPipeline(ep)
	ctx := context.Background()

	p.Analyze(ctx, imgA, English)
	p.LoadImage(imgB)
	_, ok := p.Cached(imgA, English)
	assert.False(t, ok)

	c.advance(DefaultMinInterval)
	out := p.Analyze(ctx, imgA, English)
	assert.False(t, out.Cached)
	assert.EqualValues(t, 2, ep.calls.Load())
}

func TestFailuresFallBack(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		err   error
	}{
		{"transport error", "", errors.New("connection reset")},
		{"not json", "I cannot help with that.", nil},
		{"explicit error", `{"error":"face not detected"}`, nil},
		{"schema mismatch", `{"summary":"x","numeric_metrics":{},"palette":{"option_a":{"style_name":"a","colors":[]},"option_b":{"style_name":"b","colors":[]}},"steps":[],"estimated_time_minutes":5}`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ep := &fakeEndpoint{reply: func(context.Context, Language) (string, error) { return tt.reply, tt.err }}
			p, c := newPipeline(ep)

			out := p.Analyze(context.Background(), imgA, Turkish)
			assert.True(t, out.Fallback)
			assert.False(t, out.Throttled)
			assert.Equal(t, Fallback(Turkish), out.Result)

			c.advance(DefaultMinInterval)
			out = p.Analyze(context.Background(), imgA, Turkish)
			assert.False(t, out.Cached, "fallback reports are not cached")
			assert.EqualValues(t, 2, ep.calls.Load())
		})
	}
}

func TestNoEndpointConsumesWindow(t *testing.T) {
	p, c := newPipeline(nil)
	out := p.Analyze(context.Background(), imgA, English)
	assert.True(t, out.Fallback)
	assert.False(t, out.Throttled)

	c.advance(time.Second)
	assert.True(t, p.Analyze(context.Background(), imgA, German).Throttled)
}

func TestRemoteTimeout(t *testing.T) {
	ep := &fakeEndpoint{reply: func(ctx context.Context, _ Language) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}}
	p := New(ep, WithTimeout(20*time.Millisecond))
	out := p.Analyze(context.Background(), imgA, English)
	assert.True(t, out.Fallback)
}

func TestConcurrentRequestsShareOneCall(t *testing.T) {
	release := make(chan struct{})
	ep := &fakeEndpoint{reply: func(_ context.Context, lang Language) (string, error) {
		<-release
		return validReply(lang), nil
	}}
	p, _ := newPipeline(ep)

	var wg sync.WaitGroup
	outs := make([]Outcome, 4)
	for i := range outs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outs[i] = p.Analyze(context.Background(), imgA, English)
		}()
	}
	require.Eventually(t, func() bool { return ep.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, ep.calls.Load())
	for _, o := range outs {
		assert.False(t, o.Throttled)
		assert.Equal(t, "personal en", o.Result.Summary)
	}
}

func TestFallbackCompleteness(t *testing.T) {
	for _, lang := range Languages {
		t.Run(string(lang), func(t *testing.T) {
			r := Fallback(lang)
			require.True(t, r.Complete())
			assert.NotEmpty(t, r.Summary)
			assert.NotEmpty(t, r.Palette.OptionA.Colors)
			assert.NotEmpty(t, r.Palette.OptionB.Colors)
			assert.NotEmpty(t, r.Steps)
			require.NotNil(t, r.EstimatedMinutes)

			b, err := json.Marshal(r)
			require.NoError(t, err)
			parsed, err := Parse(string(b))
			require.NoError(t, err, "fallback validates against the response schema")
			assert.Equal(t, r, parsed)
		})
	}
	assert.NotSame(t, Fallback(English), Fallback(English))
}

func TestClean(t *testing.T) {
	assert.Equal(t, `{"a":1}`, Clean("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":{"b":2}}`, Clean(`Here you go: {"a":{"b":2}} enjoy`))
	assert.Equal(t, "no json", Clean("  no json "))
}

func TestParseRemoteError(t *testing.T) {
	_, err := Parse(`{"error":"blurry"}`)
	assert.ErrorIs(t, err, ErrRemoteError)
}

func TestSessionLanguageSwitchKeepsDisplay(t *testing.T) {
	release := make(chan struct{})
	ep := &fakeEndpoint{reply: func(_ context.Context, lang Language) (string, error) {
		if lang == German {
			<-release
		}
		return validReply(lang), nil
	}}
	p, c := newPipeline(ep)
	s := NewSession(p)
	ctx := context.Background()

	_, err := s.SwitchLanguage(ctx, German)
	assert.ErrorIs(t, err, ErrNoImage)

	s.Upload(ctx, imgA, English)
	shown, ok := s.Displayed()
	require.True(t, ok)
	assert.Equal(t, English, shown.Language)

	c.advance(DefaultMinInterval)
	done := make(chan Outcome)
	go func() {
		out, _ := s.SwitchLanguage(ctx, German)
		done <- out
	}()
	require.Eventually(t, func() bool { return ep.calls.Load() == 2 }, time.Second, time.Millisecond)
	shown, _ = s.Displayed()
	assert.Equal(t, English, shown.Language, "previous report stays until the new one resolves")

	close(release)
	out := <-done
	assert.Equal(t, "personal de", out.Result.Summary)
	shown, _ = s.Displayed()
	assert.Equal(t, German, shown.Language)

	back, err := s.SwitchLanguage(ctx, English)
	require.NoError(t, err)
	assert.True(t, back.Cached)
}

func TestPresentationHelpers(t *testing.T) {
	assert.Equal(t, 94, SymmetryPercent(0.94))
	assert.Equal(t, 100, SymmetryPercent(0.996))
	assert.Equal(t, "Large", EyeOpeningLabel("0.41"))
	assert.Equal(t, "Almond", EyeOpeningLabel("0.35"))
	assert.Equal(t, "Standard", EyeOpeningLabel(""))
	assert.Equal(t, "Standard", EyeOpeningLabel("wide"))
}

func TestDecodeImage(t *testing.T) {
	raw := []byte("\x89PNG\r\n\x1a\n....")
	enc := base64.StdEncoding.EncodeToString(raw)

	b, err := DecodeImage("data:image/png;base64,"+enc, 1024)
	require.NoError(t, err)
	assert.Equal(t, raw, b)

	b, err = DecodeImage(enc, 0)
	require.NoError(t, err)
	assert.Equal(t, raw, b)

	_, err = DecodeImage("", 10)
	assert.ErrorIs(t, err, ErrEmptyImage)
	_, err = DecodeImage(enc, 4)
	assert.ErrorIs(t, err, ErrImageTooLarge)
	_, err = DecodeImage("data:image/png,notbase64", 10)
	assert.Error(t, err)
}

func TestParseLanguage(t *testing.T) {
	l, err := ParseLanguage(" DE ")
	require.NoError(t, err)
	assert.Equal(t, German, l)
	_, err = ParseLanguage("fr")
	assert.Error(t, err)
}

func TestVisitorsKeepSessionsApart(t *testing.T) {
	ep := &fakeEndpoint{}
	p, c := newPipeline(ep)
	v := NewVisitors(p, 0, 0)
	ctx := context.Background()

	alice := v.Open("alice")
	assert.Same(t, alice, v.Open("alice"))
	alice.Upload(ctx, imgA, English)

	_, ok := v.Lookup("bob")
	assert.False(t, ok, "lookup never creates")
	bob := v.Open("bob")
	_, ok = bob.Displayed()
	assert.False(t, ok, "bob sees nothing of alice's report")
	_, err := bob.SwitchLanguage(ctx, German)
	assert.ErrorIs(t, err, ErrNoImage)
	assert.EqualValues(t, 1, ep.calls.Load())

	c.advance(DefaultMinInterval)
	bob.Upload(ctx, imgB, English)
	shown, ok := alice.Displayed()
	require.True(t, ok)
	assert.Equal(t, "personal en", shown.Result.Summary)
	assert.Equal(t, 2, v.Len())
}

func TestVisitorsEvictLeastRecentlyUsed(t *testing.T) {
	p, _ := newPipeline(&fakeEndpoint{})
	v := NewVisitors(p, 2, time.Hour)
	v.Open("a")
	v.Open("b")
	v.Lookup("a")
	v.Open("c")

	_, ok := v.Lookup("b")
	assert.False(t, ok)
	_, ok = v.Lookup("a")
	assert.True(t, ok)
	assert.Equal(t, time.Hour, v.TTL())
}
