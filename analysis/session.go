package analysis

import (
	"context"
	"errors"
	"sync"
)

// ErrNoImage is returned by Session.SwitchLanguage before any upload.
var ErrNoImage = errors.New("analysis: no image loaded")

// Session tracks what one viewer is looking at: the loaded image and the
// report on screen. A language switch keeps the current report displayed
// until the report for the new language resolves.
type Session struct {
	p *Pipeline

	mu        sync.Mutex
	image     []byte
	gen       uint64
	displayed Outcome
}

// NewSession returns a Session backed by p.
func NewSession(p *Pipeline) *Session { return &Session{p: p} }

// Upload loads image and analyzes it in lang.
func (s *Session) Upload(ctx context.Context, image []byte, lang Language) Outcome {
	s.mu.Lock()
	s.image = image
	s.gen++
	gen := s.gen
	s.displayed = Outcome{}
	s.mu.Unlock()

	s.p.LoadImage(image)
	return s.resolve(ctx, gen, image, lang)
}

// SwitchLanguage resolves the report for lang on the current image, from
// the cache when possible.
func (s *Session) SwitchLanguage(ctx context.Context, lang Language) (Outcome, error) {
	s.mu.Lock()
	image, gen := s.image, s.gen
	s.mu.Unlock()
	if image == nil {
		return Outcome{}, ErrNoImage
	}
	return s.resolve(ctx, gen, image, lang), nil
}

// Displayed returns the report on screen.
func (s *Session) Displayed() (Outcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.displayed, s.displayed.Result != nil
}

func (s *Session) resolve(ctx context.Context, gen uint64, image []byte, lang Language) Outcome {
	out := s.p.Analyze(ctx, image, lang)
	s.mu.Lock()
	if gen == s.gen {
		s.displayed = out
	}
	s.mu.Unlock()
	return out
}
