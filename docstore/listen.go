package docstore

import (
	"bytes"
	"context"
	"sync"
)

type listener struct {
	sig  chan struct{}
	done chan struct{}
	once sync.Once
}

func (l *listener) poke() {
	select {
	case l.sig <- struct{}{}:
	default:
	}
}

func (l *listener) stop() { l.once.Do(func() { close(l.done) }) }

func (l *listener) stopped() bool {
	select {
	case <-l.done:
		return true
	default:
		return false
	}
}

// listen runs load once immediately and again after every change signal,
// handing each new result to deliver. Identical consecutive results are
// delivered once. The first error ends the listener. Cancelling is safe from
// inside deliver or onError.
func (s *Store) listen(load func(ctx context.Context) ([]byte, error), deliver func([]byte), onError func(error)) func() {
	l := &listener{sig: make(chan struct{}, 1), done: make(chan struct{})}
	l.poke()
	unsub := s.feed.Subscribe(l.poke)
	s.listeners.Add(1)

	go func() {
		defer s.listeners.Add(-1)
		defer unsub()

		var last []byte
		first := true
		for {
			select {
			case <-l.done:
				return
			case <-s.ctx.Done():
				return
			case <-l.sig:
			}

			b, err := load(s.ctx)
			if l.stopped() || s.ctx.Err() != nil {
				return
			}
			if err != nil {
				if onError != nil {
					onError(err)
				}
				return
			}
			if !first && bytes.Equal(b, last) {
				continue
			}
			first = false
			last = b
			deliver(b)
		}
	}()
	return l.stop
}
