package reconcile

import (
	"encoding/json"

	"github.com/ileri/atelier/site"
)

// Snapshot returns the merged configuration, private collections included.
func (r *Reconciler) Snapshot() site.Configuration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.Config
}

// State returns the reducer state, origins included.
func (r *Reconciler) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// View returns the configuration resolved for lang. Orders, appointments
// and the raw settings document are dropped unless includePrivate is set.
func (r *Reconciler) View(lang string, includePrivate bool) site.Configuration {
	c := r.Snapshot().Localize(lang)
	if !includePrivate {
		c = c.WithoutPrivate()
	}
	return c
}

// Watch returns a channel receiving the configuration after every applied
// event. Slow readers only see the latest value. cancel closes the channel
// and is idempotent.
func (r *Reconciler) Watch() (<-chan site.Configuration, func()) {
	ch := make(chan site.Configuration, 1)
	r.mu.Lock()
	id := r.nextObs
	r.nextObs++
	r.observers[id] = ch
	ch <- r.state.Config
	r.mu.Unlock()

	return ch, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if _, ok := r.observers[id]; ok {
			delete(r.observers, id)
			close(ch)
		}
	}
}

// decodeCollection turns a collection snapshot into its typed event. Items
// that do not decode are skipped. Every identifier seen raises the sequence
// floor so locally assigned identifiers never collide.
func (r *Reconciler) decodeCollection(c site.Collection, raw []json.RawMessage) Event {
	switch c {
	case site.Services:
		return ServicesEvent{Items: decodeItems[site.Service](r, c, raw)}
	case site.Products:
		return ProductsEvent{Items: decodeItems[site.Product](r, c, raw)}
	case site.BlogPosts:
		return BlogPostsEvent{Items: decodeItems[site.BlogPost](r, c, raw)}
	case site.GalleryItems:
		return GalleryEvent{Items: decodeItems[site.GalleryItem](r, c, raw)}
	case site.Testimonials:
		return TestimonialsEvent{Items: decodeItems[site.Testimonial](r, c, raw)}
	case site.Team:
		return TeamEvent{Items: decodeItems[site.TeamMember](r, c, raw)}
	case site.Banners:
		return BannersEvent{Items: decodeItems[site.Banner](r, c, raw)}
	case site.Orders:
		return OrdersEvent{Items: decodeItems[site.Order](r, c, raw)}
	case site.Appointments:
		return AppointmentsEvent{Items: decodeItems[site.Appointment](r, c, raw)}
	}
	r.log.Error("reconcile: unknown collection", "collection", int(c))
	return nil
}

func decodeItems[T any, P interface {
	*T
	site.Item
}](r *Reconciler, c site.Collection, raw []json.RawMessage) []T {
	out := make([]T, 0, len(raw))
	for _, b := range raw {
		var v T
		if err := json.Unmarshal(b, &v); err != nil {
			r.log.Warn("reconcile: skipping undecodable item", "collection", c.String(), "error", err)
			continue
		}
		r.seq.Observe(P(&v).ItemID())
		out = append(out, v)
	}
	return out
}
