package reconcile

import (
	"fmt"
	"maps"

	"github.com/ileri/atelier/site"
)

// Origin records which tier last supplied a value.
type Origin uint8

const (
	// OriginDefault is the static default.
	OriginDefault Origin = iota
	// OriginLegacy covers the legacy aggregate and the local snapshot.
	OriginLegacy
	// OriginPrimary covers the settings documents and collection watchers.
	OriginPrimary
)

// State is the reducer state: the merged configuration plus where each
// scalar field and collection came from. A State is a value; Reduce never
// mutates its input.
type State struct {
	Config site.Configuration

	fields      map[site.Field]Origin
	collections map[site.Collection]Origin
}

// NewState returns the state a session starts from.
func NewState(defaults site.Configuration) State {
	return State{
		Config:      defaults,
		fields:      map[site.Field]Origin{},
		collections: map[site.Collection]Origin{},
	}
}

// FieldOrigin reports which tier supplied f.
func (s State) FieldOrigin(f site.Field) Origin { return s.fields[f] }

// CollectionOrigin reports which tier supplied c.
func (s State) CollectionOrigin(c site.Collection) Origin { return s.collections[c] }

// Reduce applies e to s and returns the new state.
//
// Merge rules:
//   - settings fields overwrite only with a non-empty value;
//   - public collections are replaced only by a non-empty snapshot;
//   - the legacy aggregate and the local snapshot fill only what no primary
//     watcher has supplied, and only with non-empty values;
//   - orders and appointments are replaced wholesale on every snapshot.
func Reduce(s State, e Event) State {
	switch e := e.(type) {
	case SettingsEvent:
		s = s.cloneFields()
		for _, f := range site.Fields {
			if v := e.Settings.Get(f); v != "" {
				*s.Config.Ref(f) = v
				s.fields[f] = OriginPrimary
			}
		}
		if !e.Settings.IsEmpty() {
			raw := e.Settings.Clone()
			s.Config.RawSettings = &raw
		}
	case TitleEvent:
		if e.Value != "" {
			s = s.cloneFields()
			s.Config.SiteTitle = e.Value
			s.fields[site.FieldSiteTitle] = OriginPrimary
		}
	case LegacyEvent:
		if e.Config != nil {
			s = mergeLegacy(s, *e.Config)
		}
	case SnapshotEvent:
		s = mergeLegacy(s, e.Config)
	case PrivilegedReset:
		s.Config.Orders = nil
		s.Config.Appointments = nil
	case ServicesEvent:
		s = replacePublic(s, site.Services, len(e.Items), func(c *site.Configuration) { c.Services = e.Items })
	case ProductsEvent:
		s = replacePublic(s, site.Products, len(e.Items), func(c *site.Configuration) { c.Products = e.Items })
	case BlogPostsEvent:
		s = replacePublic(s, site.BlogPosts, len(e.Items), func(c *site.Configuration) { c.BlogPosts = e.Items })
	case GalleryEvent:
		s = replacePublic(s, site.GalleryItems, len(e.Items), func(c *site.Configuration) { c.Gallery = e.Items })
	case TestimonialsEvent:
		s = replacePublic(s, site.Testimonials, len(e.Items), func(c *site.Configuration) { c.Testimonials = e.Items })
	case TeamEvent:
		s = replacePublic(s, site.Team, len(e.Items), func(c *site.Configuration) { c.Team = e.Items })
	case BannersEvent:
		s = replacePublic(s, site.Banners, len(e.Items), func(c *site.Configuration) { c.Ads = e.Items })
	case OrdersEvent:
		s.Config.Orders = e.Items
	case AppointmentsEvent:
		s.Config.Appointments = e.Items
	default:
		panic(fmt.Sprintf("reconcile: unhandled event %T", e))
	}
	return s
}

func (s State) cloneFields() State {
	s.fields = maps.Clone(s.fields)
	if s.fields == nil {
		s.fields = map[site.Field]Origin{}
	}
	return s
}

func (s State) cloneCollections() State {
	s.collections = maps.Clone(s.collections)
	if s.collections == nil {
		s.collections = map[site.Collection]Origin{}
	}
	return s
}

func replacePublic(s State, c site.Collection, n int, set func(*site.Configuration)) State {
	if n == 0 {
		return s
	}
	s = s.cloneCollections()
	set(&s.Config)
	s.collections[c] = OriginPrimary
	return s
}

func mergeLegacy(s State, in site.Configuration) State {
	s = s.cloneFields().cloneCollections()

	for _, f := range site.Fields {
		v := in.Get(f)
		if v == "" || s.fields[f] == OriginPrimary {
			continue
		}
		*s.Config.Ref(f) = v
		s.fields[f] = OriginLegacy
	}
	if !in.Payment.IsZero() {
		s.Config.Payment = in.Payment
	}
	if !in.Invoice.IsZero() {
		s.Config.Invoice = in.Invoice
	}
	if s.Config.RawSettings == nil && in.RawSettings != nil && !in.RawSettings.IsEmpty() {
		raw := in.RawSettings.Clone()
		s.Config.RawSettings = &raw
	}

	fill := func(c site.Collection, n int, set func(*site.Configuration)) {
		if n == 0 || s.collections[c] == OriginPrimary {
			return
		}
		set(&s.Config)
		s.collections[c] = OriginLegacy
	}
	fill(site.Services, len(in.Services), func(c *site.Configuration) { c.Services = in.Services })
	fill(site.Products, len(in.Products), func(c *site.Configuration) { c.Products = in.Products })
	fill(site.BlogPosts, len(in.BlogPosts), func(c *site.Configuration) { c.BlogPosts = in.BlogPosts })
	fill(site.GalleryItems, len(in.Gallery), func(c *site.Configuration) { c.Gallery = in.Gallery })
	fill(site.Testimonials, len(in.Testimonials), func(c *site.Configuration) { c.Testimonials = in.Testimonials })
	fill(site.Team, len(in.Team), func(c *site.Configuration) { c.Team = in.Team })
	fill(site.Banners, len(in.Ads), func(c *site.Configuration) { c.Ads = in.Ads })
	return s
}
