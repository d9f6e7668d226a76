package reconcile

import "github.com/ileri/atelier/site"

// Event is one inbound update. The set of events is closed: only the types
// in this file implement it.
type Event interface {
	// Source names the watcher that produced the event.
	Source() string
	isEvent()
}

// SettingsEvent carries a snapshot of the global settings document. A
// missing document arrives as the zero Settings.
type SettingsEvent struct{ Settings site.Settings }

// TitleEvent carries the dedicated site title document.
type TitleEvent struct{ Value string }

// LegacyEvent carries the legacy aggregate blob. Config is nil while the
// key holds nothing.
type LegacyEvent struct{ Config *site.Configuration }

// SnapshotEvent carries the configuration read from the local snapshot
// store at start.
type SnapshotEvent struct{ Config site.Configuration }

// PrivilegedReset clears the admin-only collections when the privileged
// feeds are torn down.
type PrivilegedReset struct{}

type (
	ServicesEvent     struct{ Items []site.Service }
	ProductsEvent     struct{ Items []site.Product }
	BlogPostsEvent    struct{ Items []site.BlogPost }
	GalleryEvent      struct{ Items []site.GalleryItem }
	TestimonialsEvent struct{ Items []site.Testimonial }
	TeamEvent         struct{ Items []site.TeamMember }
	BannersEvent      struct{ Items []site.Banner }
	OrdersEvent       struct{ Items []site.Order }
	AppointmentsEvent struct{ Items []site.Appointment }
)

func (SettingsEvent) Source() string     { return "settings" }
func (TitleEvent) Source() string        { return "title" }
func (LegacyEvent) Source() string       { return "legacy" }
func (SnapshotEvent) Source() string     { return "snapshot" }
func (PrivilegedReset) Source() string   { return "session" }
func (ServicesEvent) Source() string     { return site.Services.String() }
func (ProductsEvent) Source() string     { return site.Products.String() }
func (BlogPostsEvent) Source() string    { return site.BlogPosts.String() }
func (GalleryEvent) Source() string      { return site.GalleryItems.String() }
func (TestimonialsEvent) Source() string { return site.Testimonials.String() }
func (TeamEvent) Source() string         { return site.Team.String() }
func (BannersEvent) Source() string      { return site.Banners.String() }
func (OrdersEvent) Source() string       { return site.Orders.String() }
func (AppointmentsEvent) Source() string { return site.Appointments.String() }

func (SettingsEvent) isEvent()     {}
func (TitleEvent) isEvent()        {}
func (LegacyEvent) isEvent()       {}
func (SnapshotEvent) isEvent()     {}
func (PrivilegedReset) isEvent()   {}
func (ServicesEvent) isEvent()     {}
func (ProductsEvent) isEvent()     {}
func (BlogPostsEvent) isEvent()    {}
func (GalleryEvent) isEvent()      {}
func (TestimonialsEvent) isEvent() {}
func (TeamEvent) isEvent()         {}
func (BannersEvent) isEvent()      {}
func (OrdersEvent) isEvent()       {}
func (AppointmentsEvent) isEvent() {}
