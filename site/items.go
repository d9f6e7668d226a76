package site

import "fmt"

// Collection is the closed set of live collections. The zero value is not a
// valid collection.
type Collection int

const (
	Services Collection = iota + 1
	Products
	BlogPosts
	GalleryItems
	Testimonials
	Team
	Banners
	Orders
	Appointments
)

// Collections lists every collection; public ones first.
var Collections = []Collection{
	Services, Products, BlogPosts, GalleryItems, Testimonials, Team, Banners,
	Orders, Appointments,
}

var collectionNames = map[Collection]string{
	Services:     "services",
	Products:     "products",
	BlogPosts:    "blog",
	GalleryItems: "gallery",
	Testimonials: "testimonials",
	Team:         "team",
	Banners:      "banners",
	Orders:       "orders",
	Appointments: "appointments",
}

// String returns the store name of the collection.
func (c Collection) String() string {
	if n, ok := collectionNames[c]; ok {
		return n
	}
	return fmt.Sprintf("collection(%d)", int(c))
}

// Privileged reports whether the collection is readable by admins only.
func (c Collection) Privileged() bool {
	return c == Orders || c == Appointments
}

// ParseCollection maps a store name back to its Collection.
func ParseCollection(name string) (Collection, error) {
	for c, n := range collectionNames {
		if n == name {
			return c, nil
		}
	}
	return 0, fmt.Errorf("site: unknown collection %q", name)
}

// Item is implemented by pointers to every collection item type.
type Item interface {
	Collection() Collection
	ItemID() int64
	SetItemID(id int64)
}

// Banner is an advertising banner on the home page.
type Banner struct {
	ID       int64  `json:"id"`
	ImageURL string `json:"imageUrl" validate:"required"`
	Title    string `json:"title" validate:"required"`
	Subtitle string `json:"subtitle,omitempty"`
	Link     string `json:"link,omitempty"`
}

// Service is a bookable beauty service.
type Service struct {
	ID              int64    `json:"id"`
	Title           string   `json:"title" validate:"required"`
	Description     string   `json:"description"`
	LongDescription string   `json:"longDescription,omitempty"`
	Gallery         []string `json:"gallery,omitempty"`
	Image           string   `json:"image"`
	Price           string   `json:"price,omitempty"`
}

// Product is a shop product.
type Product struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name" validate:"required"`
	Description string  `json:"description"`
	Price       string  `json:"price" validate:"required"`
	Image       string  `json:"image"`
	Rating      float64 `json:"rating" validate:"gte=0,lte=5"`
	OrderCount  int     `json:"orderCount" validate:"gte=0"`
	VoteCount   int     `json:"voteCount" validate:"gte=0"`
	Stock       *int    `json:"stock,omitempty"`
}

// BlogPost is a blog entry. Content may hold sanitized HTML.
type BlogPost struct {
	ID      int64    `json:"id"`
	Title   string   `json:"title" validate:"required"`
	Excerpt string   `json:"excerpt"`
	Content string   `json:"content,omitempty"`
	Date    string   `json:"date"`
	Image   string   `json:"image"`
	Gallery []string `json:"gallery,omitempty"`
}

// GalleryItem is a portfolio picture.
type GalleryItem struct {
	ID       int64  `json:"id"`
	Image    string `json:"image" validate:"required"`
	Caption  string `json:"caption,omitempty"`
	Category string `json:"category,omitempty"`
}

// Testimonial is a customer quote.
type Testimonial struct {
	ID     int64  `json:"id"`
	Name   string `json:"name" validate:"required"`
	Quote  string `json:"quote" validate:"required"`
	Rating int    `json:"rating" validate:"gte=0,lte=5"`
	Image  string `json:"image,omitempty"`
}

// TeamMember is a staff profile.
type TeamMember struct {
	ID        int64  `json:"id"`
	Name      string `json:"name" validate:"required"`
	Role      string `json:"role"`
	Bio       string `json:"bio,omitempty"`
	Image     string `json:"image"`
	Instagram string `json:"instagram,omitempty"`
}

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderPending         OrderStatus = "pending"
	OrderShipped         OrderStatus = "shipped"
	OrderCompleted       OrderStatus = "completed"
	OrderCancelled       OrderStatus = "cancelled"
	OrderReturnRequested OrderStatus = "return_requested"
	OrderReturned        OrderStatus = "returned"
	OrderRefunded        OrderStatus = "refunded"
)

// Customer is the shipping identity attached to an order.
type Customer struct {
	FullName string `json:"fullName" validate:"required"`
	Phone    string `json:"phone" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Address  string `json:"address" validate:"required"`
	City     string `json:"city" validate:"required"`
	ZipCode  string `json:"zipCode" validate:"required"`
	Note     string `json:"note,omitempty"`
}

// OrderLine is one product line of an order.
type OrderLine struct {
	ProductID int64  `json:"productId"`
	Name      string `json:"name" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gte=1"`
	Price     string `json:"price"`
}

// Order is a shop order placed through the cart.
type Order struct {
	ID          int64       `json:"id"`
	Customer    Customer    `json:"customer"`
	Items       []OrderLine `json:"items" validate:"min=1,dive"`
	TotalAmount string      `json:"totalAmount"`
	Status      OrderStatus `json:"status" validate:"oneof=pending shipped completed cancelled return_requested returned refunded"`
	Date        string      `json:"date"`
}

// AppointmentStatus is the lifecycle state of an appointment.
type AppointmentStatus string

const (
	AppointmentPending   AppointmentStatus = "pending"
	AppointmentConfirmed AppointmentStatus = "confirmed"
	AppointmentCancelled AppointmentStatus = "cancelled"
)

// Appointment is a booking request.
type Appointment struct {
	ID        int64             `json:"id"`
	Name      string            `json:"name" validate:"required"`
	Phone     string            `json:"phone" validate:"required"`
	Date      string            `json:"date" validate:"required"`
	Time      string            `json:"time" validate:"required"`
	Service   string            `json:"service" validate:"required"`
	Status    AppointmentStatus `json:"status" validate:"oneof=pending confirmed cancelled"`
	CreatedAt string            `json:"createdAt"`
	Notes     string            `json:"notes,omitempty"`
}

func (b *Banner) Collection() Collection      { return Banners }
func (s *Service) Collection() Collection     { return Services }
func (p *Product) Collection() Collection     { return Products }
func (p *BlogPost) Collection() Collection    { return BlogPosts }
func (g *GalleryItem) Collection() Collection { return GalleryItems }
func (t *Testimonial) Collection() Collection { return Testimonials }
func (m *TeamMember) Collection() Collection  { return Team }
func (o *Order) Collection() Collection       { return Orders }
func (a *Appointment) Collection() Collection { return Appointments }

func (b *Banner) ItemID() int64      { return b.ID }
func (s *Service) ItemID() int64     { return s.ID }
func (p *Product) ItemID() int64     { return p.ID }
func (p *BlogPost) ItemID() int64    { return p.ID }
func (g *GalleryItem) ItemID() int64 { return g.ID }
func (t *Testimonial) ItemID() int64 { return t.ID }
func (m *TeamMember) ItemID() int64  { return m.ID }
func (o *Order) ItemID() int64       { return o.ID }
func (a *Appointment) ItemID() int64 { return a.ID }

func (b *Banner) SetItemID(id int64)      { b.ID = id }
func (s *Service) SetItemID(id int64)     { s.ID = id }
func (p *Product) SetItemID(id int64)     { p.ID = id }
func (p *BlogPost) SetItemID(id int64)    { p.ID = id }
func (g *GalleryItem) SetItemID(id int64) { g.ID = id }
func (t *Testimonial) SetItemID(id int64) { t.ID = id }
func (m *TeamMember) SetItemID(id int64)  { m.ID = id }
func (o *Order) SetItemID(id int64)       { o.ID = id }
func (a *Appointment) SetItemID(id int64) { a.ID = id }

// NewItem returns a zero item of the collection's concrete type, ready to be
// decoded into.
func NewItem(c Collection) (Item, error) {
	switch c {
	case Services:
		return &Service{}, nil
	case Products:
		return &Product{}, nil
	case BlogPosts:
		return &BlogPost{}, nil
	case GalleryItems:
		return &GalleryItem{}, nil
	case Testimonials:
		return &Testimonial{}, nil
	case Team:
		return &TeamMember{}, nil
	case Banners:
		return &Banner{}, nil
	case Orders:
		return &Order{}, nil
	case Appointments:
		return &Appointment{}, nil
	}
	return nil, fmt.Errorf("site: unknown collection %d", int(c))
}
