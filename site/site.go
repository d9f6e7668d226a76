// Package site defines the storefront data model: the merged site
// configuration served to visitors and the CMS, the collection items it
// carries, the global settings document and the static defaults every
// session starts from.
//
// Values are plain structs passed by value. Slices inside a Configuration are
// never mutated in place; reducers replace them wholesale, so a Configuration
// handed to a reader stays stable.
package site

// Configuration is the merged, authoritative view of the site.
type Configuration struct {
	SiteTitle       string  `json:"siteTitle"`
	HeroTitle       string  `json:"heroTitle"`
	HeroSubtitle    string  `json:"heroSubtitle"`
	HeroImage       string  `json:"heroImage"`
	HeroVideo       string  `json:"heroVideo,omitempty"`
	AboutImage      string  `json:"aboutImage"`
	AboutText       string  `json:"aboutText"`
	FooterBio       string  `json:"footerBio"`
	ContactEmail    string  `json:"contactEmail"`
	ContactPhone    string  `json:"contactPhone"`
	ContactAddress  string  `json:"contactAddress"`
	NewsletterTitle string  `json:"newsletterTitle"`
	NewsletterText  string  `json:"newsletterText"`
	ThemeColor      string  `json:"themeColor"`
	Payment         Payment `json:"paymentConfig"`
	Invoice         Invoice `json:"invoiceConfig"`

	Ads          []Banner      `json:"ads"`
	Services     []Service     `json:"services"`
	Products     []Product     `json:"products"`
	BlogPosts    []BlogPost    `json:"blogPosts"`
	Gallery      []GalleryItem `json:"gallery"`
	Testimonials []Testimonial `json:"testimonials"`
	Team         []TeamMember  `json:"team"`
	Orders       []Order       `json:"orders"`
	Appointments []Appointment `json:"appointments"`

	// RawSettings is the last settings document seen, kept for the
	// language-specific overrides it may carry.
	RawSettings *Settings `json:"rawSettings,omitempty"`
}

// Payment holds the bank transfer instructions shown at checkout.
type Payment struct {
	AccountHolder string `json:"accountHolder"`
	BankName      string `json:"bankName"`
	IBAN          string `json:"iban"`
	SWIFT         string `json:"swift"`
}

// IsZero reports whether no payment field is set.
func (p Payment) IsZero() bool { return p == Payment{} }

// Invoice holds the legal identity printed on invoices.
type Invoice struct {
	TaxID          string `json:"taxId"`
	VATID          string `json:"vatId"`
	Jurisdiction   string `json:"jurisdiction"`
	CompanyName    string `json:"companyName,omitempty"`
	CompanyAddress string `json:"companyAddress,omitempty"`
}

// IsZero reports whether no invoice field is set.
func (i Invoice) IsZero() bool { return i == Invoice{} }

// Field names a scalar text field of Configuration.
type Field string

const (
	FieldSiteTitle       Field = "siteTitle"
	FieldHeroTitle       Field = "heroTitle"
	FieldHeroSubtitle    Field = "heroSubtitle"
	FieldHeroImage       Field = "heroImage"
	FieldHeroVideo       Field = "heroVideo"
	FieldAboutImage      Field = "aboutImage"
	FieldAboutText       Field = "aboutText"
	FieldFooterBio       Field = "footerBio"
	FieldContactEmail    Field = "contactEmail"
	FieldContactPhone    Field = "contactPhone"
	FieldContactAddress  Field = "contactAddress"
	FieldNewsletterTitle Field = "newsletterTitle"
	FieldNewsletterText  Field = "newsletterText"
	FieldThemeColor      Field = "themeColor"
)

// Fields lists every scalar field in declaration order.
var Fields = []Field{
	FieldSiteTitle, FieldHeroTitle, FieldHeroSubtitle, FieldHeroImage,
	FieldHeroVideo, FieldAboutImage, FieldAboutText, FieldFooterBio,
	FieldContactEmail, FieldContactPhone, FieldContactAddress,
	FieldNewsletterTitle, FieldNewsletterText, FieldThemeColor,
}

// Ref returns a pointer to the storage of f inside c, or nil for an unknown
// field.
func (c *Configuration) Ref(f Field) *string {
	switch f {
	case FieldSiteTitle:
		return &c.SiteTitle
	case FieldHeroTitle:
		return &c.HeroTitle
	case FieldHeroSubtitle:
		return &c.HeroSubtitle
	case FieldHeroImage:
		return &c.HeroImage
	case FieldHeroVideo:
		return &c.HeroVideo
	case FieldAboutImage:
		return &c.AboutImage
	case FieldAboutText:
		return &c.AboutText
	case FieldFooterBio:
		return &c.FooterBio
	case FieldContactEmail:
		return &c.ContactEmail
	case FieldContactPhone:
		return &c.ContactPhone
	case FieldContactAddress:
		return &c.ContactAddress
	case FieldNewsletterTitle:
		return &c.NewsletterTitle
	case FieldNewsletterText:
		return &c.NewsletterText
	case FieldThemeColor:
		return &c.ThemeColor
	}
	return nil
}

// Get returns the value of f, or "" for an unknown field.
func (c Configuration) Get(f Field) string {
	if p := c.Ref(f); p != nil {
		return *p
	}
	return ""
}

// WithoutPrivate returns a copy of c with the admin-only collections and the
// raw settings document removed. Used for anonymous readers.
func (c Configuration) WithoutPrivate() Configuration {
	c.Orders = nil
	c.Appointments = nil
	c.RawSettings = nil
	return c
}
