package site

const (
	defaultHeroImage  = "https://images.unsplash.com/photo-1596436570226-f78a87383637?q=80&w=2074&auto=format&fit=crop"
	defaultAboutImage = "https://placehold.co/600x800/png?text=Fotograf+Yok"
	defaultPhone      = "017663195289"
)

// Defaults returns the static configuration a session starts from before any
// watcher has delivered. Every call returns fresh slices.
func Defaults() Configuration {
	return Configuration{
		HeroTitle:       "Gerçek Güzelliğinizi Ortaya Çıkarın",
		HeroSubtitle:    "Profesyonel sanat Yapay Zeka ile buluşuyor. Shenay İleri ile yüz şeklinize en uygun makyajı keşfedin.",
		HeroImage:       defaultHeroImage,
		AboutImage:      defaultAboutImage,
		AboutText:       "Shenay İleri, güzellik ve estetik dünyasında yıllara dayanan tecrübesiyle, her kadının içindeki eşsiz ışıltıyı ortaya çıkarmayı hedefler.",
		FooterBio:       "Bridal Room & Academy.\nProfessional Makeup Artist.\nSkin Care Expert.",
		ContactEmail:    "contact@shenayileri.com",
		ContactPhone:    defaultPhone,
		ContactAddress:  "Germany",
		NewsletterTitle: "Newsletter",
		NewsletterText:  "Subscribe for beauty tips and updates.",
		ThemeColor:      "gold",
		Payment: Payment{
			AccountHolder: "Shenay Ileri Beauty",
			BankName:      "Sparkasse Germany",
			IBAN:          "DE89 3705 0198 0000 1234 56",
			SWIFT:         "SPARKDE33XXX",
		},
		Invoice: Invoice{
			TaxID:          "123/456/789",
			VATID:          "DE 123 456 789",
			Jurisdiction:   "Berlin",
			CompanyName:    "Shenay Ileri Beauty",
			CompanyAddress: "Example Street, Berlin",
		},
		Ads: []Banner{
			{ID: 1, ImageURL: "https://images.unsplash.com/photo-1522337660859-02fbefca4702?q=80&w=2069&auto=format&fit=crop", Title: "Bridal Collection 2025", Link: "#"},
			{ID: 2, ImageURL: "https://images.unsplash.com/photo-1512496015851-a90fb38ba796?q=80&w=2070&auto=format&fit=crop", Title: "Masterclass: Contour like a Pro", Link: "#"},
		},
		Services: []Service{
			{ID: 1, Title: "Gelin Makyajı & Saç", Description: "En özel gününüzde kusursuz görünüm. Prova ve yüz analizi dahil.", Image: "https://images.unsplash.com/photo-1595959183082-7b570b7e08e2?q=80&w=2036&auto=format&fit=crop"},
			{ID: 2, Title: "Aquafacial Cilt Bakımı", Description: "Derinlemesine temizlik ve nemlendirme ile ışıldayan bir cilt.", Image: "https://images.unsplash.com/photo-1616394584738-fc6e612e71b9?q=80&w=2070&auto=format&fit=crop"},
			{ID: 3, Title: "Lash & Brow Lifting", Description: "Daha dolgun kaşlar ve kıvrık kirpikler için profesyonel dokunuş.", Image: "https://images.unsplash.com/photo-1588510002166-5121287130eb?q=80&w=1974&auto=format&fit=crop"},
		},
		Products: []Product{
			{ID: 1, Name: "Hydra Glow Primer", Description: "Nemlendirici makyaj bazı.", Price: "€29.90", Rating: 4.8},
			{ID: 2, Name: "Silk Finish Foundation", Description: "Uzun süre kalıcı, doğal bitişli fondöten.", Price: "€39.90", Rating: 4.7},
		},
		BlogPosts: []BlogPost{
			{ID: 1, Title: "Gelin Makyajında 2025 Trendleri", Excerpt: "Bu sezonun öne çıkan doğal ışıltı teknikleri.", Date: "2025-01-15"},
		},
		Gallery: []GalleryItem{
			{ID: 1, Image: "https://images.unsplash.com/photo-1595959183082-7b570b7e08e2?q=80&w=2036&auto=format&fit=crop", Category: "bridal"},
		},
	}
}

// IsDefault reports whether f in c still holds its static default.
func IsDefault(c Configuration, f Field) bool {
	d := Defaults()
	return c.Get(f) == d.Get(f)
}
