package analysis

func minutes(v float64) *float64 { return &v }

// Fallback returns the static report for lang, used whenever no personal
// analysis can be produced. Each call returns a fresh value. Unsupported
// languages get the English report.
func Fallback(lang Language) *Result {
	switch lang {
	case Turkish:
		return fallbackTR()
	case German:
		return fallbackDE()
	}
	return fallbackEN()
}

func fallbackEN() *Result {
	return &Result{
		Summary: "Your face shows high cheekbones and balanced, oval proportions. The skin reads as a medium depth with a warm undertone, " +
			"which suits gold-based highlighters and peachy blush. Soft definition around the eyes will open up the look without hiding your natural features.",
		Features: []Feature{
			{Feature: "Face shape", Description: "Oval", Confidence: 0.95},
			{Feature: "Skin tone", Description: "Medium warm", Confidence: 0.92},
		},
		Metrics: Metrics{
			FaceShape:         "Oval",
			SkinUndertone:     "Warm",
			SkinToneLab:       "L:72, A:14, B:22",
			EyeOpeningRatio:   "0.35",
			FaceSymmetryScore: 0.94,
			Other:             []Metric{{Name: "Lip fullness", Value: "0.45", Unit: "ratio"}},
		},
		Palette: Palette{
			OptionA: PaletteOption{StyleName: "Natural Glow (Day)", Colors: []Color{
				{Role: "Base", Hex: "#D2B48C", Reason: "Matches the skin depth"},
				{Role: "Blush", Hex: "#FF9999", Reason: "Fresh, healthy flush"},
				{Role: "Lip", Hex: "#D8BFD8", Reason: "Soft nude pink"},
				{Role: "Eyeshadow", Hex: "#CD853F", Reason: "Warm transition shade"},
				{Role: "Highlighter", Hex: "#FFF8DC", Reason: "Natural radiance"},
			}},
			OptionB: PaletteOption{StyleName: "Bronzed Glam (Night)", Colors: []Color{
				{Role: "Contour", Hex: "#8B4513", Reason: "Deep definition"},
				{Role: "Lip", Hex: "#800020", Reason: "Bold statement"},
				{Role: "Eyeshadow", Hex: "#2F4F4F", Reason: "Smoky depth"},
				{Role: "Blush", Hex: "#CD5C5C", Reason: "Intense warmth"},
				{Role: "Eyeliner", Hex: "#000000", Reason: "Lash line depth"},
			}},
		},
		Steps: []Step{
			{Step: 1, Title: "Prep", Product: "Hydrating primer", Tool: "Fingers", Technique: "Massage in", Intensity: "Light"},
			{Step: 2, Title: "Base", Product: "Foundation", Tool: "Damp sponge", Technique: "Press and roll", Intensity: "Medium"},
			{Step: 3, Title: "Eyes", Product: "Eyeshadow", Tool: "Blending brush", Technique: "Windshield wiper", Intensity: "Buildable"},
			{Step: 4, Title: "Finish", Product: "Highlighter", Tool: "Fan brush", Technique: "Sweep on high points", Intensity: "Light"},
		},
		Variants:         Variants{Day: "Keep the base sheer and the lip soft.", Night: "Deepen the crease and switch to the burgundy lip."},
		FixTips:          []string{"Highlight the inner corners of the eyes", "Set the T-zone with translucent powder"},
		Products:         []string{"Hydrating primer", "Medium-coverage foundation", "Warm eyeshadow palette", "Volumizing mascara"},
		EstimatedMinutes: minutes(15),
		Debug:            &Debug{ImageQualityScore: 0.8, LightingCondition: "Good", Warnings: []string{}},
	}
}

func fallbackTR() *Result {
	return &Result{
		Summary: "Yüz hatlarınızda belirgin elmacık kemikleri ve dengeli bir oval yapı göze çarpıyor. Orta derinlikteki cildiniz sıcak bir alt tona sahip, " +
			"bu da altın yansımalı aydınlatıcılar ve şeftali tonlu allıklar için ideal. Göz çevresinde yumuşak bir tanımlama bakışınızı açacaktır.",
		Features: []Feature{
			{Feature: "Yüz şekli", Description: "Oval", Confidence: 0.95},
			{Feature: "Cilt tonu", Description: "Orta sıcak", Confidence: 0.92},
		},
		Metrics: Metrics{
			FaceShape:         "Oval",
			SkinUndertone:     "Sıcak",
			SkinToneLab:       "L:72, A:14, B:22",
			EyeOpeningRatio:   "0.35",
			FaceSymmetryScore: 0.94,
			Other:             []Metric{{Name: "Dudak dolgunluğu", Value: "0.45", Unit: "oran"}},
		},
		Palette: Palette{
			OptionA: PaletteOption{StyleName: "Doğal Işıltı (Gündüz)", Colors: []Color{
				{Role: "Baz", Hex: "#D2B48C", Reason: "Ciltle bütünleşir"},
				{Role: "Allık", Hex: "#FF9999", Reason: "Taze görünüm"},
				{Role: "Ruj", Hex: "#D8BFD8", Reason: "Nude pembe"},
				{Role: "Far", Hex: "#CD853F", Reason: "Sıcak geçiş"},
				{Role: "Aydınlatıcı", Hex: "#FFF8DC", Reason: "Doğal parlaklık"},
			}},
			OptionB: PaletteOption{StyleName: "Bronz Glam (Gece)", Colors: []Color{
				{Role: "Kontür", Hex: "#8B4513", Reason: "Keskin hatlar"},
				{Role: "Ruj", Hex: "#800020", Reason: "İddialı bitiş"},
				{Role: "Far", Hex: "#2F4F4F", Reason: "Buğulu bakış"},
				{Role: "Allık", Hex: "#CD5C5C", Reason: "Yoğun sıcaklık"},
				{Role: "Göz kalemi", Hex: "#000000", Reason: "Derinlik"},
			}},
		},
		Steps: []Step{
			{Step: 1, Title: "Hazırlık", Product: "Nemlendirici baz", Tool: "Parmak", Technique: "Masaj", Intensity: "Hafif"},
			{Step: 2, Title: "Ten", Product: "Fondöten", Tool: "Nemli sünger", Technique: "Bastırarak uygula", Intensity: "Orta"},
			{Step: 3, Title: "Gözler", Product: "Far", Tool: "Dağıtma fırçası", Technique: "Sağa sola dağıt", Intensity: "Katmanlı"},
			{Step: 4, Title: "Bitiş", Product: "Aydınlatıcı", Tool: "Yelpaze fırça", Technique: "Yüksek noktalara sür", Intensity: "Hafif"},
		},
		Variants:         Variants{Day: "Teni hafif, ruju yumuşak tutun.", Night: "Göz kapağı kıvrımını koyulaştırın ve bordo ruja geçin."},
		FixTips:          []string{"Göz pınarlarını aydınlatın", "T bölgesini şeffaf pudra ile sabitleyin"},
		Products:         []string{"Nemlendirici baz", "Orta kapatıcılıkta fondöten", "Sıcak tonlu far paleti", "Hacim veren maskara"},
		EstimatedMinutes: minutes(15),
		Debug:            &Debug{ImageQualityScore: 0.8, LightingCondition: "İyi", Warnings: []string{}},
	}
}

func fallbackDE() *Result {
	return &Result{
		Summary: "Ihr Gesicht zeigt hohe Wangenknochen und ausgewogene, ovale Proportionen. Die Haut hat eine mittlere Tiefe mit warmem Unterton, " +
			"ideal für goldene Highlighter und pfirsichfarbenes Rouge. Eine sanfte Betonung der Augen öffnet den Blick.",
		Features: []Feature{
			{Feature: "Gesichtsform", Description: "Oval", Confidence: 0.95},
			{Feature: "Hautton", Description: "Mittel warm", Confidence: 0.92},
		},
		Metrics: Metrics{
			FaceShape:         "Oval",
			SkinUndertone:     "Warm",
			SkinToneLab:       "L:70, A:12, B:15",
			EyeOpeningRatio:   "0.35",
			FaceSymmetryScore: 0.95,
			Other:             []Metric{{Name: "Lippenfülle", Value: "0.45", Unit: "Verhältnis"}},
		},
		Palette: Palette{
			OptionA: PaletteOption{StyleName: "Natürlicher Glow (Tag)", Colors: []Color{
				{Role: "Basis", Hex: "#D2B48C", Reason: "Passt zum Hautton"},
				{Role: "Rouge", Hex: "#FF9999", Reason: "Frische Ausstrahlung"},
				{Role: "Lippen", Hex: "#D8BFD8", Reason: "Zartes Nude-Rosa"},
				{Role: "Lidschatten", Hex: "#CD853F", Reason: "Warmer Übergang"},
				{Role: "Highlighter", Hex: "#FFF8DC", Reason: "Natürlicher Schimmer"},
			}},
			OptionB: PaletteOption{StyleName: "Bronze-Glamour (Abend)", Colors: []Color{
				{Role: "Kontur", Hex: "#8B4513", Reason: "Tiefe Definition"},
				{Role: "Lippen", Hex: "#800020", Reason: "Statement"},
				{Role: "Lidschatten", Hex: "#2F4F4F", Reason: "Rauchiger Blick"},
				{Role: "Rouge", Hex: "#CD5C5C", Reason: "Intensive Wärme"},
				{Role: "Eyeliner", Hex: "#000000", Reason: "Tiefe am Wimpernkranz"},
			}},
		},
		Steps: []Step{
			{Step: 1, Title: "Vorbereitung", Product: "Primer", Tool: "Finger", Technique: "Einmassieren", Intensity: "Leicht"},
			{Step: 2, Title: "Teint", Product: "Foundation", Tool: "Feuchter Schwamm", Technique: "Tupfen", Intensity: "Mittel"},
			{Step: 3, Title: "Augen", Product: "Lidschatten", Tool: "Blendepinsel", Technique: "Pendelbewegung", Intensity: "Aufbaubar"},
			{Step: 4, Title: "Finish", Product: "Highlighter", Tool: "Fächerpinsel", Technique: "Auf die Höhen streichen", Intensity: "Leicht"},
		},
		Variants:         Variants{Day: "Teint leicht und Lippen zart halten.", Night: "Lidfalte vertiefen und zum Bordeaux-Lippenstift wechseln."},
		FixTips:          []string{"Innenwinkel der Augen aufhellen", "T-Zone mit transparentem Puder fixieren"},
		Products:         []string{"Primer", "Foundation mit mittlerer Deckkraft", "Warme Lidschattenpalette", "Volumen-Mascara"},
		EstimatedMinutes: minutes(15),
		Debug:            &Debug{ImageQualityScore: 0.8, LightingCondition: "Gut", Warnings: []string{}},
	}
}
