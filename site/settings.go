package site

import (
	"encoding/json"
	"strings"
)

// Settings is the global settings document edited from the CMS. It may be
// partially populated: a missing or blank field means "not set", never
// "clear this field".
type Settings struct {
	// Values holds global, language-independent fields.
	Values map[Field]string
	// Localized holds per-language overrides keyed "<field>_<lang>", e.g.
	// "heroTitle_en".
	Localized map[string]string
}

// Document keys that differ from the Configuration field names.
var settingsAliases = map[string]Field{
	"footerText": FieldFooterBio,
}

// Localized keys map onto these fields.
var localizedFields = map[string]Field{
	"siteTitle":    FieldSiteTitle,
	"heroTitle":    FieldHeroTitle,
	"siteSubtitle": FieldHeroSubtitle,
	"siteContent":  FieldAboutText,
}

// Languages the storefront is translated into.
var Languages = []string{"tr", "en", "de"}

// Get returns the global value of f, or "" when unset.
func (s Settings) Get(f Field) string { return s.Values[f] }

// Set stores v for f; blank values delete the entry.
func (s *Settings) Set(f Field, v string) {
	v = strings.TrimSpace(v)
	if s.Values == nil {
		s.Values = make(map[Field]string)
	}
	if v == "" {
		delete(s.Values, f)
		return
	}
	s.Values[f] = v
}

// IsEmpty reports whether the document carries no value at all.
func (s Settings) IsEmpty() bool { return len(s.Values) == 0 && len(s.Localized) == 0 }

// Resolve returns the effective value of f for lang: the localized override
// when present, the global value otherwise.
func (s Settings) Resolve(f Field, lang string) string {
	for key, lf := range localizedFields {
		if lf != f {
			continue
		}
		if v := s.Localized[key+"_"+lang]; v != "" {
			return v
		}
	}
	return s.Values[f]
}

// UnmarshalJSON reads the flat document shape. Null, non-string and blank
// values are dropped.
func (s *Settings) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	s.Values = make(map[Field]string)
	s.Localized = make(map[string]string)

	known := make(map[string]Field, len(Fields))
	for _, f := range Fields {
		known[string(f)] = f
	}
	for k, v := range raw {
		var str string
		if err := json.Unmarshal(v, &str); err != nil {
			continue
		}
		str = strings.TrimSpace(str)
		if str == "" {
			continue
		}
		if f, ok := known[k]; ok {
			s.Values[f] = str
			continue
		}
		if f, ok := settingsAliases[k]; ok {
			if _, set := s.Values[f]; !set {
				s.Values[f] = str
			}
			continue
		}
		if i := strings.LastIndexByte(k, '_'); i > 0 {
			if _, ok := localizedFields[k[:i]]; ok {
				s.Localized[k] = str
			}
		}
	}
	return nil
}

// MarshalJSON writes the flat document shape.
func (s Settings) MarshalJSON() ([]byte, error) {
	out := make(map[string]string, len(s.Values)+len(s.Localized))
	for f, v := range s.Values {
		out[string(f)] = v
	}
	for k, v := range s.Localized {
		out[k] = v
	}
	return json.Marshal(out)
}

// Clone returns a deep copy of s.
func (s Settings) Clone() Settings {
	c := Settings{
		Values:    make(map[Field]string, len(s.Values)),
		Localized: make(map[string]string, len(s.Localized)),
	}
	for k, v := range s.Values {
		c.Values[k] = v
	}
	for k, v := range s.Localized {
		c.Localized[k] = v
	}
	return c
}

// Localize returns a copy of c where the fields carrying language overrides
// in c.RawSettings are resolved for lang.
func (c Configuration) Localize(lang string) Configuration {
	if c.RawSettings == nil {
		return c
	}
	for _, f := range localizedFields {
		if v := c.RawSettings.Resolve(f, lang); v != "" {
			*c.Ref(f) = v
		}
	}
	return c
}
