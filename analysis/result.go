package analysis

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Language is a supported report language.
type Language string

const (
	Turkish Language = "tr"
	English Language = "en"
	German  Language = "de"
)

// Languages lists the supported languages.
var Languages = []Language{Turkish, English, German}

// ParseLanguage accepts "tr", "en" or "de" in any case.
func ParseLanguage(s string) (Language, error) {
	l := Language(strings.ToLower(strings.TrimSpace(s)))
	switch l {
	case Turkish, English, German:
		return l, nil
	}
	return "", fmt.Errorf("analysis: unsupported language %q", s)
}

// Result is one makeup analysis report. A Result is immutable once
// returned: cached results are shared between callers.
type Result struct {
	Summary          string    `json:"summary"`
	Features         []Feature `json:"features,omitempty"`
	Metrics          Metrics   `json:"numeric_metrics"`
	Palette          Palette   `json:"palette"`
	Steps            []Step    `json:"steps"`
	Variants         Variants  `json:"variants"`
	FixTips          []string  `json:"fix_tips"`
	Products         []string  `json:"products"`
	EstimatedMinutes *float64  `json:"estimated_time_minutes"`
	Debug            *Debug    `json:"debug_info,omitempty"`
	Error            string    `json:"error,omitempty"`
}

// Feature is one detected facial feature.
type Feature struct {
	Feature     string  `json:"feature"`
	Description string  `json:"description"`
	Confidence  float64 `json:"confidence"`
}

// Metrics are the numeric face and skin measurements.
type Metrics struct {
	FaceShape     string `json:"face_shape"`
	SkinUndertone string `json:"skin_undertone"`
	SkinToneLab   string `json:"skin_tone_lab"`
	// EyeOpeningRatio is a decimal string, e.g. "0.35".
	EyeOpeningRatio string `json:"eye_opening_ratio"`
	// FaceSymmetryScore is a fraction in [0, 1].
	FaceSymmetryScore float64  `json:"face_symmetry_score"`
	Other             []Metric `json:"other_metrics,omitempty"`
}

// Metric is a free-form extra measurement.
type Metric struct {
	Name  string `json:"name"`
	Value string `json:"value"`
	Unit  string `json:"unit"`
}

// Palette holds the two proposed looks.
type Palette struct {
	OptionA PaletteOption `json:"option_a"`
	OptionB PaletteOption `json:"option_b"`
}

// PaletteOption is one named look.
type PaletteOption struct {
	StyleName string  `json:"style_name"`
	Colors    []Color `json:"colors"`
}

// Color is one palette entry.
type Color struct {
	Role   string `json:"role"`
	Hex    string `json:"hex"`
	Reason string `json:"reason"`
}

// Step is one application step.
type Step struct {
	Step      int    `json:"step"`
	Title     string `json:"title"`
	Product   string `json:"product"`
	Tool      string `json:"tool"`
	Technique string `json:"technique"`
	Intensity string `json:"intensity"`
}

// Variants holds the day and night adjustments.
type Variants struct {
	Day   string `json:"day"`
	Night string `json:"night"`
}

// Debug carries image quality diagnostics.
type Debug struct {
	ImageQualityScore float64  `json:"image_quality_score"`
	LightingCondition string   `json:"lighting_condition"`
	Warnings          []string `json:"warnings"`
}

// Complete reports whether r has everything a report page needs.
func (r *Result) Complete() bool {
	return r != nil &&
		strings.TrimSpace(r.Summary) != "" &&
		len(r.Palette.OptionA.Colors) > 0 &&
		len(r.Palette.OptionB.Colors) > 0 &&
		len(r.Steps) > 0 &&
		r.EstimatedMinutes != nil
}

// SymmetryPercent renders a symmetry fraction as a rounded percentage.
func SymmetryPercent(score float64) int {
	return int(math.Round(score * 100))
}

// EyeOpeningThreshold separates large eyes from almond-shaped ones.
const EyeOpeningThreshold = 0.35

// EyeOpeningLabel buckets an eye opening ratio. An unreadable ratio is
// "Standard".
func EyeOpeningLabel(ratio string) string {
	v, err := strconv.ParseFloat(strings.TrimSpace(ratio), 64)
	if err != nil || v == 0 {
		return "Standard"
	}
	if v > EyeOpeningThreshold {
		return "Large"
	}
	return "Almond"
}
