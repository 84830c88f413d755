package theme

import (
	"time"
)

// Theme is the value object describing the platform look. Exactly one
// current platform theme exists at a time; it is owned by the decision
// engine. Per-user personalized copies are derived from it.
type Theme struct {
	PrimaryHue   int     `json:"primary_hue"`
	Saturation   int     `json:"saturation"`
	Lightness    int     `json:"lightness"`
	AccentHue    int     `json:"accent_hue"`
	Spacing      string  `json:"spacing"`
	FontScale    float64 `json:"font_scale"`
	BorderRadius int     `json:"border_radius"`
	Layout       string  `json:"layout"`
	Shadows      string  `json:"shadows"`
	Mode         string  `json:"mode"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Adjustments is the partial set of theme fields a recommendation may
// change. Nil fields are left untouched.
type Adjustments struct {
	PrimaryHue *int `json:"primaryHue,omitempty"`
	Saturation *int `json:"saturation,omitempty"`
	Lightness  *int `json:"lightness,omitempty"`
}

// Preferences are per-user overrides for a personalized theme.
type Preferences struct {
	PrimaryHue *int     `json:"primary_hue,omitempty"`
	FontScale  *float64 `json:"font_scale,omitempty"`
	DarkMode   *bool    `json:"dark_mode,omitempty"`
}

// Default returns the initial platform theme.
func Default() Theme {
	return Theme{
		PrimaryHue:   220,
		Saturation:   65,
		Lightness:    50,
		AccentHue:    280,
		Spacing:      "comfortable",
		FontScale:    1.0,
		BorderRadius: 8,
		Layout:       "feed",
		Shadows:      "soft",
		Mode:         "light",
		UpdatedAt:    time.Now(),
	}
}

// WithAdjustments returns a copy of t with the non-nil fields of adj
// applied and the timestamp set to now.
func (t Theme) WithAdjustments(adj *Adjustments, now time.Time) Theme {
	out := t
	if adj != nil {
		if adj.PrimaryHue != nil {
			out.PrimaryHue = *adj.PrimaryHue
		}
		if adj.Saturation != nil {
			out.Saturation = *adj.Saturation
		}
		if adj.Lightness != nil {
			out.Lightness = *adj.Lightness
		}
	}
	out.UpdatedAt = now
	return out
}

// Personalize derives a per-user theme from t using the supplied
// preferences.
func (t Theme) Personalize(prefs Preferences) Theme {
	out := t
	if prefs.PrimaryHue != nil {
		out.PrimaryHue = *prefs.PrimaryHue
	}
	if prefs.FontScale != nil {
		out.FontScale = *prefs.FontScale
	}
	if prefs.DarkMode != nil {
		if *prefs.DarkMode {
			out.Mode = "dark"
			out.Lightness = 25
		} else {
			out.Mode = "light"
			out.Lightness = 50
		}
	}
	return out
}
