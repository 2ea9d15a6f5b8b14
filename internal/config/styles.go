package config

import (
	"cmp"
	"math"
	"time"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// Style defaults. Sizes are in viewport pixels.
const (
	DefaultViewportWidth     = 800
	DefaultViewportHeight    = 600
	DefaultMessageDuration   = 5.0 // seconds
	DefaultAnimationDuration = 500 // milliseconds
	DefaultMaxMessages       = 10
	DefaultMargin            = 10
)

// Styles is the overlay's style and layout snapshot. It is replaced
// wholesale on every update and never mutated in place.
type Styles struct {
	TextColor         string  `toml:"text_color" json:"textColor"`
	UsernameColor     string  `toml:"username_color" json:"usernameColor"`
	FontSize          int     `toml:"font_size" json:"fontSize"`
	TextShadow        string  `toml:"text_shadow" json:"textShadow"` // "on" or "off"
	BgColor           string  `toml:"bg_color" json:"bgColor"`
	BgOpacity         float64 `toml:"bg_opacity" json:"bgOpacity"`
	Padding           int     `toml:"padding" json:"padding"`
	Gap               int     `toml:"gap" json:"gap"`
	BorderRadius      int     `toml:"border_radius" json:"borderRadius"`
	Width             int     `toml:"width" json:"width"`   // Viewport width
	Height            int     `toml:"height" json:"height"` // Viewport height
	BottomMargin      int     `toml:"bottom_margin" json:"bottomMargin"`
	MessageDuration   float64 `toml:"message_duration" json:"randomMessageDuration"`     // Hold time in seconds
	AnimationDuration int     `toml:"animation_duration" json:"randomAnimationDuration"` // Fade time in milliseconds
	MaxMessages       int     `toml:"max_messages" json:"randomMaxMessages"`
	Margin            int     `toml:"margin" json:"margin"`
	DebugMode         bool    `toml:"debug_mode" json:"debugMode"`
}

// DefaultStyles returns the built-in style snapshot.
func DefaultStyles() Styles {
	return Styles{
		TextColor:         "#ffffff",
		UsernameColor:     "#a0a0ff",
		FontSize:          16,
		TextShadow:        "on",
		BgColor:           "#000000",
		BgOpacity:         0.5,
		Padding:           5,
		Gap:               5,
		BorderRadius:      4,
		Width:             DefaultViewportWidth,
		Height:            DefaultViewportHeight,
		BottomMargin:      10,
		MessageDuration:   DefaultMessageDuration,
		AnimationDuration: DefaultAnimationDuration,
		MaxMessages:       DefaultMaxMessages,
		Margin:            DefaultMargin,
		DebugMode:         false,
	}
}

// HoldDuration returns how long a message stays fully visible.
func (s Styles) HoldDuration() time.Duration {
	return time.Duration(s.MessageDuration * float64(time.Second))
}

// FadeDuration returns the fade-in and fade-out animation length.
func (s Styles) FadeDuration() time.Duration {
	return time.Duration(s.AnimationDuration) * time.Millisecond
}

// StylePatch is a partial style update. Nil fields are left unchanged.
// Numeric fields are float64 because the wire format does not distinguish.
type StylePatch struct {
	TextColor         *string  `json:"textColor,omitempty"`
	UsernameColor     *string  `json:"usernameColor,omitempty"`
	FontSize          *float64 `json:"fontSize,omitempty"`
	TextShadow        *string  `json:"textShadow,omitempty"`
	BgColor           *string  `json:"bgColor,omitempty"`
	BgOpacity         *float64 `json:"bgOpacity,omitempty"`
	Padding           *float64 `json:"padding,omitempty"`
	Gap               *float64 `json:"gap,omitempty"`
	BorderRadius      *float64 `json:"borderRadius,omitempty"`
	Width             *float64 `json:"width,omitempty"`
	Height            *float64 `json:"height,omitempty"`
	BottomMargin      *float64 `json:"bottomMargin,omitempty"`
	MessageDuration   *float64 `json:"randomMessageDuration,omitempty"`
	AnimationDuration *float64 `json:"randomAnimationDuration,omitempty"`
	MaxMessages       *float64 `json:"randomMaxMessages,omitempty"`
	Margin            *float64 `json:"margin,omitempty"`
	DebugMode         *bool    `json:"debugMode,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p StylePatch) IsEmpty() bool {
	return p == StylePatch{}
}

// Apply returns a copy of s with the patch merged in. Numeric values are
// clamped to their allowed range; invalid colors and shadow values are ignored.
func (s Styles) Apply(p StylePatch) Styles {
	out := s

	if p.TextColor != nil && validColor(*p.TextColor) {
		out.TextColor = *p.TextColor
	}
	if p.UsernameColor != nil && validColor(*p.UsernameColor) {
		out.UsernameColor = *p.UsernameColor
	}
	if p.BgColor != nil && validColor(*p.BgColor) {
		out.BgColor = *p.BgColor
	}
	if p.TextShadow != nil && (*p.TextShadow == "on" || *p.TextShadow == "off") {
		out.TextShadow = *p.TextShadow
	}

	setInt(&out.FontSize, p.FontSize, 10, 32)
	setInt(&out.Padding, p.Padding, 0, 20)
	setInt(&out.Gap, p.Gap, 0, 20)
	setInt(&out.BorderRadius, p.BorderRadius, 0, 20)
	setInt(&out.Width, p.Width, 100, 3000)
	setInt(&out.Height, p.Height, 100, 3000)
	setInt(&out.BottomMargin, p.BottomMargin, 0, 200)
	setInt(&out.AnimationDuration, p.AnimationDuration, 100, 2000)
	setInt(&out.MaxMessages, p.MaxMessages, 1, 50)
	setInt(&out.Margin, p.Margin, 0, 100)

	if p.BgOpacity != nil && !math.IsNaN(*p.BgOpacity) {
		out.BgOpacity = clamp(*p.BgOpacity, 0, 1)
	}
	if p.MessageDuration != nil && !math.IsNaN(*p.MessageDuration) {
		out.MessageDuration = clamp(*p.MessageDuration, 1, 60)
	}
	if p.DebugMode != nil {
		out.DebugMode = *p.DebugMode
	}

	return out
}

// Patch returns a patch that sets every field to the values of s.
func (s Styles) Patch() StylePatch {
	f := func(v int) *float64 {
		x := float64(v)
		return &x
	}
	return StylePatch{
		TextColor:         &s.TextColor,
		UsernameColor:     &s.UsernameColor,
		FontSize:          f(s.FontSize),
		TextShadow:        &s.TextShadow,
		BgColor:           &s.BgColor,
		BgOpacity:         &s.BgOpacity,
		Padding:           f(s.Padding),
		Gap:               f(s.Gap),
		BorderRadius:      f(s.BorderRadius),
		Width:             f(s.Width),
		Height:            f(s.Height),
		BottomMargin:      f(s.BottomMargin),
		MessageDuration:   &s.MessageDuration,
		AnimationDuration: f(s.AnimationDuration),
		MaxMessages:       f(s.MaxMessages),
		Margin:            f(s.Margin),
		DebugMode:         &s.DebugMode,
	}
}

func setInt(dst *int, v *float64, lo, hi int) {
	if v == nil || math.IsNaN(*v) {
		return
	}
	*dst = clamp(int(math.Round(clamp(*v, float64(lo), float64(hi)))), lo, hi)
}

func clamp[T cmp.Ordered](v, lo, hi T) T {
	return max(lo, min(hi, v))
}

func validColor(s string) bool {
	_, err := colorful.Hex(s)
	return err == nil
}
