package dbus

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/jmylchreest/scatter/internal/config"
)

// ErrUnknownStyle is returned when a style map names a field that does not exist.
var ErrUnknownStyle = errors.New("unknown style")

// Status is the decoded reply of the Status method.
type Status struct {
	Active    int       `json:"active" yaml:"active"`
	Queued    int       `json:"queued" yaml:"queued"`
	History   int       `json:"history" yaml:"history"`
	DebugMode bool      `json:"debugMode" yaml:"debug_mode"`
	StartedAt time.Time `json:"startedAt" yaml:"started_at"`
}

// StylePatchFromVariants converts an a{sv} style map into a patch.
// Keys use the camelCase wire names ("fontSize", "randomMaxMessages"), and
// snake_case spellings are accepted too. Numbers may be any D-Bus numeric
// type or a numeric string.
func StylePatchFromVariants(m map[string]dbus.Variant) (config.StylePatch, error) {
	var p config.StylePatch
	for key, v := range m {
		var err error
		switch canonicalKey(key) {
		case "textcolor":
			p.TextColor, err = variantString(v)
		case "usernamecolor":
			p.UsernameColor, err = variantString(v)
		case "textshadow":
			p.TextShadow, err = variantString(v)
		case "bgcolor":
			p.BgColor, err = variantString(v)
		case "fontsize":
			p.FontSize, err = variantFloat(v)
		case "bgopacity":
			p.BgOpacity, err = variantFloat(v)
		case "padding":
			p.Padding, err = variantFloat(v)
		case "gap":
			p.Gap, err = variantFloat(v)
		case "borderradius":
			p.BorderRadius, err = variantFloat(v)
		case "width":
			p.Width, err = variantFloat(v)
		case "height":
			p.Height, err = variantFloat(v)
		case "bottommargin":
			p.BottomMargin, err = variantFloat(v)
		case "randommessageduration", "messageduration":
			p.MessageDuration, err = variantFloat(v)
		case "randomanimationduration", "animationduration":
			p.AnimationDuration, err = variantFloat(v)
		case "randommaxmessages", "maxmessages":
			p.MaxMessages, err = variantFloat(v)
		case "margin":
			p.Margin, err = variantFloat(v)
		case "debugmode":
			p.DebugMode, err = variantBool(v)
		default:
			return config.StylePatch{}, fmt.Errorf("%w %q", ErrUnknownStyle, key)
		}
		if err != nil {
			return config.StylePatch{}, fmt.Errorf("invalid value for %s: %w", key, err)
		}
	}
	return p, nil
}

// VariantsFromStylePatch converts a patch into the a{sv} form sent by clients.
// Only the fields set in p are included.
func VariantsFromStylePatch(p config.StylePatch) (map[string]dbus.Variant, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode styles: %w", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("failed to encode styles: %w", err)
	}

	out := make(map[string]dbus.Variant, len(fields))
	for k, v := range fields {
		out[k] = dbus.MakeVariant(v)
	}
	return out, nil
}

func canonicalKey(key string) string {
	key = strings.ToLower(key)
	return strings.NewReplacer("_", "", "-", "").Replace(key)
}

func variantString(v dbus.Variant) (*string, error) {
	s, ok := v.Value().(string)
	if !ok {
		return nil, fmt.Errorf("expected string, got %s", v.Signature())
	}
	return &s, nil
}

func variantBool(v dbus.Variant) (*bool, error) {
	switch b := v.Value().(type) {
	case bool:
		return &b, nil
	case string:
		parsed, err := strconv.ParseBool(b)
		if err != nil {
			return nil, err
		}
		return &parsed, nil
	}
	return nil, fmt.Errorf("expected boolean, got %s", v.Signature())
}

func variantFloat(v dbus.Variant) (*float64, error) {
	var f float64
	switch n := v.Value().(type) {
	case byte:
		f = float64(n)
	case int16:
		f = float64(n)
	case uint16:
		f = float64(n)
	case int32:
		f = float64(n)
	case uint32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint64:
		f = float64(n)
	case float64:
		f = n
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return nil, err
		}
		f = parsed
	default:
		return nil, fmt.Errorf("expected number, got %s", v.Signature())
	}
	return &f, nil
}
