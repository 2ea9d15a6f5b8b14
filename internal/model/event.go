// Package model defines the core data structures for scatter.
package model

import (
	"bytes"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// Defaults substituted for missing event fields.
const (
	DefaultSender = "unknown"
	DefaultSource = "unknown"
)

// ErrEmptyPayload is returned when an event payload carries no data at all.
var ErrEmptyPayload = errors.New("event payload is empty")

// Emote maps an emote name to the asset that renders it.
type Emote struct {
	Name     string `json:"name"`
	AssetRef string `json:"url"`
}

// IncomingEvent is a chat event delivered by a transport.
// Identity is either supplied by the transport or synthesized from
// sender, text and arrival time; it is best-effort unique only.
type IncomingEvent struct {
	ID          string    `json:"id"`
	Sender      string    `json:"user"`
	Text        string    `json:"text"`
	Emotes      []Emote   `json:"emotes,omitempty"`
	ArrivalTime time.Time `json:"-"`
	Source      string    `json:"-"` // Transport that delivered the event
}

// RawEvent is the loosely typed wire form of an event.
// Every field is optional; Normalize fills in safe defaults.
type RawEvent struct {
	ID        json.RawMessage `json:"id,omitempty"`
	User      *string         `json:"user,omitempty"`
	Text      *string         `json:"text,omitempty"`
	Emotes    []rawEmote      `json:"emotes,omitempty"`
	Timestamp json.RawMessage `json:"timestamp,omitempty"`
}

type rawEmote struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// DecodeEvent parses a JSON event object and normalizes it.
func DecodeEvent(data []byte, source string, now time.Time) (IncomingEvent, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return IncomingEvent{}, ErrEmptyPayload
	}

	var raw RawEvent
	if err := json.Unmarshal(data, &raw); err != nil {
		return IncomingEvent{}, fmt.Errorf("failed to decode event: %w", err)
	}
	return Normalize(raw, source, now), nil
}

// Normalize converts a raw event into an IncomingEvent, defaulting missing
// sender, text and timestamp rather than failing.
func Normalize(raw RawEvent, source string, now time.Time) IncomingEvent {
	ev := IncomingEvent{
		Sender:      DefaultSender,
		ArrivalTime: now,
		Source:      source,
	}
	if ev.Source == "" {
		ev.Source = DefaultSource
	}

	if raw.User != nil && strings.TrimSpace(*raw.User) != "" {
		ev.Sender = sanitize(*raw.User)
	}
	if raw.Text != nil {
		ev.Text = sanitize(*raw.Text)
	}
	if ts, ok := parseTimestamp(raw.Timestamp); ok {
		ev.ArrivalTime = ts
	}

	for _, e := range raw.Emotes {
		if e.Name == "" || e.URL == "" {
			continue
		}
		ev.Emotes = append(ev.Emotes, Emote{Name: e.Name, AssetRef: e.URL})
	}

	ev.ID = parseID(raw.ID)
	ev.EnsureID()
	return ev
}

// EnsureID synthesizes an identity when none was supplied.
func (e *IncomingEvent) EnsureID() {
	if e.ID != "" {
		return
	}
	if e.Sender == "" {
		e.Sender = DefaultSender
	}
	if e.ArrivalTime.IsZero() {
		e.ArrivalTime = time.Now()
	}
	e.ID = SynthesizeID(e.Sender, e.Text, e.ArrivalTime)
}

// SynthesizeID builds the fallback identity for an event.
func SynthesizeID(sender, text string, at time.Time) string {
	return fmt.Sprintf("%s_%s_%d", sender, text, at.UnixMilli())
}

// NewIdentity returns a fresh ULID string for events that have no natural identity.
func NewIdentity() (string, error) {
	id, err := ulid.New(ulid.Timestamp(time.Now()), rand.Reader)
	if err != nil {
		return "", fmt.Errorf("failed to generate ULID: %w", err)
	}
	return id.String(), nil
}

// EmoteMap returns the name to asset mapping for the event's emotes.
func (e *IncomingEvent) EmoteMap() map[string]string {
	if len(e.Emotes) == 0 {
		return nil
	}
	m := make(map[string]string, len(e.Emotes))
	for _, em := range e.Emotes {
		m[em.Name] = em.AssetRef
	}
	return m
}

// parseID accepts string or numeric identities.
func parseID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

// parseTimestamp accepts unix milliseconds (number or numeric string) or RFC 3339.
func parseTimestamp(raw json.RawMessage) (time.Time, bool) {
	if len(raw) == 0 {
		return time.Time{}, false
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if ms, err := n.Int64(); err == nil && ms > 0 {
			return time.UnixMilli(ms), true
		}
		if f, err := n.Float64(); err == nil && f > 0 {
			return time.UnixMilli(int64(f)), true
		}
		return time.Time{}, false
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return time.Time{}, false
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil && ms > 0 {
		return time.UnixMilli(ms), true
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// sanitize removes control characters that would corrupt a terminal surface.
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\t':
			return ' '
		case r < 0x20 || r == 0x7f:
			return -1
		default:
			return r
		}
	}, s)
}
