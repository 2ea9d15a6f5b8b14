// Package emote splits chat text into literal runs and emote references.
package emote

import (
	"regexp"
	"strings"
)

// placeholder matches [emote:name] and [emote:name|id].
var placeholder = regexp.MustCompile(`\[emote:([^\]|]+)(?:\|[^\]]+)?\]`)

// Kind distinguishes literal text from emote assets.
type Kind int

const (
	// KindText is a literal text run.
	KindText Kind = iota
	// KindEmote is a resolved emote asset reference.
	KindEmote
)

// Segment is one piece of a tokenized message.
type Segment struct {
	Kind     Kind
	Text     string // Literal text, or the emote name for KindEmote
	AssetRef string // Only set for KindEmote
}

// Tokenize splits text into literal runs and emote references using the
// name to asset mapping. Placeholders naming an unknown emote are kept as
// the literal "[name]". Adjacent literal runs are merged.
func Tokenize(text string, emotes map[string]string) []Segment {
	if len(emotes) == 0 {
		if text == "" {
			return nil
		}
		return []Segment{{Kind: KindText, Text: text}}
	}

	var segments []Segment
	appendText := func(s string) {
		if s == "" {
			return
		}
		if n := len(segments); n > 0 && segments[n-1].Kind == KindText {
			segments[n-1].Text += s
			return
		}
		segments = append(segments, Segment{Kind: KindText, Text: s})
	}

	last := 0
	for _, m := range placeholder.FindAllStringSubmatchIndex(text, -1) {
		appendText(text[last:m[0]])
		name := text[m[2]:m[3]]
		if ref, ok := emotes[name]; ok && ref != "" {
			segments = append(segments, Segment{Kind: KindEmote, Text: name, AssetRef: ref})
		} else {
			appendText("[" + name + "]")
		}
		last = m[1]
	}
	appendText(text[last:])

	return segments
}

// Plain renders segments back to display text, using :name: for emotes.
func Plain(segments []Segment) string {
	var b strings.Builder
	for _, s := range segments {
		if s.Kind == KindEmote {
			b.WriteString(":" + s.Text + ":")
			continue
		}
		b.WriteString(s.Text)
	}
	return b.String()
}
