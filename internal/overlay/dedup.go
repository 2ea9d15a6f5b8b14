package overlay

import (
	"github.com/jmylchreest/scatter/internal/model"
)

// DefaultHistorySize is the number of identities remembered for deduplication.
const DefaultHistorySize = 200

// Deduplicator suppresses re-delivery of events whose identity was seen
// recently. History is a FIFO window by insertion order and is independent
// of whether the message is still on screen.
type Deduplicator struct {
	window []string // Ring buffer of identities
	next   int
	size   int
	seen   map[string]struct{}
}

// NewDeduplicator creates a deduplicator remembering up to window identities.
func NewDeduplicator(window int) *Deduplicator {
	if window <= 0 {
		window = DefaultHistorySize
	}
	return &Deduplicator{
		window: make([]string, window),
		seen:   make(map[string]struct{}, window),
	}
}

// Accept assigns an identity to ev if it has none and records it. It returns
// false if the identity is already in the history window.
func (d *Deduplicator) Accept(ev *model.IncomingEvent) bool {
	ev.EnsureID()

	if _, dup := d.seen[ev.ID]; dup {
		return false
	}

	if d.size == len(d.window) {
		delete(d.seen, d.window[d.next])
	} else {
		d.size++
	}
	d.window[d.next] = ev.ID
	d.next = (d.next + 1) % len(d.window)
	d.seen[ev.ID] = struct{}{}
	return true
}

// Contains reports whether id is in the history window.
func (d *Deduplicator) Contains(id string) bool {
	_, ok := d.seen[id]
	return ok
}

// Len returns the number of identities in the history window.
func (d *Deduplicator) Len() int {
	return d.size
}

// Cap returns the size of the history window.
func (d *Deduplicator) Cap() int {
	return len(d.window)
}
