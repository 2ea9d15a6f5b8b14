package overlay

import (
	"container/list"
	"errors"
	"time"

	"github.com/jmylchreest/scatter/internal/schedule"
)

// ErrDuplicateIdentity is returned when registering an identity that is
// already active.
var ErrDuplicateIdentity = errors.New("identity already active")

// ErrInvalidLimit is returned when registering with a concurrency cap
// below one.
var ErrInvalidLimit = errors.New("concurrency limit must be at least 1")

// RemovalReason records why a message left the registry.
type RemovalReason int

const (
	ReasonExpired RemovalReason = iota // Timer chain completed
	ReasonEvicted                      // Concurrency cap exceeded
	ReasonCleared                      // Clear command
)

func (r RemovalReason) String() string {
	switch r {
	case ReasonExpired:
		return "expired"
	case ReasonEvicted:
		return "evicted"
	case ReasonCleared:
		return "cleared"
	default:
		return "unknown"
	}
}

// ActiveMessage is a message occupying a registry slot.
type ActiveMessage struct {
	ID         string
	Sender     string
	Renderable Renderable
	Outline    Renderable // Zero when no debug outline exists
	Footprint  Rect
	Tier       Tier
	State      State
	PlacedAt   time.Time

	// One task per pending transition.
	fadeIn  schedule.Task
	held    schedule.Task
	fadeOut schedule.Task
	removal schedule.Task

	tornDown bool
}

// TeardownFunc releases everything a message holds. The registry calls it
// exactly once per message, before the message leaves the set.
type TeardownFunc func(msg *ActiveMessage, reason RemovalReason)

// Registry tracks active messages in insertion order and enforces the
// concurrency cap by evicting the oldest entry.
type Registry struct {
	order    *list.List               // List of *ActiveMessage, oldest first
	index    map[string]*list.Element // Fast lookup by identity
	teardown TeardownFunc
}

// NewRegistry creates an empty registry.
func NewRegistry(teardown TeardownFunc) *Registry {
	if teardown == nil {
		teardown = func(*ActiveMessage, RemovalReason) {}
	}
	return &Registry{
		order:    list.New(),
		index:    make(map[string]*list.Element),
		teardown: teardown,
	}
}

// Register inserts msg and evicts the oldest entries while the registry
// holds more than limit messages. Evicted messages are returned after
// their teardown has run. A limit below 1 is rejected without inserting.
func (r *Registry) Register(msg *ActiveMessage, limit int) ([]*ActiveMessage, error) {
	if limit < 1 {
		return nil, ErrInvalidLimit
	}
	if _, exists := r.index[msg.ID]; exists {
		return nil, ErrDuplicateIdentity
	}
	r.index[msg.ID] = r.order.PushBack(msg)
	return r.Trim(limit), nil
}

// Trim evicts the oldest entries until at most limit remain. A limit
// below 1 empties the registry.
func (r *Registry) Trim(limit int) []*ActiveMessage {
	limit = max(limit, 0)

	var evicted []*ActiveMessage
	for r.order.Len() > limit {
		oldest := r.order.Front()
		msg := oldest.Value.(*ActiveMessage)
		r.remove(oldest, ReasonEvicted)
		evicted = append(evicted, msg)
	}
	return evicted
}

// Unregister removes the message with the given identity. Unknown
// identities are ignored. It reports whether a message was removed.
func (r *Registry) Unregister(id string) bool {
	return r.UnregisterWithReason(id, ReasonExpired)
}

// UnregisterWithReason is Unregister with an explicit reason for teardown.
func (r *Registry) UnregisterWithReason(id string, reason RemovalReason) bool {
	elem, ok := r.index[id]
	if !ok {
		return false
	}
	return r.remove(elem, reason)
}

// Drain removes every message, oldest first.
func (r *Registry) Drain(reason RemovalReason) []*ActiveMessage {
	var drained []*ActiveMessage
	for r.order.Len() > 0 {
		front := r.order.Front()
		msg := front.Value.(*ActiveMessage)
		r.remove(front, reason)
		drained = append(drained, msg)
	}
	return drained
}

func (r *Registry) remove(elem *list.Element, reason RemovalReason) bool {
	msg := elem.Value.(*ActiveMessage)
	if msg.tornDown {
		return false
	}
	msg.tornDown = true
	r.teardown(msg, reason)

	r.order.Remove(elem)
	delete(r.index, msg.ID)
	return true
}

// Get returns the active message with the given identity.
func (r *Registry) Get(id string) (*ActiveMessage, bool) {
	elem, ok := r.index[id]
	if !ok {
		return nil, false
	}
	return elem.Value.(*ActiveMessage), true
}

// Len returns the number of active messages.
func (r *Registry) Len() int {
	return r.order.Len()
}

// Footprints returns the footprints of all active messages, oldest first.
func (r *Registry) Footprints() []Rect {
	rects := make([]Rect, 0, r.order.Len())
	for e := r.order.Front(); e != nil; e = e.Next() {
		rects = append(rects, e.Value.(*ActiveMessage).Footprint)
	}
	return rects
}

// Each calls fn for every active message, oldest first. fn must not
// register or unregister messages.
func (r *Registry) Each(fn func(*ActiveMessage)) {
	for e := r.order.Front(); e != nil; e = e.Next() {
		fn(e.Value.(*ActiveMessage))
	}
}
