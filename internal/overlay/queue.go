package overlay

import (
	"container/list"

	"github.com/jmylchreest/scatter/internal/model"
)

// RenderQueue holds accepted events waiting to be displayed, in arrival
// order. The engine drains it right after each enqueue; the queue exists so
// a rate limiter can later defer draining without changing callers.
type RenderQueue struct {
	items *list.List // List of model.IncomingEvent
}

// NewRenderQueue creates an empty queue.
func NewRenderQueue() *RenderQueue {
	return &RenderQueue{items: list.New()}
}

// Enqueue appends an event.
func (q *RenderQueue) Enqueue(ev model.IncomingEvent) {
	q.items.PushBack(ev)
}

// Drain removes and returns the oldest event.
func (q *RenderQueue) Drain() (model.IncomingEvent, bool) {
	front := q.items.Front()
	if front == nil {
		return model.IncomingEvent{}, false
	}
	q.items.Remove(front)
	return front.Value.(model.IncomingEvent), true
}

// Len returns the number of queued events.
func (q *RenderQueue) Len() int {
	return q.items.Len()
}

// Reset discards all queued events.
func (q *RenderQueue) Reset() {
	q.items.Init()
}
