package overlay

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jmylchreest/scatter/internal/model"
)

func event(id string) model.IncomingEvent {
	return model.IncomingEvent{ID: id, Sender: "tester", Text: "text " + id, ArrivalTime: time.UnixMilli(1)}
}

func TestDeduplicator_RejectsRepeat(t *testing.T) {
	d := NewDeduplicator(DefaultHistorySize)

	ev := event("a")
	assert.True(t, d.Accept(&ev))
	ev = event("a")
	assert.False(t, d.Accept(&ev))
	assert.Equal(t, 1, d.Len())
}

func TestDeduplicator_SynthesizesIdentity(t *testing.T) {
	d := NewDeduplicator(10)

	ev := model.IncomingEvent{Text: "hello", ArrivalTime: time.UnixMilli(42)}
	assert.True(t, d.Accept(&ev))
	assert.Equal(t, "unknown_hello_42", ev.ID)

	again := model.IncomingEvent{Text: "hello", ArrivalTime: time.UnixMilli(42)}
	assert.False(t, d.Accept(&again))
}

func TestDeduplicator_HistoryWindow(t *testing.T) {
	d := NewDeduplicator(200)

	for i := 1; i <= 250; i++ {
		ev := event(fmt.Sprint(i))
		assert.True(t, d.Accept(&ev))
	}

	assert.Equal(t, 200, d.Len())
	for i := 1; i <= 50; i++ {
		assert.False(t, d.Contains(fmt.Sprint(i)), "identity %d should have aged out", i)
	}
	for i := 51; i <= 250; i++ {
		assert.True(t, d.Contains(fmt.Sprint(i)), "identity %d should be retained", i)
	}
}

func TestDeduplicator_ResubmitAfterWindow(t *testing.T) {
	d := NewDeduplicator(200)

	for i := 1; i <= 200; i++ {
		ev := event(fmt.Sprint(i))
		assert.True(t, d.Accept(&ev))
	}
	// Still inside the window.
	ev := event("1")
	assert.False(t, d.Accept(&ev))

	ev = event("201")
	assert.True(t, d.Accept(&ev))

	// Identity 1 has now fallen out and is accepted as new.
	ev = event("1")
	assert.True(t, d.Accept(&ev))
	assert.Equal(t, 200, d.Len())
}

func TestDeduplicator_DefaultWindow(t *testing.T) {
	assert.Equal(t, DefaultHistorySize, NewDeduplicator(0).Cap())
}

func TestRenderQueue_FIFO(t *testing.T) {
	q := NewRenderQueue()
	_, ok := q.Drain()
	assert.False(t, ok)

	q.Enqueue(event("a"))
	q.Enqueue(event("b"))
	assert.Equal(t, 2, q.Len())

	ev, ok := q.Drain()
	assert.True(t, ok)
	assert.Equal(t, "a", ev.ID)
	ev, _ = q.Drain()
	assert.Equal(t, "b", ev.ID)
	assert.Zero(t, q.Len())

	q.Enqueue(event("c"))
	q.Reset()
	assert.Zero(t, q.Len())
}
