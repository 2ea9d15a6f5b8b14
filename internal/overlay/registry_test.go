package overlay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type teardownLog struct {
	calls   map[string]int
	reasons map[string]RemovalReason
	sizes   []int // Registry size observed during each teardown
	reg     *Registry
}

func newTeardownLog() *teardownLog {
	return &teardownLog{calls: make(map[string]int), reasons: make(map[string]RemovalReason)}
}

func (l *teardownLog) teardown(msg *ActiveMessage, reason RemovalReason) {
	l.calls[msg.ID]++
	l.reasons[msg.ID] = reason
	if l.reg != nil {
		l.sizes = append(l.sizes, l.reg.Len())
	}
}

func ids(msgs []*ActiveMessage) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.ID)
	}
	return out
}

func TestRegistry_EvictsOldest(t *testing.T) {
	log := newTeardownLog()
	r := NewRegistry(log.teardown)
	log.reg = r

	evicted, err := r.Register(&ActiveMessage{ID: "A"}, 2)
	require.NoError(t, err)
	assert.Empty(t, evicted)
	evicted, err = r.Register(&ActiveMessage{ID: "B"}, 2)
	require.NoError(t, err)
	assert.Empty(t, evicted)

	evicted, err = r.Register(&ActiveMessage{ID: "C"}, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, ids(evicted))

	assert.Equal(t, 2, r.Len())
	_, ok := r.Get("A")
	assert.False(t, ok)
	var active []string
	r.Each(func(m *ActiveMessage) { active = append(active, m.ID) })
	assert.Equal(t, []string{"B", "C"}, active)

	assert.Equal(t, 1, log.calls["A"])
	assert.Equal(t, ReasonEvicted, log.reasons["A"])
	// Teardown ran while A was still in the set.
	assert.Equal(t, []int{3}, log.sizes)
}

func TestRegistry_UnregisterIdempotent(t *testing.T) {
	log := newTeardownLog()
	r := NewRegistry(log.teardown)

	_, err := r.Register(&ActiveMessage{ID: "A"}, 10)
	require.NoError(t, err)

	assert.True(t, r.Unregister("A"))
	assert.False(t, r.Unregister("A"))
	assert.False(t, r.Unregister("missing"))
	assert.Equal(t, 1, log.calls["A"])
	assert.Equal(t, ReasonExpired, log.reasons["A"])
	assert.Zero(t, r.Len())
}

func TestRegistry_ReentrantUnregister(t *testing.T) {
	var r *Registry
	calls := 0
	r = NewRegistry(func(msg *ActiveMessage, _ RemovalReason) {
		calls++
		// A surface callback racing with removal.
		r.Unregister(msg.ID)
	})

	_, err := r.Register(&ActiveMessage{ID: "A"}, 10)
	require.NoError(t, err)
	r.Unregister("A")

	assert.Equal(t, 1, calls)
	assert.Zero(t, r.Len())
}

func TestRegistry_DuplicateIdentity(t *testing.T) {
	r := NewRegistry(nil)

	_, err := r.Register(&ActiveMessage{ID: "A"}, 10)
	require.NoError(t, err)
	_, err = r.Register(&ActiveMessage{ID: "A"}, 10)
	assert.ErrorIs(t, err, ErrDuplicateIdentity)
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_DrainAndTrim(t *testing.T) {
	log := newTeardownLog()
	r := NewRegistry(log.teardown)

	for _, id := range []string{"A", "B", "C", "D"} {
		_, err := r.Register(&ActiveMessage{ID: id, Footprint: Rect{Width: len(id)}}, 10)
		require.NoError(t, err)
	}
	assert.Len(t, r.Footprints(), 4)

	assert.Equal(t, []string{"A", "B"}, ids(r.Trim(2)))
	assert.Equal(t, []string{"C", "D"}, ids(r.Drain(ReasonCleared)))
	assert.Zero(t, r.Len())
	assert.Equal(t, ReasonCleared, log.reasons["D"])
	for _, id := range []string{"A", "B", "C", "D"} {
		assert.Equal(t, 1, log.calls[id], id)
	}
}

func TestRegistry_ConcurrencyBound(t *testing.T) {
	r := NewRegistry(nil)
	for i := range 100 {
		_, err := r.Register(&ActiveMessage{ID: string(rune('a' + i%26)) + string(rune('0'+i/26))}, 7)
		require.NoError(t, err)
		assert.LessOrEqual(t, r.Len(), 7)
	}
}

func TestRegistry_RejectsLimitBelowOne(t *testing.T) {
	log := newTeardownLog()
	r := NewRegistry(log.teardown)

	for _, limit := range []int{0, -3} {
		evicted, err := r.Register(&ActiveMessage{ID: "A"}, limit)
		assert.ErrorIs(t, err, ErrInvalidLimit)
		assert.Empty(t, evicted)
		assert.Zero(t, r.Len())
	}

	_, err := r.Register(&ActiveMessage{ID: "A"}, 1)
	require.NoError(t, err)
	_, err = r.Register(&ActiveMessage{ID: "B"}, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Len())

	assert.Equal(t, []string{"B"}, ids(r.Trim(0)))
	assert.Zero(t, r.Len())
	assert.Equal(t, 1, log.calls["B"])
}
