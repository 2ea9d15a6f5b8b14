package overlay

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/scatter/internal/config"
	"github.com/jmylchreest/scatter/internal/schedule"
)

func newTestDispatcher(t *testing.T, ctx context.Context) (*Dispatcher, *schedule.Loop) {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	loop := schedule.NewLoop(0, logger)
	go func() { _ = loop.Run(ctx) }()

	styles := config.DefaultStyles()
	styles.MaxMessages = 50
	engine, err := New(Options{
		Styles:    styles,
		Rand:      rand.NewPCG(9, 9),
		Scheduler: loop,
		Surface:   newFakeSurface(Size{50, 20}),
		Logger:    logger,
	})
	require.NoError(t, err)
	return NewDispatcher(loop, engine), loop
}

func TestDispatcher_SerializesAccess(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d, _ := newTestDispatcher(t, ctx)

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, accepted, err := d.Submit(ctx, event(string(rune('a'+i))))
			assert.NoError(t, err)
			assert.True(t, accepted)
		}()
	}
	wg.Wait()

	_, accepted, err := d.Submit(ctx, event("a"))
	require.NoError(t, err)
	assert.False(t, accepted)

	stats, err := d.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 20, stats.Active)
	assert.Equal(t, 20, stats.History)

	require.NoError(t, d.Execute(ctx, Clear()))
	stats, err = d.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Active)

	assert.ErrorIs(t, d.Execute(ctx, Command{Name: "bogus"}), ErrUnknownCommand)

	require.NoError(t, d.Reconfigure(ctx, config.DefaultStyles()))
	got, err := d.Styles(ctx)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultStyles(), got)
}

func TestDispatcher_CancelledWhileQueued(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d, loop := newTestDispatcher(t, ctx)

	// Hold the loop so later callbacks stay queued.
	release := make(chan struct{})
	require.NoError(t, loop.Post(func() { <-release }))

	queued, cancelQueued := context.WithCancel(ctx)
	cancelQueued()

	id, accepted, err := d.Submit(queued, event("late"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, id)
	assert.False(t, accepted)

	assert.ErrorIs(t, d.Execute(queued, ToggleDebug()), context.Canceled)

	close(release)

	stats, err := d.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Active)
	assert.Zero(t, stats.History)
	assert.Zero(t, stats.Shown)
	assert.False(t, stats.DebugMode)

	// The identity was never recorded, so a fresh submit is accepted.
	_, accepted, err = d.Submit(ctx, event("late"))
	require.NoError(t, err)
	assert.True(t, accepted)
}
