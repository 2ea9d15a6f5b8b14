package overlay

import (
	"errors"
	"log/slog"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/scatter/internal/config"
	"github.com/jmylchreest/scatter/internal/model"
	"github.com/jmylchreest/scatter/internal/schedule"
)

type harness struct {
	engine  *Engine
	surface *fakeSurface
	sched   *schedule.Manual
	shown   []string
}

func newHarness(t *testing.T, mutate func(*config.Styles)) *harness {
	t.Helper()

	styles := config.DefaultStyles()
	if mutate != nil {
		mutate(&styles)
	}

	h := &harness{
		surface: newFakeSurface(Size{200, 50}),
		sched:   schedule.NewManual(),
	}
	e, err := New(Options{
		Styles:      styles,
		HistorySize: DefaultHistorySize,
		MaxAttempts: DefaultMaxAttempts,
		FadeInDelay: DefaultFadeInDelay,
		Rand:        rand.NewPCG(1, 2),
		Scheduler:   h.sched,
		Surface:     h.surface,
		Logger:      slog.New(slog.DiscardHandler),
		OnShown:     func(m *ActiveMessage) { h.shown = append(h.shown, m.ID) },
	})
	require.NoError(t, err)
	h.engine = e
	return h
}

func (h *harness) submit(t *testing.T, id string) {
	t.Helper()
	_, accepted := h.engine.Submit(event(id))
	require.True(t, accepted, "submit %s", id)
}

func (h *harness) message(t *testing.T, id string) *ActiveMessage {
	t.Helper()
	m, ok := h.engine.registry.Get(id)
	require.True(t, ok, "message %s not active", id)
	return m
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Options{Surface: newFakeSurface(Size{1, 1})})
	assert.Error(t, err)
	_, err = New(Options{Scheduler: schedule.NewManual()})
	assert.Error(t, err)
}

func TestEngine_LifecycleTimeline(t *testing.T) {
	h := newHarness(t, nil) // hold 5s, fade 500ms
	h.submit(t, "a")

	m := h.message(t, "a")
	assert.Equal(t, StateInvisible, m.State)
	assert.Equal(t, []string{"a"}, h.shown)

	h.sched.Advance(10 * time.Millisecond)
	assert.Equal(t, StateFadingIn, m.State)
	assert.Equal(t, 500*time.Millisecond, h.surface.fadeIns[m.Renderable])

	h.sched.Advance(500 * time.Millisecond)
	assert.Equal(t, StateHeld, m.State)

	h.sched.Advance(4500*time.Millisecond - time.Millisecond)
	assert.Equal(t, StateHeld, m.State)
	h.sched.Advance(time.Millisecond)
	assert.Equal(t, StateFadingOut, m.State)
	assert.Equal(t, 500*time.Millisecond, h.surface.fadeOuts[m.Renderable])
	assert.Zero(t, h.surface.releases[m.Renderable])

	h.sched.Advance(500 * time.Millisecond)
	assert.Equal(t, StateRemoved, m.State)
	assert.Equal(t, 1, h.surface.releases[m.Renderable])
	assert.Zero(t, h.engine.registry.Len())
	assert.Zero(t, h.sched.Pending())

	stats := h.engine.Stats()
	assert.Equal(t, uint64(1), stats.Shown)
	assert.Equal(t, uint64(1), stats.Expired)
}

func TestEngine_HoldShorterThanFade(t *testing.T) {
	h := newHarness(t, func(s *config.Styles) {
		s.MessageDuration = 1
		s.AnimationDuration = 2000
	})
	h.submit(t, "a")
	m := h.message(t, "a")

	h.sched.Advance(10*time.Millisecond + time.Second)
	assert.Equal(t, StateFadingOut, m.State)

	// The held transition falls due after fade-out began and is skipped.
	h.sched.Advance(time.Second)
	assert.Equal(t, StateFadingOut, m.State)

	h.sched.Advance(time.Second)
	assert.Equal(t, StateRemoved, m.State)
}

func TestEngine_DuplicateSubmission(t *testing.T) {
	h := newHarness(t, nil)
	h.submit(t, "a")

	_, accepted := h.engine.Submit(event("a"))
	assert.False(t, accepted)
	assert.Equal(t, 1, h.engine.registry.Len())
	assert.Len(t, h.surface.contents, 1)
	assert.Equal(t, uint64(1), h.engine.Stats().Duplicates)
}

func TestEngine_EvictionTearsDownOnce(t *testing.T) {
	h := newHarness(t, func(s *config.Styles) { s.MaxMessages = 2 })

	h.submit(t, "A")
	a := h.message(t, "A")
	h.sched.Advance(100 * time.Millisecond)
	h.submit(t, "B")
	h.submit(t, "C")

	assert.Equal(t, 2, h.engine.registry.Len())
	_, ok := h.engine.registry.Get("A")
	assert.False(t, ok)
	assert.Equal(t, StateRemoved, a.State)
	assert.Equal(t, 1, h.surface.releases[a.Renderable])

	// A's pending timers were cancelled: running everything out does not
	// release it again.
	h.sched.Advance(time.Minute)
	assert.Equal(t, 1, h.surface.releases[a.Renderable])
	for r := range h.surface.contents {
		assert.Equal(t, 1, h.surface.releases[r], "renderable %d", r)
	}
	assert.Zero(t, h.engine.registry.Len())

	stats := h.engine.Stats()
	assert.Equal(t, uint64(1), stats.Evicted)
	assert.Equal(t, uint64(2), stats.Expired)
}

func TestEngine_ClearCancelsEverything(t *testing.T) {
	h := newHarness(t, func(s *config.Styles) { s.DebugMode = true })
	for _, id := range []string{"a", "b", "c"} {
		h.submit(t, id)
	}
	h.sched.Advance(20 * time.Millisecond)
	require.Positive(t, h.sched.Pending())

	require.NoError(t, h.engine.Execute(Clear()))

	assert.Zero(t, h.engine.registry.Len())
	assert.Zero(t, h.sched.Pending())
	assert.Empty(t, h.surface.live())
	assert.Empty(t, h.surface.liveOutlines())

	h.sched.Advance(time.Minute)
	for r, n := range h.surface.releases {
		assert.Equal(t, 1, n, "renderable %d", r)
	}
	assert.Equal(t, uint64(3), h.engine.Stats().Cleared)
}

func TestEngine_NoOverlapWhileHeld(t *testing.T) {
	h := newHarness(t, func(s *config.Styles) { s.MaxMessages = 5 })
	h.surface.size = Size{120, 40}

	for _, id := range []string{"a", "b", "c", "d", "e"} {
		h.submit(t, id)
	}
	h.sched.Advance(time.Second)

	active := h.engine.Active()
	require.Len(t, active, 5)
	for i, m := range active {
		assert.Equal(t, StateHeld, m.State)
		for _, other := range active[i+1:] {
			if m.Tier != TierGrid && other.Tier != TierGrid {
				assert.False(t, m.Footprint.Pad(10).Intersects(other.Footprint.Pad(10)),
					"%s %v overlaps %s %v", m.ID, m.Footprint, other.ID, other.Footprint)
			}
		}
		assert.Equal(t, Point{m.Footprint.X, m.Footprint.Y}, h.surface.placed[m.Renderable])
	}
}

func TestEngine_UnplaceableDropped(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(h *harness)
	}{
		{"zero size", func(h *harness) { h.surface.size = Size{} }},
		{"measure error", func(h *harness) { h.surface.measureErr = errors.New("detached") }},
		{"zero viewport", func(h *harness) { h.engine.styles.Width = 0 }},
		{"attach error", func(h *harness) { h.surface.attachErr = errors.New("no surface") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil)
			tt.prepare(h)

			_, accepted := h.engine.Submit(event("a"))
			assert.True(t, accepted)
			assert.Zero(t, h.engine.registry.Len())
			assert.Empty(t, h.surface.live())
			assert.Zero(t, h.sched.Pending())
			assert.Empty(t, h.shown)
			assert.Equal(t, uint64(1), h.engine.Stats().Dropped)
		})
	}
}

func TestEngine_DebugOutline(t *testing.T) {
	h := newHarness(t, func(s *config.Styles) { s.DebugMode = true })
	h.submit(t, "a")

	m := h.message(t, "a")
	require.NotZero(t, m.Outline)
	outline := m.Outline
	assert.Equal(t, m.Footprint.Pad(10), h.surface.outlines[outline])

	h.sched.Advance(time.Minute)
	assert.Equal(t, 1, h.surface.releases[outline])
	assert.Zero(t, m.Outline)
	assert.Empty(t, h.surface.liveOutlines())
}

func TestEngine_ToggleDebug(t *testing.T) {
	h := newHarness(t, nil)
	h.submit(t, "a")
	assert.Empty(t, h.surface.outlines)

	require.NoError(t, h.engine.Execute(ToggleDebug()))
	assert.True(t, h.engine.Styles().DebugMode)
	require.Len(t, h.surface.liveOutlines(), 1)
	assert.Equal(t, h.message(t, "a").Footprint.Pad(10), h.surface.liveOutlines()[0])

	require.NoError(t, h.engine.Execute(Command{Name: "toggleDebug"}))
	assert.False(t, h.engine.Styles().DebugMode)
	assert.Empty(t, h.surface.liveOutlines())
}

func TestEngine_SetStyles(t *testing.T) {
	h := newHarness(t, nil)
	for _, id := range []string{"a", "b", "c", "d"} {
		h.submit(t, id)
	}
	before := h.message(t, "d").Footprint

	width := 1600.0
	limit := 2.0
	require.NoError(t, h.engine.Execute(SetStyles(config.StylePatch{Width: &width, MaxMessages: &limit})))

	assert.Equal(t, 1600, h.engine.Styles().Width)
	assert.Equal(t, 2, h.engine.registry.Len())
	// Remaining messages keep their position.
	assert.Equal(t, before, h.message(t, "d").Footprint)
	assert.Equal(t, 1600, h.surface.styles[len(h.surface.styles)-1].Width)
}

func TestEngine_SetStylesAppliesToNewMessagesOnly(t *testing.T) {
	h := newHarness(t, nil)
	h.submit(t, "a")
	a := h.message(t, "a")

	hold := 10.0
	require.NoError(t, h.engine.Execute(SetStyles(config.StylePatch{MessageDuration: &hold})))
	h.submit(t, "b")
	b := h.message(t, "b")

	h.sched.Advance(6 * time.Second)
	assert.Equal(t, StateRemoved, a.State)
	assert.Equal(t, StateHeld, b.State)
}

func TestEngine_ResetStyles(t *testing.T) {
	h := newHarness(t, func(s *config.Styles) { s.Width = 1024 })

	w := 300.0
	require.NoError(t, h.engine.Execute(SetStyles(config.StylePatch{Width: &w})))
	assert.Equal(t, 300, h.engine.Styles().Width)

	require.NoError(t, h.engine.Execute(ResetStyles()))
	assert.Equal(t, 1024, h.engine.Styles().Width)

	h.engine.Reconfigure(config.DefaultStyles())
	require.NoError(t, h.engine.Execute(Command{Name: "reset-styles"}))
	assert.Equal(t, config.DefaultViewportWidth, h.engine.Styles().Width)
}

func TestEngine_PinnedViewport(t *testing.T) {
	h := newHarness(t, nil)

	h.engine.SetViewport(Size{640, 464})
	assert.Equal(t, 640, h.engine.Styles().Width)
	assert.Equal(t, 464, h.engine.Styles().Height)
	assert.Equal(t, 640, h.surface.styles[len(h.surface.styles)-1].Width)

	// Reset and reload keep the surface size.
	require.NoError(t, h.engine.Execute(ResetStyles()))
	assert.Equal(t, 640, h.engine.Styles().Width)

	reloaded := config.DefaultStyles()
	reloaded.FontSize = 24
	h.engine.Reconfigure(reloaded)
	assert.Equal(t, 464, h.engine.Styles().Height)
	assert.Equal(t, 24, h.engine.Styles().FontSize)
}

func TestEngine_CommandErrors(t *testing.T) {
	h := newHarness(t, nil)

	assert.ErrorIs(t, h.engine.Execute(Command{Name: "explode"}), ErrUnknownCommand)
	assert.ErrorIs(t, h.engine.Execute(Command{Name: CommandSetStyles}), ErrMissingStyles)
	assert.Equal(t, config.DefaultStyles(), h.engine.Styles())
}

func TestEngine_ContentCarriesSegments(t *testing.T) {
	h := newHarness(t, nil)

	_, accepted := h.engine.Submit(model.IncomingEvent{
		ID:     "e",
		Sender: "alice",
		Text:   "hi [emote:Kappa] [emote:Nope]",
		Emotes: []model.Emote{{Name: "Kappa", AssetRef: "/k.png"}},
	})
	require.True(t, accepted)

	c := h.surface.contents[h.message(t, "e").Renderable]
	assert.Equal(t, "alice", c.Sender)
	require.Len(t, c.Segments, 3)
	assert.Equal(t, "/k.png", c.Segments[1].AssetRef)
	assert.Equal(t, " [Nope]", c.Segments[2].Text)
}

func TestEngine_ConcurrencyBound(t *testing.T) {
	h := newHarness(t, func(s *config.Styles) { s.MaxMessages = 3 })

	for i := range 40 {
		h.submit(t, string(rune('a'+i%26))+string(rune('A'+i/26)))
		assert.LessOrEqual(t, h.engine.registry.Len(), 3)
		h.sched.Advance(time.Duration(i%4) * 700 * time.Millisecond)
	}
	h.sched.Advance(time.Minute)
	assert.Zero(t, h.engine.registry.Len())
	assert.Empty(t, h.surface.live())
}

func TestCommand_Canonical(t *testing.T) {
	tests := map[string]string{
		"clear":        CommandClear,
		"CLEAR":        CommandClear,
		"set_styles":   CommandSetStyles,
		"setStyles":    CommandSetStyles,
		"reset-styles": CommandResetStyles,
		"toggle_debug": CommandToggleDebug,
		"toggleDebug":  CommandToggleDebug,
		"nope":         "",
	}
	for name, want := range tests {
		assert.Equal(t, want, Command{Name: name}.Canonical(), name)
	}
}
