// Package overlay implements the random placement and message lifecycle
// engine: deduplication, collision-avoiding placement, and timed
// fade-in/hold/fade-out with a cap on concurrently visible messages.
//
// An Engine is single-threaded. All of its methods must be called from the
// goroutine that runs its scheduler's callbacks; use a Dispatcher to reach it
// from other goroutines.
package overlay

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/jmylchreest/scatter/internal/config"
	"github.com/jmylchreest/scatter/internal/emote"
	"github.com/jmylchreest/scatter/internal/model"
	"github.com/jmylchreest/scatter/internal/schedule"
)

// ErrUnplaceable is returned when a message cannot be measured or placed.
var ErrUnplaceable = errors.New("message cannot be placed")

// Options configures an Engine.
type Options struct {
	Styles      config.Styles // Base snapshot, restored by reset_styles
	HistorySize int
	MaxAttempts int
	FadeInDelay time.Duration
	Seed        uint64 // 0 seeds from the clock
	Rand        rand.Source

	Scheduler schedule.Scheduler
	Surface   Surface
	Logger    *slog.Logger

	// OnShown is called after a message has been placed and registered.
	OnShown func(msg *ActiveMessage)
}

// Stats is a snapshot of engine counters.
type Stats struct {
	Active     int       `json:"active" yaml:"active"`
	Queued     int       `json:"queued" yaml:"queued"`
	History    int       `json:"history" yaml:"history"`
	DebugMode  bool      `json:"debugMode" yaml:"debug_mode"`
	StartedAt  time.Time `json:"startedAt" yaml:"started_at"`
	Shown      uint64    `json:"shown" yaml:"shown"`
	Duplicates uint64    `json:"duplicates" yaml:"duplicates"`
	Dropped    uint64    `json:"dropped" yaml:"dropped"`
	Evicted    uint64    `json:"evicted" yaml:"evicted"`
	Expired    uint64    `json:"expired" yaml:"expired"`
	Cleared    uint64    `json:"cleared" yaml:"cleared"`
}

// Engine turns incoming events into placed, timed messages on a Surface.
type Engine struct {
	dedup     *Deduplicator
	queue     *RenderQueue
	placer    *Placer
	registry  *Registry
	lifecycle *Lifecycle
	surface   Surface
	logger    *slog.Logger

	base        config.Styles
	styles      config.Styles
	viewport    Size // Pinned by the surface; zero means use the styles
	fadeInDelay time.Duration
	onShown     func(*ActiveMessage)

	stats Stats
	now   func() time.Time
}

// New creates an engine.
func New(opts Options) (*Engine, error) {
	if opts.Scheduler == nil {
		return nil, fmt.Errorf("overlay: scheduler is required")
	}
	if opts.Surface == nil {
		return nil, fmt.Errorf("overlay: surface is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Styles == (config.Styles{}) {
		opts.Styles = config.DefaultStyles()
	}
	if opts.FadeInDelay < 0 {
		opts.FadeInDelay = DefaultFadeInDelay
	}
	if opts.Rand == nil {
		seed := opts.Seed
		if seed == 0 {
			seed = uint64(time.Now().UnixNano())
		}
		opts.Rand = rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
	}

	e := &Engine{
		dedup:       NewDeduplicator(opts.HistorySize),
		queue:       NewRenderQueue(),
		placer:      NewPlacer(opts.Rand, opts.MaxAttempts),
		surface:     opts.Surface,
		logger:      opts.Logger,
		base:        opts.Styles,
		styles:      opts.Styles,
		fadeInDelay: opts.FadeInDelay,
		onShown:     opts.OnShown,
		now:         time.Now,
	}
	e.registry = NewRegistry(e.teardown)
	e.lifecycle = NewLifecycle(opts.Scheduler, opts.Surface, e.registry, opts.Logger)
	e.stats.StartedAt = e.now()

	if ss, ok := e.surface.(StyleSetter); ok {
		ss.SetStyles(e.styles)
	}
	return e, nil
}

// Submit deduplicates ev and displays it. It returns the event's identity
// and whether it was accepted; accepted events may still be dropped if they
// cannot be placed.
func (e *Engine) Submit(ev model.IncomingEvent) (string, bool) {
	if !e.dedup.Accept(&ev) {
		e.stats.Duplicates++
		e.logger.Debug("duplicate message ignored", "id", ev.ID, "source", ev.Source)
		return ev.ID, false
	}

	e.queue.Enqueue(ev)
	e.drain()
	return ev.ID, true
}

// drain displays every queued event in arrival order.
func (e *Engine) drain() {
	for {
		ev, ok := e.queue.Drain()
		if !ok {
			return
		}
		if err := e.show(ev); err != nil {
			e.stats.Dropped++
			e.logger.Warn("message dropped", "id", ev.ID, "sender", ev.Sender, "error", err)
		}
	}
}

// show measures, places and registers one message. On failure nothing is
// left registered or attached.
func (e *Engine) show(ev model.IncomingEvent) error {
	styles := e.styles

	r, err := e.surface.Attach(Content{
		ID:       ev.ID,
		Sender:   ev.Sender,
		Segments: emote.Tokenize(ev.Text, ev.EmoteMap()),
		Styles:   styles,
	})
	if err != nil {
		return fmt.Errorf("failed to attach: %w", err)
	}

	size, err := e.surface.Measure(r)
	if err != nil {
		e.surface.Release(r)
		return fmt.Errorf("%w: measure: %v", ErrUnplaceable, err)
	}
	viewport := Size{Width: styles.Width, Height: styles.Height}
	if size.Empty() || viewport.Empty() {
		e.surface.Release(r)
		return fmt.Errorf("%w: message %s in viewport %s", ErrUnplaceable, size, viewport)
	}

	placement := e.placer.Place(size, e.registry.Footprints(), BoundsFor(viewport, size), styles.Margin)
	if err := e.surface.Place(r, placement.Point); err != nil {
		e.surface.Release(r)
		return fmt.Errorf("%w: %v", ErrUnplaceable, err)
	}

	msg := &ActiveMessage{
		ID:         ev.ID,
		Sender:     ev.Sender,
		Renderable: r,
		Footprint:  RectAt(placement.Point, size),
		Tier:       placement.Tier,
		State:      StateInvisible,
		PlacedAt:   e.now(),
	}
	if styles.DebugMode {
		e.attachOutline(msg, styles.Margin)
	}

	evicted, err := e.registry.Register(msg, styles.MaxMessages)
	if err != nil {
		if msg.Outline != 0 {
			e.surface.Release(msg.Outline)
		}
		e.surface.Release(r)
		return err
	}

	e.lifecycle.Start(msg, Timing{
		FadeInDelay: e.fadeInDelay,
		Fade:        styles.FadeDuration(),
		Hold:        styles.HoldDuration(),
	})
	e.stats.Shown++

	logAttrs := []any{
		"id", msg.ID,
		"footprint", msg.Footprint,
		"tier", placement.Tier,
		"active", e.registry.Len(),
	}
	if placement.Overlaps > 0 {
		logAttrs = append(logAttrs, "overlaps", placement.Overlaps)
	}
	if len(evicted) > 0 {
		logAttrs = append(logAttrs, "evicted", len(evicted))
	}
	e.logger.Debug("message shown", logAttrs...)

	if e.onShown != nil {
		e.onShown(msg)
	}
	return nil
}

func (e *Engine) attachOutline(msg *ActiveMessage, margin int) {
	outline, err := e.surface.Outline(msg.Footprint.Pad(margin))
	if err != nil {
		e.logger.Warn("failed to draw debug outline", "id", msg.ID, "error", err)
		return
	}
	msg.Outline = outline
}

func (e *Engine) teardown(msg *ActiveMessage, reason RemovalReason) {
	switch reason {
	case ReasonEvicted:
		e.stats.Evicted++
	case ReasonExpired:
		e.stats.Expired++
	case ReasonCleared:
		e.stats.Cleared++
	}
	e.lifecycle.Teardown(msg, reason)
}

// Execute applies a control command. Unknown commands are logged and
// returned as ErrUnknownCommand.
func (e *Engine) Execute(cmd Command) error {
	if err := cmd.Validate(); err != nil {
		e.logger.Warn("ignoring overlay command", "command", cmd.Name, "error", err)
		return err
	}

	switch cmd.Canonical() {
	case CommandClear:
		e.Clear()
	case CommandSetStyles:
		e.applyStyles(e.styles.Apply(*cmd.Styles))
	case CommandResetStyles:
		e.applyStyles(e.pinned(e.base))
		e.logger.Info("styles reset")
	case CommandToggleDebug:
		debug := !e.styles.DebugMode
		e.applyStyles(e.styles.Apply(config.StylePatch{DebugMode: &debug}))
		e.logger.Info("debug mode toggled", "enabled", debug)
	}
	return nil
}

// Clear removes every active message and cancels all pending transitions
// before returning.
func (e *Engine) Clear() int {
	e.queue.Reset()
	n := len(e.registry.Drain(ReasonCleared))
	e.logger.Info("overlay cleared", "removed", n)
	return n
}

// Reconfigure replaces both the base and current style snapshots, as when
// the configuration file changes.
func (e *Engine) Reconfigure(s config.Styles) {
	e.base = s
	e.applyStyles(e.pinned(s))
}

// SetViewport pins the viewport to the surface's actual drawable area. A
// pinned viewport survives reset_styles and Reconfigure; set_styles may
// still override it until the next SetViewport. Active messages are not
// repositioned.
func (e *Engine) SetViewport(size Size) {
	e.viewport = size
	e.applyStyles(e.pinned(e.styles))
}

func (e *Engine) pinned(s config.Styles) config.Styles {
	if !e.viewport.Empty() {
		s.Width = e.viewport.Width
		s.Height = e.viewport.Height
	}
	return s
}

// applyStyles installs a new snapshot. Active messages keep their position
// and timing; only the concurrency cap and debug outlines apply to them.
func (e *Engine) applyStyles(next config.Styles) {
	prev := e.styles
	e.styles = next

	if evicted := e.registry.Trim(next.MaxMessages); len(evicted) > 0 {
		e.logger.Debug("evicted messages above new limit", "count", len(evicted), "limit", next.MaxMessages)
	}

	switch {
	case next.DebugMode && (!prev.DebugMode || next.Margin != prev.Margin):
		e.registry.Each(func(msg *ActiveMessage) {
			if msg.Outline != 0 {
				e.surface.Release(msg.Outline)
				msg.Outline = 0
			}
			e.attachOutline(msg, next.Margin)
		})
	case !next.DebugMode && prev.DebugMode:
		e.registry.Each(func(msg *ActiveMessage) {
			if msg.Outline != 0 {
				e.surface.Release(msg.Outline)
				msg.Outline = 0
			}
		})
	}

	if ss, ok := e.surface.(StyleSetter); ok {
		ss.SetStyles(next)
	}
	e.logger.Debug("styles applied", "viewport", Size{next.Width, next.Height}, "max", next.MaxMessages, "debug", next.DebugMode)
}

// Styles returns the current style snapshot.
func (e *Engine) Styles() config.Styles {
	return e.styles
}

// Active returns the active messages, oldest first.
func (e *Engine) Active() []*ActiveMessage {
	msgs := make([]*ActiveMessage, 0, e.registry.Len())
	e.registry.Each(func(m *ActiveMessage) { msgs = append(msgs, m) })
	return msgs
}

// Stats returns a snapshot of the engine counters.
func (e *Engine) Stats() Stats {
	s := e.stats
	s.Active = e.registry.Len()
	s.Queued = e.queue.Len()
	s.History = e.dedup.Len()
	s.DebugMode = e.styles.DebugMode
	return s
}
