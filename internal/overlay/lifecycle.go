package overlay

import (
	"log/slog"
	"time"

	"github.com/jmylchreest/scatter/internal/schedule"
)

// DefaultFadeInDelay is the pause between placement and the start of fade-in.
const DefaultFadeInDelay = 10 * time.Millisecond

// State is a message's position in its lifecycle.
type State int

const (
	StateInvisible State = iota // Attached for measurement only
	StateFadingIn
	StateHeld
	StateFadingOut
	StateRemoved
)

func (s State) String() string {
	switch s {
	case StateInvisible:
		return "invisible"
	case StateFadingIn:
		return "fading-in"
	case StateHeld:
		return "held"
	case StateFadingOut:
		return "fading-out"
	case StateRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Timing is the lifecycle timing captured when a message is placed.
type Timing struct {
	FadeInDelay time.Duration
	Fade        time.Duration
	Hold        time.Duration
}

// Lifecycle drives messages through fade-in, hold, fade-out and removal.
// Each transition is one scheduled task, so every pending transition can be
// cancelled individually.
type Lifecycle struct {
	sched    schedule.Scheduler
	surface  Surface
	registry *Registry
	logger   *slog.Logger
	now      func() time.Time
}

// NewLifecycle creates a lifecycle controller.
func NewLifecycle(sched schedule.Scheduler, surface Surface, registry *Registry, logger *slog.Logger) *Lifecycle {
	if logger == nil {
		logger = slog.Default()
	}
	return &Lifecycle{
		sched:    sched,
		surface:  surface,
		registry: registry,
		logger:   logger,
		now:      time.Now,
	}
}

// Start schedules the transitions of a freshly registered message.
// The hold period is measured from the start of fade-in, so fade-out begins
// Hold after fade-in starts whether or not fade-in has visually finished.
func (l *Lifecycle) Start(msg *ActiveMessage, t Timing) {
	msg.State = StateInvisible
	msg.fadeIn = l.sched.After(t.FadeInDelay, func() {
		l.fadeIn(msg, t)
	})
}

func (l *Lifecycle) fadeIn(msg *ActiveMessage, t Timing) {
	if msg.State != StateInvisible {
		return
	}
	msg.State = StateFadingIn
	l.surface.FadeIn(msg.Renderable, t.Fade)

	msg.held = l.sched.After(t.Fade, func() {
		if msg.State == StateFadingIn {
			msg.State = StateHeld
		}
	})
	msg.fadeOut = l.sched.After(t.Hold, func() {
		l.fadeOut(msg, t)
	})
}

func (l *Lifecycle) fadeOut(msg *ActiveMessage, t Timing) {
	if msg.State == StateRemoved {
		return
	}
	msg.State = StateFadingOut
	l.surface.FadeOut(msg.Renderable, t.Fade)

	msg.removal = l.sched.After(t.Fade, func() {
		l.registry.UnregisterWithReason(msg.ID, ReasonExpired)
	})
}

// Teardown cancels all pending transitions and releases the message's
// renderables. It is the registry's TeardownFunc.
func (l *Lifecycle) Teardown(msg *ActiveMessage, reason RemovalReason) {
	for _, task := range []schedule.Task{msg.fadeIn, msg.held, msg.fadeOut, msg.removal} {
		if task != nil {
			task.Cancel()
		}
	}
	msg.fadeIn, msg.held, msg.fadeOut, msg.removal = nil, nil, nil, nil

	if msg.Outline != 0 {
		l.surface.Release(msg.Outline)
		msg.Outline = 0
	}
	l.surface.Release(msg.Renderable)

	l.logger.Debug("message removed",
		"id", msg.ID,
		"reason", reason,
		"from_state", msg.State,
		"lived", l.now().Sub(msg.PlacedAt).Round(time.Millisecond),
	)
	msg.State = StateRemoved
}
