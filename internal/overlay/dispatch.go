package overlay

import (
	"context"

	"github.com/jmylchreest/scatter/internal/config"
	"github.com/jmylchreest/scatter/internal/model"
	"github.com/jmylchreest/scatter/internal/schedule"
)

// Sink accepts events and commands from any goroutine.
type Sink interface {
	Submit(ctx context.Context, ev model.IncomingEvent) (string, bool, error)
	Execute(ctx context.Context, cmd Command) error
}

// Dispatcher serializes access to an Engine through its event loop. It is
// safe for concurrent use.
type Dispatcher struct {
	loop   *schedule.Loop
	engine *Engine
}

var _ Sink = (*Dispatcher)(nil)

// NewDispatcher creates a dispatcher. The engine must have been created
// with loop as its scheduler.
func NewDispatcher(loop *schedule.Loop, engine *Engine) *Dispatcher {
	return &Dispatcher{loop: loop, engine: engine}
}

// Submit hands ev to the engine and waits for the deduplication verdict.
// If ctx ends before the loop reaches the event, the event is discarded.
func (d *Dispatcher) Submit(ctx context.Context, ev model.IncomingEvent) (string, bool, error) {
	var (
		id       string
		accepted bool
	)
	if err := d.loop.Do(ctx, func() {
		if ctx.Err() != nil {
			return
		}
		id, accepted = d.engine.Submit(ev)
	}); err != nil {
		return "", false, err
	}
	return id, accepted, nil
}

// Execute runs cmd on the engine. Like Submit, a command whose ctx ends
// while it is queued is dropped.
func (d *Dispatcher) Execute(ctx context.Context, cmd Command) error {
	var cmdErr error
	if err := d.loop.Do(ctx, func() {
		if ctx.Err() != nil {
			return
		}
		cmdErr = d.engine.Execute(cmd)
	}); err != nil {
		return err
	}
	return cmdErr
}

// Reconfigure replaces the engine's base styles.
func (d *Dispatcher) Reconfigure(ctx context.Context, s config.Styles) error {
	return d.loop.Do(ctx, func() {
		d.engine.Reconfigure(s)
	})
}

// SetViewport pins the engine's viewport to the surface size.
func (d *Dispatcher) SetViewport(ctx context.Context, size Size) error {
	return d.loop.Do(ctx, func() {
		d.engine.SetViewport(size)
	})
}

// Stats returns the engine counters.
func (d *Dispatcher) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	if err := d.loop.Do(ctx, func() {
		s = d.engine.Stats()
	}); err != nil {
		return Stats{}, err
	}
	return s, nil
}

// Styles returns the engine's current style snapshot.
func (d *Dispatcher) Styles(ctx context.Context) (config.Styles, error) {
	var s config.Styles
	if err := d.loop.Do(ctx, func() {
		s = d.engine.Styles()
	}); err != nil {
		return config.Styles{}, err
	}
	return s, nil
}
