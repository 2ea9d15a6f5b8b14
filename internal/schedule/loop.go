package schedule

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// ErrLoopStopped is returned when work is posted to a loop that has exited.
var ErrLoopStopped = errors.New("event loop stopped")

// DefaultBacklog is the number of posted callbacks buffered before Post blocks.
const DefaultBacklog = 256

// Loop is a single goroutine event loop. Every callback posted to it, and
// every timer it schedules, runs on the goroutine executing Run, so state
// owned by those callbacks needs no locking.
type Loop struct {
	work   chan func()
	done   chan struct{}
	once   sync.Once
	logger *slog.Logger
}

// NewLoop creates a new event loop. Call Run to start processing.
func NewLoop(backlog int, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	if backlog <= 0 {
		backlog = DefaultBacklog
	}
	return &Loop{
		work:   make(chan func(), backlog),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// Run processes callbacks until ctx is cancelled. Callbacks still queued
// when the context ends are discarded.
func (l *Loop) Run(ctx context.Context) error {
	defer l.once.Do(func() { close(l.done) })

	l.logger.Debug("event loop started")
	for {
		select {
		case <-ctx.Done():
			l.logger.Debug("event loop stopped")
			return ctx.Err()
		case fn := <-l.work:
			l.run(fn)
		}
	}
}

// run executes fn, keeping the loop alive if it panics.
func (l *Loop) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("event loop callback panicked", "panic", r)
		}
	}()
	fn()
}

// Done is closed once Run returns.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Post queues fn to run on the loop. It blocks while the backlog is full.
// Post must not be called from the loop goroutine when the backlog may be full.
func (l *Loop) Post(fn func()) error {
	select {
	case <-l.done:
		return ErrLoopStopped
	default:
	}

	select {
	case l.work <- fn:
		return nil
	case <-l.done:
		return ErrLoopStopped
	}
}

// Do runs fn on the loop and waits for it to finish.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	err := l.Post(func() {
		defer close(finished)
		fn()
	})
	if err != nil {
		return err
	}

	select {
	case <-finished:
		return nil
	case <-l.done:
		// The loop may have exited with our callback still queued.
		select {
		case <-finished:
			return nil
		default:
			return ErrLoopStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// After schedules fn to run on the loop once d has elapsed.
func (l *Loop) After(d time.Duration, fn func()) Task {
	t := &loopTask{}
	t.timer = time.AfterFunc(d, func() {
		err := l.Post(func() {
			// Cancel may have won the race while the callback was queued.
			if t.state.CompareAndSwap(taskPending, taskFired) {
				fn()
			}
		})
		if err != nil {
			t.state.CompareAndSwap(taskPending, taskCancelled)
		}
	})
	return t
}

type loopTask struct {
	timer *time.Timer
	state atomic.Int32
}

func (t *loopTask) Cancel() bool {
	t.timer.Stop()
	return t.state.CompareAndSwap(taskPending, taskCancelled)
}
