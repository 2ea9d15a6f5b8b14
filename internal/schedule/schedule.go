// Package schedule provides the single-threaded event loop that owns all
// overlay state, and the cancellable timers that drive message lifecycles.
package schedule

import (
	"time"
)

// Task is a handle to a scheduled callback.
type Task interface {
	// Cancel prevents the callback from running. It returns true if the
	// callback had not yet run and never will; false if it already ran or
	// was already cancelled. Cancel is safe to call more than once.
	Cancel() bool
}

// Scheduler runs callbacks after a delay. Callbacks are serialized with
// every other callback of the same scheduler.
type Scheduler interface {
	After(d time.Duration, fn func()) Task
}

// Task states shared by the Loop and Manual implementations.
const (
	taskPending int32 = iota
	taskFired
	taskCancelled
)
