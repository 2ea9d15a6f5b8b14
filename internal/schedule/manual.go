package schedule

import (
	"sort"
	"sync"
	"time"
)

// Manual is a Scheduler driven by an explicit virtual clock. Callbacks run
// synchronously inside Advance, which makes timer-driven code deterministic
// in tests and in headless replays.
type Manual struct {
	mu    sync.Mutex
	now   time.Duration
	seq   uint64
	tasks []*manualTask
}

// NewManual creates a scheduler whose clock starts at zero.
func NewManual() *Manual {
	return &Manual{}
}

type manualTask struct {
	m     *Manual
	due   time.Duration
	seq   uint64
	fn    func()
	state int32
}

func (t *manualTask) Cancel() bool {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	if t.state != taskPending {
		return false
	}
	t.state = taskCancelled
	return true
}

// After schedules fn to run when the clock reaches now+d.
func (m *Manual) After(d time.Duration, fn func()) Task {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	t := &manualTask{m: m, due: m.now + max(d, 0), seq: m.seq, fn: fn}
	m.tasks = append(m.tasks, t)
	return t
}

// Now returns the elapsed virtual time.
func (m *Manual) Now() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Pending returns the number of scheduled callbacks that have neither run
// nor been cancelled.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, t := range m.tasks {
		if t.state == taskPending {
			n++
		}
	}
	return n
}

// Advance moves the clock forward by d, running every callback that falls
// due in deadline order. Callbacks scheduled by those callbacks also run if
// they fall due before the new time.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now + d
	m.mu.Unlock()

	for {
		t := m.next(target)
		if t == nil {
			break
		}
		t.fn()
	}

	m.mu.Lock()
	m.now = target
	m.compact()
	m.mu.Unlock()
}

// next pops the earliest pending task due at or before target and marks it
// fired, moving the clock to its deadline.
func (m *Manual) next(target time.Duration) *manualTask {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.compact()
	sort.SliceStable(m.tasks, func(i, j int) bool {
		if m.tasks[i].due != m.tasks[j].due {
			return m.tasks[i].due < m.tasks[j].due
		}
		return m.tasks[i].seq < m.tasks[j].seq
	})
	if len(m.tasks) == 0 || m.tasks[0].due > target {
		return nil
	}

	t := m.tasks[0]
	m.tasks = m.tasks[1:]
	t.state = taskFired
	m.now = max(m.now, t.due)
	return t
}

// compact drops tasks that are no longer pending.
func (m *Manual) compact() {
	kept := m.tasks[:0]
	for _, t := range m.tasks {
		if t.state == taskPending {
			kept = append(kept, t)
		}
	}
	m.tasks = kept
}
