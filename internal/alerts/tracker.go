package alerts

import (
	"sync"
	"time"
)

// RunTracker records when each AgentRun was first observed in a
// non-terminal phase. The stuck-run detector reads it; the control loop
// owns it and removes entries when runs reach a terminal phase.
//
// Timestamps survive only for the life of the process; after a restart
// the clock starts again, which errs on the side of not alerting.
type RunTracker struct {
	mu        sync.Mutex
	firstSeen map[string]time.Time
	now       func() time.Time
}

// NewRunTracker creates an empty tracker.
func NewRunTracker() *RunTracker {
	return &RunTracker{firstSeen: map[string]time.Time{}, now: time.Now}
}

// RecordFirstSeen notes the current time for a run, if not already tracked.
func (t *RunTracker) RecordFirstSeen(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.firstSeen[name]; !ok {
		t.firstSeen[name] = t.now()
	}
}

// Age returns how long a run has been tracked. ok is false for untracked runs.
func (t *RunTracker) Age(name string) (age time.Duration, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	first, ok := t.firstSeen[name]
	if !ok {
		return 0, false
	}
	return t.now().Sub(first), true
}

// ExceedsThreshold reports whether a tracked run is older than d.
// Untracked runs never exceed.
func (t *RunTracker) ExceedsThreshold(name string, d time.Duration) bool {
	age, ok := t.Age(name)
	return ok && age > d
}

// Remove drops a run from tracking (called when it reaches a terminal phase).
func (t *RunTracker) Remove(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.firstSeen, name)
}

// Len returns the number of tracked runs.
func (t *RunTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.firstSeen)
}

// setClock overrides the clock for tests.
func (t *RunTracker) setClock(now func() time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.now = now
}
