package usecase

import (
	"sync"
	"time"
)

// DefaultDismissAfter is how long a deal panel stays up without interaction
const DefaultDismissAfter = 120000 * time.Millisecond

// Stopper cancels a scheduled callback
type Stopper interface {
	Stop() bool
}

// Clock schedules callbacks. Tests substitute a manual clock.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Stopper
}

type systemClock struct{}

func (systemClock) AfterFunc(d time.Duration, f func()) Stopper {
	return time.AfterFunc(d, f)
}

// SystemClock returns a Clock backed by the runtime timers
func SystemClock() Clock {
	return systemClock{}
}

// DismissalTimer is a single-slot timer: arming it replaces any pending
// expiry, so at most one callback is ever outstanding.
type DismissalTimer struct {
	clock Clock

	mu      sync.Mutex
	pending Stopper
	seq     uint64
}

// NewDismissalTimer creates a timer on clock, or the system clock when nil
func NewDismissalTimer(clock Clock) *DismissalTimer {
	if clock == nil {
		clock = SystemClock()
	}
	return &DismissalTimer{clock: clock}
}

// Arm cancels any pending expiry and schedules onExpire after d. A callback
// whose slot was cancelled or re-armed in the meantime does not fire, even if
// the underlying timer had already started running.
func (t *DismissalTimer) Arm(d time.Duration, onExpire func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopLocked()
	t.seq++
	seq := t.seq

	t.pending = t.clock.AfterFunc(d, func() {
		t.mu.Lock()
		if t.seq != seq || t.pending == nil {
			t.mu.Unlock()
			return
		}
		t.pending = nil
		t.mu.Unlock()

		onExpire()
	})
}

// Cancel drops the pending expiry. Calling it with nothing armed is a no-op.
func (t *DismissalTimer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
}

// Pending reports whether an expiry is outstanding
func (t *DismissalTimer) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending != nil
}

func (t *DismissalTimer) stopLocked() {
	if t.pending != nil {
		t.pending.Stop()
		t.pending = nil
	}
	t.seq++
}
