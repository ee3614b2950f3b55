package capture

import (
	"sync"
	"time"
)

// DefaultDebounceWindow is how close together two gestures may be before
// the second one is dropped.
const DefaultDebounceWindow = 400 * time.Millisecond

// Debouncer drops triggers that arrive within a window of the last
// accepted one. The window is measured on the clock, not on whether the
// previous trigger's work has finished.
type Debouncer struct {
	mu     sync.Mutex
	window time.Duration
	now    func() time.Time
	last   time.Time
}

func NewDebouncer(window time.Duration, now func() time.Time) *Debouncer {
	if window <= 0 {
		window = DefaultDebounceWindow
	}
	if now == nil {
		now = time.Now
	}
	return &Debouncer{window: window, now: now}
}

// Allow reports whether a trigger happening now should be handled, and
// records it if so.
func (d *Debouncer) Allow() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	t := d.now()
	if !d.last.IsZero() && t.Sub(d.last) < d.window {
		return false
	}
	d.last = t
	return true
}

// Last returns the time of the last accepted trigger.
func (d *Debouncer) Last() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}
