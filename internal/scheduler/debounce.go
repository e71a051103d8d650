package scheduler

import (
	"sync"
	"time"
)

// DefaultQuietPeriod separates resize bursts
const DefaultQuietPeriod = 200 * time.Millisecond

// Debouncer runs the last triggered callback once triggers stop arriving for
// a quiet period
type Debouncer struct {
	clock    Clock
	quiet    time.Duration
	dispatch Dispatch

	mu    sync.Mutex
	timer Timer
	gen   uint64
}

// NewDebouncer creates a debouncer with the given quiet period
func NewDebouncer(clock Clock, quiet time.Duration, dispatch Dispatch) *Debouncer {
	if quiet <= 0 {
		quiet = DefaultQuietPeriod
	}
	return &Debouncer{clock: clock, quiet: quiet, dispatch: dispatch}
}

// Trigger restarts the quiet period with fn as the callback to run
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = d.clock.AfterFunc(d.quiet, func() {
		d.dispatch.run(func() {
			d.mu.Lock()
			current := gen == d.gen
			if current {
				d.timer = nil
			}
			d.mu.Unlock()
			if current {
				fn()
			}
		})
	})
}

// Cancel drops a pending callback
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.gen++
}
