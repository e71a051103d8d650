package scheduler

import (
	"sync"
	"time"
)

// DefaultFrameInterval is roughly one display refresh
const DefaultFrameInterval = 16 * time.Millisecond

// Dispatch runs a callback on the goroutine that owns the session. A nil
// Dispatch runs callbacks on the timer goroutine.
type Dispatch func(func())

func (d Dispatch) run(f func()) {
	if d == nil {
		f()
		return
	}
	d(f)
}

// FrameScheduler keeps at most one frame request outstanding. A new request
// replaces the pending one.
type FrameScheduler struct {
	clock    Clock
	interval time.Duration
	dispatch Dispatch

	mu      sync.Mutex
	timer   Timer
	gen     uint64
	pending bool
}

// NewFrameScheduler creates a scheduler firing interval after each request
func NewFrameScheduler(clock Clock, interval time.Duration, dispatch Dispatch) *FrameScheduler {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	return &FrameScheduler{clock: clock, interval: interval, dispatch: dispatch}
}

// RequestTick schedules fn for the next frame, cancelling any request still
// pending. It reports whether a pending request was replaced.
func (s *FrameScheduler) RequestTick(fn func()) (coalesced bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending {
		s.timer.Stop()
		coalesced = true
	}
	s.gen++
	gen := s.gen
	s.pending = true
	s.timer = s.clock.AfterFunc(s.interval, func() {
		s.dispatch.run(func() {
			if !s.claim(gen) {
				return
			}
			fn()
		})
	})
	return coalesced
}

// claim marks request gen as consumed, failing if it was superseded or
// cancelled
func (s *FrameScheduler) claim(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen || !s.pending {
		return false
	}
	s.pending = false
	return true
}

// CancelPendingTick drops the outstanding request, if any
func (s *FrameScheduler) CancelPendingTick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.pending {
		return
	}
	s.timer.Stop()
	s.pending = false
	s.gen++
}

// Pending reports whether a request is outstanding
func (s *FrameScheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}
