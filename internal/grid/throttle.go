package grid

import (
	"sync"
	"time"
)

// DefaultThrottleInterval bounds full-dataset recomputation while typing.
const DefaultThrottleInterval = 300 * time.Millisecond

// Throttle runs at most one function per interval. The first call in a
// quiet period runs immediately; later calls within the interval replace
// each other and only the last one runs when the interval ends.
type Throttle struct {
	interval time.Duration

	mu      sync.Mutex
	lastRun time.Time
	pending func()
	timer   *time.Timer
	closed  bool
}

// NewThrottle returns a throttle; a non-positive interval uses
// DefaultThrottleInterval.
func NewThrottle(interval time.Duration) *Throttle {
	if interval <= 0 {
		interval = DefaultThrottleInterval
	}
	return &Throttle{interval: interval}
}

// Do schedules fn. It reports whether fn ran synchronously.
func (t *Throttle) Do(fn func()) bool {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return false
	}
	wait := t.interval - time.Since(t.lastRun)
	if wait <= 0 && t.timer == nil {
		t.lastRun = time.Now()
		t.mu.Unlock()
		fn()
		return true
	}
	t.pending = fn
	if t.timer == nil {
		t.timer = time.AfterFunc(max(wait, 0), t.fire)
	}
	t.mu.Unlock()
	return false
}

func (t *Throttle) fire() {
	t.mu.Lock()
	fn := t.pending
	t.pending = nil
	t.timer = nil
	if t.closed || fn == nil {
		t.mu.Unlock()
		return
	}
	t.lastRun = time.Now()
	t.mu.Unlock()
	fn()
}

// Flush runs the pending call now, if any.
func (t *Throttle) Flush() {
	t.mu.Lock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	fn := t.pending
	t.pending = nil
	if fn != nil {
		t.lastRun = time.Now()
	}
	t.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Close drops any pending call; later calls to Do are ignored.
func (t *Throttle) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	t.pending = nil
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}
