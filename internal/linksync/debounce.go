package linksync

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

const DefaultDebounce = 500 * time.Millisecond

// Debouncer coalesces a burst of events into a single call of its settle
// function, made once no new event arrived for the quiet period. It holds at
// most one pending timer and runs at most one settle at a time.
type Debouncer struct {
	clock  clockwork.Clock
	delay  time.Duration
	settle func(SyncEvent)

	mu      sync.Mutex
	timer   clockwork.Timer
	gen     uint64
	pending SyncEvent
	stopped bool

	// held while settle runs
	firing sync.Mutex
}

func NewDebouncer(clock clockwork.Clock, delay time.Duration, settle func(SyncEvent)) *Debouncer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &Debouncer{
		clock:  clock,
		delay:  delay,
		settle: settle,
	}
}

// Notify restarts the quiet period with ev as the event passed to settle.
func (d *Debouncer) Notify(ev SyncEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}

	d.gen++
	gen := d.gen
	d.pending = ev
	d.timer = d.clock.AfterFunc(d.delay, func() { d.expire(gen) })
}

func (d *Debouncer) expire(gen uint64) {
	d.firing.Lock()
	defer d.firing.Unlock()

	d.mu.Lock()
	// a newer Notify or Stop superseded this timer
	if gen != d.gen || d.stopped {
		d.mu.Unlock()
		return
	}
	ev := d.pending
	d.timer = nil
	d.mu.Unlock()

	d.settle(ev)
}

// Pending reports whether a timer is scheduled and has not fired yet.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// Stop cancels the pending timer without firing it and waits for a settle
// that is already running. No settle starts after Stop returns.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	d.stopped = true
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.mu.Unlock()

	// wait out a running settle
	d.firing.Lock()
	d.firing.Unlock() //nolint:staticcheck
}
