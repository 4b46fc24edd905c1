package linksync

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type settleRecorder struct {
	mu     sync.Mutex
	events []SyncEvent
}

func (r *settleRecorder) settle(ev SyncEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *settleRecorder) calls() []SyncEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]SyncEvent(nil), r.events...)
}

func TestDebouncer_CoalescesBurst(t *testing.T) {
	clock := clockwork.NewFakeClock()
	rec := &settleRecorder{}
	d := NewDebouncer(clock, 500*time.Millisecond, rec.settle)

	d.Notify(SyncEvent{Path: "/links/a", Change: ChangeCreated})
	clock.Advance(300 * time.Millisecond)
	d.Notify(SyncEvent{Path: "/links/b", Change: ChangeModified})
	clock.Advance(300 * time.Millisecond)

	assert.Never(t, func() bool { return len(rec.calls()) > 0 }, 50*time.Millisecond, 5*time.Millisecond)
	assert.True(t, d.Pending())

	clock.Advance(200 * time.Millisecond)
	require.Eventually(t, func() bool { return len(rec.calls()) == 1 }, time.Second, 5*time.Millisecond)

	calls := rec.calls()
	assert.Equal(t, "/links/b", calls[0].Path)
	assert.False(t, d.Pending())

	clock.Advance(time.Second)
	assert.Never(t, func() bool { return len(rec.calls()) > 1 }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestDebouncer_SeparateBursts(t *testing.T) {
	clock := clockwork.NewFakeClock()
	rec := &settleRecorder{}
	d := NewDebouncer(clock, 500*time.Millisecond, rec.settle)

	d.Notify(SyncEvent{Path: "/links/a"})
	clock.Advance(500 * time.Millisecond)
	require.Eventually(t, func() bool { return len(rec.calls()) == 1 }, time.Second, 5*time.Millisecond)

	d.Notify(SyncEvent{Path: "/links/b"})
	clock.Advance(500 * time.Millisecond)
	require.Eventually(t, func() bool { return len(rec.calls()) == 2 }, time.Second, 5*time.Millisecond)
}

func TestDebouncer_StopCancelsPending(t *testing.T) {
	clock := clockwork.NewFakeClock()
	rec := &settleRecorder{}
	d := NewDebouncer(clock, 500*time.Millisecond, rec.settle)

	d.Notify(SyncEvent{Path: "/links/a"})
	d.Stop()
	assert.False(t, d.Pending())

	clock.Advance(time.Second)
	d.Notify(SyncEvent{Path: "/links/b"})
	clock.Advance(time.Second)

	assert.Never(t, func() bool { return len(rec.calls()) > 0 }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestDebouncer_StopWaitsForRunningSettle(t *testing.T) {
	clock := clockwork.NewFakeClock()
	entered := make(chan struct{})
	release := make(chan struct{})
	d := NewDebouncer(clock, 500*time.Millisecond, func(SyncEvent) {
		close(entered)
		<-release
	})

	d.Notify(SyncEvent{Path: "/links/a"})
	clock.Advance(500 * time.Millisecond)
	<-entered

	var stopped atomic.Bool
	go func() {
		d.Stop()
		stopped.Store(true)
	}()

	assert.Never(t, stopped.Load, 50*time.Millisecond, 5*time.Millisecond)
	close(release)
	require.Eventually(t, stopped.Load, time.Second, 5*time.Millisecond)
}

func TestDebouncer_SettlesDoNotOverlap(t *testing.T) {
	clock := clockwork.NewFakeClock()
	var running, overlaps, calls atomic.Int32
	release := make(chan struct{})
	d := NewDebouncer(clock, 100*time.Millisecond, func(SyncEvent) {
		if running.Add(1) > 1 {
			overlaps.Add(1)
		}
		<-release
		running.Add(-1)
		calls.Add(1)
	})

	d.Notify(SyncEvent{Path: "/links/a"})
	clock.Advance(100 * time.Millisecond)
	require.Eventually(t, func() bool { return running.Load() == 1 }, time.Second, 5*time.Millisecond)

	// a new burst settles while the first settle is still running
	d.Notify(SyncEvent{Path: "/links/b"})
	clock.Advance(100 * time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	close(release)
	require.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, 5*time.Millisecond)
	assert.Zero(t, overlaps.Load())
}

func TestNewDebouncer_Defaults(t *testing.T) {
	d := NewDebouncer(nil, 0, func(SyncEvent) {})
	assert.Equal(t, DefaultDebounce, d.delay)
	assert.NotNil(t, d.clock)
}
