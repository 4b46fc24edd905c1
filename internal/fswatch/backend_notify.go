package fswatch

import (
	"context"
	"sync"
	"time"

	"github.com/rjeczalik/notify"
)

// notifySource uses rjeczalik/notify. Paths are registered without the
// "/..." suffix, so only immediate children are reported.
type notifySource struct {
	events chan notify.EventInfo
	done   chan struct{}
	once   sync.Once
}

func newNotifySource() *notifySource {
	return &notifySource{
		events: make(chan notify.EventInfo, 64),
		done:   make(chan struct{}),
	}
}

func (s *notifySource) add(path string) error {
	return notify.Watch(path, s.events, notify.All)
}

func (s *notifySource) run(ctx context.Context, emit func(Event), _ func(error)) error {
	for {
		select {
		case ei := <-s.events:
			emit(Event{
				Path: ei.Path(),
				Op:   convertNotifyEvent(ei.Event()),
				Time: time.Now(),
			})

		case <-s.done:
			return ErrWatcherClosed

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *notifySource) close() error {
	s.once.Do(func() {
		notify.Stop(s.events)
		close(s.done)
	})
	return nil
}

func convertNotifyEvent(e notify.Event) Op {
	var out Op
	if e&notify.Create != 0 {
		out |= OpCreate
	}
	if e&notify.Write != 0 {
		out |= OpWrite
	}
	if e&notify.Remove != 0 {
		out |= OpRemove
	}
	if e&notify.Rename != 0 {
		out |= OpRename
	}
	return out
}
