package fswatch

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"
)

type fsnotifySource struct {
	watcher *fsnotify.Watcher
}

func newFsnotifySource() (*fsnotifySource, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &fsnotifySource{watcher: w}, nil
}

func (s *fsnotifySource) add(path string) error {
	return s.watcher.Add(path)
}

func (s *fsnotifySource) run(ctx context.Context, emit func(Event), fail func(error)) error {
	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return ErrWatcherClosed
			}
			emit(Event{
				Path: event.Name,
				Op:   convertFsnotifyOp(event.Op),
				Time: time.Now(),
			})

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return ErrWatcherClosed
			}
			fail(err)

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *fsnotifySource) close() error {
	return s.watcher.Close()
}

func convertFsnotifyOp(op fsnotify.Op) Op {
	var out Op
	if op.Has(fsnotify.Create) {
		out |= OpCreate
	}
	if op.Has(fsnotify.Write) {
		out |= OpWrite
	}
	if op.Has(fsnotify.Remove) {
		out |= OpRemove
	}
	if op.Has(fsnotify.Rename) {
		out |= OpRename
	}
	if op.Has(fsnotify.Chmod) {
		out |= OpChmod
	}
	return out
}
